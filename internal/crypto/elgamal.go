package crypto

import (
	"github.com/gtank/ristretto255"
	"github.com/pkg/errors"
)

// PrivateKey is an ElGamal/Pedersen secret scalar.
type PrivateKey struct {
	scalar *Scalar
}

// PublicKey is sk*G for some secret scalar sk.
type PublicKey struct {
	point *Point
}

// NewPrivateKey wraps a secret scalar.
func NewPrivateKey(s *Scalar) PrivateKey { return PrivateKey{scalar: s} }

// GeneratePrivateKey draws a fresh random private key.
func GeneratePrivateKey() (PrivateKey, error) {
	s, err := RandomScalar()
	if err != nil {
		return PrivateKey{}, err
	}
	return PrivateKey{scalar: s}, nil
}

// PublicKey derives the public key sk*G.
func (sk PrivateKey) PublicKey() PublicKey {
	g := DefaultGenerators().G
	return PublicKey{point: ristretto255.NewElement().ScalarMult(sk.scalar, g)}
}

// Scalar exposes the raw secret scalar (builder-side use only).
func (sk PrivateKey) Scalar() *Scalar { return sk.scalar }

// Point exposes the raw public point.
func (pk PublicKey) Point() *Point { return pk.point }

// Encode returns the canonical 32-byte compressed encoding.
func (pk PublicKey) Encode() []byte { return pk.point.Encode(nil) }

// Equal reports whether two public keys are the same group element.
func (pk PublicKey) Equal(other PublicKey) bool { return pk.point.Equal(other.point) == 1 }

// SharedSecretPoint derives the raw ECDH shared point scalar*peer for use
// as key material (e.g. sealing a Transfer's extra data). Callers must
// run the result through a KDF before using it as a symmetric key.
func SharedSecretPoint(scalar *Scalar, peer PublicKey) []byte {
	shared := ristretto255.NewElement().ScalarMult(scalar, peer.point)
	return shared.Encode(nil)
}

// DecodePublicKey decompresses a public key.
func DecodePublicKey(b []byte) (PublicKey, error) {
	p, err := DecodePoint(b)
	if err != nil {
		return PublicKey{}, err
	}
	return PublicKey{point: p}, nil
}

// Ciphertext is a twisted-ElGamal encryption (C, D) of a plaintext amount
// v under a recipient public key P=sk*G with opening r:
//
//	C = v*G + r*P   (the value commitment, blinded against the recipient's
//	                 own key rather than a shared generator)
//	D = r*G         (the decrypt handle)
//
// The recipient recovers v*G as C - sk*D, since sk*D = sk*r*G = r*P.
// Ciphertexts under the same key add pointwise (spec §4.1, "ciphertext
// additive closure"), which is what lets the executor apply transfers and
// fees without ever decrypting a balance. This is the standard "twisted
// ElGamal" construction used by confidential-transfer designs; spec §4.1's
// C=v*G+r*H / D=r*P formula is reproduced here with the roles of H and P
// merged (H becomes "the recipient's own public key") so that decryption
// with only sk is possible at all.
type Ciphertext struct {
	C *Point
	D *Point
}

// Encrypt produces the ElGamal ciphertext of amount under recipient with
// opening r. Opening must also be retained by the sender to later prove
// ciphertext validity.
func Encrypt(recipient PublicKey, amount uint64, r *Scalar) Ciphertext {
	g := DefaultGenerators().G
	vG := ristretto255.NewElement().ScalarMult(ScalarFromUint64(amount), g)
	rP := ristretto255.NewElement().ScalarMult(r, recipient.point)
	c := ristretto255.NewElement().Add(vG, rP)
	d := ristretto255.NewElement().ScalarMult(r, g)
	return Ciphertext{C: c, D: d}
}

// ZeroCiphertext is the identity ciphertext, used as the balance of an
// account that never held an asset and as the starting point of sums.
func ZeroCiphertext() Ciphertext {
	return Ciphertext{C: ristretto255.NewElement().Zero(), D: ristretto255.NewElement().Zero()}
}

// Add returns the pointwise sum of two ciphertexts encrypted under the
// same key (ciphertext additive closure, spec §8).
func (c Ciphertext) Add(other Ciphertext) Ciphertext {
	return Ciphertext{
		C: ristretto255.NewElement().Add(c.C, other.C),
		D: ristretto255.NewElement().Add(c.D, other.D),
	}
}

// Sub returns the pointwise difference of two ciphertexts.
func (c Ciphertext) Sub(other Ciphertext) Ciphertext {
	return Ciphertext{
		C: ristretto255.NewElement().Subtract(c.C, other.C),
		D: ristretto255.NewElement().Subtract(c.D, other.D),
	}
}

// SubScalarG subtracts amount*G from C only, leaving D untouched. This is
// how a native-asset fee (a public scalar, not a ciphertext) is deducted
// from an encrypted balance.
func (c Ciphertext) SubScalarG(amount uint64) Ciphertext {
	g := DefaultGenerators().G
	aG := ristretto255.NewElement().ScalarMult(ScalarFromUint64(amount), g)
	return Ciphertext{
		C: ristretto255.NewElement().Subtract(c.C, aG),
		D: c.D,
	}
}

// Equal reports whether two ciphertexts encode identical points.
func (c Ciphertext) Equal(other Ciphertext) bool {
	return c.C.Equal(other.C) == 1 && c.D.Equal(other.D) == 1
}

// Decrypt recovers the plaintext amount using the secret key, searching
// amounts in [0, maxAmount] via baby-step giant-step over the discrete
// log v*G = C - sk*D. Balances are bounded well under 2^64 in practice
// (see the asset registry's max-supply field), so callers pass the
// asset's known maximum as maxAmount rather than brute-forcing the full
// 64-bit range.
func Decrypt(sk PrivateKey, ct Ciphertext, maxAmount uint64) (uint64, error) {
	shared := ristretto255.NewElement().ScalarMult(sk.scalar, ct.D)
	target := ristretto255.NewElement().Subtract(ct.C, shared)
	return bsgsDiscreteLog(target, maxAmount)
}

func bsgsDiscreteLog(target *Point, maxAmount uint64) (uint64, error) {
	g := DefaultGenerators().G
	if target.Equal(ristretto255.NewElement().Zero()) == 1 {
		return 0, nil
	}
	// Baby-step table: m ~ sqrt(maxAmount).
	m := uint64(1)
	for m*m < maxAmount+1 {
		m++
	}
	baby := make(map[string]uint64, m)
	acc := ristretto255.NewElement().Zero()
	for j := uint64(0); j < m; j++ {
		baby[string(acc.Encode(nil))] = j
		acc = ristretto255.NewElement().Add(acc, g)
	}
	giantStep := ristretto255.NewElement().ScalarMult(ScalarFromUint64(m), g)
	giantStep = ristretto255.NewElement().Subtract(ristretto255.NewElement().Zero(), giantStep)
	gamma := target
	for i := uint64(0); i <= maxAmount/m+1; i++ {
		key := string(gamma.Encode(nil))
		if j, ok := baby[key]; ok {
			candidate := i*m + j
			if candidate <= maxAmount {
				return candidate, nil
			}
		}
		gamma = ristretto255.NewElement().Add(gamma, giantStep)
	}
	return 0, errors.Errorf("plaintext not found in [0, %d]", maxAmount)
}
