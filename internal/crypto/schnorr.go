package crypto

import "github.com/pkg/errors"

// Sign produces a Schnorr signature over message with sk (spec §4.2 step
// 8, §4.3 step 7: "ed25519-style signature"). This module's keys are
// Ristretto255 group elements rather than literal Ed25519 keys, so the
// signature realizing that step is a Ristretto255 Schnorr signature over
// the same keypair used for ElGamal, not a literal Ed25519 signature; see
// DESIGN.md for the resolved ambiguity. Encoded as R (32B) || s (32B).
func Sign(sk PrivateKey, message []byte) ([64]byte, error) {
	k, err := RandomScalar()
	if err != nil {
		return [64]byte{}, errors.Wrap(err, "crypto: drawing schnorr nonce")
	}
	g := DefaultGenerators().G
	r := scalarMult(k, g)
	e := schnorrChallenge(r, sk.PublicKey(), message)
	s := addScalars(k, mulScalars(e, sk.scalar))

	var sig [64]byte
	copy(sig[:32], r.Encode(nil))
	copy(sig[32:], s.Encode(nil))
	return sig, nil
}

// Verify checks a signature produced by Sign against pk and message.
func Verify(pk PublicKey, message []byte, sig [64]byte) bool {
	r, err := DecodePoint(sig[:32])
	if err != nil {
		return false
	}
	s, err := DecodeScalar(sig[32:])
	if err != nil {
		return false
	}
	e := schnorrChallenge(r, pk, message)

	g := DefaultGenerators().G
	lhs := scalarMult(s, g)
	rhs := addPoints(r, scalarMult(e, pk.point))
	return lhs.Equal(rhs) == 1
}

func schnorrChallenge(r *Point, pk PublicKey, message []byte) *Scalar {
	buf := append([]byte{}, r.Encode(nil)...)
	buf = append(buf, pk.Encode()...)
	buf = append(buf, message...)
	return newScalarFromUniformBytes(expandTo64(buf))
}
