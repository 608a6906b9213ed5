package crypto

import "github.com/gtank/ristretto255"

// Commitment is a Pedersen commitment C = v*G + r*H to value v under
// blinding r. Unlike a Ciphertext it carries no decryption handle: it
// proves knowledge of (v, r) but does not let any single key decrypt v.
type Commitment struct {
	point *Point
}

// Commit produces a Pedersen commitment to value with blinding r.
func Commit(value uint64, r *Scalar) Commitment {
	gens := DefaultGenerators()
	vG := ristretto255.NewElement().ScalarMult(ScalarFromUint64(value), gens.G)
	rH := ristretto255.NewElement().ScalarMult(r, gens.H)
	return Commitment{point: ristretto255.NewElement().Add(vG, rH)}
}

// CommitScalar commits to an already-embedded scalar value (used by the
// transaction builder for per-transfer amount commitments).
func CommitScalar(value, r *Scalar) Commitment {
	gens := DefaultGenerators()
	vG := ristretto255.NewElement().ScalarMult(value, gens.G)
	rH := ristretto255.NewElement().ScalarMult(r, gens.H)
	return Commitment{point: ristretto255.NewElement().Add(vG, rH)}
}

// Point exposes the raw commitment point.
func (c Commitment) Point() *Point { return c.point }

// Encode returns the canonical 32-byte compressed encoding.
func (c Commitment) Encode() []byte { return c.point.Encode(nil) }

// DecodeCommitment decompresses a commitment.
func DecodeCommitment(b []byte) (Commitment, error) {
	p, err := DecodePoint(b)
	if err != nil {
		return Commitment{}, err
	}
	return Commitment{point: p}, nil
}

// Add returns the sum of two commitments, a commitment to the sum of
// their values under the sum of their blindings.
func (c Commitment) Add(other Commitment) Commitment {
	return Commitment{point: ristretto255.NewElement().Add(c.point, other.point)}
}

// Sub returns the difference of two commitments.
func (c Commitment) Sub(other Commitment) Commitment {
	return Commitment{point: ristretto255.NewElement().Subtract(c.point, other.point)}
}

// ZeroCommitment is the commitment to value 0 with blinding 0, used to pad
// the Bulletproof input vector to a power of two (spec §4.1).
func ZeroCommitment() Commitment {
	return Commitment{point: ristretto255.NewElement().Zero()}
}
