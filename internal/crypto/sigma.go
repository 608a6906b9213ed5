package crypto

import (
	"github.com/gtank/ristretto255"
	"github.com/pkg/errors"
)

// CommitmentEqProof proves that a Pedersen commitment to a value v
// (blinding s, global generators G,H) commits to the same v that a
// twisted-ElGamal ciphertext (C, D) encrypts under a public key P
// (opening r), i.e. proves knowledge of (v, s, r) such that:
//
//	commitment = v*G + s*H
//	C          = v*G + r*P
//	D          = r*G
//
// Required per spent asset per transaction (spec §4.1).
type CommitmentEqProof struct {
	A1 *Point
	A2 *Point
	A3 *Point
	Zv *Scalar
	Zs *Scalar
	Zr *Scalar
}

const commitmentEqDomain = "terminos/commitment-eq-proof/v1"

// ProveCommitmentEq builds a CommitmentEqProof. tr is the per-transaction
// transcript (already seeded with the asset id and account key by the
// caller) that both sides extend identically before drawing the
// challenge.
func ProveCommitmentEq(tr *Transcript, pub PublicKey, commitment Commitment, ct Ciphertext,
	v, s, r *Scalar) (CommitmentEqProof, error) {

	kv, err := RandomScalar()
	if err != nil {
		return CommitmentEqProof{}, err
	}
	ks, err := RandomScalar()
	if err != nil {
		return CommitmentEqProof{}, err
	}
	kr, err := RandomScalar()
	if err != nil {
		return CommitmentEqProof{}, err
	}

	gens := DefaultGenerators()
	a1 := addPoints(scalarMult(kv, gens.G), scalarMult(ks, gens.H))
	a2 := addPoints(scalarMult(kv, gens.G), scalarMult(kr, pub.point))
	a3 := scalarMult(kr, gens.G)

	tr2 := tr.Clone()
	tr2.AppendBytes("domain", []byte(commitmentEqDomain))
	tr2.AppendPoint("pubkey", pub.point)
	tr2.AppendPoint("commitment", commitment.point)
	tr2.AppendPoint("ct.C", ct.C)
	tr2.AppendPoint("ct.D", ct.D)
	tr2.AppendPoint("A1", a1)
	tr2.AppendPoint("A2", a2)
	tr2.AppendPoint("A3", a3)
	e := tr2.ChallengeScalar("challenge")

	zv := addScalars(kv, mulScalars(e, v))
	zs := addScalars(ks, mulScalars(e, s))
	zr := addScalars(kr, mulScalars(e, r))

	return CommitmentEqProof{A1: a1, A2: a2, A3: a3, Zv: zv, Zs: zs, Zr: zr}, nil
}

// Verify checks the proof against public data. It never requires the
// verifier to know v, s or r.
func (p CommitmentEqProof) Verify(tr *Transcript, pub PublicKey, commitment Commitment, ct Ciphertext) error {
	gens := DefaultGenerators()

	tr2 := tr.Clone()
	tr2.AppendBytes("domain", []byte(commitmentEqDomain))
	tr2.AppendPoint("pubkey", pub.point)
	tr2.AppendPoint("commitment", commitment.point)
	tr2.AppendPoint("ct.C", ct.C)
	tr2.AppendPoint("ct.D", ct.D)
	tr2.AppendPoint("A1", p.A1)
	tr2.AppendPoint("A2", p.A2)
	tr2.AppendPoint("A3", p.A3)
	e := tr2.ChallengeScalar("challenge")

	lhs1 := addPoints(scalarMult(p.Zv, gens.G), scalarMult(p.Zs, gens.H))
	rhs1 := addPoints(p.A1, scalarMult(e, commitment.point))
	if lhs1.Equal(rhs1) != 1 {
		return errors.New("commitment-eq proof: relation 1 failed")
	}

	lhs2 := addPoints(scalarMult(p.Zv, gens.G), scalarMult(p.Zr, pub.point))
	rhs2 := addPoints(p.A2, scalarMult(e, ct.C))
	if lhs2.Equal(rhs2) != 1 {
		return errors.New("commitment-eq proof: relation 2 failed")
	}

	lhs3 := scalarMult(p.Zr, gens.G)
	rhs3 := addPoints(p.A3, scalarMult(e, ct.D))
	if lhs3.Equal(rhs3) != 1 {
		return errors.New("commitment-eq proof: relation 3 failed")
	}
	return nil
}

// CiphertextValidityProof proves that an amount commitment and a pair of
// decrypt handles (one per sender and receiver public key) share a single
// opening (a, r):
//
//	commitment   = a*G + r*H
//	senderHandle = r*SenderPub
//	receiverHandle = r*ReceiverPub
//
// Required per transfer (spec §4.1).
type CiphertextValidityProof struct {
	A1 *Point
	A2 *Point
	A3 *Point
	Za *Scalar
	Zr *Scalar
}

const ciphertextValidityDomain = "terminos/ciphertext-validity-proof/v1"

// ProveCiphertextValidity builds a CiphertextValidityProof.
func ProveCiphertextValidity(tr *Transcript, sender, receiver PublicKey, commitment Commitment,
	senderHandle, receiverHandle *Point, a, r *Scalar) (CiphertextValidityProof, error) {

	ka, err := RandomScalar()
	if err != nil {
		return CiphertextValidityProof{}, err
	}
	kr, err := RandomScalar()
	if err != nil {
		return CiphertextValidityProof{}, err
	}

	gens := DefaultGenerators()
	a1 := addPoints(scalarMult(ka, gens.G), scalarMult(kr, gens.H))
	a2 := scalarMult(kr, sender.point)
	a3 := scalarMult(kr, receiver.point)

	tr2 := tr.Clone()
	tr2.AppendBytes("domain", []byte(ciphertextValidityDomain))
	tr2.AppendPoint("sender", sender.point)
	tr2.AppendPoint("receiver", receiver.point)
	tr2.AppendPoint("commitment", commitment.point)
	tr2.AppendPoint("senderHandle", senderHandle)
	tr2.AppendPoint("receiverHandle", receiverHandle)
	tr2.AppendPoint("A1", a1)
	tr2.AppendPoint("A2", a2)
	tr2.AppendPoint("A3", a3)
	e := tr2.ChallengeScalar("challenge")

	za := addScalars(ka, mulScalars(e, a))
	zr := addScalars(kr, mulScalars(e, r))

	return CiphertextValidityProof{A1: a1, A2: a2, A3: a3, Za: za, Zr: zr}, nil
}

// Verify checks the proof against public data.
func (p CiphertextValidityProof) Verify(tr *Transcript, sender, receiver PublicKey, commitment Commitment,
	senderHandle, receiverHandle *Point) error {

	gens := DefaultGenerators()

	tr2 := tr.Clone()
	tr2.AppendBytes("domain", []byte(ciphertextValidityDomain))
	tr2.AppendPoint("sender", sender.point)
	tr2.AppendPoint("receiver", receiver.point)
	tr2.AppendPoint("commitment", commitment.point)
	tr2.AppendPoint("senderHandle", senderHandle)
	tr2.AppendPoint("receiverHandle", receiverHandle)
	tr2.AppendPoint("A1", p.A1)
	tr2.AppendPoint("A2", p.A2)
	tr2.AppendPoint("A3", p.A3)
	e := tr2.ChallengeScalar("challenge")

	lhs1 := addPoints(scalarMult(p.Za, gens.G), scalarMult(p.Zr, gens.H))
	rhs1 := addPoints(p.A1, scalarMult(e, commitment.point))
	if lhs1.Equal(rhs1) != 1 {
		return errors.New("ciphertext-validity proof: relation 1 failed")
	}

	lhs2 := scalarMult(p.Zr, sender.point)
	rhs2 := addPoints(p.A2, scalarMult(e, senderHandle))
	if lhs2.Equal(rhs2) != 1 {
		return errors.New("ciphertext-validity proof: relation 2 failed")
	}

	lhs3 := scalarMult(p.Zr, receiver.point)
	rhs3 := addPoints(p.A3, scalarMult(e, receiverHandle))
	if lhs3.Equal(rhs3) != 1 {
		return errors.New("ciphertext-validity proof: relation 3 failed")
	}
	return nil
}

func scalarMult(s *Scalar, p *Point) *Point {
	return ristretto255.NewElement().ScalarMult(s, p)
}

func addPoints(a, b *Point) *Point {
	return ristretto255.NewElement().Add(a, b)
}

func addScalars(a, b *Scalar) *Scalar {
	return ristretto255.NewScalar().Add(a, b)
}

func mulScalars(a, b *Scalar) *Scalar {
	return ristretto255.NewScalar().Multiply(a, b)
}
