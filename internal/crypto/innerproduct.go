package crypto

import "github.com/pkg/errors"

// innerProductProof is the logarithmic-size proof of knowledge of vectors
// a, b such that P = <a,G> + <b,H> + <a,b>*U, the standard Bulletproofs
// inner-product argument (Bünz et al.) used here to close out the
// aggregated range proof without transmitting the full l(x), r(x)
// vectors.
type innerProductProof struct {
	L []*Point
	R []*Point
	A *Scalar
	B *Scalar
}

var ipaU = HashToPoint([]byte("terminos/bulletproof-ipa-U/v1"))

// NewInnerProductProof reassembles a proof from its wire-decoded parts
// (internal/core/transaction's wire codec is the only external caller).
func NewInnerProductProof(l, r []*Point, a, b *Scalar) innerProductProof {
	return innerProductProof{L: l, R: r, A: a, B: b}
}

// Points exposes the proof's L/R vectors for serialisation.
func (p innerProductProof) Points() (l, r []*Point) { return p.L, p.R }

// Scalars exposes the proof's closing scalars for serialisation.
func (p innerProductProof) Scalars() (a, b *Scalar) { return p.A, p.B }

func proveInnerProduct(tr *Transcript, g, h []*Point, a, b []*Scalar) innerProductProof {
	n := len(a)
	var ls, rs []*Point

	g = append([]*Point{}, g...)
	h = append([]*Point{}, h...)
	a = append([]*Scalar{}, a...)
	b = append([]*Scalar{}, b...)

	for n > 1 {
		n /= 2

		cL := innerProduct(a[:n], b[n:])
		cR := innerProduct(a[n:], b[:n])

		l := addPoints(multiScalarMult(a[:n], g[n:]), multiScalarMult(b[n:], h[:n]))
		l = addPoints(l, scalarMult(cL, ipaU))
		r := addPoints(multiScalarMult(a[n:], g[:n]), multiScalarMult(b[:n], h[n:]))
		r = addPoints(r, scalarMult(cR, ipaU))

		tr.AppendPoint("ipa.L", l)
		tr.AppendPoint("ipa.R", r)
		u := tr.ChallengeScalar("ipa.u")
		uInv := invertScalar(u)

		newA := make([]*Scalar, n)
		newB := make([]*Scalar, n)
		newG := make([]*Point, n)
		newH := make([]*Point, n)
		for i := 0; i < n; i++ {
			newA[i] = addScalars(mulScalars(a[i], u), mulScalars(a[n+i], uInv))
			newB[i] = addScalars(mulScalars(b[i], uInv), mulScalars(b[n+i], u))
			newG[i] = addPoints(scalarMult(uInv, g[i]), scalarMult(u, g[n+i]))
			newH[i] = addPoints(scalarMult(u, h[i]), scalarMult(uInv, h[n+i]))
		}
		a, b, g, h = newA, newB, newG, newH

		ls = append(ls, l)
		rs = append(rs, r)
	}

	return innerProductProof{L: ls, R: rs, A: a[0], B: b[0]}
}

func verifyInnerProduct(tr *Transcript, g, h []*Point, p *Point, proof innerProductProof) error {
	n := len(g)
	if len(proof.L) != len(proof.R) {
		return errors.New("inner product proof: mismatched L/R lengths")
	}
	rounds := len(proof.L)
	if 1<<uint(rounds) != n {
		return errors.New("inner product proof: round count does not match generator vector length")
	}

	challenges := make([]*Scalar, rounds)
	for i := 0; i < rounds; i++ {
		tr.AppendPoint("ipa.L", proof.L[i])
		tr.AppendPoint("ipa.R", proof.R[i])
		challenges[i] = tr.ChallengeScalar("ipa.u")
	}

	// Fold P with the per-round L/R contributions.
	acc := p
	for i := 0; i < rounds; i++ {
		uSq := mulScalars(challenges[i], challenges[i])
		uInvSq := invertScalar(uSq)
		acc = addPoints(acc, scalarMult(uSq, proof.L[i]))
		acc = addPoints(acc, scalarMult(uInvSq, proof.R[i]))
	}

	// Compute the folded generators directly via the product-of-challenges
	// formula: for bit pattern k of index i (0 = u_j^-1, 1 = u_j), the
	// coefficient of g[i] is product_j u_j^{+-1} and of h[i] the mirror.
	sG := make([]*Scalar, n)
	sH := make([]*Scalar, n)
	invChallenges := invertVector(challenges)
	for i := 0; i < n; i++ {
		coeff := oneScalar()
		coeffInv := oneScalar()
		for j := 0; j < rounds; j++ {
			bit := (i >> uint(rounds-1-j)) & 1
			if bit == 1 {
				coeff = mulScalars(coeff, challenges[j])
				coeffInv = mulScalars(coeffInv, invChallenges[j])
			} else {
				coeff = mulScalars(coeff, invChallenges[j])
				coeffInv = mulScalars(coeffInv, challenges[j])
			}
		}
		sG[i] = coeff
		sH[i] = coeffInv
	}

	gFinal := multiScalarMult(sG, g)
	hFinal := multiScalarMult(sH, h)

	ab := mulScalars(proof.A, proof.B)
	expected := addPoints(addPoints(scalarMult(proof.A, gFinal), scalarMult(proof.B, hFinal)), scalarMult(ab, ipaU))

	if acc.Equal(expected) != 1 {
		return errors.New("inner product proof: verification equation failed")
	}
	return nil
}
