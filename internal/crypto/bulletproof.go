package crypto

import "github.com/pkg/errors"

// RangeProof is an aggregated Bulletproof proving that every value
// committed by a list of Pedersen commitments lies in [0, 2^64). One
// proof covers all post-spend source-commitment balances and all
// transfer/deposit amounts of a single transaction (spec §4.1).
type RangeProof struct {
	A    *Point
	S    *Point
	T1   *Point
	T2   *Point
	TauX *Scalar
	Mu   *Scalar
	That *Scalar
	IPA  innerProductProof
}

const bulletproofDomain = "terminos/aggregated-range-proof/v1"

// ProveRangeAggregated builds an aggregated range proof for values (with
// matching blindings), whose length must already be a power of two (see
// PadCommitmentsToPowerOfTwo). Padding entries must carry value 0 and a
// zero blinding scalar, matching ZeroCommitment().
func ProveRangeAggregated(tr *Transcript, values []uint64, blindings []*Scalar) (RangeProof, error) {
	m := len(values)
	if m == 0 || (m&(m-1)) != 0 {
		return RangeProof{}, errors.Errorf("bulletproof: value count %d is not a power of two", m)
	}
	n := bulletproofMaxBits
	bigN := m * n

	gVec := vectorGenerators("terminos/bulletproof-G", bigN)
	hVec := vectorGenerators("terminos/bulletproof-H", bigN)
	gens := DefaultGenerators()

	aL := make([]*Scalar, bigN)
	for j := 0; j < m; j++ {
		bits := bitsOfUint64(values[j], n)
		copy(aL[j*n:(j+1)*n], bits)
	}
	aR := scalarVecSub(aL, repeatedOne(bigN))

	alpha, err := RandomScalar()
	if err != nil {
		return RangeProof{}, err
	}
	rho, err := RandomScalar()
	if err != nil {
		return RangeProof{}, err
	}
	sL := randomScalarVector(bigN)
	sR := randomScalarVector(bigN)

	a := addPoints(scalarMult(alpha, gens.H), addPoints(multiScalarMult(aL, gVec), multiScalarMult(aR, hVec)))
	s := addPoints(scalarMult(rho, gens.H), addPoints(multiScalarMult(sL, gVec), multiScalarMult(sR, hVec)))

	tr.AppendBytes("domain", []byte(bulletproofDomain))
	tr.AppendUint64("m", uint64(m))
	tr.AppendPoint("A", a)
	tr.AppendPoint("S", s)
	y := tr.ChallengeScalar("y")
	z := tr.ChallengeScalar("z")

	yPow := powersOfScalar(y, bigN)
	zVec := aggregatedZVector(z, m, n)

	l0 := scalarVecAddConst(aL, negateScalar(z))
	r0 := scalarVecAdd(scalarVecHadamard(yPow, scalarVecAddConst(aR, z)), zVec)

	l1 := sL
	r1 := scalarVecHadamard(yPow, sR)

	t0 := innerProduct(l0, r0)
	t1 := addScalars(innerProduct(l0, r1), innerProduct(l1, r0))
	t2 := innerProduct(l1, r1)

	tau1, err := RandomScalar()
	if err != nil {
		return RangeProof{}, err
	}
	tau2, err := RandomScalar()
	if err != nil {
		return RangeProof{}, err
	}
	t1Commit := addPoints(scalarMult(t1, gens.G), scalarMult(tau1, gens.H))
	t2Commit := addPoints(scalarMult(t2, gens.G), scalarMult(tau2, gens.H))

	tr.AppendPoint("T1", t1Commit)
	tr.AppendPoint("T2", t2Commit)
	x := tr.ChallengeScalar("x")

	l := scalarVecAdd(l0, scalarVecScale(l1, x))
	r := scalarVecAdd(r0, scalarVecScale(r1, x))
	that := innerProduct(l, r)

	// tauX = tau2*x^2 + tau1*x + sum_j z^(2+j) * gamma_j
	xSq := mulScalars(x, x)
	tauX := addScalars(mulScalars(tau2, xSq), mulScalars(tau1, x))
	for j := 0; j < m; j++ {
		zPow := powScalar(z, j+2)
		tauX = addScalars(tauX, mulScalars(zPow, blindings[j]))
	}

	mu := addScalars(alpha, mulScalars(rho, x))

	tr.AppendScalar("tauX", tauX)
	tr.AppendScalar("mu", mu)
	tr.AppendScalar("that", that)

	hPrime := hadamardPointsWithInversePowers(hVec, y)
	ipa := proveInnerProduct(tr, gVec, hPrime, l, r)

	return RangeProof{A: a, S: s, T1: t1Commit, T2: t2Commit, TauX: tauX, Mu: mu, That: that, IPA: ipa}, nil
}

// VerifyRangeAggregated checks proof against the commitments it claims to
// cover. commitments must already be power-of-two padded identically to
// how the prover padded its values.
func (proof RangeProof) VerifyRangeAggregated(tr *Transcript, commitments []Commitment) error {
	m := len(commitments)
	if m == 0 || (m&(m-1)) != 0 {
		return errors.Errorf("bulletproof: commitment count %d is not a power of two", m)
	}
	n := bulletproofMaxBits
	bigN := m * n

	gVec := vectorGenerators("terminos/bulletproof-G", bigN)
	hVec := vectorGenerators("terminos/bulletproof-H", bigN)
	gens := DefaultGenerators()

	tr.AppendBytes("domain", []byte(bulletproofDomain))
	tr.AppendUint64("m", uint64(m))
	tr.AppendPoint("A", proof.A)
	tr.AppendPoint("S", proof.S)
	y := tr.ChallengeScalar("y")
	z := tr.ChallengeScalar("z")

	tr.AppendPoint("T1", proof.T1)
	tr.AppendPoint("T2", proof.T2)
	x := tr.ChallengeScalar("x")

	tr.AppendScalar("tauX", proof.TauX)
	tr.AppendScalar("mu", proof.Mu)
	tr.AppendScalar("that", proof.That)

	// t-check: that*G + tauX*H =? sum_j z^(2+j)*V_j + delta(y,z)*G + x*T1 + x^2*T2
	delta := deltaYZ(y, z, m, n)
	rhs := scalarMult(delta, gens.G)
	for j := 0; j < m; j++ {
		zPow := powScalar(z, j+2)
		rhs = addPoints(rhs, scalarMult(zPow, commitments[j].point))
	}
	rhs = addPoints(rhs, scalarMult(x, proof.T1))
	rhs = addPoints(rhs, scalarMult(mulScalars(x, x), proof.T2))

	lhs := addPoints(scalarMult(proof.That, gens.G), scalarMult(proof.TauX, gens.H))
	if lhs.Equal(rhs) != 1 {
		return errors.New("bulletproof: t-check failed")
	}

	// P_ipa = A + x*S - mu*H - z*sum(G_i) + z*sum(H_i) + <zVec, H'>
	hPrime := hadamardPointsWithInversePowers(hVec, y)
	zVec := aggregatedZVector(z, m, n)

	p := addPoints(proof.A, scalarMult(x, proof.S))
	p = addPoints(p, scalarMult(negateScalar(proof.Mu), gens.H))
	p = addPoints(p, scalarMult(negateScalar(z), sumPoints(gVec)))
	p = addPoints(p, scalarMult(z, sumPoints(hVec)))
	p = addPoints(p, multiScalarMult(zVec, hPrime))
	p = addPoints(p, scalarMult(proof.That, ipaU))

	if err := verifyInnerProduct(tr, gVec, hPrime, p, proof.IPA); err != nil {
		return errors.Wrap(err, "bulletproof")
	}
	return nil
}

func repeatedOne(n int) []*Scalar {
	out := make([]*Scalar, n)
	one := oneScalar()
	for i := range out {
		out[i] = one
	}
	return out
}

func randomScalarVector(n int) []*Scalar {
	out := make([]*Scalar, n)
	for i := range out {
		s, err := RandomScalar()
		if err != nil {
			// RandomScalar only fails if the system CSPRNG is broken; a
			// panic here matches the rest of the crypto package's
			// "reads from crypto/rand cannot fail in practice" posture.
			panic(err)
		}
		out[i] = s
	}
	return out
}

// aggregatedZVector builds the length-m*n vector whose block j (bits
// [j*n, (j+1)*n)) holds z^(2+j) * 2^i for i in [0,n).
func aggregatedZVector(z *Scalar, m, n int) []*Scalar {
	out := make([]*Scalar, m*n)
	two := ScalarFromUint64(2)
	powersOfTwo := powersOfScalar(two, n)
	for j := 0; j < m; j++ {
		zPow := powScalar(z, j+2)
		for i := 0; i < n; i++ {
			out[j*n+i] = mulScalars(zPow, powersOfTwo[i])
		}
	}
	return out
}

func hadamardPointsWithInversePowers(points []*Point, y *Scalar) []*Point {
	out := make([]*Point, len(points))
	yInv := invertScalar(y)
	yInvPow := oneScalar()
	for i := range points {
		out[i] = scalarMult(yInvPow, points[i])
		yInvPow = mulScalars(yInvPow, yInv)
	}
	return out
}

func sumPoints(points []*Point) *Point {
	acc := scalarMult(zeroScalar(), points[0])
	for _, p := range points {
		acc = addPoints(acc, p)
	}
	return acc
}

// deltaYZ computes (z - z^2) * sum_{i<N} y^i - sum_{j<m} z^(3+j) * sum_{i<n} 2^i.
func deltaYZ(y, z *Scalar, m, n int) *Scalar {
	bigN := m * n
	sumY := zeroScalar()
	yPow := oneScalar()
	for i := 0; i < bigN; i++ {
		sumY = addScalars(sumY, yPow)
		yPow = mulScalars(yPow, y)
	}

	sumTwo := zeroScalar()
	twoPow := oneScalar()
	two := ScalarFromUint64(2)
	for i := 0; i < n; i++ {
		sumTwo = addScalars(sumTwo, twoPow)
		twoPow = mulScalars(twoPow, two)
	}

	zSq := mulScalars(z, z)
	term1 := mulScalars(subScalars(z, zSq), sumY)

	term2 := zeroScalar()
	for j := 0; j < m; j++ {
		zPow := powScalar(z, j+3)
		term2 = addScalars(term2, mulScalars(zPow, sumTwo))
	}

	return subScalars(term1, term2)
}
