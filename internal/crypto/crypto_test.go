package crypto

import "testing"

func mustScalar(t *testing.T) *Scalar {
	t.Helper()
	s, err := RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar: %v", err)
	}
	return s
}

func TestCiphertextAdditiveClosure(t *testing.T) {
	sk, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	pk := sk.PublicKey()

	r1, r2 := mustScalar(t), mustScalar(t)
	ct1 := Encrypt(pk, 7, r1)
	ct2 := Encrypt(pk, 15, r2)

	sum := ct1.Add(ct2)
	got, err := Decrypt(sk, sum, 1000)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != 22 {
		t.Fatalf("want 22, got %d", got)
	}
}

func TestDecryptSubScalarG(t *testing.T) {
	sk, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	pk := sk.PublicKey()
	r := mustScalar(t)
	ct := Encrypt(pk, 100, r)
	debited := ct.SubScalarG(40)

	got, err := Decrypt(sk, debited, 1000)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != 60 {
		t.Fatalf("want 60, got %d", got)
	}
}

func TestCommitmentEqProofRoundTrip(t *testing.T) {
	sk, err := GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	pk := sk.PublicKey()

	v := ScalarFromUint64(42)
	s := mustScalar(t)
	r := mustScalar(t)

	commitment := CommitScalar(v, s)
	ct := Ciphertext{
		C: addPoints(scalarMult(v, DefaultGenerators().G), scalarMult(r, pk.Point())),
		D: scalarMult(r, DefaultGenerators().G),
	}

	tr := NewTranscript("test-commitment-eq")
	proof, err := ProveCommitmentEq(tr, pk, commitment, ct, v, s, r)
	if err != nil {
		t.Fatalf("ProveCommitmentEq: %v", err)
	}

	verifyTr := NewTranscript("test-commitment-eq")
	if err := proof.Verify(verifyTr, pk, commitment, ct); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestCommitmentEqProofRejectsWrongValue(t *testing.T) {
	sk, err := GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	pk := sk.PublicKey()

	v := ScalarFromUint64(42)
	wrongV := ScalarFromUint64(43)
	s := mustScalar(t)
	r := mustScalar(t)

	commitment := CommitScalar(wrongV, s)
	ct := Ciphertext{
		C: addPoints(scalarMult(v, DefaultGenerators().G), scalarMult(r, pk.Point())),
		D: scalarMult(r, DefaultGenerators().G),
	}

	tr := NewTranscript("test-commitment-eq")
	proof, err := ProveCommitmentEq(tr, pk, commitment, ct, v, s, r)
	if err != nil {
		t.Fatalf("ProveCommitmentEq: %v", err)
	}

	verifyTr := NewTranscript("test-commitment-eq")
	if err := proof.Verify(verifyTr, pk, commitment, ct); err == nil {
		t.Fatal("expected verification failure for mismatched value")
	}
}

func TestCiphertextValidityProofRoundTrip(t *testing.T) {
	senderSK, _ := GeneratePrivateKey()
	receiverSK, _ := GeneratePrivateKey()
	sender := senderSK.PublicKey()
	receiver := receiverSK.PublicKey()

	amount := ScalarFromUint64(1234)
	r := mustScalar(t)

	commitment := CommitScalar(amount, r)
	senderHandle := scalarMult(r, sender.Point())
	receiverHandle := scalarMult(r, receiver.Point())

	tr := NewTranscript("test-ciphertext-validity")
	proof, err := ProveCiphertextValidity(tr, sender, receiver, commitment, senderHandle, receiverHandle, amount, r)
	if err != nil {
		t.Fatalf("ProveCiphertextValidity: %v", err)
	}

	verifyTr := NewTranscript("test-ciphertext-validity")
	if err := proof.Verify(verifyTr, sender, receiver, commitment, senderHandle, receiverHandle); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestAggregatedRangeProofAcceptsInRangeValues(t *testing.T) {
	values := []uint64{0, 1, 1000, 1 << 40}
	blindings := make([]*Scalar, len(values))
	commitments := make([]Commitment, len(values))
	for i, v := range values {
		blindings[i] = mustScalar(t)
		commitments[i] = Commit(v, blindings[i])
	}

	proveTr := NewTranscript("test-range-proof")
	proof, err := ProveRangeAggregated(proveTr, values, blindings)
	if err != nil {
		t.Fatalf("ProveRangeAggregated: %v", err)
	}

	verifyTr := NewTranscript("test-range-proof")
	if err := proof.VerifyRangeAggregated(verifyTr, commitments); err != nil {
		t.Fatalf("VerifyRangeAggregated: %v", err)
	}
}

func TestAggregatedRangeProofRejectsTamperedCommitment(t *testing.T) {
	values := []uint64{5, 10}
	blindings := make([]*Scalar, len(values))
	commitments := make([]Commitment, len(values))
	for i, v := range values {
		blindings[i] = mustScalar(t)
		commitments[i] = Commit(v, blindings[i])
	}

	proveTr := NewTranscript("test-range-proof-tamper")
	proof, err := ProveRangeAggregated(proveTr, values, blindings)
	if err != nil {
		t.Fatalf("ProveRangeAggregated: %v", err)
	}

	// Swap in a commitment to a different value.
	tamperedBlinding := mustScalar(t)
	commitments[0] = Commit(999, tamperedBlinding)

	verifyTr := NewTranscript("test-range-proof-tamper")
	if err := proof.VerifyRangeAggregated(verifyTr, commitments); err == nil {
		t.Fatal("expected verification failure for tampered commitment")
	}
}

func TestPadCommitmentsToPowerOfTwo(t *testing.T) {
	in := make([]Commitment, 3)
	for i := range in {
		in[i] = Commit(uint64(i), mustScalar(t))
	}
	out := PadCommitmentsToPowerOfTwo(in)
	if len(out) != 4 {
		t.Fatalf("want padded length 4, got %d", len(out))
	}
	if out[3].point.Equal(ZeroCommitment().point) != 1 {
		t.Fatal("padding entry must equal the zero commitment")
	}
}
