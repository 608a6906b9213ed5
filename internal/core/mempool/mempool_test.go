package mempool

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/core/transaction"
	"github.com/terminos-network/terminos/internal/crypto"
)

type stubVerifier struct {
	fail  map[[32]byte]bool
	nonce uint64
}

func (s *stubVerifier) VerifyAgainstTip(tx *transaction.Transaction) error {
	if s.fail[txKey(tx)] {
		return errVerifyFailed
	}
	return nil
}

func (s *stubVerifier) NonceAtTip(owner crypto.PublicKey) (uint64, error) {
	return s.nonce, nil
}

var errVerifyFailed = errors.New("verify failed")

func txKey(tx *transaction.Transaction) [32]byte {
	var k [32]byte
	k[0] = byte(tx.Nonce)
	return k
}

func newTestTx(sender crypto.PrivateKey, nonce uint64, fee uint64) *transaction.Transaction {
	return &transaction.Transaction{
		Version: 1,
		Source:  sender.PublicKey(),
		Payload: transaction.BurnPayload{Asset: transaction.NativeAsset, Amount: 1},
		Fee:     fee,
		Nonce:   nonce,
	}
}

func mustKey(t *testing.T) crypto.PrivateKey {
	t.Helper()
	sk, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generating key: %v", err)
	}
	return sk
}

func TestMempoolAdmitsSequentialNonces(t *testing.T) {
	mp := New()
	sender := mustKey(t)
	v := &stubVerifier{fail: map[[32]byte]bool{}}

	tx0 := newTestTx(sender, 0, 100)
	if err := mp.Add([32]byte{1}, tx0, 200, 0, v); err != nil {
		t.Fatalf("Add nonce 0: %v", err)
	}
	tx1 := newTestTx(sender, 1, 100)
	if err := mp.Add([32]byte{2}, tx1, 200, 0, v); err != nil {
		t.Fatalf("Add nonce 1: %v", err)
	}
	// Gap (nonce 3 while max is 1) must be rejected.
	tx3 := newTestTx(sender, 3, 100)
	if err := mp.Add([32]byte{3}, tx3, 200, 0, v); err != ErrInvalidNonceWindow {
		t.Fatalf("expected ErrInvalidNonceWindow, got %v", err)
	}
	if mp.Len() != 2 {
		t.Fatalf("mempool length = %d, want 2", mp.Len())
	}
}

func TestMempoolReplacementRequiresHigherFee(t *testing.T) {
	mp := New()
	sender := mustKey(t)
	v := &stubVerifier{fail: map[[32]byte]bool{}}

	tx := newTestTx(sender, 0, 100)
	if err := mp.Add([32]byte{1}, tx, 200, 0, v); err != nil {
		t.Fatalf("Add: %v", err)
	}
	sameFee := newTestTx(sender, 0, 100)
	if err := mp.Add([32]byte{2}, sameFee, 200, 0, v); err != ErrReplacementUnderpriced {
		t.Fatalf("expected ErrReplacementUnderpriced, got %v", err)
	}
	higherFee := newTestTx(sender, 0, 200)
	if err := mp.Add([32]byte{3}, higherFee, 200, 0, v); err != nil {
		t.Fatalf("expected replacement to succeed, got %v", err)
	}
	if mp.Has([32]byte{1}) {
		t.Fatalf("original entry should have been evicted")
	}
}

func TestMempoolRejectsDuplicate(t *testing.T) {
	mp := New()
	sender := mustKey(t)
	v := &stubVerifier{fail: map[[32]byte]bool{}}
	tx := newTestTx(sender, 0, 100)
	if err := mp.Add([32]byte{9}, tx, 200, 0, v); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := mp.Add([32]byte{9}, tx, 200, 0, v); err != ErrAlreadyInMempool {
		t.Fatalf("expected ErrAlreadyInMempool, got %v", err)
	}
}

func TestSelectForBlockTemplateRoundRobinsBySource(t *testing.T) {
	mp := New()
	v := &stubVerifier{fail: map[[32]byte]bool{}}
	a := mustKey(t)
	b := mustKey(t)

	for i := uint64(0); i < 3; i++ {
		txA := newTestTx(a, i, 100)
		txB := newTestTx(b, i, 100)
		var ha, hb [32]byte
		ha[0], ha[1] = 1, byte(i)
		hb[0], hb[1] = 2, byte(i)
		if err := mp.Add(ha, txA, 100, 0, v); err != nil {
			t.Fatalf("add a%d: %v", i, err)
		}
		if err := mp.Add(hb, txB, 100, 0, v); err != nil {
			t.Fatalf("add b%d: %v", i, err)
		}
	}

	selected := mp.SelectForBlockTemplate(10_000, v)
	if len(selected) != 6 {
		t.Fatalf("selected %d transactions, want 6", len(selected))
	}
}
