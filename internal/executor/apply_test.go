package executor

import (
	"testing"

	"github.com/terminos-network/terminos/internal/core/state"
	"github.com/terminos-network/terminos/internal/core/transaction"
	"github.com/terminos-network/terminos/internal/crypto"
	"github.com/terminos-network/terminos/internal/storage"
)

// testMaxAmount bounds the Baby-Step-Giant-Step search crypto.Decrypt runs
// in these tests; it only needs to exceed the largest balance any test
// seeds, not the full uint64 range.
const testMaxAmount = 100 * 100_000_000

// walletState is a thin wallet-side adapter over a node-side state.Store:
// it tracks the opening each ciphertext was last built with, alongside
// the store's real ciphertexts, exactly what spec §4.2 "Inputs" asks of
// a builder StateProvider. A real wallet derives these from decrypting
// its own account's history; this test seeds them directly since it
// owns every private key involved.
//
// Maps are keyed by storage.AccountKey, never by crypto.PublicKey
// itself: PrivateKey.PublicKey() mints a fresh *ristretto255.Element each
// call, so two PublicKey values for the same key compare unequal as a
// map key even though they encode identically (see storage.AccountKey's
// doc comment).
type walletState struct {
	store   *state.Store
	key     map[storage.AccountKey]crypto.PrivateKey
	opening map[storage.AccountKey]map[transaction.AssetID]*crypto.Scalar
	topo    uint64
}

func (w *walletState) Balance(owner crypto.PublicKey, asset transaction.AssetID) (transaction.AccountState, error) {
	ct, _, err := w.store.EncryptedBalanceAtMax(owner, asset, w.topo)
	if err != nil {
		return transaction.AccountState{}, err
	}
	plain, err := crypto.Decrypt(w.key[storage.KeyOf(owner)], ct, testMaxAmount)
	if err != nil {
		return transaction.AccountState{}, err
	}
	return transaction.AccountState{
		PlaintextBalance: plain,
		EncryptedBalance: ct,
		BalanceOpening:   w.opening[storage.KeyOf(owner)][asset],
	}, nil
}

func (w *walletState) Nonce(owner crypto.PublicKey) (uint64, error) {
	return w.store.NonceAtTopoheight(owner, w.topo)
}

func (w *walletState) Reference() (transaction.Reference, error) {
	return transaction.Reference{Topoheight: w.topo}, nil
}

func (w *walletState) AccountExists(key crypto.PublicKey, atTopoheight uint64) (bool, error) {
	return w.store.AccountExists(key, atTopoheight)
}

func (w *walletState) BumpNonce(crypto.PublicKey) error { return nil } // the store records the real nonce on ApplyTransaction

func seedAccount(t *testing.T, st *state.Store, w *walletState, amount uint64) crypto.PrivateKey {
	t.Helper()
	sk, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	pk := sk.PublicKey()

	opening, err := crypto.RandomScalar()
	if err != nil {
		t.Fatalf("RandomScalar: %v", err)
	}
	ct := crypto.Encrypt(pk, amount, opening)
	if err := st.SetEncryptedBalance(pk, transaction.NativeAsset, 0, ct); err != nil {
		t.Fatalf("SetEncryptedBalance: %v", err)
	}
	if err := st.SetNonce(pk, 0, 0); err != nil {
		t.Fatalf("SetNonce: %v", err)
	}

	w.key[storage.KeyOf(pk)] = sk
	w.opening[storage.KeyOf(pk)] = map[transaction.AssetID]*crypto.Scalar{transaction.NativeAsset: opening}
	return sk
}

// TestTransferNativeFeeEndToEnd exercises spec §8 scenario 1: Alice
// starts with 10 TOS, Bob with 1 TOS; Alice sends 1 TOS to Bob under a
// native fee. Building, verifying and applying the transaction must
// leave Alice's balance decrypting to startBalance - amount - fee, Bob's
// to his starting balance plus amount, and Alice's nonce at 1.
func TestTransferNativeFeeEndToEnd(t *testing.T) {
	const coin = 100_000_000
	const startAlice = 10 * coin
	const startBob = 1 * coin
	const transferAmount = 1 * coin

	backend := storage.NewMemory()
	st := state.New(backend)
	if err := st.RegisterNativeAsset(8, "Terminos", "TOS", nil); err != nil {
		t.Fatalf("RegisterNativeAsset: %v", err)
	}

	wallet := &walletState{
		store:   st,
		key:     map[storage.AccountKey]crypto.PrivateKey{},
		opening: map[storage.AccountKey]map[transaction.AssetID]*crypto.Scalar{},
		topo:    0,
	}
	aliceSK := seedAccount(t, st, wallet, startAlice)
	bobSK := seedAccount(t, st, wallet, startBob)
	alice, bob := aliceSK.PublicKey(), bobSK.PublicKey()

	tx, err := transaction.Build(wallet, transaction.BuildRequest{
		Sender:     aliceSK,
		NetworkTag: 1,
		Payload: transaction.TransferPayload{Transfers: []transaction.Transfer{{
			Asset:       transaction.NativeAsset,
			Destination: bob,
			Amount:      transferAmount,
		}}},
		FeeType: transaction.FeeNative,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	hash, err := txSigningHash(tx)
	if err != nil {
		t.Fatalf("txSigningHash: %v", err)
	}
	sig, err := crypto.Sign(aliceSK, hash[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	tx.Signature = sig

	if err := VerifyTransaction(st, nil, tx, 1); err != nil {
		t.Fatalf("VerifyTransaction: %v", err)
	}

	if _, _, err := ApplyTransaction(st, nil, tx, 1); err != nil {
		t.Fatalf("ApplyTransaction: %v", err)
	}

	aliceCt, _, err := st.EncryptedBalanceAtMax(alice, transaction.NativeAsset, 1)
	if err != nil {
		t.Fatalf("EncryptedBalanceAtMax(alice): %v", err)
	}
	aliceBal, err := crypto.Decrypt(aliceSK, aliceCt, testMaxAmount)
	if err != nil {
		t.Fatalf("Decrypt(alice): %v", err)
	}
	if want := startAlice - transferAmount - tx.Fee; aliceBal != want {
		t.Fatalf("alice balance: got %d, want %d (fee %d)", aliceBal, want, tx.Fee)
	}

	bobCt, _, err := st.EncryptedBalanceAtMax(bob, transaction.NativeAsset, 1)
	if err != nil {
		t.Fatalf("EncryptedBalanceAtMax(bob): %v", err)
	}
	bobBal, err := crypto.Decrypt(bobSK, bobCt, testMaxAmount)
	if err != nil {
		t.Fatalf("Decrypt(bob): %v", err)
	}
	if bobBal != startBob+transferAmount {
		t.Fatalf("bob balance: got %d, want %d", bobBal, startBob+transferAmount)
	}

	nonce, err := st.NonceAtTopoheight(alice, 1)
	if err != nil {
		t.Fatalf("NonceAtTopoheight: %v", err)
	}
	if nonce != 1 {
		t.Fatalf("alice nonce: got %d, want 1", nonce)
	}
}

// TestReplayedTransactionRejectedByNonceCheck exercises the nonce-reuse
// guard (spec §4.3 step 5, §4.5 "Double-spend guard"): re-verifying the
// same already-applied transaction against the post-apply state must
// fail, since the account's nonce has already advanced past it.
func TestReplayedTransactionRejectedByNonceCheck(t *testing.T) {
	const coin = 100_000_000

	backend := storage.NewMemory()
	st := state.New(backend)
	if err := st.RegisterNativeAsset(8, "Terminos", "TOS", nil); err != nil {
		t.Fatalf("RegisterNativeAsset: %v", err)
	}

	wallet := &walletState{
		store:   st,
		key:     map[storage.AccountKey]crypto.PrivateKey{},
		opening: map[storage.AccountKey]map[transaction.AssetID]*crypto.Scalar{},
		topo:    0,
	}
	aliceSK := seedAccount(t, st, wallet, 10*coin)
	bobSK := seedAccount(t, st, wallet, 1*coin)
	bob := bobSK.PublicKey()

	tx, err := transaction.Build(wallet, transaction.BuildRequest{
		Sender:     aliceSK,
		NetworkTag: 1,
		Payload: transaction.TransferPayload{Transfers: []transaction.Transfer{{
			Asset:       transaction.NativeAsset,
			Destination: bob,
			Amount:      1 * coin,
		}}},
		FeeType: transaction.FeeNative,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	hash, err := txSigningHash(tx)
	if err != nil {
		t.Fatalf("txSigningHash: %v", err)
	}
	sig, err := crypto.Sign(aliceSK, hash[:])
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}
	tx.Signature = sig

	if err := VerifyTransaction(st, nil, tx, 1); err != nil {
		t.Fatalf("first VerifyTransaction: %v", err)
	}
	if _, _, err := ApplyTransaction(st, nil, tx, 1); err != nil {
		t.Fatalf("ApplyTransaction: %v", err)
	}

	if err := VerifyTransaction(st, nil, tx, 2); err != ErrTxNonceAlreadyUsed {
		t.Fatalf("replay: want ErrTxNonceAlreadyUsed, got %v", err)
	}
}
