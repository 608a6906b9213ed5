package transaction

import (
	"testing"

	"github.com/terminos-network/terminos/internal/crypto"
)

type fakeState struct {
	balances map[crypto.PublicKey]map[AssetID]AccountState
	nonces   map[crypto.PublicKey]uint64
	known    map[crypto.PublicKey]bool
}

func newFakeState() *fakeState {
	return &fakeState{
		balances: map[crypto.PublicKey]map[AssetID]AccountState{},
		nonces:   map[crypto.PublicKey]uint64{},
		known:    map[crypto.PublicKey]bool{},
	}
}

func (f *fakeState) setBalance(owner crypto.PublicKey, asset AssetID, plaintext uint64) {
	if f.balances[owner] == nil {
		f.balances[owner] = map[AssetID]AccountState{}
	}
	f.balances[owner][asset] = AccountState{
		PlaintextBalance: plaintext,
		EncryptedBalance: crypto.ZeroCiphertext(),
		BalanceOpening:   nil,
	}
	f.known[owner] = true
}

func (f *fakeState) Balance(owner crypto.PublicKey, asset AssetID) (AccountState, error) {
	return f.balances[owner][asset], nil
}

func (f *fakeState) Nonce(owner crypto.PublicKey) (uint64, error) {
	return f.nonces[owner], nil
}

func (f *fakeState) Reference() (Reference, error) {
	return Reference{Topoheight: 42}, nil
}

func (f *fakeState) AccountExists(key crypto.PublicKey, atTopoheight uint64) (bool, error) {
	return f.known[key], nil
}

func (f *fakeState) BumpNonce(owner crypto.PublicKey) error {
	f.nonces[owner]++
	return nil
}

func TestBuildTransferNativeFeeRoundTrip(t *testing.T) {
	senderSK, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	receiverSK, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatal(err)
	}
	sender := senderSK.PublicKey()
	receiver := receiverSK.PublicKey()

	state := newFakeState()
	state.setBalance(sender, NativeAsset, 10_000_000)
	state.known[receiver] = true // destination already has an account

	payload := TransferPayload{Transfers: []Transfer{{
		Asset:       NativeAsset,
		Destination: receiver,
		Amount:      1_000_000,
	}}}

	tx, err := Build(state, BuildRequest{
		Sender:     senderSK,
		NetworkTag: 1,
		Payload:    payload,
		FeeType:    FeeNative,
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if tx.Nonce != 0 {
		t.Fatalf("want nonce 0, got %d", tx.Nonce)
	}
	if state.nonces[sender] != 1 {
		t.Fatalf("want bumped nonce 1, got %d", state.nonces[sender])
	}
	if len(tx.SourceCommitments) != 1 {
		t.Fatalf("want 1 source commitment, got %d", len(tx.SourceCommitments))
	}

	encoded, err := tx.Encode(true)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if decoded.Nonce != tx.Nonce || decoded.Fee != tx.Fee {
		t.Fatalf("round-trip mismatch: got %+v, want %+v", decoded, tx)
	}
	if len(decoded.SourceCommitments) != len(tx.SourceCommitments) {
		t.Fatalf("round-trip source-commitment count mismatch")
	}
}

func TestBuildRejectsEmptyTransfers(t *testing.T) {
	senderSK, _ := crypto.GeneratePrivateKey()
	state := newFakeState()
	state.setBalance(senderSK.PublicKey(), NativeAsset, 1000)

	_, err := Build(state, BuildRequest{
		Sender:     senderSK,
		NetworkTag: 1,
		Payload:    TransferPayload{},
		FeeType:    FeeNative,
	})
	if err != ErrEmptyTransfers {
		t.Fatalf("want ErrEmptyTransfers, got %v", err)
	}
}

func TestBuildRejectsSenderIsReceiver(t *testing.T) {
	senderSK, _ := crypto.GeneratePrivateKey()
	sender := senderSK.PublicKey()
	state := newFakeState()
	state.setBalance(sender, NativeAsset, 1000)

	_, err := Build(state, BuildRequest{
		Sender:     senderSK,
		NetworkTag: 1,
		Payload: TransferPayload{Transfers: []Transfer{{
			Asset:       NativeAsset,
			Destination: sender,
			Amount:      10,
		}}},
		FeeType: FeeNative,
	})
	if err != ErrSenderIsReceiver {
		t.Fatalf("want ErrSenderIsReceiver, got %v", err)
	}
}

func TestBuildRejectsEnergyFeeOnNonTransfer(t *testing.T) {
	senderSK, _ := crypto.GeneratePrivateKey()
	state := newFakeState()
	state.setBalance(senderSK.PublicKey(), NativeAsset, 1000)

	_, err := Build(state, BuildRequest{
		Sender:     senderSK,
		NetworkTag: 1,
		Payload:    BurnPayload{Asset: NativeAsset, Amount: 10},
		FeeType:    FeeEnergy,
	})
	if err != ErrEnergyFeesNotAllowedForNonTransfer {
		t.Fatalf("want ErrEnergyFeesNotAllowedForNonTransfer, got %v", err)
	}
}

func TestBuildRejectsInsufficientFunds(t *testing.T) {
	senderSK, _ := crypto.GeneratePrivateKey()
	receiverSK, _ := crypto.GeneratePrivateKey()
	state := newFakeState()
	state.setBalance(senderSK.PublicKey(), NativeAsset, 100)
	state.known[receiverSK.PublicKey()] = true

	_, err := Build(state, BuildRequest{
		Sender:     senderSK,
		NetworkTag: 1,
		Payload: TransferPayload{Transfers: []Transfer{{
			Asset:       NativeAsset,
			Destination: receiverSK.PublicKey(),
			Amount:      1_000_000,
		}}},
		FeeType: FeeNative,
	})
	if err != ErrInsufficientFunds {
		t.Fatalf("want ErrInsufficientFunds, got %v", err)
	}
}

func TestFeeMonotonicity(t *testing.T) {
	small := NativeFee(100, 1, 0, 0)
	large := NativeFee(1000, 1, 0, 0)
	if small > large {
		t.Fatalf("native fee not monotonic in size: %d > %d", small, large)
	}
	smallE := EnergyFee(100, 1, 0)
	largeE := EnergyFee(1000, 1, 0)
	if smallE > largeE {
		t.Fatalf("energy fee not monotonic in size: %d > %d", smallE, largeE)
	}
}

func TestNativeFeeAndEnergyFeeAreIndependent(t *testing.T) {
	// Same inputs must not coincidentally collapse to the same formula;
	// the two calculators are priced from distinct constant tables.
	size, outputs, newAccounts := 500, 2, 1
	if NativeFee(size, outputs, newAccounts, 0) == EnergyFee(size, outputs, newAccounts) {
		t.Fatal("native and energy fee calculators must not coincide")
	}
}
