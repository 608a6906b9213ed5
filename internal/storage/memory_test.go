package storage

import (
	"testing"

	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/core/transaction"
	"github.com/terminos-network/terminos/internal/crypto"
)

func testKey(b byte) AccountKey {
	var k AccountKey
	k[0] = b
	return k
}

// TestNonceAtTopoheightWalksMostRecentVersion exercises the versioned-datum
// lookup (spec §3 "Versioned datum"): GetNonceAtTopoheight must return the
// newest version at or before the requested topoheight, not the latest
// version overall.
func TestNonceAtTopoheightWalksMostRecentVersion(t *testing.T) {
	m := NewMemory()
	owner := testKey(1)

	if err := m.SetNonceAtTopoheight(owner, 0, 0); err != nil {
		t.Fatalf("SetNonceAtTopoheight(0): %v", err)
	}
	if err := m.SetNonceAtTopoheight(owner, 5, 1); err != nil {
		t.Fatalf("SetNonceAtTopoheight(5): %v", err)
	}
	if err := m.SetNonceAtTopoheight(owner, 10, 2); err != nil {
		t.Fatalf("SetNonceAtTopoheight(10): %v", err)
	}

	for _, tc := range []struct {
		at   uint64
		want uint64
	}{
		{at: 0, want: 0},
		{at: 4, want: 0},
		{at: 5, want: 1},
		{at: 9, want: 1},
		{at: 10, want: 2},
		{at: 100, want: 2},
	} {
		v, ok, err := m.GetNonceAtTopoheight(owner, tc.at)
		if err != nil {
			t.Fatalf("GetNonceAtTopoheight(%d): %v", tc.at, err)
		}
		if !ok {
			t.Fatalf("GetNonceAtTopoheight(%d): not found", tc.at)
		}
		if v.Value != tc.want {
			t.Fatalf("GetNonceAtTopoheight(%d): got %d, want %d", tc.at, v.Value, tc.want)
		}
	}

	v, ok, err := m.GetNonceAtTopoheight(testKey(2), 0)
	if err != nil {
		t.Fatalf("GetNonceAtTopoheight(unknown owner): %v", err)
	}
	if ok {
		t.Fatalf("GetNonceAtTopoheight(unknown owner): got %+v, want not found", v)
	}
}

// TestSetNonceAtTopoheightLinksPreviousVersion confirms each new version
// records the prior version's topoheight, the chain DeleteVersionedData*
// and wallet rewinds walk via PreviousTopoheight (spec §3).
func TestSetNonceAtTopoheightLinksPreviousVersion(t *testing.T) {
	m := NewMemory()
	owner := testKey(3)

	if err := m.SetNonceAtTopoheight(owner, 0, 0); err != nil {
		t.Fatalf("SetNonceAtTopoheight(0): %v", err)
	}
	if err := m.SetNonceAtTopoheight(owner, 7, 1); err != nil {
		t.Fatalf("SetNonceAtTopoheight(7): %v", err)
	}

	v, ok, err := m.GetNonceAtTopoheight(owner, 7)
	if err != nil || !ok {
		t.Fatalf("GetNonceAtTopoheight(7): ok=%v err=%v", ok, err)
	}
	if v.PreviousTopoheight == nil {
		t.Fatalf("version at 7: PreviousTopoheight is nil, want pointer to 0")
	}
	if *v.PreviousTopoheight != 0 {
		t.Fatalf("version at 7: PreviousTopoheight = %d, want 0", *v.PreviousTopoheight)
	}

	first, ok, err := m.GetNonceAtTopoheight(owner, 0)
	if err != nil || !ok {
		t.Fatalf("GetNonceAtTopoheight(0): ok=%v err=%v", ok, err)
	}
	if first.PreviousTopoheight != nil {
		t.Fatalf("first version: PreviousTopoheight = %v, want nil", *first.PreviousTopoheight)
	}
}

// TestBalanceAtMaxTopoheightPicksHighestEligibleVersion exercises
// GetBalanceAtMaxTopoheight, the lookup transaction.Build's StateProvider
// relies on to read an account's balance as of its chosen reference
// topoheight (spec §4.2 "Reference").
func TestBalanceAtMaxTopoheightPicksHighestEligibleVersion(t *testing.T) {
	m := NewMemory()
	owner := testKey(4)
	asset := transaction.NativeAsset

	sk, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	pk := sk.PublicKey()

	ctLow := crypto.Encrypt(pk, 10, crypto.ZeroScalar())
	ctHigh := crypto.Encrypt(pk, 20, crypto.ZeroScalar())

	if err := m.SetBalance(owner, asset, 3, ctLow); err != nil {
		t.Fatalf("SetBalance(3): %v", err)
	}
	if err := m.SetBalance(owner, asset, 9, ctHigh); err != nil {
		t.Fatalf("SetBalance(9): %v", err)
	}

	v, ok, err := m.GetBalanceAtMaxTopoheight(owner, asset, 5)
	if err != nil || !ok {
		t.Fatalf("GetBalanceAtMaxTopoheight(5): ok=%v err=%v", ok, err)
	}
	if !v.Value.Equal(ctLow) {
		t.Fatalf("GetBalanceAtMaxTopoheight(5): did not return the topoheight-3 version")
	}

	v, ok, err = m.GetBalanceAtMaxTopoheight(owner, asset, 100)
	if err != nil || !ok {
		t.Fatalf("GetBalanceAtMaxTopoheight(100): ok=%v err=%v", ok, err)
	}
	if !v.Value.Equal(ctHigh) {
		t.Fatalf("GetBalanceAtMaxTopoheight(100): did not return the topoheight-9 version")
	}

	_, ok, err = m.GetBalanceAtMaxTopoheight(owner, asset, 2)
	if err != nil {
		t.Fatalf("GetBalanceAtMaxTopoheight(2): %v", err)
	}
	if ok {
		t.Fatalf("GetBalanceAtMaxTopoheight(2): want not found before any version exists")
	}
}

// TestDeleteVersionedDataAboveTopoheightRewinds exercises the rewind
// primitive (spec §4.5 "Rewind"): truncating above a topoheight must
// drop every version written at or after it, leaving only the history a
// rewind target would have seen.
func TestDeleteVersionedDataAboveTopoheightRewinds(t *testing.T) {
	m := NewMemory()
	owner := testKey(5)

	for topo, nonce := range map[uint64]uint64{0: 0, 1: 1, 2: 2, 3: 3} {
		if err := m.SetNonceAtTopoheight(owner, topo, nonce); err != nil {
			t.Fatalf("SetNonceAtTopoheight(%d): %v", topo, err)
		}
	}

	if err := m.DeleteVersionedDataAboveTopoheight(2); err != nil {
		t.Fatalf("DeleteVersionedDataAboveTopoheight(2): %v", err)
	}

	v, ok, err := m.GetNonceAtTopoheight(owner, 100)
	if err != nil || !ok {
		t.Fatalf("GetNonceAtTopoheight after rewind: ok=%v err=%v", ok, err)
	}
	if v.Value != 1 {
		t.Fatalf("GetNonceAtTopoheight after rewind: got %d, want 1 (topoheight 2 and 3 truncated)", v.Value)
	}
}

// TestAddAssetRejectsDuplicateID confirms the asset registry is
// append-only per ID (spec §3 "Asset").
func TestAddAssetRejectsDuplicateID(t *testing.T) {
	m := NewMemory()
	id := transaction.NativeAsset

	if err := m.AddAsset(AssetMeta{ID: id, Decimals: 8, Name: "Terminos", Ticker: "TOS"}); err != nil {
		t.Fatalf("AddAsset: %v", err)
	}
	if err := m.AddAsset(AssetMeta{ID: id, Decimals: 8, Name: "Terminos", Ticker: "TOS"}); err == nil {
		t.Fatalf("AddAsset: want error re-registering %x, got nil", id)
	}
}

// TestPopBlocksRemovesMostRecentTopoheights exercises the bulk-rewind
// helper consensus.Engine's rewind path uses to drop the tail of the
// total order (spec §4.5 "Rewind").
func TestPopBlocksRemovesMostRecentTopoheights(t *testing.T) {
	m := NewMemory()
	for topo := uint64(0); topo < 5; topo++ {
		var h block.Hash
		h[0] = byte(topo)
		if err := m.SetTopoheight(h, topo); err != nil {
			t.Fatalf("SetTopoheight(%d): %v", topo, err)
		}
	}

	if err := m.PopBlocks(2); err != nil {
		t.Fatalf("PopBlocks(2): %v", err)
	}

	if _, ok, err := m.GetHashAtTopoheight(4); err != nil || ok {
		t.Fatalf("GetHashAtTopoheight(4) after PopBlocks(2): ok=%v err=%v, want not found", ok, err)
	}
	if _, ok, err := m.GetHashAtTopoheight(3); err != nil || ok {
		t.Fatalf("GetHashAtTopoheight(3) after PopBlocks(2): ok=%v err=%v, want not found", ok, err)
	}
	if _, ok, err := m.GetHashAtTopoheight(2); err != nil || !ok {
		t.Fatalf("GetHashAtTopoheight(2) after PopBlocks(2): ok=%v err=%v, want found", ok, err)
	}
}

// TestKeyOfIsStableAcrossPublicKeyInstances confirms AccountKey derives
// from a PublicKey's encoding rather than its pointer identity, the
// invariant the package doc comment on AccountKey calls out.
func TestKeyOfIsStableAcrossPublicKeyInstances(t *testing.T) {
	sk, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}

	a := KeyOf(sk.PublicKey())
	b := KeyOf(sk.PublicKey())
	if a != b {
		t.Fatalf("KeyOf returned different keys for two PublicKey() calls on the same private key")
	}
}
