package consensus

import (
	"testing"

	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/core/transaction"
	"github.com/terminos-network/terminos/internal/crypto"
	"github.com/terminos-network/terminos/internal/storage"
)

func mustHash(b byte) block.Hash {
	var h block.Hash
	h[0] = b
	return h
}

func putBlock(t *testing.T, backend *storage.Memory, h block.Hash, tips []block.Hash, cd uint64) {
	t.Helper()
	if err := backend.SetBlockByHash(h, &block.Block{Header: block.Header{Tips: tips}}); err != nil {
		t.Fatalf("SetBlockByHash: %v", err)
	}
	if err := backend.SetCumulativeDifficulty(h, cd); err != nil {
		t.Fatalf("SetCumulativeDifficulty: %v", err)
	}
}

// TestCumulativeDifficultyOrderHigherCDChildLast reproduces spec §9's
// ordering tie-break: among siblings, the highest cumulative-difficulty
// child is processed (and therefore emitted) last, keeping it nearest
// the tip end of the total order.
func TestCumulativeDifficultyOrderHigherCDChildLast(t *testing.T) {
	backend := storage.NewMemory()
	g := mustHash(1)
	a := mustHash(2)
	b := mustHash(3)
	tip := mustHash(4)

	putBlock(t, backend, g, nil, 0)
	putBlock(t, backend, a, []block.Hash{g}, 10)
	putBlock(t, backend, b, []block.Hash{g}, 20)
	putBlock(t, backend, tip, []block.Hash{a, b}, 30)
	if err := backend.SetTopoheight(g, 0); err != nil {
		t.Fatalf("SetTopoheight: %v", err)
	}

	e := New(backend, [32]byte{}, nil, nil)
	order, err := e.CumulativeDifficultyOrder(tip, g, 0)
	if err != nil {
		t.Fatalf("CumulativeDifficultyOrder: %v", err)
	}
	want := []block.Hash{g, a, b, tip}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order[%d] = %x, want %x (full order %x)", i, order[i], want[i], order)
		}
	}
}

func TestBaseRewardDecreasesWithSupply(t *testing.T) {
	low := BaseReward(0)
	high := BaseReward(halfMaxSupply())
	if high >= low {
		t.Fatalf("BaseReward(half supply) = %d, want < BaseReward(0) = %d", high, low)
	}
	if r := BaseReward(^uint64(0)); r != 0 {
		t.Fatalf("BaseReward(overflow supply) = %d, want 0", r)
	}
}

func halfMaxSupply() uint64 {
	return 9_200_000 * 100_000_000
}

func TestSideBlockSharePercent(t *testing.T) {
	cases := []struct {
		idx  int
		want uint64
	}{{0, 100}, {1, 50}, {2, 25}, {3, 5}, {9, 5}}
	for _, c := range cases {
		if got := SideBlockSharePercent(c.idx); got != c.want {
			t.Errorf("SideBlockSharePercent(%d) = %d, want %d", c.idx, got, c.want)
		}
	}
}

func TestSplitRewardAppliesDevFeeSchedule(t *testing.T) {
	schedule := []DevFeeStep{{Height: 0, Percent: 10}, {Height: 1000, Percent: 5}}
	miner, dev := SplitReward(1000, 500, schedule)
	if dev != 100 || miner != 900 {
		t.Fatalf("SplitReward before step 2 = (%d,%d), want (900,100)", miner, dev)
	}
	miner, dev = SplitReward(1000, 1000, schedule)
	if dev != 50 || miner != 950 {
		t.Fatalf("SplitReward at step 2 = (%d,%d), want (950,50)", miner, dev)
	}
}

func TestNonceCheckerAdmitsFirstRejectsDuplicate(t *testing.T) {
	sk, err := crypto.GeneratePrivateKey()
	if err != nil {
		t.Fatalf("GeneratePrivateKey: %v", err)
	}
	source := sk.PublicKey()

	c := NewNonceChecker()
	tx := &transaction.Transaction{Source: source, Nonce: 5}
	if !c.Admit(tx) {
		t.Fatal("first Admit of a fresh (source, nonce) should succeed")
	}
	if c.Admit(tx) {
		t.Fatal("second Admit of the same (source, nonce) should be rejected")
	}
	other := &transaction.Transaction{Source: source, Nonce: 6}
	if !c.Admit(other) {
		t.Fatal("Admit of a different nonce for the same source should succeed")
	}
}

func TestRewindTruncatesAtCheckpoint(t *testing.T) {
	backend := storage.NewMemory()
	for i := uint64(0); i <= 5; i++ {
		h := mustHash(byte(i + 1))
		putBlock(t, backend, h, nil, i)
		if err := backend.SetTopoheight(h, i); err != nil {
			t.Fatalf("SetTopoheight: %v", err)
		}
	}
	cpHash, ok, err := backend.GetHashAtTopoheight(2)
	if err != nil || !ok {
		t.Fatalf("GetHashAtTopoheight(2): ok=%v err=%v", ok, err)
	}
	e := New(backend, [32]byte{}, nil, []Checkpoint{{Topoheight: 2, Hash: cpHash}})

	newTopo, undone, err := e.Rewind(5, 10)
	if err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	if newTopo != 2 {
		t.Fatalf("newTopoheight = %d, want 2 (clamped at checkpoint)", newTopo)
	}
	if len(undone) != 3 {
		t.Fatalf("undone = %d blocks, want 3 (topoheights 5,4,3)", len(undone))
	}
}
