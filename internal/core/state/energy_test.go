package state

import (
	"testing"

	"github.com/terminos-network/terminos/internal/core/transaction"
	"github.com/terminos-network/terminos/internal/storage"
)

// TestFreezeUnfreezeCycle reproduces spec §8 scenario 5: Alice freezes
// 200 TOS for 7 days at topoheight 1000, then unfreezes 100 TOS once
// unlockable. Expected: frozen_tos = 100, total_energy = 220 - 110 = 110.
func TestFreezeUnfreezeCycle(t *testing.T) {
	record := NewFreezeRecord(200, transaction.Freeze7Days, 1000)
	if record.EnergyGained != 220 {
		t.Fatalf("energy gained = %d, want 220", record.EnergyGained)
	}

	e := Freeze(storage.EnergyState{}, record)
	if e.FrozenAmount != 200 || e.TotalEnergy != 220 {
		t.Fatalf("after freeze: frozen=%d energy=%d", e.FrozenAmount, e.TotalEnergy)
	}

	unlockAt := record.UnlockTopoheight
	e, err := Unfreeze(e, 100, unlockAt)
	if err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if e.FrozenAmount != 100 {
		t.Fatalf("frozen_tos = %d, want 100", e.FrozenAmount)
	}
	if e.TotalEnergy != 110 {
		t.Fatalf("total_energy = %d, want 110", e.TotalEnergy)
	}
	if len(e.FreezeRecords) != 1 || e.FreezeRecords[0].Amount != 100 {
		t.Fatalf("expected one surviving split record of amount 100, got %+v", e.FreezeRecords)
	}
}

func TestUnfreezeRejectsLockedAmount(t *testing.T) {
	record := NewFreezeRecord(50, transaction.Freeze14Days, 500)
	e := Freeze(storage.EnergyState{}, record)
	if _, err := Unfreeze(e, 50, record.UnlockTopoheight-1); err != ErrInsufficientUnlocked {
		t.Fatalf("expected ErrInsufficientUnlocked, got %v", err)
	}
}

func TestUnfreezeOldestFirst(t *testing.T) {
	r1 := NewFreezeRecord(100, transaction.Freeze3Days, 0)
	r2 := NewFreezeRecord(100, transaction.Freeze3Days, 10)
	e := Freeze(storage.EnergyState{}, r1)
	e = Freeze(e, r2)

	at := r2.UnlockTopoheight + 1
	e, err := Unfreeze(e, 150, at)
	if err != nil {
		t.Fatalf("unfreeze: %v", err)
	}
	if len(e.FreezeRecords) != 1 || e.FreezeRecords[0].FreezeTopoheight != 10 {
		t.Fatalf("expected only the second (later) record to survive, got %+v", e.FreezeRecords)
	}
	if e.FreezeRecords[0].Amount != 50 {
		t.Fatalf("surviving record amount = %d, want 50", e.FreezeRecords[0].Amount)
	}
}
