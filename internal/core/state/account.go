// Package state implements the chain's per-account encrypted balances,
// nonces, multisig registrations, asset registry and energy resources
// (spec §3 "Account", §4.4), all versioned by topoheight on top of the
// storage.Backend contract (spec §6).
package state

import (
	"github.com/terminos-network/terminos/internal/core/transaction"
	"github.com/terminos-network/terminos/internal/crypto"
	"github.com/terminos-network/terminos/internal/params"
	"github.com/terminos-network/terminos/internal/storage"
)

// Account is the read-out view of one account's full per-asset state at
// a given topoheight, assembled from the versioned storage backend
// (spec §3 "Account").
type Account struct {
	Owner     crypto.PublicKey
	Nonce     uint64
	Balances  map[transaction.AssetID]crypto.Ciphertext
	MultiSig  *storage.MultiSigState
	Energy    storage.EnergyState
}

// FreezeUnlockable reports whether record r is eligible for
// unfreezing at atTopoheight (spec §3 "FreezeRecord" invariant ii).
func FreezeUnlockable(r storage.FreezeRecord, atTopoheight uint64) bool {
	return atTopoheight >= r.UnlockTopoheight
}

// NewFreezeRecord builds a freeze record for amount frozen at
// freezeTopoheight for duration, computing unlock_topoheight and
// energy_gained per spec §3: `floor(amount * multiplier(duration))`.
func NewFreezeRecord(amount uint64, duration transaction.FreezeDuration, freezeTopoheight uint64) storage.FreezeRecord {
	num, den := duration.Multiplier()
	energyGained := amount * num / den
	return storage.FreezeRecord{
		Amount:           amount,
		Duration:         duration,
		FreezeTopoheight: freezeTopoheight,
		UnlockTopoheight: freezeTopoheight + duration.Blocks(params.BlockTimeMS),
		EnergyGained:     energyGained,
	}
}
