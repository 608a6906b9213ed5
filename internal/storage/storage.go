// Package storage defines the persistence collaborator's contract (spec
// §6 "Storage contract") and ships an in-memory reference implementation
// used by tests and by a standalone node running with
// force_db_flush=false. A production backend (e.g. LevelDB/Pebble, the
// way daglabs-btcd's database/ffldb backs dbaccess) implements the same
// Backend interface; this package never assumes which one is wired in.
package storage

import (
	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/core/transaction"
	"github.com/terminos-network/terminos/internal/crypto"
)

// AccountKey is a fixed-size map/storage key derived from a public key's
// canonical encoding. crypto.PublicKey itself must never be used as a
// map key: it wraps a *ristretto255.Element, and Go map equality on a
// struct containing a pointer compares pointer identity, not the
// encoded point; two PublicKey values for the same key but decoded
// independently would silently fail to compare equal.
type AccountKey [32]byte

// KeyOf derives the storage key for a public key.
func KeyOf(pk crypto.PublicKey) AccountKey {
	var k AccountKey
	copy(k[:], pk.Encode())
	return k
}

// Versioned wraps any stored datum with the topoheight it was written at
// and the topoheight of the previous version in its per-key chain
// (spec §3 "Versioned datum"). PreviousTopoheight is nil for the first
// version ever written under a key.
type Versioned[T any] struct {
	Topoheight         uint64
	Value              T
	PreviousTopoheight *uint64
}

// MultiSigState is the versioned payload of get/set_multisig_state.
type MultiSigState struct {
	Participants []crypto.PublicKey
	Threshold    uint8
}

// FreezeRecord is one native-coin freeze operation backing an account's
// energy resource (spec §3 "FreezeRecord").
type FreezeRecord struct {
	Amount           uint64
	Duration         transaction.FreezeDuration
	FreezeTopoheight uint64
	UnlockTopoheight uint64
	EnergyGained     uint64
}

// EnergyState is the versioned payload of get/set_energy_state: an
// account's total/used energy and its open freeze records (spec §3
// "Account", "FreezeRecord").
type EnergyState struct {
	TotalEnergy   uint64
	UsedEnergy    uint64
	FrozenAmount  uint64
	FreezeRecords []FreezeRecord
}

// AssetMeta is a registry entry (spec §3 "Asset").
type AssetMeta struct {
	ID            transaction.AssetID
	Decimals      uint8
	Name          string
	Ticker        string
	MaxSupply     *uint64
	Owner         *crypto.PublicKey
	RegisteredAt  uint64
	CurrentSupply uint64
}

// Backend is the full persistence contract (spec §6). Every versioned
// getter returns the stored value plus the topoheight of its
// predecessor, so callers can walk the chain backward without a second
// round-trip.
type Backend interface {
	// Blocks and DAG bookkeeping.
	GetBlockByHash(h block.Hash) (*block.Block, error)
	SetBlockByHash(h block.Hash, b *block.Block) error
	GetTopoheightForHash(h block.Hash) (uint64, bool, error)
	GetHashAtTopoheight(topoheight uint64) (block.Hash, bool, error)
	IsBlockTopologicallyOrdered(h block.Hash) (bool, error)
	GetTips() ([]block.Hash, error)
	StoreTips(tips []block.Hash) error
	GetPrunedTopoheight() (uint64, error)
	SetPrunedTopoheight(topoheight uint64) error
	DeleteVersionedDataAboveTopoheight(topoheight uint64) error
	DeleteVersionedDataBelowTopoheight(topoheight uint64) error
	DeleteVersionedDataAtTopoheight(topoheight uint64) error
	GetCumulativeDifficulty(h block.Hash) (uint64, error)
	SetCumulativeDifficulty(h block.Hash, cd uint64) error

	// Burned supply: a running, versioned tally of every Burn payload and
	// contract-deploy burn applied so far (spec §3 "Versioned datum"
	// includes "supply"; grounded on
	// _examples/original_source/daemon/src/core/blockchain.rs's
	// get_burned_supply/get_burned_supply_at_topo_height, which spec.md's
	// distillation dropped — see SPEC_FULL.md §13).
	GetBurnedSupplyAtTopoheight(topoheight uint64) (Versioned[uint64], bool, error)
	SetBurnedSupplyAtTopoheight(topoheight uint64, total uint64) error

	// Balances (versioned per account per asset).
	GetBalance(owner AccountKey, asset transaction.AssetID) (Versioned[crypto.Ciphertext], bool, error)
	SetBalance(owner AccountKey, asset transaction.AssetID, topoheight uint64, balance crypto.Ciphertext) error
	HasBalance(owner AccountKey, asset transaction.AssetID) (bool, error)
	GetBalanceAtExactTopoheight(owner AccountKey, asset transaction.AssetID, topoheight uint64) (Versioned[crypto.Ciphertext], bool, error)
	GetBalanceAtMaxTopoheight(owner AccountKey, asset transaction.AssetID, maxTopoheight uint64) (Versioned[crypto.Ciphertext], bool, error)

	// Nonces (versioned per account).
	GetNonceAtTopoheight(owner AccountKey, topoheight uint64) (Versioned[uint64], bool, error)
	SetNonceAtTopoheight(owner AccountKey, topoheight uint64, nonce uint64) error

	// MultiSig registration (versioned per account).
	GetMultiSigState(owner AccountKey, topoheight uint64) (Versioned[MultiSigState], bool, error)
	SetMultiSigState(owner AccountKey, topoheight uint64, state MultiSigState) error

	// Energy resource (versioned per account; spec §3 "FreezeRecord").
	GetEnergyState(owner AccountKey, topoheight uint64) (Versioned[EnergyState], bool, error)
	SetEnergyState(owner AccountKey, topoheight uint64, state EnergyState) error

	// Asset registry.
	AddAsset(meta AssetMeta) error
	GetAsset(id transaction.AssetID) (AssetMeta, bool, error)

	// Transactions.
	SaveTransaction(hash [32]byte, txBytes []byte) error
	HasTransaction(hash [32]byte) (bool, error)
	GetTransaction(hash [32]byte) ([]byte, bool, error)
	IsTxExecutedInBlock(txHash [32]byte, blockHash block.Hash) (bool, error)
	SetTxExecutedInBlock(txHash [32]byte, blockHash block.Hash) error
	AddBlockLinkedToTx(txHash [32]byte, blockHash block.Hash) error

	// Rewind support.
	DeleteBlockAtTopoheight(topoheight uint64) error
	PopBlocks(count uint64) error

	// Contract storage.
	GetContractCell(contract [32]byte, key []byte, topoheight uint64) (Versioned[[]byte], bool, error)
	SetContractCell(contract [32]byte, key []byte, topoheight uint64, value []byte) error
	GetContractModule(contract [32]byte) ([]byte, bool, error)
	SetContractModule(contract [32]byte, module []byte) error
}
