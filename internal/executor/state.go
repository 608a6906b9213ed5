package executor

import (
	"github.com/terminos-network/terminos/internal/core/state"
	"github.com/terminos-network/terminos/internal/core/transaction"
	"github.com/terminos-network/terminos/internal/crypto"
	"github.com/terminos-network/terminos/internal/storage"
	"github.com/terminos-network/terminos/pkg/contractvm"
)

// VerificationState is the BlockchainVerificationState spec §4.3 wires
// per block: the read/write surface the verifier and applier need over
// chain state. internal/core/state.Store implements it directly, so
// production code never has to build an adapter; tests substitute a
// fake for isolation.
type VerificationState interface {
	EncryptedBalanceAtMax(owner crypto.PublicKey, asset transaction.AssetID, atTopoheight uint64) (crypto.Ciphertext, bool, error)
	SetEncryptedBalance(owner crypto.PublicKey, asset transaction.AssetID, topoheight uint64, balance crypto.Ciphertext) error
	AccountExists(owner crypto.PublicKey, atTopoheight uint64) (bool, error)
	NonceAtTopoheight(owner crypto.PublicKey, atTopoheight uint64) (uint64, error)
	SetNonce(owner crypto.PublicKey, topoheight, nonce uint64) error
	MultiSigAtTopoheight(owner crypto.PublicKey, atTopoheight uint64) (*storage.MultiSigState, error)
	SetMultiSig(owner crypto.PublicKey, topoheight uint64, participants []crypto.PublicKey, threshold uint8) error
	EnergyAtTopoheight(owner crypto.PublicKey, atTopoheight uint64) (storage.EnergyState, error)
	SetEnergy(owner crypto.PublicKey, topoheight uint64, e storage.EnergyState) error
	Asset(id transaction.AssetID) (storage.AssetMeta, error)
	BurnedSupplyAtTopoheight(atTopoheight uint64) (uint64, error)
	RecordBurn(topoheight, amount uint64) error
	Backend() storage.Backend
}

var _ VerificationState = (*state.Store)(nil)

// VM is the contract-execution collaborator used by InvokeContract and
// DeployContract application (spec §4.4, §9 "Contract VM"). Only the
// executor reaches into pkg/contractvm; everything else in this module
// only ever sees its effects (balance credits, nonce bump).
type VM = contractvm.VM
