package state

import (
	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/core/transaction"
	"github.com/terminos-network/terminos/internal/crypto"
	"github.com/terminos-network/terminos/internal/logs"
	"github.com/terminos-network/terminos/internal/storage"
)

var log = logs.Logger(logs.TagSTAT)

// Store is the node-side chain-state accessor layered over a
// storage.Backend (spec §3, §4.4). It never holds plaintext balances:
// everything here deals in ciphertexts, commitments and versioned
// metadata, the way a real node (as opposed to a wallet) sees the chain.
type Store struct {
	backend storage.Backend
}

// New wraps a storage backend.
func New(backend storage.Backend) *Store {
	return &Store{backend: backend}
}

// Backend exposes the wrapped storage.Backend for callers (executor,
// consensus) that need operations Store doesn't wrap directly.
func (s *Store) Backend() storage.Backend { return s.backend }

// EncryptedBalanceAtMax returns the latest encrypted balance known at or
// before atTopoheight, or the zero ciphertext if the account never held
// this asset (spec §3 "Account" invariant iii, lazily-created accounts).
func (s *Store) EncryptedBalanceAtMax(owner crypto.PublicKey, asset transaction.AssetID, atTopoheight uint64) (crypto.Ciphertext, bool, error) {
	v, ok, err := s.backend.GetBalanceAtMaxTopoheight(storage.KeyOf(owner), asset, atTopoheight)
	if err != nil {
		return crypto.Ciphertext{}, false, errors.Wrap(err, "state: reading balance")
	}
	if !ok {
		return crypto.ZeroCiphertext(), false, nil
	}
	return v.Value, true, nil
}

// SetEncryptedBalance stores a new balance version for owner/asset at
// topoheight, extending the per-key versioned linked list (spec §3
// "Versioned datum").
func (s *Store) SetEncryptedBalance(owner crypto.PublicKey, asset transaction.AssetID, topoheight uint64, balance crypto.Ciphertext) error {
	return s.backend.SetBalance(storage.KeyOf(owner), asset, topoheight, balance)
}

// AccountExists reports whether owner has a native-asset balance version
// at or before atTopoheight, i.e. whether the account is registered at
// all, used by the builder's account-creation-fee check and by
// the executor's credit path (spec §3 "Lifecycle", §4.4).
func (s *Store) AccountExists(owner crypto.PublicKey, atTopoheight uint64) (bool, error) {
	_, ok, err := s.backend.GetBalanceAtMaxTopoheight(storage.KeyOf(owner), transaction.NativeAsset, atTopoheight)
	if err != nil {
		return false, errors.Wrap(err, "state: checking account existence")
	}
	return ok, nil
}

// NonceAtTopoheight returns owner's nonce as of atTopoheight, or 0 for an
// account that has never transacted.
func (s *Store) NonceAtTopoheight(owner crypto.PublicKey, atTopoheight uint64) (uint64, error) {
	v, ok, err := s.backend.GetNonceAtTopoheight(storage.KeyOf(owner), atTopoheight)
	if err != nil {
		return 0, errors.Wrap(err, "state: reading nonce")
	}
	if !ok {
		return 0, nil
	}
	return v.Value, nil
}

// SetNonce records owner's nonce as of topoheight (spec §3 invariant i:
// "the account's nonce becomes previous+1 on execution").
func (s *Store) SetNonce(owner crypto.PublicKey, topoheight, nonce uint64) error {
	return s.backend.SetNonceAtTopoheight(storage.KeyOf(owner), topoheight, nonce)
}

// MultiSigAtTopoheight returns owner's multisig registration as of
// atTopoheight, if any.
func (s *Store) MultiSigAtTopoheight(owner crypto.PublicKey, atTopoheight uint64) (*storage.MultiSigState, error) {
	v, ok, err := s.backend.GetMultiSigState(storage.KeyOf(owner), atTopoheight)
	if err != nil {
		return nil, errors.Wrap(err, "state: reading multisig state")
	}
	if !ok || len(v.Value.Participants) == 0 {
		return nil, nil
	}
	return &v.Value, nil
}

// SetMultiSig installs or clears (empty participants) owner's multisig
// registration at topoheight (spec §4.4 "For MultiSig payload").
func (s *Store) SetMultiSig(owner crypto.PublicKey, topoheight uint64, participants []crypto.PublicKey, threshold uint8) error {
	if len(participants) > 0 && threshold == 0 {
		return ErrMultiSigThresholdZero
	}
	return s.backend.SetMultiSigState(storage.KeyOf(owner), topoheight, storage.MultiSigState{
		Participants: participants,
		Threshold:    threshold,
	})
}

// EnergyAtTopoheight returns owner's energy resource as of atTopoheight
// (zero value for an account that never froze anything).
func (s *Store) EnergyAtTopoheight(owner crypto.PublicKey, atTopoheight uint64) (storage.EnergyState, error) {
	v, ok, err := s.backend.GetEnergyState(storage.KeyOf(owner), atTopoheight)
	if err != nil {
		return storage.EnergyState{}, errors.Wrap(err, "state: reading energy state")
	}
	if !ok {
		return storage.EnergyState{}, nil
	}
	return v.Value, nil
}

// SetEnergy records owner's energy resource as of topoheight.
func (s *Store) SetEnergy(owner crypto.PublicKey, topoheight uint64, e storage.EnergyState) error {
	return s.backend.SetEnergyState(storage.KeyOf(owner), topoheight, e)
}

// RegisterAsset adds a new entry to the asset registry (spec §3
// "Asset"). The native asset is registered once, at topoheight 0, by
// the caller that bootstraps genesis state (see RegisterNativeAsset).
func (s *Store) RegisterAsset(meta storage.AssetMeta) error {
	if _, ok, _ := s.backend.GetAsset(meta.ID); ok {
		return ErrAssetAlreadyRegistered
	}
	return s.backend.AddAsset(meta)
}

// RegisterNativeAsset registers the fixed native asset at topoheight 0,
// idempotently (spec §3 "the native asset is fixed and always present at
// topoheight 0").
func (s *Store) RegisterNativeAsset(decimals uint8, name, ticker string, maxSupply *uint64) error {
	if _, ok, err := s.backend.GetAsset(transaction.NativeAsset); err != nil {
		return errors.Wrap(err, "state: checking native asset")
	} else if ok {
		return nil
	}
	if err := s.backend.AddAsset(storage.AssetMeta{
		ID:           transaction.NativeAsset,
		Decimals:     decimals,
		Name:         name,
		Ticker:       ticker,
		MaxSupply:    maxSupply,
		RegisteredAt: 0,
	}); err != nil {
		return err
	}
	log.Infof("registered native asset %s (%s)", name, ticker)
	return nil
}

// BurnedSupplyAtTopoheight returns the running total of every Burn
// payload and contract-deploy burn applied at or before atTopoheight
// (0 before the first one). Grounded on
// _examples/original_source/daemon/src/core/blockchain.rs's
// get_burned_supply_at_topo_height (spec §13 supplement).
func (s *Store) BurnedSupplyAtTopoheight(atTopoheight uint64) (uint64, error) {
	v, ok, err := s.backend.GetBurnedSupplyAtTopoheight(atTopoheight)
	if err != nil {
		return 0, errors.Wrap(err, "state: reading burned supply")
	}
	if !ok {
		return 0, nil
	}
	return v.Value, nil
}

// RecordBurn adds amount to the running burned-supply total and stores
// the new version at topoheight.
func (s *Store) RecordBurn(topoheight, amount uint64) error {
	if amount == 0 {
		return nil
	}
	total, err := s.BurnedSupplyAtTopoheight(topoheight)
	if err != nil {
		return err
	}
	return s.backend.SetBurnedSupplyAtTopoheight(topoheight, total+amount)
}

// Asset returns the registry entry for id.
func (s *Store) Asset(id transaction.AssetID) (storage.AssetMeta, error) {
	meta, ok, err := s.backend.GetAsset(id)
	if err != nil {
		return storage.AssetMeta{}, errors.Wrap(err, "state: reading asset")
	}
	if !ok {
		return storage.AssetMeta{}, ErrAssetNotFound
	}
	return meta, nil
}
