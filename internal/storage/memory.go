package storage

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/core/transaction"
	"github.com/terminos-network/terminos/internal/crypto"
)

// Memory is a Backend implementation entirely resident in process
// memory, grounded on daglabs-btcd's dbaccess transaction-bucket layout
// but collapsed to Go maps guarded by a single RWMutex, since no on-disk
// KV engine was retrieved to wire a persistent backend against.
type Memory struct {
	mu sync.RWMutex

	blocks           map[block.Hash]*block.Block
	topoheightByHash map[block.Hash]uint64
	hashByTopoheight map[uint64]block.Hash
	ordered          map[block.Hash]bool
	tips             []block.Hash
	prunedTopoheight uint64
	cumulativeDiff   map[block.Hash]uint64
	burnedSupply     []Versioned[uint64]

	balances map[AccountKey]map[transaction.AssetID][]Versioned[crypto.Ciphertext]
	nonces   map[AccountKey][]Versioned[uint64]
	multisig map[AccountKey][]Versioned[MultiSigState]
	energy   map[AccountKey][]Versioned[EnergyState]
	assets   map[transaction.AssetID]AssetMeta

	transactions   map[[32]byte][]byte
	txExecutedIn   map[[32]byte]map[block.Hash]bool
	txLinkedBlocks map[[32]byte][]block.Hash

	contractModules map[[32]byte][]byte
	contractCells   map[[32]byte]map[string][]Versioned[[]byte]
}

// NewMemory returns an empty in-memory backend.
func NewMemory() *Memory {
	return &Memory{
		blocks:           map[block.Hash]*block.Block{},
		topoheightByHash: map[block.Hash]uint64{},
		hashByTopoheight: map[uint64]block.Hash{},
		ordered:          map[block.Hash]bool{},
		cumulativeDiff:   map[block.Hash]uint64{},
		balances:         map[AccountKey]map[transaction.AssetID][]Versioned[crypto.Ciphertext]{},
		nonces:           map[AccountKey][]Versioned[uint64]{},
		multisig:         map[AccountKey][]Versioned[MultiSigState]{},
		energy:           map[AccountKey][]Versioned[EnergyState]{},
		assets:           map[transaction.AssetID]AssetMeta{},
		transactions:     map[[32]byte][]byte{},
		txExecutedIn:     map[[32]byte]map[block.Hash]bool{},
		txLinkedBlocks:   map[[32]byte][]block.Hash{},
		contractModules:  map[[32]byte][]byte{},
		contractCells:    map[[32]byte]map[string][]Versioned[[]byte]{},
	}
}

func (m *Memory) GetBlockByHash(h block.Hash) (*block.Block, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.blocks[h]
	if !ok {
		return nil, errors.Errorf("storage: no block %x", h)
	}
	return b, nil
}

func (m *Memory) SetBlockByHash(h block.Hash, b *block.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks[h] = b
	return nil
}

func (m *Memory) GetTopoheightForHash(h block.Hash) (uint64, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	topo, ok := m.topoheightByHash[h]
	return topo, ok, nil
}

func (m *Memory) GetHashAtTopoheight(topoheight uint64) (block.Hash, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	h, ok := m.hashByTopoheight[topoheight]
	return h, ok, nil
}

func (m *Memory) IsBlockTopologicallyOrdered(h block.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.ordered[h], nil
}

// SetTopoheight assigns a block its position in the total order, not
// part of Backend (the interface only exposes read/lookup for it) but
// needed by internal/consensus to populate topoheightByHash/ordered
// together; exported for that caller.
func (m *Memory) SetTopoheight(h block.Hash, topoheight uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.topoheightByHash[h] = topoheight
	m.hashByTopoheight[topoheight] = h
	m.ordered[h] = true
	return nil
}

func (m *Memory) GetTips() ([]block.Hash, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]block.Hash, len(m.tips))
	copy(out, m.tips)
	return out, nil
}

func (m *Memory) StoreTips(tips []block.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tips = append([]block.Hash{}, tips...)
	return nil
}

func (m *Memory) GetPrunedTopoheight() (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.prunedTopoheight, nil
}

func (m *Memory) SetPrunedTopoheight(topoheight uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.prunedTopoheight = topoheight
	return nil
}

func (m *Memory) DeleteVersionedDataAboveTopoheight(topoheight uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, versions := range m.nonces {
		m.nonces[key] = truncateAbove(versions, topoheight)
	}
	for key, byAsset := range m.balances {
		for asset, versions := range byAsset {
			m.balances[key][asset] = truncateAbove(versions, topoheight)
		}
	}
	for key, versions := range m.multisig {
		m.multisig[key] = truncateAbove(versions, topoheight)
	}
	for key, versions := range m.energy {
		m.energy[key] = truncateAbove(versions, topoheight)
	}
	m.burnedSupply = truncateAbove(m.burnedSupply, topoheight)
	return nil
}

func (m *Memory) DeleteVersionedDataBelowTopoheight(topoheight uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, versions := range m.nonces {
		m.nonces[key] = truncateBelow(versions, topoheight)
	}
	for key, byAsset := range m.balances {
		for asset, versions := range byAsset {
			m.balances[key][asset] = truncateBelow(versions, topoheight)
		}
	}
	for key, versions := range m.energy {
		m.energy[key] = truncateBelow(versions, topoheight)
	}
	return nil
}

func (m *Memory) DeleteVersionedDataAtTopoheight(topoheight uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, versions := range m.nonces {
		m.nonces[key] = removeAt(versions, topoheight)
	}
	for key, byAsset := range m.balances {
		for asset, versions := range byAsset {
			m.balances[key][asset] = removeAt(versions, topoheight)
		}
	}
	for key, versions := range m.energy {
		m.energy[key] = removeAt(versions, topoheight)
	}
	return nil
}

func (m *Memory) GetCumulativeDifficulty(h block.Hash) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.cumulativeDiff[h], nil
}

func (m *Memory) SetCumulativeDifficulty(h block.Hash, cd uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cumulativeDiff[h] = cd
	return nil
}

func (m *Memory) GetBurnedSupplyAtTopoheight(topoheight uint64) (Versioned[uint64], bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var best *Versioned[uint64]
	for i := range m.burnedSupply {
		if m.burnedSupply[i].Topoheight <= topoheight {
			v := m.burnedSupply[i]
			if best == nil || v.Topoheight > best.Topoheight {
				best = &v
			}
		}
	}
	if best == nil {
		return Versioned[uint64]{}, false, nil
	}
	return *best, true, nil
}

func (m *Memory) SetBurnedSupplyAtTopoheight(topoheight uint64, total uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var prev *uint64
	if len(m.burnedSupply) > 0 {
		p := m.burnedSupply[len(m.burnedSupply)-1].Topoheight
		prev = &p
	}
	m.burnedSupply = append(m.burnedSupply, Versioned[uint64]{Topoheight: topoheight, Value: total, PreviousTopoheight: prev})
	return nil
}

func (m *Memory) GetBalance(owner AccountKey, asset transaction.AssetID) (Versioned[crypto.Ciphertext], bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.balances[owner][asset]
	if len(versions) == 0 {
		return Versioned[crypto.Ciphertext]{}, false, nil
	}
	return versions[len(versions)-1], true, nil
}

func (m *Memory) SetBalance(owner AccountKey, asset transaction.AssetID, topoheight uint64, balance crypto.Ciphertext) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.balances[owner] == nil {
		m.balances[owner] = map[transaction.AssetID][]Versioned[crypto.Ciphertext]{}
	}
	versions := m.balances[owner][asset]
	var prev *uint64
	if len(versions) > 0 {
		p := versions[len(versions)-1].Topoheight
		prev = &p
	}
	m.balances[owner][asset] = append(versions, Versioned[crypto.Ciphertext]{
		Topoheight: topoheight, Value: balance, PreviousTopoheight: prev,
	})
	return nil
}

func (m *Memory) HasBalance(owner AccountKey, asset transaction.AssetID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.balances[owner][asset]) > 0, nil
}

func (m *Memory) GetBalanceAtExactTopoheight(owner AccountKey, asset transaction.AssetID, topoheight uint64) (Versioned[crypto.Ciphertext], bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, v := range m.balances[owner][asset] {
		if v.Topoheight == topoheight {
			return v, true, nil
		}
	}
	return Versioned[crypto.Ciphertext]{}, false, nil
}

func (m *Memory) GetBalanceAtMaxTopoheight(owner AccountKey, asset transaction.AssetID, maxTopoheight uint64) (Versioned[crypto.Ciphertext], bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.balances[owner][asset]
	var best *Versioned[crypto.Ciphertext]
	for i := range versions {
		if versions[i].Topoheight <= maxTopoheight {
			v := versions[i]
			if best == nil || v.Topoheight > best.Topoheight {
				best = &v
			}
		}
	}
	if best == nil {
		return Versioned[crypto.Ciphertext]{}, false, nil
	}
	return *best, true, nil
}

func (m *Memory) GetNonceAtTopoheight(owner AccountKey, topoheight uint64) (Versioned[uint64], bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.nonces[owner]
	var best *Versioned[uint64]
	for i := range versions {
		if versions[i].Topoheight <= topoheight {
			v := versions[i]
			if best == nil || v.Topoheight > best.Topoheight {
				best = &v
			}
		}
	}
	if best == nil {
		return Versioned[uint64]{}, false, nil
	}
	return *best, true, nil
}

func (m *Memory) SetNonceAtTopoheight(owner AccountKey, topoheight uint64, nonce uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.nonces[owner]
	var prev *uint64
	if len(versions) > 0 {
		p := versions[len(versions)-1].Topoheight
		prev = &p
	}
	m.nonces[owner] = append(versions, Versioned[uint64]{Topoheight: topoheight, Value: nonce, PreviousTopoheight: prev})
	return nil
}

func (m *Memory) GetMultiSigState(owner AccountKey, topoheight uint64) (Versioned[MultiSigState], bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.multisig[owner]
	var best *Versioned[MultiSigState]
	for i := range versions {
		if versions[i].Topoheight <= topoheight {
			v := versions[i]
			if best == nil || v.Topoheight > best.Topoheight {
				best = &v
			}
		}
	}
	if best == nil {
		return Versioned[MultiSigState]{}, false, nil
	}
	return *best, true, nil
}

func (m *Memory) SetMultiSigState(owner AccountKey, topoheight uint64, state MultiSigState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.multisig[owner]
	var prev *uint64
	if len(versions) > 0 {
		p := versions[len(versions)-1].Topoheight
		prev = &p
	}
	m.multisig[owner] = append(versions, Versioned[MultiSigState]{Topoheight: topoheight, Value: state, PreviousTopoheight: prev})
	return nil
}

func (m *Memory) GetEnergyState(owner AccountKey, topoheight uint64) (Versioned[EnergyState], bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.energy[owner]
	var best *Versioned[EnergyState]
	for i := range versions {
		if versions[i].Topoheight <= topoheight {
			v := versions[i]
			if best == nil || v.Topoheight > best.Topoheight {
				best = &v
			}
		}
	}
	if best == nil {
		return Versioned[EnergyState]{}, false, nil
	}
	return *best, true, nil
}

func (m *Memory) SetEnergyState(owner AccountKey, topoheight uint64, state EnergyState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	versions := m.energy[owner]
	var prev *uint64
	if len(versions) > 0 {
		p := versions[len(versions)-1].Topoheight
		prev = &p
	}
	m.energy[owner] = append(versions, Versioned[EnergyState]{Topoheight: topoheight, Value: state, PreviousTopoheight: prev})
	return nil
}

func (m *Memory) AddAsset(meta AssetMeta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.assets[meta.ID]; exists {
		return errors.Errorf("storage: asset %x already registered", meta.ID)
	}
	m.assets[meta.ID] = meta
	return nil
}

func (m *Memory) GetAsset(id transaction.AssetID) (AssetMeta, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	meta, ok := m.assets[id]
	return meta, ok, nil
}

func (m *Memory) SaveTransaction(hash [32]byte, txBytes []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transactions[hash] = txBytes
	return nil
}

func (m *Memory) HasTransaction(hash [32]byte) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.transactions[hash]
	return ok, nil
}

func (m *Memory) GetTransaction(hash [32]byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.transactions[hash]
	return b, ok, nil
}

func (m *Memory) IsTxExecutedInBlock(txHash [32]byte, blockHash block.Hash) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.txExecutedIn[txHash][blockHash], nil
}

func (m *Memory) SetTxExecutedInBlock(txHash [32]byte, blockHash block.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.txExecutedIn[txHash] == nil {
		m.txExecutedIn[txHash] = map[block.Hash]bool{}
	}
	m.txExecutedIn[txHash][blockHash] = true
	return nil
}

func (m *Memory) AddBlockLinkedToTx(txHash [32]byte, blockHash block.Hash) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.txLinkedBlocks[txHash] = append(m.txLinkedBlocks[txHash], blockHash)
	return nil
}

func (m *Memory) DeleteBlockAtTopoheight(topoheight uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	h, ok := m.hashByTopoheight[topoheight]
	if !ok {
		return nil
	}
	delete(m.hashByTopoheight, topoheight)
	delete(m.topoheightByHash, h)
	delete(m.ordered, h)
	delete(m.blocks, h)
	return nil
}

func (m *Memory) PopBlocks(count uint64) error {
	m.mu.Lock()
	tops := make([]uint64, 0, len(m.hashByTopoheight))
	for t := range m.hashByTopoheight {
		tops = append(tops, t)
	}
	sort.Slice(tops, func(i, j int) bool { return tops[i] > tops[j] })
	m.mu.Unlock()

	for i := 0; i < len(tops) && uint64(i) < count; i++ {
		if err := m.DeleteBlockAtTopoheight(tops[i]); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) GetContractCell(contract [32]byte, key []byte, topoheight uint64) (Versioned[[]byte], bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	versions := m.contractCells[contract][string(key)]
	var best *Versioned[[]byte]
	for i := range versions {
		if versions[i].Topoheight <= topoheight {
			v := versions[i]
			if best == nil || v.Topoheight > best.Topoheight {
				best = &v
			}
		}
	}
	if best == nil {
		return Versioned[[]byte]{}, false, nil
	}
	return *best, true, nil
}

func (m *Memory) SetContractCell(contract [32]byte, key []byte, topoheight uint64, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.contractCells[contract] == nil {
		m.contractCells[contract] = map[string][]Versioned[[]byte]{}
	}
	versions := m.contractCells[contract][string(key)]
	var prev *uint64
	if len(versions) > 0 {
		p := versions[len(versions)-1].Topoheight
		prev = &p
	}
	m.contractCells[contract][string(key)] = append(versions, Versioned[[]byte]{Topoheight: topoheight, Value: value, PreviousTopoheight: prev})
	return nil
}

func (m *Memory) GetContractModule(contract [32]byte) ([]byte, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	module, ok := m.contractModules[contract]
	return module, ok, nil
}

func (m *Memory) SetContractModule(contract [32]byte, module []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.contractModules[contract]; exists {
		return errors.Errorf("storage: contract %x already deployed", contract)
	}
	m.contractModules[contract] = module
	return nil
}

func truncateAbove[T any](versions []Versioned[T], topoheight uint64) []Versioned[T] {
	out := versions[:0:0]
	for _, v := range versions {
		if v.Topoheight < topoheight {
			out = append(out, v)
		}
	}
	return out
}

func truncateBelow[T any](versions []Versioned[T], topoheight uint64) []Versioned[T] {
	out := versions[:0:0]
	for _, v := range versions {
		if v.Topoheight >= topoheight {
			out = append(out, v)
		}
	}
	return out
}

func removeAt[T any](versions []Versioned[T], topoheight uint64) []Versioned[T] {
	out := versions[:0:0]
	for _, v := range versions {
		if v.Topoheight != topoheight {
			out = append(out, v)
		}
	}
	return out
}
