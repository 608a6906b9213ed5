// Package mempool implements the per-source ordered nonce cache, fee-rate
// scoring and eviction-on-conflict mempool (spec §4.6).
package mempool

import (
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/core/transaction"
	"github.com/terminos-network/terminos/internal/crypto"
	"github.com/terminos-network/terminos/internal/logs"
	"github.com/terminos-network/terminos/internal/params"
	"github.com/terminos-network/terminos/internal/storage"
)

var log = logs.Logger(logs.TagMEMP)

// Entry is one mempool-resident transaction (spec §4.6).
type Entry struct {
	Hash      [32]byte
	Tx        *transaction.Transaction
	Size      int
	Fee       uint64
	FirstSeen int64 // unix milliseconds
}

// sourceCache is the per-source nonce window (spec §4.6 "(min_nonce,
// max_nonce) plus a map nonce -> entry").
type sourceCache struct {
	min     uint64
	max     uint64
	hasMin  bool
	entries map[uint64]*Entry
}

// Verifier is the full-verification collaborator the mempool calls
// before admitting or purging a transaction (spec §4.6 "Passes full
// verification against the current chain-tip state"). internal/executor
// implements it; mempool never imports executor to avoid a cycle.
type Verifier interface {
	VerifyAgainstTip(tx *transaction.Transaction) error
	NonceAtTip(owner crypto.PublicKey) (uint64, error)
}

// Mempool is the admission-controlled transaction pool (spec §4.6).
type Mempool struct {
	mu      sync.RWMutex
	bySrc   map[storage.AccountKey]*sourceCache
	byHash  map[[32]byte]*Entry
	minFee  uint64
}

// New returns an empty mempool.
func New() *Mempool {
	return &Mempool{
		bySrc:  map[storage.AccountKey]*sourceCache{},
		byHash: map[[32]byte]*Entry{},
	}
}

// SetMinFeeRate sets the fee floor purges and admission enforce.
func (mp *Mempool) SetMinFeeRate(fee uint64) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.minFee = fee
}

// Add admits a new transaction, checking in this order: size within
// MaxTransactionSize, full verification through v, not already present,
// and nonce in [cache.min, cache.max+1] (replacing an existing nonce only
// on strictly higher fee). Add itself does not check whether the
// transaction was already executed in an ordered block; only what v's
// verification rejects is kept out on that ground.
func (mp *Mempool) Add(hash [32]byte, tx *transaction.Transaction, size int, nowMS int64, v Verifier) error {
	if size > params.MaxTransactionSize {
		return ErrTxTooBig
	}
	if err := v.VerifyAgainstTip(tx); err != nil {
		return errors.Wrap(ErrVerificationFailed, err.Error())
	}

	mp.mu.Lock()
	defer mp.mu.Unlock()

	if _, exists := mp.byHash[hash]; exists {
		return ErrAlreadyInMempool
	}

	key := storage.KeyOf(tx.Source)
	cache := mp.bySrc[key]
	if cache == nil {
		cache = &sourceCache{entries: map[uint64]*Entry{}}
		mp.bySrc[key] = cache
	}

	if cache.hasMin {
		if tx.Nonce < cache.min || tx.Nonce > cache.max+1 {
			return ErrInvalidNonceWindow
		}
	}

	entry := &Entry{Hash: hash, Tx: tx, Size: size, Fee: tx.Fee, FirstSeen: nowMS}

	if existing, ok := cache.entries[tx.Nonce]; ok {
		if tx.Fee <= existing.Fee {
			return ErrReplacementUnderpriced
		}
		delete(mp.byHash, existing.Hash)
	}

	cache.entries[tx.Nonce] = entry
	mp.byHash[hash] = entry
	if !cache.hasMin || tx.Nonce < cache.min {
		cache.min = tx.Nonce
		cache.hasMin = true
	}
	if tx.Nonce > cache.max {
		cache.max = tx.Nonce
	}
	log.Debugf("mempool: admitted tx %x nonce=%d fee=%d", hash, tx.Nonce, tx.Fee)
	return nil
}

// Has reports whether hash is mempool-resident.
func (mp *Mempool) Has(hash [32]byte) bool {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	_, ok := mp.byHash[hash]
	return ok
}

// Remove drops a transaction by hash, used when it lands in an accepted
// block.
func (mp *Mempool) Remove(hash [32]byte) {
	mp.mu.Lock()
	defer mp.mu.Unlock()
	mp.removeLocked(hash)
}

func (mp *Mempool) removeLocked(hash [32]byte) {
	e, ok := mp.byHash[hash]
	if !ok {
		return
	}
	delete(mp.byHash, hash)
	key := storage.KeyOf(e.Tx.Source)
	cache := mp.bySrc[key]
	if cache == nil {
		return
	}
	delete(cache.entries, e.Tx.Nonce)
	if len(cache.entries) == 0 {
		delete(mp.bySrc, key)
		return
	}
	recomputeBounds(cache)
}

func recomputeBounds(cache *sourceCache) {
	first := true
	for nonce := range cache.entries {
		if first || nonce < cache.min {
			cache.min = nonce
		}
		if first || nonce > cache.max {
			cache.max = nonce
		}
		first = false
	}
}

// PurgeAfterBlock drops transactions whose nonce now lies below the
// source's on-chain nonce, whose fee is below the current minimum, or
// that no longer verify against the new state (spec §4.6 "On new block
// acceptance").
func (mp *Mempool) PurgeAfterBlock(v Verifier) {
	mp.mu.Lock()
	type victim struct {
		hash [32]byte
	}
	var victims []victim
	for _, cache := range mp.bySrc {
		for nonce, e := range cache.entries {
			onChainNonce, err := v.NonceAtTip(e.Tx.Source)
			if err != nil {
				continue
			}
			if nonce < onChainNonce || e.Fee < mp.minFee {
				victims = append(victims, victim{hash: e.Hash})
				continue
			}
			if err := v.VerifyAgainstTip(e.Tx); err != nil {
				victims = append(victims, victim{hash: e.Hash})
			}
		}
	}
	mp.mu.Unlock()

	for _, vi := range victims {
		mp.Remove(vi.hash)
	}
	if len(victims) > 0 {
		log.Debugf("mempool: purged %d transactions after block acceptance", len(victims))
	}
}

// SelectForBlockTemplate builds a block template's transaction list:
// sources round-robin, ascending nonce within a source, stopping at
// maxSize bytes or params.MaxTxCountPerBlock entries. A source is
// skipped entirely once one of its earlier (lower-nonce) transactions
// fails to verify against the template state accumulated so far (spec
// §4.6 "Block-template selection").
func (mp *Mempool) SelectForBlockTemplate(maxSize int, v Verifier) []*Entry {
	mp.mu.RLock()
	keys := make([]storage.AccountKey, 0, len(mp.bySrc))
	sortedEntries := make(map[storage.AccountKey][]*Entry, len(mp.bySrc))
	for key, cache := range mp.bySrc {
		keys = append(keys, key)
		entries := make([]*Entry, 0, len(cache.entries))
		for _, e := range cache.entries {
			entries = append(entries, e)
		}
		sort.Slice(entries, func(i, j int) bool { return entries[i].Tx.Nonce < entries[j].Tx.Nonce })
		sortedEntries[key] = entries
	}
	mp.mu.RUnlock()

	sort.Slice(keys, func(i, j int) bool {
		return string(keys[i][:]) < string(keys[j][:])
	})

	dead := map[storage.AccountKey]bool{}
	idx := map[storage.AccountKey]int{}
	var out []*Entry
	size := 0

	for {
		progressed := false
		for _, key := range keys {
			if dead[key] || len(out) >= params.MaxTxCountPerBlock {
				continue
			}
			entries := sortedEntries[key]
			i := idx[key]
			if i >= len(entries) {
				continue
			}
			e := entries[i]
			if size+e.Size > maxSize {
				dead[key] = true
				continue
			}
			if err := v.VerifyAgainstTip(e.Tx); err != nil {
				dead[key] = true
				continue
			}
			out = append(out, e)
			size += e.Size
			idx[key] = i + 1
			progressed = true
		}
		if !progressed || len(out) >= params.MaxTxCountPerBlock {
			break
		}
	}
	return out
}

// Len returns the total number of mempool-resident transactions.
func (mp *Mempool) Len() int {
	mp.mu.RLock()
	defer mp.mu.RUnlock()
	return len(mp.byHash)
}
