package p2p

import (
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/terminos-network/terminos/internal/params"
)

// Direction records which way an object (block or transaction hash) has
// travelled across a connection (spec §4.7 "Propagation").
type Direction uint8

const (
	DirectionOut Direction = iota
	DirectionIn
	DirectionBoth
)

// propagationEntry is one LRU-cached hash's direction and timestamp,
// plus the is_common flag that lets a predicted common peer re-send an
// object exactly once without being treated as a protocol violation
// (spec §4.7 "A common peer may still re-send once").
type propagationEntry struct {
	direction Direction
	isCommon  bool
	timestamp int64
}

// propagationCache is a peer's bounded, direction-tracking view of one
// object kind (blocks or transactions). It is safe for concurrent use;
// spec §5 calls for "one per peer for its caches".
type propagationCache struct {
	mu    sync.Mutex
	cache *lru.Cache[[32]byte, *propagationEntry]
}

func newPropagationCache(capacity int) *propagationCache {
	c, _ := lru.New[[32]byte, *propagationEntry](capacity)
	return &propagationCache{cache: c}
}

// MarkOut records that we sent hash to the peer.
func (c *propagationCache) MarkOut(hash [32]byte, nowMS int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mergeLocked(hash, DirectionOut, false, nowMS)
}

// MarkIn records that the peer sent us hash. Returns true if this is the
// first time we have seen hash from this peer (i.e. propagation to this
// peer is unnecessary since they already have it).
func (c *propagationCache) MarkIn(hash [32]byte, nowMS int64) (firstTime bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	existing, ok := c.cache.Get(hash)
	if ok && existing.isCommon {
		// Predicted-common re-send: clear the flag instead of treating
		// this as a duplicate (spec §4.7).
		existing.isCommon = false
		existing.timestamp = nowMS
		return false
	}
	firstTime = !ok
	c.mergeLocked(hash, DirectionIn, false, nowMS)
	return firstTime
}

// MarkPredictedCommon optimistically records hash as already delivered
// by a common peer (spec §4.7 "optimistically adds the object to the
// caches of predicted common peers").
func (c *propagationCache) MarkPredictedCommon(hash [32]byte, nowMS int64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mergeLocked(hash, DirectionIn, true, nowMS)
}

// HasIn reports whether the peer is already known to have hash (marked
// In or Both), the gate a broadcaster uses to skip this peer (spec §4.7
// "Broadcast skips any peer that already has the object marked In").
func (c *propagationCache) HasIn(hash [32]byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.cache.Get(hash)
	return ok && (e.direction == DirectionIn || e.direction == DirectionBoth)
}

func (c *propagationCache) mergeLocked(hash [32]byte, dir Direction, isCommon bool, nowMS int64) {
	if existing, ok := c.cache.Get(hash); ok {
		if existing.direction != dir {
			existing.direction = DirectionBoth
		}
		existing.timestamp = nowMS
		if isCommon {
			existing.isCommon = true
		}
		return
	}
	c.cache.Add(hash, &propagationEntry{direction: dir, isCommon: isCommon, timestamp: nowMS})
}

// newBlockCache and newTxCache size their LRUs from params, matching
// spec §5's "Transaction caches in peers bound growth".
func newBlockCache() *propagationCache { return newPropagationCache(params.NotifyMaxLen) }
func newTxCache() *propagationCache    { return newPropagationCache(params.NotifyMaxLen) }
