// Package consensus implements the BlockDAG engine (spec §4.5): tip
// reachability, common-base discovery, cumulative-difficulty ordering,
// sync-block classification, block-reward shaping, and rewinds.
package consensus

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/terminos-network/terminos/internal/params"
)

// newCache allocates one of the engine's four LRU caches (reachability,
// common base, tip work score, full order), each capped at
// params.DAGCacheCapacity (spec §9 "Do not hold the cache mutex across
// the underlying computation": callers here only ever call Get/Add,
// never compute while holding the cache's internal lock).
func newCache[K comparable, V any]() *lru.Cache[K, V] {
	c, err := lru.New[K, V](params.DAGCacheCapacity)
	if err != nil {
		// Only returns an error for a non-positive size, which
		// params.DAGCacheCapacity never is.
		panic(err)
	}
	return c
}
