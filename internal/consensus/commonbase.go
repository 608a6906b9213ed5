package consensus

import (
	"bytes"

	"github.com/terminos-network/terminos/internal/core/block"
)

// FindCommonBase computes the common base for a tip set (spec §4.5
// "Common base for a tip set"): for each tip, walk ancestors until a
// sync block is reached, collecting base candidates, then take the
// lowest-height candidate (most conservative), tie-broken by
// lexicographically smallest hash for determinism (spec §9 Open
// Questions: the source's bases.pop() is sort-order-dependent; this
// engine picks the minimum explicitly rather than relying on pop order).
// Cached by combined-tip hash.
func (e *Engine) FindCommonBase(tips []block.Hash, chainHeight uint64) (block.Hash, error) {
	key := combinedTipKey(tips)
	if cached, ok := e.baseCache.Get(key); ok {
		return cached, nil
	}

	var candidates []block.Hash
	for _, tip := range tips {
		base, err := e.walkToSyncBlock(tip, chainHeight)
		if err != nil {
			return block.Hash{}, err
		}
		candidates = append(candidates, base)
	}
	if len(candidates) == 0 {
		return block.Hash{}, ErrNoCommonBase
	}

	best := candidates[0]
	bestHeight, err := e.heightOf(best)
	if err != nil {
		return block.Hash{}, err
	}
	for _, c := range candidates[1:] {
		h, err := e.heightOf(c)
		if err != nil {
			return block.Hash{}, err
		}
		if h < bestHeight || (h == bestHeight && bytes.Compare(c[:], best[:]) < 0) {
			best = c
			bestHeight = h
		}
	}

	e.baseCache.Add(key, best)
	return best, nil
}

func (e *Engine) heightOf(h block.Hash) (uint64, error) {
	hdr, err := e.header(h)
	if err != nil {
		return 0, err
	}
	return hdr.Height, nil
}

// walkToSyncBlock follows selected ancestry (the first tip of each
// header, i.e. the heaviest-known parent) from start until a sync block
// is found.
func (e *Engine) walkToSyncBlock(start block.Hash, chainHeight uint64) (block.Hash, error) {
	current := start
	for {
		isSync, err := e.IsSyncBlock(current, chainHeight)
		if err != nil {
			return block.Hash{}, err
		}
		if isSync {
			return current, nil
		}
		hdr, err := e.header(current)
		if err != nil {
			return block.Hash{}, err
		}
		if len(hdr.Tips) == 0 {
			return current, nil // genesis
		}
		current = hdr.Tips[0]
	}
}
