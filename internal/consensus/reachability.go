package consensus

import (
	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/params"
)

// Reachability returns the bounded set of ancestors of h, walking the
// tip-parent graph up to depth levels deep (spec §4.5 "Reachability").
// Results are cached by hash alone: depth is always
// 2*params.StableLimit in this engine's call sites, so a single cache
// entry per block is enough.
func (e *Engine) Reachability(h block.Hash, depth int) (map[block.Hash]bool, error) {
	if depth == 2*params.StableLimit {
		if cached, ok := e.reachCache.Get(h); ok {
			return cached, nil
		}
	}

	visited := map[block.Hash]bool{}
	frontier := []block.Hash{h}
	for level := 0; level < depth && len(frontier) > 0; level++ {
		var next []block.Hash
		for _, cur := range frontier {
			hdr, err := e.header(cur)
			if err != nil {
				return nil, err
			}
			for _, parent := range hdr.Tips {
				if !visited[parent] {
					visited[parent] = true
					next = append(next, parent)
				}
			}
		}
		frontier = next
	}

	if depth == 2*params.StableLimit {
		e.reachCache.Add(h, visited)
	}
	return visited, nil
}

// TipsPairwiseNonReachable checks spec §3 Block invariant ii / §8
// "Reachability non-reflexive pairing": no tip of tips is in the bounded
// reachability closure of another tip.
func (e *Engine) TipsPairwiseNonReachable(tips []block.Hash) error {
	if len(tips) > params.TipsLimit {
		return ErrInvalidTipsCount
	}
	reach := make([]map[block.Hash]bool, len(tips))
	for i, t := range tips {
		r, err := e.Reachability(t, 2*params.StableLimit)
		if err != nil {
			return err
		}
		reach[i] = r
	}
	for i := range tips {
		for j := range tips {
			if i == j {
				continue
			}
			if reach[i][tips[j]] {
				return ErrInvalidReachability
			}
		}
	}
	return nil
}

// IsAncestor reports whether candidate lies in descendant's bounded
// reachability closure.
func (e *Engine) IsAncestor(candidate, descendant block.Hash) (bool, error) {
	reach, err := e.Reachability(descendant, 2*params.StableLimit)
	if err != nil {
		return false, err
	}
	return reach[candidate], nil
}
