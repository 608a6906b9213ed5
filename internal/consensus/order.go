package consensus

import (
	"sort"
	"strconv"

	"github.com/terminos-network/terminos/internal/core/block"
)

// CumulativeDifficultyOrder computes the new canonical total order from
// base forward to tip (spec §4.5 "Cumulative-difficulty ordering"):
//
//  1. Empty ordered set O, stack seeded with tip.
//  2. Pop H. Emit H into O if H == base, H has no tips, or H was
//     already marked for revisit (its children are fully processed).
//     Otherwise mark H for revisit, push H back, then push every tip of
//     H whose topoheight is unknown or >= baseTopo. Those children are
//     pushed highest-cumulative-difficulty first (deepest in this
//     local batch) down to lowest-CD last (topmost, popped first), so
//     that among siblings the highest-CD child is the one popped and
//     processed last, it ends up extending O's tail, i.e. the main
//     chain (spec §9's tie-break: "higher last ⇒ extends the main
//     chain").
//
// Cached by (tip, base, base height).
func (e *Engine) CumulativeDifficultyOrder(tip, base block.Hash, baseHeight uint64) ([]block.Hash, error) {
	key := combinedTipKey([]block.Hash{tip, base}) + strconv.FormatUint(baseHeight, 10)
	if cached, ok := e.orderCache.Get(key); ok {
		return cached, nil
	}

	baseTopo, _, err := e.backend.GetTopoheightForHash(base)
	if err != nil {
		return nil, err
	}

	type frame struct {
		hash     block.Hash
		revisit  bool
	}
	stack := []frame{{hash: tip}}
	emitted := map[block.Hash]bool{}
	var order []block.Hash

	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if emitted[top.hash] {
			continue
		}

		hdr, err := e.header(top.hash)
		if err != nil {
			return nil, err
		}

		if top.hash == base || len(hdr.Tips) == 0 || top.revisit {
			order = append(order, top.hash)
			emitted[top.hash] = true
			continue
		}

		// Re-push H for its post-visit emission once its children are
		// processed.
		stack = append(stack, frame{hash: top.hash, revisit: true})

		type child struct {
			hash block.Hash
			cd   uint64
		}
		var children []child
		for _, t := range hdr.Tips {
			topo, ok, err := e.backend.GetTopoheightForHash(t)
			if err != nil {
				return nil, err
			}
			if ok && topo < baseTopo {
				continue
			}
			cd, err := e.cumulativeDifficulty(t)
			if err != nil {
				return nil, err
			}
			children = append(children, child{hash: t, cd: cd})
		}
		sort.SliceStable(children, func(i, j int) bool { return children[i].cd > children[j].cd })
		for _, c := range children {
			stack = append(stack, frame{hash: c.hash})
		}
	}

	e.orderCache.Add(key, order)
	return order, nil
}
