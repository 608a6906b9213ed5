package consensus

import (
	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/params"
)

// IsSyncBlock classifies B as a sync block at chain height H (spec §4.5
// "Sync-block classification"). Genesis is always a sync block.
func (e *Engine) IsSyncBlock(b block.Hash, chainHeight uint64) (bool, error) {
	hdr, err := e.header(b)
	if err != nil {
		return false, err
	}
	if hdr.Height == 0 {
		return true, nil
	}

	if hdr.Height+params.StableLimit > chainHeight {
		return false, nil
	}
	topo, ordered, err := e.backend.GetTopoheightForHash(b)
	if err != nil {
		return false, err
	}
	if !ordered {
		return false, nil
	}

	pruned, err := e.backend.GetPrunedTopoheight()
	if err != nil {
		return false, err
	}
	if topo == pruned {
		return true, nil
	}

	// No other topologically-ordered block may share this height.
	for candidateTopo := int64(topo) - int64(params.StableLimit); candidateTopo <= int64(topo)+int64(params.StableLimit); candidateTopo++ {
		if candidateTopo < 0 || uint64(candidateTopo) == topo {
			continue
		}
		h, ok, err := e.backend.GetHashAtTopoheight(uint64(candidateTopo))
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		otherHdr, err := e.header(h)
		if err != nil {
			return false, err
		}
		if otherHdr.Height == hdr.Height {
			return false, nil
		}
	}

	myCD, err := e.cumulativeDifficulty(b)
	if err != nil {
		return false, err
	}
	if hdr.Height < params.StableLimit {
		return true, nil
	}
	for windowHeight := hdr.Height - params.StableLimit; windowHeight < hdr.Height; windowHeight++ {
		h, ok, err := e.hashAtHeightOrdered(windowHeight)
		if err != nil {
			return false, err
		}
		if !ok {
			continue
		}
		cd, err := e.cumulativeDifficulty(h)
		if err != nil {
			return false, err
		}
		if cd >= myCD {
			return false, nil
		}
	}
	return true, nil
}

// hashAtHeightOrdered scans nearby topoheights for the unique ordered
// block at the given height. Storage indexes blocks by topoheight, not
// height, so this walks a small window around the expectation that
// height ≈ topoheight minus the DAG's width (bounded by TipsLimit and
// STABLE_LIMIT in practice).
func (e *Engine) hashAtHeightOrdered(height uint64) (block.Hash, bool, error) {
	lo := int64(height) - int64(params.StableLimit)
	if lo < 0 {
		lo = 0
	}
	hi := height + params.StableLimit
	for topo := uint64(lo); topo <= hi; topo++ {
		h, ok, err := e.backend.GetHashAtTopoheight(topo)
		if err != nil {
			return block.Hash{}, false, err
		}
		if !ok {
			continue
		}
		hdr, err := e.header(h)
		if err != nil {
			return block.Hash{}, false, err
		}
		if hdr.Height == height {
			return h, true, nil
		}
	}
	return block.Hash{}, false, nil
}
