package consensus

import "github.com/terminos-network/terminos/internal/core/block"

// Rewind walks back n topoheights from currentTopoheight, deleting
// versioned data at each visited topoheight and returning the hashes of
// the undone blocks in descending (most-recent-first) order so the
// caller (the executor) can re-queue their still-valid transactions into
// the mempool (spec §4.5 "Rewind", §8 "Rewind inverse"). A rewind that
// would cross a configured hard checkpoint is truncated at that
// checkpoint instead (spec §13 supplemented feature).
func (e *Engine) Rewind(currentTopoheight, n uint64) (newTopoheight uint64, undoneBlocks []block.Hash, err error) {
	target := uint64(0)
	if n < currentTopoheight {
		target = currentTopoheight - n
	}
	target = e.clampToCheckpoint(currentTopoheight, target)

	for topo := currentTopoheight; topo > target; topo-- {
		h, ok, err := e.backend.GetHashAtTopoheight(topo)
		if err != nil {
			return 0, nil, err
		}
		if !ok {
			continue
		}
		undoneBlocks = append(undoneBlocks, h)
		if err := e.backend.DeleteBlockAtTopoheight(topo); err != nil {
			return 0, nil, err
		}
	}
	if err := e.backend.DeleteVersionedDataAboveTopoheight(target); err != nil {
		return 0, nil, err
	}
	return target, undoneBlocks, nil
}

// clampToCheckpoint raises target to the highest configured checkpoint
// topoheight that lies above target and at or below currentTopoheight,
// so the rewind never crosses a hard checkpoint.
func (e *Engine) clampToCheckpoint(currentTopoheight, target uint64) uint64 {
	for _, cp := range e.checkpoints {
		if cp.Topoheight > target && cp.Topoheight <= currentTopoheight {
			target = cp.Topoheight
		}
	}
	return target
}
