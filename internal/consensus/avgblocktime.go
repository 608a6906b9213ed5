package consensus

import (
	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/params"
)

// AverageBlockTime estimates the mean time between blocks over the last
// (up to) 50 topoheights below topoheight, a read-only diagnostic stat
// spec.md's distillation dropped.
//
// Grounded on
// _examples/original_source/daemon/src/core/blockchain.rs's
// get_average_block_time (spec §13 supplement): walk back from
// topoheight to topoheight-count, compare the two blocks' timestamps,
// divide by count. Two differences from that source, both noted
// because the original's own arithmetic doesn't match its stated intent
// (comment: "check that we are not under the pruned topoheight"): (1)
// the original reassigns count directly to pruned_topoheight rather
// than to topoheight-pruned_topoheight, which would make the window
// length itself equal to an absolute topoheight once pruning has
// happened at all — this implementation clamps the window length
// instead, which is what the comment describes; (2) the original
// divides by count even when count is 0 (the topoheight<=1 guard
// prevents that only when pruning is absent); this implementation
// returns the target block time for count == 0 instead of dividing.
func (e *Engine) AverageBlockTime(topoheight uint64) (uint64, error) {
	if topoheight <= 1 {
		return params.BlockTimeMS, nil
	}

	count := topoheight - 1
	if count > 50 {
		count = 50
	}

	pruned, err := e.backend.GetPrunedTopoheight()
	if err != nil {
		return 0, errors.Wrap(err, "consensus: reading pruned topoheight")
	}
	if pruned > 0 && topoheight-count < pruned {
		count = topoheight - pruned
	}
	if count == 0 {
		return params.BlockTimeMS, nil
	}

	nowTS, err := e.timestampAtTopoheight(topoheight)
	if err != nil {
		return 0, err
	}
	pastTS, err := e.timestampAtTopoheight(topoheight - count)
	if err != nil {
		return 0, err
	}
	if nowTS <= pastTS {
		return 0, nil
	}
	return (nowTS - pastTS) / count, nil
}

func (e *Engine) timestampAtTopoheight(topoheight uint64) (uint64, error) {
	hash, ok, err := e.backend.GetHashAtTopoheight(topoheight)
	if err != nil {
		return 0, errors.Wrap(err, "consensus: reading hash at topoheight")
	}
	if !ok {
		return 0, errors.Wrapf(ErrUnknownBlock, "no block at topoheight %d", topoheight)
	}
	header, err := e.header(hash)
	if err != nil {
		return 0, err
	}
	return header.TimestampMS, nil
}
