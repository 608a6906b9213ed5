package consensus

import "github.com/pkg/errors"

var (
	ErrInvalidTipsCount        = errors.New("consensus: tip set exceeds TipsLimit")
	ErrInvalidTipsNotFound     = errors.New("consensus: a proposed tip does not exist")
	ErrInvalidTipsDifficulty   = errors.New("consensus: a proposed tip falls below the 91% difficulty guard")
	ErrInvalidReachability     = errors.New("consensus: a proposed tip is reachable from another proposed tip")
	ErrInvalidBlockHeight      = errors.New("consensus: block height does not equal max(tip.height)+1")
	ErrBlockDeviation          = errors.New("consensus: tip set deviates more than STABLE_LIMIT from the mainchain")
	ErrTimestampIsInFuture     = errors.New("consensus: block timestamp is too far in the future")
	ErrTimestampLessThanParent = errors.New("consensus: block timestamp precedes a tip's timestamp")
	ErrInvalidBlockSize        = errors.New("consensus: serialized block exceeds MaxBlockSize")
	ErrNoCommonBase            = errors.New("consensus: no sync block reachable from the tip set")
	ErrCheckpointViolation     = errors.New("consensus: rewind would cross a hard checkpoint")
	ErrUnknownBlock            = errors.New("consensus: referenced block is unknown to storage")

	ErrPruneZero               = errors.New("consensus: cannot prune to topoheight 0")
	ErrPruneHeightTooHigh      = errors.New("consensus: prune target is within PruneSafetyLimit of the tip")
	ErrPruneLowerThanLastPruned = errors.New("consensus: prune target is below the already-pruned topoheight")
)
