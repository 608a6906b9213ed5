package consensus

import (
	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/params"
)

// TipDeviationGuard rejects a proposed tip that strays more than
// STABLE_LIMIT blocks from the mainchain, or whose difficulty (here
// approximated by cumulative-difficulty delta against its single
// ancestor chain) falls under 91% of the best tip's (spec §4.5 "Tip
// deviation guard").
func (e *Engine) TipDeviationGuard(tip, bestTip block.Hash) error {
	depth, err := e.distanceToOrderedAncestor(tip)
	if err != nil {
		return err
	}
	if depth > params.StableLimit {
		return ErrBlockDeviation
	}

	tipDiff, err := e.tipDifficulty(tip)
	if err != nil {
		return err
	}
	bestDiff, err := e.tipDifficulty(bestTip)
	if err != nil {
		return err
	}
	if bestDiff > 0 && tipDiff*params.TipDeviationDifficultyDenominator < bestDiff*params.TipDeviationDifficultyNumerator {
		return ErrInvalidTipsDifficulty
	}
	return nil
}

// distanceToOrderedAncestor walks tip's selected ancestry until a
// topologically-ordered block is found, returning the number of hops.
func (e *Engine) distanceToOrderedAncestor(tip block.Hash) (uint64, error) {
	current := tip
	var hops uint64
	for {
		_, ordered, err := e.backend.GetTopoheightForHash(current)
		if err != nil {
			return 0, err
		}
		if ordered {
			return hops, nil
		}
		hdr, err := e.header(current)
		if err != nil {
			return 0, err
		}
		if len(hdr.Tips) == 0 {
			return hops, nil
		}
		current = hdr.Tips[0]
		hops++
		if hops > 2*params.StableLimit {
			return hops, nil
		}
	}
}

// tipDifficulty returns a tip's own difficulty contribution, derived as
// the delta between its cumulative difficulty and its selected parent's
// (or its own cumulative difficulty, for genesis).
func (e *Engine) tipDifficulty(tip block.Hash) (uint64, error) {
	cd, err := e.cumulativeDifficulty(tip)
	if err != nil {
		return 0, err
	}
	hdr, err := e.header(tip)
	if err != nil {
		return 0, err
	}
	if len(hdr.Tips) == 0 {
		return cd, nil
	}
	parentCD, err := e.cumulativeDifficulty(hdr.Tips[0])
	if err != nil {
		return 0, err
	}
	if cd <= parentCD {
		return 0, nil
	}
	return cd - parentCD, nil
}
