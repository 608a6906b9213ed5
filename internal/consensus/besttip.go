package consensus

import "github.com/terminos-network/terminos/internal/core/block"

// TipWorkScore returns a tip's cumulative-difficulty score: its own
// cumulative difficulty, as tracked incrementally by storage on block
// acceptance (spec §4.5 "Best tip selection"). Cached per tip.
func (e *Engine) TipWorkScore(tip block.Hash) (uint64, error) {
	if cached, ok := e.workScoreCache.Get(tip); ok {
		return cached, nil
	}
	cd, err := e.cumulativeDifficulty(tip)
	if err != nil {
		return 0, err
	}
	e.workScoreCache.Add(tip, cd)
	return cd, nil
}

// BestTip selects the highest cumulative-difficulty candidate,
// tie-broken by lexicographically largest hash for determinism (spec
// §4.5 "Best tip selection").
func (e *Engine) BestTip(candidates []block.Hash) (block.Hash, error) {
	if len(candidates) == 0 {
		return block.Hash{}, ErrNoCommonBase
	}
	best := candidates[0]
	bestScore, err := e.TipWorkScore(best)
	if err != nil {
		return block.Hash{}, err
	}
	for _, c := range candidates[1:] {
		score, err := e.TipWorkScore(c)
		if err != nil {
			return block.Hash{}, err
		}
		if score > bestScore || (score == bestScore && greaterHash(c, best)) {
			best = c
			bestScore = score
		}
	}
	return best, nil
}

func greaterHash(a, b block.Hash) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] > b[i]
		}
	}
	return false
}
