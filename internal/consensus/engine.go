package consensus

import (
	"bytes"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/logs"
	"github.com/terminos-network/terminos/internal/storage"
)

var log = logs.Logger(logs.TagCNSS)

// Checkpoint pins a hard checkpoint a rewind may never cross (spec §4.5
// "Rewind", §13 supplemented feature).
type Checkpoint struct {
	Topoheight uint64
	Hash       block.Hash
}

// DevFeeStep is one entry of a height-sorted dev-fee percentage schedule
// (spec §4.5 "Block reward shaping").
type DevFeeStep struct {
	Height  uint64
	Percent uint64 // out of 100
}

// Engine is the DAG consensus kernel (spec §4.5), layered over a
// storage.Backend for block/tip/cumulative-difficulty lookups.
type Engine struct {
	backend     storage.Backend
	devFeeKey   [32]byte
	devFeeSteps []DevFeeStep
	checkpoints []Checkpoint

	reachCache     *lru.Cache[block.Hash, map[block.Hash]bool]
	baseCache      *lru.Cache[string, block.Hash]
	orderCache     *lru.Cache[string, []block.Hash]
	workScoreCache *lru.Cache[block.Hash, uint64]
}

// New builds an Engine over backend. devFeeSteps should be sorted
// ascending by Height; checkpoints ascending by Topoheight.
func New(backend storage.Backend, devFeeKey [32]byte, devFeeSteps []DevFeeStep, checkpoints []Checkpoint) *Engine {
	return &Engine{
		backend:        backend,
		devFeeKey:      devFeeKey,
		devFeeSteps:    devFeeSteps,
		checkpoints:    checkpoints,
		reachCache:     newCache[block.Hash, map[block.Hash]bool](),
		baseCache:      newCache[string, block.Hash](),
		orderCache:     newCache[string, []block.Hash](),
		workScoreCache: newCache[block.Hash, uint64](),
	}
}

func (e *Engine) header(h block.Hash) (*block.Header, error) {
	b, err := e.backend.GetBlockByHash(h)
	if err != nil {
		return nil, errors.Wrapf(ErrUnknownBlock, "%s", err)
	}
	return &b.Header, nil
}

// combinedTipKey derives a stable cache key for a tip set, used to cache
// the common base and the full order per spec §9.
func combinedTipKey(tips []block.Hash) string {
	sorted := append([]block.Hash{}, tips...)
	sortHashes(sorted)
	var buf bytes.Buffer
	for _, h := range sorted {
		buf.Write(h[:])
	}
	return buf.String()
}

func sortHashes(hashes []block.Hash) {
	for i := 1; i < len(hashes); i++ {
		for j := i; j > 0 && bytes.Compare(hashes[j-1][:], hashes[j][:]) > 0; j-- {
			hashes[j-1], hashes[j] = hashes[j], hashes[j-1]
		}
	}
}

// cumulativeDifficulty is a thin wrapper so other files in this package
// read CD through one call site.
func (e *Engine) cumulativeDifficulty(h block.Hash) (uint64, error) {
	return e.backend.GetCumulativeDifficulty(h)
}
