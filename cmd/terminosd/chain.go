package main

import (
	"sync"

	"github.com/terminos-network/terminos/internal/consensus"
	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/storage"
)

// chainView is the daemon's own bookkeeping over its storage.Backend and
// consensus.Engine, the way a node process keeps its addressManager and
// networkAdapter pieces coherent alongside its DAG state.
// Nothing in internal/consensus tracks "what topoheight is the tip at"
// on its own; that sequencing belongs to whoever applies blocks, so the
// daemon owns it here and exposes it to internal/p2p via the
// p2p.ChainProvider interface.
type chainView struct {
	backend storage.Backend
	engine  *consensus.Engine
	genesis block.Hash

	mu         sync.RWMutex
	topoheight uint64
}

func newChainView(backend storage.Backend, engine *consensus.Engine, genesis block.Hash) *chainView {
	return &chainView{backend: backend, engine: engine, genesis: genesis}
}

// Topoheight reports the chain's current topoheight.
func (c *chainView) Topoheight() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.topoheight
}

// advance records that a block was just applied at the next topoheight,
// called by the daemon's block processor after a successful executor.ApplyBlock.
func (c *chainView) advance() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.topoheight++
	return c.topoheight
}

// GenesisHash implements p2p.ChainProvider.
func (c *chainView) GenesisHash() block.Hash { return c.genesis }

// Tip implements p2p.ChainProvider, reporting our best tip's hash,
// topoheight, height and cumulative difficulty (spec §4.5 "BestTip").
func (c *chainView) Tip() (topHash block.Hash, topoheight, height, prunedTopoheight, cumulativeDifficulty uint64) {
	topoheight = c.Topoheight()
	prunedTopoheight, _ = c.backend.GetPrunedTopoheight()

	tips, err := c.backend.GetTips()
	if err != nil || len(tips) == 0 {
		return c.genesis, topoheight, 0, prunedTopoheight, 0
	}
	best, err := c.engine.BestTip(tips)
	if err != nil {
		return tips[0], topoheight, 0, prunedTopoheight, 0
	}
	cumulativeDifficulty, _ = c.backend.GetCumulativeDifficulty(best)
	if b, err := c.backend.GetBlockByHash(best); err == nil {
		height = b.Header.Height
	}
	return best, topoheight, height, prunedTopoheight, cumulativeDifficulty
}

// HashAtTopoheight implements p2p.ChainProvider.
func (c *chainView) HashAtTopoheight(topoheight uint64) (block.Hash, bool) {
	h, ok, err := c.backend.GetHashAtTopoheight(topoheight)
	if err != nil {
		return block.Hash{}, false
	}
	return h, ok
}

// BlockByHash implements p2p.ChainProvider.
func (c *chainView) BlockByHash(hash block.Hash) (*block.Block, bool) {
	b, err := c.backend.GetBlockByHash(hash)
	if err != nil {
		return nil, false
	}
	return b, true
}

// HasTransaction implements p2p.ChainProvider.
func (c *chainView) HasTransaction(hash [32]byte) bool {
	ok, _ := c.backend.HasTransaction(hash)
	return ok
}

// TransactionBytes implements p2p.ChainProvider.
func (c *chainView) TransactionBytes(hash [32]byte) ([]byte, bool) {
	data, ok, err := c.backend.GetTransaction(hash)
	if err != nil {
		return nil, false
	}
	return data, ok
}
