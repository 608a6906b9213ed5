// Command terminosd runs the Terminos node: the DAG consensus kernel,
// the encrypted transaction executor, the mempool, and the P2P
// propagation/sync layer, wired together the way kaspad.go ties
// together blockdag, mempool, netadapter and connmanager for the node
// this module was adapted from. CLI flag/env parsing is out of scope
// (spec §6): this binary's entry point assembles a config.Config by
// hand and is meant to be wrapped by whatever deployment tooling owns
// flags, files or environment variables.
package main

import (
	"context"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/terminos-network/terminos/internal/config"
	"github.com/terminos-network/terminos/internal/consensus"
	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/core/mempool"
	"github.com/terminos-network/terminos/internal/core/state"
	"github.com/terminos-network/terminos/internal/core/transaction"
	"github.com/terminos-network/terminos/internal/crypto"
	"github.com/terminos-network/terminos/internal/executor"
	"github.com/terminos-network/terminos/internal/logs"
	"github.com/terminos-network/terminos/internal/p2p"
	"github.com/terminos-network/terminos/internal/storage"
)

var log = logs.Logger(logs.TagDAEM)

// terminosd is a wrapper for all the node's services (kaspad.go's
// kaspad struct, generalized to this module's components).
type terminosd struct {
	cfg     config.Config
	backend storage.Backend
	engine  *consensus.Engine
	store   *state.Store
	pool    *mempool.Mempool
	chain   *chainView
	server  *p2p.Server

	started, shutdown int32
}

// newTerminosd builds every service without starting any background
// task, the way newKaspad assembles the DAG/mempool/netadapter/
// connectionManager before kaspad.start launches them.
func newTerminosd(cfg config.Config, devFeeKey [32]byte, devFeeSteps []consensus.DevFeeStep) (*terminosd, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend := storage.NewMemory()
	engine := consensus.New(backend, devFeeKey, devFeeSteps, cfg.Checkpoints)
	store := state.New(backend)
	pool := mempool.New()
	chain := newChainView(backend, engine, cfg.GenesisHash)

	server, err := p2p.NewServer(cfg.NetworkTag, cfg.GenesisHash, cfg.BindAddress, cfg.MaxPeers, cfg.AllowFastSync, p2p.TrustOnFirstUse, chain)
	if err != nil {
		return nil, err
	}

	return &terminosd{
		cfg:     cfg,
		backend: backend,
		engine:  engine,
		store:   store,
		pool:    pool,
		chain:   chain,
		server:  server,
	}, nil
}

// start launches all of terminosd's long-lived tasks.
func (t *terminosd) start(ctx context.Context) error {
	if !atomic.CompareAndSwapInt32(&t.started, 0, 1) {
		return nil
	}
	log.Info("Starting terminosd")

	if err := t.server.Listen(); err != nil {
		return err
	}
	for _, addr := range t.cfg.ExclusivePeers {
		if err := t.server.Connect(addr); err != nil {
			log.Warnf("unable to connect exclusive peer %s: %s", addr, err)
		}
	}

	spawn(log, "blockProcessor", func() { t.runBlockProcessor(ctx) })
	spawn(log, "txProcessor", func() { t.runTxProcessor(ctx) })
	spawn(log, "chainSync", func() { t.server.RunChainSync(ctx, t.onChainResponse) })

	return nil
}

// stop gracefully shuts terminosd down.
func (t *terminosd) stop() {
	if !atomic.CompareAndSwapInt32(&t.shutdown, 0, 1) {
		log.Info("terminosd is already shutting down")
		return
	}
	log.Warn("terminosd shutting down")
	t.server.Shutdown()
}

func (t *terminosd) verifier() executor.TipVerifier {
	return executor.TipVerifier{State: t.store, VM: noopVM{}, Topoheight: t.chain.Topoheight}
}

// runBlockProcessor drains the P2P layer's bounded inbound-block
// channel, verifying and applying each block in turn (spec §4.7
// "Backpressure": "a dedicated block processor task ... drains the
// channel at its own pace").
func (t *terminosd) runBlockProcessor(ctx context.Context) {
	for {
		select {
		case incoming, ok := <-t.server.BlockProcessing():
			if !ok {
				return
			}
			t.applyIncomingBlock(incoming)
		case <-ctx.Done():
			return
		}
	}
}

func (t *terminosd) applyIncomingBlock(incoming p2p.IncomingBlock) {
	b := incoming.Block
	if err := b.Header.ValidateShape(); err != nil {
		log.Warnf("rejecting block with malformed header: %s", err)
		return
	}
	hash, err := b.Header.ComputeHash()
	if err != nil {
		log.Warnf("rejecting block: %s", err)
		return
	}

	if err := t.engine.TipsPairwiseNonReachable(b.Header.Tips); err != nil {
		log.Warnf("rejecting block %x: %s", hash, err)
		return
	}

	txs := make([]*transaction.Transaction, 0, len(b.TxData))
	for _, raw := range b.TxData {
		tx, err := transaction.Decode(raw)
		if err != nil {
			log.Warnf("rejecting block %x: malformed transaction: %s", hash, err)
			return
		}
		txs = append(txs, tx)
	}

	topoheight := t.chain.Topoheight() + 1
	if err := executor.VerifyBatch(t.store, noopVM{}, txs, topoheight, t.cfg.TxsVerificationThreadsCount); err != nil {
		log.Warnf("rejecting block %x: %s", hash, err)
		return
	}
	if _, err := executor.ApplyBlock(t.store, noopVM{}, txs, topoheight); err != nil {
		log.Errorf("applying block %x: %s", hash, err)
		return
	}
	t.chain.advance()

	if err := t.backend.SetBlockByHash(hash, b); err != nil {
		log.Errorf("storing block %x: %s", hash, err)
		return
	}
	for i, raw := range b.TxData {
		_ = t.backend.SaveTransaction(b.Header.TxHashes[i], raw)
		_ = t.backend.SetTxExecutedInBlock(b.Header.TxHashes[i], hash)
	}

	if t.server.Broadcast() != nil {
		if err := t.server.Broadcast().BroadcastBlock(b, hash, incoming.From); err != nil {
			log.Warnf("rebroadcasting block %x: %s", hash, err)
		}
	}
	t.pool.PurgeAfterBlock(t.verifier())
}

// runTxProcessor drains the P2P layer's bounded inbound-transaction
// channel, admitting each into the mempool.
func (t *terminosd) runTxProcessor(ctx context.Context) {
	for {
		select {
		case incoming, ok := <-t.server.TransactionProcessing():
			if !ok {
				return
			}
			t.admitIncomingTransaction(incoming)
		case <-ctx.Done():
			return
		}
	}
}

func (t *terminosd) admitIncomingTransaction(incoming p2p.IncomingTransaction) {
	tx, err := transaction.Decode(incoming.TxBytes)
	if err != nil {
		log.Debugf("dropping malformed transaction: %s", err)
		return
	}
	hash := crypto.HashBytes(incoming.TxBytes)
	now := time.Now().UnixMilli()
	if err := t.pool.Add(hash, tx, len(incoming.TxBytes), now, t.verifier()); err != nil {
		log.Debugf("rejecting transaction %x: %s", hash, err)
		return
	}
	if t.server.Broadcast() != nil {
		t.server.Broadcast().BroadcastTransaction(incoming.TxBytes, hash, incoming.From)
	}
}

// onChainResponse handles the ChainResponse our own chain-sync driver
// fetches from a better-synced peer, fetching each new block by hash
// through the object tracker and feeding it through the same
// apply path as a propagated block.
func (t *terminosd) onChainResponse(peer *p2p.Peer, resp p2p.ChainResponse) {
	if resp.Rejected {
		return
	}
	for _, hash := range resp.BlockHashes {
		if _, ok := t.chain.BlockByHash(hash); ok {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		obj, err := t.server.Tracker().Request(ctx, peer, p2p.ObjectBlock, [32]byte(hash), 10*time.Second)
		cancel()
		if err != nil || obj.NotFound {
			continue
		}
		b, err := p2p.DecodeBlockPropagation(obj.Data)
		if err != nil {
			continue
		}
		t.applyIncomingBlock(p2p.IncomingBlock{From: peer, Block: b})
	}
}

func main() {
	cfg := config.Default()
	cfg.NetworkTag = "terminos-mainnet"
	cfg.BindAddress = "0.0.0.0:9090"
	cfg.GenesisHash = block.Hash{}

	devFeeSteps := []consensus.DevFeeStep{{Height: 0, Percent: 5}}
	var devFeeKey [32]byte

	daemon, err := newTerminosd(cfg, devFeeKey, devFeeSteps)
	if err != nil {
		log.Criticalf("unable to initialize terminosd: %s", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := daemon.start(ctx); err != nil {
		log.Criticalf("unable to start terminosd: %s", err)
		os.Exit(1)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	<-interrupt

	cancel()
	daemon.stop()
}
