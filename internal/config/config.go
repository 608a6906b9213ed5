// Package config defines the daemon's typed configuration surface (spec
// §6 "CLI and environment are out of scope; the core consumes a typed
// Config struct"). Flag/env parsing is explicitly out of scope; this
// package only owns the struct shape, its defaults and its validation,
// the way daglabs-btcd's dagconfig.Params pins protocol parameters apart
// from the flags that select among them.
package config

import (
	"net"
	"time"

	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/consensus"
	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/params"
)

// ProxyConfig configures an outbound SOCKS proxy for peer connections.
type ProxyConfig struct {
	Address  string
	Username string
	Password string
}

// Config is the full set of daemon-level parameters a caller assembles
// before constructing the consensus engine, mempool and P2P server
// (spec §6).
type Config struct {
	// NetworkTag distinguishes mainnet/testnet/devnet peers from each
	// other at handshake time.
	NetworkTag string
	// GenesisHash is compared against a peer's handshake genesis_hash.
	GenesisHash block.Hash

	BindAddress    string
	ExclusivePeers []string
	MaxPeers       int

	AllowFastSync bool
	AllowBoostSync bool

	MaxChainResponseSize int
	AutoPruneKeepNBlocks uint64

	Checkpoints []consensus.Checkpoint

	TxsVerificationThreadsCount int
	ForceDBFlush                bool

	Proxy *ProxyConfig
}

// Default returns a Config pre-filled with the protocol's baseline
// constants, still requiring NetworkTag/GenesisHash/BindAddress from the
// caller.
func Default() Config {
	return Config{
		MaxPeers:                    32,
		MaxChainResponseSize:        params.MaxChainResponseSize,
		TxsVerificationThreadsCount: 4,
	}
}

// Validate checks the invariants the rest of the module assumes hold
// (spec §7 "Fatal errors": "configuration invariants broken at
// startup").
func (c Config) Validate() error {
	if c.NetworkTag == "" {
		return errors.New("config: network tag must be set")
	}
	if c.BindAddress == "" {
		return errors.New("config: bind address must be set")
	}
	if _, _, err := net.SplitHostPort(c.BindAddress); err != nil {
		return errors.Wrap(err, "config: invalid bind address")
	}
	if c.MaxPeers <= 0 {
		return errors.New("config: max peers must be positive")
	}
	if c.MaxChainResponseSize <= 0 || c.MaxChainResponseSize > params.MaxChainResponseSize {
		return errors.Errorf("config: max chain response size must be in (0, %d]", params.MaxChainResponseSize)
	}
	if c.TxsVerificationThreadsCount <= 0 {
		return errors.New("config: txs verification threads count must be positive")
	}
	for i := 1; i < len(c.Checkpoints); i++ {
		if c.Checkpoints[i].Topoheight <= c.Checkpoints[i-1].Topoheight {
			return errors.New("config: checkpoints must be strictly increasing by topoheight")
		}
	}
	return nil
}

// ChainSyncDelay is the driving interval of the chain-sync task (spec
// §4.7 "Chain sync"), exposed as a time.Duration for callers wiring a
// ticker.
func ChainSyncDelay() time.Duration {
	return time.Duration(params.ChainSyncDelaySeconds) * time.Second
}
