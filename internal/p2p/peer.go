package p2p

import (
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/core/mstime"
	"github.com/terminos-network/terminos/internal/crypto"
	"github.com/terminos-network/terminos/internal/logs"
	"github.com/terminos-network/terminos/internal/params"
)

var log = logs.Logger(logs.TagP2P)

// KeyPolicy governs what a PeerList does with a newly observed peer
// Diffie-Hellman public key (spec §13 supplemented feature, "Peer
// store/stored-key policy").
type KeyPolicy uint8

const (
	// TrustOnFirstUse accepts and persists the first key seen for a
	// peer address, then requires it to match on every later connection.
	TrustOnFirstUse KeyPolicy = iota
	// VerifyMatches rejects any peer whose key does not already match a
	// previously stored one; no new keys are learned.
	VerifyMatches
	// AcceptAll never persists or checks keys, accepting any.
	AcceptAll
)

// Peer is one live connection's full state: the framed transport, its
// handshake-derived identity and chain-tip claim, and the per-peer
// resources spec §5 calls for fine-grained locks on ("one for its
// outgoing queue, one for its caches").
type Peer struct {
	conn     net.Conn
	Outbound bool
	Address  string

	// handshake-derived, set once and read-only thereafter except under
	// mu (height/topoheight/difficulty are refreshed by every Ping).
	mu                   sync.RWMutex
	ID                   uint64
	Version              uint8
	Network              string
	Tag                  string
	Topoheight           uint64
	Height               uint64
	PrunedTopoheight     uint64
	TopBlockHash         block.Hash
	CumulativeDifficulty uint64
	Sharable             bool
	lastPing             mstime.Time

	DHKey *crypto.PublicKey

	sendMu sync.Mutex // serializes writes onto conn
	outbox chan Frame

	blockCache *propagationCache
	txCache    *propagationCache

	// commonPeers is the set of peer ids predicted to already share an
	// object with us, used to skip redundant propagation (spec §4.7).
	commonMu    sync.Mutex
	commonPeers map[uint64]bool

	failCount int32
	exit      chan struct{}
	closeOnce sync.Once
}

// NewPeer wraps conn into a Peer with fresh per-peer caches and a
// bounded outgoing queue (spec §5 "a dedicated write task (outgoing
// queue) and read task").
func NewPeer(conn net.Conn, address string, outbound bool) *Peer {
	return &Peer{
		conn:        conn,
		Outbound:    outbound,
		Address:     address,
		outbox:      make(chan Frame, 256),
		blockCache:  newBlockCache(),
		txCache:     newTxCache(),
		commonPeers: map[uint64]bool{},
		exit:        make(chan struct{}),
	}
}

// ApplyHandshake records the remote's self-reported identity and tip
// claim after Handshake.Validate has already accepted it.
func (p *Peer) ApplyHandshake(h *Handshake) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ID = h.PeerID
	p.Version = h.Version
	p.Network = h.Network
	p.Tag = h.Tag
	p.Topoheight = h.Topoheight
	p.Height = h.Height
	p.PrunedTopoheight = h.PrunedTopoheight
	p.TopBlockHash = h.TopBlockHash
	p.CumulativeDifficulty = h.CumulativeDifficulty
	p.Sharable = h.Sharable
	p.lastPing = mstime.Now()
}

// ApplyPing refreshes the tip claim carried by a Ping packet (spec
// §4.7 "Ping").
func (p *Peer) ApplyPing(topBlockHash block.Hash, topoheight, height, prunedTopoheight, cumulativeDifficulty uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.TopBlockHash = topBlockHash
	p.Topoheight = topoheight
	p.Height = height
	p.PrunedTopoheight = prunedTopoheight
	p.CumulativeDifficulty = cumulativeDifficulty
	p.lastPing = mstime.Now()
}

// LastPingAge returns how long ago this peer's last Ping arrived.
func (p *Peer) LastPingAge() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return mstime.Now().Sub(p.lastPing)
}

// Snapshot is a read-only copy of a peer's tip claim, safe to read
// without holding the peer's lock (used by chain-sync peer selection).
type Snapshot struct {
	ID                   uint64
	Topoheight           uint64
	Height               uint64
	PrunedTopoheight     uint64
	TopBlockHash         block.Hash
	CumulativeDifficulty uint64
}

// Snapshot returns a consistent copy of the peer's current claim.
func (p *Peer) Snapshot() Snapshot {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return Snapshot{
		ID:                   p.ID,
		Topoheight:           p.Topoheight,
		Height:               p.Height,
		PrunedTopoheight:     p.PrunedTopoheight,
		TopBlockHash:         p.TopBlockHash,
		CumulativeDifficulty: p.CumulativeDifficulty,
	}
}

// Send enqueues f for the peer's write task. It never blocks the
// caller indefinitely: a full outbox means the peer cannot keep up and
// the frame is dropped, mirroring the backpressure model of spec §5
// ("the read side naturally stalls"), scoped here to non-critical
// propagation traffic rather than request/response packets (those use
// SendSync instead).
func (p *Peer) Send(f Frame) bool {
	select {
	case p.outbox <- f:
		return true
	default:
		log.Warnf("p2p: peer %d outbox full, dropping packet id %d", p.ID, f.ID)
		return false
	}
}

// SendSync writes f directly, bypassing the outbox, for packets whose
// caller already awaits a correlated response (object requests, chain
// requests) and needs a hard error on write failure.
func (p *Peer) SendSync(f Frame) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()
	return WriteFrame(p.conn, f)
}

// WriteLoop drains the outbox onto the wire until exit fires (spec §5
// "one write... per peer").
func (p *Peer) WriteLoop() {
	for {
		select {
		case f := <-p.outbox:
			p.sendMu.Lock()
			err := WriteFrame(p.conn, f)
			p.sendMu.Unlock()
			if err != nil {
				log.Debugf("p2p: write error to peer %d: %s", p.ID, err)
				p.Close()
				return
			}
		case <-p.exit:
			return
		}
	}
}

// ReadFrame reads the next frame off the wire, honoring a read
// deadline so a stalled peer cannot block the dispatcher forever.
func (p *Peer) ReadFrame(timeout time.Duration) (Frame, error) {
	if timeout > 0 {
		_ = p.conn.SetReadDeadline(time.Now().Add(timeout))
	}
	return ReadFrame(p.conn)
}

// IncrementFailCount bumps the peer's protocol-error strike count,
// reporting whether it has now crossed FailCountLimit (spec §7).
func (p *Peer) IncrementFailCount() bool {
	return atomic.AddInt32(&p.failCount, 1) >= params.FailCountLimit
}

// MarkCommonWith records that peerID is predicted to share objects with
// us (spec §4.7 "predicted common peers").
func (p *Peer) MarkCommonWith(peerID uint64) {
	p.commonMu.Lock()
	defer p.commonMu.Unlock()
	p.commonPeers[peerID] = true
}

// CommonPeerIDs returns a snapshot of this peer's predicted common set.
func (p *Peer) CommonPeerIDs() []uint64 {
	p.commonMu.Lock()
	defer p.commonMu.Unlock()
	out := make([]uint64, 0, len(p.commonPeers))
	for id := range p.commonPeers {
		out = append(out, id)
	}
	return out
}

// Exit returns the per-peer cancellation channel (spec §5 "Per-peer
// tasks also listen on a per-peer exit channel").
func (p *Peer) Exit() <-chan struct{} { return p.exit }

// Close tears down the connection and signals Exit exactly once.
func (p *Peer) Close() {
	p.closeOnce.Do(func() {
		close(p.exit)
		_ = p.conn.Close()
	})
}
