package p2p

import (
	"net"
	"sort"
	"strconv"
	"sync"

	"github.com/terminos-network/terminos/internal/crypto"
)

// PeerList is the connected-peer set, guarded by one lock for the map
// itself (spec §5 "Peer list uses fine-grained locks: one for the peer
// map, one per peer for its outgoing queue, one per peer for its
// caches"; the latter two live on Peer itself).
type PeerList struct {
	mu    sync.RWMutex
	byID  map[uint64]*Peer
	byKey map[[32]byte]*Peer

	keyMu    sync.RWMutex
	keyStore map[string][32]byte // address -> last-seen DH public key, for TrustOnFirstUse/VerifyMatches
	policy   KeyPolicy

	maxPeers int
}

// NewPeerList returns an empty list enforcing at most maxPeers
// connections under policy.
func NewPeerList(maxPeers int, policy KeyPolicy) *PeerList {
	return &PeerList{
		byID:     map[uint64]*Peer{},
		byKey:    map[[32]byte]*Peer{},
		keyStore: map[string][32]byte{},
		policy:   policy,
		maxPeers: maxPeers,
	}
}

// CheckKey applies the configured KeyPolicy to a newly observed DH
// public key for address (spec §13 "Peer store/stored-key policy").
func (pl *PeerList) CheckKey(address string, key [32]byte) error {
	pl.keyMu.Lock()
	defer pl.keyMu.Unlock()

	switch pl.policy {
	case AcceptAll:
		return nil
	case TrustOnFirstUse:
		stored, ok := pl.keyStore[address]
		if !ok {
			pl.keyStore[address] = key
			return nil
		}
		if stored != key {
			return ErrInvalidPeerlist
		}
		return nil
	case VerifyMatches:
		stored, ok := pl.keyStore[address]
		if !ok || stored != key {
			return ErrInvalidPeerlist
		}
		return nil
	default:
		return nil
	}
}

// Full reports whether the list has reached its connection cap.
func (pl *PeerList) Full() bool {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return len(pl.byID) >= pl.maxPeers
}

// Add registers peer under its handshake-assigned id, rejecting a
// collision with an already-connected id (spec §4.7 "Handshake
// rejection": "peer_id already used").
func (pl *PeerList) Add(p *Peer) error {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	if _, exists := pl.byID[p.ID]; exists {
		return ErrPeerIDAlreadyUsed
	}
	pl.byID[p.ID] = p
	return nil
}

// Remove drops peer from the list.
func (pl *PeerList) Remove(id uint64) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	delete(pl.byID, id)
}

// Get looks up a connected peer by id.
func (pl *PeerList) Get(id uint64) (*Peer, bool) {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	p, ok := pl.byID[id]
	return p, ok
}

// All returns a snapshot slice of every connected peer.
func (pl *PeerList) All() []*Peer {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	out := make([]*Peer, 0, len(pl.byID))
	for _, p := range pl.byID {
		out = append(out, p)
	}
	return out
}

// Len returns the number of connected peers.
func (pl *PeerList) Len() int {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	return len(pl.byID)
}

// BetterSyncPeers returns every connected peer whose cumulative
// difficulty exceeds ours and whose pruned_topoheight is low enough to
// serve us (spec §4.7 "Chain sync": "Selects a random peer whose
// cumulative difficulty is strictly greater than ours and whose
// pruned_topoheight permits serving our range").
func (pl *PeerList) BetterSyncPeers(ourCumulativeDifficulty, ourTopoheight uint64) []*Peer {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	var out []*Peer
	for _, p := range pl.byID {
		snap := p.Snapshot()
		if snap.CumulativeDifficulty > ourCumulativeDifficulty && snap.PrunedTopoheight <= ourTopoheight {
			out = append(out, p)
		}
	}
	return out
}

// BestTopoheight returns the highest topoheight claimed by any connected
// peer, or 0 if none are connected. Grounded on
// _examples/original_source/daemon/src/p2p/mod.rs's
// get_best_topoheight (spec §13 supplement): used to decide whether
// this node is behind the network at all before picking a sync peer.
func (pl *PeerList) BestTopoheight() uint64 {
	pl.mu.RLock()
	defer pl.mu.RUnlock()
	var best uint64
	for _, p := range pl.byID {
		if t := p.Snapshot().Topoheight; t > best {
			best = t
		}
	}
	return best
}

// MedianTopoheight returns the median topoheight across connected peers
// plus, if ourTopoheight is non-nil, our own value — matching
// _examples/original_source/daemon/src/p2p/mod.rs's
// get_median_topoheight_of_peers, which folds the local node's
// topoheight into the same sample before taking the median so a single
// lagging or lying peer can't drag the estimate far from where we
// actually stand (spec §13 supplement).
func (pl *PeerList) MedianTopoheight(ourTopoheight *uint64) uint64 {
	pl.mu.RLock()
	samples := make([]uint64, 0, len(pl.byID)+1)
	for _, p := range pl.byID {
		samples = append(samples, p.Snapshot().Topoheight)
	}
	pl.mu.RUnlock()

	if ourTopoheight != nil {
		samples = append(samples, *ourTopoheight)
	}
	if len(samples) == 0 {
		return 0
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return samples[len(samples)/2]
}

// PeerAddressLists classifies every connected peer's address as local or
// remote (spec §4.7 "Ping": local addresses are scoped so they're never
// sent to non-local peers and vice versa), skipping addresses that
// IsValidAddress rejects as unfit to gossip. Grounded on
// _examples/original_source/daemon/src/p2p/mod.rs's is_local_address /
// is_valid_address (spec §13 supplement).
func (pl *PeerList) PeerAddressLists() (local, remote []PeerAddress) {
	pl.mu.RLock()
	peers := make([]*Peer, 0, len(pl.byID))
	for _, p := range pl.byID {
		peers = append(peers, p)
	}
	pl.mu.RUnlock()

	for _, p := range peers {
		tcpAddr, err := net.ResolveTCPAddr("tcp", p.Address)
		if err != nil || !IsValidAddress(tcpAddr) {
			continue
		}
		host, portStr, err := net.SplitHostPort(p.Address)
		if err != nil {
			continue
		}
		port, err := strconv.ParseUint(portStr, 10, 16)
		if err != nil {
			continue
		}
		isLocal := IsLocalAddress(tcpAddr)
		pa := PeerAddress{Host: host, Port: uint16(port), Local: isLocal}
		if isLocal {
			local = append(local, pa)
		} else {
			remote = append(remote, pa)
		}
	}
	return local, remote
}

// KeyPair is a peer's Diffie-Hellman key material for one connection
// (spec §4.7 "exchange Diffie-Hellman public keys").
type KeyPair struct {
	Private crypto.PrivateKey
	Public  crypto.PublicKey
}

// GenerateKeyPair draws a fresh DH key pair for a new connection.
func GenerateKeyPair() (KeyPair, error) {
	sk, err := crypto.GeneratePrivateKey()
	if err != nil {
		return KeyPair{}, err
	}
	return KeyPair{Private: sk, Public: sk.PublicKey()}, nil
}
