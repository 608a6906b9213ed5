// Package p2p implements the peer-to-peer propagation and
// synchronization layer (spec §4.7 "P2P layer (C7)"): connection
// lifecycle and handshake, ping, bounded-LRU propagation with direction
// tracking, a singleflight-coalescing object tracker, and normal/fast
// chain sync, all framed over the custom `[u32 length][u8
// packet_id][payload]` wire protocol of spec §6, deliberately not an
// RPC/gRPC transport, per spec §6's explicit framing.
package p2p

import (
	"context"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/core/mstime"
	"github.com/terminos-network/terminos/internal/crypto"
	"github.com/terminos-network/terminos/internal/params"
)

// ChainProvider is the local chain-state collaborator the server
// queries to build handshakes, pings and chain-sync requests, and to
// answer peers' requests against our own chain (spec §4.7 throughout).
type ChainProvider interface {
	Tip() (topHash block.Hash, topoheight, height, prunedTopoheight, cumulativeDifficulty uint64)
	GenesisHash() block.Hash
	HashAtTopoheight(topoheight uint64) (block.Hash, bool)
	BlockByHash(hash block.Hash) (*block.Block, bool)
	HasTransaction(hash [32]byte) bool
	TransactionBytes(hash [32]byte) ([]byte, bool)
}

// IncomingBlock is one block-propagation or sync-fetched block queued
// for the block processor (spec §4.7 "Backpressure").
type IncomingBlock struct {
	From  *Peer
	Block *block.Block
}

// IncomingTransaction is the transaction-processor counterpart.
type IncomingTransaction struct {
	From    *Peer
	TxBytes []byte
}

// Server owns every live connection and the long-lived tasks spec §5
// requires: one read/write pair per peer, a ping loop per peer, a
// shared chain-sync driver, and the two bounded block/tx processing
// channels.
type Server struct {
	networkTag           string
	genesisHash          block.Hash
	bindAddress          string
	maxPeers             int
	allowFastSync        bool
	chainSyncMinInterval time.Duration

	chain ChainProvider

	list       *PeerList
	tracker    *ObjectTracker
	broadcast  *Broadcaster
	keyPair    KeyPair
	nextPeerID uint64

	blockProcessing chan IncomingBlock
	txProcessing    chan IncomingTransaction

	chainSyncMu      sync.Mutex
	chainSyncPending map[uint64]chan ChainResponse

	exit      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

// NewServer builds a Server over chain, ready to Listen/Connect.
func NewServer(networkTag string, genesisHash block.Hash, bindAddress string, maxPeers int, allowFastSync bool, keyPolicy KeyPolicy, chain ChainProvider) (*Server, error) {
	kp, err := GenerateKeyPair()
	if err != nil {
		return nil, errors.Wrap(err, "p2p: generating server DH key pair")
	}
	return &Server{
		networkTag:           networkTag,
		genesisHash:          genesisHash,
		bindAddress:          bindAddress,
		maxPeers:             maxPeers,
		allowFastSync:        allowFastSync,
		chainSyncMinInterval: ChainSyncRequestMinInterval(),
		chain:                chain,
		list:                 NewPeerList(maxPeers, keyPolicy),
		tracker:              NewObjectTracker(),
		keyPair:              kp,
		blockProcessing:      make(chan IncomingBlock, 256),
		txProcessing:         make(chan IncomingTransaction, 4096),
		chainSyncPending:     map[uint64]chan ChainResponse{},
		exit:                 make(chan struct{}),
	}, nil
}

// Listen accepts inbound connections on s.bindAddress until Shutdown is
// called.
func (s *Server) Listen() error {
	s.broadcast = NewBroadcaster(s.list)
	listener, err := net.Listen("tcp", s.bindAddress)
	if err != nil {
		return errors.Wrap(err, "p2p: binding listener")
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer listener.Close()
		for {
			conn, err := listener.Accept()
			if err != nil {
				select {
				case <-s.exit:
					return
				default:
					log.Warnf("p2p: accept error: %s", err)
					continue
				}
			}
			if s.list.Full() {
				conn.Close()
				continue
			}
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				s.handleConnection(conn, false)
			}()
		}
	}()
	return nil
}

// Connect dials address as an outbound peer.
func (s *Server) Connect(address string) error {
	conn, err := net.DialTimeout("tcp", address, time.Duration(params.PeerTimeoutInitOutgoing)*time.Second)
	if err != nil {
		return errors.Wrapf(err, "p2p: dialing %s", address)
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.handleConnection(conn, true)
	}()
	return nil
}

// handleConnection runs the full per-connection lifecycle of spec
// §4.7: DH key exchange, handshake exchange and validation, peer-list
// insertion, then the write/read/ping tasks until the peer exits.
func (s *Server) handleConnection(conn net.Conn, outbound bool) {
	_ = conn.SetDeadline(time.Now().Add(time.Duration(params.PeerTimeoutInitConnection) * time.Second))

	if err := WriteFrame(conn, Frame{ID: PacketKeyExchange, Payload: s.keyPair.Public.Encode()}); err != nil {
		conn.Close()
		return
	}
	keyFrame, err := ReadFrame(conn)
	if err != nil || keyFrame.ID != PacketKeyExchange {
		conn.Close()
		return
	}
	peerDHKey, err := crypto.DecodePublicKey(keyFrame.Payload)
	if err != nil {
		conn.Close()
		return
	}
	var fixedKey [32]byte
	copy(fixedKey[:], keyFrame.Payload)
	if err := s.list.CheckKey(conn.RemoteAddr().String(), fixedKey); err != nil {
		conn.Close()
		return
	}

	ourHandshake := s.buildHandshake()
	payload, err := ourHandshake.Encode()
	if err != nil {
		conn.Close()
		return
	}
	if err := WriteFrame(conn, Frame{ID: PacketHandshake, Payload: payload}); err != nil {
		conn.Close()
		return
	}
	hsFrame, err := ReadFrame(conn)
	if err != nil {
		conn.Close()
		return
	}
	if hsFrame.ID != PacketHandshake {
		conn.Close()
		return
	}
	remoteHandshake, err := DecodeHandshake(hsFrame.Payload)
	if err != nil {
		conn.Close()
		return
	}
	_, topoheight, _, _, _ := s.chain.Tip()
	if err := remoteHandshake.Validate(s.networkTag, s.genesisHash, topoheight); err != nil {
		conn.Close()
		return
	}

	_ = conn.SetDeadline(time.Time{})

	peer := NewPeer(conn, conn.RemoteAddr().String(), outbound)
	peer.DHKey = &peerDHKey
	peer.ApplyHandshake(remoteHandshake)
	if err := s.list.Add(peer); err != nil {
		conn.Close()
		return
	}
	defer s.list.Remove(peer.ID)

	log.Infof("p2p: peer %d connected (%s, outbound=%v)", peer.ID, peer.Address, outbound)

	go peer.WriteLoop()
	recipientIsLocal := isLocalPeerAddress(peer.Address)
	localAddrs, remoteAddrs := s.list.PeerAddressLists()
	go PingLoop(peer, localAddrs, remoteAddrs, s.buildPing, recipientIsLocal)

	s.readDispatchLoop(peer)
}

// isLocalPeerAddress classifies a peer's "host:port" address string
// (spec §4.7 "local addresses are never sent to non-local peers and
// vice versa"), falling back to non-local when the address can't be
// resolved.
func isLocalPeerAddress(address string) bool {
	addr, err := net.ResolveTCPAddr("tcp", address)
	if err != nil {
		return false
	}
	return IsLocalAddress(addr)
}

func (s *Server) buildHandshake() *Handshake {
	topHash, topoheight, height, pruned, cd := s.chain.Tip()
	_, portStr, _ := net.SplitHostPort(s.bindAddress)
	var port uint16
	if p, err := net.LookupPort("tcp", portStr); err == nil {
		port = uint16(p)
	}
	return &Handshake{
		Version:              HandshakeVersion,
		Network:              s.networkTag,
		Tag:                  "terminosd",
		PeerID:               atomic.AddUint64(&s.nextPeerID, 1),
		LocalPort:            port,
		Timestamp:            mstime.Now(),
		Topoheight:           topoheight,
		Height:               height,
		PrunedTopoheight:     pruned,
		TopBlockHash:         topHash,
		GenesisHash:          s.genesisHash,
		CumulativeDifficulty: cd,
		Sharable:             true,
	}
}

func (s *Server) buildPing() Ping {
	topHash, topoheight, height, pruned, cd := s.chain.Tip()
	return Ping{TopHash: topHash, Topoheight: topoheight, Height: height, PrunedTopoheight: pruned, CumulativeDifficulty: cd}
}

// readDispatchLoop reads frames off peer until it disconnects,
// handling order-dependent packets (ChainResponse, ObjectResponse)
// inline and spawning a goroutine for order-independent ones (spec §5
// "Peer-level gossip packets ... packets flagged order-dependent ...
// are handled inline before the next packet, while order-independent
// packets ... may be processed on spawned tasks").
func (s *Server) readDispatchLoop(peer *Peer) {
	defer peer.Close()
	for {
		frame, err := peer.ReadFrame(0)
		if err != nil {
			log.Debugf("p2p: peer %d read error: %s", peer.ID, err)
			return
		}
		switch frame.ID {
		case PacketPing:
			s.handlePing(peer, frame)
		case PacketObjectResponse:
			s.handleObjectResponse(frame)
		case PacketChainResponse:
			s.deliverChainResponse(peer, frame)
		case PacketObjectRequest:
			go s.handleObjectRequest(peer, frame)
		case PacketBlockPropagation:
			go s.handleBlockPropagation(peer, frame)
		case PacketTransactionPropagation:
			go s.handleTransactionPropagation(peer, frame)
		case PacketNotifyInventoryRequest:
			go s.handleInventoryRequest(peer, frame)
		case PacketNotifyInventoryResponse:
			go s.handleInventoryResponse(peer, frame)
		case PacketChainRequest:
			go s.handleChainRequest(peer, frame)
		default:
			if peer.IncrementFailCount() {
				log.Warnf("p2p: peer %d exceeded fail count limit, disconnecting", peer.ID)
				return
			}
		}
	}
}

// deliverChainResponse routes a ChainResponse frame to whichever
// RunChainSync call is awaiting it for this peer, decoding once on the
// single reader goroutine (readDispatchLoop) so no second goroutine
// ever reads peer's connection concurrently.
func (s *Server) deliverChainResponse(peer *Peer, frame Frame) {
	resp, err := DecodeChainResponse(frame.Payload)
	if err != nil {
		peer.IncrementFailCount()
		return
	}
	s.chainSyncMu.Lock()
	ch, ok := s.chainSyncPending[peer.ID]
	s.chainSyncMu.Unlock()
	if !ok {
		log.Debugf("p2p: peer %d sent unsolicited chain response", peer.ID)
		return
	}
	select {
	case ch <- resp:
	default:
	}
}

func (s *Server) handlePing(peer *Peer, frame Frame) {
	ping, err := DecodePing(frame.Payload)
	if err != nil {
		peer.IncrementFailCount()
		return
	}
	peer.ApplyPing(ping.TopHash, ping.Topoheight, ping.Height, ping.PrunedTopoheight, ping.CumulativeDifficulty)
}

func (s *Server) handleObjectResponse(frame Frame) {
	resp, err := DecodeObjectResponse(frame.Payload)
	if err != nil {
		return
	}
	s.tracker.Deliver(resp)
}

func (s *Server) handleObjectRequest(peer *Peer, frame Frame) {
	req, err := DecodeObjectRequest(frame.Payload)
	if err != nil {
		peer.IncrementFailCount()
		return
	}
	var resp ObjectResponse
	resp.Kind = req.Kind
	resp.Hash = req.Hash
	switch req.Kind {
	case ObjectTransaction:
		if data, ok := s.chain.TransactionBytes(req.Hash); ok {
			resp.Data = data
		} else {
			resp.NotFound = true
		}
	case ObjectBlock:
		var bh block.Hash
		copy(bh[:], req.Hash[:])
		if b, ok := s.chain.BlockByHash(bh); ok {
			payload, err := EncodeBlockPropagation(b)
			if err != nil {
				resp.NotFound = true
			} else {
				resp.Data = payload
			}
		} else {
			resp.NotFound = true
		}
	}
	peer.Send(Frame{ID: PacketObjectResponse, Payload: resp.Encode()})
}

func (s *Server) handleBlockPropagation(peer *Peer, frame Frame) {
	b, err := DecodeBlockPropagation(frame.Payload)
	if err != nil {
		peer.IncrementFailCount()
		return
	}
	hash, err := b.Header.ComputeHash()
	if err != nil {
		peer.IncrementFailCount()
		return
	}
	if !ReceiveBlock(peer, hash) {
		return // already seen from this peer
	}
	select {
	case s.blockProcessing <- IncomingBlock{From: peer, Block: b}:
	default:
		log.Warnf("p2p: block processing channel full, dropping block %x", hash)
	}
}

func (s *Server) handleTransactionPropagation(peer *Peer, frame Frame) {
	hash := crypto.HashBytes(frame.Payload)
	if !ReceiveTransaction(peer, hash) {
		return
	}
	select {
	case s.txProcessing <- IncomingTransaction{From: peer, TxBytes: frame.Payload}:
	default:
		log.Warnf("p2p: tx processing channel full, dropping tx %x", hash)
	}
}

func (s *Server) handleInventoryRequest(peer *Peer, frame Frame) {
	req, err := DecodeNotifyInventoryRequest(frame.Payload)
	if err != nil {
		peer.IncrementFailCount()
		return
	}
	_ = req // a production wiring passes a mempool-backed InventoryPager in; omitted here since Server has no mempool reference.
	resp := NotifyInventoryResponse{}
	payload, err := resp.Encode()
	if err != nil {
		return
	}
	peer.Send(Frame{ID: PacketNotifyInventoryResponse, Payload: payload})
}

func (s *Server) handleInventoryResponse(peer *Peer, frame Frame) {
	resp, err := DecodeNotifyInventoryResponse(frame.Payload)
	if err != nil {
		peer.IncrementFailCount()
		return
	}
	for _, h := range resp.Hashes {
		if s.chain.HasTransaction(h) {
			continue
		}
		go func(hash [32]byte) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			obj, err := s.tracker.Request(ctx, peer, ObjectTransaction, hash, 10*time.Second)
			if err != nil || obj.NotFound {
				return
			}
			select {
			case s.txProcessing <- IncomingTransaction{From: peer, TxBytes: obj.Data}:
			default:
			}
		}(h)
	}
}

func (s *Server) handleChainRequest(peer *Peer, frame Frame) {
	req, err := DecodeChainRequest(frame.Payload)
	if err != nil {
		peer.Send(Frame{ID: PacketChainResponse, Payload: mustEncodeRejection()})
		return
	}

	var common *BlockID
	for _, id := range req.BlockIDs {
		ourHash, ok := s.chain.HashAtTopoheight(id.Topoheight)
		if ok && ourHash == id.Hash {
			c := id
			common = &c
			break
		}
	}
	if common == nil {
		peer.Send(Frame{ID: PacketChainResponse, Payload: mustEncodeRejection()})
		return
	}

	var hashes []block.Hash
	next := common.Topoheight + 1
	for len(hashes) < params.MaxChainResponseSize {
		h, ok := s.chain.HashAtTopoheight(next)
		if !ok {
			break
		}
		hashes = append(hashes, h)
		next++
	}

	resp := ChainResponse{CommonPoint: *common, BlockHashes: hashes}
	payload, err := resp.Encode()
	if err != nil {
		return
	}
	peer.Send(Frame{ID: PacketChainResponse, Payload: payload})
}

func mustEncodeRejection() []byte {
	payload, _ := ChainResponse{Rejected: true}.Encode()
	return payload
}

// BlockProcessing exposes the bounded inbound-block channel for the
// daemon's dedicated block-processor task to drain (spec §4.7
// "Backpressure").
func (s *Server) BlockProcessing() <-chan IncomingBlock { return s.blockProcessing }

// TransactionProcessing exposes the bounded inbound-tx channel.
func (s *Server) TransactionProcessing() <-chan IncomingTransaction { return s.txProcessing }

// Broadcast exposes the server's Broadcaster for the daemon's block
// acceptance / mempool admission paths to push newly-accepted objects
// back out to peers.
func (s *Server) Broadcast() *Broadcaster { return s.broadcast }

// Tracker exposes the object tracker for the chain-sync driver.
func (s *Server) Tracker() *ObjectTracker { return s.tracker }

// Peers exposes the peer list for RPC/diagnostics and chain-sync peer
// selection.
func (s *Server) Peers() *PeerList { return s.list }

// RunChainSync is the long-lived chain-sync driver task of spec §4.7
// "Chain sync": every ChainSyncDelay it selects a random peer whose
// cumulative difficulty exceeds ours, builds the exponential block-id
// list against our own chain, and requests either a normal or
// bootstrap response depending on how far the peer claims to be ahead.
// onChainResponse is called with the resulting ChainResponse; the
// daemon's handler fetches and applies the listed blocks there.
func (s *Server) RunChainSync(ctx context.Context, onChainResponse func(*Peer, ChainResponse)) {
	ticker := time.NewTicker(ChainSyncDelay())
	defer ticker.Stop()
	lastRequestAt := map[uint64]time.Time{}

	for {
		select {
		case <-ticker.C:
			_, topoheight, height, _, cd := s.chain.Tip()
			candidates := s.list.BetterSyncPeers(cd, topoheight)
			peer := SelectSyncPeer(candidates)
			if peer == nil {
				continue
			}
			if since, ok := lastRequestAt[peer.ID]; ok && time.Since(since) < s.chainSyncMinInterval {
				continue
			}
			lastRequestAt[peer.ID] = time.Now()

			snap := peer.Snapshot()
			if ShouldFastSync(topoheight, snap.Topoheight, s.allowFastSync) {
				log.Infof("p2p: peer %d is %d blocks ahead, preferring bootstrap sync", peer.ID, snap.Topoheight-topoheight)
				// Bootstrap paging is owned by internal/storage's backend;
				// this driver only logs the decision since Server has no
				// storage reference of its own.
				continue
			}

			heights := BuildBlockIDList(height, 0)
			ids := make([]BlockID, 0, len(heights))
			for _, h := range heights {
				hash, ok := s.chain.HashAtTopoheight(h)
				if !ok {
					continue
				}
				ids = append(ids, BlockID{Topoheight: h, Hash: hash})
			}
			if len(ids) == 0 {
				continue
			}
			payload, err := ChainRequest{BlockIDs: ids}.Encode()
			if err != nil {
				continue
			}
			resp, err := s.requestChainSync(peer, payload)
			if err != nil {
				continue
			}
			if onChainResponse != nil {
				onChainResponse(peer, resp)
			}
		case <-ctx.Done():
			return
		case <-s.exit:
			return
		}
	}
}

// requestChainSync sends a ChainRequest to peer and waits for
// readDispatchLoop to hand back the correlated ChainResponse, since
// peer's connection has exactly one reader (spec §5 "one read...
// task" per peer).
func (s *Server) requestChainSync(peer *Peer, payload []byte) (ChainResponse, error) {
	ch := make(chan ChainResponse, 1)
	s.chainSyncMu.Lock()
	s.chainSyncPending[peer.ID] = ch
	s.chainSyncMu.Unlock()
	defer func() {
		s.chainSyncMu.Lock()
		delete(s.chainSyncPending, peer.ID)
		s.chainSyncMu.Unlock()
	}()

	if err := peer.SendSync(Frame{ID: PacketChainRequest, Payload: payload}); err != nil {
		return ChainResponse{}, err
	}

	timer := time.NewTimer(PingTimeout())
	defer timer.Stop()
	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		return ChainResponse{}, ErrObjectRequestTimeout
	case <-peer.Exit():
		return ChainResponse{}, ErrConnectionClosed
	}
}

// Shutdown closes every connection and waits for all tasks to observe
// their exit channel (spec §5 "Cancellation": "a shutdown closes all
// peer connections first, then waits for tasks to observe the exit").
func (s *Server) Shutdown() {
	s.closeOnce.Do(func() {
		close(s.exit)
		for _, p := range s.list.All() {
			p.Close()
		}
		s.wg.Wait()
	})
}
