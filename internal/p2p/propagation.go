package p2p

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/core/block"
)

// EncodeBlockPropagation serializes a full block (header plus
// length-prefixed transactions) for PacketBlockPropagation, matching
// spec §6's "Full block appends length-prefixed transactions".
func EncodeBlockPropagation(b *block.Block) ([]byte, error) {
	var buf bytes.Buffer
	if err := b.Header.Serialize(&buf); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(b.TxData))); err != nil {
		return nil, err
	}
	for _, tx := range b.TxData {
		if err := binary.Write(&buf, binary.BigEndian, uint32(len(tx))); err != nil {
			return nil, err
		}
		if _, err := buf.Write(tx); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// DecodeBlockPropagation reverses EncodeBlockPropagation.
func DecodeBlockPropagation(payload []byte) (*block.Block, error) {
	r := bytes.NewReader(payload)
	b := &block.Block{}
	if err := b.Header.Deserialize(r); err != nil {
		return nil, errors.Wrap(err, "p2p: decoding propagated block header")
	}
	var txCount uint32
	if err := binary.Read(r, binary.BigEndian, &txCount); err != nil {
		return nil, err
	}
	b.TxData = make([][]byte, txCount)
	for i := range b.TxData {
		var length uint32
		if err := binary.Read(r, binary.BigEndian, &length); err != nil {
			return nil, err
		}
		tx := make([]byte, length)
		if _, err := io.ReadFull(r, tx); err != nil {
			return nil, err
		}
		b.TxData[i] = tx
	}
	return b, nil
}

// Broadcaster ties the peer list and per-peer propagation caches
// together to implement spec §4.7's "Propagation": skip peers already
// marked In for an object, and optimistically seed predicted common
// peers' caches to avoid redundant back-propagation.
type Broadcaster struct {
	list *PeerList
}

// NewBroadcaster wraps list.
func NewBroadcaster(list *PeerList) *Broadcaster {
	return &Broadcaster{list: list}
}

// BroadcastBlock sends b to every connected peer except from (the peer
// it arrived from, nil for locally-mined blocks) and any peer already
// known to have it.
func (br *Broadcaster) BroadcastBlock(b *block.Block, hash [32]byte, from *Peer) error {
	payload, err := EncodeBlockPropagation(b)
	if err != nil {
		return errors.Wrap(err, "p2p: encoding block propagation")
	}
	br.broadcast(hash, from, func(p *Peer) *propagationCache { return p.blockCache }, Frame{ID: PacketBlockPropagation, Payload: payload})
	return nil
}

// BroadcastTransaction sends txBytes (already wire-encoded) to every
// peer not already known to have it.
func (br *Broadcaster) BroadcastTransaction(txBytes []byte, hash [32]byte, from *Peer) {
	br.broadcast(hash, from, func(p *Peer) *propagationCache { return p.txCache }, Frame{ID: PacketTransactionPropagation, Payload: txBytes})
}

func (br *Broadcaster) broadcast(hash [32]byte, from *Peer, cacheOf func(*Peer) *propagationCache, f Frame) {
	now := time.Now().UnixMilli()
	peers := br.list.All()

	var commonIDs map[uint64]bool
	if from != nil {
		commonIDs = map[uint64]bool{}
		for _, id := range from.CommonPeerIDs() {
			commonIDs[id] = true
		}
	}

	for _, p := range peers {
		if from != nil && p.ID == from.ID {
			continue
		}
		cache := cacheOf(p)
		if cache.HasIn(hash) {
			continue
		}
		if commonIDs[p.ID] {
			// Predicted common peer: seed the cache instead of a real
			// send, so a genuine re-send from them clears the flag
			// rather than being treated as a duplicate.
			cache.MarkPredictedCommon(hash, now)
			continue
		}
		if p.Send(f) {
			cache.MarkOut(hash, now)
		}
	}
}

// ReceiveBlock records that from sent us a block, returning whether we
// should process it (first time seen from this peer) and updating its
// direction cache.
func ReceiveBlock(from *Peer, hash [32]byte) bool {
	return from.blockCache.MarkIn(hash, time.Now().UnixMilli())
}

// ReceiveTransaction is ReceiveBlock's transaction-hash counterpart.
func ReceiveTransaction(from *Peer, hash [32]byte) bool {
	return from.txCache.MarkIn(hash, time.Now().UnixMilli())
}
