package p2p

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pkg/errors"
)

// ObjectKind distinguishes the two object types the tracker fetches by
// hash (spec §4.7 "Object tracker": "requesting missing TXs/blocks by
// hash").
type ObjectKind uint8

const (
	ObjectBlock ObjectKind = iota
	ObjectTransaction
)

// ObjectRequest is the payload of PacketObjectRequest: fetch one object
// by hash and kind.
type ObjectRequest struct {
	Kind ObjectKind
	Hash [32]byte
}

func (r ObjectRequest) Encode() []byte {
	out := make([]byte, 1+32)
	out[0] = byte(r.Kind)
	copy(out[1:], r.Hash[:])
	return out
}

func DecodeObjectRequest(b []byte) (ObjectRequest, error) {
	if len(b) != 33 {
		return ObjectRequest{}, errors.New("p2p: malformed object request")
	}
	var r ObjectRequest
	r.Kind = ObjectKind(b[0])
	copy(r.Hash[:], b[1:])
	return r, nil
}

// ObjectResponse is the payload of PacketObjectResponse: the requested
// object's raw encoding, or NotFound if the peer does not have it.
type ObjectResponse struct {
	Kind     ObjectKind
	Hash     [32]byte
	NotFound bool
	Data     []byte
}

func (r ObjectResponse) Encode() []byte {
	out := make([]byte, 0, 1+32+1+4+len(r.Data))
	out = append(out, byte(r.Kind))
	out = append(out, r.Hash[:]...)
	notFound := byte(0)
	if r.NotFound {
		notFound = 1
	}
	out = append(out, notFound)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(r.Data)))
	out = append(out, lenBuf[:]...)
	out = append(out, r.Data...)
	return out
}

func DecodeObjectResponse(b []byte) (ObjectResponse, error) {
	if len(b) < 38 {
		return ObjectResponse{}, errors.New("p2p: malformed object response")
	}
	var r ObjectResponse
	r.Kind = ObjectKind(b[0])
	copy(r.Hash[:], b[1:33])
	r.NotFound = b[33] != 0
	length := binary.BigEndian.Uint32(b[34:38])
	if len(b[38:]) != int(length) {
		return ObjectResponse{}, errors.New("p2p: object response length mismatch")
	}
	r.Data = b[38:]
	return r, nil
}

func objectKey(kind ObjectKind, hash [32]byte) string {
	return hex.EncodeToString([]byte{byte(kind)}) + hex.EncodeToString(hash[:])
}

// ObjectTracker is the single arbiter coalescing concurrent requests for
// the same (kind, hash) into one outstanding peer request (spec §4.7
// "Object tracker"). Two propagations racing to fetch the same missing
// transaction share one round-trip and one listener list, which
// singleflight.Group provides directly.
type ObjectTracker struct {
	group singleflight.Group

	pendingMu sync.Mutex
	pending   map[string]chan ObjectResponse
}

// NewObjectTracker returns an empty tracker.
func NewObjectTracker() *ObjectTracker {
	return &ObjectTracker{pending: map[string]chan ObjectResponse{}}
}

// Request fetches kind/hash from peer, coalescing with any other
// in-flight request for the same object regardless of which peer asked
// first. The actual request/response round trip only happens once per
// distinct object; late joiners receive the same result.
func (t *ObjectTracker) Request(ctx context.Context, peer *Peer, kind ObjectKind, hash [32]byte, timeout time.Duration) (ObjectResponse, error) {
	key := objectKey(kind, hash)
	v, err, _ := t.group.Do(key, func() (interface{}, error) {
		return t.roundTrip(ctx, peer, kind, hash, timeout, key)
	})
	if err != nil {
		return ObjectResponse{}, err
	}
	return v.(ObjectResponse), nil
}

func (t *ObjectTracker) roundTrip(ctx context.Context, peer *Peer, kind ObjectKind, hash [32]byte, timeout time.Duration, key string) (ObjectResponse, error) {
	ch := make(chan ObjectResponse, 1)
	t.pendingMu.Lock()
	t.pending[key] = ch
	t.pendingMu.Unlock()
	defer func() {
		t.pendingMu.Lock()
		delete(t.pending, key)
		t.pendingMu.Unlock()
	}()

	req := ObjectRequest{Kind: kind, Hash: hash}
	if err := peer.SendSync(Frame{ID: PacketObjectRequest, Payload: req.Encode()}); err != nil {
		return ObjectResponse{}, errors.Wrap(err, "p2p: sending object request")
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case resp := <-ch:
		return resp, nil
	case <-timer.C:
		return ObjectResponse{}, ErrObjectRequestTimeout
	case <-ctx.Done():
		return ObjectResponse{}, ctx.Err()
	case <-peer.Exit():
		return ObjectResponse{}, ErrConnectionClosed
	}
}

// Deliver routes an incoming ObjectResponse to whichever Request call
// (if any) is waiting on it. Called from the peer's read dispatch loop.
func (t *ObjectTracker) Deliver(resp ObjectResponse) {
	key := objectKey(resp.Kind, resp.Hash)
	t.pendingMu.Lock()
	ch, ok := t.pending[key]
	t.pendingMu.Unlock()
	if !ok {
		return
	}
	select {
	case ch <- resp:
	default:
	}
}
