package p2p

import (
	"bytes"
	"encoding/binary"
	"io"
	"math/rand"
	"time"

	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/params"
)

// BlockID pairs a topoheight with the hash our own chain has at that
// topoheight, one entry of a ChainRequest's block-id list (spec §4.7
// "Normal sync").
type BlockID struct {
	Topoheight uint64
	Hash       block.Hash
}

// BuildBlockIDList produces the descending, exponentially-spaced
// topoheight list of spec §4.7/§8 scenario 6: the first
// CHAIN_SYNC_REQUEST_EXPONENTIAL_INDEX_START entries step by 1 from
// topHeight, after which the step doubles each entry, always ending at
// genesis (topoheight 0). limit bounds the number of entries before that
// closing genesis entry, so up to limit+1 come back (0 means unbounded).
func BuildBlockIDList(topHeight uint64, limit int) []uint64 {
	heights := make([]uint64, 0)
	h := topHeight
	step := uint64(1)
	for i := 0; ; i++ {
		heights = append(heights, h)
		if h == 0 {
			break
		}
		if i+1 >= params.ChainSyncRequestExponentialIndexStart {
			step *= 2
		}
		if step > h {
			h = 0
		} else {
			h -= step
		}
		if limit > 0 && len(heights) >= limit {
			if heights[len(heights)-1] != 0 {
				heights = append(heights, 0)
			}
			break
		}
	}
	return heights
}

// ChainRequest is the payload of PacketChainRequest.
type ChainRequest struct {
	BlockIDs []BlockID
}

func (r ChainRequest) Encode() ([]byte, error) {
	if len(r.BlockIDs) == 0 || len(r.BlockIDs) > params.MaxChainResponseSize {
		return nil, ErrMalformedChainRequest
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(r.BlockIDs))); err != nil {
		return nil, err
	}
	for _, id := range r.BlockIDs {
		if err := binary.Write(&buf, binary.BigEndian, id.Topoheight); err != nil {
			return nil, err
		}
		if _, err := buf.Write(id.Hash[:]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func DecodeChainRequest(b []byte) (ChainRequest, error) {
	r := bytes.NewReader(b)
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return ChainRequest{}, err
	}
	if count == 0 || int(count) > params.MaxChainResponseSize {
		return ChainRequest{}, ErrMalformedChainRequest
	}
	ids := make([]BlockID, count)
	for i := range ids {
		if err := binary.Read(r, binary.BigEndian, &ids[i].Topoheight); err != nil {
			return ChainRequest{}, err
		}
		if _, err := io.ReadFull(r, ids[i].Hash[:]); err != nil {
			return ChainRequest{}, err
		}
	}
	return ChainRequest{BlockIDs: ids}, nil
}

// ChainResponse is the payload of PacketChainResponse: either a common
// point plus the next blocks after it, or a rejection (spec §4.7
// "Peer answers with either a CommonPoint plus the next up-to-
// max_chain_response_size block hashes, or refuses the list as
// malformed").
type ChainResponse struct {
	Rejected     bool
	CommonPoint  BlockID
	BlockHashes  []block.Hash
}

func (r ChainResponse) Encode() ([]byte, error) {
	var buf bytes.Buffer
	rejected := uint8(0)
	if r.Rejected {
		rejected = 1
	}
	if err := binary.Write(&buf, binary.BigEndian, rejected); err != nil {
		return nil, err
	}
	if r.Rejected {
		return buf.Bytes(), nil
	}
	if err := binary.Write(&buf, binary.BigEndian, r.CommonPoint.Topoheight); err != nil {
		return nil, err
	}
	if _, err := buf.Write(r.CommonPoint.Hash[:]); err != nil {
		return nil, err
	}
	if len(r.BlockHashes) > params.MaxChainResponseSize {
		return nil, errors.Errorf("p2p: chain response exceeds MaxChainResponseSize (%d)", params.MaxChainResponseSize)
	}
	if err := binary.Write(&buf, binary.BigEndian, uint32(len(r.BlockHashes))); err != nil {
		return nil, err
	}
	for _, h := range r.BlockHashes {
		if _, err := buf.Write(h[:]); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func DecodeChainResponse(b []byte) (ChainResponse, error) {
	r := bytes.NewReader(b)
	var rejected uint8
	if err := binary.Read(r, binary.BigEndian, &rejected); err != nil {
		return ChainResponse{}, err
	}
	if rejected != 0 {
		return ChainResponse{Rejected: true}, nil
	}
	var resp ChainResponse
	if err := binary.Read(r, binary.BigEndian, &resp.CommonPoint.Topoheight); err != nil {
		return ChainResponse{}, err
	}
	if _, err := io.ReadFull(r, resp.CommonPoint.Hash[:]); err != nil {
		return ChainResponse{}, err
	}
	var count uint32
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return ChainResponse{}, err
	}
	if int(count) > params.MaxChainResponseSize {
		return ChainResponse{}, errors.New("p2p: chain response claims too many hashes")
	}
	resp.BlockHashes = make([]block.Hash, count)
	for i := range resp.BlockHashes {
		if _, err := io.ReadFull(r, resp.BlockHashes[i][:]); err != nil {
			return ChainResponse{}, err
		}
	}
	return resp, nil
}

// BootstrapChainRequest asks a far-ahead peer for the full encrypted
// state at a chosen stable topoheight (spec §4.7 "Fast sync
// (bootstrap)").
type BootstrapChainRequest struct {
	Topoheight uint64
}

// BootstrapChainResponse carries one page of bootstrap state; a real
// wire encoding would page assets/accounts/contracts, elided here since
// the page contents are owned by internal/storage's backend, not by
// this package.
type BootstrapChainResponse struct {
	Topoheight uint64
	Done       bool
	Page       []byte
}

// SelectSyncPeer picks a random peer from candidates, matching spec
// §4.7's "Selects a random peer" without favoring any one candidate.
func SelectSyncPeer(candidates []*Peer) *Peer {
	if len(candidates) == 0 {
		return nil
	}
	return candidates[rand.Intn(len(candidates))]
}

// ShouldFastSync reports whether peer is far enough ahead of us to
// prefer bootstrap sync over normal sync (spec §4.7 "Fast sync
// (bootstrap). Only for peers >= CHAIN_SYNC_RESPONSE_MAX_BLOCKS
// ahead").
func ShouldFastSync(ourTopoheight uint64, peerTopoheight uint64, allowFastSync bool) bool {
	if !allowFastSync {
		return false
	}
	return peerTopoheight >= ourTopoheight+params.ChainSyncResponseMaxBlocks
}

// ChainSyncDelay exposes params.ChainSyncDelaySeconds as a
// time.Duration, and ChainSyncRequestMinInterval is the per-peer rate
// limit of spec §5 ("at most once per CHAIN_SYNC_DELAY x 2/3 per
// peer").
func ChainSyncDelay() time.Duration {
	return time.Duration(params.ChainSyncDelaySeconds) * time.Second
}

func ChainSyncRequestMinInterval() time.Duration {
	return ChainSyncDelay() * 2 / 3
}
