package p2p

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/params"
)

// NotifyInventoryRequest asks a peer for one page of its mempool
// transaction hashes (spec §4.7 "Inventory"). Cursor is nil for the
// first page.
type NotifyInventoryRequest struct {
	Cursor *[32]byte
}

func (r NotifyInventoryRequest) Encode() []byte {
	if r.Cursor == nil {
		return []byte{0}
	}
	out := make([]byte, 1+32)
	out[0] = 1
	copy(out[1:], r.Cursor[:])
	return out
}

func DecodeNotifyInventoryRequest(b []byte) (NotifyInventoryRequest, error) {
	if len(b) == 0 {
		return NotifyInventoryRequest{}, errors.New("p2p: empty inventory request")
	}
	if b[0] == 0 {
		return NotifyInventoryRequest{}, nil
	}
	if len(b) != 33 {
		return NotifyInventoryRequest{}, errors.New("p2p: malformed inventory request cursor")
	}
	var cursor [32]byte
	copy(cursor[:], b[1:])
	return NotifyInventoryRequest{Cursor: &cursor}, nil
}

// NotifyInventoryResponse is one page of up to NOTIFY_MAX_LEN
// transaction hashes, plus an optional cursor for the next page (spec
// §4.7 "request->response pages of up to NOTIFY_MAX_LEN TX hashes with
// an optional next-page cursor").
type NotifyInventoryResponse struct {
	Hashes     [][32]byte
	NextCursor *[32]byte
}

func (r NotifyInventoryResponse) Encode() ([]byte, error) {
	if len(r.Hashes) > params.NotifyMaxLen {
		return nil, errors.Errorf("p2p: inventory response exceeds NotifyMaxLen (%d)", params.NotifyMaxLen)
	}
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(r.Hashes))); err != nil {
		return nil, err
	}
	for _, h := range r.Hashes {
		if _, err := buf.Write(h[:]); err != nil {
			return nil, err
		}
	}
	if r.NextCursor == nil {
		buf.WriteByte(0)
	} else {
		buf.WriteByte(1)
		buf.Write(r.NextCursor[:])
	}
	return buf.Bytes(), nil
}

func DecodeNotifyInventoryResponse(b []byte) (NotifyInventoryResponse, error) {
	r := bytes.NewReader(b)
	var count uint16
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return NotifyInventoryResponse{}, err
	}
	if int(count) > params.NotifyMaxLen {
		return NotifyInventoryResponse{}, errors.Errorf("p2p: inventory response claims %d hashes, exceeds NotifyMaxLen", count)
	}
	resp := NotifyInventoryResponse{Hashes: make([][32]byte, count)}
	for i := range resp.Hashes {
		if _, err := io.ReadFull(r, resp.Hashes[i][:]); err != nil {
			return NotifyInventoryResponse{}, err
		}
	}
	hasCursor, err := r.ReadByte()
	if err != nil {
		return NotifyInventoryResponse{}, err
	}
	if hasCursor != 0 {
		var cursor [32]byte
		if _, err := io.ReadFull(r, cursor[:]); err != nil {
			return NotifyInventoryResponse{}, err
		}
		resp.NextCursor = &cursor
	}
	return resp, nil
}

// InventoryPager paginates a source of transaction hashes (the local
// mempool) into NotifyInventoryResponse pages, keyed by the requested
// cursor (spec §4.7 "Inventory").
type InventoryPager struct {
	// AllHashes returns every mempool-resident transaction hash in a
	// stable order, called fresh for each page request since the
	// mempool mutates between pages.
	AllHashes func() [][32]byte
}

// Page returns the page starting after cursor (nil for the first
// page).
func (p InventoryPager) Page(cursor *[32]byte) NotifyInventoryResponse {
	all := p.AllHashes()
	start := 0
	if cursor != nil {
		for i, h := range all {
			if h == *cursor {
				start = i + 1
				break
			}
		}
	}
	end := start + params.NotifyMaxLen
	if end > len(all) {
		end = len(all)
	}
	page := all[start:end]
	resp := NotifyInventoryResponse{Hashes: append([][32]byte{}, page...)}
	if end < len(all) {
		next := all[end-1]
		resp.NextCursor = &next
	}
	return resp
}
