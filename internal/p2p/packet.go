package p2p

import (
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/params"
)

// PacketID tags a framed packet's payload type (spec §6 "P2P packets").
type PacketID uint8

const (
	PacketHandshake PacketID = iota
	PacketKeyExchange
	PacketPing
	PacketChainRequest
	PacketChainResponse
	PacketBlockPropagation
	PacketTransactionPropagation
	PacketObjectRequest
	PacketObjectResponse
	PacketNotifyInventoryRequest
	PacketNotifyInventoryResponse
	PacketBootstrapChainRequest
	PacketBootstrapChainResponse
	PacketPeerDisconnected
)

// Frame is one decoded `[u32 length][u8 packet_id][payload]` message
// (spec §6). Length is exclusive of itself, matching the wire contract;
// it is recomputed on encode rather than trusted on decode.
type Frame struct {
	ID      PacketID
	Payload []byte
}

// WriteFrame writes f to w in the exact wire layout of spec §6: a u32
// big-endian length (1 + len(payload)), the packet id byte, then the
// payload bytes.
func WriteFrame(w io.Writer, f Frame) error {
	length := uint32(1 + len(f.Payload))
	if int(length) > params.PeerMaxPacketSize {
		return ErrPacketTooLarge
	}
	var header [5]byte
	binary.BigEndian.PutUint32(header[:4], length)
	header[4] = byte(f.ID)
	if _, err := w.Write(header[:]); err != nil {
		return errors.Wrap(err, "p2p: writing frame header")
	}
	if _, err := w.Write(f.Payload); err != nil {
		return errors.Wrap(err, "p2p: writing frame payload")
	}
	return nil
}

// ReadFrame reads one frame from r, enforcing PeerMaxPacketSize before
// allocating the payload buffer so an attacker cannot force an
// oversized allocation merely by lying about length (spec §6 "packets
// exceeding it cause the connection to be dropped").
func ReadFrame(r io.Reader) (Frame, error) {
	var header [4]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, err
	}
	length := binary.BigEndian.Uint32(header[:])
	if length == 0 {
		return Frame{}, errors.New("p2p: zero-length frame")
	}
	if int(length) > params.PeerMaxPacketSize {
		return Frame{}, ErrPacketTooLarge
	}

	var idByte [1]byte
	if _, err := io.ReadFull(r, idByte[:]); err != nil {
		return Frame{}, errors.Wrap(err, "p2p: reading packet id")
	}

	payload := make([]byte, length-1)
	if _, err := io.ReadFull(r, payload); err != nil {
		return Frame{}, errors.Wrap(err, "p2p: reading frame payload")
	}
	return Frame{ID: PacketID(idByte[0]), Payload: payload}, nil
}
