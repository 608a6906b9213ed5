package p2p

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/core/mstime"
)

// HandshakeVersion is the P2P protocol version this build speaks.
const HandshakeVersion uint8 = 1

// Handshake is exchanged immediately after the Diffie-Hellman key swap
// (spec §4.7 "Connection lifecycle" step 2-3).
type Handshake struct {
	Version             uint8
	Network             string
	Tag                 string
	PeerID              uint64
	LocalPort           uint16
	Timestamp           mstime.Time
	Topoheight          uint64
	Height              uint64
	PrunedTopoheight    uint64
	TopBlockHash        block.Hash
	GenesisHash         block.Hash
	CumulativeDifficulty uint64
	Sharable            bool
}

func writeLenPrefixed(w io.Writer, s string) error {
	if len(s) > 255 {
		return errors.New("p2p: handshake string field exceeds 255 bytes")
	}
	if err := binary.Write(w, binary.BigEndian, uint8(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readLenPrefixed(r io.Reader) (string, error) {
	var n uint8
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// Encode serializes the handshake into a packet payload.
func (h *Handshake) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.BigEndian, h.Version); err != nil {
		return nil, err
	}
	if err := writeLenPrefixed(&buf, h.Network); err != nil {
		return nil, err
	}
	if err := writeLenPrefixed(&buf, h.Tag); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, h.PeerID); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, h.LocalPort); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint64(h.Timestamp.UnixMilliseconds())); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, h.Topoheight); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, h.Height); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, h.PrunedTopoheight); err != nil {
		return nil, err
	}
	if _, err := buf.Write(h.TopBlockHash[:]); err != nil {
		return nil, err
	}
	if _, err := buf.Write(h.GenesisHash[:]); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, h.CumulativeDifficulty); err != nil {
		return nil, err
	}
	sharable := uint8(0)
	if h.Sharable {
		sharable = 1
	}
	if err := binary.Write(&buf, binary.BigEndian, sharable); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// DecodeHandshake reverses Encode.
func DecodeHandshake(payload []byte) (*Handshake, error) {
	r := bytes.NewReader(payload)
	h := &Handshake{}
	if err := binary.Read(r, binary.BigEndian, &h.Version); err != nil {
		return nil, err
	}
	var err error
	if h.Network, err = readLenPrefixed(r); err != nil {
		return nil, err
	}
	if h.Tag, err = readLenPrefixed(r); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &h.PeerID); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &h.LocalPort); err != nil {
		return nil, err
	}
	var ts uint64
	if err := binary.Read(r, binary.BigEndian, &ts); err != nil {
		return nil, err
	}
	h.Timestamp = mstime.FromMilliseconds(int64(ts))
	if err := binary.Read(r, binary.BigEndian, &h.Topoheight); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &h.Height); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &h.PrunedTopoheight); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, h.TopBlockHash[:]); err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, h.GenesisHash[:]); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &h.CumulativeDifficulty); err != nil {
		return nil, err
	}
	var sharable uint8
	if err := binary.Read(r, binary.BigEndian, &sharable); err != nil {
		return nil, err
	}
	h.Sharable = sharable != 0
	return h, nil
}

// Validate checks the remote handshake against our own local context
// (spec §4.7 "Handshake rejection"). knownPeerIDs is consulted by the
// caller (PeerList) separately since it requires holding the peer-map
// lock; Validate only checks context-free invariants plus the two
// values the caller must supply (our network tag and genesis hash).
func (h *Handshake) Validate(networkTag string, genesisHash block.Hash, currentHeight uint64) error {
	if h.Network != networkTag {
		return ErrInvalidNetwork
	}
	if h.GenesisHash != genesisHash {
		return ErrInvalidGenesisHash
	}
	if h.LocalPort == 0 {
		return ErrLocalPortZero
	}
	if h.PrunedTopoheight > h.Topoheight {
		return ErrPrunedAboveTopoheight
	}
	if !versionAllowedAtHeight(h.Version, currentHeight) {
		return ErrInvalidP2PVersion
	}
	return nil
}

// versionAllowedAtHeight gates protocol versions by chain height, the
// way a hard-fork activation height would; this build is still version
// 1 everywhere, so every height is currently permissive.
func versionAllowedAtHeight(version uint8, _ uint64) bool {
	return version == HandshakeVersion
}
