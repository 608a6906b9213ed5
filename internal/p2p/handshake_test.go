package p2p

import (
	"testing"

	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/core/mstime"
)

func testHandshake() *Handshake {
	return &Handshake{
		Version:              HandshakeVersion,
		Network:              "terminos-testnet",
		Tag:                  "terminosd",
		PeerID:               42,
		LocalPort:            9090,
		Timestamp:            mstime.Now(),
		Topoheight:           10,
		Height:               10,
		PrunedTopoheight:     0,
		TopBlockHash:         block.Hash{1, 2, 3},
		GenesisHash:          block.Hash{9, 9, 9},
		CumulativeDifficulty: 1000,
		Sharable:             true,
	}
}

func TestHandshakeEncodeDecodeRoundTrip(t *testing.T) {
	want := testHandshake()
	payload, err := want.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeHandshake(payload)
	if err != nil {
		t.Fatalf("DecodeHandshake: %v", err)
	}
	if got.Network != want.Network || got.Tag != want.Tag || got.PeerID != want.PeerID ||
		got.LocalPort != want.LocalPort || got.Topoheight != want.Topoheight ||
		got.TopBlockHash != want.TopBlockHash || got.GenesisHash != want.GenesisHash ||
		got.CumulativeDifficulty != want.CumulativeDifficulty || got.Sharable != want.Sharable {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestHandshakeValidateRejectsNetworkMismatch(t *testing.T) {
	h := testHandshake()
	if err := h.Validate("some-other-network", h.GenesisHash, h.Topoheight); err != ErrInvalidNetwork {
		t.Fatalf("expected ErrInvalidNetwork, got %v", err)
	}
}

func TestHandshakeValidateRejectsGenesisMismatch(t *testing.T) {
	h := testHandshake()
	if err := h.Validate(h.Network, block.Hash{0xff}, h.Topoheight); err != ErrInvalidGenesisHash {
		t.Fatalf("expected ErrInvalidGenesisHash, got %v", err)
	}
}

func TestHandshakeValidateRejectsZeroPort(t *testing.T) {
	h := testHandshake()
	h.LocalPort = 0
	if err := h.Validate(h.Network, h.GenesisHash, h.Topoheight); err != ErrLocalPortZero {
		t.Fatalf("expected ErrLocalPortZero, got %v", err)
	}
}

func TestHandshakeValidateRejectsPrunedAboveTopoheight(t *testing.T) {
	h := testHandshake()
	h.PrunedTopoheight = h.Topoheight + 1
	if err := h.Validate(h.Network, h.GenesisHash, h.Topoheight); err != ErrPrunedAboveTopoheight {
		t.Fatalf("expected ErrPrunedAboveTopoheight, got %v", err)
	}
}

func TestHandshakeValidateAccepts(t *testing.T) {
	h := testHandshake()
	if err := h.Validate(h.Network, h.GenesisHash, h.Topoheight); err != nil {
		t.Fatalf("expected valid handshake to be accepted, got %v", err)
	}
}
