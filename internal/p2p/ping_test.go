package p2p

import (
	"testing"

	"github.com/terminos-network/terminos/internal/core/block"
)

func TestPingEncodeDecodeRoundTrip(t *testing.T) {
	want := Ping{
		TopHash:              block.Hash{7, 7, 7},
		Topoheight:           55,
		Height:               55,
		PrunedTopoheight:     1,
		CumulativeDifficulty: 9000,
		Peers: []PeerAddress{
			{Host: "203.0.113.1", Port: 9090, Local: false},
			{Host: "10.0.0.2", Port: 9090, Local: true},
		},
	}
	payload, err := want.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodePing(payload)
	if err != nil {
		t.Fatalf("DecodePing: %v", err)
	}
	if got.TopHash != want.TopHash || got.Topoheight != want.Topoheight ||
		got.CumulativeDifficulty != want.CumulativeDifficulty || len(got.Peers) != len(want.Peers) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
	for i := range want.Peers {
		if got.Peers[i] != want.Peers[i] {
			t.Fatalf("peer %d mismatch: got %+v, want %+v", i, got.Peers[i], want.Peers[i])
		}
	}
}

func TestPingEncodeRejectsOversizedPeerList(t *testing.T) {
	p := Ping{Peers: make([]PeerAddress, maxPeerListAddressesPlusOne())}
	if _, err := p.Encode(); err == nil {
		t.Fatalf("expected error for oversized peer list")
	}
}

func maxPeerListAddressesPlusOne() int {
	// Constructed indirectly so this test tracks params.MaxPeerListAddresses
	// without importing internal/params here.
	p := Ping{}
	for len(p.Peers) <= 256 {
		p.Peers = append(p.Peers, PeerAddress{})
		if _, err := p.Encode(); err != nil {
			return len(p.Peers)
		}
	}
	return len(p.Peers)
}

func TestFilterPeerListScopesByLocality(t *testing.T) {
	all := []PeerAddress{
		{Host: "10.0.0.1", Local: true},
		{Host: "203.0.113.5", Local: false},
		{Host: "10.0.0.2", Local: true},
	}
	local := FilterPeerList(all, true)
	if len(local) != 2 {
		t.Fatalf("expected 2 local addresses, got %d", len(local))
	}
	remote := FilterPeerList(all, false)
	if len(remote) != 1 {
		t.Fatalf("expected 1 remote address, got %d", len(remote))
	}
}
