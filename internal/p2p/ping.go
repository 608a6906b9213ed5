package p2p

import (
	"bytes"
	"encoding/binary"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/core/block"
	"github.com/terminos-network/terminos/internal/params"
)

// PeerAddress is one entry of a Ping's optional peer list.
type PeerAddress struct {
	Host  string
	Port  uint16
	Local bool
}

// Ping is the payload of PacketPing (spec §4.7 "Ping"): the sender's
// current tip claim, plus a bounded peer address list sent only every
// P2P_PING_PEER_LIST_DELAY seconds.
type Ping struct {
	TopHash              block.Hash
	Topoheight           uint64
	Height               uint64
	PrunedTopoheight     uint64
	CumulativeDifficulty uint64
	Peers                []PeerAddress // nil unless this is a peer-list ping
}

func (p Ping) Encode() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := buf.Write(p.TopHash[:]); err != nil {
		return nil, err
	}
	for _, v := range []uint64{p.Topoheight, p.Height, p.PrunedTopoheight, p.CumulativeDifficulty} {
		if err := binary.Write(&buf, binary.BigEndian, v); err != nil {
			return nil, err
		}
	}
	if len(p.Peers) > params.MaxPeerListAddresses {
		return nil, errors.Errorf("p2p: ping peer list exceeds %d entries", params.MaxPeerListAddresses)
	}
	if err := binary.Write(&buf, binary.BigEndian, uint8(len(p.Peers))); err != nil {
		return nil, err
	}
	for _, addr := range p.Peers {
		if err := writeLenPrefixed(&buf, addr.Host); err != nil {
			return nil, err
		}
		if err := binary.Write(&buf, binary.BigEndian, addr.Port); err != nil {
			return nil, err
		}
		local := uint8(0)
		if addr.Local {
			local = 1
		}
		if err := binary.Write(&buf, binary.BigEndian, local); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func DecodePing(payload []byte) (Ping, error) {
	r := bytes.NewReader(payload)
	var p Ping
	if _, err := io.ReadFull(r, p.TopHash[:]); err != nil {
		return Ping{}, err
	}
	for _, dst := range []*uint64{&p.Topoheight, &p.Height, &p.PrunedTopoheight, &p.CumulativeDifficulty} {
		if err := binary.Read(r, binary.BigEndian, dst); err != nil {
			return Ping{}, err
		}
	}
	var count uint8
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		return Ping{}, err
	}
	p.Peers = make([]PeerAddress, count)
	for i := range p.Peers {
		host, err := readLenPrefixed(r)
		if err != nil {
			return Ping{}, err
		}
		var port uint16
		if err := binary.Read(r, binary.BigEndian, &port); err != nil {
			return Ping{}, err
		}
		var local uint8
		if err := binary.Read(r, binary.BigEndian, &local); err != nil {
			return Ping{}, err
		}
		p.Peers[i] = PeerAddress{Host: host, Port: port, Local: local != 0}
	}
	return p, nil
}

// FilterPeerList scopes the outgoing peer address list so local
// addresses are never sent to non-local peers and vice versa (spec
// §4.7 "Ping").
func FilterPeerList(all []PeerAddress, recipientIsLocal bool) []PeerAddress {
	out := make([]PeerAddress, 0, len(all))
	for _, a := range all {
		if a.Local == recipientIsLocal {
			out = append(out, a)
		}
	}
	if len(out) > params.MaxPeerListAddresses {
		out = out[:params.MaxPeerListAddresses]
	}
	return out
}

// PingDelay and PingPeerListDelay expose params.P2PPingDelaySeconds and
// params.P2PPingPeerListDelaySeconds as time.Durations for callers
// wiring tickers.
func PingDelay() time.Duration         { return time.Duration(params.P2PPingDelaySeconds) * time.Second }
func PingPeerListDelay() time.Duration { return time.Duration(params.P2PPingPeerListDelaySeconds) * time.Second }
func PingTimeout() time.Duration       { return time.Duration(params.P2PPingTimeoutSeconds) * time.Second }

// PingLoop sends a Ping to peer every PingDelay, including a (filtered)
// peer list every PingPeerListDelay, until peer's exit channel fires
// (spec §4.7 "Ping"; spec §5 "one ping" long-lived task per peer).
func PingLoop(peer *Peer, localAddresses, remoteAddresses []PeerAddress, tip func() Ping, recipientIsLocal bool) {
	ticker := time.NewTicker(PingDelay())
	defer ticker.Stop()
	peerListTicker := time.NewTicker(PingPeerListDelay())
	defer peerListTicker.Stop()

	for {
		select {
		case <-ticker.C:
			ping := tip()
			payload, err := ping.Encode()
			if err != nil {
				log.Warnf("p2p: encoding ping for peer %d: %s", peer.ID, err)
				continue
			}
			peer.Send(Frame{ID: PacketPing, Payload: payload})
		case <-peerListTicker.C:
			ping := tip()
			all := localAddresses
			if !recipientIsLocal {
				all = remoteAddresses
			}
			ping.Peers = FilterPeerList(all, recipientIsLocal)
			payload, err := ping.Encode()
			if err != nil {
				log.Warnf("p2p: encoding peer-list ping for peer %d: %s", peer.ID, err)
				continue
			}
			peer.Send(Frame{ID: PacketPing, Payload: payload})
		case <-peer.Exit():
			return
		}
	}
}
