package p2p

import "github.com/pkg/errors"

// ValidationCode enumerates the peer-level validation failures of spec
// §7 that are relevant to the P2P layer (the DAG/tx-specific codes live
// closer to internal/consensus and internal/executor). A ValidationError
// both rejects the offending packet and increments the peer's fail
// counter (spec §7 "Peer-level errors increment a per-peer fail
// counter").
type ValidationCode uint8

const (
	CodeInvalidNetwork ValidationCode = iota
	CodeInvalidGenesisHash
	CodePeerIDAlreadyUsed
	CodeExpectedHandshake
	CodeInvalidP2PVersion
	CodeMalformedChainRequest
	CodeInvalidPeerlist
	CodePrunedAboveTopoheight
	CodeLocalPortZero
	CodePacketTooLarge
)

// ValidationError is a peer-level rule violation (spec §7 "Validation
// errors (reject the object, penalise the sender peer)").
type ValidationError struct {
	Code ValidationCode
	msg  string
}

func (e *ValidationError) Error() string { return e.msg }

func newValidationError(code ValidationCode, msg string) *ValidationError {
	return &ValidationError{Code: code, msg: msg}
}

var (
	ErrInvalidNetwork         = newValidationError(CodeInvalidNetwork, "p2p: network tag mismatch")
	ErrInvalidGenesisHash     = newValidationError(CodeInvalidGenesisHash, "p2p: genesis hash mismatch")
	ErrPeerIDAlreadyUsed      = newValidationError(CodePeerIDAlreadyUsed, "p2p: peer id already in use")
	ErrExpectedHandshake      = newValidationError(CodeExpectedHandshake, "p2p: first packet must be a handshake")
	ErrInvalidP2PVersion      = newValidationError(CodeInvalidP2PVersion, "p2p: version not allowed at current height")
	ErrMalformedChainRequest  = newValidationError(CodeMalformedChainRequest, "p2p: malformed chain request")
	ErrInvalidPeerlist        = newValidationError(CodeInvalidPeerlist, "p2p: invalid peer list")
	ErrPrunedAboveTopoheight  = newValidationError(CodePrunedAboveTopoheight, "p2p: pruned_topoheight exceeds topoheight")
	ErrLocalPortZero          = newValidationError(CodeLocalPortZero, "p2p: local_port must be non-zero")
	ErrPacketTooLarge         = newValidationError(CodePacketTooLarge, "p2p: packet exceeds PeerMaxPacketSize")
	ErrUnknownPacketID        = errors.New("p2p: unknown packet id")
	ErrConnectionClosed       = errors.New("p2p: connection closed")
	ErrPeerNotFound           = errors.New("p2p: peer not found")
	ErrPeerTemporarilyBanned  = errors.New("p2p: peer is temp-banned")
	ErrNoSuitableSyncPeer     = errors.New("p2p: no peer with greater cumulative difficulty to sync from")
	ErrObjectRequestTimeout   = errors.New("p2p: object request timed out")
)
