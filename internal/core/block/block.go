// Package block defines the BlockDAG's header and block wire types (spec
// §3 "Block", §6 "Block wire format"). It sits below internal/consensus
// and internal/storage so neither has to import the other just to share
// this type.
package block

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
	"golang.org/x/crypto/blake2b"

	"github.com/terminos-network/terminos/internal/crypto"
	"github.com/terminos-network/terminos/internal/params"
)

// Hash is a block's content hash (blake2b-256 of its serialised header),
// used as the DAG's node identity everywhere (tips, reachability,
// storage keys).
type Hash [32]byte

// Header is a block's fixed-size metadata (spec §3 "Block").
type Header struct {
	Version     uint8
	Height      uint64
	TimestampMS uint64
	Tips        []Hash // ordered, len <= params.TipsLimit
	ExtraNonce  [32]byte
	Miner       crypto.PublicKey
	TxHashes    []Hash // ordered set of this block's transaction hashes
}

// Block is a header plus its full transactions, keyed by TxHashes[i].
// The generic transaction payload type is left to callers (executor,
// p2p) via TxData; this package only needs the header shape to
// compute hashes and enforce structural invariants.
type Block struct {
	Header Header
	TxData [][]byte // canonical transaction.Encode(true) bytes, same order as Header.TxHashes
}

// Serialize writes the header in the exact wire layout of spec §6: u8
// version, u64 BE height, u64 BE timestamp_ms, u8 tip count + tip
// hashes, 32B extra_nonce, 32B miner key, u16 BE tx-hash count + tx
// hashes.
func (h *Header) Serialize(w io.Writer) error {
	if len(h.Tips) > params.TipsLimit {
		return errors.Errorf("block: %d tips exceeds TipsLimit %d", len(h.Tips), params.TipsLimit)
	}
	if err := binary.Write(w, binary.BigEndian, h.Version); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, h.Height); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, h.TimestampMS); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint8(len(h.Tips))); err != nil {
		return err
	}
	for _, tip := range h.Tips {
		if _, err := w.Write(tip[:]); err != nil {
			return err
		}
	}
	if _, err := w.Write(h.ExtraNonce[:]); err != nil {
		return err
	}
	if _, err := w.Write(h.Miner.Encode()); err != nil {
		return err
	}
	if err := binary.Write(w, binary.BigEndian, uint16(len(h.TxHashes))); err != nil {
		return err
	}
	for _, txHash := range h.TxHashes {
		if _, err := w.Write(txHash[:]); err != nil {
			return err
		}
	}
	return nil
}

// Deserialize reverses Serialize.
func (h *Header) Deserialize(r io.Reader) error {
	if err := binary.Read(r, binary.BigEndian, &h.Version); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &h.Height); err != nil {
		return err
	}
	if err := binary.Read(r, binary.BigEndian, &h.TimestampMS); err != nil {
		return err
	}
	var tipCount uint8
	if err := binary.Read(r, binary.BigEndian, &tipCount); err != nil {
		return err
	}
	h.Tips = make([]Hash, tipCount)
	for i := range h.Tips {
		if _, err := io.ReadFull(r, h.Tips[i][:]); err != nil {
			return err
		}
	}
	if _, err := io.ReadFull(r, h.ExtraNonce[:]); err != nil {
		return err
	}
	minerBytes := make([]byte, crypto.PointSize)
	if _, err := io.ReadFull(r, minerBytes); err != nil {
		return err
	}
	miner, err := crypto.DecodePublicKey(minerBytes)
	if err != nil {
		return errors.Wrap(err, "block: decoding miner key")
	}
	h.Miner = miner

	var txCount uint16
	if err := binary.Read(r, binary.BigEndian, &txCount); err != nil {
		return err
	}
	h.TxHashes = make([]Hash, txCount)
	for i := range h.TxHashes {
		if _, err := io.ReadFull(r, h.TxHashes[i][:]); err != nil {
			return err
		}
	}
	return nil
}

// ComputeHash returns the blake2b-256 hash of the header's serialisation,
// this block's identity throughout the DAG engine and storage layer.
func (h *Header) ComputeHash() (Hash, error) {
	var buf bytes.Buffer
	if err := h.Serialize(&buf); err != nil {
		return Hash{}, err
	}
	return blake2b.Sum256(buf.Bytes()), nil
}

// ValidateShape checks the structural invariants of spec §3 that don't
// require DAG context (tip count, tip hash uniqueness, tx-hash count
// against MaxTxCountPerBlock). It sees only the header, so it does not
// compare TxHashes against a block's TxData. Height/timestamp/reachability/size invariants are
// checked by internal/consensus, which has the context to do so.
func (h *Header) ValidateShape() error {
	if len(h.Tips) > params.TipsLimit {
		return errors.Errorf("block: %d tips exceeds limit %d", len(h.Tips), params.TipsLimit)
	}
	seen := make(map[Hash]bool, len(h.Tips))
	for _, tip := range h.Tips {
		if seen[tip] {
			return errors.New("block: duplicate tip hash")
		}
		seen[tip] = true
	}
	if len(h.TxHashes) > params.MaxTxCountPerBlock {
		return errors.Errorf("block: %d transactions exceeds limit %d", len(h.TxHashes), params.MaxTxCountPerBlock)
	}
	return nil
}

// Size returns the full block's wire size (header plus length-prefixed
// transactions), checked against params.MaxBlockSize.
func (b *Block) Size() (int, error) {
	var buf bytes.Buffer
	if err := b.Header.Serialize(&buf); err != nil {
		return 0, err
	}
	total := buf.Len()
	for _, tx := range b.TxData {
		total += 4 + len(tx)
	}
	return total, nil
}
