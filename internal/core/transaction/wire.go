package transaction

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/crypto"
)

// Transaction wire format (spec §6 "Transaction wire format"): version
// (u8), source (32B), payload tag (u8) + payload, fee (u64), fee_type
// (u8), nonce (u64), reference (32B hash + u64 topoheight),
// source-commitment count (u8) + entries, range proof (length-prefixed),
// multisig flag (u8) + optional signatures, signature (64B). All
// multi-byte integers are big-endian, via explicit byte-order
// Serialize/Deserialize pairs rather than encoding/gob or reflection.

// Encode returns tx's canonical serialisation. When signed is false the
// trailing 64-byte Signature field is omitted, producing the exact bytes
// the ed25519-style signature is computed over (spec §4.2 step 8).
func (tx *Transaction) Encode(signed bool) ([]byte, error) {
	var buf bytes.Buffer
	if err := writeUint8(&buf, tx.Version); err != nil {
		return nil, err
	}
	buf.Write(tx.Source.Encode())

	if err := writePayload(&buf, tx.Payload); err != nil {
		return nil, err
	}
	if err := writeUint64(&buf, tx.Fee); err != nil {
		return nil, err
	}
	if err := writeUint8(&buf, uint8(tx.FeeType)); err != nil {
		return nil, err
	}
	if err := writeUint64(&buf, tx.Nonce); err != nil {
		return nil, err
	}
	buf.Write(tx.Reference.BlockHash[:])
	if err := writeUint64(&buf, tx.Reference.Topoheight); err != nil {
		return nil, err
	}

	if err := writeUint8(&buf, uint8(len(tx.SourceCommitments))); err != nil {
		return nil, err
	}
	for _, sc := range tx.SourceCommitments {
		buf.Write(sc.Asset[:])
		buf.Write(sc.Commitment.Encode())
		writeCommitmentEqProof(&buf, sc.Proof)
	}

	rangeProofBytes := encodeRangeProof(tx.RangeProof)
	if err := writeUint32(&buf, uint32(len(rangeProofBytes))); err != nil {
		return nil, err
	}
	buf.Write(rangeProofBytes)

	if len(tx.MultiSigSigs) == 0 {
		if err := writeUint8(&buf, 0); err != nil {
			return nil, err
		}
	} else {
		if err := writeUint8(&buf, 1); err != nil {
			return nil, err
		}
		if err := writeUint8(&buf, uint8(len(tx.MultiSigSigs))); err != nil {
			return nil, err
		}
		for _, sig := range tx.MultiSigSigs {
			buf.Write(sig.Signature[:])
			if err := writeUint8(&buf, sig.SignerIndex); err != nil {
				return nil, err
			}
		}
	}

	if signed {
		buf.Write(tx.Signature[:])
	}
	return buf.Bytes(), nil
}

// Size returns the exact signed wire size, the value the fee calculators
// take as their size parameter (spec §4.2 step 3).
func (tx *Transaction) Size() (int, error) {
	b, err := tx.Encode(true)
	if err != nil {
		return 0, err
	}
	return len(b), nil
}

// Decode parses a transaction previously produced by Encode(true).
func Decode(data []byte) (*Transaction, error) {
	r := bytes.NewReader(data)
	tx := &Transaction{}

	version, err := readUint8(r)
	if err != nil {
		return nil, errors.Wrap(err, "transaction: reading version")
	}
	tx.Version = version

	sourceBytes := make([]byte, crypto.PointSize)
	if _, err := io.ReadFull(r, sourceBytes); err != nil {
		return nil, errors.Wrap(err, "transaction: reading source")
	}
	source, err := crypto.DecodePublicKey(sourceBytes)
	if err != nil {
		return nil, errors.Wrap(err, "transaction: decoding source")
	}
	tx.Source = source

	payload, err := readPayload(r)
	if err != nil {
		return nil, errors.Wrap(err, "transaction: reading payload")
	}
	tx.Payload = payload

	if tx.Fee, err = readUint64(r); err != nil {
		return nil, errors.Wrap(err, "transaction: reading fee")
	}
	feeType, err := readUint8(r)
	if err != nil {
		return nil, errors.Wrap(err, "transaction: reading fee_type")
	}
	tx.FeeType = FeeType(feeType)
	if tx.Nonce, err = readUint64(r); err != nil {
		return nil, errors.Wrap(err, "transaction: reading nonce")
	}
	if _, err := io.ReadFull(r, tx.Reference.BlockHash[:]); err != nil {
		return nil, errors.Wrap(err, "transaction: reading reference hash")
	}
	if tx.Reference.Topoheight, err = readUint64(r); err != nil {
		return nil, errors.Wrap(err, "transaction: reading reference topoheight")
	}

	scCount, err := readUint8(r)
	if err != nil {
		return nil, errors.Wrap(err, "transaction: reading source-commitment count")
	}
	for i := 0; i < int(scCount); i++ {
		var sc SourceCommitment
		if _, err := io.ReadFull(r, sc.Asset[:]); err != nil {
			return nil, errors.Wrap(err, "transaction: reading source-commitment asset")
		}
		commitmentBytes := make([]byte, crypto.PointSize)
		if _, err := io.ReadFull(r, commitmentBytes); err != nil {
			return nil, errors.Wrap(err, "transaction: reading source-commitment point")
		}
		commitment, err := crypto.DecodeCommitment(commitmentBytes)
		if err != nil {
			return nil, errors.Wrap(err, "transaction: decoding source-commitment point")
		}
		sc.Commitment = commitment
		proof, err := readCommitmentEqProof(r)
		if err != nil {
			return nil, errors.Wrap(err, "transaction: reading commitment-eq proof")
		}
		sc.Proof = proof
		tx.SourceCommitments = append(tx.SourceCommitments, sc)
	}

	rpLen, err := readUint32(r)
	if err != nil {
		return nil, errors.Wrap(err, "transaction: reading range proof length")
	}
	rpBytes := make([]byte, rpLen)
	if _, err := io.ReadFull(r, rpBytes); err != nil {
		return nil, errors.Wrap(err, "transaction: reading range proof")
	}
	rangeProof, err := decodeRangeProof(rpBytes)
	if err != nil {
		return nil, errors.Wrap(err, "transaction: decoding range proof")
	}
	tx.RangeProof = rangeProof

	multiSigFlag, err := readUint8(r)
	if err != nil {
		return nil, errors.Wrap(err, "transaction: reading multisig flag")
	}
	if multiSigFlag == 1 {
		count, err := readUint8(r)
		if err != nil {
			return nil, errors.Wrap(err, "transaction: reading multisig signature count")
		}
		for i := 0; i < int(count); i++ {
			var sig MultiSigSignature
			if _, err := io.ReadFull(r, sig.Signature[:]); err != nil {
				return nil, errors.Wrap(err, "transaction: reading multisig signature")
			}
			signerIndex, err := readUint8(r)
			if err != nil {
				return nil, errors.Wrap(err, "transaction: reading multisig signer index")
			}
			sig.SignerIndex = signerIndex
			tx.MultiSigSigs = append(tx.MultiSigSigs, sig)
		}
	}

	if _, err := io.ReadFull(r, tx.Signature[:]); err != nil {
		return nil, errors.Wrap(err, "transaction: reading signature")
	}
	return tx, nil
}

func writeUint8(w io.Writer, v uint8) error  { return binary.Write(w, binary.BigEndian, v) }
func writeUint32(w io.Writer, v uint32) error { return binary.Write(w, binary.BigEndian, v) }
func writeUint64(w io.Writer, v uint64) error { return binary.Write(w, binary.BigEndian, v) }

func readUint8(r io.Reader) (uint8, error) {
	var v uint8
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func readUint32(r io.Reader) (uint32, error) {
	var v uint32
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}

func readUint64(r io.Reader) (uint64, error) {
	var v uint64
	err := binary.Read(r, binary.BigEndian, &v)
	return v, err
}
