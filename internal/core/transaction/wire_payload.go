package transaction

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/crypto"
)

// writePayload encodes the payload tag (u8) followed by the
// tagged-union body (spec §6).
func writePayload(w *bytes.Buffer, p Payload) error {
	if err := writeUint8(w, uint8(p.Kind())); err != nil {
		return err
	}
	switch payload := p.(type) {
	case TransferPayload:
		return writeTransferPayload(w, payload)
	case BurnPayload:
		w.Write(payload.Asset[:])
		return writeUint64(w, payload.Amount)
	case MultiSigPayload:
		return writeMultiSigPayload(w, payload)
	case InvokeContractPayload:
		return writeInvokePayload(w, payload)
	case DeployContractPayload:
		return writeDeployPayload(w, payload)
	case EnergyFreezePayload:
		if err := writeUint64(w, payload.Amount); err != nil {
			return err
		}
		return writeUint8(w, uint8(payload.Duration))
	case EnergyUnfreezePayload:
		return writeUint64(w, payload.Amount)
	default:
		return errors.Errorf("transaction: unknown payload kind %T", p)
	}
}

func readPayload(r io.Reader) (Payload, error) {
	tag, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	switch PayloadKind(tag) {
	case PayloadTransfer:
		return readTransferPayload(r)
	case PayloadBurn:
		var p BurnPayload
		if _, err := io.ReadFull(r, p.Asset[:]); err != nil {
			return nil, err
		}
		if p.Amount, err = readUint64(r); err != nil {
			return nil, err
		}
		return p, nil
	case PayloadMultiSig:
		return readMultiSigPayload(r)
	case PayloadInvokeContract:
		return readInvokePayload(r)
	case PayloadDeployContract:
		return readDeployPayload(r)
	case PayloadEnergyFreeze:
		var p EnergyFreezePayload
		if p.Amount, err = readUint64(r); err != nil {
			return nil, err
		}
		d, err := readUint8(r)
		if err != nil {
			return nil, err
		}
		p.Duration = FreezeDuration(d)
		return p, nil
	case PayloadEnergyUnfreeze:
		var p EnergyUnfreezePayload
		if p.Amount, err = readUint64(r); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, errors.Errorf("transaction: unknown payload tag %d", tag)
	}
}

func writeTransferPayload(w *bytes.Buffer, p TransferPayload) error {
	if err := writeUint8(w, uint8(len(p.Transfers))); err != nil {
		return err
	}
	for _, t := range p.Transfers {
		w.Write(t.Asset[:])
		w.Write(t.Destination.Encode())
		w.Write(t.AmountCommitment.Encode())
		w.Write(t.SenderHandle.Encode(nil))
		w.Write(t.ReceiverHandle.Encode(nil))
		writeCiphertextValidityProof(w, t.ValidityProof)
		if err := writeUint8(w, boolToUint8(t.ExtraDataIsSealed)); err != nil {
			return err
		}
		if err := writeUint32(w, uint32(len(t.ExtraData))); err != nil {
			return err
		}
		w.Write(t.ExtraData)
	}
	return nil
}

func readTransferPayload(r io.Reader) (Payload, error) {
	count, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	p := TransferPayload{Transfers: make([]Transfer, count)}
	for i := 0; i < int(count); i++ {
		var t Transfer
		if _, err := io.ReadFull(r, t.Asset[:]); err != nil {
			return nil, err
		}
		destBytes := make([]byte, crypto.PointSize)
		if _, err := io.ReadFull(r, destBytes); err != nil {
			return nil, err
		}
		dest, err := crypto.DecodePublicKey(destBytes)
		if err != nil {
			return nil, err
		}
		t.Destination = dest

		commitmentBytes := make([]byte, crypto.PointSize)
		if _, err := io.ReadFull(r, commitmentBytes); err != nil {
			return nil, err
		}
		commitment, err := crypto.DecodeCommitment(commitmentBytes)
		if err != nil {
			return nil, err
		}
		t.AmountCommitment = commitment

		senderHandle, err := readPoint(r)
		if err != nil {
			return nil, err
		}
		t.SenderHandle = senderHandle
		receiverHandle, err := readPoint(r)
		if err != nil {
			return nil, err
		}
		t.ReceiverHandle = receiverHandle

		proof, err := readCiphertextValidityProof(r)
		if err != nil {
			return nil, err
		}
		t.ValidityProof = proof

		sealedFlag, err := readUint8(r)
		if err != nil {
			return nil, err
		}
		t.ExtraDataIsSealed = sealedFlag == 1

		extraLen, err := readUint32(r)
		if err != nil {
			return nil, err
		}
		t.ExtraData = make([]byte, extraLen)
		if _, err := io.ReadFull(r, t.ExtraData); err != nil {
			return nil, err
		}

		p.Transfers[i] = t
	}
	return p, nil
}

func writeMultiSigPayload(w *bytes.Buffer, p MultiSigPayload) error {
	if err := writeUint8(w, uint8(len(p.Participants))); err != nil {
		return err
	}
	for _, participant := range p.Participants {
		w.Write(participant.Encode())
	}
	return writeUint8(w, p.Threshold)
}

func readMultiSigPayload(r io.Reader) (Payload, error) {
	count, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	p := MultiSigPayload{Participants: make([]crypto.PublicKey, count)}
	for i := 0; i < int(count); i++ {
		pk, err := readPublicKey(r)
		if err != nil {
			return nil, err
		}
		p.Participants[i] = pk
	}
	if p.Threshold, err = readUint8(r); err != nil {
		return nil, err
	}
	return p, nil
}

func writeDeposits(w *bytes.Buffer, deposits []Deposit) error {
	if err := writeUint8(w, uint8(len(deposits))); err != nil {
		return err
	}
	for _, d := range deposits {
		w.Write(d.Asset[:])
		if err := writeUint8(w, boolToUint8(d.IsPrivate())); err != nil {
			return err
		}
		if d.IsPrivate() {
			w.Write(d.PrivateCommitment.Encode())
			writeCiphertextValidityProof(w, *d.PrivateProof)
		} else {
			if err := writeUint64(w, d.PublicAmount); err != nil {
				return err
			}
		}
	}
	return nil
}

func readDeposits(r io.Reader) ([]Deposit, error) {
	count, err := readUint8(r)
	if err != nil {
		return nil, err
	}
	out := make([]Deposit, count)
	for i := 0; i < int(count); i++ {
		var d Deposit
		if _, err := io.ReadFull(r, d.Asset[:]); err != nil {
			return nil, err
		}
		isPrivate, err := readUint8(r)
		if err != nil {
			return nil, err
		}
		if isPrivate == 1 {
			commitmentBytes := make([]byte, crypto.PointSize)
			if _, err := io.ReadFull(r, commitmentBytes); err != nil {
				return nil, err
			}
			commitment, err := crypto.DecodeCommitment(commitmentBytes)
			if err != nil {
				return nil, err
			}
			d.PrivateCommitment = &commitment
			proof, err := readCiphertextValidityProof(r)
			if err != nil {
				return nil, err
			}
			d.PrivateProof = &proof
		} else {
			if d.PublicAmount, err = readUint64(r); err != nil {
				return nil, err
			}
		}
		out[i] = d
	}
	return out, nil
}

func writeInvokePayload(w *bytes.Buffer, p InvokeContractPayload) error {
	w.Write(p.Contract[:])
	if err := binary.Write(w, binary.BigEndian, p.ChunkID); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(p.Params))); err != nil {
		return err
	}
	w.Write(p.Params)
	if err := writeUint64(w, p.MaxGas); err != nil {
		return err
	}
	return writeDeposits(w, p.Deposits)
}

func readInvokePayload(r io.Reader) (Payload, error) {
	var p InvokeContractPayload
	if _, err := io.ReadFull(r, p.Contract[:]); err != nil {
		return nil, err
	}
	if err := binary.Read(r, binary.BigEndian, &p.ChunkID); err != nil {
		return nil, err
	}
	paramsLen, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	p.Params = make([]byte, paramsLen)
	if _, err := io.ReadFull(r, p.Params); err != nil {
		return nil, err
	}
	if p.MaxGas, err = readUint64(r); err != nil {
		return nil, err
	}
	deposits, err := readDeposits(r)
	if err != nil {
		return nil, err
	}
	p.Deposits = deposits
	return p, nil
}

func writeDeployPayload(w *bytes.Buffer, p DeployContractPayload) error {
	if err := writeUint32(w, uint32(len(p.Module))); err != nil {
		return err
	}
	w.Write(p.Module)
	if err := writeUint32(w, uint32(len(p.ConstructorParams))); err != nil {
		return err
	}
	w.Write(p.ConstructorParams)
	if err := writeUint64(w, p.MaxGas); err != nil {
		return err
	}
	return writeDeposits(w, p.Deposits)
}

func readDeployPayload(r io.Reader) (Payload, error) {
	var p DeployContractPayload
	moduleLen, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	p.Module = make([]byte, moduleLen)
	if _, err := io.ReadFull(r, p.Module); err != nil {
		return nil, err
	}
	paramsLen, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	p.ConstructorParams = make([]byte, paramsLen)
	if _, err := io.ReadFull(r, p.ConstructorParams); err != nil {
		return nil, err
	}
	if p.MaxGas, err = readUint64(r); err != nil {
		return nil, err
	}
	deposits, err := readDeposits(r)
	if err != nil {
		return nil, err
	}
	p.Deposits = deposits
	return p, nil
}

func readPublicKey(r io.Reader) (crypto.PublicKey, error) {
	b := make([]byte, crypto.PointSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return crypto.PublicKey{}, err
	}
	return crypto.DecodePublicKey(b)
}

func readPoint(r io.Reader) (*crypto.Point, error) {
	b := make([]byte, crypto.PointSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return crypto.DecodePoint(b)
}

func boolToUint8(b bool) uint8 {
	if b {
		return 1
	}
	return 0
}
