package transaction

import (
	"bytes"
	"io"

	"github.com/pkg/errors"

	"github.com/terminos-network/terminos/internal/crypto"
)

// writeCommitmentEqProof encodes a CommitmentEqProof as 3 points + 3
// scalars (spec §6: "proof 3×32B + 3×scalar").
func writeCommitmentEqProof(w *bytes.Buffer, p crypto.CommitmentEqProof) {
	w.Write(p.A1.Encode(nil))
	w.Write(p.A2.Encode(nil))
	w.Write(p.A3.Encode(nil))
	w.Write(p.Zv.Encode(nil))
	w.Write(p.Zs.Encode(nil))
	w.Write(p.Zr.Encode(nil))
}

func readCommitmentEqProof(r io.Reader) (crypto.CommitmentEqProof, error) {
	var p crypto.CommitmentEqProof
	var err error
	if p.A1, err = readPoint(r); err != nil {
		return p, err
	}
	if p.A2, err = readPoint(r); err != nil {
		return p, err
	}
	if p.A3, err = readPoint(r); err != nil {
		return p, err
	}
	if p.Zv, err = readScalar(r); err != nil {
		return p, err
	}
	if p.Zs, err = readScalar(r); err != nil {
		return p, err
	}
	if p.Zr, err = readScalar(r); err != nil {
		return p, err
	}
	return p, nil
}

func writeCiphertextValidityProof(w *bytes.Buffer, p crypto.CiphertextValidityProof) {
	w.Write(p.A1.Encode(nil))
	w.Write(p.A2.Encode(nil))
	w.Write(p.A3.Encode(nil))
	w.Write(p.Za.Encode(nil))
	w.Write(p.Zr.Encode(nil))
}

func readCiphertextValidityProof(r io.Reader) (crypto.CiphertextValidityProof, error) {
	var p crypto.CiphertextValidityProof
	var err error
	if p.A1, err = readPoint(r); err != nil {
		return p, err
	}
	if p.A2, err = readPoint(r); err != nil {
		return p, err
	}
	if p.A3, err = readPoint(r); err != nil {
		return p, err
	}
	if p.Za, err = readScalar(r); err != nil {
		return p, err
	}
	if p.Zr, err = readScalar(r); err != nil {
		return p, err
	}
	return p, nil
}

func readScalar(r io.Reader) (*crypto.Scalar, error) {
	b := make([]byte, crypto.ScalarSize)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return crypto.DecodeScalar(b)
}

// encodeRangeProof serialises an aggregated Bulletproof: four fixed
// points (A, S, T1, T2), three fixed scalars (TauX, Mu, That), then the
// inner-product argument's variable-length L/R point vectors plus its
// two closing scalars.
func encodeRangeProof(p crypto.RangeProof) []byte {
	var buf bytes.Buffer
	buf.Write(p.A.Encode(nil))
	buf.Write(p.S.Encode(nil))
	buf.Write(p.T1.Encode(nil))
	buf.Write(p.T2.Encode(nil))
	buf.Write(p.TauX.Encode(nil))
	buf.Write(p.Mu.Encode(nil))
	buf.Write(p.That.Encode(nil))

	l, r := p.IPA.Points()
	writeUint8(&buf, uint8(len(l)))
	for i := range l {
		buf.Write(l[i].Encode(nil))
		buf.Write(r[i].Encode(nil))
	}
	a, b := p.IPA.Scalars()
	buf.Write(a.Encode(nil))
	buf.Write(b.Encode(nil))
	return buf.Bytes()
}

func decodeRangeProof(data []byte) (crypto.RangeProof, error) {
	r := bytes.NewReader(data)
	var p crypto.RangeProof
	var err error
	if p.A, err = readPoint(r); err != nil {
		return p, errors.Wrap(err, "range proof: A")
	}
	if p.S, err = readPoint(r); err != nil {
		return p, errors.Wrap(err, "range proof: S")
	}
	if p.T1, err = readPoint(r); err != nil {
		return p, errors.Wrap(err, "range proof: T1")
	}
	if p.T2, err = readPoint(r); err != nil {
		return p, errors.Wrap(err, "range proof: T2")
	}
	if p.TauX, err = readScalar(r); err != nil {
		return p, errors.Wrap(err, "range proof: TauX")
	}
	if p.Mu, err = readScalar(r); err != nil {
		return p, errors.Wrap(err, "range proof: Mu")
	}
	if p.That, err = readScalar(r); err != nil {
		return p, errors.Wrap(err, "range proof: That")
	}

	rounds, err := readUint8(r)
	if err != nil {
		return p, errors.Wrap(err, "range proof: ipa round count")
	}
	ls := make([]*crypto.Point, rounds)
	rs := make([]*crypto.Point, rounds)
	for i := 0; i < int(rounds); i++ {
		if ls[i], err = readPoint(r); err != nil {
			return p, errors.Wrap(err, "range proof: ipa L")
		}
		if rs[i], err = readPoint(r); err != nil {
			return p, errors.Wrap(err, "range proof: ipa R")
		}
	}
	a, err := readScalar(r)
	if err != nil {
		return p, errors.Wrap(err, "range proof: ipa a")
	}
	b, err := readScalar(r)
	if err != nil {
		return p, errors.Wrap(err, "range proof: ipa b")
	}
	p.IPA = crypto.NewInnerProductProof(ls, rs, a, b)
	return p, nil
}
