package crypto

import (
	"encoding/binary"

	"github.com/gtank/merlin"
)

// Transcript is a domain-separated Fiat-Shamir transcript. Every proof
// kind opens its own Merlin transcript labelled with the proof's domain
// string, then appends its public data in the fixed order documented on
// each Append* call site before drawing any challenge. Implementations in
// other languages must match this label order byte-for-byte to preserve
// cross-implementation verifiability (spec §9).
type Transcript struct {
	t *merlin.Transcript
}

// NewTranscript opens a fresh transcript under the given domain label.
func NewTranscript(domain string) *Transcript {
	return &Transcript{t: merlin.NewTranscript(domain)}
}

// AppendPoint appends a compressed point under label.
func (tr *Transcript) AppendPoint(label string, p *Point) {
	tr.t.AppendMessage([]byte(label), p.Encode(nil))
}

// AppendScalar appends a scalar encoding under label.
func (tr *Transcript) AppendScalar(label string, s *Scalar) {
	tr.t.AppendMessage([]byte(label), s.Encode(nil))
}

// AppendBytes appends raw bytes (asset ids, hashes) under label.
func (tr *Transcript) AppendBytes(label string, b []byte) {
	tr.t.AppendMessage([]byte(label), b)
}

// AppendUint64 appends a little-endian uint64 under label.
func (tr *Transcript) AppendUint64(label string, v uint64) {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], v)
	tr.t.AppendMessage([]byte(label), buf[:])
}

// ChallengeScalar draws a challenge scalar under label from the current
// transcript state.
func (tr *Transcript) ChallengeScalar(label string) *Scalar {
	buf := tr.t.ExtractBytes([]byte(label), 64)
	return ristrettoScalarFromUniform(buf)
}

func ristrettoScalarFromUniform(buf []byte) *Scalar {
	return newScalarFromUniformBytes(buf)
}

// Clone returns an independent copy of the transcript state, used when a
// batch of transactions shares a template transcript but each derives its
// own seeded continuation (spec §4.3).
func (tr *Transcript) Clone() *Transcript {
	return &Transcript{t: tr.t.Clone()}
}
