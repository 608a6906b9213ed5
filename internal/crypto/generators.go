package crypto

// bulletproofMaxBits is the per-value bit width the aggregated range
// proof proves membership in [0, 2^bulletproofMaxBits), matching spec
// §4.1's "[0, 2^64)".
const bulletproofMaxBits = 64

// vectorGenerators returns n independently derived, nothing-up-my-sleeve
// generators for use as the Bulletproof's per-bit basis vectors, indexed
// deterministically so every implementation derives the identical basis.
func vectorGenerators(label string, n int) []*Point {
	out := make([]*Point, n)
	for i := 0; i < n; i++ {
		out[i] = HashToPoint(indexedLabel(label, i))
	}
	return out
}

func indexedLabel(label string, i int) []byte {
	b := make([]byte, 0, len(label)+10)
	b = append(b, []byte(label)...)
	b = append(b, '/')
	b = appendUvarint(b, uint64(i))
	return b
}

func appendUvarint(b []byte, v uint64) []byte {
	var buf [10]byte
	n := 0
	for {
		c := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			c |= 0x80
		}
		buf[n] = c
		n++
		if v == 0 {
			break
		}
	}
	return append(b, buf[:n]...)
}

// PadCommitmentsToPowerOfTwo appends zero commitments until the slice
// length is a power of two, the same deterministic padding both the
// builder and the verifier apply before running the aggregated range
// proof (spec §4.1: "the padding count is reconstructible at verification
// from the declared source-commitment and output counts").
func PadCommitmentsToPowerOfTwo(commitments []Commitment) []Commitment {
	target := nextPowerOfTwo(len(commitments))
	out := make([]Commitment, len(commitments), target)
	copy(out, commitments)
	for len(out) < target {
		out = append(out, ZeroCommitment())
	}
	return out
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
