package crypto

import (
	"crypto/sha512"

	"golang.org/x/crypto/blake2b"
)

func sum512(data []byte) [64]byte {
	return sha512.Sum512(data)
}

// HashBytes computes the canonical wire hash used for block headers,
// transaction bodies and transcript binding throughout this module.
// blake2b-256 matches the hashing convention of the BlockDAG coins this
// module's DAG engine is grounded on.
func HashBytes(data []byte) [32]byte {
	return blake2b.Sum256(data)
}
