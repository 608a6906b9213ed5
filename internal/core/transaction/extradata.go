package transaction

import (
	"crypto/rand"
	"crypto/sha256"

	"github.com/pkg/errors"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/terminos-network/terminos/internal/crypto"
)

// extraDataHKDFInfo domain-separates the shared-secret derivation used to
// seal a Transfer's ExtraData from every other use of the ECDH point
// between sender and receiver (spec §3 "Transfer.extra_data").
const extraDataHKDFInfo = "terminos/transfer-extra-data/v1"

// SealExtraData encrypts plaintext for destination using an ECDH shared
// secret derived from ephemeralScalar and the destination's public key,
// via HKDF-SHA256 into a ChaCha20-Poly1305 key. The nonce is prefixed to
// the returned ciphertext.
func SealExtraData(destination crypto.PublicKey, ephemeralScalar *crypto.Scalar, plaintext []byte) ([]byte, error) {
	aead, err := extraDataAEAD(destination, ephemeralScalar)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, errors.Wrap(err, "extradata: generating nonce")
	}
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// OpenExtraData reverses SealExtraData given the same ephemeral scalar
// used to seal it (recovered by the sender from its own records) or, on
// the receiving side, the scalar obtained from its own private key times
// the sender's public ephemeral point; callers on either side of a
// transfer derive the same shared point by construction of ECDH.
func OpenExtraData(destination crypto.PublicKey, ephemeralScalar *crypto.Scalar, sealed []byte) ([]byte, error) {
	aead, err := extraDataAEAD(destination, ephemeralScalar)
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, errors.New("extradata: sealed envelope shorter than nonce")
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(err, "extradata: open failed")
	}
	return plaintext, nil
}

func extraDataAEAD(destination crypto.PublicKey, ephemeralScalar *crypto.Scalar) (cipherAEAD, error) {
	shared := crypto.SharedSecretPoint(ephemeralScalar, destination)
	reader := hkdf.New(sha256.New, shared, nil, []byte(extraDataHKDFInfo))
	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := reader.Read(key); err != nil {
		return nil, errors.Wrap(err, "extradata: deriving key")
	}
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, errors.Wrap(err, "extradata: constructing AEAD")
	}
	return aead, nil
}

// cipherAEAD is the minimal surface of cipher.AEAD this file needs,
// named locally so the hkdf key-material plumbing above stays readable
// without importing crypto/cipher just for the type name.
type cipherAEAD interface {
	NonceSize() int
	Seal(dst, nonce, plaintext, additionalData []byte) []byte
	Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
}
