// Package crypto provides the cryptographic primitives used by the HomeKit
// pairing and session layers: SHA-512, HKDF-SHA-512, ChaCha20-Poly1305 with
// detached tags, nonce builders and X25519.
package crypto

import (
	"crypto/sha512"
	"hash"
)

// SHA512LenBytes is the SHA-512 output length in bytes.
const SHA512LenBytes = sha512.Size

// SHA512Concat hashes the concatenation of all parts without
// allocating the joined buffer.
func SHA512Concat(parts ...[]byte) []byte {
	h := sha512.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// NewSHA512 returns a new hash.Hash for computing SHA-512 digests incrementally.
//
// Usage:
//
//	h := crypto.NewSHA512()
//	h.Write(data1)
//	h.Write(data2)
//	digest := h.Sum(nil)
func NewSHA512() hash.Hash {
	return sha512.New()
}
