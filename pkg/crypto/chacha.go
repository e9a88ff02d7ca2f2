// ChaCha20-Poly1305 (RFC 8439) with the tag carried separately from the
// ciphertext, as it is transmitted on the wire.

package crypto

import (
	"crypto/cipher"
	"errors"

	"golang.org/x/crypto/chacha20poly1305"
)

// ChaCha20-Poly1305 constants.
const (
	// KeySize is the AEAD key length in bytes.
	KeySize = chacha20poly1305.KeySize

	// NonceSize is the AEAD nonce length in bytes.
	NonceSize = chacha20poly1305.NonceSize

	// TagSize is the authentication tag length in bytes.
	TagSize = chacha20poly1305.Overhead
)

// Errors
var (
	ErrInvalidKeySize   = errors.New("chacha20poly1305: invalid key size, must be 32 bytes")
	ErrInvalidNonceSize = errors.New("chacha20poly1305: invalid nonce size, must be 12 bytes")
	ErrInvalidTagSize   = errors.New("chacha20poly1305: invalid tag size, must be 16 bytes")
	ErrAuthFailed       = errors.New("chacha20poly1305: message authentication failed")
)

// Seal encrypts and authenticates plaintext, authenticating ad as well.
// It returns the ciphertext (same length as plaintext) and the 16-byte tag.
func Seal(key, nonce, plaintext, ad []byte) (ciphertext, tag []byte, err error) {
	aead, err := newAEAD(key, nonce)
	if err != nil {
		return nil, nil, err
	}
	out := aead.Seal(nil, nonce, plaintext, ad)
	n := len(out) - TagSize
	return out[:n], out[n:], nil
}

// Open authenticates and decrypts ciphertext with its detached tag.
// Returns ErrAuthFailed if the tag does not verify.
func Open(key, nonce, ciphertext, tag, ad []byte) ([]byte, error) {
	aead, err := newAEAD(key, nonce)
	if err != nil {
		return nil, err
	}
	if len(tag) != TagSize {
		return nil, ErrInvalidTagSize
	}
	sealed := make([]byte, 0, len(ciphertext)+TagSize)
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)
	plaintext, err := aead.Open(nil, nonce, sealed, ad)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

func newAEAD(key, nonce []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrInvalidKeySize
	}
	if len(nonce) != NonceSize {
		return nil, ErrInvalidNonceSize
	}
	return chacha20poly1305.New(key)
}
