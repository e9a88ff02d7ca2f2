package session

import "errors"

// Session package errors. Cipher wraps them in *securechannel.Error so both
// the sentinel and the error kind can be matched with errors.Is.
var (
	// ErrInvalidRole is returned when the role is not Controller or Accessory.
	ErrInvalidRole = errors.New("session: invalid role")

	// ErrEmptySecret is returned when the shared secret is missing.
	ErrEmptySecret = errors.New("session: empty shared secret")

	// ErrEmptyPlaintext is returned when encrypting zero bytes.
	ErrEmptyPlaintext = errors.New("session: empty plaintext")

	// ErrShortInput is returned when a ciphertext cannot hold a length prefix.
	ErrShortInput = errors.New("session: input shorter than block header")

	// ErrCorruptBlock is returned when a block length is zero, too large, or
	// runs past the end of the input.
	ErrCorruptBlock = errors.New("session: corrupt block length")

	// ErrCounterExhausted is returned when a direction has used every nonce.
	// The channel must be re-established when this occurs.
	ErrCounterExhausted = errors.New("session: nonce counter exhausted")

	// ErrDecryptionFailed is returned when a block fails authentication.
	ErrDecryptionFailed = errors.New("session: decryption failed")
)
