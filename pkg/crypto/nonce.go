// Nonce construction for the ChaCha20-Poly1305 channel.

package crypto

import (
	"encoding/binary"
	"errors"
)

const (
	// NonceLabelSize is the length of a handshake stage label such as "PS-Msg05".
	NonceLabelSize = 8

	// noncePadding is the number of leading zero bytes in every nonce.
	noncePadding = NonceSize - NonceLabelSize
)

// ErrNonceLabelSize is returned when a stage label is not exactly 8 bytes.
var ErrNonceLabelSize = errors.New("nonce: label must be 8 bytes")

// LabelNonce builds the 12-byte nonce used by handshake messages.
//
// Format: 0x00000000 (4 bytes) || label (8 bytes)
func LabelNonce(label string) ([]byte, error) {
	if len(label) != NonceLabelSize {
		return nil, ErrNonceLabelSize
	}
	nonce := make([]byte, NonceSize)
	copy(nonce[noncePadding:], label)
	return nonce, nil
}

// CounterNonce builds the 12-byte nonce used by the control channel.
//
// Format: 0x00000000 (4 bytes) || counter (8 bytes LE)
func CounterNonce(counter uint64) []byte {
	nonce := make([]byte, NonceSize)
	binary.LittleEndian.PutUint64(nonce[noncePadding:], counter)
	return nonce
}
