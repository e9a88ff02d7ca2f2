package crypto

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"io"

	"golang.org/x/crypto/curve25519"
)

// X25519KeySize is the size of X25519 scalars and points.
const X25519KeySize = curve25519.PointSize

// X25519 errors.
var (
	ErrX25519KeySize  = errors.New("x25519: keys must be 32 bytes")
	ErrX25519LowOrder = errors.New("x25519: low order point")
)

// X25519KeyPair is an ephemeral Curve25519 Diffie-Hellman key pair.
type X25519KeyPair struct {
	Private [X25519KeySize]byte
	Public  [X25519KeySize]byte
}

// GenerateX25519 creates a new key pair from r (crypto/rand when nil).
func GenerateX25519(r io.Reader) (*X25519KeyPair, error) {
	if r == nil {
		r = rand.Reader
	}
	kp := &X25519KeyPair{}
	if _, err := io.ReadFull(r, kp.Private[:]); err != nil {
		return nil, err
	}
	pub, err := curve25519.X25519(kp.Private[:], curve25519.Basepoint)
	if err != nil {
		return nil, err
	}
	copy(kp.Public[:], pub)
	return kp, nil
}

// X25519 computes the shared secret between a private scalar and a peer public point.
func X25519(private, peerPublic []byte) ([]byte, error) {
	if len(private) != X25519KeySize || len(peerPublic) != X25519KeySize {
		return nil, ErrX25519KeySize
	}
	shared, err := curve25519.X25519(private, peerPublic)
	if err != nil {
		return nil, ErrX25519LowOrder
	}
	var zero [X25519KeySize]byte
	if subtle.ConstantTimeCompare(shared, zero[:]) == 1 {
		return nil, ErrX25519LowOrder
	}
	return shared, nil
}

// Zero overwrites the private scalar.
func (kp *X25519KeyPair) Zero() {
	for i := range kp.Private {
		kp.Private[i] = 0
	}
}
