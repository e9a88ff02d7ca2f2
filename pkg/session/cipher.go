// Package session implements the encrypted control channel that follows a
// successful Pair-Verify.
//
// Traffic is split into blocks of at most MaxBlockSize plaintext bytes.
// Each block on the wire is
//
//	length (2 bytes LE) || ciphertext (length bytes) || tag (16 bytes)
//
// sealed with ChaCha20-Poly1305 under the direction's key, with the length
// prefix as associated data and the nonce 0x00000000 || counter (8 bytes LE).
// Each direction keeps its own counter, advanced once per block.
package session

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/backkem/homekit/pkg/crypto"
	"github.com/backkem/homekit/pkg/securechannel"
	"github.com/pion/logging"
)

// Framing constants.
const (
	// MaxBlockSize is the largest plaintext carried in one block.
	MaxBlockSize = 1024

	// LengthSize is the size of the block length prefix.
	LengthSize = 2

	// BlockOverhead is the framing added to each block.
	BlockOverhead = LengthSize + crypto.TagSize
)

// CipherConfig is used to create a Cipher after Pair-Verify.
type CipherConfig struct {
	// SharedSecret is the Pair-Verify shared secret.
	SharedSecret []byte

	// Role selects the key direction.
	Role Role

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Cipher encrypts and decrypts control channel traffic. Encrypt and Decrypt
// may run concurrently with each other; calls in the same direction are
// serialized. Counters advance only when a whole call succeeds. Any failure
// other than a parameter error is final: every later call returns it.
type Cipher struct {
	role   Role
	encKey []byte
	decKey []byte

	send Counter
	recv Counter

	sendMu sync.Mutex
	recvMu sync.Mutex

	errMu sync.Mutex
	err   error

	log logging.LeveledLogger
}

// NewCipher derives the directional keys from the shared secret.
func NewCipher(config CipherConfig) (*Cipher, error) {
	const op = "cipher"
	if !config.Role.IsValid() {
		return nil, securechannel.NewError(securechannel.KindParameter, op, "role", ErrInvalidRole)
	}
	if len(config.SharedSecret) == 0 {
		return nil, securechannel.NewError(securechannel.KindParameter, op, "shared secret", ErrEmptySecret)
	}

	writeKey, err := securechannel.DeriveKey(config.SharedSecret, securechannel.StageControlWrite, crypto.KeySize)
	if err != nil {
		return nil, err
	}
	readKey, err := securechannel.DeriveKey(config.SharedSecret, securechannel.StageControlRead, crypto.KeySize)
	if err != nil {
		return nil, err
	}

	c := &Cipher{role: config.Role}
	if config.Role == RoleController {
		c.encKey, c.decKey = writeKey, readKey
	} else {
		c.encKey, c.decKey = readKey, writeKey
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("cipher")
	}
	return c, nil
}

// Role returns the role the cipher was created with.
func (c *Cipher) Role() Role {
	return c.role
}

// Err returns the error that ended the cipher, if any.
func (c *Cipher) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// SendCounter returns the number of blocks encrypted so far.
func (c *Cipher) SendCounter() uint64 {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.send.Value()
}

// ReceiveCounter returns the number of blocks decrypted so far.
func (c *Cipher) ReceiveCounter() uint64 {
	c.recvMu.Lock()
	defer c.recvMu.Unlock()
	return c.recv.Value()
}

// BlockCount returns the number of blocks Encrypt produces for n bytes.
func BlockCount(n int) int {
	return (n + MaxBlockSize - 1) / MaxBlockSize
}

// EncryptedSize returns the wire size of n plaintext bytes.
func EncryptedSize(n int) int {
	return n + BlockOverhead*BlockCount(n)
}

// Encrypt frames and seals plaintext. Empty input is a parameter error.
func (c *Cipher) Encrypt(plaintext []byte) ([]byte, error) {
	const op = "encrypt"
	if err := c.Err(); err != nil {
		return nil, err
	}
	if len(plaintext) == 0 {
		return nil, securechannel.NewError(securechannel.KindParameter, op, "plaintext", ErrEmptyPlaintext)
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	blocks := uint64(BlockCount(len(plaintext)))
	if !c.send.CanAdvance(blocks) {
		return nil, c.fail(securechannel.NewError(securechannel.KindProtocol, op, "send counter", ErrCounterExhausted))
	}

	out := make([]byte, 0, EncryptedSize(len(plaintext)))
	counter := c.send.Value()
	for len(plaintext) > 0 {
		n := len(plaintext)
		if n > MaxBlockSize {
			n = MaxBlockSize
		}
		var ad [LengthSize]byte
		binary.LittleEndian.PutUint16(ad[:], uint16(n))

		ct, tag, err := crypto.Seal(c.encKey, crypto.CounterNonce(counter), plaintext[:n], ad[:])
		if err != nil {
			return nil, c.fail(securechannel.NewError(securechannel.KindAllocation, op, "seal", err))
		}
		out = append(out, ad[:]...)
		out = append(out, ct...)
		out = append(out, tag...)

		plaintext = plaintext[n:]
		counter++
	}

	c.send.Advance(blocks)
	return out, nil
}

// Decrypt opens every block in ciphertext and returns the joined plaintext.
// No output is returned unless every block authenticates.
func (c *Cipher) Decrypt(ciphertext []byte) ([]byte, error) {
	const op = "decrypt"
	if err := c.Err(); err != nil {
		return nil, err
	}
	if len(ciphertext) < LengthSize {
		return nil, c.fail(securechannel.NewError(securechannel.KindParse, op, "input", ErrShortInput))
	}

	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	var out []byte
	counter := c.recv.Value()
	var blocks uint64
	for rest := ciphertext; len(rest) > 0; {
		n, err := blockLength(rest)
		if err != nil {
			return nil, c.fail(securechannel.NewError(securechannel.KindProtocol, op, fmt.Sprintf("block %d", blocks), err))
		}
		if !c.recv.CanAdvance(blocks + 1) {
			return nil, c.fail(securechannel.NewError(securechannel.KindProtocol, op, "receive counter", ErrCounterExhausted))
		}

		ad := rest[:LengthSize]
		body := rest[LengthSize : LengthSize+n]
		tag := rest[LengthSize+n : LengthSize+n+crypto.TagSize]
		pt, err := crypto.Open(c.decKey, crypto.CounterNonce(counter+blocks), body, tag, ad)
		if err != nil {
			return nil, c.fail(securechannel.NewError(securechannel.KindAuthentication, op,
				fmt.Sprintf("block %d", blocks), errors.Join(ErrDecryptionFailed, err)))
		}
		out = append(out, pt...)
		rest = rest[LengthSize+n+crypto.TagSize:]
		blocks++
	}

	c.recv.Advance(blocks)
	return out, nil
}

// ReadBlock reads and opens exactly one block from r. It returns io.EOF,
// without failing the cipher, when r ends before the first header byte.
func (c *Cipher) ReadBlock(r io.Reader) ([]byte, error) {
	const op = "read block"
	if err := c.Err(); err != nil {
		return nil, err
	}

	c.recvMu.Lock()
	defer c.recvMu.Unlock()

	var hdr [LengthSize]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		return nil, c.fail(securechannel.NewError(securechannel.KindParse, op, "header", err))
	}
	n := int(binary.LittleEndian.Uint16(hdr[:]))
	if n == 0 || n > MaxBlockSize {
		return nil, c.fail(securechannel.NewError(securechannel.KindProtocol, op, "header", ErrCorruptBlock))
	}
	if !c.recv.CanAdvance(1) {
		return nil, c.fail(securechannel.NewError(securechannel.KindProtocol, op, "receive counter", ErrCounterExhausted))
	}

	buf := make([]byte, n+crypto.TagSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		if err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, c.fail(securechannel.NewError(securechannel.KindParse, op, "body", err))
	}
	pt, err := crypto.Open(c.decKey, crypto.CounterNonce(c.recv.Value()), buf[:n], buf[n:], hdr[:])
	if err != nil {
		return nil, c.fail(securechannel.NewError(securechannel.KindAuthentication, op, "block",
			errors.Join(ErrDecryptionFailed, err)))
	}

	c.recv.Advance(1)
	return pt, nil
}

// blockLength validates the header at the start of b and returns the
// plaintext length it announces.
func blockLength(b []byte) (int, error) {
	if len(b) < LengthSize {
		return 0, ErrCorruptBlock
	}
	n := int(binary.LittleEndian.Uint16(b))
	if n == 0 || n > MaxBlockSize || LengthSize+n+crypto.TagSize > len(b) {
		return 0, ErrCorruptBlock
	}
	return n, nil
}

func (c *Cipher) fail(err error) error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	if c.err == nil {
		c.err = err
		if c.log != nil {
			c.log.Warnf("channel closed: %v", err)
		}
	}
	return c.err
}
