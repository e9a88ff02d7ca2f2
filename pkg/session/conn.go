package session

import (
	"net"
	"sync"
)

// Conn is a net.Conn whose traffic passes through a Cipher. Each Write is
// encrypted as one or more blocks; Read returns decrypted block contents.
type Conn struct {
	net.Conn
	cipher *Cipher

	rmu     sync.Mutex
	pending []byte

	wmu sync.Mutex
}

// NewConn wraps conn. The caller must not use conn directly afterwards.
func NewConn(conn net.Conn, cipher *Cipher) *Conn {
	return &Conn{Conn: conn, cipher: cipher}
}

// Cipher returns the cipher used by the connection.
func (c *Conn) Cipher() *Cipher {
	return c.cipher
}

// Read implements net.Conn.
func (c *Conn) Read(p []byte) (int, error) {
	c.rmu.Lock()
	defer c.rmu.Unlock()

	for len(c.pending) == 0 {
		block, err := c.cipher.ReadBlock(c.Conn)
		if err != nil {
			return 0, err
		}
		c.pending = block
	}
	n := copy(p, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write implements net.Conn.
func (c *Conn) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	out, err := c.cipher.Encrypt(p)
	if err != nil {
		return 0, err
	}
	if _, err := c.Conn.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}
