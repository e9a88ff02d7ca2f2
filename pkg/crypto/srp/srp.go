// Package srp implements the client side of the SRP-6a password-authenticated
// key exchange (RFC 2945, RFC 5054) as used by HomeKit Pair-Setup.
//
// The construction is the "Stanford" SRP-6a variant:
//
//	k    = H(N | PAD(g))
//	u    = H(PAD(A) | PAD(B))
//	x    = H(s | H(I | ":" | P))
//	S    = (B - k*g^x) ^ (a + u*x) mod N
//	K    = H(S)
//	M1   = H(H(N) xor H(g) | H(I) | s | A | B | K)
//	HAMK = H(A | M1 | K)
//
// Protocol flow:
//
//	Client                                  Server
//	------                                  ------
//	NewClient(H, group, I, P)
//	I, A = StartAuthentication() ---I,A-->
//	                             <--s,B---
//	M1 = ProcessChallenge(s, B)  ---M1--->
//	                             <--HAMK--
//	VerifySession(HAMK)
//	K = SessionKey()
package srp

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"hash"
	"io"
	"math/big"
)

// SecretBits is the size of the client's secret exponent a.
const SecretBits = 256

type state int

const (
	stateInit state = iota
	stateStarted
	stateChallenged
	stateVerified
	stateFailed
	stateClosed
)

// Errors
var (
	ErrNilHash      = errors.New("srp: hash function is required")
	ErrNilGroup     = errors.New("srp: group is required")
	ErrEmptySalt    = errors.New("srp: salt is empty")
	ErrInvalidState = errors.New("srp: invalid protocol state for this operation")
	ErrSafetyCheck  = errors.New("srp: server public value failed safety check")
	ErrClosed       = errors.New("srp: client is closed")
)

// Client is the user side of an SRP-6a exchange. A Client is single-use:
// after a failed challenge it cannot be restarted.
type Client struct {
	newHash  func() hash.Hash
	group    *Group
	identity string
	password []byte

	a *big.Int
	A *big.Int
	S *big.Int

	key  []byte // K
	m1   []byte
	hamk []byte

	authenticated bool
	state         state
	rand          io.Reader
}

// NewClient creates a client for the given identity and password.
// The password is copied; Close wipes the copy.
func NewClient(newHash func() hash.Hash, group *Group, identity string, password []byte) (*Client, error) {
	if newHash == nil {
		return nil, ErrNilHash
	}
	if group == nil {
		return nil, ErrNilGroup
	}
	return &Client{
		newHash:  newHash,
		group:    group,
		identity: identity,
		password: copyBytes(password),
		state:    stateInit,
		rand:     rand.Reader,
	}, nil
}

// SetRandom replaces the source used for the secret exponent.
// For testing only.
func (c *Client) SetRandom(r io.Reader) {
	c.rand = r
}

// StartAuthentication picks the secret exponent a and returns the identity
// together with A = g^a mod N.
func (c *Client) StartAuthentication() (string, []byte, error) {
	switch c.state {
	case stateClosed:
		return "", nil, ErrClosed
	case stateInit:
	default:
		return "", nil, ErrInvalidState
	}

	buf := make([]byte, SecretBits/8)
	a := new(big.Int)
	for a.Sign() == 0 {
		if _, err := io.ReadFull(c.rand, buf); err != nil {
			return "", nil, err
		}
		a.SetBytes(buf)
	}
	wipe(buf)

	c.a = a
	c.A = new(big.Int).Exp(c.group.G, a, c.group.N)
	c.state = stateStarted

	return c.identity, c.A.Bytes(), nil
}

// ProcessChallenge consumes the server's salt and public value B and
// returns the client proof M1. A server value with B mod N == 0, or one that
// yields u == 0, fails with ErrSafetyCheck and produces neither a proof nor
// a session key.
func (c *Client) ProcessChallenge(salt, B []byte) ([]byte, error) {
	switch c.state {
	case stateClosed:
		return nil, ErrClosed
	case stateStarted:
	default:
		return nil, ErrInvalidState
	}
	if len(salt) == 0 {
		c.state = stateFailed
		return nil, ErrEmptySalt
	}

	N := c.group.N
	b := new(big.Int).SetBytes(B)
	if new(big.Int).Mod(b, N).Sign() == 0 {
		c.state = stateFailed
		return nil, ErrSafetyCheck
	}

	u := c.hashInt(c.group.pad(c.A.Bytes()), c.group.pad(b.Bytes()))
	if u.Sign() == 0 {
		c.state = stateFailed
		return nil, ErrSafetyCheck
	}

	k := c.hashInt(N.Bytes(), c.group.pad(c.group.G.Bytes()))
	x := c.computeX(salt)

	// S = (B - k*g^x) ^ (a + u*x) mod N
	v := new(big.Int).Exp(c.group.G, x, N)
	base := new(big.Int).Mul(k, v)
	base.Sub(b, base)
	base.Mod(base, N)
	exp := new(big.Int).Mul(u, x)
	exp.Add(exp, c.a)
	c.S = new(big.Int).Exp(base, exp, N)

	c.key = c.hash(c.S.Bytes())
	c.m1 = c.computeM1(salt, b.Bytes())
	c.hamk = c.hash(c.A.Bytes(), c.m1, c.key)
	c.state = stateChallenged

	wipeInt(x)
	wipeInt(exp)

	return copyBytes(c.m1), nil
}

// VerifySession checks the server proof HAMK in constant time and marks the
// client authenticated on success.
func (c *Client) VerifySession(hamk []byte) bool {
	if c.state != stateChallenged {
		return false
	}
	if subtle.ConstantTimeCompare(c.hamk, hamk) != 1 {
		c.state = stateFailed
		return false
	}
	c.authenticated = true
	c.state = stateVerified
	return true
}

// Authenticated reports whether the server proof has been verified.
func (c *Client) Authenticated() bool {
	return c.authenticated
}

// SessionKey returns K = H(S), or nil before a challenge was processed.
func (c *Client) SessionKey() []byte {
	if c.state != stateChallenged && c.state != stateVerified {
		return nil
	}
	return copyBytes(c.key)
}

// Proof returns M1, or nil before a challenge was processed.
func (c *Client) Proof() []byte {
	return copyBytes(c.m1)
}

// Close wipes the password and all secret values.
func (c *Client) Close() {
	wipe(c.password)
	wipe(c.key)
	wipeInt(c.a)
	wipeInt(c.S)
	c.password = nil
	c.key = nil
	c.authenticated = false
	c.state = stateClosed
}

// computeX returns x = H(s | H(I | ":" | P)).
func (c *Client) computeX(salt []byte) *big.Int {
	inner := c.hash([]byte(c.identity), []byte(":"), c.password)
	defer wipe(inner)
	return c.hashInt(salt, inner)
}

// computeM1 returns H(H(N) xor H(g) | H(I) | s | A | B | K).
func (c *Client) computeM1(salt, B []byte) []byte {
	hn := c.hash(c.group.N.Bytes())
	hg := c.hash(c.group.G.Bytes())
	for i := range hn {
		hn[i] ^= hg[i]
	}
	hi := c.hash([]byte(c.identity))
	return c.hash(hn, hi, salt, c.A.Bytes(), B, c.key)
}

func (c *Client) hash(parts ...[]byte) []byte {
	h := c.newHash()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

func (c *Client) hashInt(parts ...[]byte) *big.Int {
	return new(big.Int).SetBytes(c.hash(parts...))
}

func copyBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

func wipeInt(x *big.Int) {
	if x == nil {
		return
	}
	words := x.Bits()
	for i := range words {
		words[i] = 0
	}
	x.SetInt64(0)
}
