package accessory

import (
	"crypto/subtle"
	"io"
	"math/big"

	"github.com/backkem/homekit/pkg/crypto"
	"github.com/backkem/homekit/pkg/crypto/srp"
)

const (
	saltSize   = 16
	secretSize = 32
)

// srpVerifier is the accessory side of SRP-6a. It holds the verifier
// v = g^x for the setup code and the ephemeral pair (b, B).
type srpVerifier struct {
	group *srp.Group
	salt  []byte
	v     *big.Int
	b     *big.Int
	B     *big.Int
	key   []byte
}

func hashInt(parts ...[]byte) *big.Int {
	return new(big.Int).SetBytes(crypto.SHA512Concat(parts...))
}

func pad(b []byte, n int) []byte {
	if len(b) >= n {
		return b
	}
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}

func newSRPVerifier(r io.Reader, g *srp.Group, identity, password string) (*srpVerifier, error) {
	salt := make([]byte, saltSize)
	if _, err := io.ReadFull(r, salt); err != nil {
		return nil, err
	}
	secret := make([]byte, secretSize)
	if _, err := io.ReadFull(r, secret); err != nil {
		return nil, err
	}

	x := hashInt(salt, crypto.SHA512Concat([]byte(identity), []byte(":"), []byte(password)))
	v := new(big.Int).Exp(g.G, x, g.N)
	b := new(big.Int).SetBytes(secret)

	// B = k*v + g^b mod N
	k := hashInt(g.N.Bytes(), pad(g.G.Bytes(), g.Size()))
	B := new(big.Int).Mul(k, v)
	B.Add(B, new(big.Int).Exp(g.G, b, g.N))
	B.Mod(B, g.N)

	return &srpVerifier{group: g, salt: salt, v: v, b: b, B: B}, nil
}

// verify checks the controller proof m1 for public value A and returns the
// accessory proof. ok is false for a bad A or a wrong proof.
func (s *srpVerifier) verify(identity string, A, m1 []byte) (hamk []byte, ok bool) {
	g := s.group
	a := new(big.Int).SetBytes(A)
	if new(big.Int).Mod(a, g.N).Sign() == 0 {
		return nil, false
	}

	u := hashInt(pad(a.Bytes(), g.Size()), pad(s.B.Bytes(), g.Size()))

	// S = (A * v^u)^b mod N
	S := new(big.Int).Exp(s.v, u, g.N)
	S.Mul(S, a)
	S.Exp(S, s.b, g.N)
	key := crypto.SHA512Concat(S.Bytes())

	hn := crypto.SHA512Concat(g.N.Bytes())
	hg := crypto.SHA512Concat(g.G.Bytes())
	for i := range hn {
		hn[i] ^= hg[i]
	}
	want := crypto.SHA512Concat(hn, crypto.SHA512Concat([]byte(identity)), s.salt, a.Bytes(), s.B.Bytes(), key)
	if subtle.ConstantTimeCompare(want, m1) != 1 {
		return nil, false
	}
	s.key = key
	return crypto.SHA512Concat(a.Bytes(), m1, key), true
}
