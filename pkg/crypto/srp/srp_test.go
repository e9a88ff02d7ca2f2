package srp

import (
	"bytes"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"hash"
	"math/big"
	"testing"
)

// testServer performs the verifier side of SRP-6a independently of Client.
type testServer struct {
	newHash func() hash.Hash
	group   *Group
	salt    []byte
	v       *big.Int
	b       *big.Int
	B       *big.Int
}

func h(newHash func() hash.Hash, parts ...[]byte) []byte {
	d := newHash()
	for _, p := range parts {
		d.Write(p)
	}
	return d.Sum(nil)
}

func padTo(b []byte, n int) []byte {
	out := make([]byte, n)
	copy(out[n-len(b):], b)
	return out
}

func newTestServer(t *testing.T, newHash func() hash.Hash, g *Group, identity string, password []byte) *testServer {
	t.Helper()
	salt := make([]byte, 16)
	if _, err := rand.Read(salt); err != nil {
		t.Fatalf("rand failed: %v", err)
	}
	return newTestServerWithSalt(t, newHash, g, identity, password, salt)
}

func newTestServerWithSalt(t *testing.T, newHash func() hash.Hash, g *Group, identity string, password, salt []byte) *testServer {
	t.Helper()
	inner := h(newHash, []byte(identity), []byte(":"), password)
	x := new(big.Int).SetBytes(h(newHash, salt, inner))
	v := new(big.Int).Exp(g.G, x, g.N)

	bb := make([]byte, 32)
	if _, err := rand.Read(bb); err != nil {
		t.Fatalf("rand failed: %v", err)
	}
	b := new(big.Int).SetBytes(bb)
	k := new(big.Int).SetBytes(h(newHash, g.N.Bytes(), padTo(g.G.Bytes(), g.Size())))
	B := new(big.Int).Mul(k, v)
	B.Add(B, new(big.Int).Exp(g.G, b, g.N))
	B.Mod(B, g.N)

	return &testServer{newHash: newHash, group: g, salt: salt, v: v, b: b, B: B}
}

// finish returns K, the expected M1 and HAMK for the client's A.
func (s *testServer) finish(identity string, A []byte) (key, m1, hamk []byte) {
	g := s.group
	a := new(big.Int).SetBytes(A)
	u := new(big.Int).SetBytes(h(s.newHash, padTo(a.Bytes(), g.Size()), padTo(s.B.Bytes(), g.Size())))
	S := new(big.Int).Exp(s.v, u, g.N)
	S.Mul(S, a)
	S.Exp(S, s.b, g.N)
	key = h(s.newHash, S.Bytes())

	hn := h(s.newHash, g.N.Bytes())
	hg := h(s.newHash, g.G.Bytes())
	for i := range hn {
		hn[i] ^= hg[i]
	}
	m1 = h(s.newHash, hn, h(s.newHash, []byte(identity)), s.salt, a.Bytes(), s.B.Bytes(), key)
	hamk = h(s.newHash, a.Bytes(), m1, key)
	return key, m1, hamk
}

// RFC 5054 Appendix B: x = H(s | H(I | ":" | P)) with SHA-1.
func TestComputeXRFC5054(t *testing.T) {
	salt, _ := hex.DecodeString("BEB25379D1A8581EB5A727673A2441EE")
	c, err := NewClient(sha1.New, Group2048, "alice", []byte("password123"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	x := c.computeX(salt)
	want := "94b7555aabe9127cc58ccf4993db6cf84d16c124"
	if got := hex.EncodeToString(x.Bytes()); got != want {
		t.Errorf("x = %s, want %s", got, want)
	}
}

func mustHexInt(t *testing.T, s string) *big.Int {
	t.Helper()
	n, ok := new(big.Int).SetString(s, 16)
	if !ok {
		t.Fatalf("bad hex %q", s)
	}
	return n
}

// RFC 5054 Appendix B: the full exchange over the 1024-bit group with SHA-1.
func TestClientRFC5054Vectors(t *testing.T) {
	g, err := NewGroup("rfc5054.1024", ""+
		"EEAF0AB9ADB38DD69C33F80AFA8FC5E86072618775FF3C0B9EA2314C9C256576"+
		"D674DF7496EA81D3383B4813D692C6E0E0D5D8E250B98BE48E495C1D6089DAD1"+
		"5DC7D7B46154D6B6CE8EF4AD69B15D4982559B297BCF1885C529F566660E57EC"+
		"68EDBC3C05726CC02FD4CBF4976EAA9AFD5138FE8376435B9FC61D2FC0EB06E3", "2")
	if err != nil {
		t.Fatalf("NewGroup failed: %v", err)
	}
	salt, _ := hex.DecodeString("BEB25379D1A8581EB5A727673A2441EE")
	a, _ := hex.DecodeString("60975527035CF2AD1989806F0407210BC81EDC04E2762A56AFD529DDDA2D4393")
	B, _ := hex.DecodeString("" +
		"BD0C61512C692C0CB6D041FA01BB152D4916A1E77AF46AE105393011BAF38964" +
		"DC46A0670DD125B95A981652236F99D9B681CBF87837EC996C6DA04453728610" +
		"D0C6DDB58B318885D7D82C7F8DEB75CE7BD4FBAA37089E6F9C6059F388838E7A" +
		"00030B331EB76840910440B1B27AAEAEEB4012B7D7665238A8E3FB004B117B58")

	c, err := NewClient(sha1.New, g, "alice", []byte("password123"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	c.SetRandom(bytes.NewReader(a))

	_, A, err := c.StartAuthentication()
	if err != nil {
		t.Fatalf("StartAuthentication failed: %v", err)
	}
	wantA := mustHexInt(t, ""+
		"61D5E490F6F1B79547B0704C436F523DD0E560F0C64115BB72557EC44352E890"+
		"3211C04692272D8B2D1A5358A2CF1B6E0BFCF99F921530EC8E39356179EAE45E"+
		"42BA92AEACED825171E1E8B9AF6D9C03E1327F44BE087EF06530E69F66615261"+
		"EEF54073CA11CF5858F0EDFDFE15EFEAB349EF5D76988A3672FAC47B0769447B")
	if new(big.Int).SetBytes(A).Cmp(wantA) != 0 {
		t.Errorf("A = %x, want %x", A, wantA)
	}

	k := c.hashInt(g.N.Bytes(), g.pad(g.G.Bytes()))
	if want := mustHexInt(t, "7556AA045AEF2CDD07ABAF0F665C3E818913186F"); k.Cmp(want) != 0 {
		t.Errorf("k = %x, want %x", k, want)
	}
	u := c.hashInt(g.pad(A), g.pad(B))
	if want := mustHexInt(t, "CE38B9593487DA98554ED47D70A7AE5F462EF019"); u.Cmp(want) != 0 {
		t.Errorf("u = %x, want %x", u, want)
	}

	m1, err := c.ProcessChallenge(salt, B)
	if err != nil {
		t.Fatalf("ProcessChallenge failed: %v", err)
	}
	wantS := mustHexInt(t, ""+
		"B0DC82BABCF30674AE450C0287745E7990A3381F63B387AAF271A10D233861E3"+
		"59B48220F7C4693C9AE12B0A6F67809F0876E2D013800D6C41BB59B6D5979B5C"+
		"00A172B4A2A5903A0BDCAF8A709585EB2AFAFA8F3499B200210DCC1F10EB3394"+
		"3CD67FC88A2F39A4BE5BEC4EC0A3212DC346D7E474B29EDE8A469FFECA686E5A")
	if c.S.Cmp(wantS) != 0 {
		t.Errorf("S = %x, want %x", c.S, wantS)
	}

	if got := hex.EncodeToString(c.SessionKey()); got != "017eefa1cefc5c2e626e21598987f31e0f1b11bb" {
		t.Errorf("K = %s", got)
	}
	if got := hex.EncodeToString(m1); got != "3f3bc67169ea71302599cf1b0f5d408b7b65d347" {
		t.Errorf("M1 = %s", got)
	}
	hamk, _ := hex.DecodeString("9cab3c575a11de37d3ac1421a9f009236a48eb55")
	if !c.VerifySession(hamk) {
		t.Error("VerifySession rejected the vector HAMK")
	}
}

// The salt is hashed exactly as received; a leading zero byte is kept.
func TestClientSaltLeadingZero(t *testing.T) {
	salt, _ := hex.DecodeString("00B25379D1A8581EB5A727673A2441EE")
	c, err := NewClient(sha1.New, Group2048, "alice", []byte("password123"))
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	x := c.computeX(salt)
	if got := hex.EncodeToString(x.Bytes()); got != "112b895cf07842a4aae33071a7c535fd3ac61b74" {
		t.Errorf("x = %s, want hash over the unstripped salt", got)
	}
	if stripped := c.computeX(salt[1:]); stripped.Cmp(x) == 0 {
		t.Error("stripping the leading zero did not change x")
	}

	password := []byte("1234")
	server := newTestServerWithSalt(t, sha512.New, Group3072, "Pair-Setup", password, salt)
	c, _ = NewClient(sha512.New, Group3072, "Pair-Setup", password)
	defer c.Close()
	_, A, err := c.StartAuthentication()
	if err != nil {
		t.Fatalf("StartAuthentication failed: %v", err)
	}
	m1, err := c.ProcessChallenge(salt, server.B.Bytes())
	if err != nil {
		t.Fatalf("ProcessChallenge failed: %v", err)
	}
	_, wantM1, hamk := server.finish("Pair-Setup", A)
	if !bytes.Equal(m1, wantM1) {
		t.Error("M1 mismatch with a leading-zero salt")
	}
	if !c.VerifySession(hamk) {
		t.Error("VerifySession rejected the server proof")
	}
}

func TestClientAgainstVerifier(t *testing.T) {
	groups := []*Group{Group2048, Group3072}
	for _, g := range groups {
		t.Run(g.Name, func(t *testing.T) {
			password := []byte("1234")
			server := newTestServer(t, sha512.New, g, "Pair-Setup", password)

			c, err := NewClient(sha512.New, g, "Pair-Setup", password)
			if err != nil {
				t.Fatalf("NewClient failed: %v", err)
			}
			defer c.Close()

			identity, A, err := c.StartAuthentication()
			if err != nil {
				t.Fatalf("StartAuthentication failed: %v", err)
			}
			if identity != "Pair-Setup" {
				t.Errorf("identity = %q", identity)
			}

			m1, err := c.ProcessChallenge(server.salt, server.B.Bytes())
			if err != nil {
				t.Fatalf("ProcessChallenge failed: %v", err)
			}

			key, wantM1, hamk := server.finish(identity, A)
			if !bytes.Equal(c.SessionKey(), key) {
				t.Error("session key mismatch")
			}
			if !bytes.Equal(m1, wantM1) {
				t.Error("M1 mismatch")
			}
			if len(m1) != sha512.Size {
				t.Errorf("len(M1) = %d, want %d", len(m1), sha512.Size)
			}
			if c.Authenticated() {
				t.Error("authenticated before server proof")
			}
			if !c.VerifySession(hamk) {
				t.Fatal("VerifySession rejected a valid server proof")
			}
			if !c.Authenticated() {
				t.Error("not authenticated after valid server proof")
			}
		})
	}
}

func TestClientWrongPassword(t *testing.T) {
	server := newTestServer(t, sha512.New, Group3072, "Pair-Setup", []byte("1234"))

	c, _ := NewClient(sha512.New, Group3072, "Pair-Setup", []byte("4321"))
	_, A, err := c.StartAuthentication()
	if err != nil {
		t.Fatalf("StartAuthentication failed: %v", err)
	}
	m1, err := c.ProcessChallenge(server.salt, server.B.Bytes())
	if err != nil {
		t.Fatalf("ProcessChallenge failed: %v", err)
	}

	_, wantM1, hamk := server.finish("Pair-Setup", A)
	if bytes.Equal(m1, wantM1) {
		t.Error("M1 matched with the wrong password")
	}
	if c.VerifySession(hamk) {
		t.Error("VerifySession accepted a proof for a different password")
	}
	if c.Authenticated() {
		t.Error("client authenticated with the wrong password")
	}
	// A failed verification is final.
	if c.VerifySession(hamk) {
		t.Error("VerifySession succeeded after failure")
	}
}

func TestClientSafetyCheck(t *testing.T) {
	N := Group3072.N
	tests := []struct {
		name string
		B    []byte
	}{
		{"zero", []byte{0}},
		{"empty", nil},
		{"N", N.Bytes()},
		{"2N", new(big.Int).Lsh(N, 1).Bytes()},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c, _ := NewClient(sha512.New, Group3072, "Pair-Setup", []byte("1234"))
			if _, _, err := c.StartAuthentication(); err != nil {
				t.Fatalf("StartAuthentication failed: %v", err)
			}
			m1, err := c.ProcessChallenge([]byte{1, 2, 3, 4}, tc.B)
			if !errors.Is(err, ErrSafetyCheck) {
				t.Fatalf("ProcessChallenge error = %v, want ErrSafetyCheck", err)
			}
			if m1 != nil || c.Proof() != nil {
				t.Error("proof produced after safety check failure")
			}
			if c.SessionKey() != nil {
				t.Error("session key produced after safety check failure")
			}
			if c.VerifySession(make([]byte, 64)) {
				t.Error("VerifySession succeeded after safety check failure")
			}
		})
	}
}

func TestClientStateErrors(t *testing.T) {
	c, _ := NewClient(sha512.New, Group3072, "Pair-Setup", []byte("1234"))

	if _, err := c.ProcessChallenge([]byte{1}, []byte{2}); err != ErrInvalidState {
		t.Errorf("ProcessChallenge before start error = %v, want ErrInvalidState", err)
	}
	if c.VerifySession(make([]byte, 64)) {
		t.Error("VerifySession before start returned true")
	}
	if _, _, err := c.StartAuthentication(); err != nil {
		t.Fatalf("StartAuthentication failed: %v", err)
	}
	if _, _, err := c.StartAuthentication(); err != ErrInvalidState {
		t.Errorf("second StartAuthentication error = %v, want ErrInvalidState", err)
	}
	if _, err := c.ProcessChallenge(nil, []byte{2}); err != ErrEmptySalt {
		t.Errorf("ProcessChallenge with empty salt error = %v, want ErrEmptySalt", err)
	}
}

func TestClientDeterministicA(t *testing.T) {
	secret := bytes.Repeat([]byte{0xa5}, SecretBits/8)
	c, _ := NewClient(sha512.New, Group3072, "Pair-Setup", []byte("1234"))
	c.SetRandom(bytes.NewReader(secret))

	_, A, err := c.StartAuthentication()
	if err != nil {
		t.Fatalf("StartAuthentication failed: %v", err)
	}
	want := new(big.Int).Exp(Group3072.G, new(big.Int).SetBytes(secret), Group3072.N)
	if !bytes.Equal(A, want.Bytes()) {
		t.Error("A != g^a mod N")
	}
}

func TestClientClose(t *testing.T) {
	password := []byte("1234")
	c, _ := NewClient(sha512.New, Group3072, "Pair-Setup", password)
	internal := c.password
	c.Close()

	if !bytes.Equal(internal, []byte{0, 0, 0, 0}) {
		t.Errorf("password not wiped: %x", internal)
	}
	if !bytes.Equal(password, []byte("1234")) {
		t.Error("caller's password buffer was modified")
	}
	if _, _, err := c.StartAuthentication(); err != ErrClosed {
		t.Errorf("StartAuthentication after Close error = %v, want ErrClosed", err)
	}
}

func TestNewClientErrors(t *testing.T) {
	if _, err := NewClient(nil, Group3072, "I", nil); err != ErrNilHash {
		t.Errorf("nil hash error = %v", err)
	}
	if _, err := NewClient(sha512.New, nil, "I", nil); err != ErrNilGroup {
		t.Errorf("nil group error = %v", err)
	}
}

func TestNewGroup(t *testing.T) {
	if Group3072.Size() != 384 {
		t.Errorf("Group3072.Size() = %d, want 384", Group3072.Size())
	}
	if Group2048.Size() != 256 {
		t.Errorf("Group2048.Size() = %d, want 256", Group2048.Size())
	}
	if Group3072.G.Int64() != 5 || Group2048.G.Int64() != 2 {
		t.Error("unexpected generators")
	}

	bad := []struct{ n, g string }{
		{"zz", "2"},
		{"10", "2"}, // even modulus
		{"17", "1"},
		{"17", "17"},
	}
	for _, tc := range bad {
		if _, err := NewGroup("bad", tc.n, tc.g); err != ErrInvalidGroup {
			t.Errorf("NewGroup(%s, %s) error = %v, want ErrInvalidGroup", tc.n, tc.g, err)
		}
	}
}
