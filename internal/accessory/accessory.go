// Package accessory is a scripted HomeKit accessory used as the peer in
// end-to-end tests. It answers Pair-Setup, Pair-Verify and pairing
// management requests either in memory through Exchange or over a
// connection through Serve, and can be told to misbehave at chosen steps.
package accessory

import (
	"bufio"
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"

	"github.com/backkem/homekit/pkg/crypto/srp"
	"github.com/backkem/homekit/pkg/securechannel"
	"github.com/backkem/homekit/pkg/securechannel/pairings"
	"github.com/backkem/homekit/pkg/session"
	"github.com/pion/logging"
)

// DefaultPIN is the setup code used when Config.PIN is empty.
const DefaultPIN = "3141"

// MaxPairings is the largest number of controllers the accessory accepts.
const MaxPairings = 16

// StatusConnectionAuthorizationRequired is returned for protected
// resources requested before Pair-Verify.
const StatusConnectionAuthorizationRequired = 470

// Faults selects deliberate misbehaviour.
type Faults struct {
	// SetupError, when non-zero, is returned in response to Pair-Setup M1.
	SetupError securechannel.PeerCode
	// RetryDelay is the delay in seconds sent with SetupError.
	RetryDelay uint64
	// ZeroB sends B = 0 in Pair-Setup M2.
	ZeroB bool
	// CorruptProof flips a bit of the accessory proof in Pair-Setup M4.
	CorruptProof bool
	// CorruptSetupSignature flips a bit of the signature in Pair-Setup M6.
	CorruptSetupSignature bool
	// CorruptVerifySignature flips a bit of the signature in Pair-Verify M2.
	CorruptVerifySignature bool
}

// Config configures an Accessory.
type Config struct {
	// ID is the accessory pairing identifier. Defaults to "AA:BB:CC:DD:EE:FF".
	ID string

	// PIN is the setup code. Defaults to DefaultPIN.
	PIN string

	// Group is the SRP group. Defaults to srp.Group3072.
	Group *srp.Group

	// Credential is the accessory long-term key pair. Generated when nil.
	Credential *securechannel.Credential

	Faults Faults

	// Rand is the randomness source. Defaults to crypto/rand.
	Rand io.Reader

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Accessory is the scripted peer.
type Accessory struct {
	id    string
	pin   string
	group *srp.Group
	cred  *securechannel.Credential
	rand  io.Reader
	log   logging.LeveledLogger

	mu         sync.Mutex
	faults     Faults
	pairings   map[string]pairings.Pairing
	lastShared []byte
	onPairings func(paired bool)

	local *handler
}

// New creates an accessory.
func New(cfg Config) (*Accessory, error) {
	a := &Accessory{
		id:       cfg.ID,
		pin:      cfg.PIN,
		group:    cfg.Group,
		cred:     cfg.Credential,
		rand:     cfg.Rand,
		faults:   cfg.Faults,
		pairings: make(map[string]pairings.Pairing),
	}
	if a.id == "" {
		a.id = "AA:BB:CC:DD:EE:FF"
	}
	if a.pin == "" {
		a.pin = DefaultPIN
	}
	if len(a.pin) < 4 {
		return nil, fmt.Errorf("accessory: PIN %q too short", a.pin)
	}
	if a.group == nil {
		a.group = srp.Group3072
	}
	if a.rand == nil {
		a.rand = rand.Reader
	}
	if a.cred == nil {
		cred, err := securechannel.GenerateCredential(a.rand)
		if err != nil {
			return nil, err
		}
		a.cred = cred
	}
	if cfg.LoggerFactory != nil {
		a.log = cfg.LoggerFactory.NewLogger("accessory")
	}
	a.local = a.newHandler()
	return a, nil
}

// ID returns the accessory pairing identifier.
func (a *Accessory) ID() string {
	return a.id
}

// PublicKey returns the accessory long-term public key.
func (a *Accessory) PublicKey() ed25519.PublicKey {
	return a.cred.PublicKey
}

// SetFaults replaces the fault configuration.
func (a *Accessory) SetFaults(f Faults) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.faults = f
}

// Pairings returns the registered controllers ordered by identifier.
func (a *Accessory) Pairings() []pairings.Pairing {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.sortedPairingsLocked()
}

// AddPairing registers a controller directly.
func (a *Accessory) AddPairing(p pairings.Pairing) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.pairings[p.ID] = p
}

// OnPairingsChanged registers fn to be called after a pairing is added or
// removed, with whether any controller remains. fn runs with the accessory
// lock held and must not call back into the Accessory.
func (a *Accessory) OnPairingsChanged(fn func(paired bool)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.onPairings = fn
}

func (a *Accessory) pairingsChangedLocked() {
	if a.onPairings != nil {
		a.onPairings(len(a.pairings) > 0)
	}
}

// SharedSecret returns the secret of the most recent completed Pair-Verify.
func (a *Accessory) SharedSecret() []byte {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]byte(nil), a.lastShared...)
}

// Exchange answers one pairing request in memory. It implements
// securechannel.Exchanger. Requests share one connection state, so a
// completed Pair-Verify authorizes later /pairings requests.
func (a *Accessory) Exchange(ctx context.Context, path string, body []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	status, out := a.local.route(http.MethodPost, path, body)
	if status != http.StatusOK {
		return nil, fmt.Errorf("accessory: %s: HTTP status %d", path, status)
	}
	return out, nil
}

// Serve answers HTTP requests on conn until the peer closes it. After a
// successful Pair-Verify the connection switches to the encrypted channel.
func (a *Accessory) Serve(conn net.Conn) error {
	h := a.newHandler()
	var rw net.Conn = conn
	br := bufio.NewReader(conn)

	for {
		req, err := http.ReadRequest(br)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
				errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		body, err := io.ReadAll(req.Body)
		req.Body.Close()
		if err != nil {
			return err
		}

		status, out := h.route(req.Method, req.URL.Path, body)
		resp := &http.Response{
			StatusCode:    status,
			ProtoMajor:    1,
			ProtoMinor:    1,
			Request:       req,
			Header:        make(http.Header),
			ContentLength: int64(len(out)),
			Body:          io.NopCloser(bytes.NewReader(out)),
		}
		resp.Header.Set("Content-Type", h.contentType(req.URL.Path))

		// Each response leaves in a single write so it fills as few
		// channel blocks as possible.
		var buf bytes.Buffer
		if err := resp.Write(&buf); err != nil {
			return err
		}
		if _, err := rw.Write(buf.Bytes()); err != nil {
			return err
		}

		if secret := h.takeUpgrade(); secret != nil {
			cipher, err := session.NewCipher(session.CipherConfig{
				SharedSecret: secret,
				Role:         session.RoleAccessory,
			})
			if err != nil {
				return err
			}
			sc := session.NewConn(conn, cipher)
			rw = sc
			br = bufio.NewReader(sc)
			a.debugf("connection upgraded for %s", h.controller)
		}
	}
}

func (a *Accessory) debugf(format string, args ...any) {
	if a.log != nil {
		a.log.Debugf(format, args...)
	}
}

// handler holds per-connection protocol state.
type handler struct {
	a *Accessory

	setup  *setupState
	verify *verifyState

	controller string
	admin      bool
	secure     bool
	upgrade    []byte
}

func (a *Accessory) newHandler() *handler {
	return &handler{a: a}
}

func (h *handler) route(method, path string, body []byte) (int, []byte) {
	switch path {
	case securechannel.PathPairSetup, securechannel.PathPairVerify, securechannel.PathPairings:
		if method != http.MethodPost {
			return http.StatusMethodNotAllowed, nil
		}
	}

	switch path {
	case securechannel.PathPairSetup:
		return http.StatusOK, h.pairSetup(body)
	case securechannel.PathPairVerify:
		return http.StatusOK, h.pairVerify(body)
	case securechannel.PathPairings:
		return http.StatusOK, h.pairingsRequest(body)
	case "/accessories":
		if !h.secure {
			return StatusConnectionAuthorizationRequired, nil
		}
		return http.StatusOK, []byte(`{"accessories":[{"aid":1,"services":[]}]}`)
	default:
		return http.StatusNotFound, nil
	}
}

func (h *handler) contentType(path string) string {
	if path == "/accessories" {
		return "application/hap+json"
	}
	return securechannel.ContentType
}

func (h *handler) takeUpgrade() []byte {
	s := h.upgrade
	h.upgrade = nil
	return s
}
