package pairverify

import (
	"context"
	"crypto/ed25519"
	"io"
	"sync"

	"github.com/backkem/homekit/pkg/crypto"
	"github.com/backkem/homekit/pkg/securechannel"
	"github.com/backkem/homekit/pkg/tlv8"
	"github.com/pion/logging"
)

// State represents the Pair-Verify state machine.
type State int

const (
	StateInit State = iota
	StateM1Sent
	StateM2Received
	StateM3Sent
	StateComplete
	StateFailed
	StateClosed
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateInit:
		return "Init"
	case StateM1Sent:
		return "M1Sent"
	case StateM2Received:
		return "M2Received"
	case StateM3Sent:
		return "M3Sent"
	case StateComplete:
		return "Complete"
	case StateFailed:
		return "Failed"
	case StateClosed:
		return "Closed"
	default:
		return "Unknown"
	}
}

// Config holds the parameters of a Pair-Verify session.
type Config struct {
	// AuthKey is the credential text returned by Pair-Setup.
	// Ignored when Credential is set.
	AuthKey string

	// Credential is the parsed long-term key pair.
	Credential *securechannel.Credential

	// DeviceID is the controller identifier used during Pair-Setup.
	DeviceID string

	// PeerID, when set, must match the identifier the accessory presents.
	PeerID string

	// PeerPublicKey is the accessory long-term key from Pair-Setup, used to
	// verify the accessory signature in M2. Required unless
	// InsecureSkipVerify is set.
	PeerPublicKey ed25519.PublicKey

	// InsecureSkipVerify accepts the accessory without checking its
	// signature. The channel is then open to an active attacker.
	InsecureSkipVerify bool

	// Rand is the randomness source for the ephemeral key. Defaults to crypto/rand.
	Rand io.Reader

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Session is a single Pair-Verify run.
type Session struct {
	state State
	err   error

	deviceID   string
	credential *securechannel.Credential

	peerID        string
	peerPublicKey ed25519.PublicKey
	skipVerify    bool

	ephemeral    *crypto.X25519KeyPair
	peerEph      []byte
	sharedSecret []byte
	verifiedID   string

	rand io.Reader
	log  logging.LeveledLogger

	mu sync.Mutex
}

// New validates cfg and creates a session.
func New(cfg Config) (*Session, error) {
	const op = "pair-verify"
	if err := securechannel.ValidateDeviceID(op, cfg.DeviceID); err != nil {
		return nil, err
	}
	cred := cfg.Credential
	if cred == nil {
		var err error
		cred, err = securechannel.ParseCredential(cfg.AuthKey)
		if err != nil {
			return nil, err
		}
	}
	if cfg.PeerPublicKey == nil && !cfg.InsecureSkipVerify {
		return nil, securechannel.Errorf(securechannel.KindParameter, op,
			"peer public key is required unless verification is skipped")
	}
	if cfg.PeerPublicKey != nil && len(cfg.PeerPublicKey) != ed25519.PublicKeySize {
		return nil, securechannel.Errorf(securechannel.KindParameter, op,
			"peer public key is %d bytes, want %d", len(cfg.PeerPublicKey), ed25519.PublicKeySize)
	}

	s := &Session{
		state:         StateInit,
		deviceID:      cfg.DeviceID,
		credential:    cred,
		peerID:        cfg.PeerID,
		peerPublicKey: cfg.PeerPublicKey,
		skipVerify:    cfg.InsecureSkipVerify,
		rand:          cfg.Rand,
	}
	if cfg.LoggerFactory != nil {
		s.log = cfg.LoggerFactory.NewLogger("pair-verify")
	}
	return s, nil
}

// SetRandom replaces the source for the ephemeral key. For testing only.
func (s *Session) SetRandom(r io.Reader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rand = r
}

// BuildM1 generates the ephemeral key pair and returns the M1 request.
func (s *Session) BuildM1() ([]byte, error) {
	const op = "pair-verify M1"
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(op, StateInit); err != nil {
		return nil, err
	}

	kp, err := crypto.GenerateX25519(s.rand)
	if err != nil {
		return nil, s.fail(securechannel.NewError(securechannel.KindAllocation, op, "ephemeral key", err))
	}
	s.ephemeral = kp

	msg := tlv8.New().
		AddByte(securechannel.TypeState, securechannel.StageVerifyM1.State()).
		Add(securechannel.TypePublicKey, kp.Public[:])

	s.state = StateM1Sent
	s.debugf("M1 sent")
	return msg.Encode(), nil
}

// HandleM2 computes the shared secret and verifies the accessory's signed
// ephemeral key.
func (s *Session) HandleM2(data []byte) error {
	const op = "pair-verify M2"
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(op, StateM1Sent); err != nil {
		return err
	}

	c, err := securechannel.ParseResponse(op, data, securechannel.StageVerifyM2.State())
	if err != nil {
		return s.fail(err)
	}
	peerEph, err := securechannel.Require(op, c, securechannel.TypePublicKey, "public key", crypto.X25519KeySize)
	if err != nil {
		return s.fail(err)
	}
	sealed, err := securechannel.Require(op, c, securechannel.TypeEncryptedData, "encrypted data", 0)
	if err != nil {
		return s.fail(err)
	}

	shared, err := crypto.X25519(s.ephemeral.Private[:], peerEph)
	if err != nil {
		return s.fail(securechannel.NewError(securechannel.KindProtocol, op, "peer ephemeral key", err))
	}
	s.sharedSecret = shared

	plain, err := securechannel.OpenStage(shared, securechannel.StageVerifyM2, sealed)
	if err != nil {
		return s.fail(err)
	}
	inner, err := tlv8.Decode(plain)
	if err != nil {
		return s.fail(securechannel.NewError(securechannel.KindParse, op, "malformed sub-TLV", err))
	}
	id, err := securechannel.Require(op, inner, securechannel.TypeIdentifier, "identifier", 0)
	if err != nil {
		return s.fail(err)
	}
	sig, err := securechannel.Require(op, inner, securechannel.TypeSignature, "signature", ed25519.SignatureSize)
	if err != nil {
		return s.fail(err)
	}

	if s.peerID != "" && string(id) != s.peerID {
		return s.fail(securechannel.Errorf(securechannel.KindAuthentication, op,
			"accessory identifier %q, want %q", id, s.peerID))
	}
	if !s.skipVerify {
		if !securechannel.VerifyDeviceInfo(s.peerPublicKey, peerEph, string(id), s.ephemeral.Public[:], sig) {
			return s.fail(securechannel.Errorf(securechannel.KindAuthentication, op, "accessory signature mismatch"))
		}
	} else if s.log != nil {
		s.log.Warnf("accessory %s accepted without signature verification", id)
	}

	s.peerEph = append([]byte(nil), peerEph...)
	s.verifiedID = string(id)
	s.state = StateM2Received
	s.debugf("M2 received from %s", s.verifiedID)
	return nil
}

// BuildM3 returns the M3 request carrying the controller's signature over
// both ephemeral keys.
func (s *Session) BuildM3() ([]byte, error) {
	const op = "pair-verify M3"
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(op, StateM2Received); err != nil {
		return nil, err
	}

	sig := securechannel.SignDeviceInfo(s.credential.PrivateKey, s.ephemeral.Public[:], s.deviceID, s.peerEph)
	inner := tlv8.New().
		AddString(securechannel.TypeIdentifier, s.deviceID).
		Add(securechannel.TypeSignature, sig)

	sealed, err := securechannel.SealStage(s.sharedSecret, securechannel.StageVerifyM3, inner.Encode())
	if err != nil {
		return nil, s.fail(err)
	}

	msg := tlv8.New().
		AddByte(securechannel.TypeState, securechannel.StageVerifyM3.State()).
		Add(securechannel.TypeEncryptedData, sealed)

	s.state = StateM3Sent
	s.debugf("M3 sent")
	return msg.Encode(), nil
}

// HandleM4 consumes the accessory's acknowledgement.
func (s *Session) HandleM4(data []byte) error {
	const op = "pair-verify M4"
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(op, StateM3Sent); err != nil {
		return err
	}
	if _, err := securechannel.ParseResponse(op, data, securechannel.StageVerifyM4.State()); err != nil {
		return s.fail(err)
	}

	s.ephemeral.Zero()
	s.state = StateComplete
	if s.log != nil {
		s.log.Infof("verified accessory %s", s.verifiedID)
	}
	return nil
}

// SharedSecret returns the X25519 shared secret once the session is complete.
func (s *Session) SharedSecret() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateComplete {
		if s.err != nil {
			return nil, s.err
		}
		return nil, securechannel.Errorf(securechannel.KindProtocol, "pair-verify result", "session is %s", s.state)
	}
	return append([]byte(nil), s.sharedSecret...), nil
}

// PeerID returns the identifier the accessory presented in M2.
func (s *Session) PeerID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.verifiedID
}

// Run drives all four messages through ex and returns the shared secret.
func (s *Session) Run(ctx context.Context, ex securechannel.Exchanger) ([]byte, error) {
	type step struct {
		build  func() ([]byte, error)
		handle func([]byte) error
	}
	steps := []step{
		{s.BuildM1, s.HandleM2},
		{s.BuildM3, s.HandleM4},
	}
	for _, st := range steps {
		req, err := st.build()
		if err != nil {
			return nil, err
		}
		resp, err := ex.Exchange(ctx, securechannel.PathPairVerify, req)
		if err != nil {
			return nil, s.failLocked(err)
		}
		if err := st.handle(resp); err != nil {
			return nil, err
		}
	}
	return s.SharedSecret()
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Err returns the error that ended the session, if any.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close wipes the ephemeral key and shared secret.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wipe()
	s.state = StateClosed
}

func (s *Session) wipe() {
	if s.ephemeral != nil {
		s.ephemeral.Zero()
	}
	for i := range s.sharedSecret {
		s.sharedSecret[i] = 0
	}
}

func (s *Session) expect(op string, want State) error {
	switch s.state {
	case want:
		return nil
	case StateFailed:
		return s.err
	case StateClosed:
		return ErrClosed
	default:
		return securechannel.Errorf(securechannel.KindProtocol, op, "called in state %s", s.state)
	}
}

func (s *Session) fail(err error) error {
	s.wipe()
	s.state = StateFailed
	s.err = err
	if s.log != nil {
		s.log.Warnf("pair-verify failed: %v", err)
	}
	return err
}

func (s *Session) failLocked(err error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fail(err)
}

func (s *Session) debugf(format string, args ...any) {
	if s.log != nil {
		s.log.Debugf(format, args...)
	}
}
