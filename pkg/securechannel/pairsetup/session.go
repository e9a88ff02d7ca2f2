package pairsetup

import (
	"context"
	"crypto/ed25519"
	"errors"
	"io"
	"sync"

	"github.com/backkem/homekit/pkg/crypto"
	"github.com/backkem/homekit/pkg/crypto/srp"
	"github.com/backkem/homekit/pkg/securechannel"
	"github.com/backkem/homekit/pkg/tlv8"
	"github.com/pion/logging"
)

// State represents the Pair-Setup state machine.
type State int

const (
	StateInit State = iota
	StateM1Sent
	StateM2Received
	StateM3Sent
	StateM4Verified
	StateM5Sent
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
	case StateM4Verified:
		return "M4Verified"
	case StateM5Sent:
		return "M5Sent"
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

// Config holds the parameters of a Pair-Setup session.
type Config struct {
	// PIN is the accessory setup code. At least PINLength characters;
	// only the first PINLength bytes are used.
	PIN string

	// DeviceID is the controller identifier, exactly 16 characters.
	DeviceID string

	// Group selects the SRP group. Defaults to srp.Group3072.
	Group *srp.Group

	// Credential is the long-term key pair to register. A fresh pair is
	// generated when nil.
	Credential *securechannel.Credential

	// Rand is the randomness source. Defaults to crypto/rand.
	Rand io.Reader

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Session is a single Pair-Setup run. Steps must be called in protocol
// order; any failure is final and is returned again by later calls.
type Session struct {
	state State
	err   error

	deviceID   string
	group      *srp.Group
	srp        *srp.Client
	credential *securechannel.Credential

	salt    []byte
	serverB []byte

	peerID        string
	peerPublicKey ed25519.PublicKey

	rand io.Reader
	log  logging.LeveledLogger

	mu sync.Mutex
}

// New validates cfg and creates a session.
func New(cfg Config) (*Session, error) {
	const op = "pair-setup"
	if len(cfg.PIN) < PINLength {
		return nil, securechannel.Errorf(securechannel.KindParameter, op,
			"PIN must be at least %d characters", PINLength)
	}
	if err := securechannel.ValidateDeviceID(op, cfg.DeviceID); err != nil {
		return nil, err
	}

	group := cfg.Group
	if group == nil {
		group = srp.Group3072
	}
	client, err := srp.NewClient(crypto.NewSHA512, group, Identity, []byte(cfg.PIN[:PINLength]))
	if err != nil {
		return nil, securechannel.NewError(securechannel.KindParameter, op, "srp", err)
	}

	s := &Session{
		state:      StateInit,
		deviceID:   cfg.DeviceID,
		group:      group,
		srp:        client,
		credential: cfg.Credential,
		rand:       cfg.Rand,
	}
	if s.rand != nil {
		client.SetRandom(s.rand)
	}
	if cfg.LoggerFactory != nil {
		s.log = cfg.LoggerFactory.NewLogger("pair-setup")
	}
	return s, nil
}

// SetRandom replaces the randomness source for the SRP exponent and key
// generation. For testing only.
func (s *Session) SetRandom(r io.Reader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rand = r
	s.srp.SetRandom(r)
}

// BuildM1 returns the M1 request: State=1, Method=PairSetup.
func (s *Session) BuildM1() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect("pair-setup M1", StateInit); err != nil {
		return nil, err
	}

	msg := tlv8.New().
		AddByte(securechannel.TypeState, securechannel.StageSetupM1.State()).
		AddByte(securechannel.TypeMethod, byte(securechannel.MethodPairSetup))

	s.state = StateM1Sent
	s.debugf("M1 sent")
	return msg.Encode(), nil
}

// HandleM2 consumes the M2 response carrying the SRP salt and B.
func (s *Session) HandleM2(data []byte) error {
	const op = "pair-setup M2"
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(op, StateM1Sent); err != nil {
		return err
	}

	c, err := securechannel.ParseResponse(op, data, securechannel.StageSetupM2.State())
	if err != nil {
		return s.fail(err)
	}
	salt, err := securechannel.Require(op, c, securechannel.TypeSalt, "salt", 0)
	if err != nil {
		return s.fail(err)
	}
	B, err := securechannel.Require(op, c, securechannel.TypePublicKey, "public key", 0)
	if err != nil {
		return s.fail(err)
	}

	s.salt = append([]byte(nil), salt...)
	s.serverB = append([]byte(nil), B...)
	s.state = StateM2Received
	s.debugf("M2 received: salt %d bytes, B %d bytes", len(salt), len(B))
	return nil
}

// BuildM3 runs the SRP client over the received salt and B and returns the
// M3 request: State=3, PublicKey(A), Proof(M1).
func (s *Session) BuildM3() ([]byte, error) {
	const op = "pair-setup M3"
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(op, StateM2Received); err != nil {
		return nil, err
	}

	_, A, err := s.srp.StartAuthentication()
	if err != nil {
		return nil, s.fail(securechannel.NewError(securechannel.KindAllocation, op, "srp start", err))
	}
	proof, err := s.srp.ProcessChallenge(s.salt, s.serverB)
	if err != nil {
		if errors.Is(err, srp.ErrSafetyCheck) {
			return nil, s.fail(securechannel.NewError(securechannel.KindProtocol, op, "server public value rejected", err))
		}
		return nil, s.fail(securechannel.NewError(securechannel.KindProtocol, op, "srp challenge", err))
	}

	msg := tlv8.New().
		AddByte(securechannel.TypeState, securechannel.StageSetupM3.State()).
		Add(securechannel.TypePublicKey, A).
		Add(securechannel.TypeProof, proof)

	s.state = StateM3Sent
	s.debugf("M3 sent")
	return msg.Encode(), nil
}

// HandleM4 verifies the accessory's SRP proof. A mismatch is an
// authentication failure and ends the session.
func (s *Session) HandleM4(data []byte) error {
	const op = "pair-setup M4"
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(op, StateM3Sent); err != nil {
		return err
	}

	c, err := securechannel.ParseResponse(op, data, securechannel.StageSetupM4.State())
	if err != nil {
		return s.fail(err)
	}
	proof, err := securechannel.Require(op, c, securechannel.TypeProof, "proof", ProofSize)
	if err != nil {
		return s.fail(err)
	}
	if !s.srp.VerifySession(proof) {
		return s.fail(securechannel.Errorf(securechannel.KindAuthentication, op, "accessory proof mismatch"))
	}

	s.state = StateM4Verified
	s.debugf("M4 received: accessory proof verified")
	return nil
}

// BuildM5 returns the M5 request carrying the controller's signed
// long-term public key, encrypted under the SRP session key.
func (s *Session) BuildM5() ([]byte, error) {
	const op = "pair-setup M5"
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(op, StateM4Verified); err != nil {
		return nil, err
	}

	key := s.srp.SessionKey()
	prefix, err := securechannel.DeriveKey(key, securechannel.StageSetupControllerSign, SignKeySize)
	if err != nil {
		return nil, s.fail(err)
	}

	if s.credential == nil {
		s.credential, err = securechannel.GenerateCredential(s.rand)
		if err != nil {
			return nil, s.fail(err)
		}
	}
	ltpk := s.credential.PublicKey
	sig := securechannel.SignDeviceInfo(s.credential.PrivateKey, prefix, s.deviceID, ltpk)

	inner := tlv8.New().
		AddString(securechannel.TypeIdentifier, s.deviceID).
		Add(securechannel.TypePublicKey, ltpk).
		Add(securechannel.TypeSignature, sig)

	sealed, err := securechannel.SealStage(key, securechannel.StageSetupM5, inner.Encode())
	if err != nil {
		return nil, s.fail(err)
	}

	msg := tlv8.New().
		AddByte(securechannel.TypeState, securechannel.StageSetupM5.State()).
		Add(securechannel.TypeEncryptedData, sealed)

	s.state = StateM5Sent
	s.debugf("M5 sent")
	return msg.Encode(), nil
}

// HandleM6 decrypts the accessory's identifier and long-term public key
// and verifies its signature.
func (s *Session) HandleM6(data []byte) error {
	const op = "pair-setup M6"
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.expect(op, StateM5Sent); err != nil {
		return err
	}

	c, err := securechannel.ParseResponse(op, data, securechannel.StageSetupM6.State())
	if err != nil {
		return s.fail(err)
	}
	sealed, err := securechannel.Require(op, c, securechannel.TypeEncryptedData, "encrypted data", 0)
	if err != nil {
		return s.fail(err)
	}

	key := s.srp.SessionKey()
	plain, err := securechannel.OpenStage(key, securechannel.StageSetupM6, sealed)
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
	ltpk, err := securechannel.Require(op, inner, securechannel.TypePublicKey, "public key", ed25519.PublicKeySize)
	if err != nil {
		return s.fail(err)
	}
	sig, err := securechannel.Require(op, inner, securechannel.TypeSignature, "signature", ed25519.SignatureSize)
	if err != nil {
		return s.fail(err)
	}

	prefix, err := securechannel.DeriveKey(key, securechannel.StageSetupAccessorySign, SignKeySize)
	if err != nil {
		return s.fail(err)
	}
	if !securechannel.VerifyDeviceInfo(ltpk, prefix, string(id), ltpk, sig) {
		return s.fail(securechannel.Errorf(securechannel.KindAuthentication, op, "accessory signature mismatch"))
	}

	s.peerID = string(id)
	s.peerPublicKey = append(ed25519.PublicKey(nil), ltpk...)
	s.srp.Close()
	s.state = StateComplete
	if s.log != nil {
		s.log.Infof("paired with accessory %s", s.peerID)
	}
	return nil
}

// Result returns the pairing result once the session is complete.
func (s *Session) Result() (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateComplete {
		if s.err != nil {
			return nil, s.err
		}
		return nil, securechannel.Errorf(securechannel.KindProtocol, "pair-setup result", "session is %s", s.state)
	}
	return &Result{
		AuthKey:       s.credential.Encode(),
		PublicKey:     append(ed25519.PublicKey(nil), s.credential.PublicKey...),
		PrivateKey:    append(ed25519.PrivateKey(nil), s.credential.PrivateKey...),
		PeerID:        s.peerID,
		PeerPublicKey: append(ed25519.PublicKey(nil), s.peerPublicKey...),
	}, nil
}

// Run drives all six messages through ex and returns the result.
func (s *Session) Run(ctx context.Context, ex securechannel.Exchanger) (*Result, error) {
	type step struct {
		build  func() ([]byte, error)
		handle func([]byte) error
	}
	steps := []step{
		{s.BuildM1, s.HandleM2},
		{s.BuildM3, s.HandleM4},
		{s.BuildM5, s.HandleM6},
	}
	for _, st := range steps {
		req, err := st.build()
		if err != nil {
			return nil, err
		}
		resp, err := ex.Exchange(ctx, securechannel.PathPairSetup, req)
		if err != nil {
			return nil, s.failLocked(err)
		}
		if err := st.handle(resp); err != nil {
			return nil, err
		}
	}
	return s.Result()
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

// Close wipes the SRP secrets. The session cannot be used afterwards.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.srp.Close()
	s.state = StateClosed
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
	s.srp.Close()
	s.state = StateFailed
	s.err = err
	if s.log != nil {
		s.log.Warnf("pair-setup failed: %v", err)
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
