package accessory

import (
	"crypto/ed25519"

	"github.com/backkem/homekit/pkg/securechannel"
	"github.com/backkem/homekit/pkg/securechannel/pairings"
	"github.com/backkem/homekit/pkg/securechannel/pairsetup"
	"github.com/backkem/homekit/pkg/tlv8"
)

type setupState struct {
	srp  *srpVerifier
	next byte
}

func errorResponse(state byte, code securechannel.PeerCode) []byte {
	return tlv8.New().
		AddByte(securechannel.TypeState, state).
		AddByte(securechannel.TypeError, byte(code)).
		Encode()
}

func (h *handler) pairSetup(body []byte) []byte {
	c, err := tlv8.Decode(body)
	if err != nil {
		return errorResponse(2, securechannel.PeerCodeUnknown)
	}
	state, err := c.Byte(securechannel.TypeState)
	if err != nil {
		return errorResponse(2, securechannel.PeerCodeUnknown)
	}

	switch {
	case state == 1:
		return h.setupM1(c)
	case h.setup == nil || state != h.setup.next:
		h.setup = nil
		return errorResponse(state+1, securechannel.PeerCodeUnknown)
	case state == 3:
		return h.setupM3(c)
	case state == 5:
		return h.setupM5(c)
	default:
		return errorResponse(state+1, securechannel.PeerCodeUnknown)
	}
}

func (h *handler) setupM1(c *tlv8.Container) []byte {
	a := h.a
	a.mu.Lock()
	faults := a.faults
	paired := len(a.pairings) > 0
	a.mu.Unlock()

	if m, err := c.Byte(securechannel.TypeMethod); err != nil || securechannel.Method(m) != securechannel.MethodPairSetup {
		return errorResponse(2, securechannel.PeerCodeUnknown)
	}
	if faults.SetupError != 0 {
		resp := tlv8.New().
			AddByte(securechannel.TypeState, 2).
			AddByte(securechannel.TypeError, byte(faults.SetupError))
		if faults.RetryDelay > 0 {
			resp.AddUint(securechannel.TypeRetryDelay, faults.RetryDelay)
		}
		return resp.Encode()
	}
	if paired {
		return errorResponse(2, securechannel.PeerCodeUnavailable)
	}

	v, err := newSRPVerifier(a.rand, a.group, pairsetup.Identity, a.pin[:pairsetup.PINLength])
	if err != nil {
		return errorResponse(2, securechannel.PeerCodeUnknown)
	}
	h.setup = &setupState{srp: v, next: 3}

	B := v.B.Bytes()
	if faults.ZeroB {
		B = []byte{0}
	}
	a.debugf("pair-setup M2")
	return tlv8.New().
		AddByte(securechannel.TypeState, 2).
		Add(securechannel.TypeSalt, v.salt).
		Add(securechannel.TypePublicKey, B).
		Encode()
}

func (h *handler) setupM3(c *tlv8.Container) []byte {
	A, errA := c.Bytes(securechannel.TypePublicKey)
	proof, errP := c.Bytes(securechannel.TypeProof)
	if errA != nil || errP != nil {
		h.setup = nil
		return errorResponse(4, securechannel.PeerCodeUnknown)
	}

	hamk, ok := h.setup.srp.verify(pairsetup.Identity, A, proof)
	if !ok {
		h.setup = nil
		return errorResponse(4, securechannel.PeerCodeAuthentication)
	}

	h.a.mu.Lock()
	corrupt := h.a.faults.CorruptProof
	h.a.mu.Unlock()
	if corrupt {
		hamk[0] ^= 0x01
	}

	h.setup.next = 5
	h.a.debugf("pair-setup M4")
	return tlv8.New().
		AddByte(securechannel.TypeState, 4).
		Add(securechannel.TypeProof, hamk).
		Encode()
}

func (h *handler) setupM5(c *tlv8.Container) []byte {
	a := h.a
	key := h.setup.srp.key
	h.setup = nil

	sealed, err := c.Bytes(securechannel.TypeEncryptedData)
	if err != nil {
		return errorResponse(6, securechannel.PeerCodeUnknown)
	}
	plain, err := securechannel.OpenStage(key, securechannel.StageSetupM5, sealed)
	if err != nil {
		return errorResponse(6, securechannel.PeerCodeAuthentication)
	}
	inner, err := tlv8.Decode(plain)
	if err != nil {
		return errorResponse(6, securechannel.PeerCodeUnknown)
	}
	id, errID := inner.Bytes(securechannel.TypeIdentifier)
	ltpk, errPK := inner.Bytes(securechannel.TypePublicKey)
	sig, errSig := inner.Bytes(securechannel.TypeSignature)
	if errID != nil || errPK != nil || errSig != nil || len(ltpk) != ed25519.PublicKeySize {
		return errorResponse(6, securechannel.PeerCodeUnknown)
	}

	controllerX, err := securechannel.DeriveKey(key, securechannel.StageSetupControllerSign, pairsetup.SignKeySize)
	if err != nil {
		return errorResponse(6, securechannel.PeerCodeUnknown)
	}
	if !securechannel.VerifyDeviceInfo(ltpk, controllerX, string(id), ltpk, sig) {
		return errorResponse(6, securechannel.PeerCodeAuthentication)
	}

	accessoryX, err := securechannel.DeriveKey(key, securechannel.StageSetupAccessorySign, pairsetup.SignKeySize)
	if err != nil {
		return errorResponse(6, securechannel.PeerCodeUnknown)
	}
	accSig := securechannel.SignDeviceInfo(a.cred.PrivateKey, accessoryX, a.id, a.cred.PublicKey)

	a.mu.Lock()
	if a.faults.CorruptSetupSignature {
		accSig[0] ^= 0x01
	}
	a.pairings[string(id)] = pairings.Pairing{
		ID:        string(id),
		PublicKey: append(ed25519.PublicKey(nil), ltpk...),
		Admin:     true,
	}
	a.pairingsChangedLocked()
	a.mu.Unlock()

	out := tlv8.New().
		AddString(securechannel.TypeIdentifier, a.id).
		Add(securechannel.TypePublicKey, a.cred.PublicKey).
		Add(securechannel.TypeSignature, accSig)
	resp, err := securechannel.SealStage(key, securechannel.StageSetupM6, out.Encode())
	if err != nil {
		return errorResponse(6, securechannel.PeerCodeUnknown)
	}

	if a.log != nil {
		a.log.Infof("paired with controller %s", id)
	}
	return tlv8.New().
		AddByte(securechannel.TypeState, 6).
		Add(securechannel.TypeEncryptedData, resp).
		Encode()
}
