package accessory

import (
	"github.com/backkem/homekit/pkg/crypto"
	"github.com/backkem/homekit/pkg/securechannel"
	"github.com/backkem/homekit/pkg/tlv8"
)

type verifyState struct {
	ephemeral *crypto.X25519KeyPair
	peerEph   []byte
	shared    []byte
}

func (h *handler) pairVerify(body []byte) []byte {
	c, err := tlv8.Decode(body)
	if err != nil {
		return errorResponse(2, securechannel.PeerCodeUnknown)
	}
	state, err := c.Byte(securechannel.TypeState)
	if err != nil {
		return errorResponse(2, securechannel.PeerCodeUnknown)
	}

	switch state {
	case 1:
		return h.verifyM1(c)
	case 3:
		if h.verify == nil {
			return errorResponse(4, securechannel.PeerCodeUnknown)
		}
		return h.verifyM3(c)
	default:
		h.verify = nil
		return errorResponse(state+1, securechannel.PeerCodeUnknown)
	}
}

func (h *handler) verifyM1(c *tlv8.Container) []byte {
	a := h.a
	h.verify = nil
	h.secure = false

	peerEph, err := c.Bytes(securechannel.TypePublicKey)
	if err != nil || len(peerEph) != crypto.X25519KeySize {
		return errorResponse(2, securechannel.PeerCodeUnknown)
	}
	kp, err := crypto.GenerateX25519(a.rand)
	if err != nil {
		return errorResponse(2, securechannel.PeerCodeUnknown)
	}
	shared, err := crypto.X25519(kp.Private[:], peerEph)
	if err != nil {
		return errorResponse(2, securechannel.PeerCodeAuthentication)
	}

	sig := securechannel.SignDeviceInfo(a.cred.PrivateKey, kp.Public[:], a.id, peerEph)
	a.mu.Lock()
	if a.faults.CorruptVerifySignature {
		sig[0] ^= 0x01
	}
	a.mu.Unlock()

	inner := tlv8.New().
		AddString(securechannel.TypeIdentifier, a.id).
		Add(securechannel.TypeSignature, sig)
	sealed, err := securechannel.SealStage(shared, securechannel.StageVerifyM2, inner.Encode())
	if err != nil {
		return errorResponse(2, securechannel.PeerCodeUnknown)
	}

	h.verify = &verifyState{
		ephemeral: kp,
		peerEph:   append([]byte(nil), peerEph...),
		shared:    shared,
	}
	a.debugf("pair-verify M2")
	return tlv8.New().
		AddByte(securechannel.TypeState, 2).
		Add(securechannel.TypePublicKey, kp.Public[:]).
		Add(securechannel.TypeEncryptedData, sealed).
		Encode()
}

func (h *handler) verifyM3(c *tlv8.Container) []byte {
	a := h.a
	vs := h.verify
	h.verify = nil
	defer vs.ephemeral.Zero()

	sealed, err := c.Bytes(securechannel.TypeEncryptedData)
	if err != nil {
		return errorResponse(4, securechannel.PeerCodeUnknown)
	}
	plain, err := securechannel.OpenStage(vs.shared, securechannel.StageVerifyM3, sealed)
	if err != nil {
		return errorResponse(4, securechannel.PeerCodeAuthentication)
	}
	inner, err := tlv8.Decode(plain)
	if err != nil {
		return errorResponse(4, securechannel.PeerCodeUnknown)
	}
	id, errID := inner.Bytes(securechannel.TypeIdentifier)
	sig, errSig := inner.Bytes(securechannel.TypeSignature)
	if errID != nil || errSig != nil {
		return errorResponse(4, securechannel.PeerCodeUnknown)
	}

	a.mu.Lock()
	p, known := a.pairings[string(id)]
	a.mu.Unlock()
	if !known {
		return errorResponse(4, securechannel.PeerCodeAuthentication)
	}
	if !securechannel.VerifyDeviceInfo(p.PublicKey, vs.peerEph, string(id), vs.ephemeral.Public[:], sig) {
		return errorResponse(4, securechannel.PeerCodeAuthentication)
	}

	h.controller = p.ID
	h.admin = p.Admin
	h.secure = true
	h.upgrade = vs.shared

	a.mu.Lock()
	a.lastShared = append([]byte(nil), vs.shared...)
	a.mu.Unlock()

	if a.log != nil {
		a.log.Infof("verified controller %s", p.ID)
	}
	return tlv8.New().AddByte(securechannel.TypeState, 4).Encode()
}
