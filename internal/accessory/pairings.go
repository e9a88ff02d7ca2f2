package accessory

import (
	"crypto/ed25519"
	"sort"

	"github.com/backkem/homekit/pkg/securechannel"
	"github.com/backkem/homekit/pkg/securechannel/pairings"
	"github.com/backkem/homekit/pkg/tlv8"
)

func (h *handler) pairingsRequest(body []byte) []byte {
	if !h.secure || !h.admin {
		return errorResponse(2, securechannel.PeerCodeAuthentication)
	}
	c, err := tlv8.Decode(body)
	if err != nil {
		return errorResponse(2, securechannel.PeerCodeUnknown)
	}
	if st, err := c.Byte(securechannel.TypeState); err != nil || st != 1 {
		return errorResponse(2, securechannel.PeerCodeUnknown)
	}
	m, err := c.Byte(securechannel.TypeMethod)
	if err != nil {
		return errorResponse(2, securechannel.PeerCodeUnknown)
	}

	a := h.a
	a.mu.Lock()
	defer a.mu.Unlock()

	switch securechannel.Method(m) {
	case securechannel.MethodAddPairing:
		id, errID := c.Bytes(securechannel.TypeIdentifier)
		ltpk, errPK := c.Bytes(securechannel.TypePublicKey)
		perm, errPerm := c.Byte(securechannel.TypePermissions)
		if errID != nil || errPK != nil || errPerm != nil || len(ltpk) != ed25519.PublicKeySize {
			return errorResponse(2, securechannel.PeerCodeUnknown)
		}
		if existing, ok := a.pairings[string(id)]; ok {
			if !existing.PublicKey.Equal(ed25519.PublicKey(ltpk)) {
				return errorResponse(2, securechannel.PeerCodeUnknown)
			}
		} else if len(a.pairings) >= MaxPairings {
			return errorResponse(2, securechannel.PeerCodeMaxPeers)
		}
		a.pairings[string(id)] = pairings.Pairing{
			ID:        string(id),
			PublicKey: append(ed25519.PublicKey(nil), ltpk...),
			Admin:     perm&securechannel.PermissionAdmin != 0,
		}
		a.pairingsChangedLocked()

	case securechannel.MethodRemovePairing:
		id, err := c.Bytes(securechannel.TypeIdentifier)
		if err != nil {
			return errorResponse(2, securechannel.PeerCodeUnknown)
		}
		delete(a.pairings, string(id))
		a.pairingsChangedLocked()

	case securechannel.MethodListPairings:
		resp := tlv8.New().AddByte(securechannel.TypeState, 2)
		first := true
		for _, p := range a.sortedPairingsLocked() {
			if !first {
				resp.AddSeparator(securechannel.TypeSeparator)
			}
			first = false
			resp.AddString(securechannel.TypeIdentifier, p.ID).
				Add(securechannel.TypePublicKey, p.PublicKey).
				AddByte(securechannel.TypePermissions, p.Permissions())
		}
		return resp.Encode()

	default:
		return errorResponse(2, securechannel.PeerCodeUnknown)
	}
	return tlv8.New().AddByte(securechannel.TypeState, 2).Encode()
}

func (a *Accessory) sortedPairingsLocked() []pairings.Pairing {
	out := make([]pairings.Pairing, 0, len(a.pairings))
	for _, p := range a.pairings {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
