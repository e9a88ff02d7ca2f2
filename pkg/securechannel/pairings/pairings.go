// Package pairings builds and parses the pairing management requests
// (add, remove, list) that an admin controller sends over a verified
// channel.
//
// Every exchange is a single request/response pair on the /pairings
// resource: the request carries State=1 and the method, the response
// State=2 and, for a list, one record per pairing separated by Separator
// items.
package pairings

import (
	"context"
	"crypto/ed25519"

	"github.com/backkem/homekit/pkg/securechannel"
	"github.com/backkem/homekit/pkg/tlv8"
)

const (
	stateRequest  byte = 1
	stateResponse byte = 2
)

// Pairing is one entry in an accessory's pairing list.
type Pairing struct {
	ID        string
	PublicKey ed25519.PublicKey
	Admin     bool
}

// Permissions returns the permissions byte of p.
func (p Pairing) Permissions() byte {
	if p.Admin {
		return securechannel.PermissionAdmin
	}
	return securechannel.PermissionUser
}

// AddRequest returns the request that registers another controller.
func AddRequest(id string, ltpk ed25519.PublicKey, admin bool) ([]byte, error) {
	const op = "add pairing"
	if id == "" {
		return nil, securechannel.Errorf(securechannel.KindParameter, op, "empty identifier")
	}
	if len(ltpk) != ed25519.PublicKeySize {
		return nil, securechannel.Errorf(securechannel.KindParameter, op,
			"public key is %d bytes, want %d", len(ltpk), ed25519.PublicKeySize)
	}
	p := Pairing{ID: id, Admin: admin}
	msg := tlv8.New().
		AddByte(securechannel.TypeState, stateRequest).
		AddByte(securechannel.TypeMethod, byte(securechannel.MethodAddPairing)).
		AddString(securechannel.TypeIdentifier, id).
		Add(securechannel.TypePublicKey, ltpk).
		AddByte(securechannel.TypePermissions, p.Permissions())
	return msg.Encode(), nil
}

// RemoveRequest returns the request that removes the controller id.
func RemoveRequest(id string) ([]byte, error) {
	if id == "" {
		return nil, securechannel.Errorf(securechannel.KindParameter, "remove pairing", "empty identifier")
	}
	msg := tlv8.New().
		AddByte(securechannel.TypeState, stateRequest).
		AddByte(securechannel.TypeMethod, byte(securechannel.MethodRemovePairing)).
		AddString(securechannel.TypeIdentifier, id)
	return msg.Encode(), nil
}

// ListRequest returns the request for the pairing list.
func ListRequest() []byte {
	return tlv8.New().
		AddByte(securechannel.TypeState, stateRequest).
		AddByte(securechannel.TypeMethod, byte(securechannel.MethodListPairings)).
		Encode()
}

// ParseResponse checks an add or remove response.
func ParseResponse(data []byte) error {
	_, err := securechannel.ParseResponse("pairings", data, stateResponse)
	return err
}

// ParseList decodes a list response.
func ParseList(data []byte) ([]Pairing, error) {
	const op = "list pairings"
	c, err := securechannel.ParseResponse(op, data, stateResponse)
	if err != nil {
		return nil, err
	}

	var out []Pairing
	for _, group := range c.Split(securechannel.TypeSeparator) {
		if !group.Has(securechannel.TypeIdentifier) {
			// A response for an accessory with no pairings holds only State.
			continue
		}
		id, err := securechannel.Require(op, group, securechannel.TypeIdentifier, "identifier", 0)
		if err != nil {
			return nil, err
		}
		pk, err := securechannel.Require(op, group, securechannel.TypePublicKey, "public key", ed25519.PublicKeySize)
		if err != nil {
			return nil, err
		}
		perm, err := securechannel.Require(op, group, securechannel.TypePermissions, "permissions", 1)
		if err != nil {
			return nil, err
		}
		out = append(out, Pairing{
			ID:        string(id),
			PublicKey: append(ed25519.PublicKey(nil), pk...),
			Admin:     perm[0]&securechannel.PermissionAdmin != 0,
		})
	}
	return out, nil
}

// Add registers p with the accessory behind ex.
func Add(ctx context.Context, ex securechannel.Exchanger, p Pairing) error {
	req, err := AddRequest(p.ID, p.PublicKey, p.Admin)
	if err != nil {
		return err
	}
	resp, err := ex.Exchange(ctx, securechannel.PathPairings, req)
	if err != nil {
		return err
	}
	return ParseResponse(resp)
}

// Remove deletes the pairing id from the accessory behind ex.
func Remove(ctx context.Context, ex securechannel.Exchanger, id string) error {
	req, err := RemoveRequest(id)
	if err != nil {
		return err
	}
	resp, err := ex.Exchange(ctx, securechannel.PathPairings, req)
	if err != nil {
		return err
	}
	return ParseResponse(resp)
}

// List returns the pairings of the accessory behind ex.
func List(ctx context.Context, ex securechannel.Exchanger) ([]Pairing, error) {
	resp, err := ex.Exchange(ctx, securechannel.PathPairings, ListRequest())
	if err != nil {
		return nil, err
	}
	return ParseList(resp)
}
