package securechannel

import (
	"bytes"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"io"
)

// CredentialHexLen is the length of an encoded credential:
// hex(public key (32) || private key (64)).
const CredentialHexLen = 2 * (ed25519.PublicKeySize + ed25519.PrivateKeySize)

// DeviceIDLen is the required length of a controller device identifier.
const DeviceIDLen = 16

// Credential is the controller's long-term Ed25519 key pair produced by
// Pair-Setup and consumed by Pair-Verify.
type Credential struct {
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey
}

// GenerateCredential creates a new long-term key pair from r (crypto/rand when nil).
func GenerateCredential(r io.Reader) (*Credential, error) {
	if r == nil {
		r = rand.Reader
	}
	pub, priv, err := ed25519.GenerateKey(r)
	if err != nil {
		return nil, NewError(KindAllocation, "generate credential", "ed25519", err)
	}
	return &Credential{PublicKey: pub, PrivateKey: priv}, nil
}

// ParseCredential decodes the text form produced by Encode.
func ParseCredential(s string) (*Credential, error) {
	const op = "parse credential"
	if len(s) != CredentialHexLen {
		return nil, Errorf(KindParameter, op, "length %d, want %d", len(s), CredentialHexLen)
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, NewError(KindParameter, op, "invalid hex", err)
	}
	pub := ed25519.PublicKey(raw[:ed25519.PublicKeySize])
	priv := ed25519.PrivateKey(raw[ed25519.PublicKeySize:])
	if !bytes.Equal(priv.Public().(ed25519.PublicKey), pub) {
		return nil, Errorf(KindParameter, op, "public key does not match private key")
	}
	return &Credential{PublicKey: pub, PrivateKey: priv}, nil
}

// Encode returns the lowercase hex text form of the credential.
func (c *Credential) Encode() string {
	raw := make([]byte, 0, ed25519.PublicKeySize+ed25519.PrivateKeySize)
	raw = append(raw, c.PublicKey...)
	raw = append(raw, c.PrivateKey...)
	return hex.EncodeToString(raw)
}

// Zero overwrites the private key.
func (c *Credential) Zero() {
	for i := range c.PrivateKey {
		c.PrivateKey[i] = 0
	}
}

// ValidateDeviceID checks that id has the length peers expect.
func ValidateDeviceID(op, id string) error {
	if len(id) != DeviceIDLen {
		return Errorf(KindParameter, op, "device id must be %d characters, got %d", DeviceIDLen, len(id))
	}
	return nil
}
