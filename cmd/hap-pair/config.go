package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/backkem/homekit/pkg/securechannel"
	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
)

// Config is the controller state kept between runs.
type Config struct {
	// DeviceID is the controller identifier presented to accessories.
	DeviceID string `yaml:"device_id"`

	// Credential is the controller long-term key pair in text form.
	Credential string `yaml:"credential,omitempty"`

	// Accessories maps accessory pairing identifiers to what was learned
	// during Pair-Setup.
	Accessories map[string]*Peer `yaml:"accessories,omitempty"`
}

// Peer is a paired accessory.
type Peer struct {
	Address   string `yaml:"address"`
	Name      string `yaml:"name,omitempty"`
	PublicKey string `yaml:"public_key"`
}

// LoadConfig reads path. A missing file yields an empty config.
func LoadConfig(path string) (*Config, error) {
	c := &Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, err
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, fmt.Errorf("config %s: %w", path, err)
		}
	}
	if c.Accessories == nil {
		c.Accessories = make(map[string]*Peer)
	}
	return c, nil
}

// Save writes the config to path, readable only by the owner.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}

// Identity returns the controller credential, creating the device id and
// the key pair on first use.
func (c *Config) Identity(r io.Reader) (*securechannel.Credential, error) {
	if c.DeviceID == "" {
		c.DeviceID = newDeviceID()
	}
	if c.Credential == "" {
		cred, err := securechannel.GenerateCredential(r)
		if err != nil {
			return nil, err
		}
		c.Credential = cred.Encode()
		return cred, nil
	}
	return securechannel.ParseCredential(c.Credential)
}

// Peer returns the accessory stored under id, ignoring case.
func (c *Config) Peer(id string) (*Peer, bool) {
	p, ok := c.Accessories[strings.ToUpper(id)]
	return p, ok
}

// SetPeer stores an accessory under its upper-cased id.
func (c *Config) SetPeer(id string, p *Peer) {
	c.Accessories[strings.ToUpper(id)] = p
}

// PeerIDs returns the stored accessory ids in order.
func (c *Config) PeerIDs() []string {
	ids := make([]string, 0, len(c.Accessories))
	for id := range c.Accessories {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Key decodes the accessory long-term public key.
func (p *Peer) Key() (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(p.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("accessory public key: %w", err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("accessory public key: length %d", len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// newDeviceID derives a 16 character identifier from a random UUID.
func newDeviceID() string {
	u := uuid.New()
	return strings.ToUpper(hex.EncodeToString(u[:8]))
}
