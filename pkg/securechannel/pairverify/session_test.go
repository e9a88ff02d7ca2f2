package pairverify_test

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/backkem/homekit/internal/accessory"
	"github.com/backkem/homekit/pkg/crypto"
	"github.com/backkem/homekit/pkg/securechannel"
	"github.com/backkem/homekit/pkg/securechannel/pairings"
	"github.com/backkem/homekit/pkg/securechannel/pairsetup"
	"github.com/backkem/homekit/pkg/securechannel/pairverify"
	"github.com/backkem/homekit/pkg/session"
	"github.com/backkem/homekit/pkg/tlv8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDeviceID = "C0FFEE00C0FFEE00"

// paired returns an accessory with testDeviceID registered and the
// matching verify configuration.
func paired(t *testing.T, faults accessory.Faults) (*accessory.Accessory, pairverify.Config) {
	t.Helper()
	acc, err := accessory.New(accessory.Config{})
	require.NoError(t, err)

	cred, err := securechannel.GenerateCredential(nil)
	require.NoError(t, err)
	acc.AddPairing(pairings.Pairing{ID: testDeviceID, PublicKey: cred.PublicKey, Admin: true})
	acc.SetFaults(faults)

	return acc, pairverify.Config{
		AuthKey:       cred.Encode(),
		DeviceID:      testDeviceID,
		PeerID:        acc.ID(),
		PeerPublicKey: acc.PublicKey(),
	}
}

func TestPairVerifyRun(t *testing.T) {
	acc, cfg := paired(t, accessory.Faults{})
	s, err := pairverify.New(cfg)
	require.NoError(t, err)
	defer s.Close()

	secret, err := s.Run(context.Background(), acc)
	require.NoError(t, err)
	assert.Len(t, secret, crypto.X25519KeySize)
	assert.Equal(t, acc.SharedSecret(), secret)
	assert.Equal(t, pairverify.StateComplete, s.State())
	assert.Equal(t, acc.ID(), s.PeerID())

	// Both ends derive matching channel keys.
	ctrl, err := session.NewCipher(session.CipherConfig{SharedSecret: secret, Role: session.RoleController})
	require.NoError(t, err)
	peer, err := session.NewCipher(session.CipherConfig{SharedSecret: acc.SharedSecret(), Role: session.RoleAccessory})
	require.NoError(t, err)

	wire, err := ctrl.Encrypt([]byte("GET /accessories HTTP/1.1\r\n\r\n"))
	require.NoError(t, err)
	plain, err := peer.Decrypt(wire)
	require.NoError(t, err)
	assert.Equal(t, "GET /accessories HTTP/1.1\r\n\r\n", string(plain))
}

func TestSetupThenVerify(t *testing.T) {
	acc, err := accessory.New(accessory.Config{})
	require.NoError(t, err)
	ctx := context.Background()

	setup, err := pairsetup.New(pairsetup.Config{PIN: accessory.DefaultPIN, DeviceID: testDeviceID})
	require.NoError(t, err)
	defer setup.Close()
	result, err := setup.Run(ctx, acc)
	require.NoError(t, err)

	verify, err := pairverify.New(pairverify.Config{
		AuthKey:       result.AuthKey,
		DeviceID:      testDeviceID,
		PeerID:        result.PeerID,
		PeerPublicKey: result.PeerPublicKey,
	})
	require.NoError(t, err)
	defer verify.Close()

	secret, err := verify.Run(ctx, acc)
	require.NoError(t, err)
	assert.Equal(t, acc.SharedSecret(), secret)
}

func TestPairVerifyFreshSecrets(t *testing.T) {
	acc, cfg := paired(t, accessory.Faults{})
	ctx := context.Background()

	var secrets [][]byte
	for i := 0; i < 2; i++ {
		s, err := pairverify.New(cfg)
		require.NoError(t, err)
		secret, err := s.Run(ctx, acc)
		require.NoError(t, err)
		secrets = append(secrets, secret)
		s.Close()
	}
	assert.False(t, bytes.Equal(secrets[0], secrets[1]))
}

func TestPairVerifyBadAccessorySignature(t *testing.T) {
	acc, cfg := paired(t, accessory.Faults{CorruptVerifySignature: true})
	s, err := pairverify.New(cfg)
	require.NoError(t, err)

	_, err = s.Run(context.Background(), acc)
	assert.ErrorIs(t, err, securechannel.ErrAuthentication)
	assert.Equal(t, pairverify.StateFailed, s.State())

	_, err = s.SharedSecret()
	assert.ErrorIs(t, err, securechannel.ErrAuthentication)

	ephemeral, shared := s.Secrets()
	assert.Equal(t, make([]byte, crypto.X25519KeySize), ephemeral, "ephemeral key kept after failure")
	assert.Equal(t, make([]byte, crypto.X25519KeySize), shared, "shared secret kept after failure")
}

func TestPairVerifyInsecureSkipVerify(t *testing.T) {
	acc, cfg := paired(t, accessory.Faults{CorruptVerifySignature: true})
	cfg.PeerPublicKey = nil
	cfg.InsecureSkipVerify = true

	s, err := pairverify.New(cfg)
	require.NoError(t, err)
	_, err = s.Run(context.Background(), acc)
	assert.NoError(t, err)
}

func TestPairVerifyWrongPeerID(t *testing.T) {
	acc, cfg := paired(t, accessory.Faults{})
	cfg.PeerID = "11:22:33:44:55:66"

	s, err := pairverify.New(cfg)
	require.NoError(t, err)
	_, err = s.Run(context.Background(), acc)
	assert.ErrorIs(t, err, securechannel.ErrAuthentication)
}

func TestPairVerifyUnknownController(t *testing.T) {
	acc, cfg := paired(t, accessory.Faults{})
	other, err := securechannel.GenerateCredential(nil)
	require.NoError(t, err)
	cfg.AuthKey = other.Encode()

	s, err := pairverify.New(cfg)
	require.NoError(t, err)
	_, err = s.Run(context.Background(), acc)

	var se *securechannel.Error
	require.True(t, errors.As(err, &se))
	assert.Equal(t, securechannel.KindPeer, se.Kind)
	assert.Equal(t, securechannel.PeerCodeAuthentication, se.Peer)
}

func TestPairVerifyTamperedM2(t *testing.T) {
	acc, cfg := paired(t, accessory.Faults{})
	s, err := pairverify.New(cfg)
	require.NoError(t, err)

	m1, err := s.BuildM1()
	require.NoError(t, err)
	m2, err := acc.Exchange(context.Background(), securechannel.PathPairVerify, m1)
	require.NoError(t, err)

	c, err := tlv8.Decode(m2)
	require.NoError(t, err)
	sealed, err := c.Bytes(securechannel.TypeEncryptedData)
	require.NoError(t, err)
	sealed[0] ^= 0x01
	pk, _ := c.Bytes(securechannel.TypePublicKey)
	tampered := tlv8.New().
		AddByte(securechannel.TypeState, 2).
		Add(securechannel.TypePublicKey, pk).
		Add(securechannel.TypeEncryptedData, sealed).
		Encode()

	err = s.HandleM2(tampered)
	assert.ErrorIs(t, err, securechannel.ErrAuthentication)
}

func TestPairVerifyLowOrderPeerKey(t *testing.T) {
	_, cfg := paired(t, accessory.Faults{})
	s, err := pairverify.New(cfg)
	require.NoError(t, err)
	_, err = s.BuildM1()
	require.NoError(t, err)

	m2 := tlv8.New().
		AddByte(securechannel.TypeState, 2).
		Add(securechannel.TypePublicKey, make([]byte, 32)).
		Add(securechannel.TypeEncryptedData, make([]byte, 80)).
		Encode()
	err = s.HandleM2(m2)
	assert.ErrorIs(t, err, securechannel.ErrProtocol)
	assert.ErrorIs(t, err, crypto.ErrX25519LowOrder)
}

func TestPairVerifyOutOfOrder(t *testing.T) {
	_, cfg := paired(t, accessory.Faults{})
	s, err := pairverify.New(cfg)
	require.NoError(t, err)

	_, err = s.BuildM3()
	assert.ErrorIs(t, err, securechannel.ErrProtocol)
	_, err = s.SharedSecret()
	assert.ErrorIs(t, err, securechannel.ErrProtocol)
	assert.Equal(t, pairverify.StateInit, s.State())

	_, err = s.BuildM1()
	assert.NoError(t, err)
	_, err = s.BuildM1()
	assert.ErrorIs(t, err, securechannel.ErrProtocol)
}

func TestNewValidation(t *testing.T) {
	_, cfg := paired(t, accessory.Faults{})

	bad := cfg
	bad.DeviceID = "short"
	_, err := pairverify.New(bad)
	assert.ErrorIs(t, err, securechannel.ErrParameter)

	bad = cfg
	bad.AuthKey = "zz"
	_, err = pairverify.New(bad)
	assert.ErrorIs(t, err, securechannel.ErrParameter)

	bad = cfg
	bad.PeerPublicKey = nil
	_, err = pairverify.New(bad)
	assert.ErrorIs(t, err, securechannel.ErrParameter)

	bad = cfg
	bad.PeerPublicKey = bad.PeerPublicKey[:16]
	_, err = pairverify.New(bad)
	assert.ErrorIs(t, err, securechannel.ErrParameter)
}

func TestClose(t *testing.T) {
	_, cfg := paired(t, accessory.Faults{})
	s, err := pairverify.New(cfg)
	require.NoError(t, err)
	s.Close()

	_, err = s.BuildM1()
	assert.ErrorIs(t, err, pairverify.ErrClosed)
}
