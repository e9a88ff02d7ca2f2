package main

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/backkem/homekit/internal/accessory"
	"github.com/backkem/homekit/pkg/securechannel"
	"github.com/backkem/homekit/pkg/transport"
	"github.com/cenkalti/backoff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func busy(delay time.Duration) error {
	e := securechannel.NewPeerError("pair-setup M2", securechannel.PeerCodeBusy, delay)
	return e
}

func TestRetryBusy(t *testing.T) {
	ctx := context.Background()

	t.Run("retries busy then succeeds", func(t *testing.T) {
		calls := 0
		err := retryBusy(ctx, backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 5), func() error {
			calls++
			if calls < 3 {
				return busy(0)
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("permanent error stops", func(t *testing.T) {
		calls := 0
		err := retryBusy(ctx, backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 5), func() error {
			calls++
			return securechannel.NewPeerError("pair-setup M4", securechannel.PeerCodeAuthentication, 0)
		})
		assert.ErrorIs(t, err, securechannel.ErrPeer)
		assert.Equal(t, 1, calls)
	})

	t.Run("gives up after max retries", func(t *testing.T) {
		calls := 0
		err := retryBusy(ctx, backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2), func() error {
			calls++
			return busy(0)
		})
		var se *securechannel.Error
		require.True(t, errors.As(err, &se))
		assert.Equal(t, securechannel.PeerCodeBusy, se.Peer)
		assert.Equal(t, 3, calls)
	})
}

func TestPeerBackOffHonorsRetryDelay(t *testing.T) {
	b := &peerBackOff{BackOff: &backoff.ZeroBackOff{}}
	b.delay = 2 * time.Second
	assert.Equal(t, 2*time.Second, b.NextBackOff())
	assert.Equal(t, time.Duration(0), b.NextBackOff())

	stop := &peerBackOff{BackOff: &backoff.StopBackOff{}, delay: time.Second}
	assert.Equal(t, backoff.Stop, stop.NextBackOff())
}

func TestCommandsAgainstAccessory(t *testing.T) {
	acc, err := accessory.New(accessory.Config{})
	require.NoError(t, err)

	srv, err := transport.NewTCPServer(transport.TCPServerConfig{
		ListenAddr: "127.0.0.1:0",
		Handler:    acc.Serve,
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	path := filepath.Join(t.TempDir(), "state.yaml")
	ctx := context.Background()

	err = runSetup(ctx, []string{"-config", path, "-addr", srv.Addr().String(), "-pin", accessory.DefaultPIN})
	require.NoError(t, err)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	p, ok := cfg.Peer(acc.ID())
	require.True(t, ok)
	assert.Equal(t, srv.Addr().String(), p.Address)
	key, err := p.Key()
	require.NoError(t, err)
	assert.Equal(t, acc.PublicKey(), key)

	require.Len(t, acc.Pairings(), 1)
	assert.Equal(t, cfg.DeviceID, acc.Pairings()[0].ID)

	require.NoError(t, runVerify(ctx, []string{"-config", path}))
	require.NoError(t, runList(ctx, []string{"-config", path, "-id", acc.ID()}))

	require.NoError(t, runRemove(ctx, []string{"-config", path}))
	assert.Empty(t, acc.Pairings())

	cfg, err = LoadConfig(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.PeerIDs())
}

func TestSetupWrongPIN(t *testing.T) {
	acc, err := accessory.New(accessory.Config{})
	require.NoError(t, err)

	srv, err := transport.NewTCPServer(transport.TCPServerConfig{
		ListenAddr: "127.0.0.1:0",
		Handler:    acc.Serve,
	})
	require.NoError(t, err)
	require.NoError(t, srv.Start())
	defer srv.Stop()

	path := filepath.Join(t.TempDir(), "state.yaml")
	err = runSetup(context.Background(), []string{"-config", path, "-addr", srv.Addr().String(), "-pin", "111-11-111"})
	assert.ErrorIs(t, err, securechannel.ErrPeer)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Empty(t, cfg.DeviceID)
}

func TestVerifyWithoutSetup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	err := runVerify(context.Background(), []string{"-config", path})
	assert.ErrorContains(t, err, "run setup first")
}

func TestPINPrompt(t *testing.T) {
	assert.Equal(t, "Setup code (4 characters): ", pinPrompt())
	assert.Len(t, accessory.DefaultPIN, 4)
}

func TestDispatchUnknown(t *testing.T) {
	assert.ErrorIs(t, dispatch(context.Background(), "bogus", nil), errUsage)
}
