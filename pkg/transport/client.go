// Package transport carries the pairing protocols over HTTP/1.1 on a TCP
// connection, the way HomeKit accessories expose them.
//
// Pair-Setup and Pair-Verify bodies are POSTed as application/pairing+tlv8
// to /pair-setup and /pair-verify. Once Pair-Verify completes, the same
// connection switches to the encrypted channel and every later request,
// including /pairings, travels inside it.
package transport

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/backkem/homekit/pkg/crypto/srp"
	"github.com/backkem/homekit/pkg/securechannel"
	"github.com/backkem/homekit/pkg/securechannel/pairsetup"
	"github.com/backkem/homekit/pkg/securechannel/pairverify"
	"github.com/backkem/homekit/pkg/session"
	"github.com/pion/logging"
)

// ClientConfig configures a Client.
type ClientConfig struct {
	// DeviceID is the controller identifier, exactly 16 characters.
	DeviceID string

	// Credential is the controller long-term key pair used by PairSetup.
	// A new one is generated for each Pair-Setup when nil.
	Credential *securechannel.Credential

	// Group is the SRP group for Pair-Setup. Defaults to srp.Group3072.
	Group *srp.Group

	// Timeout bounds each request when the context carries no deadline.
	// Zero means no bound.
	Timeout time.Duration

	// Rand is the randomness source for the pairing flows. Defaults to crypto/rand.
	Rand io.Reader

	// LoggerFactory is the factory for creating loggers.
	// If nil, logging is disabled.
	LoggerFactory logging.LoggerFactory
}

// Client is an HTTP client bound to one accessory connection. Requests are
// serialized.
type Client struct {
	config ClientConfig
	raw    net.Conn
	host   string
	log    logging.LeveledLogger

	mu     sync.Mutex
	conn   net.Conn
	br     *bufio.Reader
	secure *session.Conn
	closed bool
}

// Dial connects to the accessory at addr ("host:port").
func Dial(ctx context.Context, addr string, config ClientConfig) (*Client, error) {
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidAddress, err)
	}
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, err
	}
	return NewClient(conn, config), nil
}

// NewClient wraps an established connection.
func NewClient(conn net.Conn, config ClientConfig) *Client {
	c := &Client{
		config: config,
		raw:    conn,
		conn:   conn,
		br:     bufio.NewReader(conn),
		host:   "accessory",
	}
	if addr := conn.RemoteAddr(); addr != nil && addr.Network() == "tcp" {
		c.host = addr.String()
	}
	if config.LoggerFactory != nil {
		c.log = config.LoggerFactory.NewLogger("transport")
	}
	return c
}

// Exchange POSTs a pairing body to path and returns the response body.
// It implements securechannel.Exchanger. A status other than 200 is a
// protocol error.
func (c *Client) Exchange(ctx context.Context, path string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "http://"+c.host+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", securechannel.ContentType)

	resp, data, err := c.roundTrip(ctx, req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, securechannel.Errorf(securechannel.KindProtocol, "exchange "+path,
			"HTTP status %d", resp.StatusCode)
	}
	return data, nil
}

// PairSetup runs Pair-Setup with the setup code pin.
func (c *Client) PairSetup(ctx context.Context, pin string) (*pairsetup.Result, error) {
	s, err := pairsetup.New(pairsetup.Config{
		PIN:           pin,
		DeviceID:      c.config.DeviceID,
		Credential:    c.config.Credential,
		Group:         c.config.Group,
		Rand:          c.config.Rand,
		LoggerFactory: c.config.LoggerFactory,
	})
	if err != nil {
		return nil, err
	}
	defer s.Close()
	return s.Run(ctx, c)
}

// PairVerify runs Pair-Verify and switches the connection to the encrypted
// channel. DeviceID, Rand and LoggerFactory default to the client's.
func (c *Client) PairVerify(ctx context.Context, config pairverify.Config) error {
	if c.Secure() {
		return ErrAlreadySecure
	}
	if config.DeviceID == "" {
		config.DeviceID = c.config.DeviceID
	}
	if config.Rand == nil {
		config.Rand = c.config.Rand
	}
	if config.LoggerFactory == nil {
		config.LoggerFactory = c.config.LoggerFactory
	}

	s, err := pairverify.New(config)
	if err != nil {
		return err
	}
	defer s.Close()

	secret, err := s.Run(ctx, c)
	if err != nil {
		return err
	}
	cipher, err := session.NewCipher(session.CipherConfig{
		SharedSecret:  secret,
		Role:          session.RoleController,
		LoggerFactory: c.config.LoggerFactory,
	})
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.secure = session.NewConn(c.raw, cipher)
	c.conn = c.secure
	c.br = bufio.NewReader(c.secure)
	if c.log != nil {
		c.log.Infof("connection to %s verified", s.PeerID())
	}
	return nil
}

// Do sends req over the verified connection. The returned body is fully
// buffered.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if !c.Secure() {
		return nil, ErrNotSecure
	}
	if req.Host == "" {
		req.Host = c.host
	}
	resp, _, err := c.roundTrip(ctx, req.WithContext(ctx))
	return resp, err
}

// Pairings sends a pairing management body over the verified connection.
func (c *Client) Pairings(ctx context.Context, body []byte) ([]byte, error) {
	if !c.Secure() {
		return nil, ErrNotSecure
	}
	return c.Exchange(ctx, securechannel.PathPairings, body)
}

// Secure reports whether Pair-Verify has completed on this connection.
func (c *Client) Secure() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secure != nil
}

// Cipher returns the channel cipher, or nil before Pair-Verify.
func (c *Client) Cipher() *session.Cipher {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.secure == nil {
		return nil
	}
	return c.secure.Cipher()
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	c.closed = true
	return c.raw.Close()
}

func (c *Client) roundTrip(ctx context.Context, req *http.Request) (*http.Response, []byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil, nil, ErrClosed
	}

	deadline, ok := ctx.Deadline()
	if !ok && c.config.Timeout > 0 {
		deadline = time.Now().Add(c.config.Timeout)
	}
	if err := c.raw.SetDeadline(deadline); err != nil {
		return nil, nil, err
	}
	stop := context.AfterFunc(ctx, func() {
		_ = c.raw.SetDeadline(time.Unix(1, 0))
	})
	defer stop()

	if c.log != nil {
		c.log.Debugf("%s %s", req.Method, req.URL.Path)
	}
	if err := req.Write(c.conn); err != nil {
		return nil, nil, c.ctxErr(ctx, err)
	}
	resp, err := http.ReadResponse(c.br, req)
	if err != nil {
		return nil, nil, c.ctxErr(ctx, err)
	}
	data, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, nil, c.ctxErr(ctx, err)
	}
	resp.Body = io.NopCloser(bytes.NewReader(data))
	return resp, data, nil
}

func (c *Client) ctxErr(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("%w: %v", ctxErr, err)
	}
	return err
}
