package securechannel

import (
	"time"

	"github.com/backkem/homekit/pkg/tlv8"
)

// PeerCode is an error code carried in the Error item of a peer response.
type PeerCode byte

const (
	PeerCodeUnknown        PeerCode = 0x01
	PeerCodeAuthentication PeerCode = 0x02
	PeerCodeBackoff        PeerCode = 0x03
	PeerCodeMaxPeers       PeerCode = 0x04
	PeerCodeMaxTries       PeerCode = 0x05
	PeerCodeUnavailable    PeerCode = 0x06
	PeerCodeBusy           PeerCode = 0x07
)

// String returns a description of the code.
func (c PeerCode) String() string {
	switch c {
	case PeerCodeUnknown:
		return "generic error"
	case PeerCodeAuthentication:
		return "setup code or signature verification failed"
	case PeerCodeBackoff:
		return "client must look at the retry delay and try later"
	case PeerCodeMaxPeers:
		return "server cannot accept any more pairings"
	case PeerCodeMaxTries:
		return "server reached its maximum number of authentication attempts"
	case PeerCodeUnavailable:
		return "server pairing method is unavailable"
	case PeerCodeBusy:
		return "server is busy and cannot accept a pairing request at this time"
	default:
		return "unrecognized error code"
	}
}

// Temporary reports whether retrying the whole flow later may succeed.
func (c PeerCode) Temporary() bool {
	return c == PeerCodeBackoff || c == PeerCodeBusy
}

// ParseResponse decodes a peer message for step op. A peer Error item is
// reported as a KindPeer error; otherwise the State item must equal state.
func ParseResponse(op string, data []byte, state byte) (*tlv8.Container, error) {
	c, err := tlv8.Decode(data)
	if err != nil {
		return nil, NewError(KindParse, op, "malformed TLV8", err)
	}
	if code, err := c.Byte(TypeError); err == nil {
		var delay time.Duration
		if secs, err := c.Uint(TypeRetryDelay); err == nil {
			delay = time.Duration(secs) * time.Second
		}
		return nil, NewPeerError(op, PeerCode(code), delay)
	}
	got, err := c.Byte(TypeState)
	if err != nil {
		return nil, NewError(KindProtocol, op, "missing state", err)
	}
	if got != state {
		return nil, Errorf(KindProtocol, op, "unexpected state %d, want %d", got, state)
	}
	return c, nil
}

// Require returns the value of item t, failing with a KindProtocol error
// when it is absent, empty or, for size > 0, not exactly size bytes long.
func Require(op string, c *tlv8.Container, t tlv8.Type, name string, size int) ([]byte, error) {
	v, ok := c.Get(t)
	if !ok {
		return nil, Errorf(KindProtocol, op, "missing %s", name)
	}
	if size > 0 && len(v) != size {
		return nil, Errorf(KindProtocol, op, "%s is %d bytes, want %d", name, len(v), size)
	}
	if len(v) == 0 {
		return nil, Errorf(KindProtocol, op, "empty %s", name)
	}
	return v, nil
}
