package securechannel

import (
	"errors"
	"testing"
	"time"

	"github.com/backkem/homekit/pkg/tlv8"
)

func TestParseResponse(t *testing.T) {
	data := tlv8.New().AddByte(TypeState, 2).Add(TypeSalt, []byte{1, 2}).Encode()
	c, err := ParseResponse("pair-setup M2", data, 2)
	if err != nil {
		t.Fatalf("ParseResponse failed: %v", err)
	}
	if !c.Has(TypeSalt) {
		t.Error("salt item missing from result")
	}
}

func TestParseResponsePeerError(t *testing.T) {
	tests := []struct {
		name  string
		data  []byte
		code  PeerCode
		delay time.Duration
	}{
		{
			name: "authentication",
			data: tlv8.New().AddByte(TypeState, 4).AddByte(TypeError, 2).Encode(),
			code: PeerCodeAuthentication,
		},
		{
			name:  "backoff with delay",
			data:  tlv8.New().AddByte(TypeState, 2).AddByte(TypeError, 3).AddUint(TypeRetryDelay, 30).Encode(),
			code:  PeerCodeBackoff,
			delay: 30 * time.Second,
		},
		{
			name: "busy without state",
			data: tlv8.New().AddByte(TypeError, 7).Encode(),
			code: PeerCodeBusy,
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ParseResponse("op", tc.data, 2)
			if !errors.Is(err, ErrPeer) {
				t.Fatalf("error = %v, want peer error", err)
			}
			var e *Error
			if !errors.As(err, &e) {
				t.Fatalf("error %T is not *Error", err)
			}
			if e.Peer != tc.code {
				t.Errorf("Peer = %v, want %v", e.Peer, tc.code)
			}
			if e.RetryDelay != tc.delay {
				t.Errorf("RetryDelay = %v, want %v", e.RetryDelay, tc.delay)
			}
		})
	}
}

func TestParseResponseErrors(t *testing.T) {
	if _, err := ParseResponse("op", []byte{0x06, 0x05}, 2); !errors.Is(err, ErrParse) {
		t.Errorf("truncated error = %v, want parse error", err)
	}
	noState := tlv8.New().Add(TypeSalt, []byte{1}).Encode()
	if _, err := ParseResponse("op", noState, 2); !errors.Is(err, ErrProtocol) {
		t.Errorf("missing state error = %v, want protocol error", err)
	}
	wrongState := tlv8.New().AddByte(TypeState, 4).Encode()
	if _, err := ParseResponse("op", wrongState, 2); !errors.Is(err, ErrProtocol) {
		t.Errorf("wrong state error = %v, want protocol error", err)
	}
}

func TestRequire(t *testing.T) {
	c := tlv8.New().Add(TypePublicKey, make([]byte, 32)).Add(TypeProof, []byte{})
	if _, err := Require("op", c, TypePublicKey, "public key", 32); err != nil {
		t.Errorf("Require failed: %v", err)
	}
	if _, err := Require("op", c, TypePublicKey, "public key", 16); !errors.Is(err, ErrProtocol) {
		t.Errorf("wrong size error = %v, want protocol error", err)
	}
	if _, err := Require("op", c, TypeSalt, "salt", 0); !errors.Is(err, ErrProtocol) {
		t.Errorf("missing error = %v, want protocol error", err)
	}
	if _, err := Require("op", c, TypeProof, "proof", 0); !errors.Is(err, ErrProtocol) {
		t.Errorf("empty error = %v, want protocol error", err)
	}
}

func TestPeerCodeTemporary(t *testing.T) {
	if !PeerCodeBusy.Temporary() || !PeerCodeBackoff.Temporary() {
		t.Error("busy and backoff must be temporary")
	}
	if PeerCodeAuthentication.Temporary() || PeerCodeMaxTries.Temporary() {
		t.Error("authentication and max tries must not be temporary")
	}
}

func TestErrorIs(t *testing.T) {
	err := NewError(KindAuthentication, "pair-setup M4", "server proof mismatch", nil)
	if !errors.Is(err, ErrAuthentication) {
		t.Error("errors.Is(ErrAuthentication) = false")
	}
	if errors.Is(err, ErrProtocol) {
		t.Error("authentication error matched protocol sentinel")
	}
	want := "securechannel: authentication error in pair-setup M4: server proof mismatch"
	if err.Error() != want {
		t.Errorf("Error() = %q, want %q", err.Error(), want)
	}

	cause := errors.New("boom")
	wrapped := NewError(KindParse, "op", "bad", cause)
	if !errors.Is(wrapped, cause) {
		t.Error("cause not reachable through Unwrap")
	}
}
