package securechannel

import (
	"fmt"
	"time"
)

// Kind classifies a pairing or channel failure.
type Kind int

const (
	KindUnknown Kind = iota
	// KindParameter is a caller-supplied argument violating a precondition.
	KindParameter
	// KindParse is a malformed or truncated peer message.
	KindParse
	// KindProtocol is a well-formed message at the wrong time or with the wrong content.
	KindProtocol
	// KindAuthentication is a failed proof, tag or signature check.
	KindAuthentication
	// KindPeer is an error code reported by the peer.
	KindPeer
	// KindAllocation is an internal resource failure.
	KindAllocation
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindParameter:
		return "parameter"
	case KindParse:
		return "parse"
	case KindProtocol:
		return "protocol"
	case KindAuthentication:
		return "authentication"
	case KindPeer:
		return "peer"
	case KindAllocation:
		return "allocation"
	default:
		return "unknown"
	}
}

// Error is the error type returned by the pairing flows and the channel.
type Error struct {
	Kind Kind
	// Op names the step that failed, e.g. "pair-setup M4".
	Op  string
	Msg string
	// Peer and RetryDelay are set for KindPeer.
	Peer       PeerCode
	RetryDelay time.Duration
	Err        error
}

// Sentinels for errors.Is matching by kind.
var (
	ErrParameter      = &Error{Kind: KindParameter}
	ErrParse          = &Error{Kind: KindParse}
	ErrProtocol       = &Error{Kind: KindProtocol}
	ErrAuthentication = &Error{Kind: KindAuthentication}
	ErrPeer           = &Error{Kind: KindPeer}
	ErrAllocation     = &Error{Kind: KindAllocation}
)

// NewError builds an Error.
func NewError(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

// Errorf builds an Error with a formatted message.
func Errorf(kind Kind, op, format string, args ...any) *Error {
	return &Error{Kind: kind, Op: op, Msg: fmt.Sprintf(format, args...)}
}

// NewPeerError builds the error for a peer-reported code.
func NewPeerError(op string, code PeerCode, retryDelay time.Duration) *Error {
	return &Error{Kind: KindPeer, Op: op, Msg: code.String(), Peer: code, RetryDelay: retryDelay}
}

func (e *Error) Error() string {
	s := "securechannel: " + e.Kind.String() + " error"
	if e.Op != "" {
		s += " in " + e.Op
	}
	if e.Msg != "" {
		s += ": " + e.Msg
	}
	if e.Kind == KindPeer && e.RetryDelay > 0 {
		s += fmt.Sprintf(" (retry in %s)", e.RetryDelay)
	}
	if e.Err != nil {
		s += ": " + e.Err.Error()
	}
	return s
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.Msg == "" && t.Err == nil && t.Peer == 0 && t.Kind == e.Kind
}
