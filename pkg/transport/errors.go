package transport

import "errors"

// Transport errors.
var (
	// ErrClosed is returned when an operation is attempted on a closed client or server.
	ErrClosed = errors.New("transport: closed")

	// ErrInvalidAddress is returned when an accessory address cannot be parsed.
	ErrInvalidAddress = errors.New("transport: invalid address")

	// ErrNoHandler is returned when a server is created without a connection handler.
	ErrNoHandler = errors.New("transport: no connection handler configured")

	// ErrAlreadyStarted is returned when Start is called on a running server.
	ErrAlreadyStarted = errors.New("transport: already started")

	// ErrNotSecure is returned for requests that need a verified connection.
	ErrNotSecure = errors.New("transport: connection not verified")

	// ErrAlreadySecure is returned when Pair-Verify runs on a verified connection.
	ErrAlreadySecure = errors.New("transport: connection already verified")
)
