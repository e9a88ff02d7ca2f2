package discovery

import "errors"

// Package-level sentinel errors for discovery operations.
var (
	// ErrClosed is returned when an operation is attempted on a closed component.
	ErrClosed = errors.New("discovery: closed")

	// ErrAlreadyStarted is returned when advertising an already advertised service.
	ErrAlreadyStarted = errors.New("discovery: already started")

	// ErrInvalidPort is returned when the port number is out of range.
	ErrInvalidPort = errors.New("discovery: invalid port (must be 1-65535)")

	// ErrNotFound is returned when a requested accessory is not found.
	ErrNotFound = errors.New("discovery: accessory not found")

	// ErrNoAddresses is returned when an accessory has no usable address.
	ErrNoAddresses = errors.New("discovery: no addresses")

	// ErrInvalidTXTRecord is returned when a TXT record has invalid format.
	ErrInvalidTXTRecord = errors.New("discovery: invalid TXT record format")

	// ErrMissingID is returned when a TXT record set has no "id" key.
	ErrMissingID = errors.New("discovery: TXT records carry no accessory id")
)
