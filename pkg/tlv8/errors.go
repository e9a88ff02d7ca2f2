package tlv8

import "errors"

var (
	// ErrUnexpectedEOF is returned when an item header or value is truncated.
	ErrUnexpectedEOF = errors.New("tlv8: unexpected end of input")

	// ErrMissing is returned when a required item is absent.
	ErrMissing = errors.New("tlv8: item not present")

	// ErrInvalidLength is returned when an item value has the wrong size for its use.
	ErrInvalidLength = errors.New("tlv8: invalid value length")

	// ErrOverflow is returned when an integer item does not fit in 64 bits.
	ErrOverflow = errors.New("tlv8: value overflow")
)
