package crypto

import (
	"errors"
	"io"

	"golang.org/x/crypto/hkdf"
)

// KDFMaxLength is the largest output HKDFSHA512 will produce. The pairing
// key schedule never needs more than a single expand block.
const KDFMaxLength = SHA512LenBytes

// ErrKDFLength is returned when the requested output length is outside 1..KDFMaxLength.
var ErrKDFLength = errors.New("kdf: output length must be between 1 and 64 bytes")

// HKDFSHA512 derives key material using HKDF-SHA512 (RFC 5869).
//
// Parameters:
//   - inputKey: Input keying material (IKM)
//   - salt: Optional salt value (can be nil or empty)
//   - info: Optional context/application-specific info (can be nil or empty)
//   - length: Number of bytes to derive, at most KDFMaxLength
//
// With length <= 64 this is PRK = HMAC(salt, IKM), OKM = HMAC(PRK, info || 0x01)
// truncated to length.
func HKDFSHA512(inputKey, salt, info []byte, length int) ([]byte, error) {
	if length <= 0 || length > KDFMaxLength {
		return nil, ErrKDFLength
	}
	reader := hkdf.New(NewSHA512, inputKey, salt, info)
	result := make([]byte, length)
	if _, err := io.ReadFull(reader, result); err != nil {
		return nil, err
	}
	return result, nil
}
