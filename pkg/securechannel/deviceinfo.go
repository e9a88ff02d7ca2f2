package securechannel

import (
	"crypto/ed25519"
)

// deviceInfo returns prefix || id || suffix, the message signed to bind a
// long-term or ephemeral key to an identifier.
func deviceInfo(prefix []byte, id string, suffix []byte) []byte {
	out := make([]byte, 0, len(prefix)+len(id)+len(suffix))
	out = append(out, prefix...)
	out = append(out, id...)
	return append(out, suffix...)
}

// SignDeviceInfo signs prefix || id || suffix with the long-term key.
func SignDeviceInfo(priv ed25519.PrivateKey, prefix []byte, id string, suffix []byte) []byte {
	return ed25519.Sign(priv, deviceInfo(prefix, id, suffix))
}

// VerifyDeviceInfo checks a signature made by SignDeviceInfo.
func VerifyDeviceInfo(pub ed25519.PublicKey, prefix []byte, id string, suffix, sig []byte) bool {
	if len(pub) != ed25519.PublicKeySize || len(sig) != ed25519.SignatureSize {
		return false
	}
	return ed25519.Verify(pub, deviceInfo(prefix, id, suffix), sig)
}
