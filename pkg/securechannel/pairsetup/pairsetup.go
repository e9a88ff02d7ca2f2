// Package pairsetup implements the controller side of HomeKit Pair-Setup.
//
// Pair-Setup proves knowledge of the accessory's setup PIN with SRP-6a and
// then exchanges Ed25519 long-term public keys under encryption keyed by the
// SRP session key. The result is the controller's long-term key pair (the
// authorization credential) and the accessory's identifier and long-term
// public key, which Pair-Verify needs later.
//
// # Protocol Flow
//
//	Controller                               Accessory
//	----------                               ---------
//	m1 = BuildM1()           --- M1 ---->    State=1, Method=PairSetup
//	                         <-- M2 -----    State=2, Salt, PublicKey(B)
//	HandleM2(m2)
//	m3 = BuildM3()           --- M3 ---->    State=3, PublicKey(A), Proof(M1)
//	                         <-- M4 -----    State=4, Proof(HAMK)
//	HandleM4(m4)
//	m5 = BuildM5()           --- M5 ---->    State=5, EncryptedData
//	                         <-- M6 -----    State=6, EncryptedData
//	HandleM6(m6)
//	result = Result()
//
// # Usage
//
//	s, err := pairsetup.New(pairsetup.Config{PIN: "1234", DeviceID: id})
//	defer s.Close()
//	result, err := s.Run(ctx, exchanger)
//	store(result.AuthKey, result.PeerID, result.PeerPublicKey)
package pairsetup

import (
	"crypto/ed25519"
	"errors"
)

// Protocol constants.
const (
	// Identity is the SRP user name used by Pair-Setup.
	Identity = "Pair-Setup"

	// PINLength is the number of PIN bytes fed to SRP. Longer PINs are truncated.
	PINLength = 4

	// SignKeySize is the size of the per-session sign prefix derived from K.
	SignKeySize = 32

	// ProofSize is the size of the SRP proofs carried in M3 and M4.
	ProofSize = 64
)

// ErrClosed is returned by any step after Close.
var ErrClosed = errors.New("pairsetup: session closed")

// Result is the output of a completed Pair-Setup.
type Result struct {
	// AuthKey is the text form of the controller's long-term key pair:
	// hex(public key || private key).
	AuthKey string

	// PublicKey and PrivateKey are the controller's long-term key pair.
	PublicKey  ed25519.PublicKey
	PrivateKey ed25519.PrivateKey

	// PeerID and PeerPublicKey identify the accessory.
	PeerID        string
	PeerPublicKey ed25519.PublicKey
}
