// Package pairverify implements the controller side of HomeKit Pair-Verify.
//
// Pair-Verify establishes a fresh shared secret with an accessory paired
// earlier by Pair-Setup. Both sides exchange X25519 ephemeral keys and prove
// possession of their long-term Ed25519 keys by signing the ephemeral keys.
// The shared secret feeds session.NewCipher.
//
// # Protocol Flow
//
//	Controller                               Accessory
//	----------                               ---------
//	m1 = BuildM1()           --- M1 ---->    State=1, PublicKey(ctrl eph)
//	                         <-- M2 -----    State=2, PublicKey(acc eph), EncryptedData
//	HandleM2(m2)
//	m3 = BuildM3()           --- M3 ---->    State=3, EncryptedData
//	                         <-- M4 -----    State=4
//	HandleM4(m4)
//	secret = SharedSecret()
package pairverify

import "errors"

// ErrClosed is returned by any step after Close.
var ErrClosed = errors.New("pairverify: session closed")
