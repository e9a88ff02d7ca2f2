// Package securechannel holds the pieces shared by the HomeKit pairing
// flows: TLV8 item types and methods, the peer error codes, the HKDF stage
// table, signed device-info records and the error taxonomy.
//
// The flows themselves live in the pairsetup, pairverify and pairings
// subpackages.
package securechannel

import "github.com/backkem/homekit/pkg/tlv8"

// TLV8 item types used by the pairing protocols.
const (
	TypeMethod        tlv8.Type = 0x00
	TypeIdentifier    tlv8.Type = 0x01
	TypeSalt          tlv8.Type = 0x02
	TypePublicKey     tlv8.Type = 0x03
	TypeProof         tlv8.Type = 0x04
	TypeEncryptedData tlv8.Type = 0x05
	TypeState         tlv8.Type = 0x06
	TypeError         tlv8.Type = 0x07
	TypeRetryDelay    tlv8.Type = 0x08
	TypeCertificate   tlv8.Type = 0x09
	TypeSignature     tlv8.Type = 0x0A
	TypePermissions   tlv8.Type = 0x0B
	TypeFragmentData  tlv8.Type = 0x0C
	TypeFragmentLast  tlv8.Type = 0x0D
	TypeFlags         tlv8.Type = 0x13
	TypeSeparator     tlv8.Type = 0xFF
)

// Method selects the pairing operation in the first request of a flow.
type Method byte

const (
	MethodPairSetup         Method = 0x00
	MethodPairSetupWithAuth Method = 0x01
	MethodPairVerify        Method = 0x02
	MethodAddPairing        Method = 0x03
	MethodRemovePairing     Method = 0x04
	MethodListPairings      Method = 0x05
)

// String returns the method name.
func (m Method) String() string {
	switch m {
	case MethodPairSetup:
		return "PairSetup"
	case MethodPairSetupWithAuth:
		return "PairSetupWithAuth"
	case MethodPairVerify:
		return "PairVerify"
	case MethodAddPairing:
		return "AddPairing"
	case MethodRemovePairing:
		return "RemovePairing"
	case MethodListPairings:
		return "ListPairings"
	default:
		return "Unknown"
	}
}

// Permissions values for added pairings.
const (
	PermissionUser  byte = 0x00
	PermissionAdmin byte = 0x01
)

// HTTP resources and content type of the pairing endpoints.
const (
	PathPairSetup  = "/pair-setup"
	PathPairVerify = "/pair-verify"
	PathPairings   = "/pairings"

	ContentType = "application/pairing+tlv8"
)
