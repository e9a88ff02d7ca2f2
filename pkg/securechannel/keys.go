package securechannel

import (
	"fmt"

	"github.com/backkem/homekit/pkg/crypto"
)

// Stage identifies one step of the key schedule. Each stage has a fixed
// state number and, where the step derives key material, fixed HKDF salt
// and info labels and an 8-byte nonce label.
type Stage int

const (
	StageSetupM1 Stage = iota
	StageSetupM2
	StageSetupM3
	StageSetupM4
	StageSetupM5
	StageSetupM6
	StageSetupControllerSign
	StageSetupAccessorySign
	StageVerifyM1
	StageVerifyM2
	StageVerifyM3
	StageVerifyM4
	StageControlWrite
	StageControlRead

	stageCount
)

// StageParams are the constants of one stage. Empty strings mean the stage
// has no such label.
type StageParams struct {
	Name  string
	State byte
	Salt  string
	Info  string
	Nonce string
}

// KeySize is the size of every key derived for the ChaCha20-Poly1305 steps.
const KeySize = crypto.KeySize

var stageTable = [stageCount]StageParams{
	StageSetupM1: {Name: "SetupM1", State: 1},
	StageSetupM2: {Name: "SetupM2", State: 2},
	StageSetupM3: {Name: "SetupM3", State: 3},
	StageSetupM4: {Name: "SetupM4", State: 4},
	StageSetupM5: {
		Name: "SetupM5", State: 5,
		Salt: "Pair-Setup-Encrypt-Salt", Info: "Pair-Setup-Encrypt-Info", Nonce: "PS-Msg05",
	},
	StageSetupM6: {
		Name: "SetupM6", State: 6,
		Salt: "Pair-Setup-Encrypt-Salt", Info: "Pair-Setup-Encrypt-Info", Nonce: "PS-Msg06",
	},
	StageSetupControllerSign: {
		Name: "SetupControllerSign",
		Salt: "Pair-Setup-Controller-Sign-Salt", Info: "Pair-Setup-Controller-Sign-Info",
	},
	StageSetupAccessorySign: {
		Name: "SetupAccessorySign",
		Salt: "Pair-Setup-Accessory-Sign-Salt", Info: "Pair-Setup-Accessory-Sign-Info",
	},
	StageVerifyM1: {Name: "VerifyM1", State: 1},
	StageVerifyM2: {
		Name: "VerifyM2", State: 2,
		Salt: "Pair-Verify-Encrypt-Salt", Info: "Pair-Verify-Encrypt-Info", Nonce: "PV-Msg02",
	},
	StageVerifyM3: {
		Name: "VerifyM3", State: 3,
		Salt: "Pair-Verify-Encrypt-Salt", Info: "Pair-Verify-Encrypt-Info", Nonce: "PV-Msg03",
	},
	StageVerifyM4:     {Name: "VerifyM4", State: 4},
	StageControlWrite: {Name: "ControlWrite", Salt: "Control-Salt", Info: "Control-Write-Encryption-Key"},
	StageControlRead:  {Name: "ControlRead", Salt: "Control-Salt", Info: "Control-Read-Encryption-Key"},
}

// Params returns the constants for s. Unknown stages return the zero value.
func (s Stage) Params() StageParams {
	if s < 0 || s >= stageCount {
		return StageParams{}
	}
	return stageTable[s]
}

// State returns the state number carried in the message of this stage.
func (s Stage) State() byte {
	return s.Params().State
}

// String returns the stage name.
func (s Stage) String() string {
	if p := s.Params(); p.Name != "" {
		return p.Name
	}
	return fmt.Sprintf("Stage(%d)", int(s))
}

// DeriveKey derives length bytes (at most 64) from secret with the HKDF
// labels of stage.
func DeriveKey(secret []byte, stage Stage, length int) ([]byte, error) {
	p := stage.Params()
	if p.Salt == "" || p.Info == "" {
		return nil, Errorf(KindProtocol, "derive key", "stage %s has no key derivation labels", stage)
	}
	if len(secret) == 0 {
		return nil, Errorf(KindParameter, "derive key", "empty secret")
	}
	key, err := crypto.HKDFSHA512(secret, []byte(p.Salt), []byte(p.Info), length)
	if err != nil {
		return nil, NewError(KindParameter, "derive key", fmt.Sprintf("length %d", length), err)
	}
	return key, nil
}

// StageNonce returns the 12-byte AEAD nonce of stage.
func StageNonce(stage Stage) ([]byte, error) {
	p := stage.Params()
	if p.Nonce == "" {
		return nil, Errorf(KindProtocol, "stage nonce", "stage %s has no nonce label", stage)
	}
	return crypto.LabelNonce(p.Nonce)
}

// SealStage encrypts plaintext for an encrypted handshake step. The key is
// derived from secret with the stage labels; the result is ciphertext||tag
// as carried in the EncryptedData item.
func SealStage(secret []byte, stage Stage, plaintext []byte) ([]byte, error) {
	key, err := DeriveKey(secret, stage, KeySize)
	if err != nil {
		return nil, err
	}
	nonce, err := StageNonce(stage)
	if err != nil {
		return nil, err
	}
	ct, tag, err := crypto.Seal(key, nonce, plaintext, nil)
	if err != nil {
		return nil, NewError(KindAllocation, stage.String(), "encrypt", err)
	}
	return append(ct, tag...), nil
}

// OpenStage reverses SealStage. A short input is a KindParse error and a
// tag mismatch a KindAuthentication error.
func OpenStage(secret []byte, stage Stage, data []byte) ([]byte, error) {
	if len(data) < crypto.TagSize {
		return nil, Errorf(KindParse, stage.String(), "encrypted data shorter than tag")
	}
	key, err := DeriveKey(secret, stage, KeySize)
	if err != nil {
		return nil, err
	}
	nonce, err := StageNonce(stage)
	if err != nil {
		return nil, err
	}
	n := len(data) - crypto.TagSize
	pt, err := crypto.Open(key, nonce, data[:n], data[n:], nil)
	if err != nil {
		return nil, NewError(KindAuthentication, stage.String(), "decrypt", err)
	}
	return pt, nil
}
