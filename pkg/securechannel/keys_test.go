package securechannel

import (
	"bytes"
	"crypto/hmac"
	"errors"
	"testing"

	"github.com/backkem/homekit/pkg/crypto"
)

func TestStageTable(t *testing.T) {
	tests := []struct {
		stage Stage
		state byte
		salt  string
		info  string
		nonce string
	}{
		{StageSetupM1, 1, "", "", ""},
		{StageSetupM4, 4, "", "", ""},
		{StageSetupM5, 5, "Pair-Setup-Encrypt-Salt", "Pair-Setup-Encrypt-Info", "PS-Msg05"},
		{StageSetupM6, 6, "Pair-Setup-Encrypt-Salt", "Pair-Setup-Encrypt-Info", "PS-Msg06"},
		{StageSetupControllerSign, 0, "Pair-Setup-Controller-Sign-Salt", "Pair-Setup-Controller-Sign-Info", ""},
		{StageSetupAccessorySign, 0, "Pair-Setup-Accessory-Sign-Salt", "Pair-Setup-Accessory-Sign-Info", ""},
		{StageVerifyM1, 1, "", "", ""},
		{StageVerifyM2, 2, "Pair-Verify-Encrypt-Salt", "Pair-Verify-Encrypt-Info", "PV-Msg02"},
		{StageVerifyM3, 3, "Pair-Verify-Encrypt-Salt", "Pair-Verify-Encrypt-Info", "PV-Msg03"},
		{StageVerifyM4, 4, "", "", ""},
		{StageControlWrite, 0, "Control-Salt", "Control-Write-Encryption-Key", ""},
		{StageControlRead, 0, "Control-Salt", "Control-Read-Encryption-Key", ""},
	}
	for _, tc := range tests {
		t.Run(tc.stage.String(), func(t *testing.T) {
			p := tc.stage.Params()
			if p.State != tc.state || p.Salt != tc.salt || p.Info != tc.info || p.Nonce != tc.nonce {
				t.Errorf("Params() = %+v", p)
			}
		})
	}
}

func TestDeriveKeyMatchesHKDF(t *testing.T) {
	secret := bytes.Repeat([]byte{0x11}, 64)
	got, err := DeriveKey(secret, StageControlWrite, 32)
	if err != nil {
		t.Fatalf("DeriveKey failed: %v", err)
	}
	mac := hmac.New(crypto.NewSHA512, []byte("Control-Salt"))
	mac.Write(secret)
	prk := mac.Sum(nil)
	mac = hmac.New(crypto.NewSHA512, prk)
	mac.Write(append([]byte("Control-Write-Encryption-Key"), 0x01))
	okm := mac.Sum(nil)
	if !bytes.Equal(got, okm[:32]) {
		t.Errorf("DeriveKey = %x, want %x", got, okm[:32])
	}
}

func TestDeriveKeyErrors(t *testing.T) {
	secret := []byte("secret")
	if _, err := DeriveKey(secret, StageSetupM1, 32); !errors.Is(err, ErrProtocol) {
		t.Errorf("label-less stage error = %v, want protocol error", err)
	}
	if _, err := DeriveKey(secret, Stage(99), 32); !errors.Is(err, ErrProtocol) {
		t.Errorf("unknown stage error = %v, want protocol error", err)
	}
	if _, err := DeriveKey(secret, StageControlRead, 65); !errors.Is(err, ErrParameter) {
		t.Errorf("oversized length error = %v, want parameter error", err)
	}
	if _, err := DeriveKey(nil, StageControlRead, 32); !errors.Is(err, ErrParameter) {
		t.Errorf("empty secret error = %v, want parameter error", err)
	}
}

// Every stage that yields key material must be separated from every other:
// distinct labels give distinct keys and stages that share labels differ by nonce.
func TestStageDomainSeparation(t *testing.T) {
	secret := bytes.Repeat([]byte{0x5a}, 64)
	var keyed []Stage
	for s := Stage(0); s < stageCount; s++ {
		if p := s.Params(); p.Salt != "" {
			keyed = append(keyed, s)
		}
	}

	material := map[string]Stage{}
	for _, s := range keyed {
		key, err := DeriveKey(secret, s, 32)
		if err != nil {
			t.Fatalf("DeriveKey(%s) failed: %v", s, err)
		}
		m := string(key) + s.Params().Nonce
		if prev, ok := material[m]; ok {
			t.Errorf("stages %s and %s produce identical key material", prev, s)
		}
		material[m] = s
	}

	keys := map[string]string{}
	for _, s := range keyed {
		p := s.Params()
		key, _ := DeriveKey(secret, s, 32)
		labels := p.Salt + "|" + p.Info
		for other, k := range keys {
			if other != labels && k == string(key) {
				t.Errorf("labels %s and %s produce the same key", other, labels)
			}
		}
		keys[labels] = string(key)
	}
}

func TestSealOpenStage(t *testing.T) {
	secret := bytes.Repeat([]byte{0x22}, 64)
	sealed, err := SealStage(secret, StageSetupM5, []byte("inner tlv"))
	if err != nil {
		t.Fatalf("SealStage failed: %v", err)
	}
	if len(sealed) != len("inner tlv")+crypto.TagSize {
		t.Errorf("sealed length = %d", len(sealed))
	}
	pt, err := OpenStage(secret, StageSetupM5, sealed)
	if err != nil {
		t.Fatalf("OpenStage failed: %v", err)
	}
	if string(pt) != "inner tlv" {
		t.Errorf("OpenStage = %q", pt)
	}

	// M5 and M6 share a key but not a nonce.
	if _, err := OpenStage(secret, StageSetupM6, sealed); !errors.Is(err, ErrAuthentication) {
		t.Errorf("open with other stage error = %v, want authentication error", err)
	}
	if _, err := OpenStage(secret, StageSetupM5, sealed[:10]); !errors.Is(err, ErrParse) {
		t.Errorf("short input error = %v, want parse error", err)
	}
	if _, err := SealStage(secret, StageControlRead, []byte("x")); !errors.Is(err, ErrProtocol) {
		t.Errorf("seal without nonce label error = %v, want protocol error", err)
	}
}

func TestStageNonce(t *testing.T) {
	n, err := StageNonce(StageVerifyM3)
	if err != nil {
		t.Fatalf("StageNonce failed: %v", err)
	}
	if !bytes.Equal(n, append([]byte{0, 0, 0, 0}, "PV-Msg03"...)) {
		t.Errorf("StageNonce = %x", n)
	}
}
