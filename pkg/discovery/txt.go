package discovery

import (
	"fmt"
	"strconv"
	"strings"
)

// TXT record keys advertised by IP accessories.
const (
	TXTKeyConfigNumber    = "c#"
	TXTKeyFeatureFlags    = "ff"
	TXTKeyID              = "id"
	TXTKeyModel           = "md"
	TXTKeyProtocolVersion = "pv"
	TXTKeyStateNumber     = "s#"
	TXTKeyStatusFlags     = "sf"
	TXTKeyCategory        = "ci"
	TXTKeySetupHash       = "sh"
)

// DefaultProtocolVersion is assumed when "pv" is absent.
const DefaultProtocolVersion = "1.0"

// AccessoryTXT holds the decoded TXT records of a _hap._tcp instance.
type AccessoryTXT struct {
	// ID is the accessory pairing identifier, in XX:XX:XX:XX:XX:XX form.
	ID string

	// Model is the accessory model name.
	Model string

	// ConfigNumber increments whenever the accessory database changes.
	ConfigNumber uint32

	// StateNumber is the current state number, always 1 for IP accessories.
	StateNumber uint32

	StatusFlags     StatusFlags
	FeatureFlags    FeatureFlags
	Category        Category
	ProtocolVersion string

	// SetupHash is the optional base64 setup hash.
	SetupHash string
}

// Paired reports whether the accessory already has a controller.
func (t AccessoryTXT) Paired() bool {
	return t.StatusFlags&StatusNotPaired == 0
}

// Validate checks the records that every accessory must advertise.
func (t AccessoryTXT) Validate() error {
	if t.ID == "" {
		return ErrMissingID
	}
	if t.Category == 0 {
		return fmt.Errorf("%w: missing category", ErrInvalidTXTRecord)
	}
	return nil
}

// Encode returns the records in "key=value" form.
func (t AccessoryTXT) Encode() []string {
	pv := t.ProtocolVersion
	if pv == "" {
		pv = DefaultProtocolVersion
	}
	s := t.StateNumber
	if s == 0 {
		s = 1
	}
	c := t.ConfigNumber
	if c == 0 {
		c = 1
	}

	records := []string{
		TXTKeyConfigNumber + "=" + strconv.FormatUint(uint64(c), 10),
		TXTKeyFeatureFlags + "=" + strconv.Itoa(int(t.FeatureFlags)),
		TXTKeyID + "=" + t.ID,
		TXTKeyModel + "=" + t.Model,
		TXTKeyProtocolVersion + "=" + pv,
		TXTKeyStateNumber + "=" + strconv.FormatUint(uint64(s), 10),
		TXTKeyStatusFlags + "=" + strconv.Itoa(int(t.StatusFlags)),
		TXTKeyCategory + "=" + strconv.Itoa(int(t.Category)),
	}
	if t.SetupHash != "" {
		records = append(records, TXTKeySetupHash+"="+t.SetupHash)
	}
	return records
}

// ParseTXT splits "key=value" strings into a map. Keys are lower-cased;
// a record without '=' maps to the empty string.
func ParseTXT(records []string) map[string]string {
	result := make(map[string]string, len(records))
	for _, r := range records {
		if r == "" {
			continue
		}
		key, value, _ := strings.Cut(r, "=")
		result[strings.ToLower(key)] = value
	}
	return result
}

// ParseAccessoryTXT decodes the records of a _hap._tcp instance.
func ParseAccessoryTXT(records []string) (*AccessoryTXT, error) {
	m := ParseTXT(records)

	txt := &AccessoryTXT{
		ID:              m[TXTKeyID],
		Model:           m[TXTKeyModel],
		ProtocolVersion: m[TXTKeyProtocolVersion],
		SetupHash:       m[TXTKeySetupHash],
	}
	if txt.ID == "" {
		return nil, ErrMissingID
	}
	if txt.ProtocolVersion == "" {
		txt.ProtocolVersion = DefaultProtocolVersion
	}

	var err error
	if txt.ConfigNumber, err = parseUint(m, TXTKeyConfigNumber, 32); err != nil {
		return nil, err
	}
	if txt.StateNumber, err = parseUint(m, TXTKeyStateNumber, 32); err != nil {
		return nil, err
	}
	sf, err := parseUint(m, TXTKeyStatusFlags, 8)
	if err != nil {
		return nil, err
	}
	txt.StatusFlags = StatusFlags(sf)
	ff, err := parseUint(m, TXTKeyFeatureFlags, 8)
	if err != nil {
		return nil, err
	}
	txt.FeatureFlags = FeatureFlags(ff)
	ci, err := parseUint(m, TXTKeyCategory, 16)
	if err != nil {
		return nil, err
	}
	txt.Category = Category(ci)

	return txt, nil
}

func parseUint(m map[string]string, key string, bits int) (uint32, error) {
	s, ok := m[key]
	if !ok || s == "" {
		return 0, nil
	}
	v, err := strconv.ParseUint(s, 10, bits)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q", ErrInvalidTXTRecord, key, s)
	}
	return uint32(v), nil
}
