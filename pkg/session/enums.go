package session

// Role selects which derived key a side uses for each direction.
type Role int

const (
	// RoleController encrypts with the Control-Write key and decrypts with
	// the Control-Read key.
	RoleController Role = iota
	// RoleAccessory uses the keys the other way round.
	RoleAccessory
)

// String returns the role name.
func (r Role) String() string {
	switch r {
	case RoleController:
		return "Controller"
	case RoleAccessory:
		return "Accessory"
	default:
		return "Unknown"
	}
}

// IsValid reports whether r is a defined role.
func (r Role) IsValid() bool {
	return r == RoleController || r == RoleAccessory
}
