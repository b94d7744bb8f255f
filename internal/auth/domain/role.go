package domain

import "strings"

// Role is the closed set of staff roles carried in session claims.
type Role string

const (
	RoleOwner   Role = "OWNER"
	RoleManager Role = "MANAGER"
	RoleCashier Role = "CASHIER"
	RoleKitchen Role = "KITCHEN"
)

// Capability is a bit set of privileges granted to a role.
type Capability uint8

const (
	// CapBypassOutletScope lets the holder act on any outlet.
	CapBypassOutletScope Capability = 1 << iota
)

var roleCapabilities = map[Role]Capability{
	RoleOwner:   CapBypassOutletScope,
	RoleManager: 0,
	RoleCashier: 0,
	RoleKitchen: 0,
}

// AllRoles lists every known role.
func AllRoles() []Role {
	return []Role{RoleOwner, RoleManager, RoleCashier, RoleKitchen}
}

// ParseRole normalizes raw and rejects roles outside the known set.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToUpper(strings.TrimSpace(raw)))
	if _, ok := roleCapabilities[role]; !ok {
		return "", ErrInvalidRole
	}
	return role, nil
}

func (r Role) Valid() bool {
	_, ok := roleCapabilities[r]
	return ok
}

func (r Role) Has(c Capability) bool {
	return roleCapabilities[r]&c != 0
}

func (r Role) String() string { return string(r) }
