package access

import (
	"errors"
	"fmt"
	"strings"
)

// Canonical role names understood by the ledger.
const (
	RoleAdmin     = "ROLE_ADMIN"
	RoleDonor     = "ROLE_DONOR"
	RoleNonprofit = "ROLE_NONPROFIT"
)

var (
	// ErrUnknownRole marks grants or revocations naming a role the ledger
	// does not define.
	ErrUnknownRole = errors.New("access: unknown role")
	errNilState    = errors.New("access: state not configured")
)

// roleState abstracts the subset of state manager functionality required by
// the registry.
type roleState interface {
	SetRole(role string, addr []byte) error
	UnsetRole(role string, addr []byte) error
	HasRole(role string, addr []byte) bool
	RoleMembers(role string) ([][]byte, error)
}

// Registry maps identities to role sets. Grants triggered implicitly by the
// donation ledger flow through the same store as explicit admin grants.
type Registry struct {
	state roleState
}

// NewRegistry constructs a registry bound to the provided state backend.
func NewRegistry(state roleState) *Registry {
	return &Registry{state: state}
}

// Known reports whether the role name is one the ledger defines.
func Known(role string) bool {
	switch strings.TrimSpace(role) {
	case RoleAdmin, RoleDonor, RoleNonprofit:
		return true
	default:
		return false
	}
}

// HasRole reports whether the address currently holds the role.
func (r *Registry) HasRole(role string, addr []byte) bool {
	if r == nil || r.state == nil {
		return false
	}
	return r.state.HasRole(strings.TrimSpace(role), addr)
}

// Grant assigns the role to the address. Granting an already-held role is a
// no-op.
func (r *Registry) Grant(role string, addr []byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	trimmed := strings.TrimSpace(role)
	if !Known(trimmed) {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return r.state.SetRole(trimmed, addr)
}

// Revoke removes the role from the address. Revoking a role the address does
// not hold is a no-op.
func (r *Registry) Revoke(role string, addr []byte) error {
	if r == nil || r.state == nil {
		return errNilState
	}
	trimmed := strings.TrimSpace(role)
	if !Known(trimmed) {
		return fmt.Errorf("%w: %s", ErrUnknownRole, role)
	}
	return r.state.UnsetRole(trimmed, addr)
}

// Members returns all addresses assigned to the provided role.
func (r *Registry) Members(role string) ([][]byte, error) {
	if r == nil || r.state == nil {
		return nil, errNilState
	}
	return r.state.RoleMembers(strings.TrimSpace(role))
}
