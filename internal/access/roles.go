// Package access maps authenticated principals to the workflow roles they
// hold in the claims domain.
package access

import (
	"fmt"
	"sort"
)

// Role represents a workflow role in the claims domain.
type Role string

const (
	RoleCustomer Role = "customer" // Files claims against own policies
	RoleAgent    Role = "agent"    // First-line review of submitted claims
	RoleAdjuster Role = "adjuster" // Investigates assigned claims
	RoleManager  Role = "manager"  // Assignment, settlement, oversight
)

// AllRoles lists every role the claims domain recognizes.
var AllRoles = []Role{RoleCustomer, RoleAgent, RoleAdjuster, RoleManager}

// ParseRole validates a role string against the known set.
func ParseRole(s string) (Role, error) {
	for _, r := range AllRoles {
		if s == string(r) {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role: %q", s)
}

// RoleSet is the set of roles a principal holds. Roles are non-exclusive; a
// principal may hold several.
type RoleSet map[Role]struct{}

// NewRoleSet builds a set from the given roles.
func NewRoleSet(roles ...Role) RoleSet {
	s := make(RoleSet, len(roles))
	for _, r := range roles {
		s[r] = struct{}{}
	}
	return s
}

// Has reports whether the set contains the role.
func (s RoleSet) Has(role Role) bool {
	_, ok := s[role]
	return ok
}

// HasAny reports whether the set contains any of the given roles.
func (s RoleSet) HasAny(roles ...Role) bool {
	for _, r := range roles {
		if s.Has(r) {
			return true
		}
	}
	return false
}

// IsEmpty reports whether the principal holds no domain roles.
func (s RoleSet) IsEmpty() bool {
	return len(s) == 0
}

// Roles returns the members in a stable order.
func (s RoleSet) Roles() []Role {
	out := make([]Role, 0, len(s))
	for r := range s {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
