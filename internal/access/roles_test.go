package access

import (
	"context"
	"testing"

	"github.com/meridian-mutual/platform/internal/shared/types"
)

// TestParseRole tests role string validation
func TestParseRole(t *testing.T) {
	tests := []struct {
		input       string
		expected    Role
		expectError bool
	}{
		{"customer", RoleCustomer, false},
		{"agent", RoleAgent, false},
		{"adjuster", RoleAdjuster, false},
		{"manager", RoleManager, false},
		{"admin", "", true},
		{"Customer", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseRole(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("Expected error for %q", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

// TestRoleSet tests set membership operations
func TestRoleSet(t *testing.T) {
	s := NewRoleSet(RoleCustomer, RoleAdjuster)

	if !s.Has(RoleCustomer) || !s.Has(RoleAdjuster) {
		t.Error("Expected set to contain granted roles")
	}
	if s.Has(RoleManager) {
		t.Error("Did not expect manager in set")
	}
	if !s.HasAny(RoleManager, RoleAdjuster) {
		t.Error("Expected HasAny to match on adjuster")
	}
	if s.HasAny(RoleManager, RoleAgent) {
		t.Error("Did not expect HasAny to match")
	}
	if s.IsEmpty() {
		t.Error("Did not expect set to be empty")
	}
	if !NewRoleSet().IsEmpty() {
		t.Error("Expected empty set to be empty")
	}

	roles := s.Roles()
	if len(roles) != 2 || roles[0] != RoleAdjuster || roles[1] != RoleCustomer {
		t.Errorf("Expected sorted [adjuster customer], got %v", roles)
	}
}

// TestStaticResolver tests the in-memory resolver
func TestStaticResolver(t *testing.T) {
	ctx := context.Background()
	r := NewStaticResolver()

	principal := types.NewID()
	policyID := types.NewID()
	r.Grant(principal, RoleCustomer, RoleAgent)
	r.SetPolicyOwner(policyID, principal)

	roles, err := r.RolesFor(ctx, principal)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !roles.Has(RoleCustomer) || !roles.Has(RoleAgent) {
		t.Errorf("Expected granted roles, got %v", roles.Roles())
	}

	// Returned set is a copy; mutating it does not affect the resolver
	roles[RoleManager] = struct{}{}
	again, _ := r.RolesFor(ctx, principal)
	if again.Has(RoleManager) {
		t.Error("Expected stored role set to be isolated from callers")
	}

	if _, err := r.RolesFor(ctx, types.NewID()); err == nil {
		t.Error("Expected error for unknown principal")
	}
	if _, err := r.RolesFor(ctx, types.ID("")); err == nil {
		t.Error("Expected error for zero principal")
	}

	owns, err := r.OwnsPolicy(ctx, principal, policyID)
	if err != nil || !owns {
		t.Errorf("Expected ownership, got owns=%v err=%v", owns, err)
	}
	owns, err = r.OwnsPolicy(ctx, principal, types.NewID())
	if err != nil || owns {
		t.Errorf("Expected no ownership of unknown policy, got owns=%v err=%v", owns, err)
	}
}
