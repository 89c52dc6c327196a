package access

import (
	"context"
	"sync"

	"github.com/meridian-mutual/platform/internal/shared/errors"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// StaticResolver holds role and ownership assignments in memory. Used in
// tests and in local development without a database.
type StaticResolver struct {
	mu       sync.RWMutex
	roles    map[types.ID]RoleSet
	policies map[types.ID]types.ID // policy -> owning customer
}

// NewStaticResolver creates an empty in-memory resolver.
func NewStaticResolver() *StaticResolver {
	return &StaticResolver{
		roles:    make(map[types.ID]RoleSet),
		policies: make(map[types.ID]types.ID),
	}
}

// Grant assigns roles to a principal, replacing any previous assignment.
func (r *StaticResolver) Grant(principal types.ID, roles ...Role) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.roles[principal] = NewRoleSet(roles...)
}

// SetPolicyOwner records the policyholder for a policy.
func (r *StaticResolver) SetPolicyOwner(policyID, customerID types.ID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.policies[policyID] = customerID
}

func (r *StaticResolver) RolesFor(ctx context.Context, principal types.ID) (RoleSet, error) {
	if principal.IsZero() {
		return nil, errors.Unauthorized("unknown principal")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	set, ok := r.roles[principal]
	if !ok {
		return nil, errors.Unauthorized("unknown principal")
	}

	// Copy so callers cannot mutate the stored set.
	out := make(RoleSet, len(set))
	for role := range set {
		out[role] = struct{}{}
	}
	return out, nil
}

func (r *StaticResolver) OwnsPolicy(ctx context.Context, principal, policyID types.ID) (bool, error) {
	if principal.IsZero() {
		return false, errors.Unauthorized("unknown principal")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.policies[policyID] == principal, nil
}
