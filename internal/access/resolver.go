package access

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meridian-mutual/platform/internal/shared/errors"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// Resolver maps a principal to the workflow roles they hold and answers
// policy-ownership questions. Read-only; no claim-specific context required.
type Resolver interface {
	// RolesFor returns the claims-domain roles held by the principal. An
	// unknown or zero principal fails with Unauthorized. A known principal
	// with no roles yields an empty set; callers fail closed on it.
	RolesFor(ctx context.Context, principal types.ID) (RoleSet, error)

	// OwnsPolicy reports whether the principal is the policyholder.
	OwnsPolicy(ctx context.Context, principal, policyID types.ID) (bool, error)
}

// PostgresResolver resolves roles from the claims.app_roles table and
// ownership from claims.policies.
type PostgresResolver struct {
	pool *pgxpool.Pool
}

// NewPostgresResolver creates a resolver backed by the platform database.
func NewPostgresResolver(pool *pgxpool.Pool) *PostgresResolver {
	return &PostgresResolver{pool: pool}
}

func (r *PostgresResolver) RolesFor(ctx context.Context, principal types.ID) (RoleSet, error) {
	if principal.IsZero() {
		return nil, errors.Unauthorized("unknown principal")
	}

	rows, err := r.pool.Query(ctx,
		`SELECT role FROM claims.app_roles WHERE principal_id = $1`, principal)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query roles")
	}
	defer rows.Close()

	set := make(RoleSet)
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, errors.Wrap(err, "failed to scan role")
		}
		role, err := ParseRole(raw)
		if err != nil {
			// Stale rows from removed roles are skipped, not fatal.
			continue
		}
		set[role] = struct{}{}
	}

	return set, nil
}

func (r *PostgresResolver) OwnsPolicy(ctx context.Context, principal, policyID types.ID) (bool, error) {
	if principal.IsZero() {
		return false, errors.Unauthorized("unknown principal")
	}

	var owns bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM claims.policies WHERE id = $1 AND customer_id = $2)`,
		policyID, principal).Scan(&owns)
	if err != nil {
		return false, errors.Wrap(err, "failed to check policy ownership")
	}

	return owns, nil
}
