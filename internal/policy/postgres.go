package policy

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meridian-mutual/platform/internal/shared/errors"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// PostgresRepository implements Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save persists a new policy
func (r *PostgresRepository) Save(ctx context.Context, p *Policy) error {
	query := `
		INSERT INTO claims.policies (
			id, policy_number, customer_id, vehicle_make, vehicle_model, vehicle_year,
			license_plate, coverage_amount, status, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := r.pool.Exec(ctx, query,
		p.ID, p.PolicyNumber, p.CustomerID, p.VehicleMake, p.VehicleModel, p.VehicleYear,
		p.LicensePlate, p.CoverageAmount, p.Status, p.CreatedAt, p.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("policy with this number already exists")
		}
		return errors.Wrap(err, "failed to save policy")
	}

	return nil
}

const policyColumns = `id, policy_number, customer_id, vehicle_make, vehicle_model, vehicle_year,
	license_plate, coverage_amount, status, created_at, updated_at`

func scanPolicy(row pgx.Row) (*Policy, error) {
	p := &Policy{}
	err := row.Scan(
		&p.ID, &p.PolicyNumber, &p.CustomerID, &p.VehicleMake, &p.VehicleModel, &p.VehicleYear,
		&p.LicensePlate, &p.CoverageAmount, &p.Status, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// FindByID finds a policy by ID
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM claims.policies WHERE id = $1`

	p, err := scanPolicy(r.pool.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("policy", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find policy")
	}

	return p, nil
}

// FindByCustomer returns a customer's policies
func (r *PostgresRepository) FindByCustomer(ctx context.Context, customerID types.ID) ([]Policy, error) {
	query := `SELECT ` + policyColumns + `
		FROM claims.policies
		WHERE customer_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, customerID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list policies")
	}
	defer rows.Close()

	return collectPolicies(rows)
}

// FindAll returns every policy, newest first
func (r *PostgresRepository) FindAll(ctx context.Context) ([]Policy, error) {
	query := `SELECT ` + policyColumns + ` FROM claims.policies ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list policies")
	}
	defer rows.Close()

	return collectPolicies(rows)
}

func collectPolicies(rows pgx.Rows) ([]Policy, error) {
	var policies []Policy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan policy")
		}
		policies = append(policies, *p)
	}
	return policies, nil
}

// UpdateStatus changes a policy's status
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id types.ID, status Status) error {
	result, err := r.pool.Exec(ctx,
		`UPDATE claims.policies SET status = $2, updated_at = NOW() WHERE id = $1`,
		id, status)
	if err != nil {
		return errors.Wrap(err, "failed to update policy status")
	}

	if result.RowsAffected() == 0 {
		return errors.NotFound("policy", id.String())
	}

	return nil
}
