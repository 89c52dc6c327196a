package infrastructure

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meridian-mutual/platform/internal/claim/domain"
	"github.com/meridian-mutual/platform/internal/shared/errors"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// PostgresRepository implements domain.Repository using PostgreSQL
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Save persists a newly filed claim
func (r *PostgresRepository) Save(ctx context.Context, c *domain.Claim) error {
	query := `
		INSERT INTO claims.claims (
			id, claim_number, policy_id, customer_id, status,
			incident_date, incident_location, incident_description,
			estimated_damage, assigned_adjuster_id, approved_amount,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
		)`

	_, err := r.pool.Exec(ctx, query,
		c.ID, c.ClaimNumber, c.PolicyID, c.CustomerID, c.Status,
		c.IncidentDate, c.IncidentLocation, c.IncidentDescription,
		c.EstimatedDamage, c.AssignedAdjusterID, c.ApprovedAmount,
		c.Version, c.CreatedAt, c.UpdatedAt,
	)

	if err != nil {
		if strings.Contains(err.Error(), "duplicate key") {
			return errors.Conflict("claim with this number already exists")
		}
		return errors.Wrap(err, "failed to save claim")
	}

	return nil
}

// FindByID finds a claim by ID
func (r *PostgresRepository) FindByID(ctx context.Context, id types.ID) (*domain.Claim, error) {
	query := `
		SELECT id, claim_number, policy_id, customer_id, status,
			incident_date, incident_location, incident_description,
			estimated_damage, assigned_adjuster_id, approved_amount,
			version, created_at, updated_at
		FROM claims.claims
		WHERE id = $1`

	c := &domain.Claim{}

	err := r.pool.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.ClaimNumber, &c.PolicyID, &c.CustomerID, &c.Status,
		&c.IncidentDate, &c.IncidentLocation, &c.IncidentDescription,
		&c.EstimatedDamage, &c.AssignedAdjusterID, &c.ApprovedAmount,
		&c.Version, &c.CreatedAt, &c.UpdatedAt,
	)

	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("claim", id.String())
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to find claim")
	}

	return c, nil
}

// Update writes a mutated claim guarded by its previous version. A lost race
// surfaces as Conflict, a vanished row as NotFound.
func (r *PostgresRepository) Update(ctx context.Context, c *domain.Claim, expectedVersion int64) error {
	query := `
		UPDATE claims.claims SET
			status = $2,
			assigned_adjuster_id = $3,
			approved_amount = $4,
			version = $5,
			updated_at = $6
		WHERE id = $1 AND version = $7`

	result, err := r.pool.Exec(ctx, query,
		c.ID, c.Status,
		c.AssignedAdjusterID, c.ApprovedAmount,
		c.Version, c.UpdatedAt,
		expectedVersion,
	)

	if err != nil {
		return errors.Wrap(err, "failed to update claim")
	}

	if result.RowsAffected() == 0 {
		var exists bool
		err := r.pool.QueryRow(ctx,
			`SELECT EXISTS (SELECT 1 FROM claims.claims WHERE id = $1)`, c.ID).Scan(&exists)
		if err != nil {
			return errors.Wrap(err, "failed to check claim existence")
		}
		if !exists {
			return errors.NotFound("claim", c.ID.String())
		}
		return errors.Conflict("claim was modified concurrently")
	}

	return nil
}

// List lists claims with filters, newest first with ties broken by id
func (r *PostgresRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Claim, error) {
	var conditions []string
	var args []interface{}
	argNum := 1

	if filter.CustomerID != nil {
		conditions = append(conditions, fmt.Sprintf("customer_id = $%d", argNum))
		args = append(args, *filter.CustomerID)
		argNum++
	}

	if filter.Status != nil {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argNum))
		args = append(args, *filter.Status)
		argNum++
	}

	if filter.AssignedAdjusterID != nil {
		conditions = append(conditions, fmt.Sprintf("assigned_adjuster_id = $%d", argNum))
		args = append(args, *filter.AssignedAdjusterID)
		argNum++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	query := fmt.Sprintf(`
		SELECT id, claim_number, policy_id, customer_id, status,
			incident_date, incident_location, incident_description,
			estimated_damage, assigned_adjuster_id, approved_amount,
			version, created_at, updated_at
		FROM claims.claims
		%s
		ORDER BY created_at DESC, id ASC
		LIMIT $%d OFFSET $%d`, whereClause, argNum, argNum+1)

	args = append(args, limit, filter.Offset)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list claims")
	}
	defer rows.Close()

	var claims []domain.Claim
	for rows.Next() {
		var c domain.Claim

		err := rows.Scan(
			&c.ID, &c.ClaimNumber, &c.PolicyID, &c.CustomerID, &c.Status,
			&c.IncidentDate, &c.IncidentLocation, &c.IncidentDescription,
			&c.EstimatedDamage, &c.AssignedAdjusterID, &c.ApprovedAmount,
			&c.Version, &c.CreatedAt, &c.UpdatedAt,
		)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan claim")
		}

		claims = append(claims, c)
	}

	return claims, nil
}

// AddNote attaches a note to a claim
func (r *PostgresRepository) AddNote(ctx context.Context, n *domain.ClaimNote) error {
	query := `
		INSERT INTO claims.claim_notes (id, claim_id, author_id, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err := r.pool.Exec(ctx, query, n.ID, n.ClaimID, n.AuthorID, n.Content, n.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "foreign key") {
			return errors.NotFound("claim", n.ClaimID.String())
		}
		return errors.Wrap(err, "failed to add note")
	}

	return nil
}

// NotesFor returns a claim's notes in creation order
func (r *PostgresRepository) NotesFor(ctx context.Context, claimID types.ID) ([]domain.ClaimNote, error) {
	query := `
		SELECT id, claim_id, author_id, content, created_at
		FROM claims.claim_notes
		WHERE claim_id = $1
		ORDER BY created_at`

	rows, err := r.pool.Query(ctx, query, claimID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get notes")
	}
	defer rows.Close()

	var notes []domain.ClaimNote
	for rows.Next() {
		var n domain.ClaimNote
		if err := rows.Scan(&n.ID, &n.ClaimID, &n.AuthorID, &n.Content, &n.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan note")
		}
		notes = append(notes, n)
	}

	return notes, nil
}
