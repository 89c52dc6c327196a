package audit

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meridian-mutual/platform/internal/shared/errors"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// PostgresStore implements Store using PostgreSQL
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL audit store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Append writes an audit entry. The table has no update or delete path.
func (s *PostgresStore) Append(ctx context.Context, e *Entry) error {
	dataJSON, err := json.Marshal(e.Data)
	if err != nil {
		return errors.Wrap(err, "failed to marshal audit data")
	}

	query := `
		INSERT INTO claims.audit_log (
			id, event_id, event_type, claim_id, actor_id, actor_type, data, timestamp
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = s.pool.Exec(ctx, query,
		e.ID, e.EventID, e.EventType, e.ClaimID, e.ActorID, e.ActorType, dataJSON, e.Timestamp,
	)
	if err != nil {
		return errors.Wrap(err, "failed to append audit entry")
	}

	return nil
}

// ForClaim returns a claim's audit trail in chronological order
func (s *PostgresStore) ForClaim(ctx context.Context, claimID types.ID) ([]Entry, error) {
	query := `
		SELECT id, event_id, event_type, claim_id, actor_id, actor_type, data, timestamp
		FROM claims.audit_log
		WHERE claim_id = $1
		ORDER BY timestamp`

	rows, err := s.pool.Query(ctx, query, claimID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit trail")
	}
	defer rows.Close()

	return scanEntries(rows)
}

// Recent returns the most recent audit entries across all claims
func (s *PostgresStore) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	query := `
		SELECT id, event_id, event_type, claim_id, actor_id, actor_type, data, timestamp
		FROM claims.audit_log
		ORDER BY timestamp DESC
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query audit entries")
	}
	defer rows.Close()

	return scanEntries(rows)
}

type pgxRows interface {
	Next() bool
	Scan(dest ...any) error
}

func scanEntries(rows pgxRows) ([]Entry, error) {
	var entries []Entry
	for rows.Next() {
		var e Entry
		var dataJSON []byte

		err := rows.Scan(&e.ID, &e.EventID, &e.EventType, &e.ClaimID, &e.ActorID, &e.ActorType, &dataJSON, &e.Timestamp)
		if err != nil {
			return nil, errors.Wrap(err, "failed to scan audit entry")
		}

		if err := json.Unmarshal(dataJSON, &e.Data); err != nil {
			e.Data = nil
		}

		entries = append(entries, e)
	}

	return entries, nil
}
