// Package adjuster exposes the directory of adjusters known to the platform.
// An adjuster is any principal holding the adjuster role.
package adjuster

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/meridian-mutual/platform/internal/shared/errors"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// Adjuster is a directory entry
type Adjuster struct {
	ID        types.ID  `json:"id"`
	GrantedAt time.Time `json:"granted_at"`
}

// Directory answers adjuster lookups
type Directory interface {
	Exists(ctx context.Context, id types.ID) (bool, error)
	List(ctx context.Context) ([]Adjuster, error)
}

// PostgresDirectory reads the directory from the role grants table
type PostgresDirectory struct {
	pool *pgxpool.Pool
}

// NewPostgresDirectory creates a directory backed by PostgreSQL
func NewPostgresDirectory(pool *pgxpool.Pool) *PostgresDirectory {
	return &PostgresDirectory{pool: pool}
}

// Exists reports whether the principal holds the adjuster role
func (d *PostgresDirectory) Exists(ctx context.Context, id types.ID) (bool, error) {
	var exists bool
	err := d.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM claims.app_roles WHERE principal_id = $1 AND role = 'adjuster')`,
		id).Scan(&exists)
	if err != nil {
		return false, errors.Wrap(err, "failed to check adjuster")
	}
	return exists, nil
}

// List returns all adjusters
func (d *PostgresDirectory) List(ctx context.Context) ([]Adjuster, error) {
	rows, err := d.pool.Query(ctx,
		`SELECT principal_id, granted_at FROM claims.app_roles WHERE role = 'adjuster' ORDER BY granted_at`)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list adjusters")
	}
	defer rows.Close()

	var adjusters []Adjuster
	for rows.Next() {
		var a Adjuster
		if err := rows.Scan(&a.ID, &a.GrantedAt); err != nil {
			return nil, errors.Wrap(err, "failed to scan adjuster")
		}
		adjusters = append(adjusters, a)
	}

	return adjusters, nil
}

// MemoryDirectory is an in-memory Directory for tests and local development
type MemoryDirectory struct {
	mu      sync.RWMutex
	entries map[types.ID]Adjuster
}

// NewMemoryDirectory creates an empty in-memory directory
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{entries: make(map[types.ID]Adjuster)}
}

// Add registers an adjuster
func (d *MemoryDirectory) Add(id types.ID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[id] = Adjuster{ID: id, GrantedAt: time.Now().UTC()}
}

func (d *MemoryDirectory) Exists(ctx context.Context, id types.ID) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	_, ok := d.entries[id]
	return ok, nil
}

func (d *MemoryDirectory) List(ctx context.Context) ([]Adjuster, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	adjusters := make([]Adjuster, 0, len(d.entries))
	for _, a := range d.entries {
		adjusters = append(adjusters, a)
	}
	return adjusters, nil
}
