// Package policyadmin bridges to the legacy policy administration system.
// Policies issued before the platform migration still live in its SQL Server
// database; the claim workflow falls back to it when a policy is not found
// in the platform store.
package policyadmin

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/denisenkom/go-mssqldb" // SQL Server driver
	"github.com/meridian-mutual/platform/internal/shared/config"
	"github.com/meridian-mutual/platform/internal/shared/errors"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// Adapter reads policy records from the legacy system
type Adapter struct {
	db     *sql.DB
	config config.LegacyPASConfig

	running bool
	mu      sync.RWMutex
}

// New creates a new legacy policy admin adapter
func New(cfg config.LegacyPASConfig) *Adapter {
	return &Adapter{config: cfg}
}

// Start opens the database connection
func (a *Adapter) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.running {
		return fmt.Errorf("adapter already running")
	}

	db, err := sql.Open("sqlserver", a.config.DSN())
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	a.db = db
	a.running = true
	return nil
}

// Stop closes the database connection
func (a *Adapter) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.running {
		return nil
	}

	a.running = false
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// Health checks database connectivity
func (a *Adapter) Health(ctx context.Context) error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.running {
		return fmt.Errorf("adapter not running")
	}
	return a.db.PingContext(ctx)
}

// IsConnected returns connection status
func (a *Adapter) IsConnected() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.running && a.db != nil
}

// Lookup fetches coverage and activity for a legacy policy. Implements the
// policy module's CoverageFallback.
func (a *Adapter) Lookup(ctx context.Context, policyID types.ID) (float64, bool, error) {
	if !a.IsConnected() {
		return 0, false, fmt.Errorf("adapter not connected")
	}

	query := fmt.Sprintf(`
		SELECT CoverageAmount, Status
		FROM %s
		WHERE PolicyGUID = @policyID
	`, a.config.PolicyTable)

	var coverage float64
	var status string

	err := a.db.QueryRowContext(ctx, query,
		sql.Named("policyID", policyID.String()),
	).Scan(&coverage, &status)

	if err == sql.ErrNoRows {
		return 0, false, errors.NotFound("policy", policyID.String())
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to fetch policy: %w", err)
	}

	return coverage, status == "ACTIVE", nil
}
