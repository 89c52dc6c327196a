package domain

import (
	"context"

	"github.com/meridian-mutual/platform/internal/shared/types"
)

// Repository defines the interface for claim persistence
type Repository interface {
	// Save persists a newly filed claim
	Save(ctx context.Context, c *Claim) error

	// FindByID loads a claim; NotFound if absent
	FindByID(ctx context.Context, id types.ID) (*Claim, error)

	// Update writes a mutated claim if its stored version still equals
	// expectedVersion; Conflict otherwise. The claim's Version field must
	// already carry the new value.
	Update(ctx context.Context, c *Claim, expectedVersion int64) error

	// List returns claims matching the filter, ordered by created_at
	// descending with ties broken by id ascending.
	List(ctx context.Context, filter ListFilter) ([]Claim, error)

	// Note operations
	AddNote(ctx context.Context, n *ClaimNote) error
	NotesFor(ctx context.Context, claimID types.ID) ([]ClaimNote, error)
}

// ListFilter defines filters for listing claims. Ordering is fixed by the
// Repository contract and not configurable.
type ListFilter struct {
	CustomerID         *types.ID    `json:"customer_id,omitempty"`
	Status             *ClaimStatus `json:"status,omitempty"`
	AssignedAdjusterID *types.ID    `json:"assigned_adjuster_id,omitempty"`
	Limit              int          `json:"limit,omitempty"`
	Offset             int          `json:"offset,omitempty"`
}
