package infrastructure

import (
	"context"
	"sort"
	"sync"

	"github.com/meridian-mutual/platform/internal/claim/domain"
	"github.com/meridian-mutual/platform/internal/shared/errors"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// MemoryRepository is an in-memory implementation of domain.Repository for
// tests and local development. It honors the same version-check contract as
// the PostgreSQL repository.
type MemoryRepository struct {
	mu     sync.RWMutex
	claims map[types.ID]domain.Claim
	notes  map[types.ID][]domain.ClaimNote
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		claims: make(map[types.ID]domain.Claim),
		notes:  make(map[types.ID][]domain.ClaimNote),
	}
}

func (r *MemoryRepository) Save(ctx context.Context, c *domain.Claim) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.claims[c.ID]; exists {
		return errors.Conflict("claim already exists")
	}

	stored := *c
	stored.ClearDomainEvents()
	r.claims[c.ID] = stored
	return nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id types.ID) (*domain.Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.claims[id]
	if !ok {
		return nil, errors.NotFound("claim", id.String())
	}

	found := c
	return &found, nil
}

func (r *MemoryRepository) Update(ctx context.Context, c *domain.Claim, expectedVersion int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.claims[c.ID]
	if !ok {
		return errors.NotFound("claim", c.ID.String())
	}
	if current.Version != expectedVersion {
		return errors.Conflict("claim was modified concurrently")
	}

	stored := *c
	stored.ClearDomainEvents()
	r.claims[c.ID] = stored
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Claim, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var claims []domain.Claim
	for _, c := range r.claims {
		if filter.CustomerID != nil && c.CustomerID != *filter.CustomerID {
			continue
		}
		if filter.Status != nil && c.Status != *filter.Status {
			continue
		}
		if filter.AssignedAdjusterID != nil {
			if c.AssignedAdjusterID == nil || *c.AssignedAdjusterID != *filter.AssignedAdjusterID {
				continue
			}
		}
		claims = append(claims, c)
	}

	sort.Slice(claims, func(i, j int) bool {
		if !claims[i].CreatedAt.Equal(claims[j].CreatedAt) {
			return claims[i].CreatedAt.After(claims[j].CreatedAt)
		}
		return claims[i].ID.String() < claims[j].ID.String()
	})

	limit := 50
	if filter.Limit > 0 && filter.Limit <= 100 {
		limit = filter.Limit
	}

	offset := filter.Offset
	if offset >= len(claims) {
		return nil, nil
	}

	end := offset + limit
	if end > len(claims) {
		end = len(claims)
	}

	return claims[offset:end], nil
}

func (r *MemoryRepository) AddNote(ctx context.Context, n *domain.ClaimNote) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.claims[n.ClaimID]; !ok {
		return errors.NotFound("claim", n.ClaimID.String())
	}

	r.notes[n.ClaimID] = append(r.notes[n.ClaimID], *n)
	return nil
}

func (r *MemoryRepository) NotesFor(ctx context.Context, claimID types.ID) ([]domain.ClaimNote, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	notes := make([]domain.ClaimNote, len(r.notes[claimID]))
	copy(notes, r.notes[claimID])
	return notes, nil
}
