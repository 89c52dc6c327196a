package policy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/meridian-mutual/platform/internal/shared/errors"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// MemoryRepository is an in-memory Repository for tests and local development
type MemoryRepository struct {
	mu       sync.RWMutex
	policies map[types.ID]Policy
}

// NewMemoryRepository creates an empty in-memory repository
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{policies: make(map[types.ID]Policy)}
}

func (r *MemoryRepository) Save(ctx context.Context, p *Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.policies[p.ID]; exists {
		return errors.Conflict("policy already exists")
	}

	r.policies[p.ID] = *p
	return nil
}

func (r *MemoryRepository) FindByID(ctx context.Context, id types.ID) (*Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.policies[id]
	if !ok {
		return nil, errors.NotFound("policy", id.String())
	}

	found := p
	return &found, nil
}

func (r *MemoryRepository) FindByCustomer(ctx context.Context, customerID types.ID) ([]Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var policies []Policy
	for _, p := range r.policies {
		if p.CustomerID == customerID {
			policies = append(policies, p)
		}
	}

	sort.Slice(policies, func(i, j int) bool {
		return policies[i].CreatedAt.After(policies[j].CreatedAt)
	})

	return policies, nil
}

func (r *MemoryRepository) FindAll(ctx context.Context) ([]Policy, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	policies := make([]Policy, 0, len(r.policies))
	for _, p := range r.policies {
		policies = append(policies, p)
	}

	sort.Slice(policies, func(i, j int) bool {
		return policies[i].CreatedAt.After(policies[j].CreatedAt)
	})

	return policies, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id types.ID, status Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.policies[id]
	if !ok {
		return errors.NotFound("policy", id.String())
	}

	p.Status = status
	p.UpdatedAt = time.Now().UTC()
	r.policies[id] = p
	return nil
}
