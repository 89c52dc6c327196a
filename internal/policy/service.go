package policy

import (
	"context"

	"github.com/meridian-mutual/platform/internal/shared/errors"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// CoverageFallback answers coverage questions for policies that predate this
// platform and still live in the legacy policy administration system.
type CoverageFallback interface {
	Lookup(ctx context.Context, policyID types.ID) (coverage float64, active bool, err error)
}

// Service answers the policy questions the claim workflow asks. Lookups hit
// the platform's own store first and fall back to the legacy system when the
// policy is not found there.
type Service struct {
	repo   Repository
	legacy CoverageFallback // optional
}

// NewService creates a policy service. legacy may be nil.
func NewService(repo Repository, legacy CoverageFallback) *Service {
	return &Service{repo: repo, legacy: legacy}
}

// CoverageAmount returns the coverage limit for a policy
func (s *Service) CoverageAmount(ctx context.Context, policyID types.ID) (float64, error) {
	p, err := s.repo.FindByID(ctx, policyID)
	if err == nil {
		return p.CoverageAmount, nil
	}
	if !errors.IsNotFound(err) || s.legacy == nil {
		return 0, err
	}

	coverage, _, err := s.legacy.Lookup(ctx, policyID)
	if err != nil {
		return 0, err
	}
	return coverage, nil
}

// Active reports whether a policy accepts new claims
func (s *Service) Active(ctx context.Context, policyID types.ID) (bool, error) {
	p, err := s.repo.FindByID(ctx, policyID)
	if err == nil {
		return p.Active(), nil
	}
	if !errors.IsNotFound(err) || s.legacy == nil {
		return false, err
	}

	_, active, err := s.legacy.Lookup(ctx, policyID)
	if err != nil {
		return false, err
	}
	return active, nil
}
