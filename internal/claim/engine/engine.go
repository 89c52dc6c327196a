// Package engine owns the claim workflow: it validates and applies status
// transitions against the authoritative transition table, scoped by the
// roles the access resolver reports for the calling principal.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/meridian-mutual/platform/internal/access"
	"github.com/meridian-mutual/platform/internal/claim/domain"
	"github.com/meridian-mutual/platform/internal/shared/errors"
	"github.com/meridian-mutual/platform/internal/shared/events"
	"github.com/meridian-mutual/platform/internal/shared/metrics"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// AdjusterDirectory validates adjuster references in transition payloads.
type AdjusterDirectory interface {
	Exists(ctx context.Context, id types.ID) (bool, error)
}

// PolicySource answers the policy questions the workflow needs: coverage
// bounds for approval and policy state for filing.
type PolicySource interface {
	// CoverageAmount returns the coverage limit; NotFound if the policy
	// does not exist.
	CoverageAmount(ctx context.Context, policyID types.ID) (float64, error)

	// Active reports whether the policy accepts new claims; NotFound if
	// the policy does not exist.
	Active(ctx context.Context, policyID types.ID) (bool, error)
}

// Engine applies the claim workflow. Stateless between calls: all durable
// state lives in the claim record.
type Engine struct {
	repo      domain.Repository
	resolver  access.Resolver
	adjusters AdjusterDirectory
	policies  PolicySource
	bus       events.EventBus // optional

	// Per-claim locks serializing the read-validate-write of
	// ApplyTransition. Calls for different claims proceed in parallel.
	// Entries are reference-counted and removed once the last holder
	// releases, so the map stays bounded by in-flight claims.
	mu    sync.Mutex
	locks map[types.ID]*claimLock
}

type claimLock struct {
	mu   sync.Mutex
	refs int
}

// New creates a workflow engine. bus may be nil; events are then dropped.
func New(repo domain.Repository, resolver access.Resolver, adjusters AdjusterDirectory, policies PolicySource, bus events.EventBus) *Engine {
	return &Engine{
		repo:      repo,
		resolver:  resolver,
		adjusters: adjusters,
		policies:  policies,
		bus:       bus,
		locks:     make(map[types.ID]*claimLock),
	}
}

// FileClaimInput carries the facts supplied at filing.
type FileClaimInput struct {
	PolicyID            types.ID  `json:"policy_id"`
	IncidentDate        time.Time `json:"incident_date"`
	IncidentLocation    string    `json:"incident_location"`
	IncidentDescription string    `json:"incident_description"`
	EstimatedDamage     *float64  `json:"estimated_damage,omitempty"`
}

// FileClaim creates a claim in the submitted state against one of the
// principal's active policies.
func (e *Engine) FileClaim(ctx context.Context, principal types.ID, input FileClaimInput) (*domain.Claim, error) {
	roles, err := e.resolver.RolesFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	if !roles.Has(access.RoleCustomer) {
		metrics.RecordAuthorizationDecision("file_claim", false)
		return nil, errors.Forbidden("only customers may file claims")
	}

	owns, err := e.resolver.OwnsPolicy(ctx, principal, input.PolicyID)
	if err != nil {
		return nil, err
	}
	if !owns {
		metrics.RecordAuthorizationDecision("file_claim", false)
		return nil, errors.Forbidden("policy does not belong to this customer")
	}

	active, err := e.policies.Active(ctx, input.PolicyID)
	if err != nil {
		return nil, err
	}
	if !active {
		return nil, errors.InvalidPayload("policy_id", "policy is not active")
	}

	c, err := domain.NewClaim(input.PolicyID, principal, input.IncidentDate,
		input.IncidentLocation, input.IncidentDescription, input.EstimatedDamage)
	if err != nil {
		return nil, errors.BadRequest(err.Error())
	}

	if err := e.repo.Save(ctx, c); err != nil {
		return nil, err
	}

	metrics.RecordAuthorizationDecision("file_claim", true)
	metrics.RecordClaimCreated()
	e.publish(ctx, principal, roles, c)

	return c, nil
}

// GetClaim loads a claim visible to the principal.
func (e *Engine) GetClaim(ctx context.Context, principal, claimID types.ID) (*domain.Claim, error) {
	c, err := e.repo.FindByID(ctx, claimID)
	if err != nil {
		return nil, err
	}

	roles, err := e.resolver.RolesFor(ctx, principal)
	if err != nil {
		return nil, err
	}

	if err := e.checkVisibility(ctx, principal, roles, c); err != nil {
		return nil, err
	}

	return c, nil
}

// ListClaims returns the claims visible under the principal's roles,
// ordered by created_at descending with ties broken by id ascending.
// Customers see only claims on policies they own; agent, adjuster and
// manager see the full set. The filter is a view refinement, not a
// security boundary.
func (e *Engine) ListClaims(ctx context.Context, principal types.ID, filter domain.ListFilter) ([]domain.Claim, error) {
	roles, err := e.resolver.RolesFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	if roles.IsEmpty() {
		return nil, errors.Forbidden("no claims-domain role")
	}

	if !roles.HasAny(access.RoleAgent, access.RoleAdjuster, access.RoleManager) {
		filter.CustomerID = &principal
	}

	return e.repo.List(ctx, filter)
}

// AvailableTransitions returns the targets the principal may move the claim
// to from its current status. Presentation layers consume this instead of
// re-deriving the transition table.
func (e *Engine) AvailableTransitions(ctx context.Context, principal, claimID types.ID) ([]domain.ClaimStatus, error) {
	c, err := e.repo.FindByID(ctx, claimID)
	if err != nil {
		return nil, err
	}

	roles, err := e.resolver.RolesFor(ctx, principal)
	if err != nil {
		return nil, err
	}

	if err := e.checkVisibility(ctx, principal, roles, c); err != nil {
		return nil, err
	}

	return domain.LegalTargets(c.Status, roles), nil
}

// ApplyTransition moves a claim along one edge of the workflow. The
// read-validate-write sequence runs under a per-claim lock; a storage-level
// version conflict is retried once, then surfaced as Conflict.
func (e *Engine) ApplyTransition(ctx context.Context, principal, claimID types.ID, target domain.ClaimStatus, payload domain.TransitionPayload) (*domain.Claim, error) {
	lock := e.acquire(claimID)
	defer e.release(claimID, lock)

	c, err := e.applyOnce(ctx, principal, claimID, target, payload)
	if errors.IsConflict(err) {
		// Single retry: re-read, re-validate, re-attempt the write.
		c, err = e.applyOnce(ctx, principal, claimID, target, payload)
		if errors.IsConflict(err) {
			return nil, errors.Conflict("concurrent modification of claim")
		}
	}
	if err != nil {
		if appErr, ok := err.(*errors.AppError); ok {
			metrics.RecordTransitionRejected(appErr.Code)
		}
		return nil, err
	}

	return c, nil
}

// applyOnce runs one read-validate-write pass. All checks precede the single
// mutating step; no partial writes can occur.
func (e *Engine) applyOnce(ctx context.Context, principal, claimID types.ID, target domain.ClaimStatus, payload domain.TransitionPayload) (*domain.Claim, error) {
	// 1. Load.
	c, err := e.repo.FindByID(ctx, claimID)
	if err != nil {
		return nil, err
	}

	// 2. Resolve roles; a principal with no domain roles fails closed.
	roles, err := e.resolver.RolesFor(ctx, principal)
	if err != nil {
		return nil, err
	}
	if roles.IsEmpty() {
		return nil, errors.Forbidden("no claims-domain role")
	}

	// 3. State shape before role: no such edge (including target == current
	// status) is InvalidTransition regardless of who asks.
	rule, ok := domain.RuleFor(c.Status, target)
	if !ok {
		return nil, errors.InvalidTransition(string(c.Status), string(target))
	}

	// 4. One qualifying role suffices for the edge.
	if !roles.HasAny(rule.Roles...) {
		metrics.RecordAuthorizationDecision("apply_transition", false)
		return nil, errors.Forbidden("role does not permit this transition")
	}
	metrics.RecordAuthorizationDecision("apply_transition", true)

	// 5. Edge payload.
	if err := e.validatePayload(ctx, c, rule, payload); err != nil {
		return nil, err
	}

	// 6. Mutate atomically under the storage version check.
	expected := c.Version
	c.Transition(rule, payload, principal)
	if err := e.repo.Update(ctx, c, expected); err != nil {
		return nil, err
	}

	metrics.RecordClaimTransition(string(rule.From), string(rule.To))
	e.publish(ctx, principal, roles, c)

	return c, nil
}

func (e *Engine) validatePayload(ctx context.Context, c *domain.Claim, rule domain.TransitionRule, payload domain.TransitionPayload) error {
	if rule.RequiresAdjuster {
		if payload.AssignedAdjusterID == nil || payload.AssignedAdjusterID.IsZero() {
			return errors.InvalidPayload("assigned_adjuster_id", "required for assignment")
		}
		exists, err := e.adjusters.Exists(ctx, *payload.AssignedAdjusterID)
		if err != nil {
			return err
		}
		if !exists {
			return errors.NotFound("adjuster", payload.AssignedAdjusterID.String())
		}
	}

	if rule.RequiresAmount {
		if payload.ApprovedAmount == nil {
			return errors.InvalidPayload("approved_amount", "required for approval")
		}
		if *payload.ApprovedAmount <= 0 {
			return errors.InvalidPayload("approved_amount", "must be greater than zero")
		}
		coverage, err := e.policies.CoverageAmount(ctx, c.PolicyID)
		if err != nil {
			return err
		}
		if *payload.ApprovedAmount > coverage {
			return errors.InvalidPayload("approved_amount", "exceeds policy coverage")
		}
	}

	return nil
}

// checkVisibility enforces read scoping: principals whose only role is
// customer see a claim only when they own its policy.
func (e *Engine) checkVisibility(ctx context.Context, principal types.ID, roles access.RoleSet, c *domain.Claim) error {
	if roles.IsEmpty() {
		return errors.Forbidden("no claims-domain role")
	}
	if roles.HasAny(access.RoleAgent, access.RoleAdjuster, access.RoleManager) {
		return nil
	}

	owns, err := e.resolver.OwnsPolicy(ctx, principal, c.PolicyID)
	if err != nil {
		return err
	}
	if !owns {
		return errors.Forbidden("no access to this claim")
	}
	return nil
}

func (e *Engine) acquire(id types.ID) *claimLock {
	e.mu.Lock()
	lock, ok := e.locks[id]
	if !ok {
		lock = &claimLock{}
		e.locks[id] = lock
	}
	lock.refs++
	e.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (e *Engine) release(id types.ID, lock *claimLock) {
	lock.mu.Unlock()

	e.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(e.locks, id)
	}
	e.mu.Unlock()
}

// publish flushes the claim's pending domain events to the bus.
func (e *Engine) publish(ctx context.Context, principal types.ID, roles access.RoleSet, c *domain.Claim) {
	if e.bus == nil {
		c.GetDomainEvents()
		return
	}

	actorType := "system"
	if r := roles.Roles(); len(r) > 0 {
		actorType = string(r[0])
	}

	for _, de := range c.GetDomainEvents() {
		event := events.NewEvent("claim."+string(de.Type), "claims", map[string]any{
			"claim_id":     c.ID,
			"claim_number": c.ClaimNumber,
			"event":        de,
		}).WithActor(principal, actorType)

		if err := e.bus.Publish(ctx, event); err != nil {
			// Event publication is best-effort; the write already
			// committed.
			continue
		}
	}
}
