package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// ClaimStatus defines the workflow state of a claim
type ClaimStatus string

const (
	StatusSubmitted     ClaimStatus = "submitted"
	StatusUnderReview   ClaimStatus = "under_review"
	StatusAssigned      ClaimStatus = "assigned"
	StatusInvestigating ClaimStatus = "investigating"
	StatusApproved      ClaimStatus = "approved"
	StatusRejected      ClaimStatus = "rejected"
	StatusSettled       ClaimStatus = "settled"
)

// AllStatuses lists the fixed status enumeration. No dynamic extension.
var AllStatuses = []ClaimStatus{
	StatusSubmitted, StatusUnderReview, StatusAssigned,
	StatusInvestigating, StatusApproved, StatusRejected, StatusSettled,
}

// ValidStatus reports whether s is a member of the enumeration.
func ValidStatus(s ClaimStatus) bool {
	for _, known := range AllStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// Terminal reports whether the status admits no further transitions,
// regardless of role.
func (s ClaimStatus) Terminal() bool {
	return s == StatusRejected || s == StatusSettled
}

// Claim is the aggregate root for the claims workflow. Its status field is
// mutated only through the workflow engine.
type Claim struct {
	ID          types.ID    `json:"id"`
	ClaimNumber string      `json:"claim_number"`
	PolicyID    types.ID    `json:"policy_id"`
	CustomerID  types.ID    `json:"customer_id"`
	Status      ClaimStatus `json:"status"`

	// Incident facts, immutable after filing
	IncidentDate        time.Time `json:"incident_date"`
	IncidentLocation    string    `json:"incident_location"`
	IncidentDescription string    `json:"incident_description"`
	EstimatedDamage     *float64  `json:"estimated_damage,omitempty"`

	// Workflow-owned fields
	AssignedAdjusterID *types.ID `json:"assigned_adjuster_id,omitempty"`
	ApprovedAmount     *float64  `json:"approved_amount,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Version backs optimistic concurrency at the storage layer
	Version int64 `json:"-"`

	// Domain events (not persisted, published after successful writes)
	domainEvents []Event
}

// NewClaim files a claim against a policy. Claims are only ever created in
// the submitted state.
func NewClaim(policyID, customerID types.ID, incidentDate time.Time, location, description string, estimatedDamage *float64) (*Claim, error) {
	if policyID.IsZero() {
		return nil, fmt.Errorf("policy is required")
	}
	if customerID.IsZero() {
		return nil, fmt.Errorf("customer is required")
	}
	if location == "" {
		return nil, fmt.Errorf("incident location is required")
	}
	if description == "" {
		return nil, fmt.Errorf("incident description is required")
	}
	if incidentDate.IsZero() {
		return nil, fmt.Errorf("incident date is required")
	}
	if estimatedDamage != nil && *estimatedDamage < 0 {
		return nil, fmt.Errorf("estimated damage cannot be negative")
	}

	now := time.Now().UTC()
	c := &Claim{
		ID:                  types.NewID(),
		ClaimNumber:         generateClaimNumber(),
		PolicyID:            policyID,
		CustomerID:          customerID,
		Status:              StatusSubmitted,
		IncidentDate:        incidentDate,
		IncidentLocation:    location,
		IncidentDescription: description,
		EstimatedDamage:     estimatedDamage,
		CreatedAt:           now,
		UpdatedAt:           now,
		Version:             1,
	}

	c.addEvent(EventTypeCreated, map[string]any{
		"policy_id": policyID,
		"status":    StatusSubmitted,
	})

	return c, nil
}

// Transition applies an already-validated edge to the claim: sets the status,
// records edge-defined fields, and refreshes updated_at. Callers must have
// validated the edge against the transition table first.
func (c *Claim) Transition(rule TransitionRule, payload TransitionPayload, actorID types.ID) {
	oldStatus := c.Status
	c.Status = rule.To

	if rule.RequiresAdjuster {
		c.AssignedAdjusterID = payload.AssignedAdjusterID
	}
	if rule.RequiresAmount {
		c.ApprovedAmount = payload.ApprovedAmount
	}

	c.touch()
	c.Version++

	c.addEvent(EventTypeStatusChanged, map[string]any{
		"old_status": oldStatus,
		"new_status": rule.To,
		"actor_id":   actorID,
	})
}

// touch refreshes updated_at, keeping it strictly increasing even when the
// clock has not advanced past the previous write.
func (c *Claim) touch() {
	now := time.Now().UTC()
	if !now.After(c.UpdatedAt) {
		now = c.UpdatedAt.Add(time.Microsecond)
	}
	c.UpdatedAt = now
}

// GetDomainEvents returns and clears pending domain events
func (c *Claim) GetDomainEvents() []Event {
	events := c.domainEvents
	c.domainEvents = nil
	return events
}

// ClearDomainEvents discards pending domain events
func (c *Claim) ClearDomainEvents() {
	c.domainEvents = nil
}

func (c *Claim) addEvent(eventType EventType, data map[string]any) {
	c.domainEvents = append(c.domainEvents, Event{
		Type:        eventType,
		ClaimID:     c.ID,
		ClaimNumber: c.ClaimNumber,
		Data:        data,
		Timestamp:   time.Now().UTC(),
	})
}

// EventType identifies a claim lifecycle event
type EventType string

const (
	EventTypeCreated       EventType = "created"
	EventTypeStatusChanged EventType = "status_changed"
	EventTypeNoteAdded     EventType = "note_added"
)

// Event is a claim lifecycle event pending publication
type Event struct {
	Type        EventType      `json:"type"`
	ClaimID     types.ID       `json:"claim_id"`
	ClaimNumber string         `json:"claim_number"`
	Data        map[string]any `json:"data,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
}

// generateClaimNumber generates a unique human-readable claim number.
// Format: CLM-XXXXXXXX (8 uppercase hex chars).
func generateClaimNumber() string {
	raw := strings.ReplaceAll(uuid.New().String(), "-", "")
	return "CLM-" + strings.ToUpper(raw[:8])
}
