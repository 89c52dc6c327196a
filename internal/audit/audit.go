// Package audit maintains the immutable trail of claim lifecycle events. It
// consumes events from the bus so that every successful workflow action is
// recorded regardless of which component performed it.
package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/meridian-mutual/platform/internal/shared/events"
	"github.com/meridian-mutual/platform/internal/shared/metrics"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// Entry is one audit trail record
type Entry struct {
	ID        types.ID       `json:"id"`
	EventID   string         `json:"event_id"`
	EventType string         `json:"event_type"`
	ClaimID   types.ID       `json:"claim_id"`
	ActorID   types.ID       `json:"actor_id"`
	ActorType string         `json:"actor_type"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Store defines the interface for audit trail persistence
type Store interface {
	Append(ctx context.Context, e *Entry) error
	ForClaim(ctx context.Context, claimID types.ID) ([]Entry, error)
	Recent(ctx context.Context, limit int) ([]Entry, error)
}

// Recorder subscribes to claim events and persists them as audit entries
type Recorder struct {
	bus   events.EventBus
	store Store
}

// NewRecorder creates an audit recorder
func NewRecorder(bus events.EventBus, store Store) *Recorder {
	return &Recorder{bus: bus, store: store}
}

// Start subscribes to all claim events. Entries are appended until ctx is
// cancelled.
func (r *Recorder) Start(ctx context.Context) error {
	return r.bus.Subscribe(ctx, "claim.*", "audit-recorder", r.handle)
}

func (r *Recorder) handle(ctx context.Context, event events.Event) error {
	entry := &Entry{
		ID:        types.NewID(),
		EventID:   event.ID,
		EventType: event.Type,
		ActorID:   event.ActorID,
		ActorType: event.ActorType,
		Timestamp: event.Timestamp,
	}

	if data, ok := event.Data.(map[string]any); ok {
		entry.Data = data
		entry.ClaimID = extractClaimID(data)
	} else if raw, err := json.Marshal(event.Data); err == nil {
		var decoded map[string]any
		if json.Unmarshal(raw, &decoded) == nil {
			entry.Data = decoded
			entry.ClaimID = extractClaimID(decoded)
		}
	}

	if err := r.store.Append(ctx, entry); err != nil {
		return err
	}

	metrics.RecordAuditEntry()
	return nil
}

// extractClaimID pulls the claim ID out of event data, if present
func extractClaimID(data map[string]any) types.ID {
	raw, ok := data["claim_id"].(string)
	if !ok {
		return ""
	}
	id, err := types.ParseID(raw)
	if err != nil {
		return ""
	}
	return id
}
