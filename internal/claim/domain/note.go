package domain

import (
	"fmt"
	"time"

	"github.com/meridian-mutual/platform/internal/shared/types"
)

// ClaimNote is a free-text annotation attached to a claim by anyone who can
// see it. Notes carry no workflow semantics.
type ClaimNote struct {
	ID        types.ID  `json:"id"`
	ClaimID   types.ID  `json:"claim_id"`
	AuthorID  types.ID  `json:"author_id"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// NewClaimNote creates a note with validation
func NewClaimNote(claimID, authorID types.ID, content string) (*ClaimNote, error) {
	if claimID.IsZero() {
		return nil, fmt.Errorf("claim is required")
	}
	if authorID.IsZero() {
		return nil, fmt.Errorf("author is required")
	}
	if content == "" {
		return nil, fmt.Errorf("note content is required")
	}

	return &ClaimNote{
		ID:        types.NewID(),
		ClaimID:   claimID,
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}, nil
}
