package adjuster

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meridian-mutual/platform/internal/access"
	"github.com/meridian-mutual/platform/internal/shared/auth"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// TestListAdjusters verifies the directory is manager-only
func TestListAdjusters(t *testing.T) {
	directory := NewMemoryDirectory()
	adjusterID := types.NewID()
	directory.Add(adjusterID)

	resolver := access.NewStaticResolver()
	manager := types.NewID()
	agent := types.NewID()
	customer := types.NewID()
	resolver.Grant(manager, access.RoleManager)
	resolver.Grant(agent, access.RoleAgent)
	resolver.Grant(customer, access.RoleCustomer)
	resolver.Grant(adjusterID, access.RoleAdjuster)

	router := NewHandler(directory, resolver).Routes()

	do := func(principal types.ID) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		ctx := context.WithValue(req.Context(), auth.UserContextKey, &auth.User{ID: principal})
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req.WithContext(ctx))
		return rec
	}

	t.Run("Manager lists the directory", func(t *testing.T) {
		rec := do(manager)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}

		var body struct {
			Data []Adjuster `json:"data"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode list: %v", err)
		}
		if len(body.Data) != 1 || body.Data[0].ID != adjusterID {
			t.Errorf("Expected the registered adjuster, got %d entries", len(body.Data))
		}
	})

	for name, principal := range map[string]types.ID{
		"Agent":    agent,
		"Adjuster": adjusterID,
		"Customer": customer,
	} {
		t.Run(name+" forbidden", func(t *testing.T) {
			if rec := do(principal); rec.Code != http.StatusForbidden {
				t.Errorf("Expected 403, got %d", rec.Code)
			}
		})
	}
}
