package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/meridian-mutual/platform/internal/access"
	"github.com/meridian-mutual/platform/internal/adjuster"
	"github.com/meridian-mutual/platform/internal/claim/domain"
	"github.com/meridian-mutual/platform/internal/claim/engine"
	"github.com/meridian-mutual/platform/internal/claim/infrastructure"
	"github.com/meridian-mutual/platform/internal/shared/auth"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// stubPolicies answers every policy as active with fixed coverage
type stubPolicies struct{}

func (stubPolicies) CoverageAmount(ctx context.Context, policyID types.ID) (float64, error) {
	return 10000, nil
}

func (stubPolicies) Active(ctx context.Context, policyID types.ID) (bool, error) {
	return true, nil
}

type testServer struct {
	router   http.Handler
	repo     *infrastructure.MemoryRepository
	resolver *access.StaticResolver
	engine   *engine.Engine

	customer types.ID
	agent    types.ID
	manager  types.ID
	adjID    types.ID
	policyID types.ID
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s := &testServer{
		repo:     infrastructure.NewMemoryRepository(),
		resolver: access.NewStaticResolver(),
		customer: types.NewID(),
		agent:    types.NewID(),
		manager:  types.NewID(),
		adjID:    types.NewID(),
		policyID: types.NewID(),
	}

	adjusters := adjuster.NewMemoryDirectory()
	adjusters.Add(s.adjID)

	s.resolver.Grant(s.customer, access.RoleCustomer)
	s.resolver.Grant(s.agent, access.RoleAgent)
	s.resolver.Grant(s.manager, access.RoleManager)
	s.resolver.Grant(s.adjID, access.RoleAdjuster)
	s.resolver.SetPolicyOwner(s.policyID, s.customer)

	s.engine = engine.New(s.repo, s.resolver, adjusters, stubPolicies{}, nil)

	handler := NewHandler(s.engine, s.repo)
	s.router = handler.Routes()
	return s
}

// do issues a request with the given principal injected as the authenticated user
func (s *testServer) do(t *testing.T, principal types.ID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	ctx := context.WithValue(req.Context(), auth.UserContextKey, &auth.User{ID: principal})
	req = req.WithContext(ctx)

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) fileClaim(t *testing.T) types.ID {
	t.Helper()

	rec := s.do(t, s.customer, http.MethodPost, "/", FileClaimRequest{
		PolicyID:            s.policyID.String(),
		IncidentDate:        time.Now().UTC().Add(-12 * time.Hour),
		IncidentLocation:    "Main St and 5th Ave",
		IncidentDescription: "Side collision at intersection",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("filing failed with %d: %s", rec.Code, rec.Body.String())
	}

	var c domain.Claim
	if err := json.NewDecoder(rec.Body).Decode(&c); err != nil {
		t.Fatalf("failed to decode claim: %v", err)
	}
	return c.ID
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var body struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body.Code
}

// TestFileClaimEndpoint tests POST /
func TestFileClaimEndpoint(t *testing.T) {
	s := newTestServer(t)

	t.Run("Created", func(t *testing.T) {
		rec := s.do(t, s.customer, http.MethodPost, "/", FileClaimRequest{
			PolicyID:            s.policyID.String(),
			IncidentDate:        time.Now().UTC().Add(-time.Hour),
			IncidentLocation:    "Home garage",
			IncidentDescription: "Tree limb fell on hood",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var c domain.Claim
		if err := json.NewDecoder(rec.Body).Decode(&c); err != nil {
			t.Fatalf("failed to decode claim: %v", err)
		}
		if c.Status != domain.StatusSubmitted {
			t.Errorf("Expected submitted, got %s", c.Status)
		}
	})

	t.Run("Non-customer forbidden", func(t *testing.T) {
		rec := s.do(t, s.agent, http.MethodPost, "/", FileClaimRequest{
			PolicyID:            s.policyID.String(),
			IncidentDate:        time.Now().UTC(),
			IncidentLocation:    "anywhere",
			IncidentDescription: "anything",
		})
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("Malformed policy ID", func(t *testing.T) {
		rec := s.do(t, s.customer, http.MethodPost, "/", FileClaimRequest{
			PolicyID:            "not-a-uuid",
			IncidentDate:        time.Now().UTC(),
			IncidentLocation:    "anywhere",
			IncidentDescription: "anything",
		})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
		if code := errorCode(t, rec); code != "INVALID_PAYLOAD" {
			t.Errorf("Expected INVALID_PAYLOAD, got %s", code)
		}
	})

	t.Run("Invalid JSON body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString("{not json"))
		ctx := context.WithValue(req.Context(), auth.UserContextKey, &auth.User{ID: s.customer})
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req.WithContext(ctx))
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

// TestGetClaimEndpoint tests GET /{claimID}
func TestGetClaimEndpoint(t *testing.T) {
	s := newTestServer(t)
	claimID := s.fileClaim(t)

	t.Run("Owner reads own claim", func(t *testing.T) {
		rec := s.do(t, s.customer, http.MethodGet, "/"+claimID.String(), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
	})

	t.Run("Other customer forbidden", func(t *testing.T) {
		stranger := types.NewID()
		s.resolver.Grant(stranger, access.RoleCustomer)

		rec := s.do(t, stranger, http.MethodGet, "/"+claimID.String(), nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("Unknown claim", func(t *testing.T) {
		rec := s.do(t, s.manager, http.MethodGet, "/"+types.NewID().String(), nil)
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}
	})

	t.Run("Malformed claim ID", func(t *testing.T) {
		rec := s.do(t, s.manager, http.MethodGet, "/nope", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

// TestApplyTransitionEndpoint tests POST /{claimID}/status
func TestApplyTransitionEndpoint(t *testing.T) {
	s := newTestServer(t)

	statusPath := func(id types.ID) string {
		return fmt.Sprintf("/%s/status", id)
	}

	t.Run("Review accepted", func(t *testing.T) {
		claimID := s.fileClaim(t)

		rec := s.do(t, s.agent, http.MethodPost, statusPath(claimID), ApplyTransitionRequest{
			TargetStatus: "under_review",
		})
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}

		var c domain.Claim
		if err := json.NewDecoder(rec.Body).Decode(&c); err != nil {
			t.Fatalf("failed to decode claim: %v", err)
		}
		if c.Status != domain.StatusUnderReview {
			t.Errorf("Expected under_review, got %s", c.Status)
		}
	})

	t.Run("Error taxonomy over HTTP", func(t *testing.T) {
		claimID := s.fileClaim(t)

		tests := []struct {
			name       string
			principal  types.ID
			request    ApplyTransitionRequest
			wantStatus int
			wantCode   string
		}{
			{"Unknown status", s.agent, ApplyTransitionRequest{TargetStatus: "archived"}, http.StatusBadRequest, "INVALID_PAYLOAD"},
			{"No such edge", s.manager, ApplyTransitionRequest{TargetStatus: "approved"}, http.StatusUnprocessableEntity, "INVALID_TRANSITION"},
			{"Role not permitted", s.customer, ApplyTransitionRequest{TargetStatus: "under_review"}, http.StatusForbidden, "FORBIDDEN"},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				rec := s.do(t, tt.principal, http.MethodPost, statusPath(claimID), tt.request)
				if rec.Code != tt.wantStatus {
					t.Errorf("Expected %d, got %d: %s", tt.wantStatus, rec.Code, rec.Body.String())
				}
				if code := errorCode(t, rec); code != tt.wantCode {
					t.Errorf("Expected code %s, got %s", tt.wantCode, code)
				}
			})
		}
	})

	t.Run("Assignment payload over HTTP", func(t *testing.T) {
		claimID := s.fileClaim(t)
		rec := s.do(t, s.agent, http.MethodPost, statusPath(claimID), ApplyTransitionRequest{TargetStatus: "under_review"})
		if rec.Code != http.StatusOK {
			t.Fatalf("review step failed: %d", rec.Code)
		}

		// Missing adjuster
		rec = s.do(t, s.manager, http.MethodPost, statusPath(claimID), ApplyTransitionRequest{TargetStatus: "assigned"})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}

		// Malformed adjuster ID fails before reaching the engine
		bad := "12345"
		rec = s.do(t, s.manager, http.MethodPost, statusPath(claimID), ApplyTransitionRequest{TargetStatus: "assigned", AssignedAdjusterID: &bad})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}

		// Unknown adjuster is a 404
		ghost := types.NewID().String()
		rec = s.do(t, s.manager, http.MethodPost, statusPath(claimID), ApplyTransitionRequest{TargetStatus: "assigned", AssignedAdjusterID: &ghost})
		if rec.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rec.Code)
		}

		// Valid assignment
		id := s.adjID.String()
		rec = s.do(t, s.manager, http.MethodPost, statusPath(claimID), ApplyTransitionRequest{TargetStatus: "assigned", AssignedAdjusterID: &id})
		if rec.Code != http.StatusOK {
			t.Errorf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
	})
}

// TestListClaimsEndpoint tests GET /
func TestListClaimsEndpoint(t *testing.T) {
	s := newTestServer(t)
	s.fileClaim(t)
	s.fileClaim(t)

	t.Run("Customer sees own claims", func(t *testing.T) {
		rec := s.do(t, s.customer, http.MethodGet, "/", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}

		var body struct {
			Data []domain.Claim `json:"data"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode list: %v", err)
		}
		if len(body.Data) != 2 {
			t.Errorf("Expected 2 claims, got %d", len(body.Data))
		}
	})

	t.Run("Status filter", func(t *testing.T) {
		rec := s.do(t, s.manager, http.MethodGet, "/?status=approved", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}

		var body struct {
			Data []domain.Claim `json:"data"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode list: %v", err)
		}
		if len(body.Data) != 0 {
			t.Errorf("Expected empty list, got %d claims", len(body.Data))
		}
	})

	t.Run("Assigned adjuster filter", func(t *testing.T) {
		rec := s.do(t, s.manager, http.MethodGet, "/?assigned_adjuster_id="+s.adjID.String(), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}

		var body struct {
			Data []domain.Claim `json:"data"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode list: %v", err)
		}
		if len(body.Data) != 0 {
			t.Errorf("Expected no claims assigned yet, got %d", len(body.Data))
		}

		rec = s.do(t, s.manager, http.MethodGet, "/?assigned_adjuster_id=oops", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400 for malformed adjuster filter, got %d", rec.Code)
		}
	})

	t.Run("Unknown status filter", func(t *testing.T) {
		rec := s.do(t, s.manager, http.MethodGet, "/?status=bogus", nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

// TestTransitionsEndpoint tests GET /{claimID}/transitions
func TestTransitionsEndpoint(t *testing.T) {
	s := newTestServer(t)
	claimID := s.fileClaim(t)

	rec := s.do(t, s.agent, http.MethodGet, fmt.Sprintf("/%s/transitions", claimID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var body struct {
		Transitions []domain.ClaimStatus `json:"transitions"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode transitions: %v", err)
	}
	if len(body.Transitions) != 2 {
		t.Errorf("Expected 2 targets for agent on submitted, got %v", body.Transitions)
	}

	// Customer owning the policy sees the claim but holds no edge
	rec = s.do(t, s.customer, http.MethodGet, fmt.Sprintf("/%s/transitions", claimID), nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode transitions: %v", err)
	}
	if len(body.Transitions) != 0 {
		t.Errorf("Expected no targets for customer, got %v", body.Transitions)
	}
}

// TestNotesEndpoints tests GET and POST /{claimID}/notes
func TestNotesEndpoints(t *testing.T) {
	s := newTestServer(t)
	claimID := s.fileClaim(t)

	rec := s.do(t, s.agent, http.MethodPost, fmt.Sprintf("/%s/notes", claimID), AddNoteRequest{
		Content: "requested photos of the damage",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	t.Run("Empty content rejected", func(t *testing.T) {
		rec := s.do(t, s.agent, http.MethodPost, fmt.Sprintf("/%s/notes", claimID), AddNoteRequest{})
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("Listed in order", func(t *testing.T) {
		rec := s.do(t, s.customer, http.MethodGet, fmt.Sprintf("/%s/notes", claimID), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}

		var body struct {
			Data []domain.ClaimNote `json:"data"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode notes: %v", err)
		}
		if len(body.Data) != 1 {
			t.Fatalf("Expected 1 note, got %d", len(body.Data))
		}
		if body.Data[0].Content != "requested photos of the damage" {
			t.Errorf("Unexpected note content: %s", body.Data[0].Content)
		}
	})

	t.Run("Visibility gate on notes", func(t *testing.T) {
		stranger := types.NewID()
		s.resolver.Grant(stranger, access.RoleCustomer)

		rec := s.do(t, stranger, http.MethodGet, fmt.Sprintf("/%s/notes", claimID), nil)
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})
}
