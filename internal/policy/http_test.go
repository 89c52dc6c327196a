package policy

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/meridian-mutual/platform/internal/access"
	"github.com/meridian-mutual/platform/internal/shared/auth"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

type policyTestServer struct {
	router   http.Handler
	repo     *MemoryRepository
	resolver *access.StaticResolver

	customer types.ID
	other    types.ID
	agent    types.ID
	manager  types.ID
}

func newPolicyTestServer(t *testing.T) *policyTestServer {
	t.Helper()

	s := &policyTestServer{
		repo:     NewMemoryRepository(),
		resolver: access.NewStaticResolver(),
		customer: types.NewID(),
		other:    types.NewID(),
		agent:    types.NewID(),
		manager:  types.NewID(),
	}

	s.resolver.Grant(s.customer, access.RoleCustomer)
	s.resolver.Grant(s.other, access.RoleCustomer)
	s.resolver.Grant(s.agent, access.RoleAgent)
	s.resolver.Grant(s.manager, access.RoleManager)

	s.router = NewHandler(s.repo, s.resolver).Routes()
	return s
}

func (s *policyTestServer) do(t *testing.T, principal types.ID, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &buf)
	ctx := context.WithValue(req.Context(), auth.UserContextKey, &auth.User{ID: principal})

	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req.WithContext(ctx))
	return rec
}

func validCreateRequest() CreatePolicyRequest {
	return CreatePolicyRequest{
		VehicleMake:    "Toyota",
		VehicleModel:   "Camry",
		VehicleYear:    2019,
		LicensePlate:   "BG-1042-XA",
		CoverageAmount: 20000,
	}
}

// TestCreatePolicy tests POST /
func TestCreatePolicy(t *testing.T) {
	t.Run("Customer creates own policy", func(t *testing.T) {
		s := newPolicyTestServer(t)

		rec := s.do(t, s.customer, http.MethodPost, "/", validCreateRequest())
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var p Policy
		if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
			t.Fatalf("failed to decode policy: %v", err)
		}
		if p.CustomerID != s.customer {
			t.Errorf("Expected policy owned by caller, got %s", p.CustomerID)
		}
		if p.Status != StatusActive {
			t.Errorf("Expected active, got %s", p.Status)
		}
		if p.VehicleMake != "Toyota" || p.VehicleYear != 2019 {
			t.Error("Expected vehicle details on the created policy")
		}
	})

	t.Run("Customer cannot create for another customer", func(t *testing.T) {
		s := newPolicyTestServer(t)

		req := validCreateRequest()
		req.CustomerID = s.other.String()
		rec := s.do(t, s.customer, http.MethodPost, "/", req)
		if rec.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rec.Code)
		}
	})

	t.Run("Agent creates for a named customer", func(t *testing.T) {
		s := newPolicyTestServer(t)

		req := validCreateRequest()
		req.CustomerID = s.customer.String()
		rec := s.do(t, s.agent, http.MethodPost, "/", req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
		}

		var p Policy
		if err := json.NewDecoder(rec.Body).Decode(&p); err != nil {
			t.Fatalf("failed to decode policy: %v", err)
		}
		if p.CustomerID != s.customer {
			t.Errorf("Expected policy owned by the named customer, got %s", p.CustomerID)
		}
	})

	t.Run("Agent must name a customer", func(t *testing.T) {
		s := newPolicyTestServer(t)

		rec := s.do(t, s.agent, http.MethodPost, "/", validCreateRequest())
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("Missing vehicle details", func(t *testing.T) {
		s := newPolicyTestServer(t)

		req := validCreateRequest()
		req.VehicleMake = ""
		rec := s.do(t, s.customer, http.MethodPost, "/", req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})
}

// TestListPolicies tests GET /
func TestListPolicies(t *testing.T) {
	s := newPolicyTestServer(t)
	ctx := context.Background()

	mine, _ := New(s.customer, 10000, testVehicle())
	theirs, _ := New(s.other, 15000, testVehicle())
	if err := s.repo.Save(ctx, mine); err != nil {
		t.Fatalf("failed to save policy: %v", err)
	}
	if err := s.repo.Save(ctx, theirs); err != nil {
		t.Fatalf("failed to save policy: %v", err)
	}

	decode := func(t *testing.T, rec *httptest.ResponseRecorder) []Policy {
		t.Helper()
		var body struct {
			Data []Policy `json:"data"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode list: %v", err)
		}
		return body.Data
	}

	t.Run("Customer sees only own", func(t *testing.T) {
		rec := s.do(t, s.customer, http.MethodGet, "/", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		got := decode(t, rec)
		if len(got) != 1 || got[0].CustomerID != s.customer {
			t.Errorf("Expected only the caller's policy, got %d policies", len(got))
		}
	})

	t.Run("Manager sees all by default", func(t *testing.T) {
		rec := s.do(t, s.manager, http.MethodGet, "/", nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		if got := decode(t, rec); len(got) != 2 {
			t.Errorf("Expected all 2 policies, got %d", len(got))
		}
	})

	t.Run("Agent narrows by customer", func(t *testing.T) {
		rec := s.do(t, s.agent, http.MethodGet, "/?customer_id="+s.other.String(), nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		got := decode(t, rec)
		if len(got) != 1 || got[0].CustomerID != s.other {
			t.Errorf("Expected the named customer's policy, got %d policies", len(got))
		}
	})
}
