package policy

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meridian-mutual/platform/internal/access"
	"github.com/meridian-mutual/platform/internal/shared/auth"
	"github.com/meridian-mutual/platform/internal/shared/errors"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the policy module
type Handler struct {
	repo     Repository
	resolver access.Resolver
}

// NewHandler creates a new policy handler
func NewHandler(repo Repository, resolver access.Resolver) *Handler {
	return &Handler{repo: repo, resolver: resolver}
}

// Routes registers the policy routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListPolicies)
	r.Post("/", h.CreatePolicy)

	r.Route("/{policyID}", func(r chi.Router) {
		r.Get("/", h.GetPolicy)
		r.Post("/status", h.UpdateStatus)
	})

	return r
}

type CreatePolicyRequest struct {
	// CustomerID may be omitted by customers; it defaults to the caller.
	CustomerID     string  `json:"customer_id,omitempty"`
	VehicleMake    string  `json:"vehicle_make"`
	VehicleModel   string  `json:"vehicle_model"`
	VehicleYear    int     `json:"vehicle_year"`
	LicensePlate   string  `json:"license_plate"`
	CoverageAmount float64 `json:"coverage_amount"`
}

type UpdateStatusRequest struct {
	Status Status `json:"status"`
}

func (h *Handler) ListPolicies(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	roles, err := h.resolver.RolesFor(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	// Agents and managers see every policy; a customer_id query narrows the
	// view. Customers see only their own.
	var policies []Policy
	if roles.HasAny(access.RoleAgent, access.RoleManager) {
		if q := r.URL.Query().Get("customer_id"); q != "" {
			customerID, err := types.ParseID(q)
			if err != nil {
				writeError(w, errors.InvalidPayload("customer_id", "must be a UUID"))
				return
			}
			policies, err = h.repo.FindByCustomer(r.Context(), customerID)
			if err != nil {
				writeError(w, err)
				return
			}
		} else {
			policies, err = h.repo.FindAll(r.Context())
			if err != nil {
				writeError(w, err)
				return
			}
		}
	} else {
		policies, err = h.repo.FindByCustomer(r.Context(), user.ID)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	if policies == nil {
		policies = []Policy{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": policies,
	})
}

func (h *Handler) CreatePolicy(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	roles, err := h.resolver.RolesFor(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !roles.HasAny(access.RoleCustomer, access.RoleAgent, access.RoleManager) {
		writeError(w, errors.Forbidden("no role permits creating policies"))
		return
	}

	var req CreatePolicyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	// Customers insure themselves; agents and managers may name any customer.
	customerID := user.ID
	if req.CustomerID != "" {
		customerID, err = types.ParseID(req.CustomerID)
		if err != nil {
			writeError(w, errors.InvalidPayload("customer_id", "must be a UUID"))
			return
		}
		if customerID != user.ID && !roles.HasAny(access.RoleAgent, access.RoleManager) {
			writeError(w, errors.Forbidden("cannot create a policy for another customer"))
			return
		}
	} else if !roles.Has(access.RoleCustomer) {
		writeError(w, errors.InvalidPayload("customer_id", "required"))
		return
	}

	p, err := New(customerID, req.CoverageAmount, Vehicle{
		Make:         req.VehicleMake,
		Model:        req.VehicleModel,
		Year:         req.VehicleYear,
		LicensePlate: req.LicensePlate,
	})
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	if err := h.repo.Save(r.Context(), p); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, p)
}

func (h *Handler) GetPolicy(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "policyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid policy ID"))
		return
	}

	p, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	roles, err := h.resolver.RolesFor(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	if p.CustomerID != user.ID && !roles.HasAny(access.RoleAgent, access.RoleAdjuster, access.RoleManager) {
		writeError(w, errors.Forbidden("no access to this policy"))
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	roles, err := h.resolver.RolesFor(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !roles.Has(access.RoleManager) {
		writeError(w, errors.Forbidden("only managers may change policy status"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "policyID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid policy ID"))
		return
	}

	var req UpdateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	switch req.Status {
	case StatusActive, StatusLapsed, StatusCancelled:
	default:
		writeError(w, errors.InvalidPayload("status", "unknown status"))
		return
	}

	if err := h.repo.UpdateStatus(r.Context(), id, req.Status); err != nil {
		writeError(w, err)
		return
	}

	p, err := h.repo.FindByID(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, p)
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, err error) {
	w.Header().Set("Content-Type", "application/json")

	if appErr, ok := err.(*errors.AppError); ok {
		w.WriteHeader(appErr.HTTPStatus)
		json.NewEncoder(w).Encode(map[string]any{
			"error":   appErr.Message,
			"code":    appErr.Code,
			"details": appErr.Details,
		})
		return
	}

	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "internal server error"})
}
