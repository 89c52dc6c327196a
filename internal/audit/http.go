package audit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/meridian-mutual/platform/internal/access"
	"github.com/meridian-mutual/platform/internal/shared/auth"
	"github.com/meridian-mutual/platform/internal/shared/errors"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the audit trail
type Handler struct {
	store    Store
	resolver access.Resolver
}

// NewHandler creates a new audit handler
func NewHandler(store Store, resolver access.Resolver) *Handler {
	return &Handler{store: store, resolver: resolver}
}

// Routes registers the audit routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListEntries)
	return r
}

func (h *Handler) ListEntries(w http.ResponseWriter, r *http.Request) {
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
		writeError(w, errors.Forbidden("only managers may read the audit trail"))
		return
	}

	var entries []Entry
	if q := r.URL.Query().Get("claim_id"); q != "" {
		claimID, err := types.ParseID(q)
		if err != nil {
			writeError(w, errors.InvalidPayload("claim_id", "must be a UUID"))
			return
		}
		entries, err = h.store.ForClaim(r.Context(), claimID)
		if err != nil {
			writeError(w, err)
			return
		}
	} else {
		limit := 100
		if l := r.URL.Query().Get("limit"); l != "" {
			if n, err := strconv.Atoi(l); err == nil {
				limit = n
			}
		}
		entries, err = h.store.Recent(r.Context(), limit)
		if err != nil {
			writeError(w, err)
			return
		}
	}

	if entries == nil {
		entries = []Entry{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": entries,
	})
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
