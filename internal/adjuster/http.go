package adjuster

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/meridian-mutual/platform/internal/access"
	"github.com/meridian-mutual/platform/internal/shared/auth"
	"github.com/meridian-mutual/platform/internal/shared/errors"
)

// Handler provides HTTP handlers for the adjuster directory
type Handler struct {
	directory Directory
	resolver  access.Resolver
}

// NewHandler creates a new adjuster handler
func NewHandler(directory Directory, resolver access.Resolver) *Handler {
	return &Handler{directory: directory, resolver: resolver}
}

// Routes registers the adjuster routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.ListAdjusters)
	return r
}

func (h *Handler) ListAdjusters(w http.ResponseWriter, r *http.Request) {
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
	// Managers consult the directory when assigning claims.
	if !roles.Has(access.RoleManager) {
		writeError(w, errors.Forbidden("manager role required"))
		return
	}

	adjusters, err := h.directory.List(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	if adjusters == nil {
		adjusters = []Adjuster{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": adjusters,
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
