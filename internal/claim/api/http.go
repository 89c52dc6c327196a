package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/meridian-mutual/platform/internal/claim/domain"
	"github.com/meridian-mutual/platform/internal/claim/engine"
	"github.com/meridian-mutual/platform/internal/shared/auth"
	"github.com/meridian-mutual/platform/internal/shared/errors"
	"github.com/meridian-mutual/platform/internal/shared/types"
)

// Handler provides HTTP handlers for the claim module
type Handler struct {
	engine *engine.Engine
	repo   domain.Repository
}

// NewHandler creates a new claim handler
func NewHandler(eng *engine.Engine, repo domain.Repository) *Handler {
	return &Handler{engine: eng, repo: repo}
}

// Routes registers the claim routes
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.ListClaims)
	r.Post("/", h.FileClaim)

	r.Route("/{claimID}", func(r chi.Router) {
		r.Get("/", h.GetClaim)

		// Workflow
		r.Post("/status", h.ApplyTransition)
		r.Get("/transitions", h.AvailableTransitions)

		// Notes
		r.Route("/notes", func(r chi.Router) {
			r.Get("/", h.ListNotes)
			r.Post("/", h.AddNote)
		})
	})

	return r
}

// --- Request types ---

type FileClaimRequest struct {
	PolicyID            string    `json:"policy_id"`
	IncidentDate        time.Time `json:"incident_date"`
	IncidentLocation    string    `json:"incident_location"`
	IncidentDescription string    `json:"incident_description"`
	EstimatedDamage     *float64  `json:"estimated_damage,omitempty"`
}

type ApplyTransitionRequest struct {
	TargetStatus       string   `json:"target_status"`
	AssignedAdjusterID *string  `json:"assigned_adjuster_id,omitempty"`
	ApprovedAmount     *float64 `json:"approved_amount,omitempty"`
}

type AddNoteRequest struct {
	Content string `json:"content"`
}

// --- Handlers ---

func (h *Handler) ListClaims(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	filter := domain.ListFilter{}

	if s := r.URL.Query().Get("status"); s != "" {
		status := domain.ClaimStatus(s)
		if !domain.ValidStatus(status) {
			writeError(w, errors.InvalidPayload("status", "unknown status"))
			return
		}
		filter.Status = &status
	}

	if a := r.URL.Query().Get("assigned_adjuster_id"); a != "" {
		adjusterID, err := types.ParseID(a)
		if err != nil {
			writeError(w, errors.InvalidPayload("assigned_adjuster_id", "must be a UUID"))
			return
		}
		filter.AssignedAdjusterID = &adjusterID
	}

	if l := r.URL.Query().Get("limit"); l != "" {
		if limit, err := strconv.Atoi(l); err == nil {
			filter.Limit = limit
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if offset, err := strconv.Atoi(o); err == nil {
			filter.Offset = offset
		}
	}

	claims, err := h.engine.ListClaims(r.Context(), user.ID, filter)
	if err != nil {
		writeError(w, err)
		return
	}

	if claims == nil {
		claims = []domain.Claim{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": claims,
	})
}

func (h *Handler) FileClaim(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	var req FileClaimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	policyID, err := types.ParseID(req.PolicyID)
	if err != nil {
		writeError(w, errors.InvalidPayload("policy_id", "must be a UUID"))
		return
	}

	c, err := h.engine.FileClaim(r.Context(), user.ID, engine.FileClaimInput{
		PolicyID:            policyID,
		IncidentDate:        req.IncidentDate,
		IncidentLocation:    req.IncidentLocation,
		IncidentDescription: req.IncidentDescription,
		EstimatedDamage:     req.EstimatedDamage,
	})
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, c)
}

func (h *Handler) GetClaim(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "claimID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid claim ID"))
		return
	}

	c, err := h.engine.GetClaim(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) ApplyTransition(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "claimID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid claim ID"))
		return
	}

	var req ApplyTransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	target := domain.ClaimStatus(req.TargetStatus)
	if !domain.ValidStatus(target) {
		writeError(w, errors.InvalidPayload("target_status", "unknown status"))
		return
	}

	var payload domain.TransitionPayload
	if req.AssignedAdjusterID != nil {
		adjusterID, err := types.ParseID(*req.AssignedAdjusterID)
		if err != nil {
			writeError(w, errors.InvalidPayload("assigned_adjuster_id", "must be a UUID"))
			return
		}
		payload.AssignedAdjusterID = &adjusterID
	}
	payload.ApprovedAmount = req.ApprovedAmount

	c, err := h.engine.ApplyTransition(r.Context(), user.ID, id, target, payload)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, c)
}

func (h *Handler) AvailableTransitions(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "claimID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid claim ID"))
		return
	}

	targets, err := h.engine.AvailableTransitions(r.Context(), user.ID, id)
	if err != nil {
		writeError(w, err)
		return
	}

	if targets == nil {
		targets = []domain.ClaimStatus{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"claim_id":    id,
		"transitions": targets,
	})
}

func (h *Handler) ListNotes(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "claimID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid claim ID"))
		return
	}

	// Visibility check rides on GetClaim
	if _, err := h.engine.GetClaim(r.Context(), user.ID, id); err != nil {
		writeError(w, err)
		return
	}

	notes, err := h.repo.NotesFor(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	if notes == nil {
		notes = []domain.ClaimNote{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"data": notes,
	})
}

func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		writeError(w, errors.Unauthorized("authentication required"))
		return
	}

	id, err := types.ParseID(chi.URLParam(r, "claimID"))
	if err != nil {
		writeError(w, errors.BadRequest("invalid claim ID"))
		return
	}

	var req AddNoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.BadRequest("invalid request body"))
		return
	}

	// Visibility check rides on GetClaim
	if _, err := h.engine.GetClaim(r.Context(), user.ID, id); err != nil {
		writeError(w, err)
		return
	}

	note, err := domain.NewClaimNote(id, user.ID, req.Content)
	if err != nil {
		writeError(w, errors.BadRequest(err.Error()))
		return
	}

	if err := h.repo.AddNote(r.Context(), note); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, note)
}

// --- Helpers ---

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
