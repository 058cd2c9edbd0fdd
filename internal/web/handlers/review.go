package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attend/internal/pipeline"
	"github.com/kozaktomas/face-attend/internal/review"
	"github.com/kozaktomas/face-attend/internal/store"
)

// ReviewHandler handles the human verification queue endpoints.
type ReviewHandler struct {
	pipeline *pipeline.Pipeline
}

// NewReviewHandler creates a new review handler.
func NewReviewHandler(p *pipeline.Pipeline) *ReviewHandler {
	return &ReviewHandler{pipeline: p}
}

// ResolveRequest carries a human review decision.
type ResolveRequest struct {
	Decision string `json:"decision"`
	Actor    string `json:"actor"`
}

func parseResolveRequest(r *http.Request) (review.Decision, string, string) {
	var req ResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", "", errInvalidRequestBody
	}
	decision, err := review.ParseDecision(req.Decision)
	if err != nil {
		return "", "", err.Error()
	}
	if req.Actor == "" {
		return "", "", "actor is required"
	}
	return decision, req.Actor, ""
}

// ListPending lists the aggregates awaiting human review for a session,
// most-likely-correct first.
func (h *ReviewHandler) ListPending(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	pending, err := h.pipeline.ListPendingReview(r.Context(), sessionID)
	if err != nil {
		log.Printf("list pending review for session %s: %v", sanitizeForLog(sessionID), err)
		respondError(w, http.StatusInternalServerError, "failed to load review queue")
		return
	}
	if pending == nil {
		pending = []store.SessionAggregate{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"pending":    pending,
	})
}

// Resolve applies a confirm/reject decision to one aggregate. An aggregate
// that is no longer awaiting review yields a conflict, never an overwrite.
func (h *ReviewHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	aggregateID := chi.URLParam(r, "aggregateID")

	decision, actor, errMsg := parseResolveRequest(r)
	if errMsg != "" {
		respondError(w, http.StatusBadRequest, errMsg)
		return
	}

	agg, record, err := h.pipeline.ResolveReview(r.Context(), aggregateID, decision, actor)
	if err != nil {
		switch {
		case errors.Is(err, review.ErrNotFound):
			respondError(w, http.StatusNotFound, "aggregate not found")
		case errors.Is(err, review.ErrAlreadyResolved):
			respondError(w, http.StatusConflict, "already decided")
		default:
			log.Printf("resolve aggregate %s: %v", sanitizeForLog(aggregateID), err)
			respondError(w, http.StatusInternalServerError, "failed to resolve aggregate")
		}
		return
	}

	respondJSON(w, http.StatusOK, map[string]any{
		"aggregate": agg,
		"record":    record,
	})
}

// BulkResolve applies one decision to every pending aggregate in the
// session. Aggregates resolved concurrently are skipped, not overwritten.
func (h *ReviewHandler) BulkResolve(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	decision, actor, errMsg := parseResolveRequest(r)
	if errMsg != "" {
		respondError(w, http.StatusBadRequest, errMsg)
		return
	}

	records, err := h.pipeline.BulkResolveReview(r.Context(), sessionID, decision, actor)
	if err != nil {
		log.Printf("bulk resolve session %s: %v", sanitizeForLog(sessionID), err)
		respondError(w, http.StatusInternalServerError, "failed to bulk resolve")
		return
	}
	if records == nil {
		records = []store.AttendanceRecord{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"records":    records,
	})
}
