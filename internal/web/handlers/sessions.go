package handlers

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attend/internal/pipeline"
	"github.com/kozaktomas/face-attend/internal/store"
)

// SessionsHandler handles session lifecycle and reporting endpoints.
type SessionsHandler struct {
	pipeline *pipeline.Pipeline
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(p *pipeline.Pipeline) *SessionsHandler {
	return &SessionsHandler{pipeline: p}
}

// SummaryResponse describes a session's current state.
type SummaryResponse struct {
	SessionID     string                   `json:"session_id"`
	Open          bool                     `json:"open"`
	Observations  int                      `json:"observations"`
	UnknownFrames int                      `json:"unknown_frames"`
	Aggregates    []store.SessionAggregate `json:"aggregates"`
}

// Get reports the state of a session: live tracker state while the session
// is open, persisted aggregates after close.
func (h *SessionsHandler) Get(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	if sum := h.pipeline.SessionSummary(sessionID); sum != nil {
		respondJSON(w, http.StatusOK, SummaryResponse{
			SessionID:     sessionID,
			Open:          true,
			Observations:  sum.Observations,
			UnknownFrames: sum.UnknownFrames,
			Aggregates:    sum.Aggregates,
		})
		return
	}

	aggs, err := h.pipeline.ListSessionAggregates(r.Context(), sessionID)
	if err != nil {
		log.Printf("list aggregates for session %s: %v", sanitizeForLog(sessionID), err)
		respondError(w, http.StatusInternalServerError, "failed to load session")
		return
	}
	respondJSON(w, http.StatusOK, SummaryResponse{
		SessionID:  sessionID,
		Aggregates: aggs,
	})
}

// Close ends a session explicitly. Every remaining pending aggregate
// resolves: auto-confirmed earlier, or moved to the review queue now.
func (h *SessionsHandler) Close(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	aggs, err := h.pipeline.CloseSession(r.Context(), sessionID)
	if err != nil {
		log.Printf("close session %s: %v", sanitizeForLog(sessionID), err)
		respondError(w, http.StatusInternalServerError, "failed to close session")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"session_id": sessionID,
		"aggregates": aggs,
	})
}

// Records lists the finalized attendance records for a session.
func (h *SessionsHandler) Records(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	records, err := h.pipeline.Records(r.Context(), sessionID)
	if err != nil {
		log.Printf("list records for session %s: %v", sanitizeForLog(sessionID), err)
		respondError(w, http.StatusInternalServerError, "failed to load records")
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
