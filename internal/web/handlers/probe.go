package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attend/internal/encoder"
	"github.com/kozaktomas/face-attend/internal/facematch"
	"github.com/kozaktomas/face-attend/internal/pipeline"
)

// maxImageBytes caps uploaded probe images.
const maxImageBytes = 10 << 20

// ProbesHandler handles probe submission for live sessions.
type ProbesHandler struct {
	pipeline *pipeline.Pipeline
	encoder  *encoder.Client // nil when no encoder service is configured
}

// NewProbesHandler creates a new probes handler.
func NewProbesHandler(p *pipeline.Pipeline, enc *encoder.Client) *ProbesHandler {
	return &ProbesHandler{pipeline: p, encoder: enc}
}

// SubmitRequest carries a raw probe embedding.
type SubmitRequest struct {
	Vector []float32 `json:"vector"`
}

// Submit scores one probe embedding against the enrollment store and folds
// the decision into the session aggregate.
func (h *ProbesHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "id")

	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Vector) == 0 {
		respondError(w, http.StatusBadRequest, "vector is required")
		return
	}

	decision, err := h.pipeline.SubmitProbe(r.Context(), sessionID, req.Vector)
	if err != nil {
		if errors.Is(err, facematch.ErrDimensionMismatch) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("submit probe for session %s: %v", sanitizeForLog(sessionID), err)
		respondError(w, http.StatusInternalServerError, "failed to score probe")
		return
	}
	respondJSON(w, http.StatusOK, decision)
}

// SubmitImage encodes a raw image through the external encoder service and
// submits the resulting embedding. The encoder call is never retried here;
// clients decide their own retry policy.
func (h *ProbesHandler) SubmitImage(w http.ResponseWriter, r *http.Request) {
	if h.encoder == nil {
		respondError(w, http.StatusServiceUnavailable, "encoder service not configured")
		return
	}
	sessionID := chi.URLParam(r, "id")

	image, err := io.ReadAll(io.LimitReader(r.Body, maxImageBytes))
	if err != nil || len(image) == 0 {
		respondError(w, http.StatusBadRequest, "image body is required")
		return
	}

	vector, err := h.encoder.Encode(r.Context(), image, r.Header.Get("Content-Type"))
	if err != nil {
		switch {
		case errors.Is(err, encoder.ErrNoFace):
			respondError(w, http.StatusUnprocessableEntity, "no face detected in image")
		case errors.Is(err, encoder.ErrEncodingUnavailable):
			respondError(w, http.StatusBadGateway, "encoder service unavailable")
		default:
			log.Printf("encode probe image for session %s: %v", sanitizeForLog(sessionID), err)
			respondError(w, http.StatusInternalServerError, "failed to encode image")
		}
		return
	}

	decision, err := h.pipeline.SubmitProbe(r.Context(), sessionID, vector)
	if err != nil {
		if errors.Is(err, facematch.ErrDimensionMismatch) {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("submit encoded probe for session %s: %v", sanitizeForLog(sessionID), err)
		respondError(w, http.StatusInternalServerError, "failed to score probe")
		return
	}
	respondJSON(w, http.StatusOK, decision)
}
