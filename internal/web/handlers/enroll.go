package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attend/internal/store"
)

// EnrollHandler manages the reference encodings of enrolled people.
type EnrollHandler struct {
	encodings store.EncodingWriter
	index     *store.EncodingIndex // nil when shortlisting is disabled
	dim       int
}

// NewEnrollHandler creates a new enrollment handler.
func NewEnrollHandler(encodings store.EncodingWriter, index *store.EncodingIndex, dim int) *EnrollHandler {
	return &EnrollHandler{encodings: encodings, index: index, dim: dim}
}

// EnrollRequest carries a new reference encoding for a person.
type EnrollRequest struct {
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// Save appends a reference encoding for a person. Enrollment is append-only:
// people re-enroll from new angles without losing earlier captures.
func (h *EnrollHandler) Save(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "personID")

	var req EnrollRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if len(req.Embedding) == 0 {
		respondError(w, http.StatusBadRequest, "embedding is required")
		return
	}
	if h.dim > 0 && len(req.Embedding) != h.dim {
		respondError(w, http.StatusBadRequest, "embedding dimension mismatch")
		return
	}

	enc := store.StoredEncoding{
		PersonID:   personID,
		Embedding:  req.Embedding,
		Dim:        len(req.Embedding),
		Model:      req.Model,
		CapturedAt: time.Now(),
	}
	id, err := h.encodings.SaveEncoding(r.Context(), enc)
	if err != nil {
		log.Printf("save encoding for person %s: %v", sanitizeForLog(personID), err)
		respondError(w, http.StatusInternalServerError, "failed to save encoding")
		return
	}
	enc.ID = id
	if h.index != nil {
		h.index.Add(enc)
	}

	count, err := h.encodings.CountByPerson(r.Context(), personID)
	if err != nil {
		count = -1
	}
	respondJSON(w, http.StatusCreated, map[string]any{
		"id":        id,
		"person_id": personID,
		"encodings": count,
	})
}

// List returns the stored encodings for a person without the raw vectors.
func (h *EnrollHandler) List(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "personID")

	encs, err := h.encodings.GetByPerson(r.Context(), personID)
	if err != nil {
		log.Printf("list encodings for person %s: %v", sanitizeForLog(personID), err)
		respondError(w, http.StatusInternalServerError, "failed to load encodings")
		return
	}
	for i := range encs {
		encs[i].Embedding = nil
	}
	if encs == nil {
		encs = []store.StoredEncoding{}
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"person_id": personID,
		"encodings": encs,
	})
}

// Revoke removes a single encoding by ID.
func (h *EnrollHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	personID := chi.URLParam(r, "personID")

	encodingID, err := strconv.ParseInt(chi.URLParam(r, "encodingID"), 10, 64)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid encoding id")
		return
	}

	ok, err := h.encodings.RevokeEncoding(r.Context(), personID, encodingID)
	if err != nil {
		log.Printf("revoke encoding %d for person %s: %v", encodingID, sanitizeForLog(personID), err)
		respondError(w, http.StatusInternalServerError, "failed to revoke encoding")
		return
	}
	if !ok {
		respondError(w, http.StatusNotFound, "encoding not found")
		return
	}
	if h.index != nil {
		h.index.Remove(encodingID)
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"person_id": personID,
		"revoked":   encodingID,
	})
}
