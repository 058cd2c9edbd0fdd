package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kozaktomas/face-attend/internal/encoder"
	"github.com/kozaktomas/face-attend/internal/pipeline"
)

func TestProbesHandler_Submit_Success(t *testing.T) {
	backend := newTestBackend(t, 1)
	backend.enroll(t, "alice", []float32{1, 0})
	handler := NewProbesHandler(backend.pipeline, nil)

	req := jsonRequest(t, "POST", "/api/v1/sessions/s1/probes", SubmitRequest{Vector: []float32{1, 0.05}})
	req = requestWithChiParams(req, map[string]string{"id": "s1"})
	recorder := httptest.NewRecorder()

	handler.Submit(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var decision pipeline.MatchDecision
	parseJSONResponse(t, recorder, &decision)

	if decision.PersonID != "alice" {
		t.Errorf("expected person 'alice', got '%s'", decision.PersonID)
	}
	if decision.Band != "confident" {
		t.Errorf("expected band 'confident', got '%s'", decision.Band)
	}
	if !decision.Resolved {
		t.Error("expected auto-resolve with min observations 1")
	}
	if decision.SessionID != "s1" {
		t.Errorf("expected session 's1', got '%s'", decision.SessionID)
	}
}

func TestProbesHandler_Submit_InvalidBody(t *testing.T) {
	backend := newTestBackend(t, 1)
	handler := NewProbesHandler(backend.pipeline, nil)

	req := httptest.NewRequest("POST", "/api/v1/sessions/s1/probes", bytes.NewReader([]byte("not-json")))
	req = requestWithChiParams(req, map[string]string{"id": "s1"})
	recorder := httptest.NewRecorder()

	handler.Submit(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "invalid request body")
}

func TestProbesHandler_Submit_MissingVector(t *testing.T) {
	backend := newTestBackend(t, 1)
	handler := NewProbesHandler(backend.pipeline, nil)

	req := jsonRequest(t, "POST", "/api/v1/sessions/s1/probes", SubmitRequest{})
	req = requestWithChiParams(req, map[string]string{"id": "s1"})
	recorder := httptest.NewRecorder()

	handler.Submit(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "vector is required")
}

func TestProbesHandler_Submit_DimensionMismatch(t *testing.T) {
	backend := newTestBackend(t, 1)
	backend.enroll(t, "alice", []float32{1, 0})
	handler := NewProbesHandler(backend.pipeline, nil)

	req := jsonRequest(t, "POST", "/api/v1/sessions/s1/probes", SubmitRequest{Vector: []float32{1, 0, 0}})
	req = requestWithChiParams(req, map[string]string{"id": "s1"})
	recorder := httptest.NewRecorder()

	handler.Submit(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestProbesHandler_SubmitImage_NoEncoder(t *testing.T) {
	backend := newTestBackend(t, 1)
	handler := NewProbesHandler(backend.pipeline, nil)

	req := httptest.NewRequest("POST", "/api/v1/sessions/s1/probes/image", bytes.NewReader([]byte("image")))
	req = requestWithChiParams(req, map[string]string{"id": "s1"})
	recorder := httptest.NewRecorder()

	handler.SubmitImage(recorder, req)

	assertStatusCode(t, recorder, http.StatusServiceUnavailable)
}

func TestProbesHandler_SubmitImage_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"embedding":  []float32{1, 0.05},
			"face_count": 1,
		})
	}))
	defer server.Close()

	backend := newTestBackend(t, 1)
	backend.enroll(t, "alice", []float32{1, 0})
	handler := NewProbesHandler(backend.pipeline, encoder.NewClient(server.URL, time.Second))

	req := httptest.NewRequest("POST", "/api/v1/sessions/s1/probes/image", bytes.NewReader([]byte("fake-jpeg")))
	req.Header.Set("Content-Type", "image/jpeg")
	req = requestWithChiParams(req, map[string]string{"id": "s1"})
	recorder := httptest.NewRecorder()

	handler.SubmitImage(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var decision pipeline.MatchDecision
	parseJSONResponse(t, recorder, &decision)
	if decision.PersonID != "alice" {
		t.Errorf("expected person 'alice', got '%s'", decision.PersonID)
	}
}

func TestProbesHandler_SubmitImage_NoFace(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	backend := newTestBackend(t, 1)
	handler := NewProbesHandler(backend.pipeline, encoder.NewClient(server.URL, time.Second))

	req := httptest.NewRequest("POST", "/api/v1/sessions/s1/probes/image", bytes.NewReader([]byte("fake-jpeg")))
	req = requestWithChiParams(req, map[string]string{"id": "s1"})
	recorder := httptest.NewRecorder()

	handler.SubmitImage(recorder, req)

	assertStatusCode(t, recorder, http.StatusUnprocessableEntity)
	assertJSONError(t, recorder, "no face detected in image")
}

func TestProbesHandler_SubmitImage_EncoderDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	backend := newTestBackend(t, 1)
	handler := NewProbesHandler(backend.pipeline, encoder.NewClient(server.URL, time.Second))

	req := httptest.NewRequest("POST", "/api/v1/sessions/s1/probes/image", bytes.NewReader([]byte("fake-jpeg")))
	req = requestWithChiParams(req, map[string]string{"id": "s1"})
	recorder := httptest.NewRecorder()

	handler.SubmitImage(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadGateway)
	assertJSONError(t, recorder, "encoder service unavailable")
}
