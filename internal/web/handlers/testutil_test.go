package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/kozaktomas/face-attend/internal/facematch"
	"github.com/kozaktomas/face-attend/internal/pipeline"
	"github.com/kozaktomas/face-attend/internal/store"
	"github.com/kozaktomas/face-attend/internal/store/memory"
)

// testBackend bundles the in-memory stores behind a pipeline for handler tests.
type testBackend struct {
	pipeline  *pipeline.Pipeline
	encodings *memory.EncodingStore
	aggs      *memory.AggregateStore
	records   *memory.RecordStore
}

// newTestBackend creates a pipeline over in-memory stores: cosine metric,
// 2-dimensional embeddings, thresholds 0.80/0.50.
func newTestBackend(t *testing.T, minObservations int) *testBackend {
	t.Helper()

	encodings := memory.NewEncodingStore()
	aggs := memory.NewAggregateStore()
	records := memory.NewRecordStore()

	p, err := pipeline.New(pipeline.Config{
		Thresholds:      facematch.Thresholds{Confident: 0.80, Uncertain: 0.50},
		Metric:          facematch.MetricCosine,
		MinObservations: minObservations,
		EmbeddingDim:    2,
	}, encodings, aggs, records, nil, nil)
	if err != nil {
		t.Fatalf("failed to build pipeline: %v", err)
	}
	return &testBackend{pipeline: p, encodings: encodings, aggs: aggs, records: records}
}

func (b *testBackend) enroll(t *testing.T, personID string, embedding []float32) {
	t.Helper()
	_, err := b.encodings.SaveEncoding(context.Background(), store.StoredEncoding{
		PersonID:  personID,
		Embedding: embedding,
		Dim:       len(embedding),
	})
	if err != nil {
		t.Fatalf("enroll %s: %v", personID, err)
	}
}

// jsonRequest creates a request with a JSON body.
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	data, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request body: %v", err)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
