package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/kozaktomas/face-attend/internal/facematch"
	"github.com/kozaktomas/face-attend/internal/store"
	"github.com/kozaktomas/face-attend/internal/store/memory"
)

func TestEnrollHandler_Save(t *testing.T) {
	encodings := memory.NewEncodingStore()
	index := store.NewEncodingIndex(facematch.MetricCosine)
	handler := NewEnrollHandler(encodings, index, 2)

	req := jsonRequest(t, "POST", "/api/v1/people/alice/encodings", EnrollRequest{
		Embedding: []float32{1, 0},
		Model:     "mobilefacenet",
	})
	req = requestWithChiParams(req, map[string]string{"personID": "alice"})
	recorder := httptest.NewRecorder()

	handler.Save(recorder, req)

	assertStatusCode(t, recorder, http.StatusCreated)

	var response struct {
		ID        int64  `json:"id"`
		PersonID  string `json:"person_id"`
		Encodings int    `json:"encodings"`
	}
	parseJSONResponse(t, recorder, &response)
	if response.PersonID != "alice" {
		t.Errorf("expected person 'alice', got '%s'", response.PersonID)
	}
	if response.Encodings != 1 {
		t.Errorf("expected 1 encoding, got %d", response.Encodings)
	}
	if index.Count() != 1 {
		t.Errorf("expected index count 1, got %d", index.Count())
	}
}

func TestEnrollHandler_Save_AppendOnly(t *testing.T) {
	encodings := memory.NewEncodingStore()
	handler := NewEnrollHandler(encodings, nil, 2)

	for i := 0; i < 3; i++ {
		req := jsonRequest(t, "POST", "/api/v1/people/alice/encodings", EnrollRequest{Embedding: []float32{1, float32(i)}})
		req = requestWithChiParams(req, map[string]string{"personID": "alice"})
		recorder := httptest.NewRecorder()
		handler.Save(recorder, req)
		assertStatusCode(t, recorder, http.StatusCreated)
	}

	count, _ := encodings.CountByPerson(context.Background(), "alice")
	if count != 3 {
		t.Errorf("expected 3 encodings after re-enrollment, got %d", count)
	}
}

func TestEnrollHandler_Save_DimensionMismatch(t *testing.T) {
	handler := NewEnrollHandler(memory.NewEncodingStore(), nil, 128)

	req := jsonRequest(t, "POST", "/api/v1/people/alice/encodings", EnrollRequest{Embedding: []float32{1, 0}})
	req = requestWithChiParams(req, map[string]string{"personID": "alice"})
	recorder := httptest.NewRecorder()

	handler.Save(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "embedding dimension mismatch")
}

func TestEnrollHandler_Save_MissingEmbedding(t *testing.T) {
	handler := NewEnrollHandler(memory.NewEncodingStore(), nil, 2)

	req := jsonRequest(t, "POST", "/api/v1/people/alice/encodings", EnrollRequest{})
	req = requestWithChiParams(req, map[string]string{"personID": "alice"})
	recorder := httptest.NewRecorder()

	handler.Save(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, "embedding is required")
}

func TestEnrollHandler_List_StripsVectors(t *testing.T) {
	encodings := memory.NewEncodingStore()
	_, err := encodings.SaveEncoding(context.Background(), store.StoredEncoding{
		PersonID:  "alice",
		Embedding: []float32{1, 0},
		Dim:       2,
		Model:     "mobilefacenet",
	})
	if err != nil {
		t.Fatalf("seed encoding: %v", err)
	}
	handler := NewEnrollHandler(encodings, nil, 2)

	req := httptest.NewRequest("GET", "/api/v1/people/alice/encodings", nil)
	req = requestWithChiParams(req, map[string]string{"personID": "alice"})
	recorder := httptest.NewRecorder()

	handler.List(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	var response struct {
		Encodings []store.StoredEncoding `json:"encodings"`
	}
	parseJSONResponse(t, recorder, &response)
	if len(response.Encodings) != 1 {
		t.Fatalf("expected 1 encoding, got %d", len(response.Encodings))
	}
	if response.Encodings[0].Embedding != nil {
		t.Error("listing must not expose raw embedding vectors")
	}
	if response.Encodings[0].Model != "mobilefacenet" {
		t.Errorf("expected model 'mobilefacenet', got '%s'", response.Encodings[0].Model)
	}
}

func TestEnrollHandler_Revoke(t *testing.T) {
	encodings := memory.NewEncodingStore()
	index := store.NewEncodingIndex(facematch.MetricCosine)
	enc := store.StoredEncoding{PersonID: "alice", Embedding: []float32{1, 0}, Dim: 2}
	id, err := encodings.SaveEncoding(context.Background(), enc)
	if err != nil {
		t.Fatalf("seed encoding: %v", err)
	}
	enc.ID = id
	index.Add(enc)
	handler := NewEnrollHandler(encodings, index, 2)

	req := httptest.NewRequest("DELETE", "/api/v1/people/alice/encodings/1", nil)
	req = requestWithChiParams(req, map[string]string{"personID": "alice", "encodingID": "1"})
	recorder := httptest.NewRecorder()

	handler.Revoke(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)

	count, _ := encodings.CountByPerson(context.Background(), "alice")
	if count != 0 {
		t.Errorf("expected 0 encodings after revoke, got %d", count)
	}
	if index.Count() != 0 {
		t.Errorf("expected index count 0 after revoke, got %d", index.Count())
	}
}

func TestEnrollHandler_Revoke_NotFound(t *testing.T) {
	handler := NewEnrollHandler(memory.NewEncodingStore(), nil, 2)

	req := httptest.NewRequest("DELETE", "/api/v1/people/alice/encodings/99", nil)
	req = requestWithChiParams(req, map[string]string{"personID": "alice", "encodingID": "99"})
	recorder := httptest.NewRecorder()

	handler.Revoke(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)
}

func TestEnrollHandler_Revoke_InvalidID(t *testing.T) {
	handler := NewEnrollHandler(memory.NewEncodingStore(), nil, 2)

	req := httptest.NewRequest("DELETE", "/api/v1/people/alice/encodings/abc", nil)
	req = requestWithChiParams(req, map[string]string{"personID": "alice", "encodingID": "abc"})
	recorder := httptest.NewRecorder()

	handler.Revoke(recorder, req)

	assertStatusCode(t, recorder, http.StatusBadRequest)
}

func TestEnrollHandler_Revoke_WrongPerson(t *testing.T) {
	encodings := memory.NewEncodingStore()
	if _, err := encodings.SaveEncoding(context.Background(), store.StoredEncoding{
		PersonID: "alice", Embedding: []float32{1, 0}, Dim: 2,
	}); err != nil {
		t.Fatalf("seed encoding: %v", err)
	}
	handler := NewEnrollHandler(encodings, nil, 2)

	req := httptest.NewRequest("DELETE", "/api/v1/people/bob/encodings/1", nil)
	req = requestWithChiParams(req, map[string]string{"personID": "bob", "encodingID": "1"})
	recorder := httptest.NewRecorder()

	handler.Revoke(recorder, req)

	assertStatusCode(t, recorder, http.StatusNotFound)

	count, _ := encodings.CountByPerson(context.Background(), "alice")
	if count != 1 {
		t.Errorf("alice's encoding must survive a wrong-person revoke, got %d", count)
	}
}
