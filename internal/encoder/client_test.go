package encoder

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestEncodeSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/encode" {
			t.Errorf("path = %q, want /api/v1/encode", r.URL.Path)
		}
		if r.Method != http.MethodPost {
			t.Errorf("method = %q, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "image/png" {
			t.Errorf("content type = %q, want image/png", ct)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"embedding":  []float32{0.1, 0.2, 0.3},
			"face_count": 1,
			"model":      "mobilefacenet",
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	embedding, err := client.Encode(context.Background(), []byte("fake-image"), "image/png")
	if err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}
	if len(embedding) != 3 {
		t.Errorf("embedding length = %d, want 3", len(embedding))
	}
}

func TestEncodeDefaultsContentType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "image/jpeg" {
			t.Errorf("content type = %q, want image/jpeg default", ct)
		}
		json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{0.1}, "face_count": 1})
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	if _, err := client.Encode(context.Background(), []byte("img"), ""); err != nil {
		t.Fatalf("Encode() unexpected error: %v", err)
	}
}

func TestEncodeNoFace(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "422 from detector",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnprocessableEntity)
			},
		},
		{
			name: "zero face count",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(map[string]any{"embedding": []float32{}, "face_count": 0})
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			client := NewClient(server.URL, time.Second)
			_, err := client.Encode(context.Background(), []byte("img"), "")
			if !errors.Is(err, ErrNoFace) {
				t.Errorf("Encode() error = %v, want ErrNoFace", err)
			}
		})
	}
}

func TestEncodeServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model crashed", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Encode(context.Background(), []byte("img"), "")
	if !errors.Is(err, ErrEncodingUnavailable) {
		t.Errorf("Encode() error = %v, want ErrEncodingUnavailable", err)
	}
}

func TestEncodeUnreachable(t *testing.T) {
	// Closed server: connection refused.
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Encode(context.Background(), []byte("img"), "")
	if !errors.Is(err, ErrEncodingUnavailable) {
		t.Errorf("Encode() error = %v, want ErrEncodingUnavailable", err)
	}
}

func TestEncodeInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not-json"))
	}))
	defer server.Close()

	client := NewClient(server.URL, time.Second)
	_, err := client.Encode(context.Background(), []byte("img"), "")
	if !errors.Is(err, ErrEncodingUnavailable) {
		t.Errorf("Encode() error = %v, want ErrEncodingUnavailable", err)
	}
}
