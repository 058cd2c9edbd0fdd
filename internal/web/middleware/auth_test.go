package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAPIKey(t *testing.T) {
	tests := []struct {
		name     string
		key      string
		header   string
		expected int
	}{
		{name: "valid key", key: "secret", header: "secret", expected: http.StatusOK},
		{name: "wrong key", key: "secret", header: "wrong", expected: http.StatusUnauthorized},
		{name: "missing key", key: "secret", header: "", expected: http.StatusUnauthorized},
		{name: "empty configured key disables check", key: "", header: "", expected: http.StatusOK},
		{name: "empty configured key ignores header", key: "", header: "anything", expected: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := RequireAPIKey(tt.key)(okHandler())

			req := httptest.NewRequest("GET", "/api/v1/sessions/s1", nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			recorder := httptest.NewRecorder()

			handler.ServeHTTP(recorder, req)

			if recorder.Code != tt.expected {
				t.Errorf("status = %d, want %d", recorder.Code, tt.expected)
			}
		})
	}
}
