// Package encoder talks to the external face-detector/encoder service that
// turns captured images into embedding vectors. The core never retries a
// failed encode; callers decide their own retry policy.
package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrEncodingUnavailable is returned when the encoder service fails or
	// times out. Surfaced as-is to the caller.
	ErrEncodingUnavailable = errors.New("encoder service unavailable")

	// ErrNoFace is returned when the detector finds no face in the image.
	ErrNoFace = errors.New("no face detected in image")
)

// Client is an HTTP client for the encoder service.
type Client struct {
	baseURL string
	http    *http.Client
}

// NewClient creates an encoder client with a bounded per-request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

type encodeResponse struct {
	Embedding []float32 `json:"embedding"`
	FaceCount int       `json:"face_count"`
	Model     string    `json:"model"`
}

// Encode sends an image to the encoder and returns the embedding of the
// detected face. Fails with ErrNoFace when the detector found nothing and
// ErrEncodingUnavailable on transport errors, timeouts, or 5xx responses.
func (c *Client) Encode(ctx context.Context, image []byte, contentType string) ([]float32, error) {
	url := c.baseURL + "/api/v1/encode"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(image))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	if contentType == "" {
		contentType = "image/jpeg"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEncodingUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnprocessableEntity:
		// The detector ran but found no usable face.
		return nil, ErrNoFace
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d: %s", ErrEncodingUnavailable, resp.StatusCode, readErrorBody(resp.Body))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrEncodingUnavailable, err)
	}

	var result encodeResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("%w: unmarshal response: %v", ErrEncodingUnavailable, err)
	}
	if result.FaceCount == 0 || len(result.Embedding) == 0 {
		return nil, ErrNoFace
	}
	return result.Embedding, nil
}

// readErrorBody extracts a short error message from a response body.
func readErrorBody(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 512))
	if err != nil || len(body) == 0 {
		return "no error details"
	}
	return strings.TrimSpace(string(body))
}
