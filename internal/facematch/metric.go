// Package facematch implements the face-identity matching core: similarity
// metrics, probe scoring against enrollment encodings, and confidence
// classification. Everything here is deterministic and side-effect free so
// the same probe always produces the same decision.
package facematch

import (
	"fmt"
	"math"
)

// Metric identifies the similarity metric used to compare embeddings.
// The metric is fixed system-wide so thresholds stay meaningful across
// all callers.
type Metric string

const (
	// MetricCosine is cosine similarity: range [-1, 1], higher is better.
	MetricCosine Metric = "cosine"
	// MetricEuclidean is euclidean distance: range [0, inf), lower is better.
	MetricEuclidean Metric = "euclidean"
)

// ParseMetric validates a metric name from configuration.
func ParseMetric(s string) (Metric, error) {
	switch Metric(s) {
	case MetricCosine:
		return MetricCosine, nil
	case MetricEuclidean:
		return MetricEuclidean, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownMetric, s)
}

// HigherIsBetter reports the goodness direction of the metric.
func (m Metric) HigherIsBetter() bool {
	return m == MetricCosine
}

// Better reports whether score a represents stronger agreement than score b.
func (m Metric) Better(a, b float64) bool {
	if m.HigherIsBetter() {
		return a > b
	}
	return a < b
}

// AtLeastAsGood reports whether score a is at least as strong as score b.
func (m Metric) AtLeastAsGood(a, b float64) bool {
	if m.HigherIsBetter() {
		return a >= b
	}
	return a <= b
}

// Worst returns the weakest possible score for the metric, used as the
// initial value when folding over candidates.
func (m Metric) Worst() float64 {
	if m.HigherIsBetter() {
		return math.Inf(-1)
	}
	return math.Inf(1)
}

// Compare computes the metric between two equal-length vectors.
// Callers must have validated dimensions already.
func (m Metric) Compare(a, b []float32) float64 {
	if m == MetricEuclidean {
		return euclideanDistance(a, b)
	}
	return cosineSimilarity(a, b)
}

// cosineSimilarity computes the cosine similarity between two vectors.
// Returns -1 (worst) for zero vectors so degenerate encodings never match.
func cosineSimilarity(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return -1
	}

	sim := dot / (math.Sqrt(normA) * math.Sqrt(normB))
	// Clamp to [-1, 1] to handle floating point errors.
	if sim > 1 {
		sim = 1
	}
	if sim < -1 {
		sim = -1
	}
	return sim
}

// euclideanDistance computes the L2 distance between two vectors.
func euclideanDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
