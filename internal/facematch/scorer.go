package facematch

import (
	"fmt"
	"sort"
)

// Reference is one enrollment encoding presented to the scorer.
type Reference struct {
	PersonID  string
	Embedding []float32
}

// PersonScore is the best score a single enrolled person achieved against
// a probe, across all of that person's reference encodings.
type PersonScore struct {
	PersonID   string
	Score      float64
	References int
}

// Result holds the outcome of scoring one probe against the reference set.
type Result struct {
	// Scores contains one entry per enrolled person with at least one
	// reference, ordered best first (ties broken by person ID so results
	// are deterministic).
	Scores []PersonScore
	// BestPersonID is the overall best candidate, empty when no references
	// were available.
	BestPersonID string
	BestScore    float64
}

// Scorer computes similarity between probe embeddings and reference
// encodings. It holds no mutable state; callers pass a snapshot of the
// reference set per call so concurrent enrollments never bleed into an
// in-flight comparison.
type Scorer struct {
	metric Metric
	dim    int
}

// NewScorer creates a scorer for a fixed metric and embedding dimension.
func NewScorer(metric Metric, dim int) *Scorer {
	return &Scorer{metric: metric, dim: dim}
}

// Metric returns the metric the scorer compares with.
func (s *Scorer) Metric() Metric {
	return s.metric
}

// Score compares a probe embedding against every reference and returns the
// per-person best scores plus the overall best candidate. Fails with
// ErrDimensionMismatch when the probe or any reference has the wrong
// length; shapes are never coerced.
func (s *Scorer) Score(probe []float32, refs []Reference) (*Result, error) {
	if len(probe) != s.dim {
		return nil, fmt.Errorf("%w: probe has %d dimensions, expected %d",
			ErrDimensionMismatch, len(probe), s.dim)
	}

	best := make(map[string]*PersonScore)
	for i := range refs {
		ref := &refs[i]
		if len(ref.Embedding) != s.dim {
			return nil, fmt.Errorf("%w: reference for person %s has %d dimensions, expected %d",
				ErrDimensionMismatch, ref.PersonID, len(ref.Embedding), s.dim)
		}

		score := s.metric.Compare(probe, ref.Embedding)
		if ps, ok := best[ref.PersonID]; ok {
			ps.References++
			if s.metric.Better(score, ps.Score) {
				ps.Score = score
			}
		} else {
			best[ref.PersonID] = &PersonScore{PersonID: ref.PersonID, Score: score, References: 1}
		}
	}

	result := &Result{Scores: make([]PersonScore, 0, len(best))}
	for _, ps := range best {
		result.Scores = append(result.Scores, *ps)
	}
	sort.Slice(result.Scores, func(i, j int) bool {
		a, b := result.Scores[i], result.Scores[j]
		if a.Score != b.Score {
			return s.metric.Better(a.Score, b.Score)
		}
		return a.PersonID < b.PersonID
	})

	if len(result.Scores) > 0 {
		result.BestPersonID = result.Scores[0].PersonID
		result.BestScore = result.Scores[0].Score
	} else {
		result.BestScore = s.metric.Worst()
	}
	return result, nil
}
