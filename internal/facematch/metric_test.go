package facematch

import (
	"errors"
	"math"
	"testing"
)

func TestParseMetric(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Metric
		wantErr bool
	}{
		{name: "cosine", input: "cosine", want: MetricCosine},
		{name: "euclidean", input: "euclidean", want: MetricEuclidean},
		{name: "unknown", input: "manhattan", wantErr: true},
		{name: "empty", input: "", wantErr: true},
		{name: "case sensitive", input: "Cosine", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMetric(tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("ParseMetric(%q) expected error, got %v", tt.input, got)
				} else if !errors.Is(err, ErrUnknownMetric) {
					t.Errorf("ParseMetric(%q) error = %v, want ErrUnknownMetric", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMetric(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("ParseMetric(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestMetricDirection(t *testing.T) {
	if !MetricCosine.HigherIsBetter() {
		t.Error("cosine should be higher-is-better")
	}
	if MetricEuclidean.HigherIsBetter() {
		t.Error("euclidean should be lower-is-better")
	}

	if !MetricCosine.Better(0.9, 0.5) {
		t.Error("cosine: 0.9 should beat 0.5")
	}
	if MetricCosine.Better(0.5, 0.9) {
		t.Error("cosine: 0.5 should not beat 0.9")
	}
	if !MetricEuclidean.Better(0.3, 0.8) {
		t.Error("euclidean: 0.3 should beat 0.8")
	}
	if MetricEuclidean.Better(0.8, 0.3) {
		t.Error("euclidean: 0.8 should not beat 0.3")
	}

	if !MetricCosine.AtLeastAsGood(0.5, 0.5) {
		t.Error("cosine: equal scores should be at least as good")
	}
	if !MetricEuclidean.AtLeastAsGood(0.5, 0.5) {
		t.Error("euclidean: equal scores should be at least as good")
	}
}

func TestMetricWorst(t *testing.T) {
	if !math.IsInf(MetricCosine.Worst(), -1) {
		t.Errorf("cosine worst = %v, want -Inf", MetricCosine.Worst())
	}
	if !math.IsInf(MetricEuclidean.Worst(), 1) {
		t.Errorf("euclidean worst = %v, want +Inf", MetricEuclidean.Worst())
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 1.0,
		},
		{
			name:     "opposite vectors",
			a:        []float32{1, 0},
			b:        []float32{-1, 0},
			expected: -1.0,
		},
		{
			name:     "orthogonal vectors",
			a:        []float32{1, 0},
			b:        []float32{0, 1},
			expected: 0.0,
		},
		{
			name:     "scaled vectors keep similarity",
			a:        []float32{1, 2, 3},
			b:        []float32{2, 4, 6},
			expected: 1.0,
		},
		{
			name:     "zero vector never matches",
			a:        []float32{0, 0, 0},
			b:        []float32{1, 2, 3},
			expected: -1.0,
		},
		{
			name:     "both zero vectors",
			a:        []float32{0, 0},
			b:        []float32{0, 0},
			expected: -1.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MetricCosine.Compare(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 0.0001 {
				t.Errorf("cosine(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}

func TestEuclideanDistance(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{
			name:     "identical vectors",
			a:        []float32{1, 2, 3},
			b:        []float32{1, 2, 3},
			expected: 0.0,
		},
		{
			name:     "unit distance",
			a:        []float32{0, 0},
			b:        []float32{1, 0},
			expected: 1.0,
		},
		{
			name:     "pythagorean",
			a:        []float32{0, 0},
			b:        []float32{3, 4},
			expected: 5.0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MetricEuclidean.Compare(tt.a, tt.b)
			if math.Abs(got-tt.expected) > 0.0001 {
				t.Errorf("euclidean(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.expected)
			}
		})
	}
}
