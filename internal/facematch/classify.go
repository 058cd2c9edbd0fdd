package facematch

import "fmt"

// Band is the discrete confidence classification of a similarity score.
type Band string

const (
	BandConfident Band = "confident"
	BandUncertain Band = "uncertain"
	BandNoMatch   Band = "no_match"
)

// bandRank orders bands by strength for monotonic upgrades.
func bandRank(b Band) int {
	switch b {
	case BandConfident:
		return 2
	case BandUncertain:
		return 1
	}
	return 0
}

// Stronger reports whether band b represents stronger evidence than other.
func (b Band) Stronger(other Band) bool {
	return bandRank(b) > bandRank(other)
}

// Thresholds holds the two configured confidence cut-offs.
//
// For cosine similarity (higher is better) the confident threshold must be
// >= the uncertain threshold; for euclidean distance (lower is better) it
// must be <=. "Confident" always means stricter agreement than "uncertain".
type Thresholds struct {
	Confident float64
	Uncertain float64
}

// Validate checks that the thresholds are ordered consistently with the
// metric direction. Called once at configuration load; a misordering is
// fatal rather than a source of silently wrong classifications.
func (t Thresholds) Validate(m Metric) error {
	if m.HigherIsBetter() {
		if t.Confident < t.Uncertain {
			return fmt.Errorf("%w: metric %q requires confident (%v) >= uncertain (%v)",
				ErrInvalidThresholds, m, t.Confident, t.Uncertain)
		}
		return nil
	}
	if t.Confident > t.Uncertain {
		return fmt.Errorf("%w: metric %q requires confident (%v) <= uncertain (%v)",
			ErrInvalidThresholds, m, t.Confident, t.Uncertain)
	}
	return nil
}

// Classify maps a similarity score to a confidence band. Pure and total:
// every score falls into exactly one band. Scores at least as good as the
// confident threshold are CONFIDENT, scores at least as good as the
// uncertain threshold are UNCERTAIN, everything else is NO_MATCH.
func Classify(score float64, t Thresholds, m Metric) Band {
	if m.AtLeastAsGood(score, t.Confident) {
		return BandConfident
	}
	if m.AtLeastAsGood(score, t.Uncertain) {
		return BandUncertain
	}
	return BandNoMatch
}
