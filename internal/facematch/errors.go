package facematch

import "errors"

var (
	// ErrDimensionMismatch is returned when a probe vector's length differs
	// from the stored reference vectors. Never silently coerced.
	ErrDimensionMismatch = errors.New("probe and reference vector dimensions differ")

	// ErrInvalidThresholds is returned when the configured confidence
	// thresholds are inconsistent with the metric direction. Fatal at
	// startup; the service refuses to run with ambiguous bands.
	ErrInvalidThresholds = errors.New("invalid threshold configuration")

	// ErrUnknownMetric is returned for an unrecognized similarity metric name.
	ErrUnknownMetric = errors.New("unknown similarity metric")
)
