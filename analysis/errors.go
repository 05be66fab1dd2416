// Package analysis computes summary metrics from finished session artifacts.
package analysis

import "errors"

var (
	ErrNotFound         = errors.New("artifact not found")
	ErrInsufficientData = errors.New("artifact too small to analyze")
	ErrZeroDuration     = errors.New("audio has zero duration")
	ErrNoFrames         = errors.New("video has no frames")
)

// ErrorName maps an analyzer error to a short label for metrics and reports.
func ErrorName(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInsufficientData):
		return "insufficient_data"
	case errors.Is(err, ErrZeroDuration):
		return "zero_duration"
	case errors.Is(err, ErrNoFrames):
		return "no_frames"
	default:
		return "decode"
	}
}

func clamp(v, lo, hi float64) float64 {
	return max(lo, min(v, hi))
}
