package ransac

import (
	"errors"
	"fmt"
)

var (
	// ErrConfiguration reports an invalid static setup. It is returned before
	// any sample is drawn.
	ErrConfiguration = errors.New("ransac: invalid configuration")

	// ErrDegenerateSample is returned by estimators when the given data cannot
	// determine a unique model (duplicate points, collinear points for a
	// circle, and so on).
	ErrDegenerateSample = errors.New("ransac: degenerate sample")

	// ErrInsufficientData is returned by LeastSquaresEstimate when it receives
	// fewer data objects than NumForEstimate.
	ErrInsufficientData = errors.New("ransac: insufficient data")

	// ErrEstimationFailure means no usable consensus was found or the final
	// refinement failed.
	ErrEstimationFailure = errors.New("ransac: estimation failed")
)

// EstimationError carries the diagnostics available when a run fails after
// sampling has started.
type EstimationError struct {
	Trials     int     // trials executed before giving up
	Degenerate int     // trials discarded as degenerate
	BestRatio  float64 // best inlier ratio reached
	Err        error   // underlying cause, may be nil
}

func (e *EstimationError) Error() string {
	msg := fmt.Sprintf("%v after %d trials (%d degenerate, best inlier ratio %.3f)",
		ErrEstimationFailure, e.Trials, e.Degenerate, e.BestRatio)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes both the failure class and its cause to errors.Is.
func (e *EstimationError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrEstimationFailure}
	}
	return []error{ErrEstimationFailure, e.Err}
}

func configError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrConfiguration, fmt.Sprintf(format, args...))
}
