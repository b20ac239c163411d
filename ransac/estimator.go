// Package ransac implements a generic random sample consensus search.
//
// A run repeatedly draws minimal samples from a dataset, asks an Estimator
// for the exact model through that sample, counts how many data objects agree
// with it, and finally refines the largest consensus set with a least squares
// estimate. The number of trials adapts to the best inlier ratio observed so
// far, so a run on clean data stops after a handful of trials.
package ransac

// Estimator is the capability set a model family provides to the search.
// T is the datum type (a point, a point pair, ...) and S the scalar type of
// the parameter vector.
//
// Implementations must not mutate the slices they are given, and Agree must
// be a pure function of its arguments.
type Estimator[T, S any] interface {
	// NumForEstimate returns the number of data objects an exact estimate
	// needs, for example 2 for a line through points. It is constant per
	// instance and at least 1.
	NumForEstimate() int

	// Estimate computes the model through exactly NumForEstimate data
	// objects. Degenerate input returns an error wrapping
	// ErrDegenerateSample, never an arbitrary model.
	Estimate(sample []T) ([]S, error)

	// LeastSquaresEstimate computes the model minimizing the family's least
	// squares error over an overdetermined set. It returns
	// ErrInsufficientData for fewer than NumForEstimate objects and
	// ErrDegenerateSample for rank deficient input.
	LeastSquaresEstimate(data []T) ([]S, error)

	// Agree reports whether datum is consistent with the model.
	Agree(params []S, datum T) bool
}

// Cloner is implemented by estimators that hold mutable scratch state. The
// parallel driver gives every worker its own clone.
type Cloner[T, S any] interface {
	Clone() Estimator[T, S]
}
