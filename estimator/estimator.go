// Package estimator provides model families for the ransac search: lines,
// circles and planes fitted to points, and rigid or affine transforms fitted
// to point correspondences.
package estimator

import (
	"fmt"

	"github.com/kwv/robustfit/ransac"
	"github.com/paulmach/orb"
)

// epsilon is the relative tolerance below which a sample is treated as
// degenerate.
const epsilon = 1e-9

// PointPair is a correspondence between a source point and where it should
// land after the transform.
type PointPair struct {
	Src orb.Point `json:"src"`
	Dst orb.Point `json:"dst"`
}

// degenerate wraps ErrDegenerateSample with a short reason.
func degenerate(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ransac.ErrDegenerateSample, fmt.Sprintf(format, args...))
}

func insufficient(got, want int) error {
	return fmt.Errorf("%w: got %d data objects, need %d", ransac.ErrInsufficientData, got, want)
}

// cross returns the z component of (b-a) x (c-a) and the product of the two
// edge lengths, so callers can compare the sine of the angle at a.
func cross(a, b, c orb.Point) (z, scale float64) {
	ux, uy := b[0]-a[0], b[1]-a[1]
	vx, vy := c[0]-a[0], c[1]-a[1]
	return ux*vy - uy*vx, Distance(a, b) * Distance(a, c)
}

// collinear reports whether three points are (nearly) on one line, including
// the case where two of them coincide.
func collinear(a, b, c orb.Point) bool {
	z, scale := cross(a, b, c)
	if scale == 0 {
		return true
	}
	if z < 0 {
		z = -z
	}
	return z <= epsilon*scale
}

func sources(pairs []PointPair) ([]orb.Point, []orb.Point) {
	src := make([]orb.Point, len(pairs))
	dst := make([]orb.Point, len(pairs))
	for i, p := range pairs {
		src[i], dst[i] = p.Src, p.Dst
	}
	return src, dst
}
