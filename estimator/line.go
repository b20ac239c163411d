package estimator

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

// Line fits a 2-D line with orthogonal distances.
// Parameters are [nx, ny, px, py]: a unit normal and a point on the line.
type Line struct {
	Delta float64 // maximum orthogonal distance for agreement
}

// NewLine returns a line estimator with the given agreement threshold.
func NewLine(delta float64) *Line {
	return &Line{Delta: delta}
}

func (l *Line) NumForEstimate() int { return 2 }

// Estimate returns the line through two distinct points.
func (l *Line) Estimate(sample []orb.Point) ([]float64, error) {
	if len(sample) != 2 {
		return nil, insufficient(len(sample), 2)
	}
	a, b := sample[0], sample[1]
	dx, dy := b[0]-a[0], b[1]-a[1]
	norm := math.Hypot(dx, dy)
	if norm <= epsilon*math.Max(1, math.Hypot(a[0], a[1])) {
		return nil, degenerate("line through coincident points %v", a)
	}
	return []float64{-dy / norm, dx / norm, a[0], a[1]}, nil
}

// LeastSquaresEstimate fits the total least squares line: the normal is the
// eigenvector of the scatter matrix with the smallest eigenvalue.
func (l *Line) LeastSquaresEstimate(data []orb.Point) ([]float64, error) {
	if len(data) < 2 {
		return nil, insufficient(len(data), 2)
	}
	c := Centroid(data)
	var sxx, sxy, syy float64
	for _, p := range data {
		x, y := p[0]-c[0], p[1]-c[1]
		sxx += x * x
		sxy += x * y
		syy += y * y
	}

	var eig mat.EigenSym
	if ok := eig.Factorize(mat.NewSymDense(2, []float64{sxx, sxy, sxy, syy}), true); !ok {
		return nil, degenerate("scatter matrix eigen decomposition failed")
	}
	// values[1]/n is the squared spread along the line; it is compared
	// with the centroid's magnitude the same way Estimate compares points.
	values := eig.Values(nil)
	scale := math.Max(1, math.Hypot(c[0], c[1]))
	if math.Sqrt(values[1]/float64(len(data))) <= epsilon*scale {
		return nil, degenerate("all %d points coincide", len(data))
	}
	var vectors mat.Dense
	eig.VectorsTo(&vectors)

	// Values are ascending, so column 0 is the normal direction.
	nx, ny := vectors.At(0, 0), vectors.At(1, 0)
	norm := math.Hypot(nx, ny)
	return []float64{nx / norm, ny / norm, c[0], c[1]}, nil
}

// Residual is the orthogonal distance from p to the line.
func (l *Line) Residual(params []float64, p orb.Point) float64 {
	return math.Abs(params[0]*(p[0]-params[2]) + params[1]*(p[1]-params[3]))
}

func (l *Line) Agree(params []float64, p orb.Point) bool {
	return l.Residual(params, p) <= l.Delta
}

// LineSlopeIntercept converts line parameters to y = slope*x + intercept.
// ok is false for vertical lines.
func LineSlopeIntercept(params []float64) (slope, intercept float64, ok bool) {
	if len(params) != 4 || math.Abs(params[1]) < epsilon {
		return 0, 0, false
	}
	nx, ny := params[0], params[1]
	c := nx*params[2] + ny*params[3]
	return -nx / ny, c / ny, true
}
