package estimator

import (
	"math"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
)

// Circle fits a 2-D circle. Parameters are [cx, cy, r].
type Circle struct {
	Delta float64 // maximum radial distance for agreement
}

func NewCircle(delta float64) *Circle {
	return &Circle{Delta: delta}
}

func (c *Circle) NumForEstimate() int { return 3 }

// Estimate returns the circumcircle of three non-collinear points.
func (c *Circle) Estimate(sample []orb.Point) ([]float64, error) {
	if len(sample) != 3 {
		return nil, insufficient(len(sample), 3)
	}
	a, b, p := sample[0], sample[1], sample[2]
	if collinear(a, b, p) {
		return nil, degenerate("circle through collinear points")
	}

	// Work relative to a to keep the determinant well scaled.
	bx, by := b[0]-a[0], b[1]-a[1]
	px, py := p[0]-a[0], p[1]-a[1]
	d := 2 * (bx*py - by*px)
	b2 := bx*bx + by*by
	p2 := px*px + py*py
	ux := (py*b2 - by*p2) / d
	uy := (bx*p2 - px*b2) / d

	return []float64{a[0] + ux, a[1] + uy, math.Hypot(ux, uy)}, nil
}

// LeastSquaresEstimate is the algebraic (Kasa) fit: it solves
// x^2 + y^2 + Dx + Ey + F = 0 in the least squares sense.
func (c *Circle) LeastSquaresEstimate(data []orb.Point) ([]float64, error) {
	if len(data) < 3 {
		return nil, insufficient(len(data), 3)
	}
	if allCollinear(data) {
		return nil, degenerate("%d points are collinear", len(data))
	}

	o := Centroid(data)
	a := mat.NewDense(len(data), 3, nil)
	b := mat.NewVecDense(len(data), nil)
	for i, p := range data {
		x, y := p[0]-o[0], p[1]-o[1]
		a.SetRow(i, []float64{x, y, 1})
		b.SetVec(i, -(x*x + y*y))
	}

	var sol mat.VecDense
	if err := sol.SolveVec(a, b); err != nil {
		return nil, degenerate("circle system: %v", err)
	}
	cx, cy := -sol.AtVec(0)/2, -sol.AtVec(1)/2
	r2 := cx*cx + cy*cy - sol.AtVec(2)
	if r2 <= 0 || math.IsNaN(r2) {
		return nil, degenerate("no real circle fits %d points", len(data))
	}
	return []float64{o[0] + cx, o[1] + cy, math.Sqrt(r2)}, nil
}

// Residual is the radial distance from p to the circle.
func (c *Circle) Residual(params []float64, p orb.Point) float64 {
	return math.Abs(math.Hypot(p[0]-params[0], p[1]-params[1]) - params[2])
}

func (c *Circle) Agree(params []float64, p orb.Point) bool {
	return c.Residual(params, p) <= c.Delta
}

// allCollinear checks the spread of the points across their principal axis.
func allCollinear(points []orb.Point) bool {
	o := Centroid(points)
	var sxx, sxy, syy float64
	for _, p := range points {
		x, y := p[0]-o[0], p[1]-o[1]
		sxx += x * x
		sxy += x * y
		syy += y * y
	}
	var eig mat.EigenSym
	if !eig.Factorize(mat.NewSymDense(2, []float64{sxx, sxy, sxy, syy}), false) {
		return true
	}
	values := eig.Values(nil)
	return values[1] == 0 || values[0] <= epsilon*values[1]
}
