package estimator

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/spatial/r3"
)

// Plane fits a plane in 3-D space with orthogonal distances.
// Parameters are [nx, ny, nz, px, py, pz]: a unit normal and a point on the plane.
type Plane struct {
	Delta float64
}

func NewPlane(delta float64) *Plane {
	return &Plane{Delta: delta}
}

func (p *Plane) NumForEstimate() int { return 3 }

// Estimate returns the plane through three non-collinear points.
func (p *Plane) Estimate(sample []r3.Vec) ([]float64, error) {
	if len(sample) != 3 {
		return nil, insufficient(len(sample), 3)
	}
	u := r3.Sub(sample[1], sample[0])
	v := r3.Sub(sample[2], sample[0])
	n := r3.Cross(u, v)
	norm := r3.Norm(n)
	scale := r3.Norm(u) * r3.Norm(v)
	if scale == 0 || norm <= epsilon*scale {
		return nil, degenerate("plane through collinear points")
	}
	n = r3.Scale(1/norm, n)
	o := sample[0]
	return []float64{n.X, n.Y, n.Z, o.X, o.Y, o.Z}, nil
}

// LeastSquaresEstimate fits the total least squares plane: the normal is the
// right singular vector of the centred data with the smallest singular value.
func (p *Plane) LeastSquaresEstimate(data []r3.Vec) ([]float64, error) {
	if len(data) < 3 {
		return nil, insufficient(len(data), 3)
	}
	var c r3.Vec
	for _, v := range data {
		c = r3.Add(c, v)
	}
	c = r3.Scale(1/float64(len(data)), c)

	a := mat.NewDense(len(data), 3, nil)
	for i, v := range data {
		d := r3.Sub(v, c)
		a.SetRow(i, []float64{d.X, d.Y, d.Z})
	}

	var svd mat.SVD
	if ok := svd.Factorize(a, mat.SVDThin); !ok {
		return nil, degenerate("singular value decomposition failed")
	}
	values := svd.Values(nil)
	if values[0] == 0 || values[1] <= epsilon*values[0] {
		return nil, degenerate("%d points are collinear", len(data))
	}
	var v mat.Dense
	svd.VTo(&v)

	n := r3.Unit(r3.Vec{X: v.At(0, 2), Y: v.At(1, 2), Z: v.At(2, 2)})
	return []float64{n.X, n.Y, n.Z, c.X, c.Y, c.Z}, nil
}

// Residual is the orthogonal distance from v to the plane.
func (p *Plane) Residual(params []float64, v r3.Vec) float64 {
	n := r3.Vec{X: params[0], Y: params[1], Z: params[2]}
	o := r3.Vec{X: params[3], Y: params[4], Z: params[5]}
	return math.Abs(r3.Dot(n, r3.Sub(v, o)))
}

func (p *Plane) Agree(params []float64, v r3.Vec) bool {
	return p.Residual(params, v) <= p.Delta
}
