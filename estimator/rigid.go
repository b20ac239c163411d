package estimator

import "math"

// Rigid fits a rotation plus translation between point correspondences.
// Parameters follow the AffineMatrix layout [a, b, tx, c, d, ty].
type Rigid struct {
	Delta float64 // maximum distance between the mapped source and its target
}

func NewRigid(delta float64) *Rigid {
	return &Rigid{Delta: delta}
}

func (r *Rigid) NumForEstimate() int { return 2 }

// Estimate returns the rigid transform aligning two correspondences.
func (r *Rigid) Estimate(sample []PointPair) ([]float64, error) {
	if len(sample) != 2 {
		return nil, insufficient(len(sample), 2)
	}
	src, dst := sources(sample)
	span := Distance(src[0], src[1])
	if span <= epsilon*math.Max(1, math.Hypot(src[0][0], src[0][1])) || Distance(dst[0], dst[1]) == 0 {
		return nil, degenerate("rigid transform from coincident points")
	}
	m, ok := rigidTransform(src, dst)
	if !ok {
		return nil, degenerate("rigid transform from coincident points")
	}
	return m.Params(), nil
}

// LeastSquaresEstimate solves the 2-D Procrustes problem over all pairs.
func (r *Rigid) LeastSquaresEstimate(data []PointPair) ([]float64, error) {
	if len(data) < 2 {
		return nil, insufficient(len(data), 2)
	}
	src, dst := sources(data)
	m, ok := rigidTransform(src, dst)
	if !ok {
		return nil, degenerate("all %d source points coincide", len(data))
	}
	return m.Params(), nil
}

// Residual is the distance between the transformed source and the target.
func (r *Rigid) Residual(params []float64, p PointPair) float64 {
	return transferError(params, p)
}

func (r *Rigid) Agree(params []float64, p PointPair) bool {
	return transferError(params, p) <= r.Delta
}

func transferError(params []float64, p PointPair) float64 {
	m, ok := MatrixFromParams(params)
	if !ok {
		return math.Inf(1)
	}
	return Distance(TransformPoint(p.Src, m), p.Dst)
}
