package estimator

// Affine fits a full 2-D affine transform (rotation, scale, shear and
// translation) between point correspondences.
type Affine struct {
	Delta float64
}

func NewAffine(delta float64) *Affine {
	return &Affine{Delta: delta}
}

func (a *Affine) NumForEstimate() int { return 3 }

// Estimate solves the affine transform exactly from three correspondences
// whose source points are not collinear.
func (a *Affine) Estimate(sample []PointPair) ([]float64, error) {
	if len(sample) != 3 {
		return nil, insufficient(len(sample), 3)
	}
	if collinear(sample[0].Src, sample[1].Src, sample[2].Src) {
		return nil, degenerate("affine transform from collinear source points")
	}
	return a.solve(sample)
}

// LeastSquaresEstimate fits the affine transform through the normal equations.
func (a *Affine) LeastSquaresEstimate(data []PointPair) ([]float64, error) {
	if len(data) < 3 {
		return nil, insufficient(len(data), 3)
	}
	return a.solve(data)
}

func (a *Affine) solve(pairs []PointPair) ([]float64, error) {
	src, dst := sources(pairs)
	m, ok := affineTransform(src, dst)
	if !ok {
		return nil, degenerate("singular system for %d correspondences", len(pairs))
	}
	return m.Params(), nil
}

func (a *Affine) Residual(params []float64, p PointPair) float64 {
	return transferError(params, p)
}

func (a *Affine) Agree(params []float64, p PointPair) bool {
	return transferError(params, p) <= a.Delta
}
