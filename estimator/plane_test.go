package estimator

import (
	"context"
	"math/rand/v2"
	"testing"

	"github.com/kwv/robustfit/ransac"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"
)

// z = 0.5x - y + 3 with small noise, plus scattered outliers.
func noisyPlane(seed uint64, inliers, outliers int) []r3.Vec {
	rng := rand.New(rand.NewPCG(seed, 3))
	data := make([]r3.Vec, 0, inliers+outliers)
	for i := 0; i < inliers; i++ {
		x, y := rng.Float64()*10, rng.Float64()*10
		data = append(data, r3.Vec{X: x, Y: y, Z: 0.5*x - y + 3 + (rng.Float64()-0.5)*0.01})
	}
	for i := 0; i < outliers; i++ {
		data = append(data, r3.Vec{X: rng.Float64() * 10, Y: rng.Float64() * 10, Z: rng.Float64()*40 - 20})
	}
	return data
}

func TestPlane_Estimate(t *testing.T) {
	p := NewPlane(0.1)
	params, err := p.Estimate([]r3.Vec{{X: 0, Y: 0, Z: 1}, {X: 1, Y: 0, Z: 1}, {X: 0, Y: 1, Z: 1}})
	require.NoError(t, err)

	assert.InDelta(t, 1, params[2]*params[2], 1e-12, "normal is +-z")
	assert.InDelta(t, 0, p.Residual(params, r3.Vec{X: 5, Y: -3, Z: 1}), 1e-12)
	assert.InDelta(t, 2, p.Residual(params, r3.Vec{X: 5, Y: -3, Z: 3}), 1e-12)
}

func TestPlane_EstimateCollinearIsDegenerate(t *testing.T) {
	_, err := NewPlane(0.1).Estimate([]r3.Vec{{X: 0}, {X: 1}, {X: 2}})
	assert.ErrorIs(t, err, ransac.ErrDegenerateSample)
}

func TestPlane_LeastSquares(t *testing.T) {
	p := NewPlane(0.1)
	params, err := p.LeastSquaresEstimate(noisyPlane(1, 100, 0))
	require.NoError(t, err)

	probe := r3.Vec{X: 2, Y: 4, Z: 0.5*2 - 4 + 3}
	assert.InDelta(t, 0, p.Residual(params, probe), 0.01)
	assert.InDelta(t, 1, r3.Norm(r3.Vec{X: params[0], Y: params[1], Z: params[2]}), 1e-9)
}

func TestPlane_LeastSquaresErrors(t *testing.T) {
	p := NewPlane(0.1)

	_, err := p.LeastSquaresEstimate([]r3.Vec{{X: 1}, {X: 2}})
	assert.ErrorIs(t, err, ransac.ErrInsufficientData)

	_, err = p.LeastSquaresEstimate([]r3.Vec{{X: 0}, {X: 1}, {X: 2}, {X: 3}})
	assert.ErrorIs(t, err, ransac.ErrDegenerateSample)
}

func TestPlane_RobustFit(t *testing.T) {
	data := noisyPlane(9, 70, 30)

	cfg := ransac.DefaultConfig()
	cfg.MinTrials = 50
	res, err := ransac.Run(context.Background(), data, NewPlane(0.05), cfg)
	require.NoError(t, err)

	assert.InDelta(t, 0.7, res.InlierRatio, 0.05)
	probe := r3.Vec{X: 7, Y: 1, Z: 0.5*7 - 1 + 3}
	assert.InDelta(t, 0, NewPlane(0.05).Residual(res.Parameters, probe), 0.02)
}
