package estimator

import (
	"context"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/kwv/robustfit/ransac"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noisyCircle(seed uint64, cx, cy, r float64, inliers, outliers int) []orb.Point {
	rng := rand.New(rand.NewPCG(seed, 5))
	points := make([]orb.Point, 0, inliers+outliers)
	for i := 0; i < inliers; i++ {
		theta := rng.Float64() * 2 * math.Pi
		rr := r + (rng.Float64()-0.5)*0.02
		points = append(points, orb.Point{cx + rr*math.Cos(theta), cy + rr*math.Sin(theta)})
	}
	for i := 0; i < outliers; i++ {
		points = append(points, orb.Point{cx + rng.Float64()*4*r - 2*r, cy + rng.Float64()*4*r - 2*r})
	}
	return points
}

func TestCircle_Estimate(t *testing.T) {
	params, err := NewCircle(0.1).Estimate([]orb.Point{{1, 0}, {0, 1}, {-1, 0}})
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{0, 0, 1}, params, 1e-12)
}

func TestCircle_EstimateDegenerate(t *testing.T) {
	tests := []struct {
		name   string
		points []orb.Point
	}{
		{"collinear", []orb.Point{{0, 0}, {1, 1}, {2, 2}}},
		{"duplicate", []orb.Point{{0, 0}, {0, 0}, {2, 1}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewCircle(0.1).Estimate(tc.points)
			assert.ErrorIs(t, err, ransac.ErrDegenerateSample)
		})
	}
}

func TestCircle_LeastSquares(t *testing.T) {
	params, err := NewCircle(0.1).LeastSquaresEstimate(noisyCircle(2, 3, -2, 5, 120, 0))
	require.NoError(t, err)
	assert.InDeltaSlice(t, []float64{3, -2, 5}, params, 0.01)
}

func TestCircle_LeastSquaresErrors(t *testing.T) {
	c := NewCircle(0.1)

	_, err := c.LeastSquaresEstimate([]orb.Point{{0, 0}, {1, 1}})
	assert.ErrorIs(t, err, ransac.ErrInsufficientData)

	_, err = c.LeastSquaresEstimate([]orb.Point{{0, 0}, {1, 1}, {2, 2}, {3, 3}})
	assert.ErrorIs(t, err, ransac.ErrDegenerateSample)
}

func TestCircle_Agree(t *testing.T) {
	c := NewCircle(0.2)
	params := []float64{0, 0, 2}
	assert.True(t, c.Agree(params, orb.Point{0, 2.1}))
	assert.True(t, c.Agree(params, orb.Point{-1.9, 0}))
	assert.False(t, c.Agree(params, orb.Point{0, 0}))
}

func TestCircle_RobustFit(t *testing.T) {
	data := noisyCircle(4, 10, 10, 3, 60, 40)

	cfg := ransac.DefaultConfig()
	cfg.MinTrials = 100
	res, err := ransac.Run(context.Background(), data, NewCircle(0.05), cfg)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{10, 10, 3}, res.Parameters, 0.05)
	assert.GreaterOrEqual(t, res.InlierRatio, 0.55)
}
