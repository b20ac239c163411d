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

// noisyLine returns inliers on y = slope*x + intercept followed by outliers.
func noisyLine(seed uint64, slope, intercept float64, inliers, outliers int) []orb.Point {
	rng := rand.New(rand.NewPCG(seed, 7))
	points := make([]orb.Point, 0, inliers+outliers)
	for i := 0; i < inliers; i++ {
		x := rng.Float64()*20 - 10
		points = append(points, orb.Point{x, slope*x + intercept + (rng.Float64()-0.5)*0.02})
	}
	for i := 0; i < outliers; i++ {
		points = append(points, orb.Point{rng.Float64()*20 - 10, rng.Float64()*60 - 30})
	}
	return points
}

func TestLine_Estimate(t *testing.T) {
	l := NewLine(0.1)
	params, err := l.Estimate([]orb.Point{{0, 1}, {1, 3}})
	require.NoError(t, err)

	slope, intercept, ok := LineSlopeIntercept(params)
	require.True(t, ok)
	assert.InDelta(t, 2, slope, 1e-12)
	assert.InDelta(t, 1, intercept, 1e-12)
	assert.InDelta(t, 1, math.Hypot(params[0], params[1]), 1e-12, "unit normal")
}

func TestLine_EstimateCoincidentIsDegenerate(t *testing.T) {
	_, err := NewLine(0.1).Estimate([]orb.Point{{2, 2}, {2, 2}})
	assert.ErrorIs(t, err, ransac.ErrDegenerateSample)
}

func TestLine_LeastSquares(t *testing.T) {
	l := NewLine(0.1)
	params, err := l.LeastSquaresEstimate(noisyLine(3, -0.5, 4, 200, 0))
	require.NoError(t, err)

	slope, intercept, ok := LineSlopeIntercept(params)
	require.True(t, ok)
	assert.InDelta(t, -0.5, slope, 0.01)
	assert.InDelta(t, 4, intercept, 0.01)
}

func TestLine_LeastSquaresSmallScale(t *testing.T) {
	// Coordinates in the sub-micrometre range, expressed in metres.
	data := make([]orb.Point, 50)
	for i := range data {
		x := float64(i) * 1e-7
		data[i] = orb.Point{x, 2*x + 1}
	}

	params, err := NewLine(1e-9).LeastSquaresEstimate(data)
	require.NoError(t, err)

	slope, intercept, ok := LineSlopeIntercept(params)
	require.True(t, ok)
	assert.InDelta(t, 2, slope, 1e-4)
	assert.InDelta(t, 1, intercept, 1e-9)
}

func TestLine_LeastSquaresVertical(t *testing.T) {
	params, err := NewLine(0.1).LeastSquaresEstimate([]orb.Point{{3, 0}, {3, 1}, {3, 5}})
	require.NoError(t, err)

	_, _, ok := LineSlopeIntercept(params)
	assert.False(t, ok, "vertical line has no slope")
	assert.InDelta(t, 0, NewLine(0.1).Residual(params, orb.Point{3, 100}), 1e-9)
}

func TestLine_LeastSquaresErrors(t *testing.T) {
	l := NewLine(0.1)

	_, err := l.LeastSquaresEstimate([]orb.Point{{1, 1}})
	assert.ErrorIs(t, err, ransac.ErrInsufficientData)

	_, err = l.LeastSquaresEstimate([]orb.Point{{1, 1}, {1, 1}, {1, 1}})
	assert.ErrorIs(t, err, ransac.ErrDegenerateSample)
}

func TestLine_Agree(t *testing.T) {
	l := NewLine(0.5)
	params := []float64{0, 1, 0, 2} // y = 2
	assert.True(t, l.Agree(params, orb.Point{100, 2.4}))
	assert.False(t, l.Agree(params, orb.Point{0, 2.6}))
	assert.InDelta(t, 0.6, l.Residual(params, orb.Point{0, 2.6}), 1e-12)
}

func TestLine_RobustFitWithOutliers(t *testing.T) {
	data := noisyLine(11, 2, 1, 80, 20)

	cfg := ransac.DefaultConfig()
	cfg.Seed = 5
	cfg.MinTrials = 100
	res, err := ransac.Run(context.Background(), data, NewLine(0.05), cfg)
	require.NoError(t, err)

	slope, intercept, ok := LineSlopeIntercept(res.Parameters)
	require.True(t, ok)
	assert.InDelta(t, 2, slope, 0.05)
	assert.InDelta(t, 1, intercept, 0.05)
	assert.InDelta(t, 0.8, res.InlierRatio, 0.05)

	// The first 80 points are the inliers; a few outliers may happen to
	// fall inside the band.
	hits := 0
	for _, i := range res.Inliers {
		if i < 80 {
			hits++
		}
	}
	assert.GreaterOrEqual(t, hits, 76)
}
