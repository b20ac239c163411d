package ransac

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockEstimator records how the search drives an estimator.
type mockEstimator struct {
	mock.Mock
}

func (m *mockEstimator) NumForEstimate() int {
	return m.Called().Int(0)
}

func (m *mockEstimator) Estimate(sample []pt) ([]float64, error) {
	args := m.Called(sample)
	params, _ := args.Get(0).([]float64)
	return params, args.Error(1)
}

func (m *mockEstimator) LeastSquaresEstimate(data []pt) ([]float64, error) {
	args := m.Called(data)
	params, _ := args.Get(0).([]float64)
	return params, args.Error(1)
}

func (m *mockEstimator) Agree(params []float64, p pt) bool {
	return m.Called(params, p).Bool(0)
}

func TestRun_RefinesConsensusOnce(t *testing.T) {
	data := []pt{{0, 0}, {1, 1}, {5, -3}}
	trial := []float64{1, 0}

	est := &mockEstimator{}
	est.On("NumForEstimate").Return(2)
	est.On("Estimate", mock.Anything).Return(trial, nil).Once()
	est.On("Agree", trial, data[0]).Return(true)
	est.On("Agree", trial, data[1]).Return(true)
	est.On("Agree", trial, data[2]).Return(false)
	est.On("LeastSquaresEstimate", []pt{data[0], data[1]}).Return([]float64{1.01, -0.01}, nil).Once()

	cfg := DefaultConfig()
	cfg.MaxTrials = 1

	res, err := Run[pt, float64](context.Background(), data, est, cfg)
	require.NoError(t, err)

	assert.Equal(t, []float64{1.01, -0.01}, res.Parameters)
	assert.Equal(t, []int{0, 1}, res.Inliers)
	assert.Equal(t, 1, res.Trials)
	est.AssertExpectations(t)
	est.AssertNumberOfCalls(t, "Agree", len(data))
}

func TestRun_DegenerateSamplesNeverRefine(t *testing.T) {
	est := &mockEstimator{}
	est.On("NumForEstimate").Return(2)
	est.On("Estimate", mock.Anything).Return(nil, ErrDegenerateSample)

	cfg := DefaultConfig()
	cfg.MaxTrials = 3

	_, err := Run[pt, float64](context.Background(), []pt{{0, 0}, {0, 0}, {0, 0}}, est, cfg)
	require.ErrorIs(t, err, ErrEstimationFailure)
	assert.ErrorIs(t, err, ErrDegenerateSample)

	est.AssertNumberOfCalls(t, "Estimate", 3)
	est.AssertNotCalled(t, "LeastSquaresEstimate", mock.Anything)
	est.AssertNotCalled(t, "Agree", mock.Anything, mock.Anything)
}
