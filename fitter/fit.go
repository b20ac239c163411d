package fitter

import (
	"context"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/kwv/robustfit/estimator"
	"github.com/kwv/robustfit/ransac"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// FitConfig selects the model family and the search settings for one fit.
type FitConfig struct {
	Model     Model
	Threshold float64 // agreement distance handed to the estimator
	Search    ransac.Config
}

// DefaultFitConfig fits a line with unit threshold and the default search.
func DefaultFitConfig() FitConfig {
	return FitConfig{
		Model:     ModelLine,
		Threshold: 1.0,
		Search:    ransac.DefaultConfig(),
	}
}

// residualEstimator is an estimator that can also report how far a datum
// lies from a model.
type residualEstimator[T any] interface {
	ransac.Estimator[T, float64]
	Residual(params []float64, datum T) float64
}

// Fit runs the robust search on rows under fc. Configuration problems wrap
// ransac.ErrConfiguration; search failures wrap ransac.ErrEstimationFailure.
func Fit(ctx context.Context, id string, rows [][]float64, fc FitConfig) (*FitResult, error) {
	if fc.Threshold <= 0 || math.IsNaN(fc.Threshold) {
		return nil, fmt.Errorf("%w: threshold must be positive, got %g", ransac.ErrConfiguration, fc.Threshold)
	}
	if err := checkWidth(rows, fc.Model); err != nil {
		return nil, fmt.Errorf("%w: %v", ransac.ErrConfiguration, err)
	}

	start := time.Now()
	var (
		res       *ransac.Result[float64]
		residuals []float64
		err       error
	)
	switch fc.Model {
	case ModelLine:
		res, residuals, err = fitModel(ctx, toPoints(rows), estimator.NewLine(fc.Threshold), fc.Search)
	case ModelCircle:
		res, residuals, err = fitModel(ctx, toPoints(rows), estimator.NewCircle(fc.Threshold), fc.Search)
	case ModelPlane:
		res, residuals, err = fitModel(ctx, toVecs(rows), estimator.NewPlane(fc.Threshold), fc.Search)
	case ModelRigid:
		res, residuals, err = fitModel(ctx, toPairs(rows), estimator.NewRigid(fc.Threshold), fc.Search)
	case ModelAffine:
		res, residuals, err = fitModel(ctx, toPairs(rows), estimator.NewAffine(fc.Threshold), fc.Search)
	default:
		return nil, fmt.Errorf("%w: unknown model %q", ransac.ErrConfiguration, fc.Model)
	}
	if err != nil {
		return nil, fmt.Errorf("fit %s (%s): %w", id, fc.Model, err)
	}

	return &FitResult{
		DatasetID:   id,
		Model:       fc.Model,
		Threshold:   fc.Threshold,
		Parameters:  res.Parameters,
		Summary:     Describe(fc.Model, res.Parameters),
		Inverse:     inverseParams(fc.Model, res.Parameters),
		Inliers:     res.Inliers,
		Total:       len(rows),
		InlierRatio: res.InlierRatio,
		Trials:      res.Trials,
		Degenerate:  res.Degenerate,
		Canceled:    res.Canceled,
		Residuals:   summarize(residuals),
		DurationMs:  float64(time.Since(start).Microseconds()) / 1000,
		Timestamp:   time.Now().Unix(),
		Points:      rows,
	}, nil
}

// fitModel runs the search and measures the refined model against its inliers.
func fitModel[T any](ctx context.Context, data []T, est residualEstimator[T], cfg ransac.Config) (*ransac.Result[float64], []float64, error) {
	res, err := ransac.Run[T, float64](ctx, data, est, cfg)
	if err != nil {
		return nil, nil, err
	}
	residuals := make([]float64, len(res.Inliers))
	for i, idx := range res.Inliers {
		residuals[i] = est.Residual(res.Parameters, data[idx])
	}
	return res, residuals, nil
}

// inverseParams returns the transform mapping targets back onto sources, or
// nil for non-transform models and singular transforms.
func inverseParams(m Model, params []float64) []float64 {
	if m != ModelRigid && m != ModelAffine {
		return nil
	}
	fwd, ok := estimator.MatrixFromParams(params)
	if !ok {
		return nil
	}
	inv, ok := estimator.InvertMatrix(fwd)
	if !ok {
		return nil
	}
	return inv.Params()
}

func summarize(residuals []float64) ResidualStats {
	if len(residuals) == 0 {
		return ResidualStats{}
	}
	sorted := slices.Clone(residuals)
	slices.Sort(sorted)

	mean, std := stat.MeanStdDev(sorted, nil)
	if math.IsNaN(std) {
		std = 0
	}
	return ResidualStats{
		Mean:   mean,
		StdDev: std,
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		RMS:    floats.Norm(sorted, 2) / math.Sqrt(float64(len(sorted))),
		Max:    floats.Max(sorted),
	}
}

// Describe renders fitted parameters as a short human readable equation.
func Describe(m Model, params []float64) string {
	switch m {
	case ModelLine:
		if slope, intercept, ok := estimator.LineSlopeIntercept(params); ok {
			return fmt.Sprintf("y = %.4fx %+.4f", slope, intercept)
		}
		if len(params) == 4 {
			return fmt.Sprintf("x = %.4f", params[2])
		}
	case ModelCircle:
		if len(params) == 3 {
			return fmt.Sprintf("center (%.4f, %.4f) radius %.4f", params[0], params[1], params[2])
		}
	case ModelPlane:
		if len(params) == 6 {
			d := params[0]*params[3] + params[1]*params[4] + params[2]*params[5]
			return fmt.Sprintf("%.4fx %+.4fy %+.4fz = %.4f", params[0], params[1], params[2], d)
		}
	case ModelRigid:
		if m, ok := estimator.MatrixFromParams(params); ok {
			return fmt.Sprintf("rotation %.2f° translation (%.4f, %.4f)", m.RotationDegrees(), m.Tx, m.Ty)
		}
	case ModelAffine:
		if m, ok := estimator.MatrixFromParams(params); ok {
			return fmt.Sprintf("[%.4f %.4f %.4f; %.4f %.4f %.4f]", m.A, m.B, m.Tx, m.C, m.D, m.Ty)
		}
	}
	return fmt.Sprintf("%v", params)
}
