package fitter

import (
	"errors"
	"io"
	"time"

	gometrics "github.com/rcrowley/go-metrics"

	"github.com/kwv/robustfit/ransac"
)

// Metrics counts fits and their outcomes in a go-metrics registry.
type Metrics struct {
	Registry gometrics.Registry

	Runs         gometrics.Counter
	Failures     gometrics.Counter
	ConfigErrors gometrics.Counter
	Canceled     gometrics.Counter
	Trials       gometrics.Histogram
	InlierRatio  gometrics.GaugeFloat64
	FitTimer     gometrics.Timer
}

// NewMetrics registers the fit metrics in a fresh registry.
func NewMetrics() *Metrics {
	r := gometrics.NewRegistry()
	return &Metrics{
		Registry:     r,
		Runs:         gometrics.NewRegisteredCounter("fit.runs", r),
		Failures:     gometrics.NewRegisteredCounter("fit.failures", r),
		ConfigErrors: gometrics.NewRegisteredCounter("fit.config_errors", r),
		Canceled:     gometrics.NewRegisteredCounter("fit.canceled", r),
		Trials:       gometrics.NewRegisteredHistogram("fit.trials", r, gometrics.NewUniformSample(1028)),
		InlierRatio:  gometrics.NewRegisteredGaugeFloat64("fit.inlier_ratio", r),
		FitTimer:     gometrics.NewRegisteredTimer("fit.time", r),
	}
}

// Observe records one fit. res is nil when err is set.
func (m *Metrics) Observe(res *FitResult, err error, elapsed time.Duration) {
	m.Runs.Inc(1)
	m.FitTimer.Update(elapsed)

	switch {
	case errors.Is(err, ransac.ErrConfiguration):
		m.ConfigErrors.Inc(1)
		return
	case err != nil:
		m.Failures.Inc(1)
		var estErr *ransac.EstimationError
		if errors.As(err, &estErr) {
			m.Trials.Update(int64(estErr.Trials))
		}
		return
	}

	m.Trials.Update(int64(res.Trials))
	m.InlierRatio.Update(res.InlierRatio)
	if res.Canceled {
		m.Canceled.Inc(1)
	}
}

// Snapshot is a flat view of the registry for logs and tests.
type Snapshot struct {
	Runs         int64   `json:"runs"`
	Failures     int64   `json:"failures"`
	ConfigErrors int64   `json:"configErrors"`
	Canceled     int64   `json:"canceled"`
	MeanTrials   float64 `json:"meanTrials"`
	InlierRatio  float64 `json:"lastInlierRatio"`
	MeanFitMs    float64 `json:"meanFitMs"`
}

// Snapshot reads the current values.
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		Runs:         m.Runs.Snapshot().Count(),
		Failures:     m.Failures.Snapshot().Count(),
		ConfigErrors: m.ConfigErrors.Snapshot().Count(),
		Canceled:     m.Canceled.Snapshot().Count(),
		MeanTrials:   m.Trials.Snapshot().Mean(),
		InlierRatio:  m.InlierRatio.Snapshot().Value(),
		MeanFitMs:    m.FitTimer.Snapshot().Mean() / float64(time.Millisecond),
	}
}

// WriteJSON writes the whole registry as JSON.
func (m *Metrics) WriteJSON(w io.Writer) {
	gometrics.WriteJSONOnce(m.Registry, w)
}
