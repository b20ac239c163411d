package ransac

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math/rand/v2"
)

// sequentialStream is the PCG stream used for the single sampler of a
// sequential run. Parallel runs use the trial index as the stream.
const sequentialStream = 0x5eed

// Config holds the search parameters.
type Config struct {
	Confidence    float64        // Probability of drawing at least one all-inlier sample (0,1)
	MaxTrials     int            // Hard cap on trials, degenerate ones included
	MinTrials     int            // Lower bound on the adaptive trial count
	Seed          int64          // Seed for the sampler when RNG is nil
	RNG           *rand.Rand     // Optional generator for sequential runs
	Workers       int            // Parallel workers; 0 or 1 runs sequentially
	EarlyBail     bool           // Stop scoring candidates that cannot beat the best
	RecencyWindow int            // Degenerate subsets the sampler avoids redrawing
	Verbose       bool           // Log discarded trials
	Progress      func(Progress) // Called after every trial
}

// DefaultConfig returns the configuration used when the caller has no
// specific requirements.
func DefaultConfig() Config {
	return Config{
		Confidence:    0.99,
		MaxTrials:     1000,
		MinTrials:     1,
		Seed:          1,
		Workers:       1,
		RecencyWindow: DefaultRecencyWindow,
	}
}

// Progress describes the search state after one trial.
type Progress struct {
	Trial      int  // zero-based trial index
	Degenerate bool // the trial's sample was discarded
	BestSize   int  // size of the best consensus set so far
	Required   int  // current adaptive trial budget
}

// Result is the refined model and the consensus set it was fitted to.
type Result[S any] struct {
	Parameters  []S     // least squares parameters over Inliers
	Inliers     []int   // ascending indices of the winning consensus set
	Trials      int     // trials executed, degenerate ones included
	Degenerate  int     // trials discarded as degenerate
	InlierRatio float64 // len(Inliers) / len(data)
	Canceled    bool    // the context ended the search early
}

// candidate is the best model found so far.
type candidate[S any] struct {
	params  []S
	inliers []int
	trial   int
}

func (c *candidate[S]) size() int {
	if c == nil {
		return 0
	}
	return len(c.inliers)
}

// Run searches data for the model with the largest consensus and returns it
// refined by a least squares estimate over that consensus.
//
// Configuration problems are reported with ErrConfiguration before any
// sampling. A run that finds no usable consensus, or whose refinement fails,
// returns an *EstimationError. Cancelling ctx stops sampling and refines the
// best model found so far.
func Run[T, S any](ctx context.Context, data []T, est Estimator[T, S], cfg Config) (*Result[S], error) {
	m, err := validate(data, est, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Workers > 1 {
		return runParallel(ctx, data, est, cfg, m)
	}
	return runSequential(ctx, data, est, cfg, m)
}

func validate[T, S any](data []T, est Estimator[T, S], cfg Config) (int, error) {
	if est == nil {
		return 0, configError("estimator is nil")
	}
	m := est.NumForEstimate()
	switch {
	case m < 1:
		return 0, configError("estimator needs %d objects, must be at least 1", m)
	case len(data) < m:
		return 0, configError("dataset has %d objects, estimator needs %d", len(data), m)
	case !(cfg.Confidence > 0 && cfg.Confidence < 1):
		return 0, configError("confidence %v outside (0,1)", cfg.Confidence)
	case cfg.MaxTrials < 1:
		return 0, configError("maxTrials %d must be at least 1", cfg.MaxTrials)
	case cfg.MinTrials < 0 || cfg.MinTrials > cfg.MaxTrials:
		return 0, configError("minTrials %d outside [0, %d]", cfg.MinTrials, cfg.MaxTrials)
	case cfg.Workers < 0:
		return 0, configError("workers %d must not be negative", cfg.Workers)
	case cfg.RecencyWindow < 0:
		return 0, configError("recency window %d must not be negative", cfg.RecencyWindow)
	}
	return m, nil
}

func runSequential[T, S any](ctx context.Context, data []T, est Estimator[T, S], cfg Config, m int) (*Result[S], error) {
	rng := cfg.RNG
	if rng == nil {
		rng = rand.New(rand.NewPCG(uint64(cfg.Seed), sequentialStream))
	}
	sampler := NewSampler(rng, cfg.RecencyWindow)
	ctrl := NewController(cfg.Confidence, cfg.MinTrials, cfg.MaxTrials, m, len(data))

	var best *candidate[S]
	degenerate := 0
	canceled := false

	for !ctrl.Done() {
		if ctx.Err() != nil {
			canceled = true
			break
		}
		trial := ctrl.Trials()

		idx, err := sampler.Draw(len(data), m)
		if err != nil {
			return nil, err
		}
		params, err := est.Estimate(subset(data, idx))
		ctrl.Record()
		if err != nil {
			degenerate++
			sampler.MarkDegenerate(idx)
			logDiscarded(cfg, trial, idx, err)
			report(cfg, Progress{Trial: trial, Degenerate: true, BestSize: best.size(), Required: ctrl.Required()})
			continue
		}

		floor := 0
		if cfg.EarlyBail && best != nil {
			floor = best.size() + 1
		}
		c := score(est, params, data, floor)
		if c.complete && c.size() > best.size() {
			best = &candidate[S]{params: params, inliers: c.indices, trial: trial}
			ctrl.Update(c.size())
		}
		report(cfg, Progress{Trial: trial, BestSize: best.size(), Required: ctrl.Required()})
	}

	return refine(ctx, data, est, best, ctrl, degenerate, canceled, m)
}

// refine runs the least squares pass over the winning consensus set.
func refine[T, S any](ctx context.Context, data []T, est Estimator[T, S], best *candidate[S], ctrl *Controller, degenerate int, canceled bool, m int) (*Result[S], error) {
	fail := func(cause error) error {
		return &EstimationError{
			Trials:     ctrl.Trials(),
			Degenerate: degenerate,
			BestRatio:  ctrl.BestRatio(),
			Err:        cause,
		}
	}

	if best == nil {
		switch {
		case canceled:
			return nil, fail(ctx.Err())
		case ctrl.Trials() > 0 && degenerate == ctrl.Trials():
			return nil, fail(ErrDegenerateSample)
		default:
			return nil, fail(errors.New("no candidate model gathered any agreement"))
		}
	}
	if best.size() < m {
		return nil, fail(fmt.Errorf("%w: consensus of %d objects, refinement needs %d",
			ErrInsufficientData, best.size(), m))
	}

	params, err := est.LeastSquaresEstimate(subset(data, best.inliers))
	if err != nil {
		return nil, fail(fmt.Errorf("refining consensus of %d objects: %w", best.size(), err))
	}

	return &Result[S]{
		Parameters:  params,
		Inliers:     best.inliers,
		Trials:      ctrl.Trials(),
		Degenerate:  degenerate,
		InlierRatio: float64(best.size()) / float64(len(data)),
		Canceled:    canceled,
	}, nil
}

func report(cfg Config, p Progress) {
	if cfg.Progress != nil {
		cfg.Progress(p)
	}
}

func logDiscarded(cfg Config, trial int, idx []int, err error) {
	if !cfg.Verbose {
		return
	}
	log.Printf("ransac: trial %d discarded sample %v: %v", trial, idx, err)
}
