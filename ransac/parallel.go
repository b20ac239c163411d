package ransac

import (
	"context"
	"log"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// search is the state shared by parallel workers. Everything except next is
// guarded by mu.
type search[S any] struct {
	mu         sync.Mutex
	ctrl       *Controller
	best       *candidate[S]
	degenerate int
	next       atomic.Int64
	canceled   atomic.Bool
}

// offer records a finished trial. A candidate replaces the best one when its
// consensus is larger, or equally large and found in an earlier trial, so the
// winner does not depend on worker scheduling.
func (s *search[S]) offer(cfg Config, trial int, params []S, c consensus) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctrl.Record()
	if c.complete && c.size() > 0 {
		bs := s.best.size()
		if c.size() > bs || (c.size() == bs && trial < s.best.trial) {
			s.best = &candidate[S]{params: params, inliers: c.indices, trial: trial}
			s.ctrl.Update(c.size())
		}
	}
	report(cfg, Progress{Trial: trial, BestSize: s.best.size(), Required: s.ctrl.Required()})
}

func (s *search[S]) discard(cfg Config, trial int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ctrl.Record()
	s.degenerate++
	report(cfg, Progress{Trial: trial, Degenerate: true, BestSize: s.best.size(), Required: s.ctrl.Required()})
}

// peek returns whether the search is done and the best size so far.
func (s *search[S]) peek() (bool, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctrl.Done(), s.best.size()
}

// runParallel spreads trials over a fixed pool of workers. Trial t draws its
// sample from its own PCG stream (seed, t), so the sample a trial index sees
// is the same however trials are scheduled.
func runParallel[T, S any](ctx context.Context, data []T, est Estimator[T, S], cfg Config, m int) (*Result[S], error) {
	s := &search[S]{
		ctrl: NewController(cfg.Confidence, cfg.MinTrials, cfg.MaxTrials, m, len(data)),
	}

	var g errgroup.Group
	g.SetLimit(cfg.Workers)
	for range cfg.Workers {
		worker := est
		if c, ok := est.(Cloner[T, S]); ok {
			worker = c.Clone()
		}
		g.Go(func() error {
			work(ctx, s, data, worker, cfg, m)
			return nil
		})
	}
	_ = g.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	return refine(ctx, data, est, s.best, s.ctrl, s.degenerate, s.canceled.Load(), m)
}

// work runs trials until the controller is satisfied, the trial budget is
// claimed, or ctx ends.
func work[T, S any](ctx context.Context, s *search[S], data []T, est Estimator[T, S], cfg Config, m int) {
	for {
		if ctx.Err() != nil {
			s.canceled.Store(true)
			return
		}
		done, bestSize := s.peek()
		if done {
			return
		}
		trial := int(s.next.Add(1) - 1)
		if trial >= cfg.MaxTrials {
			return
		}

		sampler := NewSampler(rand.New(rand.NewPCG(uint64(cfg.Seed), uint64(trial))), 0)
		idx, err := sampler.Draw(len(data), m)
		if err != nil {
			// Run validates sizes first, so this only fires on a broken invariant.
			log.Printf("ransac: worker stopped at trial %d: %v", trial, err)
			return
		}
		params, err := est.Estimate(subset(data, idx))
		if err != nil {
			logDiscarded(cfg, trial, idx, err)
			s.discard(cfg, trial)
			continue
		}

		// A stale best size only lowers the floor, so the capped scan never
		// drops a candidate that could still win.
		floor := 0
		if cfg.EarlyBail {
			floor = bestSize
		}
		s.offer(cfg, trial, params, score(est, params, data, floor))
	}
}
