package ransac

import "math"

// Controller decides after each trial whether sampling should continue. It
// recomputes the trial count needed to draw at least one all-inlier sample
// with the configured confidence, given the best inlier ratio seen so far.
type Controller struct {
	confidence  float64
	minTrials   int
	maxTrials   int
	sampleSize  int
	datasetSize int

	bestRatio float64
	trials    int
}

// NewController returns a controller for samples of sampleSize drawn from a
// dataset of datasetSize objects.
func NewController(confidence float64, minTrials, maxTrials, sampleSize, datasetSize int) *Controller {
	return &Controller{
		confidence:  confidence,
		minTrials:   minTrials,
		maxTrials:   maxTrials,
		sampleSize:  sampleSize,
		datasetSize: datasetSize,
	}
}

// Update folds a consensus size into the best inlier ratio.
func (c *Controller) Update(consensusSize int) {
	if c.datasetSize == 0 {
		return
	}
	ratio := float64(consensusSize) / float64(c.datasetSize)
	if ratio > c.bestRatio {
		c.bestRatio = ratio
	}
}

// Record counts one executed trial, degenerate or not.
func (c *Controller) Record() {
	c.trials++
}

// Trials returns the number of trials recorded so far.
func (c *Controller) Trials() int { return c.trials }

// BestRatio returns the best inlier ratio seen so far.
func (c *Controller) BestRatio() float64 { return c.bestRatio }

// Required returns the adaptive trial budget
//
//	N = ceil(log(1-p) / log(1-w^m))
//
// clamped to [minTrials, maxTrials]. A ratio of 0 keeps the full budget and
// a ratio of 1 stops after the current trial.
func (c *Controller) Required() int {
	if c.bestRatio >= 1 {
		return min(1, c.maxTrials)
	}
	if c.bestRatio <= 0 {
		return c.maxTrials
	}

	w := math.Pow(c.bestRatio, float64(c.sampleSize))
	denom := math.Log1p(-w)
	if w <= 0 || denom == 0 {
		return c.maxTrials
	}

	n := math.Log(1-c.confidence) / denom
	if math.IsNaN(n) || n >= float64(c.maxTrials) {
		return c.maxTrials
	}
	required := int(math.Ceil(n))
	if required < c.minTrials {
		required = c.minTrials
	}
	return min(required, c.maxTrials)
}

// Done reports whether enough trials have run.
func (c *Controller) Done() bool {
	return c.trials >= c.maxTrials || c.trials >= c.Required()
}
