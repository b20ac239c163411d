package ransac

import (
	"math/rand/v2"
	"slices"
)

const (
	// DefaultRecencyWindow is the number of recent degenerate subsets a
	// Sampler avoids redrawing.
	DefaultRecencyWindow = 8

	// maxRedraws bounds the attempts to escape the recency window.
	maxRedraws = 4
)

// Sampler draws duplicate-free index subsets uniformly over all
// C(datasetSize, sampleSize) combinations.
type Sampler struct {
	rng    *rand.Rand
	recent [][]int // sorted degenerate subsets, used as a ring
	next   int
	window int
}

// NewSampler returns a Sampler drawing from rng. A window of 0 disables
// degenerate-subset avoidance.
func NewSampler(rng *rand.Rand, window int) *Sampler {
	if window < 0 {
		window = 0
	}
	return &Sampler{
		rng:    rng,
		recent: make([][]int, 0, window),
		window: window,
	}
}

// Draw returns sampleSize distinct indices in [0, datasetSize).
func (s *Sampler) Draw(datasetSize, sampleSize int) ([]int, error) {
	if sampleSize < 1 {
		return nil, configError("sample size %d must be at least 1", sampleSize)
	}
	if sampleSize > datasetSize {
		return nil, configError("sample size %d exceeds dataset size %d", sampleSize, datasetSize)
	}

	idx := s.draw(datasetSize, sampleSize)
	for attempt := 0; attempt < maxRedraws && s.isRecent(idx); attempt++ {
		idx = s.draw(datasetSize, sampleSize)
	}
	return idx, nil
}

// draw is Floyd's combination algorithm followed by a shuffle so the order
// inside a sample carries no bias either.
func (s *Sampler) draw(n, k int) []int {
	out := make([]int, 0, k)
	var seen map[int]struct{}
	if k > 16 {
		seen = make(map[int]struct{}, k)
	}
	contains := func(v int) bool {
		if seen != nil {
			_, ok := seen[v]
			return ok
		}
		return slices.Contains(out, v)
	}
	add := func(v int) {
		out = append(out, v)
		if seen != nil {
			seen[v] = struct{}{}
		}
	}

	for j := n - k; j < n; j++ {
		t := s.rng.IntN(j + 1)
		if contains(t) {
			add(j)
		} else {
			add(t)
		}
	}
	s.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// MarkDegenerate records a subset that produced a degenerate estimate.
func (s *Sampler) MarkDegenerate(indices []int) {
	if s.window == 0 {
		return
	}
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	if len(s.recent) < s.window {
		s.recent = append(s.recent, sorted)
		return
	}
	s.recent[s.next] = sorted
	s.next = (s.next + 1) % s.window
}

func (s *Sampler) isRecent(indices []int) bool {
	if len(s.recent) == 0 {
		return false
	}
	sorted := slices.Clone(indices)
	slices.Sort(sorted)
	for _, r := range s.recent {
		if slices.Equal(r, sorted) {
			return true
		}
	}
	return false
}
