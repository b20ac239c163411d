package ransac

// consensus is the scored agreement of one candidate model.
type consensus struct {
	indices  []int
	complete bool // false when a capped scan stopped early
}

func (c consensus) size() int { return len(c.indices) }

// score tests every datum once against params and returns the agreeing
// indices in ascending order. A positive floor requests a capped scan: the
// scan stops as soon as the candidate can no longer reach floor agreements.
func score[T, S any](est Estimator[T, S], params []S, data []T, floor int) consensus {
	n := len(data)
	indices := make([]int, 0, n)
	for i := range data {
		if floor > 0 && len(indices)+(n-i) < floor {
			return consensus{indices: indices}
		}
		if est.Agree(params, data[i]) {
			indices = append(indices, i)
		}
	}
	return consensus{indices: indices, complete: true}
}

// subset gathers the data objects at indices.
func subset[T any](data []T, indices []int) []T {
	out := make([]T, len(indices))
	for i, idx := range indices {
		out[i] = data[idx]
	}
	return out
}
