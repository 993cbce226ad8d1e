package acquisition

import (
	"math"
	"sort"

	"github.com/wuhaolei455/mfbo-go/surrogate"
)

// InnerFactory builds a fresh single-task acquisition function of the kind
// configured for WeightedRank's per-task scoring (typically EI).
type InnerFactory func() Function

// WeightedRank combines per-task acquisition rankings into a single score,
// weighted by the transfer-learning ensemble's per-task weights. Each task's
// raw acquisition values are converted to within-task ranks (rank 1 = best)
// before combining, so tasks with differently scaled acquisition values
// remain comparable.
type WeightedRank struct {
	innerFactory InnerFactory

	weights  []float64
	acqFuncs []Function
}

// NewWeightedRank returns a WeightedRank acquisition whose per-task scoring
// uses innerFactory (e.g. func() Function { return NewEI() }).
func NewWeightedRank(innerFactory InnerFactory) *WeightedRank {
	return &WeightedRank{innerFactory: innerFactory}
}

func (f *WeightedRank) Update(ctx surrogate.AcquisitionContext) {
	f.weights = ctx.Weights
	f.acqFuncs = make([]Function, len(ctx.Tasks))
	for i, task := range ctx.Tasks {
		acq := f.innerFactory()
		acq.Update(surrogate.AcquisitionContext{Tasks: []surrogate.TaskContext{task}})
		f.acqFuncs[i] = acq
	}
}

// Compute scores X on the onlyTarget fast path: it returns the target task's
// raw acquisition values unchanged, whether or not transfer-learning weights
// are set. ComputeTransfer is the path that combines them.
func (f *WeightedRank) Compute(X [][]float64) []float64 {
	return f.compute(X, true)
}

// ComputeTransfer is the full rank-combination path, used when source-task
// weights should influence the candidate ordering.
func (f *WeightedRank) ComputeTransfer(X [][]float64) []float64 {
	return f.compute(X, false)
}

func (f *WeightedRank) compute(X [][]float64, onlyTarget bool) []float64 {
	if len(f.acqFuncs) == 0 {
		return make([]float64, len(X))
	}
	if onlyTarget {
		return f.acqFuncs[len(f.acqFuncs)-1].Compute(X)
	}

	allRankings := make([][]float64, len(f.acqFuncs))
	for i, acq := range f.acqFuncs {
		scores := acq.Compute(X)
		allRankings[i] = descendingRank(scores)
	}

	n := len(X)
	finalRank := make([]float64, n)
	for i, rankings := range allRankings {
		w := 1.0
		if i < len(f.weights) {
			w = f.weights[i]
		}
		for j := 0; j < n; j++ {
			finalRank[j] += w * rankings[j]
		}
	}

	maxRank := math.Inf(-1)
	for _, r := range finalRank {
		if r > maxRank {
			maxRank = r
		}
	}
	out := make([]float64, n)
	for i, r := range finalRank {
		out[i] = maxRank - r
	}
	return out
}

// descendingRank assigns rank 1 to the largest value, using the average of
// tied positions for equal values (matching pandas.Series.rank()'s default
// "average" method).
func descendingRank(values []float64) []float64 {
	n := len(values)
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	sort.Slice(indices, func(a, b int) bool {
		return values[indices[a]] > values[indices[b]]
	})

	ranks := make([]float64, n)
	i := 0
	for i < n {
		j := i
		for j < n && values[indices[j]] == values[indices[i]] {
			j++
		}
		avgRank := float64(i+j+1) / 2.0
		for k := i; k < j; k++ {
			ranks[indices[k]] = avgRank
		}
		i = j
	}
	return ranks
}
