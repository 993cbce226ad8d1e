package surrogate

import (
	"math"
	"math/rand"
	"sort"
)

// regressionTree is a CART regression tree grown by exhaustive threshold
// search over a random feature subset at each split, mirroring the
// max_features='sqrt' default sklearn's RandomForestRegressor uses.
type regressionTree struct {
	root            *treeNode
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	maxFeatures     int
	rng             *rand.Rand
}

type treeNode struct {
	isLeaf     bool
	value      float64
	featureIdx int
	threshold  float64
	left       *treeNode
	right      *treeNode
}

func newRegressionTree(maxDepth, minSamplesSplit, minSamplesLeaf, maxFeatures int, rng *rand.Rand) *regressionTree {
	return &regressionTree{
		maxDepth:        maxDepth,
		minSamplesSplit: minSamplesSplit,
		minSamplesLeaf:  minSamplesLeaf,
		maxFeatures:     maxFeatures,
		rng:             rng,
	}
}

func (t *regressionTree) fit(X [][]float64, y []float64) {
	indices := make([]int, len(X))
	for i := range indices {
		indices[i] = i
	}
	t.root = t.buildNode(X, y, indices, 0)
}

func (t *regressionTree) buildNode(X [][]float64, y []float64, indices []int, depth int) *treeNode {
	mean := meanOf(y, indices)

	if len(indices) < t.minSamplesSplit || (t.maxDepth > 0 && depth >= t.maxDepth) || isConstant(y, indices) {
		return &treeNode{isLeaf: true, value: mean}
	}

	featureIdx, threshold, left, right := t.bestSplit(X, y, indices)
	if featureIdx < 0 || len(left) < t.minSamplesLeaf || len(right) < t.minSamplesLeaf {
		return &treeNode{isLeaf: true, value: mean}
	}

	return &treeNode{
		isLeaf:     false,
		featureIdx: featureIdx,
		threshold:  threshold,
		left:       t.buildNode(X, y, left, depth+1),
		right:      t.buildNode(X, y, right, depth+1),
	}
}

func (t *regressionTree) bestSplit(X [][]float64, y []float64, indices []int) (bestFeature int, bestThreshold float64, bestLeft, bestRight []int) {
	bestFeature = -1
	bestSSE := math.Inf(1)
	numFeatures := len(X[indices[0]])

	candidates := t.candidateFeatures(numFeatures)
	for _, f := range candidates {
		values := make([]float64, len(indices))
		for i, idx := range indices {
			values[i] = X[idx][f]
		}
		sorted := append([]float64(nil), values...)
		sort.Float64s(sorted)

		for i := 0; i+1 < len(sorted); i++ {
			if sorted[i] == sorted[i+1] {
				continue
			}
			threshold := (sorted[i] + sorted[i+1]) / 2

			var left, right []int
			for _, idx := range indices {
				if X[idx][f] <= threshold {
					left = append(left, idx)
				} else {
					right = append(right, idx)
				}
			}
			if len(left) == 0 || len(right) == 0 {
				continue
			}

			sse := sseOf(y, left) + sseOf(y, right)
			if sse < bestSSE {
				bestSSE = sse
				bestFeature = f
				bestThreshold = threshold
				bestLeft = left
				bestRight = right
			}
		}
	}
	return bestFeature, bestThreshold, bestLeft, bestRight
}

func (t *regressionTree) candidateFeatures(numFeatures int) []int {
	k := t.maxFeatures
	if k <= 0 || k > numFeatures {
		k = numFeatures
	}
	all := make([]int, numFeatures)
	for i := range all {
		all[i] = i
	}
	if k == numFeatures {
		return all
	}
	t.rng.Shuffle(len(all), func(i, j int) { all[i], all[j] = all[j], all[i] })
	return all[:k]
}

func (t *regressionTree) predict(x []float64) float64 {
	n := t.root
	for n != nil && !n.isLeaf {
		if x[n.featureIdx] <= n.threshold {
			n = n.left
		} else {
			n = n.right
		}
	}
	if n == nil {
		return 0
	}
	return n.value
}

func meanOf(y []float64, indices []int) float64 {
	sum := 0.0
	for _, idx := range indices {
		sum += y[idx]
	}
	return sum / float64(len(indices))
}

func sseOf(y []float64, indices []int) float64 {
	mean := meanOf(y, indices)
	sse := 0.0
	for _, idx := range indices {
		d := y[idx] - mean
		sse += d * d
	}
	return sse
}

func isConstant(y []float64, indices []int) bool {
	first := y[indices[0]]
	for _, idx := range indices[1:] {
		if y[idx] != first {
			return false
		}
	}
	return true
}
