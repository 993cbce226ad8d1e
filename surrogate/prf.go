package surrogate

import (
	"fmt"
	"math"
	"math/rand"
	"sync"
)

// ProbabilisticRandomForest is a bagged ensemble of regression trees that
// reports both a mean and a variance prediction, the variance taken across
// trees rather than learned directly — the same trick the Python original
// plays on top of scikit-learn's RandomForestRegressor. gonum has no random
// forest implementation, so trees are grown from scratch here; training and
// prediction are parallelized across trees with goroutines, the Go analog
// of the original's joblib.Parallel(require="sharedmem") tree loop.
type ProbabilisticRandomForest struct {
	numTrees        int
	maxDepth        int
	minSamplesSplit int
	minSamplesLeaf  int
	seed            int64

	trees    []*regressionTree
	isTrained bool
}

// PRFOption configures a ProbabilisticRandomForest at construction.
type PRFOption func(*ProbabilisticRandomForest)

// WithNumTrees overrides the default 10-tree forest.
func WithNumTrees(n int) PRFOption {
	return func(p *ProbabilisticRandomForest) { p.numTrees = n }
}

// WithMaxDepth bounds tree depth; 0 means unbounded.
func WithMaxDepth(d int) PRFOption {
	return func(p *ProbabilisticRandomForest) { p.maxDepth = d }
}

// NewProbabilisticRandomForest builds an untrained forest with the given
// seed and options, defaulting to 10 trees, unbounded depth, min_samples
// split/leaf of 2/1 — matching the Python defaults.
func NewProbabilisticRandomForest(seed int64, opts ...PRFOption) *ProbabilisticRandomForest {
	p := &ProbabilisticRandomForest{
		numTrees:        10,
		maxDepth:        0,
		minSamplesSplit: 2,
		minSamplesLeaf:  1,
		seed:            seed,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *ProbabilisticRandomForest) Train(X [][]float64, y []float64) error {
	if len(X) == 0 {
		return fmt.Errorf("surrogate: cannot train on an empty sample")
	}
	if len(X) != len(y) {
		return fmt.Errorf("surrogate: X has %d rows but y has %d", len(X), len(y))
	}

	numFeatures := len(X[0])
	maxFeatures := int(math.Sqrt(float64(numFeatures)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	p.trees = make([]*regressionTree, p.numTrees)
	var wg sync.WaitGroup
	for i := 0; i < p.numTrees; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			treeRng := rand.New(rand.NewSource(p.seed + int64(i)))
			bootX, bootY := bootstrapSample(X, y, treeRng)
			tree := newRegressionTree(p.maxDepth, p.minSamplesSplit, p.minSamplesLeaf, maxFeatures, treeRng)
			tree.fit(bootX, bootY)
			p.trees[i] = tree
		}(i)
	}
	wg.Wait()

	p.isTrained = true
	return nil
}

func (p *ProbabilisticRandomForest) Predict(X [][]float64) (mean, variance []float64, err error) {
	if !p.isTrained {
		return nil, nil, fmt.Errorf("surrogate: random forest must be trained before prediction")
	}

	predictions := make([][]float64, p.numTrees)
	var wg sync.WaitGroup
	for i, tree := range p.trees {
		wg.Add(1)
		go func(i int, tree *regressionTree) {
			defer wg.Done()
			row := make([]float64, len(X))
			for j, x := range X {
				row[j] = tree.predict(x)
			}
			predictions[i] = row
		}(i, tree)
	}
	wg.Wait()

	mean = make([]float64, len(X))
	variance = make([]float64, len(X))
	for j := range X {
		sum := 0.0
		for i := 0; i < p.numTrees; i++ {
			sum += predictions[i][j]
		}
		m := sum / float64(p.numTrees)

		varSum := 0.0
		for i := 0; i < p.numTrees; i++ {
			d := predictions[i][j] - m
			varSum += d * d
		}
		v := varSum / float64(p.numTrees)
		if v < 1e-10 {
			v = 1e-10
		}

		mean[j] = m
		variance[j] = v
	}
	return mean, variance, nil
}

func bootstrapSample(X [][]float64, y []float64, rng *rand.Rand) ([][]float64, []float64) {
	n := len(X)
	bootX := make([][]float64, n)
	bootY := make([]float64, n)
	for i := 0; i < n; i++ {
		idx := rng.Intn(n)
		bootX[i] = X[idx]
		bootY[i] = y[idx]
	}
	return bootX, bootY
}
