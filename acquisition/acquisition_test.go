package acquisition

import (
	"math"
	"testing"

	"github.com/wuhaolei455/mfbo-go/surrogate"
)

// constantSurrogate predicts a fixed mean/variance for every row, useful for
// exercising acquisition formulas in isolation.
type constantSurrogate struct {
	mean, variance float64
}

func (s *constantSurrogate) Train([][]float64, []float64) error { return nil }

func (s *constantSurrogate) Predict(X [][]float64) ([]float64, []float64, error) {
	mean := make([]float64, len(X))
	variance := make([]float64, len(X))
	for i := range X {
		mean[i] = s.mean
		variance[i] = s.variance
	}
	return mean, variance, nil
}

func contextWithEta(s surrogate.Surrogate, eta float64, numData int) surrogate.AcquisitionContext {
	return surrogate.AcquisitionContext{
		Tasks: []surrogate.TaskContext{{Surrogate: s, Eta: eta, NumData: numData}},
	}
}

func TestEIReturnsZeroWithoutIncumbent(t *testing.T) {
	ei := NewEI()
	ei.Update(contextWithEta(&constantSurrogate{mean: 1, variance: 1}, 0, 0))

	scores := ei.Compute([][]float64{{0}})
	if scores[0] != 0 {
		t.Errorf("expected EI=0 with no incumbent, got %v", scores[0])
	}
}

func TestEIZeroWhenVarianceNegligible(t *testing.T) {
	ei := NewEI()
	ei.Update(contextWithEta(&constantSurrogate{mean: 1, variance: 0}, 5, 3))

	scores := ei.Compute([][]float64{{0}})
	if scores[0] != 0 {
		t.Errorf("expected EI=0 for near-zero variance, got %v", scores[0])
	}
}

func TestEIPositiveWhenMeanBelowIncumbent(t *testing.T) {
	ei := NewEI()
	ei.Update(contextWithEta(&constantSurrogate{mean: 1, variance: 1}, 5, 3))

	scores := ei.Compute([][]float64{{0}})
	if scores[0] <= 0 {
		t.Errorf("expected positive EI when predicted mean is well below incumbent, got %v", scores[0])
	}
}

func TestUCBFavorsLowMeanHighVariance(t *testing.T) {
	ucb := NewUCB()
	ucb.Update(contextWithEta(&constantSurrogate{mean: 1, variance: 4}, 0, 0))
	lowMeanHighVar := ucb.Compute([][]float64{{0}})[0]

	ucb.Update(contextWithEta(&constantSurrogate{mean: 5, variance: 0}, 0, 0))
	highMeanLowVar := ucb.Compute([][]float64{{0}})[0]

	if lowMeanHighVar <= highMeanLowVar {
		t.Errorf("expected low-mean/high-variance candidate to score higher: %v vs %v", lowMeanHighVar, highMeanLowVar)
	}
}

func TestDescendingRankHandlesTies(t *testing.T) {
	ranks := descendingRank([]float64{1, 3, 3, 2})
	// sorted descending: 3, 3, 2, 1 -> positions 1,2 tie (avg 1.5), pos 3 is 3, pos 4 is 4
	want := []float64{4, 1.5, 1.5, 3}
	for i := range ranks {
		if math.Abs(ranks[i]-want[i]) > 1e-9 {
			t.Errorf("rank[%d] = %v, want %v", i, ranks[i], want[i])
		}
	}
}

func TestWeightedRankOnlyTargetFastPath(t *testing.T) {
	targetSurrogate := &constantSurrogate{mean: 1, variance: 1}
	sourceSurrogate := &constantSurrogate{mean: 1, variance: 1}

	ctx := surrogate.AcquisitionContext{
		Tasks: []surrogate.TaskContext{
			{Surrogate: sourceSurrogate, Eta: 5, NumData: 3},
			{Surrogate: targetSurrogate, Eta: 5, NumData: 3},
		},
		Weights: []float64{0.3, 0.7},
	}

	wr := NewWeightedRank(func() Function { return NewEI() })
	wr.Update(ctx)

	onlyTarget := wr.Compute([][]float64{{0}, {1}})
	directTarget := NewEI()
	directTarget.Update(contextWithEta(targetSurrogate, 5, 3))
	want := directTarget.Compute([][]float64{{0}, {1}})

	for i := range onlyTarget {
		if math.Abs(onlyTarget[i]-want[i]) > 1e-9 {
			t.Errorf("expected only_target fast path to match direct target EI, got %v want %v", onlyTarget[i], want[i])
		}
	}
}

func TestWeightedRankComputeTransferWeightsSources(t *testing.T) {
	// Source task strongly prefers the second candidate; target is
	// indifferent. With high source weight, the combined ranking should
	// follow the source's preference.
	source := &distinctSurrogate{means: []float64{10, 0}}
	target := &constantSurrogate{mean: 1, variance: 1}

	ctx := surrogate.AcquisitionContext{
		Tasks: []surrogate.TaskContext{
			{Surrogate: source, Eta: 5, NumData: 5},
			{Surrogate: target, Eta: 5, NumData: 5},
		},
		Weights: []float64{0.9, 0.1},
	}

	wr := NewWeightedRank(func() Function { return NewUCB() })
	wr.Update(ctx)

	scores := wr.ComputeTransfer([][]float64{{0}, {1}})
	if scores[1] <= scores[0] {
		t.Errorf("expected the source-preferred second candidate to win, got %v vs %v", scores[0], scores[1])
	}
}

type distinctSurrogate struct {
	means []float64
}

func (s *distinctSurrogate) Train([][]float64, []float64) error { return nil }

func (s *distinctSurrogate) Predict(X [][]float64) ([]float64, []float64, error) {
	mean := make([]float64, len(X))
	variance := make([]float64, len(X))
	for i := range X {
		mean[i] = s.means[i%len(s.means)]
		variance[i] = 0.01
	}
	return mean, variance, nil
}
