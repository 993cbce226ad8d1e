package surrogate

import (
	"math"
	"math/rand"
	"testing"
)

func linearDataset(n int) ([][]float64, []float64) {
	X := make([][]float64, n)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		v := float64(i) / float64(n)
		X[i] = []float64{v}
		y[i] = 2*v + 1
	}
	return X, y
}

func TestProbabilisticRandomForestFitsLinearTrend(t *testing.T) {
	X, y := linearDataset(40)
	forest := NewProbabilisticRandomForest(1, WithNumTrees(20))
	if err := forest.Train(X, y); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	mean, variance, err := forest.Predict([][]float64{{0.5}})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if math.Abs(mean[0]-2.0) > 0.5 {
		t.Errorf("expected prediction near 2.0, got %v", mean[0])
	}
	if variance[0] < 1e-10 {
		t.Errorf("expected variance floored at >= 1e-10, got %v", variance[0])
	}
}

func TestProbabilisticRandomForestRejectsPredictBeforeTrain(t *testing.T) {
	forest := NewProbabilisticRandomForest(1)
	if _, _, err := forest.Predict([][]float64{{0.1}}); err == nil {
		t.Errorf("expected error predicting before training")
	}
}

func TestGaussianProcessFitsLinearTrend(t *testing.T) {
	X, y := linearDataset(15)
	gp := NewGaussianProcess()
	if err := gp.Train(X, y); err != nil {
		t.Fatalf("Train() error = %v", err)
	}

	mean, variance, err := gp.Predict([][]float64{{0.5}})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if math.Abs(mean[0]-2.0) > 0.5 {
		t.Errorf("expected prediction near 2.0, got %v", mean[0])
	}
	if variance[0] < 1e-10 {
		t.Errorf("expected variance floored at >= 1e-10, got %v", variance[0])
	}
}

func TestCalculatePreservingOrderNum(t *testing.T) {
	yPred := []float64{1, 2, 3}
	yTrue := []float64{1, 2, 3}
	preserving, total := calculatePreservingOrderNum(yPred, yTrue)
	if preserving != total {
		t.Errorf("expected perfect order preservation, got %d/%d", preserving, total)
	}

	yPredReversed := []float64{3, 2, 1}
	preserving, total = calculatePreservingOrderNum(yPredReversed, yTrue)
	if preserving != 0 {
		t.Errorf("expected zero order preservation for reversed ranks, got %d/%d", preserving, total)
	}
}

func TestMFGPEWeightCalculatorNormalizesToOne(t *testing.T) {
	calc := NewMFGPEWeightCalculator()
	muList := [][]float64{{1, 2, 3}, {1, 2, 3}}
	varList := [][]float64{{1, 1, 1}, {1, 1, 1}}
	yTrue := []float64{1, 2, 3}

	w := calc.Calculate(muList, varList, yTrue, 2, CalculateOptions{})
	sum := w[0] + w[1]
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("expected weights to sum to 1, got %v", sum)
	}
}

func TestRGPEWeightCalculatorBasicSumsToOne(t *testing.T) {
	calc := NewRGPEWeightCalculator(rand.New(rand.NewSource(3)))
	muList := [][]float64{{1, 2, 3}, {3, 2, 1}}
	varList := [][]float64{{0.01, 0.01, 0.01}, {0.01, 0.01, 0.01}}
	yTrue := []float64{1, 2, 3}

	w := calc.Calculate(muList, varList, yTrue, 2, CalculateOptions{})
	sum := w[0] + w[1]
	if math.Abs(sum-1.0) > 1e-9 {
		t.Errorf("expected weights to sum to 1, got %v", sum)
	}
	if w[0] <= w[1] {
		t.Errorf("expected the perfectly rank-preserving task to get the larger weight, got %v vs %v", w[0], w[1])
	}
}

func TestKFoldSplitsCoversEveryIndexExactlyOnce(t *testing.T) {
	folds := kFoldSplits(11, 5)
	seen := make(map[int]bool)
	for _, fold := range folds {
		for _, idx := range fold {
			if seen[idx] {
				t.Fatalf("index %d appeared in more than one fold", idx)
			}
			seen[idx] = true
		}
	}
	if len(seen) != 11 {
		t.Errorf("expected all 11 indices covered, got %d", len(seen))
	}
}

func TestTransferLearningEnsembleDegeneratesWithoutSources(t *testing.T) {
	X, y := linearDataset(10)
	ensemble := NewTransferLearningEnsemble("prf", 1, nil)
	if err := ensemble.Train(X, y); err != nil {
		t.Fatalf("Train() error = %v", err)
	}
	mean, _, err := ensemble.Predict([][]float64{{0.5}})
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if len(mean) != 1 {
		t.Fatalf("expected one prediction, got %d", len(mean))
	}
}
