package evaluator

import (
	"context"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/partition"
)

// MockEvaluator generates synthetic objective values from a seeded RNG, so
// the engine is exercisable end-to-end without a real cluster. Grounded in
// the original's implied mock_executor.py (not itself in the retrieved
// pack's file list, but referenced by executor.py's MockExecutor import).
//
// The objective is a deterministic function of the configuration's
// normalized coordinates (a sum-of-squares bowl centered at 0.5 in every
// dimension of the normalized space) plus Gaussian noise, so runs with the same seed are
// reproducible and advisors can be exercised against a surrogate-shaped,
// non-trivial landscape instead of pure noise.
type MockEvaluator struct {
	Space     *configspace.ConfigSpace
	Noise     float64
	Latency   time.Duration
	mu        sync.Mutex
	rng       *rand.Rand
}

// NewMockEvaluator builds a MockEvaluator seeded for reproducibility.
func NewMockEvaluator(space *configspace.ConfigSpace, seed int64, noise float64) *MockEvaluator {
	return &MockEvaluator{Space: space, Noise: noise, rng: rand.New(rand.NewSource(seed))}
}

func (m *MockEvaluator) Evaluate(ctx context.Context, cfg *configspace.Configuration, resourceRatio float64, plan *partition.PlanResult) (Result, error) {
	if m.Latency > 0 {
		select {
		case <-time.After(m.Latency):
		case <-ctx.Done():
			return Result{}, ctx.Err()
		}
	}

	row := m.Space.NormalizedRow(cfg)
	var sumSquares float64
	for _, v := range row {
		d := v - 0.5
		sumSquares += d * d
	}

	m.mu.Lock()
	noise := m.rng.NormFloat64() * m.Noise
	m.mu.Unlock()

	// Lower resource ratios are noisier/cheaper proxies of the full-fidelity
	// objective, not a different objective entirely.
	fidelityNoise := 0.0
	if resourceRatio > 0 && resourceRatio < 1 {
		fidelityNoise = (1 - resourceRatio) * math.Abs(m.rng.NormFloat64()) * m.Noise
	}

	return Result{
		Objective:   sumSquares + noise + fidelityNoise,
		Timeout:     false,
		ElapsedTime: float64(m.Latency) / float64(time.Second),
	}, nil
}

// NoOpEvaluator always returns a zero-cost success, useful for smoke-testing
// the optimizer loop's control flow without caring about objective values.
type NoOpEvaluator struct{}

func (NoOpEvaluator) Evaluate(context.Context, *configspace.Configuration, float64, *partition.PlanResult) (Result, error) {
	return Result{Objective: 0, Timeout: false}, nil
}
