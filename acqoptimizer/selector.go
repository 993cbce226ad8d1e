package acqoptimizer

import (
	"fmt"
	"math"
	"math/rand"
)

// Selector picks which Generator runs on a given maximize() call.
type Selector interface {
	Select(generators []Generator, iteration int) (Generator, error)
	Reset()
}

// FixedSelector always returns the generator at a fixed index.
type FixedSelector struct {
	Index int
}

func (s *FixedSelector) Select(generators []Generator, iteration int) (Generator, error) {
	if s.Index >= len(generators) {
		return nil, fmt.Errorf("acqoptimizer: fixed index %d out of range for %d strategies", s.Index, len(generators))
	}
	return generators[s.Index], nil
}

func (s *FixedSelector) Reset() {}

// ProbabilisticSelector draws a generator according to a fixed probability
// distribution on every call — e.g. [0.85, 0.15] for 85% local search, 15%
// random search.
type ProbabilisticSelector struct {
	Probabilities []float64
	Rng           *rand.Rand
}

// NewProbabilisticSelector normalizes probabilities to sum to 1 if they
// don't already.
func NewProbabilisticSelector(probabilities []float64, rng *rand.Rand) *ProbabilisticSelector {
	sum := 0.0
	for _, p := range probabilities {
		sum += p
	}
	normalized := probabilities
	if sum > 0 && (sum > 1.000001 || sum < 0.999999) {
		normalized = make([]float64, len(probabilities))
		for i, p := range probabilities {
			normalized[i] = p / sum
		}
	}
	return &ProbabilisticSelector{Probabilities: normalized, Rng: rng}
}

func (s *ProbabilisticSelector) Select(generators []Generator, iteration int) (Generator, error) {
	if len(generators) != len(s.Probabilities) {
		return nil, fmt.Errorf("acqoptimizer: %d strategies but %d probabilities", len(generators), len(s.Probabilities))
	}
	r := s.Rng.Float64()
	cumulative := 0.0
	for i, p := range s.Probabilities {
		cumulative += p
		if r < cumulative {
			return generators[i], nil
		}
	}
	return generators[len(generators)-1], nil
}

func (s *ProbabilisticSelector) Reset() {}

// RoundRobinSelector cycles through generators in order, one per call.
type RoundRobinSelector struct {
	counter int
}

func (s *RoundRobinSelector) Select(generators []Generator, iteration int) (Generator, error) {
	if len(generators) == 0 {
		return nil, fmt.Errorf("acqoptimizer: no strategies configured")
	}
	idx := s.counter % len(generators)
	s.counter++
	return generators[idx], nil
}

func (s *RoundRobinSelector) Reset() { s.counter = 0 }

// InterleavedSelector cycles through generators with fixed integer weights,
// e.g. [4, 1] means 4 calls out of every 5 select generator 0.
type InterleavedSelector struct {
	Weights []int
	total   int
	counter int
}

// NewInterleavedSelector precomputes the weight total; all weights must be
// positive.
func NewInterleavedSelector(weights []int) (*InterleavedSelector, error) {
	total := 0
	for _, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("acqoptimizer: interleaved selector weights must be positive, got %v", weights)
		}
		total += w
	}
	return &InterleavedSelector{Weights: weights, total: total}, nil
}

func (s *InterleavedSelector) Select(generators []Generator, iteration int) (Generator, error) {
	if len(generators) != len(s.Weights) {
		return nil, fmt.Errorf("acqoptimizer: %d strategies but %d weights", len(generators), len(s.Weights))
	}
	position := s.counter % s.total
	cumulative := 0
	for i, w := range s.Weights {
		cumulative += w
		if position < cumulative {
			s.counter++
			return generators[i], nil
		}
	}
	s.counter++
	return generators[0], nil
}

func (s *InterleavedSelector) Reset() { s.counter = 0 }

// AdaptiveSelector adjusts selection probabilities toward generators that
// have historically produced larger rewards (e.g. incumbent improvement),
// softened by a temperature parameter.
type AdaptiveSelector struct {
	Probs          []float64
	LearningRate   float64
	Temperature    float64
	Rng            *rand.Rand

	rewards []float64
	counts  []float64
	last    int
}

// NewAdaptiveSelector returns a selector with the Python defaults:
// learning rate 0.1, temperature 1.0.
func NewAdaptiveSelector(initialProbs []float64, rng *rand.Rand) *AdaptiveSelector {
	sum := 0.0
	for _, p := range initialProbs {
		sum += p
	}
	probs := append([]float64(nil), initialProbs...)
	if sum > 0 {
		for i := range probs {
			probs[i] /= sum
		}
	}
	return &AdaptiveSelector{
		Probs:        probs,
		LearningRate: 0.1,
		Temperature:  1.0,
		Rng:          rng,
		rewards:      make([]float64, len(initialProbs)),
		counts:       make([]float64, len(initialProbs)),
		last:         -1,
	}
}

func (s *AdaptiveSelector) Select(generators []Generator, iteration int) (Generator, error) {
	if len(generators) != len(s.Probs) {
		return nil, fmt.Errorf("acqoptimizer: %d strategies but %d probabilities", len(generators), len(s.Probs))
	}
	temp := s.applyTemperature()
	r := s.Rng.Float64()
	cumulative := 0.0
	idx := len(generators) - 1
	for i, p := range temp {
		cumulative += p
		if r < cumulative {
			idx = i
			break
		}
	}
	s.last = idx
	s.counts[idx]++
	return generators[idx], nil
}

// Update records a reward observation for the generator at strategyIndex and
// nudges its selection probability upward (or downward, for a negative
// reward), renormalizing and flooring every probability at 0.01.
func (s *AdaptiveSelector) Update(strategyIndex int, reward float64) {
	s.rewards[strategyIndex] += reward
	count := s.counts[strategyIndex]
	if count < 1 {
		count = 1
	}
	avgReward := s.rewards[strategyIndex] / count

	s.Probs[strategyIndex] += s.LearningRate * avgReward
	sum := 0.0
	for i := range s.Probs {
		if s.Probs[i] < 0.01 {
			s.Probs[i] = 0.01
		}
		sum += s.Probs[i]
	}
	for i := range s.Probs {
		s.Probs[i] /= sum
	}
}

func (s *AdaptiveSelector) applyTemperature() []float64 {
	if s.Temperature == 1.0 {
		return s.Probs
	}
	logProbs := make([]float64, len(s.Probs))
	maxScaled := math.Inf(-1)
	for i, p := range s.Probs {
		lp := math.Log(p + 1e-10)
		scaled := lp / s.Temperature
		logProbs[i] = scaled
		if scaled > maxScaled {
			maxScaled = scaled
		}
	}
	out := make([]float64, len(logProbs))
	sum := 0.0
	for i, v := range logProbs {
		out[i] = math.Exp(v - maxScaled)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

func (s *AdaptiveSelector) Reset() {
	n := len(s.Probs)
	for i := 0; i < n; i++ {
		s.Probs[i] = 1.0 / float64(n)
		s.rewards[i] = 0
		s.counts[i] = 0
	}
	s.last = -1
}
