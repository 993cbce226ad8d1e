package acqoptimizer

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/wuhaolei455/mfbo-go/acquisition"
	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/history"
)

// Scored pairs a candidate configuration with its acquisition value.
type Scored struct {
	Score  float64
	Config *configspace.Configuration
}

// CompositeOptimizer selects a search strategy, generates a batch of
// candidates, scores all of them with the acquisition function, and returns
// the top-scoring subset.
type CompositeOptimizer struct {
	Acquisition         acquisition.Function
	Strategies          []Generator
	Selector            Selector
	Rng                 *rand.Rand
	CandidateMultiplier float64

	iterID int
}

// NewCompositeOptimizer returns an optimizer with the Python default
// candidate_multiplier of 3.0; selector defaults to FixedSelector(0) if nil.
func NewCompositeOptimizer(acq acquisition.Function, strategies []Generator, selector Selector, rng *rand.Rand) (*CompositeOptimizer, error) {
	if len(strategies) == 0 {
		return nil, fmt.Errorf("acqoptimizer: at least one strategy is required")
	}
	if selector == nil {
		selector = &FixedSelector{Index: 0}
	}
	return &CompositeOptimizer{
		Acquisition:         acq,
		Strategies:          strategies,
		Selector:            selector,
		Rng:                 rng,
		CandidateMultiplier: 3.0,
	}, nil
}

// Maximize returns up to numPoints (score, configuration) pairs, sorted by
// score descending.
func (o *CompositeOptimizer) Maximize(observations []history.Observation, numPoints int) ([]Scored, error) {
	strategy, err := o.Selector.Select(o.Strategies, o.iterID)
	if err != nil {
		return nil, err
	}

	prepared := o.prepareObservations(observations, strategy)
	nCandidates := int(float64(numPoints) * o.CandidateMultiplier)
	candidates := strategy.Generate(prepared, nCandidates, o.Rng)
	if len(candidates) == 0 {
		return nil, fmt.Errorf("acqoptimizer: strategy %T generated no candidates", strategy)
	}

	X := make([][]float64, len(candidates))
	for i, c := range candidates {
		X[i] = c.Space.NormalizedRow(c)
	}
	scores := o.Acquisition.Compute(X)

	indices := make([]int, len(candidates))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(a, b int) bool {
		return scores[indices[a]] > scores[indices[b]]
	})
	if numPoints > len(indices) {
		numPoints = len(indices)
	}

	results := make([]Scored, numPoints)
	for i := 0; i < numPoints; i++ {
		idx := indices[i]
		results[i] = Scored{Score: scores[idx], Config: candidates[idx]}
	}
	o.iterID++
	return results, nil
}

// prepareObservations sorts observations by acquisition value descending
// before handing them to a LocalSearchGenerator, so the optimizer's single
// scoring pass also determines local search's seed ordering — avoiding a
// duplicate acquisition evaluation.
func (o *CompositeOptimizer) prepareObservations(observations []history.Observation, strategy Generator) []history.Observation {
	if _, ok := strategy.(*LocalSearchGenerator); !ok || len(observations) == 0 {
		return observations
	}

	X := make([][]float64, len(observations))
	for i, obs := range observations {
		X[i] = obs.Config.Space.NormalizedRow(obs.Config)
	}
	scores := o.Acquisition.Compute(X)
	return sortObservationsByScore(observations, scores, o.Rng)
}

// Reset zeros the iteration counter and resets the selector's internal
// state (interleave/round-robin position, adaptive probabilities).
func (o *CompositeOptimizer) Reset() {
	o.iterID = 0
	o.Selector.Reset()
}
