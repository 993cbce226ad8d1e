package acqoptimizer

import (
	"math/rand"

	"github.com/wuhaolei455/mfbo-go/acquisition"
	"github.com/wuhaolei455/mfbo-go/compressor"
	"github.com/wuhaolei455/mfbo-go/configspace"
)

// NewLocalRandomOptimizer wires up the engine's default acquisition
// optimizer: local search and random search, chosen by a
// ProbabilisticSelector with rand_prob probability of falling back to
// random search.
func NewLocalRandomOptimizer(acq acquisition.Function, space *configspace.ConfigSpace, sampler compressor.Sampler, randProb float64, rng *rand.Rand) (*CompositeOptimizer, error) {
	local := NewLocalSearchGenerator(space, sampler)
	random := &RandomSearchGenerator{Sampler: sampler}

	selector := NewProbabilisticSelector([]float64{1 - randProb, randProb}, rng)

	return NewCompositeOptimizer(acq, []Generator{local, random}, selector, rng)
}
