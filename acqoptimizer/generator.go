// Package acqoptimizer turns a trained acquisition function into a ranked
// list of candidate configurations: search generators propose candidates,
// a strategy selector decides which generator runs on a given call, and the
// composite optimizer batch-scores and ranks the result.
package acqoptimizer

import (
	"math/rand"
	"sort"

	"github.com/wuhaolei455/mfbo-go/compressor"
	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/history"
)

// Generator proposes candidate configurations for a request of numPoints,
// optionally informed by the current observation history. RandomSearchGenerator
// asks its sampler for numPoints; LocalSearchGenerator returns up to
// 2*numPoints neighbors.
type Generator interface {
	Generate(observations []history.Observation, numPoints int, rng *rand.Rand) []*configspace.Configuration
}

// RandomSearchGenerator draws fresh samples from the compressor's sampling
// strategy, tagging them "Random Search".
type RandomSearchGenerator struct {
	Sampler compressor.Sampler
}

func (g *RandomSearchGenerator) Generate(observations []history.Observation, numPoints int, rng *rand.Rand) []*configspace.Configuration {
	configs := g.Sampler.Sample(numPoints)
	for _, c := range configs {
		c.Origin = "Random Search"
	}
	return configs
}

// LocalSearchGenerator enumerates one-exchange neighborhoods of the
// best-observed configurations, deduplicating candidates by canonical key.
// When no observations are available it falls back to random sampling.
type LocalSearchGenerator struct {
	Space          *configspace.ConfigSpace
	Sampler        compressor.Sampler
	MaxNeighbors   int
	NStartPoints   int
	RemoveDuplicates bool
}

// NewLocalSearchGenerator returns a generator with the Python defaults:
// 50 neighbors per start point, 10 start points, duplicates removed.
func NewLocalSearchGenerator(space *configspace.ConfigSpace, sampler compressor.Sampler) *LocalSearchGenerator {
	return &LocalSearchGenerator{
		Space:            space,
		Sampler:          sampler,
		MaxNeighbors:     50,
		NStartPoints:     10,
		RemoveDuplicates: true,
	}
}

func (g *LocalSearchGenerator) Generate(observations []history.Observation, numPoints int, rng *rand.Rand) []*configspace.Configuration {
	startPoints := g.startPoints(observations)
	if len(startPoints) == 0 {
		configs := g.Sampler.Sample(numPoints)
		for _, c := range configs {
			c.Origin = "Local Search (Random Fallback)"
		}
		return configs
	}

	var all []*configspace.Configuration
	for _, point := range startPoints {
		neighbors := g.Space.OneExchangeNeighbors(point, rng, g.maxPerParam())
		if len(neighbors) > g.MaxNeighbors {
			neighbors = neighbors[:g.MaxNeighbors]
		}
		all = append(all, neighbors...)
	}

	if g.RemoveDuplicates {
		all = dedupeByCanonicalKey(all)
	}
	for _, c := range all {
		c.Origin = "Local Search Neighbor"
	}

	targetSize := numPoints * 2
	if targetSize > len(all) {
		targetSize = len(all)
	}
	return all[:targetSize]
}

// maxPerParam spreads MaxNeighbors across dimensions; OneExchangeNeighbors
// budgets per-parameter, so a single generous per-parameter cap approximates
// the Python original's flat max_neighbors cut applied after enumeration.
func (g *LocalSearchGenerator) maxPerParam() int {
	n := len(g.Space.Parameters)
	if n == 0 {
		return g.MaxNeighbors
	}
	per := g.MaxNeighbors / n
	if per < 1 {
		per = 1
	}
	return per
}

func (g *LocalSearchGenerator) startPoints(observations []history.Observation) []*configspace.Configuration {
	n := g.NStartPoints
	if n > len(observations) {
		n = len(observations)
	}
	out := make([]*configspace.Configuration, n)
	for i := 0; i < n; i++ {
		out[i] = observations[i].Config
	}
	return out
}

func dedupeByCanonicalKey(configs []*configspace.Configuration) []*configspace.Configuration {
	seen := make(map[string]bool, len(configs))
	out := make([]*configspace.Configuration, 0, len(configs))
	for _, c := range configs {
		key := c.CanonicalKey()
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, c)
	}
	return out
}

// sortObservationsByScore returns a copy of observations sorted by score
// (computed by the caller) descending, with ties broken uniformly at
// random — the lexsort(random, acq) tie-break the maximize protocol calls
// for before handing observations to a local-search generator.
func sortObservationsByScore(observations []history.Observation, scores []float64, rng *rand.Rand) []history.Observation {
	indices := make([]int, len(observations))
	tieBreak := make([]float64, len(observations))
	for i := range indices {
		indices[i] = i
		tieBreak[i] = rng.Float64()
	}
	sort.Slice(indices, func(a, b int) bool {
		if scores[indices[a]] != scores[indices[b]] {
			return scores[indices[a]] > scores[indices[b]]
		}
		return tieBreak[indices[a]] > tieBreak[indices[b]]
	})
	out := make([]history.Observation, len(observations))
	for i, idx := range indices {
		out[i] = observations[idx]
	}
	return out
}
