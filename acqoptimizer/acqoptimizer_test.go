package acqoptimizer

import (
	"math/rand"
	"testing"

	"github.com/wuhaolei455/mfbo-go/compressor"
	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/history"
	"github.com/wuhaolei455/mfbo-go/surrogate"
)

func testSpace(t *testing.T) *configspace.ConfigSpace {
	t.Helper()
	min, max := 0.0, 10.0
	cs, err := configspace.NewConfigSpace(configspace.Schema{
		"x": {Type: "integer", Min: &min, Max: &max, Default: float64(1)},
		"y": {Type: "integer", Min: &min, Max: &max, Default: float64(1)},
	})
	if err != nil {
		t.Fatalf("NewConfigSpace() error = %v", err)
	}
	return cs
}

type constantAcquisition struct {
	value float64
}

func (a *constantAcquisition) Update(surrogate.AcquisitionContext) {}
func (a *constantAcquisition) Compute(X [][]float64) []float64 {
	out := make([]float64, len(X))
	for i := range out {
		out[i] = a.value
	}
	return out
}

func TestRandomSearchGeneratorTagsOrigin(t *testing.T) {
	space := testSpace(t)
	sampler := compressor.NewIdentity(space).GetSamplingStrategy(rand.New(rand.NewSource(1)))
	gen := &RandomSearchGenerator{Sampler: sampler}

	configs := gen.Generate(nil, 5, rand.New(rand.NewSource(1)))
	if len(configs) != 5 {
		t.Fatalf("expected 5 candidates, got %d", len(configs))
	}
	for _, c := range configs {
		if c.Origin != "Random Search" {
			t.Errorf("expected Origin=Random Search, got %q", c.Origin)
		}
	}
}

func TestLocalSearchGeneratorFallsBackWithoutObservations(t *testing.T) {
	space := testSpace(t)
	sampler := compressor.NewIdentity(space).GetSamplingStrategy(rand.New(rand.NewSource(1)))
	gen := NewLocalSearchGenerator(space, sampler)

	configs := gen.Generate(nil, 3, rand.New(rand.NewSource(1)))
	if len(configs) != 3 {
		t.Fatalf("expected fallback to produce 3 candidates, got %d", len(configs))
	}
	for _, c := range configs {
		if c.Origin != "Local Search (Random Fallback)" {
			t.Errorf("expected fallback origin tag, got %q", c.Origin)
		}
	}
}

func TestLocalSearchGeneratorExploresNeighbors(t *testing.T) {
	space := testSpace(t)
	sampler := compressor.NewIdentity(space).GetSamplingStrategy(rand.New(rand.NewSource(1)))
	gen := NewLocalSearchGenerator(space, sampler)

	obs := []history.Observation{
		history.NewObservation(space.DefaultConfiguration(), 1.0, false, "", 1.0, history.ExtraInfo{}),
	}
	configs := gen.Generate(obs, 4, rand.New(rand.NewSource(2)))
	if len(configs) == 0 {
		t.Fatalf("expected at least one neighbor candidate")
	}
	for _, c := range configs {
		if c.Origin != "Local Search Neighbor" {
			t.Errorf("expected Origin=Local Search Neighbor, got %q", c.Origin)
		}
	}
}

func TestRoundRobinSelectorCycles(t *testing.T) {
	s := &RoundRobinSelector{}
	gens := []Generator{&RandomSearchGenerator{}, &RandomSearchGenerator{}, &RandomSearchGenerator{}}

	var picks []int
	for i := 0; i < 6; i++ {
		g, err := s.Select(gens, i)
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		for idx, candidate := range gens {
			if candidate == g {
				picks = append(picks, idx)
			}
		}
	}
	want := []int{0, 1, 2, 0, 1, 2}
	for i := range want {
		if picks[i] != want[i] {
			t.Errorf("pick[%d] = %d, want %d", i, picks[i], want[i])
		}
	}
}

func TestInterleavedSelectorRespectsWeights(t *testing.T) {
	s, err := NewInterleavedSelector([]int{4, 1})
	if err != nil {
		t.Fatalf("NewInterleavedSelector() error = %v", err)
	}
	local := &RandomSearchGenerator{}
	random := &RandomSearchGenerator{}
	gens := []Generator{local, random}

	randomCount := 0
	for i := 0; i < 10; i++ {
		g, err := s.Select(gens, i)
		if err != nil {
			t.Fatalf("Select() error = %v", err)
		}
		if g == random {
			randomCount++
		}
	}
	if randomCount != 2 {
		t.Errorf("expected exactly 2 of 10 picks to select the random strategy, got %d", randomCount)
	}
}

func TestCompositeOptimizerMaximizeReturnsSortedTopK(t *testing.T) {
	space := testSpace(t)
	rng := rand.New(rand.NewSource(1))
	sampler := compressor.NewIdentity(space).GetSamplingStrategy(rng)
	random := &RandomSearchGenerator{Sampler: sampler}

	opt, err := NewCompositeOptimizer(&constantAcquisition{value: 1.0}, []Generator{random}, &FixedSelector{Index: 0}, rng)
	if err != nil {
		t.Fatalf("NewCompositeOptimizer() error = %v", err)
	}

	results, err := opt.Maximize(nil, 3)
	if err != nil {
		t.Fatalf("Maximize() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i := 1; i < len(results); i++ {
		if results[i].Score > results[i-1].Score {
			t.Errorf("expected results sorted by score descending")
		}
	}
}
