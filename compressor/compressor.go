// Package compressor projects a high-dimensional configuration space down to
// a lower-dimensional surrogate space (and a possibly different sample
// space) that the advisor's surrogate models train and search in. A
// Compressor that reports no shape change lets the advisor skip rebuilding
// its models.
package compressor

import (
	"math/rand"

	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/history"
)

// Sampler draws configurations from a space, matching the external
// interface's get_sampling_strategy() contract.
type Sampler interface {
	Sample(n int) []*configspace.Configuration
}

// Compressor is the external interface the advisor consumes to decouple its
// surrogate training/search space from the user-declared configuration
// space.
type Compressor interface {
	// CompressSpace returns the (possibly lower-dimensional) surrogate space
	// surrogates train on and the sample space the acquisition optimizer
	// searches. spaceHistory and sourceSimilarities may be nil when no
	// accumulated signal is available yet.
	CompressSpace(spaceHistory *history.History, sourceSimilarities []history.SimilarityEntry) (surrogateSpace, sampleSpace *configspace.ConfigSpace)

	// GetSamplingStrategy returns a sampler over the current sample space.
	GetSamplingStrategy(rng *rand.Rand) Sampler

	// NeedsUnproject reports whether candidates drawn in the sample space
	// must be mapped back to the original space before being returned to a
	// caller.
	NeedsUnproject() bool

	// UnprojectPoints maps sample-space configurations back to the original
	// space. A no-op compressor returns its input unchanged.
	UnprojectPoints(configs []*configspace.Configuration) []*configspace.Configuration

	// ProjectPoint maps an original-space configuration into the sample
	// space.
	ProjectPoint(cfg *configspace.Configuration) *configspace.Configuration

	// ConvertConfigToSurrogateSpace maps an original-space configuration
	// into surrogate-space feature values, in surrogate-space parameter
	// order.
	ConvertConfigToSurrogateSpace(cfg *configspace.Configuration) []float64

	// TransformSourceData maps source-task histories' configurations into
	// surrogate-space feature rows, one slice of rows per source history.
	TransformSourceData(sourceHistories []*history.History) [][][]float64

	// UpdateCompression inspects accumulated target observations and may
	// rebuild the surrogate/sample spaces. Returns true iff the space shape
	// changed, signaling the advisor must retrain from scratch.
	UpdateCompression(h *history.History) bool
}

// Identity is the default, no-op Compressor: surrogate space and sample
// space are both the original configuration space, and nothing is ever
// projected.
type Identity struct {
	Space *configspace.ConfigSpace
}

// NewIdentity returns a Compressor that performs no dimensionality
// reduction, used whenever the declarative schema is already small enough
// to search directly.
func NewIdentity(space *configspace.ConfigSpace) *Identity {
	return &Identity{Space: space}
}

func (c *Identity) CompressSpace(*history.History, []history.SimilarityEntry) (*configspace.ConfigSpace, *configspace.ConfigSpace) {
	return c.Space, c.Space
}

func (c *Identity) GetSamplingStrategy(rng *rand.Rand) Sampler {
	return &uniformSampler{space: c.Space, rng: rng}
}

func (c *Identity) NeedsUnproject() bool { return false }

func (c *Identity) UnprojectPoints(configs []*configspace.Configuration) []*configspace.Configuration {
	return configs
}

func (c *Identity) ProjectPoint(cfg *configspace.Configuration) *configspace.Configuration {
	return cfg
}

func (c *Identity) ConvertConfigToSurrogateSpace(cfg *configspace.Configuration) []float64 {
	return c.Space.NormalizedRow(cfg)
}

func (c *Identity) TransformSourceData(sourceHistories []*history.History) [][][]float64 {
	out := make([][][]float64, len(sourceHistories))
	for i, h := range sourceHistories {
		rows := make([][]float64, 0, h.Len())
		for _, obs := range h.Observations() {
			rows = append(rows, c.Space.NormalizedRow(obs.Config))
		}
		out[i] = rows
	}
	return out
}

func (c *Identity) UpdateCompression(*history.History) bool {
	return false
}

type uniformSampler struct {
	space *configspace.ConfigSpace
	rng   *rand.Rand
}

func (s *uniformSampler) Sample(n int) []*configspace.Configuration {
	return s.space.Sample(s.rng, n, nil)
}
