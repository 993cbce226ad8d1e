package compressor

import (
	"math/rand"
	"testing"

	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/history"
)

func testSpace(t *testing.T) *configspace.ConfigSpace {
	t.Helper()
	min, max := 0.0, 10.0
	cs, err := configspace.NewConfigSpace(configspace.Schema{
		"x": {Type: "integer", Min: &min, Max: &max, Default: float64(1)},
	})
	if err != nil {
		t.Fatalf("NewConfigSpace() error = %v", err)
	}
	return cs
}

func TestIdentityCompressSpaceReturnsSameSpace(t *testing.T) {
	space := testSpace(t)
	c := NewIdentity(space)

	surrogate, sample := c.CompressSpace(nil, nil)
	if surrogate != space || sample != space {
		t.Errorf("expected identity compressor to return the original space unchanged")
	}
}

func TestIdentityProjectUnprojectRoundTrip(t *testing.T) {
	space := testSpace(t)
	c := NewIdentity(space)
	cfg := space.DefaultConfiguration()

	projected := c.ProjectPoint(cfg)
	unprojected := c.UnprojectPoints([]*configspace.Configuration{projected})

	if len(unprojected) != 1 || !unprojected[0].Equal(cfg) {
		t.Errorf("expected project/unproject round trip to be lossless for the identity compressor")
	}
	if c.NeedsUnproject() {
		t.Errorf("identity compressor should not require unprojection")
	}
}

func TestIdentityUpdateCompressionNeverTriggersRefit(t *testing.T) {
	space := testSpace(t)
	c := NewIdentity(space)
	h := history.NewHistory("task-1", space)
	h.Append(history.NewObservation(space.DefaultConfiguration(), 1.0, false, "", 1.0, history.ExtraInfo{}))

	if c.UpdateCompression(h) {
		t.Errorf("expected identity compressor to never report a shape change")
	}
}

func TestIdentitySamplingStrategyProducesConfigs(t *testing.T) {
	space := testSpace(t)
	c := NewIdentity(space)
	rng := rand.New(rand.NewSource(1))

	sampler := c.GetSamplingStrategy(rng)
	configs := sampler.Sample(3)
	if len(configs) != 3 {
		t.Fatalf("expected 3 sampled configurations, got %d", len(configs))
	}
}
