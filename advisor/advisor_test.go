package advisor

import (
	"strings"
	"testing"

	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/history"
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

func TestBOSampleDuringInitPhaseReturnsRandomBatch(t *testing.T) {
	space := testSpace(t)
	bo, err := NewBO(space, "target", WithSeed(1), WithInitNum(3))
	if err != nil {
		t.Fatalf("NewBO() error = %v", err)
	}

	batch, err := bo.Sample(2)
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected batch of 2, got %d", len(batch))
	}
	for _, cfg := range batch {
		if cfg.Origin != "BO Warm Start Random Sample" {
			t.Errorf("expected random-sample origin tag, got %q", cfg.Origin)
		}
	}
}

func TestBOWarmStartDrawsFromSourceHistory(t *testing.T) {
	space := testSpace(t)
	source := history.NewHistory("source-1", space)
	for i := 0; i < 3; i++ {
		cfg := space.DefaultConfiguration().Clone()
		cfg.Set("x", i)
		source.Append(history.NewObservation(cfg, float64(10-i), false, "", 1.0, history.ExtraInfo{}))
	}

	bo, err := NewBO(space, "target",
		WithSeed(1),
		WithInitNum(2),
		WithWSStrategy("best_all"),
		WithTLStrategy("best_all"),
		WithSourceHistories([]*history.History{source}),
		WithSimilarities([]history.SimilarityEntry{{SourceIndex: 0, Similarity: 0.9}}, 0),
		WithWSTopK(1),
	)
	if err != nil {
		t.Fatalf("NewBO() error = %v", err)
	}

	bo.WarmStart()
	if len(bo.iniConfigs) == 0 {
		t.Fatalf("expected warm start to populate ini configs")
	}
	top := bo.iniConfigs[len(bo.iniConfigs)-1]
	if !strings.Contains(top.Origin, "best_all_source-1") {
		t.Errorf("expected origin tagged with source task id, got %q", top.Origin)
	}
}

func TestBOUpdateIsNoOpWhenUpdateFalse(t *testing.T) {
	space := testSpace(t)
	bo, err := NewBO(space, "target", WithSeed(1))
	if err != nil {
		t.Fatalf("NewBO() error = %v", err)
	}

	cfg := space.DefaultConfiguration()
	bo.Update(cfg, 1.0, false, "", 1.0, history.ExtraInfo{}, 1.0, false)
	if bo.History.Len() != 0 {
		t.Errorf("expected no history mutation when update=false, got %d observations", bo.History.Len())
	}
}

func TestBOSamplePostInitTrainsSurrogateAndReturnsBatch(t *testing.T) {
	space := testSpace(t)
	bo, err := NewBO(space, "target", WithSeed(2), WithInitNum(1))
	if err != nil {
		t.Fatalf("NewBO() error = %v", err)
	}

	for i := 0; i < 2; i++ {
		cfg := space.DefaultConfiguration().Clone()
		cfg.Set("x", i+2)
		bo.Update(cfg, float64(i), false, "", 1.0, history.ExtraInfo{}, 1.0, true)
	}

	batch, err := bo.Sample(2)
	if err != nil {
		t.Fatalf("Sample() error = %v", err)
	}
	if len(batch) != 2 {
		t.Fatalf("expected batch of 2, got %d", len(batch))
	}
}

func TestMFBOUpdateRoutesByResourceRatio(t *testing.T) {
	space := testSpace(t)
	mfbo, err := NewMFBO(space, "target", WithSeed(1))
	if err != nil {
		t.Fatalf("NewMFBO() error = %v", err)
	}

	cfg := space.DefaultConfiguration()
	mfbo.Update(cfg, 1.0, false, "", 1.0, history.ExtraInfo{}, 0.5, true)
	if mfbo.History.Len() != 0 {
		t.Errorf("expected main history untouched for resource_ratio != 1, got %d", mfbo.History.Len())
	}
	h, ok := mfbo.ResourceHistory(0.5)
	if !ok || h.Len() != 1 {
		t.Fatalf("expected sub-resource history with 1 observation, ok=%v", ok)
	}
	if idx := mfbo.GetResourceIndex(0.5); idx != 0 {
		t.Errorf("GetResourceIndex(0.5) = %d, want 0", idx)
	}

	mfbo.Update(cfg, 2.0, false, "", 1.0, history.ExtraInfo{}, 1.0, true)
	if mfbo.History.Len() != 1 {
		t.Errorf("expected main history to record the resource_ratio=1 observation")
	}
}

func TestMFBOUpdateIsNoOpWhenUpdateFalse(t *testing.T) {
	space := testSpace(t)
	mfbo, err := NewMFBO(space, "target", WithSeed(1))
	if err != nil {
		t.Fatalf("NewMFBO() error = %v", err)
	}

	cfg := space.DefaultConfiguration()
	mfbo.Update(cfg, 1.0, false, "", 1.0, history.ExtraInfo{}, 0.5, false)
	if mfbo.History.Len() != 0 {
		t.Errorf("expected no main history mutation")
	}
	if _, ok := mfbo.ResourceHistory(0.5); ok {
		t.Errorf("expected no sub-resource history to be created when update=false")
	}
}

func TestMinInt(t *testing.T) {
	if got := minInt(3, 1, 2); got != 1 {
		t.Errorf("minInt(3, 1, 2) = %d, want 1", got)
	}
}
