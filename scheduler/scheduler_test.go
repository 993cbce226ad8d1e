package scheduler

import (
	"math"
	"testing"

	"github.com/wuhaolei455/mfbo-go/configspace"
)

func approxEqual(a, b, tol float64) bool { return math.Abs(a-b) <= tol }

func TestBOHBBracketsAndStages(t *testing.T) {
	s, err := NewBOHBScheduler(9, 3, 1)
	if err != nil {
		t.Fatalf("NewBOHBScheduler() error = %v", err)
	}

	tests := []struct {
		iter       int
		wantS      int
		wantStages [][2]int
	}{
		{0, 2, [][2]int{{9, 1}, {3, 3}, {1, 9}}},
		{1, 1, [][2]int{{5, 3}, {1, 9}}},
		{2, 0, [][2]int{{3, 9}}},
	}

	for _, tc := range tests {
		bracket := s.GetBracketIndex(tc.iter)
		if bracket != tc.wantS {
			t.Fatalf("iter %d: GetBracketIndex() = %d, want %d", tc.iter, bracket, tc.wantS)
		}
		for stage, want := range tc.wantStages {
			nConfigs, nResource, err := s.GetStageParams(bracket, stage)
			if err != nil {
				t.Fatalf("GetStageParams(%d, %d) error = %v", bracket, stage, err)
			}
			if nConfigs != want[0] || nResource != want[1] {
				t.Errorf("GetStageParams(s=%d, stage=%d) = (%d, %d), want (%d, %d)", bracket, stage, nConfigs, nResource, want[0], want[1])
			}
		}
	}
}

func TestBOHBResourceRatios(t *testing.T) {
	s, err := NewBOHBScheduler(9, 3, 1)
	if err != nil {
		t.Fatalf("NewBOHBScheduler() error = %v", err)
	}
	levels := s.GetFidelityLevels()
	want := []float64{0.11111, 0.33333, 1.0}
	if len(levels) != len(want) {
		t.Fatalf("GetFidelityLevels() = %v, want %v", levels, want)
	}
	for i, w := range want {
		if !approxEqual(levels[i], w, 1e-5) {
			t.Errorf("GetFidelityLevels()[%d] = %v, want %v", i, levels[i], w)
		}
	}

	if got := s.CalculateResourceRatio(1); !approxEqual(got, 0.11111, 1e-5) {
		t.Errorf("CalculateResourceRatio(1) = %v, want 0.11111", got)
	}
	if got := s.CalculateResourceRatio(9); got != 1.0 {
		t.Errorf("CalculateResourceRatio(9) = %v, want 1.0", got)
	}
}

func TestBOHBShouldUpdateHistory(t *testing.T) {
	s, err := NewBOHBScheduler(9, 3, 1)
	if err != nil {
		t.Fatalf("NewBOHBScheduler() error = %v", err)
	}
	if s.ShouldUpdateHistory(0.33333) {
		t.Errorf("expected sub-fidelity ratio to not update main history")
	}
	if !s.ShouldUpdateHistory(1.0) {
		t.Errorf("expected full-fidelity ratio to update main history")
	}
}

func TestMFESAlwaysUpdatesHistory(t *testing.T) {
	s, err := NewMFESFidelityScheduler(9, 3, 1)
	if err != nil {
		t.Fatalf("NewMFESFidelityScheduler() error = %v", err)
	}
	if !s.ShouldUpdateHistory(0.33333) {
		t.Errorf("expected MFES to always report true")
	}
	if !s.ShouldUpdateHistory(1.0) {
		t.Errorf("expected MFES to always report true")
	}
}

func TestFixedFidelityScheduler(t *testing.T) {
	s, err := NewFixedFidelityScheduler(4)
	if err != nil {
		t.Fatalf("NewFixedFidelityScheduler() error = %v", err)
	}
	if s.GetBracketIndex(7) != 0 {
		t.Errorf("expected bracket index 0 always")
	}
	nConfigs, nResource, err := s.GetStageParams(0, 0)
	if err != nil || nConfigs != 4 || nResource != 1 {
		t.Fatalf("GetStageParams(0,0) = (%d, %d, %v), want (4, 1, nil)", nConfigs, nResource, err)
	}
	if _, _, err := s.GetStageParams(1, 0); err == nil {
		t.Errorf("expected error for out-of-range bracket")
	}
	if s.CalculateResourceRatio(1) != 1.0 {
		t.Errorf("expected ratio 1.0 always")
	}
	if !s.ShouldUpdateHistory(1.0) {
		t.Errorf("expected full-fidelity scheduler to always update history")
	}
}

func TestEliminateCandidatesStableSortAscending(t *testing.T) {
	space := testSpace(t)
	perfs := []float64{5, 3, 8, 1, 9, 2, 4, 6, 7}
	configs := make([]*configspace.Configuration, len(perfs))
	for i := range configs {
		configs[i] = space.DefaultConfiguration().Clone()
		configs[i].Set("x", i)
	}

	s, err := NewBOHBScheduler(9, 3, 1)
	if err != nil {
		t.Fatalf("NewBOHBScheduler() error = %v", err)
	}

	kept, keptPerfs, err := s.EliminateCandidates(configs, perfs, 0, 0)
	if err != nil {
		t.Fatalf("EliminateCandidates() error = %v", err)
	}
	want := []float64{1, 2, 3}
	if len(keptPerfs) != len(want) {
		t.Fatalf("kept %d perfs, want %d", len(keptPerfs), len(want))
	}
	for i, w := range want {
		if keptPerfs[i] != w {
			t.Errorf("keptPerfs[%d] = %v, want %v", i, keptPerfs[i], w)
		}
	}
	if len(kept) != len(want) {
		t.Errorf("expected %d configs kept, got %d", len(want), len(kept))
	}
}

func TestBOHBConstructorRejectsInvalidParams(t *testing.T) {
	if _, err := NewBOHBScheduler(0, 3, 1); err == nil {
		t.Errorf("expected ConfigurationError for R=0")
	}
	if _, err := NewBOHBScheduler(9, 1, 1); err == nil {
		t.Errorf("expected ConfigurationError for eta<=1")
	}
	if _, err := NewBOHBScheduler(9, 3, 0); err == nil {
		t.Errorf("expected ConfigurationError for num_nodes=0")
	}
}

func testSpace(t *testing.T) *configspace.ConfigSpace {
	t.Helper()
	min, max := 0.0, 100.0
	cs, err := configspace.NewConfigSpace(configspace.Schema{
		"x": {Type: "integer", Min: &min, Max: &max, Default: float64(1)},
	})
	if err != nil {
		t.Fatalf("NewConfigSpace() error = %v", err)
	}
	return cs
}
