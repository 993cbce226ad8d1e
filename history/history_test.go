package history

import (
	"math"
	"testing"

	"github.com/wuhaolei455/mfbo-go/configspace"
)

func testSpace(t *testing.T) *configspace.ConfigSpace {
	t.Helper()
	cs, err := configspace.NewConfigSpace(configspace.Schema{
		"x": {Type: "integer", Min: f(0), Max: f(10), Default: float64(1)},
	})
	if err != nil {
		t.Fatalf("NewConfigSpace() error = %v", err)
	}
	return cs
}

func f(v float64) *float64 { return &v }

func TestNewObservationClassification(t *testing.T) {
	tests := []struct {
		name      string
		timeout   bool
		traceback string
		objective float64
		wantState TrialState
		wantInf   bool
	}{
		{name: "success", objective: 1.5, wantState: TrialSuccess, wantInf: false},
		{name: "timeout", timeout: true, objective: 1.5, wantState: TrialTimeout, wantInf: true},
		{name: "failed", traceback: "boom", objective: 1.5, wantState: TrialFailed, wantInf: true},
	}

	cs := testSpace(t)
	cfg := cs.DefaultConfiguration()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := NewObservation(cfg, tt.objective, tt.timeout, tt.traceback, 1.0, ExtraInfo{})
			if obs.TrialState != tt.wantState {
				t.Errorf("TrialState = %v, want %v", obs.TrialState, tt.wantState)
			}
			if math.IsInf(obs.Objective, 1) != tt.wantInf {
				t.Errorf("Objective inf = %v, want %v", math.IsInf(obs.Objective, 1), tt.wantInf)
			}
		})
	}
}

func TestHistoryGetIncumbentValue(t *testing.T) {
	cs := testSpace(t)
	h := NewHistory("task-1", cs)

	if !math.IsInf(h.GetIncumbentValue(), 1) {
		t.Fatalf("expected +Inf incumbent on empty history")
	}

	cfg := cs.DefaultConfiguration()
	h.Append(NewObservation(cfg, 3.0, false, "", 1.0, ExtraInfo{}))
	h.Append(NewObservation(cfg, 1.0, false, "", 1.0, ExtraInfo{}))
	h.Append(NewObservation(cfg, math.Inf(1), true, "", 1.0, ExtraInfo{}))

	if got := h.GetIncumbentValue(); got != 1.0 {
		t.Errorf("GetIncumbentValue() = %v, want 1.0", got)
	}
	if !h.HasIncumbent() {
		t.Errorf("expected HasIncumbent() true")
	}
}

func TestHistoryGetObjectivesInfeasibleTransform(t *testing.T) {
	cs := testSpace(t)
	h := NewHistory("task-1", cs)
	cfg := cs.DefaultConfiguration()
	h.Append(NewObservation(cfg, math.Inf(1), true, "", 1.0, ExtraInfo{}))

	raw := h.GetObjectives(TransformNone)
	if !math.IsInf(raw[0], 1) {
		t.Errorf("expected raw objective to remain +Inf, got %v", raw[0])
	}

	transformed := h.GetObjectives(TransformInfeasible)
	if transformed[0] != InfeasiblePenalty {
		t.Errorf("expected infeasible penalty %v, got %v", InfeasiblePenalty, transformed[0])
	}
}

func TestHistoryContainsConfig(t *testing.T) {
	cs := testSpace(t)
	h := NewHistory("task-1", cs)
	cfg := cs.DefaultConfiguration()
	h.Append(NewObservation(cfg, 1.0, false, "", 1.0, ExtraInfo{}))

	if !h.ContainsConfig(cfg.Clone()) {
		t.Errorf("expected ContainsConfig to match an equivalent clone")
	}

	other := cfg.Clone()
	other.Set("x", 9)
	if h.ContainsConfig(other) {
		t.Errorf("expected ContainsConfig to reject a differing configuration")
	}
}

func TestSimilarityCacheUpdateSortsAndTruncates(t *testing.T) {
	c := &SimilarityCache{Threshold: 0.3}
	c.Update([]SimilarityEntry{
		{SourceIndex: 0, Similarity: 0.1},
		{SourceIndex: 1, Similarity: 0.9},
		{SourceIndex: 2, Similarity: 0.5},
	})

	if len(c.Entries) != 2 {
		t.Fatalf("expected 2 entries above threshold, got %d", len(c.Entries))
	}
	if c.Entries[0].SourceIndex != 1 || c.Entries[1].SourceIndex != 2 {
		t.Errorf("expected descending order [1,2], got %+v", c.Entries)
	}
}
