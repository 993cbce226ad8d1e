package manager

import (
	"log/slog"
	"testing"

	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/history"
	"github.com/wuhaolei455/mfbo-go/partition"
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

type stubScheduler struct{}

func (stubScheduler) GetBracketIndex(int) int                          { return 0 }
func (stubScheduler) GetStageParams(int, int) (int, int, error)        { return 1, 1, nil }
func (stubScheduler) CalculateResourceRatio(int) float64               { return 1.0 }
func (stubScheduler) GetEliminationCount(int, int) (int, error)        { return 1, nil }
func (stubScheduler) EliminateCandidates(cfgs []*configspace.Configuration, perfs []float64, s, stage int) ([]*configspace.Configuration, []float64, error) {
	return cfgs, perfs, nil
}
func (stubScheduler) GetFidelityLevels() []float64    { return []float64{1.0} }
func (stubScheduler) ShouldUpdateHistory(float64) bool { return true }
func (stubScheduler) NumNodes() int                    { return 1 }

func TestNewTaskManagerStartsEmpty(t *testing.T) {
	space := testSpace(t)
	m := NewTaskManager(space, "task-1")
	if m.CurrentHistory == nil || m.CurrentHistory.Len() != 0 {
		t.Fatalf("expected a fresh, empty current-task history")
	}
	if m.Registry == nil {
		t.Fatalf("expected a component registry to be built")
	}
	if _, ok := m.GetScheduler(); ok {
		t.Errorf("expected no scheduler registered yet")
	}
}

func TestRegisterSchedulerIsOneTimeOnly(t *testing.T) {
	space := testSpace(t)
	m := NewTaskManager(space, "task-1")

	if ok := m.RegisterScheduler(stubScheduler{}); !ok {
		t.Fatalf("expected first registration to succeed")
	}
	if ok := m.RegisterScheduler(stubScheduler{}); ok {
		t.Errorf("expected second registration without replace to fail")
	}
	if _, ok := m.GetScheduler(); !ok {
		t.Errorf("expected the original scheduler to remain registered")
	}
}

func TestRegisterPartitionerReplaces(t *testing.T) {
	space := testSpace(t)
	m := NewTaskManager(space, "task-1")

	target := history.NewHistory("task-1", space)
	p1 := partition.NewPartitioner(target, nil, nil, []float64{1.0}, partition.DefaultOptions(), slog.Default())
	p2 := partition.NewPartitioner(target, nil, nil, []float64{1.0}, partition.DefaultOptions(), slog.Default())

	if ok := m.RegisterPartitioner(p1); !ok {
		t.Fatalf("expected first partitioner registration to succeed")
	}
	if ok := m.RegisterPartitioner(p2); !ok {
		t.Fatalf("expected partitioner replace to succeed")
	}
	got, ok := m.GetPartitioner()
	if !ok || got != p2 {
		t.Errorf("expected the replaced partitioner to be the one stored")
	}
}

func TestUpdateCurrentTaskHistoryMarksPartitionerDirty(t *testing.T) {
	space := testSpace(t)
	m := NewTaskManager(space, "task-1")

	p := partition.NewPartitioner(m.CurrentHistory, nil, nil, []float64{1.0}, partition.DefaultOptions(), slog.Default())
	m.RegisterPartitioner(p)
	planner := partition.NewPlanner(p, nil, slog.Default())

	if _, err := p.BuildPlan(true); err == nil {
		t.Fatalf("expected BuildPlan to fail on an empty history")
	}

	cfg := space.DefaultConfiguration()
	obs := history.NewObservation(cfg, 1.0, false, "", 0.5, history.ExtraInfo{QTTime: map[string]float64{"q1": 1.0}})
	m.UpdateCurrentTaskHistory(obs)

	if m.CurrentHistory.Len() != 1 {
		t.Errorf("expected the observation to be appended to the current-task history")
	}

	// Build a clean plan over {q1}; a cached plan would keep serving it.
	if _, err := p.BuildPlan(true); err != nil {
		t.Fatalf("BuildPlan() error = %v", err)
	}
	better := history.NewObservation(cfg, 0.5, false, "", 0.5, history.ExtraInfo{QTTime: map[string]float64{"q1": 1.0, "q2": 1.0}})
	m.UpdateCurrentTaskHistory(better)

	res, err := planner.Plan(1.0, false, false)
	if err != nil {
		t.Fatalf("Plan() error = %v", err)
	}
	if res == nil || len(res.SQLs) != 2 {
		t.Errorf("expected the update to mark the plan dirty so it is rebuilt over {q1, q2}, got %+v", res)
	}
}

func TestGetSimilarTasksReturnsTopKMostSimilar(t *testing.T) {
	space := testSpace(t)
	src1 := history.NewHistory("src-1", space)
	src2 := history.NewHistory("src-2", space)
	m := NewTaskManager(space, "task-1", WithSourceHistories([]*history.History{src1, src2}))

	m.UpdateSimilarities([]history.SimilarityEntry{
		{SourceIndex: 1, Similarity: 0.9},
		{SourceIndex: 0, Similarity: 0.2},
	})

	histories, entries := m.GetSimilarTasks(1)
	if len(histories) != 1 || histories[0] != src2 {
		t.Errorf("expected the single most similar source history (src-2), got %+v", histories)
	}
	if len(entries) != 1 || entries[0].SourceIndex != 1 {
		t.Errorf("expected the top similarity entry to point at source index 1, got %+v", entries)
	}
}
