// Package manager holds the per-run, explicitly-owned state a single
// optimization task needs: its current-task history, source-task
// histories, similarity cache, and the registry of pluggable components
// (scheduler, partitioner, planner, compressor) other packages wire in.
//
// Per spec.md §9's design notes, this replaces the original's process-wide
// TaskManager singleton with an explicitly constructed value threaded
// through constructors — no package-level instance, no instance()
// classmethod.
package manager

import (
	"log/slog"

	"github.com/wuhaolei455/mfbo-go/compressor"
	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/history"
	"github.com/wuhaolei455/mfbo-go/partition"
	"github.com/wuhaolei455/mfbo-go/scheduler"
)

const (
	componentScheduler   = "scheduler"
	componentPartitioner = "sql_partitioner"
	componentPlanner     = "planner"
	componentCompressor  = "compressor"
)

// TaskManager owns one optimization task's state: its current-task history,
// the source-task histories transfer learning draws on, the similarity
// cache between them, and a ComponentRegistry for the pluggable pieces the
// advisor and optimizer loop depend on.
type TaskManager struct {
	Space           *configspace.ConfigSpace
	CurrentHistory  *history.History
	SourceHistories []*history.History
	Similarities    *history.SimilarityCache
	Registry        *ComponentRegistry

	logger *slog.Logger
}

// Option configures a TaskManager at construction.
type Option func(*TaskManager)

// WithSourceHistories seeds the transfer-learning source-task histories.
func WithSourceHistories(histories []*history.History) Option {
	return func(m *TaskManager) { m.SourceHistories = histories }
}

// WithSimilarityThreshold sets the truncation threshold for the similarity
// cache (entries below it are dropped on every Update).
func WithSimilarityThreshold(threshold float64) Option {
	return func(m *TaskManager) { m.Similarities.Threshold = threshold }
}

// WithLogger overrides the default slog logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *TaskManager) { m.logger = logger }
}

// NewTaskManager constructs a TaskManager for taskID, bound to space, with
// an empty current-task history and component registry. Callers own the
// returned value and thread it explicitly through the advisor and
// optimizer; nothing here is process-wide state.
func NewTaskManager(space *configspace.ConfigSpace, taskID string, opts ...Option) *TaskManager {
	m := &TaskManager{
		Space:          space,
		CurrentHistory: history.NewHistory(taskID, space),
		Similarities:   &history.SimilarityCache{},
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.Registry = NewComponentRegistry(m.logger)

	m.Registry.AddListener(componentScheduler, func(interface{}) { m.markPlanDirty() })
	m.Registry.AddListener(componentPartitioner, func(interface{}) { m.markPlanDirty() })
	return m
}

// UpdateCurrentTaskHistory appends obs to the current task's history and
// marks the sub-task plan dirty, since a new observation may shift the
// weighted statistics the Partitioner derives its subsets from.
func (m *TaskManager) UpdateCurrentTaskHistory(obs history.Observation) {
	m.CurrentHistory.Append(obs)
	m.markPlanDirty()
}

// UpdateSimilarities replaces the similarity cache and marks the plan
// dirty, since source-task weighting feeds directly into the Partitioner's
// weighted statistics.
func (m *TaskManager) UpdateSimilarities(entries []history.SimilarityEntry) {
	m.Similarities.Update(entries)
	m.markPlanDirty()
}

// GetSimilarTasks returns up to topK source-task histories (and their
// similarity entries), most similar first. topK <= 0 returns every entry in
// the cache.
func (m *TaskManager) GetSimilarTasks(topK int) ([]*history.History, []history.SimilarityEntry) {
	entries := m.Similarities.Entries
	if topK > 0 && topK < len(entries) {
		entries = entries[:topK]
	}
	histories := make([]*history.History, 0, len(entries))
	for _, e := range entries {
		if e.SourceIndex >= 0 && e.SourceIndex < len(m.SourceHistories) {
			histories = append(histories, m.SourceHistories[e.SourceIndex])
		}
	}
	return histories, entries
}

func (m *TaskManager) markPlanDirty() {
	if p, ok := m.GetPartitioner(); ok {
		p.MarkDirty()
	}
}

// RegisterScheduler registers sched as the task's scheduler. A scheduler is
// one-time-register-only (replace=false): once set, it is fixed for the
// lifetime of the task.
func (m *TaskManager) RegisterScheduler(sched scheduler.Scheduler) bool {
	return m.Registry.Register(componentScheduler, sched, false)
}

// GetScheduler returns the task's registered scheduler, if any.
func (m *TaskManager) GetScheduler() (scheduler.Scheduler, bool) {
	c, ok := m.Registry.Get(componentScheduler)
	if !ok {
		return nil, false
	}
	s, ok := c.(scheduler.Scheduler)
	return s, ok
}

// RegisterPartitioner registers p as the task's partitioner, replacing any
// existing one (the partitioner is rebuilt whenever source data changes).
func (m *TaskManager) RegisterPartitioner(p *partition.Partitioner) bool {
	return m.Registry.Register(componentPartitioner, p, true)
}

// GetPartitioner returns the task's registered partitioner, if any.
func (m *TaskManager) GetPartitioner() (*partition.Partitioner, bool) {
	c, ok := m.Registry.Get(componentPartitioner)
	if !ok {
		return nil, false
	}
	p, ok := c.(*partition.Partitioner)
	return p, ok
}

// RegisterPlanner registers pl as the task's planner, replacing any
// existing one.
func (m *TaskManager) RegisterPlanner(pl *partition.Planner) bool {
	return m.Registry.Register(componentPlanner, pl, true)
}

// GetPlanner returns the task's registered planner, if any.
func (m *TaskManager) GetPlanner() (*partition.Planner, bool) {
	c, ok := m.Registry.Get(componentPlanner)
	if !ok {
		return nil, false
	}
	pl, ok := c.(*partition.Planner)
	return pl, ok
}

// RegisterCompressor registers comp as the task's compressor, replacing any
// existing one.
func (m *TaskManager) RegisterCompressor(comp compressor.Compressor) bool {
	return m.Registry.Register(componentCompressor, comp, true)
}

// GetCompressor returns the task's registered compressor, if any.
func (m *TaskManager) GetCompressor() (compressor.Compressor, bool) {
	c, ok := m.Registry.Get(componentCompressor)
	if !ok {
		return nil, false
	}
	comp, ok := c.(compressor.Compressor)
	return comp, ok
}
