// Package optimizer drives the top-level loop: ask the scheduler which
// bracket and stage to run, sample candidates from the advisor, dispatch
// them through the Evaluator Manager, feed results back to the advisor,
// eliminate candidates per the scheduler, and periodically persist history
// and backup state, per spec.md §5's Optimizer loop.
package optimizer

import (
	"bytes"
	"context"
	"encoding/gob"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/wuhaolei455/mfbo-go/advisor"
	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/evaluator"
	"github.com/wuhaolei455/mfbo-go/history"
	"github.com/wuhaolei455/mfbo-go/manager"
	"github.com/wuhaolei455/mfbo-go/observability"
	"github.com/wuhaolei455/mfbo-go/partition"
	"github.com/wuhaolei455/mfbo-go/scheduler"
)

// backupMinIterations is the "at least 25 iterations" threshold the
// original applies before a completed task is worth recording for future
// transfer learning.
const backupMinIterations = 25

// Config holds the knobs the CLI surfaces, mirroring spec.md §6's flag set.
type Config struct {
	MethodID   string // e.g. "GP", "BOHB_GP", "MFES_GP"
	TaskID     string
	Target     string
	SaveDir    string
	BackupDir  string
	WSStrategy string
	TLStrategy string

	IterNum int
	R       float64
	Eta     float64
	NumNodes int

	SurrogateType string
	AcqType       string
	RandProb      float64
	Seed          int64
	InitNum       int

	BackupFlag bool
	Resume     string // path to a previously saved history JSON, empty to start fresh

	SourceHistories []*history.History
	Similarities    []history.SimilarityEntry
	SimilarityThreshold float64
	Fallback        map[float64]partition.PlanResult
}

// DefaultConfig returns the original's documented defaults.
func DefaultConfig() Config {
	return Config{
		MethodID:      "GP",
		TaskID:        "test",
		Target:        "redis",
		SaveDir:       "./results",
		BackupDir:     "./backup",
		WSStrategy:    "none",
		TLStrategy:    "none",
		IterNum:       200,
		R:             9,
		Eta:           3,
		NumNodes:      1,
		SurrogateType: "prf",
		AcqType:       "ei",
		RandProb:      0.3,
		InitNum:       3,
	}
}

// schedulerType classifies a method id into one of "mfes", "bohb", "full",
// matching the original's substring check.
func schedulerType(methodID string) string {
	switch {
	case strings.Contains(methodID, "MFES"):
		return "mfes"
	case strings.Contains(methodID, "BOHB"):
		return "bohb"
	default:
		return "full"
	}
}

// Optimizer runs one optimization task end to end.
type Optimizer struct {
	Space  *configspace.ConfigSpace
	Config Config

	TaskManager *manager.TaskManager
	Scheduler   scheduler.Scheduler
	Advisor     advisor.Advisor
	Evaluators  *evaluator.Manager

	IterID        int
	bracketCursor int

	resultPath string
	backupPath string
	// backups holds one JSON-encoded history snapshot per recorded task.
	// Each element round-trips through History's own MarshalJSON/
	// RehydrateFrom, so the outer gob container never has to reflect into
	// ConfigSpace's polymorphic Hyperparameter values.
	backups [][]byte

	logger *slog.Logger

	// Audit and Metrics are optional observability sinks; both are
	// nil-safe at every call site, so an Optimizer built without them
	// behaves exactly as one built before they existed.
	Audit   *observability.AuditLogger
	Metrics *observability.OptimizerMetrics
}

// Option configures optional Optimizer behavior not carried by Config,
// such as observability sinks that only make sense as live objects
// rather than serializable fields.
type Option func(*Optimizer)

// WithAuditLogger attaches an audit trail recording iteration- and
// persistence-level decisions.
func WithAuditLogger(a *observability.AuditLogger) Option {
	return func(o *Optimizer) { o.Audit = a }
}

// WithMetrics attaches OpenTelemetry counters/histograms for the run.
func WithMetrics(m *observability.OptimizerMetrics) Option {
	return func(o *Optimizer) { o.Metrics = m }
}

// New constructs an Optimizer bound to space, driving evaluators through a
// bounded Evaluator Manager. The scheduler kind and advisor kind are derived
// from cfg.MethodID; the warm-start and transfer-learning strategies come
// from cfg.WSStrategy and cfg.TLStrategy.
func New(space *configspace.ConfigSpace, evaluators []evaluator.Evaluator, cfg Config, logger *slog.Logger, opts ...Option) (*Optimizer, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sched, err := buildScheduler(schedulerType(cfg.MethodID), cfg.R, cfg.Eta, cfg.NumNodes)
	if err != nil {
		return nil, err
	}

	tm := manager.NewTaskManager(space, cfg.TaskID,
		manager.WithSourceHistories(cfg.SourceHistories),
		manager.WithSimilarityThreshold(cfg.SimilarityThreshold),
		manager.WithLogger(logger),
	)
	if len(cfg.Similarities) > 0 {
		tm.UpdateSimilarities(cfg.Similarities)
	}
	tm.RegisterScheduler(sched)

	if len(cfg.SourceHistories) > 0 {
		partitioner := partition.NewPartitioner(tm.CurrentHistory, tm.SourceHistories, tm.Similarities.Entries, sched.GetFidelityLevels(), partition.DefaultOptions(), logger)
		planner := partition.NewPlanner(partitioner, cfg.Fallback, logger)
		tm.RegisterPartitioner(partitioner)
		tm.RegisterPlanner(planner)
	}

	var evalPlanner *partition.Planner
	if p, ok := tm.GetPlanner(); ok {
		evalPlanner = p
	}
	evalMgr, err := evaluator.NewManager(evaluators, evalPlanner, logger)
	if err != nil {
		return nil, err
	}

	adv, err := buildAdvisor(schedulerType(cfg.MethodID), space, tm, cfg, logger)
	if err != nil {
		return nil, err
	}

	o := &Optimizer{
		Space:       space,
		Config:      cfg,
		TaskManager: tm,
		Scheduler:   sched,
		Advisor:     adv,
		Evaluators:  evalMgr,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(o)
	}
	if err := o.buildPaths(); err != nil {
		return nil, err
	}
	if cfg.Resume != "" {
		if err := o.loadResume(cfg.Resume); err != nil {
			return nil, err
		}
	}
	o.loadBackups()
	return o, nil
}

// Backups decodes every recorded backup snapshot back into a *history.History
// bound to o.Space, most recently recorded last.
func (o *Optimizer) Backups() ([]*history.History, error) {
	out := make([]*history.History, 0, len(o.backups))
	for i, data := range o.backups {
		h := &history.History{}
		if err := json.Unmarshal(data, h); err != nil {
			return nil, fmt.Errorf("optimizer: decoding backup %d: %w", i, err)
		}
		h.RehydrateFrom(o.Space)
		out = append(out, h)
	}
	return out, nil
}

func buildScheduler(kind string, r, eta float64, numNodes int) (scheduler.Scheduler, error) {
	switch kind {
	case "mfes":
		return scheduler.NewMFESFidelityScheduler(r, eta, numNodes)
	case "bohb":
		return scheduler.NewBOHBScheduler(r, eta, numNodes)
	default:
		return scheduler.NewFixedFidelityScheduler(numNodes)
	}
}

func buildAdvisor(kind string, space *configspace.ConfigSpace, tm *manager.TaskManager, cfg Config, logger *slog.Logger) (advisor.Advisor, error) {
	opts := []advisor.Option{
		advisor.WithMethodID(cfg.MethodID),
		advisor.WithSurrogateType(cfg.SurrogateType),
		advisor.WithAcqType(cfg.AcqType),
		advisor.WithWSStrategy(cfg.WSStrategy),
		advisor.WithTLStrategy(cfg.TLStrategy),
		advisor.WithRandProb(cfg.RandProb),
		advisor.WithSeed(cfg.Seed),
		advisor.WithInitNum(cfg.InitNum),
		advisor.WithLogger(logger),
		advisor.WithTaskManager(tm),
	}
	if kind == "mfes" {
		return advisor.NewMFBO(space, cfg.TaskID, opts...)
	}
	return advisor.NewBO(space, cfg.TaskID, opts...)
}

func (o *Optimizer) buildPaths() error {
	resDir := filepath.Join(o.Config.SaveDir, o.Config.Target, o.Config.MethodID)
	if err := os.MkdirAll(resDir, 0o755); err != nil {
		return fmt.Errorf("optimizer: creating result directory: %w", err)
	}
	o.resultPath = filepath.Join(resDir, fmt.Sprintf("%s.json", o.Config.TaskID))

	backupDir := o.Config.BackupDir
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return fmt.Errorf("optimizer: creating backup directory: %w", err)
	}
	o.backupPath = filepath.Join(backupDir, fmt.Sprintf("ts_backup_%s.gob", o.Config.Target))
	return nil
}

func (o *Optimizer) loadResume(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("optimizer: reading resume history %s: %w", path, err)
	}
	h := &history.History{}
	if err := json.Unmarshal(data, h); err != nil {
		return fmt.Errorf("optimizer: parsing resume history %s: %w", path, err)
	}
	h.RehydrateFrom(o.Space)
	*o.TaskManager.CurrentHistory = *h
	o.IterID = o.TaskManager.CurrentHistory.Len() - 1
	if o.IterID < 0 {
		o.IterID = 0
	}
	return nil
}

func (o *Optimizer) loadBackups() {
	data, err := os.ReadFile(o.backupPath)
	if err != nil {
		o.logger.Warn("optimizer: no existing backup file, starting empty", "path", o.backupPath)
		return
	}
	var backups [][]byte
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&backups); err != nil {
		o.logger.Error("optimizer: failed to decode backup file, starting empty", "path", o.backupPath, "error", err)
		return
	}
	o.backups = backups
	o.logger.Info("optimizer: loaded backup history", "path", o.backupPath, "count", len(backups))
}

// Run drives the optimizer to completion, running one iteration at a time
// until Config.IterNum iterations have been recorded.
func (o *Optimizer) Run(ctx context.Context) error {
	for o.IterID < o.Config.IterNum {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := o.RunOneIteration(ctx); err != nil {
			return err
		}
	}
	return nil
}

// RunOneIteration advances the task by exactly one iteration: either an
// initialization-phase sample or a full bracket sweep, followed by a
// compression check and a periodic save.
func (o *Optimizer) RunOneIteration(ctx context.Context) error {
	o.IterID++
	o.logger.Info("optimizer: starting iteration", "iter", o.IterID)

	numEvaluated := o.Advisor.NumEvaluatedExcludeDefault()
	var candidates []*configspace.Configuration
	var perfs []float64
	var err error

	if numEvaluated < o.Advisor.GetInitNum() {
		candidates, perfs, err = o.runInitPhase(ctx)
	} else {
		candidates, perfs, err = o.runBracket(ctx)
	}
	if err != nil {
		return err
	}

	if refit := o.Advisor.UpdateCompression(o.TaskManager.CurrentHistory); refit && o.Audit != nil {
		o.Audit.LogCompressorRefit(ctx, o.Config.TaskID)
	}

	o.logIteration(candidates, perfs)
	o.recordIteration(ctx)
	return o.save()
}

// recordIteration reports the completed iteration to the configured
// observability sinks, both of which are no-ops when unset.
func (o *Optimizer) recordIteration(ctx context.Context) {
	h := o.TaskManager.CurrentHistory
	if o.Metrics != nil {
		o.Metrics.RecordIteration(ctx, o.Config.TaskID)
	}
	if o.Audit != nil {
		incumbent := 0.0
		if h.HasIncumbent() {
			incumbent = h.GetIncumbentValue()
		}
		o.Audit.LogIterationCompleted(ctx, o.Config.TaskID, o.IterID, incumbent)
	}
}

func (o *Optimizer) runInitPhase(ctx context.Context) ([]*configspace.Configuration, []float64, error) {
	candidates, err := o.Advisor.Sample(o.Scheduler.NumNodes())
	if err != nil {
		return nil, nil, fmt.Errorf("optimizer: sampling initial candidates: %w", err)
	}
	perfs := o.evaluateAll(ctx, candidates, 1.0)
	return candidates, perfs, nil
}

func (o *Optimizer) runBracket(ctx context.Context) ([]*configspace.Configuration, []float64, error) {
	var fullConfigs []*configspace.Configuration
	var fullPerfs []float64

	s := o.Scheduler.GetBracketIndex(o.bracketCursor)
	o.bracketCursor++

	var candidates []*configspace.Configuration
	var perfs []float64

	for stage := 0; stage <= s; stage++ {
		nConfigs, nResource, err := o.Scheduler.GetStageParams(s, stage)
		if err != nil {
			return nil, nil, fmt.Errorf("optimizer: stage params for bracket %d stage %d: %w", s, stage, err)
		}
		o.logger.Info("optimizer: stage", "bracket", s, "stage", stage, "n_configs", nConfigs, "n_resource", nResource)

		if stage == 0 {
			candidates, err = o.Advisor.Sample(nConfigs)
			if err != nil {
				return nil, nil, fmt.Errorf("optimizer: sampling bracket %d candidates: %w", s, err)
			}
		}

		ratio := o.Scheduler.CalculateResourceRatio(nResource)
		perfs = o.evaluateAll(ctx, candidates, ratio)

		candidates, perfs, err = o.Scheduler.EliminateCandidates(candidates, perfs, s, stage)
		if err != nil {
			return nil, nil, fmt.Errorf("optimizer: eliminating bracket %d stage %d: %w", s, stage, err)
		}

		if stage == s {
			fullConfigs = append(fullConfigs, candidates...)
			fullPerfs = append(fullPerfs, perfs...)
		}
	}

	return fullConfigs, fullPerfs, nil
}

// evaluateAll dispatches every candidate through the Evaluator Manager, one
// goroutine per candidate, and updates the advisor with each result in
// completion order; the returned perfs stay aligned with candidates by index.
// The Manager itself bounds concurrency: each call blocks only on slot
// availability.
func (o *Optimizer) evaluateAll(ctx context.Context, candidates []*configspace.Configuration, resourceRatio float64) []float64 {
	perfs := make([]float64, len(candidates))
	results := make(chan indexedResult, len(candidates))

	for i, cfg := range candidates {
		go func(i int, cfg *configspace.Configuration) {
			res := o.Evaluators.Call(ctx, cfg, resourceRatio)
			results <- indexedResult{index: i, cfg: cfg, result: res}
		}(i, cfg)
	}

	update := o.Scheduler.ShouldUpdateHistory(resourceRatio)
	for range candidates {
		r := <-results
		o.Advisor.Update(r.cfg, r.result.Objective, r.result.Timeout, r.result.Traceback, r.result.ElapsedTime, r.result.ExtraInfo, resourceRatio, update)
		perfs[r.index] = r.result.Objective

		if o.Metrics != nil {
			outcome := "ok"
			if r.result.Timeout {
				outcome = "timeout"
			}
			o.Metrics.RecordEvaluation(ctx, outcome)
		}
		if o.Audit != nil && r.result.Timeout {
			o.Audit.LogEvaluationFailed(ctx, o.Config.TaskID, r.result.Traceback)
		}
	}
	return perfs
}

type indexedResult struct {
	index  int
	cfg    *configspace.Configuration
	result evaluator.Result
}

func (o *Optimizer) logIteration(configs []*configspace.Configuration, perfs []float64) {
	for i, cfg := range configs {
		if cfg.Origin != "" {
			o.logger.Warn("optimizer: candidate origin", "origin", cfg.Origin)
		}
		o.logger.Info("optimizer: evaluated candidate", "config", cfg.Dictionary(), "objective", perfs[i])
	}
	h := o.TaskManager.CurrentHistory
	if h.HasIncumbent() {
		o.logger.Info("optimizer: incumbent", "value", h.GetIncumbentValue())
	}
}

func (o *Optimizer) save() error {
	if err := o.saveHistoryAtomic(); err != nil {
		return err
	}
	if o.IterID == o.Config.IterNum && o.Config.BackupFlag {
		o.recordTask()
		if err := o.saveBackupAtomic(); err != nil {
			return err
		}
	}
	return nil
}

func (o *Optimizer) saveHistoryAtomic() error {
	data, err := json.Marshal(o.TaskManager.CurrentHistory)
	if err != nil {
		return fmt.Errorf("optimizer: marshaling history: %w", err)
	}
	if err := writeFileAtomic(o.resultPath, data); err != nil {
		return err
	}
	if o.Audit != nil {
		o.Audit.LogHistoryPersisted(context.Background(), o.Config.TaskID, o.resultPath)
	}
	return nil
}

func (o *Optimizer) recordTask() {
	if o.IterID < backupMinIterations {
		o.logger.Warn("optimizer: not recording task, fewer than minimum iterations", "iter", o.IterID, "minimum", backupMinIterations)
		return
	}
	data, err := json.Marshal(o.TaskManager.CurrentHistory)
	if err != nil {
		o.logger.Error("optimizer: failed to snapshot task history for backup", "error", err)
		return
	}
	o.backups = append(o.backups, data)
	o.logger.Info("optimizer: recorded task for future transfer learning", "task_id", o.Config.TaskID)
}

func (o *Optimizer) saveBackupAtomic() error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(o.backups); err != nil {
		return fmt.Errorf("optimizer: encoding backup: %w", err)
	}
	return writeFileAtomic(o.backupPath, buf.Bytes())
}

// writeFileAtomic writes data to a temp file in the same directory as path,
// then renames it into place, so a reader never observes a partial write.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("optimizer: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("optimizer: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("optimizer: closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("optimizer: renaming temp file into place: %w", err)
	}
	return nil
}
