// Package advisor hosts the Bayesian optimization loop: warm-start
// bootstrapping, surrogate training, acquisition-driven candidate
// generation, and the observation history those candidates are evaluated
// into.
package advisor

import (
	"fmt"
	"log/slog"
	"math/rand"
	"strings"

	"github.com/wuhaolei455/mfbo-go/acqoptimizer"
	"github.com/wuhaolei455/mfbo-go/acquisition"
	"github.com/wuhaolei455/mfbo-go/compressor"
	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/history"
	"github.com/wuhaolei455/mfbo-go/manager"
	"github.com/wuhaolei455/mfbo-go/mfboerrors"
	"github.com/wuhaolei455/mfbo-go/surrogate"
)

// Advisor is the interface the optimizer loop drives: propose a batch of
// configurations, record the results, and react to a compressor deciding
// its search space needs to change shape.
type Advisor interface {
	WarmStart()
	Sample(batchSize int) ([]*configspace.Configuration, error)
	Update(cfg *configspace.Configuration, objective float64, timeout bool, traceback string, elapsed float64, extra history.ExtraInfo, resourceRatio float64, update bool)
	UpdateCompression(h *history.History) bool
	NumEvaluatedExcludeDefault() int
	GetInitNum() int
}

// BO is the single-fidelity Bayesian optimization advisor.
type BO struct {
	Space         *configspace.ConfigSpace
	TaskID        string
	MethodID      string
	SurrogateType string
	AcqType       string
	WSStrategy    string
	TLStrategy    string
	RandProb      float64
	Seed          int64
	InitNum       int

	Rng *rand.Rand

	SurrogateSpace *configspace.ConfigSpace
	SampleSpace    *configspace.ConfigSpace
	Compressor     compressor.Compressor

	SamplingStrategy compressor.Sampler

	SourceHistories []*history.History
	Similarities    *history.SimilarityCache
	Validation      ValidationStrategy
	Warmer          WarmStarter

	History *history.History

	// TaskManager, when set, is the source of truth for the current-task
	// history, source histories, and similarity cache: the advisor shares
	// them rather than keeping its own copies, so every component a
	// TaskManager coordinates (scheduler, partitioner, planner) observes
	// the same data the advisor trains on.
	TaskManager *manager.TaskManager

	Model        surrogate.Model
	AcqFunc      acquisition.Function
	AcqOptimizer *acqoptimizer.CompositeOptimizer

	iniConfigs []*configspace.Configuration
	wsTopK     int

	logger *slog.Logger
}

// Option configures a BO (or MFBO, which embeds one) at construction.
type Option func(*BO)

func WithMethodID(id string) Option      { return func(b *BO) { b.MethodID = id } }
func WithSurrogateType(t string) Option  { return func(b *BO) { b.SurrogateType = t } }
func WithAcqType(t string) Option        { return func(b *BO) { b.AcqType = t } }
func WithWSStrategy(s string) Option     { return func(b *BO) { b.WSStrategy = s } }
func WithTLStrategy(s string) Option     { return func(b *BO) { b.TLStrategy = s } }
func WithRandProb(p float64) Option      { return func(b *BO) { b.RandProb = p } }
func WithSeed(seed int64) Option         { return func(b *BO) { b.Seed = seed } }
func WithInitNum(n int) Option           { return func(b *BO) { b.InitNum = n } }
func WithWSTopK(k int) Option            { return func(b *BO) { b.wsTopK = k } }
func WithValidation(v ValidationStrategy) Option { return func(b *BO) { b.Validation = v } }
func WithLogger(l *slog.Logger) Option   { return func(b *BO) { b.logger = l } }

func WithCompressor(c compressor.Compressor) Option { return func(b *BO) { b.Compressor = c } }

func WithSourceHistories(hs []*history.History) Option {
	return func(b *BO) { b.SourceHistories = hs }
}

// WithSimilarities sets the source-task similarity cache used for both warm
// starting and transfer learning. threshold filters low-similarity entries.
func WithSimilarities(entries []history.SimilarityEntry, threshold float64) Option {
	return func(b *BO) {
		b.Similarities = &history.SimilarityCache{Threshold: threshold}
		b.Similarities.Update(entries)
	}
}

// WithTaskManager binds the advisor to tm: the advisor's history becomes
// tm.CurrentHistory (instead of a private copy), and SourceHistories,
// Similarities, and Compressor default to tm's unless an explicit Option
// set them first. Populating tm's scheduler/partitioner/planner slots is
// left to the optimizer loop; WithTaskManager only wires the read side.
func WithTaskManager(tm *manager.TaskManager) Option {
	return func(b *BO) { b.TaskManager = tm }
}

// NewBO constructs an advisor bound to space, wiring a surrogate, an
// acquisition function, and an acquisition optimizer from the configured
// options. Defaults: method_id "unknown", surrogate "prf", acquisition "ei",
// no warm start, no transfer learning, rand_prob 0.3, init_num 3.
func NewBO(space *configspace.ConfigSpace, taskID string, opts ...Option) (*BO, error) {
	b := &BO{
		Space:         space,
		TaskID:        taskID,
		MethodID:      "unknown",
		SurrogateType: "prf",
		AcqType:       "ei",
		WSStrategy:    "none",
		TLStrategy:    "none",
		RandProb:      0.3,
		InitNum:       3,
		wsTopK:        1,
		Validation:    AcceptAll{},
		Similarities:  &history.SimilarityCache{},
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.Rng == nil {
		b.Rng = rand.New(rand.NewSource(b.Seed))
	}
	if b.logger == nil {
		b.logger = slog.Default()
	}
	if b.TaskManager != nil {
		if len(b.SourceHistories) == 0 {
			b.SourceHistories = b.TaskManager.SourceHistories
		}
		if len(b.Similarities.Entries) == 0 {
			b.Similarities = b.TaskManager.Similarities
		}
		if b.Compressor == nil {
			if c, ok := b.TaskManager.GetCompressor(); ok {
				b.Compressor = c
			}
		}
	}
	if b.Compressor == nil {
		b.Compressor = compressor.NewIdentity(space)
	}

	b.SurrogateSpace, b.SampleSpace = b.Compressor.CompressSpace(nil, b.Similarities.Entries)
	if b.TaskManager != nil {
		b.History = b.TaskManager.CurrentHistory
	} else {
		b.History = history.NewHistory(taskID, space)
	}
	b.SamplingStrategy = b.Compressor.GetSamplingStrategy(b.Rng)

	model, err := buildModel(b.SurrogateType, b.TLStrategy, b.Seed, b.SourceHistories)
	if err != nil {
		return nil, err
	}
	b.Model = model

	acqFunc, err := buildAcquisition(b.AcqType)
	if err != nil {
		return nil, err
	}
	b.AcqFunc = acqFunc

	optimizer, err := acqoptimizer.NewLocalRandomOptimizer(b.AcqFunc, b.SampleSpace, b.SamplingStrategy, b.RandProb, b.Rng)
	if err != nil {
		return nil, err
	}
	b.AcqOptimizer = optimizer

	b.Warmer = CreateWarmStarter(b.WSStrategy, b.TLStrategy, b.MethodID, b.wsTopK)

	return b, nil
}

func buildModel(surrogateType, tlStrategy string, seed int64, sourceHistories []*history.History) (surrogate.Model, error) {
	if tlStrategy == "" || tlStrategy == "none" {
		base, err := surrogate.BuildSurrogate(surrogateType, seed)
		if err != nil {
			return nil, err
		}
		return surrogate.SingleTask{Surrogate: base}, nil
	}
	return surrogate.NewTransferLearningEnsemble(surrogateType, seed, sourceHistories), nil
}

func buildAcquisition(acqType string) (acquisition.Function, error) {
	switch acqType {
	case "", "ei":
		return acquisition.NewEI(), nil
	case "ucb":
		return acquisition.NewUCB(), nil
	case "weighted_rank", "wrk":
		return acquisition.NewWeightedRank(func() acquisition.Function { return acquisition.NewEI() }), nil
	default:
		return nil, mfboerrors.ConfigurationError("advisor: unknown acquisition type %q", acqType)
	}
}

// WarmStart populates the pending-warm-start queue from the configured
// WarmStarter. A no-op when warm starting or transfer learning is disabled.
func (b *BO) WarmStart() {
	if b.WSStrategy == "none" || b.TLStrategy == "none" {
		return
	}
	b.updateWSInfo()
	numEvaluated := b.numEvaluatedExcludeDefault()
	sampleFn := func(n int) []*configspace.Configuration {
		return b.sampleRandomConfigs(n, b.History.Configurations())
	}
	ini := b.Warmer.GetInitialConfigs(b.SourceHistories, b.Similarities.Entries, b.InitNum, b.Compressor, numEvaluated, sampleFn)
	b.iniConfigs = append(ini, b.iniConfigs...)
	b.logger.Info("warm start produced configurations", "new", len(ini), "pending", len(b.iniConfigs), "strategy", fmt.Sprintf("%T", b.Warmer))
}

func (b *BO) updateWSInfo() {
	strs := make([]string, 0, len(b.Similarities.Entries))
	for _, e := range b.Similarities.Entries {
		if e.SourceIndex < 0 || e.SourceIndex >= len(b.SourceHistories) {
			continue
		}
		strs = append(strs, fmt.Sprintf("%s: sim%.4f", b.SourceHistories[e.SourceIndex].TaskID, e.Similarity))
	}
	existing, _ := b.History.MetaInfo["warm_start"].([][]string)
	b.History.MetaInfo["warm_start"] = append(existing, strs)
}

// Sample proposes up to batchSize configurations.
func (b *BO) Sample(batchSize int) ([]*configspace.Configuration, error) {
	return b.samplePrefixed(batchSize, "")
}

// samplePrefixed is Sample's implementation, parameterized by an origin-tag
// prefix; MFBO.Sample calls this directly with prefix "MF" once its own
// full-fidelity initialization phase has completed.
func (b *BO) samplePrefixed(batchSize int, prefix string) ([]*configspace.Configuration, error) {
	numEvaluated := b.numEvaluatedExcludeDefault()
	if len(b.iniConfigs) == 0 && numEvaluated < b.InitNum {
		b.WarmStart()
	}

	isFromMFBO := prefix == "MF"
	isBOHB := strings.Contains(b.MethodID, "BOHB")

	if numEvaluated < b.InitNum && !isFromMFBO {
		batch := b.initBatch(batchSize, prefix, isBOHB)
		return b.Compressor.UnprojectPoints(batch), nil
	}

	X := b.surrogateConfigArray()
	y := b.History.GetObjectives(history.TransformInfeasible)
	if err := b.Model.Train(X, y); err != nil {
		return nil, fmt.Errorf("advisor: training surrogate: %w", err)
	}
	b.AcqFunc.Update(b.Model.GetAcquisitionContext(b.History))

	scored, err := b.AcqOptimizer.Maximize(b.observationsInSurrogateSpace(), 2000)
	if err != nil {
		return nil, fmt.Errorf("advisor: maximizing acquisition: %w", err)
	}

	var batch []*configspace.Configuration
	if (isBOHB || isFromMFBO) && len(b.iniConfigs) > 0 {
		q := minInt(2, batchSize, len(b.iniConfigs))
		for i := 0; i < q; i++ {
			cfg := b.popIniConfig()
			cfg.Origin = prefix + "BO Warm Start " + cfg.Origin
			batch = append(batch, cfg)
		}
	}

	for _, s := range scored {
		if len(batch) >= batchSize {
			break
		}
		cfg := s.Config
		if b.History.ContainsConfig(cfg) {
			continue
		}
		if !b.Validation.IsValid(cfg) {
			cfg = b.Validation.Sanitize(cfg)
		}
		if b.Validation.IsValid(cfg) {
			cfg.Origin = prefix + "BO Acquisition " + cfg.Origin
			batch = append(batch, cfg)
		}
	}

	if len(batch) < batchSize {
		excluded := append(append([]*configspace.Configuration(nil), b.History.Configurations()...), batch...)
		random := b.sampleRandomConfigs(batchSize-len(batch), excluded)
		for _, cfg := range random {
			cfg.Origin = prefix + "BO Acquisition Random Sample"
			batch = append(batch, cfg)
		}
	}

	return b.Compressor.UnprojectPoints(batch), nil
}

func (b *BO) initBatch(batchSize int, prefix string, isBOHB bool) []*configspace.Configuration {
	var batch []*configspace.Configuration
	if isBOHB {
		take := minInt(1, batchSize, len(b.iniConfigs))
		for i := 0; i < take; i++ {
			cfg := b.popIniConfig()
			cfg.Origin = prefix + "BO Warm Start " + cfg.Origin
			batch = append(batch, cfg)
		}
		remaining := batchSize - len(batch)
		for i := 0; i < remaining; i++ {
			cfg := b.sampleRandomConfigs(1, b.History.Configurations())[0]
			cfg.Origin = prefix + "BO Warm Start Random Sample"
			batch = append(batch, cfg)
		}
		return batch
	}

	for i := 0; i < batchSize; i++ {
		var cfg *configspace.Configuration
		if len(b.iniConfigs) > 0 {
			cfg = b.popIniConfig()
			cfg.Origin = prefix + "BO Warm Start " + cfg.Origin
		} else {
			cfg = b.sampleRandomConfigs(1, b.History.Configurations())[0]
			cfg.Origin = prefix + "BO Warm Start Random Sample"
		}
		batch = append(batch, cfg)
	}
	return batch
}

func (b *BO) popIniConfig() *configspace.Configuration {
	n := len(b.iniConfigs)
	cfg := b.iniConfigs[n-1]
	b.iniConfigs = b.iniConfigs[:n-1]
	return cfg
}

func (b *BO) sampleRandomConfigs(n int, excluded []*configspace.Configuration) []*configspace.Configuration {
	exclude := make(map[string]bool, len(excluded))
	for _, c := range excluded {
		exclude[c.CanonicalKey()] = true
	}
	return b.SampleSpace.Sample(b.Rng, n, exclude)
}

// NumEvaluatedExcludeDefault returns the number of recorded observations,
// excluding the space's default configuration if it appears among them —
// the count the optimizer loop compares against InitNum to decide whether
// it is still in the warm-start initialization phase.
func (b *BO) NumEvaluatedExcludeDefault() int {
	return b.numEvaluatedExcludeDefault()
}

// GetInitNum returns the number of warm-start/random initialization
// observations the optimizer loop should collect before switching to
// bracket-driven sampling.
func (b *BO) GetInitNum() int { return b.InitNum }

func (b *BO) numEvaluatedExcludeDefault() int {
	n := b.History.Len()
	def := b.Space.DefaultConfiguration()
	for _, obs := range b.History.Observations() {
		if obs.Config.Equal(def) {
			return n - 1
		}
	}
	return n
}

func (b *BO) surrogateConfigArray() [][]float64 {
	obs := b.History.Observations()
	X := make([][]float64, len(obs))
	for i, o := range obs {
		X[i] = b.Compressor.ConvertConfigToSurrogateSpace(o.Config)
	}
	return X
}

// observationsInSurrogateSpace projects every observation's configuration
// into the current sample space, so the acquisition optimizer's local
// search seeds its one-exchange neighborhoods in the space it actually
// searches rather than the original declared space.
func (b *BO) observationsInSurrogateSpace() []history.Observation {
	obs := b.History.Observations()
	out := make([]history.Observation, len(obs))
	for i, o := range obs {
		converted := o
		converted.Config = b.Compressor.ProjectPoint(o.Config)
		out[i] = converted
	}
	return out
}

// Update records one evaluation result. When update is false the call is a
// complete no-op: no history mutation of any kind occurs, checked before any
// resource-ratio routing (resourceRatio is unused by single-fidelity BO;
// MFBO overrides Update to route by it).
func (b *BO) Update(cfg *configspace.Configuration, objective float64, timeout bool, traceback string, elapsed float64, extra history.ExtraInfo, resourceRatio float64, update bool) {
	if !update {
		return
	}
	obs := history.NewObservation(cfg, objective, timeout, traceback, elapsed, extra)
	if b.Compressor.NeedsUnproject() && cfg.LowDimProjection != nil {
		obs.ExtraInfo.LowDimConfig = cfg.LowDimProjection
	}
	if b.TaskManager != nil {
		b.TaskManager.UpdateCurrentTaskHistory(obs)
		return
	}
	b.History.Append(obs)
}

// UpdateCompression asks the Compressor to reconsider the surrogate/sample
// space shape against the accumulated history h. If the shape changed, the
// surrogate, sampling strategy, and acquisition optimizer are rebuilt and
// the surrogate retrained on the full history; idempotent otherwise.
func (b *BO) UpdateCompression(h *history.History) bool {
	if !b.Compressor.UpdateCompression(h) {
		return false
	}

	b.SurrogateSpace, b.SampleSpace = b.Compressor.CompressSpace(h, b.Similarities.Entries)

	model, err := buildModel(b.SurrogateType, b.TLStrategy, b.Seed, b.SourceHistories)
	if err != nil {
		b.logger.Error("advisor: rebuilding surrogate after compression update", "error", err)
		return false
	}
	b.Model = model
	b.SamplingStrategy = b.Compressor.GetSamplingStrategy(b.Rng)

	optimizer, err := acqoptimizer.NewLocalRandomOptimizer(b.AcqFunc, b.SampleSpace, b.SamplingStrategy, b.RandProb, b.Rng)
	if err != nil {
		b.logger.Error("advisor: rebuilding acquisition optimizer after compression update", "error", err)
		return false
	}
	b.AcqOptimizer = optimizer

	X := b.surrogateConfigArray()
	y := b.History.GetObjectives(history.TransformInfeasible)
	if err := b.Model.Train(X, y); err != nil {
		b.logger.Error("advisor: retraining surrogate after compression update", "error", err)
		return false
	}
	b.AcqFunc.Update(b.Model.GetAcquisitionContext(b.History))

	b.logger.Info("advisor: surrogate space recompressed and surrogate retrained")
	return true
}

func minInt(values ...int) int {
	m := values[0]
	for _, v := range values[1:] {
		if v < m {
			m = v
		}
	}
	return m
}
