package surrogate

import (
	"fmt"
	"log/slog"

	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/history"
)

// BuildSurrogate constructs a fresh, untrained base surrogate by name.
// "prf" (the default) and "gp" are recognized, mirroring the Python
// original's build_surrogate factory.
func BuildSurrogate(surrogateType string, seed int64) (Surrogate, error) {
	switch surrogateType {
	case "", "prf":
		return NewProbabilisticRandomForest(seed), nil
	case "gp":
		return NewGaussianProcess(), nil
	default:
		return nil, fmt.Errorf("surrogate: unknown surrogate type %q", surrogateType)
	}
}

// TransferLearningEnsemble combines a target-task surrogate with one
// surrogate per source task, weighting predictions by rank-preservation
// ability via a WeightCalculator. With zero source tasks it degenerates to
// the bare target surrogate.
type TransferLearningEnsemble struct {
	surrogateType string
	seed          int64
	numSrcTrials  int
	kFoldNum      int
	onlySource    bool

	weightCalculator WeightCalculator
	normalizer       configspace.Normalizer
	logger           *slog.Logger

	sourceHistories  []*history.History
	sourceSurrogates []Surrogate
	targetSurrogate  Surrogate

	w                   []float64
	currentTargetWeight float64
	ignoredFlags        []bool
}

// EnsembleOption configures a TransferLearningEnsemble at construction.
type EnsembleOption func(*TransferLearningEnsemble)

// WithWeightCalculator overrides the default MFGPEWeightCalculator.
func WithWeightCalculator(wc WeightCalculator) EnsembleOption {
	return func(e *TransferLearningEnsemble) { e.weightCalculator = wc }
}

// WithKFoldNum overrides the default 5-fold cross validation used to score
// the target surrogate's out-of-sample rank preservation.
func WithKFoldNum(k int) EnsembleOption {
	return func(e *TransferLearningEnsemble) { e.kFoldNum = k }
}

// WithOnlySource asks the weight calculator to defer fully to source
// surrogates, zeroing the target surrogate's weight. Only
// RGPEWeightCalculator with UseDilution acts on it; MFGPEWeightCalculator,
// RGPE without dilution, and the uniform weights used before kFoldNum
// observations leave the target weight nonzero.
func WithOnlySource(only bool) EnsembleOption {
	return func(e *TransferLearningEnsemble) { e.onlySource = only }
}

// WithLogger injects a structured logger; nil falls back to slog.Default().
func WithLogger(logger *slog.Logger) EnsembleOption {
	return func(e *TransferLearningEnsemble) { e.logger = logger }
}

// NewTransferLearningEnsemble builds an ensemble over sourceHistories,
// training one base surrogate per source task immediately.
func NewTransferLearningEnsemble(surrogateType string, seed int64, sourceHistories []*history.History, opts ...EnsembleOption) *TransferLearningEnsemble {
	e := &TransferLearningEnsemble{
		surrogateType:    surrogateType,
		seed:             seed,
		numSrcTrials:     50,
		kFoldNum:         5,
		weightCalculator: NewMFGPEWeightCalculator(),
		sourceHistories:  sourceHistories,
		w:                []float64{1.0},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if len(e.sourceHistories) > 0 {
		e.buildSourceSurrogates()
	}
	return e
}

// UpdateSourceTasks replaces the set of source-task histories and rebuilds
// their surrogates from scratch.
func (e *TransferLearningEnsemble) UpdateSourceTasks(histories []*history.History) {
	e.sourceHistories = histories
	e.sourceSurrogates = nil
	if len(e.sourceHistories) > 0 {
		e.buildSourceSurrogates()
	}
}

func (e *TransferLearningEnsemble) buildSourceSurrogates() {
	e.sourceSurrogates = make([]Surrogate, 0, len(e.sourceHistories))
	for _, h := range e.sourceHistories {
		X := capRows(h.GetConfigArray(), e.numSrcTrials)
		y := capFloats(h.GetObjectives(history.TransformInfeasible), e.numSrcTrials)
		surrogate, err := e.buildSingleSurrogate(X, y)
		if err != nil {
			e.logger.Warn("skipping source surrogate that failed to train", "error", err)
			continue
		}
		e.sourceSurrogates = append(e.sourceSurrogates, surrogate)
	}
}

func (e *TransferLearningEnsemble) buildSingleSurrogate(X [][]float64, y []float64) (Surrogate, error) {
	model, err := BuildSurrogate(e.surrogateType, e.seed)
	if err != nil {
		return nil, err
	}
	normalized := e.normalizer.Fit(y)
	if err := model.Train(X, normalized); err != nil {
		return nil, err
	}
	return model, nil
}

func (e *TransferLearningEnsemble) numSourceTasks() int { return len(e.sourceHistories) }

// Train fits the target surrogate on (X, y) and, once enough data has
// accumulated, recomputes the ensemble weights via cross-validated
// rank-preservation against every source surrogate.
func (e *TransferLearningEnsemble) Train(X [][]float64, y []float64) error {
	target, err := e.buildSingleSurrogate(X, y)
	if err != nil {
		return err
	}
	e.targetSurrogate = target

	if e.numSourceTasks() == 0 {
		return nil
	}

	var muList, varList [][]float64
	for _, s := range e.sourceSurrogates {
		mu, v, err := s.Predict(X)
		if err != nil {
			return err
		}
		muList = append(muList, mu)
		varList = append(varList, v)
	}

	numTasks := e.numSourceTasks() + 1
	if len(y) >= e.kFoldNum {
		tarMu, tarVar, err := e.predictTargetSurrogateCV(X, y)
		if err != nil {
			return err
		}
		muList = append(muList, tarMu)
		varList = append(varList, tarVar)

		newW := e.weightCalculator.Calculate(muList, varList, y, numTasks, CalculateOptions{
			InstanceNum: len(y),
			KFoldNum:    e.kFoldNum,
			OnlySource:  e.onlySource,
		})
		e.ignoredFlags = e.weightCalculator.IgnoredFlags()
		e.w, e.currentTargetWeight = e.modifyWeights(newW, e.currentTargetWeight)
		e.recordWeights()
	} else {
		e.w = uniformWeights(numTasks)
		e.ignoredFlags = make([]bool, numTasks)
	}
	return nil
}

// Predict blends the target surrogate's prediction with every
// non-dilution-ignored source surrogate's prediction, weighted by w.
func (e *TransferLearningEnsemble) Predict(X [][]float64) (mean, variance []float64, err error) {
	mean, variance, err = e.targetSurrogate.Predict(X)
	if err != nil {
		return nil, nil, err
	}
	if e.numSourceTasks() == 0 {
		return mean, variance, nil
	}

	targetW := e.w[len(e.w)-1]
	for i := range mean {
		mean[i] *= targetW
		variance[i] *= targetW * targetW
	}

	for i, s := range e.sourceSurrogates {
		if i < len(e.ignoredFlags) && e.ignoredFlags[i] {
			continue
		}
		muT, varT, err := s.Predict(X)
		if err != nil {
			return nil, nil, err
		}
		w := e.w[i]
		for j := range mean {
			mean[j] += w * muT[j]
			variance[j] += w * w * varT[j]
		}
	}
	return mean, variance, nil
}

// GetAcquisitionContext returns one TaskContext per source task plus the
// target task, weighted by the most recently computed ensemble weights.
func (e *TransferLearningEnsemble) GetAcquisitionContext(h *history.History) AcquisitionContext {
	tasks := make([]TaskContext, 0, e.numSourceTasks()+1)
	for i, s := range e.sourceSurrogates {
		srcHistory := e.sourceHistories[i]
		tasks = append(tasks, TaskContext{
			Surrogate: s,
			History:   srcHistory,
			Eta:       srcHistory.GetIncumbentValue(),
			NumData:   srcHistory.Len(),
		})
	}
	tasks = append(tasks, TaskContext{
		Surrogate: e.targetSurrogate,
		History:   h,
		Eta:       h.GetIncumbentValue(),
		NumData:   h.Len(),
	})

	ctx := AcquisitionContext{Tasks: tasks, Weights: e.w}
	ctx.SetMainSurrogate(e)
	return ctx
}

// GetWeights returns a copy of the current per-task weight vector.
func (e *TransferLearningEnsemble) GetWeights() []float64 {
	return append([]float64(nil), e.w...)
}

func (e *TransferLearningEnsemble) predictTargetSurrogateCV(X [][]float64, y []float64) (mu, variance []float64, err error) {
	n := len(X)
	if n < e.kFoldNum {
		return nil, nil, fmt.Errorf("surrogate: not enough samples (%d) for %d-fold CV", n, e.kFoldNum)
	}

	mu = make([]float64, n)
	variance = make([]float64, n)

	folds := kFoldSplits(n, e.kFoldNum)
	for _, fold := range folds {
		trainX, trainY := excludeIndices(X, y, fold)
		model, err := e.buildSingleSurrogate(trainX, trainY)
		if err != nil {
			return nil, nil, err
		}

		valX := make([][]float64, len(fold))
		for i, idx := range fold {
			valX[i] = X[idx]
		}
		foldMu, foldVar, err := model.Predict(valX)
		if err != nil {
			return nil, nil, err
		}
		for i, idx := range fold {
			mu[idx] = foldMu[i]
			variance[idx] = foldVar[i]
		}
	}
	return mu, variance, nil
}

// modifyWeights enforces a non-decreasing target-task weight: once the
// ensemble has earned a given level of trust in the target surrogate, later
// iterations cannot walk it back below that level.
func (e *TransferLearningEnsemble) modifyWeights(newW []float64, currentTargetWeight float64) ([]float64, float64) {
	if e.numSourceTasks() == 0 {
		if len(newW) > 0 {
			return newW, newW[0]
		}
		return newW, 0
	}

	targetIdx := e.numSourceTasks()
	if newW[targetIdx] < currentTargetWeight {
		newW[targetIdx] = currentTargetWeight
		sourceSum := 0.0
		for i := 0; i < targetIdx; i++ {
			sourceSum += newW[i]
		}
		if sourceSum > 0 {
			scale := (1 - newW[targetIdx]) / sourceSum
			for i := 0; i < targetIdx; i++ {
				newW[i] *= scale
			}
		}
	}
	return newW, newW[targetIdx]
}

func (e *TransferLearningEnsemble) recordWeights() {
	if e.numSourceTasks() == 0 {
		return
	}
	any := false
	for _, ignored := range e.ignoredFlags {
		if ignored {
			any = true
			break
		}
	}
	e.logger.Debug("recomputed transfer-learning ensemble weights", "weights", e.w, "ignored_flags", any)
}

func uniformWeights(n int) []float64 {
	w := make([]float64, n)
	for i := range w {
		w[i] = 1.0 / float64(n)
	}
	return w
}

func capRows(rows [][]float64, limit int) [][]float64 {
	if limit <= 0 || len(rows) <= limit {
		return rows
	}
	return rows[:limit]
}

func capFloats(values []float64, limit int) []float64 {
	if limit <= 0 || len(values) <= limit {
		return values
	}
	return values[:limit]
}

// kFoldSplits partitions [0, n) into k contiguous folds, the leading n%k
// folds getting one extra element, matching sklearn.KFold(shuffle=False).
func kFoldSplits(n, k int) [][]int {
	folds := make([][]int, k)
	base := n / k
	remainder := n % k
	idx := 0
	for i := 0; i < k; i++ {
		size := base
		if i < remainder {
			size++
		}
		fold := make([]int, size)
		for j := 0; j < size; j++ {
			fold[j] = idx
			idx++
		}
		folds[i] = fold
	}
	return folds
}

func excludeIndices(X [][]float64, y []float64, exclude []int) ([][]float64, []float64) {
	excluded := make(map[int]bool, len(exclude))
	for _, idx := range exclude {
		excluded[idx] = true
	}
	trainX := make([][]float64, 0, len(X)-len(exclude))
	trainY := make([]float64, 0, len(y)-len(exclude))
	for i := range X {
		if excluded[i] {
			continue
		}
		trainX = append(trainX, X[i])
		trainY = append(trainY, y[i])
	}
	return trainX, trainY
}
