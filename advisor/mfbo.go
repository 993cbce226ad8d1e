package advisor

import (
	"fmt"
	"math"
	"strings"

	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/history"
)

// MFBO is the multi-fidelity advisor: it wraps BO's single-fidelity loop,
// adding a full-fidelity warm-start initialization phase and routing
// non-full-fidelity observations into per-resource-ratio histories instead
// of the main one.
type MFBO struct {
	*BO

	// sourceFeatureRows holds each source task's observations pre-projected
	// into surrogate-space feature rows, for a future multi-fidelity-aware
	// surrogate to consume; no base surrogate in this engine reads it yet.
	sourceFeatureRows [][][]float64

	resourceHistories   map[float64]*history.History
	resourceIdentifiers []float64
}

// NewMFBO constructs a multi-fidelity advisor the same way NewBO does, and
// additionally pre-transforms source histories into surrogate-space rows
// unless the surrogate type itself is an "mfes"-family model that manages
// multi-fidelity source data internally.
func NewMFBO(space *configspace.ConfigSpace, taskID string, opts ...Option) (*MFBO, error) {
	bo, err := NewBO(space, taskID, opts...)
	if err != nil {
		return nil, err
	}
	m := &MFBO{BO: bo, resourceHistories: make(map[float64]*history.History)}
	if len(bo.SourceHistories) > 0 && !strings.HasPrefix(bo.SurrogateType, "mfes") {
		m.sourceFeatureRows = bo.Compressor.TransformSourceData(bo.SourceHistories)
		m.resourceIdentifiers = make([]float64, len(bo.SourceHistories))
		for i := range m.resourceIdentifiers {
			m.resourceIdentifiers[i] = -1
		}
	}
	return m, nil
}

// Sample runs the full-fidelity warm-start initialization phase (at most
// one warm-start configuration per batch, the rest random) until init_num
// full-fidelity observations have accumulated, then delegates to BO.Sample
// with the "MF" prefix.
func (m *MFBO) Sample(batchSize int) ([]*configspace.Configuration, error) {
	numEvaluated := m.numEvaluatedExcludeDefault()
	if len(m.iniConfigs) == 0 && numEvaluated < m.InitNum {
		m.WarmStart()
	}

	if numEvaluated < m.InitNum {
		var batch []*configspace.Configuration
		takeFromWS := minInt(1, batchSize, len(m.iniConfigs))
		for i := 0; i < takeFromWS; i++ {
			cfg := m.popIniConfig()
			cfg.Origin = "MFBO Warm Start " + cfg.Origin
			batch = append(batch, cfg)
		}
		remaining := batchSize - len(batch)
		for i := 0; i < remaining; i++ {
			excluded := append(append([]*configspace.Configuration(nil), m.History.Configurations()...), batch...)
			cfg := m.sampleRandomConfigs(1, excluded)[0]
			cfg.Origin = "MFBO Warm Start Random Sample"
			batch = append(batch, cfg)
		}
		return batch, nil
	}

	return m.BO.samplePrefixed(batchSize, "MF")
}

// Update appends the result to the main history when resourceRatio rounds
// to 1, otherwise to the per-resource-ratio history for that ratio (created
// on first use). update=false is a complete no-op, matching BO.Update.
func (m *MFBO) Update(cfg *configspace.Configuration, objective float64, timeout bool, traceback string, elapsed float64, extra history.ExtraInfo, resourceRatio float64, update bool) {
	if !update {
		return
	}
	obs := history.NewObservation(cfg, objective, timeout, traceback, elapsed, extra)
	if m.Compressor.NeedsUnproject() && cfg.LowDimProjection != nil {
		obs.ExtraInfo.LowDimConfig = cfg.LowDimProjection
	}

	rounded := roundTo5(resourceRatio)
	if rounded != 1 {
		h, ok := m.resourceHistories[rounded]
		if !ok {
			h = history.NewHistory(fmt.Sprintf("res%.5f_%s", rounded, m.TaskID), m.Space)
			m.resourceHistories[rounded] = h
			m.resourceIdentifiers = append(m.resourceIdentifiers, rounded)
		}
		h.Append(obs)
		return
	}
	if m.TaskManager != nil {
		m.TaskManager.UpdateCurrentTaskHistory(obs)
		return
	}
	m.History.Append(obs)
}

// GetResourceIndex returns the position of resourceRatio (rounded to 5
// decimals) in resourceIdentifiers, or -1 if no observation at that ratio
// has been recorded yet.
func (m *MFBO) GetResourceIndex(resourceRatio float64) int {
	rounded := roundTo5(resourceRatio)
	for i, r := range m.resourceIdentifiers {
		if r == rounded {
			return i
		}
	}
	return -1
}

// ResourceHistory returns the per-resource-ratio history for ratio, and
// whether one has been recorded.
func (m *MFBO) ResourceHistory(resourceRatio float64) (*history.History, bool) {
	h, ok := m.resourceHistories[roundTo5(resourceRatio)]
	return h, ok
}

func roundTo5(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}
