package history

import (
	"encoding/json"
	"math"
	"sort"

	"github.com/wuhaolei455/mfbo-go/configspace"
)

// History is an ordered, append-only (within one run) sequence of
// observations tagged by task id and bound to a ConfigSpace.
type History struct {
	TaskID   string                 `json:"task_id"`
	Space    *configspace.ConfigSpace `json:"-"`
	Records  []jsonObservation      `json:"observations"`
	MetaInfo map[string]interface{} `json:"meta_info"`

	observations []Observation
}

// NewHistory creates an empty history for taskID bound to space.
func NewHistory(taskID string, space *configspace.ConfigSpace) *History {
	return &History{
		TaskID:   taskID,
		Space:    space,
		MetaInfo: make(map[string]interface{}),
	}
}

// Append records one observation.
func (h *History) Append(obs Observation) {
	h.observations = append(h.observations, obs)
}

// Observations returns the recorded observations in append order.
func (h *History) Observations() []Observation {
	return h.observations
}

// Len returns the number of recorded observations.
func (h *History) Len() int { return len(h.observations) }

// GetConfigArray returns a dense matrix, one row per observation, columns
// aligned to h.Space.Parameters, each cell normalized to [0,1].
func (h *History) GetConfigArray() [][]float64 {
	rows := make([][]float64, len(h.observations))
	for i, obs := range h.observations {
		rows[i] = h.Space.NormalizedRow(obs.Config)
	}
	return rows
}

// GetObjectives returns the observations' objectives, applying transform.
func (h *History) GetObjectives(transform ObjectiveTransform) []float64 {
	out := make([]float64, len(h.observations))
	for i, obs := range h.observations {
		v := obs.Objective
		if transform == TransformInfeasible && math.IsInf(v, 1) {
			v = InfeasiblePenalty
		}
		out[i] = v
	}
	return out
}

// GetIncumbentValue returns the minimum finite objective observed so far, or
// +Inf if no finite observation exists.
func (h *History) GetIncumbentValue() float64 {
	best := math.Inf(1)
	for _, obs := range h.observations {
		if !math.IsInf(obs.Objective, 0) && obs.Objective < best {
			best = obs.Objective
		}
	}
	return best
}

// HasIncumbent reports whether at least one finite observation exists.
func (h *History) HasIncumbent() bool {
	return !math.IsInf(h.GetIncumbentValue(), 1)
}

// Configurations returns the configuration of every recorded observation, in
// append order.
func (h *History) Configurations() []*configspace.Configuration {
	out := make([]*configspace.Configuration, len(h.observations))
	for i, obs := range h.observations {
		out[i] = obs.Config
	}
	return out
}

// ContainsConfig reports whether cfg's canonical key matches an existing
// observation's configuration.
func (h *History) ContainsConfig(cfg *configspace.Configuration) bool {
	key := cfg.CanonicalKey()
	for _, obs := range h.observations {
		if obs.Config.CanonicalKey() == key {
			return true
		}
	}
	return false
}

// SubTaskTimes returns, per sub-task id, the list of elapsed times recorded
// in ExtraInfo.QTTime across every observation that reports one. Used by the
// Partitioner to build weighted per-sub-task statistics.
func (h *History) SubTaskTimes() map[string][]float64 {
	out := make(map[string][]float64)
	for _, obs := range h.observations {
		for sql, t := range obs.ExtraInfo.QTTime {
			out[sql] = append(out[sql], t)
		}
	}
	return out
}

// jsonObservation is the on-disk shape of an Observation: it carries a plain
// map of hyperparameter values instead of a live *Configuration, so a
// reloaded history can be bound to any equivalent ConfigSpace instance.
type jsonObservation struct {
	Config      map[string]interface{} `json:"config"`
	Origin      string                  `json:"origin,omitempty"`
	Objective   float64                 `json:"objective"`
	TrialState  TrialState              `json:"trial_state"`
	ElapsedTime float64                 `json:"elapsed_time"`
	ExtraInfo   jsonExtraInfo           `json:"extra_info"`
}

type jsonExtraInfo struct {
	Origin       string                 `json:"origin,omitempty"`
	QTTime       map[string]float64     `json:"qt_time,omitempty"`
	ETTime       map[string]float64     `json:"et_time,omitempty"`
	LowDimConfig map[string]float64     `json:"low_dim_config,omitempty"`
	PlanSQLs     []string               `json:"plan_sqls,omitempty"`
	PlanTimeout  float64                `json:"plan_timeout,omitempty"`
	Traceback    string                 `json:"traceback,omitempty"`
	Extra        map[string]interface{} `json:"extra,omitempty"`
}

// syncRecords mirrors the in-memory observations into the JSON-serializable
// Records field. Call before marshaling.
func (h *History) syncRecords() {
	h.Records = make([]jsonObservation, len(h.observations))
	for i, obs := range h.observations {
		h.Records[i] = jsonObservation{
			Config:      obs.Config.Dictionary(),
			Origin:      obs.Config.Origin,
			Objective:   obs.Objective,
			TrialState:  obs.TrialState,
			ElapsedTime: obs.ElapsedTime,
			ExtraInfo: jsonExtraInfo{
				Origin:       obs.ExtraInfo.Origin,
				QTTime:       obs.ExtraInfo.QTTime,
				ETTime:       obs.ExtraInfo.ETTime,
				LowDimConfig: obs.ExtraInfo.LowDimConfig,
				PlanSQLs:     obs.ExtraInfo.PlanSQLs,
				PlanTimeout:  obs.ExtraInfo.PlanTimeout,
				Traceback:    obs.ExtraInfo.Traceback,
				Extra:        obs.ExtraInfo.Extra,
			},
		}
	}
}

// MarshalJSON implements json.Marshaler, syncing Records first so
// Save/Load/Save round-trips reproduce the same content. encoding/json writes
// map keys (Config, Extra, MetaInfo) in sorted order, so Go's randomized map
// iteration does not change the output bytes.
func (h *History) MarshalJSON() ([]byte, error) {
	h.syncRecords()
	type alias History
	return json.Marshal((*alias)(h))
}

// RehydrateFrom rebuilds in-memory Observations from Records against space,
// used after unmarshaling from disk.
func (h *History) RehydrateFrom(space *configspace.ConfigSpace) {
	h.Space = space
	h.observations = make([]Observation, len(h.Records))
	for i, rec := range h.Records {
		values := make([]interface{}, len(space.Parameters))
		for j, p := range space.Parameters {
			values[j] = rec.Config[p.Name()]
		}
		cfg := &configspace.Configuration{Space: space, Values: values, Origin: rec.Origin}
		h.observations[i] = Observation{
			Config:      cfg,
			Objective:   rec.Objective,
			TrialState:  rec.TrialState,
			ElapsedTime: rec.ElapsedTime,
			ExtraInfo: ExtraInfo{
				Origin:       rec.ExtraInfo.Origin,
				QTTime:       rec.ExtraInfo.QTTime,
				ETTime:       rec.ExtraInfo.ETTime,
				LowDimConfig: rec.ExtraInfo.LowDimConfig,
				PlanSQLs:     rec.ExtraInfo.PlanSQLs,
				PlanTimeout:  rec.ExtraInfo.PlanTimeout,
				Traceback:    rec.ExtraInfo.Traceback,
				Extra:        rec.ExtraInfo.Extra,
			},
		}
	}
}

// SimilarityEntry pairs a source-task index with its similarity to the
// target task, in [0, 1].
type SimilarityEntry struct {
	SourceIndex int
	Similarity  float64
}

// SimilarityCache is a descending-sorted, threshold-truncated list of
// SimilarityEntry.
type SimilarityCache struct {
	Entries   []SimilarityEntry
	Threshold float64
}

// Update replaces the cache contents, sorting descending and dropping
// entries below Threshold.
func (c *SimilarityCache) Update(entries []SimilarityEntry) {
	filtered := entries[:0:0]
	for _, e := range entries {
		if e.Similarity >= c.Threshold {
			filtered = append(filtered, e)
		}
	}
	sort.SliceStable(filtered, func(i, j int) bool {
		return filtered[i].Similarity > filtered[j].Similarity
	})
	c.Entries = filtered
}
