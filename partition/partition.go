// Package partition chooses which sub-tasks of a target workload (e.g. SQL
// queries in a batch) to evaluate at each fidelity level, so the chosen
// subset's aggregate cost correlates strongly with the full workload's.
package partition

import (
	"log/slog"
	"math"
	"sort"

	"github.com/wuhaolei455/mfbo-go/history"
	"github.com/wuhaolei455/mfbo-go/mfboerrors"
	"gonum.org/v1/gonum/stat"
)

// SQLStat is the per-sub-task weighted statistic computed across the target
// and source-task histories.
type SQLStat struct {
	EstimatedTime float64
	Correlation   float64
	AvgTime       float64
	TotalTime     float64
	Tolerance     float64
}

// PlanMetadata carries the bookkeeping a caller may want to inspect without
// re-deriving it: how many histories fed the plan and their weights.
// SubsetCorrelation holds, per fidelity, the mean of the chosen sub-tasks'
// individual correlations with the objective (1.0 for the full set); it is
// not the correlation of the subset's summed time against the objective.
type PlanMetadata struct {
	Histories         int
	Weights           []float64
	SubsetCorrelation map[float64]float64
}

// Plan is the output of Partitioner.BuildPlan: which sub-tasks to run at
// each fidelity level, their per-sub-task statistics, and metadata about how
// the plan was built.
//
// Invariant: FidelitySubsets always contains key 1.0 mapping to the full
// sorted sub-task list.
type Plan struct {
	FidelitySubsets map[float64][]string
	SQLStats        map[string]SQLStat
	Metadata        PlanMetadata
}

// Options configures Partitioner.BuildPlan.
type Options struct {
	// CurrentTaskWeight is the weight given the target task's own history
	// relative to normalized source-task similarities.
	CurrentTaskWeight float64
	// TopRatio restricts each history's contribution to its best-objective
	// fraction of observations (in (0, 1]).
	TopRatio float64
	// LambdaPenalty trades off a candidate's own correlation against its
	// redundancy with the subset already selected.
	LambdaPenalty float64
	// Tolerance widens the per-fidelity budget: max_budget = budget*(1+Tolerance).
	Tolerance float64
	// Incremental, when true, accumulates used_queries across ascending
	// fidelities (the original's de facto behavior). The default, false,
	// restarts greedy selection from the full candidate set at every
	// fidelity, matching spec.md's literal Scenario 5 walkthrough
	// (Open Question #4, see DESIGN.md).
	Incremental bool
}

// DefaultOptions returns the Options this engine uses unless overridden.
func DefaultOptions() Options {
	return Options{
		CurrentTaskWeight: 1.0,
		TopRatio:          0.5,
		LambdaPenalty:     0.1,
		Tolerance:         0.1,
		Incremental:       false,
	}
}

// Partitioner builds and caches a Plan from a target task's history, similar
// source-task histories, and the fidelity levels a Scheduler advertises.
type Partitioner struct {
	TargetHistory   *history.History
	SourceHistories []*history.History
	Similarities    []history.SimilarityEntry
	FidelityLevels  []float64
	Options         Options
	Logger          *slog.Logger

	latestPlan *Plan
	dirty      bool
}

// NewPartitioner constructs a Partitioner. fidelityLevels should come from a
// Scheduler's GetFidelityLevels(); it must contain 1.0.
func NewPartitioner(target *history.History, sourceHistories []*history.History, similarities []history.SimilarityEntry, fidelityLevels []float64, opts Options, logger *slog.Logger) *Partitioner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Partitioner{
		TargetHistory:   target,
		SourceHistories: sourceHistories,
		Similarities:    similarities,
		FidelityLevels:  fidelityLevels,
		Options:         opts,
		Logger:          logger,
		dirty:           true,
	}
}

// MarkDirty flags the cached plan stale; marking dirty is idempotent. The
// caller is responsible for serializing concurrent BuildPlan calls — the
// plan cache is not re-entrant.
func (p *Partitioner) MarkDirty() { p.dirty = true }

// weightedHistory pairs a history with its BuildPlan weight.
type weightedHistory struct {
	h      *history.History
	weight float64
}

// BuildPlan recomputes and caches the plan. includeCurrentTask controls
// whether the target task's own (possibly still-small) history contributes
// alongside the source-task histories.
func (p *Partitioner) BuildPlan(includeCurrentTask bool) (*Plan, error) {
	pairs := p.weightedHistories(includeCurrentTask)
	if len(pairs) == 0 {
		return nil, mfboerrors.ConfigurationError("partition: no histories available to build a plan")
	}

	aggregates, subTasks, err := p.aggregate(pairs)
	if err != nil {
		return nil, err
	}

	stats := p.weightedStats(aggregates, subTasks)
	pairwise := pairwiseCorrelation(aggregates, subTasks)

	sort.Strings(subTasks)
	fidelitySubsets := map[float64][]string{1.0: subTasks}
	subsetCorrelation := map[float64]float64{1.0: 1.0}

	ascending := ascendingNonFull(p.FidelityLevels)
	used := map[string]bool{}
	for _, f := range ascending {
		if !p.Options.Incremental {
			used = map[string]bool{}
		}
		selected := selectSubsetWithPenalty(stats, pairwise, f, p.Options.Tolerance, p.Options.LambdaPenalty, used)
		for _, s := range selected {
			used[s] = true
		}
		sorted := append([]string(nil), selected...)
		sort.Strings(sorted)
		fidelitySubsets[f] = sorted
		subsetCorrelation[f] = subsetCorrelationOf(stats, sorted)
	}

	weights := make([]float64, len(pairs))
	for i, pr := range pairs {
		weights[i] = pr.weight
	}

	plan := &Plan{
		FidelitySubsets: fidelitySubsets,
		SQLStats:        stats,
		Metadata: PlanMetadata{
			Histories:         len(pairs),
			Weights:           weights,
			SubsetCorrelation: subsetCorrelation,
		},
	}
	p.latestPlan = plan
	p.dirty = false
	return plan, nil
}

func (p *Partitioner) weightedHistories(includeCurrentTask bool) []weightedHistory {
	var pairs []weightedHistory
	if includeCurrentTask && p.TargetHistory != nil && p.TargetHistory.Len() > 0 {
		pairs = append(pairs, weightedHistory{h: p.TargetHistory, weight: p.Options.CurrentTaskWeight})
	}

	var totalSim float64
	for _, e := range p.Similarities {
		totalSim += e.Similarity
	}
	for _, e := range p.Similarities {
		if e.SourceIndex < 0 || e.SourceIndex >= len(p.SourceHistories) {
			continue
		}
		h := p.SourceHistories[e.SourceIndex]
		if h.Len() == 0 {
			continue
		}
		weight := e.Similarity
		if totalSim > 0 {
			weight = e.Similarity / totalSim
		}
		pairs = append(pairs, weightedHistory{h: h, weight: weight})
	}
	return pairs
}

// aggregateRecord is one history's contribution to the weighted-statistics
// calculation: its top-TopRatio-by-objective average objective and
// per-sub-task average time, calibrated against the first history's first
// configuration so absolute time scales are comparable across runs.
type aggregateRecord struct {
	weight    float64
	objective float64
	subTimes  map[string]float64
}

func (p *Partitioner) aggregate(pairs []weightedHistory) ([]aggregateRecord, []string, error) {
	var calibration float64 = 1.0
	haveCalibration := false

	subTaskSet := map[string]bool{}
	records := make([]aggregateRecord, 0, len(pairs))

	for _, pr := range pairs {
		raw := pr.h.Observations()
		obs := append([]history.Observation(nil), raw...)
		sort.SliceStable(obs, func(i, j int) bool { return obs[i].Objective < obs[j].Objective })
		topRatio := p.Options.TopRatio
		if topRatio <= 0 || topRatio > 1 {
			topRatio = 1
		}
		k := int(math.Ceil(float64(len(obs)) * topRatio))
		if k < 1 {
			k = 1
		}
		if k > len(obs) {
			k = len(obs)
		}
		top := obs[:k]

		if len(raw) > 0 {
			first := raw[0].Objective
			if !haveCalibration && !math.IsInf(first, 0) && first != 0 {
				calibration = first
				haveCalibration = true
			}
		}

		scale := 1.0
		if haveCalibration && len(raw) > 0 && !math.IsInf(raw[0].Objective, 0) && raw[0].Objective != 0 {
			scale = calibration / raw[0].Objective
		}

		var objSum float64
		timeSums := map[string]float64{}
		timeCounts := map[string]int{}
		zeroSubstitutions := 0
		for _, o := range top {
			obj := o.Objective
			if math.IsInf(obj, 0) {
				obj = 0
				zeroSubstitutions++
			}
			objSum += obj * scale
			for sql, t := range o.ExtraInfo.QTTime {
				timeSums[sql] += t * scale
				timeCounts[sql]++
				subTaskSet[sql] = true
			}
		}
		if zeroSubstitutions > 0 {
			p.Logger.Warn("partition: non-finite objective substituted with 0 before weighting",
				"history", pr.h.TaskID, "count", zeroSubstitutions)
		}

		avgTimes := map[string]float64{}
		for sql, sum := range timeSums {
			avgTimes[sql] = sum / float64(timeCounts[sql])
		}

		records = append(records, aggregateRecord{
			weight:    pr.weight,
			objective: objSum / float64(len(top)),
			subTimes:  avgTimes,
		})
	}

	subTasks := make([]string, 0, len(subTaskSet))
	for s := range subTaskSet {
		subTasks = append(subTasks, s)
	}
	sort.Strings(subTasks)
	return records, subTasks, nil
}

// weightedStats computes, per sub-task, estimated_time (normalized weighted
// time share) and correlation (weighted Pearson between the sub-task's
// per-history time and that history's aggregate objective).
func (p *Partitioner) weightedStats(records []aggregateRecord, subTasks []string) map[string]SQLStat {
	weights := make([]float64, len(records))
	objectives := make([]float64, len(records))
	var totalWeightedTime float64
	for i, r := range records {
		weights[i] = r.weight
		objectives[i] = r.objective
		totalWeightedTime += r.weight * r.objective
	}

	out := make(map[string]SQLStat, len(subTasks))
	for _, sql := range subTasks {
		times := make([]float64, len(records))
		var weightedTimeSum, totalTime float64
		for i, r := range records {
			t := r.subTimes[sql]
			times[i] = t
			weightedTimeSum += r.weight * t
			totalTime += t
		}

		estimated := 0.0
		if totalWeightedTime != 0 {
			estimated = weightedTimeSum / totalWeightedTime
		}

		corr := 0.0
		if len(records) >= 2 {
			corr = stat.Correlation(times, objectives, weights)
			if math.IsNaN(corr) {
				corr = 0
			}
		}

		out[sql] = SQLStat{
			EstimatedTime: estimated,
			Correlation:   corr,
			AvgTime:       totalTime / float64(len(records)),
			TotalTime:     totalTime,
			Tolerance:     p.Options.Tolerance,
		}
	}
	return out
}

func ascendingNonFull(levels []float64) []float64 {
	out := make([]float64, 0, len(levels))
	for _, f := range levels {
		if f < 1.0 {
			out = append(out, f)
		}
	}
	sort.Float64s(out)
	return out
}

func subsetCorrelationOf(stats map[string]SQLStat, subset []string) float64 {
	if len(subset) == 0 {
		return 0
	}
	var sum float64
	for _, s := range subset {
		sum += stats[s].Correlation
	}
	return sum / float64(len(subset))
}

// roundRatio matches the Planner's exact-key lookup granularity.
func roundRatio(v float64) float64 { return math.Round(v*1e5) / 1e5 }
