package partition

import "log/slog"

// PlanSource identifies where a PlanResult's subset came from.
type PlanSource string

const (
	PlanSourcePartition PlanSource = "partition"
	PlanSourceFallback  PlanSource = "fallback"
)

// PlanResult is what Planner.Plan hands the Evaluator Manager: the sub-task
// subset to run, a derived timeout, which fidelity it was keyed by, and
// where the answer came from.
type PlanResult struct {
	SQLs             []string
	Timeout          float64
	SelectedFidelity float64
	PlanSource       PlanSource
}

// Planner wraps a Partitioner with exact-ratio lookup and an optional
// fallback table, matching spec.md §4.6's Planner.plan contract.
type Planner struct {
	Partitioner *Partitioner
	Fallback    map[float64]PlanResult
	Logger      *slog.Logger
}

// NewPlanner builds a Planner over partitioner, with an optional fallback
// table keyed by resource ratio (rounded to 5 decimals).
func NewPlanner(partitioner *Partitioner, fallback map[float64]PlanResult, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.Default()
	}
	if fallback == nil {
		fallback = map[float64]PlanResult{}
	}
	return &Planner{Partitioner: partitioner, Fallback: fallback, Logger: logger}
}

// Plan looks up the subset for resourceRatio. If the partitioner's cached
// plan is missing or dirty (or forceRefresh is set), it is rebuilt first.
// An exact-rounded-ratio miss falls back to the configured fallback table
// when allowFallback is true; otherwise it returns (nil, nil) — "no plan" is
// not an error, evaluators must accept a nil plan.
func (pl *Planner) Plan(resourceRatio float64, forceRefresh, allowFallback bool) (*PlanResult, error) {
	if pl.Partitioner.latestPlan == nil || pl.Partitioner.dirty || forceRefresh {
		if _, err := pl.Partitioner.BuildPlan(true); err != nil {
			return nil, err
		}
	}

	ratio := roundRatio(resourceRatio)
	plan := pl.Partitioner.latestPlan
	if sqls, ok := plan.FidelitySubsets[ratio]; ok {
		return &PlanResult{
			SQLs:             sqls,
			Timeout:          estimateTimeout(plan, sqls),
			SelectedFidelity: ratio,
			PlanSource:       PlanSourcePartition,
		}, nil
	}

	if allowFallback {
		if fb, ok := pl.Fallback[ratio]; ok {
			pl.Logger.Warn("partition: using fallback plan", "resource_ratio", ratio)
			result := fb
			result.PlanSource = PlanSourceFallback
			return &result, nil
		}
	}
	return nil, nil
}

func estimateTimeout(plan *Plan, sqls []string) float64 {
	var total float64
	for _, s := range sqls {
		st := plan.SQLStats[s]
		total += st.AvgTime * (1 + st.Tolerance)
	}
	return total
}
