// Package scheduler decides, per iteration, the bracket index, stage count,
// per-stage (n_configs, n_resource) pair, elimination count, and whether an
// observation updates the main history or a fidelity-specific one.
package scheduler

import (
	"math"
	"sort"

	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/mfboerrors"
)

// Scheduler is the contract the optimizer loop drives every iteration.
type Scheduler interface {
	// GetBracketIndex returns the bracket s to run for iterID.
	GetBracketIndex(iterID int) int

	// GetStageParams returns (n_configs, n_resource) for stage of bracket s.
	GetStageParams(s, stage int) (nConfigs, nResource int, err error)

	// CalculateResourceRatio converts an absolute resource level into a
	// ratio in (0, 1], rounded to 5 decimals.
	CalculateResourceRatio(nResource int) float64

	// GetEliminationCount returns how many candidates survive stage of
	// bracket s.
	GetEliminationCount(s, stage int) (int, error)

	// EliminateCandidates stable-sorts ascending by objective and keeps the
	// top GetEliminationCount(s, stage) entries.
	EliminateCandidates(configs []*configspace.Configuration, perfs []float64, s, stage int) ([]*configspace.Configuration, []float64, error)

	// GetFidelityLevels returns every resource ratio this scheduler can
	// produce, sorted ascending, always containing 1.0.
	GetFidelityLevels() []float64

	// ShouldUpdateHistory reports whether an observation at ratio belongs
	// in the advisor's main history (true) or a per-ratio one (false).
	ShouldUpdateHistory(ratio float64) bool

	// NumNodes returns the parallelism width the optimizer loop should use
	// for its initialization-phase batch size.
	NumNodes() int
}

// roundRatio rounds a resource ratio to 5 decimal places, matching the
// Planner's exact-key lookup granularity.
func roundRatio(v float64) float64 {
	return math.Round(v*1e5) / 1e5
}

// eliminate is the shared stable-sort-and-truncate used by every scheduler
// kind; it implements spec scenario 6 (perfs sorted ascending, ties broken
// by original position because sort.SliceStable is stable).
func eliminate(configs []*configspace.Configuration, perfs []float64, keep int) ([]*configspace.Configuration, []float64, error) {
	if len(configs) != len(perfs) {
		return nil, nil, mfboerrors.OutOfRange("eliminate_candidates: %d configs but %d perfs", len(configs), len(perfs))
	}
	if keep < 0 {
		keep = 0
	}
	if keep > len(configs) {
		keep = len(configs)
	}

	idx := make([]int, len(configs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return perfs[idx[i]] < perfs[idx[j]] })

	outConfigs := make([]*configspace.Configuration, keep)
	outPerfs := make([]float64, keep)
	for i := 0; i < keep; i++ {
		outConfigs[i] = configs[idx[i]]
		outPerfs[i] = perfs[idx[i]]
	}
	return outConfigs, outPerfs, nil
}
