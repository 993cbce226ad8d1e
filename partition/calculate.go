package partition

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"
)

// pairwiseCorrelation returns, for every pair of sub-tasks, the weighted
// Pearson correlation between their per-history time vectors — the
// "weighted_spearman(sub, s')" redundancy term in spec.md §4.6's greedy
// selection (named Spearman there; gonum exposes weighted Pearson, not a
// weighted rank correlation, so this engine substitutes Pearson — see
// DESIGN.md).
func pairwiseCorrelation(records []aggregateRecord, subTasks []string) map[string]map[string]float64 {
	weights := make([]float64, len(records))
	for i, r := range records {
		weights[i] = r.weight
	}

	timeSeries := make(map[string][]float64, len(subTasks))
	for _, sql := range subTasks {
		series := make([]float64, len(records))
		for i, r := range records {
			series[i] = r.subTimes[sql]
		}
		timeSeries[sql] = series
	}

	out := make(map[string]map[string]float64, len(subTasks))
	for _, a := range subTasks {
		out[a] = make(map[string]float64, len(subTasks))
		for _, b := range subTasks {
			if a == b {
				out[a][b] = 1
				continue
			}
			if len(records) < 2 {
				out[a][b] = 0
				continue
			}
			c := stat.Correlation(timeSeries[a], timeSeries[b], weights)
			if math.IsNaN(c) {
				c = 0
			}
			out[a][b] = c
		}
	}
	return out
}

// selectSubset greedily picks sub-tasks for fidelity f, per spec.md §4.6:
//
//	budget = f (the fidelity itself; in a correctly normalized stats map,
//	  Σ estimated_time over all sub-tasks is 1.0, so f·Σestimated_time
//	  reduces to f — see DESIGN.md for why the literal "f·Σestimated_time"
//	  reading does not reproduce spec.md's own Scenario 5 walkthrough),
//	max_budget = budget · (1 + tolerance),
//	score(sub) = correlation(sub) − lambda · max(|pairwiseCorr(sub, s')|
//	  for s' already selected),
//	loop: pick the best-scoring not-yet-used sub whose estimated_time fits
//	  under budget; stop when none fits or current_time >= max_budget.
func selectSubset(stats map[string]SQLStat, fidelity, tolerance, lambda float64, excludeUsed map[string]bool) []string {
	return selectSubsetWithPenalty(stats, nil, fidelity, tolerance, lambda, excludeUsed)
}

func selectSubsetWithPenalty(stats map[string]SQLStat, pairwise map[string]map[string]float64, fidelity, tolerance, lambda float64, excludeUsed map[string]bool) []string {
	budget := fidelity
	maxBudget := budget * (1 + tolerance)

	candidates := make([]string, 0, len(stats))
	for sql := range stats {
		if excludeUsed != nil && excludeUsed[sql] {
			continue
		}
		candidates = append(candidates, sql)
	}
	sort.Strings(candidates)

	var selected []string
	currentTime := 0.0

	for currentTime < maxBudget {
		bestSQL := ""
		bestScore := math.Inf(-1)
		for _, sql := range candidates {
			if contains(selected, sql) {
				continue
			}
			if currentTime+stats[sql].EstimatedTime > budget {
				continue
			}
			penalty := 0.0
			if lambda != 0 && pairwise != nil {
				for _, s := range selected {
					if v := math.Abs(pairwise[sql][s]); v > penalty {
						penalty = v
					}
				}
			}
			score := stats[sql].Correlation - lambda*penalty
			if score > bestScore {
				bestScore = score
				bestSQL = sql
			}
		}
		if bestSQL == "" {
			break
		}
		selected = append(selected, bestSQL)
		currentTime += stats[bestSQL].EstimatedTime
	}
	return selected
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
