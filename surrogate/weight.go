package surrogate

import (
	"math"
	"math/rand"
	"sort"
)

// WeightCalculator derives per-task ensemble weights from source and target
// surrogate predictions, given ground-truth target objectives.
type WeightCalculator interface {
	// Calculate returns a weight vector of length numTasks (source tasks
	// followed by the target task), summing to 1.
	Calculate(muList, varList [][]float64, yTrue []float64, numTasks int, opts CalculateOptions) []float64
	// IgnoredFlags reports, per task, whether the most recent Calculate
	// call excluded it via weight dilution. Empty for calculators that
	// never dilute.
	IgnoredFlags() []bool
}

// CalculateOptions carries the optional keyword arguments the Python
// original passes via **kwargs: only RGPEWeightCalculator's dilution path
// consumes them.
type CalculateOptions struct {
	InstanceNum int
	KFoldNum    int
	OnlySource  bool
}

// calculatePreservingOrderNum counts, over every pair of indices, how many
// pairs agree in relative order between predicted and true values.
func calculatePreservingOrderNum(yPred, yTrue []float64) (preserving, total int) {
	n := len(yPred)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			trueGreater := yTrue[i] > yTrue[j]
			predGreater := yPred[i] > yPred[j]
			if trueGreater == predGreater {
				preserving++
			}
			total++
		}
	}
	return preserving, total
}

// MFGPEWeightCalculator implements the MFGPE power-rule weighting: each
// task's weight is proportional to its rank-preservation ratio raised to a
// fixed power, normalized to sum to 1.
type MFGPEWeightCalculator struct {
	NPower int
}

// NewMFGPEWeightCalculator returns a calculator with the Python default
// power of 3.
func NewMFGPEWeightCalculator() *MFGPEWeightCalculator {
	return &MFGPEWeightCalculator{NPower: 3}
}

func (c *MFGPEWeightCalculator) Calculate(muList, varList [][]float64, yTrue []float64, numTasks int, opts CalculateOptions) []float64 {
	p := make([]float64, numTasks)
	for i := 0; i < numTasks; i++ {
		preserving, total := calculatePreservingOrderNum(muList[i], yTrue)
		if total == 0 {
			p[i] = 0
			continue
		}
		p[i] = float64(preserving) / float64(total)
	}

	power := make([]float64, numTasks)
	sum := 0.0
	for i, v := range p {
		power[i] = math.Pow(v, float64(c.NPower))
		sum += power[i]
	}
	if sum == 0 {
		uniform := 1.0 / float64(numTasks)
		for i := range power {
			power[i] = uniform
		}
		return power
	}
	for i := range power {
		power[i] /= sum
	}
	return power
}

func (c *MFGPEWeightCalculator) IgnoredFlags() []bool { return nil }

// RGPEWeightCalculator implements the RGPE weighting: Monte Carlo sampling
// from each task's predictive distribution, counting how often each task's
// sampled ranking loss is the smallest. With UseDilution, tasks whose median
// ranking loss exceeds the target task's 95th-percentile ranking loss are
// zeroed out (weight dilution).
type RGPEWeightCalculator struct {
	NumSample   int
	UseDilution bool
	Rng         *rand.Rand

	ignoredFlags []bool
}

// NewRGPEWeightCalculator returns a calculator with the Python default of
// 50 Monte Carlo samples and dilution disabled.
func NewRGPEWeightCalculator(rng *rand.Rand) *RGPEWeightCalculator {
	return &RGPEWeightCalculator{NumSample: 50, Rng: rng}
}

func (c *RGPEWeightCalculator) Calculate(muList, varList [][]float64, yTrue []float64, numTasks int, opts CalculateOptions) []float64 {
	if c.UseDilution {
		return c.calculateWithDilution(muList, varList, yTrue, numTasks, opts)
	}
	c.ignoredFlags = nil
	return c.calculateBasic(muList, varList, yTrue, numTasks)
}

func (c *RGPEWeightCalculator) calculateBasic(muList, varList [][]float64, yTrue []float64, numTasks int) []float64 {
	argminCounts := make([]float64, numTasks)
	for s := 0; s < c.NumSample; s++ {
		losses := c.sampleRankingLosses(muList, varList, yTrue, numTasks)
		argminCounts[argminIndex(losses)]++
	}
	for i := range argminCounts {
		argminCounts[i] /= float64(c.NumSample)
	}
	return argminCounts
}

func (c *RGPEWeightCalculator) calculateWithDilution(muList, varList [][]float64, yTrue []float64, numTasks int, opts CalculateOptions) []float64 {
	instanceNum := opts.InstanceNum
	if instanceNum == 0 {
		instanceNum = len(yTrue)
	}
	kFoldNum := opts.KFoldNum
	if kFoldNum == 0 {
		kFoldNum = 5
	}

	argminCounts := make([]float64, numTasks)
	lossCaches := make([][]float64, c.NumSample)

	for s := 0; s < c.NumSample; s++ {
		losses := make([]float64, numTasks)
		for i := 0; i < numTasks-1; i++ {
			losses[i] = c.sampleOneTaskLoss(muList[i], varList[i], yTrue)
		}

		if instanceNum >= kFoldNum {
			losses[numTasks-1] = c.sampleOneTaskLoss(muList[numTasks-1], varList[numTasks-1], yTrue)
		} else {
			losses[numTasks-1] = float64(instanceNum * instanceNum)
		}

		lossCaches[s] = losses
		argminCounts[argminIndex(losses)]++
	}

	w := make([]float64, numTasks)
	for i := range w {
		w[i] = argminCounts[i] / float64(c.NumSample)
	}

	ignoredFlags := make([]bool, numTasks)
	targetLosses := column(lossCaches, numTasks-1)
	threshold := percentile(targetLosses, 0.95)
	for i := 0; i < numTasks-1; i++ {
		median := percentile(column(lossCaches, i), 0.5)
		ignoredFlags[i] = median > threshold
	}
	ignoredFlags[numTasks-1] = opts.OnlySource

	for i := 0; i < numTasks; i++ {
		if ignoredFlags[i] {
			w[i] = 0
		}
	}

	sumW := 0.0
	for _, v := range w {
		sumW += v
	}
	if sumW == 0 {
		for i := range w {
			w[i] = 0
		}
		if opts.OnlySource {
			for i := 0; i < numTasks-1; i++ {
				w[i] = 1.0 / float64(numTasks-1)
			}
		} else {
			w[numTasks-1] = 1.0
		}
	} else {
		for i := range w {
			w[i] /= sumW
		}
	}

	c.ignoredFlags = ignoredFlags
	return w
}

func (c *RGPEWeightCalculator) sampleRankingLosses(muList, varList [][]float64, yTrue []float64, numTasks int) []float64 {
	losses := make([]float64, numTasks)
	for i := 0; i < numTasks; i++ {
		losses[i] = c.sampleOneTaskLoss(muList[i], varList[i], yTrue)
	}
	return losses
}

func (c *RGPEWeightCalculator) sampleOneTaskLoss(mu, variance, yTrue []float64) float64 {
	sampled := make([]float64, len(mu))
	for i := range mu {
		std := math.Sqrt(math.Max(variance[i], 0))
		sampled[i] = mu[i] + std*c.Rng.NormFloat64()
	}
	preserving, total := calculatePreservingOrderNum(sampled, yTrue)
	return float64(total - preserving)
}

func (c *RGPEWeightCalculator) IgnoredFlags() []bool { return c.ignoredFlags }

func argminIndex(values []float64) int {
	best := 0
	for i := 1; i < len(values); i++ {
		if values[i] < values[best] {
			best = i
		}
	}
	return best
}

func column(rows [][]float64, idx int) []float64 {
	out := make([]float64, len(rows))
	for i, row := range rows {
		out[i] = row[idx]
	}
	return out
}

// percentile returns the value at fraction q (0..1) of the sorted slice,
// using the same "sorted()[int(n*q)]" index-truncation the Python original
// uses rather than an interpolated quantile.
func percentile(values []float64, q float64) float64 {
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	idx := int(float64(len(sorted)) * q)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	if idx < 0 {
		idx = 0
	}
	return sorted[idx]
}
