package acquisition

import (
	"math"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/wuhaolei455/mfbo-go/surrogate"
)

// EI is Expected Improvement for minimization, trading off exploitation
// (predicted mean below the incumbent) against exploration (predicted
// uncertainty).
type EI struct {
	// Par is the exploration-exploitation trade-off parameter; 0 by
	// default, positive values bias toward exploration.
	Par float64

	model surrogate.Surrogate
	eta   float64
	hasEta bool
}

// NewEI returns an EI acquisition with par=0, requiring Update before Compute.
func NewEI() *EI {
	return &EI{}
}

func (f *EI) Update(ctx surrogate.AcquisitionContext) {
	task := ctx.Tasks[len(ctx.Tasks)-1]
	f.model = task.Surrogate
	f.eta = task.Eta
	f.hasEta = task.NumData > 0
}

func (f *EI) Compute(X [][]float64) []float64 {
	out := make([]float64, len(X))
	if !f.hasEta {
		return out
	}

	mean, variance, err := f.model.Predict(X)
	if err != nil {
		return out
	}

	standardNormal := distuv.Normal{Mu: 0, Sigma: 1}
	for i := range X {
		std := math.Sqrt(variance[i])
		z := (f.eta - mean[i] - f.Par) / (std + 1e-9)
		ei := (f.eta-mean[i]-f.Par)*standardNormal.CDF(z) + std*standardNormal.Prob(z)
		if std < 1e-9 {
			ei = 0
		}
		out[i] = ei
	}
	return out
}
