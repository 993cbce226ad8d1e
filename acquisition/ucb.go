package acquisition

import (
	"math"

	"github.com/wuhaolei455/mfbo-go/surrogate"
)

// UCB is Upper Confidence Bound for minimization: higher acquisition where
// the predicted mean is low or predicted uncertainty is high.
type UCB struct {
	// Kappa is the exploration parameter; 2.0 by default.
	Kappa float64

	model surrogate.Surrogate
}

// NewUCB returns a UCB acquisition with the default kappa of 2.0.
func NewUCB() *UCB {
	return &UCB{Kappa: 2.0}
}

func (f *UCB) Update(ctx surrogate.AcquisitionContext) {
	task := ctx.Tasks[len(ctx.Tasks)-1]
	f.model = task.Surrogate
}

func (f *UCB) Compute(X [][]float64) []float64 {
	out := make([]float64, len(X))
	mean, variance, err := f.model.Predict(X)
	if err != nil {
		return out
	}
	for i := range X {
		out[i] = -mean[i] + f.Kappa*math.Sqrt(variance[i])
	}
	return out
}
