// Package acquisition implements the closed-form single-objective
// acquisition functions (Expected Improvement, Upper Confidence Bound) and
// the rank-based Weighted Rank acquisition used when a transfer-learning
// surrogate ensemble is active.
package acquisition

import "github.com/wuhaolei455/mfbo-go/surrogate"

// Function scores a batch of candidate feature rows, higher is better.
// Implementations are stateful: Update must be called with a fresh
// AcquisitionContext whenever the backing surrogate has been retrained.
type Function interface {
	Update(ctx surrogate.AcquisitionContext)
	Compute(X [][]float64) []float64
}
