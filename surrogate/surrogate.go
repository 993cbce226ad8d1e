// Package surrogate implements the response-surface models an advisor
// fits to observed (configuration, objective) pairs: single-task base
// surrogates (a bagged random forest and a Gaussian process), the rank-based
// weight calculators that combine source-task and target-task predictions,
// and the transfer-learning ensemble that ties them together.
package surrogate

import "github.com/wuhaolei455/mfbo-go/history"

// Surrogate predicts a mean and variance for a batch of feature rows,
// having been trained on a prior batch.
type Surrogate interface {
	// Train fits the model to X (n_samples x n_features, already normalized
	// to [0,1] per dimension) and y (n_samples, already target-normalized).
	Train(X [][]float64, y []float64) error
	// Predict returns per-row mean and variance, aligned to X's row order.
	// Variance is floored at 1e-10.
	Predict(X [][]float64) (mean, variance []float64, err error)
}

// GetAcquisitionContext builds the single-task AcquisitionContext a plain
// (non transfer-learning) Surrogate exposes: itself, trained against h, with
// no source tasks and no weights.
func GetAcquisitionContext(s Surrogate, h *history.History) AcquisitionContext {
	return AcquisitionContext{
		Tasks: []TaskContext{{
			Surrogate: s,
			History:   h,
			Eta:       h.GetIncumbentValue(),
			NumData:   h.Len(),
		}},
	}
}

// Model is what an Advisor trains and queries: a Surrogate plus the ability
// to produce an AcquisitionContext for it. TransferLearningEnsemble
// implements it directly; SingleTask adapts a plain base Surrogate (PRF or
// GP) to the same shape so the advisor never has to special-case the
// no-transfer-learning configuration.
type Model interface {
	Surrogate
	GetAcquisitionContext(h *history.History) AcquisitionContext
}

// SingleTask adapts a plain Surrogate into a Model with no source tasks.
type SingleTask struct {
	Surrogate
}

func (s SingleTask) GetAcquisitionContext(h *history.History) AcquisitionContext {
	return GetAcquisitionContext(s.Surrogate, h)
}
