package surrogate

import "github.com/wuhaolei455/mfbo-go/history"

// TaskContext pairs one trained surrogate with the history it was trained
// on, for use by acquisition functions that need per-task predictions (the
// weighted-rank acquisition in particular).
type TaskContext struct {
	Surrogate Surrogate
	History   *history.History
	Eta       float64
	NumData   int
}

// AcquisitionContext is everything an acquisition function needs to score a
// candidate: one TaskContext per source task plus the target task, and the
// ensemble weights aligning with Tasks (nil for a single-task surrogate).
type AcquisitionContext struct {
	Tasks        []TaskContext
	Weights      []float64
	mainSurrogate Surrogate
}

// SetMainSurrogate records which surrogate produced this context, so an
// acquisition optimizer can re-query it directly (e.g. for gradient-free
// local search restarts) without re-deriving it from Tasks.
func (c *AcquisitionContext) SetMainSurrogate(s Surrogate) {
	c.mainSurrogate = s
}

// MainSurrogate returns the surrogate that produced this context.
func (c *AcquisitionContext) MainSurrogate() Surrogate {
	return c.mainSurrogate
}
