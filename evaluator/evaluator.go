// Package evaluator dispatches candidate configurations to a bounded pool
// of concurrent evaluator slots and returns a uniform result record, per
// spec.md §4.7's Evaluator Manager.
package evaluator

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/history"
	"github.com/wuhaolei455/mfbo-go/partition"
)

// Result is the uniform record an Evaluator produces and the advisor
// consumes, matching spec.md §4.7's result-record contract.
type Result struct {
	Objective   float64
	Timeout     bool
	Traceback   string
	ElapsedTime float64
	ExtraInfo   history.ExtraInfo
}

// Evaluator runs one candidate configuration at a given resource ratio,
// optionally guided by a sub-task Plan. plan may be nil: an Evaluator must
// accept that.
type Evaluator interface {
	Evaluate(ctx context.Context, cfg *configspace.Configuration, resourceRatio float64, plan *partition.PlanResult) (Result, error)
}

// FallbackPlanner lets an Evaluator contribute its own fallback plan when
// the Planner itself fails or returns nil, matching spec.md §4.7 step 2's
// "subclass-provided fallback-plan" behavior.
type FallbackPlanner interface {
	FallbackPlan(resourceRatio float64) *partition.PlanResult
}

// Manager is the bounded-concurrency dispatcher: num_evaluator slot tokens,
// one concrete Evaluator per slot.
type Manager struct {
	evaluators []Evaluator
	slots      chan int
	planner    *partition.Planner
	logger     *slog.Logger
}

// NewManager builds a Manager with one slot per entry in evaluators. planner
// may be nil, in which case every Call runs with a nil plan.
func NewManager(evaluators []Evaluator, planner *partition.Planner, logger *slog.Logger) (*Manager, error) {
	if len(evaluators) == 0 {
		return nil, fmt.Errorf("evaluator: at least one evaluator slot is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	slots := make(chan int, len(evaluators))
	for i := range evaluators {
		slots <- i
	}
	return &Manager{evaluators: evaluators, slots: slots, planner: planner, logger: logger}, nil
}

// NumSlots reports the configured concurrency.
func (m *Manager) NumSlots() int { return len(m.evaluators) }

// Call blocks until a slot is free, dispatches cfg to that slot's evaluator,
// and always returns the slot before returning. Any error or panic from the
// evaluator is converted into a synthesized +Inf/TIMEOUT result rather than
// propagated, so the caller never has to special-case a failed evaluation.
// A planner error or panic does not fail the call: it is logged and the
// evaluator runs with its FallbackPlan, or with no plan.
func (m *Manager) Call(ctx context.Context, cfg *configspace.Configuration, resourceRatio float64) Result {
	var slot int
	select {
	case slot = <-m.slots:
	case <-ctx.Done():
		return m.defaultResult(ctx.Err())
	}
	defer func() { m.slots <- slot }()

	ev := m.evaluators[slot]
	plan := m.resolvePlan(ev, resourceRatio)

	return m.runEvaluator(ctx, ev, cfg, resourceRatio, plan)
}

func (m *Manager) resolvePlan(ev Evaluator, resourceRatio float64) *partition.PlanResult {
	if m.planner == nil {
		return nil
	}

	plan, err := func() (p *partition.PlanResult, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("planner panicked: %v", r)
			}
		}()
		return m.planner.Plan(resourceRatio, false, true)
	}()

	if err != nil || plan == nil {
		if err != nil {
			m.logger.Warn("evaluator: planner failed, trying fallback", "error", err)
		}
		if fb, ok := ev.(FallbackPlanner); ok {
			return fb.FallbackPlan(resourceRatio)
		}
		return nil
	}
	return plan
}

// runEvaluator executes ev.Evaluate on the calling goroutine's slot,
// recovering any panic into the default failure result — the Go analog of
// the original's "catch any exception, synthesize {objective: +Inf,
// timeout: true}".
func (m *Manager) runEvaluator(ctx context.Context, ev Evaluator, cfg *configspace.Configuration, resourceRatio float64, plan *partition.PlanResult) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("evaluator: panic during evaluation", "recovered", r)
			result = m.defaultResult(fmt.Errorf("evaluator panicked: %v", r))
		}
	}()

	res, err := ev.Evaluate(ctx, cfg, resourceRatio, plan)
	if err != nil {
		m.logger.Error("evaluator: evaluation failed", "error", err)
		return m.defaultResult(err)
	}
	if plan != nil {
		if res.ExtraInfo.PlanSQLs == nil {
			res.ExtraInfo.PlanSQLs = plan.SQLs
		}
		if res.ExtraInfo.PlanTimeout == 0 {
			res.ExtraInfo.PlanTimeout = plan.Timeout
		}
	}
	return res
}

// defaultResult is the Evaluator Manager's own failure synthesis: a
// TIMEOUT-flagged, +Inf-objective record with no traceback, matching
// spec.md §4.7's result-record contract literally (traceback: None on this
// path — the cause is logged separately, not threaded into the record).
func (m *Manager) defaultResult(error) Result {
	return Result{
		Objective: math.Inf(1),
		Timeout:   true,
	}
}
