package evaluator

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"testing"

	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/partition"
)

func evalTestSpace(t *testing.T) *configspace.ConfigSpace {
	t.Helper()
	min, max := 0.0, 10.0
	cs, err := configspace.NewConfigSpace(configspace.Schema{
		"x": {Type: "integer", Min: &min, Max: &max, Default: float64(1)},
	})
	if err != nil {
		t.Fatalf("NewConfigSpace() error = %v", err)
	}
	return cs
}

type failingEvaluator struct{}

func (failingEvaluator) Evaluate(context.Context, *configspace.Configuration, float64, *partition.PlanResult) (Result, error) {
	return Result{}, errors.New("boom")
}

type panickingEvaluator struct{}

func (panickingEvaluator) Evaluate(context.Context, *configspace.Configuration, float64, *partition.PlanResult) (Result, error) {
	panic("evaluator exploded")
}

func TestManagerCallSuccessPath(t *testing.T) {
	space := evalTestSpace(t)
	mgr, err := NewManager([]Evaluator{NoOpEvaluator{}}, nil, slog.Default())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	res := mgr.Call(context.Background(), space.DefaultConfiguration(), 1.0)
	if res.Timeout || res.Objective != 0 {
		t.Errorf("expected a clean zero-cost result, got %+v", res)
	}
}

func TestManagerCallSynthesizesDefaultOnError(t *testing.T) {
	space := evalTestSpace(t)
	mgr, err := NewManager([]Evaluator{failingEvaluator{}}, nil, slog.Default())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	res := mgr.Call(context.Background(), space.DefaultConfiguration(), 1.0)
	if !res.Timeout || !math.IsInf(res.Objective, 1) {
		t.Errorf("expected a +Inf/TIMEOUT synthesized result, got %+v", res)
	}
}

func TestManagerCallRecoversPanic(t *testing.T) {
	space := evalTestSpace(t)
	mgr, err := NewManager([]Evaluator{panickingEvaluator{}}, nil, slog.Default())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	res := mgr.Call(context.Background(), space.DefaultConfiguration(), 1.0)
	if !res.Timeout || !math.IsInf(res.Objective, 1) {
		t.Errorf("expected a +Inf/TIMEOUT synthesized result after panic, got %+v", res)
	}
}

func TestManagerReturnsSlotAfterCall(t *testing.T) {
	space := evalTestSpace(t)
	mgr, err := NewManager([]Evaluator{NoOpEvaluator{}}, nil, slog.Default())
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	for i := 0; i < 5; i++ {
		mgr.Call(context.Background(), space.DefaultConfiguration(), 1.0)
	}
	if len(mgr.slots) != 1 {
		t.Errorf("expected the single slot to be returned after every call, queue length = %d", len(mgr.slots))
	}
}

func TestMockEvaluatorDeterministicForSameSeed(t *testing.T) {
	space := evalTestSpace(t)
	cfg := space.DefaultConfiguration()

	e1 := NewMockEvaluator(space, 42, 0)
	e2 := NewMockEvaluator(space, 42, 0)

	r1, err := e1.Evaluate(context.Background(), cfg, 1.0, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	r2, err := e2.Evaluate(context.Background(), cfg, 1.0, nil)
	if err != nil {
		t.Fatalf("Evaluate() error = %v", err)
	}
	if r1.Objective != r2.Objective {
		t.Errorf("expected identical objectives for identical seeds, got %v and %v", r1.Objective, r2.Objective)
	}
}

func TestNewManagerRejectsEmptySlots(t *testing.T) {
	if _, err := NewManager(nil, nil, nil); err == nil {
		t.Errorf("expected error when no evaluator slots are provided")
	}
}
