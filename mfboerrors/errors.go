// Package mfboerrors defines the typed error kinds used across the
// optimization engine, matching the propagation policy: only
// ConfigurationError is meant to surface above the optimizer loop, every
// other kind is localized to the call that produced it and logged.
package mfboerrors

import "fmt"

// Kind identifies one of the error categories recognized by the engine.
type Kind string

const (
	// KindConfiguration covers schema mismatches, unknown method ids, and
	// missing required constructor arguments. Not recoverable.
	KindConfiguration Kind = "configuration_error"
	// KindOutOfRange covers invalid stage/bracket indices passed to the
	// scheduler.
	KindOutOfRange Kind = "out_of_range"
	// KindEvaluationFailure covers an evaluator panic or error, captured
	// inside the Evaluator Manager and converted to a +Inf observation.
	KindEvaluationFailure Kind = "evaluation_failure"
	// KindInsufficientDataForCV covers target-task training with fewer
	// observations than the configured k-fold count.
	KindInsufficientDataForCV Kind = "insufficient_data_for_cv"
	// KindPlanUnavailable covers a planner miss with no usable fallback.
	KindPlanUnavailable Kind = "plan_unavailable"
	// KindCompressorRefit is not actually an error condition; it is
	// represented here so callers can use the same Error plumbing to
	// signal "the advisor must rebuild its models" without a distinct
	// control-flow type.
	KindCompressorRefit Kind = "compressor_refit_triggered"
)

// Error is the engine's uniform error type. Wrap it with fmt.Errorf's %w to
// preserve Kind through errors.As.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// Is reports whether target has the same Kind, satisfying errors.Is.
func (e *Error) Is(target error) bool {
	other, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == other.Kind
}

func newErr(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ConfigurationError builds a non-recoverable construction-time error.
func ConfigurationError(format string, args ...interface{}) *Error {
	return newErr(KindConfiguration, format, args...)
}

// OutOfRange builds a scheduler input-validation error.
func OutOfRange(format string, args ...interface{}) *Error {
	return newErr(KindOutOfRange, format, args...)
}

// EvaluationFailure wraps the cause of an evaluator failure.
func EvaluationFailure(cause error) *Error {
	return &Error{Kind: KindEvaluationFailure, Message: "evaluator raised an error", Cause: cause}
}

// InsufficientDataForCV signals the target-task history is too small for
// k-fold cross-validation; callers fall back to uniform weights, this is
// informational, not fatal.
func InsufficientDataForCV(have, need int) *Error {
	return newErr(KindInsufficientDataForCV, "have %d observations, need %d for k-fold CV", have, need)
}

// PlanUnavailable signals the planner returned no usable plan.
func PlanUnavailable(resourceRatio float64) *Error {
	return newErr(KindPlanUnavailable, "no plan for resource_ratio=%.5f", resourceRatio)
}

// Sentinel kind-check helpers.

func IsConfiguration(err error) bool { return hasKind(err, KindConfiguration) }
func IsOutOfRange(err error) bool    { return hasKind(err, KindOutOfRange) }

func hasKind(err error, kind Kind) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == kind
}
