// Package history records observations made against a target task (or a
// source task carried over for transfer learning), and the per-resource-ratio
// bookkeeping multi-fidelity advisors need.
package history

import (
	"math"

	"github.com/wuhaolei455/mfbo-go/configspace"
)

// TrialState is the outcome of one evaluation.
type TrialState string

const (
	TrialSuccess TrialState = "SUCCESS"
	TrialTimeout TrialState = "TIMEOUT"
	TrialFailed  TrialState = "FAILED"
)

// ExtraInfo is the open tagged record carried alongside an observation: a
// handful of well-known keys plus a catch-all map, per the Design Notes
// guidance on modeling Python's free-form extra_info dict.
type ExtraInfo struct {
	Origin          string
	QTTime          map[string]float64
	ETTime          map[string]float64
	LowDimConfig    map[string]float64
	PlanSQLs        []string
	PlanTimeout     float64
	Traceback       string
	Extra           map[string]interface{}
}

// Observation is one recorded trial.
//
// Invariant: TIMEOUT and FAILED observations are retained with a non-finite
// Objective (+Inf).
type Observation struct {
	Config      *configspace.Configuration
	Objective   float64
	TrialState  TrialState
	ElapsedTime float64
	ExtraInfo   ExtraInfo
}

// NewObservation classifies a raw evaluator result record into an
// Observation, following the Evaluator Manager's result contract: timeout
// implies TrialTimeout, a non-empty traceback implies TrialFailed, otherwise
// TrialSuccess.
func NewObservation(cfg *configspace.Configuration, objective float64, timeout bool, traceback string, elapsed float64, extra ExtraInfo) Observation {
	state := TrialSuccess
	switch {
	case timeout:
		state = TrialTimeout
	case traceback != "":
		state = TrialFailed
	}

	if state != TrialSuccess && !math.IsInf(objective, 1) {
		objective = math.Inf(1)
	}

	extra.Traceback = traceback
	return Observation{
		Config:      cfg,
		Objective:   objective,
		TrialState:  state,
		ElapsedTime: elapsed,
		ExtraInfo:   extra,
	}
}

// ObjectiveTransform controls how non-finite objectives are reported by
// History.GetObjectives.
type ObjectiveTransform int

const (
	// TransformNone returns raw objectives, including non-finite ones.
	TransformNone ObjectiveTransform = iota
	// TransformInfeasible replaces non-finite objectives with a large
	// finite penalty so downstream numeric code (e.g. surrogate training)
	// never has to special-case +Inf.
	TransformInfeasible
)

// InfeasiblePenalty is the large finite value substituted for non-finite
// objectives under TransformInfeasible.
const InfeasiblePenalty = 1e10
