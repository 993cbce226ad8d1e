package advisor

import "github.com/wuhaolei455/mfbo-go/configspace"

// ValidationStrategy filters and repairs candidate configurations before
// they leave the advisor, e.g. rejecting combinations a downstream planner
// cannot execute.
type ValidationStrategy interface {
	IsValid(cfg *configspace.Configuration) bool
	// Sanitize returns a (possibly new) configuration attempting to repair
	// an invalid one. Implementations that cannot repair a configuration may
	// return it unchanged; the caller re-checks IsValid afterward.
	Sanitize(cfg *configspace.Configuration) *configspace.Configuration
}

// AcceptAll is the default ValidationStrategy: every configuration the
// config space can produce is considered valid.
type AcceptAll struct{}

func (AcceptAll) IsValid(*configspace.Configuration) bool { return true }

func (AcceptAll) Sanitize(cfg *configspace.Configuration) *configspace.Configuration { return cfg }
