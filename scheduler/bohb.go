package scheduler

import (
	"math"

	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/mfboerrors"
)

// bohbCore holds the successive-halving parameters shared by BOHBScheduler
// and MFESFidelityScheduler: s_max = floor(log_eta(R)), B = (s_max+1)*R,
// and the fidelity levels logspace(0, s_max, s_max+1, base=eta) / R.
type bohbCore struct {
	R        float64
	Eta      float64
	NumNodes int

	sMax     int
	b        float64
	fidelity []float64
}

func newBOHBCore(r, eta float64, numNodes int) (*bohbCore, error) {
	if r <= 0 {
		return nil, mfboerrors.ConfigurationError("scheduler: R must be > 0, got %v", r)
	}
	if eta <= 1 {
		return nil, mfboerrors.ConfigurationError("scheduler: eta must be > 1, got %v", eta)
	}
	if numNodes < 1 {
		return nil, mfboerrors.ConfigurationError("scheduler: num_nodes must be >= 1, got %d", numNodes)
	}

	sMax := int(math.Log(r) / math.Log(eta))
	b := float64(sMax+1) * r

	levels := make([]float64, sMax+1)
	for i := 0; i <= sMax; i++ {
		levels[i] = roundRatio(math.Pow(eta, float64(i)) / r)
	}

	core := &bohbCore{R: r, Eta: eta, NumNodes: numNodes, sMax: sMax, b: b, fidelity: levels}
	if err := core.validate(); err != nil {
		return nil, err
	}
	return core, nil
}

// validate is the constructor-time check named in spec.md §4.1: every
// resource level this core can produce must map, through
// CalculateResourceRatio, onto a fidelity level it advertises.
func (c *bohbCore) validate() error {
	known := make(map[float64]bool, len(c.fidelity))
	for _, f := range c.fidelity {
		known[f] = true
	}
	for s := 0; s <= c.sMax; s++ {
		_, r0 := c.bracketParams(s)
		ratio := roundRatio(float64(r0) / c.R)
		if !known[ratio] {
			return mfboerrors.ConfigurationError("scheduler: bracket s=%d produces resource ratio %v not in fidelity_levels %v", s, ratio, c.fidelity)
		}
	}
	return nil
}

// bracketParams returns the stage-0 (n_configs, n_resource) pair for
// bracket s, per spec.md §3's SchedulerBracket formulas.
func (c *bohbCore) bracketParams(s int) (nConfigs, nResource int) {
	inner := c.b / (c.R * float64(s+1)) * math.Pow(c.Eta, float64(s))
	n0 := int(math.Ceil(inner)) * c.NumNodes
	r0 := int(math.Floor(c.R * math.Pow(c.Eta, float64(-s))))
	return n0, r0
}

func (c *bohbCore) stageParams(s, stage int) (int, int, error) {
	if s < 0 || s > c.sMax || stage < 0 || stage > s {
		return 0, 0, mfboerrors.OutOfRange("scheduler: invalid (s=%d, stage=%d) for s_max=%d", s, stage, c.sMax)
	}
	n0, _ := c.bracketParams(s)
	nConfigs := int(math.Floor(float64(n0) * math.Pow(c.Eta, float64(-stage))))
	nResource := int(math.Floor(c.R * math.Pow(c.Eta, float64(stage-s))))
	return nConfigs, nResource, nil
}

func (c *bohbCore) eliminationCount(s, stage int) (int, error) {
	nConfigs, nResource, err := c.stageParams(s, stage)
	if err != nil {
		return 0, err
	}
	if nResource == int(c.R) {
		return nConfigs, nil
	}
	return int(math.Floor(float64(nConfigs) / c.Eta)), nil
}

func (c *bohbCore) bracketIndex(iterID int) int {
	cycle := c.sMax + 1
	pos := iterID % cycle
	if pos < 0 {
		pos += cycle
	}
	return c.sMax - pos
}

func (c *bohbCore) calculateResourceRatio(nResource int) float64 {
	return roundRatio(float64(nResource) / c.R)
}

func (c *bohbCore) fidelityLevels() []float64 {
	out := make([]float64, len(c.fidelity))
	copy(out, c.fidelity)
	return out
}

// BOHBScheduler implements successive halving (BOHB): sub-full-fidelity
// observations update only the advisor's per-ratio history, not its main
// one.
type BOHBScheduler struct {
	core *bohbCore
}

// NewBOHBScheduler builds a BOHB scheduler for the given max resource R,
// elimination factor eta, and number of nodes evaluated per stage.
func NewBOHBScheduler(r, eta float64, numNodes int) (*BOHBScheduler, error) {
	core, err := newBOHBCore(r, eta, numNodes)
	if err != nil {
		return nil, err
	}
	return &BOHBScheduler{core: core}, nil
}

func (s *BOHBScheduler) GetBracketIndex(iterID int) int { return s.core.bracketIndex(iterID) }

func (s *BOHBScheduler) GetStageParams(bracket, stage int) (int, int, error) {
	return s.core.stageParams(bracket, stage)
}

func (s *BOHBScheduler) CalculateResourceRatio(nResource int) float64 {
	return s.core.calculateResourceRatio(nResource)
}

func (s *BOHBScheduler) GetEliminationCount(bracket, stage int) (int, error) {
	return s.core.eliminationCount(bracket, stage)
}

func (s *BOHBScheduler) EliminateCandidates(configs []*configspace.Configuration, perfs []float64, bracket, stage int) ([]*configspace.Configuration, []float64, error) {
	keep, err := s.core.eliminationCount(bracket, stage)
	if err != nil {
		return nil, nil, err
	}
	return eliminate(configs, perfs, keep)
}

func (s *BOHBScheduler) GetFidelityLevels() []float64 { return s.core.fidelityLevels() }

func (s *BOHBScheduler) ShouldUpdateHistory(ratio float64) bool {
	return roundRatio(ratio) == 1.0
}

func (s *BOHBScheduler) NumNodes() int { return s.core.NumNodes }

// MFESFidelityScheduler reuses every BOHB formula but always routes
// observations to the advisor's main history: MFES partitions the
// per-resource bookkeeping inside the advisor/surrogate layer instead of at
// the scheduler boundary (Open Question #3, see DESIGN.md).
type MFESFidelityScheduler struct {
	core *bohbCore
}

// NewMFESFidelityScheduler builds an MFES scheduler with the same bracket
// math as BOHB.
func NewMFESFidelityScheduler(r, eta float64, numNodes int) (*MFESFidelityScheduler, error) {
	core, err := newBOHBCore(r, eta, numNodes)
	if err != nil {
		return nil, err
	}
	return &MFESFidelityScheduler{core: core}, nil
}

func (s *MFESFidelityScheduler) GetBracketIndex(iterID int) int { return s.core.bracketIndex(iterID) }

func (s *MFESFidelityScheduler) GetStageParams(bracket, stage int) (int, int, error) {
	return s.core.stageParams(bracket, stage)
}

func (s *MFESFidelityScheduler) CalculateResourceRatio(nResource int) float64 {
	return s.core.calculateResourceRatio(nResource)
}

func (s *MFESFidelityScheduler) GetEliminationCount(bracket, stage int) (int, error) {
	return s.core.eliminationCount(bracket, stage)
}

func (s *MFESFidelityScheduler) EliminateCandidates(configs []*configspace.Configuration, perfs []float64, bracket, stage int) ([]*configspace.Configuration, []float64, error) {
	keep, err := s.core.eliminationCount(bracket, stage)
	if err != nil {
		return nil, nil, err
	}
	return eliminate(configs, perfs, keep)
}

func (s *MFESFidelityScheduler) GetFidelityLevels() []float64 { return s.core.fidelityLevels() }

func (s *MFESFidelityScheduler) ShouldUpdateHistory(float64) bool { return true }

func (s *MFESFidelityScheduler) NumNodes() int { return s.core.NumNodes }
