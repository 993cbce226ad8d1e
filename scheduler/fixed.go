package scheduler

import (
	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/mfboerrors"
)

// FixedFidelityScheduler is the degenerate s_max=0 case: a single bracket,
// a single stage, every configuration evaluated at the full resource R.
// This is what plain BO (not BOHB/MFES) uses.
type FixedFidelityScheduler struct {
	Nodes int
}

// NewFixedFidelityScheduler builds a full-fidelity scheduler. numNodes is
// the batch size the optimizer asks the advisor to sample each iteration.
func NewFixedFidelityScheduler(numNodes int) (*FixedFidelityScheduler, error) {
	if numNodes < 1 {
		return nil, mfboerrors.ConfigurationError("FixedFidelityScheduler: num_nodes must be >= 1, got %d", numNodes)
	}
	return &FixedFidelityScheduler{Nodes: numNodes}, nil
}

func (s *FixedFidelityScheduler) GetBracketIndex(int) int { return 0 }

func (s *FixedFidelityScheduler) GetStageParams(bracket, stage int) (int, int, error) {
	if bracket != 0 || stage != 0 {
		return 0, 0, mfboerrors.OutOfRange("FixedFidelityScheduler: only (s=0, stage=0) is valid, got (%d, %d)", bracket, stage)
	}
	return s.Nodes, 1, nil
}

func (s *FixedFidelityScheduler) CalculateResourceRatio(int) float64 { return 1.0 }

func (s *FixedFidelityScheduler) GetEliminationCount(bracket, stage int) (int, error) {
	if bracket != 0 || stage != 0 {
		return 0, mfboerrors.OutOfRange("FixedFidelityScheduler: only (s=0, stage=0) is valid, got (%d, %d)", bracket, stage)
	}
	return s.Nodes, nil
}

func (s *FixedFidelityScheduler) NumNodes() int { return s.Nodes }

func (s *FixedFidelityScheduler) EliminateCandidates(configs []*configspace.Configuration, perfs []float64, bracket, stage int) ([]*configspace.Configuration, []float64, error) {
	keep, err := s.GetEliminationCount(bracket, stage)
	if err != nil {
		return nil, nil, err
	}
	return eliminate(configs, perfs, keep)
}

func (s *FixedFidelityScheduler) GetFidelityLevels() []float64 { return []float64{1.0} }

func (s *FixedFidelityScheduler) ShouldUpdateHistory(float64) bool { return true }
