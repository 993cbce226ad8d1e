package advisor

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wuhaolei455/mfbo-go/compressor"
	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/history"
)

// WarmStarter produces a pending queue of initial configurations from
// similar source tasks, to be drained before the regular acquisition loop
// starts proposing candidates.
type WarmStarter interface {
	GetInitialConfigs(
		sourceHistories []*history.History,
		similarities []history.SimilarityEntry,
		initNum int,
		comp compressor.Compressor,
		numEvaluated int,
		sample func(n int) []*configspace.Configuration,
	) []*configspace.Configuration
}

// NoWarmStart never contributes initial configurations.
type NoWarmStart struct{}

func (NoWarmStart) GetInitialConfigs([]*history.History, []history.SimilarityEntry, int, compressor.Compressor, int, func(int) []*configspace.Configuration) []*configspace.Configuration {
	return nil
}

// BestConfigsWarmStart selects the TopK best-observed configurations from
// each similar source task (ranked by similarity, most similar first),
// interleaved rank-major so every source task contributes before any task
// contributes a second pick, and pads the front of the queue with random
// samples when the similar tasks cannot fill init_num*TopK slots.
type BestConfigsWarmStart struct {
	Strategy string
	TopK     int
}

func (w BestConfigsWarmStart) GetInitialConfigs(
	sourceHistories []*history.History,
	similarities []history.SimilarityEntry,
	initNum int,
	comp compressor.Compressor,
	numEvaluated int,
	sample func(n int) []*configspace.Configuration,
) []*configspace.Configuration {
	if len(sourceHistories) == 0 || len(similarities) == 0 {
		return nil
	}

	type topSet struct {
		sourceIndex int
		similarity  float64
		taskID      string
		top         []history.Observation
	}
	sets := make([]topSet, 0, len(similarities))
	for _, e := range similarities {
		if e.SourceIndex < 0 || e.SourceIndex >= len(sourceHistories) {
			continue
		}
		h := sourceHistories[e.SourceIndex]
		obs := append([]history.Observation(nil), h.Observations()...)
		sort.SliceStable(obs, func(i, j int) bool { return obs[i].Objective < obs[j].Objective })
		k := w.TopK
		if k > len(obs) {
			k = len(obs)
		}
		sets = append(sets, topSet{sourceIndex: e.SourceIndex, similarity: e.Similarity, taskID: h.TaskID, top: obs[:k]})
	}

	targetLength := initNum * w.TopK
	var iniList []*configspace.Configuration
	for rank := 0; rank < w.TopK; rank++ {
		if len(iniList)+numEvaluated >= targetLength {
			break
		}
		for _, set := range sets {
			if len(iniList)+numEvaluated >= targetLength {
				break
			}
			if rank >= len(set.top) {
				continue
			}
			cfg := comp.ProjectPoint(set.top[rank].Config.Clone())
			cfg.Origin = fmt.Sprintf("%s_%s_%.4f_rank%d", w.Strategy, set.taskID, set.similarity, rank)
			iniList = append(iniList, cfg)
		}
	}

	reversed := make([]*configspace.Configuration, len(iniList))
	for i, c := range iniList {
		reversed[len(iniList)-1-i] = c
	}
	iniList = reversed

	for len(iniList)+numEvaluated < targetLength {
		cfg := sample(1)[0]
		cfg.Origin = w.Strategy + " Warm Start Random Sample"
		iniList = append([]*configspace.Configuration{cfg}, iniList...)
	}
	return iniList
}

// CreateWarmStarter returns the WarmStarter named by wsStrategy, or
// NoWarmStart if warm starting or transfer learning is disabled. topK is the
// number of per-source-task candidates to draw; BOHB/MFES method ids use
// ws_args.topk, plain BO uses 1.
func CreateWarmStarter(wsStrategy, tlStrategy, methodID string, topK int) WarmStarter {
	if wsStrategy == "" || wsStrategy == "none" || tlStrategy == "" || tlStrategy == "none" {
		return NoWarmStart{}
	}
	if topK < 1 {
		topK = 1
	}
	if !strings.Contains(methodID, "BOHB") && !strings.Contains(methodID, "MFES") {
		topK = 1
	}
	switch wsStrategy {
	case "best_all", "best_rover":
		return BestConfigsWarmStart{Strategy: wsStrategy, TopK: topK}
	default:
		return NoWarmStart{}
	}
}
