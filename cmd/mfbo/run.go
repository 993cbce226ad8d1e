package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/evaluator"
	"github.com/wuhaolei455/mfbo-go/history"
	"github.com/wuhaolei455/mfbo-go/optimizer"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run an optimization task from scratch",
		Long:  "Run samples, evaluates, and records configurations against the declared space until the iteration budget is exhausted.",
		RunE:  runRun,
	}
	addRunFlags(cmd)
	return cmd
}

func newResumeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "resume <history.json>",
		Short: "Resume a previously saved task from its history file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cmd.Flags().Set("resume", args[0]); err != nil {
				return err
			}
			return runRun(cmd, args)
		},
	}
	addRunFlags(cmd)
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("space", "", "path to a JSON config-space schema file (required)")
	f.String("opt", "GP", "method id, selects advisor/scheduler/surrogate kind (GP, BOHB_GP, MFES_GP, SMAC, ...)")
	f.String("task-id", "test", "task identifier, also the result file's base name")
	f.String("target", "redis", "target workload name, used to namespace results and backups")
	f.Int("iter_num", 200, "total iteration budget")
	f.Float64("R", 9, "maximum resource budget for successive-halving schedulers")
	f.Float64("eta", 3, "successive-halving elimination factor")
	f.Int("num-nodes", 1, "parallel evaluation width")
	f.String("surrogate", "prf", "surrogate model kind (prf, gp, ...)")
	f.String("acq", "ei", "acquisition function (ei, ucb, ...)")
	f.Int("init-num", 3, "number of random configurations sampled before model-guided search begins")
	f.String("warm_start", "none", "warm-start strategy (none, best_all, best_rover, ...)")
	f.String("transfer", "none", "transfer-learning strategy (none, mce, re, mceacq, reacq)")
	f.Int64("seed", 0, "random seed")
	f.Float64("rand_prob", 0.3, "probability the acquisition selector falls back to pure random sampling")
	f.String("rand_mode", "rs", "stochastic control: 'rs' keeps rand_prob as configured, 'ran' forces pure random sampling")
	f.String("resume", "", "path to a previously saved history JSON to resume from")
	f.Bool("backup", false, "record the completed task for future transfer learning once it finishes")
	f.String("save-dir", "./results", "directory results are written under")
	f.String("backup-dir", "./backup", "directory backups are written under")
	f.StringSlice("source-history", nil, "paths to prior tasks' history JSON files, used for transfer learning")
	f.Float64("similarity-threshold", 0, "minimum similarity for a source history to be used")
	f.StringSlice("similarity", nil, "explicit source-index:similarity pairs, e.g. 0:0.9,1:0.2 (similarities are not computed automatically)")
	f.String("evaluator", "mock", "evaluator backend (mock, noop)")
	f.Float64("evaluator-noise", 0.05, "observation noise for the mock evaluator")
	f.Bool("verbose", false, "enable debug logging")
	f.Bool("log-json", false, "emit structured JSON log lines instead of text")
	f.Bool("metrics", false, "export OpenTelemetry metrics via a Prometheus reader")
	f.Bool("tracing", false, "enable OpenTelemetry tracing with console span export")
	f.String("audit-log", "", "path to append a structured JSON audit trail, empty to disable")
}

func runRun(cmd *cobra.Command, args []string) error {
	v, err := initViper(cmd)
	if err != nil {
		return err
	}
	logger := newLogger(v.GetBool("verbose"), v.GetBool("log-json"), v.GetBool("tracing"))

	schemaPath := v.GetString("space")
	if schemaPath == "" {
		return fmt.Errorf("--space is required: a JSON config-space schema file describing the parameters to tune")
	}
	schemaData, err := os.ReadFile(schemaPath)
	if err != nil {
		return fmt.Errorf("reading config space schema: %w", err)
	}
	space, err := configspace.ParseSchemaJSON(schemaData)
	if err != nil {
		return fmt.Errorf("parsing config space schema: %w", err)
	}

	cfg := optimizer.DefaultConfig()
	cfg.MethodID = v.GetString("opt")
	cfg.TaskID = v.GetString("task-id")
	cfg.Target = v.GetString("target")
	cfg.IterNum = v.GetInt("iter_num")
	cfg.R = v.GetFloat64("R")
	cfg.Eta = v.GetFloat64("eta")
	cfg.NumNodes = v.GetInt("num-nodes")
	cfg.SurrogateType = v.GetString("surrogate")
	cfg.AcqType = v.GetString("acq")
	cfg.InitNum = v.GetInt("init-num")
	cfg.WSStrategy = v.GetString("warm_start")
	cfg.TLStrategy = v.GetString("transfer")
	cfg.Seed = v.GetInt64("seed")
	cfg.RandProb = v.GetFloat64("rand_prob")
	if v.GetString("rand_mode") == "ran" {
		cfg.RandProb = 1.0
	}
	cfg.Resume = v.GetString("resume")
	cfg.BackupFlag = v.GetBool("backup")
	cfg.SaveDir = v.GetString("save-dir")
	cfg.BackupDir = v.GetString("backup-dir")
	cfg.SimilarityThreshold = v.GetFloat64("similarity-threshold")

	sourceHistories, err := loadSourceHistories(v.GetStringSlice("source-history"), space)
	if err != nil {
		return err
	}
	cfg.SourceHistories = sourceHistories

	similarities, err := parseSimilarities(v.GetStringSlice("similarity"))
	if err != nil {
		return err
	}
	cfg.Similarities = similarities

	evaluators, err := buildEvaluators(v.GetString("evaluator"), space, cfg.Seed, v.GetFloat64("evaluator-noise"))
	if err != nil {
		return err
	}

	opts, shutdown, err := buildObservability(v)
	if err != nil {
		return err
	}
	defer shutdown()

	opt, err := optimizer.New(space, evaluators, cfg, logger, opts...)
	if err != nil {
		return fmt.Errorf("constructing optimizer: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("mfbo: starting task", "task_id", cfg.TaskID, "method", cfg.MethodID, "iter_num", cfg.IterNum)
	if err := opt.Run(ctx); err != nil {
		return fmt.Errorf("running optimizer: %w", err)
	}
	logger.Info("mfbo: task complete", "task_id", cfg.TaskID, "iterations", opt.IterID)
	return nil
}

func loadSourceHistories(paths []string, space *configspace.ConfigSpace) ([]*history.History, error) {
	if len(paths) == 0 {
		return nil, nil
	}
	out := make([]*history.History, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("reading source history %s: %w", p, err)
		}
		h := &history.History{}
		if err := json.Unmarshal(data, h); err != nil {
			return nil, fmt.Errorf("parsing source history %s: %w", p, err)
		}
		h.RehydrateFrom(space)
		out = append(out, h)
	}
	return out, nil
}

// parseSimilarities decodes "sourceIndex:similarity" pairs, e.g. "0:0.9,1:0.2".
func parseSimilarities(pairs []string) ([]history.SimilarityEntry, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	entries := make([]history.SimilarityEntry, 0, len(pairs))
	for _, pair := range pairs {
		parts := strings.SplitN(pair, ":", 2)
		if len(parts) != 2 {
			return nil, fmt.Errorf("invalid --similarity entry %q, want index:similarity", pair)
		}
		idx, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			return nil, fmt.Errorf("invalid source index in %q: %w", pair, err)
		}
		sim, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid similarity value in %q: %w", pair, err)
		}
		entries = append(entries, history.SimilarityEntry{SourceIndex: idx, Similarity: sim})
	}
	return entries, nil
}

func buildEvaluators(kind string, space *configspace.ConfigSpace, seed int64, noise float64) ([]evaluator.Evaluator, error) {
	switch kind {
	case "mock":
		return []evaluator.Evaluator{evaluator.NewMockEvaluator(space, seed, noise)}, nil
	case "noop":
		return []evaluator.Evaluator{evaluator.NoOpEvaluator{}}, nil
	default:
		return nil, fmt.Errorf("unknown evaluator backend %q, want mock or noop", kind)
	}
}
