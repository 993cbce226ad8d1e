package optimizer

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/wuhaolei455/mfbo-go/configspace"
	"github.com/wuhaolei455/mfbo-go/evaluator"
	"github.com/wuhaolei455/mfbo-go/scheduler"
)

func testSpace(t *testing.T) *configspace.ConfigSpace {
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

func testConfig(t *testing.T, methodID string) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.MethodID = methodID
	cfg.TaskID = "unit-test"
	cfg.SaveDir = t.TempDir()
	cfg.BackupDir = t.TempDir()
	cfg.NumNodes = 1
	cfg.InitNum = 2
	cfg.IterNum = 2
	return cfg
}

func TestSchedulerTypeFromMethodID(t *testing.T) {
	cases := map[string]string{
		"GP":       "full",
		"SMAC":     "full",
		"BOHB_GP":  "bohb",
		"MFES_GP":  "mfes",
		"MFES_SMAC": "mfes",
	}
	for methodID, want := range cases {
		if got := schedulerType(methodID); got != want {
			t.Errorf("schedulerType(%q) = %q, want %q", methodID, got, want)
		}
	}
}

func TestNewSelectsFixedFidelitySchedulerForPlainGP(t *testing.T) {
	space := testSpace(t)
	cfg := testConfig(t, "GP")
	opt, err := New(space, []evaluator.Evaluator{evaluator.NoOpEvaluator{}}, cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := opt.Scheduler.(*scheduler.FixedFidelityScheduler); !ok {
		t.Errorf("expected a FixedFidelityScheduler for method id %q, got %T", cfg.MethodID, opt.Scheduler)
	}
}

func TestNewSelectsBOHBScheduler(t *testing.T) {
	space := testSpace(t)
	cfg := testConfig(t, "BOHB_GP")
	opt, err := New(space, []evaluator.Evaluator{evaluator.NoOpEvaluator{}}, cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if _, ok := opt.Scheduler.(*scheduler.BOHBScheduler); !ok {
		t.Errorf("expected a BOHBScheduler for method id %q, got %T", cfg.MethodID, opt.Scheduler)
	}
}

func TestRunOneIterationInitPhaseRecordsObservationsAndSavesHistory(t *testing.T) {
	space := testSpace(t)
	cfg := testConfig(t, "GP")
	opt, err := New(space, []evaluator.Evaluator{evaluator.NoOpEvaluator{}}, cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := opt.RunOneIteration(context.Background()); err != nil {
		t.Fatalf("RunOneIteration() error = %v", err)
	}

	if got := opt.TaskManager.CurrentHistory.Len(); got != cfg.NumNodes {
		t.Errorf("expected %d observations after one init-phase iteration, got %d", cfg.NumNodes, got)
	}
	if _, err := os.Stat(opt.resultPath); err != nil {
		t.Errorf("expected a saved history file at %s: %v", opt.resultPath, err)
	}
}

func TestRunCompletesConfiguredIterationCount(t *testing.T) {
	space := testSpace(t)
	cfg := testConfig(t, "GP")
	opt, err := New(space, []evaluator.Evaluator{evaluator.NoOpEvaluator{}}, cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := opt.Run(context.Background()); err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if opt.IterID != cfg.IterNum {
		t.Errorf("IterID = %d, want %d", opt.IterID, cfg.IterNum)
	}
}

func TestRecordTaskSkipsBelowMinimumIterations(t *testing.T) {
	space := testSpace(t)
	cfg := testConfig(t, "GP")
	opt, err := New(space, []evaluator.Evaluator{evaluator.NoOpEvaluator{}}, cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	opt.IterID = backupMinIterations - 1
	opt.recordTask()
	if len(opt.backups) != 0 {
		t.Errorf("expected no backup recorded below the minimum iteration threshold, got %d", len(opt.backups))
	}

	opt.IterID = backupMinIterations
	opt.recordTask()
	if len(opt.backups) != 1 {
		t.Errorf("expected exactly one backup recorded at the minimum iteration threshold, got %d", len(opt.backups))
	}
}

func TestSaveBackupAndReloadRoundTrips(t *testing.T) {
	space := testSpace(t)
	cfg := testConfig(t, "GP")
	cfg.BackupFlag = true
	opt, err := New(space, []evaluator.Evaluator{evaluator.NoOpEvaluator{}}, cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	opt.IterID = backupMinIterations
	opt.recordTask()
	if err := opt.saveBackupAtomic(); err != nil {
		t.Fatalf("saveBackupAtomic() error = %v", err)
	}
	if _, err := os.Stat(opt.backupPath); err != nil {
		t.Fatalf("expected a backup file at %s: %v", opt.backupPath, err)
	}

	backups, err := opt.Backups()
	if err != nil {
		t.Fatalf("Backups() error = %v", err)
	}
	if len(backups) != 1 {
		t.Fatalf("expected exactly one decoded backup, got %d", len(backups))
	}
}

func TestBuildPathsCreatesResultDirectory(t *testing.T) {
	space := testSpace(t)
	cfg := testConfig(t, "GP")
	opt, err := New(space, []evaluator.Evaluator{evaluator.NoOpEvaluator{}}, cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	want := filepath.Join(cfg.SaveDir, cfg.Target, cfg.MethodID)
	if info, err := os.Stat(want); err != nil || !info.IsDir() {
		t.Errorf("expected result directory %s to exist", want)
	}
}
