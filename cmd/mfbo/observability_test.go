package main

import (
	"path/filepath"
	"testing"

	"github.com/spf13/viper"
)

func newObsViper(t *testing.T) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetDefault("tracing", false)
	v.SetDefault("metrics", false)
	v.SetDefault("audit-log", "")
	return v
}

func TestBuildObservabilityNoopWhenNothingEnabled(t *testing.T) {
	v := newObsViper(t)
	opts, shutdown, err := buildObservability(v)
	defer shutdown()
	if err != nil {
		t.Fatalf("buildObservability() error = %v", err)
	}
	if len(opts) != 0 {
		t.Errorf("expected no optimizer options when nothing is enabled, got %d", len(opts))
	}
}

func TestBuildObservabilityAuditLogOpensFile(t *testing.T) {
	v := newObsViper(t)
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	v.Set("audit-log", path)

	opts, shutdown, err := buildObservability(v)
	defer shutdown()
	if err != nil {
		t.Fatalf("buildObservability() error = %v", err)
	}
	if len(opts) != 1 {
		t.Errorf("expected exactly one optimizer option for the audit logger, got %d", len(opts))
	}
}
