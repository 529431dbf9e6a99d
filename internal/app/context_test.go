package app

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"taskgen/internal/config"
	"taskgen/internal/repo"
)

func TestOpenUsesDefaultsWithoutConfigFile(t *testing.T) {
	dir := t.TempDir()
	env, err := Open(context.Background(), dir, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer env.Close()
	if env.Config.Generator.Seed != 1729 {
		t.Fatalf("expected default seed, got %d", env.Config.Generator.Seed)
	}
	if env.Engine.Orchestrator.OutputDir != filepath.Join(dir, "output") {
		t.Fatalf("output dir not resolved: %s", env.Engine.Orchestrator.OutputDir)
	}
	runs, err := env.Engine.Repo.ListRuns(context.Background(), repo.RunFilters{})
	if err != nil || len(runs) != 0 {
		t.Fatalf("fresh ledger: %v %v", runs, err)
	}
}

func TestOpenReadsWorkspaceConfig(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(config.Path(dir), []byte("generator:\n  seed: 99\npaths:\n  output_dir: /tmp/taskgen-out\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	env, err := Open(context.Background(), dir, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer env.Close()
	if env.Config.Generator.Seed != 99 || env.Engine.Orchestrator.OutputDir != "/tmp/taskgen-out" {
		t.Fatalf("config not applied: %+v", env.Config)
	}
}

func TestOpenRejectsInvalidConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "custom.yml")
	if err := os.WriteFile(path, []byte("generator:\n  num_samples: -1\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := Open(context.Background(), dir, Options{ConfigPath: path}); err == nil {
		t.Fatalf("expected invalid config error")
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "warn")
	logger.Info("hidden")
	logger.Warn("shown")
	if strings.Contains(buf.String(), "hidden") || !strings.Contains(buf.String(), "shown") {
		t.Fatalf("unexpected log output %q", buf.String())
	}
}
