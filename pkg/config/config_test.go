package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "autocode.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefaults(t *testing.T) {
	cfg := Default()
	if cfg.Backend.Name != "memory" {
		t.Errorf("expected memory backend default, got %q", cfg.Backend.Name)
	}
	if cfg.Audit.Threshold != 10 {
		t.Errorf("expected audit threshold 10, got %d", cfg.Audit.Threshold)
	}
	if !cfg.Cache.Enabled {
		t.Error("cache should default to enabled")
	}
	if cfg.StatePath != ".task_project.json" {
		t.Errorf("unexpected state path %q", cfg.StatePath)
	}
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
project_name: demo
spec_file: spec.md
backend:
  name: memory
  rate_limit:
    max_requests: 1500
    window: 1h
    max_wait: 15m
audit:
  threshold: 5
session:
  agent_command: "claude -p"
  continue_delay: 5s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ProjectName != "demo" {
		t.Errorf("project_name not parsed: %q", cfg.ProjectName)
	}
	if cfg.Backend.RateLimit == nil {
		t.Fatal("rate_limit not parsed")
	}
	if cfg.Backend.RateLimit.Window != time.Hour {
		t.Errorf("window duration not parsed: %s", cfg.Backend.RateLimit.Window)
	}
	if cfg.Backend.RateLimit.MaxRequests != 1500 {
		t.Errorf("max_requests not parsed: %d", cfg.Backend.RateLimit.MaxRequests)
	}
	if cfg.Audit.Threshold != 5 {
		t.Errorf("threshold not parsed: %d", cfg.Audit.Threshold)
	}
	if cfg.Session.ContinueDelay != 5*time.Second {
		t.Errorf("continue_delay not parsed: %s", cfg.Session.ContinueDelay)
	}
	// Unset keys keep their defaults.
	if cfg.DBPath != "autocode.db" {
		t.Errorf("db_path default lost: %q", cfg.DBPath)
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("AUTOCODE_TEST_DB", "/tmp/test.db")
	path := writeConfig(t, "db_path: ${AUTOCODE_TEST_DB}\n")

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.DBPath != "/tmp/test.db" {
		t.Errorf("env not expanded: %q", cfg.DBPath)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadInvalidThresholdFallsBack(t *testing.T) {
	path := writeConfig(t, "audit:\n  threshold: -1\n")
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Audit.Threshold != 10 {
		t.Errorf("expected fallback threshold 10, got %d", cfg.Audit.Threshold)
	}
}
