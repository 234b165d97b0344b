package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "job.yml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadJobAppliesDefaultsAndOverrides(t *testing.T) {
	path := writeTempConfig(t, `
operation: create
storages:
  - /tmp/backup.archive
sources:
  - /tmp/data
compress:
  algorithm: zip
  level: 9
`)
	job, err := LoadJob(path)
	if err != nil {
		t.Fatalf("LoadJob: %v", err)
	}
	if job.Operation != "create" {
		t.Errorf("got operation %q", job.Operation)
	}
	if job.Compress.Algorithm != "zip" || job.Compress.Level != 9 {
		t.Errorf("got compress %+v", job.Compress)
	}
	if job.Options.FragmentSize != 64*1024 {
		t.Errorf("expected default fragment size to survive, got %d", job.Options.FragmentSize)
	}
}

func TestLoadJobRejectsUnknownOperation(t *testing.T) {
	path := writeTempConfig(t, `
operation: frobnicate
storages: [/tmp/x]
`)
	if _, err := LoadJob(path); err == nil {
		t.Fatal("expected error for unknown operation")
	}
}

func TestLoadJobRequiresStorages(t *testing.T) {
	path := writeTempConfig(t, `operation: create`)
	if _, err := LoadJob(path); err == nil {
		t.Fatal("expected error for missing storages")
	}
}

func TestLoadGlobalConfigDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Log.Backend != "slog" {
		t.Errorf("expected default backend slog, got %q", cfg.Log.Backend)
	}
	if cfg.Control.Socket == "" {
		t.Error("expected a default control socket path")
	}
}
