package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "info" || cfg.Log.MaxSizeMB != 10 || cfg.NoPrompt {
		t.Errorf("unexpected defaults %+v", cfg)
	}
}

func TestWriteAndLoad(t *testing.T) {
	dir := t.TempDir()
	cfg := Default()
	cfg.ServerPath = "$/proj"
	cfg.NoPrompt = true
	cfg.Log.Level = "debug"

	if err := Write(dir, cfg); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ServerPath != "$/proj" || !got.NoPrompt || got.Log.Level != "debug" {
		t.Errorf("unexpected config %+v", got)
	}
	if want := filepath.Join(dir, "logs", "tfvc.log"); got.Log.File != want {
		t.Errorf("log file = %s, want %s", got.Log.File, want)
	}
}

func TestEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("log:\n  level: warn\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("TFVC_LOG_LEVEL", "error")
	t.Setenv("TFVC_NOPROMPT", "true")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Log.Level != "error" {
		t.Errorf("log level = %q, want env override", cfg.Log.Level)
	}
	if !cfg.NoPrompt {
		t.Error("expected TFVC_NOPROMPT to apply")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("log: [unclosed\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Error("expected error for malformed config")
	}
}
