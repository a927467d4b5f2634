package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load("")

	if cfg.LLM.MaxConcurrent != 5 {
		t.Fatalf("default concurrency budget: got %d", cfg.LLM.MaxConcurrent)
	}
	if cfg.Pipeline.MinTextLen != 10 {
		t.Fatalf("default min text length: got %d", cfg.Pipeline.MinTextLen)
	}
	if cfg.Language.Target != "ru" {
		t.Fatalf("default target language: got %s", cfg.Language.Target)
	}
	if cfg.Aggregator.FlushWindow() != 2*time.Second {
		t.Fatalf("default flush window: got %s", cfg.Aggregator.FlushWindow())
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
llm:
  model: test-model
pipeline:
  minTextLen: 42
aggregator:
  window: 250ms
`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := Load(path)

	if cfg.LLM.Model != "test-model" {
		t.Fatalf("model not merged: got %s", cfg.LLM.Model)
	}
	if cfg.Pipeline.MinTextLen != 42 {
		t.Fatalf("minTextLen not merged: got %d", cfg.Pipeline.MinTextLen)
	}
	if cfg.Aggregator.FlushWindow() != 250*time.Millisecond {
		t.Fatalf("window not merged: got %s", cfg.Aggregator.FlushWindow())
	}
	// Untouched sections keep their defaults.
	if cfg.Pipeline.TagCap != 10 {
		t.Fatalf("tagCap default lost: got %d", cfg.Pipeline.TagCap)
	}
}

func TestEnvOverridesWin(t *testing.T) {
	t.Setenv(databasePathEnv, "/tmp/env.db")
	t.Setenv(llmModelEnv, "env-model")

	cfg := Load("")

	if cfg.Database.Path != "/tmp/env.db" {
		t.Fatalf("database path env override lost: got %s", cfg.Database.Path)
	}
	if cfg.LLM.Model != "env-model" {
		t.Fatalf("model env override lost: got %s", cfg.LLM.Model)
	}
}

func TestDurationFallbacks(t *testing.T) {
	bad := AggregatorConfig{Window: "not-a-duration", Retention: "-5s"}
	if bad.FlushWindow() != 2*time.Second {
		t.Fatalf("invalid window must fall back, got %s", bad.FlushWindow())
	}
	if bad.RetentionWindow() != time.Minute {
		t.Fatalf("invalid retention must fall back, got %s", bad.RetentionWindow())
	}
}
