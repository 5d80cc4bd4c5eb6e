package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/clamp-sh/clamp/internal/config"
)

func TestRenderConfig_RoundTrips(t *testing.T) {
	rendered := renderConfig(initAnswers{
		DataDir:     "/var/lib/clamp",
		Bind:        "127.0.0.1:9090",
		BearerToken: "secret",
		Kind:        "tiktoken",
		Model:       "gpt-4o",
		Warning:     "50000",
		Critical:    "70000",
		Backend:     "sqlite",
	})

	path := filepath.Join(t.TempDir(), "clamp.yaml")
	if err := os.WriteFile(path, []byte(rendered), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := config.Validate(cfg); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Engine.WarningTokens != 50000 || cfg.Engine.CriticalTokens != 70000 {
		t.Errorf("thresholds = %d/%d, want 50000/70000", cfg.Engine.WarningTokens, cfg.Engine.CriticalTokens)
	}
	if cfg.Estimator.Kind != "tiktoken" || cfg.Estimator.Model != "gpt-4o" {
		t.Errorf("estimator = %+v", cfg.Estimator)
	}
	if cfg.Gateway.Auth.BearerToken != "secret" {
		t.Errorf("bearer_token = %q, want secret", cfg.Gateway.Auth.BearerToken)
	}
}

func TestRenderConfig_NoAuth(t *testing.T) {
	rendered := renderConfig(initAnswers{
		DataDir:  "data",
		Bind:     "127.0.0.1:8080",
		Kind:     "chars",
		Warning:  "60000",
		Critical: "80000",
		Backend:  "memory",
	})

	path := filepath.Join(t.TempDir(), "clamp.yaml")
	if err := os.WriteFile(path, []byte(rendered), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Gateway.Auth.BearerToken != "" {
		t.Errorf("bearer_token = %q, want empty", cfg.Gateway.Auth.BearerToken)
	}
	if cfg.Archive.Backend != "memory" {
		t.Errorf("backend = %q, want memory", cfg.Archive.Backend)
	}
}

func TestValidInt(t *testing.T) {
	if err := validInt(" 42 "); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := validInt("many"); err == nil {
		t.Error("expected error for non-numeric input")
	}
}
