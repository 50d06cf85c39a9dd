package config

import (
	"strings"
	"testing"
	"time"
)

type envTestConfig struct {
	Port int `env:"TEST_PORT" envDefault:"123"`
}

func TestParseEnvDefaults(t *testing.T) {
	var cfg envTestConfig

	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("expected default port 123, got %d", cfg.Port)
	}
}

func TestParseEnvError(t *testing.T) {
	var cfg envTestConfig
	t.Setenv("CONTENTREPO_TEST_PORT", "not-an-int")

	err := ParseEnv(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "parse env:") {
		t.Fatalf("expected parse env prefix, got %v", err)
	}
}

type workerTestConfig struct {
	PollInterval time.Duration `env:"TEST_POLL_INTERVAL" envDefault:"2s"`
	Projections  []string      `env:"TEST_PROJECTIONS" envSeparator:","`
}

func TestParseEnvDurationsAndLists(t *testing.T) {
	t.Setenv("CONTENTREPO_TEST_PROJECTIONS", "contentgraph,assetusage")

	var cfg workerTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.PollInterval != 2*time.Second {
		t.Fatalf("poll interval = %v, want 2s", cfg.PollInterval)
	}
	if len(cfg.Projections) != 2 || cfg.Projections[1] != "assetusage" {
		t.Fatalf("projections = %v, want [contentgraph assetusage]", cfg.Projections)
	}
}

func TestParseEnvIgnoresUnprefixedVariables(t *testing.T) {
	t.Setenv("TEST_PORT", "9")

	var cfg envTestConfig
	if err := ParseEnv(&cfg); err != nil {
		t.Fatalf("parse env: %v", err)
	}
	if cfg.Port != 123 {
		t.Fatalf("port = %d, want default 123", cfg.Port)
	}
}

func TestEnvPrefix(t *testing.T) {
	if !strings.HasSuffix(EnvPrefix, "_") {
		t.Fatalf("env prefix %q should end with an underscore", EnvPrefix)
	}
}
