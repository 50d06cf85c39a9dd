package cmd

import (
	"context"
	"errors"
	"flag"
	"testing"
	"time"
)

type testConfig struct {
	Address string        `env:"CMD_TEST_ADDRESS" envDefault:"127.0.0.1:8080"`
	Mode    string        `env:"CMD_TEST_MODE" envDefault:"server"`
	Poll    time.Duration `env:"CMD_TEST_POLL" envDefault:"2s"`
}

func bindTestConfig(cfg *testConfig, fs *flag.FlagSet) {
	fs.StringVar(&cfg.Address, "address", cfg.Address, "address")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "mode")
	fs.DurationVar(&cfg.Poll, "poll", cfg.Poll, "poll interval")
}

func TestParseConfigLayersFlagsOverEnv(t *testing.T) {
	t.Setenv("CONTENTREPO_CMD_TEST_ADDRESS", "env:9000")
	t.Setenv("CONTENTREPO_CMD_TEST_MODE", "env-mode")

	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	cfg, err := ParseConfig(fs, []string{"-address", "flag:9001"}, bindTestConfig)
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.Address != "flag:9001" {
		t.Fatalf("address = %q, want %q", cfg.Address, "flag:9001")
	}
	if cfg.Mode != "env-mode" {
		t.Fatalf("mode = %q, want %q", cfg.Mode, "env-mode")
	}
	if cfg.Poll != 2*time.Second {
		t.Fatalf("poll = %v, want 2s", cfg.Poll)
	}
}

func TestParseConfigErrors(t *testing.T) {
	if _, err := ParseConfig[testConfig](nil, nil, bindTestConfig); err == nil {
		t.Fatal("expected error for nil flag set")
	}

	t.Setenv("CONTENTREPO_CMD_TEST_POLL", "soon")
	if _, err := ParseConfig(flag.NewFlagSet("env", flag.ContinueOnError), nil, bindTestConfig); err == nil {
		t.Fatal("expected error for invalid env duration")
	}

	t.Setenv("CONTENTREPO_CMD_TEST_POLL", "1s")
	cfg, err := ParseConfig(flag.NewFlagSet("flags", flag.ContinueOnError), []string{"-unknown"}, bindTestConfig)
	if err == nil {
		t.Fatal("expected error for unknown flag")
	}
	if cfg != (testConfig{}) {
		t.Fatalf("config on error = %+v, want zero", cfg)
	}
}

func TestRunWithTelemetryRejectsMissingInputs(t *testing.T) {
	if err := RunWithTelemetry(context.Background(), "", func(context.Context) error { return nil }); err == nil {
		t.Fatal("expected missing service error")
	}
	if err := RunWithTelemetry(context.Background(), ServiceContentRepo, nil); err == nil {
		t.Fatal("expected missing run function error")
	}
}

func TestRunWithTelemetryPassesContextAndError(t *testing.T) {
	t.Setenv("CONTENTREPO_OTEL_ENDPOINT", "")
	type key struct{}
	ctx := context.WithValue(context.Background(), key{}, "value")
	want := errors.New("catch-up failed")
	err := RunWithTelemetry(ctx, ServiceMaintenance, func(got context.Context) error {
		if got.Value(key{}) != "value" {
			return errors.New("context not propagated")
		}
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("run error = %v, want %v", err, want)
	}
}
