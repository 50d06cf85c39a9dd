// Package cmd holds the startup steps shared by the contentrepo and
// maintenance commands.
package cmd

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	"github.com/louisbranch/contentrepo/internal/platform/config"
	"github.com/louisbranch/contentrepo/internal/platform/otel"
)

// otelShutdownTimeout bounds the final span flush.
const otelShutdownTimeout = 5 * time.Second

// Command names. They double as the telemetry service name.
const (
	ServiceContentRepo = "contentrepo"
	ServiceMaintenance = "contentrepo-maintenance"
)

// ParseConfig reads T from the environment, lets bind register flags that
// default to the environment values and parses args over them.
func ParseConfig[T any](fs *flag.FlagSet, args []string, bind func(cfg *T, fs *flag.FlagSet)) (T, error) {
	var cfg T
	if fs == nil {
		return cfg, errors.New("flag parser is required")
	}
	if err := config.ParseEnv(&cfg); err != nil {
		return cfg, err
	}
	if bind != nil {
		bind(&cfg, fs)
	}
	if args == nil {
		args = []string{}
	}
	if err := fs.Parse(args); err != nil {
		var zero T
		return zero, err
	}
	return cfg, nil
}

// RunWithTelemetry installs the tracer provider for service, calls run and
// flushes spans once it returns.
func RunWithTelemetry(ctx context.Context, service string, run func(context.Context) error) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return errors.New("service name is required")
	}
	if run == nil {
		return errors.New("run function is required")
	}
	shutdown, err := otel.Setup(ctx, service)
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), otelShutdownTimeout)
		defer cancel()
		if err := shutdown(shutdownCtx); err != nil {
			log.Printf("%s otel shutdown: %v", service, err)
		}
	}()
	return run(ctx)
}
