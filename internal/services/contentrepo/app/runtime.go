package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

// RuntimeConfig controls repository startup and loop behavior.
type RuntimeConfig struct {
	Port              int
	EventsDBPath      string
	ProjectionsDBPath string
	CheckpointBackend string
	CheckpointDBPath  string
	DimensionsPath    string
	RootWorkspace     string
	PollInterval      time.Duration
	LeaseTTL          time.Duration
	RetryBackoff      time.Duration
	RetryMaxDelay     time.Duration
	BatchSize         int
}

const (
	defaultPort          = 8095
	defaultEventsDB      = "data/contentrepo-events.db"
	defaultProjectionsDB = "data/contentrepo-projections.db"
	defaultCheckpointDB  = "data/contentrepo-checkpoints.db"
	defaultRootWorkspace = "live"

	healthService = "contentrepo.catchup"
)

func (cfg RuntimeConfig) normalized() RuntimeConfig {
	if cfg.Port <= 0 {
		cfg.Port = defaultPort
	}
	if strings.TrimSpace(cfg.EventsDBPath) == "" {
		cfg.EventsDBPath = defaultEventsDB
	}
	if strings.TrimSpace(cfg.ProjectionsDBPath) == "" {
		cfg.ProjectionsDBPath = defaultProjectionsDB
	}
	if strings.TrimSpace(cfg.CheckpointDBPath) == "" {
		cfg.CheckpointDBPath = defaultCheckpointDB
	}
	if strings.TrimSpace(cfg.RootWorkspace) == "" {
		cfg.RootWorkspace = defaultRootWorkspace
	}
	return cfg
}

// Run opens the repository, makes sure the root workspace exists and keeps
// projections caught up until ctx is cancelled. A gRPC health server reports
// readiness on Port.
func Run(ctx context.Context, cfg RuntimeConfig) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cfg = cfg.normalized()

	repo, err := Open(ctx, Config{
		EventsDBPath:      cfg.EventsDBPath,
		ProjectionsDBPath: cfg.ProjectionsDBPath,
		CheckpointBackend: cfg.CheckpointBackend,
		CheckpointDBPath:  cfg.CheckpointDBPath,
		DimensionsPath:    cfg.DimensionsPath,
		LeaseTTL:          cfg.LeaseTTL,
		BatchSize:         cfg.BatchSize,
		Logf:              log.Printf,
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			log.Printf("close content repository: %v", closeErr)
		}
	}()

	root, err := repo.EnsureRootWorkspace(ctx, cfg.RootWorkspace)
	if err != nil {
		return fmt.Errorf("ensure root workspace %s: %w", cfg.RootWorkspace, err)
	}
	log.Printf("root workspace %s on %s", root.Name, root.ContentStreamID)

	listener, err := net.Listen("tcp", fmt.Sprintf(":%d", cfg.Port))
	if err != nil {
		return fmt.Errorf("listen on contentrepo port %d: %w", cfg.Port, err)
	}

	grpcServer := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(ErrorUnaryInterceptor()),
		grpc.ChainStreamInterceptor(ErrorStreamInterceptor()),
	)
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(healthService, grpc_health_v1.HealthCheckResponse_SERVING)

	loop := NewLoop(repo, LoopConfig{
		PollInterval:  cfg.PollInterval,
		RetryBackoff:  cfg.RetryBackoff,
		RetryMaxDelay: cfg.RetryMaxDelay,
	}, log.Printf)
	loop.Report = func(err error) {
		healthServer.SetServingStatus(healthService, catchUpStatus(err))
	}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		if err := grpcServer.Serve(listener); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("serve health: %w", err)
		}
		return nil
	})
	group.Go(func() error {
		return loop.Run(groupCtx)
	})
	group.Go(func() error {
		<-groupCtx.Done()
		healthServer.Shutdown()
		grpcServer.GracefulStop()
		return nil
	})

	log.Printf("contentrepo health server listening at %v", listener.Addr())
	return group.Wait()
}

// catchUpStatus is the health of the catch-up service after a pass. A failed
// pass keeps the process up but reports projections as stale.
func catchUpStatus(err error) grpc_health_v1.HealthCheckResponse_ServingStatus {
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_NOT_SERVING
	}
	return grpc_health_v1.HealthCheckResponse_SERVING
}
