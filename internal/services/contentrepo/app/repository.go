// Package app wires the content repository runtime: storage, the branch
// manager, projections and the catch-up loop that keeps them current.
package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/branch"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/catchup"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/checkpoint"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/dimension"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/workspace"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/projection/assetusage"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/projection/contentgraph"
	contentbbolt "github.com/louisbranch/contentrepo/internal/services/contentrepo/storage/bbolt"
	contentsqlite "github.com/louisbranch/contentrepo/internal/services/contentrepo/storage/sqlite"
)

// Checkpoint backends.
const (
	CheckpointBackendSQLite = "sqlite"
	CheckpointBackendBolt   = "bbolt"
)

// Config selects where a Repository keeps its data.
type Config struct {
	EventsDBPath      string
	ProjectionsDBPath string
	// CheckpointBackend is CheckpointBackendSQLite (the projections
	// database) or CheckpointBackendBolt (CheckpointDBPath).
	CheckpointBackend string
	CheckpointDBPath  string
	// DimensionsPath is a YAML dimension configuration. Empty means a
	// repository without dimensions.
	DimensionsPath string
	LeaseTTL       time.Duration
	BatchSize      int
	Logf           func(format string, args ...any)
}

// Repository is an opened content repository.
type Repository struct {
	Manager *branch.Manager
	// Engine feeds every projection. The content graph lives in process, so
	// its checkpoint is kept in memory and it is rebuilt on every start.
	Engine       *catchup.Engine
	ContentGraph *contentgraph.Projection
	AssetUsage   *assetusage.Projection

	closers []func() error
}

// Open opens storage and builds the manager and projections on top of it.
func Open(ctx context.Context, cfg Config) (*Repository, error) {
	if strings.TrimSpace(cfg.EventsDBPath) == "" {
		return nil, fmt.Errorf("events database path is required")
	}
	if strings.TrimSpace(cfg.ProjectionsDBPath) == "" {
		return nil, fmt.Errorf("projections database path is required")
	}
	logf := cfg.Logf
	if logf == nil {
		logf = log.Printf
	}

	dims, err := loadDimensions(cfg.DimensionsPath)
	if err != nil {
		return nil, err
	}

	repo := &Repository{}
	ok := false
	defer func() {
		if !ok {
			_ = repo.Close()
		}
	}()

	if err := ensureDir(cfg.EventsDBPath); err != nil {
		return nil, err
	}
	events, err := contentsqlite.OpenEvents(ctx, cfg.EventsDBPath)
	if err != nil {
		return nil, fmt.Errorf("open events store: %w", err)
	}
	repo.closers = append(repo.closers, events.Close)

	if err := ensureDir(cfg.ProjectionsDBPath); err != nil {
		return nil, err
	}
	projections, err := contentsqlite.OpenProjections(ctx, cfg.ProjectionsDBPath, contentsqlite.WithLeaseTTL(cfg.LeaseTTL))
	if err != nil {
		return nil, fmt.Errorf("open projections store: %w", err)
	}
	repo.closers = append(repo.closers, projections.Close)

	var checkpoints checkpoint.Store = projections
	switch strings.TrimSpace(cfg.CheckpointBackend) {
	case "", CheckpointBackendSQLite:
	case CheckpointBackendBolt:
		if err := ensureDir(cfg.CheckpointDBPath); err != nil {
			return nil, err
		}
		bolt, err := contentbbolt.Open(cfg.CheckpointDBPath, contentbbolt.WithLeaseTTL(cfg.LeaseTTL))
		if err != nil {
			return nil, fmt.Errorf("open checkpoint store: %w", err)
		}
		repo.closers = append(repo.closers, bolt.Close)
		checkpoints = bolt
	default:
		return nil, fmt.Errorf("unknown checkpoint backend %q", cfg.CheckpointBackend)
	}

	repo.Manager = &branch.Manager{
		Journal:    events,
		Registry:   event.NewRegistry(),
		Dimensions: dims,
		Logf:       logf,
	}
	repo.Engine = &catchup.Engine{
		Source: events,
		Checkpoints: checkpoint.Routed{
			Default: checkpoints,
			Routes:  map[string]checkpoint.Store{contentgraph.Name: checkpoint.NewMemory(cfg.LeaseTTL)},
		},
		Registry:      event.NewRegistry(),
		BatchSize:     cfg.BatchSize,
		RenewInterval: renewInterval(cfg.LeaseTTL),
		Logf:          logf,
	}
	repo.ContentGraph = contentgraph.New(dims)
	repo.AssetUsage = assetusage.New(projections)
	ok = true
	return repo, nil
}

// CatchUp runs every projection once up to the head of the journal. Results
// are ordered content graph, asset usage.
func (r *Repository) CatchUp(ctx context.Context) ([]catchup.Result, error) {
	return r.Engine.RunAll(ctx, r.ContentGraph, r.AssetUsage)
}

// EnsureRootWorkspace creates the named root workspace when it is missing.
func (r *Repository) EnsureRootWorkspace(ctx context.Context, name string) (workspace.Workspace, error) {
	ws, err := r.Manager.Workspace(ctx, name)
	if err == nil {
		return ws, nil
	}
	if !errors.Is(err, workspace.ErrNotFound) {
		return workspace.Workspace{}, err
	}
	return r.Manager.CreateRootWorkspace(ctx, name, "")
}

// Close closes storage in reverse opening order. It is nil-safe.
func (r *Repository) Close() error {
	if r == nil {
		return nil
	}
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func loadDimensions(path string) (*dimension.VariationGraph, error) {
	cfg := dimension.Config{}
	if strings.TrimSpace(path) != "" {
		loaded, err := dimension.LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	dims, err := dimension.NewVariationGraph(cfg)
	if err != nil {
		return nil, fmt.Errorf("build variation graph: %w", err)
	}
	return dims, nil
}

// renewInterval stores checkpoints three times per lease so a slow run keeps
// its lease.
func renewInterval(leaseTTL time.Duration) time.Duration {
	if leaseTTL <= 0 {
		leaseTTL = checkpoint.DefaultLeaseTTL
	}
	return leaseTTL / 3
}

func ensureDir(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create storage dir: %w", err)
		}
	}
	return nil
}
