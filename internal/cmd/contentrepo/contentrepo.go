// Package contentrepo parses content repository command flags and launches
// the runtime.
package contentrepo

import (
	"context"
	"flag"
	"time"

	entrypoint "github.com/louisbranch/contentrepo/internal/platform/cmd"
	contentrepoapp "github.com/louisbranch/contentrepo/internal/services/contentrepo/app"
)

// Config holds content repository command configuration.
type Config struct {
	Port              int           `env:"PORT" envDefault:"8095"`
	EventsDBPath      string        `env:"EVENTS_DB_PATH" envDefault:"data/contentrepo-events.db"`
	ProjectionsDBPath string        `env:"PROJECTIONS_DB_PATH" envDefault:"data/contentrepo-projections.db"`
	CheckpointBackend string        `env:"CHECKPOINT_BACKEND" envDefault:"sqlite"`
	CheckpointDBPath  string        `env:"CHECKPOINT_DB_PATH" envDefault:"data/contentrepo-checkpoints.db"`
	DimensionsPath    string        `env:"DIMENSIONS_PATH"`
	RootWorkspace     string        `env:"ROOT_WORKSPACE" envDefault:"live"`
	PollInterval      time.Duration `env:"POLL_INTERVAL" envDefault:"2s"`
	LeaseTTL          time.Duration `env:"LEASE_TTL" envDefault:"30s"`
	RetryBackoff      time.Duration `env:"RETRY_BACKOFF" envDefault:"250ms"`
	RetryMaxDelay     time.Duration `env:"RETRY_MAX_DELAY" envDefault:"10s"`
	BatchSize         int           `env:"BATCH_SIZE" envDefault:"100"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	return entrypoint.ParseConfig(fs, args, bindFlags)
}

func bindFlags(cfg *Config, fs *flag.FlagSet) {
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The health gRPC server port")
	fs.StringVar(&cfg.EventsDBPath, "events-db-path", cfg.EventsDBPath, "The journal SQLite database path")
	fs.StringVar(&cfg.ProjectionsDBPath, "projections-db-path", cfg.ProjectionsDBPath, "The projections SQLite database path")
	fs.StringVar(&cfg.CheckpointBackend, "checkpoint-backend", cfg.CheckpointBackend, "Checkpoint store: sqlite or bbolt")
	fs.StringVar(&cfg.CheckpointDBPath, "checkpoint-db-path", cfg.CheckpointDBPath, "The bbolt checkpoint database path")
	fs.StringVar(&cfg.DimensionsPath, "dimensions", cfg.DimensionsPath, "YAML dimension configuration")
	fs.StringVar(&cfg.RootWorkspace, "root-workspace", cfg.RootWorkspace, "Root workspace created on startup")
	fs.DurationVar(&cfg.PollInterval, "poll-interval", cfg.PollInterval, "Catch-up poll interval")
	fs.DurationVar(&cfg.LeaseTTL, "lease-ttl", cfg.LeaseTTL, "Checkpoint lease duration")
	fs.DurationVar(&cfg.RetryBackoff, "retry-backoff", cfg.RetryBackoff, "Base catch-up retry delay")
	fs.DurationVar(&cfg.RetryMaxDelay, "retry-max-delay", cfg.RetryMaxDelay, "Maximum catch-up retry delay")
	fs.IntVar(&cfg.BatchSize, "batch-size", cfg.BatchSize, "Events read per catch-up batch")
}

// Run starts the content repository runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceContentRepo, func(ctx context.Context) error {
		return contentrepoapp.Run(ctx, contentrepoapp.RuntimeConfig{
			Port:              cfg.Port,
			EventsDBPath:      cfg.EventsDBPath,
			ProjectionsDBPath: cfg.ProjectionsDBPath,
			CheckpointBackend: cfg.CheckpointBackend,
			CheckpointDBPath:  cfg.CheckpointDBPath,
			DimensionsPath:    cfg.DimensionsPath,
			RootWorkspace:     cfg.RootWorkspace,
			PollInterval:      cfg.PollInterval,
			LeaseTTL:          cfg.LeaseTTL,
			RetryBackoff:      cfg.RetryBackoff,
			RetryMaxDelay:     cfg.RetryMaxDelay,
			BatchSize:         cfg.BatchSize,
		})
	})
}
