// Package maintenance resets and reports on a content repository from the
// command line.
package maintenance

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	entrypoint "github.com/louisbranch/contentrepo/internal/platform/cmd"
	contentrepoapp "github.com/louisbranch/contentrepo/internal/services/contentrepo/app"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/catchup"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/projection/assetusage"
)

// Config holds maintenance command configuration.
type Config struct {
	EventsDBPath      string        `env:"EVENTS_DB_PATH" envDefault:"data/contentrepo-events.db"`
	ProjectionsDBPath string        `env:"PROJECTIONS_DB_PATH" envDefault:"data/contentrepo-projections.db"`
	CheckpointBackend string        `env:"CHECKPOINT_BACKEND" envDefault:"sqlite"`
	CheckpointDBPath  string        `env:"CHECKPOINT_DB_PATH" envDefault:"data/contentrepo-checkpoints.db"`
	DimensionsPath    string        `env:"DIMENSIONS_PATH"`
	Timeout           time.Duration `env:"MAINTENANCE_TIMEOUT" envDefault:"10m"`
	Reset             string
	Report            bool
	JSONOutput        bool
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	return entrypoint.ParseConfig(fs, args, bindFlags)
}

func bindFlags(cfg *Config, fs *flag.FlagSet) {
	fs.StringVar(&cfg.EventsDBPath, "events-db-path", cfg.EventsDBPath, "path to the journal sqlite database")
	fs.StringVar(&cfg.ProjectionsDBPath, "projections-db-path", cfg.ProjectionsDBPath, "path to the projections sqlite database")
	fs.StringVar(&cfg.CheckpointBackend, "checkpoint-backend", cfg.CheckpointBackend, "checkpoint store: sqlite or bbolt")
	fs.StringVar(&cfg.CheckpointDBPath, "checkpoint-db-path", cfg.CheckpointDBPath, "path to the bbolt checkpoint database")
	fs.StringVar(&cfg.DimensionsPath, "dimensions", cfg.DimensionsPath, "YAML dimension configuration")
	fs.StringVar(&cfg.Reset, "reset", "", "projection to reset and replay ("+assetusage.Name+")")
	fs.BoolVar(&cfg.Report, "report", false, "report workspaces, streams and projection progress")
	fs.BoolVar(&cfg.JSONOutput, "json", false, "output JSON reports")
	fs.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "overall timeout")
}

// WorkspaceReport describes one workspace.
type WorkspaceReport struct {
	Name            string `json:"name"`
	BaseName        string `json:"base_name,omitempty"`
	ContentStreamID string `json:"content_stream_id"`
	Version         uint64 `json:"version"`
}

// Report summarizes the repository after maintenance.
type Report struct {
	Workspaces  []WorkspaceReport `json:"workspaces"`
	Projections []catchup.Result  `json:"projections"`
	Reset       string            `json:"reset,omitempty"`
}

// Run executes the maintenance command.
func Run(ctx context.Context, cfg Config, out io.Writer, errOut io.Writer) error {
	if out == nil {
		out = io.Discard
	}
	if errOut == nil {
		errOut = io.Discard
	}
	reset := strings.TrimSpace(cfg.Reset)
	if reset == "" && !cfg.Report {
		return errors.New("one of -reset or -report is required")
	}
	if reset != "" && reset != assetusage.Name {
		return fmt.Errorf("-reset supports only %s", assetusage.Name)
	}

	repo, err := contentrepoapp.Open(ctx, contentrepoapp.Config{
		EventsDBPath:      cfg.EventsDBPath,
		ProjectionsDBPath: cfg.ProjectionsDBPath,
		CheckpointBackend: cfg.CheckpointBackend,
		CheckpointDBPath:  cfg.CheckpointDBPath,
		DimensionsPath:    cfg.DimensionsPath,
		Logf: func(format string, args ...any) {
			fmt.Fprintf(errOut, format+"\n", args...)
		},
	})
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := repo.Close(); closeErr != nil {
			fmt.Fprintf(errOut, "Error: close repository: %v\n", closeErr)
		}
	}()

	report := Report{Reset: reset}
	if reset != "" {
		if err := repo.Engine.Reset(ctx, repo.AssetUsage); err != nil {
			return fmt.Errorf("reset %s: %w", reset, err)
		}
	}
	report.Projections, err = repo.CatchUp(ctx)
	if err != nil {
		return fmt.Errorf("catch-up: %w", err)
	}

	workspaces, err := repo.Manager.Workspaces(ctx)
	if err != nil {
		return fmt.Errorf("list workspaces: %w", err)
	}
	for _, ws := range workspaces {
		report.Workspaces = append(report.Workspaces, WorkspaceReport{
			Name:            ws.Name,
			BaseName:        ws.BaseName,
			ContentStreamID: ws.ContentStreamID,
			Version:         ws.Version,
		})
	}
	return writeReport(out, report, cfg.JSONOutput)
}

func writeReport(out io.Writer, report Report, asJSON bool) error {
	if asJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(report)
	}
	if report.Reset != "" {
		fmt.Fprintf(out, "reset %s\n", report.Reset)
	}
	for _, result := range report.Projections {
		fmt.Fprintf(out, "projection %s: %d -> %d (applied %d, skipped %d)\n",
			result.Projection, result.From, result.Last, result.Applied, result.Skipped)
	}
	for _, ws := range report.Workspaces {
		base := ws.BaseName
		if base == "" {
			base = "-"
		}
		fmt.Fprintf(out, "workspace %s base=%s stream=%s\n", ws.Name, base, ws.ContentStreamID)
	}
	return nil
}
