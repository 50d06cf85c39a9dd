package maintenance

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"path/filepath"
	"strings"
	"testing"

	contentrepoapp "github.com/louisbranch/contentrepo/internal/services/contentrepo/app"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/projection/assetusage"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		EventsDBPath:      filepath.Join(dir, "events.db"),
		ProjectionsDBPath: filepath.Join(dir, "projections.db"),
		CheckpointBackend: contentrepoapp.CheckpointBackendSQLite,
	}
}

func seedRepository(t *testing.T, cfg Config) {
	t.Helper()
	repo, err := contentrepoapp.Open(context.Background(), contentrepoapp.Config{
		EventsDBPath:      cfg.EventsDBPath,
		ProjectionsDBPath: cfg.ProjectionsDBPath,
		Logf:              func(string, ...any) {},
	})
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	defer repo.Close()
	if _, err := repo.EnsureRootWorkspace(context.Background(), "live"); err != nil {
		t.Fatalf("ensure root workspace: %v", err)
	}
	if _, err := repo.Manager.CreateWorkspace(context.Background(), "review", "live", ""); err != nil {
		t.Fatalf("create workspace: %v", err)
	}
}

func TestParseConfig_ParsesFlags(t *testing.T) {
	t.Setenv("CONTENTREPO_EVENTS_DB_PATH", "env/events.db")
	fs := flag.NewFlagSet("maintenance", flag.ContinueOnError)

	cfg, err := ParseConfig(fs, []string{"-reset", "asset_usage", "-json"})
	if err != nil {
		t.Fatalf("parse config: %v", err)
	}
	if cfg.EventsDBPath != "env/events.db" {
		t.Fatalf("events db path = %q, want %q", cfg.EventsDBPath, "env/events.db")
	}
	if cfg.Reset != "asset_usage" || !cfg.JSONOutput {
		t.Fatalf("config = %+v, want reset asset_usage with json", cfg)
	}
}

func TestRunRejectsInvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{name: "no action", cfg: Config{}},
		{name: "unknown projection", cfg: Config{Reset: "content_graph"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := Run(context.Background(), tt.cfg, nil, nil); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestRunReport(t *testing.T) {
	cfg := testConfig(t)
	seedRepository(t, cfg)
	cfg.Report = true

	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	text := out.String()
	for _, want := range []string{"workspace live base=-", "workspace review base=live", "projection " + assetusage.Name} {
		if !strings.Contains(text, want) {
			t.Fatalf("output missing %q:\n%s", want, text)
		}
	}
}

func TestRunResetJSON(t *testing.T) {
	cfg := testConfig(t)
	seedRepository(t, cfg)
	cfg.Reset = assetusage.Name
	cfg.JSONOutput = true

	var out bytes.Buffer
	if err := Run(context.Background(), cfg, &out, nil); err != nil {
		t.Fatalf("run: %v", err)
	}
	var report Report
	if err := json.Unmarshal(out.Bytes(), &report); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.Reset != assetusage.Name {
		t.Fatalf("reset = %q, want %q", report.Reset, assetusage.Name)
	}
	if len(report.Workspaces) != 2 {
		t.Fatalf("workspaces = %d, want 2", len(report.Workspaces))
	}
	for _, result := range report.Projections {
		if result.From != 0 {
			t.Fatalf("projection %s started at %d, want 0 after reset", result.Projection, result.From)
		}
	}
}
