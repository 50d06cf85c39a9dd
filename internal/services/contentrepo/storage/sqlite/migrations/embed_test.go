package migrations

import (
	"io/fs"
	"testing"
)

func TestMigrationsEmbedded(t *testing.T) {
	tests := []struct {
		name  string
		fsys  fs.FS
		root  string
		first string
	}{
		{name: "events", fsys: EventsFS, root: "events", first: "001_events.sql"},
		{name: "projections", fsys: ProjectionsFS, root: "projections", first: "001_projections.sql"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entries, err := fs.ReadDir(tt.fsys, tt.root)
			if err != nil {
				t.Fatalf("read %s migrations: %v", tt.root, err)
			}
			if len(entries) == 0 {
				t.Fatalf("expected %s migrations to be embedded", tt.root)
			}
			if got := entries[0].Name(); got != tt.first {
				t.Fatalf("first migration = %s, want %s", got, tt.first)
			}
		})
	}
}
