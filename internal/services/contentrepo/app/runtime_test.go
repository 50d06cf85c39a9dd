package app

import "testing"

func TestRuntimeConfigDefaults(t *testing.T) {
	got := RuntimeConfig{}.normalized()
	if got.Port != defaultPort {
		t.Fatalf("port = %d, want %d", got.Port, defaultPort)
	}
	if got.EventsDBPath != defaultEventsDB {
		t.Fatalf("events db = %q, want %q", got.EventsDBPath, defaultEventsDB)
	}
	if got.RootWorkspace != defaultRootWorkspace {
		t.Fatalf("root workspace = %q, want %q", got.RootWorkspace, defaultRootWorkspace)
	}

	custom := RuntimeConfig{Port: 9000, RootWorkspace: "main"}.normalized()
	if custom.Port != 9000 || custom.RootWorkspace != "main" {
		t.Fatalf("custom config = %+v, want port 9000 and workspace main", custom)
	}
}
