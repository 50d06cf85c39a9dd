package sqlite

import (
	"context"
	"path/filepath"
	"testing"
)

func openTestEventsStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "events.sqlite")
	store, err := OpenEvents(context.Background(), path, opts...)
	if err != nil {
		t.Fatalf("open events store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func openTestProjectionsStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "projections.sqlite")
	store, err := OpenProjections(context.Background(), path, opts...)
	if err != nil {
		t.Fatalf("open projections store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
