package bbolt

import (
	"context"
	"path/filepath"
	"testing"

	"go.etcd.io/bbolt"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/checkpoint"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/checkpoint/checkpointtest"
)

func openTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "checkpoints.db"), opts...)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}

func TestCheckpointStore(t *testing.T) {
	checkpointtest.Run(t, func(t *testing.T, clock *checkpointtest.Clock) checkpoint.Store {
		return openTestStore(t, WithClock(clock.Now), WithLeaseTTL(checkpointtest.TTL))
	})
}

func TestCheckpointPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoints.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	err = checkpoint.WithLease(ctx, store, "content_graph", func(lease checkpoint.Lease) error {
		return lease.Store(ctx, 12)
	})
	if err != nil {
		t.Fatalf("store checkpoint: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()
	lease, err := reopened.Acquire(ctx, "content_graph")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	seq, ok, err := lease.Load(ctx)
	if err != nil || !ok || seq != 12 {
		t.Fatalf("load = %d, %v, %v, want 12", seq, ok, err)
	}
}

func TestCorruptCheckpointIsReported(t *testing.T) {
	store := openTestStore(t)
	if err := store.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(checkpointBucket)).Put(checkpointKey("broken"), []byte("{"))
	}); err != nil {
		t.Fatalf("seed corrupt record: %v", err)
	}
	if _, err := store.Acquire(context.Background(), "broken"); err == nil {
		t.Fatal("expected error for corrupt record")
	}
}

func TestOpenRequiresPath(t *testing.T) {
	if _, err := Open(" "); err == nil {
		t.Fatal("expected error for empty path")
	}
}
