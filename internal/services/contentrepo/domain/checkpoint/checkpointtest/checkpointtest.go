// Package checkpointtest holds behaviour tests every checkpoint store must
// pass.
package checkpointtest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/checkpoint"
)

// TTL is the lease duration stores under test must be configured with.
const TTL = time.Minute

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a clock at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Run exercises a store. newStore must return an empty store using TTL and
// the given clock.
func Run(t *testing.T, newStore func(t *testing.T, clock *Clock) checkpoint.Store) {
	t.Helper()
	tests := []struct {
		name string
		fn   func(t *testing.T, store checkpoint.Store, clock *Clock)
	}{
		{name: "load store", fn: testLoadStore},
		{name: "exclusive", fn: testExclusive},
		{name: "release", fn: testRelease},
		{name: "expiry", fn: testExpiry},
		{name: "with lease", fn: testWithLease},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := NewClock()
			tt.fn(t, newStore(t, clock), clock)
		})
	}
}

func acquire(t *testing.T, store checkpoint.Store, id string) checkpoint.Lease {
	t.Helper()
	lease, err := store.Acquire(context.Background(), id)
	if err != nil {
		t.Fatalf("acquire %s: %v", id, err)
	}
	return lease
}

func testLoadStore(t *testing.T, store checkpoint.Store, _ *Clock) {
	ctx := context.Background()
	lease := acquire(t, store, "graph")
	if _, ok, err := lease.Load(ctx); err != nil || ok {
		t.Fatalf("load = ok %v, err %v, want no checkpoint", ok, err)
	}
	if err := lease.Store(ctx, 41); err != nil {
		t.Fatalf("store: %v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}

	lease = acquire(t, store, "graph")
	seq, ok, err := lease.Load(ctx)
	if err != nil || !ok || seq != 41 {
		t.Fatalf("load = %d, %v, %v, want 41", seq, ok, err)
	}
	if err := lease.Store(ctx, 0); err != nil {
		t.Fatalf("store zero: %v", err)
	}
	seq, ok, err = lease.Load(ctx)
	if err != nil || !ok || seq != 0 {
		t.Fatalf("load after reset = %d, %v, %v, want stored 0", seq, ok, err)
	}
}

func testExclusive(t *testing.T, store checkpoint.Store, _ *Clock) {
	acquire(t, store, "graph")
	if _, err := store.Acquire(context.Background(), "graph"); !errors.Is(err, checkpoint.ErrLocked) {
		t.Fatalf("error = %v, want ErrLocked", err)
	}
	acquire(t, store, "usage")
}

func testRelease(t *testing.T, store checkpoint.Store, _ *Clock) {
	ctx := context.Background()
	lease := acquire(t, store, "graph")
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("release: %v", err)
	}
	if err := lease.Release(ctx); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if err := lease.Store(ctx, 3); !errors.Is(err, checkpoint.ErrLeaseLost) {
		t.Fatalf("store after release = %v, want ErrLeaseLost", err)
	}
	acquire(t, store, "graph")
}

func testExpiry(t *testing.T, store checkpoint.Store, clock *Clock) {
	ctx := context.Background()
	stale := acquire(t, store, "graph")
	clock.Advance(TTL / 2)
	if err := stale.Store(ctx, 1); err != nil {
		t.Fatalf("store renews lease: %v", err)
	}
	clock.Advance(TTL / 2)
	if _, err := store.Acquire(ctx, "graph"); !errors.Is(err, checkpoint.ErrLocked) {
		t.Fatalf("error = %v, want ErrLocked after renewal", err)
	}

	clock.Advance(TTL)
	fresh := acquire(t, store, "graph")
	if err := stale.Store(ctx, 2); !errors.Is(err, checkpoint.ErrLeaseLost) {
		t.Fatalf("stale store = %v, want ErrLeaseLost", err)
	}
	if err := stale.Release(ctx); err != nil {
		t.Fatalf("stale release: %v", err)
	}
	seq, _, err := fresh.Load(ctx)
	if err != nil || seq != 1 {
		t.Fatalf("load = %d, %v, want 1", seq, err)
	}
}

func testWithLease(t *testing.T, store checkpoint.Store, _ *Clock) {
	ctx := context.Background()
	boom := errors.New("boom")
	err := checkpoint.WithLease(ctx, store, "graph", func(lease checkpoint.Lease) error {
		if err := lease.Store(ctx, 7); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	err = checkpoint.WithLease(cancelled, store, "graph", func(lease checkpoint.Lease) error {
		cancel()
		return nil
	})
	if err != nil {
		t.Fatalf("with lease after cancel: %v", err)
	}

	lease := acquire(t, store, "graph")
	seq, ok, err := lease.Load(ctx)
	if err != nil || !ok || seq != 7 {
		t.Fatalf("load = %d, %v, %v, want 7", seq, ok, err)
	}
}
