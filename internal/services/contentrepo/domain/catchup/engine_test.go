package catchup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/checkpoint"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event/eventtest"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/journal"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/journal/journaltest"
)

type fakeProjection struct {
	eventtest.NopHandler

	name   string
	mu     sync.Mutex
	seqs   []uint64
	failAt uint64
	onSeq  func(seq uint64)
	resets int
}

func (p *fakeProjection) Name() string { return p.name }

func (p *fakeProjection) CanHandle(eventType event.Type) bool {
	return eventType == event.TypeNodePropertiesWereSet
}

func (p *fakeProjection) Reset(context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.seqs = nil
	p.resets++
	return nil
}

func (p *fakeProjection) WhenNodePropertiesWereSet(_ context.Context, evt event.Event, _ event.NodePropertiesWereSet) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failAt != 0 && evt.Seq == p.failAt {
		return errors.New("projection defect")
	}
	p.seqs = append(p.seqs, evt.Seq)
	if p.onSeq != nil {
		p.onSeq(evt.Seq)
	}
	return nil
}

func (p *fakeProjection) applied() []uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]uint64(nil), p.seqs...)
}

// seedCommits writes count single-event commits to one stream.
func seedCommits(t *testing.T, j *journal.Memory, count int) {
	t.Helper()
	ctx := context.Background()
	if _, err := j.Commit(ctx, journal.Commit{ID: "create", Appends: []journal.Append{{StreamID: "cs-1", Create: &journal.Lineage{}, Events: []event.Event{journaltest.Payload(1)}}}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	for n := 2; n <= count; n++ {
		commit := journal.Commit{ID: fmt.Sprintf("c%d", n), Appends: []journal.Append{{StreamID: "cs-1", Expected: journal.AnyVersion, Events: []event.Event{journaltest.Payload(n)}}}}
		if _, err := j.Commit(ctx, commit); err != nil {
			t.Fatalf("seed %d: %v", n, err)
		}
	}
}

func newEngine(j *journal.Memory, store checkpoint.Store, batch int) *Engine {
	return &Engine{
		Source:      j,
		Checkpoints: store,
		Registry:    event.NewRegistry(),
		BatchSize:   batch,
		Logf:        func(string, ...any) {},
	}
}

func storedCheckpoint(t *testing.T, store checkpoint.Store, name string) uint64 {
	t.Helper()
	var seq uint64
	err := checkpoint.WithLease(context.Background(), store, name, func(lease checkpoint.Lease) error {
		var err error
		seq, _, err = lease.Load(context.Background())
		return err
	})
	if err != nil {
		t.Fatalf("load checkpoint: %v", err)
	}
	return seq
}

// recordingStore records every checkpoint stored through its leases and can
// make those stores fail.
type recordingStore struct {
	checkpoint.Store

	mu        sync.Mutex
	stored    []uint64
	failStore error
}

func (s *recordingStore) Acquire(ctx context.Context, projectionID string) (checkpoint.Lease, error) {
	lease, err := s.Store.Acquire(ctx, projectionID)
	if err != nil {
		return nil, err
	}
	return &recordingLease{Lease: lease, store: s}, nil
}

func (s *recordingStore) storedSeqs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]uint64(nil), s.stored...)
}

type recordingLease struct {
	checkpoint.Lease
	store *recordingStore
}

func (l *recordingLease) Store(ctx context.Context, seq uint64) error {
	l.store.mu.Lock()
	fail := l.store.failStore
	l.store.stored = append(l.store.stored, seq)
	l.store.mu.Unlock()
	if fail != nil {
		return fail
	}
	return l.Lease.Store(ctx, seq)
}

func TestRunIsResumable(t *testing.T) {
	j := journal.NewMemory()
	seedCommits(t, j, 10)
	store := checkpoint.NewMemory(0)
	engine := newEngine(j, store, 3)
	p := &fakeProjection{name: "graph"}

	first, err := engine.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	if first.Applied != 10 || first.Last != 10 || first.From != 0 {
		t.Fatalf("first run = %+v, want 10 applied to 10", first)
	}

	second, err := engine.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if second.Applied != 0 || second.From != 10 || second.Last != 10 {
		t.Fatalf("second run = %+v, want nothing applied", second)
	}
	if got := len(p.applied()); got != 10 {
		t.Fatalf("applied events = %d, want 10", got)
	}
}

func TestFailureLeavesCheckpointBeforeFailingEvent(t *testing.T) {
	j := journal.NewMemory()
	seedCommits(t, j, 100)
	store := checkpoint.NewMemory(0)
	engine := newEngine(j, store, 10)
	p := &fakeProjection{name: "graph", failAt: 42}

	result, err := engine.Run(context.Background(), p)
	var applyErr *ApplyError
	if !errors.As(err, &applyErr) {
		t.Fatalf("error = %v, want ApplyError", err)
	}
	if applyErr.Seq != 42 || applyErr.Projection != "graph" || applyErr.Type != event.TypeNodePropertiesWereSet {
		t.Fatalf("apply error = %+v", applyErr)
	}
	if !errors.Is(err, ErrApplyFailed) {
		t.Fatal("expected ApplyError to match ErrApplyFailed")
	}
	if result.Last != 41 {
		t.Fatalf("result last = %d, want 41", result.Last)
	}
	if got := storedCheckpoint(t, store, "graph"); got != 41 {
		t.Fatalf("checkpoint = %d, want 41", got)
	}

	p.failAt = 0
	result, err = engine.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if result.From != 41 || result.Last != 100 || result.Applied != 59 {
		t.Fatalf("rerun = %+v, want 42..100", result)
	}
	seqs := p.applied()
	if len(seqs) != 100 {
		t.Fatalf("applied = %d events, want 100", len(seqs))
	}
	for i, seq := range seqs {
		if seq != uint64(i+1) {
			t.Fatalf("applied[%d] = %d, want %d", i, seq, i+1)
		}
	}
}

func TestRunSkipsUnhandledEvents(t *testing.T) {
	j := journal.NewMemory()
	_, err := j.Commit(context.Background(), journal.Commit{ID: "c1", Appends: []journal.Append{
		{StreamID: "cs-1", Create: &journal.Lineage{}, Events: []event.Event{journaltest.Payload(1)}},
		{StreamID: event.ContentStreamMetaID("cs-1"), Create: &journal.Lineage{}, Events: []event.Event{{
			Type:        event.TypeContentStreamWasCreated,
			PayloadJSON: []byte(`{"contentStreamId":"cs-1"}`),
		}}},
	}})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	engine := newEngine(j, checkpoint.NewMemory(0), 0)

	result, err := engine.Run(context.Background(), &fakeProjection{name: "graph"})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.Applied != 1 || result.Skipped != 1 || result.Last != 2 {
		t.Fatalf("result = %+v, want 1 applied, 1 skipped", result)
	}
}

func TestResetReplaysFromStart(t *testing.T) {
	j := journal.NewMemory()
	seedCommits(t, j, 5)
	store := checkpoint.NewMemory(0)
	engine := newEngine(j, store, 0)
	p := &fakeProjection{name: "graph"}

	if _, err := engine.Run(context.Background(), p); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := engine.Reset(context.Background(), p); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if p.resets != 1 || len(p.applied()) != 0 {
		t.Fatalf("resets = %d, applied = %v", p.resets, p.applied())
	}
	if got := storedCheckpoint(t, store, "graph"); got != 0 {
		t.Fatalf("checkpoint = %d, want 0", got)
	}
	result, err := engine.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("rerun: %v", err)
	}
	if result.Applied != 5 {
		t.Fatalf("rerun applied = %d, want 5", result.Applied)
	}
}

func TestRunFailsWhileLeaseIsHeld(t *testing.T) {
	j := journal.NewMemory()
	seedCommits(t, j, 1)
	store := checkpoint.NewMemory(0)
	lease, err := store.Acquire(context.Background(), "graph")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	defer lease.Release(context.Background())

	_, err = newEngine(j, store, 0).Run(context.Background(), &fakeProjection{name: "graph"})
	if !errors.Is(err, checkpoint.ErrLocked) {
		t.Fatalf("error = %v, want ErrLocked", err)
	}
}

func TestCancellationWaitsForCommitBoundary(t *testing.T) {
	j := journal.NewMemory()
	var events []event.Event
	for n := 1; n <= 5; n++ {
		events = append(events, journaltest.Payload(n))
	}
	ctx := context.Background()
	if _, err := j.Commit(ctx, journal.Commit{ID: "big", Appends: []journal.Append{{StreamID: "cs-1", Create: &journal.Lineage{}, Events: events}}}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if _, err := j.Commit(ctx, journal.Commit{ID: "next", Appends: []journal.Append{{StreamID: "cs-1", Expected: 5, Events: []event.Event{journaltest.Payload(6)}}}}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	p := &fakeProjection{name: "graph", onSeq: func(seq uint64) {
		if seq == 2 {
			cancel()
		}
	}}
	store := checkpoint.NewMemory(0)
	result, err := newEngine(j, store, 2).Run(runCtx, p)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if result.Last != 5 || result.Applied != 5 {
		t.Fatalf("result = %+v, want the whole first commit applied", result)
	}
	if got := storedCheckpoint(t, store, "graph"); got != 5 {
		t.Fatalf("checkpoint = %d, want 5", got)
	}
}

func TestRunAllRunsEveryProjection(t *testing.T) {
	j := journal.NewMemory()
	seedCommits(t, j, 20)
	engine := newEngine(j, checkpoint.NewMemory(0), 4)
	graph := &fakeProjection{name: "graph"}
	usage := &fakeProjection{name: "usage"}

	results, err := engine.RunAll(context.Background(), graph, usage)
	if err != nil {
		t.Fatalf("run all: %v", err)
	}
	for i, result := range results {
		if result.Last != 20 || result.Applied != 20 {
			t.Fatalf("result %d = %+v, want 20 applied", i, result)
		}
	}
	if _, err := engine.RunAll(context.Background(), graph, graph); err == nil {
		t.Fatal("expected duplicate projection error")
	}
}

func TestResetStoresCheckpointBeforeDroppingState(t *testing.T) {
	j := journal.NewMemory()
	seedCommits(t, j, 5)
	store := &recordingStore{Store: checkpoint.NewMemory(0)}
	engine := newEngine(j, store, 0)
	p := &fakeProjection{name: "graph"}
	if _, err := engine.Run(context.Background(), p); err != nil {
		t.Fatalf("run: %v", err)
	}

	boom := errors.New("disk full")
	store.failStore = boom
	if err := engine.Reset(context.Background(), p); !errors.Is(err, boom) {
		t.Fatalf("reset error = %v, want %v", err, boom)
	}
	if p.resets != 0 || len(p.applied()) != 5 {
		t.Fatalf("failed reset touched the projection: resets = %d, applied = %v", p.resets, p.applied())
	}
	if got := storedCheckpoint(t, store.Store, "graph"); got != 5 {
		t.Fatalf("checkpoint = %d, want 5", got)
	}

	store.failStore = nil
	if err := engine.Reset(context.Background(), p); err != nil {
		t.Fatalf("reset: %v", err)
	}
	if p.resets != 1 || storedCheckpoint(t, store.Store, "graph") != 0 {
		t.Fatalf("resets = %d, checkpoint = %d, want 1 and 0", p.resets, storedCheckpoint(t, store.Store, "graph"))
	}
}

func TestRunRenewsLeaseAtCommitBoundaries(t *testing.T) {
	j := journal.NewMemory()
	seedCommits(t, j, 5)
	store := &recordingStore{Store: checkpoint.NewMemory(0)}
	engine := newEngine(j, store, 0)
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	engine.Now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	engine.RenewInterval = time.Second

	if _, err := engine.Run(context.Background(), &fakeProjection{name: "graph"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	stored := store.storedSeqs()
	if len(stored) < 5 {
		t.Fatalf("stored = %v, want a store per commit", stored)
	}
	if diff := cmp.Diff([]uint64{1, 2, 3, 4, 5}, stored[:5]); diff != "" {
		t.Fatalf("stored checkpoints mismatch (-want +got):\n%s", diff)
	}

	quiet := &recordingStore{Store: checkpoint.NewMemory(0)}
	engine = newEngine(j, quiet, 0)
	if _, err := engine.Run(context.Background(), &fakeProjection{name: "graph"}); err != nil {
		t.Fatalf("run: %v", err)
	}
	if diff := cmp.Diff([]uint64{5, 5}, quiet.storedSeqs()); diff != "" {
		t.Fatalf("stored checkpoints without renewal mismatch (-want +got):\n%s", diff)
	}
}
