package checkpoint

import (
	"context"
	"sync"
	"time"

	"github.com/louisbranch/contentrepo/internal/platform/id"
)

// Memory keeps checkpoints in process memory.
type Memory struct {
	mu      sync.Mutex
	records map[string]*memoryRecord
	ttl     time.Duration
	now     func() time.Time
}

type memoryRecord struct {
	seq       uint64
	stored    bool
	token     string
	expiresAt time.Time
}

// NewMemory returns an empty store whose leases expire after ttl. A zero ttl
// uses DefaultLeaseTTL.
func NewMemory(ttl time.Duration) *Memory {
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	return &Memory{records: make(map[string]*memoryRecord), ttl: ttl, now: time.Now}
}

// SetClock replaces the time source. Tests use it to expire leases.
func (m *Memory) SetClock(now func() time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.now = now
}

// Acquire takes the lease on a projection's checkpoint.
func (m *Memory) Acquire(ctx context.Context, projectionID string) (Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[projectionID]
	if !ok {
		rec = &memoryRecord{}
		m.records[projectionID] = rec
	}
	now := m.now()
	if rec.token != "" && now.Before(rec.expiresAt) {
		return nil, Locked(projectionID)
	}
	token, err := id.NewID()
	if err != nil {
		return nil, err
	}
	rec.token = token
	rec.expiresAt = now.Add(m.ttl)
	return &memoryLease{store: m, projectionID: projectionID, token: rec.token}, nil
}

type memoryLease struct {
	store        *Memory
	projectionID string
	token        string
}

func (l *memoryLease) held() (*memoryRecord, error) {
	rec := l.store.records[l.projectionID]
	if rec == nil || rec.token != l.token {
		return nil, LeaseLost(l.projectionID)
	}
	if !l.store.now().Before(rec.expiresAt) {
		return nil, LeaseLost(l.projectionID)
	}
	return rec, nil
}

func (l *memoryLease) Load(ctx context.Context) (uint64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	rec, err := l.held()
	if err != nil {
		return 0, false, err
	}
	return rec.seq, rec.stored, nil
}

func (l *memoryLease) Store(ctx context.Context, seq uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	rec, err := l.held()
	if err != nil {
		return err
	}
	rec.seq = seq
	rec.stored = true
	rec.expiresAt = l.store.now().Add(l.store.ttl)
	return nil
}

func (l *memoryLease) Release(context.Context) error {
	l.store.mu.Lock()
	defer l.store.mu.Unlock()

	rec := l.store.records[l.projectionID]
	if rec != nil && rec.token == l.token {
		rec.token = ""
		rec.expiresAt = time.Time{}
	}
	return nil
}
