// Package bbolt keeps projection checkpoints in a BoltDB file. It suits a
// single process running catch-up next to a journal that lives elsewhere.
package bbolt

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.etcd.io/bbolt"

	"github.com/louisbranch/contentrepo/internal/platform/id"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/checkpoint"
)

const checkpointBucket = "checkpoint"

// Store provides a BoltDB-backed checkpoint store.
type Store struct {
	db  *bbolt.DB
	ttl time.Duration
	now func() time.Time
}

var _ checkpoint.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the time source used for lease expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLeaseTTL sets how long a lease stays valid without a store.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.ttl = ttl
	}
}

// Open opens a BoltDB-backed store at the provided path.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	db, err := bbolt.Open(cleanPath, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open storage db: %w", err)
	}

	store := &Store{db: db, ttl: checkpoint.DefaultLeaseTTL, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.ttl <= 0 {
		store.ttl = checkpoint.DefaultLeaseTTL
	}
	if err := store.ensureBuckets(); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying BoltDB database.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type record struct {
	Seq       uint64    `json:"seq"`
	Stored    bool      `json:"stored"`
	Token     string    `json:"token,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Acquire takes the lease on a projection's checkpoint.
func (s *Store) Acquire(ctx context.Context, projectionID string) (checkpoint.Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.db == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	if strings.TrimSpace(projectionID) == "" {
		return nil, fmt.Errorf("projection id is required")
	}
	token, err := id.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate lease token: %w", err)
	}

	err = s.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := checkpoints(tx)
		if err != nil {
			return err
		}
		rec, _, err := get(bucket, projectionID)
		if err != nil {
			return err
		}
		now := s.now()
		if rec.Token != "" && now.Before(rec.ExpiresAt) {
			return checkpoint.Locked(projectionID)
		}
		rec.Token = token
		rec.ExpiresAt = now.Add(s.ttl)
		rec.UpdatedAt = now
		return put(bucket, projectionID, rec)
	})
	if err != nil {
		return nil, err
	}
	return &lease{store: s, projectionID: projectionID, token: token}, nil
}

type lease struct {
	store        *Store
	projectionID string
	token        string
}

// held loads the record and checks the lease is still ours.
func (l *lease) held(bucket *bbolt.Bucket) (record, error) {
	rec, ok, err := get(bucket, l.projectionID)
	if err != nil {
		return record{}, err
	}
	if !ok || rec.Token != l.token || !l.store.now().Before(rec.ExpiresAt) {
		return record{}, checkpoint.LeaseLost(l.projectionID)
	}
	return rec, nil
}

func (l *lease) Load(ctx context.Context) (uint64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	var rec record
	err := l.store.db.View(func(tx *bbolt.Tx) error {
		bucket, err := checkpoints(tx)
		if err != nil {
			return err
		}
		rec, err = l.held(bucket)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return rec.Seq, rec.Stored, nil
}

func (l *lease) Store(ctx context.Context, seq uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return l.store.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := checkpoints(tx)
		if err != nil {
			return err
		}
		rec, err := l.held(bucket)
		if err != nil {
			return err
		}
		now := l.store.now()
		rec.Seq = seq
		rec.Stored = true
		rec.ExpiresAt = now.Add(l.store.ttl)
		rec.UpdatedAt = now
		return put(bucket, l.projectionID, rec)
	})
}

func (l *lease) Release(context.Context) error {
	return l.store.db.Update(func(tx *bbolt.Tx) error {
		bucket, err := checkpoints(tx)
		if err != nil {
			return err
		}
		rec, ok, err := get(bucket, l.projectionID)
		if err != nil || !ok || rec.Token != l.token {
			return err
		}
		rec.Token = ""
		rec.ExpiresAt = time.Time{}
		return put(bucket, l.projectionID, rec)
	})
}

func (s *Store) ensureBuckets() error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(checkpointBucket))
		if err != nil {
			return fmt.Errorf("create checkpoint bucket: %w", err)
		}
		return nil
	})
}

func checkpoints(tx *bbolt.Tx) (*bbolt.Bucket, error) {
	bucket := tx.Bucket([]byte(checkpointBucket))
	if bucket == nil {
		return nil, fmt.Errorf("checkpoint bucket is missing")
	}
	return bucket, nil
}

func get(bucket *bbolt.Bucket, projectionID string) (record, bool, error) {
	payload := bucket.Get(checkpointKey(projectionID))
	if payload == nil {
		return record{}, false, nil
	}
	var rec record
	if err := json.Unmarshal(payload, &rec); err != nil {
		return record{}, false, fmt.Errorf("unmarshal checkpoint %s: %w", projectionID, err)
	}
	return rec, true, nil
}

func put(bucket *bbolt.Bucket, projectionID string, rec record) error {
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal checkpoint %s: %w", projectionID, err)
	}
	return bucket.Put(checkpointKey(projectionID), payload)
}

func checkpointKey(projectionID string) []byte {
	return []byte(projectionID)
}
