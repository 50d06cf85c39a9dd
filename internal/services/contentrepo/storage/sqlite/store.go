// Package sqlite persists the journal, projection checkpoints and the asset
// usage read model in SQLite databases.
//
// The journal lives in its own database, opened with OpenEvents. Checkpoints
// and read models share a projections database, opened with OpenProjections.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"sync"
	"time"

	sqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/louisbranch/contentrepo/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/checkpoint"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/storage/sqlite/migrations"
)

func toNanos(value time.Time) int64 {
	return value.UTC().UnixNano()
}

func fromNanos(value int64) time.Time {
	return time.Unix(0, value).UTC()
}

// Store is a SQLite database holding either the journal or projection state.
type Store struct {
	sqlDB *sql.DB
	// writeMu serializes commits so sequence allocation never races.
	writeMu sync.Mutex

	now                  func() time.Time
	leaseTTL             time.Duration
	compressionThreshold int
}

// Option configures a Store.
type Option func(*Store)

// WithClock replaces the time source used for commit timestamps and lease
// expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// WithLeaseTTL sets how long a checkpoint lease stays valid without a store.
func WithLeaseTTL(ttl time.Duration) Option {
	return func(s *Store) {
		s.leaseTTL = ttl
	}
}

// WithCompressionThreshold sets the payload size from which event payloads
// are stored zstd-compressed. Zero or less disables compression.
func WithCompressionThreshold(bytes int) Option {
	return func(s *Store) {
		s.compressionThreshold = bytes
	}
}

// DefaultCompressionThreshold is the payload size compressed by default.
const DefaultCompressionThreshold = 4 << 10

// OpenEvents opens the journal database at path.
func OpenEvents(ctx context.Context, path string, opts ...Option) (*Store, error) {
	return openStore(ctx, path, migrations.EventsFS, "events", opts)
}

// OpenProjections opens the checkpoint and read model database at path.
func OpenProjections(ctx context.Context, path string, opts ...Option) (*Store, error) {
	return openStore(ctx, path, migrations.ProjectionsFS, "projections", opts)
}

// Close closes the database. It is nil-safe.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func openStore(ctx context.Context, path string, migrationFS fs.FS, migrationRoot string, opts []Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}

	cleanPath := filepath.Clean(path)
	dsn := "file:" + cleanPath + "?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}

	store := &Store{
		sqlDB:                sqlDB,
		now:                  time.Now,
		leaseTTL:             checkpoint.DefaultLeaseTTL,
		compressionThreshold: DefaultCompressionThreshold,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(store)
		}
	}
	if store.leaseTTL <= 0 {
		store.leaseTTL = checkpoint.DefaultLeaseTTL
	}

	if _, err := sqlitemigrate.ApplyMigrations(ctx, sqlDB, migrationFS, migrationRoot); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return store, nil
}

func isConstraintError(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_CONSTRAINT || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
}

// IsBusy reports whether err is SQLite refusing work because another
// connection holds a lock. Such errors are safe to retry.
func IsBusy(err error) bool {
	var sqliteErr *sqlite.Error
	if !errors.As(err, &sqliteErr) {
		return false
	}
	code := sqliteErr.Code()
	return code == sqlite3.SQLITE_BUSY || code == sqlite3.SQLITE_LOCKED
}
