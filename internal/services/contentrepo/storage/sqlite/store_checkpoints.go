package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/louisbranch/contentrepo/internal/platform/id"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/checkpoint"
)

var _ checkpoint.Store = (*Store)(nil)

// Acquire takes the lease on a projection's checkpoint. A lease held by
// another token is taken over only once it has expired.
func (s *Store) Acquire(ctx context.Context, projectionID string) (checkpoint.Lease, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s == nil || s.sqlDB == nil {
		return nil, fmt.Errorf("storage is not configured")
	}
	token, err := id.NewID()
	if err != nil {
		return nil, fmt.Errorf("generate lease token: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO projection_checkpoints (projection_id) VALUES (?)`, projectionID); err != nil {
		return nil, fmt.Errorf("init checkpoint %s: %w", projectionID, err)
	}
	var (
		current   string
		expiresAt int64
	)
	if err := tx.QueryRowContext(ctx,
		`SELECT lock_token, lock_expires_at FROM projection_checkpoints WHERE projection_id = ?`, projectionID,
	).Scan(&current, &expiresAt); err != nil {
		return nil, fmt.Errorf("load checkpoint %s: %w", projectionID, err)
	}
	now := s.now()
	if current != "" && now.Before(fromNanos(expiresAt)) {
		return nil, checkpoint.Locked(projectionID)
	}
	res, err := tx.ExecContext(ctx,
		`UPDATE projection_checkpoints SET lock_token = ?, lock_expires_at = ?, updated_at = ? WHERE projection_id = ? AND lock_token = ?`,
		token, toNanos(now.Add(s.leaseTTL)), toNanos(now), projectionID, current)
	if err != nil {
		return nil, fmt.Errorf("lock checkpoint %s: %w", projectionID, err)
	}
	if n, err := res.RowsAffected(); err != nil || n != 1 {
		return nil, checkpoint.Locked(projectionID)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &sqliteLease{store: s, projectionID: projectionID, token: token}, nil
}

type sqliteLease struct {
	store        *Store
	projectionID string
	token        string
}

func (l *sqliteLease) Load(ctx context.Context) (uint64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	var (
		seq, stored, expiresAt int64
		token                  string
	)
	err := l.store.sqlDB.QueryRowContext(ctx,
		`SELECT seq, stored, lock_token, lock_expires_at FROM projection_checkpoints WHERE projection_id = ?`, l.projectionID,
	).Scan(&seq, &stored, &token, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, checkpoint.LeaseLost(l.projectionID)
	}
	if err != nil {
		return 0, false, fmt.Errorf("load checkpoint %s: %w", l.projectionID, err)
	}
	if token != l.token || !l.store.now().Before(fromNanos(expiresAt)) {
		return 0, false, checkpoint.LeaseLost(l.projectionID)
	}
	return uint64(seq), stored != 0, nil
}

// Store moves the checkpoint only while the lease token still matches and
// has not expired.
func (l *sqliteLease) Store(ctx context.Context, seq uint64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	now := l.store.now()
	res, err := l.store.sqlDB.ExecContext(ctx, `
UPDATE projection_checkpoints
SET seq = ?, stored = 1, lock_expires_at = ?, updated_at = ?
WHERE projection_id = ? AND lock_token = ? AND lock_expires_at > ?`,
		int64(seq), toNanos(now.Add(l.store.leaseTTL)), toNanos(now), l.projectionID, l.token, toNanos(now))
	if err != nil {
		return fmt.Errorf("store checkpoint %s: %w", l.projectionID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store checkpoint %s: %w", l.projectionID, err)
	}
	if n != 1 {
		return checkpoint.LeaseLost(l.projectionID)
	}
	return nil
}

func (l *sqliteLease) Release(ctx context.Context) error {
	_, err := l.store.sqlDB.ExecContext(ctx,
		`UPDATE projection_checkpoints SET lock_token = '', lock_expires_at = 0 WHERE projection_id = ? AND lock_token = ?`,
		l.projectionID, l.token)
	if err != nil {
		return fmt.Errorf("release checkpoint %s: %w", l.projectionID, err)
	}
	return nil
}
