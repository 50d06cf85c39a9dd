// Package checkpoint stores how far each projection has caught up with the
// journal. Access is exclusive: a caller acquires a lease for a projection
// and every store is checked against the lease token, so a run that lost its
// lease cannot move the checkpoint.
package checkpoint

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/louisbranch/contentrepo/internal/platform/errors"
)

// DefaultLeaseTTL bounds how long a lease stays valid without a store.
const DefaultLeaseTTL = 30 * time.Second

var (
	// ErrLocked is returned when another holder owns an unexpired lease.
	ErrLocked = apperrors.New(apperrors.CodeCheckpointLocked, "checkpoint is locked")
	// ErrLeaseLost is returned when a lease expired and was taken over, or was released.
	ErrLeaseLost = apperrors.New(apperrors.CodeCheckpointLeaseLost, "checkpoint lease lost")
)

// Store hands out leases on projection checkpoints.
type Store interface {
	Acquire(ctx context.Context, projectionID string) (Lease, error)
}

// Lease is exclusive access to one projection's checkpoint.
type Lease interface {
	// Load returns the last stored sequence number. ok is false when the
	// projection has never stored one.
	Load(ctx context.Context) (seq uint64, ok bool, err error)
	// Store records a sequence number and renews the lease.
	Store(ctx context.Context, seq uint64) error
	// Release gives the lease up. Releasing twice is a no-op.
	Release(ctx context.Context) error
}

// WithLease runs fn while holding the lease and releases it on every path.
func WithLease(ctx context.Context, store Store, projectionID string, fn func(Lease) error) (err error) {
	lease, err := store.Acquire(ctx, projectionID)
	if err != nil {
		return err
	}
	defer func() {
		// Release must run even when ctx is already cancelled.
		releaseErr := lease.Release(context.WithoutCancel(ctx))
		if err == nil && releaseErr != nil {
			err = fmt.Errorf("release checkpoint lease %s: %w", projectionID, releaseErr)
		}
	}()
	return fn(lease)
}

// Locked returns ErrLocked for a projection.
func Locked(projectionID string) error {
	return apperrors.WithMetadata(apperrors.CodeCheckpointLocked,
		fmt.Sprintf("checkpoint %q is locked", projectionID),
		map[string]string{"projection": projectionID})
}

// LeaseLost returns ErrLeaseLost for a projection.
func LeaseLost(projectionID string) error {
	return apperrors.WithMetadata(apperrors.CodeCheckpointLeaseLost,
		fmt.Sprintf("lease on checkpoint %q lost", projectionID),
		map[string]string{"projection": projectionID})
}
