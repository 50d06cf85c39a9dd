// Package catchup replays the journal into projections.
//
// Each projection keeps its own checkpoint under a lease, so a projection is
// applied by one runner at a time while different projections proceed
// independently. Runs are resumable: a run starts after the stored checkpoint
// and persists its progress after every batch, at the first commit boundary
// after RenewInterval and before returning.
package catchup

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	apperrors "github.com/louisbranch/contentrepo/internal/platform/errors"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/checkpoint"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/event"
)

// DefaultBatchSize is used when Engine.BatchSize is not positive.
const DefaultBatchSize = 100

// ErrApplyFailed is matched by every ApplyError.
var ErrApplyFailed = apperrors.New(apperrors.CodeProjectionApplyFailed, "projection apply failed")

// Source is the part of the journal catch-up reads.
type Source interface {
	ReadAll(ctx context.Context, afterSeq uint64, limit int) ([]event.Event, error)
}

// Projection is a read model fed by catch-up. It must implement a handler
// method for every event type; CanHandle decides which events are decoded
// and dispatched at all.
type Projection interface {
	event.Handler
	Name() string
	CanHandle(eventType event.Type) bool
	// Reset drops all projected state.
	Reset(ctx context.Context) error
}

// Result summarizes a run.
type Result struct {
	Projection string
	// From is the checkpoint the run started after.
	From uint64
	// Last is the checkpoint the run left behind.
	Last    uint64
	Applied int
	Skipped int
}

// ApplyError reports the event a projection failed on. The checkpoint is
// left at the previous event.
type ApplyError struct {
	Projection string
	Seq        uint64
	Type       event.Type
	Err        error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("projection %s failed on event %d (%s): %v", e.Projection, e.Seq, e.Type, e.Err)
}

func (e *ApplyError) Unwrap() []error {
	return []error{ErrApplyFailed, e.Err}
}

// Engine runs projections against the journal.
type Engine struct {
	Source      Source
	Checkpoints checkpoint.Store
	Registry    *event.Registry
	BatchSize   int
	// RenewInterval is how long a run may go without storing its checkpoint.
	// Once it elapses the checkpoint is stored at the next commit boundary,
	// which renews the lease. Keep it well below the lease TTL. Defaults to a
	// third of checkpoint.DefaultLeaseTTL.
	RenewInterval time.Duration
	// Now defaults to time.Now.
	Now    func() time.Time
	Tracer trace.Tracer
	Logf   func(format string, args ...any)
}

func (e *Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e *Engine) renewInterval() time.Duration {
	if e.RenewInterval > 0 {
		return e.RenewInterval
	}
	return checkpoint.DefaultLeaseTTL / 3
}

func (e *Engine) tracer() trace.Tracer {
	if e.Tracer != nil {
		return e.Tracer
	}
	return otel.Tracer("contentrepo/catchup")
}

func (e *Engine) logf(format string, args ...any) {
	if e.Logf != nil {
		e.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

func (e *Engine) batchSize() int {
	if e.BatchSize > 0 {
		return e.BatchSize
	}
	return DefaultBatchSize
}

func (e *Engine) validate() error {
	if e.Source == nil {
		return fmt.Errorf("catch-up source is required")
	}
	if e.Checkpoints == nil {
		return fmt.Errorf("checkpoint store is required")
	}
	if e.Registry == nil {
		return fmt.Errorf("event registry is required")
	}
	return nil
}

// Run applies every event after the projection's checkpoint. Cancellation is
// honoured only between commits: once the first event of a commit is read,
// the rest of the commit is applied before the run stops.
func (e *Engine) Run(ctx context.Context, p Projection) (Result, error) {
	if err := e.validate(); err != nil {
		return Result{}, err
	}
	result := Result{Projection: p.Name()}

	ctx, span := e.tracer().Start(ctx, "catchup.Run", trace.WithAttributes(attribute.String("projection", p.Name())))
	defer span.End()

	err := checkpoint.WithLease(ctx, e.Checkpoints, p.Name(), func(lease checkpoint.Lease) error {
		from, _, err := lease.Load(ctx)
		if err != nil {
			return fmt.Errorf("load checkpoint %s: %w", p.Name(), err)
		}
		result.From = from
		result.Last = from
		return e.run(ctx, p, lease, &result)
	})

	span.SetAttributes(
		attribute.Int64("from", int64(result.From)),
		attribute.Int64("last", int64(result.Last)),
		attribute.Int("applied", result.Applied),
		attribute.Int("skipped", result.Skipped),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return result, err
	}
	if result.Applied > 0 {
		e.logf("catch-up %s: applied %d, skipped %d, checkpoint %d -> %d", p.Name(), result.Applied, result.Skipped, result.From, result.Last)
	}
	return result, nil
}

func (e *Engine) run(ctx context.Context, p Projection, lease checkpoint.Lease, result *Result) error {
	lastStore := e.now()
	persist := func() error {
		if err := lease.Store(context.WithoutCancel(ctx), result.Last); err != nil {
			return fmt.Errorf("store checkpoint %s at %d: %w", p.Name(), result.Last, err)
		}
		lastStore = e.now()
		return nil
	}

	inCommit := false
	for {
		readCtx := ctx
		if inCommit {
			readCtx = context.WithoutCancel(ctx)
		} else if err := ctx.Err(); err != nil {
			if storeErr := persist(); storeErr != nil {
				return storeErr
			}
			return err
		}

		batch, err := e.Source.ReadAll(readCtx, result.Last, e.batchSize())
		if err != nil {
			return fmt.Errorf("read events after %d: %w", result.Last, err)
		}
		if len(batch) == 0 {
			if inCommit {
				return fmt.Errorf("commit at event %d is incomplete", result.Last)
			}
			return persist()
		}

		for _, evt := range batch {
			if !inCommit && ctx.Err() != nil {
				if storeErr := persist(); storeErr != nil {
					return storeErr
				}
				return ctx.Err()
			}
			if evt.Seq != result.Last+1 {
				if storeErr := persist(); storeErr != nil {
					return storeErr
				}
				return fmt.Errorf("event sequence gap: expected %d, got %d", result.Last+1, evt.Seq)
			}

			if p.CanHandle(evt.Type) {
				if err := e.apply(ctx, p, evt, inCommit); err != nil {
					if storeErr := persist(); storeErr != nil {
						return storeErr
					}
					return err
				}
				result.Applied++
			} else {
				result.Skipped++
			}
			result.Last = evt.Seq
			inCommit = !evt.EndsCommit()
			if !inCommit && e.now().Sub(lastStore) >= e.renewInterval() {
				if err := persist(); err != nil {
					return err
				}
			}
		}
		if err := persist(); err != nil {
			return err
		}
	}
}

func (e *Engine) apply(ctx context.Context, p Projection, evt event.Event, inCommit bool) error {
	if inCommit {
		ctx = context.WithoutCancel(ctx)
	}
	payload, err := e.Registry.Decode(evt)
	if err == nil {
		err = event.Dispatch(ctx, p, evt, payload)
	}
	if err != nil {
		return &ApplyError{Projection: p.Name(), Seq: evt.Seq, Type: evt.Type, Err: err}
	}
	return nil
}

// Reset drops a projection's state and its checkpoint under the lease, so the
// next run replays the whole journal.
func (e *Engine) Reset(ctx context.Context, p Projection) error {
	if err := e.validate(); err != nil {
		return err
	}
	ctx, span := e.tracer().Start(ctx, "catchup.Reset", trace.WithAttributes(attribute.String("projection", p.Name())))
	defer span.End()

	err := checkpoint.WithLease(ctx, e.Checkpoints, p.Name(), func(lease checkpoint.Lease) error {
		// The checkpoint never points past an emptied read model.
		if err := lease.Store(ctx, 0); err != nil {
			return fmt.Errorf("reset checkpoint %s: %w", p.Name(), err)
		}
		if err := p.Reset(ctx); err != nil {
			return fmt.Errorf("reset projection %s: %w", p.Name(), err)
		}
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(otelcodes.Error, err.Error())
		return err
	}
	e.logf("catch-up %s: reset", p.Name())
	return nil
}

// RunAll runs distinct projections concurrently. The first error cancels the
// remaining runs at their next commit boundary.
func (e *Engine) RunAll(ctx context.Context, projections ...Projection) ([]Result, error) {
	seen := make(map[string]bool, len(projections))
	for _, p := range projections {
		if seen[p.Name()] {
			return nil, fmt.Errorf("projection %s listed twice", p.Name())
		}
		seen[p.Name()] = true
	}

	results := make([]Result, len(projections))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, p := range projections {
		group.Go(func() error {
			result, err := e.Run(groupCtx, p)
			results[i] = result
			return err
		})
	}
	return results, group.Wait()
}
