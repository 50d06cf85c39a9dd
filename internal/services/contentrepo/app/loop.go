package app

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/cenkalti/backoff/v5"

	apperrors "github.com/louisbranch/contentrepo/internal/platform/errors"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/catchup"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/checkpoint"
)

const (
	defaultPollInterval  = 2 * time.Second
	defaultRetryBackoff  = 250 * time.Millisecond
	defaultRetryMaxDelay = 10 * time.Second
	defaultRetryTries    = 5
)

// LoopConfig controls how often catch-up runs and how it retries.
type LoopConfig struct {
	PollInterval  time.Duration
	RetryBackoff  time.Duration
	RetryMaxDelay time.Duration
	RetryTries    uint
}

func (c LoopConfig) normalized() LoopConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.RetryBackoff <= 0 {
		c.RetryBackoff = defaultRetryBackoff
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = defaultRetryMaxDelay
	}
	if c.RetryTries == 0 {
		c.RetryTries = defaultRetryTries
	}
	return c
}

// catchUpFunc runs every projection once.
type catchUpFunc func(ctx context.Context) ([]catchup.Result, error)

// Loop polls the journal and keeps projections current.
type Loop struct {
	// Report, when set, receives the outcome of every pass that was not cut
	// short by cancellation. A nil error means projections are current.
	Report func(err error)

	catchUp catchUpFunc
	config  LoopConfig
	logf    func(format string, args ...any)
}

// NewLoop returns a loop running the repository's catch-up.
func NewLoop(repo *Repository, config LoopConfig, logf func(format string, args ...any)) *Loop {
	return newLoop(repo.CatchUp, config, logf)
}

func newLoop(catchUp catchUpFunc, config LoopConfig, logf func(format string, args ...any)) *Loop {
	if logf == nil {
		logf = log.Printf
	}
	return &Loop{catchUp: catchUp, config: config.normalized(), logf: logf}
}

// Run polls until ctx is cancelled. Failed passes are logged; the loop keeps
// going so a projection fixed by a reset resumes on the next tick.
func (l *Loop) Run(ctx context.Context) error {
	l.tick(ctx)

	ticker := time.NewTicker(l.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.tick(ctx)
		}
	}
}

func (l *Loop) tick(ctx context.Context) {
	results, err := l.RunOnce(ctx)
	if ctx.Err() != nil {
		return
	}
	if l.Report != nil {
		l.Report(err)
	}
	if err != nil {
		l.logf("catch-up failed (%s): %v", apperrors.CodeOf(err), err)
		return
	}
	for _, result := range results {
		if result.Applied > 0 {
			l.logf("catch-up %s: applied %d events up to %d", result.Projection, result.Applied, result.Last)
		}
	}
}

// RunOnce runs one catch-up pass, retrying transient failures with
// exponential backoff. A locked checkpoint means another process is catching
// up and is not an error.
func (l *Loop) RunOnce(ctx context.Context) ([]catchup.Result, error) {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = l.config.RetryBackoff
	policy.MaxInterval = l.config.RetryMaxDelay

	results, err := backoff.Retry(ctx, func() ([]catchup.Result, error) {
		results, err := l.catchUp(ctx)
		switch {
		case err == nil:
			return results, nil
		case errors.Is(err, checkpoint.ErrLocked), errors.Is(err, catchup.ErrApplyFailed), ctx.Err() != nil:
			return nil, backoff.Permanent(err)
		default:
			return nil, err
		}
	},
		backoff.WithBackOff(policy),
		backoff.WithMaxTries(l.config.RetryTries),
		backoff.WithNotify(func(err error, wait time.Duration) {
			l.logf("catch-up retry in %s: %v", wait, err)
		}),
	)
	if errors.Is(err, checkpoint.ErrLocked) {
		return nil, nil
	}
	return results, err
}
