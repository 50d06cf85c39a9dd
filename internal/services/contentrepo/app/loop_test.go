package app

import (
	"context"
	"errors"
	"testing"
	"time"

	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/catchup"
	"github.com/louisbranch/contentrepo/internal/services/contentrepo/domain/checkpoint"
)

func fastLoopConfig() LoopConfig {
	return LoopConfig{
		PollInterval:  time.Millisecond,
		RetryBackoff:  time.Millisecond,
		RetryMaxDelay: time.Millisecond,
		RetryTries:    3,
	}
}

func TestRunOnceRetriesTransientErrors(t *testing.T) {
	calls := 0
	loop := newLoop(func(context.Context) ([]catchup.Result, error) {
		calls++
		if calls < 3 {
			return nil, errors.New("database is locked")
		}
		return []catchup.Result{{Projection: "graph", Applied: 2}}, nil
	}, fastLoopConfig(), func(string, ...any) {})

	results, err := loop.RunOnce(context.Background())
	if err != nil {
		t.Fatalf("run once: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
	if len(results) != 1 || results[0].Applied != 2 {
		t.Fatalf("results = %+v, want one with 2 applied", results)
	}
}

func TestRunOnceGivesUpAfterMaxTries(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	loop := newLoop(func(context.Context) ([]catchup.Result, error) {
		calls++
		return nil, boom
	}, fastLoopConfig(), func(string, ...any) {})

	if _, err := loop.RunOnce(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestRunOnceDoesNotRetryApplyErrors(t *testing.T) {
	calls := 0
	loop := newLoop(func(context.Context) ([]catchup.Result, error) {
		calls++
		return nil, &catchup.ApplyError{Projection: "graph", Seq: 4, Err: errors.New("bad payload")}
	}, fastLoopConfig(), func(string, ...any) {})

	_, err := loop.RunOnce(context.Background())
	if !errors.Is(err, catchup.ErrApplyFailed) {
		t.Fatalf("error = %v, want ErrApplyFailed", err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRunOnceSkipsLockedCheckpoints(t *testing.T) {
	calls := 0
	loop := newLoop(func(context.Context) ([]catchup.Result, error) {
		calls++
		return nil, checkpoint.Locked("graph")
	}, fastLoopConfig(), func(string, ...any) {})

	results, err := loop.RunOnce(context.Background())
	if err != nil || results != nil {
		t.Fatalf("run once = %v, %v, want nil, nil", results, err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	passes := make(chan struct{}, 16)
	loop := newLoop(func(context.Context) ([]catchup.Result, error) {
		select {
		case passes <- struct{}{}:
		default:
		}
		return nil, nil
	}, fastLoopConfig(), func(string, ...any) {})

	done := make(chan error, 1)
	go func() {
		done <- loop.Run(ctx)
	}()
	<-passes
	<-passes
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop after cancel")
	}
}

func TestTickReportsOutcome(t *testing.T) {
	fail := true
	loop := newLoop(func(context.Context) ([]catchup.Result, error) {
		if fail {
			return nil, &catchup.ApplyError{Projection: "graph", Seq: 4, Err: errors.New("bad payload")}
		}
		return []catchup.Result{{Projection: "graph"}}, nil
	}, fastLoopConfig(), func(string, ...any) {})
	var reported []error
	loop.Report = func(err error) { reported = append(reported, err) }

	loop.tick(context.Background())
	fail = false
	loop.tick(context.Background())

	if len(reported) != 2 {
		t.Fatalf("reports = %d, want 2", len(reported))
	}
	if !errors.Is(reported[0], catchup.ErrApplyFailed) {
		t.Fatalf("first report = %v, want ErrApplyFailed", reported[0])
	}
	if reported[1] != nil {
		t.Fatalf("second report = %v, want nil", reported[1])
	}
	if got := catchUpStatus(reported[0]); got != grpc_health_v1.HealthCheckResponse_NOT_SERVING {
		t.Fatalf("status after failure = %v, want NOT_SERVING", got)
	}
	if got := catchUpStatus(reported[1]); got != grpc_health_v1.HealthCheckResponse_SERVING {
		t.Fatalf("status after success = %v, want SERVING", got)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	loop.tick(ctx)
	if len(reported) != 2 {
		t.Fatalf("cancelled pass was reported: %v", reported)
	}
}

func TestLoopConfigDefaults(t *testing.T) {
	got := LoopConfig{}.normalized()
	if got.PollInterval != defaultPollInterval {
		t.Fatalf("poll interval = %v, want %v", got.PollInterval, defaultPollInterval)
	}
	if got.RetryTries != defaultRetryTries {
		t.Fatalf("retry tries = %d, want %d", got.RetryTries, defaultRetryTries)
	}
}
