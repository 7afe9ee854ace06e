package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoRetriesTemporaryFailure(t *testing.T) {
	exec := NewExecutor(Config{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
		BreakerEnabled:    false,
	})

	attempts := 0
	errTemp := errors.New("temporary")
	err := exec.Do(context.Background(), "op", func(err error) Verdict {
		return Verdict{Retry: errors.Is(err, errTemp), CountFailure: true}
	}, func(context.Context) error {
		attempts++
		if attempts < 3 {
			return errTemp
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
}

func TestDoDoesNotRetryPermanentFailure(t *testing.T) {
	exec := NewExecutor(Config{
		MaxAttempts:       3,
		InitialBackoff:    1 * time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
		BreakerEnabled:    false,
	})

	attempts := 0
	errPermanent := errors.New("permanent")
	err := exec.Do(context.Background(), "op", func(error) Verdict {
		return Verdict{Retry: false, CountFailure: false}
	}, func(context.Context) error {
		attempts++
		return errPermanent
	})
	if !errors.Is(err, errPermanent) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
}

func TestDoOpensCircuitAfterFailures(t *testing.T) {
	exec := NewExecutor(Config{
		MaxAttempts:          1,
		InitialBackoff:       1 * time.Millisecond,
		MaxBackoff:           1 * time.Millisecond,
		BackoffMultiplier:    2,
		BreakerEnabled:       true,
		BreakerMinRequests:   2,
		BreakerFailureRatio:  0.5,
		BreakerOpenTimeout:   50 * time.Millisecond,
		BreakerHalfOpenCalls: 1,
	})

	errTemp := errors.New("temporary")
	classify := func(error) Verdict {
		return Verdict{Retry: false, CountFailure: true}
	}

	for i := 0; i < 2; i++ {
		err := exec.Do(context.Background(), "op", classify, func(context.Context) error {
			return errTemp
		})
		if !errors.Is(err, errTemp) {
			t.Fatalf("expected temporary error on iteration %d, got %v", i, err)
		}
	}

	err := exec.Do(context.Background(), "op", classify, func(context.Context) error {
		t.Fatalf("circuit should be open and must not call operation")
		return nil
	})
	if !IsCircuitOpen(err) {
		t.Fatalf("expected open circuit error, got %v", err)
	}
}

func TestDoBreakersAreIsolatedByOperation(t *testing.T) {
	exec := NewExecutor(Config{
		MaxAttempts:          1,
		InitialBackoff:       1 * time.Millisecond,
		MaxBackoff:           1 * time.Millisecond,
		BackoffMultiplier:    2,
		BreakerEnabled:       true,
		BreakerMinRequests:   2,
		BreakerFailureRatio:  0.5,
		BreakerOpenTimeout:   50 * time.Millisecond,
		BreakerHalfOpenCalls: 1,
	})

	errTemp := errors.New("temporary")
	classify := func(error) Verdict {
		return Verdict{Retry: false, CountFailure: true}
	}

	for i := 0; i < 3; i++ {
		exec.Do(context.Background(), "embedder", classify, func(context.Context) error {
			return errTemp
		})
	}

	called := false
	err := exec.Do(context.Background(), "websearch", classify, func(context.Context) error {
		called = true
		return nil
	})
	if err != nil || !called {
		t.Fatalf("healthy operation must not share the tripped breaker: called=%v err=%v", called, err)
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	exec := NewExecutor(Config{
		MaxAttempts:       5,
		InitialBackoff:    1 * time.Millisecond,
		MaxBackoff:        2 * time.Millisecond,
		BackoffMultiplier: 2,
		BreakerEnabled:    false,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	called := false
	err := exec.Do(ctx, "op", nil, func(context.Context) error {
		called = true
		return nil
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if called {
		t.Fatalf("operation must not run after cancellation")
	}
}
