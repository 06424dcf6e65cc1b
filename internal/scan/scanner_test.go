package scan

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithBackoffRetriesUntilSuccess(t *testing.T) {
	s := &Scanner{cfg: Config{MaxRetries: 3, RetryBackoff: time.Millisecond}}

	calls := 0
	err := s.withBackoff(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestWithBackoffReturnsLastError(t *testing.T) {
	s := &Scanner{cfg: Config{MaxRetries: 2, RetryBackoff: time.Millisecond}}

	calls := 0
	lastErr := errors.New("still failing")
	err := s.withBackoff(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("earlier failure")
		}
		return lastErr
	})
	if !errors.Is(err, lastErr) {
		t.Fatalf("expected last error, got %v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestWithBackoffNoRetriesRunsOnce(t *testing.T) {
	s := &Scanner{cfg: Config{MaxRetries: 0, RetryBackoff: time.Millisecond}}

	calls := 0
	failure := errors.New("boom")
	err := s.withBackoff(context.Background(), func(context.Context) error {
		calls++
		return failure
	})
	if !errors.Is(err, failure) {
		t.Fatalf("expected failure, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt, got %d", calls)
	}
}

func TestWithBackoffStopsOnCancel(t *testing.T) {
	s := &Scanner{cfg: Config{MaxRetries: 5, RetryBackoff: time.Minute}}

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()
	err := s.withBackoff(ctx, func(context.Context) error {
		calls++
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context cancellation, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected a single attempt before cancellation, got %d", calls)
	}
}
