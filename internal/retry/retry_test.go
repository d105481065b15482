package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	policy := NewPolicy(3, time.Millisecond, nil)

	calls := 0
	err := policy.Do(context.Background(), "flaky", func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v, want nil", err)
	}
	if calls != 3 {
		t.Fatalf("fn ran %d times, want 3", calls)
	}
}

func TestDoExhaustsAttempts(t *testing.T) {
	policy := NewPolicy(3, time.Millisecond, nil)
	sentinel := errors.New("still broken")

	calls := 0
	err := policy.Do(context.Background(), "broken", func(ctx context.Context) error {
		calls++
		return sentinel
	})
	if calls != 3 {
		t.Fatalf("fn ran %d times, want 3", calls)
	}

	var rerr *Error
	if !errors.As(err, &rerr) {
		t.Fatalf("Do returned %T, want *Error", err)
	}
	if rerr.Attempts != 3 {
		t.Fatalf("Attempts = %d, want 3", rerr.Attempts)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("error chain does not contain the terminal failure: %v", err)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	policy := NewPolicy(5, time.Millisecond, nil)

	calls := 0
	err := policy.Do(context.Background(), "rejected", func(ctx context.Context) error {
		calls++
		return Permanent(errors.New("bad request"))
	})
	if calls != 1 {
		t.Fatalf("fn ran %d times, want 1", calls)
	}
	if err == nil {
		t.Fatal("Do returned nil, want error")
	}
}

func TestDoHonorsClassifier(t *testing.T) {
	retryable := errors.New("retry me")
	fatal := errors.New("give up")

	policy := NewPolicy(5, time.Millisecond, nil)
	policy.Classify = func(err error) bool { return errors.Is(err, retryable) }

	calls := 0
	err := policy.Do(context.Background(), "classified", func(ctx context.Context) error {
		calls++
		if calls == 1 {
			return retryable
		}
		return fatal
	})
	if calls != 2 {
		t.Fatalf("fn ran %d times, want 2", calls)
	}
	if !errors.Is(err, fatal) {
		t.Fatalf("error = %v, want %v", err, fatal)
	}
}

func TestDoStopsWhenContextCancelled(t *testing.T) {
	policy := NewPolicy(10, time.Minute, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	calls := 0
	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- policy.Do(ctx, "cancelled", func(ctx context.Context) error {
			calls++
			if calls == 1 {
				close(started)
			}
			return errors.New("transient")
		})
	}()

	<-started
	cancel()

	// The next scheduled wait is a minute long, so a prompt return proves
	// cancellation interrupted it.
	select {
	case err := <-done:
		if err == nil {
			t.Fatal("Do returned nil, want error")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Do did not return after context cancellation")
	}
	if calls > 2 {
		t.Fatalf("fn ran %d times after cancellation, want at most 2", calls)
	}
}
