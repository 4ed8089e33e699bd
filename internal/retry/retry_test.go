package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vietdv277/clusterbench/internal/retry/retrytest"
)

func TestDoSucceedsAfterFailures(t *testing.T) {
	timer := retrytest.NewTimer()
	r := New(WithTimer(timer))

	attempts, err := r.Do(context.Background(), Policy{Attempts: 5, Delay: 30 * time.Second}, func(ctx context.Context, attempt int) error {
		if attempt < 3 {
			return errors.New("not yet")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected success, got %v", err)
	}
	if attempts != 3 {
		t.Fatalf("expected 3 attempts, got %d", attempts)
	}
	starts := timer.Starts()
	if len(starts) != 2 {
		t.Fatalf("expected 2 waits, got %d", len(starts))
	}
	for _, d := range starts {
		if d != 30*time.Second {
			t.Fatalf("expected 30s wait, got %s", d)
		}
	}
}

func TestDoExhausted(t *testing.T) {
	timer := retrytest.NewTimer()
	var notified []int
	r := New(WithTimer(timer), WithNotify(func(attempt int, err error, next time.Duration) {
		notified = append(notified, attempt)
	}))

	cause := errors.New("connection refused")
	attempts, err := r.Do(context.Background(), Policy{Attempts: 4, Delay: time.Second}, func(ctx context.Context, attempt int) error {
		return cause
	})
	if attempts != 4 {
		t.Fatalf("expected 4 attempts, got %d", attempts)
	}
	if !errors.Is(err, ErrExhausted) {
		t.Fatalf("expected ErrExhausted, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected error to wrap cause, got %v", err)
	}
	if len(timer.Starts()) != 3 {
		t.Fatalf("expected 3 waits, got %d", len(timer.Starts()))
	}
	if len(notified) != 3 || notified[0] != 1 || notified[2] != 3 {
		t.Fatalf("expected notifications for attempts 1..3, got %v", notified)
	}
}

func TestDoPermanent(t *testing.T) {
	r := New(WithTimer(retrytest.NewTimer()))
	cause := errors.New("access denied")

	attempts, err := r.Do(context.Background(), Policy{Attempts: 10, Delay: time.Second}, func(ctx context.Context, attempt int) error {
		return Permanent(cause)
	})
	if attempts != 1 {
		t.Fatalf("expected 1 attempt, got %d", attempts)
	}
	if errors.Is(err, ErrExhausted) {
		t.Fatalf("expected permanent error not to be reported as exhaustion")
	}
	if !errors.Is(err, cause) {
		t.Fatalf("expected cause, got %v", err)
	}
}

func TestDoContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(WithTimer(retrytest.NewTimer()))

	_, err := r.Do(ctx, Policy{Attempts: 10, Delay: time.Second}, func(ctx context.Context, attempt int) error {
		cancel()
		return errors.New("transient")
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestDoInvalidPolicy(t *testing.T) {
	r := New()
	for _, p := range []Policy{{Attempts: 0, Delay: time.Second}, {Attempts: 1, Delay: 0}} {
		if _, err := r.Do(context.Background(), p, func(context.Context, int) error { return nil }); !errors.Is(err, ErrInvalidPolicy) {
			t.Fatalf("expected ErrInvalidPolicy for %+v, got %v", p, err)
		}
	}
}
