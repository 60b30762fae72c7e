package retry

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	return cfg
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return NewHTTPError(http.StatusServiceUnavailable, "503 Service Unavailable", "")
		}
		return nil
	})

	if err != nil {
		t.Fatalf("WithRetry failed: %v", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWithRetry_NonRetryableStatus(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), fastConfig(), func() error {
		attempts++
		return NewHTTPError(http.StatusNotFound, "404 Not Found", "")
	})

	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (404 must not be retried)", attempts)
	}
}

func TestWithRetry_BudgetExhausted(t *testing.T) {
	attempts := 0
	err := WithRetry(context.Background(), fastConfig(), func() error {
		attempts++
		return errors.New("flaky")
	})

	if err == nil {
		t.Fatal("expected error after exhausting attempts")
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
}

func TestWithRetry_ContextCancelledDuringBackoff(t *testing.T) {
	cfg := fastConfig()
	cfg.InitialBackoff = time.Minute

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	err := WithRetry(ctx, cfg, func() error {
		return errors.New("always fails")
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestWithRetry_WrappedStatusCode(t *testing.T) {
	attempts := 0
	wrapped := func() error {
		attempts++
		return errors.Join(errors.New("fetch failed"), NewHTTPError(http.StatusForbidden, "403 Forbidden", ""))
	}
	_ = WithRetry(context.Background(), fastConfig(), wrapped)
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (403 inside wrapped error must not be retried)", attempts)
	}
}

func TestCalculateBackoff_Capped(t *testing.T) {
	cfg := Config{InitialBackoff: time.Second, MaxBackoff: 4 * time.Second, Multiplier: 2.0}
	if got := calculateBackoff(0, cfg); got != time.Second {
		t.Errorf("attempt 0 backoff = %v, want 1s", got)
	}
	if got := calculateBackoff(10, cfg); got != 4*time.Second {
		t.Errorf("attempt 10 backoff = %v, want cap 4s", got)
	}
}

func TestIsTimeoutError(t *testing.T) {
	if !isTimeoutError(context.DeadlineExceeded) {
		t.Error("deadline exceeded must be a timeout")
	}
	if isTimeoutError(errors.New("nope")) {
		t.Error("plain error must not be a timeout")
	}
}
