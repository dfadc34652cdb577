package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig() *Config {
	return &Config{
		MaxRetries:   3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

type permanentErr struct{}

func (permanentErr) Error() string     { return "permanent" }
func (permanentErr) IsRetryable() bool { return false }

type transientErr struct{}

func (transientErr) Error() string     { return "transient" }
func (transientErr) IsRetryable() bool { return true }

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		if attempts < 3 {
			return transientErr{}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attempts != 3 {
		t.Errorf("got %d attempts, want 3", attempts)
	}
}

func TestDoExhaustsRetries(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return transientErr{}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != 4 { // initial attempt + 3 retries
		t.Errorf("got %d attempts, want 4", attempts)
	}
}

func TestDoStopsOnPermanentError(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), fastConfig(), func() error {
		attempts++
		return permanentErr{}
	})
	var pe permanentErr
	if !errors.As(err, &pe) {
		t.Fatalf("expected permanent error, got %v", err)
	}
	if attempts != 1 {
		t.Errorf("got %d attempts, want 1 (no retry on permanent errors)", attempts)
	}
}

func TestDoWithResultReturnsValue(t *testing.T) {
	got, err := DoWithResult(context.Background(), fastConfig(), func() (string, error) {
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "ok" {
		t.Errorf("got %q, want %q", got, "ok")
	}
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &Config{
		MaxRetries:   5,
		InitialDelay: time.Minute, // would hang without cancellation
		MaxDelay:     time.Minute,
		Multiplier:   2.0,
	}
	err := Do(ctx, cfg, func() error {
		return transientErr{}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
