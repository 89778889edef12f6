package util

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastRetryConfig(maxRetries int) *RetryConfig {
	return &RetryConfig{
		MaxRetries: maxRetries,
		BaseDelay:  time.Millisecond,
		MaxDelay:   10 * time.Millisecond,
		Multiplier: 2.0,
	}
}

func TestRetry_SucceedsFirstAttempt(t *testing.T) {
	result := Retry(context.Background(), fastRetryConfig(3), func() error {
		return nil
	})

	if result.LastError != nil {
		t.Errorf("Unexpected error: %v", result.LastError)
	}
	if result.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", result.Attempts)
	}
}

func TestRetry_SucceedsAfterFailures(t *testing.T) {
	calls := 0
	result := Retry(context.Background(), fastRetryConfig(5), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})

	if result.LastError != nil {
		t.Errorf("Unexpected error: %v", result.LastError)
	}
	if result.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestRetry_ExhaustsRetries(t *testing.T) {
	boom := errors.New("boom")
	result := Retry(context.Background(), fastRetryConfig(2), func() error {
		return boom
	})

	if !errors.Is(result.LastError, ErrMaxRetriesExceeded) {
		t.Errorf("Expected ErrMaxRetriesExceeded, got %v", result.LastError)
	}
	if !errors.Is(result.LastError, boom) {
		t.Error("Original error should be joined into the result")
	}
	if result.Attempts != 3 { // initial attempt + 2 retries
		t.Errorf("Attempts = %d, want 3", result.Attempts)
	}
}

func TestRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := &RetryConfig{MaxRetries: -1, BaseDelay: time.Hour}
	result := Retry(ctx, cfg, func() error {
		return errors.New("never succeeds")
	})

	if !errors.Is(result.LastError, ErrContextCanceled) {
		t.Errorf("Expected ErrContextCanceled, got %v", result.LastError)
	}
}

func TestRetryWithValue_ReturnsValue(t *testing.T) {
	val, result := RetryWithValue(context.Background(), fastRetryConfig(3), func() (int, error) {
		return 42, nil
	})

	if result.LastError != nil {
		t.Fatalf("Unexpected error: %v", result.LastError)
	}
	if val != 42 {
		t.Errorf("Value = %d, want 42", val)
	}
}

func TestRetry_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	cfg := fastRetryConfig(5)
	cfg.RetryIf = DefaultRetryIf()

	result := Retry(context.Background(), cfg, func() error {
		calls++
		return MarkNonRetryable(errors.New("user rejected"))
	})

	if calls != 1 {
		t.Errorf("Non-retryable error was retried %d times", calls)
	}
	if !IsNonRetryable(result.LastError) {
		t.Error("Result should carry the non-retryable error")
	}
}
