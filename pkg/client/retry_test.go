package client

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// fastPolicy keeps backoff in the millisecond range so tests stay quick.
func fastPolicy(attempts int) RetryPolicy {
	return func(ErrorClass) RetryConfig {
		return RetryConfig{
			MaxAttempts:       attempts,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        5 * time.Millisecond,
			BackoffMultiplier: 2.0,
		}
	}
}

func serverErr() error {
	return &UpstreamError{StatusCode: 503, ErrorClass: ErrorClassServer, Message: "unavailable"}
}

func TestDefaultRetryConfig(t *testing.T) {
	config := DefaultRetryConfig()

	if config.MaxAttempts != 3 {
		t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
	}
	if config.InitialBackoff != 250*time.Millisecond {
		t.Errorf("InitialBackoff = %v, want 250ms", config.InitialBackoff)
	}
	if config.BackoffMultiplier != 2.0 {
		t.Errorf("BackoffMultiplier = %v, want 2.0", config.BackoffMultiplier)
	}
}

func TestRetryConfigForErrorClass(t *testing.T) {
	tests := []struct {
		name            string
		errorClass      ErrorClass
		expectedInitial time.Duration
		expectedMax     time.Duration
	}{
		{name: "server error config", errorClass: ErrorClassServer, expectedInitial: 250 * time.Millisecond, expectedMax: 2 * time.Second},
		{name: "rate limit config", errorClass: ErrorClassRateLimit, expectedInitial: time.Second, expectedMax: 10 * time.Second},
		{name: "network error config", errorClass: ErrorClassNetwork, expectedInitial: 500 * time.Millisecond, expectedMax: 5 * time.Second},
		{name: "unknown error class uses default", errorClass: "", expectedInitial: 250 * time.Millisecond, expectedMax: 5 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := RetryConfigForErrorClass(tt.errorClass)
			if config.InitialBackoff != tt.expectedInitial {
				t.Errorf("InitialBackoff = %v, want %v", config.InitialBackoff, tt.expectedInitial)
			}
			if config.MaxBackoff != tt.expectedMax {
				t.Errorf("MaxBackoff = %v, want %v", config.MaxBackoff, tt.expectedMax)
			}
			if config.MaxAttempts != 3 {
				t.Errorf("MaxAttempts = %d, want 3", config.MaxAttempts)
			}
		})
	}
}

func TestRetryWithBackoff_Success(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastPolicy(3), zerolog.Nop(), func() error {
		callCount++
		return nil
	})
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_SuccessAfterRetry(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastPolicy(3), zerolog.Nop(), func() error {
		callCount++
		if callCount < 3 {
			return serverErr()
		}
		return nil
	})
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_Exhausted(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastPolicy(3), zerolog.Nop(), func() error {
		callCount++
		return serverErr()
	})
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Expected ErrRetryExhausted, got %v", err)
	}
	var upstream *UpstreamError
	if !errors.As(err, &upstream) || upstream.StatusCode != 503 {
		t.Errorf("Expected wrapped UpstreamError, got %v", err)
	}
	if callCount != 3 {
		t.Errorf("Expected 3 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_ClientErrorNotRetried(t *testing.T) {
	callCount := 0
	clientErr := &UpstreamError{StatusCode: 404, ErrorClass: ErrorClassClient}
	err := retryWithBackoff(context.Background(), fastPolicy(3), zerolog.Nop(), func() error {
		callCount++
		return clientErr
	})
	if !errors.Is(err, clientErr) {
		t.Errorf("Expected the client error back, got %v", err)
	}
	if callCount != 1 {
		t.Errorf("Expected 1 call, got %d", callCount)
	}
}

func TestRetryWithBackoff_PlainErrorsRetryAsNetwork(t *testing.T) {
	callCount := 0
	err := retryWithBackoff(context.Background(), fastPolicy(2), zerolog.Nop(), func() error {
		callCount++
		return errors.New("connection refused")
	})
	if !errors.Is(err, ErrRetryExhausted) {
		t.Fatalf("Expected ErrRetryExhausted, got %v", err)
	}
	if callCount != 2 {
		t.Errorf("Expected 2 calls, got %d", callCount)
	}
}

func TestRetryWithBackoff_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	slow := func(ErrorClass) RetryConfig {
		return RetryConfig{MaxAttempts: 5, InitialBackoff: time.Minute, MaxBackoff: time.Minute, BackoffMultiplier: 1}
	}

	done := make(chan error, 1)
	go func() {
		done <- retryWithBackoff(ctx, slow, zerolog.Nop(), serverErr)
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrContextCancelled) {
			t.Errorf("Expected ErrContextCancelled, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("retry did not observe cancellation")
	}
}

func TestRetryWithBackoff_BackoffCapped(t *testing.T) {
	policy := func(ErrorClass) RetryConfig {
		return RetryConfig{MaxAttempts: 4, InitialBackoff: 2 * time.Millisecond, MaxBackoff: 3 * time.Millisecond, BackoffMultiplier: 10}
	}
	start := time.Now()
	_ = retryWithBackoff(context.Background(), policy, zerolog.Nop(), serverErr)

	// three waits of at most 3ms * 1.2 each
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("backoff not capped, took %v", elapsed)
	}
}
