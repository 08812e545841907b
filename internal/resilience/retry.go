package resilience

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
)

// Outcome classifies how a retried call ended. Callers that downgrade
// failures to per-item skips still need to know whether retries were
// exhausted or the error was never retryable.
type Outcome int

const (
	// Succeeded means the call eventually returned without error.
	Succeeded Outcome = iota
	// Exhausted means every attempt failed with a retryable error.
	Exhausted
	// NonRetryable means the call failed with an error that retrying
	// cannot fix (or the context was cancelled).
	NonRetryable
)

func (o Outcome) String() string {
	switch o {
	case Succeeded:
		return "succeeded"
	case Exhausted:
		return "exhausted"
	case NonRetryable:
		return "non-retryable"
	default:
		return "unknown"
	}
}

// RetryConfig controls retry behavior with exponential backoff.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first try.
	// Default: 5.
	MaxAttempts int

	// InitialBackoff is the delay before the first retry, doubled after each
	// attempt. Default: 2s.
	InitialBackoff time.Duration

	// MaxBackoff caps the computed delay. Default: 60s. A server-provided
	// Retry-After always wins over the computed delay, cap included.
	MaxBackoff time.Duration

	// ShouldRetry overrides the default transient-error check when set.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep with the attempt number,
	// the error, and the delay about to be applied.
	OnRetry func(attempt int, err error, delay time.Duration)
}

// DefaultRetryConfig matches the extraction contract: up to 5 attempts,
// exponential backoff starting at 2 seconds, doubling each attempt.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: 2 * time.Second,
		MaxBackoff:     60 * time.Second,
	}
}

// DoVal executes fn with bounded retries, returning the value, the outcome,
// and the last error. Retries only errors deemed transient; a server-provided
// retry delay in the error chain is honored in preference to the computed
// backoff. Context cancellation stops retries immediately.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, Outcome, error) {
	cfg = applyDefaults(cfg)

	shouldRetry := cfg.ShouldRetry
	if shouldRetry == nil {
		shouldRetry = IsTransient
	}

	var zero T
	var lastErr error
	for attempt := 0; attempt < cfg.MaxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, Succeeded, nil
		}
		lastErr = err

		if ctx.Err() != nil {
			return zero, NonRetryable, lastErr
		}
		if !shouldRetry(lastErr) {
			return zero, NonRetryable, lastErr
		}
		if attempt >= cfg.MaxAttempts-1 {
			break
		}

		delay := computeBackoff(attempt, cfg)
		if serverDelay, ok := RetryAfterOf(lastErr); ok {
			delay = serverDelay
		}

		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt+1, lastErr, delay)
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, NonRetryable, lastErr
		case <-timer.C:
		}
	}

	return zero, Exhausted, lastErr
}

// Do is DoVal for calls without a return value.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) (Outcome, error) {
	_, outcome, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return outcome, err
}

func applyDefaults(cfg RetryConfig) RetryConfig {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = 5
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = 2 * time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 60 * time.Second
	}
	return cfg
}

func computeBackoff(attempt int, cfg RetryConfig) time.Duration {
	delay := float64(cfg.InitialBackoff) * math.Pow(2, float64(attempt))
	if delay > float64(cfg.MaxBackoff) {
		delay = float64(cfg.MaxBackoff)
	}
	return time.Duration(delay)
}

// RetryLogger returns an OnRetry callback that logs each retry attempt.
func RetryLogger(service, operation string) func(int, error, time.Duration) {
	return func(attempt int, err error, delay time.Duration) {
		zap.L().Warn("retrying operation",
			zap.String("service", service),
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
}
