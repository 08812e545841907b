package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fastRetryConfig keeps test runtime negligible.
func fastRetryConfig(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
	}
}

func TestDoVal_SucceedsFirstTry(t *testing.T) {
	calls := 0
	val, outcome, err := DoVal(context.Background(), fastRetryConfig(5), func(ctx context.Context) (int, error) {
		calls++
		return 7, nil
	})

	require.NoError(t, err)
	assert.Equal(t, Succeeded, outcome)
	assert.Equal(t, 7, val)
	assert.Equal(t, 1, calls)
}

func TestDoVal_RetriesTransientThenSucceeds(t *testing.T) {
	calls := 0
	val, outcome, err := DoVal(context.Background(), fastRetryConfig(5), func(ctx context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(eris.New("rate limited"), 429)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, Succeeded, outcome)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
}

func TestDoVal_ExhaustsRetries(t *testing.T) {
	calls := 0
	_, outcome, err := DoVal(context.Background(), fastRetryConfig(4), func(ctx context.Context) (int, error) {
		calls++
		return 0, NewTransientError(eris.New("overloaded"), 529)
	})

	assert.Error(t, err)
	assert.Equal(t, Exhausted, outcome)
	assert.Equal(t, 4, calls)
}

func TestDoVal_NonRetryableStopsImmediately(t *testing.T) {
	calls := 0
	_, outcome, err := DoVal(context.Background(), fastRetryConfig(5), func(ctx context.Context) (int, error) {
		calls++
		return 0, eris.New("invalid request")
	})

	assert.Error(t, err)
	assert.Equal(t, NonRetryable, outcome)
	assert.Equal(t, 1, calls)
}

func TestDoVal_HonorsServerRetryAfter(t *testing.T) {
	var delays []time.Duration
	cfg := fastRetryConfig(3)
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		delays = append(delays, delay)
	}

	calls := 0
	_, outcome, _ := DoVal(context.Background(), cfg, func(ctx context.Context) (int, error) {
		calls++
		return 0, NewRateLimitError(eris.New("rate limited"), 3*time.Millisecond)
	})

	assert.Equal(t, Exhausted, outcome)
	require.Len(t, delays, 2)
	for _, d := range delays {
		assert.Equal(t, 3*time.Millisecond, d)
	}
}

func TestDoVal_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	_, outcome, err := DoVal(ctx, fastRetryConfig(5), func(ctx context.Context) (int, error) {
		calls++
		return 0, NewTransientError(eris.New("transient"), 503)
	})

	assert.Error(t, err)
	assert.Equal(t, NonRetryable, outcome)
	assert.Equal(t, 1, calls)
}

func TestComputeBackoff_DoublesAndCaps(t *testing.T) {
	cfg := RetryConfig{InitialBackoff: 2 * time.Second, MaxBackoff: 10 * time.Second}
	cfg = applyDefaults(cfg)

	assert.Equal(t, 2*time.Second, computeBackoff(0, cfg))
	assert.Equal(t, 4*time.Second, computeBackoff(1, cfg))
	assert.Equal(t, 8*time.Second, computeBackoff(2, cfg))
	assert.Equal(t, 10*time.Second, computeBackoff(3, cfg))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("validation failed")))
	assert.True(t, IsTransient(NewTransientError(eris.New("boom"), 503)))
	assert.True(t, IsTransient(eris.New("read tcp: i/o timeout")))
}

func TestIsRateLimited(t *testing.T) {
	assert.True(t, IsRateLimited(NewRateLimitError(eris.New("slow down"), 0)))
	assert.False(t, IsRateLimited(NewTransientError(eris.New("boom"), 503)))
	assert.False(t, IsRateLimited(eris.New("other")))
}

func TestBreaker_OpensAfterThreshold(t *testing.T) {
	b := NewBreaker(2, time.Hour)
	boom := NewTransientError(eris.New("boom"), 503)

	for i := 0; i < 2; i++ {
		err := b.Execute(context.Background(), func(ctx context.Context) error { return boom })
		assert.Error(t, err)
	}

	err := b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestBreaker_ProbesAfterReset(t *testing.T) {
	b := NewBreaker(1, time.Minute)
	now := time.Now()
	b.nowFunc = func() time.Time { return now }

	_ = b.Execute(context.Background(), func(ctx context.Context) error {
		return NewTransientError(eris.New("boom"), 503)
	})
	assert.True(t, b.Open())

	// Advance past the reset timeout; a successful probe closes the breaker.
	now = now.Add(2 * time.Minute)
	err := b.Execute(context.Background(), func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
	assert.False(t, b.Open())
}

func TestBreaker_NonTransientDoesNotTrip(t *testing.T) {
	b := NewBreaker(1, time.Hour)

	_ = b.Execute(context.Background(), func(ctx context.Context) error {
		return eris.New("bad request")
	})

	assert.False(t, b.Open())
}
