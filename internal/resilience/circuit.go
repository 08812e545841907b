package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
)

// ErrCircuitOpen is returned when a call is rejected because the breaker is open.
var ErrCircuitOpen = eris.New("circuit breaker is open")

// Breaker is a minimal circuit breaker for a single upstream service. After
// FailureThreshold consecutive failures it rejects calls for ResetTimeout,
// then allows a probe through.
type Breaker struct {
	mu                  sync.Mutex
	failureThreshold    int
	resetTimeout        time.Duration
	consecutiveFailures int
	lastFailure         time.Time

	// nowFunc allows test injection of time.
	nowFunc func() time.Time
}

// NewBreaker creates a breaker. Threshold <= 0 defaults to 5, timeout <= 0
// defaults to 30s.
func NewBreaker(failureThreshold int, resetTimeout time.Duration) *Breaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	return &Breaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		nowFunc:          time.Now,
	}
}

// Execute runs fn unless the breaker is open. Only transient errors count
// toward the failure threshold; a non-transient failure passes through
// without tripping the breaker.
func (b *Breaker) Execute(ctx context.Context, fn func(ctx context.Context) error) error {
	if !b.allow() {
		return ErrCircuitOpen
	}
	err := fn(ctx)
	b.record(err)
	return err
}

// ExecuteVal is Execute preserving a return value.
func ExecuteVal[T any](ctx context.Context, b *Breaker, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	if !b.allow() {
		return zero, ErrCircuitOpen
	}
	val, err := fn(ctx)
	b.record(err)
	return val, err
}

// Open reports whether the breaker is currently rejecting calls.
func (b *Breaker) Open() bool {
	return !b.allow()
}

func (b *Breaker) allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.consecutiveFailures < b.failureThreshold {
		return true
	}
	// Open: allow a probe once the reset timeout has elapsed.
	return b.nowFunc().Sub(b.lastFailure) >= b.resetTimeout
}

func (b *Breaker) record(err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err == nil || !IsTransient(err) {
		b.consecutiveFailures = 0
		return
	}
	b.consecutiveFailures++
	b.lastFailure = b.nowFunc()
}
