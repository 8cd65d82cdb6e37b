package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
)

// BreakerState represents the circuit breaker state.
type BreakerState int

const (
	BreakerClosed   BreakerState = iota // normal operation, calls pass through
	BreakerOpen                         // calls rejected immediately
	BreakerHalfOpen                     // one probe call allowed to test recovery
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// CircuitBreaker implements the circuit breaker pattern for one provider.
// Thread-safe: all state transitions happen under a single mutex, and the
// breaker instance is the only state shared across concurrent chunk calls
// to the same provider.
type CircuitBreaker struct {
	mu          sync.Mutex
	state       BreakerState
	failures    int // consecutive failures while closed
	threshold   int
	recovery    time.Duration
	lastFailure time.Time
	probing     bool             // a half-open trial call is in flight
	now         func() time.Time // injectable clock for testing
}

// BreakerOption configures a CircuitBreaker.
type BreakerOption func(*CircuitBreaker)

// WithBreakerThreshold sets the consecutive-failure count that trips the
// breaker open.
func WithBreakerThreshold(n int) BreakerOption {
	return func(cb *CircuitBreaker) { cb.threshold = n }
}

// WithBreakerRecoveryTimeout sets how long the breaker stays open before
// allowing a half-open probe.
func WithBreakerRecoveryTimeout(d time.Duration) BreakerOption {
	return func(cb *CircuitBreaker) { cb.recovery = d }
}

// WithBreakerClock sets a custom clock function (for testing).
func WithBreakerClock(fn func() time.Time) BreakerOption {
	return func(cb *CircuitBreaker) { cb.now = fn }
}

// NewCircuitBreaker creates a breaker with sensible defaults:
// 5 consecutive failures to open, 30s recovery timeout.
func NewCircuitBreaker(opts ...BreakerOption) *CircuitBreaker {
	cb := &CircuitBreaker{
		state:     BreakerClosed,
		threshold: 5,
		recovery:  30 * time.Second,
		now:       time.Now,
	}
	for _, o := range opts {
		o(cb)
	}
	return cb
}

// State returns the current breaker state.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeTransition()
	return cb.state
}

// Allow checks whether a call may proceed. In the open state calls are
// rejected until the recovery timeout has elapsed; in the half-open state
// exactly one probe is admitted at a time.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.maybeTransition()
	switch cb.state {
	case BreakerOpen:
		return false
	case BreakerHalfOpen:
		if cb.probing {
			return false
		}
		cb.probing = true
		return true
	default:
		return true
	}
}

// RecordSuccess records a successful call. A half-open probe success closes
// the breaker and clears the failure count.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	switch cb.state {
	case BreakerHalfOpen:
		cb.state = BreakerClosed
		cb.failures = 0
		cb.probing = false
	case BreakerClosed:
		cb.failures = 0
	}
}

// RecordFailure records a failed call. Reaching the threshold while closed
// opens the breaker; any half-open probe failure reopens it and refreshes
// the recovery window.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.lastFailure = cb.now()
	switch cb.state {
	case BreakerClosed:
		cb.failures++
		if cb.failures >= cb.threshold {
			cb.state = BreakerOpen
		}
	case BreakerHalfOpen:
		cb.state = BreakerOpen
		cb.probing = false
	}
}

// Reset forces the breaker back to the closed state.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = BreakerClosed
	cb.failures = 0
	cb.probing = false
}

// maybeTransition moves an open breaker to half-open once the recovery
// timeout has elapsed. Must be called with mu held.
func (cb *CircuitBreaker) maybeTransition() {
	if cb.state == BreakerOpen && cb.now().Sub(cb.lastFailure) > cb.recovery {
		cb.state = BreakerHalfOpen
		cb.probing = false
	}
}

// WithCircuitBreaker returns a Middleware that wraps calls with a circuit
// breaker. When the breaker rejects the call, the handler is not invoked and
// the caller gets *ErrCircuitOpen.
func WithCircuitBreaker(cb *CircuitBreaker, provider string) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, chunk analysis.TextChunk) (analysis.ChunkAnalysis, error) {
			if !cb.Allow() {
				return analysis.ChunkAnalysis{}, &ErrCircuitOpen{Provider: provider}
			}
			// A panicking call must still count as a failure, or a
			// half-open probe that panics would leave the breaker
			// rejecting everything forever.
			defer func() {
				if r := recover(); r != nil {
					cb.RecordFailure()
					panic(r)
				}
			}()
			res, err := next(ctx, chunk)
			if err != nil {
				cb.RecordFailure()
			} else {
				cb.RecordSuccess()
			}
			return res, err
		}
	}
}
