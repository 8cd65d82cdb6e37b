package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
)

// RateLimiter enforces a minimum interval between call starts through the
// same limiter instance. It guarantees no two calls start closer together
// than 1/callsPerSecond; it does not order calls across limiter instances.
//
// Concurrent waiters reserve their slot under the mutex before sleeping, so
// the spacing guarantee holds under contention.
type RateLimiter struct {
	mu          sync.Mutex
	minInterval time.Duration
	lastCall    time.Time
	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
}

// LimiterOption configures a RateLimiter.
type LimiterOption func(*RateLimiter)

// WithLimiterClock sets a custom clock function (for testing).
func WithLimiterClock(fn func() time.Time) LimiterOption {
	return func(l *RateLimiter) { l.now = fn }
}

// WithLimiterSleep sets a custom sleep function (for testing).
func WithLimiterSleep(fn func(ctx context.Context, d time.Duration) error) LimiterOption {
	return func(l *RateLimiter) { l.sleep = fn }
}

// NewRateLimiter creates a limiter allowing callsPerSecond call starts per
// second. callsPerSecond <= 0 disables throttling.
func NewRateLimiter(callsPerSecond float64, opts ...LimiterOption) *RateLimiter {
	l := &RateLimiter{
		now:   time.Now,
		sleep: sleepCtx,
	}
	if callsPerSecond > 0 {
		l.minInterval = time.Duration(float64(time.Second) / callsPerSecond)
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Wait blocks until the limiter admits a new call start, then records it.
// Returns early with the context error if ctx is cancelled while waiting.
func (l *RateLimiter) Wait(ctx context.Context) error {
	if l == nil || l.minInterval <= 0 {
		return nil
	}

	l.mu.Lock()
	now := l.now()
	var wait time.Duration
	if l.lastCall.IsZero() {
		l.lastCall = now
	} else {
		next := l.lastCall.Add(l.minInterval)
		if next.After(now) {
			wait = next.Sub(now)
			// Reserve the slot before sleeping so concurrent waiters
			// queue behind it instead of racing for the same window.
			l.lastCall = next
		} else {
			l.lastCall = now
		}
	}
	l.mu.Unlock()

	if wait <= 0 {
		return nil
	}
	return l.sleep(ctx, wait)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// WithRateLimit returns a Middleware that delays each call start until the
// limiter admits it.
func WithRateLimit(l *RateLimiter) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, chunk analysis.TextChunk) (analysis.ChunkAnalysis, error) {
			if err := l.Wait(ctx); err != nil {
				return analysis.ChunkAnalysis{}, err
			}
			return next(ctx, chunk)
		}
	}
}
