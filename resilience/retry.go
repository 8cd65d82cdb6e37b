package resilience

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
)

// RetryPolicy retries transient failures with exponential backoff plus
// jitter. Which errors count as transient is decided by the injected
// Retryable classifier; permanent errors propagate immediately.
type RetryPolicy struct {
	// MaxRetries is the number of retry attempts after the initial call
	// (0 = no retry).
	MaxRetries int

	// BackoffBase is the wait before the first retry; attempt n waits
	// base * 2^(n-1), plus jitter in [0, 0.1*backoff].
	BackoffBase time.Duration

	// Retryable reports whether an error is worth retrying. Nil means
	// every error is treated as transient.
	Retryable func(error) bool

	// Injectable hooks for testing.
	Sleep     func(ctx context.Context, d time.Duration) error
	RandFloat func() float64
}

// NewRetryPolicy creates a policy with the given attempt budget and base
// backoff, classifying errors with retryable (nil = retry everything).
func NewRetryPolicy(maxRetries int, backoffBase time.Duration, retryable func(error) bool) *RetryPolicy {
	return &RetryPolicy{
		MaxRetries:  maxRetries,
		BackoffBase: backoffBase,
		Retryable:   retryable,
		Sleep:       sleepCtx,
		RandFloat:   rand.Float64,
	}
}

// Backoff returns the wait before retry attempt n (1-based), jitter included.
func (p *RetryPolicy) Backoff(attempt int) time.Duration {
	base := p.BackoffBase
	if base <= 0 {
		base = 500 * time.Millisecond
	}
	backoff := base * (1 << uint(attempt-1))
	jitter := time.Duration(p.randFloat() * 0.1 * float64(backoff))
	return backoff + jitter
}

func (p *RetryPolicy) randFloat() float64 {
	if p.RandFloat != nil {
		return p.RandFloat()
	}
	return rand.Float64()
}

func (p *RetryPolicy) sleep(ctx context.Context, d time.Duration) error {
	if p.Sleep != nil {
		return p.Sleep(ctx, d)
	}
	return sleepCtx(ctx, d)
}

// WithRetry returns a Middleware that retries transient failures per the
// policy. It respects context cancellation between attempts and never
// retries *ErrCircuitOpen: the breaker said no, asking again won't help.
func WithRetry(p *RetryPolicy, logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		if p == nil || p.MaxRetries <= 0 {
			return next
		}
		return func(ctx context.Context, chunk analysis.TextChunk) (analysis.ChunkAnalysis, error) {
			var lastErr error
			for attempt := 0; attempt <= p.MaxRetries; attempt++ {
				res, err := next(ctx, chunk)
				if err == nil {
					return res, nil
				}
				lastErr = err

				if ctx.Err() != nil {
					return analysis.ChunkAnalysis{}, lastErr
				}

				var open *ErrCircuitOpen
				if errors.As(err, &open) {
					return analysis.ChunkAnalysis{}, err
				}

				if p.Retryable != nil && !p.Retryable(err) {
					return analysis.ChunkAnalysis{}, err
				}

				if attempt < p.MaxRetries {
					wait := p.Backoff(attempt + 1)
					if logger != nil {
						logger.WarnContext(ctx, "retrying provider call",
							"chunk_index", chunk.Index,
							"attempt", attempt+1,
							"max_retries", p.MaxRetries,
							"backoff_ms", wait.Milliseconds(),
							"error", err)
					}
					if serr := p.sleep(ctx, wait); serr != nil {
						return analysis.ChunkAnalysis{}, lastErr
					}
				}
			}
			return analysis.ChunkAnalysis{}, lastErr
		}
	}
}
