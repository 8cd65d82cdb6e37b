// Package resilience wraps unreliable provider calls with rate limiting,
// circuit breaking, and retry with exponential backoff.
//
// The three primitives are independent and compose as middleware over a
// Handler. The canonical order for a provider stack is:
//
//	resilience.Chain(
//	    resilience.WithRateLimit(limiter),
//	    resilience.WithCircuitBreaker(breaker, "openai"),
//	    resilience.WithRetry(policy, logger),
//	)(providerCall)
//
// Rate limiting throttles attempt starts; retries happen inside the breaker's
// single logical call, so all retries of one logical request count as at most
// one success or failure toward the breaker.
package resilience

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
)

// Handler is a single provider call: one chunk in, one analysis out.
type Handler func(ctx context.Context, chunk analysis.TextChunk) (analysis.ChunkAnalysis, error)

// Middleware wraps a Handler, adding cross-cutting behaviour (throttling,
// breaking, retrying, recovery) without changing the signature.
type Middleware func(next Handler) Handler

// Chain composes middlewares left-to-right: the first middleware in the
// slice is the outermost wrapper (executed first on the call path).
func Chain(mws ...Middleware) Middleware {
	return func(next Handler) Handler {
		for i := len(mws) - 1; i >= 0; i-- {
			next = mws[i](next)
		}
		return next
	}
}

// WithTimeout returns a Middleware that enforces a maximum call duration.
func WithTimeout(d time.Duration) Middleware {
	return func(next Handler) Handler {
		if d <= 0 {
			return next
		}
		return func(ctx context.Context, chunk analysis.TextChunk) (analysis.ChunkAnalysis, error) {
			ctx, cancel := context.WithTimeout(ctx, d)
			defer cancel()
			return next(ctx, chunk)
		}
	}
}

// Recovery returns a Middleware that catches panics in downstream handlers
// and converts them into errors instead of crashing the process.
func Recovery(logger *slog.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, chunk analysis.TextChunk) (res analysis.ChunkAnalysis, err error) {
			defer func() {
				if r := recover(); r != nil {
					if logger != nil {
						logger.ErrorContext(ctx, "provider call panic recovered",
							"chunk_index", chunk.Index,
							"panic", r,
							"stack", string(debug.Stack()))
					}
					err = &ErrPanic{Value: r}
				}
			}()
			return next(ctx, chunk)
		}
	}
}
