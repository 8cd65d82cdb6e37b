// Package orchestrator fans chunks out to analysis providers through their
// resilience stacks and collects one outcome per chunk.
//
// Failures are contained at chunk granularity: a chunk that exhausts every
// provider becomes a Failed outcome, and its siblings are unaffected. The
// batch call returns when every chunk is resolved or the caller's deadline
// elapses, at which point unresolved chunks are marked Failed with a
// timeout; the call never blocks past its deadline.
package orchestrator

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
	"github.com/AmzurATG/ATG-Initiatives-sub007/provider"
	"github.com/AmzurATG/ATG-Initiatives-sub007/resilience"
)

// DefaultWorkers caps the worker pool when Config does not.
const DefaultWorkers = 8

// ProviderSettings tunes the resilience stack wrapped around one provider.
type ProviderSettings struct {
	// CallsPerSecond throttles call starts (0 = unthrottled).
	CallsPerSecond float64 `json:"calls_per_second" yaml:"calls_per_second"`

	// FailureThreshold is the consecutive-failure count that opens the
	// provider's circuit breaker. Default 5.
	FailureThreshold int `json:"failure_threshold" yaml:"failure_threshold"`

	// RecoveryTimeout is how long the breaker stays open. Default 30s.
	RecoveryTimeout time.Duration `json:"recovery_timeout" yaml:"recovery_timeout"`

	// MaxRetries bounds retries of transient failures. Default 2.
	MaxRetries int `json:"max_retries" yaml:"max_retries"`

	// BackoffBase is the first retry's wait, doubled per attempt. Default 500ms.
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base"`

	// CallTimeout bounds each individual attempt (0 = rely on the
	// client's own timeout).
	CallTimeout time.Duration `json:"call_timeout" yaml:"call_timeout"`
}

func (s *ProviderSettings) defaults() {
	if s.FailureThreshold <= 0 {
		s.FailureThreshold = 5
	}
	if s.RecoveryTimeout <= 0 {
		s.RecoveryTimeout = 30 * time.Second
	}
	if s.MaxRetries < 0 {
		s.MaxRetries = 0
	} else if s.MaxRetries == 0 {
		s.MaxRetries = 2
	}
	if s.BackoffBase <= 0 {
		s.BackoffBase = 500 * time.Millisecond
	}
}

// Config configures an Orchestrator.
type Config struct {
	// Workers bounds concurrent chunk analysis. 0 = min(8, len(chunks)).
	Workers int `json:"workers" yaml:"workers"`

	// CacheSize enables an expirable LRU of chunk results when > 0.
	CacheSize int `json:"cache_size" yaml:"cache_size"`

	// CacheTTL expires cached results (default 15m when the cache is on).
	CacheTTL time.Duration `json:"cache_ttl" yaml:"cache_ttl"`

	// Logger for per-chunk diagnostics. Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

// stack is one provider wrapped in its own resilience middleware. The
// breaker, limiter, and retry policy instances persist across batches; they
// are the only state shared between concurrent chunk calls to one provider.
type stack struct {
	client  provider.Client
	wrap    resilience.Middleware
	breaker *resilience.CircuitBreaker
}

// Orchestrator runs chunk analysis across an ordered provider list
// (primary first, then fallbacks).
type Orchestrator struct {
	stacks  []stack
	workers int
	cache   *expirable.LRU[string, analysis.ChunkAnalysis]
	logger  *slog.Logger
}

// New creates an Orchestrator. Register providers with AddProvider in
// fallback order before calling AnalyzeChunks.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var cache *expirable.LRU[string, analysis.ChunkAnalysis]
	if cfg.CacheSize > 0 {
		ttl := cfg.CacheTTL
		if ttl <= 0 {
			ttl = 15 * time.Minute
		}
		cache = expirable.NewLRU[string, analysis.ChunkAnalysis](cfg.CacheSize, nil, ttl)
	}

	return &Orchestrator{
		workers: cfg.Workers,
		cache:   cache,
		logger:  logger,
	}
}

// AddProvider appends a provider with its own resilience stack. The first
// registered provider is the primary; later ones are tried in order when
// earlier ones fail.
func (o *Orchestrator) AddProvider(client provider.Client, settings ProviderSettings) {
	settings.defaults()

	breaker := resilience.NewCircuitBreaker(
		resilience.WithBreakerThreshold(settings.FailureThreshold),
		resilience.WithBreakerRecoveryTimeout(settings.RecoveryTimeout),
	)
	limiter := resilience.NewRateLimiter(settings.CallsPerSecond)
	retry := resilience.NewRetryPolicy(settings.MaxRetries, settings.BackoffBase, provider.IsTransient)

	// Rate limiting throttles call starts; retries run inside the breaker
	// so one logical request counts once toward its state.
	wrap := resilience.Chain(
		resilience.Recovery(o.logger),
		resilience.WithRateLimit(limiter),
		resilience.WithCircuitBreaker(breaker, client.Name()),
		resilience.WithRetry(retry, o.logger),
		resilience.WithTimeout(settings.CallTimeout),
	)

	o.stacks = append(o.stacks, stack{client: client, wrap: wrap, breaker: breaker})
}

// Providers returns the registered provider names in fallback order.
func (o *Orchestrator) Providers() []string {
	names := make([]string, len(o.stacks))
	for i, s := range o.stacks {
		names[i] = s.client.Name()
	}
	return names
}

// AnalyzeChunks analyzes every chunk concurrently and returns one outcome
// per chunk, indexed by ChunkIndex. It never returns early on individual
// failures; it does return as soon as ctx's deadline expires, marking any
// still-unresolved chunk as Failed with a timeout.
func (o *Orchestrator) AnalyzeChunks(ctx context.Context, chunks []analysis.TextChunk, pc provider.PromptContext) []analysis.ChunkOutcome {
	if len(chunks) == 0 {
		return nil
	}

	workers := o.workers
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if workers > len(chunks) {
		workers = len(chunks)
	}

	// Each slot is published with a single pointer CAS so a late worker and
	// the deadline path below can never expose a half-written outcome.
	slots := make([]atomic.Pointer[analysis.ChunkOutcome], len(chunks))

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				out := o.analyzeOne(ctx, chunks[i], pc)
				slots[i].CompareAndSwap(nil, &out)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range chunks {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		// Deadline elapsed: every chunk without a published outcome is a
		// timeout. Workers that finish later lose the CompareAndSwap and
		// their results are discarded.
		for i := range chunks {
			out := analysis.ChunkOutcome{
				ChunkIndex: chunks[i].Index,
				Status:     analysis.OutcomeFailed,
				Err:        analysis.ErrKindTimeout,
			}
			slots[i].CompareAndSwap(nil, &out)
		}
	}

	outcomes := make([]analysis.ChunkOutcome, len(chunks))
	for i := range slots {
		outcomes[i] = *slots[i].Load()
	}
	return outcomes
}

// analyzeOne walks the provider list for a single chunk, trying each
// provider through its resilience stack until one succeeds.
func (o *Orchestrator) analyzeOne(ctx context.Context, chunk analysis.TextChunk, pc provider.PromptContext) analysis.ChunkOutcome {
	key := cacheKey(chunk)
	if o.cache != nil {
		if cached, ok := o.cache.Get(key); ok {
			res := cached
			return analysis.ChunkOutcome{
				ChunkIndex: chunk.Index,
				Status:     analysis.OutcomeSuccess,
				Analysis:   &res,
				Provider:   "cache",
			}
		}
	}

	var lastErr error
	for _, s := range o.stacks {
		if ctx.Err() != nil {
			break
		}

		client := s.client
		h := s.wrap(func(ctx context.Context, c analysis.TextChunk) (analysis.ChunkAnalysis, error) {
			return client.Analyze(ctx, c, pc)
		})

		res, err := h(ctx, chunk)
		if err == nil {
			if o.cache != nil {
				o.cache.Add(key, res)
			}
			return analysis.ChunkOutcome{
				ChunkIndex: chunk.Index,
				Status:     analysis.OutcomeSuccess,
				Analysis:   &res,
				Provider:   client.Name(),
			}
		}

		lastErr = err
		o.logger.WarnContext(ctx, "provider failed for chunk",
			"provider", client.Name(),
			"chunk_index", chunk.Index,
			"error_kind", string(provider.Kind(err)),
			"error", err)
	}

	kind := provider.Kind(lastErr)
	if lastErr == nil {
		// No providers registered, or the context expired before any try.
		kind = analysis.ErrKindService
	}
	if ctx.Err() != nil {
		kind = analysis.ErrKindTimeout
	}
	return analysis.ChunkOutcome{
		ChunkIndex: chunk.Index,
		Status:     analysis.OutcomeFailed,
		Err:        kind,
	}
}

// cacheKey is a provider-independent hash of the chunk content.
func cacheKey(chunk analysis.TextChunk) string {
	h := sha256.New()
	h.Write([]byte(chunk.SectionHeading))
	h.Write([]byte{0})
	h.Write([]byte(chunk.Text))
	return hex.EncodeToString(h.Sum(nil))
}
