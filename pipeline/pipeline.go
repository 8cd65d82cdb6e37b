// Package pipeline wires chunking, orchestration, and aggregation into a
// single Analyze entry point.
//
// Usage:
//
//	p, err := pipeline.New(ctx, cfg)
//	result, err := p.Analyze(ctx, analysis.Document{Title: "...", Text: text})
//	// result.Partial reports whether any chunk failed.
//
// Provider failure never fails Analyze: the worst case is an empty result
// with Partial=true and every chunk listed in FailedChunks.
package pipeline

import (
	"context"
	"fmt"

	"github.com/AmzurATG/ATG-Initiatives-sub007/aggregate"
	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
	"github.com/AmzurATG/ATG-Initiatives-sub007/chunker"
	"github.com/AmzurATG/ATG-Initiatives-sub007/history"
	"github.com/AmzurATG/ATG-Initiatives-sub007/orchestrator"
	"github.com/AmzurATG/ATG-Initiatives-sub007/provider"
)

// Pipeline is the content-analysis engine.
type Pipeline struct {
	cfg     Config
	chunker *chunker.Chunker
	orch    *orchestrator.Orchestrator
	agg     *aggregate.Aggregator
	history *history.Store
}

// Option configures a Pipeline beyond its Config.
type Option func(*Pipeline)

// WithProviders injects pre-built provider clients in fallback order,
// bypassing Config.Providers (used by callers that construct clients
// themselves, and by tests). Settings are applied positionally from
// Config.Providers when present.
func WithProviders(clients ...provider.Client) Option {
	return func(p *Pipeline) {
		for i, c := range clients {
			var settings orchestrator.ProviderSettings
			if i < len(p.cfg.Providers) {
				settings = p.cfg.Providers[i].Resilience
			}
			p.orch.AddProvider(c, settings)
		}
	}
}

// WithHistory records every completed analysis to the given store.
func WithHistory(store *history.Store) Option {
	return func(p *Pipeline) { p.history = store }
}

// New builds a Pipeline from config. ctx is used for provider client
// construction (the Gemini SDK dials during setup). Providers declared in
// cfg.Providers are built here unless WithProviders overrides them.
func New(ctx context.Context, cfg Config, opts ...Option) (*Pipeline, error) {
	cfg.defaults()

	orchCfg := cfg.Orchestrator
	if orchCfg.Logger == nil {
		orchCfg.Logger = cfg.Logger
	}

	p := &Pipeline{
		cfg:     cfg,
		chunker: chunker.New(cfg.Chunker),
		orch:    orchestrator.New(orchCfg),
		agg:     aggregate.New(cfg.Aggregate),
	}

	injected := false
	for _, o := range opts {
		o(p)
	}
	if len(p.orch.Providers()) > 0 {
		injected = true
	}

	if !injected {
		for _, pc := range cfg.Providers {
			client, err := buildProvider(ctx, pc)
			if err != nil {
				return nil, err
			}
			p.orch.AddProvider(client, pc.Resilience)
		}
	}

	if len(p.orch.Providers()) == 0 {
		return nil, fmt.Errorf("pipeline: no providers configured")
	}

	return p, nil
}

func buildProvider(ctx context.Context, pc ProviderConfig) (provider.Client, error) {
	switch pc.Type {
	case "openai", "":
		return provider.NewOpenAI(pc.Name, provider.OpenAIConfig{
			Endpoint: pc.Endpoint,
			Model:    pc.Model,
			APIKey:   pc.APIKey,
			Timeout:  pc.Timeout,
		}), nil
	case "gemini":
		return provider.NewGemini(ctx, pc.Name, provider.GeminiConfig{
			Model:  pc.Model,
			APIKey: pc.APIKey,
		})
	default:
		return nil, fmt.Errorf("pipeline: unknown provider type %q", pc.Type)
	}
}

// Analyze runs the full pipeline on one document: normalize, detect
// sections, chunk, analyze concurrently, aggregate. Only an empty document
// is an error; provider trouble surfaces as a partial (possibly empty)
// result instead.
func (p *Pipeline) Analyze(ctx context.Context, doc analysis.Document) (analysis.ContentAnalysis, error) {
	text := Normalize(doc.Text)
	if text == "" {
		return analysis.ContentAnalysis{}, fmt.Errorf("pipeline: document has no text")
	}

	if p.cfg.Deadline > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.Deadline)
		defer cancel()
	}

	sections, body := DetectSections(text)
	chunks := p.chunker.Chunk(body, sections)

	p.cfg.Logger.DebugContext(ctx, "document chunked",
		"url", doc.URL,
		"text_len", len(text),
		"sections", len(sections),
		"chunks", len(chunks))

	outcomes := p.orch.AnalyzeChunks(ctx, chunks, provider.PromptContext{
		DocumentTitle: doc.Title,
		DocumentURL:   doc.URL,
		Language:      doc.Language,
	})

	result := p.agg.Aggregate(outcomes)

	p.cfg.Logger.InfoContext(ctx, "document analyzed",
		"url", doc.URL,
		"chunks", len(chunks),
		"failed_chunks", len(result.FailedChunks),
		"partial", result.Partial)

	if p.history != nil {
		// History must not inherit an exhausted deadline.
		p.history.Record(context.WithoutCancel(ctx), doc, result)
	}

	return result, nil
}
