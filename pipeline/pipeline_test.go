package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
	"github.com/AmzurATG/ATG-Initiatives-sub007/chunker"
	"github.com/AmzurATG/ATG-Initiatives-sub007/provider"
)

type scriptedClient struct {
	name string
	fn   func(chunk analysis.TextChunk, pc provider.PromptContext) (analysis.ChunkAnalysis, error)
}

var _ provider.Client = (*scriptedClient)(nil)

func (s *scriptedClient) Name() string { return s.name }

func (s *scriptedClient) Analyze(ctx context.Context, chunk analysis.TextChunk, pc provider.PromptContext) (analysis.ChunkAnalysis, error) {
	return s.fn(chunk, pc)
}

func testConfig() Config {
	return Config{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestPipelineEndToEnd(t *testing.T) {
	// WHAT: a multi-section document flows through normalize, section
	// detection, chunking, analysis, and aggregation into one result.
	var seenHeadings []string
	client := &scriptedClient{name: "stub", fn: func(chunk analysis.TextChunk, pc provider.PromptContext) (analysis.ChunkAnalysis, error) {
		seenHeadings = append(seenHeadings, chunk.SectionHeading)
		return analysis.ChunkAnalysis{
			Summary:   fmt.Sprintf("Chunk %d summarized.", chunk.Index),
			Topics:    []string{"testing"},
			Sentiment: analysis.Sentiment{Label: analysis.SentimentPositive, Score: 0.8},
			Metadata:  analysis.ChunkMetadata{WordCount: 10},
		}, nil
	}}

	cfg := testConfig()
	cfg.Chunker = chunker.Options{MaxChunkSize: 200}
	cfg.Orchestrator.Workers = 1

	p, err := New(context.Background(), cfg, WithProviders(client))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	text := "# Introduction\n" + strings.Repeat("The opening sentence runs here. ", 10) +
		"\n# Conclusion\n" + strings.Repeat("A closing sentence lands here. ", 10)

	res, err := p.Analyze(context.Background(), analysis.Document{Title: "Doc", Text: text})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if res.Partial {
		t.Errorf("unexpected partial result: failed chunks %v", res.FailedChunks)
	}
	if !strings.Contains(res.Summary, "Chunk 0 summarized.") {
		t.Errorf("summary = %q", res.Summary)
	}
	if len(res.Topics) != 1 || res.Topics[0] != "testing" {
		t.Errorf("topics = %v", res.Topics)
	}
	if res.Sentiment.Label != analysis.SentimentPositive {
		t.Errorf("sentiment = %+v", res.Sentiment)
	}

	var intro, conclusion bool
	for _, h := range seenHeadings {
		if strings.HasPrefix(h, "Introduction") {
			intro = true
		}
		if strings.HasPrefix(h, "Conclusion") {
			conclusion = true
		}
	}
	if !intro || !conclusion {
		t.Errorf("section headings not carried to provider calls: %v", seenHeadings)
	}
}

func TestPipelineEmptyDocument(t *testing.T) {
	p, err := New(context.Background(), testConfig(), WithProviders(&scriptedClient{name: "stub", fn: nil}))
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := p.Analyze(context.Background(), analysis.Document{Text: "   \n  "}); err == nil {
		t.Fatal("expected error for empty document")
	}
}

func TestPipelineNoProviders(t *testing.T) {
	if _, err := New(context.Background(), testConfig()); err == nil {
		t.Fatal("expected error when no providers are configured")
	}
}

func TestPipelineProviderFailureYieldsPartial(t *testing.T) {
	// WHAT: a document whose every chunk fails still returns a structurally
	// valid result, not an error.
	client := &scriptedClient{name: "down", fn: func(chunk analysis.TextChunk, pc provider.PromptContext) (analysis.ChunkAnalysis, error) {
		return analysis.ChunkAnalysis{}, &provider.ErrInvalidRequest{Provider: "down", Status: 401}
	}}

	p, err := New(context.Background(), testConfig(), WithProviders(client))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	res, err := p.Analyze(context.Background(), analysis.Document{Text: "Some real document text."})
	if err != nil {
		t.Fatalf("Analyze should not fail on provider errors: %v", err)
	}
	if !res.Partial {
		t.Error("expected partial result")
	}
	if len(res.FailedChunks) != 1 {
		t.Errorf("failed chunks = %v", res.FailedChunks)
	}
}

func TestPipelineDeadline(t *testing.T) {
	client := &scriptedClient{name: "slow", fn: func(chunk analysis.TextChunk, pc provider.PromptContext) (analysis.ChunkAnalysis, error) {
		time.Sleep(time.Second)
		return analysis.ChunkAnalysis{Summary: "late"}, nil
	}}

	cfg := testConfig()
	cfg.Deadline = 50 * time.Millisecond

	p, err := New(context.Background(), cfg, WithProviders(client))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	res, err := p.Analyze(context.Background(), analysis.Document{Text: "Deadline test text."})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if time.Since(start) > 500*time.Millisecond {
		t.Error("Analyze blocked past its deadline")
	}
	if !res.Partial {
		t.Error("expected partial result after deadline expiry")
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	raw := `
chunker:
  max_chunk_size: 1500
aggregate:
  topic_cap: 5
deadline: 90s
providers:
  - name: primary
    type: openai
    endpoint: https://api.example.com
    model: gpt-4o-mini
    resilience:
      calls_per_second: 2
      failure_threshold: 4
      max_retries: 3
  - name: backup
    type: gemini
    model: gemini-2.0-flash
`
	if err := os.WriteFile(path, []byte(raw), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Chunker.MaxChunkSize != 1500 {
		t.Errorf("max chunk size = %d", cfg.Chunker.MaxChunkSize)
	}
	if cfg.Aggregate.TopicCap != 5 {
		t.Errorf("topic cap = %d", cfg.Aggregate.TopicCap)
	}
	if cfg.Deadline != 90*time.Second {
		t.Errorf("deadline = %v", cfg.Deadline)
	}
	if len(cfg.Providers) != 2 {
		t.Fatalf("providers = %d", len(cfg.Providers))
	}
	if cfg.Providers[0].Resilience.FailureThreshold != 4 {
		t.Errorf("threshold = %d", cfg.Providers[0].Resilience.FailureThreshold)
	}
	if cfg.Providers[1].Type != "gemini" {
		t.Errorf("second provider type = %q", cfg.Providers[1].Type)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/nonexistent/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
