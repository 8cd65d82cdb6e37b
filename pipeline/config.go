package pipeline

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AmzurATG/ATG-Initiatives-sub007/aggregate"
	"github.com/AmzurATG/ATG-Initiatives-sub007/chunker"
	"github.com/AmzurATG/ATG-Initiatives-sub007/orchestrator"
)

// ProviderConfig declares one analysis provider in fallback order.
type ProviderConfig struct {
	// Name identifies the provider in logs and outcomes. Defaults to Type.
	Name string `json:"name" yaml:"name"`

	// Type selects the client implementation: "openai" (any
	// chat-completions-compatible server) or "gemini".
	Type string `json:"type" yaml:"type"`

	// Endpoint is the server base URL (openai type only).
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Model is the model name sent with each request.
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates the provider. The CLI also accepts it from the
	// environment so keys stay out of config files.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Timeout per HTTP request (openai type only).
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Resilience tunes the rate limiter, breaker, and retry policy wrapped
	// around this provider.
	Resilience orchestrator.ProviderSettings `json:"resilience" yaml:"resilience"`
}

// Config wires the whole pipeline.
type Config struct {
	// Chunker bounds analysis units.
	Chunker chunker.Options `json:"chunker" yaml:"chunker"`

	// Aggregate caps the merged output.
	Aggregate aggregate.Options `json:"aggregate" yaml:"aggregate"`

	// Orchestrator sets worker-pool size and the result cache.
	Orchestrator orchestrator.Config `json:"orchestrator" yaml:"orchestrator"`

	// Providers in fallback order: primary first.
	Providers []ProviderConfig `json:"providers" yaml:"providers"`

	// Deadline bounds one whole Analyze call (0 = caller's context only).
	Deadline time.Duration `json:"deadline" yaml:"deadline"`

	// Logger for the pipeline and its components. Defaults to slog.Default().
	Logger *slog.Logger `json:"-" yaml:"-"`
}

func (c *Config) defaults() {
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
