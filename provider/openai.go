package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
)

// OpenAIConfig configures an OpenAI-compatible chat completions client.
// The same client covers OpenAI, vLLM, Ollama, and other servers speaking
// the /v1/chat/completions format.
type OpenAIConfig struct {
	// Endpoint is the server base URL (e.g. "https://api.openai.com").
	Endpoint string `json:"endpoint" yaml:"endpoint"`

	// Model is the model name sent in the request.
	Model string `json:"model" yaml:"model"`

	// APIKey is sent as a Bearer token when non-empty.
	APIKey string `json:"api_key" yaml:"api_key"`

	// Timeout per HTTP request. Default: 30s.
	Timeout time.Duration `json:"timeout" yaml:"timeout"`

	// Temperature for generation. Default 0.2, kept low for stable output.
	Temperature float32 `json:"temperature" yaml:"temperature"`
}

func (c *OpenAIConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Temperature == 0 {
		c.Temperature = 0.2
	}
}

// OpenAIClient implements Client against the chat completions API.
type OpenAIClient struct {
	name     string
	endpoint string
	cfg      OpenAIConfig
	client   *http.Client
}

var _ Client = (*OpenAIClient)(nil)

// NewOpenAI creates a client. name identifies the provider in outcomes and
// breaker state; "openai" is used when empty.
func NewOpenAI(name string, cfg OpenAIConfig) *OpenAIClient {
	cfg.defaults()
	if name == "" {
		name = "openai"
	}
	return &OpenAIClient{
		name:     name,
		endpoint: strings.TrimRight(cfg.Endpoint, "/"),
		cfg:      cfg,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

// Name identifies the provider.
func (c *OpenAIClient) Name() string { return c.name }

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float32       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Analyze posts the chunk as a chat completion and decodes the reply.
func (c *OpenAIClient) Analyze(ctx context.Context, chunk analysis.TextChunk, pc PromptContext) (analysis.ChunkAnalysis, error) {
	body, err := json.Marshal(chatRequest{
		Model: c.cfg.Model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(chunk, pc)},
		},
		Temperature: c.cfg.Temperature,
	})
	if err != nil {
		return analysis.ChunkAnalysis{}, fmt.Errorf("marshal request: %w", err)
	}

	url := c.endpoint + "/v1/chat/completions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return analysis.ChunkAnalysis{}, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return analysis.ChunkAnalysis{}, c.mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return analysis.ChunkAnalysis{}, c.mapStatus(resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return analysis.ChunkAnalysis{}, &ErrInvalidResponse{Provider: c.name, Reason: fmt.Sprintf("decode body: %v", err)}
	}
	if len(parsed.Choices) == 0 || parsed.Choices[0].Message.Content == "" {
		return analysis.ChunkAnalysis{}, &ErrInvalidResponse{Provider: c.name, Reason: "no choices in response"}
	}

	return DecodeResult(parsed.Choices[0].Message.Content, chunk), nil
}

func (c *OpenAIClient) mapTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ErrTimeout{Provider: c.name, Cause: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &ErrTimeout{Provider: c.name, Cause: err}
	}
	return &ErrService{Provider: c.name, Detail: err.Error()}
}

func (c *OpenAIClient) mapStatus(status int, detail string) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &ErrRateLimited{Provider: c.name}
	case status >= 500:
		return &ErrService{Provider: c.name, Status: status, Detail: detail}
	default:
		return &ErrInvalidRequest{Provider: c.name, Status: status, Detail: detail}
	}
}
