package provider

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
)

// GeminiConfig configures the Gemini client.
type GeminiConfig struct {
	// Model is the Gemini model name (default "gemini-2.0-flash").
	Model string `json:"model" yaml:"model"`

	// APIKey authenticates against the Gemini API.
	APIKey string `json:"api_key" yaml:"api_key"`
}

// GeminiClient implements Client via the official Gemini SDK.
type GeminiClient struct {
	name   string
	client *genai.Client
	model  *genai.GenerativeModel
}

var _ Client = (*GeminiClient)(nil)

// NewGemini creates a Gemini-backed client.
func NewGemini(ctx context.Context, name string, cfg GeminiConfig) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini: api key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if name == "" {
		name = "gemini"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(0.2)
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemPrompt)},
	}

	return &GeminiClient{name: name, client: client, model: model}, nil
}

// Name identifies the provider.
func (c *GeminiClient) Name() string { return c.name }

// Close releases the underlying SDK client.
func (c *GeminiClient) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

// Analyze submits the chunk prompt and decodes the first candidate's text.
func (c *GeminiClient) Analyze(ctx context.Context, chunk analysis.TextChunk, pc PromptContext) (analysis.ChunkAnalysis, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(buildUserPrompt(chunk, pc)))
	if err != nil {
		return analysis.ChunkAnalysis{}, c.mapError(err)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return analysis.ChunkAnalysis{}, &ErrInvalidResponse{Provider: c.name, Reason: "no candidates in response"}
	}

	var sb strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return analysis.ChunkAnalysis{}, &ErrInvalidResponse{Provider: c.name, Reason: "empty candidate content"}
	}

	return DecodeResult(sb.String(), chunk), nil
}

func (c *GeminiClient) mapError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &ErrTimeout{Provider: c.name, Cause: err}
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusTooManyRequests:
			return &ErrRateLimited{Provider: c.name}
		case apiErr.Code >= 500:
			return &ErrService{Provider: c.name, Status: apiErr.Code, Detail: apiErr.Message}
		default:
			return &ErrInvalidRequest{Provider: c.name, Status: apiErr.Code, Detail: apiErr.Message}
		}
	}
	return &ErrService{Provider: c.name, Detail: err.Error()}
}
