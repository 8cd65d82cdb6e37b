// Package provider abstracts external language-understanding services.
//
// Each Client talks to one provider and returns a parsed ChunkAnalysis or a
// typed error from the taxonomy in errors.go. Provider output that is not
// valid structured JSON degrades deterministically to an unstructured
// ChunkAnalysis instead of failing; parse failures are recoverable.
package provider

import (
	"context"
	"strconv"
	"strings"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
)

// PromptContext carries document-level context sent alongside each chunk.
type PromptContext struct {
	DocumentTitle string
	DocumentURL   string
	Language      string
}

// Client analyzes a single chunk against one external provider.
type Client interface {
	// Name identifies the provider (used in logs, outcomes, and breaker state).
	Name() string

	// Analyze submits one chunk and returns its parsed analysis. Errors are
	// from the typed taxonomy in this package; the caller classifies them
	// with IsTransient for retry decisions.
	Analyze(ctx context.Context, chunk analysis.TextChunk, pc PromptContext) (analysis.ChunkAnalysis, error)
}

const systemPrompt = `You analyze a fragment of a larger document. Reply with a JSON object:
{"summary": "...", "key_points": ["..."], "topics": ["..."], "sentiment": {"label": "positive|neutral|negative", "score": 0.0}}
Keep the summary under three sentences. Reply with JSON only.`

// buildUserPrompt renders the chunk plus its document context as the user
// message sent to a chat-style provider.
func buildUserPrompt(chunk analysis.TextChunk, pc PromptContext) string {
	var sb strings.Builder
	if pc.DocumentTitle != "" {
		sb.WriteString("Document: ")
		sb.WriteString(pc.DocumentTitle)
		sb.WriteByte('\n')
	}
	if chunk.SectionHeading != "" {
		sb.WriteString("Section: ")
		sb.WriteString(chunk.SectionHeading)
		sb.WriteByte('\n')
	}
	if chunk.TotalChunks > 1 {
		sb.WriteString("Fragment ")
		sb.WriteString(strconv.Itoa(chunk.Index + 1))
		sb.WriteString(" of ")
		sb.WriteString(strconv.Itoa(chunk.TotalChunks))
		sb.WriteByte('\n')
	}
	sb.WriteByte('\n')
	sb.WriteString(chunk.Text)
	return sb.String()
}
