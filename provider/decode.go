package provider

import (
	"encoding/json"
	"strings"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
)

// structuredResult is the JSON shape providers are asked to reply with.
type structuredResult struct {
	Summary   string   `json:"summary"`
	KeyPoints []string `json:"key_points"`
	Topics    []string `json:"topics"`
	Sentiment struct {
		Label string  `json:"label"`
		Score float64 `json:"score"`
	} `json:"sentiment"`
}

// DecodeResult converts raw provider output into a ChunkAnalysis. Structured
// JSON (optionally wrapped in a Markdown code fence) is parsed; anything else
// degrades to an unstructured result with the raw text as summary and a
// neutral sentiment. The conversion is deterministic: the same raw text
// always yields the same analysis. Metadata is computed locally from the
// chunk text, never trusted from the provider.
func DecodeResult(raw string, chunk analysis.TextChunk) analysis.ChunkAnalysis {
	res := analysis.ChunkAnalysis{
		Sentiment: analysis.Sentiment{Label: analysis.SentimentNeutral, Score: 0.5},
		Metadata:  chunkMetadata(chunk),
	}

	var parsed structuredResult
	if err := json.Unmarshal([]byte(stripCodeFence(raw)), &parsed); err != nil || parsed.Summary == "" {
		// Unstructured: keep the raw text as the summary.
		res.Summary = strings.TrimSpace(raw)
		return res
	}

	res.Summary = strings.TrimSpace(parsed.Summary)
	res.KeyPoints = cleanList(parsed.KeyPoints)
	res.Topics = cleanList(parsed.Topics)
	res.Sentiment = normalizeSentiment(parsed.Sentiment.Label, parsed.Sentiment.Score)
	return res
}

func chunkMetadata(chunk analysis.TextChunk) analysis.ChunkMetadata {
	words := len(strings.Fields(chunk.Text))
	return analysis.ChunkMetadata{
		WordCount:          words,
		ReadingTimeMinutes: float64(words) / 200.0,
	}
}

// stripCodeFence removes a surrounding ```json ... ``` fence if present.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		s = s[idx+1:]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func normalizeSentiment(label string, score float64) analysis.Sentiment {
	var l analysis.SentimentLabel
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "positive":
		l = analysis.SentimentPositive
	case "negative":
		l = analysis.SentimentNegative
	default:
		l = analysis.SentimentNeutral
	}
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}
	if score == 0 && l == analysis.SentimentNeutral {
		score = 0.5
	}
	return analysis.Sentiment{Label: l, Score: score}
}
