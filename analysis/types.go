// Package analysis defines the data model shared across the content-analysis
// pipeline: the input document, the bounded chunks it is split into, the
// per-chunk provider results, and the final aggregated analysis.
//
// All types here are plain values. Chunks and outcomes are created once and
// never mutated afterwards; ordering is carried explicitly in indices so that
// aggregation does not depend on completion order.
package analysis

// Document is the normalized input to the pipeline, produced by an external
// extraction component (web scraping, file parsing; not part of this module).
type Document struct {
	URL      string            `json:"url,omitempty"`
	Title    string            `json:"title,omitempty"`
	Text     string            `json:"text"`
	Language string            `json:"language,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Section is a structural unit detected in the document: a heading plus the
// body text that follows it. Sections guide chunk boundaries.
type Section struct {
	Heading string `json:"heading,omitempty"`
	Text    string `json:"text"`
}

// TextChunk is one bounded analysis unit submitted to a provider.
// Chunks are ordered by Index; TotalChunks is the same on every chunk of a
// batch. Text length never exceeds the configured maximum except for a
// single sentence that cannot be split further.
type TextChunk struct {
	Index          int    `json:"index"`
	TotalChunks    int    `json:"total_chunks"`
	Text           string `json:"text"`
	SectionHeading string `json:"section_heading,omitempty"`
	IsContinuation bool   `json:"is_continuation,omitempty"`
}

// SentimentLabel is one of the three coarse sentiment classes.
type SentimentLabel string

const (
	SentimentPositive SentimentLabel = "positive"
	SentimentNeutral  SentimentLabel = "neutral"
	SentimentNegative SentimentLabel = "negative"
)

// Sentiment pairs a label with a confidence-like score in [0,1].
type Sentiment struct {
	Label SentimentLabel `json:"label"`
	Score float64        `json:"score"`
}

// ChunkMetadata carries numeric facts computed locally from the chunk text.
type ChunkMetadata struct {
	WordCount          int     `json:"word_count"`
	ReadingTimeMinutes float64 `json:"reading_time_minutes"`
}

// ChunkAnalysis is the parsed result of analyzing one chunk.
type ChunkAnalysis struct {
	Summary   string        `json:"summary"`
	KeyPoints []string      `json:"key_points,omitempty"`
	Topics    []string      `json:"topics,omitempty"`
	Sentiment Sentiment     `json:"sentiment"`
	Metadata  ChunkMetadata `json:"metadata"`
}

// OutcomeStatus marks whether a chunk was analyzed or exhausted all providers.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailed  OutcomeStatus = "failed"
)

// ErrorKind classifies why a chunk failed. Aggregation and reporting only
// need the class, not the full error chain.
type ErrorKind string

const (
	ErrKindNone            ErrorKind = ""
	ErrKindTimeout         ErrorKind = "timeout"
	ErrKindRateLimited     ErrorKind = "rate_limited"
	ErrKindInvalidResponse ErrorKind = "invalid_response"
	ErrKindService         ErrorKind = "service_error"
	ErrKindCircuitOpen     ErrorKind = "circuit_open"
	ErrKindPermanent       ErrorKind = "permanent"
)

// ChunkOutcome records the terminal result for one submitted chunk.
// Exactly one outcome exists per chunk; Analysis is set only on success.
type ChunkOutcome struct {
	ChunkIndex int            `json:"chunk_index"`
	Status     OutcomeStatus  `json:"status"`
	Analysis   *ChunkAnalysis `json:"analysis,omitempty"`
	Err        ErrorKind      `json:"error,omitempty"`
	Provider   string         `json:"provider,omitempty"`
}

// ContentAnalysis is the pipeline's final output. Partial is true when at
// least one chunk failed; FailedChunks lists their original indices sorted
// ascending. A fully failed batch still yields a structurally valid (empty)
// ContentAnalysis, never an error.
type ContentAnalysis struct {
	Summary      string        `json:"summary"`
	KeyPoints    []string      `json:"key_points,omitempty"`
	Topics       []string      `json:"topics,omitempty"`
	Sentiment    Sentiment     `json:"sentiment"`
	Metadata     ChunkMetadata `json:"metadata"`
	Partial      bool          `json:"partial"`
	FailedChunks []int         `json:"failed_chunks,omitempty"`
}
