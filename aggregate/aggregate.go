// Package aggregate merges per-chunk outcomes into one ContentAnalysis.
//
// Aggregation is a pure function of its input: outcomes are re-sorted by
// chunk index before merging, so completion order never influences the
// result and identical input always yields identical output.
package aggregate

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
)

// Options bounds the merged output. The caps are product defaults, not hard
// contracts, and stay configurable.
type Options struct {
	// SummaryMaxLen truncates the merged summary (default 2000).
	SummaryMaxLen int `json:"summary_max_len" yaml:"summary_max_len"`

	// TopicCap limits deduplicated topics (default 10).
	TopicCap int `json:"topic_cap" yaml:"topic_cap"`

	// KeyPointCap limits merged key points (default 8).
	KeyPointCap int `json:"key_point_cap" yaml:"key_point_cap"`
}

func (o *Options) defaults() {
	if o.SummaryMaxLen <= 0 {
		o.SummaryMaxLen = 2000
	}
	if o.TopicCap <= 0 {
		o.TopicCap = 10
	}
	if o.KeyPointCap <= 0 {
		o.KeyPointCap = 8
	}
}

// Aggregator merges chunk outcomes deterministically.
type Aggregator struct {
	opts Options
}

// New creates an Aggregator with the given options.
func New(opts Options) *Aggregator {
	opts.defaults()
	return &Aggregator{opts: opts}
}

// Aggregate merges outcomes into a single ContentAnalysis. Failed outcomes
// contribute only their index to FailedChunks; a batch with no successes
// yields an empty but structurally valid result with Partial=true, a
// degraded result rather than an error.
func (a *Aggregator) Aggregate(outcomes []analysis.ChunkOutcome) analysis.ContentAnalysis {
	sorted := make([]analysis.ChunkOutcome, len(outcomes))
	copy(sorted, outcomes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ChunkIndex < sorted[j].ChunkIndex })

	var (
		summaries []string
		keyPoints []string
		topics    []string
		seenTopic = map[string]bool{}
		failed    []int
		votes     = map[analysis.SentimentLabel]int{}
		scoreSum  float64
		scoreN    int
		meta      analysis.ChunkMetadata
	)

	for _, out := range sorted {
		if out.Status != analysis.OutcomeSuccess || out.Analysis == nil {
			failed = append(failed, out.ChunkIndex)
			continue
		}
		ca := out.Analysis

		if s := strings.TrimSpace(ca.Summary); s != "" {
			summaries = append(summaries, s)
		}
		keyPoints = append(keyPoints, ca.KeyPoints...)
		for _, topic := range ca.Topics {
			if !seenTopic[topic] {
				seenTopic[topic] = true
				topics = append(topics, topic)
			}
		}

		votes[ca.Sentiment.Label]++
		scoreSum += ca.Sentiment.Score
		scoreN++

		meta.WordCount += ca.Metadata.WordCount
		meta.ReadingTimeMinutes += ca.Metadata.ReadingTimeMinutes
	}

	if len(topics) > a.opts.TopicCap {
		topics = topics[:a.opts.TopicCap]
	}
	if len(keyPoints) > a.opts.KeyPointCap {
		keyPoints = keyPoints[:a.opts.KeyPointCap]
	}

	return analysis.ContentAnalysis{
		Summary:      a.mergeSummary(summaries),
		KeyPoints:    keyPoints,
		Topics:       topics,
		Sentiment:    mergeSentiment(votes, scoreSum, scoreN),
		Metadata:     meta,
		Partial:      len(failed) > 0,
		FailedChunks: failed,
	}
}

// mergeSummary joins chunk summaries in index order and truncates to the
// configured limit, marking truncation with a trailing ellipsis. The cut
// backs off to a rune boundary so the result stays valid UTF-8.
func (a *Aggregator) mergeSummary(summaries []string) string {
	merged := strings.Join(summaries, " ")
	if len(merged) > a.opts.SummaryMaxLen {
		cut := a.opts.SummaryMaxLen
		for cut > 0 && !utf8.RuneStart(merged[cut]) {
			cut--
		}
		merged = merged[:cut] + "..."
	}
	return merged
}

// mergeSentiment picks the majority label, breaking ties in favour of
// neutral. The score is the arithmetic mean of chunk scores, 0.5 when no
// chunk carried one.
func mergeSentiment(votes map[analysis.SentimentLabel]int, scoreSum float64, scoreN int) analysis.Sentiment {
	label := analysis.SentimentNeutral
	best := -1
	tie := false
	for _, l := range []analysis.SentimentLabel{analysis.SentimentPositive, analysis.SentimentNeutral, analysis.SentimentNegative} {
		switch {
		case votes[l] > best:
			best = votes[l]
			label = l
			tie = false
		case votes[l] == best:
			tie = true
		}
	}
	if tie {
		label = analysis.SentimentNeutral
	}

	score := 0.5
	if scoreN > 0 {
		score = scoreSum / float64(scoreN)
	}
	return analysis.Sentiment{Label: label, Score: score}
}
