package aggregate

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
)

func success(index int, summary string, label analysis.SentimentLabel, score float64, topics ...string) analysis.ChunkOutcome {
	return analysis.ChunkOutcome{
		ChunkIndex: index,
		Status:     analysis.OutcomeSuccess,
		Provider:   "test",
		Analysis: &analysis.ChunkAnalysis{
			Summary:   summary,
			Topics:    topics,
			Sentiment: analysis.Sentiment{Label: label, Score: score},
			Metadata:  analysis.ChunkMetadata{WordCount: 100, ReadingTimeMinutes: 0.5},
		},
	}
}

func failure(index int, kind analysis.ErrorKind) analysis.ChunkOutcome {
	return analysis.ChunkOutcome{ChunkIndex: index, Status: analysis.OutcomeFailed, Err: kind}
}

func TestAggregateMergesInIndexOrder(t *testing.T) {
	// WHAT: summaries join in chunk-index order regardless of the order
	// outcomes arrive in.
	a := New(Options{})
	outcomes := []analysis.ChunkOutcome{
		success(2, "Third.", analysis.SentimentNeutral, 0.5),
		success(0, "First.", analysis.SentimentNeutral, 0.5),
		success(1, "Second.", analysis.SentimentNeutral, 0.5),
	}

	res := a.Aggregate(outcomes)
	if res.Summary != "First. Second. Third." {
		t.Errorf("summary = %q", res.Summary)
	}
	if res.Partial {
		t.Error("no failures, Partial should be false")
	}
	if res.Metadata.WordCount != 300 {
		t.Errorf("word count = %d, want 300", res.Metadata.WordCount)
	}
	if res.Metadata.ReadingTimeMinutes != 1.5 {
		t.Errorf("reading time = %v, want 1.5", res.Metadata.ReadingTimeMinutes)
	}
}

func TestAggregatePartialResult(t *testing.T) {
	// WHAT: one failed chunk out of three yields a usable partial result with
	// the failed index recorded.
	a := New(Options{})
	outcomes := []analysis.ChunkOutcome{
		success(0, "Alpha.", analysis.SentimentPositive, 0.8),
		failure(1, analysis.ErrKindService),
		success(2, "Gamma.", analysis.SentimentPositive, 0.6),
	}

	res := a.Aggregate(outcomes)
	if !res.Partial {
		t.Fatal("Partial should be true with a failed chunk")
	}
	if len(res.FailedChunks) != 1 || res.FailedChunks[0] != 1 {
		t.Errorf("failed chunks = %v, want [1]", res.FailedChunks)
	}
	if res.Summary != "Alpha. Gamma." {
		t.Errorf("summary = %q", res.Summary)
	}
	if res.Sentiment.Label != analysis.SentimentPositive {
		t.Errorf("sentiment = %+v", res.Sentiment)
	}
	if res.Sentiment.Score != 0.7 {
		t.Errorf("score = %v, want mean 0.7", res.Sentiment.Score)
	}
}

func TestAggregateAllFailed(t *testing.T) {
	// WHAT: a fully failed batch is a degraded result, never an error: empty
	// but structurally valid, Partial=true, every index listed.
	a := New(Options{})
	res := a.Aggregate([]analysis.ChunkOutcome{
		failure(0, analysis.ErrKindTimeout),
		failure(1, analysis.ErrKindCircuitOpen),
	})

	if !res.Partial {
		t.Error("Partial should be true")
	}
	if len(res.FailedChunks) != 2 {
		t.Errorf("failed chunks = %v", res.FailedChunks)
	}
	if res.Summary != "" || res.Topics != nil || res.KeyPoints != nil {
		t.Errorf("expected empty content, got %+v", res)
	}
	if res.Sentiment.Label != analysis.SentimentNeutral || res.Sentiment.Score != 0.5 {
		t.Errorf("sentiment = %+v, want neutral 0.5", res.Sentiment)
	}
}

func TestAggregateDeterministic(t *testing.T) {
	// WHAT: shuffling outcome order never changes the serialized result.
	a := New(Options{})
	outcomes := make([]analysis.ChunkOutcome, 0, 10)
	for i := 0; i < 10; i++ {
		label := analysis.SentimentPositive
		if i%3 == 0 {
			label = analysis.SentimentNegative
		}
		outcomes = append(outcomes, success(i, fmt.Sprintf("Chunk %d.", i), label, 0.1*float64(i), fmt.Sprintf("topic-%d", i%4)))
	}

	canonical, err := json.Marshal(a.Aggregate(outcomes))
	if err != nil {
		t.Fatal(err)
	}

	rng := rand.New(rand.NewSource(42))
	for trial := 0; trial < 20; trial++ {
		shuffled := make([]analysis.ChunkOutcome, len(outcomes))
		copy(shuffled, outcomes)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		got, err := json.Marshal(a.Aggregate(shuffled))
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != string(canonical) {
			t.Fatalf("trial %d: result differs from canonical\n got: %s\nwant: %s", trial, got, canonical)
		}
	}
}

func TestAggregateTopicDedupAndCap(t *testing.T) {
	// WHAT: topics dedupe on first occurrence and the cap keeps the first N
	// in chunk order.
	a := New(Options{TopicCap: 10})
	var outcomes []analysis.ChunkOutcome
	for i := 0; i < 15; i++ {
		outcomes = append(outcomes, success(i, "S.", analysis.SentimentNeutral, 0.5,
			fmt.Sprintf("topic-%02d", i), "shared"))
	}

	res := a.Aggregate(outcomes)
	if len(res.Topics) != 10 {
		t.Fatalf("topics = %d, want 10", len(res.Topics))
	}
	if res.Topics[0] != "topic-00" || res.Topics[1] != "shared" || res.Topics[2] != "topic-01" {
		t.Errorf("topic order = %v, want first-seen order", res.Topics[:3])
	}
	seen := map[string]bool{}
	for _, topic := range res.Topics {
		if seen[topic] {
			t.Errorf("duplicate topic %q", topic)
		}
		seen[topic] = true
	}
}

func TestAggregateKeyPointCap(t *testing.T) {
	a := New(Options{KeyPointCap: 8})
	var outcomes []analysis.ChunkOutcome
	for i := 0; i < 5; i++ {
		out := success(i, "S.", analysis.SentimentNeutral, 0.5)
		out.Analysis.KeyPoints = []string{fmt.Sprintf("kp-%d-a", i), fmt.Sprintf("kp-%d-b", i), fmt.Sprintf("kp-%d-c", i)}
		outcomes = append(outcomes, out)
	}

	res := a.Aggregate(outcomes)
	if len(res.KeyPoints) != 8 {
		t.Fatalf("key points = %d, want 8", len(res.KeyPoints))
	}
	if res.KeyPoints[0] != "kp-0-a" || res.KeyPoints[7] != "kp-2-b" {
		t.Errorf("key point order = %v", res.KeyPoints)
	}
}

func TestAggregateSummaryTruncation(t *testing.T) {
	a := New(Options{SummaryMaxLen: 100})
	long := strings.Repeat("word ", 40) // 200 bytes
	res := a.Aggregate([]analysis.ChunkOutcome{success(0, long, analysis.SentimentNeutral, 0.5)})

	if len(res.Summary) != 103 {
		t.Errorf("summary length = %d, want 100 + ellipsis", len(res.Summary))
	}
	if !strings.HasSuffix(res.Summary, "...") {
		t.Errorf("truncated summary should end with ellipsis: %q", res.Summary[90:])
	}
}

func TestAggregateSummaryTruncationRuneSafe(t *testing.T) {
	// WHAT: the truncation cut never splits a multi-byte rune; the result
	// stays valid UTF-8 whatever the byte limit lands on.
	long := strings.Repeat("héllo wörld ", 30) // 14 bytes per repeat
	for maxLen := 95; maxLen <= 100; maxLen++ {
		a := New(Options{SummaryMaxLen: maxLen})
		res := a.Aggregate([]analysis.ChunkOutcome{success(0, long, analysis.SentimentNeutral, 0.5)})

		if !utf8.ValidString(res.Summary) {
			t.Errorf("maxLen %d: summary is not valid UTF-8: %q", maxLen, res.Summary)
		}
		if len(res.Summary) > maxLen+3 {
			t.Errorf("maxLen %d: summary length = %d", maxLen, len(res.Summary))
		}
		if !strings.HasSuffix(res.Summary, "...") {
			t.Errorf("maxLen %d: missing ellipsis", maxLen)
		}
	}
}

func TestAggregateSentimentMajority(t *testing.T) {
	a := New(Options{})
	res := a.Aggregate([]analysis.ChunkOutcome{
		success(0, "A.", analysis.SentimentNegative, 0.9),
		success(1, "B.", analysis.SentimentNegative, 0.7),
		success(2, "C.", analysis.SentimentPositive, 0.8),
	})
	if res.Sentiment.Label != analysis.SentimentNegative {
		t.Errorf("label = %q, want negative majority", res.Sentiment.Label)
	}
}

func TestAggregateSentimentTieNeutral(t *testing.T) {
	// WHAT: an even split between positive and negative resolves to neutral.
	a := New(Options{})
	res := a.Aggregate([]analysis.ChunkOutcome{
		success(0, "A.", analysis.SentimentPositive, 0.9),
		success(1, "B.", analysis.SentimentNegative, 0.9),
	})
	if res.Sentiment.Label != analysis.SentimentNeutral {
		t.Errorf("label = %q, want neutral on tie", res.Sentiment.Label)
	}
}

func TestAggregateEmptyInput(t *testing.T) {
	a := New(Options{})
	res := a.Aggregate(nil)
	if res.Partial {
		t.Error("empty input is not partial")
	}
	if res.Summary != "" || res.FailedChunks != nil {
		t.Errorf("expected zero-value content: %+v", res)
	}
}
