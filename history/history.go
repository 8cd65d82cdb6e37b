// Package history persists completed analyses to SQLite for audit and
// recall. Writes follow the observability policy of the rest of the system:
// a failing history store is logged and ignored, never blocking or failing
// the pipeline that feeds it.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
)

const schema = `
CREATE TABLE IF NOT EXISTS analyses (
	id            TEXT PRIMARY KEY,
	url           TEXT NOT NULL DEFAULT '',
	title         TEXT NOT NULL DEFAULT '',
	summary       TEXT NOT NULL DEFAULT '',
	topics        TEXT NOT NULL DEFAULT '[]',
	sentiment     TEXT NOT NULL DEFAULT 'neutral',
	partial       INTEGER NOT NULL DEFAULT 0,
	failed_chunks INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_analyses_created ON analyses(created_at DESC);
`

// Entry is one persisted analysis row.
type Entry struct {
	ID           string
	URL          string
	Title        string
	Summary      string
	Topics       []string
	Sentiment    analysis.SentimentLabel
	Partial      bool
	FailedChunks int
	CreatedAt    time.Time
}

// Store records analyses in a SQLite database.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for swallowed write errors.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) { s.logger = l }
}

// WithClock sets a custom clock function (for testing).
func WithClock(fn func() time.Time) StoreOption {
	return func(s *Store) { s.now = fn }
}

// NewStore wraps an open database handle. Call Init before first use.
func NewStore(db *sql.DB, opts ...StoreOption) *Store {
	s := &Store{
		db:     db,
		logger: slog.Default(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Init creates the analyses table if needed.
func (s *Store) Init() error {
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("history: init schema: %w", err)
	}
	return nil
}

// Record inserts one completed analysis. Failures are logged and swallowed.
func (s *Store) Record(ctx context.Context, doc analysis.Document, result analysis.ContentAnalysis) {
	topics, err := json.Marshal(result.Topics)
	if err != nil {
		topics = []byte("[]")
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO analyses (id, url, title, summary, topics, sentiment, partial, failed_chunks, created_at)
		VALUES (?,?,?,?,?,?,?,?,?)`,
		uuid.NewString(),
		doc.URL,
		doc.Title,
		result.Summary,
		string(topics),
		string(result.Sentiment.Label),
		boolToInt(result.Partial),
		len(result.FailedChunks),
		s.now().Unix(),
	)
	if err != nil {
		s.logger.Warn("history record failed", "url", doc.URL, "error", err)
	}
}

// Recent returns the newest entries, most recent first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, url, title, summary, topics, sentiment, partial, failed_chunks, created_at
		FROM analyses ORDER BY created_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("history: query recent: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			topicsRaw string
			partial   int
			createdAt int64
			sentiment string
		)
		if err := rows.Scan(&e.ID, &e.URL, &e.Title, &e.Summary, &topicsRaw, &sentiment, &partial, &e.FailedChunks, &createdAt); err != nil {
			return nil, fmt.Errorf("history: scan entry: %w", err)
		}
		if err := json.Unmarshal([]byte(topicsRaw), &e.Topics); err != nil {
			e.Topics = nil
		}
		e.Sentiment = analysis.SentimentLabel(sentiment)
		e.Partial = partial != 0
		e.CreatedAt = time.Unix(createdAt, 0).UTC()
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return entries, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
