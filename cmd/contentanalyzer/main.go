// Command contentanalyzer runs the content-analysis pipeline on a text or
// Markdown file (or stdin) and prints the aggregated analysis as JSON.
//
// usage:
//
//	contentanalyzer analyze <file> [title]
//	contentanalyzer recent  [limit]
//
// Configuration comes from CONTENT_ANALYZER_CONFIG (YAML path); API keys
// may be supplied via OPENAI_API_KEY / GEMINI_API_KEY instead of the file.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	_ "modernc.org/sqlite"

	"github.com/AmzurATG/ATG-Initiatives-sub007/analysis"
	"github.com/AmzurATG/ATG-Initiatives-sub007/history"
	"github.com/AmzurATG/ATG-Initiatives-sub007/pipeline"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	logLevel := env("LOG_LEVEL", "info")
	var lvl slog.Level
	switch logLevel {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
	slog.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	switch os.Args[1] {
	case "analyze":
		cmdAnalyze(ctx, logger, os.Args[2:])
	case "recent":
		cmdRecent(ctx, logger, os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `contentanalyzer: resilient document analysis via external providers

usage:
  contentanalyzer analyze <file|-> [title]
  contentanalyzer recent  [limit]

analyze  Chunks the document, analyzes it through the configured providers,
         and prints the aggregated result as JSON. "-" reads stdin.
recent   Lists recently recorded analyses from the history database.

environment:
  CONTENT_ANALYZER_CONFIG  YAML config path (defaults apply when unset)
  CONTENT_ANALYZER_DB      history database path (default db/history.db)
  OPENAI_API_KEY           API key for openai-type providers
  GEMINI_API_KEY           API key for the gemini provider
  LOG_LEVEL                debug|info|warn|error
`)
}

func cmdAnalyze(ctx context.Context, logger *slog.Logger, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "analyze requires a file path (or - for stdin)")
		os.Exit(1)
	}

	cfg := loadConfig(logger)

	var (
		text  []byte
		err   error
		title string
	)
	if args[0] == "-" {
		text, err = io.ReadAll(os.Stdin)
	} else {
		text, err = os.ReadFile(args[0])
		title = args[0]
	}
	if err != nil {
		logger.Error("read input", "error", err)
		os.Exit(1)
	}
	if len(args) >= 2 {
		title = args[1]
	}

	store, db := openHistory(logger)
	if db != nil {
		defer db.Close()
	}

	var opts []pipeline.Option
	if store != nil {
		opts = append(opts, pipeline.WithHistory(store))
	}

	p, err := pipeline.New(ctx, cfg, opts...)
	if err != nil {
		logger.Error("build pipeline", "error", err)
		os.Exit(1)
	}

	result, err := p.Analyze(ctx, analysis.Document{
		Title: title,
		Text:  string(text),
	})
	if err != nil {
		logger.Error("analyze", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		logger.Error("encode result", "error", err)
		os.Exit(1)
	}
}

func cmdRecent(ctx context.Context, logger *slog.Logger, args []string) {
	limit := 20
	if len(args) >= 1 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			fmt.Fprintln(os.Stderr, "limit must be a positive integer")
			os.Exit(1)
		}
		limit = n
	}

	store, db := openHistory(logger)
	if store == nil {
		logger.Error("history database unavailable")
		os.Exit(1)
	}
	defer db.Close()

	entries, err := store.Recent(ctx, limit)
	if err != nil {
		logger.Error("list history", "error", err)
		os.Exit(1)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entries); err != nil {
		logger.Error("encode entries", "error", err)
		os.Exit(1)
	}
}

// loadConfig reads the YAML config when CONTENT_ANALYZER_CONFIG is set,
// then applies environment API keys over it.
func loadConfig(logger *slog.Logger) pipeline.Config {
	var cfg pipeline.Config
	if path := os.Getenv("CONTENT_ANALYZER_CONFIG"); path != "" {
		loaded, err := pipeline.LoadConfig(path)
		if err != nil {
			logger.Error("load config", "path", path, "error", err)
			os.Exit(1)
		}
		cfg = loaded
	}
	cfg.Logger = logger

	for i := range cfg.Providers {
		if cfg.Providers[i].APIKey != "" {
			continue
		}
		switch cfg.Providers[i].Type {
		case "gemini":
			cfg.Providers[i].APIKey = os.Getenv("GEMINI_API_KEY")
		default:
			cfg.Providers[i].APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}

	// No config file: a single OpenAI provider from the environment.
	if len(cfg.Providers) == 0 {
		cfg.Providers = []pipeline.ProviderConfig{{
			Name:     "openai",
			Type:     "openai",
			Endpoint: env("OPENAI_ENDPOINT", "https://api.openai.com"),
			Model:    env("OPENAI_MODEL", "gpt-4o-mini"),
			APIKey:   os.Getenv("OPENAI_API_KEY"),
		}}
	}

	return cfg
}

func openHistory(logger *slog.Logger) (*history.Store, *sql.DB) {
	path := env("CONTENT_ANALYZER_DB", "db/history.db")
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Warn("history dir", "path", dir, "error", err)
			return nil, nil
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		logger.Warn("open history db", "path", path, "error", err)
		return nil, nil
	}

	store := history.NewStore(db, history.WithLogger(logger))
	if err := store.Init(); err != nil {
		logger.Warn("init history db", "error", err)
		db.Close()
		return nil, nil
	}
	return store, db
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
