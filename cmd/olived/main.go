// Command olived serves the dashboard composition engine over HTTP: prompt
// submission, session history, and filter evaluation, backed by a local
// Ollama model and a SQLite session store.
package main

import (
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/personalolive/oliveboard/internal/api"
	"github.com/personalolive/oliveboard/internal/store"
	"github.com/personalolive/oliveboard/pkg/board"
	"github.com/personalolive/oliveboard/pkg/fragment"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	var (
		addr       = flag.String("addr", envOr("OLIVE_ADDR", ":8080"), "listen address")
		ollamaURL  = flag.String("ollama-url", envOr("OLIVE_OLLAMA_URL", "http://localhost:11434"), "Ollama base URL")
		model      = flag.String("model", envOr("OLIVE_MODEL", "llama3.2"), "Ollama model name")
		dbPath     = flag.String("db", envOr("OLIVE_DB", "oliveboard.db"), "SQLite database path")
		schemaPath = flag.String("schema", envOr("OLIVE_SCHEMA", ""), "path to schema DDL file given to the model")
		timeout    = flag.Duration("timeout", 60*time.Second, "per-generation timeout")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	var schemaDDL string
	if *schemaPath != "" {
		raw, err := os.ReadFile(*schemaPath)
		if err != nil {
			slog.Error("failed to read schema file", "path", *schemaPath, "error", err)
			os.Exit(1)
		}
		schemaDDL = string(raw)
	}

	st, err := store.NewSQLiteStoreWithDSN("file:" + *dbPath)
	if err != nil {
		slog.Error("failed to open session store", "path", *dbPath, "error", err)
		os.Exit(1)
	}
	defer st.Close()

	client := fragment.NewClient(fragment.Config{
		BaseURL: *ollamaURL,
		Model:   *model,
		Timeout: *timeout,
	})
	if err := client.HealthCheck(); err != nil {
		slog.Warn("Ollama health check failed, generation will error until it recovers", "error", err)
	}

	svc, err := board.NewService(client, st, schemaDDL, logger)
	if err != nil {
		slog.Error("failed to initialize board service", "error", err)
		os.Exit(1)
	}

	r := api.NewRouter(svc, client)
	slog.Info("olived listening", "addr", *addr, "model", *model, "ollama", *ollamaURL)
	if err := r.Run(*addr); err != nil {
		slog.Error("server exited", "error", err)
		os.Exit(1)
	}
}
