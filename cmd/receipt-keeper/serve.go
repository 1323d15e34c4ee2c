package main

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/peterbourgon/ff/v4"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zombor/receipt-keeper/internal/auth"
	"github.com/zombor/receipt-keeper/internal/metrics"
	"github.com/zombor/receipt-keeper/internal/receipt"
	"github.com/zombor/receipt-keeper/internal/scanning"
	"github.com/zombor/receipt-keeper/internal/server"
)

type serveConfig struct {
	*rootConfig
	addr          *string
	scannerType   *string
	geminiKey     *string
	geminiModel   *string
	ollamaURL     *string
	ollamaModel   *string
	sessionSecret *string
	sessionTTL    *time.Duration
	ticketTTL     *time.Duration
}

func newServeCommand(root *rootConfig) *ff.Command {
	fs := ff.NewFlagSet("serve").SetParent(root.flags)
	cfg := &serveConfig{
		rootConfig:    root,
		addr:          fs.StringLong("addr", "127.0.0.1:8080", "HTTP listen address"),
		scannerType:   fs.StringLong("scanner", "gemini", "scanner type: 'gemini' or 'ollama'"),
		geminiKey:     fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)"),
		geminiModel:   fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name"),
		ollamaURL:     fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL"),
		ollamaModel:   fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)"),
		sessionSecret: fs.StringLong("session-secret", "", "HMAC secret for session tokens (random per run if empty)"),
		sessionTTL:    fs.DurationLong("session-ttl", 7*24*time.Hour, "session lifetime"),
		ticketTTL:     fs.DurationLong("ticket-ttl", 15*time.Minute, "password recovery ticket lifetime"),
	}

	return &ff.Command{
		Name:      "serve",
		Usage:     "receipt-keeper serve [FLAGS]",
		ShortHelp: "run the local JSON API",
		Flags:     fs,
		Exec:      cfg.exec,
	}
}

func (c *serveConfig) exec(ctx context.Context, args []string) error {
	hasher, err := c.hasher()
	if err != nil {
		return err
	}

	secret, err := c.secret()
	if err != nil {
		return err
	}

	slog.Info("Initializing database...", "path", *c.dbPath)
	db, err := c.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	scanner, err := c.scanner(ctx)
	if err != nil {
		return err
	}
	defer scanner.Close()

	reg := prometheus.NewRegistry()
	srv := server.NewServer(server.Deps{
		Receipts: receipt.NewService(db, scanner),
		Accounts: auth.NewService(db, hasher, auth.LogNotifier{}),
		Sessions: auth.NewSessions(secret, *c.sessionTTL, *c.ticketTTL),
		Health:   db,
		Metrics:  metrics.New(reg),
		Gatherer: reg,
	})

	slog.Info("Server started", "address", "http://"+*c.addr, "password_hash", *c.passwordHash)
	return srv.Start(ctx, *c.addr)
}

func (c *serveConfig) secret() ([]byte, error) {
	if *c.sessionSecret != "" {
		return []byte(*c.sessionSecret), nil
	}
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating session secret: %w", err)
	}
	slog.Warn("No --session-secret set; sessions end when the server stops")
	return secret, nil
}

func (c *serveConfig) scanner(ctx context.Context) (scanning.Scanner, error) {
	switch *c.scannerType {
	case "gemini":
		apiKey := *c.geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("gemini API key is required: set --gemini-key or GEMINI_API_KEY")
		}
		slog.Info("Initializing Gemini scanner...", "model", *c.geminiModel)
		return scanning.NewGemini(ctx, apiKey, *c.geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama scanner...", "url", *c.ollamaURL, "model", *c.ollamaModel)
		return scanning.NewOllama(*c.ollamaURL, *c.ollamaModel), nil
	default:
		return nil, fmt.Errorf("invalid scanner type %q: want gemini or ollama", *c.scannerType)
	}
}
