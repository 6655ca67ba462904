// Command asie is the one-shot CLI entry point: `asie learn <domain>
// <url1,url2,...>` runs learnStrategy once and prints the resulting
// ExtractionStrategy as JSON; `asie extract <url>` runs extract once and
// prints the ProductRecord. Grounded on the teacher's cmd/purify/main.go
// wiring order, with the HTTP server step removed (REST is out of scope)
// and replaced by a single command dispatch.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/use-agent/asie/browser"
	"github.com/use-agent/asie/cache"
	"github.com/use-agent/asie/config"
	"github.com/use-agent/asie/models"
	"github.com/use-agent/asie/orchestrator"
)

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg := *config.Load()

	// ── 2. Initialise structured logging ────────────────────────────
	initLogger(cfg.Log)

	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	// ── 3. Initialise the browser launcher ──────────────────────────
	launcher, err := browser.NewLauncher(cfg.Browser)
	if err != nil {
		slog.Error("failed to initialise browser launcher", "error", err)
		os.Exit(1)
	}
	defer launcher.Close()

	// ── 4. Initialise cache (hot tier + durable cold tier) ──────────
	hot := cache.NewHotStore(map[cache.Namespace]time.Duration{
		cache.NamespaceNavigation: cfg.Cache.TTLNavigation,
		cache.NamespaceSelectors:  cfg.Cache.TTLSelectors,
		cache.NamespaceLearning:   cfg.Cache.TTLLearning,
		cache.NamespaceState:      cfg.Cache.TTLState,
		cache.NamespaceDiscovery:  cfg.Cache.TTLDiscovery,
		cache.NamespaceCheckpoint: cfg.Cache.TTLCheckpoint,
	}, cfg.Cache.MaxEntriesPerNamespace)

	durable, err := cache.NewJSONFileStore(cfg.Store.DurableStorePath)
	if err != nil {
		slog.Error("failed to initialise durable store", "error", err, "path", cfg.Store.DurableStorePath)
		os.Exit(1)
	}
	defer durable.Close()
	learner := cache.NewLearner(hot, durable)

	// ── 5. Construct the orchestrator ───────────────────────────────
	orch, err := orchestrator.New(cfg, launcher, learner)
	if err != nil {
		slog.Error("failed to initialise orchestrator", "error", err)
		os.Exit(1)
	}
	defer orch.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	// ── 6. One-shot command dispatch ────────────────────────────────
	switch os.Args[1] {
	case "learn":
		runLearn(ctx, orch, cfg, os.Args[2:])
	case "extract":
		runExtract(ctx, orch, os.Args[2:])
	default:
		usage()
		os.Exit(1)
	}

	slog.Info("asie finished")
}

func runLearn(ctx context.Context, orch *orchestrator.Orchestrator, cfg config.Config, args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: asie learn <domain> <url1,url2,...>")
		os.Exit(1)
	}
	domain := models.NewDomain(args[0])
	urls := strings.Split(args[1], ",")

	// MaxAttempts=0 means "cache-only, never navigate" (§8); the learn
	// subcommand's whole purpose is to run discovery, so it always
	// passes the configured attempt budget explicitly.
	opts := models.LearnOptions{MaxAttempts: cfg.Orchestrator.MaxAttempts}
	strategy, err := orch.LearnStrategy(ctx, domain, urls, opts)
	if err != nil {
		slog.Error("learn failed", "domain", domain, "error", err)
		os.Exit(1)
	}
	printJSON(strategy)
}

func runExtract(ctx context.Context, orch *orchestrator.Orchestrator, args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: asie extract <url>")
		os.Exit(1)
	}
	record, err := orch.Extract(ctx, args[0], models.ExtractOptions{})
	if err != nil {
		slog.Error("extract failed", "url", args[0], "error", err)
		os.Exit(1)
	}
	printJSON(record)
}

func printJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		slog.Error("failed to encode result", "error", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage:")
	fmt.Fprintln(os.Stderr, "  asie learn <domain> <url1,url2,...>")
	fmt.Fprintln(os.Stderr, "  asie extract <url>")
}

// initLogger configures slog based on the LogConfig, identical to the
// teacher's cmd/purify/main.go.
func initLogger(cfg config.LogConfig) {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	if cfg.Format == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))
}
