package main

import (
	"context"
	_ "embed"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/peterbourgon/ff/v4"
	"github.com/peterbourgon/ff/v4/ffhelp"

	"github.com/zombor/expense-tracker/internal/expense"
	"github.com/zombor/expense-tracker/internal/postgrest"
	"github.com/zombor/expense-tracker/internal/remote"
	"github.com/zombor/expense-tracker/internal/scanning"
	"github.com/zombor/expense-tracker/internal/server"
)

//go:embed VERSION.txt
var versionFile string

var version = strings.TrimSpace(versionFile)

func main() {
	// Check for version flag before parsing other flags
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-version" || arg == "-v" {
			fmt.Println(version)
			os.Exit(0)
		}
	}

	// A .env file is optional; real environment variables win
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		fmt.Fprintf(os.Stderr, "error: loading .env: %v\n", err)
		os.Exit(1)
	}

	fs := ff.NewFlagSet("expense-tracker")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		logLevel       = fs.StringLong("log-level", "info", "Log level: debug, info, warn or error")
		logFormat      = fs.StringLong("log-format", "text", "Log format: 'text' or 'json'")
		storeType      = fs.StringLong("store", "bolt", "Data store: 'bolt' or 'postgrest'")
		dbPath         = fs.StringLong("db", "expense-tracker.db", "BoltDB file path")
		postgrestURL   = fs.StringLong("postgrest-url", "", "PostgREST base URL, e.g. https://xyz.supabase.co/rest/v1")
		postgrestKey   = fs.StringLong("postgrest-key", "", "PostgREST API key")
		storageType    = fs.StringLong("storage", "local", "Receipt file storage: 'local' or 'gcs'")
		storagePath    = fs.StringLong("storage-path", "./receipts", "Local storage directory path")
		gcsBucket      = fs.StringLong("gcs-bucket", "", "Google Cloud Storage bucket for receipt files")
		gcsPrefix      = fs.StringLong("gcs-prefix", "receipts", "Object name prefix inside the bucket")
		extractorType  = fs.StringLong("extractor", "gemini", "Receipt extractor: 'gemini', 'ollama' or 'openai'")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", "gemini-2.5-flash", "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name (e.g., llava, qwen2-vl)")
		openaiURL      = fs.StringLong("openai-url", scanning.DefaultOpenAIBaseURL, "OpenAI-compatible API base URL")
		openaiKey      = fs.StringLong("openai-key", "", "OpenAI-compatible API key")
		openaiModel    = fs.StringLong("openai-model", "meta-llama/llama-4-scout-17b-16e-instruct", "OpenAI-compatible vision model name")
		currency       = fs.StringLong("fallback-currency", scanning.DefaultFallbackCurrency, "Currency reported when a receipt shows none")
		maxRetries     = fs.IntLong("max-retries", remote.DefaultMaxRetries, "Retries for transient data store failures")
		retryDelay     = fs.DurationLong("retry-delay", remote.DefaultInitialDelay, "Delay before the first retry, doubled after each")
		attemptTimeout = fs.DurationLong("attempt-timeout", 0, "Timeout of a single data store attempt (0 disables)")
		jwtSecret      = fs.StringLong("jwt-secret", "", "HS256 secret for bearer tokens (empty runs single-user)")
		scansPerHour   = fs.IntLong("scans-per-hour", server.DefaultScansPerHour, "Receipt scans allowed per user per hour")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("EXPENSE_TRACKER"),
	); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", ffhelp.Flags(fs))
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	// Check version flag after parsing
	if *showVersion {
		fmt.Println(version)
		os.Exit(0)
	}

	if err := setupLogging(*logLevel, *logFormat); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Initialize data store
	slog.Info("Initializing data store...", "type", *storeType)
	var store expense.Store
	switch *storeType {
	case "bolt":
		db, err := expense.NewBoltDB(*dbPath)
		if err != nil {
			slog.Error("Failed to initialize database", "error", err)
			os.Exit(1)
		}
		store = db
	case "postgrest":
		client, err := postgrest.New(*postgrestURL, *postgrestKey)
		if err != nil {
			slog.Error("Failed to initialize PostgREST client", "error", err)
			os.Exit(1)
		}
		store = client
	default:
		slog.Error("Invalid store type", "type", *storeType, "valid", "bolt or postgrest")
		os.Exit(1)
	}
	defer store.Close()

	// Initialize receipt file storage
	slog.Info("Initializing storage...", "type", *storageType)
	var storage expense.Storage
	switch *storageType {
	case "local":
		local, err := expense.NewLocalStorage(*storagePath)
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		storage = local
	case "gcs":
		gcs, err := expense.NewGCSStorage(ctx, *gcsBucket, *gcsPrefix)
		if err != nil {
			slog.Error("Failed to initialize cloud storage", "error", err)
			os.Exit(1)
		}
		defer gcs.Close()
		storage = gcs
	default:
		slog.Error("Invalid storage type", "type", *storageType, "valid", "local or gcs")
		os.Exit(1)
	}

	// Initialize extractor based on type
	var (
		extractor scanning.Extractor
		err       error
	)
	switch *extractorType {
	case "gemini":
		// Get Gemini API key from flag or environment
		apiKey := *geminiKey
		if apiKey == "" {
			apiKey = os.Getenv("GEMINI_API_KEY")
		}
		if apiKey == "" {
			slog.Error("Gemini API key is required. Set --gemini-key flag or GEMINI_API_KEY environment variable")
			os.Exit(1)
		}
		slog.Info("Initializing Gemini extractor...", "model", *geminiModel)
		extractor, err = scanning.NewGemini(ctx, apiKey, *geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama extractor...", "url", *ollamaURL, "model", *ollamaModel)
		extractor, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
	case "openai":
		slog.Info("Initializing OpenAI-compatible extractor...", "url", *openaiURL, "model", *openaiModel)
		extractor, err = scanning.NewOpenAI(*openaiURL, *openaiKey, *openaiModel)
	default:
		slog.Error("Invalid extractor type", "type", *extractorType, "valid", "gemini, ollama or openai")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize extractor", "type", *extractorType, "error", err)
		os.Exit(1)
	}

	pipeline := scanning.NewPipeline(extractor, scanning.Config{FallbackCurrency: *currency})
	defer pipeline.Close()

	// Initialize service
	retrier := remote.New(remote.Config{
		MaxRetries:     *maxRetries,
		InitialDelay:   *retryDelay,
		AttemptTimeout: *attemptTimeout,
	})
	expenseService := expense.NewService(store, storage, retrier)

	seedCtx, cancel := context.WithTimeout(ctx, time.Minute)
	err = expenseService.SeedCurrencies(seedCtx)
	cancel()
	if err != nil {
		slog.Error("Failed to seed currencies", "error", err)
		os.Exit(1)
	}

	// Initialize server
	srv := server.NewServer(expenseService, pipeline, server.Config{
		JWTSecret:    *jwtSecret,
		ScansPerHour: *scansPerHour,
	})
	if *jwtSecret == "" {
		slog.Warn("No JWT secret configured, running in single-user mode", "user_id", server.LocalUserID)
	}

	addr := fmt.Sprintf(":%d", *port)
	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if err := srv.Start(ctx, addr); err != nil {
		slog.Error("Server error", "error", err)
		os.Exit(1)
	}

	slog.Info("Shutting down...")
}

// setupLogging installs the default slog handler
func setupLogging(level, format string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("parsing log level: %w", err)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	var handler slog.Handler
	switch format {
	case "text":
		handler = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		handler = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("invalid log format %q: want 'text' or 'json'", format)
	}
	slog.SetDefault(slog.New(handler))
	return nil
}
