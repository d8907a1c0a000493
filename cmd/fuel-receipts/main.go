package main

import (
	"context"
	_ "embed"
	"errors"
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

	"github.com/zombor/fuel-receipts/internal/receipt"
	"github.com/zombor/fuel-receipts/internal/scanning"
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

	// A missing .env is fine; flags and the environment still apply
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("Failed to load .env file", "error", err)
	}

	fs := ff.NewFlagSet("fuel-receipts")
	var (
		port           = fs.IntLong("port", 8080, "HTTP server port")
		dbPath         = fs.StringLong("db", "fuel-receipts.db", "BoltDB file path (ignored when --database-url is set)")
		databaseURL    = fs.StringLong("database-url", "", "Postgres connection URL (optional)")
		storagePath    = fs.StringLong("storage", "./receipts", "Local receipt image directory")
		publicURL      = fs.StringLong("public-url", "/files", "Base URL under which local receipt images are served")
		gcsBucket      = fs.StringLong("gcs-bucket", "", "Store receipt images in this GCS bucket instead of --storage")
		gcsPrefix      = fs.StringLong("gcs-prefix", "receipts", "Object name prefix inside the GCS bucket")
		recognizerType = fs.StringLong("recognizer", "vision", "Text recognizer: 'vision', 'gemini' or 'ollama'")
		visionKey      = fs.StringLong("vision-key", "", "Google Cloud Vision API key (or set VISION_API_KEY env var)")
		geminiKey      = fs.StringLong("gemini-key", "", "Google Gemini API key (or set GEMINI_API_KEY env var)")
		geminiModel    = fs.StringLong("gemini-model", scanning.DefaultGeminiModel, "Google Gemini model name")
		ollamaURL      = fs.StringLong("ollama-url", "http://localhost:11434", "Ollama API base URL")
		ollamaModel    = fs.StringLong("ollama-model", "llava", "Ollama model name")
		authUser       = fs.StringLong("auth-user", "", "Basic auth username (optional)")
		authPass       = fs.StringLong("auth-pass", "", "Basic auth password (optional)")
		_              = fs.StringLong("config", "", "Config file with one 'flag value' per line (optional)")
		showVersion    = fs.BoolLong("version", "Show version information")
	)

	if err := ff.Parse(fs, os.Args[1:],
		ff.WithEnvVarPrefix("FUEL_RECEIPTS"),
		ff.WithConfigFileFlag("config"),
		ff.WithConfigFileParser(ff.PlainParser),
		ff.WithConfigAllowMissingFile(),
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

	ctx := context.Background()

	// Initialize database
	var db receipt.DB
	var err error
	if *databaseURL != "" {
		slog.Info("Initializing Postgres database...")
		db, err = receipt.NewPostgresDB(ctx, *databaseURL)
	} else {
		slog.Info("Initializing database...", "path", *dbPath)
		db, err = receipt.NewBoltDB(*dbPath)
	}
	if err != nil {
		slog.Error("Failed to initialize database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Initialize recognizer based on type
	var recognizer scanning.Recognizer
	switch *recognizerType {
	case "vision":
		apiKey := firstNonEmpty(*visionKey, os.Getenv("VISION_API_KEY"))
		if apiKey == "" {
			// Keep serving; scan requests report the missing key
			slog.Warn("Vision API key is not set. Set --vision-key flag or VISION_API_KEY environment variable")
		}
		slog.Info("Initializing Vision recognizer...")
		recognizer, err = scanning.NewVision(apiKey)
	case "gemini":
		apiKey := firstNonEmpty(*geminiKey, os.Getenv("GEMINI_API_KEY"))
		if apiKey == "" {
			slog.Warn("Gemini API key is not set. Set --gemini-key flag or GEMINI_API_KEY environment variable")
		}
		slog.Info("Initializing Gemini recognizer...", "model", *geminiModel)
		recognizer, err = scanning.NewGemini(apiKey, *geminiModel)
	case "ollama":
		slog.Info("Initializing Ollama recognizer...", "url", *ollamaURL, "model", *ollamaModel)
		recognizer, err = scanning.NewOllama(*ollamaURL, *ollamaModel)
	default:
		slog.Error("Invalid recognizer type", "type", *recognizerType, "valid", "vision, gemini or ollama")
		os.Exit(1)
	}
	if err != nil {
		slog.Error("Failed to initialize recognizer", "type", *recognizerType, "error", err)
		os.Exit(1)
	}
	defer recognizer.Close()

	// Initialize storage
	var store receipt.Storage
	if *gcsBucket != "" {
		slog.Info("Initializing GCS storage...", "bucket", *gcsBucket, "prefix", *gcsPrefix)
		gcs, err := receipt.NewGCSStorage(ctx, *gcsBucket, *gcsPrefix)
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
		defer gcs.Close()
		store = gcs
	} else {
		slog.Info("Initializing storage...", "path", *storagePath)
		store, err = receipt.NewLocalStorage(*storagePath, *publicURL)
		if err != nil {
			slog.Error("Failed to initialize storage", "error", err)
			os.Exit(1)
		}
	}

	// Initialize service
	service := receipt.NewService(db, scanning.NewExtractor(recognizer), store)

	// Initialize server
	basicAuth := receipt.BasicAuth{
		Username: *authUser,
		Password: *authPass,
	}
	server := receipt.NewServer(service, basicAuth)

	// Start server in goroutine
	addr := fmt.Sprintf(":%d", *port)
	go func() {
		if err := server.Start(addr); err != nil {
			slog.Error("Server error", "error", err)
			os.Exit(1)
		}
	}()

	slog.Info("Server started", "address", fmt.Sprintf("http://localhost%s", addr), "version", version)
	if *authUser != "" || *authPass != "" {
		slog.Info("Basic auth enabled", "user", *authUser)
	}

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	slog.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Graceful shutdown failed", "error", err)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
