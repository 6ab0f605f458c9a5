package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/lmittmann/tint"

	"github.com/yuimarudev/mox/internal/blob"
	s3blob "github.com/yuimarudev/mox/internal/blob/s3"
	"github.com/yuimarudev/mox/internal/config"
	"github.com/yuimarudev/mox/internal/handlers"
	"github.com/yuimarudev/mox/internal/ingest"
	"github.com/yuimarudev/mox/internal/kv"
	"github.com/yuimarudev/mox/internal/mailbox"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := setupLogger(cfg.LogLevel, cfg.LogFormat)
	logger.Info("starting mailbox service")

	// Open the ordered store
	store, err := kv.Open(cfg.DBPath)
	if err != nil {
		logger.Error("failed to open store", "error", err, "path", cfg.DBPath)
		os.Exit(1)
	}
	defer store.Close()
	logger.Info("store opened", "path", cfg.DBPath)

	// Connect the blob store
	ctx := context.Background()
	s3opts := []s3blob.Option{
		s3blob.WithBucket(cfg.S3Bucket),
		s3blob.WithRegion(cfg.S3Region),
	}
	if cfg.S3Endpoint != "" {
		s3opts = append(s3opts, s3blob.WithEndpoint(cfg.S3Endpoint, cfg.S3PathStyle))
	}
	if cfg.S3AccessKey != "" && cfg.S3SecretKey != "" {
		s3opts = append(s3opts, s3blob.WithStaticCredentials(cfg.S3AccessKey, cfg.S3SecretKey))
	}
	var blobs blob.Store
	blobs, err = s3blob.New(ctx, s3opts...)
	if err != nil {
		logger.Error("failed to connect blob store", "error", err)
		os.Exit(1)
	}
	logger.Info("blob store connected", "bucket", cfg.S3Bucket)

	// Create components
	registry := mailbox.NewRegistry(store, cfg.MaxMessages, logger)
	pipeline := ingest.NewPipeline(blobs, cfg.MaxParseBytes, logger)
	dispatcher := ingest.NewDispatcher(logger)
	h := handlers.New(cfg, registry, blobs, pipeline, dispatcher, logger)

	// Set up router
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Mount("/", h.Router())

	srv := &http.Server{
		Addr:         cfg.Address(),
		Handler:      r,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("listening", "addr", cfg.Address())
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan
	logger.Info("shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", "error", err)
	}
	if err := dispatcher.Drain(shutdownCtx); err != nil {
		logger.Warn("background ingest drain timed out", "error", err)
	}
	registry.Close()

	logger.Info("server stopped")
}

func setupLogger(level, format string) *slog.Logger {
	logLevel := parseLevel(level)

	var handler slog.Handler
	if format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: logLevel,
		})
	} else {
		// Pretty colored output for console
		handler = tint.NewHandler(os.Stdout, &tint.Options{
			Level:      logLevel,
			TimeFormat: time.DateTime,
		})
	}

	return slog.New(handler)
}

func parseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
