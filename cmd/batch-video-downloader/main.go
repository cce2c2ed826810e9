package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"batch-video-downloader/internal/batch"
	"batch-video-downloader/internal/cleanup"
	"batch-video-downloader/internal/config"
	"batch-video-downloader/internal/delivery"
	"batch-video-downloader/internal/hls"
	"batch-video-downloader/internal/resolver"
	"batch-video-downloader/internal/web"
	"batch-video-downloader/internal/ytdlp"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Setup structured logging
	setupLogging(cfg.LogLevel)

	slog.Info("Starting Batch Video Downloader", "version", "1.0.0")

	if err := os.MkdirAll(cfg.BaseDownloadsPath, 0o755); err != nil {
		return fmt.Errorf("failed to create downloads directory: %w", err)
	}
	if err := os.MkdirAll(cfg.DeliveryPath, 0o755); err != nil {
		return fmt.Errorf("failed to create delivery directory: %w", err)
	}

	// Platform resolver chain, first match wins
	chain := resolver.NewChain(
		resolver.NewUtkarsh(cfg.UtkarshAPIURL),
		resolver.NewDrive(),
		resolver.NewVisionIAS(),
		resolver.NewClassplus(cfg.ClassplusAPIURL, cfg.ClassplusToken),
		resolver.NewMPDRewrite(cfg.MPDCDNHost),
		resolver.NewPassthrough(),
	)

	fetcher := hls.NewFetcher(resolver.BrowserUserAgent)
	executor := ytdlp.NewExecutor(cfg.YtdlpPath, cfg.DownloadTimeout, cfg.FileWaitTimeout)

	hook := delivery.NewWebhook(cfg.NotifyWebhookURL, cfg.AdminUserID)
	store := delivery.NewFileStore(cfg.DeliveryPath)

	sweeper := cleanup.NewService(cfg.BaseDownloadsPath)

	registry := batch.NewRegistry()
	processor := batch.NewProcessor(chain, executor, fetcher, hook, store, registry)
	service := batch.NewService(processor, registry, hook, sweeper, cfg.BaseDownloadsPath, cfg.MaxConcurrentBatches, ytdlp.TerminateAll)

	server := web.NewServer(cfg, service, registry)

	return runServer(server, service, sweeper, hook)
}

func runServer(server *web.Server, service *batch.Service, sweeper *cleanup.Service, admin batch.AdminNotifier) error {
	// Create main context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Sweep the working area hourly for files abandoned by killed runs
	go sweeper.Run(ctx, time.Hour, 2*time.Hour)

	// Start server in goroutine
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-serverErr:
		return fmt.Errorf("server failed to start: %w", err)
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig.String())
	}

	notifyCtx, notifyCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := admin.NotifyAdmin(notifyCtx, "Service shutting down, stopping all batches"); err != nil {
		slog.Warn("Failed to notify admin of shutdown", "error", err)
	}
	notifyCancel()

	// Stop the sweeper and signal every batch
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := service.Shutdown(shutdownCtx); err != nil {
		slog.Error("Batch service shutdown incomplete", "error", err)
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shutdown server gracefully: %w", err)
	}

	slog.Info("Server shutdown complete")
	return nil
}

// setupLogging configures structured logging based on the log level
func setupLogging(level string) {
	var logLevel slog.Level
	switch level {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}

	handler := slog.NewTextHandler(os.Stdout, opts)
	logger := slog.New(handler)
	slog.SetDefault(logger)
}
