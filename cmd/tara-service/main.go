// main package for the tara-service
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/book-expert/logger"
	"github.com/book-expert/tara-service/internal/bootstrap"
	"github.com/book-expert/tara-service/internal/config"
	"github.com/book-expert/tara-service/internal/httpapi"
	"github.com/book-expert/tara-service/internal/metrics"
	"github.com/book-expert/tara-service/internal/objectstore"
	"github.com/book-expert/tara-service/internal/pipeline"
	"github.com/book-expert/tara-service/internal/worker"
	"github.com/nats-io/nats.go"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func setupLogger(logPath string) (*logger.Logger, error) {
	log, err := logger.New(logPath, "tara-service.log")
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return log, nil
}

func run() error {
	// 1. Create a temporary logger for the bootstrap process
	bootstrapLog, err := setupLogger(os.TempDir())
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: Failed to create bootstrap logger: %v\n", err)

		return err
	}

	bootstrapLog.Info("Bootstrap logger created.")

	// 2. Load configuration using the central configurator
	cfg, err := config.Load(bootstrapLog)
	if err != nil {
		bootstrapLog.Error("Failed to load configuration: %v", err)

		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 3. Initialize the final logger based on the loaded configuration
	finalLog, err := setupLogger(cfg.Paths.BaseLogsDir)
	if err != nil {
		bootstrapLog.Error("Failed to create final logger: %v", err)

		return fmt.Errorf("failed to create final logger: %w", err)
	}

	defer func() {
		closeErr := finalLog.Close()
		if closeErr != nil {
			fmt.Fprintf(os.Stderr, "error closing final logger: %v\n", closeErr)
		}
	}()

	// 4. Assemble the pipeline
	metrics.Register()

	adapters, err := bootstrap.NewAdapters(cfg, finalLog)
	if err != nil {
		finalLog.Error("Failed to create adapters: %v", err)

		return err
	}

	orchestrator := bootstrap.NewOrchestrator(cfg, adapters, finalLog)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errChan := make(chan error, 2)

	// 5. Start the shells
	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           httpapi.NewServer(orchestrator, finalLog).Router(),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	go func() {
		serveErr := httpServer.ListenAndServe()
		if serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- fmt.Errorf("http server failed: %w", serveErr)
		}
	}()

	finalLog.System("Tara-Service listening for HTTP on %s", cfg.HTTP.Addr)

	if cfg.NATS.Enabled() {
		natsConnection, natsErr := startWorker(ctx, cfg, orchestrator, finalLog, errChan)
		if natsErr != nil {
			return natsErr
		}
		defer natsConnection.Close()
	}

	select {
	case <-ctx.Done():
		finalLog.System("Shutdown signal received.")
	case err = <-errChan:
		finalLog.Error("Service failed: %v", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	orchestrator.CancelSynthesis()

	shutdownErr := httpServer.Shutdown(shutdownCtx)
	if shutdownErr != nil {
		finalLog.Warn("HTTP shutdown: %v", shutdownErr)
	}

	return err
}

func startWorker(
	ctx context.Context,
	cfg *config.Config,
	orchestrator *pipeline.Orchestrator,
	log *logger.Logger,
	errChan chan<- error,
) (*nats.Conn, error) {
	natsConnection, err := nats.Connect(cfg.NATS.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS at %s: %w", cfg.NATS.URL, err)
	}

	jetstreamContext, err := natsConnection.JetStream()
	if err != nil {
		natsConnection.Close()

		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	imageStore, err := objectstore.New(jetstreamContext, bootstrap.ImageBucketConfig(cfg))
	if err != nil {
		natsConnection.Close()

		return nil, err
	}

	audioStore, err := objectstore.New(jetstreamContext, bootstrap.AudioBucketConfig(cfg))
	if err != nil {
		natsConnection.Close()

		return nil, err
	}

	natsWorker := worker.NewNatsWorker(natsConnection, worker.Subjects{
		ImageUploaded:    cfg.NATS.ImageUploadedSubject,
		SummaryRequested: cfg.NATS.SummaryRequestedSubject,
	}, imageStore, audioStore, orchestrator, log)

	go func() {
		runErr := natsWorker.Run(ctx)
		if runErr != nil {
			errChan <- runErr
		}
	}()

	log.System("Listening for jobs on subjects %s and %s (buckets %s, %s)",
		cfg.NATS.ImageUploadedSubject, cfg.NATS.SummaryRequestedSubject, imageStore.Bucket(), audioStore.Bucket())

	return natsConnection, nil
}

func main() {
	err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Service exited with error: %v\n", err)
		os.Exit(1)
	}
}
