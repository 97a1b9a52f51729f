package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joseph-ayodele/envelope-ocr/internal/app"
	"github.com/joseph-ayodele/envelope-ocr/internal/common"
	"github.com/joseph-ayodele/envelope-ocr/internal/core/async"
	"github.com/joseph-ayodele/envelope-ocr/internal/core/ocr"
	"github.com/joseph-ayodele/envelope-ocr/internal/ingest"
	"github.com/joseph-ayodele/envelope-ocr/internal/server"
)

func main() {
	if err := common.LoadDotEnv(); err != nil {
		os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stdout)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ocr.Probe(ctx, app.OCRConfig(cfg.OCR), logger)

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build processor", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if err := a.Health(ctx); err != nil {
		logger.Error("failed to ping database", "error", err)
		os.Exit(1)
	}

	// every boundary goes through the same queue so report writes stay serialized
	queue := async.NewProcessorQueue(a.Processor, logger,
		async.WithWorkers(cfg.Queue.Workers),
		async.WithQueueSize(cfg.Queue.Size),
		async.WithProcessTimeout(cfg.Queue.ProcessTimeout),
	)

	httpSrv := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           server.NewHTTPHandler(queue, cfg.Limits.MaxBodyBytes, a.Health, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Info("http listening", "addr", cfg.Server.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http serve failed", "error", err)
			stop()
		}
	}()

	grpcServer, healthServer, err := server.NewGRPCServer(queue, cfg.Limits.MaxBodyBytes, logger)
	if err != nil {
		logger.Error("failed to build grpc server", "error", err)
		os.Exit(1)
	}
	lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
	if err != nil {
		logger.Error("failed to listen on address", "addr", cfg.Server.GRPCAddr, "error", err)
		os.Exit(1)
	}
	go func() {
		logger.Info("grpc listening", "addr", cfg.Server.GRPCAddr)
		if err := grpcServer.Serve(lis); err != nil {
			logger.Error("grpc serve failed", "error", err)
			stop()
		}
	}()

	if len(cfg.Watch.Dirs) > 0 {
		go func() {
			wc := ingest.WatchConfig{Roots: cfg.Watch.Dirs, InitialScan: true, Debounce: cfg.Watch.Debounce}
			if err := ingest.Watch(ctx, wc, queue, ingest.NewSeen(), logger); err != nil {
				logger.Error("inbox watcher stopped", "error", err)
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutting down")
	healthServer.Shutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}
	grpcServer.GracefulStop()
	queue.Shutdown(shutdownCtx)
	logger.Info("stopped")
}
