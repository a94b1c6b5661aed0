package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kriskris-27/Money-Stories-Finserve/internal/api"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/config"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/jobs"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/oracle"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/pdfdoc"
	"github.com/kriskris-27/Money-Stories-Finserve/internal/pipeline"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize clients.
	client := oracle.NewClient(oracle.Config{
		APIKey: cfg.AnthropicAPIKey,
		Model:  cfg.AnthropicModel,
	}, log)

	// Initialize pipeline and worker pool.
	extractor := pipeline.New(client, log, pipeline.Variant(cfg.PipelineVariant))
	raster := pdfdoc.NewExecRasterizer(cfg.RasterizerBinary, cfg.MaxConcurrentRenders)
	worker := jobs.NewWorker(extractor, &pdfdoc.Reader{}, raster, log, cfg.MaxPages)
	orch := jobs.NewOrchestrator(cfg, worker, log)
	orch.Start(ctx)

	// Initialize HTTP server.
	srv := api.NewServer(orch, client, log, cfg)

	httpServer := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      srv,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")

		// Drain HTTP first: handlers can submit jobs right up until
		// Shutdown returns, and Stop closes the queue they submit into.
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		client.Close()
	}()

	log.Info("starting statement service", "port", cfg.Port, "variant", cfg.PipelineVariant)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
