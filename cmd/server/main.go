package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/geraldbahati/unbowed/internal/api"
	"github.com/geraldbahati/unbowed/internal/config"
	"github.com/geraldbahati/unbowed/internal/index"
	"github.com/geraldbahati/unbowed/internal/pipeline"
	"github.com/geraldbahati/unbowed/internal/stats"
	"github.com/joho/godotenv"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Error("failed to load .env", "error", err)
		os.Exit(1)
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rec := stats.NewRecorder(time.Hour)
	opts, err := pipeline.OptionsFromConfig(cfg, rec, log)
	if err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}
	reader := pipeline.NewReader(log, opts)

	// The index sink is optional.
	var idx *index.Client
	if cfg.IndexURL != "" {
		idx = index.NewClient(cfg.IndexURL, cfg.IndexAPIKey)
	} else {
		log.Info("INDEX_URL not set, chunks stay in memory")
	}

	orch := pipeline.NewOrchestrator(cfg, reader, idx, rec, log)
	orch.Start(ctx)

	srv := api.NewServer(orch, log, cfg)

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

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		httpServer.Shutdown(shutdownCtx)

		orch.Stop()
		if idx != nil {
			idx.Close()
		}
	}()

	log.Info("starting unbowed", "port", cfg.Port, "workers", cfg.WorkerCount)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
