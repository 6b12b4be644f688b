package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/pitlane/f1gpt/internal/app"
	"github.com/pitlane/f1gpt/internal/config"
	"github.com/pitlane/f1gpt/internal/ingest"
)

// runIngest runs the corpus ingestion batch job.
func runIngest() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err = cfg.ValidateServe(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	logger := slog.Default()

	a, err := app.Setup(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("initializing application: %w", err)
	}
	defer func() {
		if closeErr := a.Close(); closeErr != nil {
			logger.Warn("shutdown error", "error", closeErr)
		}
	}()

	scraper, err := ingest.NewScraper()
	if err != nil {
		return fmt.Errorf("creating scraper: %w", err)
	}

	pipeline, err := ingest.New(ingest.Config{
		Fetcher:      scraper,
		Embedder:     a.Embedding,
		Store:        a.VectorStore,
		Logger:       logger,
		Collection:   cfg.Collection,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})
	if err != nil {
		return fmt.Errorf("creating ingestion pipeline: %w", err)
	}

	sources := cfg.Sources
	if len(sources) == 0 {
		sources = ingest.DefaultSources
	}

	res, err := pipeline.Run(ctx, sources)
	if err != nil {
		return fmt.Errorf("running ingestion: %w", err)
	}
	if res.Failed > 0 {
		logger.Warn("ingestion completed with failures",
			"failed", res.Failed, "sources", res.Sources)
	}

	fmt.Printf("Ingested %d chunks from %d sources (%d failed)\n",
		res.Chunks, res.Sources, res.Failed)
	return nil
}
