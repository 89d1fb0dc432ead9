package main

// Package main is the offline knowledge-base indexer. It reads a JSON
// file of pre-parsed knowledge chunks, embeds the assembled entries and
// writes the paired index and metadata files the server loads at boot.
//
// Re-running the indexer after changing the embedding model is the only
// supported way to migrate the index; the server refuses to serve an
// index built by a different model.

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/audit"
	"github.com/logtriage/logtriage-ai/internal/config"
	"github.com/logtriage/logtriage-ai/internal/embedding"
	"github.com/logtriage/logtriage-ai/internal/logging"
	"github.com/logtriage/logtriage-ai/internal/models"
	"github.com/logtriage/logtriage-ai/internal/retrieval"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "logtriage-indexer: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/logtriage/config.yaml", "path to the YAML config file")
	chunksPath := flag.String("chunks", "", "path to the knowledge chunks JSON file (required)")
	flag.Parse()

	if *chunksPath == "" {
		return fmt.Errorf("-chunks is required")
	}

	_ = godotenv.Load()

	ctx := context.Background()
	mgr, err := config.NewConfigManager(*configPath)
	if err != nil {
		return err
	}
	if err := mgr.Load(ctx); err != nil {
		return err
	}
	if err := mgr.Validate(ctx); err != nil {
		return err
	}
	cfg := mgr.Get(ctx)

	logger, err := logging.New(&logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	raw, err := os.ReadFile(*chunksPath)
	if err != nil {
		return fmt.Errorf("read chunks file: %w", err)
	}
	var chunks []models.KnowledgeChunk
	if err := json.Unmarshal(raw, &chunks); err != nil {
		return fmt.Errorf("parse chunks file: %w", err)
	}
	if len(chunks) == 0 {
		return fmt.Errorf("chunks file %q holds no chunks", *chunksPath)
	}
	logger.Info("chunks loaded", zap.Int("chunks", len(chunks)))

	embedder, err := embedding.NewClient(&embedding.Config{
		Provider:       cfg.Embedding.Provider,
		BaseURL:        cfg.Embedding.BaseURL,
		APIKey:         cfg.Embedding.APIKey,
		Model:          cfg.Embedding.Model,
		Dimension:      cfg.Embedding.Dimension,
		TimeoutSeconds: cfg.Embedding.TimeoutSeconds,
	})
	if err != nil {
		return fmt.Errorf("build embedding client: %w", err)
	}

	engine := retrieval.NewEngine(retrieval.Config{
		Enabled:             true,
		IndexPath:           cfg.Retrieval.IndexPath,
		MetadataPath:        cfg.Retrieval.MetadataPath,
		TopK:                cfg.Retrieval.TopK,
		TopN:                cfg.Retrieval.TopN,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		CacheTTL:            time.Duration(cfg.Retrieval.CacheTTLSeconds) * time.Second,
	}, embedder, logger)

	start := time.Now()
	if err := engine.BuildFromChunks(ctx, chunks); err != nil {
		return fmt.Errorf("build index: %w", err)
	}
	if err := engine.Save(); err != nil {
		return fmt.Errorf("save index: %w", err)
	}

	if cfg.Audit.Enabled {
		if auditor, aerr := audit.NewLogger(&audit.Config{Path: cfg.Audit.Path}); aerr == nil {
			_ = auditor.LogIndexRebuilt(ctx, engine.Size(), cfg.Embedding.Model)
			_ = auditor.Close()
		}
	}

	logger.Info("knowledge index written",
		zap.Int("entries", engine.Size()),
		zap.String("index", cfg.Retrieval.IndexPath),
		zap.String("metadata", cfg.Retrieval.MetadataPath),
		zap.String("model", cfg.Embedding.Model),
		zap.Duration("took", time.Since(start)))
	return nil
}
