package main

// Package main is the entry point for the logtriage-ai server.
//
// Responsibilities:
//   - Load and validate configuration from YAML and environment variables
//   - Build the embedding client, LLM adapter, retrieval engine,
//     clustering stage, log-query agent and diagnosis orchestrator
//   - Open the SQLite alert store and run pending migrations
//   - Start the periodic cluster-refit job
//   - Serve the ingestion/lookup REST API, the WebSocket progress stream
//     and the Prometheus metrics endpoint
//   - Shut down gracefully on SIGINT/SIGTERM
//
// Persisted model state (knowledge index, cluster model) is loaded at
// startup when present; a missing or incompatible knowledge index
// disables retrieval for the process lifetime rather than serving
// results from the wrong embedding space.

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/agent"
	"github.com/logtriage/logtriage-ai/internal/audit"
	"github.com/logtriage/logtriage-ai/internal/clustering"
	"github.com/logtriage/logtriage-ai/internal/config"
	"github.com/logtriage/logtriage-ai/internal/db"
	"github.com/logtriage/logtriage-ai/internal/diagnose"
	"github.com/logtriage/logtriage-ai/internal/embedding"
	"github.com/logtriage/logtriage-ai/internal/jobs"
	"github.com/logtriage/logtriage-ai/internal/llm/adapter"
	"github.com/logtriage/logtriage-ai/internal/logging"
	"github.com/logtriage/logtriage-ai/internal/logstore"
	"github.com/logtriage/logtriage-ai/internal/retrieval"
	"github.com/logtriage/logtriage-ai/internal/server"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "logtriage-ai: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "/etc/logtriage/config.yaml", "path to the YAML config file")
	flag.Parse()

	// Local development convenience; absence of a .env file is fine.
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
		Level:    cfg.Logging.Level,
		Format:   cfg.Logging.Format,
		FilePath: cfg.Logging.FilePath,
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	var auditor audit.Logger
	if cfg.Audit.Enabled {
		auditor, err = audit.NewLogger(&audit.Config{Path: cfg.Audit.Path})
		if err != nil {
			return fmt.Errorf("open audit trail: %w", err)
		}
		defer auditor.Close()
	}

	store, err := db.NewSQLiteStore(cfg.Database.SQLitePath)
	if err != nil {
		return fmt.Errorf("open alert store: %w", err)
	}
	defer store.Close()

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

	llm, err := adapter.New(adapter.Config{
		Provider:       cfg.LLM.Provider,
		BaseURL:        cfg.LLM.BaseURL,
		APIKey:         cfg.LLM.APIKey,
		Model:          cfg.LLM.Model,
		TimeoutSeconds: cfg.LLM.TimeoutSeconds,
		MaxRetries:     cfg.LLM.MaxRetries,
	}, logger)
	if err != nil {
		return fmt.Errorf("build llm adapter: %w", err)
	}

	engine := retrieval.NewEngine(retrieval.Config{
		Enabled:             cfg.Retrieval.Enabled,
		IndexPath:           cfg.Retrieval.IndexPath,
		MetadataPath:        cfg.Retrieval.MetadataPath,
		TopK:                cfg.Retrieval.TopK,
		TopN:                cfg.Retrieval.TopN,
		SimilarityThreshold: cfg.Retrieval.SimilarityThreshold,
		CacheTTL:            time.Duration(cfg.Retrieval.CacheTTLSeconds) * time.Second,
	}, embedder, logger)
	if cfg.Retrieval.Enabled {
		if err := engine.Load(); err != nil {
			logger.Warn("knowledge index unavailable, retrieval disabled", zap.Error(err))
		}
	}

	stage, err := clustering.NewStage(clustering.Config{
		Algorithm:            cfg.Clustering.Algorithm,
		ModelPath:            cfg.Clustering.ModelPath,
		TailChars:            cfg.Clustering.TailChars,
		EpsilonDBSCAN:        cfg.Clustering.EpsilonDBSCAN,
		MinSamplesDBSCAN:     cfg.Clustering.MinSamplesDBSCAN,
		DistanceThresholdAgg: cfg.Clustering.DistanceThresholdAgg,
		AssignThreshold:      cfg.Clustering.AssignThreshold,
	}, embedder, logger)
	if err != nil {
		return fmt.Errorf("build clustering stage: %w", err)
	}
	if err := stage.Load(); err != nil {
		logger.Info("no usable cluster model, starting fresh", zap.Error(err))
	}

	lokiClient := logstore.NewClient(
		cfg.LogStore.BaseURL,
		time.Duration(cfg.LogStore.TimeoutSeconds)*time.Second,
		logger,
	)
	logAgent := agent.New(llm, agent.NewTools(lokiClient, logger), logger)

	orch := diagnose.NewOrchestrator(
		diagnose.NewGenerator(llm, logger),
		engine,
		logAgent,
		stage,
		store,
		diagnose.Config{
			MaxConcurrent: cfg.Orchestrator.MaxConcurrent,
			AlertTimeout:  time.Duration(cfg.Orchestrator.AlertTimeoutSeconds) * time.Second,
		},
		logger,
	)

	scheduler, err := jobs.NewScheduler(store, stage, jobs.Config{
		Interval: time.Duration(cfg.Clustering.RefitIntervalHours) * time.Hour,
	}, logger)
	if err != nil {
		return fmt.Errorf("build scheduler: %w", err)
	}
	if err := scheduler.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}

	srv := server.NewServer(server.Config{
		Port:            cfg.Server.Port,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		IngestPerMinute: cfg.Server.IngestPerMinute,
	}, store, orch, logger)
	orch.SetObserver(srv.Hub().NotifyTransition)
	if auditor != nil {
		srv.SetAuditor(auditor)
		orch.SetAuditor(auditor)
		_ = auditor.Log(ctx, audit.NewEvent(audit.EventServerStarted))
	}

	if err := srv.Start(); err != nil {
		return fmt.Errorf("start server: %w", err)
	}
	logger.Info("logtriage-ai started",
		zap.Int("port", cfg.Server.Port),
		zap.String("llm_provider", cfg.LLM.Provider),
		zap.String("llm_model", cfg.LLM.Model),
		zap.Bool("retrieval", engine.Enabled()),
		zap.String("clustering", cfg.Clustering.Algorithm))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))

	if err := srv.Stop(); err != nil {
		logger.Warn("server stop", zap.Error(err))
	}
	if err := scheduler.Stop(); err != nil {
		logger.Warn("scheduler stop", zap.Error(err))
	}
	if auditor != nil {
		_ = auditor.Log(ctx, audit.NewEvent(audit.EventServerShutdown))
	}
	return nil
}
