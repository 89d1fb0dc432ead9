// Package server exposes the diagnosis pipeline over HTTP: alert
// ingestion, alert lookup, category aggregates, health probes, Prometheus
// metrics and a WebSocket progress stream.
package server

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/audit"
	"github.com/logtriage/logtriage-ai/internal/db"
	"github.com/logtriage/logtriage-ai/internal/middleware"
	"github.com/logtriage/logtriage-ai/internal/models"
)

// Diagnoser runs alerts through the diagnosis pipeline.
type Diagnoser interface {
	ProcessAlert(ctx context.Context, alert *models.Alert) error
	ProcessBatch(ctx context.Context, alerts []*models.Alert) error
}

// Server is the HTTP front of logtriage-ai.
type Server struct {
	config    Config
	store     db.Store
	diagnoser Diagnoser
	hub       *Hub
	limiter   *middleware.RateLimiter
	auditor   audit.Logger
	logger    *zap.Logger

	httpServer *http.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	running bool
}

// NewServer wires the HTTP layer. The diagnoser may be nil, in which
// case ingested alerts are stored but not diagnosed; that mode exists
// for the indexer and for tests.
func NewServer(cfg Config, store db.Store, diagnoser Diagnoser, logger *zap.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	cfg = cfg.withDefaults()
	return &Server{
		config:    cfg,
		store:     store,
		diagnoser: diagnoser,
		hub:       NewHub(logger),
		limiter:   middleware.NewRateLimiter(cfg.IngestPerMinute),
		logger:    logger.Named("server"),
		ctx:       ctx,
		cancel:    cancel,
	}
}

// SetAuditor attaches an audit trail. Nil (the default) disables auditing.
func (s *Server) SetAuditor(a audit.Logger) { s.auditor = a }

// Hub exposes the progress hub so the orchestrator's observer can be
// pointed at it during wiring.
func (s *Server) Hub() *Hub { return s.hub }

// Start begins serving. Non-blocking; use Stop for graceful shutdown.
func (s *Server) Start() error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is already running")
	}
	s.running = true
	s.mu.Unlock()

	mux := http.NewServeMux()
	s.registerHandlers(mux)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", s.config.Host, s.config.Port),
		Handler:      mux,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Info("http server listening", zap.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("http server failed", zap.Error(err))
		}
	}()
	return nil
}

// Stop gracefully stops the server and waits for in-flight diagnoses.
func (s *Server) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return fmt.Errorf("server is not running")
	}
	s.running = false
	s.mu.Unlock()

	if s.httpServer != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn("http shutdown incomplete", zap.Error(err))
		}
	}

	s.cancel()
	s.wg.Wait()
	s.hub.Close()
	s.limiter.Stop()
	return nil
}

func (s *Server) registerHandlers(mux *http.ServeMux) {
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)

	mux.HandleFunc("/api/v1/alerts", s.limitIngest(s.handleAlerts))
	mux.HandleFunc("/api/v1/alerts/", s.handleAlertByID)
	mux.HandleFunc("/api/v1/alerts/batch", s.limitIngest(s.handleAlertBatch))
	mux.HandleFunc("/api/v1/categories", s.handleCategories)

	mux.HandleFunc("/ws/progress", s.handleProgressWS)

	mux.Handle("/metrics", promhttp.Handler())
}

// limitIngest rate-limits ingestion writes. Reads on the same path are
// never throttled.
func (s *Server) limitIngest(next http.HandlerFunc) http.HandlerFunc {
	limited := s.limiter.Wrap(next)
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			limited(w, r)
			return
		}
		next(w, r)
	}
}
