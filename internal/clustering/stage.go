package clustering

// Package clustering deduplicates failure logs before any model call.
// Logs are embedded on their tail characters, where Ansible failure text
// carries its most discriminating content, and grouped by one of three
// algorithms. A fitted model persists as a single gob blob; the hot path
// for a newly arriving log is predict-only against cluster centroids.

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/embedding"
	"github.com/logtriage/logtriage-ai/internal/metrics"
	"github.com/logtriage/logtriage-ai/internal/vecmath"
)

// Config holds clustering stage settings.
type Config struct {
	Algorithm            string
	ModelPath            string
	TailChars            int
	EpsilonDBSCAN        float64
	MinSamplesDBSCAN     int
	DistanceThresholdAgg float64
	AssignThreshold      float64
}

// Stage owns the fitted model and the fit/assign paths. Assign is safe
// for concurrent use; Fit swaps the model under a write lock.
type Stage struct {
	cfg    Config
	client embedding.Client
	logger *zap.Logger

	mu    sync.RWMutex
	model *Model
}

// NewStage validates the configured algorithm and creates the stage. An
// unknown algorithm name fails here, at startup, not on the first fit.
func NewStage(cfg Config, client embedding.Client, logger *zap.Logger) (*Stage, error) {
	switch cfg.Algorithm {
	case "dbscan", "meanshift", "agglomerative":
	default:
		return nil, fmt.Errorf("unsupported clustering algorithm %q: choose dbscan, meanshift or agglomerative", cfg.Algorithm)
	}
	if cfg.TailChars <= 0 {
		cfg.TailChars = 50
	}
	return &Stage{cfg: cfg, client: client, logger: logger.Named("clustering")}, nil
}

// tail returns the last TailChars runes of the log.
func (s *Stage) tail(log string) string {
	runes := []rune(log)
	if len(runes) <= s.cfg.TailChars {
		return log
	}
	return string(runes[len(runes)-s.cfg.TailChars:])
}

func (s *Stage) embedTails(ctx context.Context, logs []string) ([][]float32, error) {
	tails := make([]string, len(logs))
	for i, log := range logs {
		tails[i] = s.tail(log)
	}
	return s.client.EmbedDocuments(ctx, tails)
}

// Fit clusters a batch of logs, replaces the in-memory model and
// persists it. Returned labels align with the input order. DBSCAN noise
// points each get a fresh singleton id; no caller ever sees the noise
// sentinel.
func (s *Stage) Fit(ctx context.Context, logs []string) ([]string, error) {
	if len(logs) == 0 {
		return nil, nil
	}

	vectors, err := s.embedTails(ctx, logs)
	if err != nil {
		metrics.ClusterRefitsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("embed logs for clustering: %w", err)
	}

	labels, err := runAlgorithm(s.cfg.Algorithm, vectors, s.cfg)
	if err != nil {
		metrics.ClusterRefitsTotal.WithLabelValues("error").Inc()
		return nil, err
	}
	labels = promoteNoise(labels)

	model := s.buildModel(labels, vectors)
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()

	if err := SaveModel(model, s.cfg.ModelPath); err != nil {
		metrics.ClusterRefitsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("persist cluster model: %w", err)
	}
	metrics.ClusterRefitsTotal.WithLabelValues("success").Inc()

	out := make([]string, len(labels))
	for i, label := range labels {
		out[i] = strconv.Itoa(label)
	}
	s.logger.Info("cluster model fitted",
		zap.String("algorithm", s.cfg.Algorithm),
		zap.Int("logs", len(logs)),
		zap.Int("clusters", len(model.Centroids)))
	return out, nil
}

// promoteNoise rewrites each Noise label to its own fresh cluster id
// above the current maximum.
func promoteNoise(labels []int) []int {
	next := 0
	for _, l := range labels {
		if l >= next {
			next = l + 1
		}
	}
	for i, l := range labels {
		if l == Noise {
			labels[i] = next
			next++
		}
	}
	return labels
}

// buildModel computes one normalized centroid per cluster label.
func (s *Stage) buildModel(labels []int, vectors [][]float32) *Model {
	byLabel := make(map[int][][]float32)
	maxLabel := 0
	for i, label := range labels {
		byLabel[label] = append(byLabel[label], vectors[i])
		if label > maxLabel {
			maxLabel = label
		}
	}

	centroids := make([]Centroid, 0, len(byLabel))
	for label := 0; label <= maxLabel; label++ {
		members, ok := byLabel[label]
		if !ok {
			continue
		}
		centroids = append(centroids, Centroid{
			ID:     strconv.Itoa(label),
			Vector: vecmath.Normalize(vecmath.Mean(members)),
		})
	}

	return &Model{
		Algorithm:       s.cfg.Algorithm,
		EmbedModel:      s.client.ModelName(),
		TailChars:       s.cfg.TailChars,
		AssignThreshold: s.cfg.AssignThreshold,
		Centroids:       centroids,
		NextID:          maxLabel + 1,
		TrainedAt:       time.Now().UTC(),
	}
}

// Load reads the persisted model into memory. Missing models are not an
// error worth failing startup over; Assign starts fresh.
func (s *Stage) Load() error {
	model, err := LoadModel(s.cfg.ModelPath)
	if err != nil {
		return err
	}
	if model.EmbedModel != s.client.ModelName() {
		return fmt.Errorf("cluster model trained with embedding model %q, configured model is %q",
			model.EmbedModel, s.client.ModelName())
	}
	s.mu.Lock()
	s.model = model
	s.mu.Unlock()
	s.logger.Info("cluster model loaded",
		zap.String("algorithm", model.Algorithm),
		zap.Int("centroids", len(model.Centroids)),
		zap.Time("trained_at", model.TrainedAt))
	return nil
}

// Assign returns the cluster id for one new log without refitting. The
// log joins the nearest centroid when close enough; otherwise it founds
// a new cluster whose centroid is the log's own vector, so near-identical
// followers land in it too.
func (s *Stage) Assign(ctx context.Context, log string) (string, error) {
	vectors, err := s.embedTails(ctx, []string{log})
	if err != nil {
		return "", fmt.Errorf("embed log for cluster assignment: %w", err)
	}
	vector := vectors[0]

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.model == nil {
		s.model = &Model{
			Algorithm:       s.cfg.Algorithm,
			EmbedModel:      s.client.ModelName(),
			TailChars:       s.cfg.TailChars,
			AssignThreshold: s.cfg.AssignThreshold,
			TrainedAt:       time.Now().UTC(),
		}
	}

	if id, distance, ok := s.model.Predict(vector); ok {
		metrics.ClusterPredictionsTotal.WithLabelValues("assigned").Inc()
		s.logger.Debug("log assigned to existing cluster",
			zap.String("cluster_id", id),
			zap.Float64("distance", distance))
		return id, nil
	}

	id := strconv.Itoa(s.model.NextID)
	s.model.NextID++
	s.model.Centroids = append(s.model.Centroids, Centroid{ID: id, Vector: vector})
	metrics.ClusterPredictionsTotal.WithLabelValues("new").Inc()
	s.logger.Debug("log founded a new cluster", zap.String("cluster_id", id))
	return id, nil
}
