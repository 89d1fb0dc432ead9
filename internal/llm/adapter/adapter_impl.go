package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/llm/provider/ollama"
	"github.com/logtriage/logtriage-ai/internal/llm/provider/openaicompat"
	"github.com/logtriage/logtriage-ai/internal/llm/types"
	"github.com/logtriage/logtriage-ai/internal/metrics"
)

// Config holds LLM provider configuration.
type Config struct {
	Provider       string // "openai_compat" | "ollama"
	BaseURL        string
	APIKey         string
	Model          string
	TimeoutSeconds int
	MaxRetries     int
}

// providerClient is what a provider package must implement.
type providerClient interface {
	CompleteStructured(ctx context.Context, messages []types.Message, schema types.Schema) (json.RawMessage, *types.TokenUsage, error)
}

// adapterImpl wraps a provider client with retries, metrics and logging.
type adapterImpl struct {
	provider   string
	model      string
	client     providerClient
	maxRetries int
	backoff    time.Duration
	logger     *zap.Logger
}

// New creates an adapter for the configured provider. An unknown
// provider name is a configuration error.
func New(cfg Config, logger *zap.Logger) (Adapter, error) {
	if cfg.Model == "" {
		return nil, fmt.Errorf("llm model is required")
	}

	var client providerClient
	switch cfg.Provider {
	case "openai_compat":
		client = openaicompat.NewClient(cfg.BaseURL, cfg.APIKey, cfg.Model, time.Duration(cfg.TimeoutSeconds)*time.Second)
	case "ollama":
		client = ollama.NewClient(cfg.BaseURL, cfg.Model, time.Duration(cfg.TimeoutSeconds)*time.Second)
	default:
		return nil, fmt.Errorf("unsupported llm provider: %s", cfg.Provider)
	}

	retries := cfg.MaxRetries
	if retries < 0 {
		retries = 0
	}
	return &adapterImpl{
		provider:   cfg.Provider,
		model:      cfg.Model,
		client:     client,
		maxRetries: retries,
		backoff:    time.Second,
		logger:     logger.Named("llm"),
	}, nil
}

func (a *adapterImpl) ModelName() string { return a.model }

// CompleteStructured calls the provider, retrying transport failures
// with linear backoff. Each attempt is its own metric sample.
func (a *adapterImpl) CompleteStructured(ctx context.Context, step string, messages []types.Message, schema types.Schema) (json.RawMessage, error) {
	var lastErr error
	for attempt := 0; attempt <= a.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Duration(attempt) * a.backoff):
			}
			a.logger.Warn("retrying llm request",
				zap.String("step", step),
				zap.Int("attempt", attempt),
				zap.Error(lastErr))
		}

		start := time.Now()
		raw, usage, err := a.client.CompleteStructured(ctx, messages, schema)
		metrics.LLMRequestDuration.WithLabelValues(a.provider, a.model).Observe(time.Since(start).Seconds())

		if err != nil {
			metrics.LLMRequestsTotal.WithLabelValues(a.provider, a.model, step, "error").Inc()
			lastErr = err
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			continue
		}

		if !json.Valid(raw) {
			metrics.LLMRequestsTotal.WithLabelValues(a.provider, a.model, step, "invalid").Inc()
			metrics.SchemaViolationsTotal.WithLabelValues(step).Inc()
			lastErr = fmt.Errorf("provider returned non-JSON content for schema %q", schema.Name)
			continue
		}

		metrics.LLMRequestsTotal.WithLabelValues(a.provider, a.model, step, "success").Inc()
		if usage != nil {
			metrics.LLMTokensTotal.WithLabelValues(a.provider, a.model, "prompt").Add(float64(usage.PromptTokens))
			metrics.LLMTokensTotal.WithLabelValues(a.provider, a.model, "completion").Add(float64(usage.CompletionTokens))
		}
		return raw, nil
	}
	return nil, fmt.Errorf("llm %s after %d attempts: %w", step, a.maxRetries+1, lastErr)
}
