package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/logtriage/logtriage-ai/internal/metrics"
	"github.com/logtriage/logtriage-ai/internal/vecmath"
)

// ollamaClient embeds through a local Ollama instance via /api/embed.
type ollamaClient struct {
	baseURL   string
	model     string
	dimension int
	client    *http.Client
}

func newOllamaClient(cfg *Config) *ollamaClient {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ollamaClient{
		baseURL:   cfg.BaseURL,
		model:     cfg.Model,
		dimension: cfg.Dimension,
		client:    &http.Client{Timeout: timeout},
	}
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

func (c *ollamaClient) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	return c.embed(ctx, applyRole(c.model, RoleDocument, texts))
}

func (c *ollamaClient) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.embed(ctx, applyRole(c.model, RoleQuery, []string{text}))
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (c *ollamaClient) embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	metrics.EmbeddingBatchSize.Observe(float64(len(texts)))

	body, err := json.Marshal(ollamaEmbedRequest{Model: c.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("ollama", c.model, "error").Inc()
		return nil, fmt.Errorf("HTTP: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		metrics.EmbeddingRequestsTotal.WithLabelValues("ollama", c.model, "error").Inc()
		b, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ollama embed %d: %s", resp.StatusCode, string(b))
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		metrics.EmbeddingRequestsTotal.WithLabelValues("ollama", c.model, "error").Inc()
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		metrics.EmbeddingRequestsTotal.WithLabelValues("ollama", c.model, "error").Inc()
		return nil, fmt.Errorf("ollama returned %d vectors for %d texts", len(parsed.Embeddings), len(texts))
	}

	for i, v := range parsed.Embeddings {
		if c.dimension > 0 && len(v) != c.dimension {
			return nil, fmt.Errorf("embedding dimension mismatch: want %d, got %d", c.dimension, len(v))
		}
		parsed.Embeddings[i] = vecmath.Normalize(v)
	}

	metrics.EmbeddingRequestsTotal.WithLabelValues("ollama", c.model, "success").Inc()
	return parsed.Embeddings, nil
}

func (c *ollamaClient) ModelName() string { return c.model }

func (c *ollamaClient) Dimension() int { return c.dimension }
