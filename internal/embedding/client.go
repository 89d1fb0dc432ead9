package embedding

// Package embedding turns text into fixed-dimension L2-normalized vectors.
//
// Two backends sit behind one interface: an OpenAI-compatible /embeddings
// endpoint (vLLM, LocalAI, text-embeddings-inference, the hosted APIs) and
// an Ollama instance. The engine never cares which one is configured.
//
// Asymmetric models: nomic-style embedding models want a role marker on
// every text ("search_document:" at index time, "search_query:" at query
// time). Mixing roles, or omitting them, degrades similarity scores, so
// the role handling lives here rather than in every caller.

import (
	"context"
	"fmt"
	"strings"
)

// Role marks which side of an asymmetric retrieval model a text is
// embedded for.
type Role string

const (
	RoleDocument Role = "document"
	RoleQuery    Role = "query"
)

// Client is the embedding provider abstraction. Implementations must
// return unit-length vectors of a fixed dimension.
type Client interface {
	// EmbedDocuments embeds a batch of corpus texts.
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedQuery embeds one query text with the query-side role marker.
	EmbedQuery(ctx context.Context, text string) ([]float32, error)

	// ModelName returns the embedding model identity. Vectors from
	// different model identities are never comparable.
	ModelName() string

	// Dimension returns the vector dimension the model produces.
	Dimension() int
}

// Config holds embedding provider configuration.
type Config struct {
	Provider       string // "openai_compat" | "ollama"
	BaseURL        string
	APIKey         string
	Model          string
	Dimension      int
	TimeoutSeconds int
}

// NewClient creates an embedding client for the configured provider.
// An unknown provider name is a configuration error.
func NewClient(cfg *Config) (Client, error) {
	if cfg == nil {
		return nil, fmt.Errorf("embedding config is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embedding model identity is required")
	}

	switch cfg.Provider {
	case "openai_compat":
		return newOpenAICompatClient(cfg), nil
	case "ollama":
		return newOllamaClient(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %s", cfg.Provider)
	}
}

// taskPrefix returns the role marker texts must be prefixed with, or ""
// for symmetric models. Only nomic-style models use prefixes.
func taskPrefix(model string, role Role) string {
	if !strings.Contains(strings.ToLower(model), "nomic") {
		return ""
	}
	if role == RoleQuery {
		return "search_query: "
	}
	return "search_document: "
}

// applyRole prefixes every text with the model's role marker.
func applyRole(model string, role Role, texts []string) []string {
	prefix := taskPrefix(model, role)
	if prefix == "" {
		return texts
	}
	out := make([]string, len(texts))
	for i, t := range texts {
		out[i] = prefix + t
	}
	return out
}
