package config

import (
	"fmt"
	"net/url"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// Validate validates the configuration and returns validation errors.
// Anything returned here is fatal at startup.
func (c *Config) Validate() []error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, &ValidationError{
			Field:   "server.port",
			Message: fmt.Sprintf("port must be between 1 and 65535, got %d", c.Server.Port),
		})
	}

	validProviders := map[string]bool{
		"openai_compat": true,
		"ollama":        true,
	}
	if !validProviders[c.LLM.Provider] {
		errs = append(errs, &ValidationError{
			Field:   "llm.provider",
			Message: fmt.Sprintf("invalid provider %q, must be one of: openai_compat, ollama", c.LLM.Provider),
		})
	}
	if err := validateBaseURL(c.LLM.BaseURL); err != nil {
		errs = append(errs, &ValidationError{Field: "llm.base_url", Message: err.Error()})
	}
	if c.LLM.TimeoutSeconds < 1 {
		errs = append(errs, &ValidationError{
			Field:   "llm.timeout_seconds",
			Message: fmt.Sprintf("timeout must be at least 1 second, got %d", c.LLM.TimeoutSeconds),
		})
	}

	if !validProviders[c.Embedding.Provider] {
		errs = append(errs, &ValidationError{
			Field:   "embedding.provider",
			Message: fmt.Sprintf("invalid provider %q, must be one of: openai_compat, ollama", c.Embedding.Provider),
		})
	}
	if c.Embedding.Model == "" {
		// Vectors from different models are not comparable; the model
		// identity must be pinned before anything is embedded.
		errs = append(errs, &ValidationError{
			Field:   "embedding.model",
			Message: "embedding model identity is required",
		})
	}
	if c.Embedding.Dimension < 1 {
		errs = append(errs, &ValidationError{
			Field:   "embedding.dimension",
			Message: fmt.Sprintf("dimension must be positive, got %d", c.Embedding.Dimension),
		})
	}

	validAlgorithms := map[string]bool{
		"dbscan":        true,
		"meanshift":     true,
		"agglomerative": true,
	}
	if !validAlgorithms[c.Clustering.Algorithm] {
		errs = append(errs, &ValidationError{
			Field:   "clustering.algorithm",
			Message: fmt.Sprintf("unsupported algorithm %q, choose from: dbscan, meanshift, agglomerative", c.Clustering.Algorithm),
		})
	}
	if c.Clustering.TailChars < 1 {
		errs = append(errs, &ValidationError{
			Field:   "clustering.tail_chars",
			Message: fmt.Sprintf("tail_chars must be positive, got %d", c.Clustering.TailChars),
		})
	}

	if c.Retrieval.Enabled {
		if c.Retrieval.TopK < c.Retrieval.TopN {
			errs = append(errs, &ValidationError{
				Field:   "retrieval.top_k",
				Message: fmt.Sprintf("top_k (%d) must be >= top_n (%d)", c.Retrieval.TopK, c.Retrieval.TopN),
			})
		}
		if c.Retrieval.SimilarityThreshold < 0 || c.Retrieval.SimilarityThreshold > 1 {
			errs = append(errs, &ValidationError{
				Field:   "retrieval.similarity_threshold",
				Message: fmt.Sprintf("threshold must be in [0, 1], got %f", c.Retrieval.SimilarityThreshold),
			})
		}
	}

	if err := validateBaseURL(c.LogStore.BaseURL); err != nil {
		errs = append(errs, &ValidationError{Field: "logstore.base_url", Message: err.Error()})
	}
	if c.LogStore.MaxQueryLimit < 1 {
		errs = append(errs, &ValidationError{
			Field:   "logstore.max_query_limit",
			Message: fmt.Sprintf("max_query_limit must be positive, got %d", c.LogStore.MaxQueryLimit),
		})
	}

	if c.Orchestrator.MaxConcurrent < 1 {
		errs = append(errs, &ValidationError{
			Field:   "orchestrator.max_concurrent",
			Message: fmt.Sprintf("max_concurrent must be at least 1, got %d", c.Orchestrator.MaxConcurrent),
		})
	}
	return errs
}

func validateBaseURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("base URL is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("URL scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}
