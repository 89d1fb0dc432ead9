package config

import "context"

// Package config provides configuration management for logtriage-ai.
//
// Configuration sources (priority order, high to low):
//   1. Environment variables (LOGTRIAGE_* prefix, plus a few well-known
//      provider variables like OPENAI_API_KEY)
//   2. YAML config file (default: /etc/logtriage/config.yaml)
//   3. Built-in defaults
//
// Configuration errors are fatal at startup: an unknown clustering
// algorithm, a missing embedding model identity or an invalid provider
// name must stop the process, never downgrade silently.

// Config contains all configuration fields.
type Config struct {
	// Server configuration (REST + websocket surface).
	Server struct {
		Port            int
		AllowedOrigins  []string
		IngestPerMinute int
	}

	// LLM provider configuration.
	LLM struct {
		Provider       string // "openai_compat" | "ollama"
		BaseURL        string
		APIKey         string
		Model          string
		TimeoutSeconds int
		MaxRetries     int
	}

	// Embedding provider configuration.
	Embedding struct {
		Provider       string // "openai_compat" | "ollama"
		BaseURL        string
		APIKey         string
		Model          string
		Dimension      int
		TimeoutSeconds int
	}

	// Retrieval engine configuration.
	Retrieval struct {
		Enabled             bool
		IndexPath           string
		MetadataPath        string
		TopK                int
		TopN                int
		SimilarityThreshold float64
		CacheTTLSeconds     int
	}

	// Clustering stage configuration.
	Clustering struct {
		Algorithm            string // "dbscan" | "meanshift" | "agglomerative"
		ModelPath            string
		TailChars            int
		EpsilonDBSCAN        float64
		MinSamplesDBSCAN     int
		DistanceThresholdAgg float64
		AssignThreshold      float64
		RefitIntervalHours   int
	}

	// Live log store configuration.
	LogStore struct {
		BaseURL        string
		TimeoutSeconds int
		MaxQueryLimit  int
	}

	// Orchestrator configuration.
	Orchestrator struct {
		MaxConcurrent       int
		AlertTimeoutSeconds int
	}

	// Database configuration.
	Database struct {
		SQLitePath string
	}

	// Logging configuration.
	Logging struct {
		Level    string
		Format   string
		FilePath string
	}

	// Audit trail configuration.
	Audit struct {
		Enabled bool
		Path    string
	}
}

// ConfigManager defines the interface for configuration access.
type ConfigManager interface {
	// Load loads configuration from all sources.
	Load(ctx context.Context) error

	// Get returns the current configuration.
	Get(ctx context.Context) *Config

	// Validate validates configuration is correct and complete.
	Validate(ctx context.Context) error

	// Watch watches for configuration file changes and reloads.
	Watch(ctx context.Context) <-chan Config

	// Reload reloads configuration from sources.
	Reload(ctx context.Context) error
}

// NewConfigManager creates a new configuration manager.
func NewConfigManager(configPath string) (ConfigManager, error) {
	mgr := &viperConfigManager{
		configPath: configPath,
		config:     DefaultConfig(),
		watchChan:  make(chan Config, 1),
	}
	return mgr, nil
}

// NewConfigManagerWithDefaults creates a config manager with the default
// config path.
func NewConfigManagerWithDefaults() (ConfigManager, error) {
	return NewConfigManager("/etc/logtriage/config.yaml")
}
