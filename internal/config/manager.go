package config

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// viperConfigManager implements ConfigManager using Viper.
type viperConfigManager struct {
	configPath string
	config     *Config
	viper      *viper.Viper
	watchChan  chan Config
}

// Load loads configuration from all sources.
func (m *viperConfigManager) Load(ctx context.Context) error {
	m.viper = viper.New()

	m.viper.SetConfigFile(m.configPath)
	m.viper.SetConfigType("yaml")

	m.viper.SetEnvPrefix("LOGTRIAGE")
	m.viper.AutomaticEnv()
	m.viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	m.setDefaults()

	// Config file is optional; defaults + env vars are enough to run.
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// no file, use defaults
		} else if os.IsNotExist(err) {
			// no file, use defaults
		} else {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.applyEnvOverrides()

	return nil
}

// Get returns the current configuration.
func (m *viperConfigManager) Get(ctx context.Context) *Config {
	return m.config
}

// Validate validates configuration is correct and complete.
func (m *viperConfigManager) Validate(ctx context.Context) error {
	errs := m.config.Validate()
	if len(errs) > 0 {
		var errMsgs []string
		for _, err := range errs {
			errMsgs = append(errMsgs, err.Error())
		}
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errMsgs, "\n  - "))
	}
	return nil
}

// Watch watches for configuration changes and reloads.
func (m *viperConfigManager) Watch(ctx context.Context) <-chan Config {
	m.viper.WatchConfig()
	m.viper.OnConfigChange(func(e fsnotify.Event) {
		if err := m.unmarshalConfig(); err != nil {
			return
		}
		m.applyEnvOverrides()
		select {
		case m.watchChan <- *m.config:
		default:
			// channel full, skip this update
		}
	})

	return m.watchChan
}

// Reload reloads configuration from sources.
func (m *viperConfigManager) Reload(ctx context.Context) error {
	if err := m.viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	if err := m.unmarshalConfig(); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.applyEnvOverrides()

	return nil
}

// setDefaults sets default values in viper.
func (m *viperConfigManager) setDefaults() {
	defaults := DefaultConfig()

	m.viper.SetDefault("server.port", defaults.Server.Port)
	m.viper.SetDefault("server.allowed_origins", defaults.Server.AllowedOrigins)
	m.viper.SetDefault("server.ingest_per_minute", defaults.Server.IngestPerMinute)

	m.viper.SetDefault("llm.provider", defaults.LLM.Provider)
	m.viper.SetDefault("llm.base_url", defaults.LLM.BaseURL)
	m.viper.SetDefault("llm.api_key", defaults.LLM.APIKey)
	m.viper.SetDefault("llm.model", defaults.LLM.Model)
	m.viper.SetDefault("llm.timeout_seconds", defaults.LLM.TimeoutSeconds)
	m.viper.SetDefault("llm.max_retries", defaults.LLM.MaxRetries)

	m.viper.SetDefault("embedding.provider", defaults.Embedding.Provider)
	m.viper.SetDefault("embedding.base_url", defaults.Embedding.BaseURL)
	m.viper.SetDefault("embedding.api_key", defaults.Embedding.APIKey)
	m.viper.SetDefault("embedding.model", defaults.Embedding.Model)
	m.viper.SetDefault("embedding.dimension", defaults.Embedding.Dimension)
	m.viper.SetDefault("embedding.timeout_seconds", defaults.Embedding.TimeoutSeconds)

	m.viper.SetDefault("retrieval.enabled", defaults.Retrieval.Enabled)
	m.viper.SetDefault("retrieval.index_path", defaults.Retrieval.IndexPath)
	m.viper.SetDefault("retrieval.metadata_path", defaults.Retrieval.MetadataPath)
	m.viper.SetDefault("retrieval.top_k", defaults.Retrieval.TopK)
	m.viper.SetDefault("retrieval.top_n", defaults.Retrieval.TopN)
	m.viper.SetDefault("retrieval.similarity_threshold", defaults.Retrieval.SimilarityThreshold)
	m.viper.SetDefault("retrieval.cache_ttl_seconds", defaults.Retrieval.CacheTTLSeconds)

	m.viper.SetDefault("clustering.algorithm", defaults.Clustering.Algorithm)
	m.viper.SetDefault("clustering.model_path", defaults.Clustering.ModelPath)
	m.viper.SetDefault("clustering.tail_chars", defaults.Clustering.TailChars)
	m.viper.SetDefault("clustering.epsilon_dbscan", defaults.Clustering.EpsilonDBSCAN)
	m.viper.SetDefault("clustering.min_samples_dbscan", defaults.Clustering.MinSamplesDBSCAN)
	m.viper.SetDefault("clustering.distance_threshold_agg", defaults.Clustering.DistanceThresholdAgg)
	m.viper.SetDefault("clustering.assign_threshold", defaults.Clustering.AssignThreshold)
	m.viper.SetDefault("clustering.refit_interval_hours", defaults.Clustering.RefitIntervalHours)

	m.viper.SetDefault("logstore.base_url", defaults.LogStore.BaseURL)
	m.viper.SetDefault("logstore.timeout_seconds", defaults.LogStore.TimeoutSeconds)
	m.viper.SetDefault("logstore.max_query_limit", defaults.LogStore.MaxQueryLimit)

	m.viper.SetDefault("orchestrator.max_concurrent", defaults.Orchestrator.MaxConcurrent)
	m.viper.SetDefault("orchestrator.alert_timeout_seconds", defaults.Orchestrator.AlertTimeoutSeconds)

	m.viper.SetDefault("database.sqlite_path", defaults.Database.SQLitePath)

	m.viper.SetDefault("logging.level", defaults.Logging.Level)
	m.viper.SetDefault("logging.format", defaults.Logging.Format)
	m.viper.SetDefault("logging.file_path", defaults.Logging.FilePath)

	m.viper.SetDefault("audit.enabled", defaults.Audit.Enabled)
	m.viper.SetDefault("audit.path", defaults.Audit.Path)
}

// unmarshalConfig unmarshals viper config into the Config struct.
func (m *viperConfigManager) unmarshalConfig() error {
	cfg := &Config{}

	cfg.Server.Port = m.viper.GetInt("server.port")
	cfg.Server.AllowedOrigins = m.viper.GetStringSlice("server.allowed_origins")
	cfg.Server.IngestPerMinute = m.viper.GetInt("server.ingest_per_minute")

	cfg.LLM.Provider = m.viper.GetString("llm.provider")
	cfg.LLM.BaseURL = m.viper.GetString("llm.base_url")
	cfg.LLM.APIKey = m.viper.GetString("llm.api_key")
	cfg.LLM.Model = m.viper.GetString("llm.model")
	cfg.LLM.TimeoutSeconds = m.viper.GetInt("llm.timeout_seconds")
	cfg.LLM.MaxRetries = m.viper.GetInt("llm.max_retries")

	cfg.Embedding.Provider = m.viper.GetString("embedding.provider")
	cfg.Embedding.BaseURL = m.viper.GetString("embedding.base_url")
	cfg.Embedding.APIKey = m.viper.GetString("embedding.api_key")
	cfg.Embedding.Model = m.viper.GetString("embedding.model")
	cfg.Embedding.Dimension = m.viper.GetInt("embedding.dimension")
	cfg.Embedding.TimeoutSeconds = m.viper.GetInt("embedding.timeout_seconds")

	cfg.Retrieval.Enabled = m.viper.GetBool("retrieval.enabled")
	cfg.Retrieval.IndexPath = m.viper.GetString("retrieval.index_path")
	cfg.Retrieval.MetadataPath = m.viper.GetString("retrieval.metadata_path")
	cfg.Retrieval.TopK = m.viper.GetInt("retrieval.top_k")
	cfg.Retrieval.TopN = m.viper.GetInt("retrieval.top_n")
	cfg.Retrieval.SimilarityThreshold = m.viper.GetFloat64("retrieval.similarity_threshold")
	cfg.Retrieval.CacheTTLSeconds = m.viper.GetInt("retrieval.cache_ttl_seconds")

	cfg.Clustering.Algorithm = m.viper.GetString("clustering.algorithm")
	cfg.Clustering.ModelPath = m.viper.GetString("clustering.model_path")
	cfg.Clustering.TailChars = m.viper.GetInt("clustering.tail_chars")
	cfg.Clustering.EpsilonDBSCAN = m.viper.GetFloat64("clustering.epsilon_dbscan")
	cfg.Clustering.MinSamplesDBSCAN = m.viper.GetInt("clustering.min_samples_dbscan")
	cfg.Clustering.DistanceThresholdAgg = m.viper.GetFloat64("clustering.distance_threshold_agg")
	cfg.Clustering.AssignThreshold = m.viper.GetFloat64("clustering.assign_threshold")
	cfg.Clustering.RefitIntervalHours = m.viper.GetInt("clustering.refit_interval_hours")

	cfg.LogStore.BaseURL = m.viper.GetString("logstore.base_url")
	cfg.LogStore.TimeoutSeconds = m.viper.GetInt("logstore.timeout_seconds")
	cfg.LogStore.MaxQueryLimit = m.viper.GetInt("logstore.max_query_limit")

	cfg.Orchestrator.MaxConcurrent = m.viper.GetInt("orchestrator.max_concurrent")
	cfg.Orchestrator.AlertTimeoutSeconds = m.viper.GetInt("orchestrator.alert_timeout_seconds")

	cfg.Database.SQLitePath = m.viper.GetString("database.sqlite_path")

	cfg.Logging.Level = m.viper.GetString("logging.level")
	cfg.Logging.Format = m.viper.GetString("logging.format")
	cfg.Logging.FilePath = m.viper.GetString("logging.file_path")

	cfg.Audit.Enabled = m.viper.GetBool("audit.enabled")
	cfg.Audit.Path = m.viper.GetString("audit.path")

	m.config = cfg
	return nil
}

// applyEnvOverrides applies environment variable overrides for sensitive
// data and well-known provider variables.
func (m *viperConfigManager) applyEnvOverrides() {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" && m.config.LLM.APIKey == "" {
		m.config.LLM.APIKey = apiKey
	}
	if apiKey := os.Getenv("EMBEDDING_API_KEY"); apiKey != "" && m.config.Embedding.APIKey == "" {
		m.config.Embedding.APIKey = apiKey
	}
	if baseURL := os.Getenv("OLLAMA_BASE_URL"); baseURL != "" && m.config.LLM.Provider == "ollama" {
		m.config.LLM.BaseURL = baseURL
	}
	if baseURL := os.Getenv("LOKI_BASE_URL"); baseURL != "" {
		m.config.LogStore.BaseURL = baseURL
	}
}
