package config

// DefaultConfig returns a configuration with all default values.
func DefaultConfig() *Config {
	cfg := &Config{}

	// Server defaults
	cfg.Server.Port = 8082
	cfg.Server.IngestPerMinute = 120

	// LLM defaults
	cfg.LLM.Provider = "openai_compat"
	cfg.LLM.BaseURL = "http://localhost:8000/v1"
	cfg.LLM.APIKey = ""
	cfg.LLM.Model = ""
	cfg.LLM.TimeoutSeconds = 60
	cfg.LLM.MaxRetries = 3

	// Embedding defaults
	cfg.Embedding.Provider = "openai_compat"
	cfg.Embedding.BaseURL = "http://localhost:8001/v1"
	cfg.Embedding.APIKey = ""
	cfg.Embedding.Model = "nomic-embed-text-v1.5"
	cfg.Embedding.Dimension = 768
	cfg.Embedding.TimeoutSeconds = 30

	// Retrieval defaults
	cfg.Retrieval.Enabled = true
	cfg.Retrieval.IndexPath = "/var/lib/logtriage/knowledge.index"
	cfg.Retrieval.MetadataPath = "/var/lib/logtriage/knowledge.meta.json"
	cfg.Retrieval.TopK = 10
	cfg.Retrieval.TopN = 3
	cfg.Retrieval.SimilarityThreshold = 0.6
	cfg.Retrieval.CacheTTLSeconds = 600

	// Clustering defaults
	cfg.Clustering.Algorithm = "dbscan"
	cfg.Clustering.ModelPath = "/var/lib/logtriage/cluster_model.gob"
	cfg.Clustering.TailChars = 50
	cfg.Clustering.EpsilonDBSCAN = 0.3
	cfg.Clustering.MinSamplesDBSCAN = 2
	cfg.Clustering.DistanceThresholdAgg = 0.5
	cfg.Clustering.AssignThreshold = 0.35
	cfg.Clustering.RefitIntervalHours = 24

	// Log store defaults
	cfg.LogStore.BaseURL = "http://localhost:3100"
	cfg.LogStore.TimeoutSeconds = 30
	cfg.LogStore.MaxQueryLimit = 5000

	// Orchestrator defaults
	cfg.Orchestrator.MaxConcurrent = 4
	cfg.Orchestrator.AlertTimeoutSeconds = 120

	// Database defaults
	cfg.Database.SQLitePath = "/var/lib/logtriage/logtriage-ai.db"

	// Logging defaults
	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"
	cfg.Logging.FilePath = ""

	// Audit defaults
	cfg.Audit.Enabled = true
	cfg.Audit.Path = "/var/log/logtriage/audit.log"

	return cfg
}
