package server

import "time"

// Config holds the HTTP server settings.
type Config struct {
	Host string `json:"host"`
	Port int    `json:"port"`

	// AllowedOrigins lists permitted WebSocket origins. Empty means the
	// local development origins only; "*" disables the check.
	AllowedOrigins []string `json:"allowed_origins"`

	// IngestPerMinute caps alert ingestion per client IP. Zero or
	// negative disables the limiter.
	IngestPerMinute int `json:"ingest_per_minute"`

	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
}

// withDefaults fills unset fields.
func (c Config) withDefaults() Config {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 30 * time.Second
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 10 * time.Second
	}
	return c
}
