// Package audit writes a durable trail of pipeline decisions: what was
// ingested, what was diagnosed, how it degraded, and when models were
// rebuilt. The trail is JSON lines in a rotated file, separate from the
// application log so it survives log-level changes.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger defines the interface for audit logging
type Logger interface {
	// Log records one audit event.
	Log(ctx context.Context, event *Event) error

	// LogAlertIngested records an accepted alert.
	LogAlertIngested(ctx context.Context, alertID, sourceIP string) error

	// LogDiagnosis records a finished diagnosis.
	LogDiagnosis(ctx context.Context, alertID, category string, degraded bool, duration time.Duration) error

	// LogIndexRebuilt records a knowledge index rebuild.
	LogIndexRebuilt(ctx context.Context, entries int, model string) error

	// Sync flushes buffered events.
	Sync() error

	// Close flushes and closes the audit logger.
	Close() error
}

// Config represents audit logger configuration
type Config struct {
	// Path is the audit log file location.
	Path string

	// Rotation settings.
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	// FlushInterval bounds how long a buffered event can wait.
	FlushInterval time.Duration
}

// DefaultConfig returns default audit logger configuration
func DefaultConfig() *Config {
	return &Config{
		Path:          "logs/audit.log",
		MaxSizeMB:     100,
		MaxBackups:    10,
		MaxAgeDays:    90,
		Compress:      true,
		FlushInterval: 5 * time.Second,
	}
}

type fileLogger struct {
	out    *lumberjack.Logger
	mu     sync.Mutex
	buffer []*Event
	ticker *time.Ticker
	stopCh chan struct{}
	closed bool
}

// NewLogger creates a file-backed audit logger.
func NewLogger(config *Config) (Logger, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Path == "" {
		return nil, fmt.Errorf("audit log path is required")
	}
	interval := config.FlushInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}

	l := &fileLogger{
		out: &lumberjack.Logger{
			Filename:   config.Path,
			MaxSize:    config.MaxSizeMB,
			MaxBackups: config.MaxBackups,
			MaxAge:     config.MaxAgeDays,
			Compress:   config.Compress,
		},
		ticker: time.NewTicker(interval),
		stopCh: make(chan struct{}),
	}
	go l.autoFlush()
	return l, nil
}

func (l *fileLogger) Log(ctx context.Context, event *Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.CorrelationID == "" {
		event.CorrelationID = GetCorrelationID(ctx)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return fmt.Errorf("audit logger is closed")
	}
	l.buffer = append(l.buffer, event)
	if len(l.buffer) >= 64 {
		return l.flushLocked()
	}
	return nil
}

func (l *fileLogger) LogAlertIngested(ctx context.Context, alertID, sourceIP string) error {
	event := NewEvent(EventAlertIngested)
	event.AlertID = alertID
	event.SourceIP = sourceIP
	return l.Log(ctx, event)
}

func (l *fileLogger) LogDiagnosis(ctx context.Context, alertID, category string, degraded bool, duration time.Duration) error {
	event := NewEvent(EventDiagnosisSolved)
	if degraded {
		event.EventType = EventDiagnosisDegraded
	}
	event.AlertID = alertID
	event.Category = category
	event.DurationMs = duration.Milliseconds()
	return l.Log(ctx, event)
}

func (l *fileLogger) LogIndexRebuilt(ctx context.Context, entries int, model string) error {
	event := NewEvent(EventIndexRebuilt)
	event.Metadata = map[string]any{"entries": entries, "model": model}
	return l.Log(ctx, event)
}

func (l *fileLogger) flushLocked() error {
	if len(l.buffer) == 0 {
		return nil
	}
	for _, event := range l.buffer {
		line, err := json.Marshal(event)
		if err != nil {
			return fmt.Errorf("marshal audit event: %w", err)
		}
		if _, err := l.out.Write(append(line, '\n')); err != nil {
			return fmt.Errorf("write audit event: %w", err)
		}
	}
	l.buffer = l.buffer[:0]
	return nil
}

func (l *fileLogger) autoFlush() {
	for {
		select {
		case <-l.ticker.C:
			l.mu.Lock()
			_ = l.flushLocked()
			l.mu.Unlock()
		case <-l.stopCh:
			return
		}
	}
}

func (l *fileLogger) Sync() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.flushLocked()
}

func (l *fileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return nil
	}
	l.closed = true
	l.ticker.Stop()
	close(l.stopCh)
	if err := l.flushLocked(); err != nil {
		return err
	}
	return l.out.Close()
}

type correlationKey struct{}

// GetCorrelationID returns the correlation id from the context, if any.
func GetCorrelationID(ctx context.Context) string {
	if id, ok := ctx.Value(correlationKey{}).(string); ok {
		return id
	}
	return ""
}

// WithCorrelationID attaches a correlation id to the context.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationKey{}, id)
}

// GenerateCorrelationID creates a fresh correlation id.
func GenerateCorrelationID() string {
	return uuid.NewString()
}
