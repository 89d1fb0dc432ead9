package audit

import "time"

// EventType represents the type of audit event
type EventType string

const (
	// Alert lifecycle events
	EventAlertIngested     EventType = "alert.ingested"
	EventDiagnosisStarted  EventType = "diagnosis.started"
	EventDiagnosisSolved   EventType = "diagnosis.solved"
	EventDiagnosisDegraded EventType = "diagnosis.degraded"
	EventDiagnosisFailed   EventType = "diagnosis.failed"

	// Knowledge base events
	EventIndexRebuilt EventType = "index.rebuilt"
	EventClusterRefit EventType = "cluster.refit"

	// System events
	EventServerStarted  EventType = "system.server_started"
	EventServerShutdown EventType = "system.server_shutdown"
)

// Result represents the outcome of an audited action
type Result string

const (
	ResultSuccess Result = "success"
	ResultFailure Result = "failure"
)

// Event represents a single audit event
type Event struct {
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	EventType     EventType `json:"event_type"`
	Result        Result    `json:"result"`

	// Actor information
	SourceIP string `json:"source_ip,omitempty"`

	// Subject information
	AlertID   string `json:"alert_id,omitempty"`
	ClusterID string `json:"cluster_id,omitempty"`
	Category  string `json:"category,omitempty"`

	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`

	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// NewEvent creates a new audit event with default values
func NewEvent(eventType EventType) *Event {
	return &Event{
		Timestamp: time.Now().UTC(),
		EventType: eventType,
		Result:    ResultSuccess,
	}
}
