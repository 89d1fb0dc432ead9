package models

// Package models defines core data types used throughout logtriage-ai.
//
// These types flow between the orchestrator, the retrieval engine, the
// clustering stage and the log-query agent. Persistence-shaped records
// live in internal/db.

import "time"

// Alert represents one ingested failure event. It is created at ingestion
// and mutated only by the orchestrator as it advances through pipeline
// states; every other component receives it read-only.
type Alert struct {
	ID           string            `json:"id"`
	LogMessage   string            `json:"logMessage"`
	LogTimestamp *time.Time        `json:"logTimestamp,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"` // filename, host, job, ...

	ClusterID    string `json:"clusterId,omitempty"`
	Summary      string `json:"summary,omitempty"`
	Category     string `json:"category,omitempty"`
	Solution     string `json:"solution,omitempty"`
	Context      string `json:"context,omitempty"`
	NeedsContext bool   `json:"needsContext"`

	State     string    `json:"state"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Expert categories form a closed enumeration. A model response outside
// this set is a contract violation, never a valid outcome.
const (
	CategoryCloudInfra    = "Cloud Infrastructure / AWS Engineers"
	CategoryClusterAdmin  = "Kubernetes / OpenShift Cluster Admins"
	CategoryCICD          = "DevOps / CI/CD Engineers (Ansible + Automation Platform)"
	CategoryNetworking    = "Networking / Security Engineers"
	CategorySysAdmin      = "System Administrators / OS Engineers"
	CategoryAppPlatform   = "Application Developers / GitOps / Platform Engineers"
	CategoryIAM           = "Identity & Access Management (IAM) Engineers"
	CategoryOther         = "Other / Miscellaneous"
)

// ExpertCategories lists every valid expert category, in the order they are
// presented to the classifier.
var ExpertCategories = []string{
	CategoryCloudInfra,
	CategoryClusterAdmin,
	CategoryCICD,
	CategoryNetworking,
	CategorySysAdmin,
	CategoryAppPlatform,
	CategoryIAM,
	CategoryOther,
}

// ValidCategory reports whether c is a member of the closed category set.
func ValidCategory(c string) bool {
	for _, v := range ExpertCategories {
		if v == c {
			return true
		}
	}
	return false
}

// KnowledgeChunk is one pre-parsed slice of a knowledge-base document:
// a section of a documented error pattern, tagged with the entry it
// belongs to. Chunks arrive ready-made; PDF parsing is upstream.
type KnowledgeChunk struct {
	EntryID    string `json:"entryId"`
	EntryTitle string `json:"entryTitle"`
	Section    string `json:"section"` // description, symptoms, resolution, code, benefits
	Text       string `json:"text"`
	SourceFile string `json:"sourceFile"`
	Page       int    `json:"page"`
}

// KnowledgeEntry is one documented error pattern assembled from its chunks.
type KnowledgeEntry struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Symptoms    string `json:"symptoms"`
	Resolution  string `json:"resolution"`
	Code        string `json:"code,omitempty"`
	Benefits    string `json:"benefits,omitempty"`
	SourceFile  string `json:"sourceFile"`
	Page        int    `json:"page"`
}

// Indexable reports whether the entry carries enough problem-describing
// text to be embedded. Entries failing this are dropped before embedding,
// never indexed with an empty vector.
func (e *KnowledgeEntry) Indexable() bool {
	return e.Description != "" || e.Symptoms != ""
}

// LogLevel is the detected severity label on a live log line.
type LogLevel string

const (
	LevelError   LogLevel = "error"
	LevelWarn    LogLevel = "warn"
	LevelInfo    LogLevel = "info"
	LevelDebug   LogLevel = "debug"
	LevelUnknown LogLevel = "unknown"
)

// LogEntry is one live-query result line. Ephemeral: constructed per
// query and never persisted.
type LogEntry struct {
	Timestamp string            `json:"timestamp"` // unix nanoseconds as reported by the store
	Labels    map[string]string `json:"labels,omitempty"`
	Message   string            `json:"message"`
}

// ToolStatus marks a tool invocation outcome.
type ToolStatus string

const (
	ToolSuccess ToolStatus = "success"
	ToolError   ToolStatus = "error"
)

// ToolResult is the single normalized shape every log-query tool returns,
// so neither the agent nor the orchestrator branches on which tool ran.
type ToolResult struct {
	Status  ToolStatus `json:"status"`
	Message string     `json:"message,omitempty"`
	Logs    []LogEntry `json:"logs"`
	Count   int        `json:"numberOfLogs"`
	Query   string     `json:"query,omitempty"`
}
