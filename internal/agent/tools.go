package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/logstore"
	"github.com/logtriage/logtriage-ai/internal/metrics"
	"github.com/logtriage/logtriage-ai/internal/models"
)

const (
	defaultStartTime  = "-24h"
	defaultEndTime    = "now"
	defaultLimit      = 100
	defaultLinesAbove = 10

	// linesAboveSearchWindow bounds the initial locate query. Thirty days
	// is the store's maximum lookback.
	linesAboveSearchWindow = "-720h"
)

// FileLogParams selects logs from one file.
type FileLogParams struct {
	FileName  string `json:"file_name"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	Level     string `json:"level,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	Direction string `json:"direction,omitempty"`
}

// SearchTextParams searches for a substring across files.
type SearchTextParams struct {
	Text      string `json:"text"`
	StartTime string `json:"start_time,omitempty"`
	EndTime   string `json:"end_time,omitempty"`
	FileName  string `json:"file_name,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

// LinesAboveParams fetches the lines preceding a known log line.
type LinesAboveParams struct {
	FileName   string `json:"file_name"`
	LogMessage string `json:"log_message"`
	LinesAbove int    `json:"lines_above,omitempty"`
}

// Tools executes log-query tools against the log store. Every tool
// returns the one normalized ToolResult shape; failures are results with
// an error status, never Go errors, so the agent reply path stays
// uniform.
type Tools struct {
	store  logstore.Querier
	logger *zap.Logger
}

// NewTools creates the tool executor.
func NewTools(store logstore.Querier, logger *zap.Logger) *Tools {
	return &Tools{store: store, logger: logger.Named("logtools")}
}

func errorResult(message string) *models.ToolResult {
	return &models.ToolResult{Status: models.ToolError, Message: message, Logs: []models.LogEntry{}}
}

func successResult(query string, logs []models.LogEntry) *models.ToolResult {
	if logs == nil {
		logs = []models.LogEntry{}
	}
	return &models.ToolResult{Status: models.ToolSuccess, Query: query, Logs: logs, Count: len(logs)}
}

// fileQuery matches by filename suffix so callers can pass "app.log"
// without the full path.
func fileQuery(fileName string) string {
	return fmt.Sprintf(`{filename=~".*%s$"}`, fileName)
}

// GetLogsByFileName returns logs from one file, optionally filtered by
// detected level.
func (t *Tools) GetLogsByFileName(ctx context.Context, p FileLogParams) *models.ToolResult {
	if p.FileName == "" {
		return errorResult("file_name is required")
	}
	query := fileQuery(p.FileName)
	if p.Level != "" {
		query += fmt.Sprintf(" | detected_level=`%s`", p.Level)
	}

	logs, err := t.store.QueryRange(ctx, logstore.Query{
		Query:     query,
		Start:     orDefault(p.StartTime, defaultStartTime),
		End:       orDefault(p.EndTime, defaultEndTime),
		Limit:     orDefaultInt(p.Limit, defaultLimit),
		Direction: orDefault(p.Direction, "backward"),
	})
	if err != nil {
		metrics.LogStoreQueriesTotal.WithLabelValues("get_logs_by_file_name", "error").Inc()
		return errorResult(err.Error())
	}
	metrics.LogStoreQueriesTotal.WithLabelValues("get_logs_by_file_name", "success").Inc()
	return successResult(query, logs)
}

// SearchLogsByText finds logs containing the text, in one file or across
// all sources. The match is case-sensitive.
func (t *Tools) SearchLogsByText(ctx context.Context, p SearchTextParams) *models.ToolResult {
	if p.Text == "" {
		return errorResult("text is required")
	}
	escaped := strings.ReplaceAll(p.Text, `"`, `\"`)

	var query string
	if p.FileName != "" {
		query = fmt.Sprintf(`%s |= "%s"`, fileQuery(p.FileName), escaped)
	} else {
		// job=~".+" matches any labeled stream; the store rejects fully
		// unanchored selectors.
		query = fmt.Sprintf(`{job=~".+"} |= "%s"`, escaped)
	}

	logs, err := t.store.QueryRange(ctx, logstore.Query{
		Query: query,
		Start: orDefault(p.StartTime, defaultStartTime),
		End:   orDefault(p.EndTime, defaultEndTime),
		Limit: orDefaultInt(p.Limit, defaultLimit),
	})
	if err != nil {
		metrics.LogStoreQueriesTotal.WithLabelValues("search_logs_by_text", "error").Inc()
		return errorResult(err.Error())
	}
	metrics.LogStoreQueriesTotal.WithLabelValues("search_logs_by_text", "success").Inc()
	return successResult(query, logs)
}

// GetLogLinesAbove returns the N lines that precede a known log line in
// a file, plus the line itself.
//
// Two-phase protocol: first a one-row search locates the line's
// timestamp, then a wide window (25 days before to 10 minutes after, the
// buffer absorbing stores that drop fractional seconds) is fetched
// backward at the row cap, reversed to chronological order and sliced
// client-side around the target.
func (t *Tools) GetLogLinesAbove(ctx context.Context, p LinesAboveParams) *models.ToolResult {
	if p.FileName == "" || p.LogMessage == "" {
		return errorResult("file_name and log_message are required")
	}
	linesAbove := orDefaultInt(p.LinesAbove, defaultLinesAbove)

	locate := t.SearchLogsByText(ctx, SearchTextParams{
		Text:      p.LogMessage,
		FileName:  p.FileName,
		StartTime: linesAboveSearchWindow,
		EndTime:   "now",
		Limit:     1,
	})
	if locate.Status != models.ToolSuccess {
		metrics.LogStoreQueriesTotal.WithLabelValues("get_log_lines_above", "error").Inc()
		return errorResult(fmt.Sprintf("failed to locate target log line: %s", locate.Message))
	}
	if len(locate.Logs) == 0 {
		metrics.LogStoreQueriesTotal.WithLabelValues("get_log_lines_above", "not_found").Inc()
		result := errorResult(fmt.Sprintf("Log message %q not found in file %q", p.LogMessage, p.FileName))
		result.Query = locate.Query
		return result
	}

	nanos, err := strconv.ParseInt(locate.Logs[0].Timestamp, 10, 64)
	if err != nil {
		return errorResult(fmt.Sprintf("failed to parse target timestamp %q: %v", locate.Logs[0].Timestamp, err))
	}
	target := time.Unix(0, nanos).UTC()
	windowStart := target.Add(-25 * 24 * time.Hour).Format(time.RFC3339)
	windowEnd := target.Add(10 * time.Minute).Format(time.RFC3339)

	window := t.GetLogsByFileName(ctx, FileLogParams{
		FileName:  p.FileName,
		StartTime: windowStart,
		EndTime:   windowEnd,
		Limit:     logstore.MaxQueryLimit,
		Direction: "backward",
	})
	if window.Status != models.ToolSuccess {
		metrics.LogStoreQueriesTotal.WithLabelValues("get_log_lines_above", "error").Inc()
		return errorResult(fmt.Sprintf("failed to retrieve context logs: %s", window.Message))
	}

	// Backward order is newest first; indexing needs chronological.
	chronological := make([]models.LogEntry, len(window.Logs))
	for i, entry := range window.Logs {
		chronological[len(window.Logs)-1-i] = entry
	}

	targetIdx := -1
	for i, entry := range chronological {
		if strings.Contains(entry.Message, p.LogMessage) {
			targetIdx = i
			break
		}
	}
	if targetIdx == -1 {
		metrics.LogStoreQueriesTotal.WithLabelValues("get_log_lines_above", "not_found").Inc()
		result := errorResult(fmt.Sprintf("Target log message not found in the %d fetched logs", len(chronological)))
		result.Query = window.Query
		return result
	}

	start := targetIdx - linesAbove
	if start < 0 {
		start = 0
	}
	slice := chronological[start : targetIdx+1]

	metrics.LogStoreQueriesTotal.WithLabelValues("get_log_lines_above", "success").Inc()
	result := successResult(window.Query, slice)
	result.Message = fmt.Sprintf("Retrieved %d lines above the target log (total %d logs including target)",
		len(slice)-1, len(slice))
	return result
}

func orDefault(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}

func orDefaultInt(n, fallback int) int {
	if n <= 0 {
		return fallback
	}
	return n
}
