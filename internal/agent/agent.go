package agent

// Package agent answers natural-language log-query requests. One
// structured LLM call selects exactly one tool and its parameters (a
// tagged union keyed by the tool field); the tool runs exactly once and
// its result is the agent's answer. There is no multi-turn loop: the
// request synthesis step upstream already phrased precisely what to
// fetch.

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/llm/adapter"
	"github.com/logtriage/logtriage-ai/internal/llm/types"
	"github.com/logtriage/logtriage-ai/internal/models"
)

const (
	toolGetLogsByFileName = "get_logs_by_file_name"
	toolSearchLogsByText  = "search_logs_by_text"
	toolGetLogLinesAbove  = "get_log_lines_above"
)

const systemPrompt = `You are a log query assistant. Given a request about logs, select exactly one tool and its parameters.

Available tools:

1. "get_logs_by_file_name" - logs from a specific file, optionally filtered by level.
   Parameters: file_name (required), start_time, end_time, level (error|warn|info|debug|unknown), limit, direction (backward|forward).
   Use for: "show me logs of file nginx.log in last 2 hours", "get error logs from api.log".

2. "search_logs_by_text" - case-sensitive text search across all files or within one file.
   Parameters: text (required), file_name, start_time, end_time, limit.
   Use for: "find all logs containing 'timeout' in the last hour", "search for 'connection refused' in api.log".

3. "get_log_lines_above" - the lines that occurred before a specific log line in a file.
   Parameters: file_name (required), log_message (required, the exact line content without timestamp), lines_above.
   Use for: "get 10 lines above this error in nginx.log", "show me what happened before this failure".

Times accept relative forms like "-2h" or "now" and ISO timestamps.
Respond with the tool name and a parameters object for that tool only.`

// toolSelectionSchema is the tagged-union response contract: a tool name
// from the closed set plus that tool's parameter object.
var toolSelectionSchema = types.Schema{
	Name: "tool_selection",
	Schema: map[string]any{
		"type": "object",
		"properties": map[string]any{
			"tool": map[string]any{
				"type": "string",
				"enum": []string{toolGetLogsByFileName, toolSearchLogsByText, toolGetLogLinesAbove},
			},
			"parameters": map[string]any{"type": "object"},
		},
		"required":             []string{"tool", "parameters"},
		"additionalProperties": false,
	},
	Strict: true,
}

type toolSelection struct {
	Tool       string          `json:"tool"`
	Parameters json.RawMessage `json:"parameters"`
}

// Agent turns a natural-language request into one tool execution.
type Agent struct {
	llm    adapter.Adapter
	tools  *Tools
	logger *zap.Logger
}

// New creates the agent.
func New(llm adapter.Adapter, tools *Tools, logger *zap.Logger) *Agent {
	return &Agent{llm: llm, tools: tools, logger: logger.Named("logagent")}
}

// QueryLogs selects and runs one tool for the request. Failures come
// back as error-status results so callers treat every outcome uniformly.
func (a *Agent) QueryLogs(ctx context.Context, userRequest string, reqContext map[string]string) *models.ToolResult {
	enhanced := EnhancedRequest(userRequest, reqContext)

	raw, err := a.llm.CompleteStructured(ctx, "log_query_tool_selection",
		[]types.Message{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: enhanced},
		}, toolSelectionSchema)
	if err != nil {
		a.logger.Warn("tool selection failed", zap.Error(err))
		return errorResult(fmt.Sprintf("log query agent failed: %v", err))
	}

	var selection toolSelection
	if err := json.Unmarshal(raw, &selection); err != nil {
		return errorResult(fmt.Sprintf("invalid tool selection response: %v", err))
	}

	a.logger.Info("tool selected",
		zap.String("tool", selection.Tool),
		zap.String("request", userRequest))

	switch selection.Tool {
	case toolGetLogsByFileName:
		var p FileLogParams
		if err := json.Unmarshal(selection.Parameters, &p); err != nil {
			return errorResult(fmt.Sprintf("invalid parameters for %s: %v", selection.Tool, err))
		}
		return a.tools.GetLogsByFileName(ctx, p)
	case toolSearchLogsByText:
		var p SearchTextParams
		if err := json.Unmarshal(selection.Parameters, &p); err != nil {
			return errorResult(fmt.Sprintf("invalid parameters for %s: %v", selection.Tool, err))
		}
		return a.tools.SearchLogsByText(ctx, p)
	case toolGetLogLinesAbove:
		var p LinesAboveParams
		if err := json.Unmarshal(selection.Parameters, &p); err != nil {
			return errorResult(fmt.Sprintf("invalid parameters for %s: %v", selection.Tool, err))
		}
		return a.tools.GetLogLinesAbove(ctx, p)
	default:
		return errorResult(fmt.Sprintf("unknown tool %q selected", selection.Tool))
	}
}
