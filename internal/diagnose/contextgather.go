package diagnose

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/metrics"
	"github.com/logtriage/logtriage-ai/internal/models"
)

// KnowledgeRetriever serves knowledge-base context for a failure summary.
// Implementations degrade to an empty string rather than erroring.
type KnowledgeRetriever interface {
	Context(ctx context.Context, summary string) string
}

// LogQuerier answers a plain-language data request with live log lines.
type LogQuerier interface {
	QueryLogs(ctx context.Context, userRequest string, reqContext map[string]string) *models.ToolResult
}

// gatherContext assembles the context block for an alert whose routing
// decided more context is needed. The knowledge-base block always comes
// first; live log lines, when fetched, are appended after it. Every
// failure on this path degrades to whatever was gathered so far.
func (o *Orchestrator) gatherContext(ctx context.Context, alert *models.Alert) string {
	var kb string
	if o.retriever != nil {
		kb = o.retriever.Context(ctx, alert.Summary)
	}

	live := o.gatherLiveLogs(ctx, alert, kb)
	if live == "" {
		return kb
	}
	if kb == "" {
		return live
	}
	return kb + "\n\n" + live
}

func (o *Orchestrator) gatherLiveLogs(ctx context.Context, alert *models.Alert, kbContext string) string {
	if o.agent == nil {
		return ""
	}

	needed, err := o.generator.RouteLiveLogs(ctx, alert.Summary, kbContext)
	if err != nil {
		o.degrade("route_live_logs", alert.ID, err)
		return ""
	}
	if !needed {
		return ""
	}

	request, err := o.generator.IdentifyMissingData(ctx, alert.Summary, alert.Labels)
	if err != nil || strings.TrimSpace(request) == "" {
		o.degrade("identify_missing_data", alert.ID, err)
		return ""
	}

	reqContext := map[string]string{
		"logMessage": alert.LogMessage,
		"logSummary": alert.Summary,
	}
	for k, v := range alert.Labels {
		reqContext[k] = v
	}

	result := o.agent.QueryLogs(ctx, request, reqContext)
	if result.Status != models.ToolSuccess {
		o.logger.Warn("live log query failed, continuing without it",
			zap.String("alertId", alert.ID),
			zap.String("message", result.Message))
		metrics.StepFailuresTotal.WithLabelValues("live_log_query").Inc()
		return ""
	}

	block := result.BuildContext()
	if block == "" {
		return ""
	}
	return "## Recent Log Context\n" + block
}
