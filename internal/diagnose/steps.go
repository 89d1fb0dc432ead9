package diagnose

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/llm/adapter"
	"github.com/logtriage/logtriage-ai/internal/llm/types"
	"github.com/logtriage/logtriage-ai/internal/metrics"
	"github.com/logtriage/logtriage-ai/internal/models"
)

// classifyRetries bounds re-asking the model when it returns a category
// outside the closed set. After the budget is spent the alert falls into
// the catch-all category rather than failing the pipeline.
const classifyRetries = 3

// Generator runs the per-alert LLM generation steps. Each method is one
// structured-output call; routing decisions come back through closed enums.
type Generator interface {
	Summarize(ctx context.Context, logMessage string) (string, error)
	Classify(ctx context.Context, summary string) (string, error)
	RouteSolution(ctx context.Context, summary, logMessage string) (needsContext bool, err error)
	RouteLiveLogs(ctx context.Context, summary, kbContext string) (needsLogs bool, err error)
	IdentifyMissingData(ctx context.Context, summary string, labels map[string]string) (string, error)
	Solve(ctx context.Context, summary, logMessage, diagContext string) (string, error)
}

type generator struct {
	llm    adapter.Adapter
	logger *zap.Logger
}

// NewGenerator builds a Generator on top of an LLM adapter.
func NewGenerator(llm adapter.Adapter, logger *zap.Logger) Generator {
	return &generator{llm: llm, logger: logger.Named("diagnose.generator")}
}

func (g *generator) complete(ctx context.Context, step, prompt string, schema types.Schema, out any) error {
	messages := []types.Message{
		{Role: "system", Content: systemPrompt},
		{Role: "user", Content: prompt},
	}
	raw, err := g.llm.CompleteStructured(ctx, step, messages, schema)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", step, err)
	}
	return nil
}

func (g *generator) Summarize(ctx context.Context, logMessage string) (string, error) {
	schema := types.Object("summary_response", map[string]any{
		"summary": map[string]any{
			"type":        "string",
			"description": "Two to three sentence summary of the failure",
		},
	})
	var resp struct {
		Summary string `json:"summary"`
	}
	if err := g.complete(ctx, "summarize", fmt.Sprintf(summarizePrompt, logMessage), schema, &resp); err != nil {
		return "", err
	}
	return resp.Summary, nil
}

func (g *generator) Classify(ctx context.Context, summary string) (string, error) {
	schema := types.Object("classify_response", map[string]any{
		"category": map[string]any{
			"type":        "string",
			"enum":        models.ExpertCategories,
			"description": "The expert team that should own this failure",
		},
	})
	prompt := fmt.Sprintf(classifyPrompt, categoriesList(), summary)

	var lastErr error
	for attempt := 1; attempt <= classifyRetries; attempt++ {
		var resp struct {
			Category string `json:"category"`
		}
		if err := g.complete(ctx, "classify", prompt, schema, &resp); err != nil {
			return "", err
		}
		if models.ValidCategory(resp.Category) {
			return resp.Category, nil
		}
		metrics.SchemaViolationsTotal.WithLabelValues("classify").Inc()
		lastErr = fmt.Errorf("category %q not in the expert set", resp.Category)
		g.logger.Warn("classifier returned unknown category",
			zap.String("category", resp.Category),
			zap.Int("attempt", attempt))
	}
	g.logger.Warn("classification retries exhausted, using catch-all category",
		zap.Error(lastErr))
	return models.CategoryOther, nil
}

func (g *generator) RouteSolution(ctx context.Context, summary, logMessage string) (bool, error) {
	schema := types.Object("solution_route", map[string]any{
		"reasoning": map[string]any{
			"type":        "string",
			"description": "Short justification for the classification",
		},
		"classification": map[string]any{
			"type": "string",
			"enum": []string{routeSufficient, routeNeedsContext},
		},
	})
	var resp struct {
		Reasoning      string `json:"reasoning"`
		Classification string `json:"classification"`
	}
	prompt := fmt.Sprintf(routeSolutionPrompt, summary, logMessage)
	if err := g.complete(ctx, "route_solution", prompt, schema, &resp); err != nil {
		return false, err
	}
	g.logger.Debug("solution route decided",
		zap.String("classification", resp.Classification),
		zap.String("reasoning", resp.Reasoning))
	return resp.Classification == routeNeedsContext, nil
}

func (g *generator) RouteLiveLogs(ctx context.Context, summary, kbContext string) (bool, error) {
	schema := types.Object("live_logs_route", map[string]any{
		"reasoning": map[string]any{
			"type":        "string",
			"description": "Short justification for the classification",
		},
		"classification": map[string]any{
			"type": "string",
			"enum": []string{liveLogsNeeded, liveLogsNotNeeded},
		},
	})
	var resp struct {
		Reasoning      string `json:"reasoning"`
		Classification string `json:"classification"`
	}
	prompt := fmt.Sprintf(routeLiveLogsPrompt, summary, kbContext)
	if err := g.complete(ctx, "route_live_logs", prompt, schema, &resp); err != nil {
		return false, err
	}
	g.logger.Debug("live log route decided",
		zap.String("classification", resp.Classification),
		zap.String("reasoning", resp.Reasoning))
	return resp.Classification == liveLogsNeeded, nil
}

func (g *generator) IdentifyMissingData(ctx context.Context, summary string, labels map[string]string) (string, error) {
	schema := types.Object("missing_data_response", map[string]any{
		"missing_data_request": map[string]any{
			"type":        "string",
			"description": "Plain-language statement of the log data to fetch",
		},
	})
	var resp struct {
		MissingDataRequest string `json:"missing_data_request"`
	}
	prompt := fmt.Sprintf(identifyMissingPrompt, summary, labelsBlock(labels))
	if err := g.complete(ctx, "identify_missing_data", prompt, schema, &resp); err != nil {
		return "", err
	}
	return resp.MissingDataRequest, nil
}

func (g *generator) Solve(ctx context.Context, summary, logMessage, diagContext string) (string, error) {
	schema := types.Object("solution_response", map[string]any{
		"step_by_step_solution": map[string]any{
			"type":        "string",
			"description": "Numbered remediation steps",
		},
	})
	var resp struct {
		StepByStepSolution string `json:"step_by_step_solution"`
	}
	prompt := fmt.Sprintf(solvePrompt, summary, logMessage, contextBlock(diagContext))
	if err := g.complete(ctx, "solve", prompt, schema, &resp); err != nil {
		return "", err
	}
	return resp.StepByStepSolution, nil
}
