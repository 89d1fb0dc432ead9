package diagnose

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/llm/types"
	"github.com/logtriage/logtriage-ai/internal/models"
)

// scriptedAdapter returns canned responses in order and records every call.
type scriptedAdapter struct {
	responses []string
	err       error
	calls     int

	lastStep   string
	lastPrompt string
	lastSchema types.Schema
}

func (s *scriptedAdapter) CompleteStructured(_ context.Context, step string, messages []types.Message, schema types.Schema) (json.RawMessage, error) {
	s.calls++
	s.lastStep = step
	s.lastSchema = schema
	if len(messages) > 0 {
		s.lastPrompt = messages[len(messages)-1].Content
	}
	if s.err != nil {
		return nil, s.err
	}
	idx := s.calls - 1
	if idx >= len(s.responses) {
		idx = len(s.responses) - 1
	}
	return json.RawMessage(s.responses[idx]), nil
}

func (s *scriptedAdapter) ModelName() string { return "test-model" }

func TestSummarize(t *testing.T) {
	llm := &scriptedAdapter{responses: []string{`{"summary":"The yum task failed on host web01 because the repo is unreachable."}`}}
	gen := NewGenerator(llm, zap.NewNop())

	summary, err := gen.Summarize(context.Background(), "fatal: [web01]: FAILED! => ...")
	require.NoError(t, err)
	assert.Equal(t, "The yum task failed on host web01 because the repo is unreachable.", summary)
	assert.Equal(t, "summarize", llm.lastStep)
	assert.Contains(t, llm.lastPrompt, "fatal: [web01]")
}

func TestSummarizeTransportError(t *testing.T) {
	llm := &scriptedAdapter{err: errors.New("connection refused")}
	gen := NewGenerator(llm, zap.NewNop())

	_, err := gen.Summarize(context.Background(), "some log")
	assert.Error(t, err)
}

func TestClassifyValidFirstTry(t *testing.T) {
	llm := &scriptedAdapter{responses: []string{`{"category":"Networking / Security Engineers"}`}}
	gen := NewGenerator(llm, zap.NewNop())

	category, err := gen.Classify(context.Background(), "firewall blocked the connection")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryNetworking, category)
	assert.Equal(t, 1, llm.calls)
}

func TestClassifyRetriesInvalidThenSucceeds(t *testing.T) {
	llm := &scriptedAdapter{responses: []string{
		`{"category":"Some Made Up Team"}`,
		`{"category":"System Administrators / OS Engineers"}`,
	}}
	gen := NewGenerator(llm, zap.NewNop())

	category, err := gen.Classify(context.Background(), "disk full on /var")
	require.NoError(t, err)
	assert.Equal(t, models.CategorySysAdmin, category)
	assert.Equal(t, 2, llm.calls)
}

func TestClassifyFallsBackToCatchAll(t *testing.T) {
	llm := &scriptedAdapter{responses: []string{`{"category":"Nonsense Team"}`}}
	gen := NewGenerator(llm, zap.NewNop())

	category, err := gen.Classify(context.Background(), "inscrutable failure")
	require.NoError(t, err)
	assert.Equal(t, models.CategoryOther, category)
	assert.Equal(t, classifyRetries, llm.calls)
}

func TestClassifyPromptListsEveryCategory(t *testing.T) {
	llm := &scriptedAdapter{responses: []string{`{"category":"Other / Miscellaneous"}`}}
	gen := NewGenerator(llm, zap.NewNop())

	_, err := gen.Classify(context.Background(), "summary")
	require.NoError(t, err)
	for _, c := range models.ExpertCategories {
		assert.Contains(t, llm.lastPrompt, c)
	}
}

func TestClassifySchemaConstrainsCategories(t *testing.T) {
	llm := &scriptedAdapter{responses: []string{`{"category":"Other / Miscellaneous"}`}}
	gen := NewGenerator(llm, zap.NewNop())

	_, err := gen.Classify(context.Background(), "summary")
	require.NoError(t, err)

	props, ok := llm.lastSchema.Schema["properties"].(map[string]any)
	require.True(t, ok)
	cat, ok := props["category"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, models.ExpertCategories, cat["enum"])
}

func TestRouteSolution(t *testing.T) {
	llm := &scriptedAdapter{responses: []string{`{"reasoning":"cause is clear","classification":"sufficient_context"}`}}
	gen := NewGenerator(llm, zap.NewNop())

	needs, err := gen.RouteSolution(context.Background(), "summary", "log")
	require.NoError(t, err)
	assert.False(t, needs)

	llm = &scriptedAdapter{responses: []string{`{"reasoning":"ambiguous","classification":"needs_more_context"}`}}
	gen = NewGenerator(llm, zap.NewNop())
	needs, err = gen.RouteSolution(context.Background(), "summary", "log")
	require.NoError(t, err)
	assert.True(t, needs)
}

func TestRouteLiveLogs(t *testing.T) {
	llm := &scriptedAdapter{responses: []string{`{"reasoning":"need the preceding lines","classification":"need_more_context_from_logs"}`}}
	gen := NewGenerator(llm, zap.NewNop())

	needs, err := gen.RouteLiveLogs(context.Background(), "summary", "kb context")
	require.NoError(t, err)
	assert.True(t, needs)
	assert.Contains(t, llm.lastPrompt, "kb context")
}

func TestIdentifyMissingDataIncludesLabels(t *testing.T) {
	llm := &scriptedAdapter{responses: []string{`{"missing_data_request":"fetch the lines above the fatal error in deploy.log"}`}}
	gen := NewGenerator(llm, zap.NewNop())

	req, err := gen.IdentifyMissingData(context.Background(), "summary", map[string]string{
		"filename": "deploy.log",
		"host":     "web01",
	})
	require.NoError(t, err)
	assert.Equal(t, "fetch the lines above the fatal error in deploy.log", req)
	assert.Contains(t, llm.lastPrompt, "filename: deploy.log")
	assert.Contains(t, llm.lastPrompt, "host: web01")
}

func TestSolveIncludesContextWhenPresent(t *testing.T) {
	llm := &scriptedAdapter{responses: []string{`{"step_by_step_solution":"1. Check the repo URL."}`}}
	gen := NewGenerator(llm, zap.NewNop())

	solution, err := gen.Solve(context.Background(), "summary", "log", "documented resolution here")
	require.NoError(t, err)
	assert.Equal(t, "1. Check the repo URL.", solution)
	assert.Contains(t, llm.lastPrompt, "documented resolution here")
	assert.Equal(t, "solve", llm.lastStep)
}

func TestSolveOmitsEmptyContextBlock(t *testing.T) {
	llm := &scriptedAdapter{responses: []string{`{"step_by_step_solution":"1. Retry."}`}}
	gen := NewGenerator(llm, zap.NewNop())

	_, err := gen.Solve(context.Background(), "summary", "log", "")
	require.NoError(t, err)
	assert.NotContains(t, llm.lastPrompt, "Context:")
}
