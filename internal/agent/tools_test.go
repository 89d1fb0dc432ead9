package agent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/logstore"
	"github.com/logtriage/logtriage-ai/internal/models"
)

// fakeStore answers queries from a canned chronological log file and
// records every query it receives.
type fakeStore struct {
	entries []models.LogEntry // chronological
	queries []logstore.Query
	err     error
}

func (f *fakeStore) QueryRange(_ context.Context, q logstore.Query) ([]models.LogEntry, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}

	var matched []models.LogEntry
	for _, e := range f.entries {
		if q.Query == "" || !strings.Contains(q.Query, "|=") {
			matched = append(matched, e)
			continue
		}
		// Extract the |= "text" filter.
		idx := strings.Index(q.Query, `|= "`)
		text := strings.TrimSuffix(q.Query[idx+4:], `"`)
		if strings.Contains(e.Message, text) {
			matched = append(matched, e)
		}
	}

	if q.Direction != "forward" {
		reversed := make([]models.LogEntry, len(matched))
		for i, e := range matched {
			reversed[len(matched)-1-i] = e
		}
		matched = reversed
	}
	if q.Limit > 0 && len(matched) > q.Limit {
		matched = matched[:q.Limit]
	}
	return matched, nil
}

// syntheticFile builds a 100-line chronological log with a unique error
// line at index 60.
func syntheticFile() []models.LogEntry {
	entries := make([]models.LogEntry, 100)
	for i := range entries {
		msg := fmt.Sprintf("routine line %02d", i)
		if i == 60 {
			msg = "fatal: task install packages failed"
		}
		entries[i] = models.LogEntry{
			Timestamp: strconv.FormatInt(int64(i+1)*1_000_000_000, 10),
			Labels:    map[string]string{"filename": "/var/log/ansible.log"},
			Message:   msg,
		}
	}
	return entries
}

func TestGetLogsByFileNameBuildsSuffixQuery(t *testing.T) {
	store := &fakeStore{entries: syntheticFile()}
	tools := NewTools(store, zap.NewNop())

	result := tools.GetLogsByFileName(context.Background(), FileLogParams{
		FileName: "ansible.log",
		Level:    "error",
	})
	require.Equal(t, models.ToolSuccess, result.Status)
	require.Len(t, store.queries, 1)
	assert.Equal(t, "{filename=~\".*ansible.log$\"} | detected_level=`error`", store.queries[0].Query)
	assert.Equal(t, "-24h", store.queries[0].Start)
	assert.Equal(t, 100, store.queries[0].Limit)
}

func TestGetLogsByFileNameRequiresName(t *testing.T) {
	tools := NewTools(&fakeStore{}, zap.NewNop())
	result := tools.GetLogsByFileName(context.Background(), FileLogParams{})
	assert.Equal(t, models.ToolError, result.Status)
}

func TestSearchLogsByTextEscapesQuotes(t *testing.T) {
	store := &fakeStore{}
	tools := NewTools(store, zap.NewNop())

	result := tools.SearchLogsByText(context.Background(), SearchTextParams{
		Text: `msg "quoted" here`,
	})
	require.Equal(t, models.ToolSuccess, result.Status)
	assert.Equal(t, `{job=~".+"} |= "msg \"quoted\" here"`, store.queries[0].Query)
}

func TestSearchLogsByTextScopedToFile(t *testing.T) {
	store := &fakeStore{}
	tools := NewTools(store, zap.NewNop())

	tools.SearchLogsByText(context.Background(), SearchTextParams{
		Text:     "timeout",
		FileName: "api.log",
	})
	assert.Equal(t, `{filename=~".*api.log$"} |= "timeout"`, store.queries[0].Query)
}

func TestGetLogLinesAboveReturnsWindow(t *testing.T) {
	store := &fakeStore{entries: syntheticFile()}
	tools := NewTools(store, zap.NewNop())

	result := tools.GetLogLinesAbove(context.Background(), LinesAboveParams{
		FileName:   "ansible.log",
		LogMessage: "fatal: task install packages failed",
		LinesAbove: 10,
	})
	require.Equal(t, models.ToolSuccess, result.Status, result.Message)

	// 10 lines above plus the target itself, chronological.
	require.Len(t, result.Logs, 11)
	assert.Equal(t, "routine line 50", result.Logs[0].Message)
	assert.Equal(t, "routine line 59", result.Logs[9].Message)
	assert.Equal(t, "fatal: task install packages failed", result.Logs[10].Message)
	assert.Equal(t, 11, result.Count)

	// Phase one locates with a single row over the max lookback; phase
	// two fetches the window backward at the row cap.
	require.Len(t, store.queries, 2)
	assert.Equal(t, 1, store.queries[0].Limit)
	assert.Equal(t, "-720h", store.queries[0].Start)
	assert.Equal(t, logstore.MaxQueryLimit, store.queries[1].Limit)
	assert.Equal(t, "backward", store.queries[1].Direction)
}

func TestGetLogLinesAboveClampsAtFileStart(t *testing.T) {
	entries := syntheticFile()[:5]
	entries[3].Message = "early failure"
	store := &fakeStore{entries: entries}
	tools := NewTools(store, zap.NewNop())

	result := tools.GetLogLinesAbove(context.Background(), LinesAboveParams{
		FileName:   "ansible.log",
		LogMessage: "early failure",
		LinesAbove: 10,
	})
	require.Equal(t, models.ToolSuccess, result.Status)
	assert.Len(t, result.Logs, 4) // only 3 lines exist above
	assert.Equal(t, "early failure", result.Logs[3].Message)
}

func TestGetLogLinesAboveTargetNotFound(t *testing.T) {
	store := &fakeStore{entries: syntheticFile()}
	tools := NewTools(store, zap.NewNop())

	result := tools.GetLogLinesAbove(context.Background(), LinesAboveParams{
		FileName:   "ansible.log",
		LogMessage: "message that never appears",
	})
	assert.Equal(t, models.ToolError, result.Status)
	assert.Contains(t, result.Message, "not found")
	assert.Empty(t, result.Logs)
}

func TestToolsSurfaceStoreErrors(t *testing.T) {
	store := &fakeStore{err: fmt.Errorf("store unreachable")}
	tools := NewTools(store, zap.NewNop())

	result := tools.SearchLogsByText(context.Background(), SearchTextParams{Text: "x"})
	assert.Equal(t, models.ToolError, result.Status)
	assert.Contains(t, result.Message, "store unreachable")
}
