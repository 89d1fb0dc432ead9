package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLogger(t *testing.T) (Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(&Config{Path: path, FlushInterval: time.Hour})
	require.NoError(t, err)
	t.Cleanup(func() { _ = l.Close() })
	return l, path
}

func readEvents(t *testing.T, path string) []Event {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var events []Event
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e Event
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &e))
		events = append(events, e)
	}
	require.NoError(t, scanner.Err())
	return events
}

func TestLogWritesJSONLines(t *testing.T) {
	l, path := newTestLogger(t)
	ctx := context.Background()

	require.NoError(t, l.LogAlertIngested(ctx, "alert-1", "10.0.0.5:4432"))
	require.NoError(t, l.LogDiagnosis(ctx, "alert-1", "Other / Miscellaneous", false, 3*time.Second))
	require.NoError(t, l.Sync())

	events := readEvents(t, path)
	require.Len(t, events, 2)

	assert.Equal(t, EventAlertIngested, events[0].EventType)
	assert.Equal(t, "alert-1", events[0].AlertID)
	assert.Equal(t, "10.0.0.5:4432", events[0].SourceIP)
	assert.False(t, events[0].Timestamp.IsZero())

	assert.Equal(t, EventDiagnosisSolved, events[1].EventType)
	assert.Equal(t, int64(3000), events[1].DurationMs)
}

func TestLogDiagnosisDegraded(t *testing.T) {
	l, path := newTestLogger(t)

	require.NoError(t, l.LogDiagnosis(context.Background(), "alert-2", "", true, time.Second))
	require.NoError(t, l.Sync())

	events := readEvents(t, path)
	require.Len(t, events, 1)
	assert.Equal(t, EventDiagnosisDegraded, events[0].EventType)
}

func TestCorrelationIDFlowsThroughContext(t *testing.T) {
	l, path := newTestLogger(t)

	id := GenerateCorrelationID()
	ctx := WithCorrelationID(context.Background(), id)
	require.NoError(t, l.Log(ctx, NewEvent(EventServerStarted)))
	require.NoError(t, l.Sync())

	events := readEvents(t, path)
	require.Len(t, events, 1)
	assert.Equal(t, id, events[0].CorrelationID)
}

func TestCloseFlushesBuffer(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(&Config{Path: path, FlushInterval: time.Hour})
	require.NoError(t, err)

	require.NoError(t, l.LogIndexRebuilt(context.Background(), 42, "nomic-embed-text-v1.5"))
	require.NoError(t, l.Close())

	events := readEvents(t, path)
	require.Len(t, events, 1)
	assert.Equal(t, EventIndexRebuilt, events[0].EventType)
	assert.EqualValues(t, 42, events[0].Metadata["entries"])
}

func TestLogAfterCloseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.log")
	l, err := NewLogger(&Config{Path: path})
	require.NoError(t, err)
	require.NoError(t, l.Close())

	assert.Error(t, l.Log(context.Background(), NewEvent(EventServerShutdown)))
}
