package server

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/db"
	"github.com/logtriage/logtriage-ai/internal/diagnose"
	"github.com/logtriage/logtriage-ai/internal/models"
)

// fakeDiagnoser records what the server hands it and marks alerts solved.
type fakeDiagnoser struct {
	mu      sync.Mutex
	single  []*models.Alert
	batches [][]*models.Alert
	done    chan struct{}
}

func newFakeDiagnoser() *fakeDiagnoser {
	return &fakeDiagnoser{done: make(chan struct{}, 16)}
}

func (f *fakeDiagnoser) ProcessAlert(_ context.Context, alert *models.Alert) error {
	f.mu.Lock()
	f.single = append(f.single, alert)
	f.mu.Unlock()
	alert.State = string(diagnose.StateSolved)
	f.done <- struct{}{}
	return nil
}

func (f *fakeDiagnoser) ProcessBatch(_ context.Context, alerts []*models.Alert) error {
	f.mu.Lock()
	f.batches = append(f.batches, alerts)
	f.mu.Unlock()
	for _, a := range alerts {
		a.State = string(diagnose.StateSolved)
	}
	f.done <- struct{}{}
	return nil
}

func (f *fakeDiagnoser) wait(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(2 * time.Second):
		t.Fatal("diagnosis did not run")
	}
}

func newTestServer(t *testing.T, diagnoser Diagnoser) (*Server, db.Store) {
	t.Helper()
	store, err := db.NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	srv := NewServer(Config{}, store, diagnoser, zap.NewNop())
	t.Cleanup(func() { srv.cancel(); srv.wg.Wait() })
	return srv, store
}

func doRequest(srv *Server, method, path string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()

	mux := http.NewServeMux()
	srv.registerHandlers(mux)
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthAndReady(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestIngestAlert(t *testing.T) {
	diagnoser := newFakeDiagnoser()
	srv, store := newTestServer(t, diagnoser)

	rec := doRequest(srv, http.MethodPost, "/api/v1/alerts", map[string]any{
		"logMessage": "fatal: [web01]: FAILED! => module failure",
		"labels":     map[string]string{"filename": "deploy.log"},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp["id"])
	assert.Equal(t, string(diagnose.StateStart), resp["state"])

	diagnoser.wait(t)
	assert.Len(t, diagnoser.single, 1)
	assert.Equal(t, "fatal: [web01]: FAILED! => module failure", diagnoser.single[0].LogMessage)

	stored, err := store.GetAlert(context.Background(), resp["id"])
	require.NoError(t, err)
	assert.Equal(t, "deploy.log", stored.Labels["filename"])
}

func TestIngestAlertRejectsEmptyLog(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodPost, "/api/v1/alerts", map[string]any{
		"logMessage": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestAlertRejectsBadJSON(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", bytes.NewBufferString("{not json"))
	rec := httptest.NewRecorder()
	mux := http.NewServeMux()
	srv.registerHandlers(mux)
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestIngestBatch(t *testing.T) {
	diagnoser := newFakeDiagnoser()
	srv, _ := newTestServer(t, diagnoser)

	rec := doRequest(srv, http.MethodPost, "/api/v1/alerts/batch", map[string]any{
		"alerts": []map[string]any{
			{"logMessage": "yum failed on web01"},
			{"logMessage": "yum failed on web02"},
		},
	})
	require.Equal(t, http.StatusAccepted, rec.Code)

	var resp struct {
		IDs   []string `json:"ids"`
		Count int      `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Count)
	assert.Len(t, resp.IDs, 2)

	diagnoser.wait(t)
	require.Len(t, diagnoser.batches, 1)
	assert.Len(t, diagnoser.batches[0], 2)
}

func TestIngestBatchRejectsEmpty(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodPost, "/api/v1/alerts/batch", map[string]any{"alerts": []any{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetAlertByID(t *testing.T) {
	srv, store := newTestServer(t, nil)
	require.NoError(t, store.UpsertAlert(context.Background(), &models.Alert{
		ID:         "known",
		LogMessage: "m",
		Category:   models.CategorySysAdmin,
		CreatedAt:  time.Now().UTC(),
	}))

	rec := doRequest(srv, http.MethodGet, "/api/v1/alerts/known", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var alert models.Alert
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &alert))
	assert.Equal(t, models.CategorySysAdmin, alert.Category)

	rec = doRequest(srv, http.MethodGet, "/api/v1/alerts/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAlertsWithFilters(t *testing.T) {
	srv, store := newTestServer(t, nil)
	ctx := context.Background()
	base := time.Now().UTC()
	require.NoError(t, store.UpsertAlert(ctx, &models.Alert{ID: "l1", LogMessage: "m", Category: models.CategoryNetworking, CreatedAt: base}))
	require.NoError(t, store.UpsertAlert(ctx, &models.Alert{ID: "l2", LogMessage: "m", Category: models.CategoryOther, CreatedAt: base.Add(time.Second)}))

	rec := doRequest(srv, http.MethodGet, "/api/v1/alerts?category=Networking+%2F+Security+Engineers", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Alerts []models.Alert `json:"alerts"`
		Count  int            `json:"count"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Count)
	assert.Equal(t, "l1", resp.Alerts[0].ID)

	rec = doRequest(srv, http.MethodGet, "/api/v1/alerts?limit=abc", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCategories(t *testing.T) {
	srv, store := newTestServer(t, nil)
	ctx := context.Background()
	require.NoError(t, store.UpsertAlert(ctx, &models.Alert{ID: "c1", LogMessage: "m", Category: models.CategoryIAM, CreatedAt: time.Now().UTC()}))
	require.NoError(t, store.UpsertAlert(ctx, &models.Alert{ID: "c2", LogMessage: "m", Category: models.CategoryIAM, CreatedAt: time.Now().UTC()}))

	rec := doRequest(srv, http.MethodGet, "/api/v1/categories", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Categories map[string]int `json:"categories"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 2, resp.Categories[models.CategoryIAM])
}

func TestMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodDelete, "/api/v1/alerts", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(srv, http.MethodPost, "/api/v1/alerts/known", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)

	rec = doRequest(srv, http.MethodGet, "/api/v1/alerts/batch", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _ := newTestServer(t, nil)

	rec := doRequest(srv, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
