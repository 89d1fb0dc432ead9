package db

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/logtriage/logtriage-ai/internal/models"
)

func newTestStore(t *testing.T) Store {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestAlertUpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ts := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	alert := &models.Alert{
		ID:           "alert-001",
		LogMessage:   "fatal: [web01]: FAILED! => module failure",
		LogTimestamp: &ts,
		Labels:       map[string]string{"filename": "deploy.log", "host": "web01"},
		State:        "start",
		CreatedAt:    time.Now().UTC().Round(time.Second),
	}

	if err := s.UpsertAlert(ctx, alert); err != nil {
		t.Fatalf("UpsertAlert: %v", err)
	}

	got, err := s.GetAlert(ctx, "alert-001")
	if err != nil {
		t.Fatalf("GetAlert: %v", err)
	}
	if got.LogMessage != alert.LogMessage {
		t.Errorf("expected log message %q, got %q", alert.LogMessage, got.LogMessage)
	}
	if got.Labels["filename"] != "deploy.log" {
		t.Errorf("expected filename label, got %v", got.Labels)
	}
	if got.LogTimestamp == nil || !got.LogTimestamp.Equal(ts) {
		t.Errorf("expected log timestamp %v, got %v", ts, got.LogTimestamp)
	}

	// Upsert overwrites the diagnosis fields.
	alert.Summary = "the deploy task failed"
	alert.Category = models.CategoryCICD
	alert.Solution = "1. Re-run with -vvv."
	alert.NeedsContext = true
	alert.State = "solved"
	alert.UpdatedAt = time.Now().UTC().Round(time.Second)
	if err := s.UpsertAlert(ctx, alert); err != nil {
		t.Fatalf("UpsertAlert update: %v", err)
	}

	got, err = s.GetAlert(ctx, "alert-001")
	if err != nil {
		t.Fatalf("GetAlert after update: %v", err)
	}
	if got.Category != models.CategoryCICD {
		t.Errorf("expected category %q, got %q", models.CategoryCICD, got.Category)
	}
	if !got.NeedsContext {
		t.Error("expected needs_context to persist")
	}
	if got.State != "solved" {
		t.Errorf("expected state solved, got %q", got.State)
	}
}

func TestGetAlertNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetAlert(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListAlertsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	seed := []*models.Alert{
		{ID: "a1", LogMessage: "m1", Category: models.CategorySysAdmin, ClusterID: "3", State: "solved", CreatedAt: base},
		{ID: "a2", LogMessage: "m2", Category: models.CategorySysAdmin, ClusterID: "5", State: "solved", CreatedAt: base.Add(time.Minute)},
		{ID: "a3", LogMessage: "m3", Category: models.CategoryNetworking, ClusterID: "3", State: "start", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, a := range seed {
		if err := s.UpsertAlert(ctx, a); err != nil {
			t.Fatalf("UpsertAlert %s: %v", a.ID, err)
		}
	}

	all, err := s.ListAlerts(ctx, AlertFilter{})
	if err != nil {
		t.Fatalf("ListAlerts: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 alerts, got %d", len(all))
	}
	// Newest first.
	if all[0].ID != "a3" || all[2].ID != "a1" {
		t.Errorf("expected newest-first order, got %s..%s", all[0].ID, all[2].ID)
	}

	byCategory, err := s.ListAlerts(ctx, AlertFilter{Category: models.CategorySysAdmin})
	if err != nil {
		t.Fatalf("ListAlerts by category: %v", err)
	}
	if len(byCategory) != 2 {
		t.Errorf("expected 2 sysadmin alerts, got %d", len(byCategory))
	}

	byCluster, err := s.ListAlerts(ctx, AlertFilter{ClusterID: "3"})
	if err != nil {
		t.Fatalf("ListAlerts by cluster: %v", err)
	}
	if len(byCluster) != 2 {
		t.Errorf("expected 2 alerts in cluster 3, got %d", len(byCluster))
	}

	byState, err := s.ListAlerts(ctx, AlertFilter{State: "start"})
	if err != nil {
		t.Fatalf("ListAlerts by state: %v", err)
	}
	if len(byState) != 1 || byState[0].ID != "a3" {
		t.Errorf("expected only a3 in state start, got %v", byState)
	}

	limited, err := s.ListAlerts(ctx, AlertFilter{Limit: 1})
	if err != nil {
		t.Fatalf("ListAlerts limited: %v", err)
	}
	if len(limited) != 1 || limited[0].ID != "a3" {
		t.Errorf("expected one newest alert, got %v", limited)
	}
}

func TestCountAlertsByCategory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		a := &models.Alert{
			ID:         fmt.Sprintf("n%d", i),
			LogMessage: "m",
			Category:   models.CategoryNetworking,
			CreatedAt:  time.Now().UTC(),
		}
		if err := s.UpsertAlert(ctx, a); err != nil {
			t.Fatalf("UpsertAlert: %v", err)
		}
	}
	if err := s.UpsertAlert(ctx, &models.Alert{ID: "o1", LogMessage: "m", Category: models.CategoryOther, CreatedAt: time.Now().UTC()}); err != nil {
		t.Fatalf("UpsertAlert: %v", err)
	}

	counts, err := s.CountAlertsByCategory(ctx)
	if err != nil {
		t.Fatalf("CountAlertsByCategory: %v", err)
	}
	if counts[models.CategoryNetworking] != 3 {
		t.Errorf("expected 3 networking alerts, got %d", counts[models.CategoryNetworking])
	}
	if counts[models.CategoryOther] != 1 {
		t.Errorf("expected 1 other alert, got %d", counts[models.CategoryOther])
	}
}

func TestMigrateIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.(*sqliteStore).migrate(); err != nil {
		t.Fatalf("second migrate: %v", err)
	}
	if err := s.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}
