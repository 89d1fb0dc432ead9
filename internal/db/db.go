package db

import (
	"context"
	"errors"

	"github.com/logtriage/logtriage-ai/internal/models"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store is the persistence interface for diagnosed alerts.
type Store interface {
	// UpsertAlert inserts the alert or, when the id already exists,
	// overwrites its diagnosis fields.
	UpsertAlert(ctx context.Context, alert *models.Alert) error

	// GetAlert fetches one alert by id. Returns ErrNotFound when absent.
	GetAlert(ctx context.Context, id string) (*models.Alert, error)

	// ListAlerts returns alerts newest first, optionally filtered by
	// expert category and cluster id. Empty filter values match all.
	ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.Alert, error)

	// CountAlertsByCategory aggregates alert counts per expert category.
	CountAlertsByCategory(ctx context.Context) (map[string]int, error)

	// Close releases database resources.
	Close() error

	// Ping verifies the connection is alive.
	Ping(ctx context.Context) error
}

// AlertFilter narrows ListAlerts results.
type AlertFilter struct {
	Category  string
	ClusterID string
	State     string
	Limit     int // 0 means the default page size
}
