package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // pure-Go SQLite driver (no CGO required)

	"github.com/logtriage/logtriage-ai/internal/models"
)

// defaultListLimit caps ListAlerts when the caller passes no limit.
const defaultListLimit = 100

// Schema version is tracked in the schema_versions table.
var migrations = []struct {
	version int
	sql     string
}{
	{
		version: 1,
		sql: `
CREATE TABLE IF NOT EXISTS schema_versions (
    version     INTEGER PRIMARY KEY,
    applied_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS alerts (
    id            TEXT PRIMARY KEY,
    log_message   TEXT NOT NULL,
    log_timestamp DATETIME,
    labels        TEXT NOT NULL DEFAULT '{}',
    cluster_id    TEXT NOT NULL DEFAULT '',
    summary       TEXT NOT NULL DEFAULT '',
    category      TEXT NOT NULL DEFAULT '',
    solution      TEXT NOT NULL DEFAULT '',
    context       TEXT NOT NULL DEFAULT '',
    needs_context INTEGER NOT NULL DEFAULT 0,
    state         TEXT NOT NULL DEFAULT 'start',
    created_at    DATETIME NOT NULL,
    updated_at    DATETIME NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_alerts_category   ON alerts(category);
CREATE INDEX IF NOT EXISTS idx_alerts_cluster_id ON alerts(cluster_id);
CREATE INDEX IF NOT EXISTS idx_alerts_state      ON alerts(state);
CREATE INDEX IF NOT EXISTS idx_alerts_created_at ON alerts(created_at DESC);
`,
	},
}

// sqliteStore is the SQLite-backed implementation of Store.
type sqliteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a SQLite database at the given path and
// runs all pending schema migrations. Pass ":memory:" for an in-memory store.
func NewSQLiteStore(path string) (Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}

	// Enable WAL mode for better concurrency and performance.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("enable WAL: %w", err)
	}

	s := &sqliteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// migrate applies any unapplied migrations in order.
func (s *sqliteStore) migrate() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_versions (
        version    INTEGER PRIMARY KEY,
        applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
    )`)
	if err != nil {
		return fmt.Errorf("create schema_versions: %w", err)
	}

	for _, m := range migrations {
		var count int
		err := s.db.QueryRow(`SELECT COUNT(*) FROM schema_versions WHERE version = ?`, m.version).Scan(&count)
		if err != nil {
			return fmt.Errorf("check migration %d: %w", m.version, err)
		}
		if count > 0 {
			continue // already applied
		}

		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("apply migration %d: %w", m.version, err)
		}

		if _, err := s.db.Exec(`INSERT INTO schema_versions(version) VALUES(?)`, m.version); err != nil {
			return fmt.Errorf("record migration %d: %w", m.version, err)
		}
	}
	return nil
}

func (s *sqliteStore) Close() error { return s.db.Close() }

func (s *sqliteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *sqliteStore) UpsertAlert(ctx context.Context, alert *models.Alert) error {
	labels, err := json.Marshal(alert.Labels)
	if err != nil {
		return fmt.Errorf("marshal labels: %w", err)
	}

	var logTS any
	if alert.LogTimestamp != nil {
		logTS = alert.LogTimestamp.UTC()
	}

	createdAt := alert.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	updatedAt := alert.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = createdAt
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO alerts(id, log_message, log_timestamp, labels, cluster_id, summary, category, solution, context, needs_context, state, created_at, updated_at)
        VALUES(?,?,?,?,?,?,?,?,?,?,?,?,?)
        ON CONFLICT(id) DO UPDATE SET
            cluster_id    = excluded.cluster_id,
            summary       = excluded.summary,
            category      = excluded.category,
            solution      = excluded.solution,
            context       = excluded.context,
            needs_context = excluded.needs_context,
            state         = excluded.state,
            updated_at    = excluded.updated_at
    `,
		alert.ID, alert.LogMessage, logTS, string(labels), alert.ClusterID,
		alert.Summary, alert.Category, alert.Solution, alert.Context,
		boolToInt(alert.NeedsContext), alert.State, createdAt, updatedAt,
	)
	if err != nil {
		return fmt.Errorf("upsert alert %s: %w", alert.ID, err)
	}
	return nil
}

func (s *sqliteStore) GetAlert(ctx context.Context, id string) (*models.Alert, error) {
	row := s.db.QueryRowContext(ctx, `
        SELECT id, log_message, log_timestamp, labels, cluster_id, summary, category, solution, context, needs_context, state, created_at, updated_at
        FROM alerts WHERE id = ?
    `, id)

	alert, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get alert %s: %w", id, err)
	}
	return alert, nil
}

func (s *sqliteStore) ListAlerts(ctx context.Context, filter AlertFilter) ([]*models.Alert, error) {
	query := `
        SELECT id, log_message, log_timestamp, labels, cluster_id, summary, category, solution, context, needs_context, state, created_at, updated_at
        FROM alerts WHERE 1=1`
	args := []any{}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.ClusterID != "" {
		query += ` AND cluster_id = ?`
		args = append(args, filter.ClusterID)
	}
	if filter.State != "" {
		query += ` AND state = ?`
		args = append(args, filter.State)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	defer rows.Close()

	var results []*models.Alert
	for rows.Next() {
		alert, err := scanAlert(rows)
		if err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		results = append(results, alert)
	}
	return results, rows.Err()
}

func (s *sqliteStore) CountAlertsByCategory(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT category, COUNT(*) FROM alerts GROUP BY category
    `)
	if err != nil {
		return nil, fmt.Errorf("count alerts by category: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("scan category count: %w", err)
		}
		counts[category] = count
	}
	return counts, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanAlert(row scanner) (*models.Alert, error) {
	var (
		alert        models.Alert
		logTS        sql.NullTime
		labels       string
		needsContext int
	)
	err := row.Scan(
		&alert.ID, &alert.LogMessage, &logTS, &labels, &alert.ClusterID,
		&alert.Summary, &alert.Category, &alert.Solution, &alert.Context,
		&needsContext, &alert.State, &alert.CreatedAt, &alert.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if logTS.Valid {
		t := logTS.Time
		alert.LogTimestamp = &t
	}
	if err := json.Unmarshal([]byte(labels), &alert.Labels); err != nil {
		return nil, fmt.Errorf("unmarshal labels: %w", err)
	}
	alert.NeedsContext = needsContext != 0
	return &alert, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
