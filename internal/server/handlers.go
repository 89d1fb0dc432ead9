package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/db"
	"github.com/logtriage/logtriage-ai/internal/diagnose"
	"github.com/logtriage/logtriage-ai/internal/models"
)

// ingestRequest is the alert ingestion payload.
type ingestRequest struct {
	LogMessage   string            `json:"logMessage"`
	LogTimestamp *time.Time        `json:"logTimestamp,omitempty"`
	Labels       map[string]string `json:"labels,omitempty"`
}

type batchRequest struct {
	Alerts []ingestRequest `json:"alerts"`
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn("response encode failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.store != nil {
		if err := s.store.Ping(r.Context()); err != nil {
			s.writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleAlerts serves POST (ingest one) and GET (list) on /api/v1/alerts.
func (s *Server) handleAlerts(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.ingestAlert(w, r)
	case http.MethodGet:
		s.listAlerts(w, r)
	default:
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) ingestAlert(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.LogMessage) == "" {
		s.writeError(w, http.StatusBadRequest, "logMessage is required")
		return
	}

	alert := s.newAlert(req)
	if err := s.store.UpsertAlert(r.Context(), alert); err != nil {
		s.logger.Error("alert persist failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to store alert")
		return
	}

	s.auditIngested(r, alert.ID)
	s.diagnoseAsync([]*models.Alert{alert}, false)
	s.writeJSON(w, http.StatusAccepted, map[string]string{
		"id":    alert.ID,
		"state": alert.State,
	})
}

func (s *Server) handleAlertBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req batchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Alerts) == 0 {
		s.writeError(w, http.StatusBadRequest, "alerts is required")
		return
	}

	alerts := make([]*models.Alert, 0, len(req.Alerts))
	ids := make([]string, 0, len(req.Alerts))
	for _, item := range req.Alerts {
		if strings.TrimSpace(item.LogMessage) == "" {
			s.writeError(w, http.StatusBadRequest, "every alert needs a logMessage")
			return
		}
		alert := s.newAlert(item)
		alerts = append(alerts, alert)
		ids = append(ids, alert.ID)
	}
	for _, alert := range alerts {
		if err := s.store.UpsertAlert(r.Context(), alert); err != nil {
			s.logger.Error("alert persist failed", zap.Error(err))
			s.writeError(w, http.StatusInternalServerError, "failed to store alerts")
			return
		}
	}

	for _, id := range ids {
		s.auditIngested(r, id)
	}
	s.diagnoseAsync(alerts, true)
	s.writeJSON(w, http.StatusAccepted, map[string]any{
		"ids":   ids,
		"count": len(ids),
	})
}

func (s *Server) auditIngested(r *http.Request, alertID string) {
	if s.auditor == nil {
		return
	}
	if err := s.auditor.LogAlertIngested(r.Context(), alertID, r.RemoteAddr); err != nil {
		s.logger.Warn("audit write failed", zap.Error(err))
	}
}

func (s *Server) newAlert(req ingestRequest) *models.Alert {
	now := time.Now().UTC()
	return &models.Alert{
		ID:           uuid.NewString(),
		LogMessage:   req.LogMessage,
		LogTimestamp: req.LogTimestamp,
		Labels:       req.Labels,
		State:        string(diagnose.StateStart),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// diagnoseAsync hands alerts to the pipeline on a server-owned goroutine
// so ingestion returns immediately. Batches go through cluster dedup;
// single alerts run the per-alert path.
func (s *Server) diagnoseAsync(alerts []*models.Alert, batch bool) {
	if s.diagnoser == nil {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		var err error
		if batch {
			err = s.diagnoser.ProcessBatch(s.ctx, alerts)
		} else {
			err = s.diagnoser.ProcessAlert(s.ctx, alerts[0])
		}
		if err != nil {
			s.logger.Error("diagnosis failed", zap.Error(err))
		}
	}()
}

func (s *Server) listAlerts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := db.AlertFilter{
		Category:  q.Get("category"),
		ClusterID: q.Get("clusterId"),
		State:     q.Get("state"),
	}
	if raw := q.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 1 {
			s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		filter.Limit = limit
	}

	alerts, err := s.store.ListAlerts(r.Context(), filter)
	if err != nil {
		s.logger.Error("alert list failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to list alerts")
		return
	}
	if alerts == nil {
		alerts = []*models.Alert{}
	}
	s.writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"count":  len(alerts),
	})
}

func (s *Server) handleAlertByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/api/v1/alerts/")
	if id == "" || strings.Contains(id, "/") {
		s.writeError(w, http.StatusBadRequest, "invalid alert id")
		return
	}

	alert, err := s.store.GetAlert(r.Context(), id)
	if err == db.ErrNotFound {
		s.writeError(w, http.StatusNotFound, "alert not found")
		return
	}
	if err != nil {
		s.logger.Error("alert fetch failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to fetch alert")
		return
	}
	s.writeJSON(w, http.StatusOK, alert)
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	counts, err := s.store.CountAlertsByCategory(r.Context())
	if err != nil {
		s.logger.Error("category count failed", zap.Error(err))
		s.writeError(w, http.StatusInternalServerError, "failed to count categories")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]any{"categories": counts})
}
