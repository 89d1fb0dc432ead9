// Package jobs runs the background maintenance schedule: periodically
// refitting the cluster model on recent alerts so drift in failure
// wording does not erode dedup quality.
package jobs

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/db"
	"github.com/logtriage/logtriage-ai/internal/models"
)

// Refitter retrains the cluster model on a batch of logs.
type Refitter interface {
	Fit(ctx context.Context, logs []string) ([]string, error)
}

// Config tunes the refit schedule.
type Config struct {
	Interval    time.Duration // how often to refit; zero disables the job
	WindowHours int           // how far back to pull alerts, default 168 (one week)
	MaxAlerts   int           // refit sample cap, default 1000
}

// Scheduler owns the gocron scheduler and the refit job.
type Scheduler struct {
	scheduler gocron.Scheduler
	store     db.Store
	refitter  Refitter
	cfg       Config
	logger    *zap.Logger
}

// NewScheduler builds the scheduler without starting it.
func NewScheduler(store db.Store, refitter Refitter, cfg Config, logger *zap.Logger) (*Scheduler, error) {
	if cfg.WindowHours <= 0 {
		cfg.WindowHours = 168
	}
	if cfg.MaxAlerts <= 0 {
		cfg.MaxAlerts = 1000
	}

	scheduler, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, err
	}
	return &Scheduler{
		scheduler: scheduler,
		store:     store,
		refitter:  refitter,
		cfg:       cfg,
		logger:    logger.Named("jobs"),
	}, nil
}

// Start registers the refit job and begins running it. A zero interval
// means the schedule stays empty, which keeps single-binary deployments
// without a cluster model from spinning an idle goroutine.
func (s *Scheduler) Start() error {
	if s.cfg.Interval > 0 {
		_, err := s.scheduler.NewJob(
			gocron.DurationJob(s.cfg.Interval),
			gocron.NewTask(s.runRefit),
			gocron.WithName("cluster-refit"),
		)
		if err != nil {
			return err
		}
	}
	s.scheduler.Start()
	return nil
}

// Stop shuts the scheduler down, waiting for a running job to finish.
func (s *Scheduler) Stop() error {
	return s.scheduler.Shutdown()
}

func (s *Scheduler) runRefit() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	alerts, err := s.store.ListAlerts(ctx, db.AlertFilter{Limit: s.cfg.MaxAlerts})
	if err != nil {
		s.logger.Error("refit aborted, listing alerts failed", zap.Error(err))
		return
	}

	cutoff := time.Now().UTC().Add(-time.Duration(s.cfg.WindowHours) * time.Hour)
	logs := RecentLogs(alerts, cutoff)
	if len(logs) < 2 {
		s.logger.Info("refit skipped, not enough recent alerts",
			zap.Int("alerts", len(logs)))
		return
	}

	if _, err := s.refitter.Fit(ctx, logs); err != nil {
		s.logger.Error("cluster refit failed", zap.Error(err))
		return
	}
	s.logger.Info("cluster model refit", zap.Int("alerts", len(logs)))
}

// RecentLogs filters the refit sample down to alerts created after the
// cutoff. Older wording has usually been clustered already and only
// drags the centroids backward.
func RecentLogs(alerts []*models.Alert, cutoff time.Time) []string {
	logs := make([]string, 0, len(alerts))
	for _, a := range alerts {
		if a.CreatedAt.Before(cutoff) {
			continue
		}
		logs = append(logs, a.LogMessage)
	}
	return logs
}
