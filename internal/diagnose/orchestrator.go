package diagnose

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/logtriage/logtriage-ai/internal/audit"
	"github.com/logtriage/logtriage-ai/internal/metrics"
	"github.com/logtriage/logtriage-ai/internal/models"
)

// Clusterer groups failure logs. Assign places a single log into the
// trained model; Fit retrains on a whole batch and returns one label per
// input, index-aligned.
type Clusterer interface {
	Assign(ctx context.Context, log string) (string, error)
	Fit(ctx context.Context, logs []string) ([]string, error)
}

// AlertStore persists alerts as the pipeline advances them.
type AlertStore interface {
	UpsertAlert(ctx context.Context, alert *models.Alert) error
}

// Config holds orchestrator tuning knobs.
type Config struct {
	MaxConcurrent int           // concurrent representative diagnoses per batch
	AlertTimeout  time.Duration // budget for one alert's full pipeline
}

// Orchestrator drives alerts through the diagnosis state machine. Every
// generation step degrades on failure: the alert keeps moving with an
// empty value for that step instead of aborting.
type Orchestrator struct {
	generator Generator
	retriever KnowledgeRetriever
	agent     LogQuerier
	clusterer Clusterer
	store     AlertStore
	cfg       Config
	logger    *zap.Logger

	mu       sync.RWMutex
	observer func(alertID string, state State)
	auditor  audit.Logger
}

// SetAuditor attaches an audit trail for finished diagnoses.
func (o *Orchestrator) SetAuditor(a audit.Logger) {
	o.mu.Lock()
	o.auditor = a
	o.mu.Unlock()
}

// SetObserver registers a callback invoked after every state transition.
// The callback runs on the pipeline goroutine and must not block.
func (o *Orchestrator) SetObserver(fn func(alertID string, state State)) {
	o.mu.Lock()
	o.observer = fn
	o.mu.Unlock()
}

func (o *Orchestrator) notify(alertID string, state State) {
	o.mu.RLock()
	fn := o.observer
	o.mu.RUnlock()
	if fn != nil {
		fn(alertID, state)
	}
}

// NewOrchestrator wires the pipeline. retriever, agent, clusterer and
// store may be nil; the corresponding steps are then skipped.
func NewOrchestrator(generator Generator, retriever KnowledgeRetriever, agent LogQuerier, clusterer Clusterer, store AlertStore, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = 4
	}
	if cfg.AlertTimeout <= 0 {
		cfg.AlertTimeout = 120 * time.Second
	}
	return &Orchestrator{
		generator: generator,
		retriever: retriever,
		agent:     agent,
		clusterer: clusterer,
		store:     store,
		cfg:       cfg,
		logger:    logger.Named("diagnose"),
	}
}

// degrade records a step failure and lets the pipeline continue.
func (o *Orchestrator) degrade(step, alertID string, err error) {
	fields := []zap.Field{zap.String("step", step), zap.String("alertId", alertID)}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	o.logger.Warn("step failed, continuing with empty result", fields...)
	metrics.StepFailuresTotal.WithLabelValues(step).Inc()
}

// ProcessAlert runs one alert through the full pipeline and persists the
// result. The returned error is reserved for programming errors and
// persistence failures; model and tool failures degrade instead.
func (o *Orchestrator) ProcessAlert(ctx context.Context, alert *models.Alert) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.AlertTimeout)
	defer cancel()

	start := time.Now()
	degraded := false

	state := StateStart
	for state != StateSolved {
		var event Event
		switch state {
		case StateStart:
			// Batch processing labels alerts before running them; only
			// unlabeled alerts go through single-log assignment.
			if alert.ClusterID == "" {
				clusterID, err := o.assignCluster(ctx, alert.LogMessage)
				if err != nil {
					o.degrade("cluster_assign", alert.ID, err)
					degraded = true
				}
				alert.ClusterID = clusterID
			}
			event = EventClustered

		case StateClustered:
			summary, err := o.generator.Summarize(ctx, alert.LogMessage)
			if err != nil {
				o.degrade("summarize", alert.ID, err)
				degraded = true
			}
			alert.Summary = summary
			event = EventSummarized

		case StateSummarized:
			category, err := o.generator.Classify(ctx, alert.Summary)
			if err != nil {
				o.degrade("classify", alert.ID, err)
				degraded = true
			}
			alert.Category = category
			event = EventClassified

		case StateClassified:
			needsContext, err := o.generator.RouteSolution(ctx, alert.Summary, alert.LogMessage)
			if err != nil {
				o.degrade("route_solution", alert.ID, err)
				degraded = true
				needsContext = false
			}
			alert.NeedsContext = needsContext
			if needsContext {
				event = EventRoutedNeedsContext
			} else {
				event = EventRoutedSufficient
			}

		case StateContextGathering:
			alert.Context = o.gatherContext(ctx, alert)
			fallthrough

		case StateRouted:
			solution, err := o.generator.Solve(ctx, alert.Summary, alert.LogMessage, alert.Context)
			if err != nil {
				o.degrade("solve", alert.ID, err)
				degraded = true
			}
			alert.Solution = solution
			event = EventSolved
		}

		next, err := Next(state, event)
		if err != nil {
			return err
		}
		state = next
		alert.State = string(state)
		o.notify(alert.ID, state)
	}

	alert.UpdatedAt = time.Now().UTC()

	status := "solved"
	if degraded {
		status = "degraded"
	}
	metrics.AlertsProcessedTotal.WithLabelValues(status).Inc()
	metrics.AlertPipelineDuration.Observe(time.Since(start).Seconds())

	o.mu.RLock()
	auditor := o.auditor
	o.mu.RUnlock()
	if auditor != nil {
		if err := auditor.LogDiagnosis(ctx, alert.ID, alert.Category, degraded, time.Since(start)); err != nil {
			o.logger.Warn("audit write failed", zap.Error(err))
		}
	}
	o.logger.Info("alert diagnosed",
		zap.String("alertId", alert.ID),
		zap.String("clusterId", alert.ClusterID),
		zap.String("category", alert.Category),
		zap.Bool("degraded", degraded),
		zap.Duration("took", time.Since(start)))

	return o.persist(ctx, alert)
}

func (o *Orchestrator) assignCluster(ctx context.Context, log string) (string, error) {
	if o.clusterer == nil {
		return "", nil
	}
	return o.clusterer.Assign(ctx, log)
}

func (o *Orchestrator) persist(ctx context.Context, alert *models.Alert) error {
	if o.store == nil {
		return nil
	}
	if err := o.store.UpsertAlert(ctx, alert); err != nil {
		return fmt.Errorf("persist alert %s: %w", alert.ID, err)
	}
	return nil
}

// ProcessBatch clusters a batch of alerts, diagnoses one representative
// per cluster and copies each representative's result to its cluster
// siblings. Representatives run concurrently behind a fixed-size
// semaphore; one failing alert never touches its siblings.
func (o *Orchestrator) ProcessBatch(ctx context.Context, alerts []*models.Alert) error {
	if len(alerts) == 0 {
		return nil
	}

	labels := o.clusterBatch(ctx, alerts)

	// First alert seen per label speaks for the cluster.
	representatives := make(map[string]*models.Alert)
	members := make(map[string][]*models.Alert)
	order := make([]string, 0)
	for i, alert := range alerts {
		label := labels[i]
		alert.ClusterID = label
		if _, ok := representatives[label]; !ok {
			representatives[label] = alert
			order = append(order, label)
		} else {
			members[label] = append(members[label], alert)
		}
	}

	sem := make(chan struct{}, o.cfg.MaxConcurrent)
	var wg sync.WaitGroup
	for _, label := range order {
		rep := representatives[label]
		wg.Add(1)
		go func() {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			if err := o.ProcessAlert(ctx, rep); err != nil {
				o.logger.Error("representative diagnosis failed",
					zap.String("alertId", rep.ID),
					zap.String("clusterId", rep.ClusterID),
					zap.Error(err))
				metrics.AlertsProcessedTotal.WithLabelValues("failed").Inc()
			}
		}()
	}
	wg.Wait()

	// Siblings inherit the representative's diagnosis verbatim.
	for label, rep := range representatives {
		for _, sibling := range members[label] {
			sibling.Summary = rep.Summary
			sibling.Category = rep.Category
			sibling.Solution = rep.Solution
			sibling.Context = rep.Context
			sibling.NeedsContext = rep.NeedsContext
			sibling.State = rep.State
			sibling.UpdatedAt = time.Now().UTC()
			if err := o.persist(ctx, sibling); err != nil {
				o.logger.Error("sibling persist failed",
					zap.String("alertId", sibling.ID),
					zap.Error(err))
			}
		}
	}
	return nil
}

// clusterBatch refits the cluster model on the batch. When refitting is
// unavailable or fails, every alert becomes its own cluster so the batch
// still runs, just without dedup.
func (o *Orchestrator) clusterBatch(ctx context.Context, alerts []*models.Alert) []string {
	labels := make([]string, len(alerts))

	if o.clusterer != nil {
		logs := make([]string, len(alerts))
		for i, a := range alerts {
			logs[i] = a.LogMessage
		}
		fitted, err := o.clusterer.Fit(ctx, logs)
		if err == nil && len(fitted) == len(alerts) {
			return fitted
		}
		o.degrade("cluster_fit", "", err)
	}

	for i, a := range alerts {
		labels[i] = "alert:" + a.ID
	}
	return labels
}
