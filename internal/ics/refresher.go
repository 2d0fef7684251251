package ics

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/teemow/agenda/internal/instrumentation"
	"github.com/teemow/agenda/internal/logging"
)

// DefaultRefreshSchedule refreshes feeds every 15 minutes.
const DefaultRefreshSchedule = "*/15 * * * *"

// Refresher reloads the feeds of a Source on a cron schedule so requests in
// serve mode find them warm.
type Refresher struct {
	source  *Source
	cron    *cron.Cron
	metrics *instrumentation.Metrics
	logger  *slog.Logger
	timeout time.Duration
}

// NewRefresher schedules source refreshes. The schedule is a standard five
// field cron expression or a descriptor such as "@every 10m".
func NewRefresher(source *Source, schedule string, metrics *instrumentation.Metrics, logger *slog.Logger) (*Refresher, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if schedule == "" {
		schedule = DefaultRefreshSchedule
	}
	logger = logging.WithOperation(logging.WithSource(logger, source.Name()), instrumentation.OperationRefresh)
	adapter := logging.NewSlogAdapter(logger)

	r := &Refresher{
		source:  source,
		metrics: metrics,
		logger:  logger,
		timeout: time.Minute,
		cron: cron.New(
			cron.WithLogger(adapter),
			cron.WithChain(cron.Recover(adapter), cron.SkipIfStillRunning(adapter)),
		),
	}
	if _, err := r.cron.AddFunc(schedule, func() { r.Run(context.Background()) }); err != nil {
		return nil, fmt.Errorf("invalid refresh schedule %q: %w", schedule, err)
	}
	return r, nil
}

// Start starts the scheduler in its own goroutine.
func (r *Refresher) Start() {
	r.cron.Start()
}

// Stop stops the scheduler and waits for a running refresh to finish or ctx
// to end.
func (r *Refresher) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

// Run refreshes the source once and records the outcome.
func (r *Refresher) Run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	if err := r.source.Refresh(ctx); err != nil {
		r.metrics.RecordFeedRefresh(ctx, instrumentation.StatusError)
		r.logger.Warn("feed refresh failed", logging.Err(err))
		return
	}
	r.metrics.RecordFeedRefresh(ctx, instrumentation.StatusSuccess)
	r.logger.Debug("feeds refreshed", slog.Duration(logging.KeyDuration, time.Since(start)))
}
