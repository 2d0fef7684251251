package source

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/teemow/agenda/internal/instrumentation"
	"github.com/teemow/agenda/internal/logging"
	"github.com/teemow/agenda/internal/model"
)

// DefaultTimeout bounds every call into a source.
const DefaultTimeout = 30 * time.Second

// Instrumented wraps a source with a per-call timeout, tracing, metrics and
// debug logging. Any failure, including a timeout, is returned as a
// source_unavailable error naming the source.
type Instrumented struct {
	next    CalendarSource
	timeout time.Duration
	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// Option configures an Instrumented source.
type Option func(*Instrumented)

// WithTimeout sets the per-call timeout. Zero or negative disables it.
func WithTimeout(d time.Duration) Option {
	return func(i *Instrumented) {
		i.timeout = d
	}
}

// WithMetrics records source metrics. A nil recorder is ignored.
func WithMetrics(m *instrumentation.Metrics) Option {
	return func(i *Instrumented) {
		i.metrics = m
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(i *Instrumented) {
		if logger != nil {
			i.logger = logger
		}
	}
}

// Instrument wraps next.
func Instrument(next CalendarSource, opts ...Option) *Instrumented {
	i := &Instrumented{
		next:    next,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(i)
	}
	i.logger = logging.WithSource(i.logger, next.Name())
	return i
}

// Name implements CalendarSource.
func (i *Instrumented) Name() string {
	return i.next.Name()
}

// Unwrap returns the decorated source.
func (i *Instrumented) Unwrap() CalendarSource {
	return i.next
}

// ListCalendars implements CalendarSource.
func (i *Instrumented) ListCalendars(ctx context.Context) ([]model.Calendar, error) {
	var cals []model.Calendar
	err := i.call(ctx, instrumentation.OperationListCalendars, func(ctx context.Context) (int, error) {
		var err error
		cals, err = i.next.ListCalendars(ctx)
		return len(cals), err
	})
	if err != nil {
		return nil, err
	}
	return cals, nil
}

// FetchEvents implements CalendarSource.
func (i *Instrumented) FetchEvents(ctx context.Context, rng model.TimeRange, calendars []model.Calendar) ([]model.RawEvent, error) {
	var events []model.RawEvent
	err := i.call(ctx, instrumentation.OperationFetchEvents, func(ctx context.Context) (int, error) {
		var err error
		events, err = i.next.FetchEvents(ctx, rng, calendars)
		return len(events), err
	})
	if err != nil {
		return nil, err
	}
	return events, nil
}

// FetchReminders implements CalendarSource.
func (i *Instrumented) FetchReminders(ctx context.Context, calendars []model.Calendar) ([]model.RawReminder, error) {
	var reminders []model.RawReminder
	err := i.call(ctx, instrumentation.OperationFetchReminders, func(ctx context.Context) (int, error) {
		var err error
		reminders, err = i.next.FetchReminders(ctx, calendars)
		return len(reminders), err
	})
	if err != nil {
		return nil, err
	}
	return reminders, nil
}

func (i *Instrumented) call(ctx context.Context, operation string, fn func(context.Context) (int, error)) error {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}

	ctx, span := instrumentation.StartSourceSpan(ctx, i.next.Name(), operation)
	defer span.End()

	start := time.Now()
	n, err := fn(ctx)
	duration := time.Since(start)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			status = instrumentation.StatusTimeout
		}
		n = 0
	}
	i.metrics.RecordSourceOperation(ctx, i.next.Name(), operation, status, n, duration)

	if err != nil {
		instrumentation.SetSpanError(span, err)
		i.logger.Warn("source call failed",
			logging.Operation(operation),
			logging.Status(status),
			slog.Duration(logging.KeyDuration, duration),
			logging.Err(err))
		if model.KindOf(err) == model.KindSourceUnavailable {
			return err
		}
		return model.SourceUnavailable(i.next.Name(), err)
	}

	instrumentation.SetSpanRecords(span, n)
	instrumentation.SetSpanSuccess(span)
	i.logger.Debug("source call completed",
		logging.Operation(operation),
		logging.Count(n),
		slog.Duration(logging.KeyDuration, duration))
	return nil
}
