package google

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
	"google.golang.org/api/option"

	"github.com/teemow/agenda/internal/calendar"
	"github.com/teemow/agenda/internal/logging"
	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/source"
	"github.com/teemow/agenda/internal/tasks"
)

// maxParallelCalls bounds the API calls in flight per fetch.
const maxParallelCalls = 4

// Source is a CalendarSource over one Google account: calendars and events
// from Google Calendar, task lists and tasks from Google Tasks. Either client
// may be nil, which leaves that kind out.
type Source struct {
	name     string
	calendar *calendar.Client
	tasks    *tasks.Client
}

// SourceName returns the source name of an account: "google" for the default
// account, "google-<account>" otherwise.
func SourceName(account string) string {
	if account == "" || account == DefaultAccount {
		return "google"
	}
	return "google-" + account
}

// NewSource creates a source from ready clients.
func NewSource(name string, cal *calendar.Client, tsk *tasks.Client) *Source {
	return &Source{name: name, calendar: cal, tasks: tsk}
}

// NewSourceForAccount creates a source for an authorized account.
func NewSourceForAccount(ctx context.Context, provider TokenProvider, account string, withTasks bool) (*Source, error) {
	httpClient, err := HTTPClient(ctx, provider, account)
	if err != nil {
		return nil, fmt.Errorf("failed to get Google OAuth token for account %s: %w", account, err)
	}
	name := SourceName(account)
	logger := logging.WithSource(slog.Default(), name)
	cal, err := calendar.NewClient(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, err
	}
	cal.WithLogger(logger)
	var tsk *tasks.Client
	if withTasks {
		if tsk, err = tasks.NewClient(ctx, option.WithHTTPClient(httpClient)); err != nil {
			return nil, err
		}
		tsk.WithLogger(logger)
	}
	return NewSource(name, cal, tsk), nil
}

// Name implements source.CalendarSource.
func (s *Source) Name() string { return s.name }

// ListCalendars implements source.CalendarSource. Event calendars come
// before task lists.
func (s *Source) ListCalendars(ctx context.Context) ([]model.Calendar, error) {
	var eventCals, reminderCals []model.Calendar
	g, gctx := errgroup.WithContext(ctx)
	if s.calendar != nil {
		g.Go(func() error {
			var err error
			eventCals, err = s.calendar.ListCalendars(gctx)
			return err
		})
	}
	if s.tasks != nil {
		g.Go(func() error {
			var err error
			reminderCals, err = s.tasks.ListTaskLists(gctx)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := append(eventCals, reminderCals...)
	for i := range out {
		out[i].Source = s.name
	}
	return out, nil
}

// FetchEvents implements source.CalendarSource.
func (s *Source) FetchEvents(ctx context.Context, rng model.TimeRange, calendars []model.Calendar) ([]model.RawEvent, error) {
	if s.calendar == nil {
		return nil, nil
	}
	cals, err := s.resolve(ctx, calendars, model.CalendarTypeEvent)
	if err != nil {
		return nil, err
	}
	return fanOut(ctx, cals, func(ctx context.Context, c model.Calendar) ([]model.RawEvent, error) {
		return s.calendar.ListEvents(ctx, c.ID, rng)
	})
}

// FetchReminders implements source.CalendarSource.
func (s *Source) FetchReminders(ctx context.Context, calendars []model.Calendar) ([]model.RawReminder, error) {
	if s.tasks == nil {
		return nil, nil
	}
	cals, err := s.resolve(ctx, calendars, model.CalendarTypeReminder)
	if err != nil {
		return nil, err
	}
	return fanOut(ctx, cals, func(ctx context.Context, c model.Calendar) ([]model.RawReminder, error) {
		return s.tasks.ListTasks(ctx, c.ID)
	})
}

// resolve returns the calendars of a kind to query, listing them when none
// were given.
func (s *Source) resolve(ctx context.Context, calendars []model.Calendar, typ model.CalendarType) ([]model.Calendar, error) {
	if len(calendars) > 0 {
		return source.OfType(calendars, typ), nil
	}
	all, err := s.ListCalendars(ctx)
	if err != nil {
		return nil, err
	}
	return source.OfType(all, typ), nil
}

// fanOut calls fetch for every calendar with bounded parallelism and joins
// the results in calendar order.
func fanOut[T any](ctx context.Context, cals []model.Calendar, fetch func(context.Context, model.Calendar) ([]T, error)) ([]T, error) {
	results := make([][]T, len(cals))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelCalls)
	for i, c := range cals {
		g.Go(func() error {
			items, err := fetch(gctx, c)
			results[i] = items
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	var out []T
	for _, items := range results {
		out = append(out, items...)
	}
	return out, nil
}
