package source

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/teemow/agenda/internal/model"
)

// Multi combines several sources into one. Calls fan out to every member
// concurrently; the first failure cancels the others and fails the call.
//
// Calendars are routed back to the member whose Name matches
// model.Calendar.Source, and every record is stamped with its member's name,
// so calendar IDs only need to be unique per member.
type Multi struct {
	sources []CalendarSource
}

// NewMulti returns a source over the given members. Member names must be
// unique.
func NewMulti(sources ...CalendarSource) (*Multi, error) {
	seen := make(map[string]bool, len(sources))
	for _, s := range sources {
		if seen[s.Name()] {
			return nil, fmt.Errorf("duplicate source name %q", s.Name())
		}
		seen[s.Name()] = true
	}
	return &Multi{sources: sources}, nil
}

// Name implements CalendarSource.
func (m *Multi) Name() string {
	return "multi"
}

// Sources returns the members in configuration order.
func (m *Multi) Sources() []CalendarSource {
	return m.sources
}

// ListCalendars implements CalendarSource. Results keep member order.
func (m *Multi) ListCalendars(ctx context.Context) ([]model.Calendar, error) {
	results := make([][]model.Calendar, len(m.sources))
	g, ctx := errgroup.WithContext(ctx)
	for i, s := range m.sources {
		g.Go(func() error {
			cals, err := s.ListCalendars(ctx)
			if err != nil {
				return err
			}
			for j := range cals {
				if cals[j].Source == "" {
					cals[j].Source = s.Name()
				}
			}
			results[i] = cals
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var out []model.Calendar
	for _, cals := range results {
		out = append(out, cals...)
	}
	return out, nil
}

// FetchEvents implements CalendarSource.
func (m *Multi) FetchEvents(ctx context.Context, rng model.TimeRange, calendars []model.Calendar) ([]model.RawEvent, error) {
	var (
		mu  sync.Mutex
		out []model.RawEvent
	)
	err := m.each(ctx, calendars, func(ctx context.Context, s CalendarSource, cals []model.Calendar) error {
		events, err := s.FetchEvents(ctx, rng, cals)
		if err != nil {
			return err
		}
		for i := range events {
			if events[i].Source == "" {
				events[i].Source = s.Name()
			}
		}
		mu.Lock()
		out = append(out, events...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchReminders implements CalendarSource.
func (m *Multi) FetchReminders(ctx context.Context, calendars []model.Calendar) ([]model.RawReminder, error) {
	var (
		mu  sync.Mutex
		out []model.RawReminder
	)
	err := m.each(ctx, calendars, func(ctx context.Context, s CalendarSource, cals []model.Calendar) error {
		reminders, err := s.FetchReminders(ctx, cals)
		if err != nil {
			return err
		}
		for i := range reminders {
			if reminders[i].Source == "" {
				reminders[i].Source = s.Name()
			}
		}
		mu.Lock()
		out = append(out, reminders...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// each runs fn for every member that owns at least one of calendars, or for
// every member when calendars is empty.
func (m *Multi) each(ctx context.Context, calendars []model.Calendar, fn func(context.Context, CalendarSource, []model.Calendar) error) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range m.sources {
		var owned []model.Calendar
		if len(calendars) > 0 {
			for _, c := range calendars {
				if c.Source == s.Name() {
					owned = append(owned, c)
				}
			}
			if len(owned) == 0 {
				continue
			}
		}
		g.Go(func() error {
			return fn(ctx, s, owned)
		})
	}
	return g.Wait()
}
