package source

import (
	"context"
	"time"

	"github.com/teemow/agenda/internal/model"
)

// Memory is a CalendarSource over fixed data.
type Memory struct {
	SourceName string
	Calendars  []model.Calendar
	Events     []model.RawEvent
	Reminders  []model.RawReminder

	// Err, when set, is returned from every call.
	Err error

	// Latency delays every call; the call fails with the context error if
	// the context ends first.
	Latency time.Duration
}

// Name implements CalendarSource.
func (m *Memory) Name() string {
	if m.SourceName == "" {
		return "memory"
	}
	return m.SourceName
}

func (m *Memory) wait(ctx context.Context) error {
	if m.Latency > 0 {
		timer := time.NewTimer(m.Latency)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return m.Err
}

// ListCalendars implements CalendarSource.
func (m *Memory) ListCalendars(ctx context.Context) ([]model.Calendar, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	out := make([]model.Calendar, len(m.Calendars))
	for i, c := range m.Calendars {
		if c.Source == "" {
			c.Source = m.Name()
		}
		out[i] = c
	}
	return out, nil
}

// FetchEvents implements CalendarSource. Range filtering is left to the
// pipeline.
func (m *Memory) FetchEvents(ctx context.Context, _ model.TimeRange, calendars []model.Calendar) ([]model.RawEvent, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	ids := IDs(calendars)
	var out []model.RawEvent
	for _, e := range m.Events {
		if ids == nil || ids[e.CalendarRef] {
			if e.Source == "" {
				e.Source = m.Name()
			}
			out = append(out, e)
		}
	}
	return out, nil
}

// FetchReminders implements CalendarSource.
func (m *Memory) FetchReminders(ctx context.Context, calendars []model.Calendar) ([]model.RawReminder, error) {
	if err := m.wait(ctx); err != nil {
		return nil, err
	}
	ids := IDs(calendars)
	var out []model.RawReminder
	for _, r := range m.Reminders {
		if ids == nil || ids[r.CalendarRef] {
			if r.Source == "" {
				r.Source = m.Name()
			}
			out = append(out, r)
		}
	}
	return out, nil
}
