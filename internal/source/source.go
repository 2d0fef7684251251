// Package source defines the contract between the query pipeline and the
// systems that hold calendar data, plus the generic implementations built on
// it: an in-memory source, a fan-out composition of several sources and a
// decorator adding timeouts, metrics and tracing.
//
// Sources are read-only. Every call copies records out of the backing
// system into model.RawEvent and model.RawReminder snapshots; nothing in the
// pipeline holds on to a source-native object after the call returns.
package source

import (
	"context"

	"github.com/teemow/agenda/internal/model"
)

// CalendarSource is implemented by every calendar backend.
type CalendarSource interface {
	// Name identifies the source in calendars, logs and metrics.
	Name() string

	// ListCalendars returns every event calendar and reminder list.
	ListCalendars(ctx context.Context) ([]model.Calendar, error)

	// FetchEvents returns events overlapping rng from the given calendars.
	// An empty calendar set means all event calendars. Sources may return a
	// superset of the range; the pipeline filters again after normalizing.
	FetchEvents(ctx context.Context, rng model.TimeRange, calendars []model.Calendar) ([]model.RawEvent, error)

	// FetchReminders returns reminders from the given lists, completed ones
	// included. An empty set means all reminder lists.
	FetchReminders(ctx context.Context, calendars []model.Calendar) ([]model.RawReminder, error)
}

// OfType returns the calendars of the given type.
func OfType(calendars []model.Calendar, typ model.CalendarType) []model.Calendar {
	var out []model.Calendar
	for _, c := range calendars {
		if c.Type == typ {
			out = append(out, c)
		}
	}
	return out
}

// IDs returns a set of calendar IDs. A nil set means no restriction.
func IDs(calendars []model.Calendar) map[string]bool {
	if len(calendars) == 0 {
		return nil
	}
	ids := make(map[string]bool, len(calendars))
	for _, c := range calendars {
		ids[c.ID] = true
	}
	return ids
}
