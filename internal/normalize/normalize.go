// Package normalize turns raw source records into the canonical event and
// reminder model: UTC instants, resolved calendars, deterministic order.
package normalize

import (
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/teemow/agenda/internal/logging"
	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/timezone"
)

var conferencePatterns = []*regexp.Regexp{
	regexp.MustCompile(`https?://[a-zA-Z0-9.-]*zoom\.us/[^\s<>"]+`),
	regexp.MustCompile(`https?://meet\.google\.com/[^\s<>"]+`),
	regexp.MustCompile(`https?://teams\.microsoft\.com/[^\s<>"]+`),
	regexp.MustCompile(`https?://[a-zA-Z0-9.-]+\.webex\.com/[^\s<>"]+`),
	regexp.MustCompile(`https?://[a-zA-Z0-9.-]*bluejeans\.com/[^\s<>"]+`),
}

var conferenceHosts = []string{"zoom.us", "meet.google", "teams.microsoft", "webex", "bluejeans"}

// Options carries the per-request settings of a normalization pass.
type Options struct {
	// Resolver resolves source-native zone names.
	Resolver *timezone.Resolver

	// Anchor is the zone in which date-only values are placed.
	Anchor *time.Location

	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

func (o Options) anchor() *time.Location {
	if o.Anchor == nil {
		return time.UTC
	}
	return o.Anchor
}

// Index builds a calendar index keyed by source and calendar ID.
func Index(calendars []model.Calendar) model.CalendarIndex {
	idx := make(model.CalendarIndex, len(calendars))
	for _, c := range calendars {
		idx[model.CalendarKey{Source: c.Source, ID: c.ID}] = c
	}
	return idx
}

// Events normalizes raw events. Records with an unknown calendar reference or
// an unresolvable zone are logged and skipped. The result is ordered by start.
func Events(raws []model.RawEvent, index model.CalendarIndex, opts Options) []model.Event {
	logger := logging.WithOperation(opts.logger(), "normalize.events")
	out := make([]model.Event, 0, len(raws))

	for _, raw := range raws {
		cal, ok := index.Lookup(raw.Source, raw.CalendarRef)
		if !ok {
			logger.Warn("skipping event",
				logging.RecordID(raw.ID),
				logging.Err(model.UnknownCalendarReference(raw.ID, raw.CalendarRef)))
			continue
		}

		start, end, err := eventBounds(raw, opts)
		if err != nil {
			logger.Warn("skipping event", logging.RecordID(raw.ID), logging.Err(err))
			continue
		}
		if end.Before(start) {
			logger.Warn("event ends before it starts, clamping end",
				logging.RecordID(raw.ID))
			end = start
		}

		out = append(out, model.Event{
			ID:            raw.ID,
			Title:         raw.Title,
			Start:         start,
			End:           end,
			Calendar:      cal.Name,
			CalendarID:    cal.ID,
			AllDay:        raw.AllDay,
			Busy:          raw.Busy,
			Location:      raw.Location,
			Notes:         raw.Notes,
			URL:           raw.URL,
			ConferenceURL: ConferenceURL(raw.URL, raw.Notes),
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].Start.Equal(out[j].Start) {
			return out[i].Start.Before(out[j].Start)
		}
		if !out[i].End.Equal(out[j].End) {
			return out[i].End.Before(out[j].End)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// eventBounds returns the UTC bounds of a raw event. The all-day flag is
// taken from the source as given: all-day events have their dates anchored at
// midnight in the anchor zone, timed events keep their instants whatever
// their duration.
func eventBounds(raw model.RawEvent, opts Options) (time.Time, time.Time, error) {
	if raw.AllDay {
		anchor := opts.anchor()
		return dateAt(raw.Start, anchor).UTC(), dateAt(raw.End, anchor).UTC(), nil
	}
	if raw.Zone == "" {
		return raw.Start.UTC(), raw.End.UTC(), nil
	}
	loc, err := resolve(opts, raw.Zone)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return floating(raw.Start, loc).UTC(), floating(raw.End, loc).UTC(), nil
}

// Reminders normalizes raw reminders. Records with an unknown calendar
// reference are logged and skipped. The result is ordered by due time with
// undated reminders last in input order.
func Reminders(raws []model.RawReminder, index model.CalendarIndex, opts Options) []model.Reminder {
	logger := logging.WithOperation(opts.logger(), "normalize.reminders")
	out := make([]model.Reminder, 0, len(raws))

	for _, raw := range raws {
		cal, ok := index.Lookup(raw.Source, raw.CalendarRef)
		if !ok {
			logger.Warn("skipping reminder",
				logging.RecordID(raw.ID),
				logging.Err(model.UnknownCalendarReference(raw.ID, raw.CalendarRef)))
			continue
		}

		var due *time.Time
		if raw.Due != nil {
			var t time.Time
			switch {
			case raw.DueDateOnly:
				t = dateAt(*raw.Due, opts.anchor())
			case raw.Zone != "":
				loc, err := resolve(opts, raw.Zone)
				if err != nil {
					logger.Warn("skipping reminder", logging.RecordID(raw.ID), logging.Err(err))
					continue
				}
				t = floating(*raw.Due, loc)
			default:
				t = *raw.Due
			}
			t = t.UTC()
			due = &t
		}

		out = append(out, model.Reminder{
			ID:         raw.ID,
			Title:      raw.Title,
			Due:        due,
			Completed:  raw.Completed,
			Calendar:   cal.Name,
			CalendarID: cal.ID,
			Notes:      raw.Notes,
			Priority:   raw.Priority,
		})
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Due, out[j].Due
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return a.Before(*b)
		}
	})
	return out
}

// ConferenceURL returns the video-conference link of an event, preferring the
// event URL and falling back to the first link found in the notes.
func ConferenceURL(url, notes string) string {
	lower := strings.ToLower(url)
	for _, host := range conferenceHosts {
		if strings.Contains(lower, host) {
			return url
		}
	}
	for _, p := range conferencePatterns {
		if m := p.FindString(notes); m != "" {
			return m
		}
	}
	return ""
}

func resolve(opts Options, name string) (*time.Location, error) {
	if opts.Resolver == nil {
		return time.LoadLocation(name)
	}
	return opts.Resolver.ResolveField("zone", name)
}

// floating reinterprets the wall clock of t in loc.
func floating(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), loc)
}

// dateAt places the calendar date of t at midnight in loc.
func dateAt(t time.Time, loc *time.Location) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
