package ics

import (
	"log/slog"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/teemow/agenda/internal/logging"
	"github.com/teemow/agenda/internal/model"
)

// maxOccurrences caps the instances generated for one recurring event.
const maxOccurrences = 5000

// slack widens the expansion window so that all-day dates, which are
// anchored in the display zone later, are not cut off at the edges. Exact
// range filtering happens downstream.
const slack = 24 * time.Hour

// expand turns parsed events into raw event instances overlapping rng.
// Recurring events are expanded with their RRULE, RDATE and EXDATE values;
// instances replaced by a RECURRENCE-ID override take the override's data.
func expand(events []vevent, rng model.TimeRange, calendarRef string, logger *slog.Logger) []model.RawEvent {
	overrides := make(map[string][]vevent)
	for _, ev := range events {
		if ev.recurrenceID != nil {
			overrides[ev.uid] = append(overrides[ev.uid], ev)
		}
	}

	windowStart, windowEnd := rng.Start.Add(-slack), rng.End.Add(slack)

	var out []model.RawEvent
	for _, ev := range events {
		if ev.recurrenceID != nil {
			continue
		}
		if ev.rrule == "" && len(ev.rdates) == 0 {
			if overlaps(ev.start, ev.end, windowStart, windowEnd) {
				out = append(out, ev.raw(ev.uid, ev.start, ev.end, calendarRef))
			}
			continue
		}
		out = append(out, expandRecurring(ev, overrides[ev.uid], windowStart, windowEnd, calendarRef, logger)...)
	}
	return out
}

func expandRecurring(ev vevent, overrides []vevent, windowStart, windowEnd time.Time, calendarRef string, logger *slog.Logger) []model.RawEvent {
	logger = logger.With(logging.RecordID(ev.uid))

	var set rrule.Set
	if ev.rrule != "" {
		r, err := rrule.StrToRRule(ev.rrule)
		if err != nil {
			logger.Warn("skipping event with invalid RRULE", logging.Err(err))
			return nil
		}
		r.DTStart(ev.start)
		set.RRule(r)
	} else {
		set.DTStart(ev.start)
		set.RDate(ev.start)
	}
	for _, t := range ev.rdates {
		set.RDate(t.In(ev.start.Location()))
	}
	for _, t := range ev.exdates {
		set.ExDate(t.In(ev.start.Location()))
	}

	duration := ev.end.Sub(ev.start)
	starts := set.Between(windowStart.Add(-duration).In(ev.start.Location()), windowEnd.In(ev.start.Location()), true)
	if len(starts) > maxOccurrences {
		logger.Warn("truncating recurring event", slog.Int("cap", maxOccurrences))
		starts = starts[:maxOccurrences]
	}

	out := make([]model.RawEvent, 0, len(starts))
	for _, start := range starts {
		id := ev.uid + "@" + start.UTC().Format("20060102T150405Z")
		if o, ok := findOverride(overrides, start); ok {
			if o.cancelled {
				continue
			}
			out = append(out, o.raw(id, o.start, o.end, calendarRef))
			continue
		}
		end := start.Add(duration)
		if ev.allDay {
			// Dates step in whole days whatever the DST of the reader.
			days := int(duration.Round(24*time.Hour) / (24 * time.Hour))
			end = start.AddDate(0, 0, days)
		}
		out = append(out, ev.raw(id, start, end, calendarRef))
	}
	return out
}

func findOverride(overrides []vevent, start time.Time) (vevent, bool) {
	for _, o := range overrides {
		if o.recurrenceID.Equal(start) {
			return o, true
		}
	}
	return vevent{}, false
}

func overlaps(start, end, windowStart, windowEnd time.Time) bool {
	if end.Equal(start) {
		return !start.Before(windowStart) && start.Before(windowEnd)
	}
	return start.Before(windowEnd) && end.After(windowStart)
}

func (ev vevent) raw(id string, start, end time.Time, calendarRef string) model.RawEvent {
	return model.RawEvent{
		ID:          id,
		Title:       ev.summary,
		Start:       start,
		End:         end,
		AllDay:      ev.allDay,
		Busy:        ev.busy,
		CalendarRef: calendarRef,
		Location:    ev.location,
		Notes:       ev.description,
		URL:         ev.url,
	}
}
