package views

import (
	"strings"
	"time"

	"github.com/teemow/agenda/internal/filter"
	"github.com/teemow/agenda/internal/model"
)

// SummaryOptions tunes a daily summary.
type SummaryOptions struct {
	// MinSlot drops free slots shorter than this.
	MinSlot time.Duration

	// WorkdayStart and WorkdayEnd narrow the free-slot window to working
	// hours, as offsets from local midnight. A zero WorkdayEnd means the
	// whole day.
	WorkdayStart time.Duration
	WorkdayEnd   time.Duration
}

// DailySummary aggregates one calendar day.
type DailySummary struct {
	Date string
	Zone *time.Location

	// Day is the full local calendar day; FreeWindow is the part of it in
	// which free slots were computed.
	Day        model.TimeRange
	FreeWindow model.TimeRange

	EventCount         int
	PendingReminders   int
	CompletedReminders int
	BusyTime           time.Duration

	FreeSlots []model.FreeSlot
	Events    []model.Event
	Reminders []model.Reminder
}

// DayRange returns [midnight, next midnight) of the calendar day of t in loc.
// The next midnight is computed with AddDate so DST days have 23 or 25 hours.
func DayRange(t time.Time, loc *time.Location) model.TimeRange {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return model.TimeRange{Start: start, End: start.AddDate(0, 0, 1)}
}

// Summarize builds the summary of the calendar day containing day in loc.
// Events and reminders may cover more than the day; they are narrowed here.
// Completed reminders are counted but the caller decides whether they were
// fetched at all.
func Summarize(day time.Time, loc *time.Location, events []model.Event, reminders []model.Reminder, opts SummaryOptions) DailySummary {
	rng := DayRange(day, loc)
	window := workWindow(rng, loc, opts)

	dayEvents := filter.Events(events, model.FilterCriteria{Range: &rng})
	dayReminders := filter.Reminders(reminders, model.FilterCriteria{Range: &rng, IncludeCompleted: true})

	s := DailySummary{
		Date:       rng.Start.Format(time.DateOnly),
		Zone:       loc,
		Day:        rng,
		FreeWindow: window,
		EventCount: len(dayEvents),
		FreeSlots:  FreeSlots(dayEvents, window.Start, window.End, opts.MinSlot),
		Events:     dayEvents,
		Reminders:  dayReminders,
	}
	for _, iv := range MergeBusy(dayEvents, window.Start, window.End) {
		s.BusyTime += iv.End.Sub(iv.Start)
	}
	for _, r := range dayReminders {
		if r.Completed {
			s.CompletedReminders++
		} else {
			s.PendingReminders++
		}
	}
	return s
}

func workWindow(day model.TimeRange, loc *time.Location, opts SummaryOptions) model.TimeRange {
	if opts.WorkdayEnd <= 0 || opts.WorkdayEnd <= opts.WorkdayStart {
		return day
	}
	// Wall-clock offsets, so a DST switch at night does not shift office hours.
	y, m, d := day.Start.Date()
	start := wallClock(y, m, d, opts.WorkdayStart, loc)
	end := wallClock(y, m, d, opts.WorkdayEnd, loc)
	if start.Before(day.Start) {
		start = day.Start
	}
	if end.After(day.End) {
		end = day.End
	}
	return model.TimeRange{Start: start, End: end}
}

func wallClock(y int, m time.Month, d int, offset time.Duration, loc *time.Location) time.Time {
	h := int(offset / time.Hour)
	mins := int((offset % time.Hour) / time.Minute)
	return time.Date(y, m, d, h, mins, 0, 0, loc)
}

// SearchResult is the pair of sequences returned by Search, each in its own
// normalized order.
type SearchResult struct {
	Events    []model.Event
	Reminders []model.Reminder
}

// Search matches term against events and reminders after applying the rest
// of criteria. An empty term is an invalid argument.
func Search(events []model.Event, reminders []model.Reminder, term string, criteria model.FilterCriteria) (SearchResult, error) {
	term = strings.TrimSpace(term)
	if term == "" {
		return SearchResult{}, model.InvalidArgument("term", "search term cannot be empty")
	}
	criteria.Query = term
	return SearchResult{
		Events:    filter.Events(events, criteria),
		Reminders: filter.Reminders(reminders, criteria),
	}, nil
}
