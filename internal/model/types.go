package model

import (
	"time"
)

// CalendarType distinguishes event calendars from reminder lists.
type CalendarType string

const (
	CalendarTypeEvent    CalendarType = "event"
	CalendarTypeReminder CalendarType = "reminder"
)

// Calendar is a named container of events or reminders.
type Calendar struct {
	ID     string
	Name   string
	Color  string
	Type   CalendarType
	Source string // Name of the source that produced it (google, ics, ...)
}

// CalendarKey identifies a calendar within the source that produced it.
// Two sources may use the same calendar ID.
type CalendarKey struct {
	Source string
	ID     string
}

// CalendarIndex maps source-scoped calendar keys to calendars.
type CalendarIndex map[CalendarKey]Calendar

// Lookup resolves a record's calendar reference. A reference without a
// source matches only when exactly one calendar carries that ID.
func (idx CalendarIndex) Lookup(source, id string) (Calendar, bool) {
	if c, ok := idx[CalendarKey{Source: source, ID: id}]; ok {
		return c, true
	}
	if source != "" {
		return Calendar{}, false
	}
	var (
		found Calendar
		n     int
	)
	for k, c := range idx {
		if k.ID == id {
			found = c
			n++
		}
	}
	return found, n == 1
}

// Event is a normalized, immutable calendar event.
// Start and End are always in UTC.
type Event struct {
	ID            string
	Title         string
	Start         time.Time
	End           time.Time
	Calendar      string
	CalendarID    string
	AllDay        bool
	Busy          bool
	Location      string
	Notes         string
	URL           string
	ConferenceURL string
}

// Duration returns the length of the event.
func (e Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Reminder is a normalized, immutable task/reminder.
// Due is nil when the reminder has no due date and is in UTC otherwise.
type Reminder struct {
	ID         string
	Title      string
	Due        *time.Time
	Completed  bool
	Calendar   string
	CalendarID string
	Notes      string
	Priority   int
}

// HasDue reports whether the reminder carries a due date.
func (r Reminder) HasDue() bool {
	return r.Due != nil
}

// RawEvent is a snapshot of a source event, copied out of the source's
// native representation once per request.
type RawEvent struct {
	ID    string
	Title string
	Start time.Time
	End   time.Time

	// Zone is the source-native zone name. When set, Start and End are
	// treated as wall-clock values in that zone.
	Zone string

	// AllDay is the source's own all-day marker.
	AllDay bool

	Busy        bool
	CalendarRef string
	// Source names the source that produced the record and scopes
	// CalendarRef. Empty when a single source is in use.
	Source   string
	Location string
	Notes       string
	URL         string
}

// RawReminder is a snapshot of a source reminder.
type RawReminder struct {
	ID    string
	Title string
	Due   *time.Time

	// Zone is the source-native zone name for a floating due time.
	Zone string

	// DueDateOnly marks a due value that only carries a calendar date.
	DueDateOnly bool

	Completed   bool
	CalendarRef string
	Source      string
	Notes       string
	Priority    int
}

// TimeRange is a half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Empty reports whether the range contains no instants.
func (r TimeRange) Empty() bool {
	return !r.Start.Before(r.End)
}

// Contains reports whether t lies in [Start, End).
func (r TimeRange) Contains(t time.Time) bool {
	return !t.Before(r.Start) && t.Before(r.End)
}

// Overlaps reports whether [start, end) shares at least one instant with r.
// A zero-length interval is treated as the single instant start.
func (r TimeRange) Overlaps(start, end time.Time) bool {
	if !end.After(start) {
		return r.Contains(start)
	}
	return start.Before(r.End) && end.After(r.Start)
}

// FilterCriteria parameterizes the filter engine. All dimensions are
// AND-combined.
type FilterCriteria struct {
	// Range is nil when no date range was supplied.
	Range *TimeRange

	// Calendars restricts results to these calendar names or IDs.
	// Empty means all calendars.
	Calendars []string

	AllDayOnly       bool
	BusyOnly         bool
	IncludeCompleted bool

	// Query is a case-insensitive substring matched against title, notes
	// and location.
	Query string
}

// FreeSlot is a derived gap between busy intervals.
type FreeSlot struct {
	Start time.Time
	End   time.Time
}

// Duration returns the slot length.
func (s FreeSlot) Duration() time.Duration {
	return s.End.Sub(s.Start)
}
