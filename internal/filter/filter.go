// Package filter applies FilterCriteria to normalized events and reminders.
// All predicates are AND-combined and the input order is preserved.
package filter

import (
	"strings"

	"github.com/teemow/agenda/internal/model"
)

// Events returns the events matching every dimension of c.
func Events(events []model.Event, c model.FilterCriteria) []model.Event {
	cals := newCalendarSet(c.Calendars)
	query := strings.ToLower(strings.TrimSpace(c.Query))

	out := make([]model.Event, 0, len(events))
	for _, e := range events {
		if c.AllDayOnly && !e.AllDay {
			continue
		}
		if c.BusyOnly && !e.Busy {
			continue
		}
		if !cals.matches(e.Calendar, e.CalendarID) {
			continue
		}
		if c.Range != nil && !c.Range.Overlaps(e.Start, e.End) {
			continue
		}
		if query != "" && !containsAny(query, e.Title, e.Notes, e.Location) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Reminders returns the reminders matching every dimension of c. Completed
// reminders are dropped unless IncludeCompleted is set. With a range, only
// reminders due inside it match; undated reminders only match when no range
// was given.
func Reminders(reminders []model.Reminder, c model.FilterCriteria) []model.Reminder {
	cals := newCalendarSet(c.Calendars)
	query := strings.ToLower(strings.TrimSpace(c.Query))

	out := make([]model.Reminder, 0, len(reminders))
	for _, r := range reminders {
		if r.Completed && !c.IncludeCompleted {
			continue
		}
		if !cals.matches(r.Calendar, r.CalendarID) {
			continue
		}
		if c.Range != nil && (r.Due == nil || !c.Range.Contains(*r.Due)) {
			continue
		}
		if query != "" && !containsAny(query, r.Title, r.Notes) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// MatchesQuery reports whether query occurs case-insensitively in any of
// fields. An empty query matches everything.
func MatchesQuery(query string, fields ...string) bool {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return true
	}
	return containsAny(query, fields...)
}

func containsAny(lowerQuery string, fields ...string) bool {
	for _, f := range fields {
		if f != "" && strings.Contains(strings.ToLower(f), lowerQuery) {
			return true
		}
	}
	return false
}

type calendarSet map[string]struct{}

func newCalendarSet(names []string) calendarSet {
	if len(names) == 0 {
		return nil
	}
	set := make(calendarSet, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if n != "" {
			set[strings.ToLower(n)] = struct{}{}
		}
	}
	if len(set) == 0 {
		return nil
	}
	return set
}

// matches accepts a record when the set is empty or names its calendar by
// name or ID.
func (s calendarSet) matches(name, id string) bool {
	if s == nil {
		return true
	}
	if _, ok := s[strings.ToLower(name)]; ok {
		return true
	}
	_, ok := s[strings.ToLower(id)]
	return ok
}

// MatchCalendars returns the calendars selected by names (by name or ID,
// case-insensitively), in input order. An empty names slice selects all.
func MatchCalendars(calendars []model.Calendar, names []string) []model.Calendar {
	set := newCalendarSet(names)
	out := make([]model.Calendar, 0, len(calendars))
	for _, c := range calendars {
		if set.matches(c.Name, c.ID) {
			out = append(out, c)
		}
	}
	return out
}
