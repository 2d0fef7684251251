package dispatch

import (
	"strings"
	"time"

	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/views"
)

var weekdays = map[string]time.Weekday{
	"sunday": time.Sunday, "sun": time.Sunday,
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
}

// dateValue is a parsed date argument. DateOnly values sit at local midnight.
type dateValue struct {
	t        time.Time
	dateOnly bool
}

// parseDate accepts YYYY-MM-DD, today, tomorrow, yesterday, a weekday name
// (its next occurrence, today included) or an RFC 3339 timestamp. Relative
// names are resolved against now in loc.
func parseDate(field, value string, now time.Time, loc *time.Location) (dateValue, error) {
	value = strings.TrimSpace(value)
	today := views.DayRange(now, loc).Start

	switch key := strings.ToLower(value); key {
	case "today":
		return dateValue{t: today, dateOnly: true}, nil
	case "tomorrow":
		return dateValue{t: today.AddDate(0, 0, 1), dateOnly: true}, nil
	case "yesterday":
		return dateValue{t: today.AddDate(0, 0, -1), dateOnly: true}, nil
	default:
		if wd, ok := weekdays[key]; ok {
			ahead := (int(wd) - int(today.Weekday()) + 7) % 7
			return dateValue{t: today.AddDate(0, 0, ahead), dateOnly: true}, nil
		}
	}

	if t, err := time.ParseInLocation(time.DateOnly, value, loc); err == nil {
		return dateValue{t: t, dateOnly: true}, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return dateValue{t: t}, nil
	}
	return dateValue{}, model.InvalidArgument(field,
		"invalid date %q, use YYYY-MM-DD, today, tomorrow, yesterday, a weekday name or RFC 3339", value)
}

// parseRange builds the half-open query range. An empty from means today; an
// empty to means the day of from. A date-only to includes that whole day.
func parseRange(from, to string, now time.Time, loc *time.Location) (model.TimeRange, error) {
	start := dateValue{t: views.DayRange(now, loc).Start, dateOnly: true}
	if strings.TrimSpace(from) != "" {
		var err error
		if start, err = parseDate("from", from, now, loc); err != nil {
			return model.TimeRange{}, err
		}
	}

	var end time.Time
	if strings.TrimSpace(to) == "" {
		end = views.DayRange(start.t, loc).End
	} else {
		v, err := parseDate("to", to, now, loc)
		if err != nil {
			return model.TimeRange{}, err
		}
		end = v.t
		if v.dateOnly {
			end = views.DayRange(v.t, loc).End
		}
	}

	if end.Before(start.t) {
		return model.TimeRange{}, model.InvalidArgument("to", "range end %s is before start %s",
			end.In(loc).Format(time.RFC3339), start.t.In(loc).Format(time.RFC3339))
	}
	return model.TimeRange{Start: start.t.UTC(), End: end.UTC()}, nil
}

// hasRange reports whether the caller supplied either bound.
func hasRange(from, to string) bool {
	return strings.TrimSpace(from) != "" || strings.TrimSpace(to) != ""
}

// ResolveDay resolves a date argument ("tomorrow", "friday", "2024-01-15",
// ...) in the named zone and returns the start of that day.
func (d *Dispatcher) ResolveDay(value, zone string) (time.Time, error) {
	loc, err := d.resolver.Resolve(zone)
	if err != nil {
		return time.Time{}, err
	}
	if strings.TrimSpace(value) == "" {
		value = "today"
	}
	v, err := parseDate("date", value, d.clock(), loc)
	if err != nil {
		return time.Time{}, err
	}
	return views.DayRange(v.t, loc).Start, nil
}
