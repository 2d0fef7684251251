package ics

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	goical "github.com/arran4/golang-ical"

	"github.com/teemow/agenda/internal/logging"
	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/timezone"
)

const (
	propTransp       goical.ComponentProperty = "TRANSP"
	propStatus       goical.ComponentProperty = "STATUS"
	propURL          goical.ComponentProperty = "URL"
	propDuration     goical.ComponentProperty = "DURATION"
	propRecurrenceID goical.ComponentProperty = "RECURRENCE-ID"
	propRDate        goical.ComponentProperty = "RDATE"
	propDue          goical.ComponentProperty = "DUE"
	propCompleted    goical.ComponentProperty = "COMPLETED"
	propPriority     goical.ComponentProperty = "PRIORITY"
)

// vevent is a parsed VEVENT before recurrence expansion. Timed values carry
// their real location; date-only values are midnight UTC.
type vevent struct {
	uid         string
	summary     string
	description string
	location    string
	url         string

	start  time.Time
	end    time.Time
	allDay bool
	busy   bool

	rrule        string
	rdates       []time.Time
	exdates      []time.Time
	recurrenceID *time.Time
	cancelled    bool
}

// parsedFeed is the content of one feed. Reminder calendar references are
// filled in by the source.
type parsedFeed struct {
	events []vevent
	todos  []model.RawReminder
}

// parser turns an ICS payload into a parsedFeed.
type parser struct {
	resolver *timezone.Resolver

	// floating is the zone of date-times without TZID or UTC marker.
	floating *time.Location
}

func parse(body []byte, resolver *timezone.Resolver, logger *slog.Logger) (parsedFeed, error) {
	if len(bytes.TrimSpace(body)) == 0 {
		return parsedFeed{}, errors.New("empty ICS body")
	}
	cal, err := goical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return parsedFeed{}, fmt.Errorf("invalid ICS data: %w", err)
	}

	p := &parser{resolver: resolver, floating: resolver.Local()}
	for _, cp := range cal.CalendarProperties {
		if cp.IANAToken == "X-WR-TIMEZONE" && cp.Value != "" {
			if loc, err := resolver.Resolve(cp.Value); err == nil {
				p.floating = loc
			}
		}
	}

	var out parsedFeed
	for _, comp := range cal.Components {
		switch c := comp.(type) {
		case *goical.VEvent:
			ev, err := p.event(c)
			if err != nil {
				logger.Warn("skipping VEVENT", logging.RecordID(uid(&c.ComponentBase)), logging.Err(err))
				continue
			}
			out.events = append(out.events, ev)
		case *goical.VTodo:
			todo, err := p.todo(c)
			if err != nil {
				logger.Warn("skipping VTODO", logging.RecordID(uid(&c.ComponentBase)), logging.Err(err))
				continue
			}
			out.todos = append(out.todos, todo)
		}
	}
	return out, nil
}

func uid(c *goical.ComponentBase) string {
	return text(c, goical.ComponentPropertyUniqueId)
}

func text(c *goical.ComponentBase, prop goical.ComponentProperty) string {
	if p := c.GetProperty(prop); p != nil {
		return strings.TrimSpace(p.Value)
	}
	return ""
}

func (p *parser) event(ve *goical.VEvent) (vevent, error) {
	c := &ve.ComponentBase
	ev := vevent{
		uid:         uid(c),
		summary:     text(c, goical.ComponentPropertySummary),
		description: text(c, goical.ComponentPropertyDescription),
		location:    text(c, goical.ComponentPropertyLocation),
		url:         text(c, propURL),
		busy:        !strings.EqualFold(text(c, propTransp), "TRANSPARENT"),
		rrule:       text(c, goical.ComponentPropertyRrule),
	}
	if ev.uid == "" {
		return vevent{}, errors.New("missing UID")
	}
	ev.cancelled = strings.EqualFold(text(c, propStatus), "CANCELLED")
	if ev.cancelled && c.GetProperty(propRecurrenceID) == nil {
		return vevent{}, errors.New("cancelled")
	}

	start, dateOnly, err := p.timeProp(c.GetProperty(goical.ComponentPropertyDtStart))
	if err != nil {
		return vevent{}, fmt.Errorf("DTSTART: %w", err)
	}
	ev.start, ev.allDay = start, dateOnly

	switch {
	case c.GetProperty(goical.ComponentPropertyDtEnd) != nil:
		if ev.end, _, err = p.timeProp(c.GetProperty(goical.ComponentPropertyDtEnd)); err != nil {
			return vevent{}, fmt.Errorf("DTEND: %w", err)
		}
	case c.GetProperty(propDuration) != nil:
		d, err := parseDuration(text(c, propDuration))
		if err != nil {
			return vevent{}, fmt.Errorf("DURATION: %w", err)
		}
		ev.end = ev.start.Add(d)
	case ev.allDay:
		ev.end = ev.start.AddDate(0, 0, 1)
	default:
		ev.end = ev.start
	}

	if ev.exdates, err = p.timeList(c.GetProperties(goical.ComponentPropertyExdate)); err != nil {
		return vevent{}, fmt.Errorf("EXDATE: %w", err)
	}
	if ev.rdates, err = p.timeList(c.GetProperties(propRDate)); err != nil {
		return vevent{}, fmt.Errorf("RDATE: %w", err)
	}
	if rid := c.GetProperty(propRecurrenceID); rid != nil {
		t, _, err := p.timeProp(rid)
		if err != nil {
			return vevent{}, fmt.Errorf("RECURRENCE-ID: %w", err)
		}
		ev.recurrenceID = &t
	}
	return ev, nil
}

func (p *parser) todo(vt *goical.VTodo) (model.RawReminder, error) {
	c := &vt.ComponentBase
	r := model.RawReminder{
		ID:    uid(c),
		Title: text(c, goical.ComponentPropertySummary),
		Notes: text(c, goical.ComponentPropertyDescription),
		Completed: strings.EqualFold(text(c, propStatus), "COMPLETED") ||
			c.GetProperty(propCompleted) != nil,
	}
	if r.ID == "" {
		return model.RawReminder{}, errors.New("missing UID")
	}
	if due := c.GetProperty(propDue); due != nil {
		t, dateOnly, err := p.timeProp(due)
		if err != nil {
			return model.RawReminder{}, fmt.Errorf("DUE: %w", err)
		}
		r.Due, r.DueDateOnly = &t, dateOnly
	}
	if v := text(c, propPriority); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return model.RawReminder{}, fmt.Errorf("PRIORITY: %w", err)
		}
		r.Priority = n
	}
	return r, nil
}

// timeProp parses a DATE or DATE-TIME property. Date-only values come back
// as midnight UTC.
func (p *parser) timeProp(prop *goical.IANAProperty) (time.Time, bool, error) {
	if prop == nil {
		return time.Time{}, false, errors.New("missing value")
	}
	ts, dateOnly, err := p.parseValues(prop)
	if err != nil {
		return time.Time{}, false, err
	}
	return ts[0], dateOnly, nil
}

func (p *parser) timeList(props []*goical.IANAProperty) ([]time.Time, error) {
	var out []time.Time
	for _, prop := range props {
		ts, _, err := p.parseValues(prop)
		if err != nil {
			return nil, err
		}
		out = append(out, ts...)
	}
	return out, nil
}

func (p *parser) parseValues(prop *goical.IANAProperty) ([]time.Time, bool, error) {
	dateOnly := strings.EqualFold(param(prop, "VALUE"), "DATE")
	loc := p.floating
	if tzid := param(prop, "TZID"); tzid != "" {
		var err error
		if loc, err = p.resolver.Resolve(tzid); err != nil {
			return nil, false, err
		}
	}

	var out []time.Time
	for _, v := range strings.Split(prop.Value, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		t, isDate, err := parseValue(v, loc)
		if err != nil {
			return nil, false, err
		}
		dateOnly = dateOnly || isDate
		out = append(out, t)
	}
	if len(out) == 0 {
		return nil, false, errors.New("missing value")
	}
	return out, dateOnly, nil
}

func param(prop *goical.IANAProperty, name string) string {
	if vs := prop.ICalParameters[name]; len(vs) > 0 {
		return strings.Trim(vs[0], `"`)
	}
	return ""
}

func parseValue(v string, loc *time.Location) (time.Time, bool, error) {
	switch {
	case len(v) == len("20060102"):
		t, err := time.ParseInLocation("20060102", v, time.UTC)
		return t, true, err
	case strings.HasSuffix(v, "Z"):
		t, err := time.Parse("20060102T150405Z", v)
		return t, false, err
	default:
		t, err := time.ParseInLocation("20060102T150405", v, loc)
		return t, false, err
	}
}

// parseDuration parses an RFC 5545 duration such as PT1H30M, P1D or -P1W.
func parseDuration(v string) (time.Duration, error) {
	s := strings.ToUpper(strings.TrimSpace(v))
	sign := time.Duration(1)
	switch {
	case strings.HasPrefix(s, "-"):
		sign, s = -1, s[1:]
	case strings.HasPrefix(s, "+"):
		s = s[1:]
	}
	if !strings.HasPrefix(s, "P") || len(s) < 3 {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	s = s[1:]

	var total time.Duration
	inTime := false
	num := ""
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			num += string(r)
			continue
		case r == 'T':
			inTime = true
			continue
		}
		if num == "" {
			return 0, fmt.Errorf("invalid duration %q", v)
		}
		n, _ := strconv.Atoi(num)
		num = ""
		d := time.Duration(n)
		switch {
		case r == 'W' && !inTime:
			total += d * 7 * 24 * time.Hour
		case r == 'D' && !inTime:
			total += d * 24 * time.Hour
		case r == 'H' && inTime:
			total += d * time.Hour
		case r == 'M' && inTime:
			total += d * time.Minute
		case r == 'S' && inTime:
			total += d * time.Second
		default:
			return 0, fmt.Errorf("invalid duration %q", v)
		}
	}
	if num != "" {
		return 0, fmt.Errorf("invalid duration %q", v)
	}
	return sign * total, nil
}
