package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/timezone"
)

type envelope struct {
	SchemaVersion string `json:"schemaVersion"`
	Kind          Kind   `json:"kind"`
	Data          any    `json:"data"`
}

type calendarJSON struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Color  string `json:"color"`
	Type   string `json:"type"`
	Source string `json:"source"`
}

type calendarsJSON struct {
	Events    []calendarJSON `json:"events"`
	Reminders []calendarJSON `json:"reminders"`
}

type eventJSON struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	Start         string `json:"start"`
	End           string `json:"end"`
	Calendar      string `json:"calendar"`
	AllDay        bool   `json:"allDay"`
	Busy          bool   `json:"busy"`
	Notes         string `json:"notes"`
	Location      string `json:"location"`
	URL           string `json:"url"`
	ConferenceURL string `json:"conferenceUrl"`
}

type reminderJSON struct {
	ID        string  `json:"id"`
	Title     string  `json:"title"`
	Due       *string `json:"due"`
	Completed bool    `json:"completed"`
	Calendar  string  `json:"calendar"`
	Notes     string  `json:"notes"`
	Priority  int     `json:"priority"`
}

type agendaJSON struct {
	Events    []eventJSON    `json:"events"`
	Reminders []reminderJSON `json:"reminders"`
}

type rangeJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type slotJSON struct {
	Start           string  `json:"start"`
	End             string  `json:"end"`
	DurationMinutes float64 `json:"durationMinutes"`
}

type freeSlotsJSON struct {
	Range          rangeJSON  `json:"range"`
	MinSlotMinutes float64    `json:"minSlotMinutes"`
	Slots          []slotJSON `json:"slots"`
}

type summaryJSON struct {
	Date               string         `json:"date"`
	Timezone           string         `json:"timezone"`
	EventCount         int            `json:"eventCount"`
	PendingReminders   int            `json:"pendingReminders"`
	CompletedReminders int            `json:"completedReminders"`
	BusyMinutes        float64        `json:"busyMinutes"`
	FreeWindow         rangeJSON      `json:"freeWindow"`
	FreeSlots          []slotJSON     `json:"freeSlots"`
	Events             []eventJSON    `json:"events"`
	Reminders          []reminderJSON `json:"reminders"`
}

type timeInfoJSON struct {
	Date struct {
		Year    int    `json:"year"`
		Month   int    `json:"month"`
		Day     int    `json:"day"`
		Weekday string `json:"weekday"`
		ISODate string `json:"isoDate"`
	} `json:"date"`
	Time struct {
		Hour    int    `json:"hour"`
		Minute  int    `json:"minute"`
		Second  int    `json:"second"`
		ISOTime string `json:"isoTime"`
	} `json:"time"`
	Timezone struct {
		Name           string  `json:"name"`
		UTCOffset      string  `json:"utcOffset"`
		UTCOffsetHours float64 `json:"utcOffsetHours"`
	} `json:"timezone"`
	ISODatetime   string `json:"isoDatetime"`
	UnixTimestamp int64  `json:"unixTimestamp"`
}

type endpointJSON struct {
	Datetime    string `json:"datetime"`
	Timezone    string `json:"timezone"`
	ISODatetime string `json:"isoDatetime"`
	Date        string `json:"date"`
	Time        string `json:"time"`
}

type conversionJSON struct {
	Original    endpointJSON `json:"original"`
	Converted   endpointJSON `json:"converted"`
	OffsetHours float64      `json:"offsetHours"`
}

type zoneJSON struct {
	Name           string  `json:"name"`
	UTCOffset      string  `json:"utcOffset"`
	UTCOffsetHours float64 `json:"utcOffsetHours"`
	CurrentTime    string  `json:"currentTime"`
}

type regionJSON struct {
	Region string     `json:"region"`
	Zones  []zoneJSON `json:"zones"`
}

type timezonesJSON struct {
	Total   int          `json:"total"`
	Regions []regionJSON `json:"regions"`
}

func renderJSON(r Result, zone *time.Location) (string, error) {
	data, err := payload(r, zone)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(envelope{SchemaVersion: SchemaVersion, Kind: r.Kind, Data: data}); err != nil {
		return "", fmt.Errorf("encode %s: %w", r.Kind, err)
	}
	return buf.String(), nil
}

func payload(r Result, zone *time.Location) (any, error) {
	switch r.Kind {
	case KindCalendars:
		return calendarsPayload(r.Calendars), nil
	case KindEvents:
		return eventsPayload(r.Events, zone), nil
	case KindReminders:
		return remindersPayload(r.Reminders, zone), nil
	case KindAgenda:
		return agendaJSON{Events: eventsPayload(r.Events, zone), Reminders: remindersPayload(r.Reminders, zone)}, nil
	case KindSummary:
		s := r.Summary
		if s.Zone != nil {
			zone = s.Zone
		}
		return summaryJSON{
			Date:               s.Date,
			Timezone:           zone.String(),
			EventCount:         s.EventCount,
			PendingReminders:   s.PendingReminders,
			CompletedReminders: s.CompletedReminders,
			BusyMinutes:        s.BusyTime.Minutes(),
			FreeWindow:         rangePayload(s.FreeWindow, zone),
			FreeSlots:          slotsPayload(s.FreeSlots, zone),
			Events:             eventsPayload(s.Events, zone),
			Reminders:          remindersPayload(s.Reminders, zone),
		}, nil
	case KindFreeSlots:
		v := r.FreeSlots
		return freeSlotsJSON{
			Range:          rangePayload(v.Range, zone),
			MinSlotMinutes: v.MinSlot.Minutes(),
			Slots:          slotsPayload(v.Slots, zone),
		}, nil
	case KindCurrentTime:
		return timeInfoPayload(*r.Time), nil
	case KindTimeConversion:
		c := r.Conversion
		return conversionJSON{
			Original:    endpointJSON(c.Original),
			Converted:   endpointJSON(c.Converted),
			OffsetHours: c.OffsetHours,
		}, nil
	case KindTimezones:
		return timezonesPayload(*r.Zones), nil
	}
	return nil, fmt.Errorf("unknown result kind %q", r.Kind)
}

func calendarsPayload(cals []model.Calendar) calendarsJSON {
	out := calendarsJSON{Events: []calendarJSON{}, Reminders: []calendarJSON{}}
	for _, c := range sortedCalendars(cals) {
		j := calendarJSON{ID: c.ID, Name: c.Name, Color: c.Color, Type: string(c.Type), Source: c.Source}
		if c.Type == model.CalendarTypeReminder {
			out.Reminders = append(out.Reminders, j)
		} else {
			out.Events = append(out.Events, j)
		}
	}
	return out
}

func eventsPayload(events []model.Event, zone *time.Location) []eventJSON {
	out := make([]eventJSON, 0, len(events))
	for _, e := range events {
		out = append(out, eventJSON{
			ID:            e.ID,
			Title:         e.Title,
			Start:         formatInstant(e.Start, zone),
			End:           formatInstant(e.End, zone),
			Calendar:      e.Calendar,
			AllDay:        e.AllDay,
			Busy:          e.Busy,
			Notes:         e.Notes,
			Location:      e.Location,
			URL:           e.URL,
			ConferenceURL: e.ConferenceURL,
		})
	}
	return out
}

func remindersPayload(reminders []model.Reminder, zone *time.Location) []reminderJSON {
	out := make([]reminderJSON, 0, len(reminders))
	for _, r := range reminders {
		j := reminderJSON{
			ID:        r.ID,
			Title:     r.Title,
			Completed: r.Completed,
			Calendar:  r.Calendar,
			Notes:     r.Notes,
			Priority:  r.Priority,
		}
		if r.Due != nil {
			due := formatInstant(*r.Due, zone)
			j.Due = &due
		}
		out = append(out, j)
	}
	return out
}

func rangePayload(rng model.TimeRange, zone *time.Location) rangeJSON {
	return rangeJSON{Start: formatInstant(rng.Start, zone), End: formatInstant(rng.End, zone)}
}

func slotsPayload(slots []model.FreeSlot, zone *time.Location) []slotJSON {
	out := make([]slotJSON, 0, len(slots))
	for _, s := range slots {
		out = append(out, slotJSON{
			Start:           formatInstant(s.Start, zone),
			End:             formatInstant(s.End, zone),
			DurationMinutes: s.Duration().Minutes(),
		})
	}
	return out
}

func timeInfoPayload(info timezone.TimeInfo) timeInfoJSON {
	var j timeInfoJSON
	j.Date.Year = info.Year
	j.Date.Month = info.Month
	j.Date.Day = info.Day
	j.Date.Weekday = info.Weekday
	j.Date.ISODate = info.ISODate
	j.Time.Hour = info.Hour
	j.Time.Minute = info.Minute
	j.Time.Second = info.Second
	j.Time.ISOTime = info.ISOTime
	j.Timezone.Name = info.Zone
	j.Timezone.UTCOffset = info.UTCOffset
	j.Timezone.UTCOffsetHours = info.UTCOffsetHours
	j.ISODatetime = info.ISODatetime
	j.UnixTimestamp = info.UnixTimestamp
	return j
}

func timezonesPayload(l timezone.ZoneListing) timezonesJSON {
	out := timezonesJSON{Total: l.Total, Regions: make([]regionJSON, 0, len(l.Regions))}
	for _, region := range l.Regions {
		zones := make([]zoneJSON, 0, len(l.ByRegion[region]))
		for _, z := range l.ByRegion[region] {
			zones = append(zones, zoneJSON(z))
		}
		out.Regions = append(out.Regions, regionJSON{Region: region, Zones: zones})
	}
	return out
}

// sortedCalendars orders calendars by name, then ID, without touching the
// caller's slice.
func sortedCalendars(cals []model.Calendar) []model.Calendar {
	out := append([]model.Calendar(nil), cals...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Name != out[j].Name {
			return out[i].Name < out[j].Name
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func formatInstant(t time.Time, zone *time.Location) string {
	return t.In(zone).Format(time.RFC3339)
}
