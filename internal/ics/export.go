package ics

import (
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-ical"

	"github.com/teemow/agenda/internal/model"
)

// ProductID identifies agenda in exported calendars.
const ProductID = "-//teemow//agenda//EN"

// Export writes events as an iCalendar document. All-day events are written
// as dates in loc, the zone their days were anchored in; timed events are
// written in UTC. stamp is used as DTSTAMP.
func Export(w io.Writer, events []model.Event, loc *time.Location, stamp time.Time) error {
	if loc == nil {
		loc = time.UTC
	}
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)

	for _, e := range events {
		vevent := ical.NewEvent()
		vevent.Props.SetText(ical.PropUID, e.ID)
		vevent.Props.SetDateTime(ical.PropDateTimeStamp, stamp.UTC())
		if e.Title != "" {
			vevent.Props.SetText(ical.PropSummary, e.Title)
		}

		if e.AllDay {
			start := ical.NewProp(ical.PropDateTimeStart)
			start.SetDate(e.Start.In(loc))
			vevent.Props.Set(start)
			end := ical.NewProp(ical.PropDateTimeEnd)
			end.SetDate(e.End.In(loc))
			vevent.Props.Set(end)
		} else {
			vevent.Props.SetDateTime(ical.PropDateTimeStart, e.Start.UTC())
			vevent.Props.SetDateTime(ical.PropDateTimeEnd, e.End.UTC())
		}

		if e.Location != "" {
			vevent.Props.SetText(ical.PropLocation, e.Location)
		}
		if e.Notes != "" {
			vevent.Props.SetText(ical.PropDescription, e.Notes)
		}
		if e.URL != "" {
			vevent.Props.SetText(ical.PropURL, e.URL)
		}
		if e.Calendar != "" {
			vevent.Props.SetText(ical.PropCategories, e.Calendar)
		}
		if !e.Busy {
			vevent.Props.SetText(ical.PropTransparency, "TRANSPARENT")
		}
		cal.Children = append(cal.Children, vevent.Component)
	}

	if err := ical.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("failed to encode iCalendar: %w", err)
	}
	return nil
}
