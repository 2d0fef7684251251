// Package render turns query results into one of two encodings: a versioned
// JSON envelope or Markdown. Rendering is a pure function of its input, the
// encoding and the display zone; it never filters or reorders records.
package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/timezone"
	"github.com/teemow/agenda/internal/views"
)

// SchemaVersion is the version of the JSON envelope.
const SchemaVersion = "1"

// Encoding selects the output format.
type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingText Encoding = "text"
)

// ParseEncoding accepts json/structured and text/markdown. Empty means text.
func ParseEncoding(s string) (Encoding, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "text", "markdown", "md":
		return EncodingText, nil
	case "json", "structured":
		return EncodingJSON, nil
	}
	return "", model.InvalidArgument("encoding", "unsupported encoding %q, use json or text", s)
}

// Kind discriminates the payload of a Result.
type Kind string

const (
	KindCalendars      Kind = "calendars"
	KindEvents         Kind = "events"
	KindReminders      Kind = "reminders"
	KindAgenda         Kind = "agenda"
	KindSummary        Kind = "summary"
	KindFreeSlots      Kind = "free_slots"
	KindCurrentTime    Kind = "current_time"
	KindTimeConversion Kind = "time_conversion"
	KindTimezones      Kind = "timezones"
)

// Kinds lists every result kind in schema order.
var Kinds = []Kind{
	KindCalendars, KindEvents, KindReminders, KindAgenda, KindSummary,
	KindFreeSlots, KindCurrentTime, KindTimeConversion, KindTimezones,
}

// FreeSlotView is the payload of a free_slots result.
type FreeSlotView struct {
	Range   model.TimeRange
	MinSlot time.Duration
	Slots   []model.FreeSlot
}

// Result is a tagged union of everything an operation can return. Only the
// fields belonging to Kind are meaningful; use the constructors.
type Result struct {
	Kind Kind

	Calendars  []model.Calendar
	Events     []model.Event
	Reminders  []model.Reminder
	Summary    *views.DailySummary
	FreeSlots  *FreeSlotView
	Time       *timezone.TimeInfo
	Conversion *timezone.Conversion
	Zones      *timezone.ZoneListing
}

func Calendars(cals []model.Calendar) Result {
	return Result{Kind: KindCalendars, Calendars: cals}
}

func Events(events []model.Event) Result {
	return Result{Kind: KindEvents, Events: events}
}

func Reminders(reminders []model.Reminder) Result {
	return Result{Kind: KindReminders, Reminders: reminders}
}

// Agenda pairs events and reminders, as returned by search and the combined
// listing.
func Agenda(events []model.Event, reminders []model.Reminder) Result {
	return Result{Kind: KindAgenda, Events: events, Reminders: reminders}
}

func Summary(s views.DailySummary) Result {
	return Result{Kind: KindSummary, Summary: &s}
}

func FreeSlots(rng model.TimeRange, minSlot time.Duration, slots []model.FreeSlot) Result {
	return Result{Kind: KindFreeSlots, FreeSlots: &FreeSlotView{Range: rng, MinSlot: minSlot, Slots: slots}}
}

func CurrentTime(info timezone.TimeInfo) Result {
	return Result{Kind: KindCurrentTime, Time: &info}
}

func TimeConversion(c timezone.Conversion) Result {
	return Result{Kind: KindTimeConversion, Conversion: &c}
}

func Timezones(l timezone.ZoneListing) Result {
	return Result{Kind: KindTimezones, Zones: &l}
}

// Render encodes r. Event and reminder times are shown in zone; a nil zone
// means UTC. Failures are RenderError.
func Render(r Result, enc Encoding, zone *time.Location) (string, error) {
	if zone == nil {
		zone = time.UTC
	}
	if err := r.check(); err != nil {
		return "", model.RenderError(err)
	}

	var (
		out string
		err error
	)
	switch enc {
	case EncodingJSON:
		out, err = renderJSON(r, zone)
	case EncodingText, "":
		out, err = renderText(r, zone)
	default:
		err = fmt.Errorf("unsupported encoding %q", enc)
	}
	if err != nil {
		return "", model.RenderError(err)
	}
	return out, nil
}

// check rejects results whose payload does not match their kind.
func (r Result) check() error {
	missing := false
	switch r.Kind {
	case KindCalendars, KindEvents, KindReminders, KindAgenda:
	case KindSummary:
		missing = r.Summary == nil
	case KindFreeSlots:
		missing = r.FreeSlots == nil
	case KindCurrentTime:
		missing = r.Time == nil
	case KindTimeConversion:
		missing = r.Conversion == nil
	case KindTimezones:
		missing = r.Zones == nil
	default:
		return fmt.Errorf("unknown result kind %q", r.Kind)
	}
	if missing {
		return fmt.Errorf("result of kind %q has no payload", r.Kind)
	}
	return nil
}
