package dispatch

import (
	"context"
	"strings"

	"github.com/teemow/agenda/internal/filter"
	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/render"
	"github.com/teemow/agenda/internal/timezone"
	"github.com/teemow/agenda/internal/views"
)

// Operation names.
const (
	OpListCalendars = "list_calendars"
	OpGetEvents     = "get_events"
	OpGetReminders  = "get_reminders"
	OpGetAgenda     = "get_agenda"
	OpSearch        = "search"
	OpDailySummary  = "get_daily_summary"
	OpFreeSlots     = "get_free_slots"
	OpCurrentTime   = "get_current_time"
	OpConvertTime   = "convert_time"
	OpListTimezones = "list_timezones"
)

// ParamType is the wire type of an argument.
type ParamType string

const (
	TypeString  ParamType = "string"
	TypeBoolean ParamType = "boolean"
)

// Param documents one argument of an operation.
type Param struct {
	Name        string
	Type        ParamType
	Description string
	Required    bool
}

// Operation is an entry of the operation table.
type Operation struct {
	Name        string
	Description string
	Params      []Param

	newArgs func() Args
	run     func(ctx context.Context, d *Dispatcher, req *request, args Args) (render.Result, error)
}

// define binds a typed run function into an Operation.
func define[T any, PT interface {
	*T
	Args
}](name, description string, params []Param, run func(context.Context, *Dispatcher, *request, PT) (render.Result, error)) Operation {
	return Operation{
		Name:        name,
		Description: description,
		Params:      append(params, commonParams...),
		newArgs:     func() Args { return PT(new(T)) },
		run: func(ctx context.Context, d *Dispatcher, req *request, args Args) (render.Result, error) {
			return run(ctx, d, req, args.(PT))
		},
	}
}

var (
	paramFrom = Param{Name: "from", Type: TypeString,
		Description: "Start date: YYYY-MM-DD, today, tomorrow, yesterday, a weekday name or RFC 3339 (defaults to today)"}
	paramTo = Param{Name: "to", Type: TypeString,
		Description: "End date, inclusive when given as a date (defaults to from)"}
	paramCalendars = Param{Name: "calendars", Type: TypeString,
		Description: "Comma-separated calendar names or IDs (defaults to all)"}
	paramIncludeCompleted = Param{Name: "includeCompleted", Type: TypeBoolean,
		Description: "Include completed reminders"}
	paramAllDayOnly = Param{Name: "allDayOnly", Type: TypeBoolean, Description: "Only include all-day events"}
	paramBusyOnly   = Param{Name: "busyOnly", Type: TypeBoolean, Description: "Only include busy events"}
	paramMinSlot    = Param{Name: "minSlot", Type: TypeString,
		Description: "Minimum free slot length, as minutes or a duration like 1h30m (defaults to 30)"}

	commonParams = []Param{
		{Name: "timezone", Type: TypeString,
			Description: "IANA time zone for display and relative dates, e.g. Europe/Berlin (defaults to local)"},
		{Name: "encoding", Type: TypeString,
			Description: "Output encoding: text (Markdown, default) or json"},
	}
)

// operations is the table in presentation order.
var operations = []Operation{
	define(OpListCalendars, "List all event calendars and reminder lists", nil, runListCalendars),
	define(OpGetEvents, "Get calendar events for a date range",
		[]Param{paramFrom, paramTo, paramCalendars, paramAllDayOnly, paramBusyOnly,
			{Name: "query", Type: TypeString, Description: "Only include events whose title, notes or location contain this text"}},
		runEvents),
	define(OpGetReminders, "Get reminders, optionally limited to a due date range",
		[]Param{
			{Name: "from", Type: TypeString, Description: "Start of the due date range (no range means all reminders, undated ones included)"},
			{Name: "to", Type: TypeString, Description: "End of the due date range, inclusive when given as a date"},
			paramCalendars, paramIncludeCompleted,
		},
		runReminders),
	define(OpGetAgenda, "Get events and reminders for a date range",
		[]Param{paramFrom, paramTo, paramCalendars, paramAllDayOnly, paramBusyOnly, paramIncludeCompleted,
			{Name: "query", Type: TypeString, Description: "Only include records containing this text"}},
		runAgenda),
	define(OpSearch, "Search events and reminders by title, notes and location",
		[]Param{
			{Name: "term", Type: TypeString, Description: "Case-insensitive search term", Required: true},
			{Name: "from", Type: TypeString, Description: "Start date (defaults to today, with a 30 day window)"},
			{Name: "to", Type: TypeString, Description: "End date, inclusive when given as a date"},
			paramCalendars, paramIncludeCompleted,
		},
		runSearch),
	define(OpDailySummary, "Summarize one day: event count, pending and completed reminders, busy time and free slots",
		[]Param{
			{Name: "date", Type: TypeString, Description: "Day to summarize (defaults to today)"},
			paramCalendars, paramMinSlot,
		},
		runSummary),
	define(OpFreeSlots, "Find free time between busy events",
		[]Param{paramFrom, paramTo, paramCalendars, paramMinSlot},
		runFreeSlots),
	define(OpCurrentTime, "Get the current date and time in a time zone", nil, runCurrentTime),
	define(OpConvertTime, "Convert a wall-clock time from one time zone to another",
		[]Param{
			{Name: "time", Type: TypeString, Description: "Time to convert, e.g. 2024-01-15 14:30:00", Required: true},
			{Name: "fromTimezone", Type: TypeString, Description: "Source time zone (defaults to local)"},
			{Name: "toTimezone", Type: TypeString, Description: "Target time zone", Required: true},
		},
		runConvertTime),
	define(OpListTimezones, "List time zones with their current offsets, grouped by region",
		[]Param{{Name: "region", Type: TypeString, Description: "Region prefix such as America or Europe (defaults to all)"}},
		runListTimezones),
}

// Operations returns the operation table.
func Operations() []Operation {
	out := make([]Operation, len(operations))
	copy(out, operations)
	return out
}

// Lookup finds an operation by name.
func Lookup(name string) (Operation, bool) {
	for _, op := range operations {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

func runListCalendars(ctx context.Context, d *Dispatcher, _ *request, _ *ListCalendarsArgs) (render.Result, error) {
	cals, err := d.source.ListCalendars(ctx)
	if err != nil {
		return render.Result{}, d.sourceError(err)
	}
	return render.Calendars(cals), nil
}

func runEvents(ctx context.Context, d *Dispatcher, req *request, a *EventsArgs) (render.Result, error) {
	rng, err := parseRange(a.From, a.To, req.now, req.zone)
	if err != nil {
		return render.Result{}, err
	}
	names := trimNames(a.Calendars)
	got, err := d.fetch(ctx, req, fetchSpec{calendars: names, events: &rng})
	if err != nil {
		return render.Result{}, err
	}
	return render.Events(filter.Events(got.events, model.FilterCriteria{
		Range:      &rng,
		Calendars:  names,
		AllDayOnly: a.AllDayOnly,
		BusyOnly:   a.BusyOnly,
		Query:      a.Query,
	})), nil
}

func runReminders(ctx context.Context, d *Dispatcher, req *request, a *RemindersArgs) (render.Result, error) {
	var rng *model.TimeRange
	if hasRange(a.From, a.To) {
		r, err := parseRange(a.From, a.To, req.now, req.zone)
		if err != nil {
			return render.Result{}, err
		}
		rng = &r
	}
	names := trimNames(a.Calendars)
	got, err := d.fetch(ctx, req, fetchSpec{calendars: names, reminders: true})
	if err != nil {
		return render.Result{}, err
	}
	return render.Reminders(filter.Reminders(got.reminders, model.FilterCriteria{
		Range:            rng,
		Calendars:        names,
		IncludeCompleted: a.IncludeCompleted,
	})), nil
}

func runAgenda(ctx context.Context, d *Dispatcher, req *request, a *AgendaArgs) (render.Result, error) {
	rng, err := parseRange(a.From, a.To, req.now, req.zone)
	if err != nil {
		return render.Result{}, err
	}
	names := trimNames(a.Calendars)
	got, err := d.fetch(ctx, req, fetchSpec{calendars: names, events: &rng, reminders: true})
	if err != nil {
		return render.Result{}, err
	}
	criteria := model.FilterCriteria{
		Range:            &rng,
		Calendars:        names,
		AllDayOnly:       a.AllDayOnly,
		BusyOnly:         a.BusyOnly,
		IncludeCompleted: a.IncludeCompleted,
		Query:            a.Query,
	}
	return render.Agenda(filter.Events(got.events, criteria), filter.Reminders(got.reminders, criteria)), nil
}

func runSearch(ctx context.Context, d *Dispatcher, req *request, a *SearchArgs) (render.Result, error) {
	// Without a range, events are fetched for the search window and
	// reminders are searched regardless of due date.
	var (
		window = model.TimeRange{Start: views.DayRange(req.now, req.zone).Start}
		rng    *model.TimeRange
	)
	window.End = window.Start.Add(d.searchWindow)
	if hasRange(a.From, a.To) {
		r, err := parseRange(a.From, a.To, req.now, req.zone)
		if err != nil {
			return render.Result{}, err
		}
		window, rng = r, &r
	}

	names := trimNames(a.Calendars)
	got, err := d.fetch(ctx, req, fetchSpec{calendars: names, events: &window, reminders: true})
	if err != nil {
		return render.Result{}, err
	}
	res, err := views.Search(got.events, got.reminders, a.Term, model.FilterCriteria{
		Range:            rng,
		Calendars:        names,
		IncludeCompleted: a.IncludeCompleted,
	})
	if err != nil {
		return render.Result{}, err
	}
	return render.Agenda(res.Events, res.Reminders), nil
}

func runSummary(ctx context.Context, d *Dispatcher, req *request, a *SummaryArgs) (render.Result, error) {
	day := views.DayRange(req.now, req.zone)
	if strings.TrimSpace(a.Date) != "" {
		v, err := parseDate("date", a.Date, req.now, req.zone)
		if err != nil {
			return render.Result{}, err
		}
		day = views.DayRange(v.t, req.zone)
	}

	opts := d.summary
	if a.MinSlot != nil {
		opts.MinSlot = *a.MinSlot
	}

	names := trimNames(a.Calendars)
	got, err := d.fetch(ctx, req, fetchSpec{calendars: names, events: &day, reminders: true})
	if err != nil {
		return render.Result{}, err
	}
	criteria := model.FilterCriteria{Calendars: names, IncludeCompleted: true}
	events := filter.Events(got.events, criteria)
	reminders := filter.Reminders(got.reminders, criteria)
	return render.Summary(views.Summarize(day.Start, req.zone, events, reminders, opts)), nil
}

func runFreeSlots(ctx context.Context, d *Dispatcher, req *request, a *FreeSlotsArgs) (render.Result, error) {
	rng, err := parseRange(a.From, a.To, req.now, req.zone)
	if err != nil {
		return render.Result{}, err
	}
	minSlot := d.summary.MinSlot
	if a.MinSlot != nil {
		minSlot = *a.MinSlot
	}

	names := trimNames(a.Calendars)
	got, err := d.fetch(ctx, req, fetchSpec{calendars: names, events: &rng})
	if err != nil {
		return render.Result{}, err
	}
	events := filter.Events(got.events, model.FilterCriteria{Range: &rng, Calendars: names})
	return render.FreeSlots(rng, minSlot, views.FreeSlots(events, rng.Start, rng.End, minSlot)), nil
}

func runCurrentTime(_ context.Context, d *Dispatcher, req *request, a *CurrentTimeArgs) (render.Result, error) {
	info := timezone.Describe(req.now, req.zone, zoneLabel(req, a.Timezone))
	return render.CurrentTime(info), nil
}

func runConvertTime(_ context.Context, d *Dispatcher, _ *request, a *ConvertTimeArgs) (render.Result, error) {
	conv, err := d.resolver.ConvertWallClock(a.Time, a.FromTimezone, a.ToTimezone)
	if err != nil {
		return render.Result{}, err
	}
	return render.TimeConversion(conv), nil
}

func runListTimezones(_ context.Context, d *Dispatcher, _ *request, a *ListTimezonesArgs) (render.Result, error) {
	return render.Timezones(d.resolver.DescribeZones(timezone.ListZones(a.Region))), nil
}

// zoneLabel prefers the caller's spelling of the zone.
func zoneLabel(req *request, requested string) string {
	requested = strings.TrimSpace(requested)
	if requested == "" || strings.EqualFold(requested, "local") {
		return req.zone.String()
	}
	return requested
}
