package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/render"
	"github.com/teemow/agenda/internal/source"
	"github.com/teemow/agenda/internal/timezone"
	"github.com/teemow/agenda/internal/views"
)

// Monday 2024-01-15 10:00 UTC.
var now = time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)

func utc(day, h, m int) time.Time {
	return time.Date(2024, 1, day, h, m, 0, 0, time.UTC)
}

func fixture() *source.Memory {
	due := utc(15, 17, 0)
	later := utc(20, 9, 0)
	return &source.Memory{
		Calendars: []model.Calendar{
			{ID: "work", Name: "Work", Type: model.CalendarTypeEvent},
			{ID: "home", Name: "Home", Type: model.CalendarTypeEvent},
			{ID: "todo", Name: "Todo", Type: model.CalendarTypeReminder},
		},
		Events: []model.RawEvent{
			{ID: "e1", Title: "Standup", Start: utc(15, 9, 0), End: utc(15, 10, 0), Busy: true, CalendarRef: "work"},
			{ID: "e2", Title: "Design review", Start: utc(15, 9, 30), End: utc(15, 11, 0), Busy: true, CalendarRef: "work"},
			{ID: "e3", Title: "Team Lunch", Start: utc(15, 12, 0), End: utc(15, 13, 0), Busy: true, CalendarRef: "work", Location: "Canteen"},
			{ID: "e4", Title: "Focus time", Start: utc(15, 14, 0), End: utc(15, 16, 0), Busy: false, CalendarRef: "work"},
			{ID: "e5", Title: "Holiday", Start: utc(16, 0, 0), End: utc(17, 0, 0), AllDay: true, Busy: false, CalendarRef: "home"},
			{ID: "e6", Title: "Dentist", Start: utc(18, 8, 0), End: utc(18, 9, 0), Busy: true, CalendarRef: "home", Notes: "bring lunch money"},
		},
		Reminders: []model.RawReminder{
			{ID: "r1", Title: "Submit report", Due: &due, CalendarRef: "todo"},
			{ID: "r2", Title: "Buy lunch vouchers", Due: &later, CalendarRef: "todo"},
			{ID: "r3", Title: "Someday", CalendarRef: "todo"},
			{ID: "r4", Title: "Done already", Completed: true, CalendarRef: "todo"},
		},
	}
}

func newDispatcher(src source.CalendarSource) *Dispatcher {
	clock := func() time.Time { return now }
	return New(src,
		WithClock(clock),
		WithResolver(timezone.NewResolver(timezone.WithLocal(time.UTC), timezone.WithClock(clock))),
	)
}

func eventIDs(events []model.Event) []string {
	ids := []string{}
	for _, e := range events {
		ids = append(ids, e.ID)
	}
	return ids
}

func reminderIDs(reminders []model.Reminder) []string {
	ids := []string{}
	for _, r := range reminders {
		ids = append(ids, r.ID)
	}
	return ids
}

func run(t *testing.T, d *Dispatcher, op string, bag map[string]any) render.Result {
	t.Helper()
	out, err := d.Run(context.Background(), op, bag)
	require.NoError(t, err)
	return out.Result
}

func TestOperationsTable(t *testing.T) {
	names := []string{}
	for _, op := range Operations() {
		names = append(names, op.Name)
		assert.NotEmpty(t, op.Description, op.Name)
		assert.Equal(t, "encoding", op.Params[len(op.Params)-1].Name, op.Name)
	}
	assert.Equal(t, []string{
		OpListCalendars, OpGetEvents, OpGetReminders, OpGetAgenda, OpSearch,
		OpDailySummary, OpFreeSlots, OpCurrentTime, OpConvertTime, OpListTimezones,
	}, names)

	_, ok := Lookup("delete_event")
	assert.False(t, ok)
}

func TestRun_ArgumentErrorsBeforeIO(t *testing.T) {
	failing := fixture()
	failing.Err = errors.New("must not be called")
	d := newDispatcher(failing)

	tests := []struct {
		name  string
		op    string
		bag   map[string]any
		kind  model.ErrorKind
		field string
	}{
		{"unknown operation", "delete_event", nil, model.KindInvalidArgument, "operation"},
		{"unknown argument", OpGetEvents, map[string]any{"colour": "red"}, model.KindInvalidArgument, "colour"},
		{"bad from", OpGetEvents, map[string]any{"from": "15/01/2024"}, model.KindInvalidArgument, "from"},
		{"bad to", OpGetAgenda, map[string]any{"to": "soon"}, model.KindInvalidArgument, "to"},
		{"inverted range", OpGetEvents, map[string]any{"from": "2024-01-16", "to": "2024-01-14"}, model.KindInvalidArgument, "to"},
		{"unknown zone", OpGetEvents, map[string]any{"timezone": "Mars/Olympus"}, model.KindUnknownTimeZone, "timezone"},
		{"bad encoding", OpListCalendars, map[string]any{"encoding": "xml"}, model.KindInvalidArgument, "encoding"},
		{"empty term", OpSearch, map[string]any{"term": "  "}, model.KindInvalidArgument, "term"},
		{"negative min slot", OpFreeSlots, map[string]any{"minSlot": "-5"}, model.KindInvalidArgument, "minSlot"},
		{"missing time", OpConvertTime, map[string]any{"toTimezone": "UTC"}, model.KindInvalidArgument, "time"},
		{"missing target", OpConvertTime, map[string]any{"time": "2024-01-15 10:00"}, model.KindInvalidArgument, "toTimezone"},
		{"bad summary date", OpDailySummary, map[string]any{"date": "someday"}, model.KindInvalidArgument, "date"},
		{"bad duration", OpFreeSlots, map[string]any{"minSlot": "a while"}, model.KindInvalidArgument, "arguments"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := d.Run(context.Background(), tt.op, tt.bag)
			require.Error(t, err)
			assert.Equal(t, tt.kind, model.KindOf(err), err.Error())
			assert.Equal(t, tt.field, model.FieldOf(err))
		})
	}
}

func TestGetEvents(t *testing.T) {
	d := newDispatcher(fixture())

	res := run(t, d, OpGetEvents, nil)
	assert.Equal(t, render.KindEvents, res.Kind)
	assert.Equal(t, []string{"e1", "e2", "e3", "e4"}, eventIDs(res.Events))

	res = run(t, d, OpGetEvents, map[string]any{"from": "today", "to": "friday", "busyOnly": true})
	assert.Equal(t, []string{"e1", "e2", "e3", "e6"}, eventIDs(res.Events))

	res = run(t, d, OpGetEvents, map[string]any{"from": "tomorrow", "allDayOnly": "true"})
	assert.Equal(t, []string{"e5"}, eventIDs(res.Events))

	res = run(t, d, OpGetEvents, map[string]any{"from": "2024-01-15", "to": "2024-01-19", "calendars": "Home, work"})
	assert.Len(t, res.Events, 6)

	res = run(t, d, OpGetEvents, map[string]any{"from_date": "2024-01-15", "to_date": "2024-01-19", "calendars": []any{"home"}, "query": "LUNCH"})
	assert.Equal(t, []string{"e6"}, eventIDs(res.Events))
}

func TestGetEvents_SharedCalendarIDAcrossSources(t *testing.T) {
	personal := &source.Memory{
		SourceName: "google",
		Calendars:  []model.Calendar{{ID: "team@group", Name: "Team", Type: model.CalendarTypeEvent}},
		Events:     []model.RawEvent{{ID: "a1", Title: "Planning", Start: utc(15, 11, 0), End: utc(15, 12, 0), CalendarRef: "team@group"}},
	}
	work := &source.Memory{
		SourceName: "google-work",
		Calendars:  []model.Calendar{{ID: "team@group", Name: "Work Team", Type: model.CalendarTypeEvent}},
		Events:     []model.RawEvent{{ID: "b1", Title: "Retro", Start: utc(15, 14, 0), End: utc(15, 15, 0), CalendarRef: "team@group"}},
	}
	multi, err := source.NewMulti(personal, work)
	require.NoError(t, err)
	d := newDispatcher(multi)

	res := run(t, d, OpGetEvents, nil)
	calendarOf := map[string]string{}
	for _, e := range res.Events {
		calendarOf[e.ID] = e.Calendar
	}
	assert.Equal(t, map[string]string{"a1": "Team", "b1": "Work Team"}, calendarOf)

	res = run(t, d, OpGetEvents, map[string]any{"calendars": "Team"})
	assert.Equal(t, []string{"a1"}, eventIDs(res.Events))

	res = run(t, d, OpGetEvents, map[string]any{"calendars": "Work Team"})
	assert.Equal(t, []string{"b1"}, eventIDs(res.Events))
}

func TestGetEvents_TimestampRange(t *testing.T) {
	d := newDispatcher(fixture())

	res := run(t, d, OpGetEvents, map[string]any{"from": "2024-01-15T10:30:00Z", "to": "2024-01-15T12:00:00Z"})
	assert.Equal(t, []string{"e2"}, eventIDs(res.Events), "half-open range excludes the lunch starting at 12:00")
}

func TestGetEvents_UnknownCalendar(t *testing.T) {
	d := newDispatcher(fixture())

	_, err := d.Run(context.Background(), OpGetEvents, map[string]any{"calendars": "Nope"})
	require.Error(t, err)
	assert.ErrorIs(t, err, &model.Error{Kind: model.KindInvalidArgument, Field: "calendars"})
}

func TestGetEvents_OnlyReminderListSelected(t *testing.T) {
	src := fixture()
	d := newDispatcher(src)

	res := run(t, d, OpGetEvents, map[string]any{"calendars": "Todo"})
	assert.Empty(t, res.Events)
}

func TestGetReminders(t *testing.T) {
	d := newDispatcher(fixture())

	res := run(t, d, OpGetReminders, nil)
	assert.Equal(t, []string{"r1", "r2", "r3"}, reminderIDs(res.Reminders), "no range includes undated, excludes completed")

	res = run(t, d, OpGetReminders, map[string]any{"includeCompleted": true})
	assert.Equal(t, []string{"r1", "r2", "r3", "r4"}, reminderIDs(res.Reminders))

	res = run(t, d, OpGetReminders, map[string]any{"from": "2024-01-15", "to": "2024-01-31"})
	assert.Equal(t, []string{"r1", "r2"}, reminderIDs(res.Reminders), "a range drops undated reminders")

	res = run(t, d, OpGetReminders, map[string]any{"from": "2024-01-15", "to": "2024-01-31", "include_completed": true})
	assert.NotContains(t, reminderIDs(res.Reminders), "r4")
}

func TestGetAgenda(t *testing.T) {
	d := newDispatcher(fixture())

	res := run(t, d, OpGetAgenda, map[string]any{"calendars": "Work,Todo"})
	assert.Equal(t, render.KindAgenda, res.Kind)
	assert.Equal(t, []string{"e1", "e2", "e3", "e4"}, eventIDs(res.Events))
	assert.Equal(t, []string{"r1"}, reminderIDs(res.Reminders))
}

func TestSearch(t *testing.T) {
	d := newDispatcher(fixture())

	res := run(t, d, OpSearch, map[string]any{"term": "lunch"})
	assert.Equal(t, []string{"e3", "e6"}, eventIDs(res.Events))
	assert.Equal(t, []string{"r2"}, reminderIDs(res.Reminders))

	res = run(t, d, OpSearch, map[string]any{"search_term": "lunch", "from": "today"})
	assert.Equal(t, []string{"e3"}, eventIDs(res.Events))
	assert.Empty(t, res.Reminders)

	res = run(t, d, OpSearch, map[string]any{"term": "canteen"})
	assert.Equal(t, []string{"e3"}, eventIDs(res.Events), "location is searched")
}

func TestDailySummary(t *testing.T) {
	d := newDispatcher(fixture())

	res := run(t, d, OpDailySummary, map[string]any{"minSlot": 60})
	require.NotNil(t, res.Summary)
	s := res.Summary
	assert.Equal(t, "2024-01-15", s.Date)
	assert.Equal(t, 4, s.EventCount)
	assert.Equal(t, 1, s.PendingReminders)
	assert.Equal(t, 3*time.Hour, s.BusyTime)
	require.Len(t, s.FreeSlots, 3)
	assert.Equal(t, utc(15, 0, 0), s.FreeSlots[0].Start)
	assert.Equal(t, utc(15, 9, 0), s.FreeSlots[0].End)
	assert.Equal(t, utc(15, 13, 0), s.FreeSlots[2].Start)

	res = run(t, d, OpDailySummary, map[string]any{"date": "thursday"})
	assert.Equal(t, "2024-01-18", res.Summary.Date)
	assert.Equal(t, 1, res.Summary.EventCount)
}

func TestDailySummary_WorkingHours(t *testing.T) {
	clock := func() time.Time { return now }
	d := New(fixture(),
		WithClock(clock),
		WithResolver(timezone.NewResolver(timezone.WithLocal(time.UTC), timezone.WithClock(clock))),
		WithSummaryOptions(views.SummaryOptions{
			MinSlot:      DefaultMinSlot,
			WorkdayStart: 8 * time.Hour,
			WorkdayEnd:   17 * time.Hour,
		}),
	)

	res := run(t, d, OpDailySummary, nil)
	slots := res.Summary.FreeSlots
	require.Len(t, slots, 3)
	assert.Equal(t, utc(15, 8, 0), slots[0].Start)
	assert.Equal(t, utc(15, 11, 0), slots[1].Start)
	assert.Equal(t, utc(15, 13, 0), slots[2].Start)
	assert.Equal(t, utc(15, 17, 0), slots[2].End)

	// An explicit minimum overrides the configured one.
	res = run(t, d, OpDailySummary, map[string]any{"minSlot": "2h"})
	require.Len(t, res.Summary.FreeSlots, 1)
	assert.Equal(t, utc(15, 13, 0), res.Summary.FreeSlots[0].Start)
}

func TestFreeSlots_OverlappingScenario(t *testing.T) {
	d := newDispatcher(fixture())

	res := run(t, d, OpFreeSlots, map[string]any{
		"from":    "2024-01-15T08:00:00Z",
		"to":      "2024-01-15T12:00:00Z",
		"minSlot": "0",
	})
	require.NotNil(t, res.FreeSlots)
	slots := res.FreeSlots.Slots
	require.Len(t, slots, 2)
	assert.Equal(t, model.FreeSlot{Start: utc(15, 8, 0), End: utc(15, 9, 0)}, slots[0])
	assert.Equal(t, model.FreeSlot{Start: utc(15, 11, 0), End: utc(15, 12, 0)}, slots[1])
	assert.Equal(t, time.Duration(0), res.FreeSlots.MinSlot)

	res = run(t, d, OpFreeSlots, map[string]any{"from": "2024-01-15T08:00:00Z", "to": "2024-01-15T12:00:00Z"})
	assert.Equal(t, DefaultMinSlot, res.FreeSlots.MinSlot)
}

func TestFreeSlots_MinSlotFormats(t *testing.T) {
	d := newDispatcher(fixture())

	for _, v := range []any{"90", 90, 90.0, "1h30m"} {
		res := run(t, d, OpFreeSlots, map[string]any{"minSlot": v})
		assert.Equal(t, 90*time.Minute, res.FreeSlots.MinSlot, "%v", v)
		for _, s := range res.FreeSlots.Slots {
			assert.GreaterOrEqual(t, s.Duration(), 90*time.Minute)
		}
	}
}

func TestTimeOperations(t *testing.T) {
	d := newDispatcher(fixture())

	res := run(t, d, OpCurrentTime, map[string]any{"timezone": "Asia/Tokyo"})
	require.NotNil(t, res.Time)
	assert.Equal(t, "Asia/Tokyo", res.Time.Zone)
	assert.Equal(t, 19, res.Time.Hour)

	res = run(t, d, OpConvertTime, map[string]any{
		"time":         "2024-01-15 09:00:00",
		"fromTimezone": "America/New_York",
		"toTimezone":   "Europe/Berlin",
	})
	require.NotNil(t, res.Conversion)
	assert.Equal(t, "2024-01-15 15:00:00", res.Conversion.Converted.Datetime)

	res = run(t, d, OpListTimezones, map[string]any{"region": "America"})
	require.NotNil(t, res.Zones)
	assert.Equal(t, []string{"America"}, res.Zones.Regions)
	assert.Positive(t, res.Zones.Total)
}

func TestListCalendars(t *testing.T) {
	d := newDispatcher(fixture())

	out, err := d.Dispatch(context.Background(), OpListCalendars, map[string]any{"json": true})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "{\n  \"schemaVersion\": \"1\",\n  \"kind\": \"calendars\""), out)
}

func TestDispatch_Deterministic(t *testing.T) {
	d := newDispatcher(fixture())
	bag := map[string]any{"from": "2024-01-15", "to": "2024-01-20", "timezone": "Europe/Berlin"}

	for _, enc := range []string{"json", "text"} {
		bag["encoding"] = enc
		first, err := d.Dispatch(context.Background(), OpGetAgenda, bag)
		require.NoError(t, err)
		second, err := d.Dispatch(context.Background(), OpGetAgenda, bag)
		require.NoError(t, err)
		assert.Equal(t, first, second)
	}
}

func TestSourceFailure(t *testing.T) {
	src := fixture()
	src.Err = errors.New("backend down")
	d := newDispatcher(src)

	for _, op := range []string{OpListCalendars, OpGetEvents, OpGetReminders} {
		_, err := d.Run(context.Background(), op, nil)
		require.Error(t, err)
		assert.ErrorIs(t, err, model.ErrSourceUnavailable, op)
		assert.Contains(t, err.Error(), "backend down")
	}
}

func TestCancellation(t *testing.T) {
	src := fixture()
	src.Latency = time.Minute
	d := newDispatcher(src)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := d.Run(ctx, OpGetAgenda, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrSourceUnavailable)
	assert.ErrorIs(t, err, context.Canceled)
}

// rendezvous only lets either fetch finish once both have started.
type rendezvous struct {
	*source.Memory
	events, reminders chan struct{}
}

func (r *rendezvous) FetchEvents(ctx context.Context, rng model.TimeRange, cals []model.Calendar) ([]model.RawEvent, error) {
	close(r.events)
	select {
	case <-r.reminders:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.Memory.FetchEvents(ctx, rng, cals)
}

func (r *rendezvous) FetchReminders(ctx context.Context, cals []model.Calendar) ([]model.RawReminder, error) {
	close(r.reminders)
	select {
	case <-r.events:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return r.Memory.FetchReminders(ctx, cals)
}

func TestFetchRunsConcurrently(t *testing.T) {
	src := &rendezvous{Memory: fixture(), events: make(chan struct{}), reminders: make(chan struct{})}
	d := newDispatcher(src)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	out, err := d.Run(ctx, OpGetAgenda, nil)
	require.NoError(t, err)
	assert.Len(t, out.Result.Events, 4)
}
