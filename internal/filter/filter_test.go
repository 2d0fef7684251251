package filter

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agenda/internal/model"
)

var monday = time.Date(2024, time.January, 15, 0, 0, 0, 0, time.UTC)

func at(h, m int) time.Time {
	return monday.Add(time.Duration(h)*time.Hour + time.Duration(m)*time.Minute)
}

func ptr(t time.Time) *time.Time { return &t }

func ids[T interface{ model.Event | model.Reminder }](items []T) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch v := any(it).(type) {
		case model.Event:
			out = append(out, v.ID)
		case model.Reminder:
			out = append(out, v.ID)
		}
	}
	return out
}

func sampleEvents() []model.Event {
	return []model.Event{
		{ID: "standup", Title: "Standup", Start: at(9, 0), End: at(9, 15), Calendar: "Work", CalendarID: "w1", Busy: true},
		{ID: "lunch", Title: "Team Lunch", Start: at(12, 0), End: at(13, 0), Calendar: "Work", CalendarID: "w1", Busy: true, Location: "Cafe Central"},
		{ID: "holiday", Title: "Public Holiday", Start: monday, End: monday.AddDate(0, 0, 1), Calendar: "Holidays", CalendarID: "h1", AllDay: true},
		{ID: "gym", Title: "Gym", Start: at(18, 0), End: at(19, 0), Calendar: "Personal", CalendarID: "p1", Notes: "bring towel"},
	}
}

func TestEvents_NoCriteria(t *testing.T) {
	events := sampleEvents()
	assert.Equal(t, ids(events), ids(Events(events, model.FilterCriteria{})))
}

func TestEvents_StatusFlags(t *testing.T) {
	events := sampleEvents()

	assert.Equal(t, []string{"holiday"}, ids(Events(events, model.FilterCriteria{AllDayOnly: true})))
	assert.Equal(t, []string{"standup", "lunch"}, ids(Events(events, model.FilterCriteria{BusyOnly: true})))
	assert.Empty(t, Events(events, model.FilterCriteria{BusyOnly: true, AllDayOnly: true}))
}

func TestEvents_Calendars(t *testing.T) {
	events := sampleEvents()

	assert.Equal(t, []string{"standup", "lunch"}, ids(Events(events, model.FilterCriteria{Calendars: []string{"work"}})))
	assert.Equal(t, []string{"holiday", "gym"}, ids(Events(events, model.FilterCriteria{Calendars: []string{"h1", "Personal"}})))
	assert.Empty(t, Events(events, model.FilterCriteria{Calendars: []string{"Nope"}}))
	assert.Len(t, Events(events, model.FilterCriteria{Calendars: []string{" ", ""}}), len(events))
}

func TestEvents_Range(t *testing.T) {
	events := sampleEvents()

	morning := &model.TimeRange{Start: at(8, 0), End: at(12, 0)}
	assert.Equal(t, []string{"standup", "holiday"}, ids(Events(events, model.FilterCriteria{Range: morning})))

	// The range end is exclusive: lunch starts exactly at 12:00.
	assert.NotContains(t, ids(Events(events, model.FilterCriteria{Range: morning})), "lunch")

	// The event end is exclusive: standup ends at 09:15.
	after := &model.TimeRange{Start: at(9, 15), End: at(10, 0)}
	assert.Equal(t, []string{"holiday"}, ids(Events(events, model.FilterCriteria{Range: after})))

	empty := &model.TimeRange{Start: at(10, 0), End: at(10, 0)}
	assert.Empty(t, Events(events, model.FilterCriteria{Range: empty}))
}

func TestEvents_ZeroDuration(t *testing.T) {
	marker := model.Event{ID: "marker", Start: at(10, 0), End: at(10, 0)}

	in := &model.TimeRange{Start: at(10, 0), End: at(11, 0)}
	out := &model.TimeRange{Start: at(9, 0), End: at(10, 0)}

	assert.Len(t, Events([]model.Event{marker}, model.FilterCriteria{Range: in}), 1)
	assert.Empty(t, Events([]model.Event{marker}, model.FilterCriteria{Range: out}))
}

func TestEvents_Query(t *testing.T) {
	events := sampleEvents()

	assert.Equal(t, []string{"lunch"}, ids(Events(events, model.FilterCriteria{Query: "lunch"})))
	assert.Equal(t, []string{"lunch"}, ids(Events(events, model.FilterCriteria{Query: "LUNCH"})))
	assert.Equal(t, []string{"gym"}, ids(Events(events, model.FilterCriteria{Query: "towel"})))
	assert.Equal(t, []string{"lunch"}, ids(Events(events, model.FilterCriteria{Query: "central"})))
	assert.Empty(t, Events(events, model.FilterCriteria{Query: "dentist"}))
}

func TestEvents_ANDComposition(t *testing.T) {
	events := sampleEvents()
	c := model.FilterCriteria{
		Calendars: []string{"Work"},
		BusyOnly:  true,
		Range:     &model.TimeRange{Start: at(11, 0), End: at(23, 0)},
		Query:     "team",
	}
	assert.Equal(t, []string{"lunch"}, ids(Events(events, c)))
}

func TestEvents_DoesNotMutateInput(t *testing.T) {
	events := sampleEvents()
	before := append([]model.Event(nil), events...)
	_ = Events(events, model.FilterCriteria{Query: "gym"})
	assert.Equal(t, before, events)
}

// For every event, a range disjoint from [start, end) excludes it and a range
// containing any point of it includes it.
func TestEvents_RangeProperty(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	base := monday

	for i := 0; i < 2000; i++ {
		start := base.Add(time.Duration(rng.IntN(24*60)) * time.Minute)
		end := start.Add(time.Duration(1+rng.IntN(180)) * time.Minute)
		e := model.Event{ID: "e", Start: start, End: end}

		// Disjoint: entirely before or entirely after.
		var disjoint model.TimeRange
		if rng.IntN(2) == 0 {
			disjoint = model.TimeRange{Start: start.Add(-time.Duration(1+rng.IntN(120)) * time.Minute), End: start}
		} else {
			disjoint = model.TimeRange{Start: end, End: end.Add(time.Duration(1+rng.IntN(120)) * time.Minute)}
		}
		require.Empty(t, Events([]model.Event{e}, model.FilterCriteria{Range: &disjoint}), "disjoint %v for %v-%v", disjoint, start, end)

		// Containing a point p in [start, end).
		p := start.Add(time.Duration(rng.Int64N(int64(end.Sub(start)))))
		containing := model.TimeRange{
			Start: p.Add(-time.Duration(rng.IntN(60)) * time.Minute),
			End:   p.Add(time.Duration(1+rng.IntN(60)) * time.Minute),
		}
		require.Len(t, Events([]model.Event{e}, model.FilterCriteria{Range: &containing}), 1, "containing %v for %v-%v", containing, start, end)
	}
}

func sampleReminders() []model.Reminder {
	return []model.Reminder{
		{ID: "pay", Title: "Pay rent", Due: ptr(at(9, 0)), Calendar: "Personal", CalendarID: "r1"},
		{ID: "report", Title: "Quarterly report", Due: ptr(at(17, 0)), Calendar: "Work", CalendarID: "r2", Notes: "lunch numbers"},
		{ID: "done", Title: "Book flights", Due: ptr(at(10, 0)), Completed: true, Calendar: "Personal", CalendarID: "r1"},
		{ID: "someday", Title: "Learn Lunch-time yoga", Calendar: "Personal", CalendarID: "r1"},
		{ID: "old-undated", Title: "Old done", Completed: true, Calendar: "Personal", CalendarID: "r1"},
	}
}

func TestReminders_Completion(t *testing.T) {
	rs := sampleReminders()

	assert.Equal(t, []string{"pay", "report", "someday"}, ids(Reminders(rs, model.FilterCriteria{})))
	assert.Equal(t, ids(rs), ids(Reminders(rs, model.FilterCriteria{IncludeCompleted: true})))
}

func TestReminders_Range(t *testing.T) {
	rs := sampleReminders()
	day := &model.TimeRange{Start: monday, End: monday.AddDate(0, 0, 1)}

	// Undated reminders drop out once a range is supplied.
	assert.Equal(t, []string{"pay", "report"}, ids(Reminders(rs, model.FilterCriteria{Range: day})))
	assert.Equal(t, []string{"pay", "report", "done"}, ids(Reminders(rs, model.FilterCriteria{Range: day, IncludeCompleted: true})))

	morning := &model.TimeRange{Start: at(9, 0), End: at(10, 0)}
	assert.Equal(t, []string{"pay"}, ids(Reminders(rs, model.FilterCriteria{Range: morning, IncludeCompleted: true})))
}

func TestReminders_CompletedUndatedExcludedRegardlessOfRange(t *testing.T) {
	r := model.Reminder{ID: "x", Title: "x", Completed: true, Calendar: "Personal"}

	assert.Empty(t, Reminders([]model.Reminder{r}, model.FilterCriteria{}))
	assert.Empty(t, Reminders([]model.Reminder{r}, model.FilterCriteria{
		Range: &model.TimeRange{Start: monday, End: monday.AddDate(1, 0, 0)},
	}))
}

func TestReminders_QueryAndCalendars(t *testing.T) {
	rs := sampleReminders()

	assert.Equal(t, []string{"report", "someday"}, ids(Reminders(rs, model.FilterCriteria{Query: "lunch"})))
	assert.Equal(t, []string{"report"}, ids(Reminders(rs, model.FilterCriteria{Query: "lunch", Calendars: []string{"WORK"}})))
	assert.Equal(t, []string{"pay", "someday"}, ids(Reminders(rs, model.FilterCriteria{Calendars: []string{"r1"}})))
}

func TestMatchesQuery(t *testing.T) {
	assert.True(t, MatchesQuery("", "anything"))
	assert.True(t, MatchesQuery("LUNCH", "Team Lunch"))
	assert.True(t, MatchesQuery("lunch", "", "notes about lunch"))
	assert.False(t, MatchesQuery("lunch", "Standup"))
}

func TestMatchCalendars(t *testing.T) {
	cals := []model.Calendar{
		{ID: "w1", Name: "Work"},
		{ID: "p1", Name: "Personal"},
		{ID: "h1", Name: "Holidays"},
	}
	assert.Len(t, MatchCalendars(cals, nil), 3)

	got := MatchCalendars(cals, []string{"holidays", "w1"})
	require.Len(t, got, 2)
	assert.Equal(t, "Work", got[0].Name)
	assert.Equal(t, "Holidays", got[1].Name)

	assert.Empty(t, MatchCalendars(cals, []string{"Other"}))
}
