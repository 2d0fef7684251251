package dispatch

import (
	"context"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/teemow/agenda/internal/filter"
	"github.com/teemow/agenda/internal/logging"
	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/normalize"
	"github.com/teemow/agenda/internal/source"
)

// fetchSpec says what one request needs from the source.
type fetchSpec struct {
	calendars []string

	// events is the event fetch range; nil skips events.
	events *model.TimeRange

	reminders bool
}

type fetched struct {
	calendars []model.Calendar
	events    []model.Event
	reminders []model.Reminder
}

// fetch lists calendars, checks the requested names against them, then
// fetches events and reminders concurrently and normalizes both.
func (d *Dispatcher) fetch(ctx context.Context, req *request, spec fetchSpec) (fetched, error) {
	cals, err := d.source.ListCalendars(ctx)
	if err != nil {
		return fetched{}, d.sourceError(err)
	}

	selected := filter.MatchCalendars(cals, spec.calendars)
	if len(spec.calendars) > 0 && len(selected) == 0 {
		return fetched{}, model.InvalidArgument("calendars", "no calendar matches %s", strings.Join(spec.calendars, ", "))
	}

	// With an explicit selection, a kind with no selected calendar is not
	// fetched at all; an empty set would mean "everything" to the source.
	var eventCals, reminderCals []model.Calendar
	fetchEvents, fetchReminders := spec.events != nil, spec.reminders
	if len(spec.calendars) > 0 {
		eventCals = source.OfType(selected, model.CalendarTypeEvent)
		reminderCals = source.OfType(selected, model.CalendarTypeReminder)
		fetchEvents = fetchEvents && len(eventCals) > 0
		fetchReminders = fetchReminders && len(reminderCals) > 0
	}

	var (
		rawEvents    []model.RawEvent
		rawReminders []model.RawReminder
	)
	g, gctx := errgroup.WithContext(ctx)
	if fetchEvents {
		g.Go(func() error {
			var err error
			rawEvents, err = d.source.FetchEvents(gctx, *spec.events, eventCals)
			return err
		})
	}
	if fetchReminders {
		g.Go(func() error {
			var err error
			rawReminders, err = d.source.FetchReminders(gctx, reminderCals)
			return err
		})
	}
	if err := g.Wait(); err != nil {
		return fetched{}, d.sourceError(err)
	}

	index := normalize.Index(cals)
	opts := normalize.Options{Resolver: d.resolver, Anchor: req.zone, Logger: req.logger}
	out := fetched{
		calendars: cals,
		events:    normalize.Events(rawEvents, index, opts),
		reminders: normalize.Reminders(rawReminders, index, opts),
	}
	req.logger.Debug("fetched records",
		logging.Source(d.source.Name()),
		logging.Count(len(out.events)+len(out.reminders)))
	return out, nil
}

// sourceError makes sure a collaborator failure surfaces as
// source_unavailable.
func (d *Dispatcher) sourceError(err error) error {
	if model.KindOf(err) != "" {
		return err
	}
	return model.SourceUnavailable(d.source.Name(), err)
}
