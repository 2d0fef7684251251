package calendar

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/agenda/internal/logging"
	"github.com/teemow/agenda/internal/model"
)

const dateLayout = "2006-01-02"

// Client wraps the Google Calendar service
type Client struct {
	svc    *calendar.Service
	logger *slog.Logger
}

// NewClient creates a Calendar client. Authentication is passed in through
// the options, usually option.WithHTTPClient.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}
	return &Client{svc: svc, logger: slog.Default()}, nil
}

// WithLogger sets the logger that reports skipped records.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// ListCalendars lists all calendars on the user's calendar list.
func (c *Client) ListCalendars(ctx context.Context) ([]model.Calendar, error) {
	var out []model.Calendar
	err := c.svc.CalendarList.List().Pages(ctx, func(page *calendar.CalendarList) error {
		for _, entry := range page.Items {
			if entry.Deleted || entry.Hidden {
				continue
			}
			out = append(out, toCalendar(entry))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list calendars: %w", err)
	}
	return out, nil
}

// ListEvents lists the event instances of a calendar overlapping rng.
// Recurring events are expanded by the API. Events that cannot be converted
// are logged and skipped.
func (c *Client) ListEvents(ctx context.Context, calendarID string, rng model.TimeRange) ([]model.RawEvent, error) {
	call := c.svc.Events.List(calendarID).
		SingleEvents(true).
		OrderBy("startTime").
		ShowDeleted(false).
		TimeMin(rng.Start.Format(time.RFC3339)).
		TimeMax(rng.End.Format(time.RFC3339))

	var out []model.RawEvent
	err := call.Pages(ctx, func(page *calendar.Events) error {
		for _, ev := range page.Items {
			if ev.Status == "cancelled" {
				continue
			}
			raw, err := toRawEvent(calendarID, ev)
			if err != nil {
				c.logger.Warn("skipping event", logging.Calendar(calendarID), logging.RecordID(ev.Id), logging.Err(err))
				continue
			}
			out = append(out, raw)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list events of %s: %w", calendarID, err)
	}
	return out, nil
}

// toCalendar converts a Google Calendar list entry to a calendar
func toCalendar(entry *calendar.CalendarListEntry) model.Calendar {
	if entry == nil {
		return model.Calendar{}
	}
	name := entry.SummaryOverride
	if name == "" {
		name = entry.Summary
	}
	return model.Calendar{
		ID:    entry.Id,
		Name:  name,
		Color: entry.BackgroundColor,
		Type:  model.CalendarTypeEvent,
	}
}

// toRawEvent converts a Google Calendar event. Date-only bounds mark an
// all-day event; transparent events do not block time.
func toRawEvent(calendarID string, ev *calendar.Event) (model.RawEvent, error) {
	raw := model.RawEvent{
		ID:          ev.Id,
		Title:       ev.Summary,
		Busy:        ev.Transparency != "transparent",
		CalendarRef: calendarID,
		Location:    ev.Location,
		Notes:       ev.Description,
		URL:         eventURL(ev),
	}

	start, allDay, err := parseEventTime(ev.Start)
	if err != nil {
		return model.RawEvent{}, fmt.Errorf("event %s: invalid start: %w", ev.Id, err)
	}
	end, _, err := parseEventTime(ev.End)
	if err != nil {
		return model.RawEvent{}, fmt.Errorf("event %s: invalid end: %w", ev.Id, err)
	}
	if end.IsZero() {
		end = start
	}
	raw.Start, raw.End, raw.AllDay = start, end, allDay
	return raw, nil
}

func parseEventTime(et *calendar.EventDateTime) (time.Time, bool, error) {
	if et == nil {
		return time.Time{}, false, nil
	}
	if et.DateTime != "" {
		t, err := time.Parse(time.RFC3339, et.DateTime)
		return t, false, err
	}
	if et.Date != "" {
		t, err := time.Parse(dateLayout, et.Date)
		return t, true, err
	}
	return time.Time{}, false, nil
}

// eventURL prefers the video entry point of the conference data, then the
// Hangouts link, then the event page.
func eventURL(ev *calendar.Event) string {
	if ev.ConferenceData != nil {
		for _, ep := range ev.ConferenceData.EntryPoints {
			if ep.EntryPointType == "video" && ep.Uri != "" {
				return ep.Uri
			}
		}
	}
	if ev.HangoutLink != "" {
		return ev.HangoutLink
	}
	return ev.HtmlLink
}
