package calendar

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/agenda/internal/model"
)

func TestToCalendar(t *testing.T) {
	if got := toCalendar(nil); got.ID != "" {
		t.Errorf("Expected empty ID for nil entry, got %s", got.ID)
	}

	got := toCalendar(&calendar.CalendarListEntry{
		Id:              "team@example.com",
		Summary:         "team@example.com",
		SummaryOverride: "Team",
		BackgroundColor: "#9fc6e7",
	})
	assert.Equal(t, model.Calendar{
		ID:    "team@example.com",
		Name:  "Team",
		Color: "#9fc6e7",
		Type:  model.CalendarTypeEvent,
	}, got)
}

func TestToRawEvent(t *testing.T) {
	tests := []struct {
		name  string
		event *calendar.Event
		check func(t *testing.T, raw model.RawEvent)
	}{
		{
			name: "timed event with offset",
			event: &calendar.Event{
				Id:          "e1",
				Summary:     "Standup",
				Start:       &calendar.EventDateTime{DateTime: "2024-01-15T09:00:00+01:00", TimeZone: "Europe/Berlin"},
				End:         &calendar.EventDateTime{DateTime: "2024-01-15T09:15:00+01:00"},
				Location:    "Room 1",
				Description: "daily",
			},
			check: func(t *testing.T, raw model.RawEvent) {
				assert.True(t, raw.Start.Equal(time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)))
				assert.Equal(t, 15*time.Minute, raw.End.Sub(raw.Start))
				assert.False(t, raw.AllDay)
				assert.True(t, raw.Busy)
				assert.Empty(t, raw.Zone)
				assert.Equal(t, "Room 1", raw.Location)
				assert.Equal(t, "daily", raw.Notes)
				assert.Equal(t, "cal", raw.CalendarRef)
			},
		},
		{
			name: "all-day event",
			event: &calendar.Event{
				Id:    "e2",
				Start: &calendar.EventDateTime{Date: "2024-01-16"},
				End:   &calendar.EventDateTime{Date: "2024-01-17"},
			},
			check: func(t *testing.T, raw model.RawEvent) {
				assert.True(t, raw.AllDay)
				assert.Equal(t, time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), raw.Start)
				assert.Equal(t, time.Date(2024, 1, 17, 0, 0, 0, 0, time.UTC), raw.End)
			},
		},
		{
			name: "transparent event is free",
			event: &calendar.Event{
				Id:           "e3",
				Transparency: "transparent",
				Start:        &calendar.EventDateTime{DateTime: "2024-01-15T12:00:00Z"},
				End:          &calendar.EventDateTime{DateTime: "2024-01-15T13:00:00Z"},
			},
			check: func(t *testing.T, raw model.RawEvent) {
				assert.False(t, raw.Busy)
			},
		},
		{
			name: "conference link preferred over page",
			event: &calendar.Event{
				Id:          "e4",
				HtmlLink:    "https://calendar.google.com/event?eid=e4",
				HangoutLink: "https://meet.google.com/old-link",
				ConferenceData: &calendar.ConferenceData{EntryPoints: []*calendar.EntryPoint{
					{EntryPointType: "phone", Uri: "tel:+1-555"},
					{EntryPointType: "video", Uri: "https://meet.google.com/abc-defg-hij"},
				}},
				Start: &calendar.EventDateTime{DateTime: "2024-01-15T12:00:00Z"},
			},
			check: func(t *testing.T, raw model.RawEvent) {
				assert.Equal(t, "https://meet.google.com/abc-defg-hij", raw.URL)
				// A missing end collapses to the start.
				assert.Equal(t, raw.Start, raw.End)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := toRawEvent("cal", tt.event)
			require.NoError(t, err)
			tt.check(t, raw)
		})
	}
}

func TestToRawEvent_InvalidTime(t *testing.T) {
	_, err := toRawEvent("cal", &calendar.Event{
		Id:    "bad",
		Start: &calendar.EventDateTime{DateTime: "yesterday"},
	})
	assert.ErrorContains(t, err, "event bad: invalid start")
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return c
}

func writeJSON(t *testing.T, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(v))
}

func TestClient_ListCalendars(t *testing.T) {
	var pages int
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.True(t, strings.HasSuffix(r.URL.Path, "/calendarList"), r.URL.Path)
		pages++
		if r.URL.Query().Get("pageToken") == "" {
			writeJSON(t, w, map[string]any{
				"items": []map[string]any{
					{"id": "primary@example.com", "summary": "Me", "backgroundColor": "#ff0000"},
					{"id": "hidden", "summary": "Hidden", "hidden": true},
				},
				"nextPageToken": "p2",
			})
			return
		}
		writeJSON(t, w, map[string]any{
			"items": []map[string]any{{"id": "holidays", "summary": "Holidays"}},
		})
	})

	cals, err := c.ListCalendars(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, pages)
	require.Len(t, cals, 2)
	assert.Equal(t, "Me", cals[0].Name)
	assert.Equal(t, "#ff0000", cals[0].Color)
	assert.Equal(t, "holidays", cals[1].ID)
}

func TestClient_ListEvents(t *testing.T) {
	rng := model.TimeRange{
		Start: time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC),
	}
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.True(t, strings.HasSuffix(r.URL.Path, "/events"), r.URL.Path)
		assert.Equal(t, "true", q.Get("singleEvents"))
		assert.Equal(t, "startTime", q.Get("orderBy"))
		assert.Equal(t, "2024-01-15T00:00:00Z", q.Get("timeMin"))
		assert.Equal(t, "2024-01-16T00:00:00Z", q.Get("timeMax"))
		writeJSON(t, w, map[string]any{
			"items": []map[string]any{
				{
					"id":      "e1",
					"summary": "Review",
					"start":   map[string]string{"dateTime": "2024-01-15T10:00:00Z"},
					"end":     map[string]string{"dateTime": "2024-01-15T11:00:00Z"},
				},
				{
					"id":     "e2",
					"status": "cancelled",
					"start":  map[string]string{"dateTime": "2024-01-15T12:00:00Z"},
					"end":    map[string]string{"dateTime": "2024-01-15T13:00:00Z"},
				},
			},
		})
	})

	events, err := c.ListEvents(context.Background(), "primary", rng)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Review", events[0].Title)
	assert.Equal(t, "primary", events[0].CalendarRef)
}

func TestClient_ListEventsSkipsUnparseable(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(t, w, map[string]any{
			"items": []map[string]any{
				{
					"id":    "broken",
					"start": map[string]string{"dateTime": "not a time"},
					"end":   map[string]string{"dateTime": "2024-01-15T09:00:00Z"},
				},
				{
					"id":      "ok",
					"summary": "Review",
					"start":   map[string]string{"dateTime": "2024-01-15T10:00:00Z"},
					"end":     map[string]string{"dateTime": "2024-01-15T11:00:00Z"},
				},
			},
		})
	})
	var logs bytes.Buffer
	c.WithLogger(slog.New(slog.NewTextHandler(&logs, nil)))

	events, err := c.ListEvents(context.Background(), "primary", model.TimeRange{})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "ok", events[0].ID)
	assert.Contains(t, logs.String(), "skipping event")
	assert.Contains(t, logs.String(), "record_id=broken")
}

func TestClient_ListEventsError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"code":403,"message":"forbidden"}}`, http.StatusForbidden)
	})

	_, err := c.ListEvents(context.Background(), "primary", model.TimeRange{})
	assert.ErrorContains(t, err, "failed to list events of primary")
}
