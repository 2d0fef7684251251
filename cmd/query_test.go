package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agenda/internal/config"
	"github.com/teemow/agenda/internal/dispatch"
	"github.com/teemow/agenda/internal/instrumentation"
	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/source"
	"github.com/teemow/agenda/internal/timezone"
)

// Monday 2024-01-15 08:00 UTC.
var testNow = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

func memoryLoader(t *testing.T) appLoader {
	t.Helper()
	due := time.Date(2024, 1, 16, 12, 0, 0, 0, time.UTC)
	src := &source.Memory{
		Calendars: []model.Calendar{
			{ID: "work", Name: "Work", Type: model.CalendarTypeEvent},
			{ID: "todo", Name: "Todo", Type: model.CalendarTypeReminder},
		},
		Events: []model.RawEvent{
			{ID: "e1", Title: "Standup", Start: testNow.Add(time.Hour), End: testNow.Add(90 * time.Minute), Busy: true, CalendarRef: "work"},
			{ID: "e2", Title: "Offsite", Location: "Lisbon", Start: testNow.AddDate(0, 0, 1), End: testNow.AddDate(0, 0, 1).Add(2 * time.Hour), Busy: true, CalendarRef: "work"},
		},
		Reminders: []model.RawReminder{
			{ID: "r1", Title: "Book flights", Due: &due, CalendarRef: "todo"},
		},
	}
	clock := func() time.Time { return testNow }
	d := dispatch.New(src,
		dispatch.WithClock(clock),
		dispatch.WithResolver(timezone.NewResolver(timezone.WithLocal(time.UTC), timezone.WithClock(clock))),
	)
	a := &app{
		cfg:        config.Default(),
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		dispatcher: d,
	}
	return func(*cobra.Command, *instrumentation.Metrics) (*app, error) {
		return a, nil
	}
}

func execute(t *testing.T, load appLoader, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd(load)
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func decodeEnvelope(t *testing.T, out string) (string, any) {
	t.Helper()
	var envelope struct {
		SchemaVersion string `json:"schemaVersion"`
		Kind          string `json:"kind"`
		Data          any    `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &envelope), out)
	assert.Equal(t, "1", envelope.SchemaVersion)
	return envelope.Kind, envelope.Data
}

func TestQueryCommands_JSON(t *testing.T) {
	load := memoryLoader(t)

	out, err := execute(t, load, "events", "--json")
	require.NoError(t, err)
	kind, data := decodeEnvelope(t, out)
	assert.Equal(t, "events", kind)
	events, ok := data.([]any)
	require.True(t, ok)
	require.Len(t, events, 1)
	assert.Equal(t, "Standup", events[0].(map[string]any)["title"])

	out, err = execute(t, load, "calendars", "--json")
	require.NoError(t, err)
	kind, _ = decodeEnvelope(t, out)
	assert.Equal(t, "calendars", kind)

	out, err = execute(t, load, "convert", "2024-01-15 14:30", "America/New_York", "Europe/Berlin", "--json")
	require.NoError(t, err)
	kind, _ = decodeEnvelope(t, out)
	assert.Equal(t, "time_conversion", kind)
}

func TestQueryCommands_Text(t *testing.T) {
	load := memoryLoader(t)

	tests := []struct {
		name    string
		args    []string
		want    []string
		notWant []string
	}{
		{"events today", []string{"events"}, []string{"Standup"}, []string{"Offsite"}},
		{"events tomorrow", []string{"events", "--from", "tomorrow"}, []string{"Offsite"}, []string{"Standup"}},
		{"today", []string{"today"}, []string{"Standup"}, []string{"Offsite"}},
		{"reminders", []string{"reminders"}, []string{"Book flights"}, nil},
		{"all", []string{"agenda", "--from", "today", "--to", "tomorrow"}, []string{"Standup", "Offsite", "Book flights"}, nil},
		{"search location", []string{"search", "lisbon"}, []string{"Offsite"}, []string{"Standup"}},
		{"calendar filter", []string{"events", "-c", "Work"}, []string{"Standup"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := execute(t, load, tt.args...)
			require.NoError(t, err)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
			for _, w := range tt.notWant {
				assert.NotContains(t, out, w)
			}
		})
	}
}

func TestQueryCommands_Errors(t *testing.T) {
	load := memoryLoader(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown calendar", []string{"events", "-c", "Nope"}, "Nope"},
		{"bad date", []string{"events", "--from", "someday"}, "someday"},
		{"search without term", []string{"search"}, "requires at least 1 arg"},
		{"convert without zone", []string{"convert", "14:30"}, "accepts between 2 and 3 arg"},
		{"unknown zone", []string{"convert", "2024-01-15 14:30", "Mars/Olympus"}, "Mars/Olympus"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, load, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestQueryFlags_Bag(t *testing.T) {
	f := queryFlags{
		from:             "today",
		to:               " ",
		calendars:        " Work, ,Home ",
		allDayOnly:       true,
		includeCompleted: true,
		minSlot:          "45",
	}

	assert.Equal(t, map[string]any{
		"from":             "today",
		"calendars":        "Work,Home",
		"allDayOnly":       true,
		"includeCompleted": true,
		"minSlot":          "45",
	}, f.bag(withRange|withCalendars|withEventFilters|withCompleted|withMinSlot))

	assert.Equal(t, map[string]any{"from": "today"}, f.bag(withRange))
	assert.Empty(t, f.bag(0))
}

func TestSchemaCmd(t *testing.T) {
	out, err := execute(t, nil, "schema")
	require.NoError(t, err)
	assert.Contains(t, out, "schemaVersion")
	assert.True(t, json.Valid([]byte(out)))
}

func TestExportCmd(t *testing.T) {
	out, err := execute(t, memoryLoader(t), "export", "--from", "today", "--to", "tomorrow")
	require.NoError(t, err)
	assert.Contains(t, out, "BEGIN:VCALENDAR")
	assert.Contains(t, out, "SUMMARY:Standup")
	assert.Contains(t, out, "SUMMARY:Offsite")
	assert.NotContains(t, out, "Book flights")
}

func TestParseCommaSeparatedList(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "Work",
			expected: []string{"Work"},
		},
		{
			name:     "multiple values",
			input:    "Work,Family",
			expected: []string{"Work", "Family"},
		},
		{
			name:     "values with spaces around comma",
			input:    "Work, Family",
			expected: []string{"Work", "Family"},
		},
		{
			name:     "trailing comma",
			input:    "Work,Family,",
			expected: []string{"Work", "Family"},
		},
		{
			name:     "multiple consecutive commas",
			input:    "Work,,Family",
			expected: []string{"Work", "Family"},
		},
		{
			name:     "only commas and spaces",
			input:    ",  , , ",
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := parseCommaSeparatedList(tt.input)
			if tt.expected == nil {
				if result != nil {
					t.Errorf("parseCommaSeparatedList(%q) = %v, want nil", tt.input, result)
				}
				return
			}
			assert.Equal(t, tt.expected, result)
		})
	}
}
