package dispatch

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/source"
)

func TestParseDate(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	// Monday 2024-01-15 23:30 in Berlin, still Monday there.
	ref := time.Date(2024, 1, 15, 22, 30, 0, 0, time.UTC)

	tests := []struct {
		in       string
		want     time.Time
		dateOnly bool
	}{
		{"today", time.Date(2024, 1, 15, 0, 0, 0, 0, berlin), true},
		{"Tomorrow", time.Date(2024, 1, 16, 0, 0, 0, 0, berlin), true},
		{"yesterday", time.Date(2024, 1, 14, 0, 0, 0, 0, berlin), true},
		{"monday", time.Date(2024, 1, 15, 0, 0, 0, 0, berlin), true},
		{"sun", time.Date(2024, 1, 21, 0, 0, 0, 0, berlin), true},
		{"2024-02-29", time.Date(2024, 2, 29, 0, 0, 0, 0, berlin), true},
		{"2024-01-15T08:00:00-05:00", time.Date(2024, 1, 15, 13, 0, 0, 0, time.UTC), false},
	}
	for _, tt := range tests {
		got, err := parseDate("from", tt.in, ref, berlin)
		require.NoError(t, err, tt.in)
		assert.True(t, tt.want.Equal(got.t), "%s: got %s want %s", tt.in, got.t, tt.want)
		assert.Equal(t, tt.dateOnly, got.dateOnly, tt.in)
	}

	_, err = parseDate("from", "2024-02-30", ref, berlin)
	assert.ErrorIs(t, err, &model.Error{Kind: model.KindInvalidArgument, Field: "from"})
}

func TestParseRange(t *testing.T) {
	berlin, err := time.LoadLocation("Europe/Berlin")
	require.NoError(t, err)
	ref := time.Date(2024, 3, 30, 12, 0, 0, 0, time.UTC)

	// Default is the current local day.
	rng, err := parseRange("", "", ref, berlin)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 29, 23, 0, 0, 0, time.UTC), rng.Start)
	assert.Equal(t, time.Date(2024, 3, 30, 23, 0, 0, 0, time.UTC), rng.End)

	// A date-only end covers its whole day, here a 23 hour DST day.
	rng, err = parseRange("2024-03-31", "2024-03-31", ref, berlin)
	require.NoError(t, err)
	assert.Equal(t, 23*time.Hour, rng.End.Sub(rng.Start))

	// An empty to with a timestamp from ends at that day's midnight.
	rng, err = parseRange("2024-03-30T15:00:00+01:00", "", ref, berlin)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 30, 14, 0, 0, 0, time.UTC), rng.Start)
	assert.Equal(t, time.Date(2024, 3, 30, 23, 0, 0, 0, time.UTC), rng.End)

	// Equal bounds give an empty range, not an error.
	rng, err = parseRange("2024-03-30T15:00:00Z", "2024-03-30T15:00:00Z", ref, berlin)
	require.NoError(t, err)
	assert.True(t, rng.Empty())
}

func TestDecodeArgs(t *testing.T) {
	var a FreeSlotsArgs
	err := decodeArgs(map[string]any{
		"from_date": "today",
		"calendars": "Work, Home",
		"min_slot":  "45",
		"json":      "true",
		"timezone":  nil,
	}, &a)
	require.NoError(t, err)
	assert.Equal(t, "today", a.From)
	assert.Equal(t, []string{"Work", " Home"}, a.Calendars)
	assert.Equal(t, []string{"Work", "Home"}, trimNames(a.Calendars))
	require.NotNil(t, a.MinSlot)
	assert.Equal(t, 45*time.Minute, *a.MinSlot)
	assert.True(t, a.JSON)

	enc, err := a.encoding()
	require.NoError(t, err)
	assert.EqualValues(t, "json", enc)
}

func TestResolveDay(t *testing.T) {
	d := newDispatcher(&source.Memory{})

	day, err := d.ResolveDay("tomorrow", "")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 1, 16, 0, 0, 0, 0, time.UTC), day)

	day, err = d.ResolveDay("", "Asia/Tokyo")
	require.NoError(t, err)
	assert.Equal(t, "2024-01-15T00:00:00+09:00", day.Format(time.RFC3339))

	day, err = d.ResolveDay("friday", "")
	require.NoError(t, err)
	assert.Equal(t, 19, day.Day())

	_, err = d.ResolveDay("someday", "")
	assert.True(t, errors.Is(err, model.ErrInvalidArgument))
	_, err = d.ResolveDay("today", "Mars/Olympus")
	assert.True(t, errors.Is(err, model.ErrUnknownTimeZone))
}
