package views

import (
	"sort"
	"time"

	"github.com/teemow/agenda/internal/model"
)

// Interval is a half-open busy interval.
type Interval struct {
	Start time.Time
	End   time.Time
}

// MergeBusy returns the busy intervals of events clipped to [start, end),
// merged into a minimal, non-overlapping, ascending set. Two intervals merge
// when one starts at or before the other's end, so adjacent meetings form a
// single block. Free and zero-length events are ignored.
func MergeBusy(events []model.Event, start, end time.Time) []Interval {
	busy := make([]Interval, 0, len(events))
	for _, e := range events {
		if !e.Busy {
			continue
		}
		s, f := e.Start, e.End
		if s.Before(start) {
			s = start
		}
		if f.After(end) {
			f = end
		}
		if !f.After(s) {
			continue
		}
		busy = append(busy, Interval{Start: s, End: f})
	}

	sort.Slice(busy, func(i, j int) bool {
		if !busy[i].Start.Equal(busy[j].Start) {
			return busy[i].Start.Before(busy[j].Start)
		}
		return busy[i].End.Before(busy[j].End)
	})

	merged := make([]Interval, 0, len(busy))
	for _, iv := range busy {
		if n := len(merged); n > 0 && !iv.Start.After(merged[n-1].End) {
			if iv.End.After(merged[n-1].End) {
				merged[n-1].End = iv.End
			}
			continue
		}
		merged = append(merged, iv)
	}
	return merged
}

// FreeSlots computes the gaps between busy events within [start, end) that
// last at least minDuration. The result is ascending and non-overlapping.
func FreeSlots(events []model.Event, start, end time.Time, minDuration time.Duration) []model.FreeSlot {
	if !end.After(start) {
		return []model.FreeSlot{}
	}

	slots := make([]model.FreeSlot, 0)
	cursor := start
	for _, iv := range MergeBusy(events, start, end) {
		slots = appendSlot(slots, cursor, iv.Start, minDuration)
		cursor = iv.End
	}
	return appendSlot(slots, cursor, end, minDuration)
}

func appendSlot(slots []model.FreeSlot, start, end time.Time, minDuration time.Duration) []model.FreeSlot {
	if !end.After(start) || end.Sub(start) < minDuration {
		return slots
	}
	return append(slots, model.FreeSlot{Start: start, End: end})
}
