package render

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"text/template"
	"time"

	"github.com/teemow/agenda/internal/model"
)

const (
	noRecordsMessage   = "No events or reminders found for the specified criteria."
	noCalendarsMessage = "No calendars found."
	noSlotsMessage     = "No free slots found."
)

var funcs = template.FuncMap{
	"duration": formatDuration,
	"hours":    formatHours,
	"indent":   indent,
}

const eventsTmpl = `
{{- define "events" -}}
{{- range . }}
#### {{ .Heading }}
{{ range .Events }}
- **{{ .Title }}** ({{ .When }}{{ .Where }}) _{{ .Calendar }}_{{ if .Free }} [free]{{ end }}
{{- if .Notes }}
{{ indent .Notes }}
{{- end }}
{{- end }}
{{ end }}
{{- end -}}

{{- define "reminders" -}}
{{- range . }}
#### {{ .Name }}
{{ range .Reminders }}
- {{ if .Completed }}[x]{{ else }}[ ]{{ end }} **{{ .Title }}**{{ if .Due }} (Due: {{ .Due }}){{ end }}{{ if .Priority }} (Priority: {{ .Priority }}){{ end }}
{{- if .Notes }}
{{ indent .Notes }}
{{- end }}
{{- end }}
{{ end }}
{{- end -}}

{{- define "slots" -}}
{{- range . }}
- {{ .Day }} {{ .Start }} - {{ .End }} ({{ duration .Length }})
{{- end }}
{{- end -}}
`

var templates = template.Must(template.New("render").Funcs(funcs).Parse(eventsTmpl + `
{{- define "agenda" -}}
{{- if or .Days .Lists -}}
{{- if .Days }}
### Events
{{ template "events" .Days }}
{{- end }}
{{- if .Lists }}
### Reminders
{{ template "reminders" .Lists }}
{{- end }}
{{- else -}}
` + noRecordsMessage + `
{{- end -}}
{{- end -}}

{{- define "calendars" -}}
{{- if or .Events .Reminders -}}
{{- if .Events }}
### Event Calendars
{{ range .Events }}
- {{ .Name }}{{ if .Color }} ({{ .Color }}){{ end }}
{{- end }}
{{ end }}
{{- if .Reminders }}
### Reminder Calendars
{{ range .Reminders }}
- {{ .Name }}{{ if .Color }} ({{ .Color }}){{ end }}
{{- end }}
{{ end }}
{{- else -}}
` + noCalendarsMessage + `
{{- end -}}
{{- end -}}

{{- define "summary" -}}
## Daily Summary for {{ .Heading }} ({{ .Zone }})

- Events: {{ .EventCount }}
- Reminders: {{ .Pending }} pending, {{ .Completed }} completed
- Busy: {{ duration .Busy }}

### Free Slots ({{ .Window }})
{{ if .Slots }}{{ template "slots" .Slots }}{{ else }}
` + noSlotsMessage + `{{ end }}
{{ if .Days }}
### Events
{{ template "events" .Days }}
{{- end }}
{{- if .Lists }}
### Reminders
{{ template "reminders" .Lists }}
{{- end }}
{{- end -}}

{{- define "free_slots" -}}
### Free Slots
_{{ .Window }}{{ if .MinSlot }}, at least {{ duration .MinSlot }}{{ end }}_
{{ if .Slots }}{{ template "slots" .Slots }}{{ else }}
` + noSlotsMessage + `{{ end }}
{{- end -}}

{{- define "current_time" -}}
### Current Time

- Date: {{ .Weekday }}, {{ .ISODate }}
- Time: {{ .ISOTime }}
- Timezone: {{ .Zone }} (UTC{{ .UTCOffset }}, {{ hours .UTCOffsetHours }})
- ISO 8601: {{ .ISODatetime }}
- Unix: {{ .UnixTimestamp }}
{{- end -}}

{{- define "time_conversion" -}}
### Time Conversion

- From: {{ .Original.Datetime }} {{ .Original.Timezone }} ({{ .Original.ISODatetime }})
- To: {{ .Converted.Datetime }} {{ .Converted.Timezone }} ({{ .Converted.ISODatetime }})
- Difference: {{ hours .OffsetHours }}
{{- end -}}

{{- define "timezones" -}}
### Timezones ({{ .Total }})
{{ range .Regions }}
#### {{ .Region }}
{{ range .Zones }}
- {{ .Name }} (UTC{{ .UTCOffset }}, {{ .CurrentTime }})
{{- end }}
{{ end }}
{{- end -}}
`))

type eventLine struct {
	Title    string
	When     string
	Where    string
	Calendar string
	Free     bool
	Notes    string
}

type dayGroup struct {
	Heading string
	Events  []eventLine
}

type reminderLine struct {
	Title     string
	Due       string
	Completed bool
	Priority  int
	Notes     string
}

type listGroup struct {
	Name      string
	Reminders []reminderLine
}

type agendaView struct {
	Days  []dayGroup
	Lists []listGroup
}

type calendarsView struct {
	Events    []model.Calendar
	Reminders []model.Calendar
}

type slotLine struct {
	Day    string
	Start  string
	End    string
	Length time.Duration
}

type summaryView struct {
	Heading    string
	Zone       string
	EventCount int
	Pending    int
	Completed  int
	Busy       time.Duration
	Window     string
	Slots      []slotLine
	Days       []dayGroup
	Lists      []listGroup
}

type freeSlotsView struct {
	Window  string
	MinSlot time.Duration
	Slots   []slotLine
}

var blankLines = regexp.MustCompile(`\n{3,}`)

func renderText(r Result, zone *time.Location) (string, error) {
	name, data := textView(r, zone)

	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", r.Kind, err)
	}

	out := buf.String()
	lines := strings.Split(out, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	out = blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(out) + "\n", nil
}

func textView(r Result, zone *time.Location) (string, any) {
	switch r.Kind {
	case KindCalendars:
		var v calendarsView
		for _, c := range sortedCalendars(r.Calendars) {
			if c.Type == model.CalendarTypeReminder {
				v.Reminders = append(v.Reminders, c)
			} else {
				v.Events = append(v.Events, c)
			}
		}
		return "calendars", v
	case KindEvents, KindReminders, KindAgenda:
		return "agenda", agendaView{Days: groupByDay(r.Events, zone), Lists: groupByList(r.Reminders, zone)}
	case KindSummary:
		s := r.Summary
		if s.Zone != nil {
			zone = s.Zone
		}
		return "summary", summaryView{
			Heading:    s.Day.Start.In(zone).Format(dayLayout),
			Zone:       zone.String(),
			EventCount: s.EventCount,
			Pending:    s.PendingReminders,
			Completed:  s.CompletedReminders,
			Busy:       s.BusyTime,
			Window:     formatWindow(s.FreeWindow, zone),
			Slots:      slotLines(s.FreeSlots, zone),
			Days:       groupByDay(s.Events, zone),
			Lists:      groupByList(s.Reminders, zone),
		}
	case KindFreeSlots:
		v := r.FreeSlots
		return "free_slots", freeSlotsView{
			Window:  formatWindow(v.Range, zone) + " " + zone.String(),
			MinSlot: v.MinSlot,
			Slots:   slotLines(v.Slots, zone),
		}
	case KindCurrentTime:
		return "current_time", *r.Time
	case KindTimeConversion:
		return "time_conversion", *r.Conversion
	case KindTimezones:
		return "timezones", timezonesPayload(*r.Zones)
	}
	return string(r.Kind), nil
}

const dayLayout = "Monday, 2006-01-02"

// groupByDay buckets events by the local calendar day of their start,
// keeping the input order inside and across buckets.
func groupByDay(events []model.Event, zone *time.Location) []dayGroup {
	var groups []dayGroup
	index := map[string]int{}
	for _, e := range events {
		start := e.Start.In(zone)
		key := start.Format(time.DateOnly)
		i, ok := index[key]
		if !ok {
			i = len(groups)
			index[key] = i
			groups = append(groups, dayGroup{Heading: start.Format(dayLayout)})
		}
		groups[i].Events = append(groups[i].Events, eventLine{
			Title:    titleOr(e.Title),
			When:     eventWhen(e, zone),
			Where:    eventWhere(e),
			Calendar: e.Calendar,
			Free:     !e.Busy,
			Notes:    strings.TrimSpace(e.Notes),
		})
	}
	return groups
}

// groupByList buckets reminders by list in order of first appearance.
func groupByList(reminders []model.Reminder, zone *time.Location) []listGroup {
	var groups []listGroup
	index := map[string]int{}
	for _, r := range reminders {
		i, ok := index[r.Calendar]
		if !ok {
			i = len(groups)
			index[r.Calendar] = i
			groups = append(groups, listGroup{Name: r.Calendar})
		}
		line := reminderLine{
			Title:     titleOr(r.Title),
			Completed: r.Completed,
			Priority:  r.Priority,
			Notes:     strings.TrimSpace(r.Notes),
		}
		if r.Due != nil {
			line.Due = dueText(r.Due.In(zone))
		}
		groups[i].Reminders = append(groups[i].Reminders, line)
	}
	return groups
}

// dueText keeps the time of day unless the due value sits at midnight,
// which is how date-only dues are anchored.
func dueText(due time.Time) string {
	if due.Hour() == 0 && due.Minute() == 0 {
		return due.Format(time.DateOnly)
	}
	return due.Format("2006-01-02 15:04")
}

func eventWhen(e model.Event, zone *time.Location) string {
	if e.AllDay {
		// End is exclusive: a one-day event ends at the next midnight.
		last := e.End.In(zone).Add(-time.Nanosecond)
		if e.End.After(e.Start) && last.Format(time.DateOnly) != e.Start.In(zone).Format(time.DateOnly) {
			return "All Day through " + last.Format("Mon 2006-01-02")
		}
		return "All Day"
	}
	start, end := e.Start.In(zone), e.End.In(zone)
	if start.Format(time.DateOnly) != end.Format(time.DateOnly) {
		return start.Format("15:04") + " - " + end.Format("2006-01-02 15:04")
	}
	return start.Format("15:04") + " - " + end.Format("15:04")
}

func eventWhere(e model.Event) string {
	switch {
	case e.ConferenceURL != "" && (e.Location == "" || e.Location == e.ConferenceURL):
		return " ([Join](" + e.ConferenceURL + "))"
	case e.ConferenceURL != "":
		return " (" + e.Location + " / [Join](" + e.ConferenceURL + "))"
	case e.Location != "":
		return " (" + e.Location + ")"
	}
	return ""
}

func slotLines(slots []model.FreeSlot, zone *time.Location) []slotLine {
	out := make([]slotLine, 0, len(slots))
	for _, s := range slots {
		start, end := s.Start.In(zone), s.End.In(zone)
		endLayout := "15:04"
		if start.Format(time.DateOnly) != end.Format(time.DateOnly) {
			endLayout = "2006-01-02 15:04"
		}
		out = append(out, slotLine{
			Day:    start.Format("Mon 2006-01-02"),
			Start:  start.Format("15:04"),
			End:    end.Format(endLayout),
			Length: s.Duration(),
		})
	}
	return out
}

func formatWindow(rng model.TimeRange, zone *time.Location) string {
	const layout = "2006-01-02 15:04"
	return rng.Start.In(zone).Format(layout) + " - " + rng.End.In(zone).Format(layout)
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`,
	"*", `\*`,
	"_", `\_`,
	"`", "\\`",
	"[", `\[`,
	"]", `\]`,
)

// titleOr returns the title escaped for inline Markdown, or a placeholder.
func titleOr(title string) string {
	if strings.TrimSpace(title) == "" {
		return "No Title"
	}
	return markdownEscaper.Replace(title)
}

// indent prefixes every line of s with two spaces.
func indent(s string) string {
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = "  " + strings.TrimRight(l, "\r")
	}
	return strings.Join(lines, "\n")
}

// formatDuration renders d as "1h30m", "45m" or "2h".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Minute)
	h, m := int(d/time.Hour), int((d%time.Hour)/time.Minute)
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh%dm", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dm", m)
	}
}

func formatHours(h float64) string {
	return fmt.Sprintf("%+gh", h)
}
