package dispatch

import (
	"fmt"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"

	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/render"
)

// Args is implemented by the typed argument struct of every operation.
type Args interface {
	// Validate checks the arguments without consulting any collaborator.
	Validate() error

	common() *Common
}

// Common holds the arguments every operation accepts.
type Common struct {
	Timezone string `mapstructure:"timezone"`
	Encoding string `mapstructure:"encoding"`

	// JSON is shorthand for encoding=json.
	JSON bool `mapstructure:"json"`
}

func (c *Common) common() *Common { return c }

// encoding returns the requested encoding.
func (c *Common) encoding() (render.Encoding, error) {
	if c.JSON && c.Encoding == "" {
		return render.EncodingJSON, nil
	}
	return render.ParseEncoding(c.Encoding)
}

// Validate checks the encoding.
func (c *Common) Validate() error {
	_, err := c.encoding()
	return err
}

// Window is a date range argument pair.
type Window struct {
	From string `mapstructure:"from"`
	To   string `mapstructure:"to"`
}

type ListCalendarsArgs struct {
	Common `mapstructure:",squash"`
}

type EventsArgs struct {
	Common     `mapstructure:",squash"`
	Window     `mapstructure:",squash"`
	Calendars  []string `mapstructure:"calendars"`
	AllDayOnly bool     `mapstructure:"allDayOnly"`
	BusyOnly   bool     `mapstructure:"busyOnly"`
	Query      string   `mapstructure:"query"`
}

type RemindersArgs struct {
	Common           `mapstructure:",squash"`
	Window           `mapstructure:",squash"`
	Calendars        []string `mapstructure:"calendars"`
	IncludeCompleted bool     `mapstructure:"includeCompleted"`
}

type AgendaArgs struct {
	Common           `mapstructure:",squash"`
	Window           `mapstructure:",squash"`
	Calendars        []string `mapstructure:"calendars"`
	AllDayOnly       bool     `mapstructure:"allDayOnly"`
	BusyOnly         bool     `mapstructure:"busyOnly"`
	IncludeCompleted bool     `mapstructure:"includeCompleted"`
	Query            string   `mapstructure:"query"`
}

type SearchArgs struct {
	Common           `mapstructure:",squash"`
	Window           `mapstructure:",squash"`
	Term             string   `mapstructure:"term"`
	Calendars        []string `mapstructure:"calendars"`
	IncludeCompleted bool     `mapstructure:"includeCompleted"`
}

// Validate requires a search term.
func (a *SearchArgs) Validate() error {
	if strings.TrimSpace(a.Term) == "" {
		return model.InvalidArgument("term", "search term cannot be empty")
	}
	return a.Common.Validate()
}

type SummaryArgs struct {
	Common    `mapstructure:",squash"`
	Date      string   `mapstructure:"date"`
	Calendars []string `mapstructure:"calendars"`

	// MinSlot overrides the configured minimum free slot when set.
	MinSlot *time.Duration `mapstructure:"minSlot"`
}

// Validate rejects a negative minimum slot.
func (a *SummaryArgs) Validate() error {
	if a.MinSlot != nil && *a.MinSlot < 0 {
		return model.InvalidArgument("minSlot", "must not be negative")
	}
	return a.Common.Validate()
}

type FreeSlotsArgs struct {
	Common    `mapstructure:",squash"`
	Window    `mapstructure:",squash"`
	Calendars []string       `mapstructure:"calendars"`
	MinSlot   *time.Duration `mapstructure:"minSlot"`
}

// Validate rejects a negative minimum slot.
func (a *FreeSlotsArgs) Validate() error {
	if a.MinSlot != nil && *a.MinSlot < 0 {
		return model.InvalidArgument("minSlot", "must not be negative")
	}
	return a.Common.Validate()
}

type CurrentTimeArgs struct {
	Common `mapstructure:",squash"`
}

type ConvertTimeArgs struct {
	Common       `mapstructure:",squash"`
	Time         string `mapstructure:"time"`
	FromTimezone string `mapstructure:"fromTimezone"`
	ToTimezone   string `mapstructure:"toTimezone"`
}

// Validate requires the time and the target zone.
func (a *ConvertTimeArgs) Validate() error {
	if strings.TrimSpace(a.Time) == "" {
		return model.InvalidArgument("time", "time is required")
	}
	if strings.TrimSpace(a.ToTimezone) == "" {
		return model.InvalidArgument("toTimezone", "target time zone is required")
	}
	return a.Common.Validate()
}

type ListTimezonesArgs struct {
	Common `mapstructure:",squash"`
	Region string `mapstructure:"region"`
}

// aliases maps the snake_case spellings some clients send to the canonical
// argument names.
var aliases = map[string]string{
	"from_date":         "from",
	"to_date":           "to",
	"search_term":       "term",
	"all_day_only":      "allDayOnly",
	"busy_only":         "busyOnly",
	"include_completed": "includeCompleted",
	"min_slot":          "minSlot",
	"from_timezone":     "fromTimezone",
	"to_timezone":       "toTimezone",
	"format_json":       "json",
}

// decodeArgs decodes an argument bag into args. Input is weakly typed: a
// comma-separated string fills a list, "true" fills a bool, and a bare number
// for a duration is read as minutes. Unknown keys are rejected.
func decodeArgs(bag map[string]any, args Args) error {
	in := make(map[string]any, len(bag))
	for k, v := range bag {
		if canonical, ok := aliases[k]; ok {
			k = canonical
		}
		if v == nil {
			continue
		}
		in[k] = v
	}

	var md mapstructure.Metadata
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			durationHook,
			mapstructure.StringToSliceHookFunc(","),
		),
		WeaklyTypedInput: true,
		Metadata:         &md,
		Result:           args,
	})
	if err != nil {
		return fmt.Errorf("creating argument decoder: %w", err)
	}
	if err := dec.Decode(in); err != nil {
		return model.InvalidArgument("arguments", "%v", err)
	}
	if len(md.Unused) > 0 {
		sort.Strings(md.Unused)
		return model.InvalidArgument(md.Unused[0], "unknown argument")
	}
	return nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// durationHook reads durations as Go duration strings ("1h30m") or as a
// number of minutes.
func durationHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != durationType {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return time.Duration(0), nil
		}
		if n, err := strconv.ParseFloat(v, 64); err == nil {
			return minutes(n), nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, fmt.Errorf("invalid duration %q", v)
		}
		return d, nil
	case float64:
		return minutes(v), nil
	case float32:
		return minutes(float64(v)), nil
	case int:
		return minutes(float64(v)), nil
	case int64:
		return minutes(float64(v)), nil
	case time.Duration:
		return v, nil
	}
	return data, nil
}

func minutes(n float64) time.Duration {
	return time.Duration(n * float64(time.Minute))
}

// trimNames drops blanks and surrounding whitespace from calendar names.
func trimNames(names []string) []string {
	var out []string
	for _, n := range names {
		if n = strings.TrimSpace(n); n != "" {
			out = append(out, n)
		}
	}
	return out
}
