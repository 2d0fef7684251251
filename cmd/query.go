package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/teemow/agenda/internal/dispatch"
	"github.com/teemow/agenda/internal/render"
)

// flagGroup selects the query flags a command accepts.
type flagGroup uint

const (
	withRange flagGroup = 1 << iota
	withCalendars
	withEventFilters
	withCompleted
	withQuery
	withMinSlot
)

// queryFlags holds the values of the shared query flags.
type queryFlags struct {
	from             string
	to               string
	calendars        string
	query            string
	minSlot          string
	allDayOnly       bool
	busyOnly         bool
	includeCompleted bool
}

func (f *queryFlags) register(fs *pflag.FlagSet, groups flagGroup) {
	if groups&withRange != 0 {
		fs.StringVar(&f.from, "from", "", "Start date: YYYY-MM-DD, today, tomorrow, a weekday name or RFC 3339")
		fs.StringVar(&f.to, "to", "", "End date, inclusive when given as a date")
	}
	if groups&withCalendars != 0 {
		fs.StringVarP(&f.calendars, "calendars", "c", "", "Comma-separated calendar names or IDs")
	}
	if groups&withEventFilters != 0 {
		fs.BoolVar(&f.allDayOnly, "all-day-only", false, "Only include all-day events")
		fs.BoolVar(&f.busyOnly, "busy-only", false, "Only include busy events")
	}
	if groups&withCompleted != 0 {
		fs.BoolVar(&f.includeCompleted, "include-completed", false, "Include completed reminders")
	}
	if groups&withQuery != 0 {
		fs.StringVarP(&f.query, "query", "q", "", "Only include records containing this text")
	}
	if groups&withMinSlot != 0 {
		fs.StringVar(&f.minSlot, "min-slot", "", "Minimum free slot, as minutes or a duration like 1h30m")
	}
}

// bag converts the flags into operation arguments. Unset flags are left out
// so the operation defaults apply.
func (f *queryFlags) bag(groups flagGroup) map[string]any {
	bag := map[string]any{}
	if groups&withRange != 0 {
		setString(bag, "from", f.from)
		setString(bag, "to", f.to)
	}
	if groups&withCalendars != 0 {
		setString(bag, "calendars", strings.Join(parseCommaSeparatedList(f.calendars), ","))
	}
	if groups&withEventFilters != 0 {
		setBool(bag, "allDayOnly", f.allDayOnly)
		setBool(bag, "busyOnly", f.busyOnly)
	}
	if groups&withCompleted != 0 {
		setBool(bag, "includeCompleted", f.includeCompleted)
	}
	if groups&withQuery != 0 {
		setString(bag, "query", f.query)
	}
	if groups&withMinSlot != 0 {
		setString(bag, "minSlot", f.minSlot)
	}
	return bag
}

func setString(bag map[string]any, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		bag[key] = value
	}
}

func setBool(bag map[string]any, key string, value bool) {
	if value {
		bag[key] = true
	}
}

// querySpec describes a command that runs one dispatcher operation.
type querySpec struct {
	use     string
	aliases []string
	short   string
	long    string
	op      string
	groups  flagGroup
	args    cobra.PositionalArgs

	// fixed arguments are applied before the flags.
	fixed map[string]any

	// positional maps command arguments into the bag.
	positional func(args []string, bag map[string]any)
}

var querySpecs = []querySpec{
	{
		use:   "calendars",
		short: "List event calendars and reminder lists",
		op:    dispatch.OpListCalendars,
		args:  cobra.NoArgs,
	},
	{
		use:    "events",
		short:  "Show calendar events",
		long:   "Show calendar events between --from and --to (default: today).",
		op:     dispatch.OpGetEvents,
		groups: withRange | withCalendars | withEventFilters | withQuery,
		args:   cobra.NoArgs,
	},
	{
		use:   "reminders",
		short: "Show reminders",
		long: `Show reminders. Without --from or --to every open reminder is listed,
including those without a due date.`,
		op:     dispatch.OpGetReminders,
		groups: withRange | withCalendars | withCompleted,
		args:   cobra.NoArgs,
	},
	{
		use:     "all",
		aliases: []string{"agenda"},
		short:   "Show events and reminders together",
		op:      dispatch.OpGetAgenda,
		groups:  withRange | withCalendars | withEventFilters | withCompleted | withQuery,
		args:    cobra.NoArgs,
	},
	{
		use:    "today",
		short:  "Show today's events and reminders",
		op:     dispatch.OpGetAgenda,
		groups: withCalendars | withEventFilters | withCompleted,
		args:   cobra.NoArgs,
		fixed:  map[string]any{"from": "today", "to": "today"},
	},
	{
		use:   "search TERM...",
		short: "Search events and reminders by title, notes and location",
		long: `Search events and reminders. Without --from the search covers the
configured window starting today.`,
		op:     dispatch.OpSearch,
		groups: withRange | withCalendars | withCompleted,
		args:   cobra.MinimumNArgs(1),
		positional: func(args []string, bag map[string]any) {
			bag["term"] = strings.Join(args, " ")
		},
	},
	{
		use:    "summary [DATE]",
		short:  "Summarize a day: events, reminders, busy time and free slots",
		op:     dispatch.OpDailySummary,
		groups: withCalendars | withMinSlot,
		args:   cobra.MaximumNArgs(1),
		positional: func(args []string, bag map[string]any) {
			if len(args) == 1 {
				bag["date"] = args[0]
			}
		},
	},
	{
		use:    "free",
		short:  "Find free time between busy events",
		op:     dispatch.OpFreeSlots,
		groups: withRange | withCalendars | withMinSlot,
		args:   cobra.NoArgs,
	},
	{
		use:   "now",
		short: "Show the current time",
		op:    dispatch.OpCurrentTime,
		args:  cobra.NoArgs,
	},
	{
		use:   "convert TIME TO_ZONE [FROM_ZONE]",
		short: "Convert a wall-clock time between time zones",
		long: `Convert a wall-clock time such as "2024-01-15 14:30" from FROM_ZONE
(default: local zone) to TO_ZONE.`,
		op:   dispatch.OpConvertTime,
		args: cobra.RangeArgs(2, 3),
		positional: func(args []string, bag map[string]any) {
			bag["time"] = args[0]
			bag["toTimezone"] = args[1]
			if len(args) == 3 {
				bag["fromTimezone"] = args[2]
			}
		},
	},
	{
		use:   "timezones [REGION]",
		short: "List time zones with their current offsets",
		op:    dispatch.OpListTimezones,
		args:  cobra.MaximumNArgs(1),
		positional: func(args []string, bag map[string]any) {
			if len(args) == 1 {
				bag["region"] = args[0]
			}
		},
	},
}

func newQueryCmds(load appLoader) []*cobra.Command {
	cmds := make([]*cobra.Command, 0, len(querySpecs))
	for _, spec := range querySpecs {
		cmds = append(cmds, newQueryCmd(spec, load))
	}
	return cmds
}

func newQueryCmd(spec querySpec, load appLoader) *cobra.Command {
	var flags queryFlags
	cmd := &cobra.Command{
		Use:     spec.use,
		Aliases: spec.aliases,
		Short:   spec.short,
		Long:    spec.long,
		Args:    spec.args,
		RunE: func(cmd *cobra.Command, args []string) error {
			bag := flags.bag(spec.groups)
			for k, v := range spec.fixed {
				bag[k] = v
			}
			if spec.positional != nil {
				spec.positional(args, bag)
			}
			if asJSON, _ := cmd.Flags().GetBool(flagJSON); asJSON {
				bag["encoding"] = string(render.EncodingJSON)
			}

			a, err := load(cmd, nil)
			if err != nil {
				return err
			}
			ctx, stop := commandContext(cmd)
			defer stop()

			out, err := a.dispatcher.Dispatch(ctx, spec.op, bag)
			if err != nil {
				return err
			}
			return writeOutput(cmd, out)
		},
	}
	flags.register(cmd.Flags(), spec.groups)
	return cmd
}

func writeOutput(cmd *cobra.Command, out string) error {
	if !strings.HasSuffix(out, "\n") {
		out += "\n"
	}
	_, err := fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}

// parseCommaSeparatedList splits a comma-separated string into trimmed,
// non-empty values. It returns nil when nothing is left.
func parseCommaSeparatedList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}
