// Package dispatch maps named operations and their argument bags onto the
// query pipeline: validate, fetch from the calendar source, normalize,
// filter, derive and render. The CLI and the MCP tools both go through
// Dispatcher.Dispatch, so an operation behaves the same on either surface.
//
// A Dispatcher keeps no state between calls.
package dispatch

import (
	"context"
	"log/slog"
	"time"

	"github.com/teemow/agenda/internal/logging"
	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/render"
	"github.com/teemow/agenda/internal/source"
	"github.com/teemow/agenda/internal/timezone"
	"github.com/teemow/agenda/internal/views"
)

// Defaults for derived views.
const (
	DefaultMinSlot      = 30 * time.Minute
	DefaultSearchWindow = 30 * 24 * time.Hour
)

// Dispatcher runs operations against one calendar source.
type Dispatcher struct {
	source   source.CalendarSource
	resolver *timezone.Resolver
	logger   *slog.Logger
	clock    func() time.Time

	summary      views.SummaryOptions
	searchWindow time.Duration
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithResolver sets the time zone resolver. Its local zone is the default
// display zone.
func WithResolver(r *timezone.Resolver) Option {
	return func(d *Dispatcher) {
		d.resolver = r
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClock overrides the clock used for relative dates.
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithSummaryOptions sets the default minimum slot and working hours used by
// the daily summary and free-slot operations.
func WithSummaryOptions(opts views.SummaryOptions) Option {
	return func(d *Dispatcher) {
		d.summary = opts
	}
}

// WithSearchWindow sets how far ahead search looks when no range is given.
func WithSearchWindow(window time.Duration) Option {
	return func(d *Dispatcher) {
		if window > 0 {
			d.searchWindow = window
		}
	}
}

// New creates a Dispatcher over src.
func New(src source.CalendarSource, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		source:       src,
		logger:       slog.Default(),
		clock:        time.Now,
		summary:      views.SummaryOptions{MinSlot: DefaultMinSlot},
		searchWindow: DefaultSearchWindow,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.resolver == nil {
		d.resolver = timezone.NewResolver(timezone.WithClock(d.clock))
	}
	return d
}

// Resolver returns the dispatcher's time zone resolver.
func (d *Dispatcher) Resolver() *timezone.Resolver {
	return d.resolver
}

// Outcome is an operation result before rendering.
type Outcome struct {
	Operation string
	Result    render.Result
	Encoding  render.Encoding

	// Zone is the display zone of the request.
	Zone *time.Location
}

// Render encodes the outcome in its requested encoding.
func (o Outcome) Render() (string, error) {
	return render.Render(o.Result, o.Encoding, o.Zone)
}

// Run decodes and validates bag, then executes the named operation. Argument
// errors are reported before the calendar source is contacted.
func (d *Dispatcher) Run(ctx context.Context, name string, bag map[string]any) (Outcome, error) {
	op, ok := Lookup(name)
	if !ok {
		return Outcome{}, model.InvalidArgument("operation", "unknown operation %q", name)
	}

	args := op.newArgs()
	if err := decodeArgs(bag, args); err != nil {
		return Outcome{}, err
	}
	if err := args.Validate(); err != nil {
		return Outcome{}, err
	}

	c := args.common()
	enc, err := c.encoding()
	if err != nil {
		return Outcome{}, err
	}
	zone, err := d.resolver.Resolve(c.Timezone)
	if err != nil {
		return Outcome{}, err
	}

	req := &request{
		zone:   zone,
		now:    d.clock(),
		logger: logging.WithOperation(d.logger, name),
	}
	result, err := op.run(ctx, d, req, args)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Operation: name, Result: result, Encoding: enc, Zone: zone}, nil
}

// Dispatch runs the named operation and renders its result.
func (d *Dispatcher) Dispatch(ctx context.Context, name string, bag map[string]any) (string, error) {
	out, err := d.Run(ctx, name, bag)
	if err != nil {
		return "", err
	}
	return out.Render()
}

// request carries the per-call settings shared by the operation bodies.
type request struct {
	zone   *time.Location
	now    time.Time
	logger *slog.Logger
}
