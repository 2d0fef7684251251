package ics

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/teemow/agenda/internal/logging"
	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/source"
	"github.com/teemow/agenda/internal/timezone"
)

// DefaultMaxAge is how long a loaded feed is served before it is fetched
// again on demand.
const DefaultMaxAge = 5 * time.Minute

// Source is a CalendarSource over a set of ICS feeds. Every feed is an event
// calendar; a feed holding VTODO components is also a reminder calendar.
type Source struct {
	name     string
	feeds    []Feed
	fetcher  *Fetcher
	resolver *timezone.Resolver
	logger   *slog.Logger
	maxAge   time.Duration
	clock    func() time.Time

	mu     sync.Mutex
	loaded map[string]loadedFeed
}

type loadedFeed struct {
	feed parsedFeed
	at   time.Time
}

// Option configures a Source.
type Option func(*Source)

// WithFetcher sets the feed fetcher.
func WithFetcher(f *Fetcher) Option {
	return func(s *Source) { s.fetcher = f }
}

// WithResolver sets the resolver used for TZID values and floating times.
func WithResolver(r *timezone.Resolver) Option {
	return func(s *Source) { s.resolver = r }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Source) { s.logger = l }
}

// WithMaxAge sets how long loaded feeds are reused. Zero reloads on every
// call.
func WithMaxAge(d time.Duration) Option {
	return func(s *Source) { s.maxAge = d }
}

func WithClock(clock func() time.Time) Option {
	return func(s *Source) { s.clock = clock }
}

// NewSource creates a source named name over feeds. Feed names must be
// unique and non-empty.
func NewSource(name string, feeds []Feed, opts ...Option) (*Source, error) {
	s := &Source{
		name:   name,
		feeds:  feeds,
		logger: slog.Default(),
		maxAge: DefaultMaxAge,
		clock:  time.Now,
		loaded: make(map[string]loadedFeed),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.resolver == nil {
		s.resolver = timezone.NewResolver()
	}
	if s.fetcher == nil {
		s.fetcher = NewFetcher(nil, s.logger)
	}
	s.logger = logging.WithSource(s.logger, name)

	seen := make(map[string]bool, len(feeds))
	for _, f := range feeds {
		if f.Name == "" {
			return nil, fmt.Errorf("feed %q has no name", f.Location)
		}
		if seen[f.Name] {
			return nil, fmt.Errorf("duplicate feed name %q", f.Name)
		}
		seen[f.Name] = true
	}
	return s, nil
}

// Name implements source.CalendarSource.
func (s *Source) Name() string { return s.name }

func (s *Source) eventCalendarID(f Feed) string    { return s.name + "/" + f.Name }
func (s *Source) reminderCalendarID(f Feed) string { return s.name + "/" + f.Name + "/todo" }

// recordID scopes a feed UID to its calendar. Feeds may share UIDs.
func recordID(calendarID, uid string) string { return calendarID + "/" + uid }

// ListCalendars implements source.CalendarSource.
func (s *Source) ListCalendars(ctx context.Context) ([]model.Calendar, error) {
	feeds, err := s.load(ctx, false)
	if err != nil {
		return nil, err
	}
	var out []model.Calendar
	for _, f := range s.feeds {
		out = append(out, model.Calendar{
			ID:     s.eventCalendarID(f),
			Name:   f.Name,
			Color:  f.Color,
			Type:   model.CalendarTypeEvent,
			Source: s.name,
		})
		if len(feeds[f.Name].todos) > 0 {
			out = append(out, model.Calendar{
				ID:     s.reminderCalendarID(f),
				Name:   f.Name,
				Color:  f.Color,
				Type:   model.CalendarTypeReminder,
				Source: s.name,
			})
		}
	}
	return out, nil
}

// FetchEvents implements source.CalendarSource.
func (s *Source) FetchEvents(ctx context.Context, rng model.TimeRange, calendars []model.Calendar) ([]model.RawEvent, error) {
	feeds, err := s.load(ctx, false)
	if err != nil {
		return nil, err
	}
	ids := source.IDs(calendars)
	var out []model.RawEvent
	for _, f := range s.feeds {
		id := s.eventCalendarID(f)
		if ids != nil && !ids[id] {
			continue
		}
		for _, e := range expand(feeds[f.Name].events, rng, id, s.logger.With(logging.Calendar(f.Name))) {
			e.ID = recordID(id, e.ID)
			out = append(out, e)
		}
	}
	return out, nil
}

// FetchReminders implements source.CalendarSource.
func (s *Source) FetchReminders(ctx context.Context, calendars []model.Calendar) ([]model.RawReminder, error) {
	feeds, err := s.load(ctx, false)
	if err != nil {
		return nil, err
	}
	ids := source.IDs(calendars)
	var out []model.RawReminder
	for _, f := range s.feeds {
		id := s.reminderCalendarID(f)
		if ids != nil && !ids[id] {
			continue
		}
		for _, r := range feeds[f.Name].todos {
			r.ID = recordID(id, r.ID)
			r.CalendarRef = id
			out = append(out, r)
		}
	}
	return out, nil
}

// Refresh fetches and parses every feed regardless of age. A feed that fails
// keeps its previous content; the failures are returned joined.
func (s *Source) Refresh(ctx context.Context) error {
	_, err := s.load(ctx, true)
	return err
}

// load returns the parsed feeds, fetching the stale ones concurrently. A
// failing feed with earlier content is served stale and logged; without
// earlier content the failure is returned, unless force is set, in which
// case the failures are reported after all feeds were tried.
func (s *Source) load(ctx context.Context, force bool) (map[string]parsedFeed, error) {
	now := s.clock()

	s.mu.Lock()
	var stale []Feed
	for _, f := range s.feeds {
		lf, ok := s.loaded[f.Name]
		if force || !ok || s.maxAge == 0 || now.Sub(lf.at) >= s.maxAge {
			stale = append(stale, f)
		}
	}
	s.mu.Unlock()

	var (
		errMu sync.Mutex
		errs  []error
	)
	g, gctx := errgroup.WithContext(ctx)
	for _, f := range stale {
		g.Go(func() error {
			pf, err := s.loadFeed(gctx, f)
			if err == nil {
				s.mu.Lock()
				s.loaded[f.Name] = loadedFeed{feed: pf, at: now}
				s.mu.Unlock()
				return nil
			}

			s.mu.Lock()
			_, had := s.loaded[f.Name]
			s.mu.Unlock()
			if had {
				s.logger.Warn("feed refresh failed, serving previous content",
					logging.Calendar(f.Name), logging.Err(err))
			}
			if !had && !force {
				return err
			}
			errMu.Lock()
			errs = append(errs, err)
			errMu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]parsedFeed, len(s.loaded))
	for name, lf := range s.loaded {
		out[name] = lf.feed
	}
	if force {
		return out, errors.Join(errs...)
	}
	return out, nil
}

func (s *Source) loadFeed(ctx context.Context, f Feed) (parsedFeed, error) {
	body, err := s.fetcher.Fetch(ctx, f)
	if err != nil {
		return parsedFeed{}, err
	}
	pf, err := parse(body, s.resolver, s.logger.With(logging.Calendar(f.Name)))
	if err != nil {
		return parsedFeed{}, fmt.Errorf("feed %s: %w", f.Name, err)
	}
	s.logger.Debug("feed loaded", logging.Calendar(f.Name),
		logging.Count(len(pf.events)+len(pf.todos)))
	return pf, nil
}
