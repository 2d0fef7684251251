package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/teemow/agenda/internal/config"
	"github.com/teemow/agenda/internal/dispatch"
	"github.com/teemow/agenda/internal/google"
	"github.com/teemow/agenda/internal/ics"
	"github.com/teemow/agenda/internal/instrumentation"
	"github.com/teemow/agenda/internal/logging"
	"github.com/teemow/agenda/internal/source"
	"github.com/teemow/agenda/internal/timezone"
)

// icsSourceName is the source name shared by all configured ICS feeds.
const icsSourceName = "ics"

// app is everything a command needs to answer queries.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	dispatcher *dispatch.Dispatcher

	// ics is nil when no feeds are configured.
	ics *ics.Source
}

// appLoader builds the app for a command. metrics may be nil.
type appLoader func(cmd *cobra.Command, metrics *instrumentation.Metrics) (*app, error)

func loadApp(cmd *cobra.Command, metrics *instrumentation.Metrics) (*app, error) {
	cfg, err := loadSettings(cmd)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(os.Stderr, cfg)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	resolver, err := newResolver(cfg)
	if err != nil {
		return nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	src, icsSrc, err := buildSource(ctx, cfg, resolver, metrics, logger)
	if err != nil {
		return nil, err
	}

	summary, err := cfg.Views.Summary()
	if err != nil {
		return nil, err
	}
	d := dispatch.New(src,
		dispatch.WithResolver(resolver),
		dispatch.WithLogger(logger),
		dispatch.WithSummaryOptions(summary),
		dispatch.WithSearchWindow(cfg.Views.SearchWindow()),
	)
	return &app{cfg: cfg, logger: logger, dispatcher: d, ics: icsSrc}, nil
}

func newResolver(cfg *config.Config) (*timezone.Resolver, error) {
	if cfg.Timezone == "" {
		return timezone.NewResolver(), nil
	}
	loc, err := timezone.NewResolver().Resolve(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	return timezone.NewResolver(timezone.WithLocal(loc)), nil
}

// buildSource combines the configured backends. Each member gets its own
// timeout and metrics so failures name the backend that caused them.
func buildSource(ctx context.Context, cfg *config.Config, resolver *timezone.Resolver, metrics *instrumentation.Metrics, logger *slog.Logger) (source.CalendarSource, *ics.Source, error) {
	wrap := func(s source.CalendarSource) source.CalendarSource {
		return source.Instrument(s,
			source.WithTimeout(cfg.Source.Timeout),
			source.WithMetrics(metrics),
			source.WithLogger(logger),
		)
	}

	var members []source.CalendarSource
	store := google.NewTokenStore("")
	for _, acct := range cfg.Sources.Google {
		conf, err := google.LoadConfig(acct.CredentialsFile)
		if err != nil {
			return nil, nil, fmt.Errorf("google account %s: %w", acct.Account, err)
		}
		provider := google.NewFileTokenProvider(store, conf)
		if !provider.HasTokenForAccount(acct.Account) {
			return nil, nil, fmt.Errorf("google account %s is not authorized, run: agenda auth --account %s", acct.Account, acct.Account)
		}
		src, err := google.NewSourceForAccount(ctx, provider, acct.Account, !acct.DisableTasks)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("google source configured", logging.Account(acct.Account), logging.Source(src.Name()))
		members = append(members, wrap(src))
	}

	var icsSrc *ics.Source
	if len(cfg.Sources.ICS) > 0 {
		feeds := make([]ics.Feed, 0, len(cfg.Sources.ICS))
		for _, f := range cfg.Sources.ICS {
			feeds = append(feeds, ics.Feed{Name: f.Name, Location: f.URL, Color: f.Color})
		}
		var err error
		icsSrc, err = ics.NewSource(icsSourceName, feeds,
			ics.WithResolver(resolver),
			ics.WithLogger(logger),
			ics.WithFetcher(ics.NewFetcher(nil, logger)),
		)
		if err != nil {
			return nil, nil, err
		}
		logger.Debug("ics source configured", logging.Count(len(feeds)))
		members = append(members, wrap(icsSrc))
	}

	if len(members) == 0 {
		logger.Warn("no calendar sources configured", slog.String("hint", "run agenda config init"))
	}
	multi, err := source.NewMulti(members...)
	if err != nil {
		return nil, nil, err
	}
	return multi, icsSrc, nil
}

// commandContext returns the command's context, cancelled on interrupt.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
}
