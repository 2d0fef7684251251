package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/teemow/agenda/internal/config"
	"github.com/teemow/agenda/internal/dispatch"
	"github.com/teemow/agenda/internal/ics"
	"github.com/teemow/agenda/internal/instrumentation"
	"github.com/teemow/agenda/internal/resources"
	"github.com/teemow/agenda/internal/server"
	"github.com/teemow/agenda/internal/tools/calendar_tools"
)

const (
	transportStdio = "stdio"
	transportHTTP  = "streamable-http"
)

func newServeCmd(load appLoader) *cobra.Command {
	var transport string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the MCP server",
		Long: `Start the MCP (Model Context Protocol) server. Every query operation is
exposed as a read-only tool, next to a daily agenda prompt and the calendar
list and output schema as resources.

Supports multiple transport types:
  - stdio: Standard input/output (default)
  - streamable-http: Streamable HTTP at /mcp, with /healthz and /readyz

The HTTP transport has no authentication; keep it on a loopback address.

Metrics are served at /metrics on --metrics-addr when set and the
Prometheus exporter is active (AGENDA_METRICS_EXPORTER=prometheus, the default).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, load, transport)
		},
	}

	cmd.Flags().StringVar(&transport, "transport", transportStdio, "Transport type: stdio or streamable-http")
	cmd.Flags().String(flagHTTPAddr, "", "HTTP listen address (default "+config.DefaultHTTPAddr+")")
	cmd.Flags().String(flagMetricsAddr, "", "Metrics listen address, e.g. 127.0.0.1:9090 (default: disabled)")
	return cmd
}

func runServe(cmd *cobra.Command, load appLoader, transport string) error {
	if transport != transportStdio && transport != transportHTTP {
		return fmt.Errorf("unsupported transport type: %s (supported: stdio, streamable-http)", transport)
	}

	base := cmd.Context()
	if base == nil {
		base = context.Background()
	}
	ctx, stop := signal.NotifyContext(base, os.Interrupt, syscall.SIGTERM)
	defer stop()

	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version
	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return fmt.Errorf("failed to initialize instrumentation: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := provider.Shutdown(shutdownCtx); err != nil {
			slog.Warn("instrumentation shutdown failed", slog.String("error", err.Error()))
		}
	}()
	metrics := provider.Metrics()

	a, err := load(cmd, metrics)
	if err != nil {
		return err
	}
	logger := a.logger.With(slog.String("transport", transport))

	if transport != transportStdio && a.cfg.Server.MetricsAddr != "" {
		metricsServer, err := startMetricsServer(a.cfg.Server.MetricsAddr, provider, instrConfig, logger)
		if err != nil {
			return err
		}
		if metricsServer != nil {
			defer shutdownWithTimeout(logger, "metrics server", metricsServer.Shutdown)
		}
	}

	sc := server.NewServerContext(ctx, a.dispatcher,
		server.WithMetrics(metrics),
		server.WithAuditLogger(instrumentation.NewAuditLoggerWithConfig(logger, instrConfig.AuditLogging)),
		server.WithLogger(logger),
	)
	defer func() {
		_ = sc.Shutdown()
	}()

	mcpSrv := mcpserver.NewMCPServer("agenda", version,
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithResourceCapabilities(false, false), // subscribe, listChanged
		mcpserver.WithPromptCapabilities(false),
	)
	if err := calendar_tools.RegisterCalendarTools(mcpSrv, sc); err != nil {
		return fmt.Errorf("failed to register tools: %w", err)
	}
	resources.RegisterResources(mcpSrv, sc)

	if a.ics != nil {
		refresher, err := ics.NewRefresher(a.ics, a.cfg.Server.RefreshSchedule, metrics, logger)
		if err != nil {
			return err
		}
		refresher.Start()
		defer shutdownWithTimeout(logger, "ics refresher", func(ctx context.Context) error {
			refresher.Stop(ctx)
			return nil
		})
	}

	switch transport {
	case transportStdio:
		return runStdioServer(ctx, mcpSrv, logger)
	default:
		return runStreamableHTTPServer(ctx, mcpSrv, sc, a, metrics, logger)
	}
}

// startMetricsServer serves /metrics when the Prometheus exporter is active.
// It returns nil without error when metrics are disabled.
func startMetricsServer(addr string, provider *instrumentation.Provider, instrConfig instrumentation.Config, logger *slog.Logger) (*server.MetricsServer, error) {
	if !provider.Enabled() || instrConfig.MetricsExporter != instrumentation.ExporterPrometheus {
		logger.Warn("metrics address set but the prometheus exporter is not active", slog.String("addr", addr))
		return nil, nil
	}
	metricsServer, err := server.NewMetricsServer(server.MetricsServerConfig{
		Addr:                    addr,
		InstrumentationProvider: provider,
		Logger:                  logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics server: %w", err)
	}
	go func() {
		if err := metricsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", slog.String("error", err.Error()))
		}
	}()
	return metricsServer, nil
}

func runStdioServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, logger *slog.Logger) error {
	stdio := mcpserver.NewStdioServer(mcpSrv)
	stdio.SetErrorLogger(slog.NewLogLogger(logger.Handler(), slog.LevelError))

	logger.Debug("serving MCP on stdio")
	err := stdio.Listen(ctx, os.Stdin, os.Stdout)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("server stopped with error: %w", err)
	}
	return nil
}

func runStreamableHTTPServer(ctx context.Context, mcpSrv *mcpserver.MCPServer, sc *server.ServerContext, a *app, metrics *instrumentation.Metrics, logger *slog.Logger) error {
	health := server.NewHealthChecker(sc)
	health.AddCheck("calendars", func(ctx context.Context) error {
		_, err := a.dispatcher.Run(ctx, dispatch.OpListCalendars, map[string]any{})
		return err
	})

	httpServer := server.NewHTTPServer(mcpSrv, health, metrics, logger)
	addr := a.cfg.Server.HTTPAddr

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.Start(addr)
	}()

	out := os.Stderr
	fmt.Fprintln(out, headingStyle.Render("agenda MCP server listening on "+addr))
	fmt.Fprintln(out, mutedStyle.Render("  MCP endpoint:     "+server.MCPEndpoint))
	fmt.Fprintln(out, mutedStyle.Render("  Health endpoints: /healthz, /readyz"))
	if a.cfg.Server.MetricsAddr != "" {
		fmt.Fprintln(out, mutedStyle.Render("  Metrics endpoint: "+a.cfg.Server.MetricsAddr+"/metrics"))
	}

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server stopped with error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down")
		shutdownWithTimeout(logger, "http server", httpServer.Shutdown)
		return nil
	}
}

func shutdownWithTimeout(logger *slog.Logger, what string, shutdown func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Error("shutdown failed", slog.String("component", what), slog.String("error", err.Error()))
	}
}
