package instrumentation

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config configures the telemetry of an agenda process.
type Config struct {
	ServiceName    string
	ServiceVersion string

	// Enabled turns metrics and tracing on. A disabled provider hands out a
	// recorder that drops everything.
	Enabled bool

	// MetricsExporter is prometheus, otlp or stdout.
	MetricsExporter string

	// TracingExporter is otlp, stdout or none.
	TracingExporter string

	// OTLPEndpoint is host:port of the collector, without scheme.
	OTLPEndpoint string
	OTLPInsecure bool

	// TraceSamplingRate is the ratio of root spans kept, 0.0 to 1.0.
	TraceSamplingRate float64

	// DetailedLabels adds the account domain to source and tool metrics.
	DetailedLabels bool

	AuditLogging AuditLoggingConfig

	// Logger receives exporter warnings. Defaults to slog.Default().
	Logger *slog.Logger
}

// AuditLoggingConfig configures the audit trail of MCP tool calls.
type AuditLoggingConfig struct {
	Enabled bool

	// IncludePII logs full account addresses and search terms. Otherwise
	// only the account domain is logged and search terms are left out.
	IncludePII bool
}

// Environment variables read by DefaultConfig. The OTEL_ names follow the
// OpenTelemetry conventions.
const (
	EnvTelemetry          = "AGENDA_TELEMETRY"
	EnvMetricsExporter    = "AGENDA_METRICS_EXPORTER"
	EnvTracingExporter    = "AGENDA_TRACING_EXPORTER"
	EnvDetailedLabels     = "AGENDA_METRICS_DETAILED_LABELS"
	EnvAuditLog           = "AGENDA_AUDIT_LOG"
	EnvAuditIncludePII    = "AGENDA_AUDIT_INCLUDE_PII"
	EnvOTelServiceName    = "OTEL_SERVICE_NAME"
	EnvOTelEndpoint       = "OTEL_EXPORTER_OTLP_ENDPOINT"
	EnvOTelInsecure       = "OTEL_EXPORTER_OTLP_INSECURE"
	EnvOTelSamplingRatio  = "OTEL_TRACES_SAMPLER_ARG"
	defaultServiceName    = "agenda"
	defaultSamplingRatio  = 0.1
	defaultServiceVersion = "unknown"
)

// DefaultConfig reads the configuration from the process environment.
func DefaultConfig() Config {
	return ConfigFromEnv(os.LookupEnv)
}

// ConfigFromEnv builds a Config from lookup. Unparsable values fall back to
// their defaults.
func ConfigFromEnv(lookup func(string) (string, bool)) Config {
	env := envReader(lookup)
	return Config{
		ServiceName:       env.str(EnvOTelServiceName, defaultServiceName),
		ServiceVersion:    defaultServiceVersion,
		Enabled:           env.boolean(EnvTelemetry, true),
		MetricsExporter:   env.str(EnvMetricsExporter, ExporterPrometheus),
		TracingExporter:   env.str(EnvTracingExporter, ExporterNone),
		OTLPEndpoint:      env.str(EnvOTelEndpoint, ""),
		OTLPInsecure:      env.boolean(EnvOTelInsecure, false),
		TraceSamplingRate: env.float(EnvOTelSamplingRatio, defaultSamplingRatio),
		DetailedLabels:    env.boolean(EnvDetailedLabels, false),
		AuditLogging: AuditLoggingConfig{
			Enabled:    env.boolean(EnvAuditLog, true),
			IncludePII: env.boolean(EnvAuditIncludePII, false),
		},
	}
}

var (
	metricsExporters = []string{ExporterPrometheus, ExporterOTLP, ExporterStdout}
	tracingExporters = []string{ExporterOTLP, ExporterStdout, ExporterNone}
)

// Validate reports the first invalid setting. Empty exporters are left to
// NewProvider.
func (c *Config) Validate() error {
	if c.TraceSamplingRate < 0 || c.TraceSamplingRate > 1 {
		return fmt.Errorf("trace sampling rate must be between 0.0 and 1.0, got %g", c.TraceSamplingRate)
	}
	if err := oneOf("metrics", c.MetricsExporter, metricsExporters); err != nil {
		return err
	}
	if err := oneOf("tracing", c.TracingExporter, tracingExporters); err != nil {
		return err
	}
	if c.OTLPEndpoint == "" && (c.MetricsExporter == ExporterOTLP || c.TracingExporter == ExporterOTLP) {
		return fmt.Errorf("OTLP endpoint is required when exporting over OTLP, set %s", EnvOTelEndpoint)
	}
	return nil
}

func oneOf(kind, value string, allowed []string) error {
	if value == "" {
		return nil
	}
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return fmt.Errorf("invalid %s exporter %q, must be one of: %s", kind, value, strings.Join(allowed, ", "))
}

func (c *Config) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

type envReader func(string) (string, bool)

func (e envReader) str(key, def string) string {
	if v, ok := e(key); ok && v != "" {
		return v
	}
	return def
}

func (e envReader) boolean(key string, def bool) bool {
	if v, err := strconv.ParseBool(e.str(key, "")); err == nil {
		return v
	}
	return def
}

func (e envReader) float(key string, def float64) float64 {
	if v, err := strconv.ParseFloat(e.str(key, ""), 64); err == nil {
		return v
	}
	return def
}

// Constants for metric label values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusTimeout = "timeout"

	SourceGoogle = "google"
	SourceICS    = "ics"
	SourceMemory = "memory"
	SourceMulti  = "multi"

	OperationListCalendars  = "list_calendars"
	OperationFetchEvents    = "fetch_events"
	OperationFetchReminders = "fetch_reminders"
	OperationRefresh        = "refresh"

	ExporterPrometheus = "prometheus"
	ExporterOTLP       = "otlp"
	ExporterStdout     = "stdout"
	ExporterNone       = "none"

	// DefaultMetricInterval is the export interval of push exporters.
	DefaultMetricInterval = 10 * time.Second
)
