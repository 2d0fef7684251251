// Package instrumentation provides OpenTelemetry instrumentation for the
// agenda CLI and MCP server.
//
// # Metrics
//
// Server/HTTP Metrics:
//   - http_requests_total: Counter of HTTP requests by method, path, and status
//   - http_request_duration_seconds: Histogram of HTTP request durations
//
// Calendar Source Metrics:
//   - source_operations_total: Counter of source calls by source, operation, status
//   - source_operation_duration_seconds: Histogram of source call durations
//   - source_records_total: Counter of raw records returned, by source and kind
//   - ics_feed_refresh_total: Counter of scheduled ICS feed refreshes by result
//
// MCP Tool Metrics:
//   - mcp_tool_invocations_total: Counter of MCP tool invocations by tool name and status
//   - mcp_tool_duration_seconds: Histogram of MCP tool execution durations
//
// # Tracing
//
// Spans are created for MCP tool invocations (tool.<name>) and calendar
// source calls (source.<source>.<operation>).
//
// # Configuration
//
// DefaultConfig reads the environment:
//   - AGENDA_TELEMETRY: export metrics and traces (default: true)
//   - AGENDA_METRICS_EXPORTER: prometheus, otlp or stdout (default: prometheus)
//   - AGENDA_TRACING_EXPORTER: otlp, stdout or none (default: none)
//   - AGENDA_METRICS_DETAILED_LABELS: add account domains to metrics
//   - AGENDA_AUDIT_LOG, AGENDA_AUDIT_INCLUDE_PII: audit trail of tool calls
//   - OTEL_EXPORTER_OTLP_ENDPOINT, OTEL_EXPORTER_OTLP_INSECURE: collector address
//   - OTEL_TRACES_SAMPLER_ARG: sampling ratio (default: 0.1)
//   - OTEL_SERVICE_NAME: service name (default: agenda)
//
// # Example Usage
//
//	provider, err := instrumentation.NewProvider(ctx, instrumentation.DefaultConfig())
//	if err != nil {
//		return err
//	}
//	defer provider.Shutdown(ctx)
//
//	recorder := provider.Metrics()
//	recorder.RecordSourceOperation(ctx, instrumentation.SourceGoogle,
//		instrumentation.OperationFetchEvents, instrumentation.StatusSuccess, 12, time.Since(start))
//	recorder.RecordToolInvocation(ctx, "get_events", "success", time.Since(start))
package instrumentation
