package instrumentation

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric attribute keys
const (
	attrMethod    = "method"
	attrPath      = "path"
	attrStatus    = "status"
	attrOperation = "operation"
	attrSource    = "source"
	attrKind      = "kind"
	attrResult    = "result"
	attrTool      = "tool"
	attrDomain    = "account_domain"
)

// Metrics records agenda's OpenTelemetry instruments. The zero value and a
// nil *Metrics drop every record.
type Metrics struct {
	httpRequestsTotal   metric.Int64Counter
	httpRequestDuration metric.Float64Histogram

	sourceOperationsTotal   metric.Int64Counter
	sourceOperationDuration metric.Float64Histogram
	sourceRecordsTotal      metric.Int64Counter

	feedRefreshTotal metric.Int64Counter

	toolInvocationsTotal metric.Int64Counter
	toolDuration         metric.Float64Histogram

	detailedLabels bool
}

var (
	latencyBuckets = metric.WithExplicitBucketBoundaries(0.001, 0.01, 0.1, 0.5, 1.0, 2.5, 5.0, 10.0)
	callBuckets    = metric.WithExplicitBucketBoundaries(0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0)
)

// instruments creates counters and histograms on one meter and keeps the
// first error.
type instruments struct {
	meter metric.Meter
	err   error
}

func (in *instruments) counter(name, desc, unit string) metric.Int64Counter {
	if in.err != nil {
		return nil
	}
	c, err := in.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		in.err = fmt.Errorf("creating %s: %w", name, err)
	}
	return c
}

func (in *instruments) seconds(name, desc string, buckets metric.HistogramOption) metric.Float64Histogram {
	if in.err != nil {
		return nil
	}
	h, err := in.meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"), buckets)
	if err != nil {
		in.err = fmt.Errorf("creating %s: %w", name, err)
	}
	return h
}

// NewMetrics creates every agenda instrument on meter.
func NewMetrics(meter metric.Meter, detailedLabels bool) (*Metrics, error) {
	in := &instruments{meter: meter}
	m := &Metrics{
		httpRequestsTotal:   in.counter("http_requests_total", "HTTP requests served", "{request}"),
		httpRequestDuration: in.seconds("http_request_duration_seconds", "HTTP request latency", latencyBuckets),

		sourceOperationsTotal:   in.counter("source_operations_total", "Calls into calendar sources", "{operation}"),
		sourceOperationDuration: in.seconds("source_operation_duration_seconds", "Calendar source call latency", callBuckets),
		sourceRecordsTotal:      in.counter("source_records_total", "Raw records returned by calendar sources", "{record}"),

		feedRefreshTotal: in.counter("ics_feed_refresh_total", "Scheduled ICS feed refreshes", "{refresh}"),

		toolInvocationsTotal: in.counter("mcp_tool_invocations_total", "MCP tool invocations", "{invocation}"),
		toolDuration:         in.seconds("mcp_tool_duration_seconds", "MCP tool latency", callBuckets),

		detailedLabels: detailedLabels,
	}
	if in.err != nil {
		return nil, in.err
	}
	return m, nil
}

// RecordHTTPRequest records an HTTP request with method, path, status code, and duration.
func (m *Metrics) RecordHTTPRequest(ctx context.Context, method, path string, statusCode int, duration time.Duration) {
	if m == nil || m.httpRequestsTotal == nil || m.httpRequestDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrMethod, method),
		attribute.String(attrPath, path),
		attribute.String(attrStatus, strconv.Itoa(statusCode)),
	}

	m.httpRequestsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.httpRequestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

// RecordSourceOperation records one call into a calendar source.
//
// Parameters:
//   - source: source name (google, ics, memory, multi)
//   - operation: list_calendars, fetch_events or fetch_reminders
//   - status: "success", "error" or "timeout"
//   - records: number of records returned, 0 on error
//   - duration: time taken by the call
func (m *Metrics) RecordSourceOperation(ctx context.Context, source, operation, status string, records int, duration time.Duration) {
	if m == nil || m.sourceOperationsTotal == nil || m.sourceOperationDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrSource, source),
		attribute.String(attrOperation, operation),
		attribute.String(attrStatus, status),
	}

	m.sourceOperationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.sourceOperationDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))

	if records > 0 && m.sourceRecordsTotal != nil {
		m.sourceRecordsTotal.Add(ctx, int64(records), metric.WithAttributes(
			attribute.String(attrSource, source),
			attribute.String(attrKind, operationKind(operation)),
		))
	}
}

// RecordFeedRefresh records a scheduled ICS feed refresh.
// Result should be one of: "success", "error"
func (m *Metrics) RecordFeedRefresh(ctx context.Context, result string) {
	if m == nil || m.feedRefreshTotal == nil {
		return
	}

	m.feedRefreshTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrResult, result)))
}

// RecordToolInvocation records an MCP tool invocation with tool name, status, and duration.
func (m *Metrics) RecordToolInvocation(ctx context.Context, toolName, status string, duration time.Duration) {
	m.RecordToolInvocationWithAccount(ctx, toolName, status, "", duration)
}

// RecordToolInvocationWithAccount records an MCP tool invocation. The domain
// of account is only attached when detailed labels are enabled.
func (m *Metrics) RecordToolInvocationWithAccount(ctx context.Context, toolName, status, account string, duration time.Duration) {
	if m == nil || m.toolInvocationsTotal == nil || m.toolDuration == nil {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String(attrTool, toolName),
		attribute.String(attrStatus, status),
	}

	if m.detailedLabels && account != "" {
		attrs = append(attrs, attribute.String(attrDomain, ExtractUserDomain(account)))
	}

	m.toolInvocationsTotal.Add(ctx, 1, metric.WithAttributes(attrs...))
	m.toolDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}
