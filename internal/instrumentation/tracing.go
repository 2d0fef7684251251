package instrumentation

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// TracerName names the tracer all agenda spans come from.
const TracerName = "github.com/teemow/agenda"

// Span attribute keys.
const (
	SpanAttrTool      = "mcp.tool"
	SpanAttrSource    = "agenda.source"
	SpanAttrOperation = "agenda.operation"
	SpanAttrEncoding  = "agenda.encoding"
	SpanAttrRecords   = "agenda.records"

	// SpanAttrCalendars counts the calendars a caller named. The names
	// themselves stay out of traces.
	SpanAttrCalendars = "agenda.calendars"
)

// SpanAttributeBuilder collects request attributes for a span. Empty values
// are skipped. Tool and source attributes are set by StartToolSpan and
// StartSourceSpan.
type SpanAttributeBuilder struct {
	attrs []attribute.KeyValue
}

func NewSpanAttributeBuilder() *SpanAttributeBuilder {
	return &SpanAttributeBuilder{}
}

func (b *SpanAttributeBuilder) str(key, value string) *SpanAttributeBuilder {
	if value != "" {
		b.attrs = append(b.attrs, attribute.String(key, value))
	}
	return b
}

func (b *SpanAttributeBuilder) WithOperation(operation string) *SpanAttributeBuilder {
	return b.str(SpanAttrOperation, operation)
}

func (b *SpanAttributeBuilder) WithEncoding(encoding string) *SpanAttributeBuilder {
	return b.str(SpanAttrEncoding, encoding)
}

func (b *SpanAttributeBuilder) WithCalendars(n int) *SpanAttributeBuilder {
	if n > 0 {
		b.attrs = append(b.attrs, attribute.Int(SpanAttrCalendars, n))
	}
	return b
}

// Build returns the collected attributes.
func (b *SpanAttributeBuilder) Build() []attribute.KeyValue {
	return b.attrs
}

func startSpan(ctx context.Context, name string, kind trace.SpanKind, attrs []attribute.KeyValue) (context.Context, trace.Span) {
	return otel.GetTracerProvider().Tracer(TracerName).Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(kind),
	)
}

// StartToolSpan starts the server span "tool.<name>" of an MCP tool call.
// The caller ends it.
func StartToolSpan(ctx context.Context, toolName string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{attribute.String(SpanAttrTool, toolName)}, attrs...)
	return startSpan(ctx, "tool."+toolName, trace.SpanKindServer, all)
}

// StartSourceSpan starts the client span "source.<source>.<operation>" of a
// calendar source call.
func StartSourceSpan(ctx context.Context, source, operation string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{
		attribute.String(SpanAttrSource, source),
		attribute.String(SpanAttrOperation, operation),
	}, attrs...)
	return startSpan(ctx, "source."+source+"."+operation, trace.SpanKindClient, all)
}

func SetSpanRecords(span trace.Span, n int) {
	span.SetAttributes(attribute.Int(SpanAttrRecords, n))
}

// SetSpanError marks the span failed. A nil err is ignored.
func SetSpanError(span trace.Span, err error) {
	if err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}

func SetSpanSuccess(span trace.Span) {
	span.SetStatus(codes.Ok, "")
}

// SpanIDs returns the trace and span IDs of the span in ctx, or empty
// strings when ctx carries no valid span.
func SpanIDs(ctx context.Context) (traceID, spanID string) {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return "", ""
	}
	return sc.TraceID().String(), sc.SpanID().String()
}
