package instrumentation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// useRecorder installs an in-memory tracer provider for the test.
func useRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return recorder
}

func attrsOf(kvs []attribute.KeyValue) map[string]any {
	m := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

func TestSpanAttributeBuilder(t *testing.T) {
	attrs := NewSpanAttributeBuilder().
		WithOperation("get_events").
		WithEncoding("json").
		WithCalendars(2).
		Build()

	assert.Equal(t, map[string]any{
		SpanAttrOperation: "get_events",
		SpanAttrEncoding:  "json",
		SpanAttrCalendars: int64(2),
	}, attrsOf(attrs))

	empty := NewSpanAttributeBuilder().WithOperation("now").WithEncoding("").WithCalendars(0).Build()
	assert.Equal(t, map[string]any{SpanAttrOperation: "now"}, attrsOf(empty))
}

func TestStartToolSpan(t *testing.T) {
	recorder := useRecorder(t)

	ctx, span := StartToolSpan(context.Background(), "search",
		NewSpanAttributeBuilder().WithEncoding("text").Build()...)
	traceID, spanID := SpanIDs(ctx)
	assert.NotEmpty(t, traceID)
	assert.NotEmpty(t, spanID)
	SetSpanSuccess(span)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	s := ended[0]
	assert.Equal(t, "tool.search", s.Name())
	assert.Equal(t, trace.SpanKindServer, s.SpanKind())
	assert.Equal(t, codes.Ok, s.Status().Code)
	assert.Equal(t, traceID, s.SpanContext().TraceID().String())

	attrs := attrsOf(s.Attributes())
	assert.Equal(t, "search", attrs[SpanAttrTool])
	assert.Equal(t, "text", attrs[SpanAttrEncoding])
}

func TestStartSourceSpan(t *testing.T) {
	recorder := useRecorder(t)

	_, span := StartSourceSpan(context.Background(), SourceICS, OperationFetchEvents)
	SetSpanRecords(span, 4)
	SetSpanError(span, errors.New("feed down"))
	SetSpanError(span, nil)
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	s := ended[0]
	assert.Equal(t, "source.ics.fetch_events", s.Name())
	assert.Equal(t, trace.SpanKindClient, s.SpanKind())
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "feed down", s.Status().Description)

	attrs := attrsOf(s.Attributes())
	assert.Equal(t, int64(4), attrs[SpanAttrRecords])
	assert.Equal(t, SourceICS, attrs[SpanAttrSource])
}

func TestSpanIDs_NoSpan(t *testing.T) {
	traceID, spanID := SpanIDs(context.Background())
	assert.Empty(t, traceID)
	assert.Empty(t, spanID)
}
