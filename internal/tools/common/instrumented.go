package common

import (
	"context"
	"time"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/teemow/agenda/internal/instrumentation"
	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/server"
)

// ToolFunc runs a tool with its argument bag and returns the rendered text.
type ToolFunc func(ctx context.Context, args map[string]any) (string, error)

// ToolHandler is the handler signature mcp-go expects.
type ToolHandler = func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error)

// InstrumentedToolHandler turns fn into an MCP tool handler with a span,
// metrics and an audit record per call. Errors from fn become tool error
// results carrying the message; they are never returned as protocol errors.
//
// Usage:
//
//	s.AddTool(tool, common.InstrumentedToolHandler("get_events", sc, fn))
func InstrumentedToolHandler(toolName string, sc *server.ServerContext, fn ToolFunc) ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		args := request.GetArguments()
		if args == nil {
			args = map[string]any{}
		}
		encoding := StringArg(args, "encoding")
		calendars := CalendarCount(args)

		ctx, span := instrumentation.StartToolSpan(ctx, toolName,
			instrumentation.NewSpanAttributeBuilder().
				WithOperation(toolName).
				WithEncoding(encoding).
				WithCalendars(calendars).
				Build()...)
		defer span.End()

		start := time.Now()
		invocation := instrumentation.NewToolInvocation(toolName).
			WithSpanContext(ctx).
			WithRequest(toolName, encoding, calendars, SearchText(args))

		text, err := fn(ctx, args)
		duration := time.Since(start)

		status := instrumentation.StatusSuccess
		var result *mcp.CallToolResult
		if err != nil {
			status = instrumentation.StatusError
			invocation.CompleteWithError(err, string(model.KindOf(err)))
			instrumentation.SetSpanError(span, err)
			result = mcp.NewToolResultError(err.Error())
		} else {
			invocation.CompleteSuccess()
			instrumentation.SetSpanSuccess(span)
			result = mcp.NewToolResultText(text)
		}

		if sc != nil {
			sc.Metrics().RecordToolInvocation(ctx, toolName, status, duration)
			sc.AuditLogger().LogToolInvocation(invocation)
		}
		return result, nil
	}
}
