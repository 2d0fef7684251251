package calendar_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/agenda/internal/dispatch"
	"github.com/teemow/agenda/internal/server"
	"github.com/teemow/agenda/internal/tools/common"
)

// NewTool builds the MCP tool definition of a dispatcher operation.
func NewTool(op dispatch.Operation) (mcp.Tool, error) {
	opts := []mcp.ToolOption{
		mcp.WithDescription(op.Description),
		mcp.WithReadOnlyHintAnnotation(true),
	}
	for _, p := range op.Params {
		var propOpts []mcp.PropertyOption
		if p.Description != "" {
			propOpts = append(propOpts, mcp.Description(p.Description))
		}
		if p.Required {
			propOpts = append(propOpts, mcp.Required())
		}
		switch p.Type {
		case dispatch.TypeString:
			opts = append(opts, mcp.WithString(p.Name, propOpts...))
		case dispatch.TypeBoolean:
			opts = append(opts, mcp.WithBoolean(p.Name, propOpts...))
		default:
			return mcp.Tool{}, fmt.Errorf("operation %s: parameter %s has unsupported type %q", op.Name, p.Name, p.Type)
		}
	}
	return mcp.NewTool(op.Name, opts...), nil
}

// operationFunc runs op through the server's dispatcher.
func operationFunc(sc *server.ServerContext, name string) common.ToolFunc {
	return func(ctx context.Context, args map[string]any) (string, error) {
		return sc.Dispatcher().Dispatch(ctx, name, args)
	}
}

// RegisterCalendarTools registers one tool per dispatcher operation and the
// daily_agenda prompt.
func RegisterCalendarTools(s *mcpserver.MCPServer, sc *server.ServerContext) error {
	for _, op := range dispatch.Operations() {
		tool, err := NewTool(op)
		if err != nil {
			return err
		}
		s.AddTool(tool, common.InstrumentedToolHandler(op.Name, sc, operationFunc(sc, op.Name)))
	}

	RegisterPrompts(s, sc)
	return nil
}
