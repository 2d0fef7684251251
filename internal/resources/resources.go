package resources

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/agenda/internal/dispatch"
	"github.com/teemow/agenda/internal/render"
	"github.com/teemow/agenda/internal/server"
)

// Resource URIs.
const (
	URICalendars = "agenda://calendars"
	URISchema    = "agenda://schema"
)

const mimeJSON = "application/json"

// RegisterResources registers the calendar list and the JSON output schema
// as MCP resources.
func RegisterResources(s *mcpserver.MCPServer, sc *server.ServerContext) {
	calendars := mcp.NewResource(URICalendars, "Calendars",
		mcp.WithResourceDescription("Event calendars and reminder lists of all configured sources"),
		mcp.WithMIMEType(mimeJSON),
	)
	s.AddResource(calendars, func(ctx context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		return handleCalendars(ctx, request, sc)
	})

	schema := mcp.NewResource(URISchema, "Output schema",
		mcp.WithResourceDescription("JSON Schema of the json encoding of every tool result"),
		mcp.WithMIMEType(mimeJSON),
	)
	s.AddResource(schema, handleSchema)
}

func handleCalendars(ctx context.Context, request mcp.ReadResourceRequest, sc *server.ServerContext) ([]mcp.ResourceContents, error) {
	text, err := sc.Dispatcher().Dispatch(ctx, dispatch.OpListCalendars, map[string]any{"encoding": "json"})
	if err != nil {
		return nil, err
	}
	return textContents(request.Params.URI, text), nil
}

func handleSchema(_ context.Context, request mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	text, err := render.SchemaJSON()
	if err != nil {
		return nil, err
	}
	return textContents(request.Params.URI, text), nil
}

func textContents(uri, text string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: mimeJSON,
			Text:     text,
		},
	}
}
