package calendar_tools

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/agenda/internal/dispatch"
	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/server"
	"github.com/teemow/agenda/internal/source"
	"github.com/teemow/agenda/internal/timezone"
	"github.com/teemow/agenda/internal/tools/common"
)

// Monday 2024-01-15 08:00 UTC.
var now = time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

func testContext(t *testing.T) *server.ServerContext {
	t.Helper()
	due := time.Date(2024, 1, 15, 17, 0, 0, 0, time.UTC)
	src := &source.Memory{
		Calendars: []model.Calendar{
			{ID: "work", Name: "Work", Type: model.CalendarTypeEvent},
			{ID: "todo", Name: "Todo", Type: model.CalendarTypeReminder},
		},
		Events: []model.RawEvent{
			{ID: "e1", Title: "Standup", Start: now.Add(time.Hour), End: now.Add(90 * time.Minute), Busy: true, CalendarRef: "work"},
			{ID: "e2", Title: "Offsite", Start: now.AddDate(0, 0, 1), End: now.AddDate(0, 0, 1).Add(time.Hour), Busy: true, CalendarRef: "work"},
		},
		Reminders: []model.RawReminder{
			{ID: "r1", Title: "Submit report", Due: &due, CalendarRef: "todo"},
		},
	}
	clock := func() time.Time { return now }
	d := dispatch.New(src,
		dispatch.WithClock(clock),
		dispatch.WithResolver(timezone.NewResolver(timezone.WithLocal(time.UTC), timezone.WithClock(clock))),
	)
	sc := server.NewServerContext(context.Background(), d)
	t.Cleanup(func() { _ = sc.Shutdown() })
	return sc
}

func TestNewTool(t *testing.T) {
	op, ok := dispatch.Lookup(dispatch.OpSearch)
	require.True(t, ok)

	tool, err := NewTool(op)
	require.NoError(t, err)
	assert.Equal(t, "search", tool.Name)
	assert.Equal(t, op.Description, tool.Description)
	assert.Equal(t, []string{"term"}, tool.InputSchema.Required)
	require.NotNil(t, tool.Annotations.ReadOnlyHint)
	assert.True(t, *tool.Annotations.ReadOnlyHint)

	for _, p := range op.Params {
		prop, ok := tool.InputSchema.Properties[p.Name].(map[string]any)
		require.True(t, ok, p.Name)
		assert.Equal(t, string(p.Type), prop["type"], p.Name)
	}

	_, err = NewTool(dispatch.Operation{Name: "bad", Params: []dispatch.Param{{Name: "n", Type: "number"}}})
	assert.ErrorContains(t, err, "unsupported type")
}

func TestRegisterCalendarTools(t *testing.T) {
	sc := testContext(t)
	s := mcpserver.NewMCPServer("agenda-test", "0.0.0",
		mcpserver.WithToolCapabilities(true),
		mcpserver.WithPromptCapabilities(false),
	)
	require.NoError(t, RegisterCalendarTools(s, sc))

	resp := s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","id":1,"method":"tools/list"}`))
	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var listed struct {
		Result struct {
			Tools []struct {
				Name string `json:"name"`
			} `json:"tools"`
		} `json:"result"`
	}
	require.NoError(t, json.Unmarshal(raw, &listed))

	var names []string
	for _, tool := range listed.Result.Tools {
		names = append(names, tool.Name)
	}
	for _, op := range dispatch.Operations() {
		assert.Contains(t, names, op.Name)
	}
	assert.Len(t, names, len(dispatch.Operations()))
}

func callTool(t *testing.T, sc *server.ServerContext, name string, args map[string]any) *mcp.CallToolResult {
	t.Helper()
	handler := common.InstrumentedToolHandler(name, sc, operationFunc(sc, name))
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	result, err := handler(context.Background(), req)
	require.NoError(t, err)
	return result
}

func textOf(t *testing.T, result *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, result.Content, 1)
	text, ok := result.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestToolCall(t *testing.T) {
	sc := testContext(t)

	result := callTool(t, sc, dispatch.OpGetEvents, map[string]any{"encoding": "json"})
	require.False(t, result.IsError, textOf(t, result))

	var payload map[string]any
	require.NoError(t, json.Unmarshal([]byte(textOf(t, result)), &payload))
	assert.Equal(t, "events", payload["kind"])
	events, ok := payload["data"].([]any)
	require.True(t, ok)
	assert.Len(t, events, 1)

	result = callTool(t, sc, dispatch.OpSearch, map[string]any{"term": "offsite"})
	require.False(t, result.IsError, textOf(t, result))
	assert.Contains(t, textOf(t, result), "Offsite")
}

func TestToolCall_Errors(t *testing.T) {
	sc := testContext(t)

	tests := []struct {
		name string
		tool string
		args map[string]any
		want string
	}{
		{"missing term", dispatch.OpSearch, map[string]any{}, "term"},
		{"bad date", dispatch.OpGetEvents, map[string]any{"from": "someday"}, "someday"},
		{"unknown zone", dispatch.OpCurrentTime, map[string]any{"timezone": "Mars/Olympus"}, "Mars/Olympus"},
		{"unknown calendar", dispatch.OpGetEvents, map[string]any{"calendars": "Nope"}, "Nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := callTool(t, sc, tt.tool, tt.args)
			assert.True(t, result.IsError)
			assert.Contains(t, textOf(t, result), tt.want)
		})
	}
}

func TestDailyAgendaPrompt(t *testing.T) {
	sc := testContext(t)

	req := mcp.GetPromptRequest{}
	req.Params.Name = PromptDailyAgenda
	result, err := handleDailyAgenda(context.Background(), req, sc)
	require.NoError(t, err)

	assert.Equal(t, "Daily agenda for 2024-01-15", result.Description)
	require.Len(t, result.Messages, 1)
	assert.Equal(t, mcp.RoleUser, result.Messages[0].Role)
	text, ok := result.Messages[0].Content.(mcp.TextContent)
	require.True(t, ok)
	assert.Contains(t, text.Text, "schedule for 2024-01-15")
	assert.Contains(t, text.Text, "- Standup (09:00 - 09:30)")
	assert.Contains(t, text.Text, "- Submit report (due 2024-01-15, open)")
	assert.NotContains(t, text.Text, "Offsite")

	req.Params.Arguments = map[string]string{"date": "tomorrow", "timezone": "Europe/Berlin"}
	result, err = handleDailyAgenda(context.Background(), req, sc)
	require.NoError(t, err)
	text = result.Messages[0].Content.(mcp.TextContent)
	assert.Contains(t, text.Text, "- Offsite (09:00 - 10:00)")
	assert.Contains(t, text.Text, "No reminders due.")

	req.Params.Arguments = map[string]string{"date": "someday"}
	_, err = handleDailyAgenda(context.Background(), req, sc)
	assert.Error(t, err)
}
