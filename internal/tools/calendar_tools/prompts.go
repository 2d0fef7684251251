package calendar_tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/agenda/internal/dispatch"
	"github.com/teemow/agenda/internal/model"
	"github.com/teemow/agenda/internal/server"
)

// PromptDailyAgenda is the name of the daily agenda prompt.
const PromptDailyAgenda = "daily_agenda"

// RegisterPrompts registers the daily_agenda prompt.
func RegisterPrompts(s *mcpserver.MCPServer, sc *server.ServerContext) {
	prompt := mcp.NewPrompt(PromptDailyAgenda,
		mcp.WithPromptDescription("Review the schedule of one day: events, reminders and what to focus on"),
		mcp.WithArgument("date",
			mcp.ArgumentDescription("Day to review: YYYY-MM-DD, today, tomorrow or a weekday name (defaults to today)"),
		),
		mcp.WithArgument("timezone",
			mcp.ArgumentDescription("IANA time zone, e.g. Europe/Berlin (defaults to local)"),
		),
	)

	s.AddPrompt(prompt, func(ctx context.Context, request mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
		return handleDailyAgenda(ctx, request, sc)
	})
}

func handleDailyAgenda(ctx context.Context, request mcp.GetPromptRequest, sc *server.ServerContext) (*mcp.GetPromptResult, error) {
	date := strings.TrimSpace(request.Params.Arguments["date"])
	zone := strings.TrimSpace(request.Params.Arguments["timezone"])

	day, err := sc.Dispatcher().ResolveDay(date, zone)
	if err != nil {
		return nil, err
	}
	label := day.Format(time.DateOnly)

	args := map[string]any{"from": label, "to": label}
	if zone != "" {
		args["timezone"] = zone
	}
	out, err := sc.Dispatcher().Run(ctx, dispatch.OpGetAgenda, args)
	if err != nil {
		return nil, err
	}

	return mcp.NewGetPromptResult(
		"Daily agenda for "+label,
		[]mcp.PromptMessage{
			mcp.NewPromptMessage(mcp.RoleUser,
				mcp.NewTextContent(dailyAgendaText(label, out.Result.Events, out.Result.Reminders, out.Zone))),
		},
	), nil
}

func dailyAgendaText(day string, events []model.Event, reminders []model.Reminder, zone *time.Location) string {
	if zone == nil {
		zone = time.UTC
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Please help me understand my schedule for %s.\n\nEvents:\n", day)
	if len(events) == 0 {
		b.WriteString("No events scheduled.\n")
	}
	for _, e := range events {
		when := "all day"
		if !e.AllDay {
			when = e.Start.In(zone).Format("15:04") + " - " + e.End.In(zone).Format("15:04")
		}
		fmt.Fprintf(&b, "- %s (%s)\n", e.Title, when)
	}

	b.WriteString("\nReminders:\n")
	if len(reminders) == 0 {
		b.WriteString("No reminders due.\n")
	}
	for _, r := range reminders {
		due := "no due date"
		if r.Due != nil {
			due = "due " + r.Due.In(zone).Format(time.DateOnly)
		}
		status := "open"
		if r.Completed {
			status = "completed"
		}
		fmt.Fprintf(&b, "- %s (%s, %s)\n", r.Title, due, status)
	}

	b.WriteString("\nWhat should I focus on today? Any conflicts or tight schedules to be aware of?\n")
	return b.String()
}
