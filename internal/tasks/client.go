package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"github.com/teemow/agenda/internal/logging"
	"github.com/teemow/agenda/internal/model"
)

const statusCompleted = "completed"

// Client wraps the Google Tasks service
type Client struct {
	svc    *tasks.Service
	logger *slog.Logger
}

// NewClient creates a Tasks client. Authentication is passed in through the
// options, usually option.WithHTTPClient.
func NewClient(ctx context.Context, opts ...option.ClientOption) (*Client, error) {
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Tasks service: %w", err)
	}
	return &Client{svc: svc, logger: slog.Default()}, nil
}

// WithLogger sets the logger that reports skipped records.
func (c *Client) WithLogger(logger *slog.Logger) *Client {
	if logger != nil {
		c.logger = logger
	}
	return c
}

// ListTaskLists lists all task lists as reminder calendars.
func (c *Client) ListTaskLists(ctx context.Context) ([]model.Calendar, error) {
	var out []model.Calendar
	err := c.svc.Tasklists.List().MaxResults(100).Pages(ctx, func(page *tasks.TaskLists) error {
		for _, tl := range page.Items {
			out = append(out, toCalendar(tl))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list task lists: %w", err)
	}
	return out, nil
}

// ListTasks lists the tasks of a task list, completed ones included. Tasks
// that cannot be converted are logged and skipped.
func (c *Client) ListTasks(ctx context.Context, taskListID string) ([]model.RawReminder, error) {
	call := c.svc.Tasks.List(taskListID).
		ShowCompleted(true).
		ShowHidden(true).
		MaxResults(100)

	var out []model.RawReminder
	err := call.Pages(ctx, func(page *tasks.Tasks) error {
		for _, t := range page.Items {
			if t.Deleted {
				continue
			}
			raw, err := toRawReminder(taskListID, t)
			if err != nil {
				c.logger.Warn("skipping task", logging.Calendar(taskListID), logging.RecordID(t.Id), logging.Err(err))
				continue
			}
			out = append(out, raw)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks of %s: %w", taskListID, err)
	}
	return out, nil
}

// toCalendar converts a Google Tasks TaskList to a reminder calendar
func toCalendar(tl *tasks.TaskList) model.Calendar {
	if tl == nil {
		return model.Calendar{}
	}
	return model.Calendar{
		ID:   tl.Id,
		Name: tl.Title,
		Type: model.CalendarTypeReminder,
	}
}

// toRawReminder converts a Google Tasks Task. The API only keeps the date
// part of a due value, so it is always date-only.
func toRawReminder(taskListID string, t *tasks.Task) (model.RawReminder, error) {
	raw := model.RawReminder{
		ID:          t.Id,
		Title:       t.Title,
		Completed:   t.Status == statusCompleted,
		CalendarRef: taskListID,
		Notes:       t.Notes,
	}
	if t.Due != "" {
		due, err := time.Parse(time.RFC3339, t.Due)
		if err != nil {
			return model.RawReminder{}, fmt.Errorf("task %s: invalid due date: %w", t.Id, err)
		}
		day := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
		raw.Due = &day
		raw.DueDateOnly = true
	}
	return raw, nil
}
