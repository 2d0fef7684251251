package google

import (
	calendar "google.golang.org/api/calendar/v3"
	tasks "google.golang.org/api/tasks/v1"
)

// DefaultOAuthScopes are the scopes requested at authorization. Access is
// read-only: calendars and events, task lists and tasks.
var DefaultOAuthScopes = []string{
	calendar.CalendarReadonlyScope,
	tasks.TasksReadonlyScope,
}
