// Package tasks reads task lists and tasks from the Google Tasks API
// (tasks/v1). Task lists become reminder calendars and tasks become
// model.RawReminder values. The client never writes.
package tasks
