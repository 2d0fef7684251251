// Package cmd implements the command-line interface for agenda.
//
// Query commands (events, reminders, all, today, search, summary, free,
// calendars, now, convert, timezones) each run one dispatcher operation and
// print its Markdown or, with --json, its JSON rendering. export writes
// events as iCalendar and schema prints the JSON Schema of the output.
//
// serve starts the MCP server, auth authorizes a Google account and config
// manages the configuration file. Settings come from the config file,
// AGENDA_* environment variables and flags, in increasing precedence.
package cmd
