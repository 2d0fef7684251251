// Package calendar_tools exposes the agenda operations as MCP tools.
//
// Every dispatcher operation becomes one read-only tool with the same name
// and parameters, so the tool surface follows the operation table. The
// package also registers the daily_agenda prompt.
package calendar_tools
