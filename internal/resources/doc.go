// Package resources exposes read-only MCP resources: the calendar list of
// the configured sources and the JSON schema of tool results.
package resources
