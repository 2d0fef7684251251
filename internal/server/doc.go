// Package server holds the plumbing of serve mode.
//
// ServerContext carries the dispatcher and the instrumentation hooks the MCP
// tool handlers use. HTTPServer exposes the MCP server over the streamable
// HTTP transport at /mcp next to the /healthz and /readyz endpoints, and
// MetricsServer serves Prometheus metrics on a separate listener.
//
// The HTTP transport has no authentication. Bind it to a loopback address.
package server
