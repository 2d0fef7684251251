// Package common holds the helpers shared by the MCP tool packages: the
// instrumented handler wrapper and argument accessors.
package common
