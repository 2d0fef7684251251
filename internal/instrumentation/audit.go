package instrumentation

import (
	"context"
	"log/slog"
	"time"
)

// ToolInvocation captures one MCP tool call for the audit log.
//
// # Privacy Considerations
//
// Account holds the Google account address and Query the caller's search
// term. Both are only written when the audit logger includes PII; otherwise
// the account is reduced to its domain and the query is dropped.
type ToolInvocation struct {
	Tool string

	// Account is the Google account the source is bound to, if any.
	Account string

	// Operation is the dispatcher operation behind the tool.
	Operation string
	Encoding  string
	Calendars int
	Query     string

	// Execution details
	StartTime time.Time
	Duration  time.Duration
	Success   bool
	Error     string
	ErrorKind string

	// Tracing context
	TraceID string
	SpanID  string
}

// AccountDomain returns the domain of the account for lower-cardinality logging.
func (ti *ToolInvocation) AccountDomain() string {
	return ExtractUserDomain(ti.Account)
}

// Status returns "success" or "error" based on the Success field.
func (ti *ToolInvocation) Status() string {
	if ti.Success {
		return StatusSuccess
	}
	return StatusError
}

// LogAttrs returns slog attributes without PII.
func (ti *ToolInvocation) LogAttrs() []slog.Attr {
	attrs := ti.commonAttrs()
	if ti.Account != "" {
		attrs = append(attrs, slog.String("account_domain", ti.AccountDomain()))
	}
	return append(attrs, ti.errorAttrs()...)
}

// LogAuditAttrs returns slog attributes for full audit logging, including
// the account address and search term.
//
// # Security Warning
//
// This method includes PII. Ensure audit logs are stored with appropriate
// access controls.
func (ti *ToolInvocation) LogAuditAttrs() []slog.Attr {
	attrs := ti.commonAttrs()
	if ti.Account != "" {
		attrs = append(attrs, slog.String("account", ti.Account))
	}
	if ti.Query != "" {
		attrs = append(attrs, slog.String("query", ti.Query))
	}
	if ti.SpanID != "" {
		attrs = append(attrs, slog.String("span_id", ti.SpanID))
	}
	return append(attrs, ti.errorAttrs()...)
}

func (ti *ToolInvocation) commonAttrs() []slog.Attr {
	attrs := []slog.Attr{
		slog.String("tool", ti.Tool),
		slog.Duration("duration", ti.Duration),
		slog.Bool("success", ti.Success),
	}
	if ti.Operation != "" && ti.Operation != ti.Tool {
		attrs = append(attrs, slog.String("operation", ti.Operation))
	}
	if ti.Encoding != "" {
		attrs = append(attrs, slog.String("encoding", ti.Encoding))
	}
	if ti.Calendars > 0 {
		attrs = append(attrs, slog.Int("calendars", ti.Calendars))
	}
	if ti.TraceID != "" {
		attrs = append(attrs, slog.String("trace_id", ti.TraceID))
	}
	return attrs
}

func (ti *ToolInvocation) errorAttrs() []slog.Attr {
	var attrs []slog.Attr
	if ti.ErrorKind != "" {
		attrs = append(attrs, slog.String("error_kind", ti.ErrorKind))
	}
	if ti.Error != "" {
		attrs = append(attrs, slog.String("error", ti.Error))
	}
	return attrs
}

// NewToolInvocation creates a new ToolInvocation with timing started.
// Call Complete() when the tool operation finishes.
func NewToolInvocation(tool string) *ToolInvocation {
	return &ToolInvocation{
		Tool:      tool,
		Operation: tool,
		StartTime: time.Now(),
	}
}

// WithAccount sets the Google account address.
func (ti *ToolInvocation) WithAccount(account string) *ToolInvocation {
	ti.Account = account
	return ti
}

// WithRequest records the request shape: operation, encoding, the number of
// calendars named and the search term.
func (ti *ToolInvocation) WithRequest(operation, encoding string, calendars int, query string) *ToolInvocation {
	if operation != "" {
		ti.Operation = operation
	}
	ti.Encoding = encoding
	ti.Calendars = calendars
	ti.Query = query
	return ti
}

// WithSpanContext copies the trace and span IDs of the span in ctx.
func (ti *ToolInvocation) WithSpanContext(ctx context.Context) *ToolInvocation {
	ti.TraceID, ti.SpanID = SpanIDs(ctx)
	return ti
}

// Complete marks the invocation as completed and calculates duration.
func (ti *ToolInvocation) Complete(success bool, err error) *ToolInvocation {
	ti.Duration = time.Since(ti.StartTime)
	ti.Success = success
	if err != nil {
		ti.Error = err.Error()
	}
	return ti
}

// CompleteWithError marks the invocation as failed. kind is the typed error
// kind, if known.
func (ti *ToolInvocation) CompleteWithError(err error, kind string) *ToolInvocation {
	ti.ErrorKind = kind
	return ti.Complete(false, err)
}

// CompleteSuccess marks the invocation as successful.
func (ti *ToolInvocation) CompleteSuccess() *ToolInvocation {
	return ti.Complete(true, nil)
}

// AuditLogger writes tool invocations to a structured log.
type AuditLogger struct {
	logger     *slog.Logger
	includePII bool
	enabled    bool
}

// NewAuditLogger creates an enabled AuditLogger that omits PII.
func NewAuditLogger(logger *slog.Logger) *AuditLogger {
	return NewAuditLoggerWithConfig(logger, AuditLoggingConfig{Enabled: true})
}

// NewAuditLoggerWithConfig creates a new AuditLogger with the given configuration.
func NewAuditLoggerWithConfig(logger *slog.Logger, config AuditLoggingConfig) *AuditLogger {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditLogger{
		logger:     logger,
		includePII: config.IncludePII,
		enabled:    config.Enabled,
	}
}

// SetIncludePII sets whether to include the account address and search terms.
func (al *AuditLogger) SetIncludePII(include bool) {
	al.includePII = include
}

// SetEnabled sets whether audit logging is enabled.
func (al *AuditLogger) SetEnabled(enabled bool) {
	al.enabled = enabled
}

// LogToolInvocation logs a tool invocation, honouring the PII setting.
// Failures are logged at warn level.
func (al *AuditLogger) LogToolInvocation(ti *ToolInvocation) {
	if al == nil || !al.enabled {
		return
	}

	var attrs []slog.Attr
	if al.includePII {
		attrs = ti.LogAuditAttrs()
	} else {
		attrs = ti.LogAttrs()
	}

	args := make([]any, len(attrs))
	for i, attr := range attrs {
		args[i] = attr
	}

	if ti.Success {
		al.logger.Info("tool_executed", args...)
	} else {
		al.logger.Warn("tool_failed", args...)
	}
}
