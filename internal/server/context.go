package server

import (
	"context"
	"log/slog"
	"sync"

	"github.com/teemow/agenda/internal/dispatch"
	"github.com/teemow/agenda/internal/instrumentation"
)

// ServerContext holds what the MCP tools need while serving: the dispatcher
// and the instrumentation hooks.
type ServerContext struct {
	ctx        context.Context
	cancel     context.CancelFunc
	dispatcher *dispatch.Dispatcher
	metrics    *instrumentation.Metrics
	audit      *instrumentation.AuditLogger
	logger     *slog.Logger
	mu         sync.RWMutex
	shutdown   bool
}

// ContextOption configures a ServerContext.
type ContextOption func(*ServerContext)

// WithMetrics sets the metrics recorder used by instrumented tool handlers.
func WithMetrics(m *instrumentation.Metrics) ContextOption {
	return func(sc *ServerContext) {
		sc.metrics = m
	}
}

// WithAuditLogger sets the audit logger for tool invocations.
func WithAuditLogger(al *instrumentation.AuditLogger) ContextOption {
	return func(sc *ServerContext) {
		sc.audit = al
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ContextOption {
	return func(sc *ServerContext) {
		if logger != nil {
			sc.logger = logger
		}
	}
}

// NewServerContext creates a server context around d. The returned context
// is cancelled by Shutdown.
func NewServerContext(ctx context.Context, d *dispatch.Dispatcher, opts ...ContextOption) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	sc := &ServerContext{
		ctx:        shutdownCtx,
		cancel:     cancel,
		dispatcher: d,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(sc)
	}
	return sc
}

// Context returns the server context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Dispatcher returns the operation dispatcher.
func (sc *ServerContext) Dispatcher() *dispatch.Dispatcher {
	return sc.dispatcher
}

// Metrics returns the metrics recorder, or nil.
func (sc *ServerContext) Metrics() *instrumentation.Metrics {
	return sc.metrics
}

// AuditLogger returns the audit logger, or nil.
func (sc *ServerContext) AuditLogger() *instrumentation.AuditLogger {
	return sc.audit
}

// Logger returns the logger.
func (sc *ServerContext) Logger() *slog.Logger {
	return sc.logger
}

// IsShutdown reports whether Shutdown has been called.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown cancels the server context. It is safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.cancel()
	return nil
}
