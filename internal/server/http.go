package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/felixge/httpsnoop"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/teemow/agenda/internal/instrumentation"
	"github.com/teemow/agenda/internal/logging"
)

// MCPEndpoint is the path of the streamable HTTP transport.
const MCPEndpoint = "/mcp"

// HTTPServer serves the MCP server over streamable HTTP together with the
// health endpoints. It has no authentication and is meant to listen on a
// loopback address.
type HTTPServer struct {
	mcpServer *mcpserver.MCPServer
	health    *HealthChecker
	metrics   *instrumentation.Metrics
	logger    *slog.Logger

	mu         sync.Mutex
	httpServer *http.Server
	listener   net.Listener
}

// NewHTTPServer creates the streamable HTTP server. health and metrics may
// be nil.
func NewHTTPServer(mcpServer *mcpserver.MCPServer, health *HealthChecker, metrics *instrumentation.Metrics, logger *slog.Logger) *HTTPServer {
	if health == nil {
		health = NewHealthChecker(nil)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPServer{
		mcpServer: mcpServer,
		health:    health,
		metrics:   metrics,
		logger:    logger,
	}
}

// Handler returns the routing handler: the MCP endpoint plus /healthz and
// /readyz.
func (s *HTTPServer) Handler() http.Handler {
	streamable := mcpserver.NewStreamableHTTPServer(s.mcpServer,
		mcpserver.WithEndpointPath(MCPEndpoint),
	)

	mux := http.NewServeMux()
	mux.Handle(MCPEndpoint, otelhttp.NewHandler(streamable, "mcp"))
	s.health.RegisterHealthEndpoints(mux)
	return s.measure(mux)
}

// measure records request metrics and logs each request at debug level.
func (s *HTTPServer) measure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := httpsnoop.CaptureMetrics(next, w, r)
		s.metrics.RecordHTTPRequest(r.Context(), r.Method, r.URL.Path, m.Code, m.Duration)
		s.logger.Debug("http request",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Int("status", m.Code),
			slog.Duration(logging.KeyDuration, m.Duration),
		)
	})
}

// Start listens on addr and serves until Shutdown. It blocks and returns
// http.ErrServerClosed after a graceful shutdown.
func (s *HTTPServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.listener = ln
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("serving MCP over streamable HTTP",
		slog.String("addr", ln.Addr().String()),
		slog.String("endpoint", MCPEndpoint),
	)
	return srv.Serve(ln)
}

// Addr returns the bound address, or "" before Start.
func (s *HTTPServer) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Shutdown marks the server not ready and stops it gracefully.
func (s *HTTPServer) Shutdown(ctx context.Context) error {
	s.health.SetReady(false)
	s.mu.Lock()
	srv := s.httpServer
	s.mu.Unlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}
