package server

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/NERVsystems/osmsurvey/pkg/core"
)

// MCP SSE transport paths.
const (
	SSEEndpoint     = "/mcp/sse"
	MessageEndpoint = "/mcp/message"
)

// HTTPConfig holds configuration for the HTTP listener
type HTTPConfig struct {
	Addr           string
	BaseURL        string
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	MaxBodyBytes   int64
	AllowedOrigins []string
	AuthToken      string
	// ServeMetrics mounts /metrics on this listener.
	ServeMetrics bool
}

// DefaultHTTPConfig returns sensible defaults
func DefaultHTTPConfig() HTTPConfig {
	return HTTPConfig{
		Addr:         ":8000",
		BaseURL:      "http://localhost:8000",
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		MaxBodyBytes: 1 << 20,
		ServeMetrics: true,
	}
}

// HTTPServer serves the REST API and the MCP SSE transport on one listener.
type HTTPServer struct {
	config  HTTPConfig
	logger  *slog.Logger
	sse     *mcpserver.SSEServer
	api     *API
	handler http.Handler

	mu      sync.Mutex
	httpSrv *http.Server
}

// NewHTTPServer builds the router. mcp may be nil to serve the REST API only.
func NewHTTPServer(api *API, mcp *Server, config HTTPConfig, logger *slog.Logger) *HTTPServer {
	if logger == nil {
		logger = slog.Default()
	}
	if config.AuthToken != "" {
		if err := core.ValidateAuthToken(config.AuthToken); err != nil {
			logger.Warn("weak authentication token detected", "error", err.Error())
		}
	}

	h := &HTTPServer{
		config: config,
		logger: logger,
		api:    api,
	}
	if mcp != nil {
		h.sse = mcpserver.NewSSEServer(
			mcp.MCPServer(),
			mcpserver.WithBaseURL(config.BaseURL),
			mcpserver.WithSSEEndpoint(SSEEndpoint),
			mcpserver.WithMessageEndpoint(MessageEndpoint),
		)
	}
	h.handler = h.routes()
	return h
}

func (h *HTTPServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(TracingMiddleware())
	r.Use(LoggingMiddleware(h.logger))
	r.Use(SecurityHeaders)
	r.Use(CORS(h.config.AllowedOrigins))
	r.Use(BearerAuth(h.config.AuthToken, h.logger, "/", "/health", "/ready", "/live", "/metrics"))
	r.Use(MetricsMiddleware)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, core.NewError(core.ErrNotFound, "No route for "+r.Method+" "+r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeErrorStatus(w, http.StatusMethodNotAllowed,
			core.NewError(core.ErrInvalidInput, "Method "+r.Method+" not allowed on "+r.URL.Path))
	})

	if h.config.ServeMetrics {
		r.Handle("/metrics", promhttp.Handler())
	}

	// The SSE stream must not be cut by the body limit or write timeout.
	if h.sse != nil {
		r.Handle(SSEEndpoint, h.sse.SSEHandler())
		r.With(RequestSizeLimiter(h.config.MaxBodyBytes)).Handle(MessageEndpoint, h.sse.MessageHandler())
	}

	r.Group(func(r chi.Router) {
		if h.config.MaxBodyBytes > 0 {
			r.Use(RequestSizeLimiter(h.config.MaxBodyBytes))
		}
		h.api.Mount(r)
	})
	return r
}

// Handler returns the complete middleware-wrapped router.
func (h *HTTPServer) Handler() http.Handler {
	return h.handler
}

// SSEEnabled reports whether the MCP SSE transport is mounted.
func (h *HTTPServer) SSEEnabled() bool {
	return h.sse != nil
}

// Start begins serving HTTP requests. It blocks until Shutdown and then
// returns nil.
func (h *HTTPServer) Start() error {
	h.mu.Lock()
	if h.httpSrv != nil {
		h.mu.Unlock()
		return core.NewError(core.ErrInternalError, "HTTP server already started").
			WithGuidance("The HTTP server is already running. Stop it before starting again.")
	}
	h.httpSrv = &http.Server{
		Addr:              h.config.Addr,
		Handler:           h.handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       h.config.ReadTimeout,
		IdleTimeout:       120 * time.Second,
	}
	// SSE streams are long lived, so the write deadline is only set when the
	// MCP transport is off.
	if h.sse == nil {
		h.httpSrv.WriteTimeout = h.config.WriteTimeout
	}
	srv := h.httpSrv
	h.mu.Unlock()

	h.logger.Info("starting HTTP server",
		"addr", h.config.Addr,
		"base_url", h.config.BaseURL,
		"mcp_sse", h.sse != nil,
		"auth_required", h.config.AuthToken != "")

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (h *HTTPServer) Shutdown(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.httpSrv == nil {
		return nil
	}

	h.logger.Info("shutting down HTTP server")

	if h.sse != nil {
		if err := h.sse.Shutdown(ctx); err != nil {
			h.logger.Error("failed to shutdown SSE server", "error", err)
		}
	}

	err := h.httpSrv.Shutdown(ctx)
	h.httpSrv = nil
	h.api.Stop()
	return err
}
