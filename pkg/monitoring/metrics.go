package monitoring

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/NERVsystems/osmsurvey/pkg/osm"
	"github.com/NERVsystems/osmsurvey/pkg/session"
)

const (
	// Service name for metrics
	ServiceName = "osmsurvey"
)

var (
	// HTTP API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmsurvey_api_requests_total",
			Help: "Total number of HTTP API requests",
		},
		[]string{"route", "method", "status"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmsurvey_api_request_duration_seconds",
			Help:    "HTTP API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
		},
		[]string{"route"},
	)

	// MCP request metrics
	MCPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmsurvey_mcp_requests_total",
			Help: "Total number of MCP requests processed",
		},
		[]string{"tool", "status"},
	)

	MCPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmsurvey_mcp_request_duration_seconds",
			Help:    "MCP request duration in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"tool"},
	)

	// External service metrics
	ExternalServiceRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmsurvey_external_service_requests_total",
			Help: "Total number of external service requests",
		},
		[]string{"service", "operation", "status"},
	)

	ExternalServiceRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmsurvey_external_service_request_duration_seconds",
			Help:    "External service request duration in seconds",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0, 60.0},
		},
		[]string{"service", "operation"},
	)

	// Rate limiting metrics
	RateLimitExceeded = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmsurvey_rate_limit_exceeded_total",
			Help: "Total number of rate limit exceeded events",
		},
		[]string{"scope"},
	)

	RateLimitWaitTime = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "osmsurvey_rate_limit_wait_duration_seconds",
			Help:    "Time spent waiting for rate limits",
			Buckets: []float64{0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		},
		[]string{"service"},
	)

	// Report metrics
	ReportsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmsurvey_reports_rendered_total",
			Help: "Total number of report artifacts rendered",
		},
		[]string{"renderer", "status"},
	)

	ElementsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmsurvey_elements_processed_total",
			Help: "Total number of normalized elements processed",
		},
		[]string{"kind"},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osmsurvey_active_sessions",
			Help: "Number of report sessions awaiting cleanup",
		},
	)

	// Error metrics
	ErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "osmsurvey_errors_total",
			Help: "Total number of errors",
		},
		[]string{"component", "error_type"},
	)

	// System metrics
	SystemInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "osmsurvey_system_info",
			Help: "System information",
		},
		[]string{"version", "go_version", "build_commit", "build_date"},
	)

	GoRoutines = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osmsurvey_goroutines",
			Help: "Number of goroutines",
		},
	)

	MemoryUsage = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osmsurvey_memory_usage_bytes",
			Help: "Memory usage in bytes",
		},
	)

	GCRuns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "osmsurvey_gc_runs_total",
			Help: "Total number of garbage collection runs",
		},
	)
)

// TransportInfo describes the enabled transports
type TransportInfo struct {
	HTTPAddr    string `json:"http_addr,omitempty"`
	MCPSSE      bool   `json:"mcp_sse"`
	MCPStdio    bool   `json:"mcp_stdio"`
	Sessions    int    `json:"active_sessions"`
	OverpassURL string `json:"overpass_url,omitempty"`
}

// ServiceHealth is the body of the health endpoint
type ServiceHealth struct {
	Service       string                `json:"service"`
	Version       string                `json:"version"`
	Status        string                `json:"status"` // "healthy", "degraded", "unhealthy"
	Timestamp     time.Time             `json:"timestamp"`
	Uptime        time.Duration         `json:"uptime"`
	UptimeSeconds int64                 `json:"uptime_seconds"`
	StartTime     time.Time             `json:"start_time,omitempty"`
	Connections   map[string]ConnStatus `json:"connections"`
	Metrics       map[string]any        `json:"metrics,omitempty"`
	Transport     *TransportInfo        `json:"transport,omitempty"`
}

type ConnStatus struct {
	Status    string `json:"status"` // "connected", "error", "degraded"
	Latency   int64  `json:"latency_ms,omitempty"`
	LastError string `json:"last_error,omitempty"`
}

func statusLabel(success bool) string {
	if success {
		return "success"
	}
	return "error"
}

// Helper functions for common metric updates
func RecordAPIRequest(route, method string, status int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	APIRequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func RecordMCPRequest(tool string, duration time.Duration, success bool) {
	MCPRequestsTotal.WithLabelValues(tool, statusLabel(success)).Inc()
	MCPRequestDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

func RecordExternalServiceRequest(service, operation string, duration time.Duration, success bool) {
	ExternalServiceRequestsTotal.WithLabelValues(service, operation, statusLabel(success)).Inc()
	ExternalServiceRequestDuration.WithLabelValues(service, operation).Observe(duration.Seconds())
}

func RecordRateLimitExceeded(scope string) {
	RateLimitExceeded.WithLabelValues(scope).Inc()
}

func RecordRateLimitWait(service string, duration time.Duration) {
	RateLimitWaitTime.WithLabelValues(service).Observe(duration.Seconds())
}

func RecordReport(renderer string, success bool) {
	ReportsRendered.WithLabelValues(renderer, statusLabel(success)).Inc()
}

// RecordElements counts a collection's elements by kind.
func RecordElements(c *osm.Collection) {
	if c == nil {
		return
	}
	ElementsProcessed.WithLabelValues(string(osm.KindPoint)).Add(float64(len(c.Nodes)))
	ElementsProcessed.WithLabelValues(string(osm.KindLineOrArea)).Add(float64(len(c.Ways)))
	ElementsProcessed.WithLabelValues(string(osm.KindComplexGroup)).Add(float64(len(c.Relations)))
}

// SessionOpened and SessionClosed are paired with the session store's
// create and evict hooks; the gauge only moves through them.
func SessionOpened(*session.Session) {
	ActiveSessions.Inc()
}

func SessionClosed(*session.Session) {
	ActiveSessions.Dec()
}

func RecordError(component, errorType string) {
	ErrorsTotal.WithLabelValues(component, errorType).Inc()
}

// InstallOverpassHooks routes Overpass client events into the metrics above.
func InstallOverpassHooks() {
	osm.SetMonitoringHooks(&osm.MonitoringHooks{
		OnResponse: RecordExternalServiceRequest,
		OnRateLimit: func(service string, wait time.Duration) {
			RecordRateLimitWait(service, wait)
		},
		OnError: func(service, errorType string) {
			RecordError(service, errorType)
		},
	})
}
