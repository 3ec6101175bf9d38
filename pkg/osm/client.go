package osm

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/NERVsystems/osmsurvey/pkg/core"
	"github.com/NERVsystems/osmsurvey/pkg/geo"
	"github.com/NERVsystems/osmsurvey/pkg/osm/queries"
	"github.com/NERVsystems/osmsurvey/pkg/tracing"
)

const (
	// DefaultOverpassURL is the public Overpass interpreter endpoint
	DefaultOverpassURL = "https://overpass-api.de/api/interpreter"

	// DefaultUserAgent is the default User-Agent string
	DefaultUserAgent = "osmsurvey/0.1.0"

	// DefaultTimeout bounds a single Overpass call
	DefaultTimeout = 25 * time.Second

	// maxResponseBytes caps how much of an Overpass response is read
	maxResponseBytes = 256 << 20

	// rateLimitReportThreshold is the shortest limiter wait worth reporting
	rateLimitReportThreshold = 100 * time.Millisecond
)

// OverpassClient fetches and normalizes Overpass data. Each Fetch is a single
// attempt; failures are returned to the caller and never retried.
type OverpassClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	timeout    time.Duration
	logger     *slog.Logger
}

// ClientOption configures an OverpassClient.
type ClientOption func(*OverpassClient)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *OverpassClient) { c.httpClient = hc }
}

// WithRateLimit sets the outbound request rate.
func WithRateLimit(rps float64, burst int) ClientOption {
	return func(c *OverpassClient) { c.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithUserAgent sets the User-Agent header sent upstream.
func WithUserAgent(ua string) ClientOption {
	return func(c *OverpassClient) { c.userAgent = ua }
}

// WithTimeout bounds each call; the server-side query timeout follows it.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *OverpassClient) { c.timeout = d }
}

// WithLogger sets the client logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *OverpassClient) { c.logger = logger }
}

// NewOverpassClient creates a client for the interpreter at baseURL.
// An empty baseURL selects DefaultOverpassURL.
func NewOverpassClient(baseURL string, opts ...ClientOption) *OverpassClient {
	if baseURL == "" {
		baseURL = DefaultOverpassURL
	}
	c := &OverpassClient{
		baseURL:    baseURL,
		httpClient: core.DefaultClient,
		// Default to 1 request per second with burst of 1
		limiter:   rate.NewLimiter(rate.Limit(1), 1),
		userAgent: DefaultUserAgent,
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// BaseURL returns the interpreter endpoint.
func (c *OverpassClient) BaseURL() string {
	return c.baseURL
}

// Fetch queries every element inside bbox carrying any of keys and returns
// the normalized collection.
func (c *OverpassClient) Fetch(ctx context.Context, bbox geo.BoundingBox, keys []string) (*Collection, error) {
	ctx, span := tracing.StartSpan(ctx, "overpass.fetch",
		trace.WithAttributes(
			attribute.String(tracing.AttrBBox, bbox.String()),
			attribute.Int(tracing.AttrFeatureTypeCount, len(keys)),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	query := queries.FeatureQuery(bbox, keys, int(c.timeout/time.Second))
	c.logger.Debug("querying overpass", "bbox", bbox.String(), "feature_types", strings.Join(keys, ","))

	body, err := c.post(ctx, query, "fetch")
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "overpass request failed")
		return nil, err
	}

	collection, err := Normalize(body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "decode failed")
		hookError(tracing.ServiceOverpass, "parse_error")
		return nil, core.NewError(core.ErrParseError, fmt.Sprintf("Failed to parse Overpass response: %v", err)).
			WithQuery(query)
	}

	span.SetAttributes(attribute.Int(tracing.AttrElementCount, collection.TotalElements))
	c.logger.Info("retrieved elements from overpass",
		"element_count", collection.TotalElements,
		"nodes", len(collection.Nodes),
		"ways", len(collection.Ways),
		"relations", len(collection.Relations))
	return collection, nil
}

// CheckHealth issues a trivial query to see whether the interpreter answers.
func (c *OverpassClient) CheckHealth(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if _, err := c.post(ctx, "[out:json];out meta;", "health"); err != nil {
		// Overpass answers 400 to the bare query on some mirrors; it is still up.
		if e := core.AsError(err); e.Code == string(core.ErrParseError) {
			return nil
		}
		return fmt.Errorf("overpass health check failed: %w", err)
	}
	return nil
}

// post sends the query as form data and returns the full response body.
func (c *OverpassClient) post(ctx context.Context, query, operation string) ([]byte, error) {
	service := tracing.ServiceOverpass

	if err := c.waitForRateLimit(ctx); err != nil {
		hookError(service, "rate_limit_wait_error")
		return nil, core.NewError(core.ErrServiceTimeout, "Timed out waiting for the Overpass rate limiter").
			WithGuidance("Try again in a few moments.")
	}

	form := url.Values{"data": {query}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, core.NewError(core.ErrInternalError, fmt.Sprintf("failed to build overpass request: %v", err))
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	hookRequest(service, operation)
	start := time.Now()
	resp, err := core.Do(ctx, c.httpClient, req, service)
	hookResponse(service, operation, time.Since(start), err == nil)
	if err != nil {
		hookError(service, "request_error")
		return nil, core.AsError(err).WithQuery(query)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		hookError(service, "read_error")
		return nil, core.NewError(core.ErrNetworkError, fmt.Sprintf("Failed to read Overpass response: %v", err)).
			WithQuery(query)
	}
	return body, nil
}

// waitForRateLimit blocks on the limiter and records significant waits.
func (c *OverpassClient) waitForRateLimit(ctx context.Context) error {
	startWait := time.Now()
	err := c.limiter.Wait(ctx)
	waitDuration := time.Since(startWait)

	if waitDuration > rateLimitReportThreshold {
		tracing.AddEvent(ctx, "rate_limit_wait",
			trace.WithAttributes(
				attribute.String(tracing.AttrRateLimitService, tracing.ServiceOverpass),
				attribute.Int64(tracing.AttrRateLimitWaitMs, waitDuration.Milliseconds()),
			),
		)
		hookRateLimit(tracing.ServiceOverpass, waitDuration)
	}
	return err
}
