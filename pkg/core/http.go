package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/osmsurvey/pkg/tracing"
)

// DefaultClient provides a pre-configured HTTP client with secure defaults
var DefaultClient = &http.Client{
	Timeout: 30 * time.Second,
	Transport: &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 10,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	},
}

// maxErrorBody bounds how much of an error response is kept for the message.
const maxErrorBody = 512

// Do performs exactly one traced HTTP request against an upstream service.
// Any non-200 response is closed and returned as a ServiceError; on success
// the caller owns the response body. Failures are never retried.
func Do(ctx context.Context, client *http.Client, req *http.Request, service string) (*http.Response, error) {
	if client == nil {
		client = DefaultClient
	}

	spanName := fmt.Sprintf("http.request %s %s", req.Method, req.URL.Host)
	ctx, span := tracing.StartSpan(ctx, spanName,
		trace.WithAttributes(
			attribute.String(tracing.AttrHTTPMethod, req.Method),
			attribute.String("http.url", req.URL.String()),
			attribute.String("http.host", req.URL.Host),
			attribute.String(tracing.AttrServiceName, service),
		),
	)
	defer span.End()

	logger := slog.Default().With(
		"service", service,
		"method", req.Method,
		"host", req.URL.Host,
	)

	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "request failed")
		logger.Error("request failed", "error", err)
		return nil, transportError(ctx, service, err)
	}

	span.SetAttributes(
		attribute.Int(tracing.AttrHTTPStatusCode, resp.StatusCode),
		attribute.Int64("http.response.content_length", resp.ContentLength),
		attribute.String("http.response.content_type", resp.Header.Get("Content-Type")),
	)

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if cerr := resp.Body.Close(); cerr != nil {
			logger.Warn("failed to close response body", "error", cerr)
		}
		logger.Error("request returned error status", "status", resp.StatusCode)
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))

		msg := fmt.Sprintf("HTTP status %d", resp.StatusCode)
		if len(snippet) > 0 {
			msg = fmt.Sprintf("%s: %s", msg, string(snippet))
		}
		return nil, ServiceError(service, resp.StatusCode, msg)
	}

	span.SetStatus(codes.Ok, "")
	logger.Debug("request successful",
		"status", resp.StatusCode,
		"content_length", resp.ContentLength,
	)
	return resp, nil
}

// transportError classifies a client.Do failure.
func transportError(ctx context.Context, service string, err error) *Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return NewError(ErrServiceTimeout, fmt.Sprintf("%s request timed out", service)).
			WithGuidance("Try reducing the bounding box or the number of feature types.")
	}
	return NewError(ErrNetworkError, fmt.Sprintf("%s request failed: %v", service, err)).
		WithGuidance("Check network connectivity to the upstream service and try again.")
}
