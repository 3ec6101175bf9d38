// Package core provides shared error, validation and HTTP utilities for the survey service.
package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
)

// ErrorCode defines standard error codes returned by the API and MCP tools
type ErrorCode string

// Standard error codes
const (
	// Input validation errors
	ErrInvalidInput        ErrorCode = "INVALID_INPUT"
	ErrInvalidLatitude     ErrorCode = "INVALID_LATITUDE"
	ErrInvalidLongitude    ErrorCode = "INVALID_LONGITUDE"
	ErrInvalidBBox         ErrorCode = "INVALID_BBOX"
	ErrBBoxTooLarge        ErrorCode = "BBOX_TOO_LARGE"
	ErrTooManyFeatureTypes ErrorCode = "TOO_MANY_FEATURE_TYPES"
	ErrInvalidOutputType   ErrorCode = "INVALID_OUTPUT_TYPE"
	ErrInvalidSession      ErrorCode = "INVALID_SESSION"
	ErrInvalidFilename     ErrorCode = "INVALID_FILENAME"
	ErrMissingParameter    ErrorCode = "MISSING_PARAMETER"
	ErrUnauthorized        ErrorCode = "UNAUTHORIZED"

	// Upstream service errors
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrServiceTimeout     ErrorCode = "SERVICE_TIMEOUT"
	ErrRateLimit          ErrorCode = "RATE_LIMIT"
	ErrNetworkError       ErrorCode = "NETWORK_ERROR"
	ErrParseError         ErrorCode = "PARSE_ERROR"

	// Data errors
	ErrNoResults      ErrorCode = "NO_RESULTS"
	ErrResultTooLarge ErrorCode = "RESULT_TOO_LARGE"
	ErrNotFound       ErrorCode = "NOT_FOUND"
	ErrInternalError  ErrorCode = "INTERNAL_ERROR"
)

// ErrorClass is the coarse discriminator callers switch on.
type ErrorClass string

const (
	ClassInvalidInput ErrorClass = "invalid_input"
	ClassUpstream     ErrorClass = "upstream"
	ClassTooLarge     ErrorClass = "too_large"
	ClassNoData       ErrorClass = "no_data"
	ClassNotFound     ErrorClass = "not_found"
	ClassInternal     ErrorClass = "internal"
)

// Class returns the error class a code belongs to.
func (c ErrorCode) Class() ErrorClass {
	switch c {
	case ErrInvalidInput, ErrInvalidLatitude, ErrInvalidLongitude, ErrInvalidBBox,
		ErrBBoxTooLarge, ErrTooManyFeatureTypes, ErrInvalidOutputType, ErrInvalidSession,
		ErrInvalidFilename, ErrMissingParameter, ErrUnauthorized:
		return ClassInvalidInput
	case ErrServiceUnavailable, ErrServiceTimeout, ErrRateLimit, ErrNetworkError, ErrParseError:
		return ClassUpstream
	case ErrResultTooLarge:
		return ClassTooLarge
	case ErrNoResults:
		return ClassNoData
	case ErrNotFound:
		return ClassNotFound
	default:
		return ClassInternal
	}
}

// Error represents a detailed error returned to API and MCP clients
type Error struct {
	Code        string   `json:"code"`
	Message     string   `json:"message"`
	Query       string   `json:"query,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
	Guidance    string   `json:"guidance,omitempty"`
}

// Error implements the error interface
func (e *Error) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("%s: %s. %s", e.Code, e.Message, e.Guidance)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewError creates a new Error with the given code and message
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    string(code),
		Message: message,
	}
}

// WithQuery adds query information to the error
func (e *Error) WithQuery(query string) *Error {
	e.Query = query
	return e
}

// WithGuidance adds guidance information to the error
func (e *Error) WithGuidance(guidance string) *Error {
	e.Guidance = guidance
	return e
}

// WithSuggestions adds suggestions to the error
func (e *Error) WithSuggestions(suggestions ...string) *Error {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// Class returns the error class of the error code.
func (e *Error) Class() ErrorClass {
	return ErrorCode(e.Code).Class()
}

// HTTPStatus maps the error class to a response status.
func (e *Error) HTTPStatus() int {
	switch e.Class() {
	case ClassInvalidInput:
		if e.Code == string(ErrUnauthorized) {
			return http.StatusUnauthorized
		}
		return http.StatusBadRequest
	case ClassUpstream:
		return http.StatusBadGateway
	case ClassTooLarge:
		return http.StatusRequestEntityTooLarge
	case ClassNoData, ClassNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// ToMCPResult converts the error to an MCP tool result
func (e *Error) ToMCPResult() *mcp.CallToolResult {
	errorJSON, err := json.Marshal(e)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("ERROR: %s - %s", e.Code, e.Message))
	}

	return mcp.NewToolResultError(string(errorJSON))
}

// AsError extracts an *Error from err, wrapping anything else as an internal error.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return NewError(ErrInternalError, err.Error())
}

// ServiceError creates an error for external service failures
func ServiceError(service string, statusCode int, message string) *Error {
	var code ErrorCode
	var guidance string

	switch statusCode {
	case http.StatusTooManyRequests:
		code = ErrRateLimit
		guidance = "The service is rate-limited. Please try again in a few moments."
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code = ErrServiceTimeout
		guidance = "The request timed out. Try reducing the bounding box or the number of feature types."
	case http.StatusBadRequest:
		code = ErrParseError
		guidance = "The upstream service rejected the generated query."
	default:
		code = ErrServiceUnavailable
		guidance = "The service is temporarily unavailable. Please try again later."
	}

	return NewError(code, fmt.Sprintf("%s service error: %s", service, message)).
		WithGuidance(guidance)
}

// NewValidationError creates an error for validation failures
func NewValidationError(code ErrorCode, message string) *Error {
	return NewError(code, message).
		WithGuidance("Please correct the parameters and try again.")
}
