// Package tools provides the survey MCP tool implementations.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/NERVsystems/osmsurvey/pkg/monitoring"
	"github.com/NERVsystems/osmsurvey/pkg/survey"
	"github.com/NERVsystems/osmsurvey/pkg/tracing"
)

// ToolHandler is the signature every tool handler implements.
type ToolHandler = server.ToolHandlerFunc

// Registry contains all tool definitions and handlers
type Registry struct {
	logger  *slog.Logger
	service *survey.Service
	baseURL string
}

// NewRegistry creates a registry whose tools run against svc. baseURL prefixes
// the download links returned by survey_generate.
func NewRegistry(logger *slog.Logger, svc *survey.Service, baseURL string) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger:  logger,
		service: svc,
		baseURL: baseURL,
	}
}

// ToolDefinition represents a survey MCP tool definition.
type ToolDefinition struct {
	Name        string
	Description string
	Tool        mcp.Tool
	Handler     ToolHandler
}

// GetToolDefinitions returns the list of all available tools.
func (r *Registry) GetToolDefinitions() []ToolDefinition {
	return []ToolDefinition{
		{
			Name:        "get_version",
			Description: "Get the version information for this survey service",
			Tool:        GetVersionTool(),
			Handler:     HandleGetVersion,
		},
		{
			Name:        "survey_feature_types",
			Description: "List queryable feature types. Parameters: set (string: available, default, survey)",
			Tool:        FeatureTypesTool(),
			Handler:     HandleFeatureTypes,
		},
		{
			Name:        "survey_query_bbox",
			Description: "Fetch normalized OSM elements in a bounding box. Parameters: bbox (object), feature_types (array), limit (number)",
			Tool:        QueryBBoxTool(),
			Handler:     r.HandleQueryBBox,
		},
		{
			Name:        "survey_report",
			Description: "Produce the engineering and survey text report for a bounding box. Parameters: bbox (object), feature_types (array)",
			Tool:        ReportTool(),
			Handler:     r.HandleReport,
		},
		{
			Name:        "survey_csv_rollup",
			Description: "Produce the CSV feature rollup for a bounding box. Parameters: bbox (object), feature_types (array)",
			Tool:        CSVRollupTool(),
			Handler:     r.HandleCSVRollup,
		},
		{
			Name:        "survey_generate",
			Description: "Generate report files into a download session. Parameters: bbox (object), feature_types (array), outputs (array)",
			Tool:        GenerateTool(),
			Handler:     r.HandleGenerate,
		},
	}
}

// RegisterTools registers all tools with the MCP server.
func (r *Registry) RegisterTools(mcpServer *server.MCPServer) {
	for _, def := range r.GetToolDefinitions() {
		r.logger.Info("registering tool", "name", def.Name)
		mcpServer.AddTool(def.Tool, r.wrap(def.Name, def.Handler))
	}
}

// wrap traces a tool handler and records its outcome in the MCP metrics.
func (r *Registry) wrap(toolName string, handler ToolHandler) ToolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		spanName := fmt.Sprintf("mcp.tool.%s", toolName)
		ctx, span := tracing.StartSpan(ctx, spanName,
			trace.WithAttributes(
				attribute.String(tracing.AttrMCPToolName, toolName),
			),
		)
		defer span.End()

		startTime := time.Now()
		result, err := handler(ctx, req)
		duration := time.Since(startTime)
		durationMs := duration.Milliseconds()

		status := tracing.StatusSuccess
		switch {
		case err != nil:
			status = tracing.StatusError
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		case result != nil && result.IsError:
			status = tracing.StatusError
			span.SetStatus(codes.Error, "tool returned an error result")
		default:
			span.SetStatus(codes.Ok, "")
		}
		monitoring.RecordMCPRequest(toolName, duration, status == tracing.StatusSuccess)

		resultSize := 0
		if result != nil && result.Content != nil {
			if data, marshalErr := json.Marshal(result.Content); marshalErr == nil {
				resultSize = len(data)
			}
		}

		span.SetAttributes(tracing.MCPToolAttributes(toolName, status, durationMs, resultSize)...)

		r.logger.Debug("tool execution traced",
			"tool", toolName,
			"duration_ms", durationMs,
			"status", status,
			"result_size", resultSize,
		)

		return result, err
	}
}

// GetToolNames returns a list of all tool names.
func (r *Registry) GetToolNames() []string {
	defs := r.GetToolDefinitions()
	names := make([]string, len(defs))
	for i, def := range defs {
		names[i] = def.Name
	}
	return names
}
