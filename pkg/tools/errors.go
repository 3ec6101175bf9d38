package tools

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/NERVsystems/osmsurvey/pkg/core"
)

// ErrorResponse returns a plain error result.
func ErrorResponse(message string) *mcp.CallToolResult {
	return mcp.NewToolResultError(message)
}

// ErrorWithGuidance returns an error result followed by recovery guidance.
func ErrorWithGuidance(message, guidance string) *mcp.CallToolResult {
	return mcp.NewToolResultError(fmt.Sprintf("Error: %s\n\nGuidance: %s", message, guidance))
}

// ErrorResult converts err into the structured JSON error result clients
// can switch on by code.
func ErrorResult(err error) *mcp.CallToolResult {
	return core.AsError(err).ToMCPResult()
}

// InvalidInputResponse explains a malformed argument object with an example
// call for the tool.
func InvalidInputResponse(toolName string, err error) *mcp.CallToolResult {
	return ErrorWithGuidance(
		fmt.Sprintf("Invalid input format: %v", err),
		"Example: "+GetToolUsageExample(toolName),
	)
}

const exampleBBox = `"bbox": {"min_lat": 51.5033, "min_lon": -0.1196, "max_lat": 51.5043, "max_lon": -0.1186}`

// GetToolUsageExample returns an example JSON snippet for using a specific tool
func GetToolUsageExample(toolName string) string {
	examples := map[string]string{
		"survey_feature_types": `{"set": "survey"}`,
		"survey_query_bbox":    `{` + exampleBBox + `, "feature_types": ["highway", "amenity"], "limit": 50}`,
		"survey_report":        `{` + exampleBBox + `}`,
		"survey_csv_rollup":    `{` + exampleBBox + `, "feature_types": ["highway", "barrier", "man_made"]}`,
		"survey_generate":      `{` + exampleBBox + `, "outputs": ["mach9", "map"]}`,
	}

	if example, exists := examples[toolName]; exists {
		return example
	}
	return `{` + exampleBBox + `}`
}
