package tools

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func resultText(result *mcp.CallToolResult) string {
	for _, c := range result.Content {
		if text, ok := c.(mcp.TextContent); ok {
			return text.Text
		}
	}
	return ""
}

func assertErrorResult(t *testing.T, result *mcp.CallToolResult, message string) {
	t.Helper()
	if result == nil || !result.IsError {
		t.Error(message)
	}
}

func assertSuccessResult(t *testing.T, result *mcp.CallToolResult, message string) {
	t.Helper()
	if result != nil && result.IsError {
		t.Errorf("%s. Got error: %s", message, resultText(result))
	}
}

// parseResultJSON decodes the first text content of a tool result.
func parseResultJSON(result *mcp.CallToolResult, out any) error {
	return json.Unmarshal([]byte(resultText(result)), out)
}
