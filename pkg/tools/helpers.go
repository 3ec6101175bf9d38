package tools

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
)

// InputParser is a generic function to parse request arguments into a strongly typed struct
func InputParser[T any](req mcp.CallToolRequest) (T, error) {
	var input T

	inputJSON, err := json.Marshal(req.GetArguments())
	if err != nil {
		return input, err
	}
	if err := json.Unmarshal(inputJSON, &input); err != nil {
		return input, err
	}
	return input, nil
}

// WithParsedInput is a higher-order function that handles request parsing,
// error conversion and JSON encoding of the result.
func WithParsedInput[T any](
	handlerName string,
	handler func(ctx context.Context, input T, logger *slog.Logger) (any, error),
) ToolHandler {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		logger := slog.Default().With("tool", handlerName)

		input, err := InputParser[T](req)
		if err != nil {
			logger.Error("failed to parse input", "error", err)
			return InvalidInputResponse(handlerName, err), nil
		}

		result, err := handler(ctx, input, logger)
		if err != nil {
			logger.Error("handler error", "error", err)
			return ErrorResult(err), nil
		}

		if text, ok := result.(string); ok {
			return mcp.NewToolResultText(text), nil
		}
		resultBytes, err := json.Marshal(result)
		if err != nil {
			logger.Error("failed to marshal result", "error", err)
			return ErrorResponse("Failed to generate result"), nil
		}
		return mcp.NewToolResultText(string(resultBytes)), nil
	}
}
