// Package middleware provides MCP protocol-level middleware.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const methodToolsCall = "tools/call"

// MCPToolLoggingMiddleware creates MCP protocol-level middleware that logs
// every tool call with its duration and outcome. Non-tool methods pass
// through unlogged.
func MCPToolLoggingMiddleware(logger *slog.Logger) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != methodToolsCall {
				return next(ctx, method, req)
			}

			tool := extractToolName(req)

			start := time.Now()
			result, err := next(ctx, method, req)
			duration := time.Since(start)

			attrs := []any{
				"tool", tool,
				"duration", duration,
			}
			switch {
			case err != nil:
				logger.Error("tool call failed", append(attrs, "error", err)...)
			case isErrorResult(result):
				logger.Warn("tool call returned error result", attrs...)
			default:
				logger.Info("tool call completed", attrs...)
			}
			return result, err
		}
	}
}

// extractToolName pulls the tool name out of a tools/call request. Returns
// an empty string when the request carries no usable params.
func extractToolName(req mcp.Request) string {
	params, ok := req.GetParams().(*mcp.CallToolParamsRaw)
	if !ok || params == nil {
		return ""
	}
	return params.Name
}

func isErrorResult(result mcp.Result) bool {
	ctr, ok := result.(*mcp.CallToolResult)
	return ok && ctr != nil && ctr.IsError
}
