package utils

import (
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

// NewChildLogger returns the global logger annotated with the tool name, the
// MCP session and the given extra fields.
func NewChildLogger(toolReq *mcp.CallToolRequest, extras map[string]string) *zap.Logger {
	args := []zap.Field{}
	if toolReq != nil && toolReq.Params != nil {
		args = append(args, zap.String("tool", toolReq.Params.Name))
	}
	if toolReq != nil && toolReq.Session != nil && toolReq.Session.ID() != "" {
		args = append(args, zap.String("mcpSessionID", toolReq.Session.ID()))
	}
	for k, v := range extras {
		args = append(args, zap.String(k, v))
	}

	return zap.L().With(args...)
}
