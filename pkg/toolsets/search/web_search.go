package search

import (
	"context"
	"fmt"
	"strings"

	"payment-mcp/pkg/response"
	"payment-mcp/pkg/utils"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"
)

const (
	defaultLimit = 10
	maxLimit     = 50
)

// webSearchParams specifies the parameters of the web_search tool.
type webSearchParams struct {
	Query string `json:"query" jsonschema:"the search query"`
	Limit int    `json:"limit,omitempty" jsonschema:"the maximum number of results"`
}

// webSearch runs a search and returns the results as JSON text.
func (t *Tools) webSearch(ctx context.Context, toolReq *mcp.CallToolRequest, params webSearchParams) (*mcp.CallToolResult, any, error) {
	log := utils.NewChildLogger(toolReq, map[string]string{"query": params.Query})
	log.Debug("webSearch called")

	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, nil, fmt.Errorf("query cannot be empty")
	}

	limit := params.Limit
	switch {
	case limit <= 0:
		limit = defaultLimit
	case limit > maxLimit:
		limit = maxLimit
	}

	results, err := t.searcher.Search(ctx, query, limit)
	if err != nil {
		log.Error("search failed", zap.Error(err))
		return nil, nil, fmt.Errorf("search failed: %w", err)
	}
	if len(results) > limit {
		results = results[:limit]
	}

	mcpResponse, err := response.CreateMcpResponse(results, toolsSet)
	if err != nil {
		log.Error("failed to create mcp response", zap.Error(err))
		return nil, nil, err
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: mcpResponse}},
	}, nil, nil
}
