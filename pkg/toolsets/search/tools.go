package search

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const (
	toolsSet    = "search"
	toolsSetAnn = "toolset"
)

// Result is a single search hit.
type Result struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Snippet string `json:"snippet,omitempty"`
}

// Searcher runs searches for the web_search tool.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}

// emptySearcher is used when no search backend is configured.
type emptySearcher struct{}

func (emptySearcher) Search(context.Context, string, int) ([]Result, error) {
	return nil, nil
}

// Tools contains the search tools for the MCP server
type Tools struct {
	searcher Searcher
}

// NewTools creates the search tools backed by searcher. A nil searcher
// returns no results.
func NewTools(searcher Searcher) *Tools {
	if searcher == nil {
		searcher = emptySearcher{}
	}

	return &Tools{searcher: searcher}
}

// AddTools registers the search tools with the provided MCP server.
// Calling any of them requires the configured tool scopes.
func (t *Tools) AddTools(mcpServer *mcp.Server) {
	mcp.AddTool(mcpServer, &mcp.Tool{
		Name: "web_search",
		Meta: map[string]any{
			toolsSetAnn: toolsSet,
		},
		Description: `Searches the web and returns the matching pages.
		Parameters:
		query (string, required): The search query.
		limit (integer, optional): The maximum number of results. Defaults to 10.

		Returns:
		A JSON list of results with title, url and snippet.`},
		t.webSearch)
}
