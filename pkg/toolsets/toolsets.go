package toolsets

import (
	"payment-mcp/pkg/toolsets/search"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// toolsAdder is an interface for types that can add tools to an MCP server.
type toolsAdder interface {
	AddTools(mcpServer *mcp.Server)
}

// Backends holds the services the toolsets are built on.
type Backends struct {
	Searcher search.Searcher
}

// AddAllTools adds all available tools to the MCP server.
func AddAllTools(backends Backends, mcpServer *mcp.Server) {
	for _, ta := range allToolSets(backends) {
		ta.AddTools(mcpServer)
	}
}

func allToolSets(backends Backends) []toolsAdder {
	return []toolsAdder{
		search.NewTools(backends.Searcher),
	}
}
