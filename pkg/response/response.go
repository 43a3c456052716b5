package response

import (
	"encoding/json"
	"fmt"
)

// noResults is returned to the LLM instead of an empty list.
const noResults = "no results found"

// MCPResponse represents the response returned by the MCP server
type MCPResponse struct {
	// LLM response to be sent to the LLM
	LLM any `json:"llm"`
	// Count is the number of items in LLM.
	Count int `json:"count"`
	// Source names the backend that produced the items.
	Source string `json:"source,omitempty"`
}

// CreateMcpResponse marshals items into the JSON text returned by tools.
func CreateMcpResponse[T any](items []T, source string) (string, error) {
	resp := MCPResponse{
		Count:  len(items),
		Source: source,
	}
	if len(items) > 0 {
		resp.LLM = items
	} else {
		resp.LLM = noResults
	}

	bytes, err := json.Marshal(resp)
	if err != nil {
		return "", fmt.Errorf("failed to marshal response: %w", err)
	}

	return string(bytes), nil
}
