package middleware

import (
	"bytes"
	"encoding/json"
	"slices"
)

// MethodToolsCall is the JSON-RPC method that invokes an MCP tool. It is the
// only method that requires the configured tool scopes.
const MethodToolsCall = "tools/call"

// Envelope is the part of a JSON-RPC message the gate looks at.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc,omitempty"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
}

// ParseEnvelopes parses body as a single JSON-RPC message or a batch.
// Bodies that are empty or not JSON yield no envelopes; parse failures are
// never reported as errors.
func ParseEnvelopes(body []byte) []Envelope {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil
	}

	if trimmed[0] == '[' {
		var batch []json.RawMessage
		if err := json.Unmarshal(trimmed, &batch); err != nil {
			return nil
		}
		envelopes := make([]Envelope, 0, len(batch))
		for _, raw := range batch {
			var env Envelope
			if err := json.Unmarshal(raw, &env); err == nil {
				envelopes = append(envelopes, env)
			}
		}
		return envelopes
	}

	var env Envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil
	}

	return []Envelope{env}
}

// RequiredScopes returns the scopes a request must be granted: the tool
// scopes when any envelope invokes a tool, otherwise none. The returned
// slice is never nil and never aliases toolScopes.
func RequiredScopes(envelopes []Envelope, toolScopes []string) []string {
	for _, env := range envelopes {
		if env.Method == MethodToolsCall {
			return append([]string{}, toolScopes...)
		}
	}

	return []string{}
}

// methods lists the envelope methods, for logging.
func methods(envelopes []Envelope) []string {
	out := make([]string, 0, len(envelopes))
	for _, env := range envelopes {
		if env.Method != "" && !slices.Contains(out, env.Method) {
			out = append(out, env.Method)
		}
	}

	return out
}
