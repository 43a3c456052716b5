package middleware

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		method string
		path   string
		want   Decision
	}{
		{name: "protected resource metadata", method: http.MethodPost, path: "/.well-known/oauth-protected-resource/mcp", want: Bypass},
		{name: "authorization server metadata", method: http.MethodDelete, path: "/.well-known/oauth-authorization-server", want: Bypass},
		{name: "GET on the mount point", method: http.MethodGet, path: "/mcp", want: Bypass},
		{name: "GET health check", method: http.MethodGet, path: "/", want: Bypass},
		{name: "POST outside the mount point", method: http.MethodPost, path: "/metrics", want: Bypass},
		{name: "POST to a path sharing the mount prefix", method: http.MethodPost, path: "/mcpx", want: Bypass},
		{name: "POST to the mount point", method: http.MethodPost, path: "/mcp", want: Enforce},
		{name: "POST below the mount point", method: http.MethodPost, path: "/mcp/messages", want: Enforce},
		{name: "POST to the mount point with trailing slash", method: http.MethodPost, path: "/mcp/", want: Enforce},
		{name: "DELETE session", method: http.MethodDelete, path: "/mcp", want: Enforce},
		{name: "HEAD is not exempt", method: http.MethodHead, path: "/mcp", want: Enforce},
		{name: "lowercase get is not the GET verb", method: "get", path: "/mcp", want: Enforce},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.method, tt.path, "/mcp"))
		})
	}
}

func TestClassifyMountPath(t *testing.T) {
	assert.Equal(t, Enforce, Classify(http.MethodPost, "/mcp", "/mcp/"))
	assert.Equal(t, Enforce, Classify(http.MethodPost, "/anything", ""))
	assert.Equal(t, Enforce, Classify(http.MethodPost, "/anything", "/"))
	assert.Equal(t, Bypass, Classify(http.MethodPost, "/.well-known/x", ""))
}

func TestDecisionString(t *testing.T) {
	assert.Equal(t, "bypass", Bypass.String())
	assert.Equal(t, "enforce", Enforce.String())
}
