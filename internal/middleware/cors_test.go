package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCORSWithoutOrigin(t *testing.T) {
	next := &recordingHandler{}
	rr := httptest.NewRecorder()

	CORS(next).ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/mcp", nil))

	assert.True(t, next.called)
	assert.Empty(t, rr.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSSimpleRequest(t *testing.T) {
	next := &recordingHandler{}
	req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
	req.Header.Set("Origin", "https://inspector.example.com")
	rr := httptest.NewRecorder()

	CORS(next).ServeHTTP(rr, req)

	assert.True(t, next.called)
	assert.Equal(t, "https://inspector.example.com", rr.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rr.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "WWW-Authenticate, Mcp-Session-Id", rr.Header().Get("Access-Control-Expose-Headers"))
	assert.Contains(t, rr.Header().Values("Vary"), "Origin")
}

func TestCORSPreflight(t *testing.T) {
	next := &recordingHandler{}
	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	req.Header.Set("Origin", "https://inspector.example.com")
	req.Header.Set("Access-Control-Request-Method", "post")
	req.Header.Set("Access-Control-Request-Headers", "authorization, content-type, mcp-session-id")
	rr := httptest.NewRecorder()

	CORS(next).ServeHTTP(rr, req)

	assert.False(t, next.called)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "POST", rr.Header().Get("Access-Control-Allow-Methods"))
	assert.Equal(t, "authorization, content-type, mcp-session-id", rr.Header().Get("Access-Control-Allow-Headers"))
	assert.Equal(t, "600", rr.Header().Get("Access-Control-Max-Age"))
}

func TestCORSOptionsWithoutPreflightIsForwarded(t *testing.T) {
	next := &recordingHandler{}
	req := httptest.NewRequest(http.MethodOptions, "/mcp", nil)
	req.Header.Set("Origin", "https://inspector.example.com")
	rr := httptest.NewRecorder()

	CORS(next).ServeHTTP(rr, req)

	assert.True(t, next.called)
}
