package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"testing/iotest"

	"payment-mcp/internal/middleware/mocks"
	"payment-mcp/internal/validator"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

const (
	testIssuer              = "https://auth.example.com"
	testAudience            = "https://resource.example.com/mcp/"
	testResourceMetadataURL = "https://resource.example.com/.well-known/oauth-protected-resource/mcp"
	testScope               = "search:read"

	initializeBody = `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{}}`
	toolsCallBody  = `{"method":"tools/call","params":{"name":"web_search","arguments":{"query":"go"}}}`
)

func testGateConfig() GateConfig {
	return GateConfig{
		Issuer:              testIssuer,
		Audience:            []string{testAudience},
		ResourceMetadataURL: testResourceMetadataURL,
		ToolScopes:          []string{testScope},
		MountPath:           "/mcp",
	}
}

func expectedOptions(requiredScopes ...string) validator.Options {
	return validator.Options{
		Issuer:         testIssuer,
		Audience:       []string{testAudience},
		RequiredScopes: append([]string{}, requiredScopes...),
	}
}

// recordingHandler records what the downstream handler observed.
type recordingHandler struct {
	called     bool
	body       []byte
	secondRead []byte
	token      string
	scopes     []string
	length     int64
}

func (h *recordingHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.called = true
	h.token = Token(r.Context())
	h.scopes = Scopes(r.Context())
	h.length = r.ContentLength
	if r.Body != nil {
		h.body, _ = io.ReadAll(r.Body)
		h.secondRead, _ = io.ReadAll(r.Body)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func serve(t *testing.T, gate *Gate, next http.Handler, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	gate.Middleware(next).ServeHTTP(rr, req)

	return rr
}

func TestGateHealthCheckIsForwarded(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockValidator := mocks.NewMockTokenValidator(ctrl)
	next := &recordingHandler{}

	rr := serve(t, NewGate(testGateConfig(), mockValidator), next, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.True(t, next.called)
	assert.Empty(t, next.token)
	assert.Nil(t, next.scopes)
}

func TestGateAdmitsValidToken(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockValidator := mocks.NewMockTokenValidator(ctrl)
	mockValidator.EXPECT().Validate(gomock.Any(), "good-token", expectedOptions()).Return(nil).Times(1)
	next := &recordingHandler{}

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(initializeBody))
	req.Header.Set("Authorization", "Bearer good-token")
	req.Header.Set("Content-Type", "application/json")
	rr := serve(t, NewGate(testGateConfig(), mockValidator), next, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.True(t, next.called)
	assert.Equal(t, initializeBody, string(next.body))
	assert.Empty(t, next.secondRead)
	assert.Equal(t, int64(len(initializeBody)), next.length)
	assert.Equal(t, "good-token", next.token)
	assert.Equal(t, []string{}, next.scopes)
}

func TestGateRejectsMissingCredential(t *testing.T) {
	headers := map[string]string{
		"no header":    "",
		"wrong scheme": "Basic dXNlcjpwYXNz",
		"empty token":  "Bearer ",
		"no scheme":    "good-token",
	}

	for name, header := range headers {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			// No EXPECT: any call to the validator fails the test.
			mockValidator := mocks.NewMockTokenValidator(ctrl)
			next := &recordingHandler{}

			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(initializeBody))
			if header != "" {
				req.Header.Set("Authorization", header)
			}
			rr := serve(t, NewGate(testGateConfig(), mockValidator), next, req)

			assert.Equal(t, http.StatusUnauthorized, rr.Code)
			assert.False(t, next.called)
			assert.Equal(t, "application/json", rr.Header().Get("Content-Type"))
			assert.JSONEq(t, `{"error":"unauthorized","error_description":"Missing or invalid authorization header"}`, rr.Body.String())
			assert.Equal(t,
				`Bearer realm="OAuth", resource_metadata="`+testResourceMetadataURL+`"`,
				rr.Header().Get("WWW-Authenticate"))
		})
	}
}

func TestGateRejectsInsufficientScopeForToolsCall(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockValidator := mocks.NewMockTokenValidator(ctrl)
	mockValidator.EXPECT().
		Validate(gomock.Any(), "good-token", expectedOptions(testScope)).
		Return(errors.New("token lacks scope search:read (issued by https://auth.example.com)")).
		Times(1)
	next := &recordingHandler{}

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(toolsCallBody))
	req.Header.Set("Authorization", "Bearer good-token")
	rr := serve(t, NewGate(testGateConfig(), mockValidator), next, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, next.called)
	assert.JSONEq(t, `{"error":"unauthorized","error_description":"Token validation failed"}`, rr.Body.String())
	assert.NotContains(t, rr.Body.String(), "search:read")
	assert.NotEmpty(t, rr.Header().Get("WWW-Authenticate"))
}

func TestGateScopeDerivation(t *testing.T) {
	tests := map[string]struct {
		body       string
		wantScopes []string
	}{
		"tools/call":        {body: toolsCallBody, wantScopes: []string{testScope}},
		"initialize":        {body: initializeBody, wantScopes: []string{}},
		"malformed body":    {body: `{"method":`, wantScopes: []string{}},
		"empty body":        {body: "", wantScopes: []string{}},
		"binary body":       {body: "\x00\x01\x02", wantScopes: []string{}},
		"batch escalates":   {body: `[{"method":"initialize"},{"method":"tools/call"}]`, wantScopes: []string{testScope}},
		"batch of readonly": {body: `[{"method":"ping"},{"method":"tools/list"}]`, wantScopes: []string{}},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockValidator := mocks.NewMockTokenValidator(ctrl)
			mockValidator.EXPECT().
				Validate(gomock.Any(), "good-token", expectedOptions(test.wantScopes...)).
				Return(nil).
				Times(1)
			next := &recordingHandler{}

			req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(test.body))
			req.Header.Set("Authorization", "Bearer good-token")
			rr := serve(t, NewGate(testGateConfig(), mockValidator), next, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.Equal(t, test.body, string(next.body))
			assert.Equal(t, test.wantScopes, next.scopes)
		})
	}
}

func TestGateBypass(t *testing.T) {
	tests := map[string]*http.Request{
		"well-known with garbage credentials": func() *http.Request {
			req := httptest.NewRequest(http.MethodPost, "/.well-known/oauth-protected-resource", strings.NewReader("garbage"))
			req.Header.Set("Authorization", "Basic nope")
			return req
		}(),
		"GET on the mount point": httptest.NewRequest(http.MethodGet, "/mcp", nil),
		"POST outside the mount":  httptest.NewRequest(http.MethodPost, "/metrics", strings.NewReader(toolsCallBody)),
		"GET with a bearer token": func() *http.Request {
			req := httptest.NewRequest(http.MethodGet, "/mcp", nil)
			req.Header.Set("Authorization", "Bearer good-token")
			return req
		}(),
	}

	for name, req := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockValidator := mocks.NewMockTokenValidator(ctrl)
			next := &recordingHandler{}

			rr := serve(t, NewGate(testGateConfig(), mockValidator), next, req)

			assert.Equal(t, http.StatusOK, rr.Code)
			assert.True(t, next.called)
			assert.Empty(t, next.token)
		})
	}
}

func TestGateBypassLeavesBodyUntouched(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockValidator := mocks.NewMockTokenValidator(ctrl)
	next := &recordingHandler{}

	body := io.NopCloser(strings.NewReader("original"))
	req := httptest.NewRequest(http.MethodPost, "/.well-known/oauth-protected-resource", nil)
	req.Body = body

	serve(t, NewGate(testGateConfig(), mockValidator), next, req)

	assert.Equal(t, "original", string(next.body))
}

func TestGateValidatorPanicIsInvalidCredential(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockValidator := mocks.NewMockTokenValidator(ctrl)
	mockValidator.EXPECT().
		Validate(gomock.Any(), gomock.Any(), gomock.Any()).
		DoAndReturn(func(context.Context, string, validator.Options) error {
			panic("authorization server client exploded")
		}).
		Times(1)
	next := &recordingHandler{}

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(initializeBody))
	req.Header.Set("Authorization", "Bearer good-token")
	rr := serve(t, NewGate(testGateConfig(), mockValidator), next, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.False(t, next.called)
	assert.JSONEq(t, `{"error":"unauthorized","error_description":"Token validation failed"}`, rr.Body.String())
}

type panicReader struct{}

func (panicReader) Read([]byte) (int, error) {
	panic("broken stream")
}

func TestGateInternalFault(t *testing.T) {
	tests := map[string]io.Reader{
		"body read error": iotest.ErrReader(errors.New("connection reset by peer")),
		"body too large":  bytes.NewReader(make([]byte, 64)),
		"panic in gate":   panicReader{},
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			mockValidator := mocks.NewMockTokenValidator(ctrl)
			next := &recordingHandler{}

			cfg := testGateConfig()
			cfg.MaxBodyBytes = 32
			req := httptest.NewRequest(http.MethodPost, "/mcp", nil)
			req.Body = io.NopCloser(body)
			req.Header.Set("Authorization", "Bearer good-token")
			rr := serve(t, NewGate(cfg, mockValidator), next, req)

			assert.Equal(t, http.StatusInternalServerError, rr.Code)
			assert.False(t, next.called)
			assert.Empty(t, rr.Header().Get("WWW-Authenticate"))
			assert.JSONEq(t, `{"error":"internal_server_error","error_description":"An unexpected error occurred"}`, rr.Body.String())
		})
	}
}

func TestGateMaxInt64BodyLimitKeepsBody(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockValidator := mocks.NewMockTokenValidator(ctrl)
	mockValidator.EXPECT().Validate(gomock.Any(), "good-token", expectedOptions(testScope)).Return(nil).Times(1)
	next := &recordingHandler{}

	cfg := testGateConfig()
	cfg.MaxBodyBytes = math.MaxInt64
	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(toolsCallBody))
	req.Header.Set("Authorization", "Bearer good-token")
	rr := serve(t, NewGate(cfg, mockValidator), next, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, toolsCallBody, string(next.body))
}

func TestGateWithoutValidatorIsInternalFault(t *testing.T) {
	next := &recordingHandler{}

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(initializeBody))
	req.Header.Set("Authorization", "Bearer good-token")
	rr := serve(t, NewGate(testGateConfig(), nil), next, req)

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.False(t, next.called)
}

func TestGateChallengeWithoutResourceMetadataURL(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockValidator := mocks.NewMockTokenValidator(ctrl)

	cfg := testGateConfig()
	cfg.ResourceMetadataURL = ""
	rr := serve(t, NewGate(cfg, mockValidator), &recordingHandler{},
		httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(initializeBody)))

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	assert.Equal(t, `Bearer realm="OAuth"`, rr.Header().Get("WWW-Authenticate"))
}

func TestGateConfigIsCopied(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockValidator := mocks.NewMockTokenValidator(ctrl)
	mockValidator.EXPECT().Validate(gomock.Any(), "good-token", expectedOptions(testScope)).Return(nil).Times(1)

	cfg := testGateConfig()
	gate := NewGate(cfg, mockValidator)
	cfg.ToolScopes[0] = "changed"
	cfg.Audience[0] = "changed"

	req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(toolsCallBody))
	req.Header.Set("Authorization", "Bearer good-token")
	rr := serve(t, gate, &recordingHandler{}, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}

func TestAuthorize(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockValidator := mocks.NewMockTokenValidator(ctrl)
	gate := NewGate(testGateConfig(), mockValidator)

	outcome := gate.Authorize(t.Context(), "", []string{testScope})
	require.False(t, outcome.Admitted)
	assert.Equal(t, CategoryMissingCredential, outcome.Rejection.Category)

	mockValidator.EXPECT().Validate(gomock.Any(), "good-token", expectedOptions(testScope)).Return(nil)
	outcome = gate.Authorize(t.Context(), "good-token", []string{testScope})
	assert.True(t, outcome.Admitted)
	assert.Nil(t, outcome.Rejection)

	mockValidator.EXPECT().Validate(gomock.Any(), "bad-token", expectedOptions()).Return(errors.New("expired"))
	outcome = gate.Authorize(t.Context(), "bad-token", nil)
	require.False(t, outcome.Admitted)
	assert.Equal(t, CategoryInvalidCredential, outcome.Rejection.Category)
	assert.Equal(t, http.StatusUnauthorized, outcome.Rejection.Status())
}

func TestGateMetrics(t *testing.T) {
	ctrl := gomock.NewController(t)
	mockValidator := mocks.NewMockTokenValidator(ctrl)
	mockValidator.EXPECT().Validate(gomock.Any(), "good-token", gomock.Any()).Return(nil)
	mockValidator.EXPECT().Validate(gomock.Any(), "bad-token", gomock.Any()).Return(errors.New("expired"))

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	gate := NewGate(testGateConfig(), mockValidator, WithMetrics(metrics))

	post := func(token string) {
		req := httptest.NewRequest(http.MethodPost, "/mcp", strings.NewReader(initializeBody))
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		serve(t, gate, &recordingHandler{}, req)
	}
	post("good-token")
	post("bad-token")
	post("")
	serve(t, gate, &recordingHandler{}, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.decisions.WithLabelValues(decisionAdmitted, "")))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.decisions.WithLabelValues(decisionRejected, CategoryInvalidCredential)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.decisions.WithLabelValues(decisionRejected, CategoryMissingCredential)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.decisions.WithLabelValues(decisionBypassed, "")))
	assert.Equal(t, 2, testutil.CollectAndCount(metrics.validationDuration))
}
