package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"payment-mcp/internal/validator"

	"go.uber.org/zap"
)

//go:generate go tool -modfile=../../gotools/mockgen/go.mod mockgen -destination=mocks/validator.go -package=mocks payment-mcp/internal/middleware TokenValidator

// TokenValidator validates a bearer token. It is implemented by the
// validators in the validator package.
type TokenValidator interface {
	Validate(ctx context.Context, token string, opts validator.Options) error
}

// GateConfig holds the static configuration of the authorization gate.
type GateConfig struct {
	// Issuer is the expected token issuer.
	Issuer string

	// Audience holds the accepted token audiences.
	Audience []string

	// ResourceMetadataURL is advertised in the WWW-Authenticate challenge.
	// https://modelcontextprotocol.io/specification/draft/basic/authorization#protected-resource-metadata-discovery-requirements
	ResourceMetadataURL string

	// ToolScopes must be granted to tokens invoking tools/call. May be empty.
	ToolScopes []string

	// MountPath is the path of the protected MCP endpoint, e.g. "/mcp".
	MountPath string

	// MaxBodyBytes bounds the buffered request body. Zero selects
	// DefaultMaxBodyBytes, a negative value disables the bound.
	MaxBodyBytes int64
}

// Gate is the authorization gate in front of the MCP endpoint.
type Gate struct {
	cfg       GateConfig
	validator TokenValidator
	metrics   *Metrics
}

// GateOption configures optional Gate behaviour.
type GateOption func(*Gate)

// WithMetrics records gate decisions in m.
func WithMetrics(m *Metrics) GateOption {
	return func(g *Gate) {
		g.metrics = m
	}
}

// NewGate creates a Gate delegating token validation to v.
func NewGate(cfg GateConfig, v TokenValidator, opts ...GateOption) *Gate {
	if cfg.MaxBodyBytes == 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	cfg.Audience = append([]string(nil), cfg.Audience...)
	cfg.ToolScopes = append([]string(nil), cfg.ToolScopes...)

	g := &Gate{cfg: cfg, validator: v}
	for _, opt := range opts {
		opt(g)
	}

	return g
}

// Outcome is the result of token validation.
type Outcome struct {
	Admitted  bool
	Rejection *Rejection
}

// requestState is owned by the goroutine serving a single request.
type requestState struct {
	req    *http.Request
	token  string
	body   *BufferedBody
	scopes []string
}

// stage is one step of the authorization pipeline. A non-nil Rejection
// ends the pipeline with that response.
type stage func(st *requestState) *Rejection

// Middleware returns a handler that authorizes requests before passing them
// to next.
func (g *Gate) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Classify(r.Method, r.URL.Path, g.cfg.MountPath) == Bypass {
			zap.L().Debug("Authorization bypassed", zap.String("method", r.Method), zap.String("path", r.URL.Path))
			g.metrics.decision(decisionBypassed, "")
			next.ServeHTTP(w, r)
			return
		}

		admitted, rejection := g.run(r)
		if rejection != nil {
			g.reject(w, r, rejection)
			return
		}

		g.metrics.decision(decisionAdmitted, "")
		next.ServeHTTP(w, admitted)
	})
}

// run drives the pipeline. It returns the request to forward, with the
// buffered body installed, or the rejection ending the pipeline. Panics in
// any stage become an internal fault.
func (g *Gate) run(r *http.Request) (admitted *http.Request, rejection *Rejection) {
	defer func() {
		if p := recover(); p != nil {
			admitted = nil
			rejection = internalFault(fmt.Errorf("panic in authorization gate: %v", p))
		}
	}()

	st := &requestState{req: r}
	for _, step := range []stage{
		g.extractCredential,
		g.captureBody,
		g.resolveScopes,
		g.validate,
	} {
		if rej := step(st); rej != nil {
			return nil, rej
		}
	}

	return st.restore(), nil
}

func (g *Gate) extractCredential(st *requestState) *Rejection {
	token, ok := ExtractBearer(st.req.Header)
	if !ok {
		return missingCredential()
	}
	st.token = token

	return nil
}

func (g *Gate) captureBody(st *requestState) *Rejection {
	var limit int64
	if g.cfg.MaxBodyBytes > 0 {
		limit = g.cfg.MaxBodyBytes
	}

	body, err := CaptureBody(st.req.Body, limit)
	if err != nil {
		return internalFault(fmt.Errorf("reading request body: %w", err))
	}
	st.body = body
	zap.L().Debug("Buffered request body", zap.String("path", st.req.URL.Path), zap.Int("bodyLength", body.Len()))

	return nil
}

func (g *Gate) resolveScopes(st *requestState) *Rejection {
	envelopes := ParseEnvelopes(st.body.data)
	st.scopes = RequiredScopes(envelopes, g.cfg.ToolScopes)
	zap.L().Debug("Resolved required scopes",
		zap.Strings("methods", methods(envelopes)),
		zap.Strings("scopes", st.scopes))

	return nil
}

func (g *Gate) validate(st *requestState) *Rejection {
	outcome := g.Authorize(st.req.Context(), st.token, st.scopes)
	if !outcome.Admitted {
		return outcome.Rejection
	}

	return nil
}

// Authorize validates token with the configured issuer and audience and the
// given required scopes. Every validator failure, including a panic, becomes
// an invalid_credential rejection. The validator is called at most once.
func (g *Gate) Authorize(ctx context.Context, token string, requiredScopes []string) Outcome {
	if token == "" {
		return Outcome{Rejection: missingCredential()}
	}
	if g.validator == nil {
		return Outcome{Rejection: internalFault(fmt.Errorf("no token validator configured"))}
	}

	opts := validator.Options{
		Issuer:         g.cfg.Issuer,
		Audience:       append([]string(nil), g.cfg.Audience...),
		RequiredScopes: append([]string{}, requiredScopes...),
	}

	start := time.Now()
	err := g.callValidator(ctx, token, opts)
	g.metrics.validation(start, err)
	if err != nil {
		return Outcome{Rejection: invalidCredential(err)}
	}

	return Outcome{Admitted: true}
}

func (g *Gate) callValidator(ctx context.Context, token string, opts validator.Options) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("validator panic: %v", p)
		}
	}()

	return g.validator.Validate(ctx, token, opts)
}

// restore returns the request handed downstream: the same request with the
// buffered body replayed and the authorization results in its context.
func (st *requestState) restore() *http.Request {
	ctx := WithScopes(WithToken(st.req.Context(), st.token), st.scopes)
	req := st.req.Clone(ctx)

	req.Body = st.body.Replay()
	req.ContentLength = int64(st.body.Len())
	if req.Header.Get("Content-Length") != "" {
		req.Header.Set("Content-Length", strconv.Itoa(st.body.Len()))
	}
	req.GetBody = nil

	return req
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, rejection *Rejection) {
	fields := []zap.Field{
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("category", rejection.Category),
	}

	switch rejection.Category {
	case CategoryInternalFault:
		zap.L().Error("Unexpected error in authorization gate", append(fields, zap.Error(rejection.cause))...)
		g.metrics.decision(decisionFault, rejection.Category)
	case CategoryInvalidCredential:
		zap.L().Error("Token validation failed", append(fields, zap.Error(rejection.cause))...)
		g.metrics.decision(decisionRejected, rejection.Category)
	default:
		zap.L().Warn("Request rejected", append(fields, zap.String("detail", rejection.Detail))...)
		g.metrics.decision(decisionRejected, rejection.Category)
	}

	rejection.write(w, g.cfg.ResourceMetadataURL)
}
