package validator

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"payment-mcp/pkg/version"
)

// defaultIntrospectionTimeout bounds a single introspection round trip when
// the caller's context has no deadline of its own.
const defaultIntrospectionTimeout = 10 * time.Second

// maxIntrospectionResponse bounds the introspection response body.
const maxIntrospectionResponse = 1 << 20

// IntrospectionValidator validates opaque or JWT access tokens by asking the
// authorization server (RFC 7662). The request is authenticated with the
// client credentials of this resource server.
type IntrospectionValidator struct {
	endpoint     string
	clientID     string
	clientSecret string
	client       *http.Client
}

// introspectionResponse holds the RFC 7662 response fields the validator uses.
type introspectionResponse struct {
	Active   bool            `json:"active"`
	Scope    string          `json:"scope"`
	Issuer   string          `json:"iss"`
	Audience json.RawMessage `json:"aud"`
}

// NewIntrospectionValidator returns a validator calling the introspection
// endpoint with the given client credentials.
func NewIntrospectionValidator(endpoint, clientID, clientSecret string, insecureTLS bool) (*IntrospectionValidator, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("introspection URL cannot be empty")
	}
	if clientID == "" || clientSecret == "" {
		return nil, fmt.Errorf("introspection requires client credentials")
	}

	client := &http.Client{Timeout: defaultIntrospectionTimeout}
	if insecureTLS {
		client.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}

	return &IntrospectionValidator{
		endpoint:     endpoint,
		clientID:     clientID,
		clientSecret: clientSecret,
		client:       client,
	}, nil
}

// Validate introspects token and checks the response against opts.
func (v *IntrospectionValidator) Validate(ctx context.Context, token string, opts Options) error {
	form := url.Values{}
	form.Set("token", token)
	form.Set("token_type_hint", "access_token")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating introspection request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", version.UserAgent())
	req.SetBasicAuth(url.QueryEscape(v.clientID), url.QueryEscape(v.clientSecret))

	resp, err := v.client.Do(req)
	if err != nil {
		return fmt.Errorf("introspection request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("introspection endpoint returned status %d", resp.StatusCode)
	}

	var result introspectionResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxIntrospectionResponse)).Decode(&result); err != nil {
		return fmt.Errorf("decoding introspection response: %w", err)
	}

	if !result.Active {
		return errInactiveToken
	}
	if opts.Issuer != "" && result.Issuer != "" && result.Issuer != opts.Issuer {
		return errIssuerMismatch
	}
	if err := checkAudience(result.audience(), opts.Audience); err != nil {
		return err
	}

	return checkScopes(strings.Fields(result.Scope), opts.RequiredScopes)
}

// audience decodes the aud member which may be a single string or an array.
func (r introspectionResponse) audience() []string {
	if len(r.Audience) == 0 {
		return nil
	}

	var single string
	if err := json.Unmarshal(r.Audience, &single); err == nil {
		return []string{single}
	}

	var many []string
	if err := json.Unmarshal(r.Audience, &many); err == nil {
		return many
	}

	return nil
}
