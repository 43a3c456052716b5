// Package validator implements the bearer token validators used by the MCP
// authorization gate.
//
// Two validators are provided:
//   - JWKSValidator verifies RS256 signed JWTs against the authorization
//     server's JSON Web Key Set.
//   - IntrospectionValidator asks the authorization server about the token
//     using OAuth 2.0 Token Introspection (RFC 7662), authenticating with the
//     configured client credentials.
//
// Both are usually wrapped in a Lazy validator so that the authorization
// server is only contacted when the first protected request arrives.
package validator

import (
	"context"
	"errors"
	"slices"
	"strings"
)

var (
	errInvalidToken      = errors.New("invalid token")
	errIssuerMismatch    = errors.New("issuer mismatch")
	errAudienceMismatch  = errors.New("audience mismatch")
	errInsufficientScope = errors.New("insufficient scope")
	errInactiveToken     = errors.New("token is not active")
)

// Options describes what a token has to satisfy to be accepted.
type Options struct {
	// Issuer is the expected token issuer.
	Issuer string

	// Audience holds the accepted audiences. The token must be issued for at
	// least one of them.
	Audience []string

	// RequiredScopes must all be granted to the token. An empty list means no
	// scope restriction beyond a valid token.
	RequiredScopes []string
}

// Validator validates a bearer token against a set of Options.
type Validator interface {
	Validate(ctx context.Context, token string, opts Options) error
}

// checkAudience reports whether any of the token audiences is accepted.
func checkAudience(tokenAudience, accepted []string) error {
	if len(accepted) == 0 {
		return nil
	}
	for _, aud := range tokenAudience {
		if slices.Contains(accepted, aud) {
			return nil
		}
	}

	return errAudienceMismatch
}

// checkScopes reports whether every required scope was granted.
func checkScopes(granted, required []string) error {
	for _, scope := range required {
		if !slices.Contains(granted, scope) {
			return errInsufficientScope
		}
	}

	return nil
}

// scopesFromClaim converts the different encodings of the scope claim into a
// list: a space delimited string (RFC 8693) or a JSON array.
func scopesFromClaim(claim any) []string {
	switch v := claim.(type) {
	case string:
		return strings.Fields(v)
	case []string:
		return v
	case []any:
		scopes := make([]string, 0, len(v))
		for _, s := range v {
			if str, ok := s.(string); ok {
				scopes = append(scopes, str)
			}
		}
		return scopes
	default:
		return nil
	}
}
