package validator

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// expirationLeeway defines the allowed clock skew when validating token expiration.
const expirationLeeway = 10 * time.Second

// signingMethod defines the JWT signing algorithm accepted by this server.
const signingMethod = "RS256"

// JWKSValidator validates JWT access tokens using the authorization server's
// JSON Web Key Set. The key set is refreshed in the background by keyfunc.
type JWKSValidator struct {
	jwks keyfunc.Keyfunc
}

// NewJWKSValidator fetches the key set from jwksURL and returns a validator
// using it. insecureTLS disables TLS verification and should ONLY be used for
// testing purposes.
func NewJWKSValidator(ctx context.Context, jwksURL string, insecureTLS bool) (*JWKSValidator, error) {
	if jwksURL == "" {
		return nil, fmt.Errorf("JWKS URL cannot be empty")
	}

	var override keyfunc.Override
	if insecureTLS {
		tr := &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
		override.Client = &http.Client{Transport: tr}
	}
	jwks, err := keyfunc.NewDefaultOverrideCtx(ctx, []string{jwksURL}, override)
	if err != nil {
		return nil, fmt.Errorf("failed to create JWKS client: %w", err)
	}
	zap.L().Info("Initialized JWKS", zap.String("jwksURL", jwksURL))

	return &JWKSValidator{jwks: jwks}, nil
}

// Validate checks the signature, expiry, issuer, audience and scopes of token.
func (v *JWKSValidator) Validate(_ context.Context, tokenString string, opts Options) error {
	parserOpts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{signingMethod}),
		jwt.WithLeeway(expirationLeeway),
		jwt.WithExpirationRequired(),
	}
	if opts.Issuer != "" {
		parserOpts = append(parserOpts, jwt.WithIssuer(opts.Issuer))
	}

	token, err := jwt.Parse(tokenString, v.jwks.Keyfunc, parserOpts...)
	if err != nil {
		return fmt.Errorf("%w: %w", errInvalidToken, err)
	}
	if !token.Valid {
		return errInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return fmt.Errorf("%w: unexpected claims type", errInvalidToken)
	}

	audience, err := claims.GetAudience()
	if err != nil {
		return fmt.Errorf("%w: %w", errAudienceMismatch, err)
	}
	if err := checkAudience(audience, opts.Audience); err != nil {
		return err
	}

	return checkScopes(grantedScopes(claims), opts.RequiredScopes)
}

func grantedScopes(claims jwt.MapClaims) []string {
	if scopes := scopesFromClaim(claims["scope"]); len(scopes) > 0 {
		return scopes
	}

	return scopesFromClaim(claims["scopes"])
}
