// Package config holds the server configuration.
//
// Settings come from command line flags, environment variables and an
// optional dotenv file, in that order of precedence. The cmd package binds
// all three sources to a viper instance; FromViper reads the result.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/oauthex"
	"github.com/spf13/viper"
)

// Viper keys.
const (
	KeyIssuerURL           = "issuer-url"
	KeyAudience            = "audience"
	KeyClientID            = "client-id"
	KeyClientSecret        = "client-secret"
	KeyResourceMetadataURL = "resource-metadata-url"
	KeyToolScope           = "tool-scope"
	KeyMetadataJSON        = "metadata-json"
	KeyPort                = "port"
	KeyValidationMode      = "validation-mode"
	KeyJWKSURL             = "jwks-url"
	KeyIntrospectionURL    = "introspection-url"
	KeyMountPath           = "mount-path"
	KeyMaxBodyBytes        = "max-body-bytes"
	KeyInsecure            = "insecure"
	KeyTLS                 = "tls"
)

// Token validation modes.
const (
	ValidationModeJWKS          = "jwks"
	ValidationModeIntrospection = "introspection"
)

// Defaults.
const (
	DefaultPort           = 8080
	DefaultMountPath      = "/mcp"
	DefaultMaxBodyBytes   = 10 << 20
	DefaultValidationMode = ValidationModeJWKS
)

// Config is the server configuration.
type Config struct {
	IssuerURL           string
	Audience            string
	ClientID            string
	ClientSecret        string
	ResourceMetadataURL string
	// ToolScope is the comma separated list of scopes required for tools/call.
	ToolScope string
	// MetadataJSON is the protected resource metadata document served as is.
	MetadataJSON string

	Port             int
	ValidationMode   string
	JWKSURL          string
	IntrospectionURL string
	MountPath        string
	MaxBodyBytes     int64
	Insecure         bool
	TLS              bool
}

// SetDefaults registers the defaults of the optional settings in v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyPort, DefaultPort)
	v.SetDefault(KeyMountPath, DefaultMountPath)
	v.SetDefault(KeyMaxBodyBytes, DefaultMaxBodyBytes)
	v.SetDefault(KeyValidationMode, DefaultValidationMode)
}

// FromViper reads the configuration from v. String values are trimmed.
func FromViper(v *viper.Viper) Config {
	str := func(key string) string {
		return strings.TrimSpace(v.GetString(key))
	}

	return Config{
		IssuerURL:           strings.TrimRight(str(KeyIssuerURL), "/"),
		Audience:            str(KeyAudience),
		ClientID:            str(KeyClientID),
		ClientSecret:        str(KeyClientSecret),
		ResourceMetadataURL: str(KeyResourceMetadataURL),
		ToolScope:           str(KeyToolScope),
		MetadataJSON:        str(KeyMetadataJSON),
		Port:                v.GetInt(KeyPort),
		ValidationMode:      strings.ToLower(str(KeyValidationMode)),
		JWKSURL:             str(KeyJWKSURL),
		IntrospectionURL:    str(KeyIntrospectionURL),
		MountPath:           str(KeyMountPath),
		MaxBodyBytes:        v.GetInt64(KeyMaxBodyBytes),
		Insecure:            v.GetBool(KeyInsecure),
		TLS:                 v.GetBool(KeyTLS),
	}
}

// Validate checks that every required setting is present. All missing
// settings are reported at once, sorted by environment variable name.
func (c Config) Validate() error {
	required := map[string]string{
		"AUTH_ISSUER_URL":            c.IssuerURL,
		"AUTH_AUDIENCE":              c.Audience,
		"AUTH_CLIENT_ID":             c.ClientID,
		"AUTH_CLIENT_SECRET":         c.ClientSecret,
		"AUTH_RESOURCE_METADATA_URL": c.ResourceMetadataURL,
	}

	var missing []string
	for env, value := range required {
		if value == "" {
			missing = append(missing, env)
		}
	}
	slices.Sort(missing)

	var errs []error
	if len(missing) > 0 {
		errs = append(errs, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", ")))
	}
	switch c.ValidationMode {
	case ValidationModeJWKS, ValidationModeIntrospection:
	default:
		errs = append(errs, fmt.Errorf("unknown validation mode %q, expected %q or %q",
			c.ValidationMode, ValidationModeJWKS, ValidationModeIntrospection))
	}
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("invalid port %d", c.Port))
	}

	return errors.Join(errs...)
}

// ToolScopes returns the scopes required for tools/call. Blank entries are
// dropped; the result is never nil.
func (c Config) ToolScopes() []string {
	return splitList(c.ToolScope)
}

// Audiences returns the accepted token audiences. AUTH_AUDIENCE may hold a
// comma separated list.
func (c Config) Audiences() []string {
	return splitList(c.Audience)
}

// JWKSEndpoint returns the JWKS URL, defaulting to <issuer>/keys.
func (c Config) JWKSEndpoint() string {
	if c.JWKSURL != "" {
		return c.JWKSURL
	}

	return c.IssuerURL + "/keys"
}

// IntrospectionEndpoint returns the token introspection URL, defaulting to
// <issuer>/oauth/introspect.
func (c Config) IntrospectionEndpoint() string {
	if c.IntrospectionURL != "" {
		return c.IntrospectionURL
	}

	return c.IssuerURL + "/oauth/introspect"
}

// FallbackMetadata is the protected resource metadata served when no
// metadata document is configured.
func (c Config) FallbackMetadata() oauthex.ProtectedResourceMetadata {
	metadata := oauthex.ProtectedResourceMetadata{
		Resource:               c.Audience,
		BearerMethodsSupported: []string{"header"},
		ScopesSupported:        c.ToolScopes(),
	}
	if audiences := c.Audiences(); len(audiences) > 0 {
		metadata.Resource = audiences[0]
	}
	if c.IssuerURL != "" {
		metadata.AuthorizationServers = []string{c.IssuerURL}
	}

	return metadata
}

func splitList(s string) []string {
	items := []string{}
	for item := range strings.SplitSeq(s, ",") {
		if item = strings.TrimSpace(item); item != "" {
			items = append(items, item)
		}
	}

	return items
}
