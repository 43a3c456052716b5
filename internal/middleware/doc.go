// Package middleware provides the HTTP middleware of the payment MCP server.
//
// # Authorization gate
//
// Gate protects the MCP endpoint following the Model Context Protocol
// authorization specification:
// https://modelcontextprotocol.io/specification/draft/basic/authorization
//
// Every request runs through the same pipeline:
//   - Classify decides whether the request bypasses authorization. Discovery
//     documents under /.well-known/, GET requests and paths outside the MCP
//     mount point are forwarded untouched.
//   - ExtractBearer reads the token from the Authorization header.
//   - CaptureBody buffers the request body once.
//   - ParseEnvelopes and RequiredScopes derive the scopes for the call:
//     tools/call requires the configured tool scopes, anything else none.
//   - Authorize delegates validation to a TokenValidator.
//
// Admitted requests are forwarded with a ReplaySource as body, so the MCP
// handler reads exactly the bytes the client sent. The bearer token and the
// enforced scopes are available to downstream handlers:
//
//	func handler(w http.ResponseWriter, r *http.Request) {
//	    token := middleware.Token(r.Context())
//	    scopes := middleware.Scopes(r.Context())
//	}
//
// # Rejections
//
// A missing or malformed Authorization header and a token refused by the
// validator both answer 401 with a JSON body and a Bearer challenge:
//
//	HTTP/1.1 401 Unauthorized
//	WWW-Authenticate: Bearer realm="OAuth", resource_metadata="https://example.com/.well-known/oauth-protected-resource/mcp"
//
//	{"error":"unauthorized","error_description":"Token validation failed"}
//
// The validator's error is logged but never returned to the client.
// Unexpected failures inside the gate answer 500.
//
// # Protected Resource Metadata
//
// MetadataHandler serves the OAuth 2.0 Protected Resource Metadata document
// (RFC 9728) advertised in the challenge.
package middleware
