package middleware

import (
	"net/http"
	"strings"
)

// wellKnownPrefix is the path prefix of the discovery documents. Clients
// must reach them without credentials to find the authorization server.
const wellKnownPrefix = "/.well-known/"

// Decision is the result of classifying a request before authorization.
type Decision int

const (
	// Enforce means the request has to present a valid credential.
	Enforce Decision = iota
	// Bypass means the request is forwarded without authorization.
	Bypass
)

func (d Decision) String() string {
	if d == Bypass {
		return "bypass"
	}
	return "enforce"
}

// Classify decides from the method and path alone whether a request skips
// authorization. Rules are evaluated in order, the first match wins:
//   - discovery documents under /.well-known/ are public
//   - GET requests are public (health checks and the MCP SSE probe use it)
//   - anything outside the protected mount point is public
//   - everything else is enforced
func Classify(method, path, mountPath string) Decision {
	if strings.HasPrefix(path, wellKnownPrefix) {
		return Bypass
	}
	if method == http.MethodGet {
		return Bypass
	}
	if !underMount(path, mountPath) {
		return Bypass
	}

	return Enforce
}

// underMount reports whether path is the mount point itself or below it.
func underMount(path, mountPath string) bool {
	mountPath = strings.TrimSuffix(mountPath, "/")
	if mountPath == "" {
		return true
	}

	return path == mountPath || strings.HasPrefix(path, mountPath+"/")
}
