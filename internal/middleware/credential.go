package middleware

import (
	"net/http"
	"strings"
)

// bearerPrefix is the case-sensitive scheme prefix of the Authorization header.
const bearerPrefix = "Bearer "

// ExtractBearer returns the bearer token of the Authorization header.
//
// A missing header, a different scheme and an empty token all return false.
// Callers must not tell these cases apart in their responses.
func ExtractBearer(header http.Header) (string, bool) {
	authHeader := header.Get("Authorization")
	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", false
	}

	token := strings.TrimSpace(authHeader[len(bearerPrefix):])
	if token == "" {
		return "", false
	}

	return token, true
}
