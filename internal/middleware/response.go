package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"
)

// Rejection categories.
const (
	CategoryMissingCredential = "missing_credential"
	CategoryInvalidCredential = "invalid_credential"
	CategoryInternalFault     = "internal_fault"
)

// Rejection details returned to clients. They never carry validator output.
const (
	detailMissingCredential = "Missing or invalid authorization header"
	detailInvalidCredential = "Token validation failed"
	detailInternalFault     = "An unexpected error occurred"
)

// errorResponse is the JSON body of gate rejections.
type errorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Rejection is a terminal gate result.
type Rejection struct {
	Category string
	Detail   string

	// cause is logged server-side only.
	cause error
}

func missingCredential() *Rejection {
	return &Rejection{Category: CategoryMissingCredential, Detail: detailMissingCredential}
}

func invalidCredential(cause error) *Rejection {
	return &Rejection{Category: CategoryInvalidCredential, Detail: detailInvalidCredential, cause: cause}
}

func internalFault(cause error) *Rejection {
	return &Rejection{Category: CategoryInternalFault, Detail: detailInternalFault, cause: cause}
}

// Status returns the HTTP status of the rejection: 401 for credential
// problems, 500 for everything else.
func (r *Rejection) Status() int {
	switch r.Category {
	case CategoryMissingCredential, CategoryInvalidCredential:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// write sends the rejection. Unauthorized responses carry a WWW-Authenticate
// challenge pointing at the protected resource metadata when known.
func (r *Rejection) write(w http.ResponseWriter, resourceMetadataURL string) {
	body := errorResponse{Error: "internal_server_error", ErrorDescription: detailInternalFault}
	status := r.Status()
	if status == http.StatusUnauthorized {
		body = errorResponse{Error: "unauthorized", ErrorDescription: r.Detail}
		w.Header().Set("WWW-Authenticate", bearerChallenge(resourceMetadataURL))
	}

	writeJSON(w, status, body)
}

func bearerChallenge(resourceMetadataURL string) string {
	if resourceMetadataURL == "" {
		return `Bearer realm="OAuth"`
	}

	return fmt.Sprintf(`Bearer realm="OAuth", resource_metadata=%q`, resourceMetadataURL)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		zap.L().Error("Failed to write JSON response", zap.Error(err))
	}
}
