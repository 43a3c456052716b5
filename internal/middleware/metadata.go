package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/oauthex"
	"go.uber.org/zap"
)

// CORS constants for the protected resource metadata endpoint.
const (
	corsAllowOrigin  = "*"
	corsAllowMethods = "GET, OPTIONS"
	corsAllowHeaders = "Content-Type"
)

// MetadataHandler serves the OAuth 2.0 Protected Resource Metadata (RFC 9728).
//
// The configured JSON document is served as is, extension members included.
// When none is configured the fallback metadata is served instead.
type MetadataHandler struct {
	raw      string
	fallback oauthex.ProtectedResourceMetadata
}

// NewMetadataHandler creates a MetadataHandler for the configured raw JSON
// document and the metadata derived from configuration.
func NewMetadataHandler(raw string, fallback oauthex.ProtectedResourceMetadata) *MetadataHandler {
	return &MetadataHandler{raw: strings.TrimSpace(raw), fallback: fallback}
}

// Metadata returns the metadata document to serve. A configured document
// must be a single JSON object whose known members have the types of
// oauthex.ProtectedResourceMetadata.
func (h *MetadataHandler) Metadata() (json.RawMessage, error) {
	if h.raw == "" || h.raw == "{}" {
		data, err := json.Marshal(h.fallback)
		if err != nil {
			return nil, fmt.Errorf("encoding fallback metadata: %w", err)
		}
		return data, nil
	}

	if !json.Valid([]byte(h.raw)) {
		return nil, fmt.Errorf("invalid METADATA_JSON_RESPONSE JSON: not a single valid JSON document")
	}
	var metadata oauthex.ProtectedResourceMetadata
	if err := json.Unmarshal([]byte(h.raw), &metadata); err != nil {
		return nil, fmt.Errorf("invalid METADATA_JSON_RESPONSE JSON: %w", err)
	}

	return json.RawMessage(h.raw), nil
}

// ServeHTTP handles the protected resource metadata endpoint.
//
// https://modelcontextprotocol.io/specification/draft/basic/authorization#protected-resource-metadata-discovery-requirements
func (h *MetadataHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", corsAllowOrigin)
	w.Header().Set("Access-Control-Allow-Methods", corsAllowMethods)
	w.Header().Set("Access-Control-Allow-Headers", corsAllowHeaders)

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	metadata, err := h.Metadata()
	if err != nil {
		zap.L().Error("Failed to load protected resource metadata", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorResponse{
			Error:            "invalid_metadata_configuration",
			ErrorDescription: err.Error(),
		})
		return
	}

	writeJSON(w, http.StatusOK, metadata)
}
