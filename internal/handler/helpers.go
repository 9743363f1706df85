package handler

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/arcadelocator/arcade-api/internal/apierr"
	"github.com/arcadelocator/arcade-api/internal/model"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeAPIError writes the standard error envelope for a classified API
// error. Internal-only context on the error is never serialized.
func writeAPIError(w http.ResponseWriter, apiErr *apierr.Error) {
	writeJSON(w, apiErr.HTTPStatus, apiErr.Envelope())
}

// writeError writes the error envelope for failures that happen before the
// request reaches the exchange pipeline, such as malformed request bodies.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, model.ErrorResponse{Error: model.ErrorDetail{
		Type:    http.StatusText(status),
		Code:    status,
		Message: message,
		Details: "No additional information available",
	}})
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// clientIP resolves the originating client address. The first entry of
// X-Forwarded-For wins when present; otherwise the connection's remote
// address is used with any port stripped.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if i := strings.IndexByte(fwd, ','); i >= 0 {
			fwd = fwd[:i]
		}
		return strings.TrimSpace(fwd)
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
