package handler

import (
	"log/slog"
	"net/http"

	"github.com/arcadelocator/arcade-api/internal/server/middleware"
	"github.com/arcadelocator/arcade-api/internal/service"
)

// AuthHandler serves the token exchange and API key issuance endpoints.
type AuthHandler struct {
	auth         *service.AuthService
	keymasterKey string
	logger       *slog.Logger
}

// NewAuthHandler creates a new AuthHandler. keymasterKey guards the
// issuance endpoint; when empty, issuance over HTTP is disabled.
func NewAuthHandler(auth *service.AuthService, keymasterKey string, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		auth:         auth,
		keymasterKey: keymasterKey,
		logger:       logger,
	}
}

// FetchAccessToken exchanges an API key for a JWT access token.
// POST /api/v1/auth/token
func (h *AuthHandler) FetchAccessToken(w http.ResponseWriter, r *http.Request) {
	rawKey := r.Header.Get("apikey")

	bundle, apiErr := h.auth.FetchAccessToken(r.Context(), rawKey, clientIP(r))
	if apiErr != nil {
		h.logExchangeFailure(r, apiErr.Internal, apiErr.Error())
		writeAPIError(w, apiErr)
		return
	}

	writeJSON(w, http.StatusOK, bundle)
}

// issueKeyRequest is the expected payload for the IssueAPIKey endpoint.
type issueKeyRequest struct {
	AdminAPIKey string `json:"admin_apiKey"`
	UserID      int64  `json:"user_id"`
}

// issueKeyResponse is the response payload for a successful issuance.
type issueKeyResponse struct {
	APIKey string `json:"apiKey"`
}

// IssueAPIKey mints a new API key for a user. The caller must present the
// keymaster admin key, which must also pass the normal key validation
// pipeline.
// POST /api/v1/auth/apikey
func (h *AuthHandler) IssueAPIKey(w http.ResponseWriter, r *http.Request) {
	var req issueKeyRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return
	}

	if req.AdminAPIKey == "" {
		writeError(w, http.StatusBadRequest, "Admin API key is required")
		return
	}
	if h.keymasterKey == "" || req.AdminAPIKey != h.keymasterKey {
		writeError(w, http.StatusUnauthorized, "Restricted access to Administrators only")
		return
	}
	// The keymaster key must itself be a live, unexpired key on record.
	if _, apiErr := h.auth.ValidateKey(r.Context(), req.AdminAPIKey); apiErr != nil {
		h.logExchangeFailure(r, apiErr.Internal, apiErr.Error())
		writeError(w, http.StatusUnauthorized, "Restricted access to Administrators only")
		return
	}

	if req.UserID <= 0 {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}

	rawKey, apiErr := h.auth.IssueAPIKey(r.Context(), req.UserID)
	if apiErr != nil {
		writeAPIError(w, apiErr)
		return
	}

	h.logger.Info("api key issued",
		"user_id", req.UserID,
		"request_id", middleware.GetRequestID(r.Context()),
	)
	writeJSON(w, http.StatusOK, issueKeyResponse{APIKey: rawKey})
}

// meResponse is the response payload for the Me endpoint.
type meResponse struct {
	Subject     string   `json:"subject"`
	UUID        string   `json:"uuid"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	AccessLevel string   `json:"accessLevel"`
	IP          string   `json:"ip"`
	ExpiresAt   int64    `json:"expires_at"`
}

// Me echoes the verified claims of the presented access token.
// GET /api/v1/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := middleware.GetClaims(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "Authentication required")
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		Subject:     claims.Subject,
		UUID:        claims.UUID,
		Roles:       claims.Roles,
		Permissions: claims.Permissions,
		AccessLevel: claims.AccessLevel,
		IP:          claims.IP,
		ExpiresAt:   claims.ExpiresAt.Unix(),
	})
}

func (h *AuthHandler) logExchangeFailure(r *http.Request, internal map[string]interface{}, msg string) {
	attrs := []interface{}{
		"error", msg,
		"request_id", middleware.GetRequestID(r.Context()),
		"remote_addr", r.RemoteAddr,
	}
	for k, v := range internal {
		attrs = append(attrs, k, v)
	}
	h.logger.Warn("token exchange rejected", attrs...)
}
