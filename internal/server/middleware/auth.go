package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/arcadelocator/arcade-api/internal/model"
	"github.com/arcadelocator/arcade-api/internal/service"
)

type contextKeyAuth string

// AuthClaimsKey is the context key for the verified token claims.
const AuthClaimsKey contextKeyAuth = "auth_claims"

// Authenticate returns an HTTP middleware that validates the request's
// Authorization header. The header must carry a Bearer access token
// previously minted by the token exchange. On success the verified claims
// are attached to the request context; on failure a 401 JSON error
// response is returned.
func Authenticate(minter *service.Minter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeAuthError(w, http.StatusUnauthorized,
					"Authentication required. Provide a Bearer access token.")
				return
			}

			token := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := minter.Verify(token)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, "Invalid token")
				return
			}

			ctx := context.WithValue(r.Context(), AuthClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission returns an HTTP middleware that enforces a specific
// permission on the verified claims. It must be used after Authenticate
// in the middleware chain.
func RequirePermission(permission string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil || !hasPermission(claims, permission) {
				writeAuthError(w, http.StatusForbidden, "Insufficient permissions")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetClaims extracts the verified token claims from the context. Returns
// nil if no claims are present (i.e. an unauthenticated request).
func GetClaims(ctx context.Context) *service.Claims {
	if c, ok := ctx.Value(AuthClaimsKey).(*service.Claims); ok {
		return c
	}
	return nil
}

func hasPermission(claims *service.Claims, permission string) bool {
	for _, p := range claims.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body, _ := json.Marshal(model.ErrorResponse{Error: model.ErrorDetail{
		Type:    http.StatusText(status),
		Code:    status,
		Message: message,
		Details: "No additional information available",
	}})
	w.Write(body)
}
