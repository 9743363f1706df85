// Package apierr defines the closed set of failures the access-token pipeline
// can produce. Each kind is built by its own factory so an error always has a
// fixed shape: a stable type/code/message triple for the caller, plus optional
// diagnostic detail that may be redacted at the transport boundary.
package apierr

import (
	"fmt"
	"net/http"
	"time"

	"github.com/arcadelocator/arcade-api/internal/model"
)

// Stable error codes. These never change between releases; clients key on
// them rather than on message text.
const (
	CodeMissingAPIKey     = 77701
	CodeInvalidAPIKey     = 77702
	CodeAPIKeyExpired     = 77703
	CodeUserNotFound      = 77704
	CodeIdentityIntegrity = 77705
	CodeRepository        = 77706
	CodeSigningConfig     = 77707
)

const noDetails = "No additional information available"

// Error is a typed API failure. Details is safe to return to the caller;
// Internal holds diagnostic context (SQL errors, record ids) that is logged
// but never serialized into a response.
type Error struct {
	HTTPStatus int
	Type       string
	Code       int
	Message    string
	Details    map[string]interface{}
	Internal   map[string]interface{}

	wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("[%d] %s: %s", e.HTTPStatus, e.Type, e.Message)
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	return e.wrapped
}

// Envelope converts the error into the wire-format response body. The
// Details field defaults to a fixed placeholder string when no client-safe
// detail is attached.
func (e *Error) Envelope() model.ErrorResponse {
	var details interface{} = noDetails
	if len(e.Details) > 0 {
		details = e.Details
	}
	return model.ErrorResponse{
		Error: model.ErrorDetail{
			Type:    e.Type,
			Code:    e.Code,
			Message: e.Message,
			Details: details,
		},
	}
}

// MissingAPIKey reports that no API key was presented at all.
func MissingAPIKey() *Error {
	return &Error{
		HTTPStatus: http.StatusBadRequest,
		Type:       "Bad Request",
		Code:       CodeMissingAPIKey,
		Message:    "Missing required {apikey} header",
	}
}

// InvalidAPIKey covers both "no record matches the lookup hash" and
// "verification comparison failed". The two collapse deliberately so a caller
// cannot distinguish which stage rejected the key.
func InvalidAPIKey() *Error {
	return &Error{
		HTTPStatus: http.StatusUnauthorized,
		Type:       "Unauthorized",
		Code:       CodeInvalidAPIKey,
		Message:    "Invalid API key",
	}
}

// APIKeyExpired reports a key whose record exists but has passed its expiry.
// The record id and expiry travel in the details trace for diagnostics.
func APIKeyExpired(apikeyID string, expiredAt time.Time) *Error {
	return &Error{
		HTTPStatus: http.StatusUnauthorized,
		Type:       "Unauthorized",
		Code:       CodeAPIKeyExpired,
		Message:    "API key has expired",
		Details: map[string]interface{}{
			"trace": map[string]interface{}{
				"apikey_id":  apikeyID,
				"expired_at": expiredAt.UTC().Format(time.RFC3339),
			},
		},
	}
}

// UserNotFound reports a valid key that resolves to no active user. Treated
// as an authentication failure, not a missing resource.
func UserNotFound() *Error {
	return &Error{
		HTTPStatus: http.StatusUnauthorized,
		Type:       "Unauthorized",
		Code:       CodeUserNotFound,
		Message:    "No user associated with the provided API key",
	}
}

// IdentityIntegrity reports a user holding an active key but zero roles.
// That is a data problem, not a client error, so it surfaces as a 500.
func IdentityIntegrity(userID int64) *Error {
	return &Error{
		HTTPStatus: http.StatusInternalServerError,
		Type:       "Internal Server Error",
		Code:       CodeIdentityIntegrity,
		Message:    "Internal Error: account is misconfigured, contact support",
		Internal: map[string]interface{}{
			"user_id": userID,
			"reason":  "user has zero roles",
		},
	}
}

// Repository wraps an underlying storage fault. The raw error stays in the
// internal context; the caller sees only a generic message.
func Repository(op string, err error) *Error {
	return &Error{
		HTTPStatus: http.StatusInternalServerError,
		Type:       "Internal Server Error",
		Code:       CodeRepository,
		Message:    "Internal Error: Unable to validate access_token at this time.",
		Internal: map[string]interface{}{
			"op":        op,
			"sql_error": err.Error(),
		},
		wrapped: err,
	}
}

// SigningConfiguration reports a missing or unusable signing secret. This is
// a fatal configuration fault affecting every caller, not a per-request one.
func SigningConfiguration(err error) *Error {
	e := &Error{
		HTTPStatus: http.StatusInternalServerError,
		Type:       "Internal Server Error",
		Code:       CodeSigningConfig,
		Message:    "Internal Error: token signing is unavailable",
		wrapped:    err,
	}
	if err != nil {
		e.Internal = map[string]interface{}{"cause": err.Error()}
	}
	return e
}
