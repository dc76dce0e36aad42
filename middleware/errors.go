package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/hirelink/hireauth"
)

// Values of the errorBy field.
const (
	CodeTokenMissing    = "TOKEN_MISSING"
	CodeTokenInvalid    = "TOKEN_INVALID"
	CodeSessionExpired  = "SESSION_EXPIRED"
	CodeAccountDisabled = "ACCOUNT_DISABLED"
	CodeForbidden       = "FORBIDDEN"
	CodeInternal        = "INTERNAL"

	CodeBadRequest         = "BAD_REQUEST"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeRateLimited        = "RATE_LIMITED"
	CodeUnavailable        = "UNAVAILABLE"
	CodeNotFound           = "NOT_FOUND"
)

// ErrorBody is the JSON document written on every rejected request.
type ErrorBody struct {
	ErrorBy string `json:"errorBy"`
	Code    int    `json:"code"`
	Msg     string `json:"msg"`
}

// WriteError writes an [ErrorBody] with the given status.
func WriteError(w http.ResponseWriter, status int, errorBy, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorBody{ErrorBy: errorBy, Code: status, Msg: msg})
}

// Classify maps an engine error onto the status and errorBy value the
// interceptor answers with. Anything it does not recognise is a 500.
func Classify(err error) (status int, errorBy, msg string) {
	switch {
	case errors.Is(err, hireauth.ErrTokenMissing):
		return http.StatusBadRequest, CodeTokenMissing, "token missing"
	case errors.Is(err, hireauth.ErrTokenInvalid),
		errors.Is(err, hireauth.ErrSessionNotFound),
		errors.Is(err, hireauth.ErrSessionCorrupt):
		return http.StatusBadRequest, CodeTokenInvalid, "token invalid"
	case errors.Is(err, hireauth.ErrSessionExpired):
		return http.StatusBadRequest, CodeSessionExpired, "session expired"
	case errors.Is(err, hireauth.ErrAccountDisabled):
		return http.StatusBadRequest, CodeAccountDisabled, "account disabled"
	case errors.Is(err, hireauth.ErrInvalidCredentials):
		return http.StatusUnauthorized, CodeInvalidCredentials, "invalid credentials"
	case errors.Is(err, hireauth.ErrLoginRateLimited):
		return http.StatusTooManyRequests, CodeRateLimited, "too many login attempts"
	case errors.Is(err, hireauth.ErrAccountNotFound):
		return http.StatusNotFound, CodeNotFound, "account not found"
	case errors.Is(err, hireauth.ErrPermissionDenied):
		return http.StatusForbidden, CodeForbidden, "permission denied"
	default:
		return http.StatusInternalServerError, CodeInternal, "internal error"
	}
}
