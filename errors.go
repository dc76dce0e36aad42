package hireauth

import "errors"

var (
	// ErrSessionNotFound is returned when no session exists for the presented id.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired is returned when the session's expire time has passed.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionCorrupt is returned when a stored payload could not be read
	// back as a session.
	ErrSessionCorrupt = errors.New("session payload unreadable")
	// ErrSessionCreationFailed is returned when a written session could not
	// be read back.
	ErrSessionCreationFailed = errors.New("session creation failed")
	// ErrInvalidSessionRequest is returned for a session request without an account.
	ErrInvalidSessionRequest = errors.New("invalid session request")
	// ErrTokenMissing is returned when a request carries no session id.
	ErrTokenMissing = errors.New("session token missing")
	// ErrTokenInvalid is returned for a malformed session id.
	ErrTokenInvalid = errors.New("invalid session token")
	// ErrAccountDisabled is returned for accounts carrying the disabled marker.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrAccountNotFound is returned by an AccountProvider for unknown accounts.
	ErrAccountNotFound = errors.New("account not found")
	// ErrInvalidCredentials is returned for any failed password login.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrLoginRateLimited is returned once an account or IP exhausted its
	// login budget.
	ErrLoginRateLimited = errors.New("login rate limited")
	// ErrStoreUnavailable is returned when Redis could not be reached.
	ErrStoreUnavailable = errors.New("session store unavailable")
	// ErrPolicyUnavailable is returned when the policy source could not be
	// loaded.
	ErrPolicyUnavailable = errors.New("policy source unavailable")
	// ErrPermissionDenied is returned by guards for authenticated callers
	// lacking a permission or role.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrEngineNotReady is returned by methods of an engine that was not
	// built through Builder.
	ErrEngineNotReady = errors.New("engine not initialized")
)
