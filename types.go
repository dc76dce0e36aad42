package hireauth

import (
	"context"
	"slices"
	"time"
)

// Principal is the authenticated caller of one request. It is built by
// [Engine.ValidateSessionAndGetUser] and carried on the request context;
// it is never persisted.
type Principal struct {
	SessionID   string
	Account     string
	UserID      int64
	Nickname    string
	DeviceID    string
	IP          string
	Roles       []string
	Permissions []string
	LoginTime   time.Time
	ExpireTime  time.Time
	Enabled     bool
	NotExpired  bool
	// Degraded is set when the session was read from a payload written by
	// an incompatible build and only its identity could be recovered.
	Degraded bool
}

// HasPermission reports whether perm ("resource:action") is among the
// permissions resolved for this request. A granted "resource:*" covers
// every action on resource.
func (p *Principal) HasPermission(perm string) bool {
	if p == nil || perm == "" {
		return false
	}
	if slices.Contains(p.Permissions, perm) {
		return true
	}
	for _, granted := range p.Permissions {
		if obj, ok := cutWildcard(granted); ok && obj == resourceOf(perm) {
			return true
		}
	}
	return false
}

// HasRole reports whether role was resolved for this request.
func (p *Principal) HasRole(role string) bool {
	return p != nil && role != "" && slices.Contains(p.Roles, role)
}

// SessionRequest describes a session to issue for an already authenticated
// account. Request metadata (IP, user agent, device id, client version) is
// taken from the context passed alongside it.
type SessionRequest struct {
	Account     string
	UserID      int64
	Roles       []string
	Permissions []string
	Nickname    string
	Attributes  map[string]any
}

// AccountRecord is the credential view of an account returned by an
// [AccountProvider].
type AccountRecord struct {
	Account      string
	UserID       int64
	PasswordHash string
	Nickname     string
	Enabled      bool
}

// AccountProvider is implemented by the account table owner. It is only
// required for [Engine.Login]; sessions issued through
// [Engine.CreateUserSession] do not consult it.
type AccountProvider interface {
	GetAccount(ctx context.Context, account string) (AccountRecord, error)
	UpdatePasswordHash(ctx context.Context, account, hash string) error
}

// LoginResult is returned by [Engine.Login].
type LoginResult struct {
	SessionID string
	Account   string
	UserID    int64
	Nickname  string
	ExpiresAt time.Time
}

func cutWildcard(perm string) (string, bool) {
	if len(perm) < 2 || perm[len(perm)-2:] != ":*" {
		return "", false
	}
	return perm[:len(perm)-2], true
}

func resourceOf(perm string) string {
	for i := len(perm) - 1; i >= 0; i-- {
		if perm[i] == ':' {
			return perm[:i]
		}
	}
	return perm
}
