package internal

import (
	"crypto/rand"
	"encoding/base64"
)

// SessionID is the raw form of a session token.
type SessionID [32]byte

const (
	minTokenLength = 16
	maxTokenLength = 128
)

// NewSessionID draws 32 random bytes for a new session.
func NewSessionID() (SessionID, error) {
	var sid SessionID
	_, err := rand.Read(sid[:])
	return sid, err
}

func (s SessionID) String() string {
	// base64url, no padding
	return base64.RawURLEncoding.EncodeToString(s[:])
}

// WellFormedToken reports whether token could be a session id issued by this
// or an earlier build: URL-safe characters only, of plausible length. It lets
// the interceptor reject junk without a cache round trip.
func WellFormedToken(token string) bool {
	if len(token) < minTokenLength || len(token) > maxTokenLength {
		return false
	}
	for i := 0; i < len(token); i++ {
		c := token[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return false
		}
	}
	return true
}
