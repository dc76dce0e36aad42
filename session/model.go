package session

import (
	"maps"
	"slices"
	"time"
)

// TypeName is the discriminator written into every encoded [Record].
const TypeName = "hireauth.session.Record/v2"

// Record is the cached representation of one login.
//
// A record is valid while now < ExpireTime and the owning account carries no
// disabled marker. Roles and Permissions are the snapshot taken at login;
// callers that need the current grant set resolve it from the policy engine.
type Record struct {
	SessionID     string         `json:"sessionId" mapstructure:"sessionId"`
	Account       string         `json:"account" mapstructure:"account"`
	UserID        int64          `json:"userId" mapstructure:"userId"`
	DeviceID      string         `json:"deviceId,omitempty" mapstructure:"deviceId"`
	LoginIP       string         `json:"loginIp,omitempty" mapstructure:"loginIp"`
	LoginTime     time.Time      `json:"loginTime" mapstructure:"loginTime"`
	ExpireTime    time.Time      `json:"expireTime" mapstructure:"expireTime"`
	Roles         []string       `json:"roles,omitempty" mapstructure:"roles"`
	Permissions   []string       `json:"permissions,omitempty" mapstructure:"permissions"`
	Disabled      bool           `json:"disabled,omitempty" mapstructure:"disabled"`
	Nickname      string         `json:"nickname,omitempty" mapstructure:"nickname"`
	UserAgent     string         `json:"userAgent,omitempty" mapstructure:"userAgent"`
	ClientVersion string         `json:"clientVersion,omitempty" mapstructure:"clientVersion"`
	Attributes    map[string]any `json:"attributes,omitempty" mapstructure:"attributes"`
}

// Expired reports whether the record is past its expire time at now. A
// record recovered without an expire time is bounded by its key TTL alone.
func (r *Record) Expired(now time.Time) bool {
	if r == nil {
		return true
	}
	if r.ExpireTime.IsZero() {
		return false
	}
	return !now.Before(r.ExpireTime)
}

// identified reports whether the record carries both identity keys.
func (r *Record) identified() bool {
	return r != nil && r.SessionID != "" && r.Account != ""
}

// Clone returns a deep copy of r.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.Roles = slices.Clone(r.Roles)
	out.Permissions = slices.Clone(r.Permissions)
	out.Attributes = maps.Clone(r.Attributes)
	return &out
}
