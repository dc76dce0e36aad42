package flows

import (
	"context"
	"time"

	"github.com/hirelink/hireauth/session"
)

// ValidateFailureKind classifies validation failures for root-level mapping.
type ValidateFailureKind int

const (
	ValidateFailureNone ValidateFailureKind = iota
	ValidateFailureNotFound
	ValidateFailureExpired
	ValidateFailureDisabled
	ValidateFailureCorrupt
	ValidateFailureStoreUnavailable
)

// ValidateResult returns either the live session view or a classified
// failure.
type ValidateResult struct {
	Failure     ValidateFailureKind
	Err         error
	Record      *session.Record
	Roles       []string
	Permissions []string
	// Degraded is set when the record was coerced out of a payload this
	// build could not decode as a record.
	Degraded bool
}

type ValidateSessionStore interface {
	Load(ctx context.Context, sessionID string) (*session.DecodeResult, error)
	Delete(ctx context.Context, sessionID, account string) error
	IsDisabled(ctx context.Context, account string) (bool, error)
}

// ValidateMetrics carries metric IDs used by the validate flow.
type ValidateMetrics struct {
	SessionValidated int
	SessionExpired   int
	SessionDisabled  int
	SessionCorrupt   int
	SessionDegraded  int
}

// ValidateDeps captures session validation dependencies.
type ValidateDeps struct {
	Now                func() time.Time
	SessionStore       ValidateSessionStore
	ResolveRoles       func(account string) []string
	ResolvePermissions func(account string) []string
	MetricInc          func(int)
	Warn               func(string, ...any)
	Metrics            ValidateMetrics
}

// RunValidate reads the session, applies lazy expiry and the disabled marker,
// and re-resolves roles and permissions from the live policy.
func RunValidate(ctx context.Context, sessionID string, deps ValidateDeps) ValidateResult {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.Warn == nil {
		deps.Warn = noWarn
	}

	res, err := deps.SessionStore.Load(ctx, sessionID)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureStoreUnavailable, Err: err}
	}
	if res == nil {
		return ValidateResult{Failure: ValidateFailureNotFound}
	}

	if !res.Usable() {
		deps.MetricInc(deps.Metrics.SessionCorrupt)
		account, _ := res.Generic["account"].(string)
		deps.Warn("unusable session payload removed", "kind", res.Kind.String(), "category", res.Category.String())
		if err := deps.SessionStore.Delete(ctx, sessionID, account); err != nil {
			deps.Warn("corrupt session not removed", "error", err)
		}
		return ValidateResult{Failure: ValidateFailureCorrupt}
	}

	rec := res.Record
	if rec.Expired(deps.Now()) {
		deps.MetricInc(deps.Metrics.SessionExpired)
		if err := deps.SessionStore.Delete(ctx, sessionID, rec.Account); err != nil {
			return ValidateResult{Failure: ValidateFailureStoreUnavailable, Err: err}
		}
		return ValidateResult{Failure: ValidateFailureExpired}
	}

	disabled, err := deps.SessionStore.IsDisabled(ctx, rec.Account)
	if err != nil {
		return ValidateResult{Failure: ValidateFailureStoreUnavailable, Err: err}
	}
	if disabled || rec.Disabled {
		deps.MetricInc(deps.Metrics.SessionDisabled)
		return ValidateResult{Failure: ValidateFailureDisabled}
	}

	degraded := res.Kind == session.KindDegraded
	if degraded {
		deps.MetricInc(deps.Metrics.SessionDegraded)
		deps.Warn("session served from degraded payload", "account", rec.Account, "category", res.Category.String())
	}

	out := ValidateResult{
		Record:   rec,
		Degraded: degraded,
	}
	if deps.ResolveRoles != nil {
		out.Roles = deps.ResolveRoles(rec.Account)
	}
	if deps.ResolvePermissions != nil {
		out.Permissions = deps.ResolvePermissions(rec.Account)
	}

	deps.MetricInc(deps.Metrics.SessionValidated)
	return out
}
