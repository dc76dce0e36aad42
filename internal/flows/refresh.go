package flows

import (
	"context"
	"time"

	"github.com/hirelink/hireauth/session"
)

type RefreshSessionStore interface {
	Get(ctx context.Context, sessionID string) (*session.Record, error)
	Refresh(ctx context.Context, rec *session.Record, ttl time.Duration) (bool, error)
}

// RefreshMetrics carries metric IDs used by the refresh flow.
type RefreshMetrics struct {
	SessionRefreshed     int
	SessionRefreshFailed int
}

// RefreshDeps captures sliding-expiry dependencies.
type RefreshDeps struct {
	Now          func() time.Time
	TTL          time.Duration
	SessionStore RefreshSessionStore
	MetricInc    func(int)
	Metrics      RefreshMetrics
}

// RunRefresh pushes the session's expiry to now+TTL on both keys. It returns
// false when the session is gone or already expired; an expired session is
// left for validation to remove. The record is re-encoded in the current
// format, which also repairs payloads that were read through recovery.
func RunRefresh(ctx context.Context, sessionID string, deps RefreshDeps) (bool, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}

	rec, err := deps.SessionStore.Get(ctx, sessionID)
	if err != nil {
		deps.MetricInc(deps.Metrics.SessionRefreshFailed)
		return false, err
	}
	now := deps.Now()
	if rec == nil || rec.Expired(now) {
		return false, nil
	}

	rec.ExpireTime = now.UTC().Add(deps.TTL)
	ok, err := deps.SessionStore.Refresh(ctx, rec, deps.TTL)
	if err != nil {
		deps.MetricInc(deps.Metrics.SessionRefreshFailed)
		return false, err
	}
	if ok {
		deps.MetricInc(deps.Metrics.SessionRefreshed)
	}
	return ok, nil
}
