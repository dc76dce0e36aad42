package flows

import (
	"context"
	"maps"
	"slices"
	"time"

	"github.com/hirelink/hireauth/session"
)

// CreateRequest is the flow-local shape of a new session.
type CreateRequest struct {
	Account       string
	UserID        int64
	Roles         []string
	Permissions   []string
	Nickname      string
	DeviceID      string
	IP            string
	UserAgent     string
	ClientVersion string
	Attributes    map[string]any
}

type CreateSessionStore interface {
	Put(ctx context.Context, rec *session.Record, ttl time.Duration) error
	Get(ctx context.Context, sessionID string) (*session.Record, error)
	SessionIDForAccount(ctx context.Context, account string) (string, error)
	Delete(ctx context.Context, sessionID, account string) error
}

// CreateMetrics carries metric IDs used by the create flow.
type CreateMetrics struct {
	SessionCreated   int
	SessionDisplaced int
}

// CreateErrors carries host-level sentinel errors used by the create flow.
type CreateErrors struct {
	EngineNotReady   error
	InvalidRequest   error
	CreationFailed   error
	StoreUnavailable error
}

// CreateDeps captures session creation dependencies.
type CreateDeps struct {
	Now           func() time.Time
	TTL           time.Duration
	SingleSession bool
	NewSessionID  func() (string, error)
	SessionStore  CreateSessionStore
	MapStoreError func(error) error
	MetricInc     func(int)
	Warn          func(string, ...any)
	Metrics       CreateMetrics
	Errors        CreateErrors
}

// RunCreate writes a new session, reads it back, and only then hands out the
// session id. With SingleSession set, the account's previous session is
// removed once the new one is confirmed.
func RunCreate(ctx context.Context, req CreateRequest, deps CreateDeps) (string, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.Warn == nil {
		deps.Warn = noWarn
	}
	if deps.MapStoreError == nil {
		deps.MapStoreError = func(err error) error { return err }
	}
	if deps.SessionStore == nil || deps.NewSessionID == nil || deps.TTL <= 0 {
		return "", deps.Errors.EngineNotReady
	}
	if req.Account == "" {
		return "", deps.Errors.InvalidRequest
	}

	sid, err := deps.NewSessionID()
	if err != nil {
		return "", err
	}

	var previous string
	if deps.SingleSession {
		previous, err = deps.SessionStore.SessionIDForAccount(ctx, req.Account)
		if err != nil {
			return "", deps.MapStoreError(err)
		}
	}

	now := deps.Now().UTC()
	rec := &session.Record{
		SessionID:     sid,
		Account:       req.Account,
		UserID:        req.UserID,
		DeviceID:      req.DeviceID,
		LoginIP:       req.IP,
		LoginTime:     now,
		ExpireTime:    now.Add(deps.TTL),
		Roles:         slices.Clone(req.Roles),
		Permissions:   slices.Clone(req.Permissions),
		Nickname:      req.Nickname,
		UserAgent:     req.UserAgent,
		ClientVersion: req.ClientVersion,
		Attributes:    maps.Clone(req.Attributes),
	}

	if err := deps.SessionStore.Put(ctx, rec, deps.TTL); err != nil {
		return "", deps.MapStoreError(err)
	}

	back, err := deps.SessionStore.Get(ctx, sid)
	if err != nil {
		return "", deps.MapStoreError(err)
	}
	if back == nil || back.SessionID != sid || back.Account != req.Account || back.UserID != req.UserID {
		deps.Warn("session read-back mismatch", "account", req.Account)
		return "", deps.Errors.CreationFailed
	}

	if previous != "" && previous != sid {
		if err := deps.SessionStore.Delete(ctx, previous, req.Account); err != nil {
			deps.Warn("displaced session not removed", "account", req.Account, "error", err)
		} else {
			deps.MetricInc(deps.Metrics.SessionDisplaced)
		}
	}

	deps.MetricInc(deps.Metrics.SessionCreated)
	return sid, nil
}
