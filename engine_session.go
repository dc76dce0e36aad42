package hireauth

import (
	"context"
	"strings"
	"time"

	"github.com/hirelink/hireauth/internal"
	"github.com/hirelink/hireauth/internal/flows"
	"github.com/hirelink/hireauth/session"
)

// CreateUserSession issues a session for an account that has already been
// authenticated. The record is written under both keyspaces and read back
// before the id is returned; if the read-back does not match,
// ErrSessionCreationFailed is returned and no id is handed out.
//
// Request metadata is taken from ctx (see [WithClientIP], [WithUserAgent],
// [WithDeviceID], [WithClientVersion]). The roles and permissions in req
// are stored as a snapshot only; validation always re-resolves them.
func (e *Engine) CreateUserSession(ctx context.Context, req SessionRequest) (string, error) {
	if e == nil || !e.flow.Initialized() {
		return "", ErrEngineNotReady
	}
	req.Account = strings.TrimSpace(req.Account)

	ip := clientIPFromContext(ctx)
	ua := userAgentFromContext(ctx)
	deviceID := deviceIDFromContext(ctx)
	if deviceID == "" {
		deviceID = internal.DeviceFingerprint(ua, ip)
	}

	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	sid, err := e.flow.Create(ctx, flows.CreateRequest{
		Account:       req.Account,
		UserID:        req.UserID,
		Roles:         req.Roles,
		Permissions:   req.Permissions,
		Nickname:      req.Nickname,
		DeviceID:      deviceID,
		IP:            ip,
		UserAgent:     ua,
		ClientVersion: clientVersionFromContext(ctx),
		Attributes:    req.Attributes,
	})
	if err != nil {
		return "", err
	}
	e.log.WithField("account", req.Account).Debug("session created")
	return sid, nil
}

// ValidateSessionAndGetUser resolves sessionID to a [Principal].
//
// Expired sessions are deleted on read. Sessions of disabled accounts are
// rejected but kept, so re-enabling the account restores them. Roles and
// permissions come from the live policy, never from the stored snapshot.
func (e *Engine) ValidateSessionAndGetUser(ctx context.Context, sessionID string) (*Principal, error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return nil, ErrTokenMissing
	}
	if !internal.WellFormedToken(sessionID) {
		return nil, ErrTokenInvalid
	}

	start := time.Now()
	if e.metrics.LatencyEnabled() {
		defer func() {
			e.metrics.Observe(MetricValidateLatency, time.Since(start))
		}()
	}

	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	res := e.flow.Validate(ctx, sessionID)
	switch res.Failure {
	case flows.ValidateFailureNone:
	case flows.ValidateFailureNotFound:
		e.metricInc(MetricSessionNotFound)
		return nil, ErrSessionNotFound
	case flows.ValidateFailureExpired:
		return nil, ErrSessionExpired
	case flows.ValidateFailureDisabled:
		return nil, ErrAccountDisabled
	case flows.ValidateFailureCorrupt:
		return nil, ErrSessionCorrupt
	default:
		return nil, mapStoreError(res.Err)
	}

	rec := res.Record
	return &Principal{
		SessionID:   rec.SessionID,
		Account:     rec.Account,
		UserID:      rec.UserID,
		Nickname:    rec.Nickname,
		DeviceID:    rec.DeviceID,
		IP:          rec.LoginIP,
		Roles:       res.Roles,
		Permissions: res.Permissions,
		LoginTime:   rec.LoginTime,
		ExpireTime:  rec.ExpireTime,
		Enabled:     true,
		NotExpired:  true,
		Degraded:    res.Degraded,
	}, nil
}

// RefreshSession pushes the expiry of sessionID to now + Session.TTL on
// both keys. It returns false, and writes nothing, when the session does
// not exist.
func (e *Engine) RefreshSession(ctx context.Context, sessionID string) (bool, error) {
	if e == nil || !e.flow.Initialized() {
		return false, ErrEngineNotReady
	}
	if sessionID == "" {
		return false, nil
	}
	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	ok, err := e.flow.Refresh(ctx, sessionID)
	if err != nil {
		return false, mapStoreError(err)
	}
	return ok, nil
}

// RefreshAsync queues a best-effort refresh of sessionID. Failures are
// logged and counted, never returned. It reports whether the refresh was
// queued.
func (e *Engine) RefreshAsync(sessionID string) bool {
	if e == nil || e.refresher == nil || sessionID == "" {
		return false
	}
	if !e.refresher.Submit(context.Background(), sessionID) {
		e.metricInc(MetricSessionRefreshDropped)
		return false
	}
	return true
}

func (e *Engine) refreshInBackground(ctx context.Context, sessionID string) {
	if _, err := e.flow.Refresh(ctx, sessionID); err != nil {
		e.log.WithError(err).Warn("background session refresh failed")
	}
}

// Logout removes the session and, when it still points at it, the account
// index. Logging out an unknown session is not an error.
func (e *Engine) Logout(ctx context.Context, sessionID string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return ErrTokenMissing
	}
	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	if err := e.sessionStore.DeleteSession(ctx, sessionID); err != nil {
		return mapStoreError(err)
	}
	e.metricInc(MetricLogout)
	return nil
}

// SessionExists reports whether a record key exists for sessionID. It does
// not check expiry or the disabled marker.
func (e *Engine) SessionExists(ctx context.Context, sessionID string) (bool, error) {
	if e == nil || e.sessionStore == nil {
		return false, ErrEngineNotReady
	}
	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	ok, err := e.sessionStore.Exists(ctx, sessionID)
	return ok, mapStoreError(err)
}

// GetSessionData returns the stored record of sessionID as written,
// including its role and permission snapshot, or nil when absent or
// unreadable.
func (e *Engine) GetSessionData(ctx context.Context, sessionID string) (*session.Record, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	rec, err := e.sessionStore.Get(ctx, sessionID)
	return rec, mapStoreError(err)
}

// GetUserSession returns the active session record of account, or nil.
func (e *Engine) GetUserSession(ctx context.Context, account string) (*session.Record, error) {
	if e == nil || e.sessionStore == nil {
		return nil, ErrEngineNotReady
	}
	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	rec, err := e.sessionStore.GetByAccount(ctx, account)
	return rec, mapStoreError(err)
}

// ErrorStatistics returns the serialization recovery counters by category.
func (e *Engine) ErrorStatistics() map[session.Category]uint64 {
	if e == nil {
		return map[session.Category]uint64{}
	}
	return e.errorStats.Snapshot()
}

// ResetErrorStatistics zeroes every serialization counter.
func (e *Engine) ResetErrorStatistics() {
	if e == nil {
		return
	}
	e.errorStats.Reset()
}

// SetAliases replaces the serialization alias table. Reads already in
// flight finish with the previous table.
func (e *Engine) SetAliases(t session.AliasTable) {
	if e == nil || e.sessionStore == nil {
		return
	}
	e.sessionStore.Codec().SetAliases(t)
	e.log.WithField("alias_version", t.Version).Info("serialization aliases updated")
}
