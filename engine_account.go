package hireauth

import (
	"context"
	"strings"
)

// DisableAccount sets the disabled marker for account. Its sessions stay in
// the store but fail validation until [Engine.EnableAccount] is called.
func (e *Engine) DisableAccount(ctx context.Context, account string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	account = strings.TrimSpace(account)
	if account == "" {
		return ErrAccountNotFound
	}
	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	if err := e.sessionStore.MarkDisabled(ctx, account, 0); err != nil {
		return mapStoreError(err)
	}
	e.metricInc(MetricAccountDisabled)
	e.log.WithField("account", account).Info("account disabled")
	return nil
}

// EnableAccount clears the disabled marker and the failed-login counters of
// account. Sessions kept while disabled become valid again.
func (e *Engine) EnableAccount(ctx context.Context, account string) error {
	if e == nil || e.sessionStore == nil {
		return ErrEngineNotReady
	}
	account = strings.TrimSpace(account)
	if account == "" {
		return ErrAccountNotFound
	}
	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	if err := e.sessionStore.ClearDisabled(ctx, account); err != nil {
		return mapStoreError(err)
	}
	if err := e.lockout.Reset(ctx, account); err != nil {
		e.warn("lockout counter reset failed", "account", account, "error", err)
	}
	if e.rateLimiter != nil {
		if err := e.rateLimiter.ResetLogin(ctx, account, ""); err != nil {
			e.warn("login counter reset failed", "account", account, "error", err)
		}
	}
	e.metricInc(MetricAccountEnabled)
	e.log.WithField("account", account).Info("account enabled")
	return nil
}

// IsAccountDisabled reports whether account carries the disabled marker.
func (e *Engine) IsAccountDisabled(ctx context.Context, account string) (bool, error) {
	if e == nil || e.sessionStore == nil {
		return false, ErrEngineNotReady
	}
	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	disabled, err := e.sessionStore.IsDisabled(ctx, account)
	return disabled, mapStoreError(err)
}

// KickOut deletes the active session of account. It reports whether there
// was one.
func (e *Engine) KickOut(ctx context.Context, account string) (bool, error) {
	if e == nil || e.sessionStore == nil {
		return false, ErrEngineNotReady
	}
	account = strings.TrimSpace(account)
	if account == "" {
		return false, nil
	}
	ctx, cancel := e.storeContext(ctx)
	defer cancel()

	sid, err := e.sessionStore.SessionIDForAccount(ctx, account)
	if err != nil {
		return false, mapStoreError(err)
	}
	if sid == "" {
		return false, nil
	}
	if err := e.sessionStore.Delete(ctx, sid, account); err != nil {
		return false, mapStoreError(err)
	}
	e.metricInc(MetricKickOut)
	e.log.WithField("account", account).Info("session kicked out")
	return true, nil
}

// lockAccount applies the lockout policy: the account is disabled for
// Security.LockoutDuration, or until re-enabled when that is zero.
func (e *Engine) lockAccount(ctx context.Context, account string) error {
	if err := e.sessionStore.MarkDisabled(ctx, account, e.config.Security.LockoutDuration); err != nil {
		return mapStoreError(err)
	}
	e.log.WithField("account", account).Warn("account locked after repeated login failures")
	return nil
}

// HashPassword hashes plaintext with the engine's argon2id parameters.
func (e *Engine) HashPassword(plaintext string) (string, error) {
	if e == nil || e.passwordHash == nil {
		return "", ErrEngineNotReady
	}
	return e.passwordHash.Hash(plaintext)
}
