package hireauth

import (
	"context"
	"errors"
	"strings"

	"github.com/hirelink/hireauth/internal/flows"
)

// Login verifies a password against the [AccountProvider] and issues a
// session through the same path as [Engine.CreateUserSession].
//
// Unknown accounts and wrong passwords both return ErrInvalidCredentials.
// Each failure counts against the per-account (and optionally per-IP)
// budget; once it is spent ErrLoginRateLimited is returned until the
// cooldown passes. With lockout enabled, repeated failures also disable
// the account.
func (e *Engine) Login(ctx context.Context, account, password string) (*LoginResult, error) {
	if e == nil || !e.flow.Initialized() {
		return nil, ErrEngineNotReady
	}
	if e.accounts == nil {
		return nil, ErrEngineNotReady
	}

	res, err := e.flow.Login(ctx, strings.TrimSpace(account), password)
	if err != nil {
		return nil, mapStoreError(err)
	}
	return &LoginResult{
		SessionID: res.SessionID,
		Account:   res.Account,
		UserID:    res.UserID,
		Nickname:  res.Nickname,
		ExpiresAt: res.ExpiresAt,
	}, nil
}

func (e *Engine) loginAccount(ctx context.Context, account string) (flows.LoginAccount, error) {
	rec, err := e.accounts.GetAccount(ctx, account)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return flows.LoginAccount{}, ErrAccountNotFound
		}
		return flows.LoginAccount{}, err
	}
	return flows.LoginAccount{
		Account:      rec.Account,
		UserID:       rec.UserID,
		PasswordHash: rec.PasswordHash,
		Nickname:     rec.Nickname,
		Enabled:      rec.Enabled,
	}, nil
}

func (e *Engine) loginSession(ctx context.Context, acc flows.LoginAccount) (string, error) {
	return e.CreateUserSession(ctx, SessionRequest{
		Account:     acc.Account,
		UserID:      acc.UserID,
		Nickname:    acc.Nickname,
		Roles:       e.enforcer.GetRolesForUser(acc.Account),
		Permissions: e.enforcer.GetPermissionsForUser(acc.Account),
	})
}
