package flows

import (
	"context"
	"errors"
	"time"
)

// LoginAccount is a flow-local account model.
type LoginAccount struct {
	Account      string
	UserID       int64
	PasswordHash string
	Nickname     string
	Enabled      bool
}

// LoginResult is the flow-local login response shape.
type LoginResult struct {
	SessionID string
	Account   string
	UserID    int64
	Nickname  string
	ExpiresAt time.Time
}

// LoginMetrics carries metric IDs needed by the login flow.
type LoginMetrics struct {
	LoginSuccess     int
	LoginFailure     int
	LoginRateLimited int
	AccountLocked    int
}

// LoginErrors carries host-level sentinel errors used by the login flow.
type LoginErrors struct {
	EngineNotReady     error
	InvalidCredentials error
	LoginRateLimited   error
	AccountDisabled    error
	AccountNotFound    error
}

// LoginDeps captures login dependencies.
type LoginDeps struct {
	PasswordUpgradeOnLogin bool
	TTL                    time.Duration

	Now                 func() time.Time
	ClientIPFromContext func(context.Context) string

	CheckLoginRate     func(context.Context, string, string) error
	IncrementLoginRate func(context.Context, string, string) error
	ResetLoginRate     func(context.Context, string, string) error

	RecordLockoutFailure func(context.Context, string) (bool, error)
	ResetLockout         func(context.Context, string) error
	LockAccount          func(context.Context, string) error

	GetAccount         func(context.Context, string) (LoginAccount, error)
	IsDisabled         func(context.Context, string) (bool, error)
	UpdatePasswordHash func(context.Context, string, string) error

	VerifyPassword       func(string, string) (bool, error)
	PasswordNeedsUpgrade func(string) (bool, error)
	HashPassword         func(string) (string, error)

	CreateSession func(context.Context, LoginAccount) (string, error)

	MetricInc func(int)
	Warn      func(string, ...any)

	Metrics LoginMetrics
	Errors  LoginErrors
}

// RunLogin verifies credentials under the login budget and issues a session.
// Unknown accounts and wrong passwords are indistinguishable to the caller.
func RunLogin(ctx context.Context, account, password string, deps LoginDeps) (*LoginResult, error) {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.MetricInc == nil {
		deps.MetricInc = noMetric
	}
	if deps.Warn == nil {
		deps.Warn = noWarn
	}
	if deps.ClientIPFromContext == nil {
		deps.ClientIPFromContext = func(context.Context) string { return "" }
	}
	if deps.GetAccount == nil || deps.VerifyPassword == nil || deps.CreateSession == nil {
		return nil, deps.Errors.EngineNotReady
	}

	ip := deps.ClientIPFromContext(ctx)

	if deps.CheckLoginRate != nil {
		if err := deps.CheckLoginRate(ctx, account, ip); err != nil {
			if errors.Is(err, deps.Errors.LoginRateLimited) {
				deps.MetricInc(deps.Metrics.LoginRateLimited)
			}
			return nil, err
		}
	}

	fail := func(reason string) error {
		if deps.IncrementLoginRate != nil {
			if err := deps.IncrementLoginRate(ctx, account, ip); err != nil {
				if errors.Is(err, deps.Errors.LoginRateLimited) {
					deps.MetricInc(deps.Metrics.LoginRateLimited)
				}
				return err
			}
		}
		deps.MetricInc(deps.Metrics.LoginFailure)
		deps.Warn("login failed", "account", account, "reason", reason)
		return deps.Errors.InvalidCredentials
	}

	if account == "" || password == "" {
		return nil, fail("empty_credentials")
	}

	acc, err := deps.GetAccount(ctx, account)
	if err != nil {
		if deps.Errors.AccountNotFound != nil && errors.Is(err, deps.Errors.AccountNotFound) {
			return nil, fail("account_not_found")
		}
		return nil, err
	}

	ok, err := deps.VerifyPassword(password, acc.PasswordHash)
	if err != nil || !ok {
		if deps.RecordLockoutFailure != nil {
			locked, lerr := deps.RecordLockoutFailure(ctx, account)
			if lerr != nil {
				deps.Warn("lockout counter unavailable", "account", account, "error", lerr)
			}
			if locked && deps.LockAccount != nil {
				if err := deps.LockAccount(ctx, account); err != nil {
					deps.Warn("account lockout not applied", "account", account, "error", err)
				} else {
					deps.MetricInc(deps.Metrics.AccountLocked)
				}
			}
		}
		return nil, fail("password_mismatch")
	}

	if !acc.Enabled {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, deps.Errors.AccountDisabled
	}
	if deps.IsDisabled != nil {
		disabled, err := deps.IsDisabled(ctx, account)
		if err != nil {
			return nil, err
		}
		if disabled {
			deps.MetricInc(deps.Metrics.LoginFailure)
			return nil, deps.Errors.AccountDisabled
		}
	}

	if deps.PasswordUpgradeOnLogin && deps.PasswordNeedsUpgrade != nil && deps.HashPassword != nil && deps.UpdatePasswordHash != nil {
		if needsUpgrade, err := deps.PasswordNeedsUpgrade(acc.PasswordHash); err == nil && needsUpgrade {
			if upgraded, err := deps.HashPassword(password); err == nil {
				// Rehash update is best-effort and must not block successful login.
				if err := deps.UpdatePasswordHash(ctx, account, upgraded); err != nil {
					deps.Warn("password hash upgrade update failed", "account", account)
				}
			} else {
				deps.Warn("password hash upgrade generation failed", "account", account)
			}
		}
	}
	password = ""

	sid, err := deps.CreateSession(ctx, acc)
	if err != nil {
		deps.MetricInc(deps.Metrics.LoginFailure)
		return nil, err
	}

	if deps.ResetLoginRate != nil {
		if err := deps.ResetLoginRate(ctx, account, ip); err != nil {
			deps.Warn("login counter reset failed", "account", account, "error", err)
		}
	}
	if deps.ResetLockout != nil {
		if err := deps.ResetLockout(ctx, account); err != nil {
			deps.Warn("lockout counter reset failed", "account", account, "error", err)
		}
	}

	deps.MetricInc(deps.Metrics.LoginSuccess)
	return &LoginResult{
		SessionID: sid,
		Account:   acc.Account,
		UserID:    acc.UserID,
		Nickname:  acc.Nickname,
		ExpiresAt: deps.Now().UTC().Add(deps.TTL),
	}, nil
}
