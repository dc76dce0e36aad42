package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// LockoutConfig holds configuration for automatic account lockout.
type LockoutConfig struct {
	KeyPrefix string
	Enabled   bool
	Threshold int
	// Window is how long failures keep counting toward the threshold.
	Window time.Duration
}

// Lockout tracks failed logins that survive the short login cooldown and
// reports when an account has crossed the lockout threshold.
type Lockout struct {
	redis  redis.UniversalClient
	config LockoutConfig
}

// NewLockout creates a lockout counter.
func NewLockout(redisClient redis.UniversalClient, cfg LockoutConfig) *Lockout {
	return &Lockout{redis: redisClient, config: cfg}
}

func (l *Lockout) key(account string) string {
	return l.config.KeyPrefix + "rl:lockout:" + account
}

// RecordFailure increments the failure counter for account. It returns true
// once the threshold has been reached.
func (l *Lockout) RecordFailure(ctx context.Context, account string) (bool, error) {
	if l == nil || !l.config.Enabled || account == "" {
		return false, nil
	}

	count, err := incrementWithTTL(ctx, l.redis, l.key(account), l.config.Window)
	if err != nil {
		return false, err
	}
	return count >= int64(l.config.Threshold), nil
}

// Reset clears the failure counter for account.
func (l *Lockout) Reset(ctx context.Context, account string) error {
	if l == nil || !l.config.Enabled || account == "" {
		return nil
	}

	if err := l.redis.Del(ctx, l.key(account)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return nil
}

// FailureCount returns the current failure count for account.
func (l *Lockout) FailureCount(ctx context.Context, account string) (int, error) {
	if l == nil || !l.config.Enabled || account == "" {
		return 0, nil
	}

	count, err := l.redis.Get(ctx, l.key(account)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	return int(count), nil
}
