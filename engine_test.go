package hireauth

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirelink/hireauth/password"
	"github.com/hirelink/hireauth/rbac"
)

const testPassword = "correct-horse-battery"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]AccountRecord
	updates  int
}

func (m *memAccounts) GetAccount(_ context.Context, account string) (AccountRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.accounts[account]
	if !ok {
		return AccountRecord{}, ErrAccountNotFound
	}
	return rec, nil
}

func (m *memAccounts) UpdatePasswordHash(_ context.Context, account, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.accounts[account]
	if !ok {
		return ErrAccountNotFound
	}
	rec.PasswordHash = hash
	m.accounts[account] = rec
	m.updates++
	return nil
}

type engineHarness struct {
	engine   *Engine
	mr       *miniredis.Miniredis
	rdb      *redis.Client
	source   *rbac.StaticSource
	accounts *memAccounts
	clock    *testClock
}

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Session.AsyncRefresh = false
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	return cfg
}

func platformSource() *rbac.StaticSource {
	return rbac.NewStaticSource(
		[]rbac.Edge{
			{Subject: "user1", Object: "candidates"},
			{Subject: "hr1", Object: "recruiters"},
		},
		[]rbac.Edge{
			{Subject: "candidates", Object: "USER"},
			{Subject: "recruiters", Object: "HR"},
		},
		[]rbac.Edge{
			{Subject: "USER", Object: "job:read"},
			{Subject: "USER", Object: "resume:write"},
			{Subject: "HR", Object: "job:read"},
			{Subject: "HR", Object: "job:write"},
		},
	)
}

func testHash(t *testing.T, cfg password.Config) string {
	t.Helper()
	h, err := password.NewArgon2(cfg)
	require.NoError(t, err)
	hash, err := h.Hash(testPassword)
	require.NoError(t, err)
	return hash
}

func newEngineHarness(t *testing.T, mutate func(*Config)) *engineHarness {
	t.Helper()

	cfg := testConfig()
	if mutate != nil {
		mutate(&cfg)
	}

	mr, err := miniredis.Run()
	require.NoError(t, err)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		rdb.Close()
		mr.Close()
	})

	hash := testHash(t, password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	})
	accounts := &memAccounts{accounts: map[string]AccountRecord{
		"user1": {Account: "user1", UserID: 1, PasswordHash: hash, Nickname: "Ann", Enabled: true},
		"hr1":   {Account: "hr1", UserID: 2, PasswordHash: hash, Nickname: "Bo", Enabled: true},
		"gone":  {Account: "gone", UserID: 3, PasswordHash: hash, Enabled: false},
	}}

	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	src := platformSource()

	engine, err := New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithPolicySource(src).
		WithAccountProvider(accounts).
		WithLogger(quietLogger()).
		WithClock(clock.Now).
		Build()
	require.NoError(t, err)
	t.Cleanup(engine.Close)

	return &engineHarness{
		engine:   engine,
		mr:       mr,
		rdb:      rdb,
		source:   src,
		accounts: accounts,
		clock:    clock,
	}
}

func (h *engineHarness) createSession(t *testing.T, account string) string {
	t.Helper()
	sid, err := h.engine.CreateUserSession(context.Background(), SessionRequest{
		Account: account,
		UserID:  42,
		Roles:   []string{"STALE"},
	})
	require.NoError(t, err)
	return sid
}

func TestBuildRequiresRedisAndPolicySource(t *testing.T) {
	_, err := New().WithPolicySource(platformSource()).WithLogger(quietLogger()).Build()
	require.Error(t, err)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	_, err = New().WithRedis(rdb).WithLogger(quietLogger()).Build()
	require.Error(t, err)
}

func TestBuildRejectsInvalidConfig(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	cfg := testConfig()
	cfg.Session.TTL = 0
	_, err := New().WithConfig(cfg).WithRedis(rdb).WithPolicySource(platformSource()).Build()
	require.Error(t, err)
}

func TestBuildFailsWithoutInitialPolicy(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	src := platformSource()
	src.SetUnavailable(errors.New("connection refused"))

	_, err := New().
		WithConfig(testConfig()).
		WithRedis(rdb).
		WithPolicySource(src).
		WithLogger(quietLogger()).
		Build()
	require.ErrorIs(t, err, ErrPolicyUnavailable)
}

func TestBuilderIsSingleUse(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	b := New().WithConfig(testConfig()).WithRedis(rdb).WithPolicySource(platformSource()).WithLogger(quietLogger())
	engine, err := b.Build()
	require.NoError(t, err)
	defer engine.Close()

	_, err = b.Build()
	require.Error(t, err)
}

func TestPingReportsStoreOutage(t *testing.T) {
	h := newEngineHarness(t, nil)
	require.NoError(t, h.engine.Ping(context.Background()))

	h.mr.SetError("LOADING server is loading")
	require.ErrorIs(t, h.engine.Ping(context.Background()), ErrStoreUnavailable)
}

func TestSecurityReportReflectsConfig(t *testing.T) {
	h := newEngineHarness(t, func(cfg *Config) {
		cfg.Security.LockoutEnabled = true
	})

	rep := h.engine.SecurityReport()
	assert.Equal(t, 24*time.Hour, rep.SessionTTL)
	assert.True(t, rep.SingleSession)
	assert.True(t, rep.LoginThrottleActive)
	assert.True(t, rep.LockoutActive)
	assert.False(t, rep.AsyncRefresh)
	assert.Contains(t, rep.ExcludedPaths, "/login")
	assert.Equal(t, uint64(1), rep.PolicyGeneration)
}
