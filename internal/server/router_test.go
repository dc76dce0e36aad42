package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirelink/hireauth"
	"github.com/hirelink/hireauth/internal/db/bunx"
	"github.com/hirelink/hireauth/internal/migrations"
	"github.com/hirelink/hireauth/internal/repository"
	"github.com/hirelink/hireauth/middleware"
)

const testPassword = "correct-horse-battery"

type fixture struct {
	engine   *hireauth.Engine
	mr       *miniredis.Miniredis
	router   http.Handler
	accounts *repository.BunAccountRepository
	policy   *repository.BunPolicyRepository
	logs     *repository.BunAccessLogRepository
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()

	log := logrus.New()
	log.SetOutput(io.Discard)

	db, err := bunx.Open(ctx, hireauth.DatabaseConfig{
		Driver: "sqlite",
		DSN:    fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString()),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = bunx.Close(db) })
	require.NoError(t, migrations.Apply(ctx, db, log))

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		mr:       mr,
		accounts: repository.NewBunAccountRepository(db),
		policy:   repository.NewBunPolicyRepository(db),
		logs:     repository.NewBunAccessLogRepository(db),
	}

	cfg := hireauth.DefaultConfig()
	cfg.Session.AsyncRefresh = false
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Metrics.Enabled = true
	cfg.AccessLog.Enabled = true

	f.engine, err = hireauth.New().
		WithConfig(cfg).
		WithRedis(rdb).
		WithPolicySource(f.policy).
		WithAccountProvider(f.accounts).
		WithAccessLogSink(f.logs).
		WithLogger(log).
		Build()
	require.NoError(t, err)
	t.Cleanup(f.engine.Close)

	hash, err := f.engine.HashPassword(testPassword)
	require.NoError(t, err)
	for _, acc := range []string{"user1", "admin"} {
		_, err := f.accounts.Create(ctx, acc, acc, hash)
		require.NoError(t, err)
	}
	require.NoError(t, f.policy.AddAccountToGroup(ctx, "user1", "candidates"))
	require.NoError(t, f.policy.AddAccountToGroup(ctx, "admin", "operators"))
	require.NoError(t, f.policy.GrantRole(ctx, "candidates", "USER"))
	require.NoError(t, f.policy.GrantRole(ctx, "operators", "ADMIN"))
	require.NoError(t, f.policy.GrantPermission(ctx, "USER", "job:read"))
	require.NoError(t, f.policy.GrantPermission(ctx, "ADMIN", PermPolicyReload))
	require.NoError(t, f.policy.GrantPermission(ctx, "ADMIN", PermAccountManage))
	require.NoError(t, f.engine.ReloadPolicy(ctx))

	f.router = NewRouter(RouterOptions{Engine: f.engine, Logger: log})
	return f
}

func (f *fixture) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != nil {
		data, _ := json.Marshal(body)
		rd = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, rd)
	req.RemoteAddr = "192.0.2.10:40000"
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *fixture) login(t *testing.T, account string) string {
	t.Helper()
	rec := f.do(http.MethodPost, "/login", "", loginRequest{Account: account, Password: testPassword})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp loginResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotEmpty(t, resp.SessionID)
	return resp.SessionID
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestLoginMeLogout(t *testing.T) {
	f := newFixture(t)
	sid := f.login(t, "user1")

	rec := f.do(http.MethodGet, "/me", sid, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	me := decode[principalResponse](t, rec)
	assert.Equal(t, "user1", me.Account)
	assert.Equal(t, sid, me.SessionID)
	assert.Equal(t, []string{"USER"}, me.Roles)
	assert.Equal(t, []string{"job:read"}, me.Permissions)
	assert.NotZero(t, me.UserID)

	stored, err := f.engine.GetSessionData(context.Background(), sid)
	require.NoError(t, err)
	assert.Equal(t, "192.0.2.10", stored.LoginIP)

	rec = f.do(http.MethodPost, "/logout", sid, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(http.MethodGet, "/me", sid, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, middleware.CodeTokenInvalid, decode[middleware.ErrorBody](t, rec).ErrorBy)
}

func TestLoginRejections(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodPost, "/login", "", loginRequest{Account: "user1", Password: "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, middleware.CodeInvalidCredentials, decode[middleware.ErrorBody](t, rec).ErrorBy)

	rec = f.do(http.MethodPost, "/login", "", loginRequest{Account: "nobody", Password: testPassword})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewReader([]byte("{not json")))
	raw := httptest.NewRecorder()
	f.router.ServeHTTP(raw, req)
	assert.Equal(t, http.StatusBadRequest, raw.Code)
	assert.Equal(t, middleware.CodeBadRequest, decode[middleware.ErrorBody](t, raw).ErrorBy)

	rec = f.do(http.MethodPost, "/logout", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, middleware.CodeTokenMissing, decode[middleware.ErrorBody](t, rec).ErrorBy)
}

func TestHealth(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	health := decode[healthResponse](t, rec)
	assert.Equal(t, "UP", health.Status)
	assert.NotZero(t, health.PolicyGeneration)

	f.mr.SetError("LOADING")
	rec = f.do(http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "DOWN", decode[healthResponse](t, rec).Status)
}

func TestAdminRoutesRequirePermission(t *testing.T) {
	f := newFixture(t)
	user := f.login(t, "user1")
	admin := f.login(t, "admin")

	for _, path := range []string{"/admin/policy/reload", "/admin/accounts/user1/kickout"} {
		rec := f.do(http.MethodPost, path, user, nil)
		assert.Equal(t, http.StatusForbidden, rec.Code, path)
		assert.Equal(t, middleware.CodeForbidden, decode[middleware.ErrorBody](t, rec).ErrorBy)
	}

	rec := f.do(http.MethodPost, "/admin/policy/reload", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	before := f.engine.PolicyStatus().Generation
	rec = f.do(http.MethodPost, "/admin/policy/reload", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	status := decode[policyResponse](t, rec)
	assert.Equal(t, before+1, status.Generation)
	assert.Equal(t, 2, status.Edges["user-group"])
}

func TestPolicyChangeVisibleAfterReload(t *testing.T) {
	f := newFixture(t)
	user := f.login(t, "user1")
	admin := f.login(t, "admin")

	require.NoError(t, f.policy.GrantPermission(context.Background(), "USER", "resume:write"))

	me := decode[principalResponse](t, f.do(http.MethodGet, "/me", user, nil))
	assert.NotContains(t, me.Permissions, "resume:write")

	require.Equal(t, http.StatusOK, f.do(http.MethodPost, "/admin/policy/reload", admin, nil).Code)

	me = decode[principalResponse](t, f.do(http.MethodGet, "/me", user, nil))
	assert.ElementsMatch(t, []string{"job:read", "resume:write"}, me.Permissions)
}

func TestAdminAccountActions(t *testing.T) {
	f := newFixture(t)
	admin := f.login(t, "admin")
	user := f.login(t, "user1")

	rec := f.do(http.MethodGet, "/admin/accounts/user1/session", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, user, decode[map[string]any](t, rec)["sessionId"])

	require.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/admin/accounts/user1/disable", admin, nil).Code)
	rec = f.do(http.MethodGet, "/me", user, nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, middleware.CodeAccountDisabled, decode[middleware.ErrorBody](t, rec).ErrorBy)

	require.Equal(t, http.StatusNoContent, f.do(http.MethodPost, "/admin/accounts/user1/enable", admin, nil).Code)
	assert.Equal(t, http.StatusOK, f.do(http.MethodGet, "/me", user, nil).Code)

	rec = f.do(http.MethodPost, "/admin/accounts/user1/kickout", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, decode[map[string]bool](t, rec)["removed"])
	assert.Equal(t, http.StatusBadRequest, f.do(http.MethodGet, "/me", user, nil).Code)

	rec = f.do(http.MethodGet, "/admin/accounts/user1/session", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.login(t, "user1")

	rec := f.do(http.MethodGet, "/actuator/prometheus", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "hireauth_login_success_total 1")
	assert.Contains(t, rec.Body.String(), `hireauth_background_dropped_total{queue="access_log"} 0`)
}

func TestAccessLogPersisted(t *testing.T) {
	f := newFixture(t)
	sid := f.login(t, "user1")
	require.Equal(t, http.StatusOK, f.do(http.MethodGet, "/me", sid, nil).Code)

	assert.Eventually(t, func() bool {
		entries, err := f.logs.RecentForAccount(context.Background(), "user1", 10)
		if err != nil || len(entries) == 0 {
			return false
		}
		e := entries[0]
		return e.Path == "/me" && e.Status == http.StatusOK && e.SessionID == sid && e.IP == "192.0.2.10"
	}, 2*time.Second, 20*time.Millisecond)
}

func TestCORSPreflightOnRouter(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodOptions, "/me", nil)
	req.Header.Set("Origin", "https://jobs.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)

	assert.Equal(t, "https://jobs.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestUnroutedPathRequiresSession(t *testing.T) {
	f := newFixture(t)

	rec := f.do(http.MethodGet, "/nowhere", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, middleware.CodeTokenMissing, decode[middleware.ErrorBody](t, rec).ErrorBy)

	rec = f.do(http.MethodGet, "/nowhere", "not-a-session-id-at-all", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	sid := f.login(t, "user1")
	rec = f.do(http.MethodGet, "/nowhere", sid, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
