package hireauth

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirelink/hireauth/rbac"
)

func principalContext(t *testing.T, h *engineHarness, account string) context.Context {
	t.Helper()
	sid := h.createSession(t, account)
	p, err := h.engine.ValidateSessionAndGetUser(context.Background(), sid)
	require.NoError(t, err)
	return WithPrincipal(context.Background(), p)
}

func TestFacadeWithoutPrincipalDenies(t *testing.T) {
	h := newEngineHarness(t, nil)
	ctx := context.Background()

	assert.False(t, CheckLogin(ctx))
	assert.False(t, CheckRole(ctx, "USER"))
	assert.False(t, h.engine.CheckPermission(ctx, "job:read"))
	assert.False(t, h.engine.CheckRole(ctx, "USER"))
}

func TestFacadeChecksLivePolicy(t *testing.T) {
	h := newEngineHarness(t, nil)
	ctx := principalContext(t, h, "hr1")

	assert.True(t, CheckLogin(ctx))
	assert.True(t, CheckRole(ctx, "HR"))
	assert.False(t, CheckRole(ctx, "ADMIN"))
	assert.True(t, h.engine.CheckPermission(ctx, "job:write"))
	assert.False(t, h.engine.CheckPermission(ctx, "resume:write"))
	assert.False(t, h.engine.CheckPermission(ctx, ""))

	h.source.Replace(
		[]rbac.Edge{{Subject: "hr1", Object: "recruiters"}},
		[]rbac.Edge{{Subject: "recruiters", Object: "HR"}},
		[]rbac.Edge{{Subject: "HR", Object: "resume:write"}},
	)
	require.NoError(t, h.engine.ReloadPolicy(context.Background()))

	assert.False(t, h.engine.CheckPermission(ctx, "job:write"))
	assert.True(t, h.engine.CheckPermission(ctx, "resume:write"))
	assert.Equal(t, uint64(2), h.engine.MetricsSnapshot().Counters[MetricPermissionDenied])
}

func TestEngineCheckRoleFollowsReload(t *testing.T) {
	h := newEngineHarness(t, nil)
	ctx := principalContext(t, h, "user1")

	assert.True(t, h.engine.CheckRole(ctx, "USER"))

	h.source.Replace(nil, nil, nil)
	require.NoError(t, h.engine.ReloadPolicy(context.Background()))

	// captured roles stay, live roles are gone
	assert.True(t, CheckRole(ctx, "USER"))
	assert.False(t, h.engine.CheckRole(ctx, "USER"))
}

func TestPrincipalWildcardPermission(t *testing.T) {
	p := &Principal{Account: "admin", Enabled: true, NotExpired: true, Permissions: []string{"account:*", "job:read"}}

	assert.True(t, p.HasPermission("account:delete"))
	assert.True(t, p.HasPermission("job:read"))
	assert.False(t, p.HasPermission("job:write"))
	assert.False(t, p.HasPermission(""))

	var nilEngine *Engine
	ctx := WithPrincipal(context.Background(), p)
	assert.True(t, nilEngine.CheckPermission(ctx, "account:lock"))
}

func TestPolicyReloadFailureKeepsPreviousPolicy(t *testing.T) {
	h := newEngineHarness(t, nil)
	ctx := principalContext(t, h, "user1")

	h.source.SetUnavailable(assert.AnError)
	err := h.engine.ReloadPolicy(context.Background())
	require.ErrorIs(t, err, ErrPolicyUnavailable)

	assert.True(t, h.engine.CheckPermission(ctx, "job:read"))

	status := h.engine.PolicyStatus()
	assert.Equal(t, uint64(1), status.Generation)
	assert.Equal(t, uint64(1), status.Failures)
	assert.Equal(t, uint64(1), h.engine.MetricsSnapshot().Counters[MetricPolicyReloadFailure])
}
