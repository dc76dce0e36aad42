package rbac

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/casbin/casbin/v2/model"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func recruitingSource() *StaticSource {
	return NewStaticSource(
		[]Edge{
			{Subject: "user1", Object: "candidates"},
			{Subject: "hr1", Object: "recruiters"},
			{Subject: "admin", Object: "operators"},
			{Subject: "admin", Object: "recruiters"},
		},
		[]Edge{
			{Subject: "candidates", Object: "USER"},
			{Subject: "recruiters", Object: "HR"},
			{Subject: "operators", Object: "ADMIN"},
		},
		[]Edge{
			{Subject: "USER", Object: "job:read"},
			{Subject: "USER", Object: "resume:write"},
			{Subject: "HR", Object: "job:read"},
			{Subject: "HR", Object: "job:write"},
			{Subject: "HR", Object: "resume:read"},
			{Subject: "ADMIN", Object: "system:policy"},
			{Subject: "ADMIN", Object: "account"},
		},
	)
}

func newTestModel(t *testing.T) model.Model {
	t.Helper()
	m, err := model.NewModelFromString(modelConf)
	require.NoError(t, err)
	return m
}

func TestAdapterLoadsAllStrata(t *testing.T) {
	a := NewAdapter(recruitingSource(), 0, quietLogger())
	m := newTestModel(t)

	require.NoError(t, a.LoadPolicy(m))

	stats := a.LastLoad()
	assert.Equal(t, 4, stats.Edges[StratumUserGroup])
	assert.Equal(t, 3, stats.Edges[StratumGroupRole])
	assert.Equal(t, 7, stats.Edges[StratumRolePermission])
	assert.Empty(t, stats.Skipped)
	assert.False(t, stats.LoadedAt.IsZero())
}

func TestAdapterSkipsFailingStratum(t *testing.T) {
	src := recruitingSource()
	src.FailStratum(StratumGroupRole, errors.New("table locked"))
	a := NewAdapter(src, 0, quietLogger())

	require.NoError(t, a.LoadPolicy(newTestModel(t)))

	stats := a.LastLoad()
	assert.Equal(t, []Stratum{StratumGroupRole}, stats.Skipped)
	assert.Zero(t, stats.Edges[StratumGroupRole])
	assert.Equal(t, 7, stats.Edges[StratumRolePermission])
}

func TestAdapterFailsWhenSourceDown(t *testing.T) {
	src := recruitingSource()
	src.SetUnavailable(errors.New("connection refused"))
	a := NewAdapter(src, 0, quietLogger())

	err := a.LoadPolicy(newTestModel(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrSourceUnavailable)
}

func TestAdapterHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := NewAdapter(recruitingSource(), 0, quietLogger()).WithContext(ctx)

	assert.ErrorIs(t, a.LoadPolicy(newTestModel(t)), ErrSourceUnavailable)
}

func TestAdapterDeduplicatesEdges(t *testing.T) {
	src := NewStaticSource(
		[]Edge{{Subject: "u", Object: "g"}, {Subject: "u", Object: "g"}, {Subject: "", Object: "g"}},
		nil,
		nil,
	)
	a := NewAdapter(src, 0, quietLogger())
	require.NoError(t, a.LoadPolicy(newTestModel(t)))
	assert.Equal(t, 1, a.LastLoad().Edges[StratumUserGroup])
}

func TestAdapterWriteBackIsUnsupported(t *testing.T) {
	a := NewAdapter(recruitingSource(), 0, quietLogger())
	assert.ErrorIs(t, a.SavePolicy(newTestModel(t)), ErrUnsupported)
	assert.NoError(t, a.AddPolicy("p", "p", []string{"role:X", "a", "b"}))
	assert.NoError(t, a.RemovePolicy("p", "p", []string{"role:X", "a", "b"}))
	assert.NoError(t, a.RemoveFilteredPolicy("p", "p", 0, "role:X"))
}

func TestSplitPermission(t *testing.T) {
	cases := []struct {
		in, obj, act string
	}{
		{"job:read", "job", "read"},
		{"job:posting:close", "job:posting", "close"},
		{"account", "account", "*"},
		{"account:", "account", "*"},
		{"resume:*", "resume", "*"},
	}
	for _, tc := range cases {
		obj, act := SplitPermission(tc.in)
		assert.Equal(t, tc.obj, obj, tc.in)
		assert.Equal(t, tc.act, act, tc.in)
	}
}
