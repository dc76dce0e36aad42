package hireauth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hirelink/hireauth/rbac"
)

func TestWatchPolicyPicksUpChangesUntilCancelled(t *testing.T) {
	h := newEngineHarness(t, nil)
	require.False(t, h.engine.Enforcer().HasRole("user1", "HR"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.engine.WatchPolicy(ctx, 5*time.Millisecond)
		close(done)
	}()

	h.source.Replace(
		[]rbac.Edge{{Subject: "user1", Object: "recruiters"}},
		[]rbac.Edge{{Subject: "recruiters", Object: "HR"}},
		[]rbac.Edge{{Subject: "HR", Object: "job:write"}},
	)
	require.Eventually(t, func() bool {
		return h.engine.Enforcer().HasRole("user1", "HR")
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WatchPolicy did not stop after cancel")
	}
	assert.NotZero(t, h.engine.MetricsSnapshot().Counters[MetricPolicyReloadSuccess])
	assert.NotZero(t, h.engine.PolicyStatus().Reloads)
}

func TestWatchPolicyCountsFailures(t *testing.T) {
	h := newEngineHarness(t, nil)
	h.source.SetUnavailable(assert.AnError)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.engine.WatchPolicy(ctx, 5*time.Millisecond)

	require.Eventually(t, func() bool {
		return h.engine.MetricsSnapshot().Counters[MetricPolicyReloadFailure] > 0
	}, 2*time.Second, 5*time.Millisecond)
	assert.True(t, h.engine.Enforcer().HasRole("user1", "USER"))
}
