package hireauth

import (
	"context"
	"fmt"
	"time"

	"github.com/hirelink/hireauth/rbac"
)

// ReloadPolicy reloads the RBAC policy from its source. On failure the
// previous policy keeps serving and ErrPolicyUnavailable is returned.
func (e *Engine) ReloadPolicy(ctx context.Context) error {
	if e == nil || e.enforcer == nil {
		return ErrEngineNotReady
	}
	if err := e.enforcer.ReloadPolicy(ctx); err != nil {
		e.metricInc(MetricPolicyReloadFailure)
		return fmt.Errorf("%w: %v", ErrPolicyUnavailable, err)
	}
	e.metricInc(MetricPolicyReloadSuccess)
	return nil
}

// WatchPolicy reloads the policy every interval until ctx ends. Failed
// reloads are counted and logged; the loop keeps going.
func (e *Engine) WatchPolicy(ctx context.Context, interval time.Duration) {
	if e == nil || e.enforcer == nil || interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = e.ReloadPolicy(ctx)
		}
	}
}

// PolicyStatus describes the policy currently in force.
type PolicyStatus struct {
	Generation uint64
	Stats      rbac.LoadStats
	Reloads    uint64
	Failures   uint64
}

// PolicyStatus returns the generation and load statistics of the policy
// in force.
func (e *Engine) PolicyStatus() PolicyStatus {
	if e == nil || e.enforcer == nil {
		return PolicyStatus{}
	}
	ok, failed := e.enforcer.ReloadCounts()
	return PolicyStatus{
		Generation: e.enforcer.Generation(),
		Stats:      e.enforcer.LastLoad(),
		Reloads:    ok,
		Failures:   failed,
	}
}
