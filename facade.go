package hireauth

import "context"

// CheckLogin reports whether ctx carries an enabled, unexpired principal.
func CheckLogin(ctx context.Context) bool {
	p := PrincipalFromContext(ctx)
	return p != nil && p.Enabled && p.NotExpired && p.Account != ""
}

// CheckRole reports whether the request principal holds role. The roles
// were resolved from the live policy when the request was authenticated.
func CheckRole(ctx context.Context, role string) bool {
	if !CheckLogin(ctx) {
		return false
	}
	return PrincipalFromContext(ctx).HasRole(role)
}

// CheckPermission reports whether the request principal may perform perm
// ("resource:action"). It asks the enforcer with the principal's account as
// subject, so a policy reload applies even within a long request. A missing
// principal is denied, never an error.
func (e *Engine) CheckPermission(ctx context.Context, perm string) bool {
	if !CheckLogin(ctx) || perm == "" {
		return false
	}
	p := PrincipalFromContext(ctx)
	var ok bool
	if e != nil && e.enforcer != nil {
		ok = e.enforcer.EnforcePermission(p.Account, perm)
	} else {
		ok = p.HasPermission(perm)
	}
	if !ok {
		e.metricInc(MetricPermissionDenied)
	}
	return ok
}

// CheckRole is [CheckRole] evaluated against the live policy instead of
// the roles captured at authentication time.
func (e *Engine) CheckRole(ctx context.Context, role string) bool {
	if !CheckLogin(ctx) || role == "" {
		return false
	}
	p := PrincipalFromContext(ctx)
	var ok bool
	if e != nil && e.enforcer != nil {
		ok = e.enforcer.HasRole(p.Account, role)
	} else {
		ok = p.HasRole(role)
	}
	if !ok {
		e.metricInc(MetricPermissionDenied)
	}
	return ok
}
