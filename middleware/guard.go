package middleware

import (
	"net/http"

	"github.com/hirelink/hireauth"
)

// RequireLogin rejects requests that reached it without a principal. It is
// only needed on routes that [Authenticate] might skip.
func RequireLogin() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hireauth.CheckLogin(r.Context()) {
				WriteError(w, http.StatusBadRequest, CodeTokenMissing, "token missing")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequirePermission answers 403 unless the principal holds perm
// ("resource:action") under the live policy.
func RequirePermission(engine *hireauth.Engine, perm string) func(http.Handler) http.Handler {
	return guard(func(r *http.Request) bool {
		return engine.CheckPermission(r.Context(), perm)
	})
}

// RequireRole answers 403 unless the principal holds role under the live
// policy.
func RequireRole(engine *hireauth.Engine, role string) func(http.Handler) http.Handler {
	return guard(func(r *http.Request) bool {
		return engine.CheckRole(r.Context(), role)
	})
}

func guard(allowed func(*http.Request) bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hireauth.CheckLogin(r.Context()) {
				WriteError(w, http.StatusBadRequest, CodeTokenMissing, "token missing")
				return
			}
			if !allowed(r) {
				WriteError(w, http.StatusForbidden, CodeForbidden, "permission denied")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
