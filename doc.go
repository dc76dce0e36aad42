// Package hireauth is the authentication, session and authorization core of
// the hiring platform.
//
// A caller logs in (or is handed a session by another login path), receives
// an opaque session id, and presents it on every request in the
// Authorization header. The [Engine] resolves that id against Redis, checks
// expiry and the per-account disabled marker, and re-resolves the caller's
// roles and permissions from the live RBAC policy before building a
// [Principal].
//
// Engine methods are safe to call from multiple goroutines after
// initialization through [Builder.Build].
//
// # Architecture boundaries
//
// hireauth is the public surface. It exposes [Engine], [Builder], [Config],
// [Principal] and the permission facade ([CheckLogin], [CheckRole],
// [Engine.CheckPermission]). Session persistence lives in session/, policy
// evaluation in rbac/, and flow orchestration, throttling and background
// dispatch under internal/.
//
// # What this package must NOT do
//
//   - Expose Redis clients or raw session payloads in its public API.
//   - Perform I/O outside of Engine methods (Build performs the initial
//     policy load and nothing else).
//   - Import middleware/ or any other package that imports hireauth.
//   - Treat a missing policy edge as permission: authorization is
//     default-deny.
package hireauth
