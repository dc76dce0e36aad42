// Package middleware adapts the hireauth engine to net/http.
//
// # Handlers
//
//   - [Authenticate] resolves the session header into a principal on the
//     request context, or answers with the JSON error body.
//   - [RequireLogin], [RequirePermission] and [RequireRole] guard routes
//     mounted behind Authenticate.
//   - [CORS] applies the cross-origin policy from the engine config.
//   - [RequestMetadata] records client IP, user agent, device id and client
//     version on the context for routes that skip authentication, such as
//     login.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Session lookup,
// expiry, the disabled marker and policy evaluation all happen in the
// engine.
//
// # What this package must NOT do
//
//   - Access Redis or the policy source directly.
//   - Decide authorization beyond pass/reject from the engine.
//   - Keep the principal anywhere but the derived request context.
package middleware
