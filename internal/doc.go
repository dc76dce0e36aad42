// Package internal contains helper utilities that are intentionally private to hireauth,
// including secure session id generation and device fingerprint helpers.
//
// # Sub-packages
//
//   - dispatch: bounded async workers for refresh and access logging
//   - flows: pure-function orchestrators for the Engine's session operations
//   - rate: Redis-backed login throttling and lockout counters
//   - db/bunx, db/models, migrations, repository: relational storage
//   - server: the HTTP surface used by the daemon
//
// # What this package must NOT do
//
//   - Export types that appear in the public hireauth API.
//   - Be imported by any package outside the hireauth module.
package internal
