// Package rate provides the Redis-backed counters behind login throttling
// and automatic lockout.
//
// # Window semantics
//
// Fixed-window counters: INCR + conditional EXPIRE on first hit. Key prefixes
// (after the configured key prefix):
//   - rl:login:    login failures per account
//   - rl:login-ip: login failures per client IP
//   - rl:lockout:  failures counted toward automatic account lockout
//
// # What this package must NOT do
//
//   - Decide what happens to a locked account (the Engine owns that).
//   - Be imported outside the hireauth module.
package rate
