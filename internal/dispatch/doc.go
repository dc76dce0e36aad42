// Package dispatch runs best-effort background work off the request path.
//
// A [Dispatcher] owns a bounded queue and a fixed set of workers. Producers
// never wait when DropIfFull is set; work that does not fit is counted and
// discarded. Close drains whatever is already queued.
//
// # What this package must NOT do
//
//   - Retry failed work; handlers decide what a failure means.
//   - Be imported outside the hireauth module.
package dispatch
