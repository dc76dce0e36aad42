// Package flows contains pure-function orchestrators for the Engine's
// session operations.
//
// Each flow function (RunCreate, RunValidate, RunRefresh, RunLogin) accepts a
// typed dependency struct and returns results without side-effects beyond
// those dependencies. The Engine wires the dependencies once and stays thin.
//
// # Architecture boundaries
//
// Flow functions coordinate the session store, the RBAC resolvers, the rate
// limiter and metrics. They do NOT own any of these resources; ownership
// stays with the Engine.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import hireauth (to avoid import cycles).
//   - Perform I/O directly; all I/O goes through dependency interfaces.
package flows
