// Package rbac loads role-based access policy from the relational store and
// answers authorization queries over it.
//
// # Policy graph
//
// Three strata are loaded: account to role group, role group to role, and
// role to permission. Permissions are "resource:action" strings; the part
// after the last colon is the action. Groups and roles are namespaced inside
// the Casbin role graph as "group:<name>" and "role:<name>".
//
// # Reload
//
// [Enforcer.ReloadPolicy] builds a complete new policy before swapping it in.
// A failed reload leaves the previous policy serving requests.
//
// # Architecture boundaries
//
// [PolicySource] is the only way this package reads policy. It never writes
// policy back; administration happens in the relational store followed by a
// reload.
//
// # What this package must NOT do
//
//   - Import hireauth, session or any storage driver.
//   - Grant access when no edge matches (default deny).
package rbac
