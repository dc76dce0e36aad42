// Package session provides Redis-backed session records and the JSON codec
// that keeps them readable across schema changes.
//
// # Payload format
//
// Records are stored as JSON objects carrying an "@type" discriminator.
// [Codec.Decode] first decodes strictly; on failure it classifies the error
// (unknown field, unresolvable type, format) and falls back to a lenient or
// generic decode, consulting an [AliasTable] for renamed types and fields.
// Every recovery path is counted in [ErrorStats].
//
// # Architecture boundaries
//
// This package owns the [Store] (Redis operations), the [Record] model and
// the codec. It does NOT decide whether a record is still valid for a
// request (expiry, disabled accounts, live permissions); that belongs to the
// Engine.
//
// # What this package must NOT do
//
//   - Import hireauth or rbac (no upward imports).
//   - Return a partially decoded record as usable.
//   - Log; failures are surfaced through return values and counters.
package session
