// Package repository implements the engine's relational collaborators on
// top of bun: the policy edge source, the account provider and the access
// log sink. Every query works against both PostgreSQL and SQLite.
package repository
