// Package bunx opens the relational store behind accounts, policy edges and
// access logs.
package bunx

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/hirelink/hireauth"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	_ "modernc.org/sqlite" // SQLite driver
)

// DatabaseType is the backend behind a DSN.
type DatabaseType string

const (
	DatabaseTypePostgreSQL DatabaseType = "postgres"
	DatabaseTypeSQLite     DatabaseType = "sqlite"
)

// DetectDatabaseType guesses the backend from a DSN.
func DetectDatabaseType(dsn string) DatabaseType {
	switch {
	case strings.HasPrefix(dsn, "postgres://"),
		strings.HasPrefix(dsn, "postgresql://"),
		strings.HasPrefix(dsn, "unix://"):
		return DatabaseTypePostgreSQL
	default:
		return DatabaseTypeSQLite
	}
}

// Open connects using cfg. An empty Driver is inferred from the DSN.
func Open(ctx context.Context, cfg hireauth.DatabaseConfig) (*bun.DB, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn is empty")
	}
	dbType := DatabaseType(cfg.Driver)
	if dbType == "" {
		dbType = DetectDatabaseType(cfg.DSN)
	}

	switch dbType {
	case DatabaseTypePostgreSQL:
		return openPostgreSQL(ctx, cfg)
	case DatabaseTypeSQLite:
		return openSQLite(ctx, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

func openPostgreSQL(ctx context.Context, cfg hireauth.DatabaseConfig) (*bun.DB, error) {
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.DSN)))
	if cfg.MaxOpenConns > 0 {
		sqldb.SetMaxOpenConns(cfg.MaxOpenConns)
		sqldb.SetMaxIdleConns(cfg.MaxOpenConns)
	}
	sqldb.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	db := bun.NewDB(sqldb, pgdialect.New())
	if err := db.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

func openSQLite(ctx context.Context, cfg hireauth.DatabaseConfig) (*bun.DB, error) {
	sqldb, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	// One connection: in-memory databases live and die with it, and SQLite
	// serializes writers anyway.
	sqldb.SetMaxOpenConns(1)
	sqldb.SetConnMaxLifetime(0)

	db := bun.NewDB(sqldb, sqlitedialect.New())

	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}
	if !strings.Contains(cfg.DSN, ":memory:") && !strings.Contains(cfg.DSN, "mode=memory") {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode = WAL"); err != nil {
			sqldb.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := db.PingContext(ctx); err != nil {
		sqldb.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// Close closes db; nil is ignored.
func Close(db *bun.DB) error {
	if db == nil {
		return nil
	}
	return db.Close()
}
