// Package migrations creates the relational schema.
package migrations

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/migrate"
)

// Migrations is the registry every migration file adds itself to.
var Migrations = migrate.NewMigrations()

// Apply initializes the migration tables and runs every pending migration
// under the migrator lock.
func Apply(ctx context.Context, db *bun.DB, log logrus.FieldLogger) error {
	if log == nil {
		log = logrus.StandardLogger()
	}
	migrator := migrate.NewMigrator(db, Migrations)
	if err := migrator.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize migrator: %w", err)
	}

	if err := migrator.Lock(ctx); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if err := migrator.Unlock(ctx); err != nil {
			log.WithError(err).Warn("failed to release migration lock")
		}
	}()

	group, err := migrator.Migrate(ctx)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	if group.ID == 0 {
		log.Info("no new migrations to apply")
		return nil
	}
	log.WithField("group", group.ID).Info("applied migration group")
	return nil
}
