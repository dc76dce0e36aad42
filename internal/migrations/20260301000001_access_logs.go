package migrations

import (
	"context"
	"fmt"

	"github.com/hirelink/hireauth/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20260301000001, down_20260301000001)
}

// up_20260301000001 creates access_logs with an index for per-account
// history queries.
func up_20260301000001(ctx context.Context, db *bun.DB) error {
	_, err := db.NewCreateTable().
		Model((*models.AccessLog)(nil)).
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create access_logs table: %w", err)
	}

	_, err = db.NewCreateIndex().
		Model((*models.AccessLog)(nil)).
		Index("idx_access_logs_account_logged_at").
		Column("account", "logged_at").
		IfNotExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to create access_logs index: %w", err)
	}
	return nil
}

func down_20260301000001(ctx context.Context, db *bun.DB) error {
	_, err := db.NewDropTable().
		Model((*models.AccessLog)(nil)).
		IfExists().
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to drop access_logs table: %w", err)
	}
	return nil
}
