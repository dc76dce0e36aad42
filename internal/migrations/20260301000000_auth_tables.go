package migrations

import (
	"context"
	"fmt"

	"github.com/hirelink/hireauth/internal/db/models"
	"github.com/uptrace/bun"
)

func init() {
	Migrations.MustRegister(up_20260301000000, down_20260301000000)
}

var authTables = []any{
	(*models.Account)(nil),
	(*models.RoleGroup)(nil),
	(*models.Role)(nil),
	(*models.Permission)(nil),
	(*models.AccountRoleGroup)(nil),
	(*models.RoleGroupRole)(nil),
	(*models.RolePermission)(nil),
}

// up_20260301000000 creates accounts and the three policy relations.
func up_20260301000000(ctx context.Context, db *bun.DB) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for _, model := range authTables {
			q := tx.NewCreateTable().Model(model).IfNotExists()
			switch model.(type) {
			case *models.AccountRoleGroup:
				q = q.ForeignKey(`("account_id") REFERENCES "accounts" ("id") ON DELETE CASCADE`).
					ForeignKey(`("role_group_id") REFERENCES "role_groups" ("id") ON DELETE CASCADE`)
			case *models.RoleGroupRole:
				q = q.ForeignKey(`("role_group_id") REFERENCES "role_groups" ("id") ON DELETE CASCADE`).
					ForeignKey(`("role_id") REFERENCES "roles" ("id") ON DELETE CASCADE`)
			case *models.RolePermission:
				q = q.ForeignKey(`("role_id") REFERENCES "roles" ("id") ON DELETE CASCADE`).
					ForeignKey(`("permission_id") REFERENCES "permissions" ("id") ON DELETE CASCADE`)
			}
			if _, err := q.Exec(ctx); err != nil {
				return fmt.Errorf("failed to create table for %T: %w", model, err)
			}
		}
		return nil
	})
}

func down_20260301000000(ctx context.Context, db *bun.DB) error {
	return db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		for i := len(authTables) - 1; i >= 0; i-- {
			if _, err := tx.NewDropTable().Model(authTables[i]).IfExists().Exec(ctx); err != nil {
				return fmt.Errorf("failed to drop table for %T: %w", authTables[i], err)
			}
		}
		return nil
	})
}
