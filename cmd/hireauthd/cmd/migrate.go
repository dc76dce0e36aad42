package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"

	"github.com/hirelink/hireauth/internal/db/bunx"
	"github.com/hirelink/hireauth/internal/migrations"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bunx.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		return migrations.Apply(cmd.Context(), db, log)
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := bunx.Open(cmd.Context(), cfg.Database)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer bunx.Close(db)

		migrator := migrate.NewMigrator(db, migrations.Migrations)
		if err := migrator.Init(cmd.Context()); err != nil {
			return fmt.Errorf("failed to initialize migrator: %w", err)
		}
		ms, err := migrator.MigrationsWithStatus(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to read migration status: %w", err)
		}

		out := cmd.OutOrStdout()
		for _, m := range ms {
			state := "pending"
			if m.IsApplied() {
				state = fmt.Sprintf("applied (group %d)", m.GroupID)
			}
			fmt.Fprintf(out, "%s\t%s\n", m.Name, state)
		}
		return nil
	},
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
}
