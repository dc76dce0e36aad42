package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hirelink/hireauth/internal/db/bunx"
	"github.com/hirelink/hireauth/internal/repository"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Edit the RBAC relations",
	Long: `Edits the account, role group, role and permission relations. A running
server picks changes up on its next reload (SIGHUP, the reload interval, or
POST /admin/policy/reload).`,
}

// policyAction wraps a repository call with database setup.
func policyAction(use, short string, fn func(cmd *cobra.Command, repo *repository.BunPolicyRepository, args []string) error) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := openDatabase(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer bunx.Close(db)
			if err := fn(cmd, repository.NewBunPolicyRepository(db), args); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "ok")
			return nil
		},
	}
}

func init() {
	policyCmd.AddCommand(
		policyAction("join <account> <group>", "Add an account to a role group",
			func(cmd *cobra.Command, repo *repository.BunPolicyRepository, args []string) error {
				return repo.AddAccountToGroup(cmd.Context(), args[0], args[1])
			}),
		policyAction("leave <account> <group>", "Remove an account from a role group",
			func(cmd *cobra.Command, repo *repository.BunPolicyRepository, args []string) error {
				return repo.RemoveAccountFromGroup(cmd.Context(), args[0], args[1])
			}),
		policyAction("grant-role <group> <role>", "Grant a role to a role group",
			func(cmd *cobra.Command, repo *repository.BunPolicyRepository, args []string) error {
				return repo.GrantRole(cmd.Context(), args[0], args[1])
			}),
		policyAction("grant-permission <role> <resource:action>", "Grant a permission to a role",
			func(cmd *cobra.Command, repo *repository.BunPolicyRepository, args []string) error {
				return repo.GrantPermission(cmd.Context(), args[0], args[1])
			}),
	)
}
