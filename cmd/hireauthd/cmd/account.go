package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hirelink/hireauth/internal/db/bunx"
	"github.com/hirelink/hireauth/internal/repository"
	"github.com/hirelink/hireauth/password"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage login accounts",
}

var accountCreateCmd = &cobra.Command{
	Use:   "create <account>",
	Short: "Create an account; the password is read from stdin",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		nickname, _ := cmd.Flags().GetString("nickname")
		groups, _ := cmd.Flags().GetStringSlice("group")

		hash, err := hashFromReader(cmd.InOrStdin())
		if err != nil {
			return err
		}

		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		acc, err := repository.NewBunAccountRepository(db).Create(cmd.Context(), args[0], nickname, hash)
		if err != nil {
			return err
		}
		policy := repository.NewBunPolicyRepository(db)
		for _, g := range groups {
			if err := policy.AddAccountToGroup(cmd.Context(), acc.Account, g); err != nil {
				return err
			}
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (id %d)\n", acc.Account, acc.ID)
		return nil
	},
}

var accountSetEnabledCmd = &cobra.Command{
	Use:   "set-enabled <account> <true|false>",
	Short: "Allow or refuse future logins of an account",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var enabled bool
		switch args[1] {
		case "true":
			enabled = true
		case "false":
		default:
			return fmt.Errorf("expected true or false, got %q", args[1])
		}

		db, err := openDatabase(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer bunx.Close(db)
		return repository.NewBunAccountRepository(db).SetEnabled(cmd.Context(), args[0], enabled)
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password",
	Short: "Print the argon2id hash of a password read from stdin",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		hash, err := hashFromReader(cmd.InOrStdin())
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func hashFromReader(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	plaintext := strings.TrimRight(line, "\r\n")
	if plaintext == "" {
		return "", errors.New("empty password")
	}

	hasher, err := password.NewArgon2(cfg.Password.Argon2Config())
	if err != nil {
		return "", err
	}
	return hasher.Hash(plaintext)
}

func init() {
	accountCreateCmd.Flags().String("nickname", "", "Display name")
	accountCreateCmd.Flags().StringSlice("group", nil, "Role group to join; may be repeated")
	accountCmd.AddCommand(accountCreateCmd)
	accountCmd.AddCommand(accountSetEnabledCmd)
}
