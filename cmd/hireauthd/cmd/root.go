package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/hirelink/hireauth"
)

var (
	configPath string
	v          *viper.Viper
	cfg        hireauth.Config
	log        = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "hireauthd",
	Short: "Session and RBAC service for the hiring platform",
	Long: `hireauthd validates platform sessions stored in Redis, resolves roles and
permissions from the relational policy tables, and serves login, logout and
administrative endpoints over HTTP.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setupLogging(cmd); err != nil {
			return err
		}

		var err error
		v, err = hireauth.NewViper(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		bindFlag(cmd, "db-dsn", "database.dsn")
		bindFlag(cmd, "db-driver", "database.driver")
		bindFlag(cmd, "redis-addr", "redis.addrs")
		bindFlag(cmd, "addr", "server.addr")

		cfg, err = hireauth.DecodeConfig(v)
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Configuration file (yaml, json or toml)")
	rootCmd.PersistentFlags().String("db-dsn", "", "Database DSN (env: HIREAUTH_DATABASE_DSN)")
	rootCmd.PersistentFlags().String("db-driver", "", "Database driver: postgres or sqlite (env: HIREAUTH_DATABASE_DRIVER)")
	rootCmd.PersistentFlags().StringSlice("redis-addr", nil, "Redis address; repeat for a cluster (env: HIREAUTH_REDIS_ADDRS)")
	rootCmd.PersistentFlags().String("log-level", "info", "Log level")
	rootCmd.PersistentFlags().String("log-format", "text", "Log format: text or json")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(accountCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(hashPasswordCmd)
	rootCmd.AddCommand(loadtestCmd)
}

// bindFlag lets an explicitly set flag win over file and environment.
func bindFlag(cmd *cobra.Command, flag, key string) {
	if f := cmd.Flags().Lookup(flag); f != nil && f.Changed {
		_ = v.BindPFlag(key, f)
	}
}

func setupLogging(cmd *cobra.Command) error {
	levelName, _ := cmd.Flags().GetString("log-level")
	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", levelName, err)
	}
	log.SetLevel(level)
	log.SetOutput(os.Stderr)

	format, _ := cmd.Flags().GetString("log-format")
	switch format {
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
