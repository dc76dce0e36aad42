package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/hirelink/hireauth"
	"github.com/hirelink/hireauth/internal/db/bunx"
	"github.com/hirelink/hireauth/internal/repository"
	"github.com/hirelink/hireauth/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Starts the HTTP server. SIGHUP reloads the RBAC policy; SIGINT and SIGTERM
shut the server down gracefully. Changes to the serialization aliases in the
configuration file are applied without a restart.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		db, err := openDatabase(ctx, cfg)
		if err != nil {
			return err
		}
		defer bunx.Close(db)

		rdb, err := newRedis(ctx, cfg.Redis)
		if err != nil {
			return err
		}
		defer rdb.Close()

		engine, err := hireauth.New().
			WithConfig(cfg).
			WithRedis(rdb).
			WithPolicySource(repository.NewBunPolicyRepository(db)).
			WithAccountProvider(repository.NewBunAccountRepository(db)).
			WithAccessLogSink(repository.NewBunAccessLogRepository(db)).
			WithLogger(log).
			BuildContext(ctx)
		if err != nil {
			return fmt.Errorf("failed to build engine: %w", err)
		}
		defer engine.Close()

		report := engine.SecurityReport()
		log.WithFields(logrus.Fields{
			"single_session":    report.SingleSession,
			"login_throttle":    report.LoginThrottleActive,
			"lockout":           report.LockoutActive,
			"access_log":        report.AccessLogActive,
			"excluded_paths":    len(report.ExcludedPaths),
			"policy_generation": report.PolicyGeneration,
		}).Info("security posture")
		if !report.LoginThrottleActive {
			log.Warn("login throttling is disabled")
		}

		if cfg.RBAC.ReloadInterval > 0 {
			go engine.WatchPolicy(ctx, cfg.RBAC.ReloadInterval)
		}
		watchAliases(engine)

		srv := &http.Server{
			Addr:         cfg.Server.Addr,
			Handler:      server.NewRouter(server.RouterOptions{Engine: engine, Logger: log}),
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		}

		serverErrors := make(chan error, 1)
		go func() {
			log.WithField("addr", srv.Addr).Info("hireauthd listening")
			serverErrors <- srv.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)
		reload := make(chan os.Signal, 1)
		signal.Notify(reload, syscall.SIGHUP)
		defer signal.Stop(shutdown)
		defer signal.Stop(reload)

		for {
			select {
			case err := <-serverErrors:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return fmt.Errorf("server error: %w", err)

			case <-reload:
				if err := engine.ReloadPolicy(ctx); err != nil {
					log.WithError(err).Error("policy reload on SIGHUP failed")
				} else {
					log.WithField("generation", engine.PolicyStatus().Generation).Info("policy reloaded")
				}

			case sig := <-shutdown:
				log.WithField("signal", sig.String()).Info("shutting down")
				shutdownCtx, stop := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
				defer stop()
				if err := srv.Shutdown(shutdownCtx); err != nil {
					srv.Close()
					return fmt.Errorf("graceful shutdown failed: %w", err)
				}
				return nil
			}
		}
	},
}

func init() {
	serveCmd.Flags().String("addr", "", "Listen address (env: HIREAUTH_SERVER_ADDR)")
}

// watchAliases re-reads the configuration file on change and swaps in the
// new serialization alias table. Other settings need a restart.
func watchAliases(engine *hireauth.Engine) {
	if configPath == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		next, err := hireauth.DecodeConfig(v)
		if err != nil {
			log.WithError(err).WithField("file", e.Name).Warn("ignoring invalid configuration change")
			return
		}
		aliases := next.Serialization.AliasTable()
		engine.SetAliases(aliases)
		log.WithField("alias_version", aliases.Version).Info("serialization aliases updated")
	})
	v.WatchConfig()
}
