package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aryan0dhankhar/rentledger/internal/infrastructure/logger"
	"github.com/aryan0dhankhar/rentledger/internal/repository"
	"github.com/aryan0dhankhar/rentledger/internal/security"
	"github.com/aryan0dhankhar/rentledger/internal/security/audit"
	"github.com/aryan0dhankhar/rentledger/internal/security/auth"
	"github.com/aryan0dhankhar/rentledger/internal/service"
	"github.com/aryan0dhankhar/rentledger/pkg/config"
	"github.com/aryan0dhankhar/rentledger/pkg/database"
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg.StorageDriver != config.DriverPostgres {
		return nil, fmt.Errorf("rentctl needs STORAGE_DRIVER=%s, got %s", config.DriverPostgres, cfg.StorageDriver)
	}
	return cfg, nil
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	up := &cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := database.Migrate(cmd.Context(), cfg.Database.DSN()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "migrations applied")
			return nil
		},
	}

	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			steps, _ := cmd.Flags().GetInt("steps")
			if steps < 1 {
				return errors.New("--steps must be at least 1")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := database.Rollback(cmd.Context(), cfg.Database.DSN(), steps); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "rolled back %d migration(s)\n", steps)
			return nil
		},
	}
	down.Flags().Int("steps", 1, "Number of migrations to roll back")

	version := &cobra.Command{
		Use:   "version",
		Short: "Print the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			v, err := database.Version(cmd.Context(), cfg.Database.DSN())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema version %d\n", v)
			return nil
		},
	}

	cmd.AddCommand(up, down, version)
	return cmd
}

func adminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Account administration",
	}

	create := &cobra.Command{
		Use:   "create-superadmin",
		Short: "Create a platform superadmin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = os.Getenv("RENTCTL_ADMIN_PASSWORD")
			}
			if email == "" || password == "" {
				return errors.New("--email and --password (or RENTCTL_ADMIN_PASSWORD) are required")
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := logger.NewLogger(cfg.LogLevel)

			pool, err := database.NewConnectionPool(cmd.Context(), &cfg.Database, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			store := repository.NewPostgresStore(pool.GetDB(), log)
			dispatcher := audit.NewDispatcher(log, 16, audit.NewLogger(log))
			auditCtx, stopAudit := context.WithCancel(context.Background())
			go dispatcher.Start(auditCtx)
			defer func() {
				stopAudit()
				<-dispatcher.Done()
			}()

			authService := service.NewAuthService(service.Deps{
				Store:  store,
				Authz:  security.NewAuthorizer(security.NewChainResolver(store.Repos()), log),
				Audit:  dispatcher,
				Logger: log,
			}, auth.NewTokenManager(cfg.JWT.Secret, cfg.JWT.Issuer, cfg.JWT.TTL))

			user, err := authService.CreateSuperAdmin(cmd.Context(), email, password)
			if err != nil {
				return fmt.Errorf("create superadmin: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created superadmin %s (%s)\n", user.Email, user.ID)
			return nil
		},
	}
	create.Flags().String("email", "", "Email address of the new account")
	create.Flags().String("password", "", "Initial password")

	cmd.AddCommand(create)
	return cmd
}
