package main

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"byd90-backend/internal/app"
	"byd90-backend/internal/config"
	"byd90-backend/internal/database"
	"byd90-backend/internal/logger"
)

var migrateCommands = map[string]bool{
	"up":        true,
	"up-by-one": true,
	"down":      true,
	"redo":      true,
	"reset":     true,
	"status":    true,
	"version":   true,
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "byd90",
		Short:         "BYD90 - Beyond Ninety API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serve := newServeCmd()
	root.AddCommand(serve, newMigrateCmd())
	root.RunE = serve.RunE

	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := setup()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			application, err := app.New(ctx, cfg)
			if err != nil {
				slog.Error("failed to initialize application", "error", err)
				return err
			}

			if err := application.Run(ctx); err != nil {
				slog.Error("application run failed", "error", err)
				return err
			}
			return nil
		},
	}
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "migrate [up|up-by-one|down|redo|reset|status|version]",
		Short:     "Apply or inspect database migrations",
		Args:      cobra.RangeArgs(0, 2),
		ValidArgs: []string{"up", "up-by-one", "down", "redo", "reset", "status", "version"},
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) > 0 {
				command = args[0]
			}
			if !migrateCommands[command] {
				return fmt.Errorf("unknown migrate command %q", command)
			}

			cfg, err := setup()
			if err != nil {
				return err
			}
			if cfg.StoreBackend != config.StoreBackendPostgres {
				return fmt.Errorf("migrations require STORE_BACKEND=%s", config.StoreBackendPostgres)
			}

			ctx := cmd.Context()
			db, err := database.New(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				slog.Error("failed to connect to database", "error", err)
				return err
			}
			defer db.Close()

			if err := db.RunMigrations(ctx, command, args[min(1, len(args)):]...); err != nil {
				slog.Error("migration failed", "command", command, "error", err)
				return err
			}
			return nil
		},
	}
}

// setup loads configuration and installs the process logger.
func setup() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, "failed to load config:", err)
		return nil, err
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}

	log, err := logger.Setup(os.Stdout, cfg.LogFormat, level, cfg.AppName, cfg.AppVersion)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return nil, err
	}
	slog.SetDefault(log)

	return cfg, nil
}
