package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/animus-labs/stamps/internal/datatype"
	"github.com/animus-labs/stamps/internal/platform/postgres"
	pgrepo "github.com/animus-labs/stamps/internal/repo/postgres"
	"github.com/animus-labs/stamps/internal/service/validation"
)

// app carries the loaded configuration and the factories commands use to
// reach storage. Tests replace openService with an in-memory stack.
type app struct {
	cfg         cliConfig
	openService func(ctx context.Context, cfg cliConfig, logger *slog.Logger) (*validation.Service, func(), error)
	migrate     func(ctx context.Context, cfg cliConfig) error
}

func newApp() *app {
	return &app{openService: openPostgresService, migrate: migratePostgres}
}

func newRootCmd(a *app) *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:   "stampctl",
		Short: "Inspect validation stamps, runs and data types",
		Long: `stampctl checks validation run data offline against the built-in data
types and reads stamps, runs and compliance statistics from the
validation database.

Configuration is read from an optional YAML file (--config), STAMPCTL_*
environment variables (STAMPCTL_DATABASE_URL, STAMPCTL_OUTPUT_FORMAT) and flags.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath, cmd.Flags())
			if err != nil {
				return err
			}
			a.cfg = cfg
			if !cfg.Output.Color {
				color.NoColor = true
			}
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configPath, "config", "", "Path to a YAML config file")
	flags.String("database-url", "", "Postgres connection URL")
	flags.StringP("output", "o", "text", "Output format: text or json")
	flags.Bool("no-color", false, "Disable colored output")

	root.AddCommand(newDataTypesCmd(a))
	root.AddCommand(newCheckCmd(a))
	root.AddCommand(newStatsCmd(a))
	root.AddCommand(newRunCmd(a))
	root.AddCommand(newMigrateCmd(a))
	return root
}

func (a *app) logger(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelWarn}))
}

func openPostgresService(ctx context.Context, cfg cliConfig, logger *slog.Logger) (*validation.Service, func(), error) {
	db, err := postgres.Open(ctx, databaseConfig(cfg))
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	svc := validation.New(pgrepo.NewStampStore(db), pgrepo.NewRunStore(db), datatype.Builtin(), logger)
	return svc, func() { _ = db.Close() }, nil
}

func migratePostgres(ctx context.Context, cfg cliConfig) error {
	db, err := postgres.Open(ctx, databaseConfig(cfg))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()
	return pgrepo.ApplySchema(ctx, db)
}

func databaseConfig(cfg cliConfig) postgres.Config {
	return postgres.Config{
		URL:          cfg.Database.URL,
		PingTimeout:  cfg.Database.PingTimeout,
		MaxOpenConns: 2,
		MaxIdleConns: 1,
	}
}
