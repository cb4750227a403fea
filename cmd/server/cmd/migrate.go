package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"github.com/riverqueue/river/rivermigrate"
	"github.com/spf13/cobra"

	"github.com/gatherline/server/internal/config"
	"github.com/gatherline/server/internal/storage/postgres"
)

var (
	migrateDown  bool
	migrateSteps int
	migratePath  string
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Apply schema migrations to the configured database.

Runs the application migrations and then the River job queue migrations,
so a fresh database is fully prepared with one command.

Examples:
  # Apply all pending migrations
  server migrate

  # Roll back the last migration
  server migrate --down --steps 1`,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateDown, "down", false, "roll back instead of applying")
	migrateCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back (with --down)")
	migrateCmd.Flags().StringVar(&migratePath, "path", "", "migrations directory (default: "+postgres.DefaultMigrationsPath+")")
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	logger := config.NewLogger(cfg.Logging)

	if migrateDown {
		if err := postgres.MigrateDown(cfg.Database.URL, migratePath, migrateSteps); err != nil {
			return fmt.Errorf("migrate down: %w", err)
		}
		logger.Info().Int("steps", migrateSteps).Msg("rolled back migrations")
		return nil
	}

	if err := postgres.MigrateUp(cfg.Database.URL, migratePath); err != nil {
		return fmt.Errorf("migrate up: %w", err)
	}
	logger.Info().Msg("applied schema migrations")

	if err := migrateRiver(cfg.Database.URL); err != nil {
		return fmt.Errorf("migrate river: %w", err)
	}
	logger.Info().Msg("applied river migrations")
	return nil
}

// migrateRiver sets up the river_job tables the sync queue runs on.
func migrateRiver(databaseURL string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	migrator, err := rivermigrate.New(riverpgxv5.New(pool), nil)
	if err != nil {
		return err
	}
	_, err = migrator.Migrate(ctx, rivermigrate.DirectionUp, &rivermigrate.MigrateOpts{})
	return err
}
