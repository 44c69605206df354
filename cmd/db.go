package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/quarryintel/quarry-cli/config"
	"github.com/quarryintel/quarry-cli/pkg/db"
)

// Database command flags
var (
	dbMigrationDir string
)

// DbCommandDeps holds the dependencies for database commands.
type DbCommandDeps struct {
	LoadConfig  func() (*config.CLIConfig, error)
	ConnectToDB func(context.Context) (*pgxpool.Pool, error)
}

// DefaultDbDeps returns the default dependencies for production use.
func DefaultDbDeps() *DbCommandDeps {
	return &DbCommandDeps{
		LoadConfig:  config.LoadConfig,
		ConnectToDB: connectToDatabase,
	}
}

// NewDbCommand creates the root db command with all subcommands.
func NewDbCommand() *cobra.Command {
	deps := DefaultDbDeps()

	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
		Long: `Database management commands for Quarry.

The db command connects directly to the PostgreSQL database using the DB_*
environment variables (DB_HOST, DB_PORT, DB_NAME, DB_USER, DB_PASSWORD).

Migration files are SQL files in the migrations directory, named with
numeric prefixes (e.g., 001_extraction_results.sql). Migrations are applied
in alphabetical order and tracked in the schema_migrations table.

Examples:
  # Apply all pending migrations
  quarry db migrate

  # Verify connectivity
  quarry db ping`,
		Aliases: []string{"database"},
	}

	cmd.PersistentFlags().StringVarP(&dbMigrationDir, "migrations", "m", "", "Path to migrations directory (defaults to configured directory)")

	cmd.AddCommand(newDbMigrateCommand(deps))
	cmd.AddCommand(newDbPingCommand(deps))

	return cmd
}

// newDbMigrateCommand creates the 'db migrate' subcommand.
func newDbMigrateCommand(deps *DbCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		Long: `Apply pending database migrations.

Migrations are executed in alphabetical order based on their filename
prefix. Each migration runs in its own transaction and is recorded in the
schema_migrations table. If a migration fails, it is rolled back and no
further migrations are attempted.

Examples:
  # Apply all pending migrations
  quarry db migrate

  # Use a custom migrations directory
  quarry db migrate --migrations ./db/migrations`,
		Example: `  quarry db migrate
  quarry db migrate --migrations ./db/migrations`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbMigrate(cmd.Context(), deps)
		},
	}
}

// newDbPingCommand creates the 'db ping' subcommand.
func newDbPingCommand(deps *DbCommandDeps) *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Verify database connectivity",
		Long: `Connect to the database and run a ping.

Useful for checking DB_* environment configuration before running
migrations or resolutions.`,
		Example: `  quarry db ping`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDbPing(cmd.Context(), deps)
		},
	}
}

// runDbMigrate executes the db migrate command.
func runDbMigrate(ctx context.Context, deps *DbCommandDeps) error {
	cfg, err := deps.LoadConfig()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	dir := dbMigrationDir
	if dir == "" {
		dir = cfg.MigrationsDir
	}

	pool, err := deps.ConnectToDB(ctx)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	result, err := db.RunMigrations(ctx, pool, dir)
	if err != nil {
		if result != nil && len(result.Applied) > 0 {
			fmt.Println("Applied before failure:")
			for _, v := range result.Applied {
				fmt.Printf("  %s\n", v)
			}
		}
		return fmt.Errorf("running migrations: %w", err)
	}

	if len(result.Applied) == 0 {
		fmt.Println("No pending migrations.")
		return nil
	}

	fmt.Printf("Applied %d migration(s):\n", len(result.Applied))
	for _, v := range result.Applied {
		fmt.Printf("  %s\n", v)
	}
	return nil
}

// runDbPing executes the db ping command.
func runDbPing(ctx context.Context, deps *DbCommandDeps) error {
	pool, err := deps.ConnectToDB(ctx)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("pinging database: %w", err)
	}

	fmt.Println("Database connection OK.")
	return nil
}
