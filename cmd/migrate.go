package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"buyerportal/internal/logger"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the invoices table in Postgres",
	Long: `Create the invoices table and its indexes. Running it again is a no-op.

Required environment variables:
  DATABASE_URL - Postgres connection string`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("migrate")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(time.Minute, log)
	defer cancel()

	pg, pool, err := openPostgres(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := pg.Migrate(ctx); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}

	fmt.Println("Schema ready.")
	return nil
}
