package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"buyerportal/internal/api"
	"buyerportal/internal/config"
	"buyerportal/internal/logger"
	"buyerportal/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the buyer portal HTTP API",
	Long: `Start the HTTP API under /api/v1 and serve stored invoice files under /files.

Required environment variables:
  DATABASE_URL - Postgres connection string (unless STORE_DRIVER=memory)
  OCR_SPACE_API_KEY - OCR.space API key (or OCR_PROVIDER=vision|documentai with Google credentials)
  SUPPLIER_NAME - Supplier reported on every extracted invoice

Optional environment variables:
  SERVER_ADDR - Listen address (default: :8080)
  SERVER_BODY_LIMIT_MB - Maximum upload size (default: 25)
  FILE_STORE_DIR - Directory for uploaded files (default: uploads)
  PUBLIC_BASE_URL - Public URL of FILE_STORE_DIR (default: http://localhost:8080/files)`,
	Example: `  # Run against Postgres and create the schema first
  buyerportal serve --migrate

  # Run without a database
  STORE_DRIVER=memory buyerportal serve --addr :3000`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("addr", "", "Listen address (default: SERVER_ADDR)")
	serveCmd.Flags().Bool("migrate", false, "Create the database schema before serving")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("serve")

	addr, _ := cmd.Flags().GetString("addr")
	migrate, _ := cmd.Flags().GetBool("migrate")

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if addr == "" {
		addr = cfg.ServerAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := newPortal(ctx, cfg, portalOptions{OCR: true, Store: true, Files: true}, log)
	if err != nil {
		return err
	}
	defer p.Close()

	if migrate {
		pg, ok := p.store.(*store.PostgresStore)
		if !ok {
			return fmt.Errorf("--migrate needs STORE_DRIVER=%s", config.StoreDriverPostgres)
		}
		if err := pg.Migrate(ctx); err != nil {
			return fmt.Errorf("failed to migrate database: %w", err)
		}
	}

	app := api.NewRouter(p.svc, api.Config{
		BodyLimitMB:  cfg.ServerBodyLimitMB,
		AllowOrigins: cfg.CORSAllowOrigins,
		FilesDir:     p.files.Dir(),
	})

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", addr).
			Str("ocr_provider", cfg.OCRProvider).
			Str("store", cfg.StoreDriver).
			Str("pricing_model", cfg.PricingModel).
			Msg("Buyer portal listening")
		errCh <- app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info().Msg("Shutting down")
	if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
		return fmt.Errorf("failed to shut down: %w", err)
	}
	return nil
}
