package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"buyerportal/internal/blob"
	"buyerportal/internal/config"
	"buyerportal/internal/extraction"
	"buyerportal/internal/financing"
	"buyerportal/internal/invoice"
	"buyerportal/internal/ocr"
	"buyerportal/internal/sheets"
	"buyerportal/internal/store"
)

// portal bundles the wired services of one command run.
type portal struct {
	cfg     *config.Config
	svc     *invoice.Service
	store   store.InvoiceStore
	files   *blob.DiskStore
	closers []func()
}

// portalOptions selects the external dependencies a command needs.
type portalOptions struct {
	OCR   bool // OCR provider from OCR_PROVIDER
	Store bool // configured store; otherwise an empty in-memory store
	Files bool // disk file store
}

func (p *portal) Close() {
	for i := len(p.closers) - 1; i >= 0; i-- {
		p.closers[i]()
	}
}

// loadConfig loads the configuration or explains what is missing.
func loadConfig(log zerolog.Logger) (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("Invalid configuration")
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newPortal wires the invoice service with the dependencies in opts.
func newPortal(ctx context.Context, cfg *config.Config, opts portalOptions, log zerolog.Logger) (*portal, error) {
	p := &portal{cfg: cfg}

	calculator, err := financing.NewCalculator(cfg.GetPricingConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create fee calculator: %w", err)
	}

	var ocrService ocr.OCRService
	if opts.OCR {
		ocrService, err = p.createOCRService(ctx, log)
		if err != nil {
			p.Close()
			return nil, err
		}
	}

	p.store = store.NewMemoryStore()
	if opts.Store {
		if err := p.openStore(ctx, log); err != nil {
			p.Close()
			return nil, err
		}
	}

	var files blob.FileStore
	if opts.Files {
		p.files, err = blob.NewDiskStore(cfg.FileStoreDir, cfg.PublicBaseURL)
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("failed to create file store: %w", err)
		}
		files = p.files
	}

	p.svc = invoice.NewService(
		ocrService,
		extraction.NewExtractor(cfg.SupplierName),
		p.store,
		files,
		calculator,
		invoice.Config{
			OCRTimeout: cfg.OCRTimeout,
			Workers:    cfg.BatchWorkers,
		},
	)
	return p, nil
}

// createOCRService creates the provider named by OCR_PROVIDER.
func (p *portal) createOCRService(ctx context.Context, log zerolog.Logger) (ocr.OCRService, error) {
	var (
		svc ocr.OCRService
		err error
	)

	switch p.cfg.OCRProvider {
	case ocr.ProviderVision:
		var vision *ocr.VisionService
		vision, err = ocr.NewVisionService(ctx, p.cfg.GetGoogleCredentials())
		if err == nil {
			p.closers = append(p.closers, func() { _ = vision.Close() })
			svc = vision
		}
	case ocr.ProviderDocumentAI:
		var docAI *ocr.DocumentAIService
		docAI, err = ocr.NewDocumentAIService(ctx, p.cfg.GetDocumentAIConfig())
		if err == nil {
			p.closers = append(p.closers, func() { _ = docAI.Close() })
			svc = docAI
		}
	default:
		svc, err = ocr.NewOCRSpaceService(p.cfg.GetOCRSpaceConfig())
	}

	if err != nil {
		log.Error().
			Err(err).
			Str("provider", p.cfg.OCRProvider).
			Msg("Failed to create OCR service")
		switch {
		case errors.Is(err, ocr.ErrMissingCredentials):
			return nil, fmt.Errorf("Google Cloud credentials not configured. Set GOOGLE_APPLICATION_CREDENTIALS "+
				"to a service account JSON file or GOOGLE_CREDENTIALS to inline JSON: %w", err)
		case errors.Is(err, ocr.ErrMissingAPIKey):
			return nil, fmt.Errorf("OCR.space is not configured. Set OCR_SPACE_API_KEY or choose another OCR_PROVIDER: %w", err)
		default:
			return nil, fmt.Errorf("failed to create OCR service: %w", err)
		}
	}

	log.Debug().Str("provider", p.cfg.OCRProvider).Msg("OCR service created successfully")
	return svc, nil
}

// openStore opens the store named by STORE_DRIVER.
func (p *portal) openStore(ctx context.Context, log zerolog.Logger) error {
	if p.cfg.StoreDriver == config.StoreDriverMemory {
		log.Warn().Msg("Using in-memory store, invoices are lost on exit")
		return nil
	}

	pg, pool, err := openPostgres(ctx, p.cfg)
	if err != nil {
		return err
	}
	p.closers = append(p.closers, pool.Close)
	p.store = pg
	return nil
}

func openPostgres(ctx context.Context, cfg *config.Config) (*store.PostgresStore, *pgxpool.Pool, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, nil, err
	}
	pool, err := store.NewPool(ctx, store.DefaultPoolConfig(cfg.DatabaseURL))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return store.NewPostgresStore(pool), pool, nil
}

// newSheetsService connects to GOOGLE_SHEET_URL.
func newSheetsService(ctx context.Context, cfg *config.Config) (*sheets.Service, error) {
	if err := cfg.RequireSheet(); err != nil {
		return nil, err
	}
	svc, err := sheets.NewSheetsService(ctx, cfg.GoogleSheetURL, sheets.Credentials{
		JSON: cfg.GoogleCredentialsJSON,
		File: cfg.GoogleCredentialsFile,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Sheets service: %w", err)
	}
	return svc, nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeout time.Duration, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// handleOCRError provides user-friendly error messages for OCR failures
func handleOCRError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("OCR processing failed")

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("OCR processing timed out. Try increasing OCR_TIMEOUT or processing a smaller file")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("OCR processing was canceled")
	case errors.Is(err, ocr.ErrFileTooLarge):
		return fmt.Errorf("file is too large (maximum 20MB). Try compressing or splitting the file")
	case errors.Is(err, ocr.ErrTooManyPages):
		return fmt.Errorf("PDF has too many pages. Try splitting into smaller files")
	case errors.Is(err, ocr.ErrUnsupportedFormat):
		return fmt.Errorf("unsupported file format. Upload a PDF or an image")
	case errors.Is(err, ocr.ErrQuotaExceeded):
		return fmt.Errorf("OCR quota exceeded. Try again later: %w", err)
	case invoice.StageOf(err) == invoice.StageOCR:
		return fmt.Errorf("%s: %w", ocr.UserMessage(err), err)
	default:
		return fmt.Errorf("processing failed: %w", err)
	}
}
