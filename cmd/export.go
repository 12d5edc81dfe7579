package cmd

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"buyerportal/internal/logger"
	"buyerportal/internal/report"
	"buyerportal/internal/store"
	"buyerportal/pkg/models"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored invoices as CSV, Excel or to Google Sheets",
	Long: `Export stored invoices with the columns
Fakturanummer, Leverantör, Belopp, Status, Utbetalt belopp, Utbetalningsdatum.

Formats:
  csv   - comma separated, to --out or stdout
  xlsx  - Excel workbook, to --out (default: fakturor.xlsx)
  sheet - replaces the rows of the GOOGLE_SHEET_RANGE tab in GOOGLE_SHEET_URL`,
	Example: `  # CSV to stdout
  buyerportal export

  # Paid invoices to Excel
  buyerportal export --format xlsx --status paid --out utbetalda.xlsx

  # Refresh the shared sheet
  buyerportal export --format sheet`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	rootCmd.AddCommand(exportCmd)

	exportCmd.Flags().String("format", "csv", "Output format (csv, xlsx, sheet)")
	exportCmd.Flags().StringP("out", "o", "", "Output file path")
	exportCmd.Flags().String("status", "", "Only invoices with this status (pending, approved, paid)")
	exportCmd.Flags().String("search", "", "Only invoices whose number or supplier contains this text")
	exportCmd.Flags().String("sheet-name", "", "Sheet tab for --format sheet (default: GOOGLE_SHEET_RANGE)")
}

func runExport(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("export")

	format, _ := cmd.Flags().GetString("format")
	outputPath, _ := cmd.Flags().GetString("out")
	statusStr, _ := cmd.Flags().GetString("status")
	search, _ := cmd.Flags().GetString("search")
	sheetName, _ := cmd.Flags().GetString("sheet-name")

	filter := store.Filter{Search: search}
	if statusStr != "" {
		status, err := models.ParseStatus(statusStr)
		if err != nil {
			return err
		}
		filter.Status = status
	}

	var write func(io.Writer, []*models.InvoiceRecord) error
	switch format {
	case "csv":
		write = report.WriteCSV
	case "xlsx":
		write = report.WriteXLSX
		if outputPath == "" {
			outputPath = "fakturor.xlsx"
		}
	case "sheet":
	default:
		return fmt.Errorf("invalid format: %s (must be csv, xlsx or sheet)", format)
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(5*time.Minute, log)
	defer cancel()

	p, err := newPortal(ctx, cfg, portalOptions{Store: true}, log)
	if err != nil {
		return err
	}
	defer p.Close()

	records, err := p.svc.List(ctx, filter)
	if err != nil {
		return fmt.Errorf("failed to list invoices: %w", err)
	}

	log.Info().
		Str("format", format).
		Int("invoices", len(records)).
		Msg("Exporting invoices")

	if format == "sheet" {
		if sheetName == "" {
			sheetName = cfg.GoogleSheetRange
		}
		sheetsService, err := newSheetsService(ctx, cfg)
		if err != nil {
			return err
		}
		if err := sheetsService.WriteInvoices(ctx, records, sheetName); err != nil {
			return fmt.Errorf("failed to write to Google Sheet: %w", err)
		}
		fmt.Printf("%d fakturor skrivna till fliken %s\n", len(records), sheetName)
		fmt.Printf("URL: %s\n", cfg.GoogleSheetURL)
		return nil
	}

	if outputPath == "" {
		return write(os.Stdout, records)
	}

	file, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	if err := write(file, records); err != nil {
		file.Close()
		return fmt.Errorf("failed to write export: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to write export: %w", err)
	}

	log.Info().
		Str("output_file", outputPath).
		Int("invoices", len(records)).
		Msg("Export written to file")
	fmt.Printf("%d fakturor exporterade till %s\n", len(records), outputPath)
	return nil
}
