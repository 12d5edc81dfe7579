package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"buyerportal/internal/invoice"
	"buyerportal/internal/logger"
	"buyerportal/internal/ocr"
)

var extractBatchCmd = &cobra.Command{
	Use:   "extract-batch [folder-path]",
	Short: "Process all invoices in a folder",
	Long: `Run OCR and field extraction on every PDF and image in a folder.

Files are processed in parallel. With --save every file goes through the full
intake: the file is stored in FILE_STORE_DIR and the invoice is upserted on its
invoice number, exactly like an upload through the API. With --sheet the
results are appended to a tab of the Google Sheet in GOOGLE_SHEET_URL.

Optional environment variables:
  BATCH_WORKERS - Number of parallel workers (default: 12)`,
	Example: `  # Preview what would be extracted
  buyerportal extract-batch ./fakturor

  # Store all invoices and log the run to the "Import" tab
  buyerportal extract-batch ./fakturor --save --sheet Import

  # Limit concurrency
  buyerportal extract-batch ./fakturor --workers 4`,
	Args: cobra.ExactArgs(1),
	RunE: runExtractBatch,
}

var invoiceExtensions = map[string]bool{
	".pdf":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".tif":  true,
	".tiff": true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
}

func init() {
	rootCmd.AddCommand(extractBatchCmd)

	extractBatchCmd.Flags().Int("workers", 0, "Number of parallel workers (default: BATCH_WORKERS)")
	extractBatchCmd.Flags().Bool("save", false, "Store files and upsert the invoices")
	extractBatchCmd.Flags().String("sheet", "", "Append results to this Google Sheet tab")
}

func runExtractBatch(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract-batch")

	folderPath := args[0]
	workers, _ := cmd.Flags().GetInt("workers")
	save, _ := cmd.Flags().GetBool("save")
	sheetName, _ := cmd.Flags().GetString("sheet")

	folderInfo, err := os.Stat(folderPath)
	if err != nil {
		return fmt.Errorf("folder not found: %s", folderPath)
	}
	if !folderInfo.IsDir() {
		return fmt.Errorf("path is not a directory: %s", folderPath)
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if workers <= 0 {
		workers = cfg.BatchWorkers
	}

	log.Info().
		Str("folder", folderPath).
		Int("workers", workers).
		Bool("save", save).
		Str("sheet", sheetName).
		Msg("Starting batch extraction")

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("                         FAKTURAIMPORT")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Mapp: %s\n", folderPath)
	if !save {
		fmt.Println("Läge: Förhandsgranskning (inget sparas)")
	}
	fmt.Println()

	ctx, cancel := createContextWithTimeout(30*time.Minute, log)
	defer cancel()

	p, err := newPortal(ctx, cfg, portalOptions{OCR: true, Store: save, Files: save}, log)
	if err != nil {
		return err
	}
	defer p.Close()

	files, err := findInvoiceFiles(folderPath)
	if err != nil {
		return fmt.Errorf("failed to find invoice files: %w", err)
	}
	if len(files) == 0 {
		fmt.Println("Inga fakturor hittades i mappen.")
		return nil
	}

	uploads := make([]invoice.Upload, 0, len(files))
	for _, path := range files {
		data, err := readInvoiceFile(path, log)
		if err != nil {
			return err
		}
		uploads = append(uploads, invoice.Upload{
			Filename:    filepath.Base(path),
			ContentType: ocr.DetectContentType(path, data),
			Data:        data,
		})
	}

	fmt.Printf("Bearbetar %d fakturor med %d parallella workers...\n", len(uploads), workers)
	fmt.Println()

	results := p.svc.ProcessBatch(ctx, uploads, invoice.BatchOptions{
		Save:     save,
		Workers:  workers,
		Progress: printProgress,
	})

	fmt.Println()

	successCount, warningCount, errorCount := 0, 0, 0
	for _, r := range results {
		switch batchStatus(r) {
		case "success":
			successCount++
		case "warning":
			warningCount++
		default:
			errorCount++
		}
	}

	fmt.Println(strings.Repeat("=", 50))
	fmt.Println("                 RESULTAT")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Printf("Kompletta: %d\n", successCount)
	if warningCount > 0 {
		fmt.Printf("Ofullständiga: %d\n", warningCount)
	}
	if errorCount > 0 {
		fmt.Printf("Fel: %d\n", errorCount)
	}
	fmt.Println()

	if sheetName != "" {
		fmt.Println("Skriver resultat till Google Sheet...")

		sheetsService, err := newSheetsService(ctx, cfg)
		if err != nil {
			return err
		}
		if err := sheetsService.WriteBatchResults(ctx, results, sheetName); err != nil {
			return fmt.Errorf("failed to write to Google Sheet: %w", err)
		}

		fmt.Printf("Flik: %s\n", sheetName)
		fmt.Printf("Rader tillagda: %d\n", len(results))
		fmt.Printf("URL: %s\n", cfg.GoogleSheetURL)
	}

	fmt.Println(strings.Repeat("=", 80))

	log.Info().
		Int("total", len(results)).
		Int("success", successCount).
		Int("warnings", warningCount).
		Int("errors", errorCount).
		Msg("Batch extraction completed")

	return nil
}

// findInvoiceFiles finds all PDFs and images in the folder
func findInvoiceFiles(folderPath string) ([]string, error) {
	var files []string

	err := filepath.Walk(folderPath, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() && invoiceExtensions[strings.ToLower(filepath.Ext(info.Name()))] {
			files = append(files, path)
		}
		return nil
	})

	return files, err
}

// batchStatus classifies a result as success, warning (fields missing) or error.
func batchStatus(r invoice.BatchResult) string {
	switch {
	case r.Error != nil:
		return "error"
	case len(r.Result.Unresolved()) > 0:
		return "warning"
	default:
		return "success"
	}
}

func printProgress(done, total int, r invoice.BatchResult) {
	fmt.Printf("[%d/%d] %s - %s", done, total, r.Filename, getStatusEmoji(batchStatus(r)))
	switch {
	case invoice.StageOf(r.Error) == invoice.StageOCR:
		fmt.Printf(" (%s)", ocr.UserMessage(r.Error))
	case r.Error != nil:
		fmt.Printf(" (%s)", r.Error.Error())
	default:
		fmt.Printf(" (%s)", r.Result.Amount().String())
	}
	fmt.Println()
}

// getStatusEmoji returns an emoji for the processing status
func getStatusEmoji(status string) string {
	switch status {
	case "success":
		return "✅"
	case "warning":
		return "⚠️"
	default:
		return "❌"
	}
}
