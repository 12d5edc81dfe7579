package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"buyerportal/internal/extraction"
	"buyerportal/internal/invoice"
	"buyerportal/internal/logger"
	"buyerportal/internal/ocr"
)

var extractCmd = &cobra.Command{
	Use:   "extract [invoice-file]",
	Short: "Read an invoice and print the extracted fields",
	Long: `Run OCR on a PDF or image invoice and extract amount, due date, supplier,
invoice number, OCR number and bankgiro with the Swedish invoice heuristics.
Fields that cannot be found are shown as "Ej hittat". Nothing is stored.

With --text-file the file is read as already recognized text and OCR is skipped.

Required environment variables (unless --text-file):
  OCR_PROVIDER - ocrspace (default), vision or documentai
  OCR_SPACE_API_KEY - OCR.space API key for the ocrspace provider
  GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS - for vision and documentai

Optional environment variables:
  SUPPLIER_NAME - Supplier reported on every invoice
  OCR_TIMEOUT - OCR timeout in seconds (default: 120)`,
	Example: `  # Extract fields from a PDF
  buyerportal extract faktura.pdf

  # Extract from OCR text saved earlier, as JSON
  buyerportal extract faktura.txt --text-file --json`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

// ExtractOutput is the JSON output of the extract command.
type ExtractOutput struct {
	File       string                                    `json:"file"`
	Parsed     extraction.Fields                         `json:"parsed"`
	Unresolved []extraction.FieldName                    `json:"unresolved,omitempty"`
	Warnings   []string                                  `json:"warnings,omitempty"`
	Matches    map[extraction.FieldName]extraction.Match `json:"matches,omitempty"`
	Provider   string                                    `json:"provider,omitempty"`
	PageCount  int                                       `json:"page_count,omitempty"`
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().Bool("text-file", false, "Treat the file as recognized text and skip OCR")
	extractCmd.Flags().Bool("json", false, "Output as JSON")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	textFile, _ := cmd.Flags().GetBool("text-file")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	path := args[0]

	log.Info().
		Str("file", path).
		Bool("text_file", textFile).
		Bool("json", jsonOutput).
		Msg("Starting invoice extraction")

	data, err := readInvoiceFile(path, log)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(cfg.OCRTimeout+30*time.Second, log)
	defer cancel()

	p, err := newPortal(ctx, cfg, portalOptions{OCR: !textFile}, log)
	if err != nil {
		return err
	}
	defer p.Close()

	out := ExtractOutput{File: filepath.Base(path)}

	var result extraction.Result
	if textFile {
		result = p.svc.ExtractText(string(data))
	} else {
		var text *ocr.OCRResult
		result, text, err = p.svc.Recognize(ctx, invoice.Upload{
			Filename:    out.File,
			ContentType: ocr.DetectContentType(path, data),
			Data:        data,
		})
		if err != nil {
			return handleOCRError(err, log)
		}
		out.Provider = text.Provider
		out.PageCount = text.PageCount
	}

	review := invoice.NewResultReview().Check(result, time.Now())
	out.Parsed = result.Fields()
	out.Unresolved = review.Unresolved
	out.Warnings = review.Warnings
	out.Matches = result.Decisions()

	if jsonOutput {
		data, err := json.MarshalIndent(out, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		fmt.Println(string(data))
		return nil
	}

	printFields(out)
	return nil
}

// readInvoiceFile checks and reads an invoice file.
func readInvoiceFile(path string, log zerolog.Logger) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("error accessing file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("path is not a regular file: %s", path)
	}
	if info.Size() == 0 {
		return nil, fmt.Errorf("file is empty: %s", path)
	}
	if info.Size() > ocr.MaxFileSizeBytes {
		log.Error().
			Str("file", path).
			Int64("size", info.Size()).
			Msg("File exceeds maximum size limit")
		return nil, fmt.Errorf("file too large (%d bytes). Maximum size is %d bytes (20MB)", info.Size(), ocr.MaxFileSizeBytes)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

func printFields(out ExtractOutput) {
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Faktura: %s\n", out.File)
	fmt.Println(strings.Repeat("=", 60))
	fmt.Printf("Belopp:         %s\n", out.Parsed.Amount)
	fmt.Printf("Förfallodatum:  %s\n", out.Parsed.DueDate)
	fmt.Printf("Leverantör:     %s\n", out.Parsed.Supplier)
	fmt.Printf("Fakturanummer:  %s\n", out.Parsed.InvoiceNumber)
	fmt.Printf("OCR-nummer:     %s\n", out.Parsed.OCRNumber)
	fmt.Printf("Bankgiro:       %s\n", out.Parsed.Bankgiro)

	if len(out.Warnings) > 0 {
		fmt.Println()
		fmt.Println("Varningar:")
		for _, w := range out.Warnings {
			fmt.Printf("  - %s\n", w)
		}
	}
}
