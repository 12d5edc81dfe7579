package sheets

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"time"

	"github.com/rs/zerolog"
	"github.com/xuri/excelize/v2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"

	"buyerportal/internal/invoice"
	"buyerportal/internal/logger"
	"buyerportal/internal/ocr"
	"buyerportal/internal/report"
	"buyerportal/pkg/models"
)

// Service handles Google Sheets operations
type Service struct {
	sheetsService *sheets.Service
	spreadsheetID string
	log           zerolog.Logger
}

// BatchHeaders are the columns written by WriteBatchResults.
var BatchHeaders = []string{
	"Fil", "Fakturanummer", "Belopp", "Förfallodatum", "Leverantör",
	"OCR-nummer", "Bankgiro", "Status", "Bearbetad",
}

// InvoiceHeaders are the columns written by WriteInvoices.
var InvoiceHeaders = append(append([]string{}, report.Header...), "Exporterad")

// BatchRow represents a row to be written to the sheet
type BatchRow struct {
	Filename      string
	InvoiceNumber string
	Amount        string
	DueDate       string
	Supplier      string
	OCRNumber     string
	Bankgiro      string
	Status        string
	ProcessedAt   string
}

// Credentials selects the service account used for Sheets.
type Credentials struct {
	JSON string
	File string
}

// NewSheetsService creates a new Google Sheets service
func NewSheetsService(ctx context.Context, sheetURL string, creds Credentials) (*Service, error) {
	const op = "NewSheetsService"

	log := logger.WithComponent("sheets")

	// Extract spreadsheet ID from URL
	spreadsheetID, err := extractSpreadsheetID(sheetURL)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to extract spreadsheet ID: %w", op, err)
	}

	log.Debug().Str("spreadsheet_id", spreadsheetID).Msg("Extracted spreadsheet ID")

	var credsJSON []byte
	switch {
	case creds.JSON != "":
		credsJSON = []byte(creds.JSON)
	case creds.File != "":
		credsJSON, err = os.ReadFile(creds.File)
		if err != nil {
			return nil, fmt.Errorf("%s: failed to read credentials file: %w", op, err)
		}
	default:
		return nil, fmt.Errorf("%s: %w", op, ocr.ErrMissingCredentials)
	}

	config, err := google.JWTConfigFromJSON(credsJSON, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse credentials: %w", op, err)
	}

	sheetsService, err := sheets.NewService(ctx, option.WithHTTPClient(config.Client(ctx)))
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create sheets service: %w", op, err)
	}

	return NewSheetsServiceWithClient(spreadsheetID, sheetsService), nil
}

// NewSheetsServiceWithClient creates the service with an explicit client (for testing).
func NewSheetsServiceWithClient(spreadsheetID string, sheetsService *sheets.Service) *Service {
	return &Service{
		sheetsService: sheetsService,
		spreadsheetID: spreadsheetID,
		log:           logger.WithComponent("sheets"),
	}
}

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9-_]+)`)

// extractSpreadsheetID extracts the spreadsheet ID from a Google Sheets URL
func extractSpreadsheetID(url string) (string, error) {
	matches := spreadsheetIDPattern.FindStringSubmatch(url)
	if len(matches) < 2 {
		return "", fmt.Errorf("invalid Google Sheets URL format")
	}
	return matches[1], nil
}

// WriteBatchResults appends batch extraction results to the specified sheet
func (s *Service) WriteBatchResults(ctx context.Context, results []invoice.BatchResult, sheetName string) error {
	const op = "WriteBatchResults"

	s.log.Info().
		Str("sheet", sheetName).
		Int("rows", len(results)).
		Msg("Writing batch results to Google Sheet")

	if err := s.ensureSheetWithHeaders(ctx, sheetName, BatchHeaders); err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	var values [][]interface{}
	for _, row := range convertResultsToRows(results, time.Now()) {
		values = append(values, rowToValues(row))
	}

	_, err := s.sheetsService.Spreadsheets.Values.Append(
		s.spreadsheetID,
		sheetName+"!"+columnSpan(len(BatchHeaders)),
		&sheets.ValueRange{Values: values},
	).ValueInputOption("USER_ENTERED").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to append values to sheet: %w", op, err)
	}

	s.log.Info().
		Int("rows_written", len(values)).
		Msg("Successfully wrote batch results to Google Sheet")

	return nil
}

// WriteInvoices replaces the data rows of sheetName with the invoice export.
func (s *Service) WriteInvoices(ctx context.Context, records []*models.InvoiceRecord, sheetName string) error {
	const op = "WriteInvoices"

	if err := s.ensureSheetWithHeaders(ctx, sheetName, InvoiceHeaders); err != nil {
		return fmt.Errorf("%s: failed to ensure sheet exists: %w", op, err)
	}

	lastColumn, _ := excelize.ColumnNumberToName(len(InvoiceHeaders))
	dataRange := fmt.Sprintf("%s!A2:%s", sheetName, lastColumn)

	_, err := s.sheetsService.Spreadsheets.Values.Clear(
		s.spreadsheetID, dataRange, &sheets.ClearValuesRequest{},
	).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to clear sheet: %w", op, err)
	}

	exportedAt := time.Now().Format("2006-01-02 15:04")
	values := make([][]interface{}, 0, len(records))
	for _, row := range report.Rows(records) {
		v := make([]interface{}, 0, len(row)+1)
		for _, cell := range row {
			v = append(v, cell)
		}
		values = append(values, append(v, exportedAt))
	}

	_, err = s.sheetsService.Spreadsheets.Values.Update(
		s.spreadsheetID,
		fmt.Sprintf("%s!A2", sheetName),
		&sheets.ValueRange{Values: values},
	).ValueInputOption("RAW").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to write invoices: %w", op, err)
	}

	s.log.Info().
		Str("sheet", sheetName).
		Int("rows_written", len(values)).
		Msg("Exported invoices to Google Sheet")

	return nil
}

// convertResultsToRows converts batch results to sheet rows
func convertResultsToRows(results []invoice.BatchResult, now time.Time) []BatchRow {
	processedAt := now.Format("2006-01-02 15:04:05")
	rows := make([]BatchRow, 0, len(results))

	for _, result := range results {
		row := BatchRow{
			Filename:    result.Filename,
			ProcessedAt: processedAt,
		}

		if result.Error != nil {
			row.Status = fmt.Sprintf("Fel: %s", errorMessage(result.Error))
			rows = append(rows, row)
			continue
		}

		fields := result.Result.Fields()
		row.InvoiceNumber = fields.InvoiceNumber
		row.Amount = fields.Amount
		row.DueDate = fields.DueDate
		row.Supplier = fields.Supplier
		row.OCRNumber = fields.OCRNumber
		row.Bankgiro = fields.Bankgiro
		row.Status = "OK"
		if len(result.Result.Unresolved()) > 0 {
			row.Status = "Ofullständig"
		}
		if result.Upload != nil && result.Upload.Invoice != nil {
			row.Status = result.Upload.Invoice.Status.Label()
		}

		rows = append(rows, row)
	}

	return rows
}

func errorMessage(err error) string {
	if invoice.StageOf(err) == invoice.StageOCR {
		return ocr.UserMessage(err)
	}
	return err.Error()
}

// rowToValues converts BatchRow to interface{} slice for Google Sheets
func rowToValues(row BatchRow) []interface{} {
	return []interface{}{
		row.Filename,      // A: Fil
		row.InvoiceNumber, // B: Fakturanummer
		row.Amount,        // C: Belopp
		row.DueDate,       // D: Förfallodatum
		row.Supplier,      // E: Leverantör
		row.OCRNumber,     // F: OCR-nummer
		row.Bankgiro,      // G: Bankgiro
		row.Status,        // H: Status
		row.ProcessedAt,   // I: Bearbetad
	}
}

// columnSpan returns the A1 column range covering n columns, e.g. "A:I".
func columnSpan(n int) string {
	last, _ := excelize.ColumnNumberToName(n)
	return "A:" + last
}

// ensureSheetWithHeaders ensures the sheet exists and has proper headers
func (s *Service) ensureSheetWithHeaders(ctx context.Context, sheetName string, headers []string) error {
	const op = "ensureSheetWithHeaders"

	spreadsheet, err := s.sheetsService.Spreadsheets.Get(s.spreadsheetID).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get spreadsheet: %w", op, err)
	}

	var sheetExists bool
	var sheetID int64
	for _, sheet := range spreadsheet.Sheets {
		if sheet.Properties.Title == sheetName {
			sheetExists = true
			sheetID = sheet.Properties.SheetId
			break
		}
	}

	if !sheetExists {
		s.log.Info().Str("sheet", sheetName).Msg("Creating new sheet")

		batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{
				{AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: sheetName}}},
			},
		}

		resp, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to create sheet: %w", op, err)
		}
		sheetID = resp.Replies[0].AddSheet.Properties.SheetId
	}

	lastColumn, _ := excelize.ColumnNumberToName(len(headers))
	headerRange := fmt.Sprintf("%s!A1:%s1", sheetName, lastColumn)
	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%s: failed to get headers: %w", op, err)
	}

	if len(resp.Values) == 0 || len(resp.Values[0]) == 0 {
		s.log.Info().Str("sheet", sheetName).Msg("Adding headers to sheet")

		row := make([]interface{}, len(headers))
		for i, h := range headers {
			row[i] = h
		}

		_, err = s.sheetsService.Spreadsheets.Values.Update(
			s.spreadsheetID,
			headerRange,
			&sheets.ValueRange{Values: [][]interface{}{row}},
		).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("%s: failed to add headers: %w", op, err)
		}

		if err := s.formatHeaders(ctx, sheetID, int64(len(headers))); err != nil {
			s.log.Warn().Err(err).Msg("Failed to format headers, continuing anyway")
		}
	}

	return nil
}

// formatHeaders makes the header row bold and applies basic formatting
func (s *Service) formatHeaders(ctx context.Context, sheetID int64, columns int64) error {
	const op = "formatHeaders"

	requests := []*sheets.Request{
		{
			RepeatCell: &sheets.RepeatCellRequest{
				Range: &sheets.GridRange{
					SheetId:          sheetID,
					StartRowIndex:    0,
					EndRowIndex:      1,
					StartColumnIndex: 0,
					EndColumnIndex:   columns,
				},
				Cell: &sheets.CellData{
					UserEnteredFormat: &sheets.CellFormat{
						TextFormat:      &sheets.TextFormat{Bold: true},
						BackgroundColor: &sheets.Color{Red: 0.9, Green: 0.9, Blue: 0.9},
					},
				},
				Fields: "userEnteredFormat(textFormat,backgroundColor)",
			},
		},
		{
			AutoResizeDimensions: &sheets.AutoResizeDimensionsRequest{
				Dimensions: &sheets.DimensionRange{
					SheetId:    sheetID,
					Dimension:  "COLUMNS",
					StartIndex: 0,
					EndIndex:   columns,
				},
			},
		},
	}

	batchUpdateReq := &sheets.BatchUpdateSpreadsheetRequest{Requests: requests}
	if _, err := s.sheetsService.Spreadsheets.BatchUpdate(s.spreadsheetID, batchUpdateReq).Context(ctx).Do(); err != nil {
		return fmt.Errorf("%s: failed to format headers: %w", op, err)
	}

	return nil
}

// ReadRange reads values from a specified range in the spreadsheet
func (s *Service) ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error) {
	const op = "ReadRange"

	s.log.Debug().
		Str("range", rangeSpec).
		Msg("Reading range from spreadsheet")

	resp, err := s.sheetsService.Spreadsheets.Values.Get(s.spreadsheetID, rangeSpec).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read range %s: %w", op, rangeSpec, err)
	}

	s.log.Debug().
		Int("rows", len(resp.Values)).
		Str("range", rangeSpec).
		Msg("Successfully read range from spreadsheet")

	return resp.Values, nil
}
