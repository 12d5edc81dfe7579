// Package payouts imports supplier payouts booked in a Google Sheet and marks
// the matching invoices paid.
//
// Expected columns: A=Fakturanummer, B=Utbetalningsdatum, C=Utbetalt belopp.
package payouts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"buyerportal/internal/extraction"
	"buyerportal/internal/logger"
)

// RangeReader reads cell values from a spreadsheet range.
type RangeReader interface {
	ReadRange(ctx context.Context, rangeSpec string) ([][]interface{}, error)
}

// Payout is one booked payout row.
type Payout struct {
	InvoiceNumber string
	Date          time.Time
	Amount        decimal.Decimal
	Row           int
}

// RowError describes a row that could not be imported.
type RowError struct {
	Row    int
	Reason string
}

// DataReader handles reading payout rows from Google Sheets
type DataReader struct {
	sheets RangeReader
	log    zerolog.Logger
}

// NewDataReader creates a new data reader for Google Sheets
func NewDataReader(sheets RangeReader) *DataReader {
	return &DataReader{
		sheets: sheets,
		log:    logger.WithComponent("payout-reader"),
	}
}

// ReadPayouts reads payouts from rangeSpec. A header row is skipped when present.
// Rows that cannot be parsed are returned as RowErrors.
func (dr *DataReader) ReadPayouts(ctx context.Context, rangeSpec string) ([]Payout, []RowError, error) {
	const op = "ReadPayouts"

	dr.log.Info().Str("range", rangeSpec).Msg("Reading payouts")

	values, err := dr.sheets.ReadRange(ctx, rangeSpec)
	if err != nil {
		return nil, nil, fmt.Errorf("%s: failed to read payout sheet: %w", op, err)
	}

	firstRow := startRow(rangeSpec)
	var payouts []Payout
	var rowErrors []RowError

	for i, row := range values {
		rowNum := firstRow + i

		if i == 0 && strings.EqualFold(getString(row, 0), "Fakturanummer") {
			continue
		}
		if isBlank(row) {
			continue
		}

		payout, err := parsePayoutRow(row, rowNum)
		if err != nil {
			dr.log.Warn().
				Err(err).
				Int("row", rowNum).
				Msg("Failed to parse payout, skipping")
			rowErrors = append(rowErrors, RowError{Row: rowNum, Reason: err.Error()})
			continue
		}
		payouts = append(payouts, payout)
	}

	dr.log.Info().
		Int("total_rows", len(values)).
		Int("parsed_payouts", len(payouts)).
		Int("skipped", len(rowErrors)).
		Msg("Payouts read successfully")

	return payouts, rowErrors, nil
}

// parsePayoutRow parses a single payout row
func parsePayoutRow(row []interface{}, rowNum int) (Payout, error) {
	number := getString(row, 0)
	if number == "" || number == extraction.NotFound {
		return Payout{}, fmt.Errorf("missing invoice number in row %d", rowNum)
	}

	dateStr := getString(row, 1)
	date, err := parseDate(dateStr)
	if err != nil {
		return Payout{}, fmt.Errorf("invalid date '%s' in row %d: %w", dateStr, rowNum, err)
	}

	amountStr := getString(row, 2)
	amount := extraction.ParseAmount(amountStr)
	if !amount.Valid {
		return Payout{}, fmt.Errorf("invalid amount '%s' in row %d", amountStr, rowNum)
	}

	return Payout{
		InvoiceNumber: number,
		Date:          date,
		Amount:        amount.Decimal,
		Row:           rowNum,
	}, nil
}

// parseDate parses the date formats Swedish sheets produce
func parseDate(dateStr string) (time.Time, error) {
	if dateStr == "" {
		return time.Time{}, fmt.Errorf("empty date string")
	}

	formats := []string{
		"2006-01-02",       // ISO
		"2006-01-02 15:04", // ISO with time
		"2006/01/02",
		"02.01.2006",
	}
	for _, format := range formats {
		if date, err := time.Parse(format, dateStr); err == nil {
			return time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC), nil
		}
	}
	return time.Time{}, fmt.Errorf("unable to parse date: %s", dateStr)
}

// startRow returns the sheet row number of the first row in rangeSpec, e.g. 2 for "Utbetalningar!A2:C".
func startRow(rangeSpec string) int {
	if i := strings.LastIndex(rangeSpec, "!"); i >= 0 {
		rangeSpec = rangeSpec[i+1:]
	}
	start := strings.SplitN(rangeSpec, ":", 2)[0]
	n := 0
	for _, r := range start {
		if r >= '0' && r <= '9' {
			n = n*10 + int(r-'0')
		}
	}
	if n == 0 {
		return 1
	}
	return n
}

func isBlank(row []interface{}) bool {
	for i := range row {
		if getString(row, i) != "" {
			return false
		}
	}
	return true
}

// getString safely extracts a string value from a row slice
func getString(row []interface{}, index int) string {
	if index >= len(row) || row[index] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprintf("%v", row[index]))
}
