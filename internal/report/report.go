// Package report renders stored invoices for the buyer's accounting.
//
// CSV and XLSX share one column layout:
//
//	Fakturanummer, Leverantör, Belopp, Status, Utbetalt belopp, Utbetalningsdatum
//
// Unknown invoice numbers, suppliers and amounts render as "Ej hittat".
// Payout columns stay empty until the invoice is paid.
package report

import (
	"github.com/shopspring/decimal"

	"buyerportal/internal/extraction"
	"buyerportal/pkg/models"
)

const (
	ContentTypeCSV  = "text/csv; charset=utf-8"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Header is the export column header.
var Header = []string{"Fakturanummer", "Leverantör", "Belopp", "Status", "Utbetalt belopp", "Utbetalningsdatum"}

// Row renders one invoice in the export layout.
func Row(rec *models.InvoiceRecord) []string {
	number := extraction.NotFound
	if rec.HasNaturalKey() {
		number = *rec.InvoiceNumber
	}
	supplier := rec.Supplier
	if supplier == "" {
		supplier = extraction.NotFound
	}
	amount := extraction.NotFound
	if rec.Amount != nil {
		amount = FormatAmount(*rec.Amount)
	}

	var payoutAmount, payoutDate string
	if rec.PayoutAmount != nil {
		payoutAmount = FormatAmount(*rec.PayoutAmount)
	}
	if rec.PayoutDate != nil {
		payoutDate = rec.PayoutDate.Format(extraction.DateLayout)
	}

	return []string{number, supplier, amount, rec.Status.Label(), payoutAmount, payoutDate}
}

// Rows renders every invoice, without the header.
func Rows(records []*models.InvoiceRecord) [][]string {
	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = Row(rec)
	}
	return rows
}

// FormatAmount renders d with two decimals and the currency suffix, e.g. "12500.00 kr".
func FormatAmount(d decimal.Decimal) string {
	return d.StringFixed(2) + " " + extraction.AmountUnit
}
