package invoice

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"buyerportal/internal/extraction"
	"buyerportal/internal/logger"
)

// ResultReview flags extraction results that need a human look before approval.
type ResultReview struct {
	log zerolog.Logger
}

// NewResultReview creates a new review service
func NewResultReview() *ResultReview {
	return &ResultReview{
		log: logger.WithComponent("result-review"),
	}
}

// ReviewOutcome lists what the review found. Warnings never block the upload.
type ReviewOutcome struct {
	Unresolved []extraction.FieldName
	Warnings   []string
}

// Check reviews res against the calendar day today.
func (r *ResultReview) Check(res extraction.Result, today time.Time) ReviewOutcome {
	outcome := ReviewOutcome{
		Unresolved: res.Unresolved(),
		Warnings:   []string{},
	}

	for _, name := range outcome.Unresolved {
		outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("%s not found", name))
	}

	if res.InvoiceNumberAliased() {
		outcome.Warnings = append(outcome.Warnings, "invoice number taken from OCR number")
	} else if number, ok := res.InvoiceNumber().Value(); ok {
		if ocrNumber, ok := res.OCRNumber().Value(); ok && !strings.Contains(ocrNumber, number) {
			outcome.Warnings = append(outcome.Warnings,
				fmt.Sprintf("OCR number %s does not reference invoice number %s", ocrNumber, number))
		}
	}

	if amount := res.AmountDecimal(); amount.Valid && amount.Decimal.IsZero() {
		outcome.Warnings = append(outcome.Warnings, "amount is zero")
	}

	if due := res.DueDateTime(); !due.IsZero() {
		y, m, d := today.Date()
		if due.Before(time.Date(y, m, d, 0, 0, 0, 0, time.UTC)) {
			outcome.Warnings = append(outcome.Warnings, fmt.Sprintf("due date %s has passed", due.Format(extraction.DateLayout)))
		}
	}

	if len(outcome.Warnings) > 0 {
		r.log.Warn().
			Str("invoice_number", res.InvoiceNumber().String()).
			Strs("warnings", outcome.Warnings).
			Msg("Extraction needs review")
	}

	return outcome
}
