// Package extraction turns raw OCR text from Swedish supplier invoices into
// structured invoice fields.
//
// The heuristics are marker driven: a line is a candidate for a field when its
// folded text contains the field's marker, and the value is captured from the
// original line. OCR layout is unconstrained, so the result is best effort and
// is meant to be reviewed in the approval workflow before any payout.
//
// Heuristics:
//   - amount: "summa (sek)" or "kvar att betala (sek)", number before "(inkl. moms)", last match wins
//   - due date: "förfallodatum", first YYYY-MM-DD after the marker, last match wins
//   - invoice number: "fakturanummer", first run of at least 10 digits after the marker, first match wins
//   - bankgiro: "bankgiro", DDDD-DDDD, first match wins
//   - OCR reference: payment slip line containing '#' and '>', at least 10 digits, first match wins
//   - supplier: configured per integration, never read from the text
package extraction

import (
	"regexp"
	"strings"
	"time"
)

var (
	amountMarkers = []string{"summa (sek)", "kvar att betala (sek)"}

	amountPattern     = regexp.MustCompile(`(?i)(\d[\d\s\x{00A0}\x{202F}]*(?:[.,]\d+)?)\s*\(inkl\.?\s*moms\)`)
	datePattern       = regexp.MustCompile(`(?:^|\D)(\d{4}-\d{2}-\d{2})(?:\D|$)`)
	longNumberPattern = regexp.MustCompile(`\d{10,}`)
	bankgiroPattern   = regexp.MustCompile(`(?:^|\D)(\d{4}-\d{4})(?:\D|$)`)

	dueDateMarkerPattern       = regexp.MustCompile(`(?i)` + dueDateMarker)
	invoiceNumberMarkerPattern = regexp.MustCompile(`(?i)` + invoiceNumberMarker)
)

const (
	dueDateMarker       = "förfallodatum"
	invoiceNumberMarker = "fakturanummer"
	bankgiroMarker      = "bankgiro"
)

// Extractor applies the field heuristics. It holds no mutable state and is
// safe for concurrent use.
type Extractor struct {
	supplier string
}

// NewExtractor creates an extractor that reports supplier as the counterparty
// of every invoice. An empty supplier leaves the field unresolved.
func NewExtractor(supplier string) *Extractor {
	return &Extractor{supplier: strings.TrimSpace(supplier)}
}

// Extract normalizes raw OCR text and extracts the invoice fields. It never fails.
func (e *Extractor) Extract(raw string) Result {
	return e.ExtractLines(Normalize(raw))
}

// ExtractLines extracts the invoice fields from already normalized lines in one pass.
func (e *Extractor) ExtractLines(lines []Line) Result {
	r := Result{matches: make(map[FieldName]Match)}

	if e.supplier != "" {
		r.supplier = Resolved(e.supplier)
	}

	for _, line := range lines {
		if hasAnyMarker(line.Folded, amountMarkers) {
			if v, ok := captureAmount(line.Text); ok {
				r.amount = Resolved(v)
				r.matches[FieldAmount] = Match{Line: line.Number, Text: line.Text}
			}
		}

		if strings.Contains(line.Folded, dueDateMarker) {
			if v, ok := captureDate(afterMarker(line.Text, dueDateMarkerPattern)); ok {
				r.dueDate = Resolved(v)
				r.matches[FieldDueDate] = Match{Line: line.Number, Text: line.Text}
			}
		}

		if !r.invoiceNumber.IsResolved() && strings.Contains(line.Folded, invoiceNumberMarker) {
			if v := longNumberPattern.FindString(afterMarker(line.Text, invoiceNumberMarkerPattern)); v != "" {
				r.invoiceNumber = Resolved(v)
				r.matches[FieldInvoiceNumber] = Match{Line: line.Number, Text: line.Text}
			}
		}

		if !r.bankgiro.IsResolved() && strings.Contains(line.Folded, bankgiroMarker) {
			if m := bankgiroPattern.FindStringSubmatch(line.Text); m != nil {
				r.bankgiro = Resolved(m[1])
				r.matches[FieldBankgiro] = Match{Line: line.Number, Text: line.Text}
			}
		}

		if !r.ocrNumber.IsResolved() && isPaymentSlipLine(line.Text) {
			if v := longNumberPattern.FindString(line.Text); v != "" {
				r.ocrNumber = Resolved(v)
				r.matches[FieldOCRNumber] = Match{Line: line.Number, Text: line.Text}

				if !r.invoiceNumber.IsResolved() {
					r.invoiceNumber = Resolved(v)
					r.matches[FieldInvoiceNumber] = Match{Line: line.Number, Text: line.Text, Aliased: true}
				}
			}
		}
	}

	return r
}

func hasAnyMarker(folded string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(folded, m) {
			return true
		}
	}
	return false
}

// afterMarker returns the part of text that follows the first marker match,
// or "" when the marker is absent from the original casing.
func afterMarker(text string, marker *regexp.Regexp) string {
	loc := marker.FindStringIndex(text)
	if loc == nil {
		return ""
	}
	return text[loc[1]:]
}

// isPaymentSlipLine matches the machine readable row of a Swedish payment slip.
func isPaymentSlipLine(text string) bool {
	return strings.Contains(text, "#") && strings.Contains(text, ">")
}

// captureAmount returns the last amount on the line in "<number> kr" form.
func captureAmount(text string) (string, bool) {
	all := amountPattern.FindAllStringSubmatch(text, -1)
	if len(all) == 0 {
		return "", false
	}
	raw := all[len(all)-1][1]

	amount := ParseAmount(raw)
	if !amount.Valid {
		return "", false
	}

	var b strings.Builder
	for _, r := range raw {
		switch {
		case r >= '0' && r <= '9', r == '.':
			b.WriteRune(r)
		case r == ',':
			b.WriteRune('.')
		}
	}
	return b.String() + " " + AmountUnit, true
}

// captureDate returns the first valid calendar date in text.
func captureDate(text string) (string, bool) {
	for _, m := range datePattern.FindAllStringSubmatch(text, -1) {
		if _, err := time.Parse(DateLayout, m[1]); err == nil {
			return m[1], true
		}
	}
	return "", false
}
