package extraction

import (
	"strings"
	"time"
	"unicode"

	"github.com/shopspring/decimal"
)

// DateLayout is the only due date form the heuristics accept.
const DateLayout = "2006-01-02"

// AmountUnit is appended to resolved amounts.
const AmountUnit = "kr"

// FieldName identifies one of the extracted fields by its wire name.
type FieldName string

const (
	FieldAmount        FieldName = "amount"
	FieldDueDate       FieldName = "dueDate"
	FieldSupplier      FieldName = "supplier"
	FieldInvoiceNumber FieldName = "invoiceNumber"
	FieldOCRNumber     FieldName = "ocrNumber"
	FieldBankgiro      FieldName = "bankgiro"
)

// AllFields lists the extracted fields in wire order.
var AllFields = []FieldName{
	FieldAmount, FieldDueDate, FieldSupplier, FieldInvoiceNumber, FieldOCRNumber, FieldBankgiro,
}

// Match records which line resolved a field.
type Match struct {
	Line int    `json:"line"`
	Text string `json:"text"`

	// Aliased is set on the invoice number when it was copied from the OCR reference.
	Aliased bool `json:"aliased,omitempty"`
}

// Result is the outcome of one extraction. It is immutable; every field is
// either resolved or unresolved, never missing.
type Result struct {
	amount        Field
	dueDate       Field
	supplier      Field
	invoiceNumber Field
	ocrNumber     Field
	bankgiro      Field
	matches       map[FieldName]Match
}

func (r Result) Amount() Field        { return r.amount }
func (r Result) DueDate() Field       { return r.dueDate }
func (r Result) Supplier() Field      { return r.supplier }
func (r Result) InvoiceNumber() Field { return r.invoiceNumber }
func (r Result) OCRNumber() Field     { return r.ocrNumber }
func (r Result) Bankgiro() Field      { return r.bankgiro }

// Field returns the field with the given wire name.
func (r Result) Field(name FieldName) Field {
	switch name {
	case FieldAmount:
		return r.amount
	case FieldDueDate:
		return r.dueDate
	case FieldSupplier:
		return r.supplier
	case FieldInvoiceNumber:
		return r.invoiceNumber
	case FieldOCRNumber:
		return r.ocrNumber
	case FieldBankgiro:
		return r.bankgiro
	default:
		return Field{}
	}
}

// Match returns the line decision behind a resolved field.
// The supplier never has one since it is configured, not read.
func (r Result) Match(name FieldName) (Match, bool) {
	m, ok := r.matches[name]
	return m, ok
}

// Decisions returns a copy of all line decisions.
func (r Result) Decisions() map[FieldName]Match {
	out := make(map[FieldName]Match, len(r.matches))
	for k, v := range r.matches {
		out[k] = v
	}
	return out
}

// InvoiceNumberAliased reports whether the invoice number came from the OCR reference.
func (r Result) InvoiceNumberAliased() bool {
	return r.matches[FieldInvoiceNumber].Aliased
}

// Unresolved lists the fields left at NotFound.
func (r Result) Unresolved() []FieldName {
	var out []FieldName
	for _, name := range AllFields {
		if !r.Field(name).IsResolved() {
			out = append(out, name)
		}
	}
	return out
}

// AmountDecimal returns the resolved amount as a number.
func (r Result) AmountDecimal() decimal.NullDecimal {
	v, ok := r.amount.Value()
	if !ok {
		return decimal.NullDecimal{}
	}
	return ParseAmount(v)
}

// DueDateTime returns the resolved due date, or the zero time.
func (r Result) DueDateTime() time.Time {
	v, ok := r.dueDate.Value()
	if !ok {
		return time.Time{}
	}
	t, err := time.Parse(DateLayout, v)
	if err != nil {
		return time.Time{}
	}
	return t
}

// Fields is the boundary form of a Result.
type Fields struct {
	Amount        string `json:"amount"`
	DueDate       string `json:"dueDate"`
	Supplier      string `json:"supplier"`
	InvoiceNumber string `json:"invoiceNumber"`
	OCRNumber     string `json:"ocrNumber"`
	Bankgiro      string `json:"bankgiro"`
}

// Fields renders the result with NotFound for unresolved values.
func (r Result) Fields() Fields {
	return Fields{
		Amount:        r.amount.String(),
		DueDate:       r.dueDate.String(),
		Supplier:      r.supplier.String(),
		InvoiceNumber: r.invoiceNumber.String(),
		OCRNumber:     r.ocrNumber.String(),
		Bankgiro:      r.bankgiro.String(),
	}
}

// ParseAmount reads an amount in any of the forms the portal shows:
// "12500.00 kr", "12 500,00" or "12500". NotFound, blanks, negative values
// and values with more than two decimals are invalid.
func ParseAmount(s string) decimal.NullDecimal {
	s = strings.TrimSpace(s)
	if s == "" || s == NotFound {
		return decimal.NullDecimal{}
	}
	s = strings.TrimSpace(strings.TrimSuffix(s, AmountUnit))
	s = strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) {
			return -1
		}
		return r
	}, s)
	s = strings.ReplaceAll(s, ",", ".")

	d, err := decimal.NewFromString(s)
	if err != nil || d.IsNegative() || d.Exponent() < -2 {
		return decimal.NullDecimal{}
	}
	return decimal.NullDecimal{Decimal: d, Valid: true}
}
