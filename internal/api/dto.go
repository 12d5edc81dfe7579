package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"buyerportal/internal/extraction"
	"buyerportal/internal/financing"
	"buyerportal/pkg/models"
)

// InvoiceResponse is the JSON form of a stored invoice.
type InvoiceResponse struct {
	ID            uuid.UUID     `json:"id"`
	InvoiceNumber *string       `json:"invoiceNumber"`
	Supplier      string        `json:"supplier"`
	Amount        *string       `json:"amount"`
	DueDate       *string       `json:"dueDate"`
	OCRNumber     *string       `json:"ocrNumber"`
	Bankgiro      *string       `json:"bankgiro"`
	PDFURL        string        `json:"pdfUrl"`
	Status        models.Status `json:"status"`
	StatusLabel   string        `json:"statusLabel"`
	PayoutDate    *string       `json:"payoutDate"`
	PayoutAmount  *string       `json:"payoutAmount"`
	CreatedAt     time.Time     `json:"createdAt"`
	UpdatedAt     time.Time     `json:"updatedAt"`
}

func toInvoiceResponse(rec *models.InvoiceRecord) InvoiceResponse {
	resp := InvoiceResponse{
		ID:            rec.ID,
		InvoiceNumber: rec.InvoiceNumber,
		Supplier:      rec.Supplier,
		Amount:        money(rec.Amount),
		DueDate:       date(rec.DueDate),
		OCRNumber:     rec.OCRNumber,
		Bankgiro:      rec.Bankgiro,
		PDFURL:        rec.FileURL,
		Status:        rec.Status,
		StatusLabel:   rec.Status.Label(),
		PayoutDate:    date(rec.PayoutDate),
		PayoutAmount:  money(rec.PayoutAmount),
		CreatedAt:     rec.CreatedAt,
		UpdatedAt:     rec.UpdatedAt,
	}
	if !rec.HasNaturalKey() {
		resp.InvoiceNumber = nil
	}
	return resp
}

func toInvoiceResponses(records []*models.InvoiceRecord) []InvoiceResponse {
	out := make([]InvoiceResponse, len(records))
	for i, rec := range records {
		out[i] = toInvoiceResponse(rec)
	}
	return out
}

// UploadItem is the outcome of one file in a multi-file upload.
type UploadItem struct {
	Filename  string             `json:"filename"`
	Success   bool               `json:"success"`
	InvoiceID *uuid.UUID         `json:"invoiceId,omitempty"`
	Parsed    *extraction.Fields `json:"parsed,omitempty"`
	PDFURL    string             `json:"pdfUrl,omitempty"`
	Warnings  []string           `json:"warnings,omitempty"`
	Error     string             `json:"error,omitempty"`
}

// ExtractRequest carries already recognized invoice text.
type ExtractRequest struct {
	Text string `json:"text"`
}

// PayRequest records a payout.
type PayRequest struct {
	PayoutDate   string           `json:"payoutDate"`
	PayoutAmount *decimal.Decimal `json:"payoutAmount"`
}

// QuoteRequest asks for a quote on a stored invoice or on an amount and due date.
type QuoteRequest struct {
	InvoiceID     string           `json:"invoiceId"`
	Amount        *decimal.Decimal `json:"amount"`
	DueDate       string           `json:"dueDate"`
	ExtensionDays int              `json:"extensionDays"`
}

// QuoteResponse is a priced extension.
type QuoteResponse struct {
	Fee           string          `json:"fee"`
	TotalCost     string          `json:"totalCost"`
	NewDueDate    *string         `json:"newDueDate"`
	Periods       int             `json:"periods"`
	ExtensionDays int             `json:"extensionDays"`
	Model         financing.Model `json:"model"`
	FeePercent    string          `json:"feePercent"`
}

func toQuoteResponse(q financing.Quote) QuoteResponse {
	resp := QuoteResponse{
		Fee:           q.Fee.StringFixed(2),
		TotalCost:     q.TotalCost.StringFixed(2),
		Periods:       q.Periods,
		ExtensionDays: q.ExtensionDays,
		Model:         q.Model,
		FeePercent:    q.FeePercent.StringFixed(2),
	}
	if !q.NewDueDate.IsZero() {
		resp.NewDueDate = date(&q.NewDueDate)
	}
	return resp
}

// OptionsResponse describes the active pricing.
type OptionsResponse struct {
	Model            financing.Model `json:"model"`
	Rate             string          `json:"rate"`
	MinDays          int             `json:"minDays"`
	MaxDays          int             `json:"maxDays"`
	StepDays         int             `json:"stepDays"`
	ExtensionOptions []int           `json:"extensionOptions"`
}

func toOptionsResponse(cfg financing.Config) OptionsResponse {
	return OptionsResponse{
		Model:            cfg.Model,
		Rate:             cfg.Rate().String(),
		MinDays:          cfg.MinDays,
		MaxDays:          cfg.MaxDays,
		StepDays:         cfg.StepDays,
		ExtensionOptions: cfg.ExtensionOptions(),
	}
}

func money(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.StringFixed(2)
	return &s
}

func date(t *time.Time) *string {
	if t == nil || t.IsZero() {
		return nil
	}
	s := t.Format(extraction.DateLayout)
	return &s
}
