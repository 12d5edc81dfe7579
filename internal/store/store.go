// Package store persists invoice records.
//
// Records are upserted on their invoice number. A record without an invoice
// number has no natural key: it is stored with a NULL key and never merges
// with another record. An upsert that hits an existing invoice refreshes the
// extracted fields only; lifecycle status and payout values stay as they were.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"

	"buyerportal/pkg/models"
)

var (
	// ErrNotFound is returned when no record matches the lookup.
	ErrNotFound = errors.New("invoice not found")
)

// InvoiceStore is the persistence port used by the intake service and the HTTP API.
type InvoiceStore interface {
	// Upsert inserts rec or merges it into the stored invoice with the same number.
	// It returns the record as stored.
	Upsert(ctx context.Context, rec *models.InvoiceRecord) (*models.InvoiceRecord, error)

	Get(ctx context.Context, id uuid.UUID) (*models.InvoiceRecord, error)
	GetByNumber(ctx context.Context, invoiceNumber string) (*models.InvoiceRecord, error)

	// List returns matching records, newest first.
	List(ctx context.Context, filter Filter) ([]*models.InvoiceRecord, error)

	// UpdateStatus writes the status and payout values of rec if the stored
	// invoice is still in status from. Otherwise it returns
	// models.ErrInvalidTransition and leaves the invoice untouched.
	UpdateStatus(ctx context.Context, rec *models.InvoiceRecord, from models.Status) error

	Delete(ctx context.Context, id uuid.UUID) error
}

// Filter narrows List results. The zero value matches everything.
type Filter struct {
	// Search is a case-insensitive substring of the invoice number or supplier.
	Search string

	// Status limits results to one lifecycle state when set.
	Status models.Status
}

// Matches reports whether rec passes the filter.
func (f Filter) Matches(rec *models.InvoiceRecord) bool {
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	term := strings.ToLower(strings.TrimSpace(f.Search))
	if term == "" {
		return true
	}
	if rec.InvoiceNumber != nil && strings.Contains(strings.ToLower(*rec.InvoiceNumber), term) {
		return true
	}
	return strings.Contains(strings.ToLower(rec.Supplier), term)
}
