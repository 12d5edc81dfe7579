package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Status is the payout lifecycle state of an invoice.
type Status string

const (
	StatusPending  Status = "pending"  // uploaded, waiting for approval
	StatusApproved Status = "approved" // approved, payout within 24h
	StatusPaid     Status = "paid"     // supplier paid out
)

var (
	// ErrInvalidTransition is returned when a status change is not the next forward step.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrInvalidStatus is returned when a status string is not a known status.
	ErrInvalidStatus = errors.New("invalid status")

	// ErrInvalidRecord is returned when a record violates its invariants.
	ErrInvalidRecord = errors.New("invalid invoice record")
)

// ParseStatus converts a status string to a Status.
func ParseStatus(s string) (Status, error) {
	switch Status(s) {
	case StatusPending, StatusApproved, StatusPaid:
		return Status(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
	}
}

// Next returns the only status this status may move to.
func (s Status) Next() (Status, bool) {
	switch s {
	case StatusPending:
		return StatusApproved, true
	case StatusApproved:
		return StatusPaid, true
	default:
		return "", false
	}
}

// CanTransitionTo reports whether moving from s to next is a forward step.
func (s Status) CanTransitionTo(next Status) bool {
	n, ok := s.Next()
	return ok && n == next
}

// Label is the Swedish text shown to buyers.
func (s Status) Label() string {
	switch s {
	case StatusPaid:
		return "Utbetald"
	case StatusApproved:
		return "Godkänd – utbetalning inom 24h"
	default:
		return "Väntar på godkännande"
	}
}

// InvoiceRecord is a stored supplier invoice.
// Optional extracted values are nil when extraction could not resolve them.
type InvoiceRecord struct {
	ID uuid.UUID

	// InvoiceNumber is the natural key. Nil means the invoice has no key and never deduplicates.
	InvoiceNumber *string
	Supplier      string
	Amount        *decimal.Decimal
	DueDate       *time.Time
	OCRNumber     *string
	Bankgiro      *string
	FileURL       string

	Status       Status
	PayoutDate   *time.Time
	PayoutAmount *decimal.Decimal

	CreatedAt time.Time
	UpdatedAt time.Time
}

// NewInvoiceRecord creates a pending record with a fresh ID.
func NewInvoiceRecord(now time.Time) *InvoiceRecord {
	return &InvoiceRecord{
		ID:        uuid.New(),
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Approve moves a pending invoice to approved.
func (r *InvoiceRecord) Approve(now time.Time) error {
	if !r.Status.CanTransitionTo(StatusApproved) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusApproved)
	}
	r.Status = StatusApproved
	r.UpdatedAt = now
	return nil
}

// MarkPaid moves an approved invoice to paid and records the payout.
func (r *InvoiceRecord) MarkPaid(payoutDate time.Time, payoutAmount decimal.Decimal, now time.Time) error {
	if !r.Status.CanTransitionTo(StatusPaid) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, StatusPaid)
	}
	if payoutDate.IsZero() {
		return fmt.Errorf("%w: payout date is required", ErrInvalidRecord)
	}
	if payoutAmount.IsNegative() || !payoutAmount.Equal(payoutAmount.Round(2)) {
		return fmt.Errorf("%w: payout amount %s", ErrInvalidRecord, payoutAmount)
	}

	r.Status = StatusPaid
	r.PayoutDate = &payoutDate
	r.PayoutAmount = &payoutAmount
	r.UpdatedAt = now
	return nil
}

// Transition applies a status change by target status.
func (r *InvoiceRecord) Transition(to Status, payoutDate time.Time, payoutAmount decimal.Decimal, now time.Time) error {
	switch to {
	case StatusApproved:
		return r.Approve(now)
	case StatusPaid:
		return r.MarkPaid(payoutDate, payoutAmount, now)
	default:
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, to)
	}
}

// Validate checks the record invariants.
func (r *InvoiceRecord) Validate() error {
	if _, err := ParseStatus(string(r.Status)); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}
	if r.Amount != nil && (r.Amount.IsNegative() || !r.Amount.Equal(r.Amount.Round(2))) {
		return fmt.Errorf("%w: amount %s", ErrInvalidRecord, r.Amount)
	}

	paid := r.Status == StatusPaid
	hasPayout := r.PayoutDate != nil || r.PayoutAmount != nil
	switch {
	case paid && (r.PayoutDate == nil || r.PayoutAmount == nil):
		return fmt.Errorf("%w: paid invoice without payout", ErrInvalidRecord)
	case !paid && hasPayout:
		return fmt.Errorf("%w: payout set on %s invoice", ErrInvalidRecord, r.Status)
	}
	return nil
}

// HasNaturalKey reports whether the record can be deduplicated by invoice number.
func (r *InvoiceRecord) HasNaturalKey() bool {
	return r.InvoiceNumber != nil && *r.InvoiceNumber != ""
}
