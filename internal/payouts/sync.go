package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"buyerportal/internal/logger"
	"buyerportal/internal/store"
)

// Recorder marks an invoice paid by its invoice number.
type Recorder interface {
	RecordPayout(ctx context.Context, invoiceNumber string, payoutDate time.Time, payoutAmount decimal.Decimal) (bool, error)
}

// SyncReport summarizes one import.
type SyncReport struct {
	Read        int
	Paid        int
	AlreadyPaid int
	Unknown     []string
	Failed      []RowError
}

// Syncer applies payout rows to stored invoices.
type Syncer struct {
	reader   *DataReader
	recorder Recorder
	log      zerolog.Logger
}

// NewSyncer creates a syncer reading from sheets and writing through recorder.
func NewSyncer(sheets RangeReader, recorder Recorder) *Syncer {
	return &Syncer{
		reader:   NewDataReader(sheets),
		recorder: recorder,
		log:      logger.WithComponent("payout-sync"),
	}
}

// Sync imports every payout in rangeSpec. Rows for unknown invoices or invoices
// that are not approved are reported and skipped; the import continues.
func (s *Syncer) Sync(ctx context.Context, rangeSpec string) (*SyncReport, error) {
	payouts, rowErrors, err := s.reader.ReadPayouts(ctx, rangeSpec)
	if err != nil {
		return nil, err
	}

	report := &SyncReport{Read: len(payouts), Failed: rowErrors}

	for _, p := range payouts {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		changed, err := s.recorder.RecordPayout(ctx, p.InvoiceNumber, p.Date, p.Amount)
		switch {
		case errors.Is(err, store.ErrNotFound):
			report.Unknown = append(report.Unknown, p.InvoiceNumber)
		case err != nil:
			report.Failed = append(report.Failed, RowError{Row: p.Row, Reason: fmt.Sprintf("%s: %v", p.InvoiceNumber, err)})
		case changed:
			report.Paid++
		default:
			report.AlreadyPaid++
		}
	}

	s.log.Info().
		Int("read", report.Read).
		Int("paid", report.Paid).
		Int("already_paid", report.AlreadyPaid).
		Int("unknown", len(report.Unknown)).
		Int("failed", len(report.Failed)).
		Msg("Payout sync completed")

	return report, nil
}
