package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buyerportal/pkg/models"
)

func strPtr(s string) *string { return &s }

func decPtr(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func newRecord(number *string, supplier string, createdAt time.Time) *models.InvoiceRecord {
	rec := models.NewInvoiceRecord(createdAt)
	rec.InvoiceNumber = number
	rec.Supplier = supplier
	rec.Amount = decPtr("100.00")
	return rec
}

func TestMemoryStore_UpsertMergesOnInvoiceNumber(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	t0 := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)

	first, err := s.Upsert(ctx, newRecord(strPtr("4410029384"), "Telavox AB", t0))
	require.NoError(t, err)

	// Move the stored invoice along before re-uploading it.
	require.NoError(t, first.Approve(t0.Add(time.Hour)))
	require.NoError(t, s.UpdateStatus(ctx, first, models.StatusPending))

	again := newRecord(strPtr("4410029384"), "Telavox AB", t0.Add(2*time.Hour))
	again.Amount = decPtr("250.50")
	again.FileURL = "http://files/4410029384-new.pdf"

	stored, err := s.Upsert(ctx, again)
	require.NoError(t, err)

	assert.Equal(t, first.ID, stored.ID, "upsert keeps the existing identity")
	assert.Equal(t, models.StatusApproved, stored.Status, "upsert never changes status")
	assert.True(t, decimal.RequireFromString("250.50").Equal(*stored.Amount))
	assert.Equal(t, "http://files/4410029384-new.pdf", stored.FileURL)
	assert.Equal(t, t0, stored.CreatedAt)

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestMemoryStore_UnkeyedRecordsNeverMerge(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	now := time.Now()

	_, err := s.Upsert(ctx, newRecord(nil, "Telavox AB", now))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, newRecord(nil, "Telavox AB", now))
	require.NoError(t, err)
	// An empty number is treated like a missing one and stored as nil.
	blank, err := s.Upsert(ctx, newRecord(strPtr(""), "Telavox AB", now))
	require.NoError(t, err)
	assert.Nil(t, blank.InvoiceNumber)

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestMemoryStore_UpsertRejectsInvalidRecord(t *testing.T) {
	rec := newRecord(strPtr("1234567890"), "x", time.Now())
	rec.Amount = decPtr("-1")

	_, err := NewMemoryStore().Upsert(context.Background(), rec)
	assert.ErrorIs(t, err, models.ErrInvalidRecord)
}

func TestMemoryStore_GetAndDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	stored, err := s.Upsert(ctx, newRecord(strPtr("5550001112"), "Telavox AB", time.Now()))
	require.NoError(t, err)

	got, err := s.Get(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "5550001112", *got.InvoiceNumber)

	byNumber, err := s.GetByNumber(ctx, "5550001112")
	require.NoError(t, err)
	assert.Equal(t, stored.ID, byNumber.ID)

	// Returned records are copies.
	*got.InvoiceNumber = "changed"
	again, err := s.Get(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, "5550001112", *again.InvoiceNumber)

	require.NoError(t, s.Delete(ctx, stored.ID))

	_, err = s.Get(ctx, stored.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetByNumber(ctx, "5550001112")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, stored.ID), ErrNotFound)
	assert.ErrorIs(t, s.UpdateStatus(ctx, models.NewInvoiceRecord(time.Now()), models.StatusPending), ErrNotFound)
}

func TestMemoryStore_ListFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	t0 := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	a, err := s.Upsert(ctx, newRecord(strPtr("1111111111"), "Telavox AB", t0))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, newRecord(strPtr("2222222222"), "Fortnox AB", t0.Add(time.Hour)))
	require.NoError(t, err)
	_, err = s.Upsert(ctx, newRecord(nil, "Telia Sverige", t0.Add(2*time.Hour)))
	require.NoError(t, err)

	require.NoError(t, a.Approve(t0))
	require.NoError(t, s.UpdateStatus(ctx, a, models.StatusPending))

	tests := []struct {
		name      string
		filter    Filter
		suppliers []string
	}{
		{"everything newest first", Filter{}, []string{"Telia Sverige", "Fortnox AB", "Telavox AB"}},
		{"supplier substring any case", Filter{Search: "TEL"}, []string{"Telia Sverige", "Telavox AB"}},
		{"invoice number substring", Filter{Search: "2222"}, []string{"Fortnox AB"}},
		{"status", Filter{Status: models.StatusApproved}, []string{"Telavox AB"}},
		{"status and search", Filter{Status: models.StatusPending, Search: "tel"}, []string{"Telia Sverige"}},
		{"no match", Filter{Search: "nothing"}, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.List(ctx, tt.filter)
			require.NoError(t, err)

			suppliers := make([]string, 0, len(got))
			for _, rec := range got {
				suppliers = append(suppliers, rec.Supplier)
			}
			assert.Equal(t, tt.suppliers, suppliers)
		})
	}
}

func TestMemoryStore_ConcurrentUpserts(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			number := fmt.Sprintf("%010d", i%5)
			_, err := s.Upsert(ctx, newRecord(&number, "Telavox AB", time.Now()))
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	all, err := s.List(ctx, Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 5)

	_, err = s.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStore_UpdateStatusComparesPreviousStatus(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	stored, err := s.Upsert(ctx, newRecord(strPtr("4410029384"), "Telavox AB", t0))
	require.NoError(t, err)

	// Two requests read the same pending invoice.
	first, err := s.Get(ctx, stored.ID)
	require.NoError(t, err)
	stale, err := s.Get(ctx, stored.ID)
	require.NoError(t, err)

	require.NoError(t, first.Approve(t0))
	require.NoError(t, s.UpdateStatus(ctx, first, models.StatusPending))
	require.NoError(t, first.MarkPaid(t0, decimal.RequireFromString("100"), t0))
	require.NoError(t, s.UpdateStatus(ctx, first, models.StatusApproved))

	require.NoError(t, stale.Approve(t0))
	err = s.UpdateStatus(ctx, stale, models.StatusPending)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	got, err := s.Get(ctx, stored.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, got.Status)
	require.NotNil(t, got.PayoutAmount)
	assert.True(t, decimal.RequireFromString("100").Equal(*got.PayoutAmount))

	// A status that is not the next step from the claimed one is refused as well.
	backward := clone(got)
	backward.Status = models.StatusApproved
	backward.PayoutDate, backward.PayoutAmount = nil, nil
	assert.ErrorIs(t, s.UpdateStatus(ctx, backward, models.StatusPaid), models.ErrInvalidTransition)
}
