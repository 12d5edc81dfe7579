package invoice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"buyerportal/internal/blob"
	"buyerportal/internal/extraction"
	"buyerportal/internal/financing"
	"buyerportal/internal/ocr"
	"buyerportal/internal/store"
	"buyerportal/pkg/models"
)

const telavoxText = `Telavox AB
Faktura
Fakturanummer: 4410029384
Fakturadatum 2026-02-13
Förfallodatum 2026-03-15
Summa (SEK) 12 500,50 (inkl. moms)
Bankgiro 5050-1055
# 4410029384123 # 1250050 >5050105#41#`

var fixedNow = time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC)

// fakeOCR returns canned text per file name.
type fakeOCR struct {
	texts map[string]string
	err   error
	calls atomic.Int32

	mu        sync.Mutex
	deadlines []time.Time
}

func (f *fakeOCR) Recognize(ctx context.Context, doc ocr.Document) (*ocr.OCRResult, error) {
	f.calls.Add(1)
	if dl, ok := ctx.Deadline(); ok {
		f.mu.Lock()
		f.deadlines = append(f.deadlines, dl)
		f.mu.Unlock()
	}
	if f.err != nil {
		return nil, f.err
	}
	return &ocr.OCRResult{Text: f.texts[doc.Name], Provider: "fake", PageCount: 1}, nil
}

// failingFiles fails every Put.
type failingFiles struct{}

func (failingFiles) Put(context.Context, string, []byte, string) (string, error) {
	return "", errors.New("disk full")
}

// failingStore fails every upsert.
type failingStore struct {
	*store.MemoryStore
}

func (failingStore) Upsert(context.Context, *models.InvoiceRecord) (*models.InvoiceRecord, error) {
	return nil, errors.New("connection refused")
}

type fixture struct {
	svc   *Service
	ocr   *fakeOCR
	store *store.MemoryStore
	dir   string
}

func newFixture(t *testing.T, texts map[string]string) *fixture {
	t.Helper()

	dir := t.TempDir()
	files, err := blob.NewDiskStore(dir, "http://localhost:8080/files")
	require.NoError(t, err)

	calc, err := financing.NewCalculator(financing.DefaultConfig(financing.ModelPerPeriod))
	require.NoError(t, err)

	fake := &fakeOCR{texts: texts}
	mem := store.NewMemoryStore()
	svc := NewService(fake, extraction.NewExtractor("Telavox AB"), mem, files, calc, Config{
		OCRTimeout: 2 * time.Minute,
		Workers:    4,
		Clock:      func() time.Time { return fixedNow },
	})
	return &fixture{svc: svc, ocr: fake, store: mem, dir: dir}
}

func pdf(name string) Upload {
	return Upload{Filename: name, ContentType: "application/pdf", Data: []byte("%PDF-1.7 " + name)}
}

func TestService_Upload(t *testing.T) {
	f := newFixture(t, map[string]string{"Telavox faktura.pdf": telavoxText})
	ctx := context.Background()

	res, err := f.svc.Upload(ctx, pdf("Telavox faktura.pdf"))
	require.NoError(t, err)

	assert.True(t, res.Success)
	assert.Equal(t, "http://localhost:8080/files/4410029384-Telavox_faktura.pdf", res.PDFURL)
	assert.Equal(t, extraction.Fields{
		Amount:        "12500.50 kr",
		DueDate:       "2026-03-15",
		Supplier:      "Telavox AB",
		InvoiceNumber: "4410029384",
		OCRNumber:     "4410029384123",
		Bankgiro:      "5050-1055",
	}, res.Parsed)
	assert.Empty(t, res.Warnings)

	_, err = os.Stat(filepath.Join(f.dir, "4410029384-Telavox_faktura.pdf"))
	require.NoError(t, err)

	rec, err := f.store.Get(ctx, res.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, rec.Status)
	assert.Equal(t, "4410029384", *rec.InvoiceNumber)
	assert.True(t, decimal.RequireFromString("12500.50").Equal(*rec.Amount))
	assert.Equal(t, "2026-03-15", rec.DueDate.Format(extraction.DateLayout))
	assert.Equal(t, "Telavox AB", rec.Supplier)
	assert.Equal(t, res.PDFURL, rec.FileURL)

	assert.Len(t, f.ocr.deadlines, 1)
	assert.WithinDuration(t, time.Now().Add(2*time.Minute), f.ocr.deadlines[0], 10*time.Second)
}

func TestService_UploadUnresolvedNumberNeverMerges(t *testing.T) {
	text := "Summa (SEK) 100,00 (inkl. moms)"
	f := newFixture(t, map[string]string{"a.pdf": text, "b.pdf": text})
	ctx := context.Background()

	first, err := f.svc.Upload(ctx, pdf("a.pdf"))
	require.NoError(t, err)
	second, err := f.svc.Upload(ctx, pdf("b.pdf"))
	require.NoError(t, err)

	assert.NotEqual(t, first.InvoiceID, second.InvoiceID)
	assert.Equal(t, extraction.NotFound, first.Parsed.InvoiceNumber)
	assert.Equal(t, fmt.Sprintf("http://localhost:8080/files/%d-a.pdf", fixedNow.UnixMilli()), first.PDFURL)
	assert.Contains(t, first.Warnings, "invoiceNumber not found")

	rec, err := f.store.Get(ctx, first.InvoiceID)
	require.NoError(t, err)
	assert.Nil(t, rec.InvoiceNumber)
}

func TestService_UploadTwiceKeepsStatus(t *testing.T) {
	f := newFixture(t, map[string]string{"a.pdf": telavoxText})
	ctx := context.Background()

	first, err := f.svc.Upload(ctx, pdf("a.pdf"))
	require.NoError(t, err)
	_, err = f.svc.Approve(ctx, first.InvoiceID)
	require.NoError(t, err)

	second, err := f.svc.Upload(ctx, pdf("a.pdf"))
	require.NoError(t, err)
	assert.Equal(t, first.InvoiceID, second.InvoiceID)
	assert.Equal(t, models.StatusApproved, second.Invoice.Status)
}

func TestService_UploadFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("empty file", func(t *testing.T) {
		f := newFixture(t, nil)
		_, err := f.svc.Upload(ctx, Upload{Filename: "a.pdf"})
		assert.ErrorIs(t, err, ErrNoFile)
		assert.Zero(t, f.ocr.calls.Load())
	})

	t.Run("ocr failure stops the pipeline", func(t *testing.T) {
		f := newFixture(t, nil)
		f.ocr.err = ocr.NewOCRError("Recognize", ocr.ErrOCRFailed, "File failed validation")

		_, err := f.svc.Upload(ctx, pdf("a.pdf"))
		require.Error(t, err)
		assert.Equal(t, StageOCR, StageOf(err))
		assert.ErrorIs(t, err, ocr.ErrOCRFailed)
		assert.Equal(t, "File failed validation", ocr.UserMessage(err))
		_, hasParsed := ParsedOf(err)
		assert.False(t, hasParsed)

		all, _ := f.store.List(ctx, store.Filter{})
		assert.Empty(t, all)
	})

	t.Run("storage failure carries the parsed fields", func(t *testing.T) {
		f := newFixture(t, map[string]string{"a.pdf": telavoxText})
		f.svc.files = failingFiles{}

		_, err := f.svc.Upload(ctx, pdf("a.pdf"))
		require.Error(t, err)
		assert.Equal(t, StageStorage, StageOf(err))
		parsed, ok := ParsedOf(err)
		require.True(t, ok)
		assert.Equal(t, "4410029384", parsed.Fields().InvoiceNumber)
	})

	t.Run("persistence failure carries the parsed fields", func(t *testing.T) {
		f := newFixture(t, map[string]string{"a.pdf": telavoxText})
		f.svc.store = failingStore{store.NewMemoryStore()}

		_, err := f.svc.Upload(ctx, pdf("a.pdf"))
		require.Error(t, err)
		assert.Equal(t, StagePersistence, StageOf(err))
		parsed, ok := ParsedOf(err)
		require.True(t, ok)
		assert.Equal(t, "12500.50 kr", parsed.Fields().Amount)

		var pe *ProcessingError
		require.ErrorAs(t, err, &pe)
		assert.Equal(t, "Upload", pe.Op)
		assert.Contains(t, pe.Error(), "persistence")
	})
}

func TestService_ProcessBatch(t *testing.T) {
	texts := map[string]string{}
	var uploads []Upload
	for i := 0; i < 9; i++ {
		name := fmt.Sprintf("inv-%d.pdf", i)
		texts[name] = fmt.Sprintf("Fakturanummer %010d\nSumma (SEK) %d,00 (inkl. moms)", i+1, (i+1)*100)
		uploads = append(uploads, pdf(name))
	}
	uploads = append(uploads, Upload{Filename: "empty.pdf"})

	f := newFixture(t, texts)

	var progress []int
	results := f.svc.ProcessBatch(context.Background(), uploads, BatchOptions{
		Save: true,
		Progress: func(done, total int, _ BatchResult) {
			assert.Equal(t, len(uploads), total)
			progress = append(progress, done)
		},
	})

	require.Len(t, results, len(uploads))
	for i, r := range results[:9] {
		assert.Equal(t, i, r.Index)
		assert.Equal(t, uploads[i].Filename, r.Filename)
		require.NoError(t, r.Error)
		assert.Equal(t, fmt.Sprintf("%010d", i+1), r.Result.Fields().InvoiceNumber)
		assert.NotNil(t, r.Upload)
	}
	assert.ErrorIs(t, results[9].Error, ErrNoFile)
	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, progress)

	all, err := f.store.List(context.Background(), store.Filter{})
	require.NoError(t, err)
	assert.Len(t, all, 9)
}

func TestService_ProcessBatchWithoutSave(t *testing.T) {
	f := newFixture(t, map[string]string{"a.pdf": telavoxText})

	results := f.svc.ProcessBatch(context.Background(), []Upload{pdf("a.pdf")}, BatchOptions{})
	require.Len(t, results, 1)
	require.NoError(t, results[0].Error)
	assert.Nil(t, results[0].Upload)
	assert.Equal(t, "5050-1055", results[0].Result.Fields().Bankgiro)

	all, _ := f.store.List(context.Background(), store.Filter{})
	assert.Empty(t, all)
}

func TestService_Lifecycle(t *testing.T) {
	f := newFixture(t, map[string]string{"a.pdf": telavoxText})
	ctx := context.Background()

	up, err := f.svc.Upload(ctx, pdf("a.pdf"))
	require.NoError(t, err)

	_, err = f.svc.MarkPaid(ctx, up.InvoiceID, fixedNow, decimal.RequireFromString("12500.50"))
	assert.ErrorIs(t, err, models.ErrInvalidTransition, "pending cannot be paid directly")

	rec, err := f.svc.Approve(ctx, up.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, rec.Status)

	_, err = f.svc.Approve(ctx, up.InvoiceID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	rec, err = f.svc.MarkPaid(ctx, up.InvoiceID, fixedNow, decimal.RequireFromString("12500.50"))
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, rec.Status)

	stored, err := f.svc.Get(ctx, up.InvoiceID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusPaid, stored.Status)
	assert.True(t, decimal.RequireFromString("12500.50").Equal(*stored.PayoutAmount))

	require.NoError(t, f.svc.Delete(ctx, up.InvoiceID))
	_, err = f.svc.Get(ctx, up.InvoiceID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.svc.Approve(ctx, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

// interleavingStore runs between once, right after the first Get returns,
// so the caller continues with a stale copy of the invoice.
type interleavingStore struct {
	*store.MemoryStore
	between func()
}

func (s *interleavingStore) Get(ctx context.Context, id uuid.UUID) (*models.InvoiceRecord, error) {
	rec, err := s.MemoryStore.Get(ctx, id)
	if run := s.between; run != nil {
		s.between = nil
		run()
	}
	return rec, err
}

func TestService_StaleTransitionIsRejected(t *testing.T) {
	payout := decimal.RequireFromString("12500.50")

	tests := []struct {
		name    string
		before  func(ctx context.Context, svc *Service, id uuid.UUID) // applied before the stale read
		between func(ctx context.Context, svc *Service, id uuid.UUID) // another request after the stale read
		stale   func(ctx context.Context, svc *Service, id uuid.UUID) error
	}{
		{
			name: "approve after approve and pay",
			between: func(ctx context.Context, svc *Service, id uuid.UUID) {
				_, err := svc.Approve(ctx, id)
				require.NoError(t, err)
				_, err = svc.MarkPaid(ctx, id, fixedNow, payout)
				require.NoError(t, err)
			},
			stale: func(ctx context.Context, svc *Service, id uuid.UUID) error {
				_, err := svc.Approve(ctx, id)
				return err
			},
		},
		{
			name: "pay after pay",
			before: func(ctx context.Context, svc *Service, id uuid.UUID) {
				_, err := svc.Approve(ctx, id)
				require.NoError(t, err)
			},
			between: func(ctx context.Context, svc *Service, id uuid.UUID) {
				_, err := svc.MarkPaid(ctx, id, fixedNow, payout)
				require.NoError(t, err)
			},
			stale: func(ctx context.Context, svc *Service, id uuid.UUID) error {
				_, err := svc.MarkPaid(ctx, id, fixedNow.AddDate(0, 0, 1), decimal.RequireFromString("1"))
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			calc, err := financing.NewCalculator(financing.DefaultConfig(financing.ModelPerPeriod))
			require.NoError(t, err)

			files, err := blob.NewDiskStore(t.TempDir(), "http://localhost:8080/files")
			require.NoError(t, err)

			st := &interleavingStore{MemoryStore: store.NewMemoryStore()}
			svc := NewService(&fakeOCR{texts: map[string]string{"a.pdf": telavoxText}},
				extraction.NewExtractor("Telavox AB"), st, files, calc, Config{
					OCRTimeout: time.Minute,
					Workers:    1,
					Clock:      func() time.Time { return fixedNow },
				})

			up, err := svc.Upload(ctx, pdf("a.pdf"))
			require.NoError(t, err)
			if tt.before != nil {
				tt.before(ctx, svc, up.InvoiceID)
			}

			st.between = func() { tt.between(ctx, svc, up.InvoiceID) }
			assert.ErrorIs(t, tt.stale(ctx, svc, up.InvoiceID), models.ErrInvalidTransition)

			stored, err := svc.Get(ctx, up.InvoiceID)
			require.NoError(t, err)
			assert.Equal(t, models.StatusPaid, stored.Status)
			require.NotNil(t, stored.PayoutDate)
			assert.True(t, fixedNow.Equal(*stored.PayoutDate))
			assert.True(t, payout.Equal(*stored.PayoutAmount))
		})
	}
}

func TestService_RecordPayout(t *testing.T) {
	f := newFixture(t, map[string]string{"a.pdf": telavoxText})
	ctx := context.Background()

	up, err := f.svc.Upload(ctx, pdf("a.pdf"))
	require.NoError(t, err)

	_, err = f.svc.RecordPayout(ctx, "4410029384", fixedNow, decimal.RequireFromString("100"))
	assert.ErrorIs(t, err, models.ErrInvalidTransition)

	_, err = f.svc.Approve(ctx, up.InvoiceID)
	require.NoError(t, err)

	changed, err := f.svc.RecordPayout(ctx, "4410029384", fixedNow, decimal.RequireFromString("12500.50"))
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = f.svc.RecordPayout(ctx, "4410029384", fixedNow, decimal.RequireFromString("12500.50"))
	require.NoError(t, err)
	assert.False(t, changed, "already paid")

	_, err = f.svc.RecordPayout(ctx, "0000000000", fixedNow, decimal.RequireFromString("1"))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestService_Quote(t *testing.T) {
	f := newFixture(t, map[string]string{"a.pdf": telavoxText, "b.pdf": "Fakturanummer 9999999999"})
	ctx := context.Background()

	up, err := f.svc.Upload(ctx, pdf("a.pdf"))
	require.NoError(t, err)

	q, err := f.svc.Quote(ctx, QuoteRequest{InvoiceID: up.InvoiceID, ExtensionDays: 30})
	require.NoError(t, err)
	assert.Equal(t, "187.51", q.Fee.StringFixed(2))
	assert.Equal(t, "12688.01", q.TotalCost.StringFixed(2))
	assert.Equal(t, "2026-04-14", q.NewDueDate.Format(extraction.DateLayout))

	noAmount, err := f.svc.Upload(ctx, pdf("b.pdf"))
	require.NoError(t, err)
	q, err = f.svc.Quote(ctx, QuoteRequest{InvoiceID: noAmount.InvoiceID, ExtensionDays: 30})
	require.NoError(t, err)
	assert.True(t, q.IsZero())

	q, err = f.svc.Quote(ctx, QuoteRequest{
		Amount:        decimal.NewNullDecimal(decimal.RequireFromString("10000")),
		DueDate:       time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC),
		ExtensionDays: 45,
	})
	require.NoError(t, err)
	assert.Equal(t, "300.00", q.Fee.StringFixed(2))

	_, err = f.svc.Quote(ctx, QuoteRequest{ExtensionDays: 30})
	assert.ErrorIs(t, err, ErrInvalidQuoteRequest)

	_, err = f.svc.Quote(ctx, QuoteRequest{InvoiceID: up.InvoiceID, ExtensionDays: 7})
	assert.ErrorIs(t, err, financing.ErrInvalidExtension)

	_, err = f.svc.Quote(ctx, QuoteRequest{InvoiceID: uuid.New(), ExtensionDays: 30})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestSummarize(t *testing.T) {
	mk := func(supplier string, amount string, status models.Status, payout string) *models.InvoiceRecord {
		rec := models.NewInvoiceRecord(fixedNow)
		rec.Supplier = supplier
		if amount != "" {
			d := decimal.RequireFromString(amount)
			rec.Amount = &d
		}
		rec.Status = status
		if payout != "" {
			d := decimal.RequireFromString(payout)
			rec.PayoutAmount = &d
			rec.PayoutDate = &fixedNow
		}
		return rec
	}

	sum := Summarize([]*models.InvoiceRecord{
		mk("Telavox AB", "1000.00", models.StatusPending, ""),
		mk("Telavox AB", "2500.50", models.StatusPaid, "2500.50"),
		mk("Fortnox AB", "4000.00", models.StatusApproved, ""),
		mk("Fortnox AB", "", models.StatusPending, ""),
	})

	assert.Equal(t, 4, sum.InvoiceCount)
	assert.Equal(t, "7500.50", sum.TotalAmount.StringFixed(2))
	assert.Equal(t, 2, sum.PendingCount)
	assert.Equal(t, 1, sum.ApprovedCount)
	assert.Equal(t, 1, sum.PaidCount)
	assert.Equal(t, "2500.50", sum.TotalPaid.StringFixed(2))

	require.Len(t, sum.BySupplier, 2)
	assert.Equal(t, "Fortnox AB", sum.BySupplier[0].Supplier)
	assert.Equal(t, 2, sum.BySupplier[0].InvoiceCount)
	assert.Equal(t, "4000.00", sum.BySupplier[0].TotalAmount.StringFixed(2))
	assert.Equal(t, "Telavox AB", sum.BySupplier[1].Supplier)

	empty := Summarize(nil)
	assert.Zero(t, empty.InvoiceCount)
	assert.True(t, empty.TotalAmount.IsZero())
	assert.NotNil(t, empty.BySupplier)
}
