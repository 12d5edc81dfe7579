// Package invoice runs the buyer's invoice intake and lifecycle.
//
// Intake pipeline for one upload:
//   - OCR: the configured provider turns the file into text, bounded by the OCR timeout
//   - Extraction: Swedish heuristics resolve amount, due date, invoice number,
//     OCR number and bankgiro; the supplier is configured
//   - Storage: the original file is stored as <invoice number>-<file name>
//   - Persistence: the record is upserted on its invoice number
//
// A failure in any stage stops the pipeline and is returned as *ProcessingError.
// Failures after OCR carry the extraction result. Nothing is retried.
//
// The service also drives status changes (pending -> approved -> paid), the
// dashboard figures and FortusFlex quotes for stored invoices.
package invoice

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"buyerportal/internal/blob"
	"buyerportal/internal/extraction"
	"buyerportal/internal/financing"
	"buyerportal/internal/logger"
	"buyerportal/internal/ocr"
	"buyerportal/internal/store"
	"buyerportal/pkg/models"
)

// DefaultWorkers is the batch concurrency when none is configured.
const DefaultWorkers = 12

// Config holds the tunables of the service.
type Config struct {
	// OCRTimeout bounds each OCR call. Default: ocr.DefaultTimeout.
	OCRTimeout time.Duration

	// Workers is the number of uploads processed in parallel by ProcessBatch.
	Workers int

	// Clock returns the current time. Default: time.Now.
	Clock func() time.Time
}

// Service is the intake and lifecycle service. It is safe for concurrent use.
type Service struct {
	ocr        ocr.OCRService
	extractor  *extraction.Extractor
	store      store.InvoiceStore
	files      blob.FileStore
	calculator *financing.Calculator
	review     *ResultReview
	config     Config
	logger     zerolog.Logger
}

// NewService wires the service. files may be nil for read-only uses.
func NewService(
	ocrService ocr.OCRService,
	extractor *extraction.Extractor,
	invoices store.InvoiceStore,
	files blob.FileStore,
	calculator *financing.Calculator,
	config Config,
) *Service {
	if config.OCRTimeout <= 0 {
		config.OCRTimeout = ocr.DefaultTimeout
	}
	if config.Workers <= 0 {
		config.Workers = DefaultWorkers
	}
	if config.Clock == nil {
		config.Clock = time.Now
	}
	return &Service{
		ocr:        ocrService,
		extractor:  extractor,
		store:      invoices,
		files:      files,
		calculator: calculator,
		review:     NewResultReview(),
		config:     config,
		logger:     logger.WithComponent("invoice-service"),
	}
}

// Upload is one file submitted by the buyer.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadResult is the outcome of a successful intake.
type UploadResult struct {
	InvoiceID uuid.UUID         `json:"invoiceId"`
	Parsed    extraction.Fields `json:"parsed"`
	PDFURL    string            `json:"pdfUrl"`
	Success   bool              `json:"success"`
	Warnings  []string          `json:"warnings,omitempty"`

	Result  extraction.Result     `json:"-"`
	Invoice *models.InvoiceRecord `json:"-"`
}

// Recognize runs OCR and extraction without storing anything.
func (s *Service) Recognize(ctx context.Context, upload Upload) (extraction.Result, *ocr.OCRResult, error) {
	const op = "Recognize"

	if len(upload.Data) == 0 {
		return extraction.Result{}, nil, ErrNoFile
	}
	if s.ocr == nil {
		return extraction.Result{}, nil, NewProcessingError(op, StageOCR, ocr.ErrInvalidConfiguration, upload.Filename, nil)
	}

	ocrCtx, cancel := context.WithTimeout(ctx, s.config.OCRTimeout)
	defer cancel()

	doc := ocr.NewDocument(upload.Filename, upload.ContentType, upload.Data)
	text, err := s.ocr.Recognize(ocrCtx, doc)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("file", upload.Filename).
			Msg("OCR failed")
		return extraction.Result{}, nil, NewProcessingError(op, StageOCR, err, upload.Filename, nil)
	}

	result := s.extractor.Extract(text.Text)

	s.logger.Debug().
		Str("file", upload.Filename).
		Str("provider", text.Provider).
		Int("pages", text.PageCount).
		Int("chars", len(text.Text)).
		Strs("unresolved", fieldNames(result.Unresolved())).
		Msg("Invoice text extracted")

	return result, text, nil
}

// ExtractText runs extraction on text that was already recognized.
func (s *Service) ExtractText(text string) extraction.Result {
	return s.extractor.Extract(text)
}

// Upload runs the full intake pipeline for one file.
func (s *Service) Upload(ctx context.Context, upload Upload) (*UploadResult, error) {
	const op = "Upload"

	result, _, err := s.Recognize(ctx, upload)
	if err != nil {
		if pe, ok := err.(*ProcessingError); ok {
			pe.Op = op
		}
		return nil, err
	}

	now := s.config.Clock()
	outcome := s.review.Check(result, now)

	if s.files == nil {
		return nil, NewProcessingError(op, StageStorage, errors.New("no file store configured"), upload.Filename, &result)
	}
	number, _ := result.InvoiceNumber().Value()
	objectName := blob.ObjectName(number, upload.Filename, now)
	fileURL, err := s.files.Put(ctx, objectName, upload.Data, upload.ContentType)
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("file", upload.Filename).
			Str("object", objectName).
			Msg("Failed to store invoice file")
		return nil, NewProcessingError(op, StageStorage, err, upload.Filename, &result)
	}

	stored, err := s.store.Upsert(ctx, recordFromResult(result, fileURL, now))
	if err != nil {
		s.logger.Error().
			Err(err).
			Str("file", upload.Filename).
			Str("invoice_number", result.InvoiceNumber().String()).
			Msg("Failed to save invoice")
		return nil, NewProcessingError(op, StagePersistence, err, upload.Filename, &result)
	}

	s.logger.Info().
		Str("id", stored.ID.String()).
		Str("invoice_number", result.InvoiceNumber().String()).
		Str("amount", result.Amount().String()).
		Str("status", string(stored.Status)).
		Int("warnings", len(outcome.Warnings)).
		Msg("Invoice uploaded")

	return &UploadResult{
		InvoiceID: stored.ID,
		Parsed:    result.Fields(),
		PDFURL:    fileURL,
		Success:   true,
		Warnings:  outcome.Warnings,
		Result:    result,
		Invoice:   stored,
	}, nil
}

// recordFromResult maps an extraction result to a new pending record.
func recordFromResult(res extraction.Result, fileURL string, now time.Time) *models.InvoiceRecord {
	rec := models.NewInvoiceRecord(now)
	rec.InvoiceNumber = res.InvoiceNumber().Ptr()
	rec.Supplier, _ = res.Supplier().Value()
	if amount := res.AmountDecimal(); amount.Valid {
		rec.Amount = &amount.Decimal
	}
	if due := res.DueDateTime(); !due.IsZero() {
		rec.DueDate = &due
	}
	rec.OCRNumber = res.OCRNumber().Ptr()
	rec.Bankgiro = res.Bankgiro().Ptr()
	rec.FileURL = fileURL
	return rec
}

// BatchResult is the outcome of one file in a batch.
type BatchResult struct {
	Filename string
	Index    int // Original order index
	Result   extraction.Result
	Upload   *UploadResult // set when the batch saves
	Error    error
}

// BatchOptions controls ProcessBatch.
type BatchOptions struct {
	// Save runs the full intake pipeline; otherwise only OCR and extraction.
	Save bool

	// Workers overrides the configured concurrency when positive.
	Workers int

	// Progress is called after each file with the number of finished files.
	// Calls are serialized.
	Progress func(done, total int, result BatchResult)
}

// ProcessBatch processes uploads with a worker pool. Results keep input order.
func (s *Service) ProcessBatch(ctx context.Context, uploads []Upload, opts BatchOptions) []BatchResult {
	numWorkers := opts.Workers
	if numWorkers <= 0 {
		numWorkers = s.config.Workers
	}
	if numWorkers > len(uploads) {
		numWorkers = len(uploads)
	}

	type job struct {
		upload Upload
		index  int
	}
	jobs := make(chan job, len(uploads))
	results := make([]BatchResult, len(uploads))

	var processedCount int
	var mu sync.Mutex

	var wg sync.WaitGroup
	for w := 0; w < numWorkers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for j := range jobs {
				s.logger.Debug().
					Int("worker", workerID).
					Str("file", j.upload.Filename).
					Int("index", j.index+1).
					Msg("Worker processing invoice")

				result := BatchResult{Filename: j.upload.Filename, Index: j.index}
				if err := ctx.Err(); err != nil {
					result.Error = err
				} else if opts.Save {
					result.Upload, result.Error = s.Upload(ctx, j.upload)
					if result.Upload != nil {
						result.Result = result.Upload.Result
					}
				} else {
					result.Result, _, result.Error = s.Recognize(ctx, j.upload)
				}

				// Store result in correct position
				results[j.index] = result

				mu.Lock()
				processedCount++
				if opts.Progress != nil {
					opts.Progress(processedCount, len(uploads), result)
				}
				mu.Unlock()
			}
		}(w)
	}

	for i, upload := range uploads {
		jobs <- job{upload: upload, index: i}
	}
	close(jobs)

	wg.Wait()

	return results
}

// List returns stored invoices, newest first.
func (s *Service) List(ctx context.Context, filter store.Filter) ([]*models.InvoiceRecord, error) {
	return s.store.List(ctx, filter)
}

// Get returns one stored invoice.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.InvoiceRecord, error) {
	return s.store.Get(ctx, id)
}

// Delete removes a stored invoice.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("id", id.String()).Msg("Invoice deleted")
	return nil
}

// Approve moves a pending invoice to approved.
func (s *Service) Approve(ctx context.Context, id uuid.UUID) (*models.InvoiceRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	from := rec.Status
	if err := rec.Approve(s.config.Clock()); err != nil {
		return nil, err
	}
	if err := s.store.UpdateStatus(ctx, rec, from); err != nil {
		return nil, err
	}

	s.logger.Info().Str("id", id.String()).Msg("Invoice approved")
	return rec, nil
}

// MarkPaid moves an approved invoice to paid with its payout.
func (s *Service) MarkPaid(ctx context.Context, id uuid.UUID, payoutDate time.Time, payoutAmount decimal.Decimal) (*models.InvoiceRecord, error) {
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.markPaid(ctx, rec, payoutDate, payoutAmount)
}

// RecordPayout marks the invoice with invoiceNumber paid. An invoice that is
// already paid is left as is and reported as unchanged.
func (s *Service) RecordPayout(ctx context.Context, invoiceNumber string, payoutDate time.Time, payoutAmount decimal.Decimal) (bool, error) {
	rec, err := s.store.GetByNumber(ctx, invoiceNumber)
	if err != nil {
		return false, err
	}
	if rec.Status == models.StatusPaid {
		return false, nil
	}
	if _, err := s.markPaid(ctx, rec, payoutDate, payoutAmount); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Service) markPaid(ctx context.Context, rec *models.InvoiceRecord, payoutDate time.Time, payoutAmount decimal.Decimal) (*models.InvoiceRecord, error) {
	from := rec.Status
	if err := rec.MarkPaid(payoutDate, payoutAmount, s.config.Clock()); err != nil {
		return nil, err
	}
	if err := s.store.UpdateStatus(ctx, rec, from); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("id", rec.ID.String()).
		Str("payout_date", payoutDate.Format(extraction.DateLayout)).
		Str("payout_amount", payoutAmount.StringFixed(2)).
		Msg("Invoice paid out")
	return rec, nil
}

// QuoteRequest asks for a FortusFlex quote on a stored invoice or on a given amount.
type QuoteRequest struct {
	InvoiceID     uuid.UUID
	Amount        decimal.NullDecimal
	DueDate       time.Time
	ExtensionDays int
}

// Quote prices a payment extension.
func (s *Service) Quote(ctx context.Context, req QuoteRequest) (financing.Quote, error) {
	amount, dueDate := req.Amount, req.DueDate

	if req.InvoiceID != uuid.Nil {
		rec, err := s.store.Get(ctx, req.InvoiceID)
		if err != nil {
			return financing.Quote{}, err
		}
		amount = decimal.NullDecimal{}
		if rec.Amount != nil {
			amount = decimal.NewNullDecimal(*rec.Amount)
		}
		dueDate = time.Time{}
		if rec.DueDate != nil {
			dueDate = *rec.DueDate
		}
	} else if !amount.Valid {
		return financing.Quote{}, ErrInvalidQuoteRequest
	}

	return s.calculator.Quote(amount, dueDate, req.ExtensionDays)
}

// FinancingOptions returns the active pricing.
func (s *Service) FinancingOptions() financing.Config {
	return s.calculator.Config()
}

// SupplierSpend is the invoiced total of one supplier.
type SupplierSpend struct {
	Supplier     string          `json:"supplier"`
	InvoiceCount int             `json:"invoiceCount"`
	TotalAmount  decimal.Decimal `json:"totalAmount"`
}

// Summary holds the dashboard figures.
type Summary struct {
	InvoiceCount  int             `json:"invoiceCount"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	PendingCount  int             `json:"pendingCount"`
	ApprovedCount int             `json:"approvedCount"`
	PaidCount     int             `json:"paidCount"`
	TotalPaid     decimal.Decimal `json:"totalPaid"`
	BySupplier    []SupplierSpend `json:"bySupplier"`
}

// Summary computes the dashboard figures over all stored invoices.
func (s *Service) Summary(ctx context.Context) (Summary, error) {
	records, err := s.store.List(ctx, store.Filter{})
	if err != nil {
		return Summary{}, fmt.Errorf("failed to list invoices: %w", err)
	}
	return Summarize(records), nil
}

// Summarize computes the dashboard figures over records. Unknown amounts count as zero.
func Summarize(records []*models.InvoiceRecord) Summary {
	sum := Summary{
		TotalAmount: decimal.Zero,
		TotalPaid:   decimal.Zero,
		BySupplier:  []SupplierSpend{},
	}
	bySupplier := make(map[string]*SupplierSpend)

	for _, rec := range records {
		sum.InvoiceCount++

		amount := decimal.Zero
		if rec.Amount != nil {
			amount = *rec.Amount
		}
		sum.TotalAmount = sum.TotalAmount.Add(amount)

		switch rec.Status {
		case models.StatusPending:
			sum.PendingCount++
		case models.StatusApproved:
			sum.ApprovedCount++
		case models.StatusPaid:
			sum.PaidCount++
			if rec.PayoutAmount != nil {
				sum.TotalPaid = sum.TotalPaid.Add(*rec.PayoutAmount)
			}
		}

		spend, ok := bySupplier[rec.Supplier]
		if !ok {
			spend = &SupplierSpend{Supplier: rec.Supplier, TotalAmount: decimal.Zero}
			bySupplier[rec.Supplier] = spend
		}
		spend.InvoiceCount++
		spend.TotalAmount = spend.TotalAmount.Add(amount)
	}

	for _, spend := range bySupplier {
		sum.BySupplier = append(sum.BySupplier, *spend)
	}
	sort.Slice(sum.BySupplier, func(i, j int) bool {
		a, b := sum.BySupplier[i], sum.BySupplier[j]
		if c := a.TotalAmount.Cmp(b.TotalAmount); c != 0 {
			return c > 0
		}
		return a.Supplier < b.Supplier
	})

	return sum
}

func fieldNames(names []extraction.FieldName) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = string(n)
	}
	return out
}
