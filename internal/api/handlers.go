package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"buyerportal/internal/extraction"
	"buyerportal/internal/financing"
	"buyerportal/internal/invoice"
	"buyerportal/internal/logger"
	"buyerportal/internal/ocr"
	"buyerportal/internal/report"
	"buyerportal/internal/store"
	"buyerportal/pkg/models"
)

// GenericFailureMessage is returned when a failure has no message of its own.
const GenericFailureMessage = "Något gick fel"

// Handler serves the portal endpoints.
type Handler struct {
	svc    *invoice.Service
	logger zerolog.Logger
}

// NewHandler creates a handler backed by svc.
func NewHandler(svc *invoice.Service) *Handler {
	return &Handler{
		svc:    svc,
		logger: logger.WithComponent("api"),
	}
}

// Health reports liveness.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "ok"})
}

// UploadInvoices takes one file in "file" or several in "files".
func (h *Handler) UploadInvoices(c *fiber.Ctx) error {
	form, err := c.MultipartForm()
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, invoice.MissingFileMessage)
	}

	if headers := form.File["files"]; len(headers) > 0 {
		return h.uploadBatch(c, append(form.File["file"], headers...))
	}

	headers := form.File["file"]
	if len(headers) == 0 {
		return fiber.NewError(fiber.StatusBadRequest, invoice.MissingFileMessage)
	}

	upload, err := readUpload(headers[0])
	if err != nil {
		return err
	}

	result, err := h.svc.Upload(c.UserContext(), upload)
	if err != nil {
		return uploadError(c, err)
	}
	return c.JSON(result)
}

func (h *Handler) uploadBatch(c *fiber.Ctx, headers []*multipart.FileHeader) error {
	uploads := make([]invoice.Upload, 0, len(headers))
	for _, fh := range headers {
		upload, err := readUpload(fh)
		if err != nil {
			return err
		}
		uploads = append(uploads, upload)
	}

	results := h.svc.ProcessBatch(c.UserContext(), uploads, invoice.BatchOptions{Save: true})

	items := make([]UploadItem, len(results))
	failed := 0
	for i, r := range results {
		item := UploadItem{Filename: r.Filename}
		switch {
		case r.Error != nil:
			failed++
			item.Error = failureMessage(r.Error)
			if parsed, ok := invoice.ParsedOf(r.Error); ok {
				fields := parsed.Fields()
				item.Parsed = &fields
			}
		case r.Upload != nil:
			item.Success = true
			item.InvoiceID = &r.Upload.InvoiceID
			item.Parsed = &r.Upload.Parsed
			item.PDFURL = r.Upload.PDFURL
			item.Warnings = r.Upload.Warnings
		}
		items[i] = item
	}

	h.logger.Info().
		Int("files", len(items)).
		Int("failed", failed).
		Msg("Batch upload processed")

	return c.JSON(fiber.Map{
		"results":   items,
		"succeeded": len(items) - failed,
		"failed":    failed,
	})
}

func readUpload(fh *multipart.FileHeader) (invoice.Upload, error) {
	src, err := fh.Open()
	if err != nil {
		return invoice.Upload{}, fiber.NewError(fiber.StatusBadRequest, "failed to open file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return invoice.Upload{}, fiber.NewError(fiber.StatusBadRequest, "failed to read file")
	}
	if len(data) == 0 {
		return invoice.Upload{}, fiber.NewError(fiber.StatusBadRequest, invoice.MissingFileMessage)
	}

	return invoice.Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get(fiber.HeaderContentType),
		Data:        data,
	}, nil
}

// uploadError answers a failed intake. Failures after OCR include the parsed fields.
func uploadError(c *fiber.Ctx, err error) error {
	body := fiber.Map{
		"error":   failureMessage(err),
		"success": false,
	}
	if parsed, ok := invoice.ParsedOf(err); ok {
		body["parsed"] = parsed.Fields()
	}

	code := statusFor(err)
	if code >= fiber.StatusInternalServerError {
		log := requestLog(c)
		log.Error().Err(err).Int("status", code).Msg("Invoice upload failed")
	}
	return c.Status(code).JSON(body)
}

// failureMessage is the one line shown for a failed intake.
func failureMessage(err error) string {
	var pe *invoice.ProcessingError
	switch {
	case errors.Is(err, invoice.ErrNoFile):
		return invoice.MissingFileMessage
	case invoice.StageOf(err) == invoice.StageOCR:
		return ocr.UserMessage(err)
	case errors.As(err, &pe) && pe.Err != nil:
		return pe.Err.Error()
	case err != nil && err.Error() != "":
		return err.Error()
	default:
		return GenericFailureMessage
	}
}

// Extract runs the field heuristics on posted text.
func (h *Handler) Extract(c *fiber.Ctx) error {
	var req ExtractRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	}
	return c.JSON(h.svc.ExtractText(req.Text).Fields())
}

// ListInvoices lists stored invoices, optionally filtered by ?search= and ?status=.
func (h *Handler) ListInvoices(c *fiber.Ctx) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}

	records, err := h.svc.List(c.UserContext(), filter)
	if err != nil {
		return err
	}
	return c.JSON(toInvoiceResponses(records))
}

func parseFilter(c *fiber.Ctx) (store.Filter, error) {
	filter := store.Filter{Search: strings.TrimSpace(c.Query("search"))}
	if s := c.Query("status"); s != "" {
		status, err := models.ParseStatus(s)
		if err != nil {
			return store.Filter{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		filter.Status = status
	}
	return filter, nil
}

// GetInvoice returns one stored invoice.
func (h *Handler) GetInvoice(c *fiber.Ctx) error {
	id, err := invoiceID(c)
	if err != nil {
		return err
	}

	rec, err := h.svc.Get(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(toInvoiceResponse(rec))
}

// DeleteInvoice removes a stored invoice.
func (h *Handler) DeleteInvoice(c *fiber.Ctx) error {
	id, err := invoiceID(c)
	if err != nil {
		return err
	}

	if err := h.svc.Delete(c.UserContext(), id); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ApproveInvoice moves a pending invoice to approved.
func (h *Handler) ApproveInvoice(c *fiber.Ctx) error {
	id, err := invoiceID(c)
	if err != nil {
		return err
	}

	rec, err := h.svc.Approve(c.UserContext(), id)
	if err != nil {
		return err
	}
	return c.JSON(toInvoiceResponse(rec))
}

// PayInvoice marks an approved invoice paid.
func (h *Handler) PayInvoice(c *fiber.Ctx) error {
	id, err := invoiceID(c)
	if err != nil {
		return err
	}

	var req PayRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	payoutDate, err := time.Parse(extraction.DateLayout, req.PayoutDate)
	if err != nil {
		return fmt.Errorf("%w: payoutDate must be YYYY-MM-DD", invoice.ErrInvalidPayout)
	}
	if req.PayoutAmount == nil {
		return fmt.Errorf("%w: payoutAmount is required", invoice.ErrInvalidPayout)
	}

	rec, err := h.svc.MarkPaid(c.UserContext(), id, payoutDate, *req.PayoutAmount)
	if err != nil {
		return err
	}
	return c.JSON(toInvoiceResponse(rec))
}

// ExportCSV downloads all stored invoices as CSV.
func (h *Handler) ExportCSV(c *fiber.Ctx) error {
	return h.export(c, report.ContentTypeCSV, "fakturor.csv", report.WriteCSV)
}

// ExportXLSX downloads all stored invoices as an Excel workbook.
func (h *Handler) ExportXLSX(c *fiber.Ctx) error {
	return h.export(c, report.ContentTypeXLSX, "fakturor.xlsx", report.WriteXLSX)
}

func (h *Handler) export(c *fiber.Ctx, contentType, filename string, write func(io.Writer, []*models.InvoiceRecord) error) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}

	records, err := h.svc.List(c.UserContext(), filter)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := write(&buf, records); err != nil {
		return fmt.Errorf("failed to render export: %w", err)
	}

	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf(`attachment; filename="%s"`, filename))
	return c.Send(buf.Bytes())
}

// Summary returns the dashboard figures.
func (h *Handler) Summary(c *fiber.Ctx) error {
	summary, err := h.svc.Summary(c.UserContext())
	if err != nil {
		return err
	}
	return c.JSON(summary)
}

// FinancingOptions returns the active pricing.
func (h *Handler) FinancingOptions(c *fiber.Ctx) error {
	return c.JSON(toOptionsResponse(h.svc.FinancingOptions()))
}

// Quote prices an extension for a stored invoice or a given amount.
func (h *Handler) Quote(c *fiber.Ctx) error {
	var req QuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	quoteReq := invoice.QuoteRequest{ExtensionDays: req.ExtensionDays}
	if req.InvoiceID != "" {
		id, err := uuid.Parse(req.InvoiceID)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "invalid invoice id")
		}
		quoteReq.InvoiceID = id
	}
	if req.Amount != nil {
		quoteReq.Amount = decimal.NewNullDecimal(*req.Amount)
	}
	if req.DueDate != "" {
		due, err := time.Parse(extraction.DateLayout, req.DueDate)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "dueDate must be YYYY-MM-DD")
		}
		quoteReq.DueDate = due
	}

	quote, err := h.svc.Quote(c.UserContext(), quoteReq)
	if err != nil {
		return err
	}
	return c.JSON(toQuoteResponse(quote))
}

func invoiceID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.NewError(fiber.StatusBadRequest, "invalid invoice id")
	}
	return id, nil
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch invoice.StageOf(err) {
	case invoice.StageOCR:
		return fiber.StatusBadGateway
	case invoice.StageStorage, invoice.StagePersistence:
		return fiber.StatusInternalServerError
	}

	switch {
	case errors.Is(err, store.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrInvalidTransition):
		return fiber.StatusConflict
	case errors.Is(err, invoice.ErrNoFile),
		errors.Is(err, invoice.ErrInvalidQuoteRequest),
		errors.Is(err, invoice.ErrInvalidPayout),
		errors.Is(err, financing.ErrInvalidExtension),
		errors.Is(err, models.ErrInvalidRecord),
		errors.Is(err, models.ErrInvalidStatus):
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}
