package ocr

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"buyerportal/internal/logger"
)

// DefaultOCRSpaceURL is the public OCR.space parse endpoint.
const DefaultOCRSpaceURL = "https://api.ocr.space/parse/image"

// maxErrorBodyBytes caps how much of a failed response is kept for logging.
const maxErrorBodyBytes = 2048

// OCRSpaceConfig configures the OCR.space provider.
type OCRSpaceConfig struct {
	APIKey string
	URL    string

	// Language is the OCR.space language code ("swe" for Swedish invoices).
	Language string

	// Engine is the OCR.space engine number. Engine 2 handles numbers and layouts better.
	Engine int

	Timeout time.Duration
}

// DefaultOCRSpaceConfig returns the configuration used for Swedish invoices.
func DefaultOCRSpaceConfig() OCRSpaceConfig {
	return OCRSpaceConfig{
		URL:      DefaultOCRSpaceURL,
		Language: "swe",
		Engine:   2,
		Timeout:  DefaultTimeout,
	}
}

// OCRSpaceService implements OCRService using the OCR.space HTTP API.
type OCRSpaceService struct {
	cfg    OCRSpaceConfig
	client *http.Client
	log    zerolog.Logger
}

// NewOCRSpaceService creates an OCR.space client.
func NewOCRSpaceService(cfg OCRSpaceConfig) (*OCRSpaceService, error) {
	return NewOCRSpaceServiceWithClient(cfg, &http.Client{Timeout: cfg.Timeout})
}

// NewOCRSpaceServiceWithClient creates an OCR.space client with an explicit HTTP client (for testing).
func NewOCRSpaceServiceWithClient(cfg OCRSpaceConfig, client *http.Client) (*OCRSpaceService, error) {
	const op = "NewOCRSpaceService"

	if cfg.APIKey == "" {
		return nil, NewOCRError(op, ErrMissingAPIKey, "")
	}

	defaults := DefaultOCRSpaceConfig()
	if cfg.URL == "" {
		cfg.URL = defaults.URL
	}
	if cfg.Language == "" {
		cfg.Language = defaults.Language
	}
	if cfg.Engine == 0 {
		cfg.Engine = defaults.Engine
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}

	return &OCRSpaceService{
		cfg:    cfg,
		client: client,
		log:    logger.WithComponent("ocrspace"),
	}, nil
}

// ocrSpaceResponse is the subset of the OCR.space response the portal reads.
type ocrSpaceResponse struct {
	ParsedResults []struct {
		ParsedText        string `json:"ParsedText"`
		FileParseExitCode int    `json:"FileParseExitCode"`
		ErrorMessage      string `json:"ErrorMessage"`
	} `json:"ParsedResults"`
	OCRExitCode           int             `json:"OCRExitCode"`
	IsErroredOnProcessing bool            `json:"IsErroredOnProcessing"`
	ErrorMessage          json.RawMessage `json:"ErrorMessage"`
}

// errorMessages reads ErrorMessage, which OCR.space sends as a string or a list.
func (r *ocrSpaceResponse) errorMessages() []string {
	if len(r.ErrorMessage) == 0 || string(r.ErrorMessage) == "null" {
		return nil
	}
	var list []string
	if err := json.Unmarshal(r.ErrorMessage, &list); err == nil {
		return list
	}
	var single string
	if err := json.Unmarshal(r.ErrorMessage, &single); err == nil && single != "" {
		return []string{single}
	}
	return nil
}

// Recognize sends the document to OCR.space and joins the text of all parsed pages.
func (s *OCRSpaceService) Recognize(ctx context.Context, doc Document) (*OCRResult, error) {
	const op = "Recognize"
	startTime := time.Now()
	reqID := uuid.NewString()

	if len(doc.Data) == 0 {
		return nil, NewOCRError(op, ErrEmptyFile, "")
	}
	if len(doc.Data) > MaxFileSizeBytes {
		return nil, NewOCRError(op, ErrFileTooLarge, fmt.Sprintf("file size: %d bytes", len(doc.Data)))
	}

	body, contentType, err := s.buildForm(doc)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to build request")
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.URL, body)
	if err != nil {
		return nil, WrapOCRError(op, err, "failed to build request")
	}
	req.Header.Set("Content-Type", contentType)

	s.log.Debug().
		Str("req_id", reqID).
		Str("file", doc.Name).
		Int("bytes", len(doc.Data)).
		Msg("Sending document to OCR.space")

	resp, err := s.client.Do(req)
	if err != nil {
		s.log.Error().Err(err).Str("req_id", reqID).Dur("elapsed", time.Since(startTime)).Msg("OCR.space request failed")
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, NewOCRError(op, context.DeadlineExceeded, "")
		}
		return nil, NewOCRError(op, ErrOCRFailed, "")
	}
	defer func() {
		if closeErr := resp.Body.Close(); closeErr != nil {
			s.log.Warn().Err(closeErr).Msg("Failed to close OCR.space response body")
		}
	}()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		s.log.Error().Err(err).Str("req_id", reqID).Msg("Failed to read OCR.space response")
		return nil, NewOCRError(op, fmt.Errorf("%w: read response: %v", ErrOCRFailed, err), "")
	}

	s.log.Debug().
		Str("req_id", reqID).
		Int("status", resp.StatusCode).
		Int("bytes", len(raw)).
		Dur("elapsed", time.Since(startTime)).
		Msg("OCR.space response received")

	if resp.StatusCode == http.StatusForbidden || resp.StatusCode == http.StatusTooManyRequests {
		return nil, NewOCRError(op, ErrQuotaExceeded, "")
	}
	if resp.StatusCode/100 != 2 {
		s.log.Error().
			Str("req_id", reqID).
			Int("status", resp.StatusCode).
			Str("body", truncate(string(raw), maxErrorBodyBytes)).
			Msg("OCR.space returned non-2xx status")
		return nil, NewOCRError(op, fmt.Errorf("%w: status %d", ErrOCRFailed, resp.StatusCode), "")
	}

	var parsed ocrSpaceResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, NewOCRError(op, fmt.Errorf("%w: decode response: %v", ErrOCRFailed, err), "")
	}

	// A response without parsed pages carries no text to extract from.
	if parsed.IsErroredOnProcessing || len(parsed.ParsedResults) == 0 {
		return nil, NewOCRError(op, ErrOCRFailed, strings.Join(parsed.errorMessages(), " "))
	}

	texts := make([]string, 0, len(parsed.ParsedResults))
	for _, page := range parsed.ParsedResults {
		texts = append(texts, page.ParsedText)
	}

	processedAt := time.Now()
	return &OCRResult{
		Text:               strings.Join(texts, "\n"),
		Provider:           ProviderOCRSpace,
		PageCount:          len(parsed.ParsedResults),
		ProcessedAt:        processedAt,
		ProcessingDuration: processedAt.Sub(startTime),
	}, nil
}

// buildForm writes the multipart body expected by the parse endpoint.
func (s *OCRSpaceService) buildForm(doc Document) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	name := doc.Name
	if name == "" {
		name = "invoice"
	}

	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, name))
	if doc.ContentType != "" {
		header.Set("Content-Type", doc.ContentType)
	}
	part, err := w.CreatePart(header)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(doc.Data); err != nil {
		return nil, "", err
	}

	fields := map[string]string{
		"apikey":    s.cfg.APIKey,
		"language":  s.cfg.Language,
		"OCREngine": strconv.Itoa(s.cfg.Engine),
	}
	if doc.IsPDF() {
		fields["filetype"] = "PDF"
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
