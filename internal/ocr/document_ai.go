package ocr

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	documentai "cloud.google.com/go/documentai/apiv1"
	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/rs/zerolog"
	"google.golang.org/api/option"

	"buyerportal/internal/logger"
)

// DocumentAIConfig holds configuration for the Document AI OCR processor.
type DocumentAIConfig struct {
	// ProjectID is the Google Cloud project ID where Document AI is enabled.
	ProjectID string

	// Location is the processing location ("us" or "eu").
	// Should match where your Document AI processor is created.
	Location string

	// ProcessorID is the ID of a Document OCR processor.
	ProcessorID string

	// ProcessorVersion pins a processor version. Empty uses the default version.
	ProcessorVersion string

	Credentials GoogleCredentials
}

// ProcessorName returns the full resource name used in process requests.
func (c DocumentAIConfig) ProcessorName() string {
	name := fmt.Sprintf("projects/%s/locations/%s/processors/%s", c.ProjectID, c.Location, c.ProcessorID)
	if c.ProcessorVersion != "" {
		name += "/processorVersions/" + c.ProcessorVersion
	}
	return name
}

// DocumentAIService implements OCRService with a Document AI OCR processor.
type DocumentAIService struct {
	client *documentai.DocumentProcessorClient
	config DocumentAIConfig
	log    zerolog.Logger
}

// NewDocumentAIService creates a Document AI client on the regional endpoint of the processor.
func NewDocumentAIService(ctx context.Context, config DocumentAIConfig) (*DocumentAIService, error) {
	const op = "NewDocumentAIService"

	if config.ProjectID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "GOOGLE_CLOUD_PROJECT is required")
	}
	if config.ProcessorID == "" {
		return nil, WrapOCRError(op, ErrInvalidConfiguration, "DOCUMENT_AI_PROCESSOR_ID is required")
	}
	if config.Location == "" {
		config.Location = "us"
	}

	clientOptions := []option.ClientOption{
		option.WithEndpoint(fmt.Sprintf("%s-documentai.googleapis.com:443", config.Location)),
	}
	clientOptions = append(clientOptions, config.Credentials.ClientOptions()...)

	client, err := documentai.NewDocumentProcessorClient(ctx, clientOptions...)
	if err != nil {
		if !config.Credentials.IsSet() {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, fmt.Sprintf("failed to create Document AI client for location: %s", config.Location))
	}

	return NewDocumentAIServiceWithClient(config, client), nil
}

// NewDocumentAIServiceWithClient creates the service with an explicit client (for testing).
func NewDocumentAIServiceWithClient(config DocumentAIConfig, client *documentai.DocumentProcessorClient) *DocumentAIService {
	return &DocumentAIService{
		client: client,
		config: config,
		log:    logger.WithComponent("document-ai"),
	}
}

// Recognize sends the raw document to the OCR processor and returns its full text.
func (p *DocumentAIService) Recognize(ctx context.Context, doc Document) (*OCRResult, error) {
	const op = "Recognize"
	startTime := time.Now()

	if len(doc.Data) == 0 {
		return nil, NewOCRError(op, ErrEmptyFile, "")
	}
	if len(doc.Data) > MaxFileSizeBytes {
		return nil, NewOCRError(op, ErrFileTooLarge, fmt.Sprintf("file size: %d bytes", len(doc.Data)))
	}

	mimeType := doc.ContentType
	if doc.IsPDF() {
		mimeType = ContentTypePDF
	}

	req := &documentaipb.ProcessRequest{
		Name: p.config.ProcessorName(),
		Source: &documentaipb.ProcessRequest_RawDocument{
			RawDocument: &documentaipb.RawDocument{
				Content:  doc.Data,
				MimeType: mimeType,
			},
		},
	}

	resp, err := p.client.ProcessDocument(ctx, req)
	if err != nil {
		return nil, p.handleProcessingError(op, err)
	}
	if resp.Document == nil {
		return nil, NewOCRError(op, ErrOCRFailed, "no document in response")
	}

	processedAt := time.Now()
	result := &OCRResult{
		Text:               resp.Document.Text,
		Provider:           ProviderDocumentAI,
		PageCount:          len(resp.Document.Pages),
		Confidence:         averagePageConfidence(resp.Document.Pages),
		ProcessedAt:        processedAt,
		ProcessingDuration: processedAt.Sub(startTime),
	}

	p.log.Debug().
		Str("file", doc.Name).
		Str("processor", p.config.ProcessorID).
		Int("pages", result.PageCount).
		Dur("duration", result.ProcessingDuration).
		Msg("Document AI OCR completed")

	return result, nil
}

// averagePageConfidence averages the layout confidence of all pages.
func averagePageConfidence(pages []*documentaipb.Document_Page) float32 {
	var sum float32
	var n int
	for _, page := range pages {
		if page.Layout != nil && page.Layout.Confidence > 0 {
			sum += page.Layout.Confidence
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float32(n)
}

// handleProcessingError converts Document AI errors to OCR errors.
func (p *DocumentAIService) handleProcessingError(op string, err error) error {
	errStr := err.Error()

	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(errStr, "DeadlineExceeded"):
		return NewOCRError(op, context.DeadlineExceeded, "processing timeout")
	case errors.Is(err, context.Canceled) || strings.Contains(errStr, "Canceled"):
		return NewOCRError(op, context.Canceled, "processing canceled")
	case strings.Contains(errStr, "PERMISSION_DENIED") || strings.Contains(errStr, "PermissionDenied"):
		return NewOCRError(op, ErrMissingCredentials, "insufficient permissions for Document AI")
	case strings.Contains(errStr, "QUOTA_EXCEEDED") || strings.Contains(errStr, "ResourceExhausted"):
		return NewOCRError(op, ErrQuotaExceeded, "Document AI API quota exceeded")
	case strings.Contains(errStr, "NOT_FOUND") || strings.Contains(errStr, "NotFound"):
		return NewOCRError(op, ErrInvalidConfiguration, fmt.Sprintf("processor not found: %s", p.config.ProcessorID))
	case strings.Contains(errStr, "INVALID_ARGUMENT") || strings.Contains(errStr, "InvalidArgument"):
		return NewOCRError(op, ErrUnsupportedFormat, "document format not supported or corrupted")
	default:
		return NewOCRError(op, ErrOCRFailed, fmt.Sprintf("Document AI call failed: %v", err))
	}
}

// Close closes the underlying Document AI client.
func (p *DocumentAIService) Close() error {
	if p.client != nil {
		return p.client.Close()
	}
	return nil
}
