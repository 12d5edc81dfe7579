// Package ocr is the port to external OCR engines that turn uploaded invoice
// files (PDF or image) into raw text.
//
// Providers:
//   - ocrspace: OCR.space HTTP API (default). Swedish language model, engine 2.
//   - vision: Google Cloud Vision document text detection.
//   - documentai: Google Document AI OCR processor.
//
// Providers are constructed from explicit configuration; nothing in this
// package reads the environment. Every call is a single attempt bounded by the
// caller's context. Failures are returned as *OCRError whose Details carry
// the provider's own message.
//
// Google credentials are resolved in this order:
//   - GoogleCredentials.JSON: inline service account JSON
//   - GoogleCredentials.File: path to a service account JSON file
//   - Application Default Credentials
package ocr

import (
	"bytes"
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"google.golang.org/api/option"
)

const (
	// MaxFileSizeBytes is the largest document accepted by any provider (20MB).
	MaxFileSizeBytes = 20 * 1024 * 1024

	// DefaultTimeout bounds a single OCR call.
	DefaultTimeout = 120 * time.Second

	ContentTypePDF = "application/pdf"
)

// Provider names accepted by configuration.
const (
	ProviderOCRSpace   = "ocrspace"
	ProviderVision     = "vision"
	ProviderDocumentAI = "documentai"
)

// OCRService defines the interface for OCR text extraction services.
type OCRService interface {
	// Recognize returns the raw text of the document in reading order.
	// An empty text is a valid result.
	Recognize(ctx context.Context, doc Document) (*OCRResult, error)
}

// Document is a file submitted for OCR.
type Document struct {
	Name        string
	ContentType string
	Data        []byte
}

// NewDocument builds a document and fills in the content type when it is missing.
func NewDocument(name, contentType string, data []byte) Document {
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = DetectContentType(name, data)
	}
	return Document{Name: name, ContentType: contentType, Data: data}
}

// IsPDF reports whether the document is a PDF.
func (d Document) IsPDF() bool {
	return d.ContentType == ContentTypePDF || bytes.HasPrefix(d.Data, []byte("%PDF"))
}

// DetectContentType sniffs the content type from the data, then the file extension.
func DetectContentType(name string, data []byte) string {
	if bytes.HasPrefix(data, []byte("%PDF")) {
		return ContentTypePDF
	}
	if ct := http.DetectContentType(data); ct != "application/octet-stream" && !strings.HasPrefix(ct, "text/plain") {
		return ct
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return ContentTypePDF
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	}
	return "application/octet-stream"
}

// OCRResult contains the results of OCR processing with metadata.
type OCRResult struct {
	// Text is the extracted text content from all pages, concatenated in reading order.
	Text string `json:"text"`

	// Provider is the engine that produced the text.
	Provider string `json:"provider"`

	// PageCount is the number of pages that were processed.
	PageCount int `json:"page_count"`

	// Confidence is the average confidence score across all detected text (0.0 to 1.0).
	// Zero when the provider does not report confidence.
	Confidence float32 `json:"confidence"`

	// ProcessedAt is the timestamp when the OCR processing completed.
	ProcessedAt time.Time `json:"processed_at"`

	// LanguageCodes contains the detected languages in the document.
	LanguageCodes []string `json:"language_codes,omitempty"`

	// ProcessingDuration is how long the OCR processing took.
	ProcessingDuration time.Duration `json:"processing_duration"`
}

// GoogleCredentials selects the credentials for Google Cloud clients.
type GoogleCredentials struct {
	JSON string
	File string
}

// ClientOptions converts the credentials to client options.
// No options means Application Default Credentials.
func (c GoogleCredentials) ClientOptions() []option.ClientOption {
	switch {
	case c.JSON != "":
		return []option.ClientOption{option.WithCredentialsJSON([]byte(c.JSON))}
	case c.File != "":
		return []option.ClientOption{option.WithCredentialsFile(c.File)}
	default:
		return nil
	}
}

// IsSet reports whether explicit credentials were configured.
func (c GoogleCredentials) IsSet() bool {
	return c.JSON != "" || c.File != ""
}
