package ocr

import (
	"errors"
	"fmt"
)

// FailureMessage is shown to users when a provider gives no message of its own.
const FailureMessage = "OCR misslyckades"

// Common OCR processing errors
var (
	// ErrFileTooLarge is returned when the document exceeds MaxFileSizeBytes.
	ErrFileTooLarge = errors.New("file size exceeds the maximum limit (20MB)")

	// ErrEmptyFile is returned when the document has no content.
	ErrEmptyFile = errors.New("file is empty")

	// ErrUnsupportedFormat is returned when the provider cannot read the content type.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrOCRFailed is returned when the provider fails to process the document.
	ErrOCRFailed = errors.New("OCR processing failed")

	// ErrMissingCredentials is returned when no Google Cloud credentials can be found.
	ErrMissingCredentials = errors.New("missing Google Cloud credentials: set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS environment variable")

	// ErrMissingAPIKey is returned when the OCR.space API key is not configured.
	ErrMissingAPIKey = errors.New("missing OCR.space API key: set OCR_SPACE_API_KEY")

	// ErrInvalidConfiguration is returned when a provider is misconfigured.
	ErrInvalidConfiguration = errors.New("invalid OCR configuration")

	// ErrTooManyPages is returned when the PDF has too many pages for synchronous processing.
	// Google Cloud Vision API supports up to 5 pages for synchronous processing.
	ErrTooManyPages = errors.New("PDF has too many pages (maximum 5 pages for synchronous processing)")

	// ErrQuotaExceeded is returned when the provider rejects the call for quota reasons.
	ErrQuotaExceeded = errors.New("OCR API quota exceeded")
)

// OCRError wraps errors with additional context about the OCR processing failure.
type OCRError struct {
	// Op is the operation that failed (e.g., "Recognize", "NewVisionService").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOCRError creates a new OCRError with the specified operation and underlying error.
func NewOCRError(op string, err error, details string) *OCRError {
	return &OCRError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return NewOCRError(op, err, details)
}

// UserMessage returns a one-line message for an OCR failure suitable for end users.
func UserMessage(err error) string {
	var ocrErr *OCRError
	if errors.As(err, &ocrErr) && ocrErr.Details != "" {
		return ocrErr.Details
	}
	return FailureMessage
}
