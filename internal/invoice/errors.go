package invoice

import (
	"errors"
	"fmt"

	"buyerportal/internal/extraction"
)

// MissingFileMessage is shown when an upload carries no file.
const MissingFileMessage = "Ingen fil uppladdad"

// Common invoice intake errors
var (
	// ErrNoFile is returned when an upload has no content.
	ErrNoFile = errors.New(MissingFileMessage)

	// ErrInvalidQuoteRequest is returned when a quote names neither an invoice nor an amount.
	ErrInvalidQuoteRequest = errors.New("quote needs an invoice id or an amount")

	// ErrInvalidPayout is returned when payout values are missing or malformed.
	ErrInvalidPayout = errors.New("invalid payout")
)

// Stage names the step of the intake pipeline that failed.
type Stage string

const (
	StageOCR         Stage = "ocr"
	StageStorage     Stage = "storage"
	StagePersistence Stage = "persistence"
)

// ProcessingError wraps errors with the pipeline stage they happened in.
type ProcessingError struct {
	// Op is the operation that failed (e.g., "Upload").
	Op string

	// Stage is the pipeline step that failed.
	Stage Stage

	// Err is the underlying error.
	Err error

	// Filename is the uploaded file name.
	Filename string

	// Result is the extraction result when OCR succeeded before the failure.
	Result *extraction.Result
}

// Error implements the error interface.
func (e *ProcessingError) Error() string {
	if e.Filename != "" {
		return fmt.Sprintf("invoice: %s failed at %s (%s): %v", e.Op, e.Stage, e.Filename, e.Err)
	}
	return fmt.Sprintf("invoice: %s failed at %s: %v", e.Op, e.Stage, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *ProcessingError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *ProcessingError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewProcessingError creates a ProcessingError for stage.
func NewProcessingError(op string, stage Stage, err error, filename string, result *extraction.Result) *ProcessingError {
	return &ProcessingError{
		Op:       op,
		Stage:    stage,
		Err:      err,
		Filename: filename,
		Result:   result,
	}
}

// StageOf returns the failed stage of err, or "" when err is not a ProcessingError.
func StageOf(err error) Stage {
	var pe *ProcessingError
	if errors.As(err, &pe) {
		return pe.Stage
	}
	return ""
}

// ParsedOf returns the extraction result carried by err, if any.
func ParsedOf(err error) (*extraction.Result, bool) {
	var pe *ProcessingError
	if errors.As(err, &pe) && pe.Result != nil {
		return pe.Result, true
	}
	return nil, false
}
