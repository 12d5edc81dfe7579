package ocr_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"buyerportal/internal/ocr"
)

// Example demonstrates recognizing an invoice with OCR.space.
func Example() {
	// Create context with the deployed OCR timeout
	ctx, cancel := context.WithTimeout(context.Background(), ocr.DefaultTimeout)
	defer cancel()

	cfg := ocr.DefaultOCRSpaceConfig()
	cfg.APIKey = os.Getenv("OCR_SPACE_API_KEY")

	svc, err := ocr.NewOCRSpaceService(cfg)
	if err != nil {
		log.Fatalf("Failed to create OCR service: %v", err)
	}

	data, err := os.ReadFile("sample_invoice.pdf")
	if err != nil {
		log.Fatalf("Failed to read PDF: %v", err)
	}

	result, err := svc.Recognize(ctx, ocr.NewDocument("sample_invoice.pdf", "", data))
	if err != nil {
		// One-line message for the user, e.g. "OCR misslyckades"
		log.Fatalf("OCR failed: %s", ocr.UserMessage(err))
	}

	fmt.Printf("Extracted %d pages (%d characters)\n", result.PageCount, len(result.Text))
}

// ExampleNewVisionService demonstrates Cloud Vision with inline credentials.
func ExampleNewVisionService() {
	ctx := context.Background()

	svc, err := ocr.NewVisionService(ctx, ocr.GoogleCredentials{
		JSON: os.Getenv("GOOGLE_CREDENTIALS"),
		File: os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"),
	})
	if err != nil {
		if errors.Is(err, ocr.ErrMissingCredentials) {
			log.Fatal("Set GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS")
		}
		log.Fatalf("Failed to create Vision service: %v", err)
	}
	defer svc.Close()

	data, _ := os.ReadFile("scan.png")
	result, err := svc.Recognize(ctx, ocr.NewDocument("scan.png", "image/png", data))
	if err != nil {
		log.Fatalf("OCR failed: %v", err)
	}

	fmt.Printf("Confidence: %.1f%%, languages: %v, took %s\n",
		result.Confidence*100, result.LanguageCodes, result.ProcessingDuration.Round(time.Millisecond))
}
