package ocr

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"
	"github.com/rs/zerolog"

	"buyerportal/internal/logger"
)

// MaxPagesSync is the maximum number of pages for synchronous processing
const MaxPagesSync = 5

// VisionService implements OCRService using Google Cloud Vision document text detection.
// PDFs and TIFFs go through file annotation, other images through image annotation.
type VisionService struct {
	client        *vision.ImageAnnotatorClient
	languageHints []string
	log           zerolog.Logger
}

// NewVisionService creates a Vision client with the given credentials.
func NewVisionService(ctx context.Context, creds GoogleCredentials) (*VisionService, error) {
	const op = "NewVisionService"

	client, err := vision.NewImageAnnotatorClient(ctx, creds.ClientOptions()...)
	if err != nil {
		if !creds.IsSet() {
			return nil, WrapOCRError(op, ErrMissingCredentials, "no credentials found in environment")
		}
		return nil, WrapOCRError(op, err, "failed to create Vision client")
	}

	return NewVisionServiceWithClient(client), nil
}

// NewVisionServiceWithClient creates a Vision service with an explicit client (for testing).
func NewVisionServiceWithClient(client *vision.ImageAnnotatorClient) *VisionService {
	return &VisionService{
		client:        client,
		languageHints: []string{"sv"},
		log:           logger.WithComponent("vision"),
	}
}

// Recognize extracts the document text with Cloud Vision.
func (g *VisionService) Recognize(ctx context.Context, doc Document) (*OCRResult, error) {
	const op = "Recognize"
	startTime := time.Now()

	if len(doc.Data) == 0 {
		return nil, NewOCRError(op, ErrEmptyFile, "")
	}
	if len(doc.Data) > MaxFileSizeBytes {
		return nil, NewOCRError(op, ErrFileTooLarge, fmt.Sprintf("file size: %d bytes", len(doc.Data)))
	}

	var (
		result *OCRResult
		err    error
	)
	switch {
	case doc.IsPDF():
		result, err = g.annotateFile(ctx, doc.Data, ContentTypePDF)
	case doc.ContentType == "image/tiff":
		result, err = g.annotateFile(ctx, doc.Data, doc.ContentType)
	case strings.HasPrefix(doc.ContentType, "image/"):
		result, err = g.annotateImage(ctx, doc.Data)
	default:
		return nil, NewOCRError(op, ErrUnsupportedFormat, doc.ContentType)
	}
	if err != nil {
		return nil, WrapOCRError(op, err, "")
	}

	result.Provider = ProviderVision
	result.ProcessedAt = time.Now()
	result.ProcessingDuration = result.ProcessedAt.Sub(startTime)

	g.log.Debug().
		Str("file", doc.Name).
		Int("pages", result.PageCount).
		Float32("confidence", result.Confidence).
		Dur("duration", result.ProcessingDuration).
		Msg("Vision OCR completed")

	return result, nil
}

// annotateFile runs document text detection over an inline PDF or TIFF.
func (g *VisionService) annotateFile(ctx context.Context, data []byte, mimeType string) (*OCRResult, error) {
	const op = "annotateFile"

	req := &visionpb.BatchAnnotateFilesRequest{
		Requests: []*visionpb.AnnotateFileRequest{
			{
				InputConfig: &visionpb.InputConfig{
					Content:  data,
					MimeType: mimeType,
				},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: g.languageHints},
			},
		},
	}

	resp, err := g.client.BatchAnnotateFiles(ctx, req)
	if err != nil {
		return nil, NewOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, NewOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	fileResp := resp.Responses[0]
	if fileResp.Error != nil {
		return nil, NewOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API error: %s", fileResp.Error.Message))
	}
	if len(fileResp.Responses) > MaxPagesSync {
		return nil, NewOCRError(op, ErrTooManyPages, fmt.Sprintf("document has %d pages", len(fileResp.Responses)))
	}

	return collectPages(fileResp.Responses)
}

// annotateImage runs document text detection over a single image.
func (g *VisionService) annotateImage(ctx context.Context, data []byte) (*OCRResult, error) {
	const op = "annotateImage"

	req := &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{
			{
				Image: &visionpb.Image{Content: data},
				Features: []*visionpb.Feature{
					{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION},
				},
				ImageContext: &visionpb.ImageContext{LanguageHints: g.languageHints},
			},
		},
	}

	resp, err := g.client.BatchAnnotateImages(ctx, req)
	if err != nil {
		return nil, NewOCRError(op, ErrOCRFailed, fmt.Sprintf("Vision API call failed: %v", err))
	}
	if len(resp.Responses) == 0 {
		return nil, NewOCRError(op, ErrOCRFailed, "no response from Vision API")
	}

	return collectPages(resp.Responses)
}

// collectPages joins page texts and aggregates confidence and detected languages.
func collectPages(pages []*visionpb.AnnotateImageResponse) (*OCRResult, error) {
	var texts []string
	var confidenceSum float32
	var confidenceCount int
	languageSet := make(map[string]bool)

	for pageIdx, page := range pages {
		if page.Error != nil {
			return nil, NewOCRError("collectPages", ErrOCRFailed,
				fmt.Sprintf("error processing page %d: %s", pageIdx+1, page.Error.Message))
		}
		if page.FullTextAnnotation == nil {
			continue
		}

		texts = append(texts, page.FullTextAnnotation.Text)

		for _, p := range page.FullTextAnnotation.Pages {
			if p.Confidence > 0 {
				confidenceSum += p.Confidence
				confidenceCount++
			}
			if p.Property == nil {
				continue
			}
			for _, lang := range p.Property.DetectedLanguages {
				if lang.LanguageCode != "" {
					languageSet[lang.LanguageCode] = true
				}
			}
		}
	}

	var avgConfidence float32
	if confidenceCount > 0 {
		avgConfidence = confidenceSum / float32(confidenceCount)
	}

	languages := make([]string, 0, len(languageSet))
	for lang := range languageSet {
		languages = append(languages, lang)
	}
	sort.Strings(languages)

	return &OCRResult{
		Text:          strings.Join(texts, "\n"),
		PageCount:     len(pages),
		Confidence:    avgConfidence,
		LanguageCodes: languages,
	}, nil
}

// Close closes the underlying Vision client.
func (g *VisionService) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}
