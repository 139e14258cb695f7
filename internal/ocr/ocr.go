// Package ocr extracts plain text from uploaded documents and images via
// the Vision API.
package ocr

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	vision "cloud.google.com/go/vision/v2/apiv1"
	"cloud.google.com/go/vision/v2/apiv1/visionpb"

	"github.com/kuri-sun/bous-ai/internal/storage"
)

const pdfOCRTimeout = 180 * time.Second

// Extractor turns uploaded file bytes into plain text.
type Extractor interface {
	DetectText(ctx context.Context, data []byte, filename, contentType, gcsURI string) (string, error)
}

// Vision implements Extractor on the Vision API. PDF extraction runs as an
// async batch job writing JSON results to the object store, which are then
// collected and concatenated.
type Vision struct {
	store        storage.ObjectStore
	bucket       string
	outputPrefix string
}

// NewVision creates a Vision-backed extractor. bucket and outputPrefix are
// only needed for PDF inputs.
func NewVision(store storage.ObjectStore, bucket, outputPrefix string) *Vision {
	return &Vision{store: store, bucket: bucket, outputPrefix: outputPrefix}
}

// DetectText extracts text from data. PDFs go through the async file
// pipeline keyed by gcsURI; everything else is treated as an image.
func (v *Vision) DetectText(ctx context.Context, data []byte, filename, contentType, gcsURI string) (string, error) {
	if contentType == "application/pdf" || strings.HasSuffix(filename, ".pdf") {
		return v.detectTextFromPDF(ctx, filename, gcsURI)
	}
	return v.detectTextFromImage(ctx, data)
}

func (v *Vision) detectTextFromImage(ctx context.Context, data []byte) (string, error) {
	client, err := vision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return "", fmt.Errorf("create vision client: %w", err)
	}
	defer client.Close()

	response, err := client.BatchAnnotateImages(ctx, &visionpb.BatchAnnotateImagesRequest{
		Requests: []*visionpb.AnnotateImageRequest{{
			Image:    &visionpb.Image{Content: data},
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
		}},
	})
	if err != nil {
		return "", fmt.Errorf("detect document text: %w", err)
	}
	return documentText(response), nil
}

// documentText pulls the full-text annotation out of a batch response.
func documentText(response *visionpb.BatchAnnotateImagesResponse) string {
	if response == nil {
		return ""
	}
	for _, item := range response.GetResponses() {
		if annotation := item.GetFullTextAnnotation(); annotation != nil {
			return annotation.GetText()
		}
	}
	return ""
}

func (v *Vision) detectTextFromPDF(ctx context.Context, filename, gcsURI string) (string, error) {
	if v.bucket == "" {
		return "", fmt.Errorf("GCS_BUCKET is not set")
	}

	client, err := vision.NewImageAnnotatorClient(ctx)
	if err != nil {
		return "", fmt.Errorf("create vision client: %w", err)
	}
	defer client.Close()

	jobID := strings.ReplaceAll(filename, "/", "_")
	outputPrefix := v.outputPrefix + jobID + "/"
	outputURI := fmt.Sprintf("gs://%s/%s", v.bucket, outputPrefix)

	request := &visionpb.AsyncBatchAnnotateFilesRequest{
		Requests: []*visionpb.AsyncAnnotateFileRequest{{
			Features: []*visionpb.Feature{{Type: visionpb.Feature_DOCUMENT_TEXT_DETECTION}},
			InputConfig: &visionpb.InputConfig{
				GcsSource: &visionpb.GcsSource{Uri: gcsURI},
				MimeType:  "application/pdf",
			},
			OutputConfig: &visionpb.OutputConfig{
				GcsDestination: &visionpb.GcsDestination{Uri: outputURI},
				BatchSize:      2,
			},
		}},
	}

	opCtx, cancel := context.WithTimeout(ctx, pdfOCRTimeout)
	defer cancel()

	op, err := client.AsyncBatchAnnotateFiles(opCtx, request)
	if err != nil {
		return "", fmt.Errorf("start pdf annotation: %w", err)
	}
	if _, err := op.Wait(opCtx); err != nil {
		return "", fmt.Errorf("wait for pdf annotation: %w", err)
	}

	names, err := v.store.List(ctx, v.bucket, outputPrefix)
	if err != nil {
		return "", fmt.Errorf("list annotation outputs: %w", err)
	}

	var texts []string
	for _, name := range names {
		content, err := v.store.Download(ctx, v.bucket, name)
		if err != nil {
			return "", fmt.Errorf("download annotation output: %w", err)
		}
		text, err := extractTextFromOutput(content)
		if err != nil {
			return "", fmt.Errorf("parse annotation output %s: %w", name, err)
		}
		if text != "" {
			texts = append(texts, text)
		}
	}
	return strings.Join(texts, "\n"), nil
}

// annotateFileOutput mirrors the JSON the async job writes to the bucket.
type annotateFileOutput struct {
	Responses []struct {
		FullTextAnnotation struct {
			Text string `json:"text"`
		} `json:"fullTextAnnotation"`
	} `json:"responses"`
}

func extractTextFromOutput(content []byte) (string, error) {
	var payload annotateFileOutput
	if err := json.Unmarshal(content, &payload); err != nil {
		return "", err
	}
	var lines []string
	for _, response := range payload.Responses {
		if response.FullTextAnnotation.Text != "" {
			lines = append(lines, response.FullTextAnnotation.Text)
		}
	}
	return strings.Join(lines, "\n"), nil
}
