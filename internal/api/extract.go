package api

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/kuri-sun/bous-ai/internal/apperr"
	"github.com/kuri-sun/bous-ai/internal/domain"
	"github.com/kuri-sun/bous-ai/internal/generate"
	"github.com/kuri-sun/bous-ai/internal/store"
)

type analyzeResponse struct {
	Msg       string                  `json:"msg"`
	Form      *domain.FormSchema      `json:"form"`
	Extracted generate.ExtractedInput `json:"extracted"`
	SessionID string                  `json:"session_id"`
}

// analyze opens a new session from the user's memo and/or uploaded document:
// the file is stored under the session's input prefix, OCRed, and the model
// is asked which information is still missing.
func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeError(w, apperr.Invalid("invalid multipart form"))
		return
	}

	sourceType := r.FormValue("source_type")
	if sourceType == "" {
		sourceType = "mixed"
	}
	memo := r.FormValue("text")
	fileDescription := r.FormValue("file_description")

	file, header, err := r.FormFile("file")
	hasFile := err == nil
	if memo == "" && !hasFile {
		writeError(w, apperr.Invalid("text or file is required"))
		return
	}

	extracted := generate.ExtractedInput{
		SourceType: sourceType,
		HasText:    memo != "",
		HasFile:    hasFile,
		Memo:       memo,
	}

	ctx := r.Context()
	sessionID, err := h.repo.CreateSession(ctx, &domain.Session{Status: domain.SessionStatusStep1})
	if err != nil {
		writeError(w, apperr.Unavailable("create session", err))
		return
	}

	step1 := domain.Step1Input{
		Memo:            memo,
		FileDescription: fileDescription,
	}

	if hasFile {
		defer file.Close()
		if h.cfg.GCSBucket == "" {
			writeError(w, apperr.Unavailable("GCS_BUCKET is not set", nil))
			return
		}
		data, err := io.ReadAll(file)
		if err != nil {
			writeError(w, apperr.Invalid("failed to read uploaded file"))
			return
		}
		filename := header.Filename
		if filename == "" {
			filename = "input.pdf"
		}
		contentType := header.Header.Get("Content-Type")
		if contentType == "" {
			contentType = "application/octet-stream"
		}

		blobName := fmt.Sprintf("sessions/%s/input/%s", sessionID, filename)
		gcsURI, err := h.objects.Upload(ctx, h.cfg.GCSBucket, blobName, data, contentType)
		if err != nil {
			writeError(w, apperr.Unavailable("upload input file", err))
			return
		}

		extractedText, err := h.extractor.DetectText(ctx, data, filename, contentType, gcsURI)
		if err != nil {
			writeError(w, apperr.Unavailable("text extraction failed", err))
			return
		}

		extracted.UploadedFileGCSURI = gcsURI
		extracted.UploadedFileName = filename
		extracted.UploadedFileContentType = contentType
		extracted.TextExtractedFromUploadedFile = extractedText

		step1.UploadedFileGCSURI = gcsURI
		step1.UploadedFileName = filename
		step1.UploadedFileContentType = contentType
		step1.ExtractedText = extractedText
	}
	if fileDescription != "" {
		extracted.DescriptionForUploadedFile = fileDescription
	}

	formResult, err := generate.GenerateMissingInfoForm(ctx, h.text, extracted)
	if err != nil {
		writeError(w, apperr.Unavailable("form generation failed", err))
		return
	}

	patch := store.SessionPatch{
		Status: store.String(domain.SessionStatusStep2),
		Inputs: &store.InputsPatch{Step1: &step1},
		Form:   formResult.Form,
		Msg:    store.String(strings.TrimSpace(formResult.Msg)),
	}
	if err := h.repo.UpdateSession(ctx, sessionID, patch); err != nil {
		writeError(w, apperr.Unavailable("persist session", err))
		return
	}

	JSON(w, http.StatusOK, analyzeResponse{
		Msg:       formResult.Msg,
		Form:      formResult.Form,
		Extracted: extracted,
		SessionID: sessionID,
	})
}
