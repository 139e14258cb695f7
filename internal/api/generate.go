package api

import (
	"net/http"
	"strings"

	"github.com/kuri-sun/bous-ai/internal/apperr"
	"github.com/kuri-sun/bous-ai/internal/domain"
	"github.com/kuri-sun/bous-ai/internal/generate"
	"github.com/kuri-sun/bous-ai/internal/japandate"
	"github.com/kuri-sun/bous-ai/internal/store"
)

type generateRequest struct {
	SessionID string             `json:"session_id"`
	Place     *domain.Place      `json:"place,omitempty"`
	Step2     *domain.Step2Input `json:"step2"`
}

type generateResponse struct {
	PDFURL  string          `json:"pdf_url"`
	Session *domain.Session `json:"session"`
}

// generateManual runs the first full generation for a session: markdown with
// illustration placeholders, illustrations, HTML layout, PDF render and
// upload, then marks the session done.
func (h *Handler) generateManual(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	if req.SessionID == "" {
		writeError(w, apperr.Invalid("session_id is required"))
		return
	}
	if req.Step2 == nil {
		writeError(w, apperr.Invalid("step2 is required"))
		return
	}

	ctx := r.Context()
	session, err := h.repo.GetSession(ctx, req.SessionID)
	if err != nil {
		writeError(w, apperr.Unavailable("load session", err))
		return
	}
	if session == nil {
		writeError(w, apperr.NotFound("Session not found"))
		return
	}

	step2 := *req.Step2
	name := strings.TrimSpace(step2.Name)
	author := strings.TrimSpace(step2.Author)
	issuedOn := strings.TrimSpace(step2.IssuedOn)
	if issuedOn == "" {
		issuedOn = japandate.Now()
	}
	manualTitle := strings.TrimSpace(step2.ManualTitle)
	if manualTitle == "" {
		manualTitle = "防災マニュアル"
		if name != "" {
			manualTitle = name + " 防災マニュアル"
		}
	}

	result, err := h.pipeline.GenerateInitial(ctx, generate.InitialInput{
		SessionID:   req.SessionID,
		Memo:        step2.Memo,
		InputImages: step2.UploadedImages,
		ManualTitle: manualTitle,
		Name:        name,
		Author:      author,
		IssuedOn:    issuedOn,
	})
	if err != nil {
		writeError(w, apperr.Unavailable("manual generation failed", err))
		return
	}

	step2.ManualTitle = manualTitle
	step2.IssuedOn = issuedOn
	step2.IllustrationImages = result.IllustrationImages

	patch := store.SessionPatch{
		Status:      store.String(domain.SessionStatusDone),
		Place:       req.Place,
		PDFBlobName: store.String(result.PDFBlobName),
		PDFURL:      store.String(result.PDFURL),
		Inputs: &store.InputsPatch{
			Step2:    &step2,
			Markdown: store.String(result.Markdown),
			HTML:     store.String(result.HTML),
		},
	}
	if err := h.repo.UpdateSession(ctx, req.SessionID, patch); err != nil {
		writeError(w, apperr.Unavailable("persist session", err))
		return
	}

	updated, err := h.repo.GetSession(ctx, req.SessionID)
	if err != nil {
		writeError(w, apperr.Unavailable("load session", err))
		return
	}
	JSON(w, http.StatusOK, generateResponse{PDFURL: result.PDFURL, Session: updated})
}
