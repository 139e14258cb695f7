package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kuri-sun/bous-ai/internal/apperr"
	"github.com/kuri-sun/bous-ai/internal/domain"
)

type sessionsResponse struct {
	Sessions []*domain.Session `json:"sessions"`
}

type sessionResponse struct {
	Session *domain.Session `json:"session"`
}

func (h *Handler) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.repo.ListSessions(r.Context(), 50)
	if err != nil {
		writeError(w, apperr.Unavailable("list sessions", err))
		return
	}
	if sessions == nil {
		sessions = []*domain.Session{}
	}
	JSON(w, http.StatusOK, sessionsResponse{Sessions: sessions})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	session, err := h.repo.GetSession(r.Context(), id)
	if err != nil {
		writeError(w, apperr.Unavailable("load session", err))
		return
	}
	if session == nil {
		writeError(w, apperr.NotFound("Session not found"))
		return
	}
	JSON(w, http.StatusOK, sessionResponse{Session: session})
}

// sessionPDF redirects to the public URL of the session's rendered manual.
func (h *Handler) sessionPDF(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	blobName, err := h.repo.GetSessionPDFBlobName(r.Context(), id)
	if err != nil {
		writeError(w, apperr.Unavailable("load session", err))
		return
	}
	if blobName == "" {
		writeError(w, apperr.NotFound("PDF not found"))
		return
	}
	http.Redirect(w, r, h.objects.PublicURL(h.cfg.GCSBucket, blobName), http.StatusFound)
}
