package api

import (
	"net/http"

	"github.com/kuri-sun/bous-ai/internal/domain"
)

type agenticStartRequest struct {
	SessionID string `json:"session_id"`
}

type agenticRespondRequest struct {
	SessionID string `json:"session_id"`
	Answer    string `json:"answer"`
}

type agenticDecisionRequest struct {
	SessionID string `json:"session_id"`
	Decision  string `json:"decision"`
}

type agenticResponse struct {
	Agentic *domain.AgenticState `json:"agentic"`
}

func (h *Handler) agenticStart(w http.ResponseWriter, r *http.Request) {
	var req agenticStartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	state, err := h.agentic.Start(r.Context(), req.SessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, agenticResponse{Agentic: state})
}

func (h *Handler) agenticRespond(w http.ResponseWriter, r *http.Request) {
	var req agenticRespondRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	state, err := h.agentic.Respond(r.Context(), req.SessionID, req.Answer)
	if err != nil {
		writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, agenticResponse{Agentic: state})
}

func (h *Handler) agenticDecision(w http.ResponseWriter, r *http.Request) {
	var req agenticDecisionRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}
	state, err := h.agentic.Decide(r.Context(), req.SessionID, req.Decision)
	if err != nil {
		writeError(w, err)
		return
	}
	JSON(w, http.StatusOK, agenticResponse{Agentic: state})
}
