// Package api provides HTTP handlers for the manual wizard API.
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kuri-sun/bous-ai/internal/agentic"
	"github.com/kuri-sun/bous-ai/internal/apperr"
	"github.com/kuri-sun/bous-ai/internal/config"
	"github.com/kuri-sun/bous-ai/internal/generate"
	"github.com/kuri-sun/bous-ai/internal/llm"
	"github.com/kuri-sun/bous-ai/internal/ocr"
	"github.com/kuri-sun/bous-ai/internal/places"
	"github.com/kuri-sun/bous-ai/internal/storage"
	"github.com/kuri-sun/bous-ai/internal/store"
)

// maxUploadSize bounds analyze uploads (20MB).
const maxUploadSize = 20 << 20

// Handler carries the wizard's service dependencies.
type Handler struct {
	repo      store.Repository
	agentic   *agentic.Service
	pipeline  *generate.Pipeline
	text      llm.TextGenerator
	places    *places.Client
	objects   storage.ObjectStore
	extractor ocr.Extractor
	cfg       *config.Config
}

// NewHandler creates a new Handler with common dependencies.
func NewHandler(
	repo store.Repository,
	agenticService *agentic.Service,
	pipeline *generate.Pipeline,
	text llm.TextGenerator,
	placesClient *places.Client,
	objects storage.ObjectStore,
	extractor ocr.Extractor,
	cfg *config.Config,
) *Handler {
	return &Handler{
		repo:      repo,
		agentic:   agenticService,
		pipeline:  pipeline,
		text:      text,
		places:    placesClient,
		objects:   objects,
		extractor: extractor,
		cfg:       cfg,
	}
}

// RegisterRoutes mounts all wizard endpoints under /api.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/agentic/start", h.agenticStart)
		r.Post("/agentic/respond", h.agenticRespond)
		r.Post("/agentic/decision", h.agenticDecision)
		r.Post("/analyze", h.analyze)
		r.Post("/generate", h.generateManual)
		r.Get("/sessions", h.listSessions)
		r.Get("/sessions/{id}", h.getSession)
		r.Get("/sessions/{id}/pdf", h.sessionPDF)
		r.Get("/places/autocomplete", h.placesAutocomplete)
		r.Get("/places/details", h.placesDetails)
	})
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// writeError maps classified errors to HTTP status codes.
func writeError(w http.ResponseWriter, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindInvalid:
		Error(w, http.StatusBadRequest, err.Error())
	case apperr.KindNotFound:
		Error(w, http.StatusNotFound, err.Error())
	default:
		slog.Error("request failed", "error", err)
		Error(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(r *http.Request, target any) error {
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		return apperr.Invalid("invalid JSON body")
	}
	return nil
}
