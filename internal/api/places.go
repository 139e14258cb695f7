package api

import (
	"net/http"
	"strings"

	"github.com/kuri-sun/bous-ai/internal/apperr"
	"github.com/kuri-sun/bous-ai/internal/domain"
)

type placeAutocompleteResponse struct {
	Predictions []domain.PlacePrediction `json:"predictions"`
}

type placeDetailResponse struct {
	Place *domain.Place `json:"place"`
}

func (h *Handler) placesAutocomplete(w http.ResponseWriter, r *http.Request) {
	input := strings.TrimSpace(r.URL.Query().Get("input"))
	if input == "" {
		writeError(w, apperr.Invalid("input is required"))
		return
	}
	country := r.URL.Query().Get("country")

	predictions, err := h.places.Autocomplete(r.Context(), input, country, "ja")
	if err != nil {
		writeError(w, apperr.Unavailable("places autocomplete failed", err))
		return
	}
	if predictions == nil {
		predictions = []domain.PlacePrediction{}
	}
	JSON(w, http.StatusOK, placeAutocompleteResponse{Predictions: predictions})
}

func (h *Handler) placesDetails(w http.ResponseWriter, r *http.Request) {
	placeID := strings.TrimSpace(r.URL.Query().Get("place_id"))
	if placeID == "" {
		writeError(w, apperr.Invalid("place_id is required"))
		return
	}

	place, err := h.places.Details(r.Context(), placeID, "ja")
	if err != nil {
		writeError(w, apperr.Unavailable("places detail failed", err))
		return
	}
	JSON(w, http.StatusOK, placeDetailResponse{Place: place})
}
