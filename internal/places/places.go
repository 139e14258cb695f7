// Package places wraps the maps Places API for address autocomplete and
// place detail resolution.
package places

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kuri-sun/bous-ai/internal/domain"
)

const placesAPIBase = "https://maps.googleapis.com/maps/api/place"

// Client queries the Places API.
type Client struct {
	apiKey string
	client *http.Client
}

// NewClient creates a Places API client.
func NewClient(apiKey string) *Client {
	return &Client{
		apiKey: apiKey,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

type autocompleteResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Predictions  []struct {
		PlaceID              string `json:"place_id"`
		Description          string `json:"description"`
		StructuredFormatting struct {
			MainText      string `json:"main_text"`
			SecondaryText string `json:"secondary_text"`
		} `json:"structured_formatting"`
	} `json:"predictions"`
}

// Autocomplete returns geocode predictions for the given input, scoped to a
// country and language.
func (c *Client) Autocomplete(ctx context.Context, input, country, language string) ([]domain.PlacePrediction, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}
	if country == "" {
		country = "jp"
	}
	if language == "" {
		language = "ja"
	}

	params := url.Values{}
	params.Set("input", input)
	params.Set("language", language)
	params.Set("components", "country:"+country)
	params.Set("types", "geocode")
	params.Set("key", c.apiKey)

	var payload autocompleteResponse
	if err := c.fetch(ctx, "/autocomplete/json", params, &payload); err != nil {
		return nil, err
	}
	if payload.Status != "OK" && payload.Status != "ZERO_RESULTS" {
		return nil, apiError(payload.ErrorMessage, "Places autocomplete failed")
	}

	var predictions []domain.PlacePrediction
	for _, item := range payload.Predictions {
		if item.PlaceID == "" || item.Description == "" {
			continue
		}
		predictions = append(predictions, domain.PlacePrediction{
			PlaceID:       item.PlaceID,
			Description:   item.Description,
			MainText:      item.StructuredFormatting.MainText,
			SecondaryText: item.StructuredFormatting.SecondaryText,
		})
	}
	return predictions, nil
}

type detailsResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Result       struct {
		PlaceID           string                    `json:"place_id"`
		Name              string                    `json:"name"`
		FormattedAddress  string                    `json:"formatted_address"`
		Types             []string                  `json:"types"`
		AddressComponents []domain.AddressComponent `json:"address_components"`
		Geometry          struct {
			Location struct {
				Lat float64 `json:"lat"`
				Lng float64 `json:"lng"`
			} `json:"location"`
		} `json:"geometry"`
	} `json:"result"`
}

// Details resolves a place ID into a Place, deriving prefecture and city
// from its address components.
func (c *Client) Details(ctx context.Context, placeID, language string) (*domain.Place, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("GOOGLE_API_KEY is not set")
	}
	if language == "" {
		language = "ja"
	}

	fields := strings.Join([]string{
		"place_id", "name", "formatted_address", "geometry", "types", "address_component",
	}, ",")
	params := url.Values{}
	params.Set("place_id", placeID)
	params.Set("language", language)
	params.Set("fields", fields)
	params.Set("key", c.apiKey)

	var payload detailsResponse
	if err := c.fetch(ctx, "/details/json", params, &payload); err != nil {
		return nil, err
	}
	if payload.Status != "OK" {
		return nil, apiError(payload.ErrorMessage, "Places detail failed")
	}

	result := payload.Result
	prefecture := componentLongName(result.AddressComponents, "administrative_area_level_1")
	city := componentLongName(result.AddressComponents, "locality")
	if city == "" {
		city = componentLongName(result.AddressComponents, "administrative_area_level_2")
	}

	return &domain.Place{
		PlaceID:           result.PlaceID,
		Name:              result.Name,
		FormattedAddress:  result.FormattedAddress,
		Prefecture:        prefecture,
		City:              city,
		Lat:               result.Geometry.Location.Lat,
		Lng:               result.Geometry.Location.Lng,
		Types:             result.Types,
		AddressComponents: result.AddressComponents,
	}, nil
}

func (c *Client) fetch(ctx context.Context, path string, params url.Values, target any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, placesAPIBase+path+"?"+params.Encode(), nil)
	if err != nil {
		return fmt.Errorf("build places request: %w", err)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("places request: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		return fmt.Errorf("decode places response: %w", err)
	}
	return nil
}

func componentLongName(components []domain.AddressComponent, targetType string) string {
	for _, component := range components {
		for _, t := range component.Types {
			if t == targetType {
				return component.LongName
			}
		}
	}
	return ""
}

func apiError(message, fallback string) error {
	if message == "" {
		message = fallback
	}
	return fmt.Errorf("places api: %s", message)
}
