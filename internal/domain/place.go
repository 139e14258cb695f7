package domain

// AddressComponent mirrors one entry of the maps API address breakdown.
type AddressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// Place is the resolved building address a session is anchored to.
type Place struct {
	PlaceID           string             `json:"place_id"`
	Name              string             `json:"name"`
	FormattedAddress  string             `json:"formatted_address,omitempty"`
	Prefecture        string             `json:"prefecture,omitempty"`
	City              string             `json:"city,omitempty"`
	Lat               float64            `json:"lat,omitempty"`
	Lng               float64            `json:"lng,omitempty"`
	Types             []string           `json:"types,omitempty"`
	AddressComponents []AddressComponent `json:"address_components,omitempty"`
}

// PlacePrediction is one autocomplete suggestion.
type PlacePrediction struct {
	PlaceID       string `json:"place_id"`
	Description   string `json:"description"`
	MainText      string `json:"main_text,omitempty"`
	SecondaryText string `json:"secondary_text,omitempty"`
}
