package models

// PlaceSearchRequest is the body of POST /v1/search/places.
type PlaceSearchRequest struct {
	Query     string   `json:"query"`
	Latitude  *float64 `json:"latitude,omitempty"`
	Longitude *float64 `json:"longitude,omitempty"`
	Radius    int      `json:"radius,omitempty"`
	Language  string   `json:"language,omitempty"`
}

// Place is a place search hit.
type Place struct {
	PlaceID          string   `json:"placeId"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formattedAddress"`
	Latitude         float64  `json:"latitude"`
	Longitude        float64  `json:"longitude"`
	Types            []string `json:"types"`
	Rating           *float64 `json:"rating,omitempty"`
}

// PlaceSearchResponse wraps place search hits.
type PlaceSearchResponse struct {
	Results []Place `json:"results"`
}

// DirectionsRequest is the body of POST /v1/directions/calculate.
type DirectionsRequest struct {
	OriginLatitude       *float64 `json:"originLatitude"`
	OriginLongitude      *float64 `json:"originLongitude"`
	DestinationLatitude  *float64 `json:"destinationLatitude"`
	DestinationLongitude *float64 `json:"destinationLongitude"`
	TravelMode           string   `json:"travelMode,omitempty"`
	Language             string   `json:"language,omitempty"`
	Avoid                []string `json:"avoid,omitempty"`
}

// RouteStep is one maneuver of a route.
type RouteStep struct {
	Instruction    string   `json:"instruction"`
	DistanceText   string   `json:"distanceText"`
	DistanceMeters int      `json:"distanceMeters"`
	DurationText   string   `json:"durationText"`
	DurationSecs   int      `json:"durationSeconds"`
	Start          Position `json:"start"`
	End            Position `json:"end"`
	Maneuver       string   `json:"maneuver,omitempty"`
	Polyline       string   `json:"polyline"`
}

// Bounds is the bounding box of a route.
type Bounds struct {
	Northeast Position `json:"northeast"`
	Southwest Position `json:"southwest"`
}

// DirectionsResponse is the primary route.
type DirectionsResponse struct {
	TravelMode          string      `json:"travelMode"`
	TotalDistanceText   string      `json:"totalDistanceText"`
	TotalDistanceMeters int         `json:"totalDistanceMeters"`
	TotalDurationText   string      `json:"totalDurationText"`
	TotalDurationSecs   int         `json:"totalDurationSeconds"`
	StartAddress        string      `json:"startAddress"`
	EndAddress          string      `json:"endAddress"`
	OverviewPolyline    string      `json:"overviewPolyline"`
	Path                []Position  `json:"path"`
	Steps               []RouteStep `json:"steps"`
	Bounds              *Bounds     `json:"bounds,omitempty"`
}

// GeocodeRequest is the body of POST /v1/geocode/address.
type GeocodeRequest struct {
	Address  string `json:"address"`
	Language string `json:"language,omitempty"`
}

// GeocodeResponse is the best geocoding match.
type GeocodeResponse struct {
	Address          string  `json:"address"`
	FormattedAddress string  `json:"formattedAddress"`
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
}
