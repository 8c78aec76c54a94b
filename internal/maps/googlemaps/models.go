package googlemaps

// Google Maps web service status codes.
const (
	statusOK                     = "OK"
	statusZeroResults            = "ZERO_RESULTS"
	statusNotFound               = "NOT_FOUND"
	statusInvalidRequest         = "INVALID_REQUEST"
	statusOverQueryLimit         = "OVER_QUERY_LIMIT"
	statusOverDailyLimit         = "OVER_DAILY_LIMIT"
	statusRequestDenied          = "REQUEST_DENIED"
	statusMaxWaypointsExceeded   = "MAX_WAYPOINTS_EXCEEDED"
	statusMaxRouteLengthExceeded = "MAX_ROUTE_LENGTH_EXCEEDED"
	statusUnknownError           = "UNKNOWN_ERROR"
)

// envelope is the part shared by every Google Maps JSON response.
type envelope struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type textValue struct {
	Text  string `json:"text"`
	Value int    `json:"value"`
}

type encodedPolyline struct {
	Points string `json:"points"`
}

type bounds struct {
	Northeast latLng `json:"northeast"`
	Southwest latLng `json:"southwest"`
}

// placesResponse is the Places text search response.
type placesResponse struct {
	envelope
	Results []placeResult `json:"results"`
}

type placeResult struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	FormattedAddress string   `json:"formatted_address"`
	Geometry         *struct {
		Location *latLng `json:"location"`
	} `json:"geometry"`
	Types  []string `json:"types"`
	Rating *float64 `json:"rating"`
}

// directionsResponse is the Directions API response.
type directionsResponse struct {
	envelope
	Routes []directionsRoute `json:"routes"`
}

type directionsRoute struct {
	Summary          string          `json:"summary"`
	Legs             []directionsLeg `json:"legs"`
	OverviewPolyline encodedPolyline `json:"overview_polyline"`
	Bounds           *bounds         `json:"bounds"`
}

type directionsLeg struct {
	Distance      textValue        `json:"distance"`
	Duration      textValue        `json:"duration"`
	StartAddress  string           `json:"start_address"`
	EndAddress    string           `json:"end_address"`
	StartLocation latLng           `json:"start_location"`
	EndLocation   latLng           `json:"end_location"`
	Steps         []directionsStep `json:"steps"`
}

type directionsStep struct {
	HTMLInstructions string          `json:"html_instructions"`
	Distance         textValue       `json:"distance"`
	Duration         textValue       `json:"duration"`
	StartLocation    latLng          `json:"start_location"`
	EndLocation      latLng          `json:"end_location"`
	Maneuver         string          `json:"maneuver"`
	Polyline         encodedPolyline `json:"polyline"`
}

// geocodeResponse is the Geocoding API response.
type geocodeResponse struct {
	envelope
	Results []geocodeResult `json:"results"`
}

type geocodeResult struct {
	FormattedAddress string `json:"formatted_address"`
	Geometry         struct {
		Location latLng `json:"location"`
	} `json:"geometry"`
}
