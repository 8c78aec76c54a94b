// Package maps proxies place search, directions and geocoding to a maps provider.
package maps

import (
	"context"
	"errors"
)

// Sentinel errors for maps operations.
var (
	// ErrInvalidInput indicates a request failed validation or was rejected by the provider as malformed.
	ErrInvalidInput = errors.New("invalid maps request")
	// ErrNoResults indicates the provider found nothing for the request.
	ErrNoResults = errors.New("no results found")
	// ErrUpstreamUnavailable indicates the provider is down, timed out or the circuit breaker is open.
	ErrUpstreamUnavailable = errors.New("maps provider unavailable")
	// ErrRateLimitExceeded indicates the provider quota has been exceeded.
	ErrRateLimitExceeded = errors.New("maps provider rate limit exceeded")
	// ErrFeatureDisabled indicates the operation is switched off by a feature flag.
	ErrFeatureDisabled = errors.New("feature disabled")
)

// Provider defines the interface for maps providers.
type Provider interface {
	// SearchPlaces runs a free-text place search.
	SearchPlaces(ctx context.Context, req PlaceSearchRequest) ([]Place, error)
	// Directions computes a route between two points. Only the primary route is returned.
	Directions(ctx context.Context, req DirectionsRequest) (*Directions, error)
	// Geocode resolves an address to a position.
	Geocode(ctx context.Context, req GeocodeRequest) (*GeocodeResult, error)
	// Name returns the provider identifier for logging and metrics.
	Name() string
}

// Coordinate represents a geographic point.
type Coordinate struct {
	Lat float64
	Lon float64
}

// TravelMode is the mode of transport used for directions.
type TravelMode string

// Supported travel modes.
const (
	ModeDriving   TravelMode = "driving"
	ModeWalking   TravelMode = "walking"
	ModeBicycling TravelMode = "bicycling"
	ModeTransit   TravelMode = "transit"
)

// Valid reports whether m is a supported travel mode.
func (m TravelMode) Valid() bool {
	switch m {
	case ModeDriving, ModeWalking, ModeBicycling, ModeTransit:
		return true
	}
	return false
}

// Features a route may avoid.
const (
	AvoidTolls    = "tolls"
	AvoidHighways = "highways"
	AvoidFerries  = "ferries"
	AvoidIndoor   = "indoor"
)

// Search radius limits in meters.
const (
	MinSearchRadius     = 100
	MaxSearchRadius     = 50000
	DefaultSearchRadius = 5000
	MaxQueryLength      = 200
)

// DefaultLanguage is used when a request names no language.
const DefaultLanguage = "en"

// PlaceSearchRequest is a free-text place search.
type PlaceSearchRequest struct {
	Query string
	// Bias, when set, biases results towards this point within Radius meters.
	Bias     *Coordinate
	Radius   int
	Language string
}

// Place is a single place search result.
type Place struct {
	ID       string
	Name     string
	Address  string
	Location Coordinate
	Types    []string
	Rating   *float64
}

// DirectionsRequest is the request for computing a route.
type DirectionsRequest struct {
	Origin      Coordinate
	Destination Coordinate
	Mode        TravelMode
	Language    string
	Avoid       []string
}

// Directions is the primary route between two points.
type Directions struct {
	DistanceText     string
	DistanceMeters   int
	DurationText     string
	DurationSeconds  int
	StartAddress     string
	EndAddress       string
	OverviewPolyline string
	// Path is the decoded overview polyline.
	Path   []Coordinate
	Steps  []Step
	Bounds *Bounds
	// Mode is the travel mode the route was computed for.
	Mode TravelMode
}

// Step is a single leg instruction.
type Step struct {
	Instruction     string
	DistanceText    string
	DistanceMeters  int
	DurationText    string
	DurationSeconds int
	Start           Coordinate
	End             Coordinate
	Maneuver        string
	Polyline        string
}

// Bounds is the viewport enclosing a route.
type Bounds struct {
	Northeast Coordinate
	Southwest Coordinate
}

// GeocodeRequest resolves an address.
type GeocodeRequest struct {
	Address  string
	Language string
}

// GeocodeResult is the best match for an address.
type GeocodeResult struct {
	Address          string
	FormattedAddress string
	Location         Coordinate
}

// Error provides detailed error information from the maps provider.
type Error struct {
	Provider string // Provider that generated the error
	Code     string // Error code from the provider
	Message  string // Human-readable error message
	Err      error  // Underlying error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is transient and the request can be retried.
func (e *Error) IsRetryable() bool {
	return errors.Is(e.Err, ErrUpstreamUnavailable) || errors.Is(e.Err, ErrRateLimitExceeded)
}
