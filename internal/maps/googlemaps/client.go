// Package googlemaps provides a client for the Google Maps Places, Directions and Geocoding web services.
package googlemaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/gpstunnel/gpstunnel/internal/maps"
	"github.com/gpstunnel/gpstunnel/internal/provider/resilience"
	"github.com/gpstunnel/gpstunnel/pkg/polyline"
)

const (
	// ProviderName identifies this maps provider.
	ProviderName = "googlemaps"

	// DefaultBaseURL is the Google Maps web services base URL.
	DefaultBaseURL = "https://maps.googleapis.com"

	// DefaultTimeout is the default request timeout.
	DefaultTimeout = 10 * time.Second
)

const (
	textSearchPath = "/maps/api/place/textsearch/json"
	directionsPath = "/maps/api/directions/json"
	geocodePath    = "/maps/api/geocode/json"
)

// HTTPDoer is an interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// ClientConfig holds configuration for the Google Maps client.
type ClientConfig struct {
	// APIKey is the Google Maps API key (required).
	APIKey string

	// BaseURL is the API base URL (optional, defaults to Google).
	BaseURL string

	// HTTPClient is the HTTP client to use (optional).
	// If nil, uses a resilient client with defaults.
	HTTPClient HTTPDoer

	// Timeout is the request timeout (optional, defaults to 10s).
	Timeout time.Duration

	// MaxRetries bounds retries of transient failures (optional).
	MaxRetries uint64

	// Registry is the provider registry for health tracking (optional).
	Registry *resilience.Registry

	// Logger for client operations.
	Logger zerolog.Logger
}

// Client is a Google Maps web services client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient HTTPDoer
	logger     zerolog.Logger
}

// NewClient creates a new Google Maps client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig(ProviderName)
		clientCfg.Timeout = timeout
		if cfg.MaxRetries > 0 {
			clientCfg.MaxRetries = cfg.MaxRetries
		}
		clientCfg.Registry = cfg.Registry
		clientCfg.Logger = cfg.Logger
		httpClient = resilience.NewClient(clientCfg)
	}

	return &Client{
		apiKey:     cfg.APIKey,
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     cfg.Logger,
	}
}

// Name returns the provider name.
func (c *Client) Name() string {
	return ProviderName
}

// SearchPlaces runs a Places text search.
func (c *Client) SearchPlaces(ctx context.Context, req maps.PlaceSearchRequest) ([]maps.Place, error) {
	params := url.Values{}
	params.Set("query", req.Query)
	params.Set("language", req.Language)
	if req.Bias != nil {
		params.Set("location", formatLatLng(*req.Bias))
		params.Set("radius", strconv.Itoa(req.Radius))
	}

	var resp placesResponse
	if err := c.get(ctx, textSearchPath, params, &resp); err != nil {
		return nil, err
	}

	switch resp.Status {
	case statusOK:
	case statusZeroResults:
		return []maps.Place{}, nil
	default:
		return nil, c.handleStatus(resp.envelope)
	}

	places := make([]maps.Place, 0, len(resp.Results))
	for i := range resp.Results {
		r := &resp.Results[i]
		if r.PlaceID == "" || r.Name == "" || r.Geometry == nil || r.Geometry.Location == nil {
			c.logger.Debug().Str("place_id", r.PlaceID).Msg("skipping incomplete place result")
			continue
		}
		places = append(places, maps.Place{
			ID:       r.PlaceID,
			Name:     r.Name,
			Address:  r.FormattedAddress,
			Location: toCoordinate(*r.Geometry.Location),
			Types:    r.Types,
			Rating:   r.Rating,
		})
	}

	c.logger.Debug().
		Int("result_count", len(places)).
		Msg("received places from Google Maps")

	return places, nil
}

// Directions retrieves the primary route between two points.
func (c *Client) Directions(ctx context.Context, req maps.DirectionsRequest) (*maps.Directions, error) {
	params := url.Values{}
	params.Set("origin", formatLatLng(req.Origin))
	params.Set("destination", formatLatLng(req.Destination))
	params.Set("mode", string(req.Mode))
	params.Set("language", req.Language)
	params.Set("alternatives", "true")
	if len(req.Avoid) > 0 {
		params.Set("avoid", strings.Join(req.Avoid, "|"))
	}

	c.logger.Debug().
		Str("mode", string(req.Mode)).
		Float64("origin_lat", req.Origin.Lat).
		Float64("origin_lon", req.Origin.Lon).
		Float64("dest_lat", req.Destination.Lat).
		Float64("dest_lon", req.Destination.Lon).
		Msg("requesting directions from Google Maps")

	var resp directionsResponse
	if err := c.get(ctx, directionsPath, params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != statusOK {
		return nil, c.handleStatus(resp.envelope)
	}
	if len(resp.Routes) == 0 || len(resp.Routes[0].Legs) == 0 {
		return nil, noResults("NO_ROUTE", "no route found")
	}

	return c.toDirections(&resp.Routes[0]), nil
}

// toDirections converts the primary route and its first leg to the domain model.
func (c *Client) toDirections(route *directionsRoute) *maps.Directions {
	leg := &route.Legs[0]

	d := &maps.Directions{
		DistanceText:     leg.Distance.Text,
		DistanceMeters:   leg.Distance.Value,
		DurationText:     leg.Duration.Text,
		DurationSeconds:  leg.Duration.Value,
		StartAddress:     leg.StartAddress,
		EndAddress:       leg.EndAddress,
		OverviewPolyline: route.OverviewPolyline.Points,
		Steps:            make([]maps.Step, 0, len(leg.Steps)),
	}

	path, err := polyline.Decode(route.OverviewPolyline.Points)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to decode overview polyline")
	}
	for _, p := range path {
		d.Path = append(d.Path, maps.Coordinate{Lat: p.Lat(), Lon: p.Lon()})
	}

	for i := range leg.Steps {
		step := &leg.Steps[i]
		d.Steps = append(d.Steps, maps.Step{
			Instruction:     step.HTMLInstructions,
			DistanceText:    step.Distance.Text,
			DistanceMeters:  step.Distance.Value,
			DurationText:    step.Duration.Text,
			DurationSeconds: step.Duration.Value,
			Start:           toCoordinate(step.StartLocation),
			End:             toCoordinate(step.EndLocation),
			Maneuver:        step.Maneuver,
			Polyline:        step.Polyline.Points,
		})
	}

	if route.Bounds != nil {
		d.Bounds = &maps.Bounds{
			Northeast: toCoordinate(route.Bounds.Northeast),
			Southwest: toCoordinate(route.Bounds.Southwest),
		}
	}

	return d
}

// Geocode resolves an address to its best match.
func (c *Client) Geocode(ctx context.Context, req maps.GeocodeRequest) (*maps.GeocodeResult, error) {
	params := url.Values{}
	params.Set("address", req.Address)
	params.Set("language", req.Language)

	var resp geocodeResponse
	if err := c.get(ctx, geocodePath, params, &resp); err != nil {
		return nil, err
	}
	if resp.Status != statusOK {
		return nil, c.handleStatus(resp.envelope)
	}
	if len(resp.Results) == 0 {
		return nil, noResults("NO_MATCH", "address not found")
	}

	best := resp.Results[0]
	return &maps.GeocodeResult{
		Address:          req.Address,
		FormattedAddress: best.FormattedAddress,
		Location:         toCoordinate(best.Geometry.Location),
	}, nil
}

// get performs a GET against path and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, path string, params url.Values, out any) error {
	params.Set("key", c.apiKey)
	endpoint := c.baseURL + path + "?" + params.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return c.transportError(ctx, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return &maps.Error{
			Provider: ProviderName,
			Code:     "READ_FAILED",
			Message:  "failed to read maps provider response",
			Err:      maps.ErrUpstreamUnavailable,
		}
	}

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp.StatusCode, body)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &maps.Error{
			Provider: ProviderName,
			Code:     "DECODE_FAILED",
			Message:  "maps provider returned an unreadable response",
			Err:      maps.ErrUpstreamUnavailable,
		}
	}
	return nil
}

func (c *Client) transportError(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		return &maps.Error{
			Provider: ProviderName,
			Code:     "CIRCUIT_OPEN",
			Message:  "maps provider is temporarily unavailable",
			Err:      maps.ErrUpstreamUnavailable,
		}
	case ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded):
		return &maps.Error{
			Provider: ProviderName,
			Code:     "TIMEOUT",
			Message:  "maps provider request timed out",
			Err:      maps.ErrUpstreamUnavailable,
		}
	default:
		return &maps.Error{
			Provider: ProviderName,
			Code:     "REQUEST_FAILED",
			Message:  "failed to reach maps provider",
			Err:      maps.ErrUpstreamUnavailable,
		}
	}
}

// handleErrorResponse maps non-200 HTTP responses to domain errors.
func (c *Client) handleErrorResponse(statusCode int, body []byte) error {
	var env envelope
	_ = json.Unmarshal(body, &env) //nolint:errcheck // message is optional

	message := env.ErrorMessage
	switch statusCode {
	case http.StatusTooManyRequests:
		return &maps.Error{
			Provider: ProviderName,
			Code:     "RATE_LIMIT",
			Message:  "API rate limit exceeded, please try again later",
			Err:      maps.ErrRateLimitExceeded,
		}
	case http.StatusForbidden, http.StatusUnauthorized:
		return &maps.Error{
			Provider: ProviderName,
			Code:     "FORBIDDEN",
			Message:  "API access denied - check API key configuration",
			Err:      maps.ErrUpstreamUnavailable,
		}
	case http.StatusBadRequest:
		if message == "" {
			message = "maps provider rejected the request"
		}
		return &maps.Error{
			Provider: ProviderName,
			Code:     "BAD_REQUEST",
			Message:  message,
			Err:      maps.ErrInvalidInput,
		}
	default:
		if statusCode >= 500 {
			return &maps.Error{
				Provider: ProviderName,
				Code:     fmt.Sprintf("SERVER_%d", statusCode),
				Message:  "maps provider is temporarily unavailable",
				Err:      maps.ErrUpstreamUnavailable,
			}
		}
		return &maps.Error{
			Provider: ProviderName,
			Code:     fmt.Sprintf("HTTP_%d", statusCode),
			Message:  fmt.Sprintf("maps provider returned status %d", statusCode),
			Err:      maps.ErrUpstreamUnavailable,
		}
	}
}

// handleStatus maps a non-OK Google status to a domain error.
func (c *Client) handleStatus(env envelope) error {
	switch env.Status {
	case statusZeroResults, statusNotFound:
		return noResults(env.Status, "no results found")
	case statusInvalidRequest, statusMaxWaypointsExceeded, statusMaxRouteLengthExceeded:
		message := env.ErrorMessage
		if message == "" {
			message = "maps provider rejected the request"
		}
		return &maps.Error{
			Provider: ProviderName,
			Code:     env.Status,
			Message:  message,
			Err:      maps.ErrInvalidInput,
		}
	case statusOverQueryLimit, statusOverDailyLimit:
		return &maps.Error{
			Provider: ProviderName,
			Code:     env.Status,
			Message:  "API quota exceeded, please try again later",
			Err:      maps.ErrRateLimitExceeded,
		}
	default:
		c.logger.Warn().
			Str("status", env.Status).
			Str("error_message", env.ErrorMessage).
			Msg("maps provider returned an error status")
		code := env.Status
		if code == "" {
			code = statusUnknownError
		}
		return &maps.Error{
			Provider: ProviderName,
			Code:     code,
			Message:  "maps provider is temporarily unavailable",
			Err:      maps.ErrUpstreamUnavailable,
		}
	}
}

func noResults(code, message string) error {
	return &maps.Error{
		Provider: ProviderName,
		Code:     code,
		Message:  message,
		Err:      maps.ErrNoResults,
	}
}

func formatLatLng(c maps.Coordinate) string {
	return strconv.FormatFloat(c.Lat, 'f', -1, 64) + "," + strconv.FormatFloat(c.Lon, 'f', -1, 64)
}

func toCoordinate(l latLng) maps.Coordinate {
	return maps.Coordinate{Lat: l.Lat, Lon: l.Lng}
}

// Ensure Client implements maps.Provider.
var _ maps.Provider = (*Client)(nil)
