package googlemaps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpstunnel/gpstunnel/internal/maps"
	"github.com/gpstunnel/gpstunnel/internal/provider/resilience"
)

const directionsFixture = `{
  "status": "OK",
  "routes": [
    {
      "summary": "Prins Hendrikkade",
      "bounds": {
        "northeast": {"lat": 52.3791, "lng": 4.9003},
        "southwest": {"lat": 52.3743, "lng": 4.8831}
      },
      "overview_polyline": {"points": "_p~iF~ps|U_ulLnnqC"},
      "legs": [
        {
          "distance": {"text": "1.6 km", "value": 1612},
          "duration": {"text": "20 mins", "value": 1203},
          "start_address": "Stationsplein, Amsterdam",
          "end_address": "Prinsengracht 281, Amsterdam",
          "start_location": {"lat": 52.3791, "lng": 4.9003},
          "end_location": {"lat": 52.3743, "lng": 4.8831},
          "steps": [
            {
              "html_instructions": "Head <b>west</b> on <b>Stationsplein</b>",
              "distance": {"text": "0.2 km", "value": 210},
              "duration": {"text": "3 mins", "value": 160},
              "start_location": {"lat": 52.3791, "lng": 4.9003},
              "end_location": {"lat": 52.3785, "lng": 4.8975},
              "polyline": {"points": "abc"}
            },
            {
              "html_instructions": "Turn <b>left</b> onto <b>Raadhuisstraat</b>",
              "distance": {"text": "1.4 km", "value": 1402},
              "duration": {"text": "17 mins", "value": 1043},
              "start_location": {"lat": 52.3785, "lng": 4.8975},
              "end_location": {"lat": 52.3743, "lng": 4.8831},
              "maneuver": "turn-left",
              "polyline": {"points": "def"}
            }
          ]
        }
      ]
    },
    {
      "summary": "alternative",
      "overview_polyline": {"points": ""},
      "legs": [{"distance": {"text": "2 km", "value": 2000}, "duration": {"text": "25 mins", "value": 1500}}]
    }
  ]
}`

func testClient(server *httptest.Server) *Client {
	return NewClient(ClientConfig{
		APIKey:     "mock-key",
		BaseURL:    server.URL,
		HTTPClient: server.Client(),
		Logger:     zerolog.Nop(),
	})
}

func serve(t *testing.T, expectedPath, body string, status int, check func(r *http.Request)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, expectedPath, r.URL.Path)
		assert.Equal(t, "mock-key", r.URL.Query().Get("key"))
		if check != nil {
			check(r)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestClient_Directions_Success(t *testing.T) {
	server := serve(t, directionsPath, directionsFixture, http.StatusOK, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "52.3791,4.9003", q.Get("origin"))
		assert.Equal(t, "52.3743,4.8831", q.Get("destination"))
		assert.Equal(t, "walking", q.Get("mode"))
		assert.Equal(t, "nl", q.Get("language"))
		assert.Equal(t, "ferries|tolls", q.Get("avoid"))
		assert.Equal(t, "true", q.Get("alternatives"))
	})

	d, err := testClient(server).Directions(context.Background(), maps.DirectionsRequest{
		Origin:      maps.Coordinate{Lat: 52.3791, Lon: 4.9003},
		Destination: maps.Coordinate{Lat: 52.3743, Lon: 4.8831},
		Mode:        maps.ModeWalking,
		Language:    "nl",
		Avoid:       []string{"ferries", "tolls"},
	})
	require.NoError(t, err)

	assert.Equal(t, "1.6 km", d.DistanceText)
	assert.Equal(t, 1612, d.DistanceMeters)
	assert.Equal(t, "20 mins", d.DurationText)
	assert.Equal(t, 1203, d.DurationSeconds)
	assert.Equal(t, "Stationsplein, Amsterdam", d.StartAddress)
	assert.Equal(t, "Prinsengracht 281, Amsterdam", d.EndAddress)
	assert.Equal(t, "_p~iF~ps|U_ulLnnqC", d.OverviewPolyline)

	require.Len(t, d.Path, 2)
	assert.InDelta(t, 38.5, d.Path[0].Lat, 1e-6)
	assert.InDelta(t, -120.2, d.Path[0].Lon, 1e-6)

	require.Len(t, d.Steps, 2)
	assert.Equal(t, "Head <b>west</b> on <b>Stationsplein</b>", d.Steps[0].Instruction)
	assert.Equal(t, "", d.Steps[0].Maneuver)
	assert.Equal(t, "turn-left", d.Steps[1].Maneuver)
	assert.Equal(t, 1402, d.Steps[1].DistanceMeters)
	assert.InDelta(t, 4.8975, d.Steps[1].Start.Lon, 1e-9)

	require.NotNil(t, d.Bounds)
	assert.InDelta(t, 52.3791, d.Bounds.Northeast.Lat, 1e-9)
	assert.InDelta(t, 4.8831, d.Bounds.Southwest.Lon, 1e-9)
}

func TestClient_Directions_NoAvoidParam(t *testing.T) {
	server := serve(t, directionsPath, directionsFixture, http.StatusOK, func(r *http.Request) {
		_, ok := r.URL.Query()["avoid"]
		assert.False(t, ok)
	})

	_, err := testClient(server).Directions(context.Background(), maps.DirectionsRequest{Mode: maps.ModeDriving, Language: "en"})
	require.NoError(t, err)
}

func TestClient_Directions_NoRoute(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "zero results", body: `{"status":"ZERO_RESULTS","routes":[]}`},
		{name: "endpoint not found", body: `{"status":"NOT_FOUND","routes":[]}`},
		{name: "ok without routes", body: `{"status":"OK","routes":[]}`},
		{name: "route without legs", body: `{"status":"OK","routes":[{"legs":[]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serve(t, directionsPath, tt.body, http.StatusOK, nil)

			_, err := testClient(server).Directions(context.Background(), maps.DirectionsRequest{Mode: maps.ModeDriving})
			assert.ErrorIs(t, err, maps.ErrNoResults)
		})
	}
}

func TestClient_StatusMapping(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		expected error
		code     string
	}{
		{name: "invalid request", body: `{"status":"INVALID_REQUEST","error_message":"Invalid request. Missing the 'origin' parameter."}`, expected: maps.ErrInvalidInput, code: "INVALID_REQUEST"},
		{name: "route too long", body: `{"status":"MAX_ROUTE_LENGTH_EXCEEDED"}`, expected: maps.ErrInvalidInput, code: "MAX_ROUTE_LENGTH_EXCEEDED"},
		{name: "over query limit", body: `{"status":"OVER_QUERY_LIMIT"}`, expected: maps.ErrRateLimitExceeded, code: "OVER_QUERY_LIMIT"},
		{name: "request denied", body: `{"status":"REQUEST_DENIED","error_message":"The provided API key is invalid."}`, expected: maps.ErrUpstreamUnavailable, code: "REQUEST_DENIED"},
		{name: "unknown error", body: `{"status":"UNKNOWN_ERROR"}`, expected: maps.ErrUpstreamUnavailable, code: "UNKNOWN_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serve(t, geocodePath, tt.body, http.StatusOK, nil)

			_, err := testClient(server).Geocode(context.Background(), maps.GeocodeRequest{Address: "Dam 1", Language: "en"})
			require.ErrorIs(t, err, tt.expected)

			var mapsErr *maps.Error
			require.ErrorAs(t, err, &mapsErr)
			assert.Equal(t, ProviderName, mapsErr.Provider)
			assert.Equal(t, tt.code, mapsErr.Code)
		})
	}
}

func TestClient_HTTPErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		expected error
	}{
		{name: "rate limited", status: http.StatusTooManyRequests, expected: maps.ErrRateLimitExceeded},
		{name: "forbidden", status: http.StatusForbidden, expected: maps.ErrUpstreamUnavailable},
		{name: "bad request", status: http.StatusBadRequest, expected: maps.ErrInvalidInput},
		{name: "server error", status: http.StatusServiceUnavailable, expected: maps.ErrUpstreamUnavailable},
		{name: "teapot", status: http.StatusTeapot, expected: maps.ErrUpstreamUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := serve(t, textSearchPath, `{"error_message":"nope"}`, tt.status, nil)

			_, err := testClient(server).SearchPlaces(context.Background(), maps.PlaceSearchRequest{Query: "cafe", Language: "en"})
			assert.ErrorIs(t, err, tt.expected)
		})
	}
}

func TestClient_SearchPlaces(t *testing.T) {
	body := `{
  "status": "OK",
  "results": [
    {
      "place_id": "ChIJ5Ra7we4JxkcRhYVAaq5zQ9U",
      "name": "Anne Frank House",
      "formatted_address": "Westermarkt 20, 1016 DK Amsterdam, Netherlands",
      "geometry": {"location": {"lat": 52.3752, "lng": 4.8840}},
      "types": ["museum", "tourist_attraction"],
      "rating": 4.5
    },
    {
      "place_id": "no-geometry",
      "name": "Broken"
    },
    {
      "place_id": "ChIJ-westerkerk",
      "name": "Westerkerk",
      "geometry": {"location": {"lat": 52.3743, "lng": 4.8831}}
    }
  ]
}`
	server := serve(t, textSearchPath, body, http.StatusOK, func(r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "anne frank", q.Get("query"))
		assert.Equal(t, "52.37,4.89", q.Get("location"))
		assert.Equal(t, "1500", q.Get("radius"))
		assert.Equal(t, "en", q.Get("language"))
	})

	places, err := testClient(server).SearchPlaces(context.Background(), maps.PlaceSearchRequest{
		Query:    "anne frank",
		Bias:     &maps.Coordinate{Lat: 52.37, Lon: 4.89},
		Radius:   1500,
		Language: "en",
	})
	require.NoError(t, err)
	require.Len(t, places, 2)

	assert.Equal(t, "ChIJ5Ra7we4JxkcRhYVAaq5zQ9U", places[0].ID)
	assert.Equal(t, "Westermarkt 20, 1016 DK Amsterdam, Netherlands", places[0].Address)
	assert.Equal(t, []string{"museum", "tourist_attraction"}, places[0].Types)
	require.NotNil(t, places[0].Rating)
	assert.InDelta(t, 4.5, *places[0].Rating, 1e-9)

	assert.Equal(t, "Westerkerk", places[1].Name)
	assert.Nil(t, places[1].Rating)
}

func TestClient_SearchPlaces_NoBiasWithoutLocation(t *testing.T) {
	server := serve(t, textSearchPath, `{"status":"ZERO_RESULTS","results":[]}`, http.StatusOK, func(r *http.Request) {
		q := r.URL.Query()
		_, hasLocation := q["location"]
		_, hasRadius := q["radius"]
		assert.False(t, hasLocation)
		assert.False(t, hasRadius)
	})

	places, err := testClient(server).SearchPlaces(context.Background(), maps.PlaceSearchRequest{Query: "cafe", Radius: 5000, Language: "en"})
	require.NoError(t, err)
	assert.Empty(t, places)
}

func TestClient_Geocode(t *testing.T) {
	body := `{
  "status": "OK",
  "results": [
    {"formatted_address": "Dam, 1012 JS Amsterdam, Netherlands", "geometry": {"location": {"lat": 52.3731, "lng": 4.8926}}},
    {"formatted_address": "Dam, Zaandam", "geometry": {"location": {"lat": 52.43, "lng": 4.82}}}
  ]
}`
	server := serve(t, geocodePath, body, http.StatusOK, func(r *http.Request) {
		assert.Equal(t, "Dam 1", r.URL.Query().Get("address"))
		assert.Equal(t, "ja", r.URL.Query().Get("language"))
	})

	res, err := testClient(server).Geocode(context.Background(), maps.GeocodeRequest{Address: "Dam 1", Language: "ja"})
	require.NoError(t, err)

	assert.Equal(t, "Dam 1", res.Address)
	assert.Equal(t, "Dam, 1012 JS Amsterdam, Netherlands", res.FormattedAddress)
	assert.InDelta(t, 52.3731, res.Location.Lat, 1e-9)
	assert.InDelta(t, 4.8926, res.Location.Lon, 1e-9)
}

func TestClient_Geocode_Empty(t *testing.T) {
	server := serve(t, geocodePath, `{"status":"ZERO_RESULTS","results":[]}`, http.StatusOK, nil)

	_, err := testClient(server).Geocode(context.Background(), maps.GeocodeRequest{Address: "nowhere", Language: "en"})
	assert.ErrorIs(t, err, maps.ErrNoResults)
}

func TestClient_MalformedBody(t *testing.T) {
	server := serve(t, geocodePath, `{not json`, http.StatusOK, nil)

	_, err := testClient(server).Geocode(context.Background(), maps.GeocodeRequest{Address: "Dam 1", Language: "en"})
	assert.ErrorIs(t, err, maps.ErrUpstreamUnavailable)
}

type failingDoer struct {
	err error
}

func (f *failingDoer) Do(*http.Request) (*http.Response, error) {
	return nil, f.err
}

func TestClient_TransportErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code string
	}{
		{name: "circuit open", err: resilience.ErrCircuitOpen, code: "CIRCUIT_OPEN"},
		{name: "deadline", err: context.DeadlineExceeded, code: "TIMEOUT"},
		{name: "network", err: errors.New("connection refused"), code: "REQUEST_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewClient(ClientConfig{
				APIKey:     "mock-key",
				BaseURL:    "http://maps.invalid",
				HTTPClient: &failingDoer{err: tt.err},
				Logger:     zerolog.Nop(),
			})

			_, err := client.Geocode(context.Background(), maps.GeocodeRequest{Address: "Dam 1", Language: "en"})
			require.ErrorIs(t, err, maps.ErrUpstreamUnavailable)

			var mapsErr *maps.Error
			require.ErrorAs(t, err, &mapsErr)
			assert.Equal(t, tt.code, mapsErr.Code)
		})
	}
}

func TestNewClient_DefaultsToResilientClient(t *testing.T) {
	registry := resilience.NewRegistry()
	client := NewClient(ClientConfig{APIKey: "k", Registry: registry, Logger: zerolog.Nop()})

	assert.Equal(t, DefaultBaseURL, client.baseURL)
	assert.Equal(t, ProviderName, client.Name())
	assert.NotNil(t, registry.GetHealth(ProviderName))
}
