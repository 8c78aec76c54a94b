package tour_test

import (
	"encoding/json"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpstunnel/gpstunnel/internal/tour"
)

func TestRouteGeoJSON(t *testing.T) {
	seq := amsterdamWaypoints()
	route := routeOf(seq)
	route.Description = map[string]string{"en": "Canals"}

	fc := tour.RouteGeoJSON(route, seq, "nl", "en")
	require.Len(t, fc.Features, 3)

	first := fc.Features[0]
	assert.Equal(t, orb.Point{4.9003, 52.3791}, first.Geometry)
	assert.Equal(t, "wp_central", first.ID)
	assert.Equal(t, "Welkom aan boord!", first.Properties["description"])
	assert.Equal(t, 100.0, first.Properties["triggerRadius"])

	line, ok := fc.Features[2].Geometry.(orb.LineString)
	require.True(t, ok)
	assert.Len(t, line, 2)
	assert.Equal(t, "Canals", fc.Features[2].Properties["description"])

	data, err := json.Marshal(fc)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"FeatureCollection"`)
}

func TestRouteGeoJSON_SingleWaypoint(t *testing.T) {
	seq := amsterdamWaypoints()[:1]
	fc := tour.RouteGeoJSON(routeOf(seq), seq, "en", "en")
	assert.Len(t, fc.Features, 1)
}
