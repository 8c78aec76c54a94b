package tour

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// RouteGeoJSON renders an ordered waypoint sequence as a FeatureCollection:
// one Point feature per waypoint followed by a LineString through all of
// them in order. The line is omitted for routes with fewer than two
// waypoints.
func RouteGeoJSON(route *Route, seq []Waypoint, lang, fallback string) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()

	line := make(orb.LineString, 0, len(seq))
	for i, wp := range seq {
		f := geojson.NewFeature(wp.Position.Point())
		f.ID = wp.ID
		f.Properties["kind"] = "waypoint"
		f.Properties["index"] = i
		f.Properties["order"] = wp.Order
		f.Properties["name"] = wp.Name
		f.Properties["triggerRadius"] = wp.TriggerRadius
		f.Properties["description"] = Localize(wp.Narration, lang, fallback)
		fc.Append(f)

		line = append(line, wp.Position.Point())
	}

	if len(line) >= 2 {
		f := geojson.NewFeature(line)
		f.ID = route.ID
		f.Properties["kind"] = "route"
		f.Properties["name"] = route.Name
		f.Properties["description"] = Localize(route.Description, lang, fallback)
		fc.Append(f)
	}

	return fc
}
