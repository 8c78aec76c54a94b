package tour

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geo"
)

// Point converts the position to an orb point (lon, lat order).
func (p Position) Point() orb.Point {
	return orb.Point{p.Lon, p.Lat}
}

// DistanceMeters returns the great-circle distance between two positions
// using the haversine formula on a sphere of radius orb.EarthRadius
// (6,378,137 m).
func DistanceMeters(a, b Position) float64 {
	return geo.DistanceHaversine(a.Point(), b.Point())
}

// Progression is the outcome of evaluating one location report.
type Progression struct {
	// PreviousIndex is the index the evaluation started from.
	PreviousIndex int
	// CurrentIndex is the index after the evaluation.
	CurrentIndex int
	// Advanced reports whether the report entered the target's geofence.
	Advanced bool
	// Completed reports whether CurrentIndex is past the last waypoint.
	Completed bool
	// Target is the waypoint the report was checked against, if any.
	Target *Waypoint
	// DistanceMeters is the distance to Target, zero when there is none.
	DistanceMeters float64
}

// Evaluate applies the geofence trigger rule: if loc lies within the
// trigger radius of seq[currentIndex] the index advances by exactly one.
// A report never advances more than one step, even when it is also inside
// a later waypoint's geofence, so no narration is skipped.
func Evaluate(seq []Waypoint, currentIndex int, loc Location) Progression {
	if currentIndex < 0 {
		currentIndex = 0
	}

	result := Progression{
		PreviousIndex: currentIndex,
		CurrentIndex:  currentIndex,
	}

	if currentIndex >= len(seq) {
		result.CurrentIndex = len(seq)
		result.Completed = true
		return result
	}

	target := seq[currentIndex]
	result.Target = &target
	result.DistanceMeters = DistanceMeters(loc.Position, target.Position)

	if result.DistanceMeters <= target.TriggerRadius {
		result.CurrentIndex = currentIndex + 1
		result.Advanced = true
	}
	result.Completed = result.CurrentIndex >= len(seq)

	return result
}
