// Package tour provides the tour progression engine: waypoint ordering,
// geofence-triggered advancement and multilingual content resolution.
package tour

import (
	"errors"
	"time"
)

// DefaultTriggerRadius is the geofence radius in meters applied when a
// waypoint is created without one.
const DefaultTriggerRadius = 50.0

// DefaultLanguage is the language every multilingual field must carry and
// the one content lookups fall back to.
const DefaultLanguage = "en"

// Repository errors.
var (
	ErrRouteNotFound    = errors.New("tour route not found")
	ErrSessionNotFound  = errors.New("tour session not found")
	ErrWaypointNotFound = errors.New("tour point not found")

	// ErrVersionConflict is returned by SessionStore.UpdateProgress when the
	// stored session changed since it was read.
	ErrVersionConflict = errors.New("tour session was modified concurrently")
)

// Position is a WGS84 coordinate.
type Position struct {
	Lat float64
	Lon float64
}

// Waypoint is a narrated point on a route.
type Waypoint struct {
	ID            string
	Name          string
	Position      Position
	TriggerRadius float64 // meters
	Order         int

	// Narration and Audio map a language code to text / audio reference.
	Narration map[string]string
	Audio     map[string]string

	CreatedAt time.Time
}

// Route is an ordered collection of waypoints forming one tour.
type Route struct {
	ID          string
	Name        string
	Description map[string]string

	// WaypointIDs references the route's waypoints. List position is only
	// used to break ties between equal Order values.
	WaypointIDs []string

	Active    bool
	CreatedAt time.Time
}

// Location is a position reported by a user's device.
type Location struct {
	Position  Position
	Accuracy  *float64 // meters
	Timestamp time.Time
}

// Session is one user's traversal of one route.
type Session struct {
	ID       string
	RouteID  string
	UserID   string
	Language string

	// CurrentIndex indexes the route's ordered waypoint sequence.
	// CurrentIndex == len(sequence) means the tour is complete.
	CurrentIndex int

	LastKnownLocation *Location
	Active            bool

	// Version increases on every stored progress update.
	Version int64

	StartedAt time.Time
	UpdatedAt time.Time
}

// ProgressUpdate is the state written atomically by a location report.
type ProgressUpdate struct {
	CurrentIndex int
	Location     Location
	UpdatedAt    time.Time
}

// Progress is the human readable position within a tour.
type Progress struct {
	Current int
	Total   int
}
