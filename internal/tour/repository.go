package tour

import "context"

// Catalog is the persistent store of routes and their waypoints.
type Catalog interface {
	// ListActiveRoutes returns all routes with Active set.
	ListActiveRoutes(ctx context.Context) ([]*Route, error)

	// GetRoute retrieves a route by ID.
	// Returns ErrRouteNotFound if the route doesn't exist.
	GetRoute(ctx context.Context, id string) (*Route, error)

	// GetWaypoints returns the waypoints with the given IDs in no
	// particular order. Unknown IDs are skipped.
	GetWaypoints(ctx context.Context, ids []string) ([]Waypoint, error)

	// CreateWaypoint stores a new waypoint.
	CreateWaypoint(ctx context.Context, wp *Waypoint) error

	// CreateRoute stores a new route.
	CreateRoute(ctx context.Context, route *Route) error

	// CountRoutes returns the number of stored routes, active or not.
	CountRoutes(ctx context.Context) (int, error)
}

// SessionStore persists session state between requests.
type SessionStore interface {
	// Create stores a new session.
	Create(ctx context.Context, s *Session) error

	// Get retrieves a session by ID.
	// Returns ErrSessionNotFound if the session doesn't exist.
	Get(ctx context.Context, id string) (*Session, error)

	// UpdateProgress writes the location and index of a session in one
	// atomic step, provided the stored version still equals
	// expectedVersion. The stored version is incremented on success.
	// Returns ErrVersionConflict when the version differs and
	// ErrSessionNotFound when the session doesn't exist.
	UpdateProgress(ctx context.Context, id string, expectedVersion int64, update ProgressUpdate) (*Session, error)
}

// Pinger is implemented by stores that can report connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}
