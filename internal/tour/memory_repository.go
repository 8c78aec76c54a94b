package tour

import (
	"context"
	"sort"
	"sync"
)

// InMemoryStore implements Catalog and SessionStore in memory.
// It is used in tests and when STORE_BACKEND=memory.
type InMemoryStore struct {
	mu        sync.RWMutex
	routes    map[string]*Route
	waypoints map[string]*Waypoint
	sessions  map[string]*Session
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		routes:    make(map[string]*Route),
		waypoints: make(map[string]*Waypoint),
		sessions:  make(map[string]*Session),
	}
}

// ListActiveRoutes returns all active routes ordered by creation time.
func (s *InMemoryStore) ListActiveRoutes(_ context.Context) ([]*Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	routes := make([]*Route, 0, len(s.routes))
	for _, r := range s.routes {
		if r.Active {
			routes = append(routes, copyRoute(r))
		}
	}
	sort.Slice(routes, func(i, j int) bool {
		if !routes[i].CreatedAt.Equal(routes[j].CreatedAt) {
			return routes[i].CreatedAt.Before(routes[j].CreatedAt)
		}
		return routes[i].ID < routes[j].ID
	})
	return routes, nil
}

// GetRoute retrieves a route by ID.
func (s *InMemoryStore) GetRoute(_ context.Context, id string) (*Route, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, ok := s.routes[id]
	if !ok {
		return nil, ErrRouteNotFound
	}
	return copyRoute(r), nil
}

// GetWaypoints returns the stored waypoints among ids.
func (s *InMemoryStore) GetWaypoints(_ context.Context, ids []string) ([]Waypoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]Waypoint, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if wp, ok := s.waypoints[id]; ok {
			result = append(result, copyWaypoint(wp))
		}
	}
	return result, nil
}

// CreateWaypoint stores a new waypoint.
func (s *InMemoryStore) CreateWaypoint(_ context.Context, wp *Waypoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cpy := copyWaypoint(wp)
	s.waypoints[wp.ID] = &cpy
	return nil
}

// CreateRoute stores a new route.
func (s *InMemoryStore) CreateRoute(_ context.Context, route *Route) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.routes[route.ID] = copyRoute(route)
	return nil
}

// CountRoutes returns the number of stored routes.
func (s *InMemoryStore) CountRoutes(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.routes), nil
}

// Create stores a new session.
func (s *InMemoryStore) Create(_ context.Context, sess *Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[sess.ID] = copySession(sess)
	return nil
}

// Get retrieves a session by ID.
func (s *InMemoryStore) Get(_ context.Context, id string) (*Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return copySession(sess), nil
}

// UpdateProgress applies update if the session is still at expectedVersion.
func (s *InMemoryStore) UpdateProgress(_ context.Context, id string, expectedVersion int64, update ProgressUpdate) (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	if sess.Version != expectedVersion {
		return nil, ErrVersionConflict
	}

	loc := update.Location
	sess.LastKnownLocation = &loc
	sess.CurrentIndex = update.CurrentIndex
	sess.UpdatedAt = update.UpdatedAt
	sess.Version++

	return copySession(sess), nil
}

// Ping always succeeds.
func (s *InMemoryStore) Ping(_ context.Context) error {
	return nil
}

func copyRoute(r *Route) *Route {
	cpy := *r
	cpy.WaypointIDs = append([]string(nil), r.WaypointIDs...)
	cpy.Description = copyStrings(r.Description)
	return &cpy
}

func copyWaypoint(wp *Waypoint) Waypoint {
	cpy := *wp
	cpy.Narration = copyStrings(wp.Narration)
	cpy.Audio = copyStrings(wp.Audio)
	return cpy
}

func copySession(sess *Session) *Session {
	cpy := *sess
	if sess.LastKnownLocation != nil {
		loc := *sess.LastKnownLocation
		if loc.Accuracy != nil {
			acc := *loc.Accuracy
			loc.Accuracy = &acc
		}
		cpy.LastKnownLocation = &loc
	}
	return &cpy
}

func copyStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	cpy := make(map[string]string, len(m))
	for k, v := range m {
		cpy[k] = v
	}
	return cpy
}

// Ensure InMemoryStore implements the store interfaces.
var (
	_ Catalog      = (*InMemoryStore)(nil)
	_ SessionStore = (*InMemoryStore)(nil)
	_ Pinger       = (*InMemoryStore)(nil)
)
