package tour

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/gpstunnel/gpstunnel/internal/database"
)

// PostgresStore is a PostgreSQL implementation of Catalog and SessionStore.
type PostgresStore struct {
	db database.Querier
}

// NewPostgresStore creates a new PostgreSQL tour store.
func NewPostgresStore(db database.Querier) *PostgresStore {
	return &PostgresStore{db: db}
}

const routeColumns = `id, name, description, point_ids, active, created_at`

// ListActiveRoutes returns all active routes ordered by creation time.
func (r *PostgresStore) ListActiveRoutes(ctx context.Context) ([]*Route, error) {
	query := `SELECT ` + routeColumns + `
		FROM tour_routes
		WHERE active = TRUE
		ORDER BY created_at, id
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var routes []*Route
	for rows.Next() {
		route, err := scanRoute(rows)
		if err != nil {
			return nil, err
		}
		routes = append(routes, route)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return routes, nil
}

// GetRoute retrieves a route by ID.
func (r *PostgresStore) GetRoute(ctx context.Context, id string) (*Route, error) {
	query := `SELECT ` + routeColumns + `
		FROM tour_routes
		WHERE id = $1
	`

	route, err := scanRoute(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRouteNotFound
		}
		return nil, err
	}
	return route, nil
}

func scanRoute(row pgx.Row) (*Route, error) {
	var (
		route       Route
		description []byte
	)

	err := row.Scan(
		&route.ID,
		&route.Name,
		&description,
		&route.WaypointIDs,
		&route.Active,
		&route.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalText(description, &route.Description); err != nil {
		return nil, fmt.Errorf("decode route description: %w", err)
	}
	return &route, nil
}

// GetWaypoints returns the stored waypoints among ids.
func (r *PostgresStore) GetWaypoints(ctx context.Context, ids []string) ([]Waypoint, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `
		SELECT id, name, latitude, longitude, trigger_radius, sort_order, narration, audio, created_at
		FROM tour_points
		WHERE id = ANY($1)
	`

	rows, err := r.db.Query(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var waypoints []Waypoint
	for rows.Next() {
		var (
			wp        Waypoint
			narration []byte
			audio     []byte
		)
		err := rows.Scan(
			&wp.ID,
			&wp.Name,
			&wp.Position.Lat,
			&wp.Position.Lon,
			&wp.TriggerRadius,
			&wp.Order,
			&narration,
			&audio,
			&wp.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if err := unmarshalText(narration, &wp.Narration); err != nil {
			return nil, fmt.Errorf("decode narration of %s: %w", wp.ID, err)
		}
		if err := unmarshalText(audio, &wp.Audio); err != nil {
			return nil, fmt.Errorf("decode audio of %s: %w", wp.ID, err)
		}
		waypoints = append(waypoints, wp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return waypoints, nil
}

// CreateWaypoint stores a new waypoint.
func (r *PostgresStore) CreateWaypoint(ctx context.Context, wp *Waypoint) error {
	query := `
		INSERT INTO tour_points (id, name, latitude, longitude, trigger_radius, sort_order, narration, audio, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	narration, err := json.Marshal(wp.Narration)
	if err != nil {
		return err
	}
	audio, err := json.Marshal(wp.Audio)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query,
		wp.ID,
		wp.Name,
		wp.Position.Lat,
		wp.Position.Lon,
		wp.TriggerRadius,
		wp.Order,
		narration,
		audio,
		wp.CreatedAt,
	)
	return err
}

// CreateRoute stores a new route.
func (r *PostgresStore) CreateRoute(ctx context.Context, route *Route) error {
	query := `
		INSERT INTO tour_routes (id, name, description, point_ids, active, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	description, err := json.Marshal(route.Description)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(ctx, query,
		route.ID,
		route.Name,
		description,
		route.WaypointIDs,
		route.Active,
		route.CreatedAt,
	)
	return err
}

// CountRoutes returns the number of stored routes.
func (r *PostgresStore) CountRoutes(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM tour_routes`).Scan(&count)
	return count, err
}

const sessionColumns = `
	id, route_id, user_id, language, current_index,
	last_latitude, last_longitude, last_accuracy, last_reported_at,
	active, version, started_at, updated_at`

// Create stores a new session.
func (r *PostgresStore) Create(ctx context.Context, s *Session) error {
	query := `
		INSERT INTO tour_sessions (id, route_id, user_id, language, current_index, active, version, started_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(ctx, query,
		s.ID,
		s.RouteID,
		s.UserID,
		s.Language,
		s.CurrentIndex,
		s.Active,
		s.Version,
		s.StartedAt,
		s.UpdatedAt,
	)
	return err
}

// Get retrieves a session by ID.
func (r *PostgresStore) Get(ctx context.Context, id string) (*Session, error) {
	query := `SELECT ` + sessionColumns + `
		FROM tour_sessions
		WHERE id = $1
	`

	session, err := scanSession(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return session, nil
}

// UpdateProgress writes location and index in a single statement guarded
// by the expected version.
func (r *PostgresStore) UpdateProgress(ctx context.Context, id string, expectedVersion int64, update ProgressUpdate) (*Session, error) {
	query := `
		UPDATE tour_sessions SET
			current_index = $3,
			last_latitude = $4,
			last_longitude = $5,
			last_accuracy = $6,
			last_reported_at = $7,
			updated_at = $8,
			version = version + 1
		WHERE id = $1 AND version = $2
		RETURNING ` + sessionColumns

	loc := update.Location
	session, err := scanSession(r.db.QueryRow(ctx, query,
		id,
		expectedVersion,
		update.CurrentIndex,
		loc.Position.Lat,
		loc.Position.Lon,
		loc.Accuracy,
		loc.Timestamp,
		update.UpdatedAt,
	))
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	// No row matched: either the session is gone or its version moved on.
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM tour_sessions WHERE id = $1)`, id).Scan(&exists); err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrSessionNotFound
	}
	return nil, ErrVersionConflict
}

func scanSession(row pgx.Row) (*Session, error) {
	var (
		s          Session
		lat, lon   *float64
		accuracy   *float64
		reportedAt *time.Time
	)

	err := row.Scan(
		&s.ID,
		&s.RouteID,
		&s.UserID,
		&s.Language,
		&s.CurrentIndex,
		&lat,
		&lon,
		&accuracy,
		&reportedAt,
		&s.Active,
		&s.Version,
		&s.StartedAt,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lat != nil && lon != nil {
		s.LastKnownLocation = &Location{
			Position: Position{Lat: *lat, Lon: *lon},
			Accuracy: accuracy,
		}
		if reportedAt != nil {
			s.LastKnownLocation.Timestamp = *reportedAt
		}
	}

	return &s, nil
}

// Ping checks database connectivity.
func (r *PostgresStore) Ping(ctx context.Context) error {
	var one int
	return r.db.QueryRow(ctx, `SELECT 1`).Scan(&one)
}

func unmarshalText(data []byte, target *map[string]string) error {
	if len(data) == 0 {
		return nil
	}
	return json.Unmarshal(data, target)
}

// Ensure PostgresStore implements the store interfaces.
var (
	_ Catalog      = (*PostgresStore)(nil)
	_ SessionStore = (*PostgresStore)(nil)
	_ Pinger       = (*PostgresStore)(nil)
)
