package tour

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MongoDB collection names.
const (
	routesCollection   = "tour_routes"
	pointsCollection   = "tour_points"
	sessionsCollection = "tour_sessions"
)

// MongoStore is a MongoDB implementation of Catalog and SessionStore.
// Documents use the field names of the existing tour collections.
type MongoStore struct {
	db       *mongo.Database
	routes   *mongo.Collection
	points   *mongo.Collection
	sessions *mongo.Collection
}

// NewMongoStore creates a store on db.
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{
		db:       db,
		routes:   db.Collection(routesCollection),
		points:   db.Collection(pointsCollection),
		sessions: db.Collection(sessionsCollection),
	}
}

type routeDocument struct {
	ID           string            `bson:"id"`
	Name         string            `bson:"name"`
	Description  map[string]string `bson:"description"`
	TourPointIDs []string          `bson:"tour_point_ids"`
	IsActive     bool              `bson:"is_active"`
	CreatedAt    time.Time         `bson:"created_at"`
}

type pointDocument struct {
	ID            string            `bson:"id"`
	Name          string            `bson:"name"`
	Latitude      float64           `bson:"latitude"`
	Longitude     float64           `bson:"longitude"`
	TriggerRadius float64           `bson:"trigger_radius"`
	Order         int               `bson:"order"`
	Description   map[string]string `bson:"description"`
	AudioContent  map[string]string `bson:"audio_content"`
	CreatedAt     time.Time         `bson:"created_at"`
}

type locationDocument struct {
	Latitude  float64   `bson:"latitude"`
	Longitude float64   `bson:"longitude"`
	Accuracy  *float64  `bson:"accuracy,omitempty"`
	Timestamp time.Time `bson:"timestamp"`
}

type sessionDocument struct {
	ID                string            `bson:"id"`
	RouteID           string            `bson:"route_id"`
	UserID            string            `bson:"user_id"`
	Language          string            `bson:"language"`
	CurrentPointIndex int               `bson:"current_point_index"`
	LastKnownLocation *locationDocument `bson:"last_known_location,omitempty"`
	IsActive          bool              `bson:"is_active"`
	Version           int64             `bson:"version"`
	StartedAt         time.Time         `bson:"started_at"`
	UpdatedAt         time.Time         `bson:"updated_at"`
}

// EnsureIndexes creates unique id indexes on the tour collections.
func (m *MongoStore) EnsureIndexes(ctx context.Context) error {
	unique := mongo.IndexModel{
		Keys:    bson.D{{Key: "id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}
	for _, coll := range []*mongo.Collection{m.routes, m.points, m.sessions} {
		if _, err := coll.Indexes().CreateOne(ctx, unique); err != nil {
			return fmt.Errorf("create index on %s: %w", coll.Name(), err)
		}
	}
	return nil
}

// ListActiveRoutes returns all active routes ordered by creation time.
func (m *MongoStore) ListActiveRoutes(ctx context.Context) ([]*Route, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "id", Value: 1}})
	cursor, err := m.routes.Find(ctx, bson.M{"is_active": true}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []routeDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	routes := make([]*Route, 0, len(docs))
	for i := range docs {
		routes = append(routes, docs[i].toRoute())
	}
	return routes, nil
}

// GetRoute retrieves a route by ID.
func (m *MongoStore) GetRoute(ctx context.Context, id string) (*Route, error) {
	var doc routeDocument
	if err := m.routes.FindOne(ctx, bson.M{"id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrRouteNotFound
		}
		return nil, err
	}
	return doc.toRoute(), nil
}

// GetWaypoints returns the stored waypoints among ids.
func (m *MongoStore) GetWaypoints(ctx context.Context, ids []string) ([]Waypoint, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	cursor, err := m.points.Find(ctx, bson.M{"id": bson.M{"$in": ids}})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []pointDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, err
	}

	waypoints := make([]Waypoint, 0, len(docs))
	for _, doc := range docs {
		waypoints = append(waypoints, doc.toWaypoint())
	}
	return waypoints, nil
}

// CreateWaypoint stores a new waypoint.
func (m *MongoStore) CreateWaypoint(ctx context.Context, wp *Waypoint) error {
	_, err := m.points.InsertOne(ctx, pointDocument{
		ID:            wp.ID,
		Name:          wp.Name,
		Latitude:      wp.Position.Lat,
		Longitude:     wp.Position.Lon,
		TriggerRadius: wp.TriggerRadius,
		Order:         wp.Order,
		Description:   wp.Narration,
		AudioContent:  wp.Audio,
		CreatedAt:     wp.CreatedAt,
	})
	return err
}

// CreateRoute stores a new route.
func (m *MongoStore) CreateRoute(ctx context.Context, route *Route) error {
	_, err := m.routes.InsertOne(ctx, routeDocument{
		ID:           route.ID,
		Name:         route.Name,
		Description:  route.Description,
		TourPointIDs: route.WaypointIDs,
		IsActive:     route.Active,
		CreatedAt:    route.CreatedAt,
	})
	return err
}

// CountRoutes returns the number of stored routes.
func (m *MongoStore) CountRoutes(ctx context.Context) (int, error) {
	n, err := m.routes.CountDocuments(ctx, bson.M{})
	return int(n), err
}

// Create stores a new session.
func (m *MongoStore) Create(ctx context.Context, s *Session) error {
	_, err := m.sessions.InsertOne(ctx, sessionDocument{
		ID:                s.ID,
		RouteID:           s.RouteID,
		UserID:            s.UserID,
		Language:          s.Language,
		CurrentPointIndex: s.CurrentIndex,
		IsActive:          s.Active,
		Version:           s.Version,
		StartedAt:         s.StartedAt,
		UpdatedAt:         s.UpdatedAt,
	})
	return err
}

// Get retrieves a session by ID.
func (m *MongoStore) Get(ctx context.Context, id string) (*Session, error) {
	var doc sessionDocument
	if err := m.sessions.FindOne(ctx, bson.M{"id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrSessionNotFound
		}
		return nil, err
	}
	return doc.toSession(), nil
}

// UpdateProgress updates the session document if its version still equals
// expectedVersion.
func (m *MongoStore) UpdateProgress(ctx context.Context, id string, expectedVersion int64, update ProgressUpdate) (*Session, error) {
	loc := update.Location
	change := bson.M{
		"$set": bson.M{
			"current_point_index": update.CurrentIndex,
			"last_known_location": locationDocument{
				Latitude:  loc.Position.Lat,
				Longitude: loc.Position.Lon,
				Accuracy:  loc.Accuracy,
				Timestamp: loc.Timestamp,
			},
			"updated_at": update.UpdatedAt,
		},
		"$inc": bson.M{"version": 1},
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var doc sessionDocument
	err := m.sessions.FindOneAndUpdate(ctx, versionFilter(id, expectedVersion), change, opts).Decode(&doc)
	if err == nil {
		return doc.toSession(), nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, err
	}

	n, err := m.sessions.CountDocuments(ctx, bson.M{"id": id})
	if err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, ErrSessionNotFound
	}
	return nil, ErrVersionConflict
}

// versionFilter matches the session at expectedVersion. Documents written
// without a version field decode as version 0, so 0 also matches them.
func versionFilter(id string, expectedVersion int64) bson.M {
	if expectedVersion != 0 {
		return bson.M{"id": id, "version": expectedVersion}
	}
	return bson.M{
		"id": id,
		"$or": bson.A{
			bson.M{"version": int64(0)},
			bson.M{"version": bson.M{"$exists": false}},
		},
	}
}

// Ping checks connectivity to the primary.
func (m *MongoStore) Ping(ctx context.Context) error {
	return m.db.Client().Ping(ctx, readpref.Primary())
}

func (d *routeDocument) toRoute() *Route {
	return &Route{
		ID:          d.ID,
		Name:        d.Name,
		Description: d.Description,
		WaypointIDs: d.TourPointIDs,
		Active:      d.IsActive,
		CreatedAt:   d.CreatedAt,
	}
}

func (d *pointDocument) toWaypoint() Waypoint {
	radius := d.TriggerRadius
	if radius <= 0 {
		radius = DefaultTriggerRadius
	}
	return Waypoint{
		ID:            d.ID,
		Name:          d.Name,
		Position:      Position{Lat: d.Latitude, Lon: d.Longitude},
		TriggerRadius: radius,
		Order:         d.Order,
		Narration:     d.Description,
		Audio:         d.AudioContent,
		CreatedAt:     d.CreatedAt,
	}
}

func (d *sessionDocument) toSession() *Session {
	s := &Session{
		ID:           d.ID,
		RouteID:      d.RouteID,
		UserID:       d.UserID,
		Language:     d.Language,
		CurrentIndex: d.CurrentPointIndex,
		Active:       d.IsActive,
		Version:      d.Version,
		StartedAt:    d.StartedAt,
		UpdatedAt:    d.UpdatedAt,
	}
	if loc := d.LastKnownLocation; loc != nil {
		s.LastKnownLocation = &Location{
			Position:  Position{Lat: loc.Latitude, Lon: loc.Longitude},
			Accuracy:  loc.Accuracy,
			Timestamp: loc.Timestamp,
		}
	}
	return s
}

// Ensure MongoStore implements the store interfaces.
var (
	_ Catalog      = (*MongoStore)(nil)
	_ SessionStore = (*MongoStore)(nil)
	_ Pinger       = (*MongoStore)(nil)
)
