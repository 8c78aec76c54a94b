package tour_test

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpstunnel/gpstunnel/internal/tour"
)

var sessionColumns = []string{
	"id", "route_id", "user_id", "language", "current_index",
	"last_latitude", "last_longitude", "last_accuracy", "last_reported_at",
	"active", "version", "started_at", "updated_at",
}

func newMockStore(t *testing.T) (pgxmock.PgxPoolIface, *tour.PostgresStore) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock, tour.NewPostgresStore(mock)
}

func TestPostgresStore_GetRoute(t *testing.T) {
	mock, store := newMockStore(t)
	ctx := context.Background()
	created := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery(`SELECT id, name, description, point_ids, active, created_at\s+FROM tour_routes\s+WHERE id = \$1`).
		WithArgs("route_1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "description", "point_ids", "active", "created_at"}).
			AddRow("route_1", "Canal Tour", []byte(`{"en":"Canals","nl":"Grachten"}`), []string{"wp_a", "wp_b"}, true, created))

	route, err := store.GetRoute(ctx, "route_1")
	require.NoError(t, err)
	assert.Equal(t, "Canal Tour", route.Name)
	assert.Equal(t, "Grachten", route.Description["nl"])
	assert.Equal(t, []string{"wp_a", "wp_b"}, route.WaypointIDs)
	assert.True(t, route.Active)
	assert.Equal(t, created, route.CreatedAt)

	mock.ExpectQuery(`FROM tour_routes`).
		WithArgs("route_missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.GetRoute(ctx, "route_missing")
	assert.ErrorIs(t, err, tour.ErrRouteNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetWaypoints(t *testing.T) {
	mock, store := newMockStore(t)
	ctx := context.Background()

	mock.ExpectQuery(`FROM tour_points\s+WHERE id = ANY\(\$1\)`).
		WithArgs([]string{"wp_a", "wp_b"}).
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "latitude", "longitude", "trigger_radius", "sort_order", "narration", "audio", "created_at"}).
			AddRow("wp_b", "Jordaan", 52.3738, 4.8830, 75.0, 2, []byte(`{"en":"Jordaan"}`), []byte(`{"en":"j.mp3"}`), time.Now()).
			AddRow("wp_a", "Central", 52.3791, 4.9003, 100.0, 1, []byte(`{"en":"Central"}`), []byte(`{}`), time.Now()))

	waypoints, err := store.GetWaypoints(ctx, []string{"wp_a", "wp_b"})
	require.NoError(t, err)
	require.Len(t, waypoints, 2)
	assert.Equal(t, "wp_b", waypoints[0].ID)
	assert.Equal(t, tour.Position{Lat: 52.3738, Lon: 4.8830}, waypoints[0].Position)
	assert.Equal(t, 75.0, waypoints[0].TriggerRadius)
	assert.Equal(t, "j.mp3", waypoints[0].Audio["en"])
	assert.Equal(t, 1, waypoints[1].Order)

	empty, err := store.GetWaypoints(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, empty)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_CreateWaypointAndRoute(t *testing.T) {
	mock, store := newMockStore(t)
	ctx := context.Background()
	now := time.Now()

	mock.ExpectExec(`INSERT INTO tour_points`).
		WithArgs("wp_a", "Central", 52.3791, 4.9003, 100.0, 1, pgxmock.AnyArg(), pgxmock.AnyArg(), now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := store.CreateWaypoint(ctx, &tour.Waypoint{
		ID:            "wp_a",
		Name:          "Central",
		Position:      tour.Position{Lat: 52.3791, Lon: 4.9003},
		TriggerRadius: 100,
		Order:         1,
		Narration:     map[string]string{"en": "Welcome"},
		Audio:         map[string]string{"en": "welcome.mp3"},
		CreatedAt:     now,
	})
	require.NoError(t, err)

	mock.ExpectExec(`INSERT INTO tour_routes`).
		WithArgs("route_1", "Canal Tour", pgxmock.AnyArg(), []string{"wp_a"}, true, now).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err = store.CreateRoute(ctx, &tour.Route{
		ID:          "route_1",
		Name:        "Canal Tour",
		Description: map[string]string{"en": "Canals"},
		WaypointIDs: []string{"wp_a"},
		Active:      true,
		CreatedAt:   now,
	})
	require.NoError(t, err)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM tour_routes`).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))

	count, err := store.CountRoutes(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetSession(t *testing.T) {
	mock, store := newMockStore(t)
	ctx := context.Background()
	started := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	reported := started.Add(5 * time.Minute)
	lat, lon, acc := 52.3791, 4.9003, 8.5

	mock.ExpectQuery(`FROM tour_sessions\s+WHERE id = \$1`).
		WithArgs("sess_1").
		WillReturnRows(pgxmock.NewRows(sessionColumns).
			AddRow("sess_1", "route_1", "user-1", "nl", 1, &lat, &lon, &acc, &reported, true, int64(3), started, reported))

	session, err := store.Get(ctx, "sess_1")
	require.NoError(t, err)
	assert.Equal(t, "nl", session.Language)
	assert.Equal(t, 1, session.CurrentIndex)
	assert.Equal(t, int64(3), session.Version)
	require.NotNil(t, session.LastKnownLocation)
	assert.Equal(t, tour.Position{Lat: lat, Lon: lon}, session.LastKnownLocation.Position)
	require.NotNil(t, session.LastKnownLocation.Accuracy)
	assert.Equal(t, acc, *session.LastKnownLocation.Accuracy)
	assert.Equal(t, reported, session.LastKnownLocation.Timestamp)

	mock.ExpectQuery(`FROM tour_sessions`).
		WithArgs("sess_missing").
		WillReturnError(pgx.ErrNoRows)

	_, err = store.Get(ctx, "sess_missing")
	assert.ErrorIs(t, err, tour.ErrSessionNotFound)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_UpdateProgress(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
	update := tour.ProgressUpdate{
		CurrentIndex: 2,
		Location:     tour.Location{Position: tour.Position{Lat: 52.3738, Lon: 4.8830}, Timestamp: now},
		UpdatedAt:    now,
	}

	t.Run("applies when the version matches", func(t *testing.T) {
		mock, store := newMockStore(t)
		lat, lon := 52.3738, 4.8830

		mock.ExpectQuery(`UPDATE tour_sessions SET .* WHERE id = \$1 AND version = \$2\s+RETURNING`).
			WithArgs("sess_1", int64(3), 2, 52.3738, 4.8830, pgxmock.AnyArg(), now, now).
			WillReturnRows(pgxmock.NewRows(sessionColumns).
				AddRow("sess_1", "route_1", "user-1", "en", 2, &lat, &lon, nil, &now, true, int64(4), now, now))

		session, err := store.UpdateProgress(ctx, "sess_1", 3, update)
		require.NoError(t, err)
		assert.Equal(t, 2, session.CurrentIndex)
		assert.Equal(t, int64(4), session.Version)
		require.NotNil(t, session.LastKnownLocation)
		assert.Nil(t, session.LastKnownLocation.Accuracy)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports a conflict when the version moved", func(t *testing.T) {
		mock, store := newMockStore(t)

		mock.ExpectQuery(`UPDATE tour_sessions`).
			WithArgs("sess_1", int64(3), 2, 52.3738, 4.8830, pgxmock.AnyArg(), now, now).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("sess_1").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

		_, err := store.UpdateProgress(ctx, "sess_1", 3, update)
		assert.ErrorIs(t, err, tour.ErrVersionConflict)

		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("reports a missing session", func(t *testing.T) {
		mock, store := newMockStore(t)

		mock.ExpectQuery(`UPDATE tour_sessions`).
			WithArgs("sess_gone", int64(0), 2, 52.3738, 4.8830, pgxmock.AnyArg(), now, now).
			WillReturnError(pgx.ErrNoRows)
		mock.ExpectQuery(`SELECT EXISTS`).
			WithArgs("sess_gone").
			WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))

		_, err := store.UpdateProgress(ctx, "sess_gone", 0, update)
		assert.ErrorIs(t, err, tour.ErrSessionNotFound)

		require.NoError(t, mock.ExpectationsWereMet())
	})
}
