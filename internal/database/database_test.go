package database_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gpstunnel/gpstunnel/internal/database"
)

func TestConnectRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	t.Run("addr", func(t *testing.T) {
		client, err := database.ConnectRedis(ctx, database.RedisConfig{Addr: mr.Addr()})
		require.NoError(t, err)
		defer client.Close()
		assert.NoError(t, client.Set(ctx, "k", "v", 0).Err())
	})

	t.Run("url", func(t *testing.T) {
		client, err := database.ConnectRedis(ctx, database.RedisConfig{URL: "redis://" + mr.Addr() + "/0"})
		require.NoError(t, err)
		defer client.Close()
	})

	t.Run("bad url", func(t *testing.T) {
		_, err := database.ConnectRedis(ctx, database.RedisConfig{URL: "://nope"})
		assert.Error(t, err)
	})
}

func TestConfig_ConnectionString(t *testing.T) {
	cfg := database.Config{
		Host: "db", Port: 5433, User: "u", Password: "p", Database: "tours", SSLMode: "require",
	}
	assert.Equal(t, "postgres://u:p@db:5433/tours?sslmode=require", cfg.ConnectionString())

	cfg.URL = "postgres://override"
	assert.Equal(t, "postgres://override", cfg.ConnectionString())
}

func TestMigrate(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectExec(database.Schema()).WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, database.Migrate(context.Background(), mock))
	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, database.Schema(), "CREATE TABLE IF NOT EXISTS tour_progress_events")
}
