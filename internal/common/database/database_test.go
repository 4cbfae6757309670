package database

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cqa-workers/internal/common/config"
)

func TestNewRedis(t *testing.T) {
	_, err := NewRedis(config.RedisConfig{})
	assert.EqualError(t, err, "redis address is required")

	mr := miniredis.RunT(t)
	c, err := NewRedis(config.RedisConfig{Address: mr.Addr()})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	require.NoError(t, c.Ping(context.Background()))
	require.NoError(t, c.GetClient().Set(context.Background(), "k", "v", 0).Err())
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestRedisClient_PingFailure(t *testing.T) {
	mr := miniredis.RunT(t)
	c := NewRedisFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	mr.Close()

	err := c.Ping(context.Background())

	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis ping failed")
	assert.NoError(t, c.Close())
}

func TestNewPostgres_RequiresHost(t *testing.T) {
	_, err := NewPostgres(config.PostgresConfig{Database: "kb"})
	assert.EqualError(t, err, "postgres host is required")
}

func TestPostgresClient_Ping(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)

	c := NewPostgresFromDB(db)
	mock.ExpectPing()
	mock.ExpectPing().WillReturnError(assert.AnError)
	mock.ExpectClose()

	assert.NoError(t, c.Ping(context.Background()))
	err = c.Ping(context.Background())
	assert.ErrorIs(t, err, assert.AnError)
	assert.Contains(t, err.Error(), "postgres ping failed")
	assert.Same(t, db, c.GetDB())
	require.NoError(t, c.Close())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNilClientsClose(t *testing.T) {
	var r *RedisClient
	var p *PostgresClient
	assert.NoError(t, r.Close())
	assert.NoError(t, p.Close())
}
