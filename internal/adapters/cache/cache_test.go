package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrp-search-service/internal/adapters/repositories"
	"vrp-search-service/internal/domain"
	"vrp-search-service/internal/platform/db"
	"vrp-search-service/internal/ports"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisIncumbentStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisIncumbentStore(client, ttl), mr
}

func newSqliteStore(t *testing.T) *SQLIncumbentStore {
	t.Helper()
	conn, err := db.OpenSqlite("file::memory:")
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, repositories.InitSchema(conn, "sqlite"))
	return NewSqliteIncumbentStore(conn)
}

func exerciseStore(t *testing.T, store ports.IncumbentStore) {
	ctx := context.Background()

	_, err := store.Get(ctx, "fp1")
	assert.ErrorIs(t, err, ports.ErrNotFound)

	first := domain.RoutePlan{Routes: [][]int{{1, 2}, {3}}, Cost: 100}
	ok, err := store.PutIfBetter(ctx, "fp1", first)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = store.PutIfBetter(ctx, "fp1", domain.RoutePlan{Routes: [][]int{{1, 2, 3}}, Cost: 100})
	require.NoError(t, err)
	assert.False(t, ok, "equal cost must not replace the incumbent")

	ok, err = store.PutIfBetter(ctx, "fp1", domain.RoutePlan{Routes: [][]int{{1, 2, 3}}, Cost: 120})
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := store.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, first, got)

	better := domain.RoutePlan{Routes: [][]int{{3, 2, 1}}, Cost: 90.5}
	ok, err = store.PutIfBetter(ctx, "fp1", better)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err = store.Get(ctx, "fp1")
	require.NoError(t, err)
	assert.Equal(t, better, got)

	_, err = store.Get(ctx, " ")
	assert.Error(t, err)
}

func TestRedisIncumbentStore(t *testing.T) {
	store, _ := newRedisStore(t, 0)
	exerciseStore(t, store)
}

func TestRedisIncumbentStoreExpires(t *testing.T) {
	store, mr := newRedisStore(t, time.Hour)
	ctx := context.Background()

	ok, err := store.PutIfBetter(ctx, "fp", domain.RoutePlan{Cost: 10})
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, time.Hour, mr.TTL(incumbentPrefix+"fp"))

	mr.FastForward(2 * time.Hour)
	_, err = store.Get(ctx, "fp")
	assert.ErrorIs(t, err, ports.ErrNotFound)
}

func TestSqliteIncumbentStore(t *testing.T) {
	exerciseStore(t, newSqliteStore(t))
}
