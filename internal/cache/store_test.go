package cache

import (
	"context"
	"io"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autoclock/internal/model"
	"autoclock/internal/settings"
)

func newTestStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisStore(client, ""), mr
}

var _ settings.Store = (*RedisStore)(nil)

func TestRedisStoreGetSet(t *testing.T) {
	ctx := context.Background()
	store, mr := newTestStore(t)

	got, err := store.GetMany(ctx, []string{"enabled"})
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.SetMany(ctx, map[string]string{"enabled": "true", "bufferMinutes": "5"}))
	assert.Equal(t, "true", mr.HGet(DefaultHashKey, "enabled"))

	got, err = store.GetMany(ctx, []string{"enabled", "bufferMinutes", "missing"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"enabled": "true", "bufferMinutes": "5"}, got)

	require.NoError(t, store.Ping(ctx))
}

func TestRedisStoreBacksRepository(t *testing.T) {
	ctx := context.Background()
	store, _ := newTestStore(t)
	repo := settings.NewRepository(store, zerolog.New(io.Discard))

	require.NoError(t, repo.EnsureDefaults(ctx))
	require.NoError(t, repo.SetEnabled(ctx, true))
	require.NoError(t, repo.RecordAction(ctx, model.ActionOut, "2024-05-15", model.StateOut))

	s, err := repo.LoadSchedule(ctx)
	require.NoError(t, err)
	assert.True(t, s.Enabled)

	h, err := repo.LoadHistory(ctx)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-15", h.LastClockOutDate)
	assert.Equal(t, model.ActionOut, h.LastActionType)
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr := newTestStore(t)
	mr.Close()

	_, err := store.GetMany(context.Background(), []string{"enabled"})
	assert.Error(t, err)
	assert.Error(t, store.SetMany(context.Background(), map[string]string{"enabled": "true"}))
}
