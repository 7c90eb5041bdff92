package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisStore(t *testing.T, ttl time.Duration) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisStore(client, ttl), mr
}

func TestRedisStoreRoundTrip(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)
	ctx := context.Background()

	sess, err := store.Establish(ctx, 42, "sso-cas")
	require.NoError(t, err)
	require.NotEmpty(t, sess.ID)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(42), got.AccountID)
	assert.Equal(t, "sso-cas", got.Source)
}

func TestRedisStoreUnknownID(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)

	_, err := store.Get(context.Background(), "no-such-session")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreExpiry(t *testing.T) {
	store, mr := newRedisStore(t, time.Minute)
	ctx := context.Background()

	sess, err := store.Establish(ctx, 42, "local")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRedisStoreClear(t *testing.T) {
	store, _ := newRedisStore(t, time.Hour)
	ctx := context.Background()

	sess, err := store.Establish(ctx, 42, "local")
	require.NoError(t, err)

	require.NoError(t, store.Clear(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// clearing twice is fine
	assert.NoError(t, store.Clear(ctx, sess.ID))
}

func TestMemoryStore(t *testing.T) {
	store := NewMemoryStore(time.Hour)
	ctx := context.Background()

	sess, err := store.Establish(ctx, 7, "directory")
	require.NoError(t, err)

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), got.AccountID)

	require.NoError(t, store.Clear(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore(-time.Second)

	sess, err := store.Establish(context.Background(), 7, "local")
	require.NoError(t, err)

	_, err = store.Get(context.Background(), sess.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
