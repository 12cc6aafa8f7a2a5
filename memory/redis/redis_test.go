package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) (*Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewStore(client), mr
}

func TestStoreRoundTrip(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	got, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, got)

	require.NoError(t, store.Upsert(ctx, "conv-1", "summary text", time.Hour))
	got, err = store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, "summary text", got)
}

func TestStoreLastWriteWins(t *testing.T) {
	store, _ := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "conv-1", "first", time.Hour))
	require.NoError(t, store.Upsert(ctx, "conv-1", "second", time.Hour))

	got, _ := store.Get(ctx, "conv-1")
	assert.Equal(t, "second", got)
}

func TestStoreTTLExpiry(t *testing.T) {
	store, mr := testStore(t)
	ctx := context.Background()

	require.NoError(t, store.Upsert(ctx, "conv-1", "ephemeral", time.Minute))
	mr.FastForward(2 * time.Minute)

	got, err := store.Get(ctx, "conv-1")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStoreSurfacesConnectionErrors(t *testing.T) {
	store, mr := testStore(t)
	mr.Close()

	_, err := store.Get(context.Background(), "conv-1")
	assert.Error(t, err)
}
