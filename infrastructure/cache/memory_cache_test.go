package cache

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCache_SetGet(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "k1", []byte("hello"), time.Minute))

	value, found, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("hello"), value)
}

func TestMemoryCache_GetAbsent(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	value, found, err := c.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
	assert.Nil(t, value)
}

func TestMemoryCache_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "k1", []byte("v"), 10*time.Millisecond))
	time.Sleep(30 * time.Millisecond)

	_, found, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryCache_Delete(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	require.NoError(t, c.Set(ctx, "k1", []byte("v"), time.Minute))
	require.NoError(t, c.Delete(ctx, "k1"))

	_, found, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.False(t, found)

	// Deleting an absent key is a no-op, not an error.
	assert.NoError(t, c.Delete(ctx, "k1"))
}

func TestMemoryCache_ValueIsolation(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	original := []byte("immutable")
	require.NoError(t, c.Set(ctx, "k1", original, time.Minute))
	original[0] = 'X'

	value, found, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, []byte("immutable"), value)

	value[0] = 'Y'
	again, _, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, []byte("immutable"), again)
}

func TestMemoryCache_CloseStopsJanitor(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	before := runtime.NumGoroutine()
	require.NoError(t, c.Close())
	// Idempotent.
	require.NoError(t, c.Close())

	deadline := time.Now().Add(time.Second)
	for runtime.NumGoroutine() >= before && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Less(t, runtime.NumGoroutine(), before)

	// The cache itself keeps working after Close; only the janitor is gone.
	require.NoError(t, c.Set(ctx, "k1", []byte("v"), time.Minute))
	_, found, err := c.Get(ctx, "k1")
	require.NoError(t, err)
	assert.True(t, found)
}
