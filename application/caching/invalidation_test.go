package caching

import (
	"context"
	"testing"
	"time"

	"fleetgrid-backend/infrastructure/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInvalidator_InvalidateDeviceList(t *testing.T) {
	ctx := context.Background()
	kv := cache.NewMemoryCache()
	inv := NewInvalidator(kv, zap.NewNop(), nil)

	defaultKey := DeviceListKey("owner-1", "", "")
	filteredKey := DeviceListKey("owner-1", "sensor", "")
	require.NoError(t, kv.Set(ctx, defaultKey, []byte(`[]`), time.Minute))
	require.NoError(t, kv.Set(ctx, filteredKey, []byte(`[]`), time.Minute))

	require.NoError(t, inv.InvalidateDeviceList(ctx, "owner-1"))

	_, found, err := kv.Get(ctx, defaultKey)
	require.NoError(t, err)
	assert.False(t, found, "default-filter key must be deleted")

	// Filtered keys are left to expire within their TTL.
	_, found, err = kv.Get(ctx, filteredKey)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestInvalidator_InvalidateUserProfile(t *testing.T) {
	ctx := context.Background()
	kv := cache.NewMemoryCache()
	inv := NewInvalidator(kv, zap.NewNop(), nil)

	key := UserProfileKey("u-1")
	require.NoError(t, kv.Set(ctx, key, []byte(`{}`), time.Minute))

	require.NoError(t, inv.InvalidateUserProfile(ctx, "u-1"))

	_, found, err := kv.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestInvalidator_DeleteAbsentKeyIsNoop(t *testing.T) {
	ctx := context.Background()
	inv := NewInvalidator(cache.NewMemoryCache(), zap.NewNop(), nil)

	assert.NoError(t, inv.InvalidateDeviceList(ctx, "owner-without-entries"))
	assert.NoError(t, inv.InvalidateDeviceUsage(ctx, "dev-1", "24h"))
}

func TestInvalidator_SurfacesCacheError(t *testing.T) {
	ctx := context.Background()
	inv := NewInvalidator(brokenCache{}, zap.NewNop(), nil)

	err := inv.InvalidateDeviceList(ctx, "owner-1")
	assert.ErrorIs(t, err, cache.ErrUnavailable)
}
