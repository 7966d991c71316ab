package services

import (
	"context"
	"testing"

	"fleetgrid-backend/application/caching"
	"fleetgrid-backend/infrastructure/cache"
	"fleetgrid-backend/infrastructure/persistence/memory"
	appErrors "fleetgrid-backend/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type analyticsFixture struct {
	analytics *AnalyticsService
	devices   *DeviceService
}

func newAnalyticsFixture() *analyticsFixture {
	kv := cache.NewMemoryCache()
	logger := zap.NewNop()
	deviceRepo := memory.NewDeviceRepository()
	manager := caching.NewManager(kv, logger, nil)
	invalidator := caching.NewInvalidator(kv, logger, nil)

	return &analyticsFixture{
		analytics: NewAnalyticsService(deviceRepo, memory.NewLogRepository(), manager, invalidator, logger),
		devices:   NewDeviceService(deviceRepo, manager, invalidator, nil, logger),
	}
}

func (fx *analyticsFixture) registerDevice(t *testing.T, ownerID string) string {
	t.Helper()
	device, err := fx.devices.Register(context.Background(), ownerID, RegisterDeviceInput{Name: "thermo", Type: "sensor"})
	require.NoError(t, err)
	return device.ID
}

func TestAnalyticsService_UsageAggregation(t *testing.T) {
	ctx := context.Background()
	fx := newAnalyticsFixture()
	deviceID := fx.registerDevice(t, "owner-1")

	for _, value := range []float64{10, 20, 30} {
		_, err := fx.analytics.RecordLog(ctx, "owner-1", "org-1", deviceID, RecordLogInput{Event: "usage", Value: value})
		require.NoError(t, err)
	}

	usage, cached, err := fx.analytics.Usage(ctx, "owner-1", deviceID, "24h")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, deviceID, usage.DeviceID)
	assert.Equal(t, "24h", usage.Range)
	assert.Equal(t, 3, usage.Samples)
	assert.InDelta(t, 60.0, usage.TotalUsage, 1e-9)
	assert.InDelta(t, 20.0, usage.AverageUsage, 1e-9)
}

func TestAnalyticsService_UsageCachesSecondRead(t *testing.T) {
	ctx := context.Background()
	fx := newAnalyticsFixture()
	deviceID := fx.registerDevice(t, "owner-1")

	_, err := fx.analytics.RecordLog(ctx, "owner-1", "org-1", deviceID, RecordLogInput{Event: "usage", Value: 5})
	require.NoError(t, err)

	first, cached, err := fx.analytics.Usage(ctx, "owner-1", deviceID, "1h")
	require.NoError(t, err)
	assert.False(t, cached)

	second, cached, err := fx.analytics.Usage(ctx, "owner-1", deviceID, "1h")
	require.NoError(t, err)
	assert.True(t, cached)
	assert.Equal(t, first, second)
}

func TestAnalyticsService_LogWriteDropsCachedUsage(t *testing.T) {
	ctx := context.Background()
	fx := newAnalyticsFixture()
	deviceID := fx.registerDevice(t, "owner-1")

	_, err := fx.analytics.RecordLog(ctx, "owner-1", "org-1", deviceID, RecordLogInput{Event: "usage", Value: 5})
	require.NoError(t, err)

	_, cached, err := fx.analytics.Usage(ctx, "owner-1", deviceID, "24h")
	require.NoError(t, err)
	assert.False(t, cached)

	_, err = fx.analytics.RecordLog(ctx, "owner-1", "org-1", deviceID, RecordLogInput{Event: "usage", Value: 7})
	require.NoError(t, err)

	usage, cached, err := fx.analytics.Usage(ctx, "owner-1", deviceID, "24h")
	require.NoError(t, err)
	assert.False(t, cached, "log write must drop the cached aggregate")
	assert.Equal(t, 2, usage.Samples)
	assert.InDelta(t, 12.0, usage.TotalUsage, 1e-9)
}

func TestAnalyticsService_UnknownRangeSharesDayWindow(t *testing.T) {
	ctx := context.Background()
	fx := newAnalyticsFixture()
	deviceID := fx.registerDevice(t, "owner-1")

	_, err := fx.analytics.RecordLog(ctx, "owner-1", "org-1", deviceID, RecordLogInput{Event: "usage", Value: 5})
	require.NoError(t, err)

	// Distinct unrecognized range strings get distinct cache entries.
	_, cached, err := fx.analytics.Usage(ctx, "owner-1", deviceID, "36h")
	require.NoError(t, err)
	assert.False(t, cached)

	usage, cached, err := fx.analytics.Usage(ctx, "owner-1", deviceID, "48h")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "48h", usage.Range)
	assert.Equal(t, 1, usage.Samples)
}

func TestAnalyticsService_RecentLogs(t *testing.T) {
	ctx := context.Background()
	fx := newAnalyticsFixture()
	deviceID := fx.registerDevice(t, "owner-1")

	for _, value := range []float64{1, 2, 3, 4} {
		_, err := fx.analytics.RecordLog(ctx, "owner-1", "org-1", deviceID, RecordLogInput{Event: "usage", Value: value})
		require.NoError(t, err)
	}

	entries, err := fx.analytics.RecentLogs(ctx, "owner-1", deviceID, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	assert.InDelta(t, 4.0, entries[0].Value, 1e-9)
	assert.InDelta(t, 3.0, entries[1].Value, 1e-9)
}

func TestAnalyticsService_OwnershipScoping(t *testing.T) {
	ctx := context.Background()
	fx := newAnalyticsFixture()
	deviceID := fx.registerDevice(t, "owner-1")

	_, err := fx.analytics.RecordLog(ctx, "owner-2", "org-2", deviceID, RecordLogInput{Event: "usage", Value: 1})
	assert.True(t, appErrors.IsNotFound(err))

	_, err = fx.analytics.RecentLogs(ctx, "owner-2", deviceID, 10)
	assert.True(t, appErrors.IsNotFound(err))

	_, _, err = fx.analytics.Usage(ctx, "owner-2", deviceID, "24h")
	assert.True(t, appErrors.IsNotFound(err))
}
