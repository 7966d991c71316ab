package caching

import (
	"context"

	"fleetgrid-backend/infrastructure/cache"
	"fleetgrid-backend/pkg/observability"

	"go.uber.org/zap"
)

// Invalidator deletes the canonical default-filter cache keys after a
// mutating write commits, before the response goes out. Non-default filtered
// listing keys are left to expire within their TTL; that staleness gap is a
// documented trade-off, not a bug.
type Invalidator struct {
	cache   cache.Cache
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewInvalidator creates a new cache invalidator
func NewInvalidator(c cache.Cache, logger *zap.Logger, metrics *observability.Metrics) *Invalidator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invalidator{
		cache:   c,
		logger:  logger,
		metrics: metrics,
	}
}

// InvalidateDeviceList deletes the owner's default-filter device listing key.
// Called after create, update, delete and heartbeat.
func (i *Invalidator) InvalidateDeviceList(ctx context.Context, ownerID string) error {
	return i.delete(ctx, "devices", DeviceListKey(ownerID, FilterAll, FilterAll))
}

// InvalidateUserProfile deletes the user's profile key after a profile update.
func (i *Invalidator) InvalidateUserProfile(ctx context.Context, userID string) error {
	return i.delete(ctx, "user", UserProfileKey(userID))
}

// InvalidateDeviceUsage deletes the usage aggregate for a device and range.
// Used when a log write must be visible before the aggregate's TTL elapses.
func (i *Invalidator) InvalidateDeviceUsage(ctx context.Context, deviceID, rng string) error {
	return i.delete(ctx, "analytics", DeviceUsageKey(deviceID, rng))
}

func (i *Invalidator) delete(ctx context.Context, entity, key string) error {
	if err := i.cache.Delete(ctx, key); err != nil {
		// The write already committed; surface the error so the caller can
		// log it, but readers will also miss the cache while it is down.
		i.logger.Warn("Cache invalidation failed",
			zap.String("key", key),
			zap.Error(err),
		)
		if i.metrics != nil {
			i.metrics.CacheErrors.Inc()
		}
		return err
	}
	if i.metrics != nil {
		i.metrics.CacheInvalidations.WithLabelValues(entity).Inc()
	}
	return nil
}
