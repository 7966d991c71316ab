package caching

import (
	"context"
	"encoding/json"
	"time"

	"fleetgrid-backend/infrastructure/cache"
	"fleetgrid-backend/pkg/observability"

	"go.uber.org/zap"
)

// Manager wraps a data-fetch function with cache-check, fetch-on-miss and
// populate-with-TTL. A cache outage degrades to a direct fetch instead of
// failing the request; a fetch failure propagates uncached.
type Manager struct {
	cache   cache.Cache
	logger  *zap.Logger
	metrics *observability.Metrics
}

// NewManager creates a new read-through cache manager
func NewManager(c cache.Cache, logger *zap.Logger, metrics *observability.Metrics) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cache:   c,
		logger:  logger,
		metrics: metrics,
	}
}

// ReadThrough resolves a value by key. On a hit the cached payload is
// decoded and returned with served=true. On a miss fetch runs, the result is
// stored under key with the given TTL, and served=false is returned. entity
// labels the metrics series.
func ReadThrough[T any](ctx context.Context, m *Manager, entity, key string, ttl time.Duration, fetch func(context.Context) (T, error)) (T, bool, error) {
	var zero T

	payload, found, err := m.cache.Get(ctx, key)
	if err != nil {
		// Degrade to a direct storage read; the cache stays untouched.
		m.logger.Warn("Cache read failed, serving uncached",
			zap.String("key", key),
			zap.Error(err),
		)
		m.recordError()
		value, fetchErr := fetch(ctx)
		if fetchErr != nil {
			return zero, false, fetchErr
		}
		return value, false, nil
	}

	if found {
		var value T
		if err := json.Unmarshal(payload, &value); err == nil {
			m.recordHit(entity)
			return value, true, nil
		}
		// Undecodable entry: treat as a miss and overwrite below.
		m.logger.Warn("Discarding undecodable cache entry", zap.String("key", key))
	}

	m.recordMiss(entity)

	value, err := fetch(ctx)
	if err != nil {
		// Never cache a failure.
		return zero, false, err
	}

	encoded, err := json.Marshal(value)
	if err != nil {
		m.logger.Warn("Failed to encode value for cache", zap.String("key", key), zap.Error(err))
		return value, false, nil
	}

	if err := m.cache.Set(ctx, key, encoded, ttl); err != nil {
		m.logger.Warn("Cache populate failed", zap.String("key", key), zap.Error(err))
		m.recordError()
	}

	return value, false, nil
}

func (m *Manager) recordHit(entity string) {
	if m.metrics != nil {
		m.metrics.CacheHits.WithLabelValues(entity).Inc()
	}
}

func (m *Manager) recordMiss(entity string) {
	if m.metrics != nil {
		m.metrics.CacheMisses.WithLabelValues(entity).Inc()
	}
}

func (m *Manager) recordError() {
	if m.metrics != nil {
		m.metrics.CacheErrors.Inc()
	}
}
