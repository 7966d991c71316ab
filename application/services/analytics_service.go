package services

import (
	"context"
	"time"

	"fleetgrid-backend/application/caching"
	"fleetgrid-backend/application/ports"
	"fleetgrid-backend/domain/entities"
	appErrors "fleetgrid-backend/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Log listing bounds.
const (
	defaultLogLimit = 50
	maxLogLimit     = 200
)

// RecordLogInput carries a single device log entry.
type RecordLogInput struct {
	Event string  `json:"event" validate:"required,min=1,max=100"`
	Value float64 `json:"value"`
}

// AnalyticsService ingests device logs and serves the cached usage
// aggregate.
type AnalyticsService struct {
	devices     ports.DeviceRepository
	logs        ports.LogRepository
	cache       *caching.Manager
	invalidator *caching.Invalidator
	logger      *zap.Logger
}

// NewAnalyticsService creates a new analytics service
func NewAnalyticsService(
	devices ports.DeviceRepository,
	logs ports.LogRepository,
	cache *caching.Manager,
	invalidator *caching.Invalidator,
	logger *zap.Logger,
) *AnalyticsService {
	return &AnalyticsService{
		devices:     devices,
		logs:        logs,
		cache:       cache,
		invalidator: invalidator,
		logger:      logger,
	}
}

// RecordLog appends a log entry for a device the caller owns and drops the
// device's cached usage aggregates so the write is visible before their TTL
// elapses.
func (s *AnalyticsService) RecordLog(ctx context.Context, ownerID, orgID, deviceID string, input RecordLogInput) (*entities.DeviceLog, error) {
	device, err := s.devices.FindOne(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, appErrors.NewNotFoundError("device")
	}

	log := &entities.DeviceLog{
		ID:             uuid.New().String(),
		DeviceID:       deviceID,
		OrganizationID: orgID,
		Event:          input.Event,
		Value:          input.Value,
		Timestamp:      time.Now().UTC(),
	}

	if err := s.logs.Create(ctx, log); err != nil {
		return nil, err
	}

	for _, rng := range []string{"1h", "24h", "7d"} {
		if err := s.invalidator.InvalidateDeviceUsage(ctx, deviceID, rng); err != nil {
			s.logger.Warn("Usage invalidation failed",
				zap.String("deviceID", deviceID),
				zap.String("range", rng),
				zap.Error(err),
			)
		}
	}

	return log, nil
}

// RecentLogs returns up to limit recent log entries for a device the caller
// owns, newest first.
func (s *AnalyticsService) RecentLogs(ctx context.Context, ownerID, deviceID string, limit int) ([]entities.DeviceLog, error) {
	device, err := s.devices.FindOne(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, appErrors.NewNotFoundError("device")
	}

	if limit <= 0 {
		limit = defaultLogLimit
	}
	if limit > maxLogLimit {
		limit = maxLogLimit
	}

	return s.logs.FindRecent(ctx, deviceID, limit)
}

// Usage returns the device's usage aggregate over the range window and
// whether it came from cache. The range string keys the cache verbatim;
// unrecognized ranges share the 24h window.
func (s *AnalyticsService) Usage(ctx context.Context, ownerID, deviceID, rng string) (entities.UsageSummary, bool, error) {
	device, err := s.devices.FindOne(ctx, ownerID, deviceID)
	if err != nil {
		return entities.UsageSummary{}, false, err
	}
	if device == nil {
		return entities.UsageSummary{}, false, appErrors.NewNotFoundError("device")
	}

	key := caching.DeviceUsageKey(deviceID, rng)
	return caching.ReadThrough(ctx, s.cache, "analytics", key, caching.DeviceUsageTTL,
		func(ctx context.Context) (entities.UsageSummary, error) {
			since := time.Now().UTC().Add(-caching.RangeWindow(rng))
			entries, err := s.logs.FindSince(ctx, deviceID, since)
			if err != nil {
				return entities.UsageSummary{}, err
			}
			return aggregateUsage(deviceID, rng, entries), nil
		})
}

func aggregateUsage(deviceID, rng string, entries []entities.DeviceLog) entities.UsageSummary {
	summary := entities.UsageSummary{
		DeviceID: deviceID,
		Range:    rng,
		Samples:  len(entries),
	}
	for _, entry := range entries {
		summary.TotalUsage += entry.Value
	}
	if summary.Samples > 0 {
		summary.AverageUsage = summary.TotalUsage / float64(summary.Samples)
	}
	return summary
}
