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

// RegisterDeviceInput carries a device registration.
type RegisterDeviceInput struct {
	Name string `json:"name" validate:"required,min=2,max=100"`
	Type string `json:"type" validate:"required,min=2,max=50"`
}

// UpdateDeviceInput carries a partial device mutation. Empty fields are left
// unchanged.
type UpdateDeviceInput struct {
	Name   string `json:"name" validate:"omitempty,min=2,max=100"`
	Type   string `json:"type" validate:"omitempty,min=2,max=50"`
	Status string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// HeartbeatInput carries a device's self-reported state. Status is optional;
// a bare heartbeat means the device is active.
type HeartbeatInput struct {
	Status string `json:"status" validate:"omitempty,oneof=active inactive"`
}

// HeartbeatPayload is broadcast to the organization room when a device
// reports in.
type HeartbeatPayload struct {
	DeviceID     string    `json:"deviceId"`
	Status       string    `json:"status"`
	LastActiveAt time.Time `json:"lastActiveAt"`
}

// DeviceService manages the device fleet. Listings go through the
// read-through cache; every mutation invalidates the owner's default-filter
// listing key after the write commits.
type DeviceService struct {
	devices     ports.DeviceRepository
	cache       *caching.Manager
	invalidator *caching.Invalidator
	broadcaster ports.Broadcaster
	logger      *zap.Logger
}

// NewDeviceService creates a new device service
func NewDeviceService(
	devices ports.DeviceRepository,
	cache *caching.Manager,
	invalidator *caching.Invalidator,
	broadcaster ports.Broadcaster,
	logger *zap.Logger,
) *DeviceService {
	return &DeviceService{
		devices:     devices,
		cache:       cache,
		invalidator: invalidator,
		broadcaster: broadcaster,
		logger:      logger,
	}
}

// Register creates a new device owned by the caller.
func (s *DeviceService) Register(ctx context.Context, ownerID string, input RegisterDeviceInput) (*entities.Device, error) {
	now := time.Now().UTC()
	device := &entities.Device{
		ID:        uuid.New().String(),
		Name:      input.Name,
		Type:      input.Type,
		Status:    entities.DeviceStatusActive,
		OwnerID:   ownerID,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.devices.Create(ctx, device); err != nil {
		return nil, err
	}

	s.invalidateList(ctx, ownerID)

	s.logger.Info("Device registered",
		zap.String("deviceID", device.ID),
		zap.String("ownerID", ownerID),
	)

	return device, nil
}

// List returns the caller's devices matching the filter and whether the
// listing came from cache. The filter is canonicalized before the fetch so
// an explicit "all" and an unset filter hit the same cache key AND the same
// unfiltered store query.
func (s *DeviceService) List(ctx context.Context, ownerID string, filter entities.DeviceFilter) ([]entities.Device, bool, error) {
	filter = canonicalizeFilter(filter)
	key := caching.DeviceListKey(ownerID, filter.Type, filter.Status)
	return caching.ReadThrough(ctx, s.cache, "devices", key, caching.DeviceListTTL,
		func(ctx context.Context) ([]entities.Device, error) {
			return s.devices.FindByOwner(ctx, ownerID, filter)
		})
}

// canonicalizeFilter maps the explicit "all" filter value to unset, matching
// the key scheme's canonicalization.
func canonicalizeFilter(filter entities.DeviceFilter) entities.DeviceFilter {
	if filter.Type == caching.FilterAll {
		filter.Type = ""
	}
	if filter.Status == caching.FilterAll {
		filter.Status = ""
	}
	return filter
}

// Get returns a single device owned by the caller.
func (s *DeviceService) Get(ctx context.Context, ownerID, deviceID string) (*entities.Device, error) {
	device, err := s.devices.FindOne(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, appErrors.NewNotFoundError("device")
	}
	return device, nil
}

// Update applies a partial mutation to a device the caller owns.
func (s *DeviceService) Update(ctx context.Context, ownerID, deviceID string, input UpdateDeviceInput) (*entities.Device, error) {
	device, err := s.Get(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}

	if input.Name != "" {
		device.Name = input.Name
	}
	if input.Type != "" {
		device.Type = input.Type
	}
	if input.Status != "" {
		device.Status = input.Status
	}
	device.UpdatedAt = time.Now().UTC()

	if err := s.devices.Update(ctx, device); err != nil {
		return nil, err
	}

	s.invalidateList(ctx, ownerID)

	return device, nil
}

// Delete removes a device the caller owns and returns it.
func (s *DeviceService) Delete(ctx context.Context, ownerID, deviceID string) (*entities.Device, error) {
	device, err := s.devices.Delete(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}
	if device == nil {
		return nil, appErrors.NewNotFoundError("device")
	}

	s.invalidateList(ctx, ownerID)

	s.logger.Info("Device deleted",
		zap.String("deviceID", deviceID),
		zap.String("ownerID", ownerID),
	)

	return device, nil
}

// Heartbeat records a device's self-reported status (active when omitted),
// stamps last_active_at and fans the state change out to the owner's
// organization room.
func (s *DeviceService) Heartbeat(ctx context.Context, ownerID, orgID, deviceID string, input HeartbeatInput) (*entities.Device, error) {
	device, err := s.Get(ctx, ownerID, deviceID)
	if err != nil {
		return nil, err
	}

	status := input.Status
	if status == "" {
		status = entities.DeviceStatusActive
	}

	now := time.Now().UTC()
	device.Status = status
	device.LastActiveAt = &now
	device.UpdatedAt = now

	if err := s.devices.Update(ctx, device); err != nil {
		return nil, err
	}

	s.invalidateList(ctx, ownerID)

	if s.broadcaster != nil {
		s.broadcaster.Publish(orgID, "deviceHeartbeat", HeartbeatPayload{
			DeviceID:     device.ID,
			Status:       device.Status,
			LastActiveAt: now,
		})
	}

	return device, nil
}

// invalidateList drops the owner's default-filter listing key. The write
// already committed, so a failure here only extends staleness within the
// listing TTL.
func (s *DeviceService) invalidateList(ctx context.Context, ownerID string) {
	if err := s.invalidator.InvalidateDeviceList(ctx, ownerID); err != nil {
		s.logger.Warn("Device list invalidation failed", zap.String("ownerID", ownerID), zap.Error(err))
	}
}
