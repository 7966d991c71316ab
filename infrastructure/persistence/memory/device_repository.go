package memory

import (
	"context"
	"sort"
	"sync"

	"fleetgrid-backend/domain/entities"
)

// DeviceRepository is an in-memory ports.DeviceRepository
type DeviceRepository struct {
	mu      sync.RWMutex
	devices map[string]entities.Device
}

// NewDeviceRepository creates an empty in-memory device repository
func NewDeviceRepository() *DeviceRepository {
	return &DeviceRepository{
		devices: make(map[string]entities.Device),
	}
}

// Create stores a new device
func (r *DeviceRepository) Create(ctx context.Context, device *entities.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices[device.ID] = *device
	return nil
}

// FindByOwner returns the owner's devices matching the filter
func (r *DeviceRepository) FindByOwner(ctx context.Context, ownerID string, filter entities.DeviceFilter) ([]entities.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []entities.Device
	for _, device := range r.devices {
		if device.OwnerID != ownerID {
			continue
		}
		if filter.Type != "" && device.Type != filter.Type {
			continue
		}
		if filter.Status != "" && device.Status != filter.Status {
			continue
		}
		result = append(result, device)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})

	return result, nil
}

// FindOne returns the owner's device with the given id, or nil if absent
func (r *DeviceRepository) FindOne(ctx context.Context, ownerID, deviceID string) (*entities.Device, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	device, ok := r.devices[deviceID]
	if !ok || device.OwnerID != ownerID {
		return nil, nil
	}
	copied := device
	return &copied, nil
}

// Update replaces the stored device
func (r *DeviceRepository) Update(ctx context.Context, device *entities.Device) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.devices[device.ID] = *device
	return nil
}

// Delete removes the owner's device and returns it, or nil if absent
func (r *DeviceRepository) Delete(ctx context.Context, ownerID, deviceID string) (*entities.Device, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	device, ok := r.devices[deviceID]
	if !ok || device.OwnerID != ownerID {
		return nil, nil
	}
	delete(r.devices, deviceID)
	copied := device
	return &copied, nil
}
