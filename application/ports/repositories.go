// Package ports defines the narrow interfaces through which the application
// layer consumes external collaborators: the durable document store and the
// realtime broadcast channel.
package ports

import (
	"context"
	"time"

	"fleetgrid-backend/domain/entities"
)

// UserRepository persists user accounts. Find methods return (nil, nil) when
// no matching record exists; errors indicate storage failures only.
type UserRepository interface {
	Create(ctx context.Context, user *entities.User) error
	FindByID(ctx context.Context, id string) (*entities.User, error)
	FindByEmail(ctx context.Context, email string) (*entities.User, error)
	Update(ctx context.Context, user *entities.User) error
}

// DeviceRepository persists devices. Every operation scopes by owner id to
// enforce tenant isolation.
type DeviceRepository interface {
	Create(ctx context.Context, device *entities.Device) error
	FindByOwner(ctx context.Context, ownerID string, filter entities.DeviceFilter) ([]entities.Device, error)
	FindOne(ctx context.Context, ownerID, deviceID string) (*entities.Device, error)
	Update(ctx context.Context, device *entities.Device) error
	Delete(ctx context.Context, ownerID, deviceID string) (*entities.Device, error)
}

// LogRepository persists device logs.
type LogRepository interface {
	Create(ctx context.Context, log *entities.DeviceLog) error
	FindRecent(ctx context.Context, deviceID string, limit int) ([]entities.DeviceLog, error)
	FindSince(ctx context.Context, deviceID string, since time.Time) ([]entities.DeviceLog, error)
	FindByOrganization(ctx context.Context, orgID string, start, end time.Time) ([]entities.DeviceLog, error)
}

// ExportJobRepository persists export jobs and their lifecycle state.
type ExportJobRepository interface {
	Create(ctx context.Context, job *entities.ExportJob) error
	FindByID(ctx context.Context, orgID, jobID string) (*entities.ExportJob, error)
	UpdateStatus(ctx context.Context, orgID, jobID, status, filePath string) error
	FindByStatus(ctx context.Context, statuses ...string) ([]entities.ExportJob, error)
}

// Broadcaster fans out events to all members of an organization-keyed room.
// Fire-and-forget: no delivery guarantee, no acknowledgment.
type Broadcaster interface {
	Publish(roomID, event string, payload interface{})
}
