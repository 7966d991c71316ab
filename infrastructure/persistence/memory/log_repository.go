package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"fleetgrid-backend/domain/entities"
)

// LogRepository is an in-memory ports.LogRepository
type LogRepository struct {
	mu   sync.RWMutex
	logs []entities.DeviceLog
}

// NewLogRepository creates an empty in-memory log repository
func NewLogRepository() *LogRepository {
	return &LogRepository{}
}

// Create stores a new log entry
func (r *LogRepository) Create(ctx context.Context, log *entities.DeviceLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.logs = append(r.logs, *log)
	return nil
}

// FindRecent returns up to limit log entries for a device, newest first
func (r *LogRepository) FindRecent(ctx context.Context, deviceID string, limit int) ([]entities.DeviceLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []entities.DeviceLog
	for _, log := range r.logs {
		if log.DeviceID == deviceID {
			result = append(result, log)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.After(result[j].Timestamp)
	})

	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}

	return result, nil
}

// FindSince returns a device's log entries at or after the given time
func (r *LogRepository) FindSince(ctx context.Context, deviceID string, since time.Time) ([]entities.DeviceLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []entities.DeviceLog
	for _, log := range r.logs {
		if log.DeviceID == deviceID && !log.Timestamp.Before(since) {
			result = append(result, log)
		}
	}

	return result, nil
}

// FindByOrganization returns an organization's log entries in [start, end]
func (r *LogRepository) FindByOrganization(ctx context.Context, orgID string, start, end time.Time) ([]entities.DeviceLog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []entities.DeviceLog
	for _, log := range r.logs {
		if log.OrganizationID != orgID {
			continue
		}
		if log.Timestamp.Before(start) || log.Timestamp.After(end) {
			continue
		}
		result = append(result, log)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Timestamp.Before(result[j].Timestamp)
	})

	return result, nil
}
