package memory

import (
	"context"
	"sync"
	"time"

	"fleetgrid-backend/domain/entities"
)

// ExportJobRepository is an in-memory ports.ExportJobRepository
type ExportJobRepository struct {
	mu   sync.RWMutex
	jobs map[string]entities.ExportJob
}

// NewExportJobRepository creates an empty in-memory export job repository
func NewExportJobRepository() *ExportJobRepository {
	return &ExportJobRepository{
		jobs: make(map[string]entities.ExportJob),
	}
}

// Create stores a new export job
func (r *ExportJobRepository) Create(ctx context.Context, job *entities.ExportJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.jobs[job.ID] = *job
	return nil
}

// FindByID returns the organization's job with the given id, or nil if absent
func (r *ExportJobRepository) FindByID(ctx context.Context, orgID, jobID string) (*entities.ExportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[jobID]
	if !ok || job.OrganizationID != orgID {
		return nil, nil
	}
	copied := job
	return &copied, nil
}

// UpdateStatus transitions the job to the given status
func (r *ExportJobRepository) UpdateStatus(ctx context.Context, orgID, jobID, status, filePath string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[jobID]
	if !ok || job.OrganizationID != orgID {
		return nil
	}
	job.Status = status
	if filePath != "" {
		job.FilePath = filePath
	}
	job.UpdatedAt = time.Now().UTC()
	r.jobs[jobID] = job
	return nil
}

// FindByStatus returns all jobs in any of the given statuses
func (r *ExportJobRepository) FindByStatus(ctx context.Context, statuses ...string) ([]entities.ExportJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var result []entities.ExportJob
	for _, job := range r.jobs {
		for _, status := range statuses {
			if job.Status == status {
				result = append(result, job)
				break
			}
		}
	}

	return result, nil
}
