package services

import (
	"context"
	"time"

	"fleetgrid-backend/application/jobs"
	"fleetgrid-backend/application/ports"
	"fleetgrid-backend/domain/entities"
	appErrors "fleetgrid-backend/pkg/errors"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateExportInput carries an export job request.
type CreateExportInput struct {
	StartDate time.Time `json:"startDate" validate:"required"`
	EndDate   time.Time `json:"endDate" validate:"required"`
	Format    string    `json:"format" validate:"required,oneof=json csv"`
}

// ExportService accepts export job submissions and serves status polls. The
// job row is persisted before the queue sees it, so a submission is never
// lost even if the process dies immediately after responding.
type ExportService struct {
	jobRepo ports.ExportJobRepository
	queue   *jobs.Queue
	logger  *zap.Logger
}

// NewExportService creates a new export service
func NewExportService(jobRepo ports.ExportJobRepository, queue *jobs.Queue, logger *zap.Logger) *ExportService {
	return &ExportService{
		jobRepo: jobRepo,
		queue:   queue,
		logger:  logger,
	}
}

// CreateJob persists a PENDING job for the caller's organization and hands
// it to the worker pool.
func (s *ExportService) CreateJob(ctx context.Context, orgID string, input CreateExportInput) (*entities.ExportJob, error) {
	if !input.EndDate.After(input.StartDate) {
		return nil, appErrors.NewValidationError("endDate must be after startDate")
	}

	now := time.Now().UTC()
	job := &entities.ExportJob{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		StartDate:      input.StartDate,
		EndDate:        input.EndDate,
		Format:         input.Format,
		Status:         entities.ExportStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.jobRepo.Create(ctx, job); err != nil {
		return nil, err
	}

	if err := s.queue.Enqueue(*job); err != nil {
		// The row is PENDING in the store; startup recovery re-enqueues it.
		s.logger.Warn("Export queue rejected job, deferring to recovery",
			zap.String("jobID", job.ID),
			zap.Error(err),
		)
	}

	s.logger.Info("Export job submitted",
		zap.String("jobID", job.ID),
		zap.String("orgID", orgID),
		zap.String("format", job.Format),
	)

	return job, nil
}

// GetJob returns the status of a job belonging to the caller's organization.
func (s *ExportService) GetJob(ctx context.Context, orgID, jobID string) (*entities.ExportJob, error) {
	job, err := s.jobRepo.FindByID(ctx, orgID, jobID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, appErrors.NewNotFoundError("export job")
	}
	return job, nil
}
