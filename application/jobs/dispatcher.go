package jobs

import (
	"context"
	"sync"

	"fleetgrid-backend/application/ports"
	"fleetgrid-backend/domain/entities"
	"fleetgrid-backend/pkg/observability"

	"go.uber.org/zap"
)

// Dispatcher runs the export worker pool. Each worker pulls a job off the
// queue, marks it PROCESSING, renders the export file and transitions the
// row to COMPLETED or FAILED. Job state lives in the store, not in the
// workers, so polling and recovery survive restarts.
type Dispatcher struct {
	queue     *Queue
	jobRepo   ports.ExportJobRepository
	logRepo   ports.LogRepository
	exportDir string
	workers   int
	metrics   *observability.Metrics
	logger    *zap.Logger
	wg        sync.WaitGroup
}

// NewDispatcher creates a new export dispatcher
func NewDispatcher(
	queue *Queue,
	jobRepo ports.ExportJobRepository,
	logRepo ports.LogRepository,
	exportDir string,
	workers int,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	return &Dispatcher{
		queue:     queue,
		jobRepo:   jobRepo,
		logRepo:   logRepo,
		exportDir: exportDir,
		workers:   workers,
		metrics:   metrics,
		logger:    logger,
	}
}

// Start launches the worker pool. Workers exit when the queue closes or the
// context is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
}

// Stop closes the queue and waits for in-flight jobs to finish.
func (d *Dispatcher) Stop() {
	d.queue.Close()
	d.wg.Wait()
}

// Recover reconciles persisted job state after a restart: jobs left in
// PROCESSING were in-flight when the process died and are marked
// INTERRUPTED; PENDING jobs are re-enqueued.
func (d *Dispatcher) Recover(ctx context.Context) error {
	stale, err := d.jobRepo.FindByStatus(ctx, entities.ExportStatusProcessing)
	if err != nil {
		return err
	}
	for _, job := range stale {
		if err := d.jobRepo.UpdateStatus(ctx, job.OrganizationID, job.ID, entities.ExportStatusInterrupted, ""); err != nil {
			d.logger.Error("Failed to mark job interrupted", zap.String("jobID", job.ID), zap.Error(err))
			continue
		}
		d.recordJob(entities.ExportStatusInterrupted)
		d.logger.Warn("Marked in-flight export job interrupted", zap.String("jobID", job.ID))
	}

	pending, err := d.jobRepo.FindByStatus(ctx, entities.ExportStatusPending)
	if err != nil {
		return err
	}
	for _, job := range pending {
		if err := d.queue.Enqueue(job); err != nil {
			// Still PENDING in the store; the next restart retries it.
			d.logger.Warn("Could not re-enqueue pending export job", zap.String("jobID", job.ID), zap.Error(err))
			continue
		}
		d.logger.Info("Re-enqueued pending export job", zap.String("jobID", job.ID))
	}

	return nil
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job, ok := <-d.queue.Jobs():
			if !ok {
				return
			}
			d.process(ctx, job)
		}
	}
}

func (d *Dispatcher) process(ctx context.Context, job entities.ExportJob) {
	if err := d.jobRepo.UpdateStatus(ctx, job.OrganizationID, job.ID, entities.ExportStatusProcessing, ""); err != nil {
		d.logger.Error("Failed to mark job processing", zap.String("jobID", job.ID), zap.Error(err))
		return
	}

	logs, err := d.logRepo.FindByOrganization(ctx, job.OrganizationID, job.StartDate, job.EndDate)
	if err != nil {
		d.fail(ctx, job, err)
		return
	}

	path, err := WriteExport(d.exportDir, job, logs)
	if err != nil {
		d.fail(ctx, job, err)
		return
	}

	if err := d.jobRepo.UpdateStatus(ctx, job.OrganizationID, job.ID, entities.ExportStatusCompleted, path); err != nil {
		d.logger.Error("Failed to mark job completed", zap.String("jobID", job.ID), zap.Error(err))
		return
	}
	d.recordJob(entities.ExportStatusCompleted)

	d.logger.Info("Export job completed",
		zap.String("jobID", job.ID),
		zap.String("path", path),
		zap.Int("entries", len(logs)),
	)
}

func (d *Dispatcher) fail(ctx context.Context, job entities.ExportJob, cause error) {
	d.logger.Error("Export job failed", zap.String("jobID", job.ID), zap.Error(cause))
	if err := d.jobRepo.UpdateStatus(ctx, job.OrganizationID, job.ID, entities.ExportStatusFailed, ""); err != nil {
		d.logger.Error("Failed to mark job failed", zap.String("jobID", job.ID), zap.Error(err))
		return
	}
	d.recordJob(entities.ExportStatusFailed)
}

func (d *Dispatcher) recordJob(status string) {
	if d.metrics != nil {
		d.metrics.ExportJobsProcessed.WithLabelValues(status).Inc()
	}
}
