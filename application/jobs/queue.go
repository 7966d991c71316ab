// Package jobs runs the asynchronous export pipeline: a persisted job queue,
// a worker pool that renders export files, and startup recovery so a process
// restart never loses job state silently.
package jobs

import (
	"fleetgrid-backend/domain/entities"
	appErrors "fleetgrid-backend/pkg/errors"
)

// Queue hands submitted export jobs to the worker pool over a buffered
// channel. Job rows are persisted before enqueue, so a full queue rejects
// the submission without losing state: the job stays PENDING and startup
// recovery will pick it up.
type Queue struct {
	jobs chan entities.ExportJob
}

// NewQueue creates a queue with the given buffer size.
func NewQueue(size int) *Queue {
	if size <= 0 {
		size = 64
	}
	return &Queue{
		jobs: make(chan entities.ExportJob, size),
	}
}

// Enqueue submits a job to the worker pool. Fails when the buffer is full.
func (q *Queue) Enqueue(job entities.ExportJob) error {
	select {
	case q.jobs <- job:
		return nil
	default:
		return appErrors.NewInternalError("export queue full")
	}
}

// Jobs exposes the receive side for workers.
func (q *Queue) Jobs() <-chan entities.ExportJob {
	return q.jobs
}

// Close stops accepting jobs and lets workers drain the buffer.
func (q *Queue) Close() {
	close(q.jobs)
}
