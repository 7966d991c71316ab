package jobs

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"os"
	"testing"
	"time"

	"fleetgrid-backend/domain/entities"
	"fleetgrid-backend/infrastructure/persistence/memory"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newJob(orgID, format string) *entities.ExportJob {
	now := time.Now().UTC()
	return &entities.ExportJob{
		ID:             uuid.New().String(),
		OrganizationID: orgID,
		StartDate:      now.Add(-24 * time.Hour),
		EndDate:        now.Add(time.Hour),
		Format:         format,
		Status:         entities.ExportStatusPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func seedLogs(t *testing.T, repo *memory.LogRepository, orgID string, count int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < count; i++ {
		err := repo.Create(ctx, &entities.DeviceLog{
			ID:             uuid.New().String(),
			DeviceID:       "dev-1",
			OrganizationID: orgID,
			Event:          "usage",
			Value:          float64(i + 1),
			Timestamp:      time.Now().UTC(),
		})
		require.NoError(t, err)
	}
}

func waitForStatus(t *testing.T, repo *memory.ExportJobRepository, orgID, jobID string, statuses ...string) *entities.ExportJob {
	t.Helper()
	ctx := context.Background()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		job, err := repo.FindByID(ctx, orgID, jobID)
		require.NoError(t, err)
		require.NotNil(t, job)
		for _, status := range statuses {
			if job.Status == status {
				return job
			}
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("job %s never reached %v", jobID, statuses)
	return nil
}

func TestDispatcher_ProcessesJSONJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobRepo := memory.NewExportJobRepository()
	logRepo := memory.NewLogRepository()
	seedLogs(t, logRepo, "org-1", 3)

	queue := NewQueue(4)
	dispatcher := NewDispatcher(queue, jobRepo, logRepo, t.TempDir(), 1, nil, zap.NewNop())
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	job := newJob("org-1", entities.ExportFormatJSON)
	require.NoError(t, jobRepo.Create(context.Background(), job))
	require.NoError(t, queue.Enqueue(*job))

	done := waitForStatus(t, jobRepo, "org-1", job.ID, entities.ExportStatusCompleted)
	require.NotEmpty(t, done.FilePath)

	payload, err := os.ReadFile(done.FilePath)
	require.NoError(t, err)
	var entries []entities.DeviceLog
	require.NoError(t, json.Unmarshal(payload, &entries))
	assert.Len(t, entries, 3)
}

func TestDispatcher_ProcessesCSVJob(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobRepo := memory.NewExportJobRepository()
	logRepo := memory.NewLogRepository()
	seedLogs(t, logRepo, "org-1", 2)

	queue := NewQueue(4)
	dispatcher := NewDispatcher(queue, jobRepo, logRepo, t.TempDir(), 1, nil, zap.NewNop())
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	job := newJob("org-1", entities.ExportFormatCSV)
	require.NoError(t, jobRepo.Create(context.Background(), job))
	require.NoError(t, queue.Enqueue(*job))

	done := waitForStatus(t, jobRepo, "org-1", job.ID, entities.ExportStatusCompleted)

	file, err := os.Open(done.FilePath)
	require.NoError(t, err)
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3, "header plus two rows")
	assert.Equal(t, []string{"id", "deviceId", "event", "value", "timestamp"}, records[0])
}

func TestDispatcher_ExportScopedToOrganization(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobRepo := memory.NewExportJobRepository()
	logRepo := memory.NewLogRepository()
	seedLogs(t, logRepo, "org-1", 2)
	seedLogs(t, logRepo, "org-2", 5)

	queue := NewQueue(4)
	dispatcher := NewDispatcher(queue, jobRepo, logRepo, t.TempDir(), 1, nil, zap.NewNop())
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	job := newJob("org-1", entities.ExportFormatJSON)
	require.NoError(t, jobRepo.Create(context.Background(), job))
	require.NoError(t, queue.Enqueue(*job))

	done := waitForStatus(t, jobRepo, "org-1", job.ID, entities.ExportStatusCompleted)

	payload, err := os.ReadFile(done.FilePath)
	require.NoError(t, err)
	var entries []entities.DeviceLog
	require.NoError(t, json.Unmarshal(payload, &entries))
	assert.Len(t, entries, 2)
}

func TestDispatcher_RecoverMarksProcessingInterrupted(t *testing.T) {
	ctx := context.Background()

	jobRepo := memory.NewExportJobRepository()
	logRepo := memory.NewLogRepository()

	// A job left mid-flight by a crashed process.
	stale := newJob("org-1", entities.ExportFormatJSON)
	stale.Status = entities.ExportStatusProcessing
	require.NoError(t, jobRepo.Create(ctx, stale))

	queue := NewQueue(4)
	dispatcher := NewDispatcher(queue, jobRepo, logRepo, t.TempDir(), 1, nil, zap.NewNop())
	require.NoError(t, dispatcher.Recover(ctx))

	job, err := jobRepo.FindByID(ctx, "org-1", stale.ID)
	require.NoError(t, err)
	assert.Equal(t, entities.ExportStatusInterrupted, job.Status)
}

func TestDispatcher_RecoverReenqueuesPending(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobRepo := memory.NewExportJobRepository()
	logRepo := memory.NewLogRepository()
	seedLogs(t, logRepo, "org-1", 1)

	// A job accepted before the crash but never picked up.
	pending := newJob("org-1", entities.ExportFormatJSON)
	require.NoError(t, jobRepo.Create(ctx, pending))

	queue := NewQueue(4)
	dispatcher := NewDispatcher(queue, jobRepo, logRepo, t.TempDir(), 1, nil, zap.NewNop())
	require.NoError(t, dispatcher.Recover(ctx))
	dispatcher.Start(ctx)
	defer dispatcher.Stop()

	waitForStatus(t, jobRepo, "org-1", pending.ID, entities.ExportStatusCompleted)
}

func TestQueue_EnqueueFullQueue(t *testing.T) {
	queue := NewQueue(1)
	require.NoError(t, queue.Enqueue(*newJob("org-1", entities.ExportFormatJSON)))

	err := queue.Enqueue(*newJob("org-1", entities.ExportFormatJSON))
	assert.Error(t, err)
}
