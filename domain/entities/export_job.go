package entities

import "time"

// Export job states. INTERRUPTED marks a job that was mid-flight when the
// process died; it is set during startup recovery so a crash never loses
// job state silently.
const (
	ExportStatusPending     = "PENDING"
	ExportStatusProcessing  = "PROCESSING"
	ExportStatusCompleted   = "COMPLETED"
	ExportStatusFailed      = "FAILED"
	ExportStatusInterrupted = "INTERRUPTED"
)

// Export formats.
const (
	ExportFormatJSON = "json"
	ExportFormatCSV  = "csv"
)

// ExportJob is an asynchronous device-log export request. State is
// persisted, not held in in-memory timers, so it survives restarts and can
// be polled.
type ExportJob struct {
	ID             string    `json:"jobId"`
	OrganizationID string    `json:"organizationId"`
	StartDate      time.Time `json:"startDate"`
	EndDate        time.Time `json:"endDate"`
	Format         string    `json:"format"`
	Status         string    `json:"status"`
	FilePath       string    `json:"filePath,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}
