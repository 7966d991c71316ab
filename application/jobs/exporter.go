package jobs

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"fleetgrid-backend/domain/entities"
)

// WriteExport renders the organization's log entries to a file in the export
// directory and returns its path. The file name embeds the job id so polls
// and reruns never collide.
func WriteExport(dir string, job entities.ExportJob, logs []entities.DeviceLog) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}

	path := filepath.Join(dir, fmt.Sprintf("export-%s.%s", job.ID, job.Format))

	switch job.Format {
	case entities.ExportFormatCSV:
		if err := writeCSV(path, logs); err != nil {
			return "", err
		}
	default:
		if err := writeJSON(path, logs); err != nil {
			return "", err
		}
	}

	return path, nil
}

func writeJSON(path string, logs []entities.DeviceLog) error {
	payload, err := json.MarshalIndent(logs, "", "  ")
	if err != nil {
		return fmt.Errorf("encode export: %w", err)
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return fmt.Errorf("write export file: %w", err)
	}
	return nil
}

func writeCSV(path string, logs []entities.DeviceLog) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create export file: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"id", "deviceId", "event", "value", "timestamp"}); err != nil {
		return fmt.Errorf("write export header: %w", err)
	}
	for _, entry := range logs {
		record := []string{
			entry.ID,
			entry.DeviceID,
			entry.Event,
			strconv.FormatFloat(entry.Value, 'f', -1, 64),
			entry.Timestamp.Format(time.RFC3339Nano),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write export row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush export file: %w", err)
	}
	return nil
}
