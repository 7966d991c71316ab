package entities

import "time"

// DeviceLog is a single log or telemetry reading reported by a device.
type DeviceLog struct {
	ID             string    `json:"id"`
	DeviceID       string    `json:"deviceId"`
	OrganizationID string    `json:"organizationId"`
	Event          string    `json:"event"`
	Value          float64   `json:"value"`
	Timestamp      time.Time `json:"timestamp"`
}

// UsageSummary is the cached aggregate served by the usage endpoint.
type UsageSummary struct {
	DeviceID     string  `json:"deviceId"`
	Range        string  `json:"range"`
	TotalUsage   float64 `json:"totalUsage"`
	AverageUsage float64 `json:"averageUsage"`
	Samples      int     `json:"samples"`
}
