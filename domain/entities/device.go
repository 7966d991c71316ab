package entities

import "time"

// Device status values.
const (
	DeviceStatusActive   = "active"
	DeviceStatusInactive = "inactive"
)

// Device represents a registered device. OwnerID scopes every query so
// tenants never see each other's fleet.
type Device struct {
	ID           string     `json:"id"`
	Name         string     `json:"name"`
	Type         string     `json:"type"`
	Status       string     `json:"status"`
	OwnerID      string     `json:"ownerId"`
	LastActiveAt *time.Time `json:"lastActiveAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

// DeviceFilter narrows device listings. Empty fields match everything.
type DeviceFilter struct {
	Type   string
	Status string
}
