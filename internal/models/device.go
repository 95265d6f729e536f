package models

import (
	"time"
)

// OnlineWindow is how recently a device must have delivered a record to count as online
const OnlineWindow = time.Hour

// Device is a watch that has delivered at least one record to the phone
type Device struct {
	DeviceID        string    `json:"deviceId" db:"device_id"`               // ID from the pairing token
	FirstSeenAt     time.Time `json:"firstSeenAt" db:"first_seen_at"`        // First accepted delivery
	LastSeenAt      time.Time `json:"lastSeenAt" db:"last_seen_at"`          // Most recent accepted delivery
	RecordsReceived int64     `json:"recordsReceived" db:"records_received"` // Records stored from this device
}

// IsOnline checks if the device has delivered within OnlineWindow of now
func (d *Device) IsOnline(now time.Time) bool {
	if d.LastSeenAt.IsZero() {
		return false
	}
	return now.Sub(d.LastSeenAt) < OnlineWindow
}

// DeviceResponse represents a device for API responses
type DeviceResponse struct {
	DeviceID        string    `json:"deviceId"`
	FirstSeenAt     time.Time `json:"firstSeenAt"`
	LastSeenAt      time.Time `json:"lastSeenAt"`
	RecordsReceived int64     `json:"recordsReceived"`
	IsOnline        bool      `json:"isOnline"`
}

// ToResponse converts a Device to a DeviceResponse
func (d *Device) ToResponse(now time.Time) *DeviceResponse {
	return &DeviceResponse{
		DeviceID:        d.DeviceID,
		FirstSeenAt:     d.FirstSeenAt,
		LastSeenAt:      d.LastSeenAt,
		RecordsReceived: d.RecordsReceived,
		IsOnline:        d.IsOnline(now),
	}
}
