package repository

import (
	"context"
	"errors"
	"time"

	"github.com/sebasr/bpmetrics/internal/models"
)

// ErrDeviceNotFound is returned when a device is not found
var ErrDeviceNotFound = errors.New("device not found")

// DeviceRepository defines the interface for paired device bookkeeping
type DeviceRepository interface {
	// Touch records a delivery from deviceID at the given time, creating the
	// device on first sight. Only stored deliveries count towards RecordsReceived.
	Touch(ctx context.Context, deviceID string, at time.Time, stored bool) error

	// GetByDeviceID retrieves a device by its id
	GetByDeviceID(ctx context.Context, deviceID string) (*models.Device, error)

	// List retrieves all devices, most recently seen first
	List(ctx context.Context) ([]*models.Device, error)
}
