package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/sebasr/bpmetrics/internal/database"
	"github.com/sebasr/bpmetrics/internal/models"
)

// SQLDeviceRepository implements DeviceRepository on SQLite or PostgreSQL
type SQLDeviceRepository struct {
	db *database.DB
}

// NewSQLDeviceRepository creates a new device repository
func NewSQLDeviceRepository(db *database.DB) *SQLDeviceRepository {
	return &SQLDeviceRepository{db: db}
}

// Touch upserts the device, bumping its record counter for stored deliveries
func (r *SQLDeviceRepository) Touch(ctx context.Context, deviceID string, at time.Time, stored bool) error {
	at = at.UTC()
	var received int64
	if stored {
		received = 1
	}
	_, err := r.db.ExecContext(ctx, r.db.Rebind(`
		INSERT INTO paired_devices (device_id, first_seen_at, last_seen_at, records_received)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (device_id) DO UPDATE SET
			last_seen_at = excluded.last_seen_at,
			records_received = paired_devices.records_received + excluded.records_received
	`), deviceID, at, at, received)
	if err != nil {
		return fmt.Errorf("failed to touch device %s: %w", deviceID, err)
	}
	return nil
}

// GetByDeviceID retrieves a device by its id
func (r *SQLDeviceRepository) GetByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	var device models.Device
	err := r.db.QueryRowContext(ctx, r.db.Rebind(`
		SELECT device_id, first_seen_at, last_seen_at, records_received
		FROM paired_devices
		WHERE device_id = ?
	`), deviceID).Scan(
		&device.DeviceID,
		&device.FirstSeenAt,
		&device.LastSeenAt,
		&device.RecordsReceived,
	)
	if err != nil {
		return nil, notFound(err, ErrDeviceNotFound)
	}
	return &device, nil
}

// List retrieves all devices, most recently seen first
func (r *SQLDeviceRepository) List(ctx context.Context) ([]*models.Device, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT device_id, first_seen_at, last_seen_at, records_received
		FROM paired_devices
		ORDER BY last_seen_at DESC, device_id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query devices: %w", err)
	}
	defer rows.Close()

	devices := []*models.Device{}
	for rows.Next() {
		var device models.Device
		err := rows.Scan(
			&device.DeviceID,
			&device.FirstSeenAt,
			&device.LastSeenAt,
			&device.RecordsReceived,
		)
		if err != nil {
			return nil, err
		}
		devices = append(devices, &device)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return devices, nil
}

var _ DeviceRepository = (*SQLDeviceRepository)(nil)
