package repository

import (
	"context"
	"time"

	"github.com/sebasr/bpmetrics/internal/models"
)

// MockDeviceRepository is a mock implementation of DeviceRepository for testing
type MockDeviceRepository struct {
	TouchFunc         func(ctx context.Context, deviceID string, at time.Time, stored bool) error
	GetByDeviceIDFunc func(ctx context.Context, deviceID string) (*models.Device, error)
	ListFunc          func(ctx context.Context) ([]*models.Device, error)
}

// NewMockDeviceRepository creates a new mock device repository with default implementations
func NewMockDeviceRepository() *MockDeviceRepository {
	return &MockDeviceRepository{
		TouchFunc: func(_ context.Context, _ string, _ time.Time, _ bool) error {
			return nil
		},
		GetByDeviceIDFunc: func(_ context.Context, _ string) (*models.Device, error) {
			return nil, ErrDeviceNotFound
		},
		ListFunc: func(_ context.Context) ([]*models.Device, error) {
			return []*models.Device{}, nil
		},
	}
}

// Touch implements DeviceRepository.Touch
func (m *MockDeviceRepository) Touch(ctx context.Context, deviceID string, at time.Time, stored bool) error {
	return m.TouchFunc(ctx, deviceID, at, stored)
}

// GetByDeviceID implements DeviceRepository.GetByDeviceID
func (m *MockDeviceRepository) GetByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	return m.GetByDeviceIDFunc(ctx, deviceID)
}

// List implements DeviceRepository.List
func (m *MockDeviceRepository) List(ctx context.Context) ([]*models.Device, error) {
	return m.ListFunc(ctx)
}
