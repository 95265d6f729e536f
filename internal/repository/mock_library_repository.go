package repository

import (
	"context"

	"github.com/sebasr/bpmetrics/internal/models"
)

// MockLibraryRepository is a mock implementation of LibraryRepository for testing
type MockLibraryRepository struct {
	CreateFunc      func(ctx context.Context, rec *models.LibraryRecord, stats models.Stats) error
	ListFunc        func(ctx context.Context) ([]*models.LibraryRecord, error)
	GetByIDFunc     func(ctx context.Context, id int64) (*models.LibraryRecord, error)
	UpdateTitleFunc func(ctx context.Context, id int64, title string) error
	DeleteAllFunc   func(ctx context.Context) (int64, error)
	CountFunc       func(ctx context.Context) (int64, error)
}

// NewMockLibraryRepository creates a new mock repository with default implementations
func NewMockLibraryRepository() *MockLibraryRepository {
	return &MockLibraryRepository{
		CreateFunc: func(_ context.Context, _ *models.LibraryRecord, _ models.Stats) error {
			return nil
		},
		ListFunc: func(_ context.Context) ([]*models.LibraryRecord, error) {
			return []*models.LibraryRecord{}, nil
		},
		GetByIDFunc: func(_ context.Context, _ int64) (*models.LibraryRecord, error) {
			return nil, ErrRecordNotFound
		},
		UpdateTitleFunc: func(_ context.Context, _ int64, _ string) error {
			return nil
		},
		DeleteAllFunc: func(_ context.Context) (int64, error) {
			return 0, nil
		},
		CountFunc: func(_ context.Context) (int64, error) {
			return 0, nil
		},
	}
}

// Create implements LibraryRepository.Create
func (m *MockLibraryRepository) Create(ctx context.Context, rec *models.LibraryRecord, stats models.Stats) error {
	return m.CreateFunc(ctx, rec, stats)
}

// List implements LibraryRepository.List
func (m *MockLibraryRepository) List(ctx context.Context) ([]*models.LibraryRecord, error) {
	return m.ListFunc(ctx)
}

// GetByID implements LibraryRepository.GetByID
func (m *MockLibraryRepository) GetByID(ctx context.Context, id int64) (*models.LibraryRecord, error) {
	return m.GetByIDFunc(ctx, id)
}

// UpdateTitle implements LibraryRepository.UpdateTitle
func (m *MockLibraryRepository) UpdateTitle(ctx context.Context, id int64, title string) error {
	return m.UpdateTitleFunc(ctx, id, title)
}

// DeleteAll implements LibraryRepository.DeleteAll
func (m *MockLibraryRepository) DeleteAll(ctx context.Context) (int64, error) {
	return m.DeleteAllFunc(ctx)
}

// Count implements LibraryRepository.Count
func (m *MockLibraryRepository) Count(ctx context.Context) (int64, error) {
	return m.CountFunc(ctx)
}
