// Package repository provides data access interfaces and implementations.
package repository

import (
	"context"
	"errors"

	"github.com/sebasr/bpmetrics/internal/models"
)

var (
	// ErrRecordNotFound is returned when a library record is not found
	ErrRecordNotFound = errors.New("record not found")

	// ErrRecordExists is returned when a record with the same source id was already stored
	ErrRecordExists = errors.New("record already exists")
)

// LibraryRepository defines the interface for library record data access
type LibraryRepository interface {
	// Create stores the record shell, its points and its statistics in one
	// transaction. IDs are assigned on rec and its points.
	Create(ctx context.Context, rec *models.LibraryRecord, stats models.Stats) error

	// List returns every record with its points, newest date first and
	// latest start time first within a date
	List(ctx context.Context) ([]*models.LibraryRecord, error)

	// GetByID retrieves a record with its points
	GetByID(ctx context.Context, id int64) (*models.LibraryRecord, error)

	// UpdateTitle renames a record
	UpdateTitle(ctx context.Context, id int64, title string) error

	// DeleteAll removes every record and point and returns the number of records removed
	DeleteAll(ctx context.Context) (int64, error)

	// Count returns the number of stored records
	Count(ctx context.Context) (int64, error)
}
