// Package library owns the phone-side record library: it turns received
// watch records into stored library records and publishes the ordered list
// to live observers.
package library

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/sebasr/bpmetrics/internal/live"
	"github.com/sebasr/bpmetrics/internal/metrics"
	"github.com/sebasr/bpmetrics/internal/models"
	"github.com/sebasr/bpmetrics/internal/repository"
)

// MaxTitleLength bounds a record title in runes
const MaxTitleLength = 120

// ErrInvalidTitle is returned when a rename carries an empty or oversized title
var ErrInvalidTitle = errors.New("invalid title")

// Options configures a Service
type Options struct {
	// Dedup stores the watch record id as the source id so a repeated
	// delivery is rejected with repository.ErrRecordExists
	Dedup    bool
	Location *time.Location // zone default titles are rendered in
	Logger   *log.Logger
	Metrics  *metrics.Collector
}

// Service is the single writer to the library store
type Service struct {
	repo    repository.LibraryRepository
	dedup   bool
	loc     *time.Location
	logger  *log.Logger
	metrics *metrics.Collector

	mu      sync.Mutex // serializes writes and the republish that follows them
	records *live.Cell[[]*models.LibraryRecord]
}

// NewService creates a library service over repo
func NewService(repo repository.LibraryRepository, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = log.Default()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	return &Service{
		repo:    repo,
		dedup:   opts.Dedup,
		loc:     opts.Location,
		logger:  opts.Logger,
		metrics: opts.Metrics,
		records: live.NewCell([]*models.LibraryRecord{}),
	}
}

// Load publishes the stored list to observers
func (s *Service) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.publish(ctx)
}

// Save computes the statistics of rec and stores it under a default title
func (s *Service) Save(ctx context.Context, rec *models.WatchRecord) (*models.LibraryRecord, error) {
	lr := s.newLibraryRecord(rec)
	stats := models.ComputeStats(rec.DataPoints, rec.Duration())

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.Create(ctx, lr, stats); err != nil {
		return nil, fmt.Errorf("failed to save record %s: %w", rec.ID, err)
	}
	s.logger.Printf("Library: saved record %d %q (%d points, avg %.1f bpm)", lr.ID, lr.Title, len(lr.Points), stats.Avg)

	if err := s.publish(ctx); err != nil {
		s.logger.Printf("Library: failed to republish after save: %v", err)
	}
	return lr, nil
}

func (s *Service) newLibraryRecord(rec *models.WatchRecord) *models.LibraryRecord {
	lr := models.NewLibraryRecord(rec, models.DefaultTitle(rec, s.loc))
	if !s.dedup {
		lr.SourceID = nil
	}
	return lr
}

// List returns the stored records, newest first
func (s *Service) List(ctx context.Context) ([]*models.LibraryRecord, error) {
	return s.repo.List(ctx)
}

// Get returns a single record
func (s *Service) Get(ctx context.Context, id int64) (*models.LibraryRecord, error) {
	return s.repo.GetByID(ctx, id)
}

// Rename changes the title of a record
func (s *Service) Rename(ctx context.Context, id int64, title string) (*models.LibraryRecord, error) {
	title = strings.TrimSpace(title)
	if title == "" || len([]rune(title)) > MaxTitleLength {
		return nil, fmt.Errorf("%w: must be 1-%d characters", ErrInvalidTitle, MaxTitleLength)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.UpdateTitle(ctx, id, title); err != nil {
		return nil, err
	}
	if err := s.publish(ctx); err != nil {
		s.logger.Printf("Library: failed to republish after rename: %v", err)
	}
	return s.repo.GetByID(ctx, id)
}

// DeleteAll empties the library
func (s *Service) DeleteAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	deleted, err := s.repo.DeleteAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to delete records: %w", err)
	}
	s.logger.Printf("Library: deleted %d records", deleted)

	if err := s.publish(ctx); err != nil {
		s.logger.Printf("Library: failed to republish after delete: %v", err)
	}
	return deleted, nil
}

// SeedSamples stores the sample records dated today
func (s *Service) SeedSamples(ctx context.Context) ([]*models.LibraryRecord, error) {
	samples, err := SampleRecords(models.DateOf(time.Now().In(s.loc)))
	if err != nil {
		return nil, err
	}

	saved := make([]*models.LibraryRecord, 0, len(samples))
	for _, rec := range samples {
		lr, err := s.Save(ctx, rec)
		if err != nil {
			return saved, err
		}
		saved = append(saved, lr)
	}
	return saved, nil
}

// Watch subscribes to the record list. The current list is delivered
// immediately; call cancel to unsubscribe.
func (s *Service) Watch() (<-chan []*models.LibraryRecord, func()) {
	return s.records.Subscribe()
}

// Current returns the last published list
func (s *Service) Current() []*models.LibraryRecord {
	return s.records.Get()
}

// Close ends every subscription
func (s *Service) Close() {
	s.records.Close()
}

// publish reloads the full list and pushes it to observers. Callers hold s.mu.
func (s *Service) publish(ctx context.Context) error {
	records, err := s.repo.List(ctx)
	if err != nil {
		return err
	}
	s.records.Set(records)
	s.metrics.SetLibrarySize(len(records))
	return nil
}

// SampleRecords builds the four sample records: five points each, one
// second apart, spread around a different base rate per record.
func SampleRecords(date models.Date) ([]*models.WatchRecord, error) {
	bases := []struct {
		start int64
		bpm   float64
	}{
		{0, 60},
		{10000, 70},
		{20000, 65},
		{30000, 85},
	}

	records := make([]*models.WatchRecord, 0, len(bases))
	for _, b := range bases {
		points := []models.DataPoint{
			{Timestamp: 1000, BPM: b.bpm},
			{Timestamp: 2000, BPM: b.bpm - 5},
			{Timestamp: 3000, BPM: b.bpm + 5},
			{Timestamp: 4000, BPM: b.bpm - 10},
			{Timestamp: 5000, BPM: b.bpm + 10},
		}
		rec, err := models.NewWatchRecord(uuid.Nil, date, points, b.start, b.start+6000)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}
