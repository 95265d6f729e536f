package models

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrInvalidBounds is returned when a record's start/end times are inconsistent
	ErrInvalidBounds = errors.New("invalid record bounds")

	// ErrEmptyRecord is returned when a record would carry no data points
	ErrEmptyRecord = errors.New("record has no data points")
)

// WatchRecord is one completed recording session as produced on the watch.
// StartTime and EndTime are wall-clock Unix milliseconds; data point timestamps
// are offsets from the session's monotonic zero reference.
type WatchRecord struct {
	// ID is generated on the watch when the record is finalized and travels
	// with the record so the phone can recognise a repeated delivery.
	ID         uuid.UUID   `json:"id"`
	Date       Date        `json:"date"`
	DataPoints []DataPoint `json:"dataPoints"`
	StartTime  int64       `json:"startTime"`
	EndTime    int64       `json:"endTime"`
}

// NewWatchRecord validates bounds and points and builds a record.
// The points are copied and sorted; the caller's slice is left untouched.
// An empty point list is accepted here; finalization never produces one.
func NewWatchRecord(id uuid.UUID, date Date, points []DataPoint, startTime, endTime int64) (*WatchRecord, error) {
	if startTime < 0 {
		return nil, fmt.Errorf("%w: start time %d is negative", ErrInvalidBounds, startTime)
	}
	if endTime <= startTime {
		return nil, fmt.Errorf("%w: end time %d not after start time %d", ErrInvalidBounds, endTime, startTime)
	}
	for i, p := range points {
		if err := p.Validate(); err != nil {
			return nil, fmt.Errorf("data point %d: %w", i, err)
		}
	}

	return &WatchRecord{
		ID:         id,
		Date:       date,
		DataPoints: SortDataPoints(points),
		StartTime:  startTime,
		EndTime:    endTime,
	}, nil
}

// Duration returns EndTime - StartTime in milliseconds
func (r *WatchRecord) Duration() int64 {
	return r.EndTime - r.StartTime
}

// StartedAt returns the start time as a time.Time in loc
func (r *WatchRecord) StartedAt(loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	return time.UnixMilli(r.StartTime).In(loc)
}

// CompareByDate orders records by calendar date only; records from the same
// day compare equal regardless of their start times.
func CompareByDate(a, b *WatchRecord) int {
	return a.Date.Compare(b.Date)
}

// SortRecordsByDate sorts records ascending by date, keeping same-day records
// in their original order.
func SortRecordsByDate(records []*WatchRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return CompareByDate(records[i], records[j]) < 0
	})
}
