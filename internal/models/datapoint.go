// Package models contains data models shared by the watch agent and the phone library.
package models

import (
	"errors"
	"fmt"
	"math"
	"sort"
)

const (
	// MinBPM is the lowest heart rate a data point may carry
	MinBPM = 0.0

	// MaxBPM is the highest heart rate a data point may carry
	MaxBPM = 250.0
)

var (
	// ErrNegativeTimestamp is returned when a data point offset is below zero
	ErrNegativeTimestamp = errors.New("timestamp must not be negative")

	// ErrInvalidBPM is returned when a heart rate is outside [MinBPM, MaxBPM]
	ErrInvalidBPM = errors.New("bpm out of range")
)

// DataPoint is a single heart-rate observation.
// Timestamp is an offset in milliseconds from the session zero reference.
type DataPoint struct {
	Timestamp int64   `json:"timestamp"`
	BPM       float64 `json:"bpm"`
}

// NewDataPoint validates and builds a data point
func NewDataPoint(timestamp int64, bpm float64) (DataPoint, error) {
	if timestamp < 0 {
		return DataPoint{}, fmt.Errorf("%w: %d", ErrNegativeTimestamp, timestamp)
	}
	if math.IsNaN(bpm) || bpm < MinBPM || bpm > MaxBPM {
		return DataPoint{}, fmt.Errorf("%w: %v", ErrInvalidBPM, bpm)
	}
	return DataPoint{Timestamp: timestamp, BPM: bpm}, nil
}

// Validate re-checks the construction invariants, for values built outside NewDataPoint
func (p DataPoint) Validate() error {
	_, err := NewDataPoint(p.Timestamp, p.BPM)
	return err
}

// Less orders points by timestamp
func (p DataPoint) Less(other DataPoint) bool {
	return p.Timestamp < other.Timestamp
}

// SortDataPoints returns a copy of points sorted ascending by timestamp.
// Points sharing a timestamp keep their relative order.
func SortDataPoints(points []DataPoint) []DataPoint {
	sorted := make([]DataPoint, len(points))
	copy(sorted, points)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Less(sorted[j])
	})
	return sorted
}

// IsSorted reports whether points are in ascending timestamp order
func IsSorted(points []DataPoint) bool {
	return sort.SliceIsSorted(points, func(i, j int) bool {
		return points[i].Less(points[j])
	})
}
