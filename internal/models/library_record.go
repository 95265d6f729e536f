package models

import (
	"time"

	"github.com/google/uuid"
)

// TitleTimeLayout formats the time-of-day part of a default record title
const TitleTimeLayout = "03:04:05 PM"

// StoredPoint is a data point persisted under a library record
type StoredPoint struct {
	ID        int64   `json:"id"`
	RecordID  int64   `json:"recordId"`
	Timestamp int64   `json:"timestamp"`
	BPM       float64 `json:"bpm"`
}

// Point returns the bare data point
func (p StoredPoint) Point() DataPoint {
	return DataPoint{Timestamp: p.Timestamp, BPM: p.BPM}
}

// LibraryRecord is the phone-side persisted form of a watch record.
// Avg, MaxPointID and MinPointID stay nil on a record whose statistics were
// never written.
type LibraryRecord struct {
	ID         int64         `json:"id"`
	SourceID   *uuid.UUID    `json:"sourceId,omitempty"`
	Title      string        `json:"title"`
	Date       Date          `json:"date"`
	StartTime  int64         `json:"startTime"`
	EndTime    int64         `json:"endTime"`
	Duration   int64         `json:"durationMs"`
	Avg        *float64      `json:"avg,omitempty"`
	MaxPointID *int64        `json:"maxPointId,omitempty"`
	MinPointID *int64        `json:"minPointId,omitempty"`
	Points     []StoredPoint `json:"dataPoints"`
	CreatedAt  time.Time     `json:"createdAt"`
}

// NewLibraryRecord builds an unsaved library record from a watch record
func NewLibraryRecord(rec *WatchRecord, title string) *LibraryRecord {
	points := make([]StoredPoint, len(rec.DataPoints))
	for i, p := range rec.DataPoints {
		points[i] = StoredPoint{Timestamp: p.Timestamp, BPM: p.BPM}
	}

	lr := &LibraryRecord{
		Title:     title,
		Date:      rec.Date,
		StartTime: rec.StartTime,
		EndTime:   rec.EndTime,
		Duration:  rec.Duration(),
		Points:    points,
	}
	if rec.ID != uuid.Nil {
		id := rec.ID
		lr.SourceID = &id
	}
	return lr
}

// DefaultTitle derives a title from the record date and start time of day
func DefaultTitle(rec *WatchRecord, loc *time.Location) string {
	return rec.Date.String() + " " + rec.StartedAt(loc).Format(TitleTimeLayout)
}

// HasStats reports whether the aggregate statistics were written
func (r *LibraryRecord) HasStats() bool {
	return r.Avg != nil && r.MaxPointID != nil && r.MinPointID != nil
}

// Max returns the stored maximum point, if known
func (r *LibraryRecord) Max() (StoredPoint, bool) {
	return r.pointByID(r.MaxPointID)
}

// Min returns the stored minimum point, if known
func (r *LibraryRecord) Min() (StoredPoint, bool) {
	return r.pointByID(r.MinPointID)
}

func (r *LibraryRecord) pointByID(id *int64) (StoredPoint, bool) {
	if id == nil {
		return StoredPoint{}, false
	}
	for _, p := range r.Points {
		if p.ID == *id {
			return p, true
		}
	}
	return StoredPoint{}, false
}

// LibraryRecordResponse is the API view of a library record with max/min resolved
type LibraryRecordResponse struct {
	*LibraryRecord
	Max *StoredPoint `json:"max,omitempty"`
	Min *StoredPoint `json:"min,omitempty"`
}

// ToResponse converts a LibraryRecord to its API view
func (r *LibraryRecord) ToResponse() *LibraryRecordResponse {
	resp := &LibraryRecordResponse{LibraryRecord: r}
	if p, ok := r.Max(); ok {
		resp.Max = &p
	}
	if p, ok := r.Min(); ok {
		resp.Min = &p
	}
	return resp
}
