// Package wire encodes watch records for transfer between the watch and the phone.
//
// A payload is a versioned JSON envelope:
//
//	{"version":1,"recordId":"<uuid>","record":{"date":"2024-05-01",
//	 "dataPoints":[{"timestamp":1000,"bpm":80}],"startTime":1714550400000,"endTime":1714550404000}}
//
// Decoding rejects unknown versions and unknown fields, and rebuilds the record
// through the model constructors so a decoded record always satisfies the
// model invariants.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/sebasr/bpmetrics/internal/models"
)

// Version is the envelope version written by Encode
const Version = 1

var (
	// ErrMalformedPayload is returned when a payload cannot be decoded into a valid record
	ErrMalformedPayload = errors.New("malformed record payload")

	// ErrUnsupportedVersion is returned for envelopes of an unknown version
	ErrUnsupportedVersion = errors.New("unsupported payload version")
)

type envelope struct {
	Version  int        `json:"version"`
	RecordID uuid.UUID  `json:"recordId"`
	Record   *recordDTO `json:"record"`
}

type recordDTO struct {
	Date       string     `json:"date"`
	DataPoints []pointDTO `json:"dataPoints"`
	StartTime  *int64     `json:"startTime"`
	EndTime    *int64     `json:"endTime"`
}

type pointDTO struct {
	Timestamp *int64   `json:"timestamp"`
	BPM       *float64 `json:"bpm"`
}

// Encode serializes a record into a version 1 envelope
func Encode(rec *models.WatchRecord) ([]byte, error) {
	if rec == nil {
		return nil, errors.New("encode: nil record")
	}

	points := make([]pointDTO, len(rec.DataPoints))
	for i := range rec.DataPoints {
		p := rec.DataPoints[i]
		points[i] = pointDTO{Timestamp: &p.Timestamp, BPM: &p.BPM}
	}
	start, end := rec.StartTime, rec.EndTime

	data, err := json.Marshal(envelope{
		Version:  Version,
		RecordID: rec.ID,
		Record: &recordDTO{
			Date:       rec.Date.String(),
			DataPoints: points,
			StartTime:  &start,
			EndTime:    &end,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode record %s: %w", rec.ID, err)
	}
	return data, nil
}

// Decode parses an envelope and rebuilds the record it carries
func Decode(data []byte) (*models.WatchRecord, error) {
	var probe struct {
		Version *int `json:"version"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if probe.Version == nil {
		return nil, fmt.Errorf("%w: missing version", ErrMalformedPayload)
	}
	if *probe.Version != Version {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedVersion, *probe.Version)
	}

	var env envelope
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if dec.More() {
		return nil, fmt.Errorf("%w: trailing data", ErrMalformedPayload)
	}

	rec, err := env.toRecord()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return rec, nil
}

func (e *envelope) toRecord() (*models.WatchRecord, error) {
	if e.RecordID == uuid.Nil {
		return nil, errors.New("missing record id")
	}
	r := e.Record
	if r == nil {
		return nil, errors.New("missing record")
	}
	if r.StartTime == nil || r.EndTime == nil {
		return nil, errors.New("missing record bounds")
	}
	if len(r.DataPoints) == 0 {
		return nil, models.ErrEmptyRecord
	}

	date, err := models.ParseDate(r.Date)
	if err != nil {
		return nil, err
	}

	points := make([]models.DataPoint, len(r.DataPoints))
	for i, dto := range r.DataPoints {
		if dto.Timestamp == nil || dto.BPM == nil {
			return nil, fmt.Errorf("data point %d: missing field", i)
		}
		p, err := models.NewDataPoint(*dto.Timestamp, *dto.BPM)
		if err != nil {
			return nil, fmt.Errorf("data point %d: %w", i, err)
		}
		points[i] = p
	}

	return models.NewWatchRecord(e.RecordID, date, points, *r.StartTime, *r.EndTime)
}
