package session

import (
	"time"

	"github.com/sebasr/bpmetrics/internal/metrics"
	"github.com/sebasr/bpmetrics/internal/models"
)

// Accumulator buffers the data points of one session.
// It is owned by the machine's event loop and is not safe for concurrent use.
type Accumulator struct {
	zero    time.Duration
	buffer  []models.DataPoint
	elapsed int64
}

// Reset clears the buffer and takes zero as the new uptime reference
func (a *Accumulator) Reset(zero time.Duration) {
	a.zero = zero
	a.buffer = nil
	a.elapsed = 0
}

// Zero returns the uptime reference of the current session
func (a *Accumulator) Zero() time.Duration {
	return a.zero
}

// Accept converts a raw uptime reading into a data point and buffers it.
// It returns the drop reason, or "" when the point was buffered.
// Zero readings, readings at or before the zero reference and readings that
// fail validation are dropped.
func (a *Accumulator) Accept(uptime time.Duration, bpm float64) string {
	if bpm == 0 {
		return metrics.DropNoReading
	}

	ts := (uptime - a.zero).Milliseconds()
	if ts <= 0 {
		return metrics.DropBeforeZero
	}

	p, err := models.NewDataPoint(ts, bpm)
	if err != nil {
		return metrics.DropInvalid
	}

	a.buffer = append(a.buffer, p)
	a.elapsed = ts
	return ""
}

// Points returns the buffered points in arrival order
func (a *Accumulator) Points() []models.DataPoint {
	return a.buffer
}

// Len returns the number of buffered points
func (a *Accumulator) Len() int {
	return len(a.buffer)
}

// Elapsed returns the offset of the latest buffered point
func (a *Accumulator) Elapsed() time.Duration {
	return time.Duration(a.elapsed) * time.Millisecond
}
