package session

import (
	"time"

	"github.com/google/uuid"
	"github.com/sebasr/bpmetrics/internal/models"
)

// Finalize builds a watch record from buffered points. It returns nil without
// error when the buffer is empty. The points are stably sorted by timestamp;
// the record date is the calendar day of start.
func Finalize(id uuid.UUID, buffer []models.DataPoint, start, end time.Time) (*models.WatchRecord, error) {
	if len(buffer) == 0 {
		return nil, nil
	}
	return models.NewWatchRecord(id, models.DateOf(start), buffer, start.UnixMilli(), end.UnixMilli())
}
